package submarine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/internal/infrastructure/submarine"
	"github.com/stretchr/testify/require"
)

const (
	testInvoice       = "lntb100n1pwtestinvoice"
	expiredInvoice    = "lntb100n1pwexpired"
	testRefundAddress = "mkHS9ne12qx9pS9VojpwU5xtRd4T7X7ZUt"
	testRedeemScript  = "76a820e8a1b2"
	testSecret        = "3d1c7e5b0a2f"
)

func swapTermsResponse(extra map[string]any, omit ...string) map[string]any {
	terms := map[string]any{
		"destination_public_key":  "02deadbeef",
		"fee_tokens_per_vbyte":    5,
		"invoice":                 testInvoice,
		"payment_hash":            "5e5c9d111bc76ce4",
		"redeem_script":           testRedeemScript,
		"refund_address":          testRefundAddress,
		"refund_public_key_hash":  "3a1bc0",
		"swap_amount":             12_345,
		"swap_fee":                1_234,
		"swap_key_index":          7,
		"swap_p2sh_address":       "2N8hwP1WmJrFF5QWABn38y63uYLhnJYJYTF",
		"swap_p2sh_p2wsh_address": "2NBzUjMcTy8CG5SZDAMGH1BQNHpMBUYbSYQ",
		"swap_p2wsh_address":      "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx",
		"timeout_block_height":    2_500_000,
	}
	for _, key := range omit {
		delete(terms, key)
	}
	for key, value := range extra {
		terms[key] = value
	}
	return terms
}

func newSwapServer(t *testing.T, createResponse map[string]any) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/networks/{network}/invoices/{invoice}", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "testnet", r.PathValue("network"))
		switch r.PathValue("invoice") {
		case testInvoice:
			writeJSON(w, http.StatusOK, map[string]any{
				"created_at":  "2019-04-18T16:53:43.000Z",
				"description": "BSS Test",
				"destination": "02abcdef",
				"expires_at":  "2019-04-18T17:53:43.000Z",
				"fee":         1_234,
				"id":          "5e5c9d111bc76ce4",
				"is_expired":  false,
				"network":     "testnet",
				"tokens":      10,
			})
		case expiredInvoice:
			writeJSON(w, http.StatusOK, map[string]any{"id": "expired", "is_expired": true})
		default:
			http.Error(w, "InvalidInvoice", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("GET /api/v1/networks/{network}/address_details/{address}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("address") != testRefundAddress {
			http.Error(w, "ExpectedValidAddress", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": "p2pkh"})
	})
	mux.HandleFunc("POST /api/v1/swaps/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["invoice"] != testInvoice {
			http.Error(w, "ExpectedKnownInvoice", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, createResponse)
	})
	mux.HandleFunc("POST /api/v1/swaps/check", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req["redeem_script"] {
		case testRedeemScript:
			writeJSON(w, http.StatusOK, map[string]any{
				"payment_secret": testSecret,
				"transaction_id": "f00d",
			})
		default:
			http.Error(w, "FailedToFindSwapTransaction", http.StatusFailedDependency)
		}
	})
	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) // nolint:all
}

func TestSwapService(t *testing.T) {
	ctx := context.Background()
	server := newSwapServer(t, swapTermsResponse(nil))
	defer server.Close()

	svc, err := submarine.NewService(server.URL)
	require.NoError(t, err)

	t.Run("check invoice", func(t *testing.T) {
		details, err := svc.CheckInvoice(ctx, testInvoice, domain.NetworkTestnet)
		require.NoError(t, err)
		require.Equal(t, uint64(10), details.Tokens)
		require.Equal(t, uint64(1_234), details.Fee)
		require.False(t, details.IsExpired)

		_, err = svc.CheckInvoice(ctx, "lntbunknown", domain.NetworkTestnet)
		require.Error(t, err)
		require.False(t, ports.IsTransient(err))
		require.Contains(t, err.Error(), "InvalidInvoice")
	})

	t.Run("check address", func(t *testing.T) {
		require.NoError(t, svc.CheckAddress(ctx, testRefundAddress, domain.NetworkTestnet))
		require.Error(t, svc.CheckAddress(ctx, "notanaddress", domain.NetworkTestnet))
	})

	t.Run("quote", func(t *testing.T) {
		quote, err := svc.Quote(ctx, testInvoice, testRefundAddress, domain.NetworkTestnet)
		require.NoError(t, err)
		require.Equal(t, uint64(1_234), quote.Fee)
		require.Equal(t, testRefundAddress, quote.RefundAddress)

		_, err = svc.Quote(ctx, expiredInvoice, testRefundAddress, domain.NetworkTestnet)
		require.Error(t, err)
		_, err = svc.Quote(ctx, testInvoice, "notanaddress", domain.NetworkTestnet)
		require.Error(t, err)
	})

	t.Run("create", func(t *testing.T) {
		swap, err := svc.Create(ctx, testInvoice, testRefundAddress, domain.NetworkTestnet)
		require.NoError(t, err)
		require.Equal(t, uint64(12_345), swap.SwapAmount)
		require.Equal(t, uint64(1_234), swap.SwapFee)
		require.Equal(t, testRedeemScript, swap.RedeemScript)
		require.Equal(t, "2N8hwP1WmJrFF5QWABn38y63uYLhnJYJYTF", swap.P2SHAddress)
		require.Equal(t, uint32(2_500_000), swap.TimeoutBlockHeight)
		require.False(t, swap.IsSettled())

		_, err = svc.Create(ctx, "lntbunknown", testRefundAddress, domain.NetworkTestnet)
		require.Error(t, err)
		var gwErr *ports.GatewayError
		require.ErrorAs(t, err, &gwErr)
		require.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
		require.Equal(t, "Bad Request", gwErr.Reason)
	})

	t.Run("check status", func(t *testing.T) {
		status, err := svc.CheckStatus(ctx, domain.NetworkTestnet, testInvoice, testRedeemScript)
		require.NoError(t, err)
		require.True(t, status.IsSettled())
		require.Equal(t, testSecret, status.PaymentSecret)

		status, err = svc.CheckStatus(ctx, domain.NetworkTestnet, testInvoice, "other")
		require.NoError(t, err)
		require.False(t, status.IsSettled())
		require.Equal(t, http.StatusFailedDependency, status.StatusCode)
		require.Contains(t, status.Text, "FailedToFindSwapTransaction")
	})
}

func TestSwapServiceStrictTerms(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		response map[string]any
	}{
		{"unknown field", swapTermsResponse(map[string]any{"unexpected": true})},
		{"missing field", swapTermsResponse(nil, "redeem_script")},
		{"wrong type", swapTermsResponse(map[string]any{"swap_amount": "lots"})},
		{"other invoice", swapTermsResponse(map[string]any{"invoice": "lntbother"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newSwapServer(t, tt.response)
			defer server.Close()

			svc, err := submarine.NewService(server.URL)
			require.NoError(t, err)

			swap, err := svc.Create(ctx, testInvoice, testRefundAddress, domain.NetworkTestnet)
			require.Error(t, err)
			require.Nil(t, swap)
		})
	}
}

func TestSwapServiceUnreachable(t *testing.T) {
	svc, err := submarine.NewService("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = svc.CheckStatus(context.Background(), domain.NetworkTestnet, testInvoice, testRedeemScript)
	require.Error(t, err)
	require.True(t, ports.IsTransient(err))
}
