package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	refundAddress = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
	swapAddress   = "tb1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3q0sl5k7"
	fundingTxid   = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	paymentSecret = "a7f0c1e2d3b4a5968778695a4b3c2d1e0f1a2b3c4d5e6f708192a3b4c5d6e7f8"
	swapAmount    = 10_250
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// remotes fakes the satellite API, the swap server and the bitcoind wallet.
type remotes struct {
	satellite *httptest.Server
	swap      *httptest.Server
	bitcoind  *httptest.Server

	minBid    uint64
	lock      sync.Mutex
	bids      []uint64
	sentSats  []float64
	swapsMade atomic.Int32
}

func newRemotes(t *testing.T, minBid uint64) *remotes {
	r := &remotes{minBid: minBid}
	r.satellite = httptest.NewServer(r.satelliteMux(t))
	r.swap = httptest.NewServer(r.swapMux(t))
	r.bitcoind = httptest.NewServer(http.HandlerFunc(r.serveBitcoind))
	t.Cleanup(func() {
		r.satellite.Close()
		r.swap.Close()
		r.bitcoind.Close()
	})
	return r
}

func (r *remotes) placedBids() []uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]uint64(nil), r.bids...)
}

func (r *remotes) sends() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.sentSats)
}

func (r *remotes) satelliteMux(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /order", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		bid, err := strconv.ParseUint(req.FormValue("bid"), 10, 64)
		require.NoError(t, err)

		r.lock.Lock()
		r.bids = append(r.bids, bid)
		n := len(r.bids)
		r.lock.Unlock()

		if bid < r.minBid {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			fmt.Fprint(w, `{"message":"Bid too low"}`)
			return
		}
		writeJSON(w, map[string]any{
			"auth_token": "token",
			"uuid":       fmt.Sprintf("sat-%d", n),
			"lightning_invoice": map[string]any{
				"id":         "inv",
				"msatoshi":   strconv.FormatUint(bid, 10),
				"payreq":     fmt.Sprintf("lntb%dn1pwsatellite", bid),
				"rhash":      "5e5c9d",
				"expires_at": time.Now().Add(time.Hour).Unix(),
				"status":     "unpaid",
			},
		})
	})
	mux.HandleFunc("POST /order/{uuid}/bump", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		require.Equal(t, "token", req.FormValue("auth_token"))
		increase := req.FormValue("bid_increase")
		writeJSON(w, map[string]any{
			"auth_token": "token",
			"lightning_invoice": map[string]any{
				"msatoshi": increase,
				"payreq":   fmt.Sprintf("lntb%sn1pwbump", increase),
			},
		})
	})
	mux.HandleFunc("GET /order/{uuid}", func(w http.ResponseWriter, req *http.Request) {
		status := "pending"
		if r.sends() > 0 {
			status = "paid"
		}
		writeJSON(w, map[string]any{"uuid": req.PathValue("uuid"), "status": status})
	})
	return mux
}

func (r *remotes) swapMux(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/networks/{network}/invoices/{invoice}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{
			"id":         req.PathValue("invoice"),
			"network":    req.PathValue("network"),
			"tokens":     10,
			"fee":        250,
			"is_expired": false,
		})
	})
	mux.HandleFunc("GET /api/v1/networks/{network}/address_details/{address}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]any{"type": "p2wpkh"})
	})
	mux.HandleFunc("POST /api/v1/swaps/", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		r.swapsMade.Add(1)
		writeJSON(w, map[string]any{
			"destination_public_key":  "02deadbeef",
			"fee_tokens_per_vbyte":    5,
			"invoice":                 body["invoice"],
			"payment_hash":            "5e5c9d",
			"redeem_script":           "76a820e8",
			"refund_address":          body["refund_address"],
			"refund_public_key_hash":  "3a1bc0",
			"swap_amount":             swapAmount,
			"swap_fee":                250,
			"swap_key_index":          1,
			"swap_p2sh_address":       swapAddress,
			"swap_p2sh_p2wsh_address": swapAddress,
			"swap_p2wsh_address":      swapAddress,
			"timeout_block_height":    2_500_000,
		})
	})
	mux.HandleFunc("POST /api/v1/swaps/check", func(w http.ResponseWriter, req *http.Request) {
		if r.sends() == 0 {
			w.WriteHeader(http.StatusFailedDependency)
			fmt.Fprint(w, "FailedToFindSwapTransaction")
			return
		}
		writeJSON(w, map[string]any{
			"payment_secret": paymentSecret,
			"transaction_id": fundingTxid,
		})
	})
	return mux
}

func (r *remotes) serveBitcoind(w http.ResponseWriter, req *http.Request) {
	var rpcReq struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
		Id     json.RawMessage   `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&rpcReq); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var result any
	switch rpcReq.Method {
	case "getnewaddress":
		result = refundAddress
	case "getbalance":
		result = 1.0
	case "sendtoaddress":
		var amount float64
		// nolint:all
		json.Unmarshal(rpcReq.Params[1], &amount)
		r.lock.Lock()
		r.sentSats = append(r.sentSats, amount)
		r.lock.Unlock()
		result = fundingTxid
	case "gettransaction":
		result = map[string]any{"txid": fundingTxid, "confirmations": 1, "amount": -0.0001025}
	}
	writeJSON(w, map[string]any{"result": result, "error": nil, "id": rpcReq.Id})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	// nolint:all
	json.NewEncoder(w).Encode(v)
}

func post(t *testing.T, url string, body any) (int, map[string]any) {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	resp, err := httpClient.Post(url, "application/json", reader)
	require.NoError(t, err)
	return decode(t, resp)
}

func get(t *testing.T, url string) (int, map[string]any) {
	resp, err := httpClient.Get(url)
	require.NoError(t, err)
	return decode(t, resp)
}

func getList(t *testing.T, url string) (int, []any) {
	resp, err := httpClient.Get(url)
	require.NoError(t, err)
	return decodeAs[[]any](t, resp)
}

func decode(t *testing.T, resp *http.Response) (int, map[string]any) {
	return decodeAs[map[string]any](t, resp)
}

func decodeAs[T any](t *testing.T, resp *http.Response) (int, T) {
	defer resp.Body.Close()
	var data T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	return resp.StatusCode, data
}
