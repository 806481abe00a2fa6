package submarine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/utils"
)

const (
	serviceName = "swap server"
	apiPrefix   = "/api/v1"
)

type service struct {
	client *resty.Client
}

func NewService(url string) (ports.SwapService, error) {
	if !utils.IsValidURL(url) {
		return nil, fmt.Errorf("invalid swap server url %s", url)
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(url, "/") + apiPrefix).
		SetTimeout(30 * time.Second)
	return &service{client}, nil
}

func (s *service) CheckInvoice(
	ctx context.Context, invoice string, network domain.Network,
) (*ports.InvoiceDetails, error) {
	var result invoiceDetails
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"network": string(network),
			"invoice": invoice,
		}).
		SetResult(&result).
		Get("/networks/{network}/invoices/{invoice}")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, gatewayError(resp)
	}
	return &ports.InvoiceDetails{
		Id:          result.Id,
		Description: result.Description,
		Destination: result.Destination,
		ExpiresAt:   result.ExpiresAt,
		CreatedAt:   result.CreatedAt,
		Fee:         result.Fee,
		Tokens:      result.Tokens,
		IsExpired:   result.IsExpired,
		Network:     result.Network,
	}, nil
}

func (s *service) CheckAddress(
	ctx context.Context, address string, network domain.Network,
) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"network": string(network),
			"address": address,
		}).
		Get("/networks/{network}/address_details/{address}")
	if err != nil {
		return &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return gatewayError(resp)
	}
	return nil
}

// Quote prices a swap from the swap server's view of the invoice. The refund
// address is checked first so that a quote is only returned for a swap that
// can actually be created.
func (s *service) Quote(
	ctx context.Context, invoice, refundAddress string, network domain.Network,
) (*ports.SwapQuote, error) {
	if err := s.CheckAddress(ctx, refundAddress, network); err != nil {
		return nil, err
	}
	details, err := s.CheckInvoice(ctx, invoice, network)
	if err != nil {
		return nil, err
	}
	if details.IsExpired {
		return nil, fmt.Errorf("invoice %s is expired", details.Id)
	}
	return &ports.SwapQuote{
		Invoice:       invoice,
		RefundAddress: refundAddress,
		Tokens:        details.Tokens,
		Fee:           details.Fee,
		ExpiresAt:     details.ExpiresAt,
	}, nil
}

func (s *service) Create(
	ctx context.Context, invoice, refundAddress string, network domain.Network,
) (*domain.Swap, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"invoice":        invoice,
			"network":        string(network),
			"refund_address": refundAddress,
		}).
		Post("/swaps/")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, gatewayError(resp)
	}

	terms, err := decodeSwapTerms(resp.Body())
	if err != nil {
		return nil, err
	}
	if terms.Invoice != invoice || terms.RefundAddress != refundAddress {
		return nil, fmt.Errorf("swap server returned terms for a different invoice or refund address")
	}
	return terms.toSwap(), nil
}

// CheckStatus reports a swap that is not completed yet as a status rather
// than an error: the server answers anything but 200 until it has seen the
// funding transaction.
func (s *service) CheckStatus(
	ctx context.Context, network domain.Network, invoice, redeemScript string,
) (*ports.SwapStatus, error) {
	var result swapStatus
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"invoice":       invoice,
			"network":       string(network),
			"redeem_script": redeemScript,
		}).
		SetResult(&result).
		Post("/swaps/check")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &ports.SwapStatus{
			StatusCode: resp.StatusCode(),
			Text:       resp.String(),
		}, nil
	}
	return &ports.SwapStatus{
		StatusCode:    resp.StatusCode(),
		Text:          resp.String(),
		ConfWaitCount: result.ConfWaitCount,
		OutputIndex:   result.OutputIndex,
		OutputTokens:  result.OutputTokens,
		TransactionId: result.TransactionId,
		PaymentSecret: result.PaymentSecret,
	}, nil
}

func gatewayError(resp *resty.Response) error {
	return &ports.GatewayError{
		Service:    serviceName,
		StatusCode: resp.StatusCode(),
		Text:       resp.String(),
		Reason:     http.StatusText(resp.StatusCode()),
	}
}

// decodeSwapTerms rejects swap responses with missing or unexpected fields.
func decodeSwapTerms(body []byte) (*swapTerms, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid swap response: %w", err)
	}

	var terms swapTerms
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		ErrorUnset:  true,
		Result:      &terms,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid swap response: %w", err)
	}
	return &terms, nil
}

type invoiceDetails struct {
	CreatedAt        string `json:"created_at"`
	Description      string `json:"description"`
	Destination      string `json:"destination"`
	ExpiresAt        string `json:"expires_at"`
	Fee              uint64 `json:"fee"`
	FeeFiatValue     uint64 `json:"fee_fiat_value"`
	FiatCurrencyCode string `json:"fiat_currency_code"`
	FiatValue        uint64 `json:"fiat_value"`
	Id               string `json:"id"`
	IsExpired        bool   `json:"is_expired"`
	Network          string `json:"network"`
	Tokens           uint64 `json:"tokens"`
}

type swapTerms struct {
	DestinationPublicKey string `mapstructure:"destination_public_key"`
	FeeTokensPerVbyte    uint64 `mapstructure:"fee_tokens_per_vbyte"`
	Invoice              string `mapstructure:"invoice"`
	PaymentHash          string `mapstructure:"payment_hash"`
	RedeemScript         string `mapstructure:"redeem_script"`
	RefundAddress        string `mapstructure:"refund_address"`
	RefundPublicKeyHash  string `mapstructure:"refund_public_key_hash"`
	SwapAmount           uint64 `mapstructure:"swap_amount"`
	SwapFee              uint64 `mapstructure:"swap_fee"`
	SwapKeyIndex         uint64 `mapstructure:"swap_key_index"`
	SwapP2SHAddress      string `mapstructure:"swap_p2sh_address"`
	SwapP2SHP2WSHAddress string `mapstructure:"swap_p2sh_p2wsh_address"`
	SwapP2WSHAddress     string `mapstructure:"swap_p2wsh_address"`
	TimeoutBlockHeight   uint32 `mapstructure:"timeout_block_height"`
}

func (t swapTerms) toSwap() *domain.Swap {
	return &domain.Swap{
		Invoice:              t.Invoice,
		RefundAddress:        t.RefundAddress,
		SwapAmount:           t.SwapAmount,
		SwapFee:              t.SwapFee,
		P2SHAddress:          t.SwapP2SHAddress,
		P2SHP2WSHAddress:     t.SwapP2SHP2WSHAddress,
		P2WSHAddress:         t.SwapP2WSHAddress,
		RedeemScript:         t.RedeemScript,
		PaymentHash:          t.PaymentHash,
		DestinationPublicKey: t.DestinationPublicKey,
		TimeoutBlockHeight:   t.TimeoutBlockHeight,
	}
}

type swapStatus struct {
	ConfWaitCount uint32 `json:"conf_wait_count"`
	OutputIndex   uint32 `json:"output_index"`
	OutputTokens  uint64 `json:"output_tokens"`
	PaymentSecret string `json:"payment_secret"`
	TransactionId string `json:"transaction_id"`
}
