package blocksat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/utils"
)

const serviceName = "satellite"

var defaultUrls = map[domain.Network]string{
	domain.NetworkTestnet: "https://api.blockstream.space/testnet",
	domain.NetworkMainnet: "https://api.blockstream.space",
}

// DefaultURL returns the satellite API endpoint for the network.
func DefaultURL(network domain.Network) string {
	return defaultUrls[network]
}

type service struct {
	client *resty.Client
}

func NewService(url string) (ports.BroadcastService, error) {
	if !utils.IsValidURL(url) {
		return nil, fmt.Errorf("invalid satellite api url %s", url)
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(url, "/")).
		SetTimeout(30 * time.Second)
	return &service{client}, nil
}

func (s *service) Place(
	ctx context.Context, message []byte, bidMsat uint64,
) (*ports.PlaceResult, error) {
	var result placeResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"bid": strconv.FormatUint(bidMsat, 10),
		}).
		SetFileReader("file", "message", bytes.NewReader(message)).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}

	code := resp.StatusCode()
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return nil, gatewayError(resp)
	}
	if code != http.StatusOK {
		return &ports.PlaceResult{StatusCode: code, Text: resp.String()}, nil
	}

	order, err := result.toBroadcastOrder(bidMsat)
	if err != nil {
		return nil, err
	}
	return &ports.PlaceResult{
		Accepted:   true,
		StatusCode: code,
		Text:       resp.String(),
		Order:      *order,
	}, nil
}

func (s *service) Bump(
	ctx context.Context, uuid, authToken string, increaseMsat uint64,
) (*ports.BumpResult, error) {
	var result placeResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"bid_increase": strconv.FormatUint(increaseMsat, 10),
			"auth_token":   authToken,
		}).
		SetPathParam("uuid", uuid).
		SetResult(&result).
		Post("/order/{uuid}/bump")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, gatewayError(resp)
	}

	token := result.AuthToken
	if len(token) == 0 {
		token = authToken
	}
	return &ports.BumpResult{
		AuthToken: token,
		Payreq:    result.LightningInvoice.Payreq,
	}, nil
}

func (s *service) GetOrder(
	ctx context.Context, uuid, authToken string,
) (*ports.BroadcastStatus, error) {
	var result orderResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Auth-Token", authToken).
		SetPathParam("uuid", uuid).
		SetResult(&result).
		Get("/order/{uuid}")
	if err != nil {
		return nil, &ports.GatewayError{Service: serviceName, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, gatewayError(resp)
	}
	return result.toBroadcastStatus(), nil
}

func gatewayError(resp *resty.Response) error {
	return &ports.GatewayError{
		Service:    serviceName,
		StatusCode: resp.StatusCode(),
		Text:       resp.String(),
		Reason:     http.StatusText(resp.StatusCode()),
	}
}

type placeResponse struct {
	AuthToken        string          `json:"auth_token"`
	Uuid             string          `json:"uuid"`
	LightningInvoice invoiceResponse `json:"lightning_invoice"`
}

type invoiceResponse struct {
	Id          string      `json:"id"`
	Msatoshi    json.Number `json:"msatoshi"`
	Description string      `json:"description"`
	Rhash       string      `json:"rhash"`
	Payreq      string      `json:"payreq"`
	ExpiresAt   int64       `json:"expires_at"`
	CreatedAt   int64       `json:"created_at"`
	Metadata    struct {
		MessageDigest string `json:"sha256_message_digest"`
	} `json:"metadata"`
	Status string `json:"status"`
}

func (r placeResponse) toBroadcastOrder(bidMsat uint64) (*domain.BroadcastOrder, error) {
	if len(r.Uuid) == 0 || len(r.LightningInvoice.Payreq) == 0 {
		return nil, fmt.Errorf("satellite api returned an order without uuid or invoice")
	}
	if len(r.LightningInvoice.Msatoshi) > 0 {
		amount, err := strconv.ParseUint(r.LightningInvoice.Msatoshi.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid invoice amount %s: %w", r.LightningInvoice.Msatoshi, err)
		}
		bidMsat = amount
	}
	return &domain.BroadcastOrder{
		Uuid:          r.Uuid,
		AuthToken:     r.AuthToken,
		BidMsat:       bidMsat,
		InvoiceId:     r.LightningInvoice.Id,
		Payreq:        r.LightningInvoice.Payreq,
		Rhash:         r.LightningInvoice.Rhash,
		MessageDigest: r.LightningInvoice.Metadata.MessageDigest,
		ExpiresAt:     r.LightningInvoice.ExpiresAt,
		Status:        r.LightningInvoice.Status,
	}, nil
}

type orderResponse struct {
	Uuid          string  `json:"uuid"`
	Bid           uint64  `json:"bid"`
	BidPerByte    float64 `json:"bid_per_byte"`
	MessageSize   uint64  `json:"message_size"`
	MessageDigest string  `json:"message_digest"`
	Status        string  `json:"status"`
	UnpaidBid     uint64  `json:"unpaid_bid"`
	TxSeqNum      uint64  `json:"tx_seq_num"`
	CreatedAt     string  `json:"created_at"`
	StartedAt     string  `json:"started_transmission_at"`
	EndedAt       string  `json:"ended_transmission_at"`
}

func (r orderResponse) toBroadcastStatus() *ports.BroadcastStatus {
	return &ports.BroadcastStatus{
		Uuid:          r.Uuid,
		Status:        r.Status,
		BidMsat:       r.Bid,
		BidPerByte:    r.BidPerByte,
		MessageSize:   r.MessageSize,
		UnpaidBidMsat: r.UnpaidBid,
		TxSeqNum:      r.TxSeqNum,
		MessageDigest: r.MessageDigest,
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		EndedAt:       r.EndedAt,
	}
}
