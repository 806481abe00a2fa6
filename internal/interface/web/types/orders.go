package types

import (
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/utils"
)

type CreateOrder struct {
	Message    string `json:"message"`
	Network    string `json:"network"`
	BidMsat    uint64 `json:"bid_msat"`
	BidRate    uint64 `json:"bid_rate"`
	MaxBidRate uint64 `json:"max_bid_rate"`
	Invoice    string `json:"invoice"`
}

type BumpOrder struct {
	BidIncrease uint64 `json:"bid_increase" binding:"required,gt=0"`
}

type RefundAddress struct {
	AddressType string `json:"address_type"`
}

type Order struct {
	Id              string     `json:"id"`
	Message         string     `json:"message"`
	MessageSize     uint64     `json:"message_size"`
	Network         string     `json:"network"`
	BidRate         uint64     `json:"bid_rate"`
	MaxBidRate      uint64     `json:"max_bid_rate"`
	InvoiceSupplied bool       `json:"invoice_supplied"`
	Invoice         string     `json:"invoice,omitempty"`
	RefundAddress   string     `json:"refund_address,omitempty"`
	Broadcast       *Broadcast `json:"broadcast,omitempty"`
	Swap            *Swap      `json:"swap,omitempty"`
	OnChainTxId     string     `json:"txid,omitempty"`
	Status          string     `json:"status"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	Error           string     `json:"error,omitempty"`
	FundsSent       bool       `json:"funds_sent"`
	Reconciled      bool       `json:"reconciled"`
	RefundEligible  bool       `json:"refund_eligible"`
	CreatedAt       int64      `json:"created_at"`
	UpdatedAt       int64      `json:"updated_at"`
}

type Broadcast struct {
	Uuid          string    `json:"uuid"`
	BidMsat       uint64    `json:"bid_msat"`
	Payreq        string    `json:"payreq"`
	MessageDigest string    `json:"message_digest"`
	ExpiresAt     int64     `json:"expires_at"`
	Status        string    `json:"status"`
	Bumps         []BidBump `json:"bumps,omitempty"`
}

type BidBump struct {
	IncreaseMsat uint64 `json:"bid_increase"`
	Payreq       string `json:"payreq"`
	Timestamp    int64  `json:"timestamp"`
}

type Swap struct {
	SwapAmount         uint64 `json:"swap_amount"`
	SwapFee            uint64 `json:"swap_fee"`
	P2SHAddress        string `json:"swap_p2sh_address"`
	RedeemScript       string `json:"redeem_script"`
	PaymentHash        string `json:"payment_hash"`
	TimeoutBlockHeight uint32 `json:"timeout_block_height"`
	PaymentSecret      string `json:"payment_secret,omitempty"`
}

// FromOrder renders an order for the API. The broadcast auth token is never
// exposed.
func FromOrder(order domain.Order) Order {
	o := Order{
		Id:              order.Id,
		Message:         string(order.Message),
		MessageSize:     order.MessageSize(),
		Network:         string(order.Network),
		BidRate:         order.BidRate,
		MaxBidRate:      order.MaxBidRate,
		InvoiceSupplied: order.InvoiceSupplied,
		Invoice:         order.Invoice,
		RefundAddress:   order.RefundAddress,
		OnChainTxId:     order.OnChainTxId,
		Status:          order.Status.String(),
		FailureReason:   order.FailureReason,
		Error:           order.Error,
		FundsSent:       order.FundsSent,
		Reconciled:      order.Reconciled,
		RefundEligible:  order.RefundEligible,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if b := order.Broadcast; b != nil {
		o.Broadcast = &Broadcast{
			Uuid:          b.Uuid,
			BidMsat:       b.BidMsat,
			Payreq:        b.Payreq,
			MessageDigest: b.MessageDigest,
			ExpiresAt:     b.ExpiresAt,
			Status:        b.Status,
		}
		for _, bump := range b.Bumps {
			o.Broadcast.Bumps = append(o.Broadcast.Bumps, BidBump(bump))
		}
	}
	if s := order.Swap; s != nil {
		o.Swap = &Swap{
			SwapAmount:         s.SwapAmount,
			SwapFee:            s.SwapFee,
			P2SHAddress:        s.P2SHAddress,
			RedeemScript:       s.RedeemScript,
			PaymentHash:        s.PaymentHash,
			TimeoutBlockHeight: s.TimeoutBlockHeight,
			PaymentSecret:      s.PaymentSecret,
		}
	}
	return o
}

func FromOrders(orders []domain.Order) []Order {
	list := make([]Order, 0, len(orders))
	for _, order := range orders {
		list = append(list, FromOrder(order))
	}
	return list
}

type Quote struct {
	Tokens    uint64 `json:"tokens"`
	Fee       uint64 `json:"fee"`
	ExpiresAt string `json:"expires_at"`
}

func FromQuote(quote *ports.SwapQuote) *Quote {
	if quote == nil {
		return nil
	}
	return &Quote{quote.Tokens, quote.Fee, quote.ExpiresAt}
}

type SwapStatus struct {
	StatusCode    int    `json:"status_code"`
	Text          string `json:"text"`
	ConfWaitCount uint32 `json:"conf_wait_count"`
	TransactionId string `json:"transaction_id,omitempty"`
	PaymentSecret string `json:"payment_secret,omitempty"`
}

func FromSwapStatus(status *ports.SwapStatus) *SwapStatus {
	if status == nil {
		return nil
	}
	return &SwapStatus{
		StatusCode:    status.StatusCode,
		Text:          status.Text,
		ConfWaitCount: status.ConfWaitCount,
		TransactionId: status.TransactionId,
		PaymentSecret: status.PaymentSecret,
	}
}

type InvoiceDetails struct {
	Id          string          `json:"id"`
	Description string          `json:"description"`
	Destination string          `json:"destination"`
	ExpiresAt   string          `json:"expires_at"`
	Fee         uint64          `json:"fee"`
	Tokens      uint64          `json:"tokens"`
	IsExpired   bool            `json:"is_expired"`
	Network     string          `json:"network"`
	Decoded     *DecodedInvoice `json:"decoded,omitempty"`
}

type DecodedInvoice struct {
	AmountMsat  uint64 `json:"amount_msat"`
	PaymentHash string `json:"payment_hash"`
	Description string `json:"description"`
	ExpiresAt   int64  `json:"expires_at"`
}

// FromInvoiceDetails merges the swap server's view of an invoice with what
// could be decoded locally, if anything.
func FromInvoiceDetails(details *ports.InvoiceDetails, decoded *utils.Invoice) InvoiceDetails {
	d := InvoiceDetails{
		Id:          details.Id,
		Description: details.Description,
		Destination: details.Destination,
		ExpiresAt:   details.ExpiresAt,
		Fee:         details.Fee,
		Tokens:      details.Tokens,
		IsExpired:   details.IsExpired,
		Network:     details.Network,
	}
	if decoded != nil {
		d.Decoded = &DecodedInvoice{
			AmountMsat:  decoded.AmountMsat,
			PaymentHash: decoded.PaymentHash,
			Description: decoded.Description,
			ExpiresAt:   decoded.ExpiresAt.Unix(),
		}
	}
	return d
}
