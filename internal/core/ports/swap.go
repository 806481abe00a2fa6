package ports

import (
	"context"

	"github.com/satsub/satsub/internal/core/domain"
)

type InvoiceDetails struct {
	Id          string
	Description string
	Destination string
	ExpiresAt   string
	CreatedAt   string
	Fee         uint64
	Tokens      uint64
	IsExpired   bool
	Network     string
}

type SwapQuote struct {
	Invoice       string
	RefundAddress string
	Tokens        uint64
	Fee           uint64
	ExpiresAt     string
}

// SwapStatus is the swap server's view of a funded swap. PaymentSecret is
// only set once the invoice has been paid.
type SwapStatus struct {
	StatusCode    int
	Text          string
	ConfWaitCount uint32
	OutputIndex   uint32
	OutputTokens  uint64
	TransactionId string
	PaymentSecret string
}

func (s SwapStatus) IsSettled() bool {
	return len(s.PaymentSecret) > 0
}

// SwapService talks to the submarine swap server.
type SwapService interface {
	CheckInvoice(ctx context.Context, invoice string, network domain.Network) (*InvoiceDetails, error)
	CheckAddress(ctx context.Context, address string, network domain.Network) error
	Quote(ctx context.Context, invoice, refundAddress string, network domain.Network) (*SwapQuote, error)
	Create(ctx context.Context, invoice, refundAddress string, network domain.Network) (*domain.Swap, error)
	CheckStatus(ctx context.Context, network domain.Network, invoice, redeemScript string) (*SwapStatus, error)
}
