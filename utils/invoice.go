package utils

import (
	"time"

	decodepay "github.com/nbd-wtf/ln-decodepay"
)

type Invoice struct {
	AmountMsat  uint64
	PaymentHash string
	Description string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (i Invoice) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func DecodeInvoice(invoice string) (*Invoice, error) {
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		return nil, err
	}

	createdAt := time.Unix(int64(bolt11.CreatedAt), 0)
	return &Invoice{
		AmountMsat:  uint64(bolt11.MSatoshi),
		PaymentHash: bolt11.PaymentHash,
		Description: bolt11.Description,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(time.Duration(bolt11.Expiry) * time.Second),
	}, nil
}

func SatsFromInvoice(invoice string) int {
	n, err := decodepay.Decodepay(invoice)
	if err != nil {
		return 0
	}
	return int(n.MSatoshi / 1000)
}

func IsValidInvoice(invoice string) bool {
	return SatsFromInvoice(invoice) > 0
}
