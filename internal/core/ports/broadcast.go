package ports

import (
	"context"

	"github.com/satsub/satsub/internal/core/domain"
)

// PlaceResult is the answer to a bid. A bid refused by the service is not an
// error: Accepted is false and StatusCode/Text carry the service's answer.
type PlaceResult struct {
	Accepted   bool
	StatusCode int
	Text       string
	Order      domain.BroadcastOrder
}

type BumpResult struct {
	AuthToken string
	Payreq    string
}

type BroadcastStatus struct {
	Uuid          string
	Status        string
	BidMsat       uint64
	BidPerByte    float64
	MessageSize   uint64
	UnpaidBidMsat uint64
	TxSeqNum      uint64
	MessageDigest string
	CreatedAt     string
	StartedAt     string
	EndedAt       string
}

// BroadcastService places satellite broadcast orders.
type BroadcastService interface {
	Place(ctx context.Context, message []byte, bidMsat uint64) (*PlaceResult, error)
	Bump(ctx context.Context, uuid, authToken string, increaseMsat uint64) (*BumpResult, error)
	GetOrder(ctx context.Context, uuid, authToken string) (*BroadcastStatus, error)
}
