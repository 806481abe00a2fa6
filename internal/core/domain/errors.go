package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBidExhausted          = errors.New("bid exhausted")
	ErrInvoiceRejected       = errors.New("invoice rejected")
	ErrRefundAddressRejected = errors.New("refund address rejected")
	ErrSwapCreationFailed    = errors.New("swap creation failed")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOnChainSendFailed     = errors.New("on-chain send failed")
	ErrConfirmationTimeout   = errors.New("confirmation timeout")
	ErrPreimageTimeout       = errors.New("preimage timeout")
	ErrCancelled             = errors.New("order cancelled")

	ErrInvalidTransition = errors.New("invalid order transition")
	ErrOrderNotFound     = errors.New("order not found")
)

// BidExhaustedError reports the rate the bidding loop stopped at, which is
// always above the order's max bid rate.
type BidExhaustedError struct {
	LastRate   uint64
	NextRate   uint64
	MaxBidRate uint64
}

func (e *BidExhaustedError) Error() string {
	return fmt.Sprintf(
		"%s: last bid rate %d, next rate %d exceeds max bid rate %d",
		ErrBidExhausted, e.LastRate, e.NextRate, e.MaxBidRate,
	)
}

func (e *BidExhaustedError) Unwrap() error {
	return ErrBidExhausted
}

// UnexpectedFailure is the reason of failures not caused by any of the
// sentinels above.
const UnexpectedFailure = "Unexpected"

var failureReasons = []struct {
	err    error
	reason string
}{
	{ErrCancelled, "Cancelled"},
	{ErrBidExhausted, "BidExhausted"},
	{ErrInvoiceRejected, "InvoiceRejected"},
	{ErrRefundAddressRejected, "RefundAddressRejected"},
	{ErrSwapCreationFailed, "SwapCreationFailed"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrOnChainSendFailed, "OnChainSendFailed"},
	{ErrConfirmationTimeout, "ConfirmationTimeout"},
	{ErrPreimageTimeout, "PreimageTimeout"},
}

// FailureReasonOf maps an error to the name of the failure it represents.
func FailureReasonOf(err error) string {
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return UnexpectedFailure
}
