package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/stretchr/testify/require"
)

const (
	invoice = "lntb100u1pinvoice"
	refund  = "2N8hwP1WmJrFF5QWABn38y63uYLhnJYJYTF"
	secret  = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
)

var swap = domain.Swap{
	Invoice:            invoice,
	RefundAddress:      refund,
	SwapAmount:         10_000,
	P2SHAddress:        "2N1LGaGg836mqSQqiuUBLfcyGBhyZbremDX",
	RedeemScript:       "76a914",
	TimeoutBlockHeight: 100,
}

func TestNewOrder(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		order, err := domain.NewOrder([]byte("hello"), domain.NetworkTestnet, 50, 100, "")
		require.NoError(t, err)
		require.NotEmpty(t, order.Id)
		require.Equal(t, domain.OrderCreated, order.Status)
		require.False(t, order.InvoiceSupplied)
		require.Equal(t, uint64(5), order.MessageSize())

		order, err = domain.NewOrder(nil, domain.NetworkMainnet, 50, 100, invoice)
		require.NoError(t, err)
		require.True(t, order.InvoiceSupplied)
		require.Equal(t, invoice, order.Invoice)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			message    []byte
			network    domain.Network
			bidRate    uint64
			maxBidRate uint64
			err        string
		}{
			{[]byte("a"), "regtest", 50, 100, "invalid network"},
			{nil, domain.NetworkTestnet, 50, 100, "missing message"},
			{[]byte("a"), domain.NetworkTestnet, 0, 100, "greater than zero"},
			{[]byte("a"), domain.NetworkTestnet, 110, 100, "must not exceed"},
		}
		for _, f := range fixtures {
			_, err := domain.NewOrder(f.message, f.network, f.bidRate, f.maxBidRate, "")
			require.ErrorContains(t, err, f.err)
		}
	})
}

func TestBidFor(t *testing.T) {
	order, err := domain.NewOrder(make([]byte, 64), domain.NetworkTestnet, 50, 100, "")
	require.NoError(t, err)
	require.Equal(t, uint64(domain.MinimumBidMsat), order.BidFor(50))

	order, err = domain.NewOrder(make([]byte, 1000), domain.NetworkTestnet, 50, 100, "")
	require.NoError(t, err)
	require.Equal(t, uint64(50_000), order.BidFor(50))
	require.Equal(t, uint64(100_000), order.BidFor(100))
}

func TestOrderTransitions(t *testing.T) {
	t.Run("bidding path", func(t *testing.T) {
		order, err := domain.NewOrder([]byte("hello"), domain.NetworkTestnet, 50, 100, "")
		require.NoError(t, err)

		_, err = order.ValidateInvoice()
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		order, err = order.WithBidRate(60)
		require.NoError(t, err)
		_, err = order.WithBidRate(50)
		require.Error(t, err)
		_, err = order.WithBidRate(110)
		require.Error(t, err)

		order, err = order.AcceptBid(60, domain.BroadcastOrder{Uuid: "uuid", Payreq: invoice})
		require.NoError(t, err)
		require.Equal(t, domain.OrderBidAccepted, order.Status)
		require.Equal(t, invoice, order.Invoice)

		settled := settle(t, order)
		require.Equal(t, domain.OrderSettled, settled.Status)
		require.Equal(t, secret, settled.Swap.PaymentSecret)
		require.True(t, settled.FundsSent)
	})

	t.Run("supplied invoice path", func(t *testing.T) {
		order, err := domain.NewOrder(nil, domain.NetworkTestnet, 50, 100, invoice)
		require.NoError(t, err)

		_, err = order.AcceptBid(50, domain.BroadcastOrder{Payreq: invoice})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		settled := settle(t, order)
		require.Equal(t, domain.OrderSettled, settled.Status)
	})

	t.Run("out of order", func(t *testing.T) {
		order, err := domain.NewOrder(nil, domain.NetworkTestnet, 50, 100, invoice)
		require.NoError(t, err)

		_, err = order.SetRefundAddress(refund)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = order.CreateSwap(swap)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = order.MarkPaid("txid")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = order.Settle(secret)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("swap must match the order", func(t *testing.T) {
		order, err := domain.NewOrder(nil, domain.NetworkTestnet, 50, 100, invoice)
		require.NoError(t, err)
		order, err = order.ValidateInvoice()
		require.NoError(t, err)
		order, err = order.SetRefundAddress(refund)
		require.NoError(t, err)

		other := swap
		other.Invoice = "lntb1other"
		_, err = order.CreateSwap(other)
		require.Error(t, err)

		other = swap
		other.SwapAmount = 0
		_, err = order.CreateSwap(other)
		require.Error(t, err)

		other = swap
		other.PaymentSecret = secret
		_, err = order.CreateSwap(other)
		require.Error(t, err)
	})

	t.Run("transitions leave the receiver untouched", func(t *testing.T) {
		order, err := domain.NewOrder(nil, domain.NetworkTestnet, 50, 100, invoice)
		require.NoError(t, err)
		paid := pay(t, order)

		settled, err := paid.Settle(secret)
		require.NoError(t, err)
		require.Equal(t, domain.OrderOnChainPaid, paid.Status)
		require.Empty(t, paid.Swap.PaymentSecret)
		require.Equal(t, secret, settled.Swap.PaymentSecret)
	})
}

func TestOrderFailure(t *testing.T) {
	order, err := domain.NewOrder(nil, domain.NetworkTestnet, 50, 100, invoice)
	require.NoError(t, err)

	failed, err := order.Fail(fmt.Errorf("%w: nope", domain.ErrInvoiceRejected))
	require.NoError(t, err)
	require.Equal(t, domain.OrderFailed, failed.Status)
	require.Equal(t, "InvoiceRejected", failed.FailureReason)
	require.Contains(t, failed.Error, "nope")
	require.False(t, failed.NeedsReconciliation())

	_, err = failed.Fail(domain.ErrCancelled)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	t.Run("after funds were sent", func(t *testing.T) {
		failed, err := pay(t, order).Fail(domain.ErrPreimageTimeout)
		require.NoError(t, err)
		require.True(t, failed.FundsSent)
		require.True(t, failed.NeedsReconciliation())

		eligible, err := failed.MarkRefundEligible()
		require.NoError(t, err)
		require.True(t, eligible.RefundEligible)

		reconciled, err := eligible.RecordLateSecret(secret)
		require.NoError(t, err)
		require.Equal(t, domain.OrderFailed, reconciled.Status)
		require.True(t, reconciled.Reconciled)
		require.False(t, reconciled.NeedsReconciliation())

		_, err = reconciled.RecordLateSecret(secret)
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestFailureReasonOf(t *testing.T) {
	fixtures := []struct {
		err    error
		reason string
	}{
		{&domain.BidExhaustedError{LastRate: 100, NextRate: 110, MaxBidRate: 100}, "BidExhausted"},
		{fmt.Errorf("%w: 400", domain.ErrRefundAddressRejected), "RefundAddressRejected"},
		{fmt.Errorf("%w: %w", domain.ErrCancelled, domain.ErrPreimageTimeout), "Cancelled"},
		{domain.ErrConfirmationTimeout, "ConfirmationTimeout"},
		{errors.New("boom"), "Unexpected"},
	}
	for _, f := range fixtures {
		require.Equal(t, f.reason, domain.FailureReasonOf(f.err))
	}
}

func pay(t *testing.T, order domain.Order) domain.Order {
	t.Helper()
	order, err := order.ValidateInvoice()
	require.NoError(t, err)
	order, err = order.SetRefundAddress(refund)
	require.NoError(t, err)
	order, err = order.CreateSwap(swap)
	require.NoError(t, err)
	order, err = order.MarkPaid("txid")
	require.NoError(t, err)
	return order
}

func settle(t *testing.T, order domain.Order) domain.Order {
	t.Helper()
	order, err := pay(t, order).Settle(secret)
	require.NoError(t, err)
	return order
}
