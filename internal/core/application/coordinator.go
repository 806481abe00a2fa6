package application

import (
	"context"
	"fmt"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// coordinator drives an order through the saga, persisting it after every
// transition. It resumes from whatever state the order is in.
type coordinator struct {
	repo      domain.OrderRepository
	bidder    *bidNegotiator
	invoices  *invoiceValidator
	swapper   *swapNegotiator
	preimages *preimageWatcher
	metrics   ports.MetricsService
	// onFailed is called with every order the coordinator fails.
	onFailed func(order domain.Order)
}

func (c *coordinator) run(ctx context.Context, order domain.Order) (domain.Order, error) {
	logger := log.WithField("order", order.Id)

	for !order.Status.IsTerminal() {
		from := order.Status
		next, err := c.step(ctx, order)
		if err != nil {
			return c.fail(ctx, next, err)
		}
		if err := c.repo.Update(context.WithoutCancel(ctx), next); err != nil {
			return next, fmt.Errorf("failed to persist order %s: %w", next.Id, err)
		}
		logger.Debugf("order moved from %s to %s", from, next.Status)
		order = next
	}

	if order.Status == domain.OrderSettled {
		logger.Infof("order settled with payment secret %s", order.Swap.PaymentSecret)
		c.metrics.OrderFinished(order.Status.String(), "")
	}
	return order, nil
}

// step performs the single transition out of the order's current status.
// On error it returns the order as far as it got.
func (c *coordinator) step(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return order, err
	}

	switch order.Status {
	case domain.OrderCreated:
		if order.InvoiceSupplied {
			return c.invoices.validateOrderInvoice(ctx, order)
		}
		return c.bidder.negotiate(ctx, order)
	case domain.OrderBidAccepted:
		return c.invoices.validateOrderInvoice(ctx, order)
	case domain.OrderInvoiceValidated:
		return c.swapper.prepareRefundAddress(ctx, order, "")
	case domain.OrderRefundReady:
		next, _, err := c.swapper.createSwap(ctx, order)
		return next, err
	case domain.OrderSwapCreated:
		return c.swapper.pay(ctx, order)
	case domain.OrderOnChainPaid:
		return c.settle(ctx, order)
	default:
		return order, fmt.Errorf(
			"%w: no transition out of %s", domain.ErrInvalidTransition, order.Status,
		)
	}
}

func (c *coordinator) settle(ctx context.Context, order domain.Order) (domain.Order, error) {
	result, err := c.preimages.awaitSettlement(ctx, order)
	if result != nil && len(result.broadcastStatus) > 0 {
		order = order.WithBroadcastStatus(result.broadcastStatus)
	}
	if err != nil {
		return order, err
	}
	next, err := order.Settle(result.paymentSecret)
	if err != nil {
		return order, err
	}
	return next, nil
}

// fail records the failure. The terminal state is persisted even when ctx has
// been cancelled.
func (c *coordinator) fail(
	ctx context.Context, order domain.Order, cause error,
) (domain.Order, error) {
	if ctx.Err() != nil {
		cause = fmt.Errorf("%w: %w", domain.ErrCancelled, cause)
	}

	failed, err := order.Fail(cause)
	if err != nil {
		return order, err
	}

	logger := log.WithField("order", order.Id).WithError(cause)
	if failed.FundsSent {
		logger.Errorf(
			"order failed after sending funds (tx %s), swap outcome is unknown", failed.OnChainTxId,
		)
	} else {
		logger.Warnf("order failed in status %s", order.Status)
	}

	if err := c.repo.Update(context.WithoutCancel(ctx), failed); err != nil {
		logger.WithError(err).Error("failed to persist failed order")
	}
	c.metrics.OrderFinished(failed.Status.String(), failed.FailureReason)
	if c.onFailed != nil {
		c.onFailed(failed)
	}
	return failed, cause
}
