package application

import (
	"context"
	"fmt"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
)

// invoiceValidator asks the swap server whether it is willing to pay an
// invoice. Transient failures are retried a bounded number of times, any other
// answer is a rejection.
type invoiceValidator struct {
	swapSvc ports.SwapService
	metrics ports.MetricsService
	cfg     Config
}

func newInvoiceValidator(
	swapSvc ports.SwapService, metrics ports.MetricsService, cfg Config,
) *invoiceValidator {
	return &invoiceValidator{swapSvc, metrics, cfg}
}

func (v *invoiceValidator) validate(
	ctx context.Context, invoice string, network domain.Network,
) (*ports.InvoiceDetails, error) {
	var details *ports.InvoiceDetails
	err := retryTransient(
		ctx, v.cfg.InvoiceCheckAttempts, v.cfg.InvoiceCheckDelay,
		retryLogger(v.metrics, "check invoice"),
		func(ctx context.Context) error {
			d, err := v.swapSvc.CheckInvoice(ctx, invoice, network)
			if err != nil {
				return err
			}
			details = d
			return nil
		},
	)
	if err != nil {
		return nil, rejected(domain.ErrInvoiceRejected, err)
	}
	if details.IsExpired {
		return nil, fmt.Errorf("%w: invoice is expired", domain.ErrInvoiceRejected)
	}
	return details, nil
}

// validateOrderInvoice moves the order to INVOICE_VALIDATED.
func (v *invoiceValidator) validateOrderInvoice(
	ctx context.Context, order domain.Order,
) (domain.Order, error) {
	if _, err := v.validate(ctx, order.Invoice, order.Network); err != nil {
		return order, err
	}
	next, err := order.ValidateInvoice()
	if err != nil {
		return order, err
	}
	return next, nil
}
