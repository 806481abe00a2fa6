package application

import (
	"context"
	"fmt"

	"github.com/satsub/satsub/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// reconcile looks again for the payment secret of failed orders whose funds
// were sent. A secret found late is recorded, the order stays failed.
func (s *Service) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReconcileInterval)
	defer cancel()

	failed, err := s.repo.GetByStatus(ctx, domain.OrderFailed)
	if err != nil {
		log.WithError(err).Warn("failed to get failed orders")
		return
	}

	for _, order := range failed {
		if !order.NeedsReconciliation() {
			continue
		}
		if err := s.reconcileOrder(ctx, order); err != nil {
			log.WithError(err).Warnf("failed to reconcile order %s", order.Id)
		}
	}
}

func (s *Service) reconcileOrder(ctx context.Context, order domain.Order) error {
	status, err := s.swapSvc.CheckStatus(
		ctx, order.Network, order.Swap.Invoice, order.Swap.RedeemScript,
	)
	if err != nil {
		return err
	}
	if !status.IsSettled() {
		log.Debugf("swap of order %s still not completed", order.Id)
		return nil
	}

	next, err := order.RecordLateSecret(status.PaymentSecret)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, next); err != nil {
		return err
	}
	log.Infof("recorded late payment secret for order %s", order.Id)
	return nil
}

// scheduleRefundChecks schedules a refund check for every order already
// waiting for reconciliation.
func (s *Service) scheduleRefundChecks(ctx context.Context) error {
	failed, err := s.repo.GetByStatus(ctx, domain.OrderFailed)
	if err != nil {
		return fmt.Errorf("failed to get failed orders: %w", err)
	}
	for _, order := range failed {
		if !order.RefundEligible {
			s.scheduleRefundCheck(order)
		}
	}
	return nil
}

// scheduleRefundCheck flags the order as refund eligible once the chain
// reaches the swap's timeout height, unless a secret shows up before.
func (s *Service) scheduleRefundCheck(order domain.Order) {
	if s.schedulerSvc == nil || !order.NeedsReconciliation() ||
		order.Swap.TimeoutBlockHeight == 0 {
		return
	}

	id := order.Id
	task := func() {
		ctx := context.Background()
		order, err := s.repo.Get(ctx, id)
		if err != nil {
			log.WithError(err).Warnf("failed to get order %s", id)
			return
		}
		if !order.NeedsReconciliation() {
			return
		}
		if err := s.reconcileOrder(ctx, *order); err != nil {
			log.WithError(err).Warnf("failed to reconcile order %s", id)
		}
		if order, err = s.repo.Get(ctx, id); err != nil {
			log.WithError(err).Warnf("failed to get order %s", id)
			return
		}
		if !order.NeedsReconciliation() {
			return
		}

		next, err := order.MarkRefundEligible()
		if err != nil {
			log.WithError(err).Warnf("failed to mark order %s refund eligible", id)
			return
		}
		if err := s.repo.Update(ctx, next); err != nil {
			log.WithError(err).Warnf("failed to update order %s", id)
			return
		}
		log.Warnf(
			"swap of order %s timed out at block %d, funds sent in tx %s can be refunded",
			id, order.Swap.TimeoutBlockHeight, order.OnChainTxId,
		)
	}

	if err := s.schedulerSvc.ScheduleAtHeight(order.Swap.TimeoutBlockHeight, task); err != nil {
		log.WithError(err).Warnf("failed to schedule refund check for order %s", id)
		return
	}
	log.Debugf(
		"scheduled refund check for order %s at block %d", id, order.Swap.TimeoutBlockHeight,
	)
}
