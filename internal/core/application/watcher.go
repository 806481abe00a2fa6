package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

var errSecretNotFound = errors.New("payment secret not found")

// confirmationWatcher waits for a wallet transaction to confirm.
type confirmationWatcher struct {
	walletSvc ports.WalletService
	cfg       Config
}

func newConfirmationWatcher(walletSvc ports.WalletService, cfg Config) *confirmationWatcher {
	return &confirmationWatcher{walletSvc, cfg}
}

// awaitConfirmation polls the wallet until txid has at least minConfs
// confirmations. It gives up with ErrConfirmationTimeout after the configured
// timeout.
func (w *confirmationWatcher) awaitConfirmation(
	ctx context.Context, txid string, minConfs int64, interval time.Duration,
) error {
	logger := log.WithField("txid", txid)

	pollCtx, cancel := context.WithTimeout(ctx, w.cfg.ConfirmationTimeout)
	defer cancel()

	start := time.Now()
	err := poll(pollCtx, interval, func(ctx context.Context) (bool, error) {
		tx, err := w.walletSvc.GetTransaction(ctx, txid)
		if err != nil {
			logger.WithError(err).Warn("failed to get transaction, retrying...")
			return false, nil
		}
		logger.Debugf(
			"%d/%d confirmations after %s",
			tx.Confirmations, minConfs, time.Since(start).Round(time.Second),
		)
		return tx.Confirmations >= minConfs, nil
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf(
				"%w: tx %s not confirmed after %s",
				domain.ErrConfirmationTimeout, txid, w.cfg.ConfirmationTimeout,
			)
		}
		return err
	}
	return nil
}

// settlement is what the preimage watcher learned while waiting.
type settlement struct {
	paymentSecret   string
	broadcastStatus string
}

// preimageWatcher waits for the swap server to pay the invoice and reveal the
// payment secret.
type preimageWatcher struct {
	swapSvc       ports.SwapService
	broadcastSvc  ports.BroadcastService
	confirmations *confirmationWatcher
	cfg           Config
}

func newPreimageWatcher(
	swapSvc ports.SwapService, broadcastSvc ports.BroadcastService,
	confirmations *confirmationWatcher, cfg Config,
) *preimageWatcher {
	return &preimageWatcher{swapSvc, broadcastSvc, confirmations, cfg}
}

// awaitSettlement polls for the payment secret for the settlement timeout.
// If none shows up it waits for the on-chain leg to confirm and polls a few
// more times before giving up with ErrPreimageTimeout.
func (w *preimageWatcher) awaitSettlement(
	ctx context.Context, order domain.Order,
) (*settlement, error) {
	logger := log.WithField("order", order.Id)
	result := &settlement{}

	secret, err := w.awaitPaymentSecret(
		ctx, order, result, w.cfg.SettlementTimeout, w.cfg.SettlementPollInterval,
	)
	if err == nil {
		result.paymentSecret = secret
		return result, nil
	}
	if !errors.Is(err, errSecretNotFound) {
		return result, err
	}

	logger.Infof(
		"swap not completed after %s, waiting for on-chain confirmation of %s",
		w.cfg.SettlementTimeout, order.OnChainTxId,
	)
	if err := w.confirmations.awaitConfirmation(
		ctx, order.OnChainTxId, w.cfg.MinConfirmations, w.cfg.ConfirmationInterval,
	); err != nil {
		return result, err
	}

	for i := 0; i < w.cfg.SettlementRetries; i++ {
		if i > 0 {
			if err := sleep(ctx, w.cfg.SettlementRetryInterval); err != nil {
				return result, err
			}
		}
		if secret := w.checkSecret(ctx, order, result); len(secret) > 0 {
			result.paymentSecret = secret
			return result, nil
		}
	}

	return result, fmt.Errorf(
		"%w: swap of order %s not completed after on-chain confirmation and %d retries",
		domain.ErrPreimageTimeout, order.Id, w.cfg.SettlementRetries,
	)
}

// awaitPaymentSecret polls every interval and returns errSecretNotFound once
// timeout has elapsed without a payment secret.
func (w *preimageWatcher) awaitPaymentSecret(
	ctx context.Context, order domain.Order, result *settlement,
	timeout, interval time.Duration,
) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var secret string
	err := poll(pollCtx, interval, func(ctx context.Context) (bool, error) {
		secret = w.checkSecret(ctx, order, result)
		return len(secret) > 0, nil
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", errSecretNotFound
		}
		return "", err
	}
	return secret, nil
}

// checkSecret asks the swap server for the swap status once. Errors and
// non-successful answers just mean the swap is not completed yet.
func (w *preimageWatcher) checkSecret(
	ctx context.Context, order domain.Order, result *settlement,
) string {
	logger := log.WithField("order", order.Id)

	w.refreshBroadcast(ctx, order, result)

	status, err := w.swapSvc.CheckStatus(
		ctx, order.Network, order.Swap.Invoice, order.Swap.RedeemScript,
	)
	if err != nil {
		logger.WithError(err).Debug("failed to check swap status")
		return ""
	}
	if !status.IsSettled() {
		logger.Debugf("swap not completed yet: %d %s", status.StatusCode, status.Text)
		return ""
	}
	return status.PaymentSecret
}

func (w *preimageWatcher) refreshBroadcast(
	ctx context.Context, order domain.Order, result *settlement,
) {
	if order.Broadcast == nil || w.broadcastSvc == nil {
		return
	}
	status, err := w.broadcastSvc.GetOrder(ctx, order.Broadcast.Uuid, order.Broadcast.AuthToken)
	if err != nil {
		log.WithError(err).Debug("failed to get broadcast order status")
		return
	}
	if status.Status != result.broadcastStatus {
		log.WithField("order", order.Id).Infof("broadcast order status: %s", status.Status)
	}
	result.broadcastStatus = status.Status
}
