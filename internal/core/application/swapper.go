package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// walletGuard serializes the balance check and the on-chain send so that
// concurrent orders never spend the same funds twice.
type walletGuard struct {
	sem chan struct{}
}

func newWalletGuard() *walletGuard {
	return &walletGuard{sem: make(chan struct{}, 1)}
}

func (g *walletGuard) lock(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *walletGuard) unlock() {
	<-g.sem
}

// requiredBalance is the amount plus the fee reserve, rounded up to the sat.
func requiredBalance(amount uint64, reserveRatio decimal.Decimal) uint64 {
	return uint64(
		decimal.NewFromInt(int64(amount)).
			Mul(decimal.NewFromInt(1).Add(reserveRatio)).
			Ceil().
			IntPart(),
	)
}

// swapNegotiator takes an order from a validated invoice to a funded swap.
type swapNegotiator struct {
	swapSvc   ports.SwapService
	walletSvc ports.WalletService
	guard     *walletGuard
	metrics   ports.MetricsService
	cfg       Config
}

func newSwapNegotiator(
	swapSvc ports.SwapService, walletSvc ports.WalletService,
	guard *walletGuard, metrics ports.MetricsService, cfg Config,
) *swapNegotiator {
	return &swapNegotiator{swapSvc, walletSvc, guard, metrics, cfg}
}

// prepareRefundAddress gets a fresh address from the wallet and has the swap
// server check it. The order moves to REFUND_READY.
func (s *swapNegotiator) prepareRefundAddress(
	ctx context.Context, order domain.Order, addrType ports.AddressType,
) (domain.Order, error) {
	if addrType == "" {
		addrType = s.cfg.RefundAddressType
	}

	address, err := s.walletSvc.NewAddress(ctx, addrType)
	if err != nil {
		return order, fmt.Errorf("failed to get refund address: %w", err)
	}

	if err := s.withRetries(ctx, "check refund address", func(ctx context.Context) error {
		return s.swapSvc.CheckAddress(ctx, address, order.Network)
	}); err != nil {
		return order, rejected(domain.ErrRefundAddressRejected, err)
	}

	log.WithField("order", order.Id).Debugf("using refund address %s", address)

	next, err := order.SetRefundAddress(address)
	if err != nil {
		return order, err
	}
	return next, nil
}

func (s *swapNegotiator) quote(
	ctx context.Context, order domain.Order,
) (*ports.SwapQuote, error) {
	var quote *ports.SwapQuote
	if err := s.withRetries(ctx, "get swap quote", func(ctx context.Context) error {
		q, err := s.swapSvc.Quote(ctx, order.Invoice, order.RefundAddress, order.Network)
		if err != nil {
			return err
		}
		quote = q
		return nil
	}); err != nil {
		return nil, rejected(domain.ErrSwapCreationFailed, err)
	}
	return quote, nil
}

// createSwap quotes and then creates the swap. The order moves to
// SWAP_CREATED.
func (s *swapNegotiator) createSwap(
	ctx context.Context, order domain.Order,
) (domain.Order, *ports.SwapQuote, error) {
	logger := log.WithField("order", order.Id)

	quote, err := s.quote(ctx, order)
	if err != nil {
		return order, nil, err
	}
	logger.Debugf("swap quote: %d sats, fee %d sats", quote.Tokens, quote.Fee)

	var swap *domain.Swap
	if err := s.withRetries(ctx, "create swap", func(ctx context.Context) error {
		sw, err := s.swapSvc.Create(ctx, order.Invoice, order.RefundAddress, order.Network)
		if err != nil {
			return err
		}
		swap = sw
		return nil
	}); err != nil {
		return order, quote, rejected(domain.ErrSwapCreationFailed, err)
	}

	next, err := order.CreateSwap(*swap)
	if err != nil {
		return order, quote, fmt.Errorf("%w: %w", domain.ErrSwapCreationFailed, err)
	}

	logger.Infof(
		"swap created: send %d sats to %s (timeout block height %d)",
		swap.SwapAmount, swap.P2SHAddress, swap.TimeoutBlockHeight,
	)
	return next, quote, nil
}

// pay checks the wallet can afford the swap and sends the on-chain leg. The
// order moves to ONCHAIN_PAID. A send is never retried.
func (s *swapNegotiator) pay(
	ctx context.Context, order domain.Order,
) (domain.Order, error) {
	if order.Swap == nil {
		return order, fmt.Errorf("%w: order %s has no swap", domain.ErrInvalidTransition, order.Id)
	}

	txid, err := s.checkAndSend(ctx, order.Swap.P2SHAddress, order.Swap.SwapAmount)
	if err != nil {
		return order, err
	}
	s.metrics.OnChainSent(order.Swap.SwapAmount)

	log.WithField("order", order.Id).Infof(
		"sent %d sats to %s in tx %s", order.Swap.SwapAmount, order.Swap.P2SHAddress, txid,
	)

	next, err := order.MarkPaid(txid)
	if err != nil {
		return order, err
	}
	return next, nil
}

func (s *swapNegotiator) checkAndSend(
	ctx context.Context, address string, amount uint64,
) (string, error) {
	if err := s.guard.lock(ctx); err != nil {
		return "", err
	}
	defer s.guard.unlock()

	required := requiredBalance(amount, s.cfg.ReserveRatio.Decimal)
	balance, err := s.walletSvc.Balance(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get wallet balance: %w", err)
	}
	if balance < required {
		return "", fmt.Errorf(
			"%w: wallet balance %d sats, need %d sats to send %d sats",
			domain.ErrInsufficientFunds, balance, required, amount,
		)
	}

	txid, err := s.walletSvc.SendToAddress(ctx, address, amount)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrOnChainSendFailed, err)
	}
	if len(txid) == 0 {
		return "", fmt.Errorf("%w: wallet returned no txid", domain.ErrOnChainSendFailed)
	}
	return txid, nil
}

func (s *swapNegotiator) withRetries(
	ctx context.Context, action string, fn func(ctx context.Context) error,
) error {
	return retryTransient(
		ctx, s.cfg.GatewayRetries, s.cfg.GatewayRetryDelay,
		retryLogger(s.metrics, action), fn,
	)
}

// rejected wraps a gateway failure with the given sentinel, leaving context
// errors untouched.
func rejected(sentinel, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
