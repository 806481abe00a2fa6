package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/utils"
	log "github.com/sirupsen/logrus"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type CreateOrderRequest struct {
	// Message is broadcast as is. A random one is generated when both
	// Message and Invoice are empty.
	Message []byte
	Network domain.Network
	// BidMsat, when set, is the first bid placed. It overrides BidRate.
	BidMsat    uint64
	BidRate    uint64
	MaxBidRate uint64
	// Invoice skips bidding: the order pays this invoice instead.
	Invoice string
}

type Service struct {
	BuildInfo BuildInfo

	cfg          Config
	repo         domain.OrderRepository
	broadcastSvc ports.BroadcastService
	swapSvc      ports.SwapService
	walletSvc    ports.WalletService
	schedulerSvc ports.SchedulerService
	metrics      ports.MetricsService

	bidder      *bidNegotiator
	invoices    *invoiceValidator
	swapper     *swapNegotiator
	coordinator *coordinator

	lock    sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService wires the order saga. schedulerSvc and metricsSvc are optional.
func NewService(
	buildInfo BuildInfo,
	cfg Config,
	repoManager ports.RepoManager,
	broadcastSvc ports.BroadcastService,
	swapSvc ports.SwapService,
	walletSvc ports.WalletService,
	schedulerSvc ports.SchedulerService,
	metricsSvc ports.MetricsService,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if broadcastSvc == nil {
		return nil, fmt.Errorf("missing broadcast service")
	}
	if swapSvc == nil {
		return nil, fmt.Errorf("missing swap service")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("missing wallet service")
	}
	if metricsSvc == nil {
		metricsSvc = noopMetrics{}
	}
	cfg = cfg.withDefaults()

	confirmations := newConfirmationWatcher(walletSvc, cfg)
	svc := &Service{
		BuildInfo:    buildInfo,
		cfg:          cfg,
		repo:         repoManager.Orders(),
		broadcastSvc: broadcastSvc,
		swapSvc:      swapSvc,
		walletSvc:    walletSvc,
		schedulerSvc: schedulerSvc,
		metrics:      metricsSvc,
		bidder:       newBidNegotiator(broadcastSvc, metricsSvc, cfg),
		invoices:     newInvoiceValidator(swapSvc, metricsSvc, cfg),
		swapper:      newSwapNegotiator(swapSvc, walletSvc, newWalletGuard(), metricsSvc, cfg),
		running:      make(map[string]context.CancelFunc),
	}
	svc.coordinator = &coordinator{
		repo:      svc.repo,
		bidder:    svc.bidder,
		invoices:  svc.invoices,
		swapper:   svc.swapper,
		preimages: newPreimageWatcher(swapSvc, broadcastSvc, confirmations, cfg),
		metrics:   metricsSvc,
		onFailed:  svc.scheduleRefundCheck,
	}
	return svc, nil
}

// Start starts the reconciler and resumes orders whose on-chain leg was sent
// but not yet settled.
func (s *Service) Start(ctx context.Context) error {
	if s.schedulerSvc != nil {
		s.schedulerSvc.Start()
		if err := s.schedulerSvc.ScheduleEvery(s.cfg.ReconcileInterval, s.reconcile); err != nil {
			return fmt.Errorf("failed to schedule reconciler: %w", err)
		}
		if err := s.scheduleRefundChecks(ctx); err != nil {
			return err
		}
		log.Info("scheduler started")
	}

	paid, err := s.repo.GetByStatus(ctx, domain.OrderOnChainPaid)
	if err != nil {
		return fmt.Errorf("failed to get paid orders: %w", err)
	}
	for _, order := range paid {
		log.Infof("resuming order %s", order.Id)
		if err := s.ExecuteOrder(ctx, order.Id); err != nil {
			log.WithError(err).Warnf("failed to resume order %s", order.Id)
		}
	}
	return nil
}

// Stop cancels every running order and waits for them to record their
// final state.
func (s *Service) Stop() {
	s.lock.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.lock.Unlock()
	s.wg.Wait()

	if s.schedulerSvc != nil {
		s.schedulerSvc.Stop()
		log.Info("scheduler stopped")
	}
}

func (s *Service) CreateOrder(
	ctx context.Context, req CreateOrderRequest,
) (*domain.Order, error) {
	network := req.Network
	if network == "" {
		network = s.cfg.Network
	}
	bidRate, maxBidRate := req.BidRate, req.MaxBidRate
	if bidRate == 0 {
		bidRate = s.cfg.StartBidRate
	}
	if maxBidRate == 0 {
		maxBidRate = max(s.cfg.MaxBidRate, bidRate)
	}

	message := req.Message
	if len(message) == 0 && len(req.Invoice) == 0 {
		msg, err := utils.RandomMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to generate message: %w", err)
		}
		message = []byte(msg)
	}
	if req.BidMsat > 0 && len(message) > 0 {
		size := uint64(len(message))
		bidRate = (req.BidMsat + size - 1) / size
		maxBidRate = max(maxBidRate, bidRate)
	}

	order, err := domain.NewOrder(message, network, bidRate, maxBidRate, req.Invoice)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Add(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to add order: %w", err)
	}
	s.metrics.OrderCreated()
	log.WithField("order", order.Id).Infof(
		"order created for %d bytes message on %s", order.MessageSize(), order.Network,
	)

	if order.InvoiceSupplied {
		return &order, nil
	}

	claimed, runCtx, release, err := s.claim(ctx, order.Id)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.advance(runCtx, *claimed, domain.OrderCreated, s.bidder.negotiate)
}

func (s *Service) BumpOrder(
	ctx context.Context, id string, increaseMsat uint64,
) (*domain.Order, error) {
	order, ctx, release, err := s.claimIdle(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	if order.Broadcast == nil {
		return nil, fmt.Errorf("%w: order %s has no broadcast order to bump", domain.ErrInvalidTransition, id)
	}

	res, err := s.broadcastSvc.Bump(
		ctx, order.Broadcast.Uuid, order.Broadcast.AuthToken, increaseMsat,
	)
	if err != nil {
		return nil, err
	}
	next, err := order.RecordBump(domain.BidBump{
		IncreaseMsat: increaseMsat,
		Payreq:       res.Payreq,
		Timestamp:    time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(context.WithoutCancel(ctx), next); err != nil {
		return nil, err
	}
	return &next, nil
}

// GetRefundAddress validates the order's invoice if needed and assigns it a
// fresh refund address checked by the swap server.
func (s *Service) GetRefundAddress(
	ctx context.Context, id string, addrType ports.AddressType,
) (*domain.Order, error) {
	order, ctx, release, err := s.claimIdle(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if order.Status == domain.OrderBidAccepted ||
		(order.Status == domain.OrderCreated && order.InvoiceSupplied) {
		if order, err = s.advance(
			ctx, *order, order.Status, s.invoices.validateOrderInvoice,
		); err != nil {
			return order, err
		}
	}

	return s.advance(ctx, *order, domain.OrderInvoiceValidated, func(
		ctx context.Context, o domain.Order,
	) (domain.Order, error) {
		return s.swapper.prepareRefundAddress(ctx, o, addrType)
	})
}

// QuoteSwap creates the swap for an order holding a refund address and
// returns the swap server's quote for it.
func (s *Service) QuoteSwap(
	ctx context.Context, id string,
) (*domain.Order, *ports.SwapQuote, error) {
	order, ctx, release, err := s.claimIdle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var quote *ports.SwapQuote
	next, err := s.advance(ctx, *order, domain.OrderRefundReady, func(
		ctx context.Context, o domain.Order,
	) (domain.Order, error) {
		next, q, err := s.swapper.createSwap(ctx, o)
		quote = q
		return next, err
	})
	return next, quote, err
}

// PaySwap sends the on-chain leg of the order's swap.
func (s *Service) PaySwap(ctx context.Context, id string) (*domain.Order, error) {
	order, ctx, release, err := s.claimIdle(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.advance(ctx, *order, domain.OrderSwapCreated, s.swapper.pay)
}

// CheckSwap asks the swap server once for the status of the order's swap and
// records the payment secret if it was revealed.
func (s *Service) CheckSwap(
	ctx context.Context, id string,
) (*domain.Order, *ports.SwapStatus, error) {
	order, ctx, release, err := s.claimIdle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	if order.Swap == nil {
		return nil, nil, fmt.Errorf("%w: order %s has no swap", domain.ErrInvalidTransition, id)
	}

	status, err := s.swapSvc.CheckStatus(
		ctx, order.Network, order.Swap.Invoice, order.Swap.RedeemScript,
	)
	if err != nil {
		return nil, nil, err
	}
	if !status.IsSettled() {
		return order, status, nil
	}

	var next domain.Order
	switch {
	case order.Status == domain.OrderOnChainPaid:
		next, err = order.Settle(status.PaymentSecret)
	case order.NeedsReconciliation():
		next, err = order.RecordLateSecret(status.PaymentSecret)
	default:
		return order, status, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Update(context.WithoutCancel(ctx), next); err != nil {
		return nil, nil, err
	}
	if next.Status == domain.OrderSettled {
		s.metrics.OrderFinished(next.Status.String(), "")
	}
	return &next, status, nil
}

// ExecuteOrder runs the whole saga for the order in background, starting
// from its current status.
func (s *Service) ExecuteOrder(ctx context.Context, id string) error {
	order, runCtx, done, err := s.startRun(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer done()
		if _, err := s.coordinator.run(runCtx, *order); err != nil {
			log.WithError(err).Warnf("order %s failed", id)
		}
	}()
	return nil
}

// RunOrder runs the whole saga for the order and waits for its outcome. It can
// be cancelled either through ctx or CancelOrder.
func (s *Service) RunOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, runCtx, done, err := s.startRun(ctx, id)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := s.coordinator.run(runCtx, *order)
	return &result, err
}

func (s *Service) CancelOrder(ctx context.Context, id string) error {
	s.lock.Lock()
	cancel, ok := s.running[id]
	s.lock.Unlock()
	if ok {
		log.Infof("cancelling order %s", id)
		cancel()
		return nil
	}

	order, runCtx, release, err := s.claim(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	if order.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is already %s", domain.ErrInvalidTransition, id, order.Status)
	}
	// fail hands back the cause once the failure is recorded.
	if _, err := s.coordinator.fail(runCtx, *order, domain.ErrCancelled); !errors.Is(err, domain.ErrCancelled) {
		return err
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) LookupInvoice(
	ctx context.Context, invoice string, network domain.Network,
) (*ports.InvoiceDetails, error) {
	if network == "" {
		network = s.cfg.Network
	}
	return s.swapSvc.CheckInvoice(ctx, invoice, network)
}

func (s *Service) CheckRefundAddress(
	ctx context.Context, address string, network domain.Network,
) error {
	if network == "" {
		network = s.cfg.Network
	}
	params, err := utils.NetworkParams(string(network))
	if err != nil {
		return err
	}
	if !utils.IsValidBtcAddress(address, params) {
		return fmt.Errorf("%w: invalid %s address %s", domain.ErrRefundAddressRejected, network, address)
	}
	if err := s.swapSvc.CheckAddress(ctx, address, network); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRefundAddressRejected, err)
	}
	return nil
}

func (s *Service) RandomMessage() (string, error) {
	return utils.RandomMessage()
}

// advance applies a single transition to an order in status from and persists
// the result. A failed transition fails the order.
func (s *Service) advance(
	ctx context.Context, order domain.Order, from domain.OrderStatus,
	transition func(context.Context, domain.Order) (domain.Order, error),
) (*domain.Order, error) {
	if order.Status != from {
		return nil, fmt.Errorf(
			"%w: order %s is %s, expected %s", domain.ErrInvalidTransition, order.Id, order.Status, from,
		)
	}

	next, err := transition(ctx, order)
	if err != nil {
		failed, err := s.coordinator.fail(ctx, next, err)
		return &failed, err
	}
	if err := s.repo.Update(context.WithoutCancel(ctx), next); err != nil {
		return nil, fmt.Errorf("failed to persist order %s: %w", next.Id, err)
	}
	return &next, nil
}

// claimIdle claims an order for a single step. Orders being executed or already
// terminal can't be stepped, except failed orders waiting for reconciliation.
func (s *Service) claimIdle(
	ctx context.Context, id string,
) (*domain.Order, context.Context, func(), error) {
	order, runCtx, release, err := s.claim(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if order.Status.IsTerminal() && !order.NeedsReconciliation() {
		release()
		return nil, nil, nil, fmt.Errorf(
			"%w: order %s is already %s", domain.ErrInvalidTransition, id, order.Status,
		)
	}
	return order, runCtx, release, nil
}

// startRun claims the order for a whole saga run.
func (s *Service) startRun(
	ctx context.Context, id string,
) (*domain.Order, context.Context, func(), error) {
	order, runCtx, release, err := s.claim(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if order.Status.IsTerminal() {
		release()
		return nil, nil, nil, fmt.Errorf(
			"%w: order %s is already %s", domain.ErrInvalidTransition, id, order.Status,
		)
	}
	return order, runCtx, release, nil
}

// claim registers the order as running, so that nothing else works on it and
// CancelOrder can reach it, and then reads it. It returns the context the work
// must run with, along with the func releasing the claim.
func (s *Service) claim(
	ctx context.Context, id string,
) (*domain.Order, context.Context, func(), error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	s.lock.Lock()
	if _, ok := s.running[id]; ok {
		s.lock.Unlock()
		stop()
		cancel()
		return nil, nil, nil, fmt.Errorf(
			"%w: order %s is already being executed", domain.ErrInvalidTransition, id,
		)
	}
	s.running[id] = cancel
	s.lock.Unlock()

	release := func() {
		stop()
		cancel()
		s.lock.Lock()
		delete(s.running, id)
		s.lock.Unlock()
	}

	order, err := s.repo.Get(runCtx, id)
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	return order, runCtx, release, nil
}
