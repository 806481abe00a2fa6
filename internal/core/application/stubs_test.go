package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
)

type memRepo struct {
	lock    sync.Mutex
	orders  map[string]domain.Order
	history map[string][]domain.OrderStatus
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:  make(map[string]domain.Order),
		history: make(map[string][]domain.OrderStatus),
	}
}

func (r *memRepo) Orders() domain.OrderRepository { return r }

func (r *memRepo) Add(_ context.Context, order domain.Order) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.orders[order.Id]; ok {
		return fmt.Errorf("order %s already exists", order.Id)
	}
	r.orders[order.Id] = order
	r.history[order.Id] = []domain.OrderStatus{order.Status}
	return nil
}

func (r *memRepo) Update(_ context.Context, order domain.Order) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.orders[order.Id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.Id)
	}
	r.orders[order.Id] = order
	statuses := r.history[order.Id]
	if statuses[len(statuses)-1] != order.Status {
		r.history[order.Id] = append(statuses, order.Status)
	}
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return &order, nil
}

func (r *memRepo) GetAll(_ context.Context) ([]domain.Order, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	orders := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *memRepo) GetByStatus(
	_ context.Context, status domain.OrderStatus,
) ([]domain.Order, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	orders := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.Status == status {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *memRepo) Close() {}

// ctxRepo refuses writes with a done context, like the sql backend does.
type ctxRepo struct {
	*memRepo
}

func (r ctxRepo) Orders() domain.OrderRepository { return r }

func (r ctxRepo) Update(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memRepo.Update(ctx, order)
}

func (r *memRepo) statuses(id string) []domain.OrderStatus {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.OrderStatus(nil), r.history[id]...)
}

func (r *memRepo) status(id string) domain.OrderStatus {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.orders[id].Status
}

type stubBroadcast struct {
	lock  sync.Mutex
	bids  []uint64
	place func(call int, bid uint64) (*ports.PlaceResult, error)
	bumps []uint64
}

func acceptBids(minBid uint64) func(int, uint64) (*ports.PlaceResult, error) {
	return func(_ int, bid uint64) (*ports.PlaceResult, error) {
		if bid < minBid {
			return &ports.PlaceResult{StatusCode: 413, Text: "bid too low"}, nil
		}
		return accepted(bid), nil
	}
}

func acceptFromCall(n int) func(int, uint64) (*ports.PlaceResult, error) {
	return func(call int, bid uint64) (*ports.PlaceResult, error) {
		if call < n {
			return &ports.PlaceResult{StatusCode: 413, Text: "bid too low"}, nil
		}
		return accepted(bid), nil
	}
}

func accepted(bid uint64) *ports.PlaceResult {
	return &ports.PlaceResult{
		Accepted:   true,
		StatusCode: 200,
		Order: domain.BroadcastOrder{
			Uuid:      "b5c0ffee-0000-4000-8000-000000000001",
			AuthToken: "token",
			BidMsat:   bid,
			Payreq:    testInvoice,
			Status:    "pending",
		},
	}
}

func (b *stubBroadcast) Place(
	_ context.Context, _ []byte, bid uint64,
) (*ports.PlaceResult, error) {
	b.lock.Lock()
	b.bids = append(b.bids, bid)
	call := len(b.bids)
	b.lock.Unlock()
	return b.place(call, bid)
}

func (b *stubBroadcast) Bump(
	_ context.Context, _, authToken string, increase uint64,
) (*ports.BumpResult, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.bumps = append(b.bumps, increase)
	return &ports.BumpResult{AuthToken: authToken, Payreq: "lntb1bump"}, nil
}

func (b *stubBroadcast) GetOrder(
	_ context.Context, uuid, _ string,
) (*ports.BroadcastStatus, error) {
	return &ports.BroadcastStatus{Uuid: uuid, Status: "paid"}, nil
}

func (b *stubBroadcast) placed() []uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]uint64(nil), b.bids...)
}

const (
	testInvoice      = "lntb100u1ptestinvoice"
	testSecret       = "8c4e3d3a2b1f0e9d8c7b6a5f4e3d2c1b0a9f8e7d6c5b4a3f2e1d0c9b8a7f6e5d"
	testSwapAmount   = 100_000
	testTimeoutBlock = 2_500_000
)

type stubSwap struct {
	lock          sync.Mutex
	invoiceCalls  int
	statusCalls   int
	addressCalls  int
	createCalls   int
	checkInvoice  func(call int) (*ports.InvoiceDetails, error)
	checkAddress  func(address string) error
	checkStatus   func(call int) (*ports.SwapStatus, error)
	create        func(call int) error
	swapAmount    uint64
	timeoutHeight uint32
}

func newStubSwap() *stubSwap {
	return &stubSwap{
		checkInvoice: func(int) (*ports.InvoiceDetails, error) {
			return &ports.InvoiceDetails{Tokens: 100, Fee: 10}, nil
		},
		checkAddress: func(string) error { return nil },
		checkStatus:  settleFromCall(1),
		swapAmount:   testSwapAmount,
	}
}

func settleFromCall(n int) func(int) (*ports.SwapStatus, error) {
	return func(call int) (*ports.SwapStatus, error) {
		if n <= 0 || call < n {
			return &ports.SwapStatus{StatusCode: 400, Text: "swap not found"}, nil
		}
		return &ports.SwapStatus{StatusCode: 200, PaymentSecret: testSecret}, nil
	}
}

func (s *stubSwap) CheckInvoice(
	_ context.Context, _ string, _ domain.Network,
) (*ports.InvoiceDetails, error) {
	s.lock.Lock()
	s.invoiceCalls++
	call := s.invoiceCalls
	s.lock.Unlock()
	return s.checkInvoice(call)
}

func (s *stubSwap) CheckAddress(_ context.Context, address string, _ domain.Network) error {
	s.lock.Lock()
	s.addressCalls++
	s.lock.Unlock()
	return s.checkAddress(address)
}

func (s *stubSwap) Quote(
	_ context.Context, invoice, refundAddress string, _ domain.Network,
) (*ports.SwapQuote, error) {
	return &ports.SwapQuote{
		Invoice: invoice, RefundAddress: refundAddress, Tokens: 100, Fee: 10,
	}, nil
}

func (s *stubSwap) Create(
	_ context.Context, invoice, refundAddress string, _ domain.Network,
) (*domain.Swap, error) {
	s.lock.Lock()
	s.createCalls++
	call := s.createCalls
	s.lock.Unlock()
	if s.create != nil {
		if err := s.create(call); err != nil {
			return nil, err
		}
	}
	return &domain.Swap{
		Invoice:            invoice,
		RefundAddress:      refundAddress,
		SwapAmount:         s.swapAmount,
		SwapFee:            10,
		P2SHAddress:        "2N1LGaGg836mqSQqiuUBLfcyGBhyZbremDX",
		RedeemScript:       "76a914",
		PaymentHash:        "00ff",
		TimeoutBlockHeight: s.timeoutHeight,
	}, nil
}

func (s *stubSwap) CheckStatus(
	_ context.Context, _ domain.Network, _, _ string,
) (*ports.SwapStatus, error) {
	s.lock.Lock()
	s.statusCalls++
	call := s.statusCalls
	fn := s.checkStatus
	s.lock.Unlock()
	return fn(call)
}

func (s *stubSwap) calls() (invoice, status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.invoiceCalls, s.statusCalls
}

func (s *stubSwap) swapCalls() (address, create int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.addressCalls, s.createCalls
}

func (s *stubSwap) setCheckStatus(fn func(int) (*ports.SwapStatus, error)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.statusCalls = 0
	s.checkStatus = fn
}

type stubWallet struct {
	lock          sync.Mutex
	balance       uint64
	sends         []string
	addresses     int
	confirmations int64
	txQueries     int
	onSend        func()
	// balanceDelay widens the window between reading the balance and sending.
	balanceDelay time.Duration
}

func (w *stubWallet) NewAddress(_ context.Context, addrType ports.AddressType) (string, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.addresses++
	return fmt.Sprintf("refund-%s-%d", addrType, w.addresses), nil
}

func (w *stubWallet) SendToAddress(_ context.Context, address string, sats uint64) (string, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if sats > w.balance {
		return "", fmt.Errorf("insufficient funds")
	}
	w.balance -= sats
	w.sends = append(w.sends, address)
	if w.onSend != nil {
		w.onSend()
	}
	return fmt.Sprintf("%064d", len(w.sends)), nil
}

func (w *stubWallet) GetTransaction(_ context.Context, txid string) (*ports.WalletTx, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.txQueries++
	return &ports.WalletTx{Txid: txid, Confirmations: w.confirmations}, nil
}

func (w *stubWallet) Balance(context.Context) (uint64, error) {
	w.lock.Lock()
	balance, delay := w.balance, w.balanceDelay
	w.lock.Unlock()
	time.Sleep(delay)
	return balance, nil
}

func (w *stubWallet) Close() {}

func (w *stubWallet) queried() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.txQueries
}

func (w *stubWallet) sent() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return len(w.sends)
}

type stubScheduler struct {
	lock   sync.Mutex
	every  []func()
	height map[uint32][]func()
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{height: make(map[uint32][]func())}
}

func (s *stubScheduler) Start() {}
func (s *stubScheduler) Stop()  {}

func (s *stubScheduler) ScheduleEvery(_ time.Duration, task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.every = append(s.every, task)
	return nil
}

func (s *stubScheduler) ScheduleAtHeight(target uint32, task func()) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.height[target] = append(s.height[target], task)
	return nil
}

func (s *stubScheduler) PendingHeightTasks() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	count := 0
	for _, tasks := range s.height {
		count += len(tasks)
	}
	return count
}

// reachHeight runs the tasks scheduled at or below height.
func (s *stubScheduler) reachHeight(height uint32) {
	s.lock.Lock()
	var tasks []func()
	for target, t := range s.height {
		if target <= height {
			tasks = append(tasks, t...)
			delete(s.height, target)
		}
	}
	s.lock.Unlock()
	for _, task := range tasks {
		task()
	}
}

func testConfig() Config {
	return Config{
		Network:                 domain.NetworkTestnet,
		BidDelay:                time.Millisecond,
		InvoiceCheckDelay:       time.Millisecond,
		GatewayRetryDelay:       time.Millisecond,
		ConfirmationInterval:    5 * time.Millisecond,
		ConfirmationTimeout:     time.Second,
		SettlementTimeout:       100 * time.Millisecond,
		SettlementPollInterval:  10 * time.Millisecond,
		SettlementRetries:       3,
		SettlementRetryInterval: 5 * time.Millisecond,
	}.withDefaults()
}
