package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MinimumBidMsat is the lowest bid the satellite service accepts.
	MinimumBidMsat      = 10_000
	BidRateStep         = 10
	DefaultStartBidRate = 50
	DefaultMaxBidRate   = 100
)

type OrderStatus int

const (
	OrderCreated OrderStatus = iota
	OrderBidAccepted
	OrderInvoiceValidated
	OrderRefundReady
	OrderSwapCreated
	OrderOnChainPaid
	OrderSettled
	OrderFailed
)

var orderStatusNames = map[OrderStatus]string{
	OrderCreated:          "CREATED",
	OrderBidAccepted:      "BID_ACCEPTED",
	OrderInvoiceValidated: "INVOICE_VALIDATED",
	OrderRefundReady:      "REFUND_READY",
	OrderSwapCreated:      "SWAP_CREATED",
	OrderOnChainPaid:      "ONCHAIN_PAID",
	OrderSettled:          "SETTLED",
	OrderFailed:           "FAILED",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderSettled || s == OrderFailed
}

type Network string

const (
	NetworkTestnet Network = "testnet"
	NetworkMainnet Network = "mainnet"
)

func ParseNetwork(network string) (Network, error) {
	switch Network(network) {
	case NetworkTestnet, NetworkMainnet:
		return Network(network), nil
	default:
		return "", fmt.Errorf("invalid network %q, must be one of testnet, mainnet", network)
	}
}

// Order is one broadcast paid through one submarine swap. Orders are values:
// every transition returns an updated copy and leaves the receiver untouched.
type Order struct {
	Id         string
	Message    []byte
	Network    Network
	BidRate    uint64 // msat per byte
	MaxBidRate uint64
	// InvoiceSupplied is true when the invoice was given by the caller rather
	// than obtained by bidding for a broadcast slot.
	InvoiceSupplied bool
	Invoice         string
	RefundAddress   string
	Broadcast       *BroadcastOrder
	Swap            *Swap
	OnChainTxId     string
	Status          OrderStatus
	FailureReason   string
	Error           string
	// FundsSent is set once the on-chain leg has been broadcast and stays set
	// even if the order later fails.
	FundsSent      bool
	Reconciled     bool
	RefundEligible bool
	CreatedAt      int64
	UpdatedAt      int64
}

// OrderRepository stores orders along with their broadcast and swap records.
type OrderRepository interface {
	Add(ctx context.Context, order Order) error
	Update(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetAll(ctx context.Context) ([]Order, error)
	GetByStatus(ctx context.Context, status OrderStatus) ([]Order, error)
	Close()
}

func NewOrder(
	message []byte, network Network, bidRate, maxBidRate uint64, invoice string,
) (Order, error) {
	if _, err := ParseNetwork(string(network)); err != nil {
		return Order{}, err
	}
	if len(message) == 0 && len(invoice) == 0 {
		return Order{}, fmt.Errorf("missing message")
	}
	if bidRate == 0 {
		return Order{}, fmt.Errorf("bid rate must be greater than zero")
	}
	if bidRate > maxBidRate {
		return Order{}, fmt.Errorf(
			"bid rate %d must not exceed max bid rate %d", bidRate, maxBidRate,
		)
	}

	now := time.Now().Unix()
	return Order{
		Id:              uuid.New().String(),
		Message:         append([]byte(nil), message...),
		Network:         network,
		BidRate:         bidRate,
		MaxBidRate:      maxBidRate,
		InvoiceSupplied: len(invoice) > 0,
		Invoice:         invoice,
		Status:          OrderCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (o Order) MessageSize() uint64 {
	return uint64(len(o.Message))
}

// BidFor returns the total bid in msat for the message at the given rate.
func (o Order) BidFor(rate uint64) uint64 {
	return max(o.MessageSize()*rate, MinimumBidMsat)
}

// WithBidRate raises the rate used for the next bid.
func (o Order) WithBidRate(rate uint64) (Order, error) {
	if err := o.expect("raise bid of", OrderCreated); err != nil {
		return Order{}, err
	}
	if rate < o.BidRate {
		return Order{}, fmt.Errorf("bid rate must not decrease: %d < %d", rate, o.BidRate)
	}
	if rate > o.MaxBidRate {
		return Order{}, fmt.Errorf("bid rate %d exceeds max bid rate %d", rate, o.MaxBidRate)
	}
	next := o.clone()
	next.BidRate = rate
	return next.touch(), nil
}

func (o Order) AcceptBid(rate uint64, broadcast BroadcastOrder) (Order, error) {
	if err := o.expect("accept bid of", OrderCreated); err != nil {
		return Order{}, err
	}
	if o.InvoiceSupplied {
		return Order{}, fmt.Errorf("%w: order %s already has an invoice", ErrInvalidTransition, o.Id)
	}
	if rate < o.BidRate || rate > o.MaxBidRate {
		return Order{}, fmt.Errorf(
			"accepted bid rate %d out of range [%d, %d]", rate, o.BidRate, o.MaxBidRate,
		)
	}
	if len(broadcast.Payreq) == 0 {
		return Order{}, fmt.Errorf("accepted bid has no invoice")
	}
	next := o.clone()
	next.BidRate = rate
	next.Broadcast = &broadcast
	next.Invoice = broadcast.Payreq
	next.Status = OrderBidAccepted
	return next.touch(), nil
}

func (o Order) ValidateInvoice() (Order, error) {
	from := OrderBidAccepted
	if o.InvoiceSupplied {
		from = OrderCreated
	}
	if err := o.expect("validate invoice of", from); err != nil {
		return Order{}, err
	}
	if len(o.Invoice) == 0 {
		return Order{}, fmt.Errorf("order %s has no invoice", o.Id)
	}
	next := o.clone()
	next.Status = OrderInvoiceValidated
	return next.touch(), nil
}

func (o Order) SetRefundAddress(address string) (Order, error) {
	if err := o.expect("set refund address of", OrderInvoiceValidated); err != nil {
		return Order{}, err
	}
	if len(address) == 0 {
		return Order{}, fmt.Errorf("missing refund address")
	}
	if len(o.RefundAddress) > 0 {
		return Order{}, fmt.Errorf("order %s already has a refund address", o.Id)
	}
	next := o.clone()
	next.RefundAddress = address
	next.Status = OrderRefundReady
	return next.touch(), nil
}

func (o Order) CreateSwap(swap Swap) (Order, error) {
	if err := o.expect("create swap for", OrderRefundReady); err != nil {
		return Order{}, err
	}
	if swap.Invoice != o.Invoice {
		return Order{}, fmt.Errorf("swap invoice does not match order invoice")
	}
	if swap.RefundAddress != o.RefundAddress {
		return Order{}, fmt.Errorf("swap refund address does not match order refund address")
	}
	if swap.SwapAmount == 0 {
		return Order{}, fmt.Errorf("swap amount must be greater than zero")
	}
	if len(swap.P2SHAddress) == 0 || len(swap.RedeemScript) == 0 {
		return Order{}, fmt.Errorf("swap is missing p2sh address or redeem script")
	}
	if swap.IsSettled() {
		return Order{}, fmt.Errorf("new swap must not carry a payment secret")
	}
	next := o.clone()
	next.Swap = &swap
	next.Status = OrderSwapCreated
	return next.touch(), nil
}

func (o Order) MarkPaid(txid string) (Order, error) {
	if err := o.expect("mark paid", OrderSwapCreated); err != nil {
		return Order{}, err
	}
	if len(txid) == 0 {
		return Order{}, fmt.Errorf("%w: missing txid", ErrOnChainSendFailed)
	}
	next := o.clone()
	next.OnChainTxId = txid
	next.FundsSent = true
	next.Status = OrderOnChainPaid
	return next.touch(), nil
}

func (o Order) Settle(paymentSecret string) (Order, error) {
	if err := o.expect("settle", OrderOnChainPaid); err != nil {
		return Order{}, err
	}
	if len(paymentSecret) == 0 {
		return Order{}, fmt.Errorf("missing payment secret")
	}
	next := o.clone()
	next.Swap.PaymentSecret = paymentSecret
	next.Status = OrderSettled
	return next.touch(), nil
}

func (o Order) Fail(cause error) (Order, error) {
	if o.Status.IsTerminal() {
		return Order{}, fmt.Errorf(
			"%w: order %s is already %s", ErrInvalidTransition, o.Id, o.Status,
		)
	}
	next := o.clone()
	next.Status = OrderFailed
	next.FailureReason = FailureReasonOf(cause)
	if cause != nil {
		next.Error = cause.Error()
	}
	return next.touch(), nil
}

// RecordBump appends a bid increase to the broadcast record.
func (o Order) RecordBump(bump BidBump) (Order, error) {
	if o.Broadcast == nil {
		return Order{}, fmt.Errorf("order %s has no broadcast order to bump", o.Id)
	}
	if bump.IncreaseMsat == 0 {
		return Order{}, fmt.Errorf("bid increase must be greater than zero")
	}
	next := o.clone()
	next.Broadcast.BidMsat += bump.IncreaseMsat
	next.Broadcast.Bumps = append(next.Broadcast.Bumps, bump)
	return next.touch(), nil
}

// WithBroadcastStatus refreshes the status reported by the satellite service.
func (o Order) WithBroadcastStatus(status string) Order {
	if o.Broadcast == nil || o.Broadcast.Status == status {
		return o
	}
	next := o.clone()
	next.Broadcast.Status = status
	return next.touch()
}

// NeedsReconciliation is true for failed orders whose on-chain leg was sent
// but for which no settlement proof was ever recorded.
func (o Order) NeedsReconciliation() bool {
	return o.Status == OrderFailed && o.FundsSent &&
		o.Swap != nil && !o.Swap.IsSettled()
}

// RecordLateSecret stores a payment secret that showed up after the order
// already failed waiting for it.
func (o Order) RecordLateSecret(paymentSecret string) (Order, error) {
	if !o.NeedsReconciliation() {
		return Order{}, fmt.Errorf(
			"%w: order %s does not need reconciliation", ErrInvalidTransition, o.Id,
		)
	}
	if len(paymentSecret) == 0 {
		return Order{}, fmt.Errorf("missing payment secret")
	}
	next := o.clone()
	next.Swap.PaymentSecret = paymentSecret
	next.Reconciled = true
	return next.touch(), nil
}

func (o Order) MarkRefundEligible() (Order, error) {
	if !o.NeedsReconciliation() {
		return Order{}, fmt.Errorf(
			"%w: order %s does not need reconciliation", ErrInvalidTransition, o.Id,
		)
	}
	next := o.clone()
	next.RefundEligible = true
	return next.touch(), nil
}

func (o Order) expect(action string, status OrderStatus) error {
	if o.Status != status {
		return fmt.Errorf(
			"%w: cannot %s order %s in status %s, expected %s",
			ErrInvalidTransition, action, o.Id, o.Status, status,
		)
	}
	return nil
}

func (o Order) clone() Order {
	next := o
	next.Message = append([]byte(nil), o.Message...)
	if o.Broadcast != nil {
		broadcast := *o.Broadcast
		broadcast.Bumps = append([]BidBump(nil), o.Broadcast.Bumps...)
		next.Broadcast = &broadcast
	}
	if o.Swap != nil {
		swap := *o.Swap
		next.Swap = &swap
	}
	return next
}

func (o Order) touch() Order {
	o.UpdatedAt = time.Now().Unix()
	return o
}
