package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const (
	orderDir = "orders"
)

type orderRepository struct {
	store *badgerhold.Store
}

func NewOrderRepository(baseDir string, logger badger.Logger) (domain.OrderRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, orderDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open order store: %s", err)
	}
	return &orderRepository{store}, nil
}

func (r *orderRepository) Add(ctx context.Context, order domain.Order) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		if err := r.store.TxInsert(tx, order.Id, toOrderData(order)); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return fmt.Errorf("order %s already exists", order.Id)
			}
			return err
		}
		return r.upsertRecords(tx, order)
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		if err := r.store.TxUpdate(tx, order.Id, toOrderData(order)); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.Id)
			}
			return err
		}
		return r.upsertRecords(tx, order)
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var data orderData
	err := r.store.Get(id, &data)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return r.toOrder(data)
}

func (r *orderRepository) GetAll(ctx context.Context) ([]domain.Order, error) {
	var dataList []orderData
	if err := r.store.Find(&dataList, nil); err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return r.toOrders(dataList)
}

func (r *orderRepository) GetByStatus(
	ctx context.Context, status domain.OrderStatus,
) ([]domain.Order, error) {
	var dataList []orderData
	query := badgerhold.Where("Status").Eq(int(status))
	if err := r.store.Find(&dataList, query); err != nil {
		return nil, fmt.Errorf("failed to get orders by status: %w", err)
	}
	return r.toOrders(dataList)
}

func (r *orderRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *orderRepository) upsertRecords(tx *badger.Txn, order domain.Order) error {
	if order.Broadcast != nil {
		if err := r.store.TxUpsert(
			tx, order.Id, toBroadcastData(order.Id, *order.Broadcast),
		); err != nil {
			return fmt.Errorf("failed to store broadcast order: %w", err)
		}
	}
	if order.Swap != nil {
		if err := r.store.TxUpsert(tx, order.Id, toSwapData(order.Id, *order.Swap)); err != nil {
			return fmt.Errorf("failed to store swap: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) toOrders(dataList []orderData) ([]domain.Order, error) {
	sort.SliceStable(dataList, func(i, j int) bool {
		return dataList[i].CreatedAt < dataList[j].CreatedAt
	})

	orders := make([]domain.Order, 0, len(dataList))
	for _, data := range dataList {
		order, err := r.toOrder(data)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (r *orderRepository) toOrder(data orderData) (*domain.Order, error) {
	order := data.toOrder()

	var broadcast broadcastData
	err := r.store.Get(data.Id, &broadcast)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("failed to get broadcast order of %s: %w", data.Id, err)
	}
	if err == nil {
		b := broadcast.toBroadcastOrder()
		order.Broadcast = &b
	}

	var swap swapData
	err = r.store.Get(data.Id, &swap)
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("failed to get swap of %s: %w", data.Id, err)
	}
	if err == nil {
		s := swap.toSwap()
		order.Swap = &s
	}

	return &order, nil
}

type orderData struct {
	Id              string
	Message         []byte
	Network         string
	BidRate         uint64
	MaxBidRate      uint64
	InvoiceSupplied bool
	Invoice         string
	RefundAddress   string
	OnChainTxId     string
	Status          int
	FailureReason   string
	Error           string
	FundsSent       bool
	Reconciled      bool
	RefundEligible  bool
	CreatedAt       int64
	UpdatedAt       int64
}

func toOrderData(order domain.Order) orderData {
	return orderData{
		Id:              order.Id,
		Message:         order.Message,
		Network:         string(order.Network),
		BidRate:         order.BidRate,
		MaxBidRate:      order.MaxBidRate,
		InvoiceSupplied: order.InvoiceSupplied,
		Invoice:         order.Invoice,
		RefundAddress:   order.RefundAddress,
		OnChainTxId:     order.OnChainTxId,
		Status:          int(order.Status),
		FailureReason:   order.FailureReason,
		Error:           order.Error,
		FundsSent:       order.FundsSent,
		Reconciled:      order.Reconciled,
		RefundEligible:  order.RefundEligible,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func (d orderData) toOrder() domain.Order {
	return domain.Order{
		Id:              d.Id,
		Message:         d.Message,
		Network:         domain.Network(d.Network),
		BidRate:         d.BidRate,
		MaxBidRate:      d.MaxBidRate,
		InvoiceSupplied: d.InvoiceSupplied,
		Invoice:         d.Invoice,
		RefundAddress:   d.RefundAddress,
		OnChainTxId:     d.OnChainTxId,
		Status:          domain.OrderStatus(d.Status),
		FailureReason:   d.FailureReason,
		Error:           d.Error,
		FundsSent:       d.FundsSent,
		Reconciled:      d.Reconciled,
		RefundEligible:  d.RefundEligible,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type broadcastData struct {
	OrderId       string
	Uuid          string
	AuthToken     string
	BidMsat       uint64
	InvoiceId     string
	Payreq        string
	Rhash         string
	MessageDigest string
	ExpiresAt     int64
	Status        string
	Bumps         []bumpData
}

type bumpData struct {
	IncreaseMsat uint64
	Payreq       string
	Timestamp    int64
}

func toBroadcastData(orderId string, b domain.BroadcastOrder) broadcastData {
	bumps := make([]bumpData, 0, len(b.Bumps))
	for _, bump := range b.Bumps {
		bumps = append(bumps, bumpData(bump))
	}
	return broadcastData{
		OrderId:       orderId,
		Uuid:          b.Uuid,
		AuthToken:     b.AuthToken,
		BidMsat:       b.BidMsat,
		InvoiceId:     b.InvoiceId,
		Payreq:        b.Payreq,
		Rhash:         b.Rhash,
		MessageDigest: b.MessageDigest,
		ExpiresAt:     b.ExpiresAt,
		Status:        b.Status,
		Bumps:         bumps,
	}
}

func (d broadcastData) toBroadcastOrder() domain.BroadcastOrder {
	var bumps []domain.BidBump
	for _, bump := range d.Bumps {
		bumps = append(bumps, domain.BidBump(bump))
	}
	return domain.BroadcastOrder{
		Uuid:          d.Uuid,
		AuthToken:     d.AuthToken,
		BidMsat:       d.BidMsat,
		InvoiceId:     d.InvoiceId,
		Payreq:        d.Payreq,
		Rhash:         d.Rhash,
		MessageDigest: d.MessageDigest,
		ExpiresAt:     d.ExpiresAt,
		Status:        d.Status,
		Bumps:         bumps,
	}
}

type swapData struct {
	OrderId              string
	Invoice              string
	RefundAddress        string
	SwapAmount           uint64
	SwapFee              uint64
	P2SHAddress          string
	P2SHP2WSHAddress     string
	P2WSHAddress         string
	RedeemScript         string
	PaymentHash          string
	DestinationPublicKey string
	TimeoutBlockHeight   uint32
	PaymentSecret        string
}

func toSwapData(orderId string, s domain.Swap) swapData {
	return swapData{
		OrderId:              orderId,
		Invoice:              s.Invoice,
		RefundAddress:        s.RefundAddress,
		SwapAmount:           s.SwapAmount,
		SwapFee:              s.SwapFee,
		P2SHAddress:          s.P2SHAddress,
		P2SHP2WSHAddress:     s.P2SHP2WSHAddress,
		P2WSHAddress:         s.P2WSHAddress,
		RedeemScript:         s.RedeemScript,
		PaymentHash:          s.PaymentHash,
		DestinationPublicKey: s.DestinationPublicKey,
		TimeoutBlockHeight:   s.TimeoutBlockHeight,
		PaymentSecret:        s.PaymentSecret,
	}
}

func (d swapData) toSwap() domain.Swap {
	return domain.Swap{
		Invoice:              d.Invoice,
		RefundAddress:        d.RefundAddress,
		SwapAmount:           d.SwapAmount,
		SwapFee:              d.SwapFee,
		P2SHAddress:          d.P2SHAddress,
		P2SHP2WSHAddress:     d.P2SHP2WSHAddress,
		P2WSHAddress:         d.P2WSHAddress,
		RedeemScript:         d.RedeemScript,
		PaymentHash:          d.PaymentHash,
		DestinationPublicKey: d.DestinationPublicKey,
		TimeoutBlockHeight:   d.TimeoutBlockHeight,
		PaymentSecret:        d.PaymentSecret,
	}
}
