package sqlitedb

import "github.com/satsub/satsub/internal/core/domain"

type orderModel struct {
	Id              string `gorm:"primaryKey"`
	Message         []byte
	Network         string
	BidRate         uint64
	MaxBidRate      uint64
	InvoiceSupplied bool
	Invoice         string
	RefundAddress   string
	OnChainTxId     string
	Status          int `gorm:"index"`
	FailureReason   string
	Error           string
	FundsSent       bool
	Reconciled      bool
	RefundEligible  bool
	CreatedAt       int64 `gorm:"autoCreateTime:false"`
	UpdatedAt       int64 `gorm:"autoUpdateTime:false"`

	Broadcast *broadcastModel `gorm:"foreignKey:OrderId"`
	Swap      *swapModel      `gorm:"foreignKey:OrderId"`
}

func (orderModel) TableName() string {
	return "orders"
}

type broadcastModel struct {
	OrderId       string `gorm:"primaryKey"`
	Uuid          string `gorm:"index"`
	AuthToken     string
	BidMsat       uint64
	InvoiceId     string
	Payreq        string
	Rhash         string
	MessageDigest string
	ExpiresAt     int64
	Status        string
	Bumps         []bumpModel `gorm:"serializer:json"`
}

func (broadcastModel) TableName() string {
	return "broadcasts"
}

type bumpModel struct {
	IncreaseMsat uint64 `json:"increase_msat"`
	Payreq       string `json:"payreq"`
	Timestamp    int64  `json:"timestamp"`
}

type swapModel struct {
	OrderId              string `gorm:"primaryKey"`
	Invoice              string
	RefundAddress        string
	SwapAmount           uint64
	SwapFee              uint64
	P2SHAddress          string `gorm:"column:p2sh_address"`
	P2SHP2WSHAddress     string `gorm:"column:p2sh_p2wsh_address"`
	P2WSHAddress         string `gorm:"column:p2wsh_address"`
	RedeemScript         string
	PaymentHash          string `gorm:"index"`
	DestinationPublicKey string
	TimeoutBlockHeight   uint32
	PaymentSecret        string
}

func (swapModel) TableName() string {
	return "swaps"
}

func toOrderModel(order domain.Order) *orderModel {
	return &orderModel{
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

func (m orderModel) toOrder() domain.Order {
	order := domain.Order{
		Id:              m.Id,
		Message:         m.Message,
		Network:         domain.Network(m.Network),
		BidRate:         m.BidRate,
		MaxBidRate:      m.MaxBidRate,
		InvoiceSupplied: m.InvoiceSupplied,
		Invoice:         m.Invoice,
		RefundAddress:   m.RefundAddress,
		OnChainTxId:     m.OnChainTxId,
		Status:          domain.OrderStatus(m.Status),
		FailureReason:   m.FailureReason,
		Error:           m.Error,
		FundsSent:       m.FundsSent,
		Reconciled:      m.Reconciled,
		RefundEligible:  m.RefundEligible,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Broadcast != nil {
		broadcast := m.Broadcast.toBroadcastOrder()
		order.Broadcast = &broadcast
	}
	if m.Swap != nil {
		swap := m.Swap.toSwap()
		order.Swap = &swap
	}
	return order
}

func toBroadcastModel(orderId string, b domain.BroadcastOrder) *broadcastModel {
	bumps := make([]bumpModel, 0, len(b.Bumps))
	for _, bump := range b.Bumps {
		bumps = append(bumps, bumpModel(bump))
	}
	return &broadcastModel{
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

func (m broadcastModel) toBroadcastOrder() domain.BroadcastOrder {
	var bumps []domain.BidBump
	for _, bump := range m.Bumps {
		bumps = append(bumps, domain.BidBump(bump))
	}
	return domain.BroadcastOrder{
		Uuid:          m.Uuid,
		AuthToken:     m.AuthToken,
		BidMsat:       m.BidMsat,
		InvoiceId:     m.InvoiceId,
		Payreq:        m.Payreq,
		Rhash:         m.Rhash,
		MessageDigest: m.MessageDigest,
		ExpiresAt:     m.ExpiresAt,
		Status:        m.Status,
		Bumps:         bumps,
	}
}

func toSwapModel(orderId string, s domain.Swap) *swapModel {
	return &swapModel{
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

func (m swapModel) toSwap() domain.Swap {
	return domain.Swap{
		Invoice:              m.Invoice,
		RefundAddress:        m.RefundAddress,
		SwapAmount:           m.SwapAmount,
		SwapFee:              m.SwapFee,
		P2SHAddress:          m.P2SHAddress,
		P2SHP2WSHAddress:     m.P2SHP2WSHAddress,
		P2WSHAddress:         m.P2WSHAddress,
		RedeemScript:         m.RedeemScript,
		PaymentHash:          m.PaymentHash,
		DestinationPublicKey: m.DestinationPublicKey,
		TimeoutBlockHeight:   m.TimeoutBlockHeight,
		PaymentSecret:        m.PaymentSecret,
	}
}
