package application

import (
	"time"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	"github.com/shopspring/decimal"
)

// Config holds the knobs of the order saga. Zero values are replaced by the
// defaults below.
type Config struct {
	Network      domain.Network
	StartBidRate uint64
	MaxBidRate   uint64
	BidRateStep  uint64
	BidDelay     time.Duration
	// BidTransientRetries is how many times a bid at the same rate is retried
	// when the satellite service can't be reached.
	BidTransientRetries int

	InvoiceCheckAttempts int
	InvoiceCheckDelay    time.Duration

	GatewayRetries    int
	GatewayRetryDelay time.Duration

	RefundAddressType ports.AddressType

	// ReserveRatio is the share of the swap amount kept on top of it in the
	// wallet for fees. Zero is a valid ratio, unset means the default.
	ReserveRatio decimal.NullDecimal

	MinConfirmations     int64
	ConfirmationInterval time.Duration
	ConfirmationTimeout  time.Duration

	SettlementTimeout       time.Duration
	SettlementPollInterval  time.Duration
	SettlementRetries       int
	SettlementRetryInterval time.Duration

	ReconcileInterval time.Duration
}

var defaultReserveRatio = decimal.RequireFromString("0.02")

func DefaultConfig() Config {
	return Config{
		Network:                 domain.NetworkTestnet,
		StartBidRate:            domain.DefaultStartBidRate,
		MaxBidRate:              domain.DefaultMaxBidRate,
		BidRateStep:             domain.BidRateStep,
		BidDelay:                500 * time.Millisecond,
		BidTransientRetries:     3,
		InvoiceCheckAttempts:    10,
		InvoiceCheckDelay:       5 * time.Second,
		GatewayRetries:          3,
		GatewayRetryDelay:       5 * time.Second,
		RefundAddressType:       ports.AddressLegacy,
		ReserveRatio:            decimal.NewNullDecimal(defaultReserveRatio),
		MinConfirmations:        1,
		ConfirmationInterval:    30 * time.Second,
		ConfirmationTimeout:     6 * time.Hour,
		SettlementTimeout:       60 * time.Second,
		SettlementPollInterval:  5 * time.Second,
		SettlementRetries:       6,
		SettlementRetryInterval: 10 * time.Second,
		ReconcileInterval:       10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.StartBidRate == 0 {
		c.StartBidRate = def.StartBidRate
	}
	if c.MaxBidRate == 0 {
		c.MaxBidRate = def.MaxBidRate
	}
	if c.BidRateStep == 0 {
		c.BidRateStep = def.BidRateStep
	}
	if c.BidDelay == 0 {
		c.BidDelay = def.BidDelay
	}
	if c.BidTransientRetries == 0 {
		c.BidTransientRetries = def.BidTransientRetries
	}
	if c.InvoiceCheckAttempts == 0 {
		c.InvoiceCheckAttempts = def.InvoiceCheckAttempts
	}
	if c.InvoiceCheckDelay == 0 {
		c.InvoiceCheckDelay = def.InvoiceCheckDelay
	}
	if c.GatewayRetries == 0 {
		c.GatewayRetries = def.GatewayRetries
	}
	if c.GatewayRetryDelay == 0 {
		c.GatewayRetryDelay = def.GatewayRetryDelay
	}
	if c.RefundAddressType == "" {
		c.RefundAddressType = def.RefundAddressType
	}
	if !c.ReserveRatio.Valid {
		c.ReserveRatio = def.ReserveRatio
	}
	if c.MinConfirmations == 0 {
		c.MinConfirmations = def.MinConfirmations
	}
	if c.ConfirmationInterval == 0 {
		c.ConfirmationInterval = def.ConfirmationInterval
	}
	if c.ConfirmationTimeout == 0 {
		c.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if c.SettlementTimeout == 0 {
		c.SettlementTimeout = def.SettlementTimeout
	}
	if c.SettlementPollInterval == 0 {
		c.SettlementPollInterval = def.SettlementPollInterval
	}
	if c.SettlementRetries == 0 {
		c.SettlementRetries = def.SettlementRetries
	}
	if c.SettlementRetryInterval == 0 {
		c.SettlementRetryInterval = def.SettlementRetryInterval
	}
	if c.ReconcileInterval == 0 {
		c.ReconcileInterval = def.ReconcileInterval
	}
	return c
}
