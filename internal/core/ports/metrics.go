package ports

type MetricsService interface {
	OrderCreated()
	OrderFinished(status, reason string)
	BidPlaced(accepted bool)
	GatewayRetry(service string)
	OnChainSent(sats uint64)
}
