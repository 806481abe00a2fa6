package application

type noopMetrics struct{}

func (noopMetrics) OrderCreated()                {}
func (noopMetrics) OrderFinished(string, string) {}
func (noopMetrics) BidPlaced(bool)               {}
func (noopMetrics) GatewayRetry(string)          {}
func (noopMetrics) OnChainSent(uint64)           {}
