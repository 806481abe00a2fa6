package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service collects order and gateway metrics on its own registry.
type Service struct {
	registry *prometheus.Registry

	ordersCreated  prometheus.Counter
	ordersFinished *prometheus.CounterVec // labels: status, reason
	bidsPlaced     *prometheus.CounterVec // labels: accepted
	gatewayRetries *prometheus.CounterVec // labels: service
	satsSent       prometheus.Counter
}

func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satsub_orders_created_total",
			Help: "Total orders created",
		}),
		ordersFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "satsub_orders_finished_total",
			Help: "Total orders that reached a terminal state",
		}, []string{"status", "reason"}),
		bidsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "satsub_bids_placed_total",
			Help: "Total bids placed with the satellite service",
		}, []string{"accepted"}),
		gatewayRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "satsub_gateway_retries_total",
			Help: "Total retried calls to remote services",
		}, []string{"service"}),
		satsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satsub_onchain_sent_sats_total",
			Help: "Total sats sent on-chain to fund swaps",
		}),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.ordersCreated,
		s.ordersFinished,
		s.bidsPlaced,
		s.gatewayRetries,
		s.satsSent,
	)
	return s
}

func (s *Service) OrderCreated() {
	s.ordersCreated.Inc()
}

func (s *Service) OrderFinished(status, reason string) {
	s.ordersFinished.WithLabelValues(status, reason).Inc()
}

func (s *Service) BidPlaced(accepted bool) {
	s.bidsPlaced.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (s *Service) GatewayRetry(service string) {
	s.gatewayRetries.WithLabelValues(service).Inc()
}

func (s *Service) OnChainSent(sats uint64) {
	s.satsSent.Add(float64(sats))
}

// Handler serves the registry in the prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
