package web

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// OrderService is what the REST API exposes of the application service.
type OrderService interface {
	CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*domain.Order, error)
	BumpOrder(ctx context.Context, id string, increaseMsat uint64) (*domain.Order, error)
	GetRefundAddress(ctx context.Context, id string, addrType ports.AddressType) (*domain.Order, error)
	QuoteSwap(ctx context.Context, id string) (*domain.Order, *ports.SwapQuote, error)
	PaySwap(ctx context.Context, id string) (*domain.Order, error)
	CheckSwap(ctx context.Context, id string) (*domain.Order, *ports.SwapStatus, error)
	ExecuteOrder(ctx context.Context, id string) error
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	LookupInvoice(ctx context.Context, invoice string, network domain.Network) (*ports.InvoiceDetails, error)
	CheckRefundAddress(ctx context.Context, address string, network domain.Network) error
	RandomMessage() (string, error)
}

type Config struct {
	HTTPPort      uint32
	SentryEnabled bool
}

func (c Config) Validate() error {
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid http port: %s", err)
	}
	// nolint:all
	lis.Close()
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

type service struct {
	*gin.Engine

	svc       OrderService
	buildInfo application.BuildInfo
	cfg       Config
	server    *http.Server
}

// NewService serves the REST API and, if metricsHandler is not nil, the
// metrics endpoint.
func NewService(
	cfg Config, svc OrderService, buildInfo application.BuildInfo,
	metricsHandler http.Handler,
) (*service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	s := newService(svc, buildInfo, metricsHandler, cfg.SentryEnabled)
	s.cfg = cfg
	s.server = &http.Server{
		Addr:    cfg.address(),
		Handler: s.Engine,
	}
	return s, nil
}

func newService(
	svc OrderService, buildInfo application.BuildInfo,
	metricsHandler http.Handler, sentryEnabled bool,
) *service {
	router := gin.New()
	setupMiddleware(router, sentryEnabled)

	s := &service{Engine: router, svc: svc, buildInfo: buildInfo}

	s.GET("/healthz", s.healthz)
	if metricsHandler != nil {
		s.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := s.Group("/api/v1")
	api.GET("/util/random_message", s.randomMessageApi)
	api.GET("/swap/invoices/:invoice", s.lookupInvoiceApi)
	api.GET("/swap/addresses/:address", s.checkRefundAddressApi)

	api.GET("/orders", s.listOrdersApi)
	api.POST("/orders", s.createOrderApi)
	api.GET("/orders/:id", s.getOrderApi)
	api.POST("/orders/:id/bump", s.bumpOrderApi)
	api.POST("/orders/:id/refund_address", s.refundAddressApi)
	api.POST("/orders/:id/quote", s.quoteSwapApi)
	api.POST("/orders/:id/pay", s.paySwapApi)
	api.GET("/orders/:id/swap", s.checkSwapApi)
	api.POST("/orders/:id/execute", s.executeOrderApi)
	api.POST("/orders/:id/cancel", s.cancelOrderApi)

	return s
}

func (s *service) Start() error {
	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.cfg.address())
	return nil
}

func (s *service) Stop() {
	// nolint:all
	s.server.Shutdown(context.Background())
	log.Info("stopped http server")
}
