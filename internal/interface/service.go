package service_interface

import (
	"net/http"

	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/interface/web"
)

// Service is the public interface of the daemon.
type Service interface {
	Start() error
	Stop()
}

func NewService(
	cfg web.Config, svc web.OrderService, buildInfo application.BuildInfo,
	metricsHandler http.Handler,
) (Service, error) {
	webSvc, err := web.NewService(cfg, svc, buildInfo, metricsHandler)
	if err != nil {
		return nil, err
	}
	return webSvc, nil
}
