package application

import (
	"context"
	"errors"

	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// bidNegotiator places a broadcast bid and raises it step by step until the
// satellite service accepts it or the order's max bid rate is exceeded.
type bidNegotiator struct {
	broadcastSvc ports.BroadcastService
	metrics      ports.MetricsService
	cfg          Config
}

func newBidNegotiator(
	broadcastSvc ports.BroadcastService, metrics ports.MetricsService, cfg Config,
) *bidNegotiator {
	return &bidNegotiator{broadcastSvc, metrics, cfg}
}

// negotiate returns the order in BID_ACCEPTED on success. On failure the
// returned order carries the last bid rate that was tried.
func (b *bidNegotiator) negotiate(
	ctx context.Context, order domain.Order,
) (domain.Order, error) {
	logger := log.WithField("order", order.Id)

	rate := order.BidRate
	for {
		if rate != order.BidRate {
			next, err := order.WithBidRate(rate)
			if err != nil {
				return order, err
			}
			order = next
		}

		bid := order.BidFor(rate)
		logger.Debugf("placing bid of %d msat (%d msat/byte)", bid, rate)

		res, err := b.place(ctx, order.Message, bid)
		if err != nil {
			return order, err
		}
		b.metrics.BidPlaced(res.Accepted)

		if res.Accepted {
			logger.Infof("bid of %d msat accepted", bid)
			next, err := order.AcceptBid(rate, res.Order)
			if err != nil {
				return order, err
			}
			return next, nil
		}

		logger.Debugf(
			"bid of %d msat rejected: %d %s", bid, res.StatusCode, res.Text,
		)

		nextRate := rate + b.cfg.BidRateStep
		if nextRate > order.MaxBidRate {
			return order, &domain.BidExhaustedError{
				LastRate:   rate,
				NextRate:   nextRate,
				MaxBidRate: order.MaxBidRate,
			}
		}
		if err := sleep(ctx, b.cfg.BidDelay); err != nil {
			return order, err
		}
		rate = nextRate
	}
}

// place submits a single bid, retrying at the same amount while the service
// can't be reached.
func (b *bidNegotiator) place(
	ctx context.Context, message []byte, bid uint64,
) (*ports.PlaceResult, error) {
	var res *ports.PlaceResult
	err := retryTransient(
		ctx, b.cfg.BidTransientRetries, b.cfg.BidDelay, retryLogger(b.metrics, "place bid"),
		func(ctx context.Context) error {
			r, err := b.broadcastSvc.Place(ctx, message, bid)
			if err != nil {
				return err
			}
			res = r
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func retryLogger(metrics ports.MetricsService, action string) func(int, error) {
	return func(attempt int, err error) {
		var gwErr *ports.GatewayError
		if errors.As(err, &gwErr) {
			metrics.GatewayRetry(gwErr.Service)
		}
		log.WithError(err).Warnf("failed to %s (attempt %d), retrying...", action, attempt)
	}
}
