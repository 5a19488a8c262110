package overlay

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/amirphl/financeiq/internal/db"
)

// instrumentingMiddleware wraps Service and enables request metrics
type instrumentingMiddleware struct {
	reqCount    metrics.Counter
	reqDuration metrics.Histogram
	fallbacks   metrics.Counter
	svc         Service
}

func (s *instrumentingMiddleware) Overlays(ctx context.Context, req Request) (resp Response, err error) {
	defer func(begin time.Time) {
		s.recordMetrics("Overlays", begin, err)
		if err == nil && resp.Source == SourceFallback {
			s.fallbacks.Add(1)
		}
	}(time.Now())
	return s.svc.Overlays(ctx, req)
}

func (s *instrumentingMiddleware) Refresh(ctx context.Context, ticker, rng string) (h *db.History, err error) {
	defer func(begin time.Time) { s.recordMetrics("Refresh", begin, err) }(time.Now())
	return s.svc.Refresh(ctx, ticker, rng)
}

func (s *instrumentingMiddleware) recordMetrics(method string, startTime time.Time, err error) {
	labels := []string{
		"method", method,
		"error", strconv.FormatBool(err != nil),
	}
	s.reqCount.With(labels...).Add(1)
	s.reqDuration.With(labels...).Observe(time.Since(startTime).Seconds())
}

// NewInstrumentingMiddleware ...
func NewInstrumentingMiddleware(reqCount metrics.Counter, reqDuration metrics.Histogram, fallbacks metrics.Counter, svc Service) Service {
	return &instrumentingMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		fallbacks:   fallbacks,
		svc:         svc,
	}
}
