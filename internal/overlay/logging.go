package overlay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirphl/financeiq/internal/db"
)

// loggingMiddleware wraps Service and logs request information to the provided logger
type loggingMiddleware struct {
	logger zerolog.Logger
	svc    Service
}

func (s *loggingMiddleware) Overlays(ctx context.Context, req Request) (resp Response, err error) {
	defer func(begin time.Time) {
		ids := make([]string, len(req.Specs))
		for i, spec := range req.Specs {
			ids[i] = spec.ID
		}
		s.wrap(err).
			Str("method", "Overlays").
			Str("ticker", req.Ticker).
			Str("range", req.Range).
			Strs("overlays", ids).
			Str("source", resp.Source).
			Err(err).
			Dur("elapsed", time.Since(begin)).
			Send()
	}(time.Now())
	return s.svc.Overlays(ctx, req)
}

func (s *loggingMiddleware) Refresh(ctx context.Context, ticker, rng string) (h *db.History, err error) {
	defer func(begin time.Time) {
		ev := s.wrap(err).
			Str("method", "Refresh").
			Str("ticker", ticker).
			Str("range", rng)
		if h != nil {
			ev = ev.Int("candles", len(h.Candles))
		}
		ev.Err(err).Dur("elapsed", time.Since(begin)).Send()
	}(time.Now())
	return s.svc.Refresh(ctx, ticker, rng)
}

func (s *loggingMiddleware) wrap(err error) *zerolog.Event {
	if err != nil {
		return s.logger.Error()
	}
	return s.logger.Debug()
}

// NewLoggingMiddleware ...
func NewLoggingMiddleware(logger zerolog.Logger, svc Service) Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}
