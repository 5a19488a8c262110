// Package scheduler periodically refreshes the stored price history of a
// watchlist so the overlay API has fallback data when the backend is down.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amirphl/financeiq/internal/db"
	"github.com/amirphl/financeiq/internal/notifier"
)

// Refresher fetches and stores the history of one ticker.
type Refresher interface {
	Refresh(ctx context.Context, ticker, rng string) (*db.History, error)
}

// Result summarizes one pass over the watchlist.
type Result struct {
	Refreshed []string
	Failed    map[string]error
}

// Err joins every per-ticker failure, or returns nil.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for ticker, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
	}
	return errors.Join(errs...)
}

// Scheduler manages the refresh cron job.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	notifier  notifier.Notifier
	watchlist []string
	rng       string
	logger    zerolog.Logger
	ctx       context.Context
}

// New creates a Scheduler. Tickers are trimmed, upper-cased and deduplicated.
func New(ctx context.Context, refresher Refresher, n notifier.Notifier, watchlist []string, rng string, logger zerolog.Logger) *Scheduler {
	seen := make(map[string]bool)
	var tickers []string
	for _, t := range watchlist {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresher: refresher,
		notifier:  n,
		watchlist: tickers,
		rng:       rng,
		logger:    logger,
		ctx:       ctx,
	}
}

// Register adds the watchlist refresh under spec, a six-field cron expression.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Strs("watchlist", s.watchlist).Str("range", s.rng).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	res := s.RunOnce(s.ctx)
	if len(res.Failed) > 0 {
		s.logger.Warn().Err(res.Err()).Int("failed", len(res.Failed)).Msg("watchlist refresh incomplete")
	}
}

// RunOnce refreshes every watchlist ticker in order. Each ticker is retried by
// the notifier, which also reports a ticker that never succeeds.
func (s *Scheduler) RunOnce(ctx context.Context) Result {
	res := Result{Failed: make(map[string]error)}
	for _, ticker := range s.watchlist {
		if err := ctx.Err(); err != nil {
			res.Failed[ticker] = err
			continue
		}
		var candles int
		err := s.notifier.RetryWithNotification(ctx, func() error {
			h, err := s.refresher.Refresh(ctx, ticker, s.rng)
			if err != nil {
				return err
			}
			candles = len(h.Candles)
			return nil
		}, fmt.Sprintf("refresh %s %s", ticker, s.rng))
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("failed to refresh price history")
			res.Failed[ticker] = err
			continue
		}
		s.logger.Debug().Str("ticker", ticker).Int("candles", candles).Msg("refreshed price history")
		res.Refreshed = append(res.Refreshed, ticker)
	}
	return res
}
