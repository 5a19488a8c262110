// Package overlay serves chart overlays for a ticker: it fetches price
// history from the backend, normalizes it, computes the requested indicators
// and rounds the result for presentation. When the backend is unavailable the
// last stored history is used instead.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirphl/financeiq/internal/backend"
	"github.com/amirphl/financeiq/internal/candle"
	"github.com/amirphl/financeiq/internal/db"
	"github.com/amirphl/financeiq/internal/indicator"
	"github.com/amirphl/financeiq/internal/tfutils"
)

// Response sources.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

var (
	ErrInvalidRequest = errors.New("invalid overlay request")
	// ErrUpstream means the backend failed and no stored history exists.
	ErrUpstream = errors.New("price history unavailable")
	// ErrNoData means the history is unusable: nothing survived normalization,
	// or its values overflow an indicator.
	ErrNoData = errors.New("no usable price history")
)

// Fetcher is the part of the backend client the service needs.
type Fetcher interface {
	Analyze(ctx context.Context, ticker, rng string) (*backend.Analysis, error)
}

type Request struct {
	Ticker string
	Range  string
	Specs  []indicator.Spec
	// Padded selects the null-padded shape for SMA and Bollinger overlays.
	Padded bool
	// HeikinAshi returns smoothed bars in Points. Overlays are still computed
	// from the real closes.
	HeikinAshi bool
}

type Response struct {
	Ticker        string              `json:"ticker"`
	Name          string              `json:"name,omitempty"`
	Range         string              `json:"range"`
	Source        string              `json:"source"`
	FetchedAt     time.Time           `json:"fetchedAt"`
	Normalization *candle.Report      `json:"normalization,omitempty"`
	Points        []candle.Candle     `json:"points"`
	Overlays      []indicator.Overlay `json:"overlays"`
}

// Service computes overlays and keeps stored history current.
type Service interface {
	Overlays(ctx context.Context, req Request) (Response, error)
	// Refresh fetches, normalizes and stores the history of ticker over rng.
	Refresh(ctx context.Context, ticker, rng string) (*db.History, error)
}

type service struct {
	fetcher Fetcher
	store   db.Storage
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(fetcher Fetcher, store db.Storage, logger zerolog.Logger) Service {
	return &service{
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *service) Overlays(ctx context.Context, req Request) (Response, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, backend.ErrEmptyTicker)
	}
	rng, err := tfutils.ParseRange(req.Range)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	resp := Response{Ticker: ticker, Range: rng, Source: SourceLive}
	hist, name, rep, err := s.fetch(ctx, ticker, rng)
	if err != nil {
		fallback, ferr := s.store.GetPriceHistory(ctx, ticker, rng)
		if ferr != nil {
			if !errors.Is(ferr, db.ErrNotFound) {
				s.logger.Error().Err(ferr).Str("ticker", ticker).Msg("failed to read fallback history")
			}
			return Response{}, fmt.Errorf("%w: %s %s: %w", ErrUpstream, ticker, rng, err)
		}
		s.logger.Warn().Err(err).Str("ticker", ticker).Str("range", rng).
			Time("fetched_at", fallback.FetchedAt).Msg("serving fallback history")
		hist = fallback
		resp.Source = SourceFallback
	} else {
		resp.Name = name
		resp.Normalization = &rep
	}
	resp.FetchedAt = hist.FetchedAt
	if req.HeikinAshi {
		resp.Points = presentCandles(candle.HeikinAshi(hist.Candles))
	} else {
		resp.Points = presentCandles(hist.Candles)
	}

	overlays, err := computeAll(candle.Closes(hist.Candles), req.Specs, indicator.ComputeOptions{Padded: req.Padded})
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for i := range overlays {
		if !finite(&overlays[i]) {
			return Response{}, fmt.Errorf("%w: %s %s: %s overflows", ErrNoData, ticker, rng, overlays[i].ID)
		}
	}
	for i := range overlays {
		present(&overlays[i])
	}
	resp.Overlays = overlays
	return resp, nil
}

func (s *service) Refresh(ctx context.Context, ticker, rng string) (*db.History, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, backend.ErrEmptyTicker)
	}
	rng, err := tfutils.ParseRange(rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	hist, _, _, err := s.fetch(ctx, ticker, rng)
	return hist, err
}

// fetch loads live history and stores it as the new fallback. A failed store
// write is logged, not returned.
func (s *service) fetch(ctx context.Context, ticker, rng string) (*db.History, string, candle.Report, error) {
	analysis, err := s.fetcher.Analyze(ctx, ticker, rng)
	if err != nil {
		return nil, "", candle.Report{}, err
	}
	candles, rep := candle.Normalize(analysis.PriceHistory, candle.Options{DailyKeys: true})
	if rep.Dropped > 0 || rep.Duplicates > 0 {
		s.logger.Debug().Str("ticker", ticker).
			Int("input", rep.Input).Int("dropped", rep.Dropped).Int("duplicates", rep.Duplicates).
			Msg("normalized price history")
	}
	if len(candles) == 0 {
		return nil, "", rep, fmt.Errorf("%s %s: %w", ticker, rng, ErrNoData)
	}
	if want := tfutils.RangeTradingDays(rng); len(candles) < want/2 {
		s.logger.Debug().Str("ticker", ticker).Str("range", rng).
			Int("candles", len(candles)).Int("expected", want).Msg("short price history")
	}

	hist := &db.History{Ticker: ticker, Range: rng, FetchedAt: s.now().UTC(), Candles: candles}
	if err := s.store.SavePriceHistory(ctx, *hist); err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Str("range", rng).Msg("failed to store price history")
	}
	return hist, analysis.Name, rep, nil
}

// computeAll evaluates every spec concurrently over the shared read-only
// series. Results keep the order of specs.
func computeAll(series []candle.PricePoint, specs []indicator.Spec, opts indicator.ComputeOptions) ([]indicator.Overlay, error) {
	out := make([]indicator.Overlay, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i], errs[i] = indicator.Compute(series, spec, opts)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
