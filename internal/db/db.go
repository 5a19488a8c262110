// Package db
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/financeiq/internal/candle"
)

var ErrNotFound = errors.New("price history not found")

// History is the last successfully fetched, normalized price history of one
// ticker over one look-back range.
type History struct {
	Ticker    string
	Range     string
	FetchedAt time.Time
	Candles   []candle.Candle
}

// Validate checks the key fields and every candle.
func (h *History) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" {
		return errors.New("ticker cannot be empty")
	}
	if strings.TrimSpace(h.Range) == "" {
		return errors.New("range cannot be empty")
	}
	for i := range h.Candles {
		if err := h.Candles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d (%s): %w", i, h.Candles[i].Time, err)
		}
	}
	return nil
}

// Storage is the interface for all persistent storage.
type Storage interface {
	// SavePriceHistory replaces any stored history of h.Ticker and h.Range.
	SavePriceHistory(ctx context.Context, h History) error
	// GetPriceHistory returns ErrNotFound when nothing is stored.
	GetPriceHistory(ctx context.Context, ticker, rng string) (*History, error)
	DeletePriceHistory(ctx context.Context, ticker, rng string) error
	// ListTickers returns every ticker with stored history, sorted.
	ListTickers(ctx context.Context) ([]string, error)
	Close() error
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
