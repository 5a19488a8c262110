package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/financeiq/internal/candle"
)

type MemoryStorage struct {
	mu sync.RWMutex

	// Histories keyed by ticker|range
	histories map[string]History
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{histories: make(map[string]History)}
}

func historyKey(ticker, rng string) string {
	return ticker + "|" + rng
}

func (m *MemoryStorage) SavePriceHistory(ctx context.Context, h History) error {
	h.Ticker = normalizeTicker(h.Ticker)
	if err := h.Validate(); err != nil {
		return err
	}
	if h.FetchedAt.IsZero() {
		h.FetchedAt = time.Now()
	}
	h.FetchedAt = h.FetchedAt.UTC()
	h.Candles = append([]candle.Candle(nil), h.Candles...)
	sort.SliceStable(h.Candles, func(i, j int) bool { return h.Candles[i].Time < h.Candles[j].Time })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[historyKey(h.Ticker, h.Range)] = h
	return nil
}

func (m *MemoryStorage) GetPriceHistory(ctx context.Context, ticker, rng string) (*History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.histories[historyKey(normalizeTicker(ticker), rng)]
	if !ok {
		return nil, ErrNotFound
	}
	h.Candles = append(make([]candle.Candle, 0, len(h.Candles)), h.Candles...)
	return &h, nil
}

func (m *MemoryStorage) DeletePriceHistory(ctx context.Context, ticker, rng string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, historyKey(normalizeTicker(ticker), rng))
	return nil
}

func (m *MemoryStorage) ListTickers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	tickers := []string{}
	for _, h := range m.histories {
		if !seen[h.Ticker] {
			seen[h.Ticker] = true
			tickers = append(tickers, h.Ticker)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

func (m *MemoryStorage) Close() error { return nil }
