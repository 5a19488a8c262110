package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/financeiq/internal/candle"
	"github.com/amirphl/financeiq/internal/db/conf"
	_ "github.com/lib/pq"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction executes a function with proper transaction management
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *Default) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Default) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

func (p *Default) queryRowWithTransaction(ctx context.Context, query string, args ...any) *sql.Row {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return p.db.QueryRowContext(ctx, query, args...)
}

// Default is the PostgreSQL Storage.
type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	if c.DB == nil {
		return nil, errors.New("nil database handle")
	}
	return &Default{db: c.DB}, nil
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, connStr string, maxOpen, maxIdle int) (*Default, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(conf.Config{DB: db, ConnStr: connStr})
}

func (p *Default) GetDB() *sql.DB {
	return p.db
}

func (p *Default) Close() error {
	return p.db.Close()
}

func (p *Default) SavePriceHistory(ctx context.Context, h History) error {
	h.Ticker = normalizeTicker(h.Ticker)
	if err := h.Validate(); err != nil {
		return err
	}
	if h.FetchedAt.IsZero() {
		h.FetchedAt = time.Now()
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM price_history WHERE ticker=$1 AND look_back=$2`, h.Ticker, h.Range); err != nil {
			return fmt.Errorf("failed to clear price history of %s %s: %w", h.Ticker, h.Range, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO price_history (ticker, look_back, candle_time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (ticker, look_back, candle_time) DO UPDATE SET
				open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
				close=EXCLUDED.close, volume=EXCLUDED.volume
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, c := range h.Candles {
			if _, err := stmt.ExecContext(ctx,
				h.Ticker, h.Range, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, h.Ticker, h.Range, c.Time, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_history_fetches (ticker, look_back, fetched_at, candle_count)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (ticker, look_back) DO UPDATE SET
				fetched_at=EXCLUDED.fetched_at, candle_count=EXCLUDED.candle_count
		`, h.Ticker, h.Range, h.FetchedAt.UTC(), len(h.Candles)); err != nil {
			return fmt.Errorf("failed to record fetch of %s %s: %w", h.Ticker, h.Range, err)
		}
		return nil
	})
}

func (p *Default) GetPriceHistory(ctx context.Context, ticker, rng string) (*History, error) {
	h := History{Ticker: normalizeTicker(ticker), Range: rng}

	var count int
	err := p.queryRowWithTransaction(ctx,
		`SELECT fetched_at, candle_count FROM price_history_fetches WHERE ticker=$1 AND look_back=$2`,
		h.Ticker, h.Range).Scan(&h.FetchedAt, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch of %s %s: %w", h.Ticker, h.Range, err)
	}
	h.FetchedAt = h.FetchedAt.UTC()

	rows, err := p.queryWithTransaction(ctx, `
		SELECT candle_time, open, high, low, close, volume
		FROM price_history
		WHERE ticker=$1 AND look_back=$2
		ORDER BY candle_time COLLATE "C" ASC`, h.Ticker, h.Range)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	h.Candles = make([]candle.Candle, 0, count)
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		h.Candles = append(h.Candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}
	return &h, nil
}

func (p *Default) DeletePriceHistory(ctx context.Context, ticker, rng string) error {
	ticker = normalizeTicker(ticker)
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM price_history WHERE ticker=$1 AND look_back=$2`, ticker, rng); err != nil {
			return fmt.Errorf("failed to delete price history: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM price_history_fetches WHERE ticker=$1 AND look_back=$2`, ticker, rng); err != nil {
			return fmt.Errorf("failed to delete fetch record: %w", err)
		}
		return nil
	})
}

func (p *Default) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := p.queryWithTransaction(ctx,
		`SELECT DISTINCT ticker FROM price_history_fetches ORDER BY ticker COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticker rows: %w", err)
	}
	return tickers, nil
}
