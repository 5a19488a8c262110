// Package backend is a typed client for the FinanceIQ analytics backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amirphl/financeiq/internal/cache"
)

// RequestIDHeader carries a per-request uuid to the backend.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 4 << 10

// TTLs are the per-endpoint cache lifetimes. Zero disables caching for that
// endpoint.
type TTLs struct {
	Analysis   time.Duration
	Technicals time.Duration
	News       time.Duration
	Prediction time.Duration
	MonteCarlo time.Duration
	Divergence time.Duration
	Search     time.Duration
	Peers      time.Duration
}

// DefaultTTLs mirror the lifetimes the backend applies to its own cache.
var DefaultTTLs = TTLs{
	Analysis:   5 * time.Minute,
	Technicals: 5 * time.Minute,
	News:       10 * time.Minute,
	Prediction: 12 * time.Hour,
	MonteCarlo: time.Hour,
	Divergence: 30 * time.Minute,
	Search:     time.Hour,
	Peers:      24 * time.Hour,
}

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	cache   cache.Cache
	ttls    TTLs
	logger  zerolog.Logger
}

type Option func(*Client)

// WithCache serves cacheable reads from c.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithTTLs(ttls TTLs) Option {
	return func(cl *Client) { cl.ttls = ttls }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithHTTPClient replaces the client used for JSON calls. Streaming calls keep
// their own client without an overall timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// New creates a client for the backend at baseURL. timeout bounds every
// non-streaming call.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		ttls:    DefaultTTLs,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalizeTicker upper-cases and trims a ticker symbol.
func normalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", ErrEmptyTicker
	}
	return t, nil
}

// call performs one JSON request. A non-empty cacheKey with a positive ttl
// lets the response be served from and stored to the cache.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, cacheKey string, ttl time.Duration, out any) error {
	useCache := c.cache != nil && cacheKey != "" && ttl > 0
	if useCache {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			if err := decode(path, data, out); err == nil {
				c.logger.Debug().Str("path", path).Str("key", cacheKey).Msg("backend cache hit")
				return nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("backend cache read failed")
		}
	}

	resp, err := c.do(ctx, c.http, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if err := decode(path, data, out); err != nil {
		return err
	}

	if useCache {
		if err := c.cache.Set(ctx, cacheKey, data, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("backend cache write failed")
		}
	}
	return nil
}

// do sends the request and converts non-2xx responses into *APIError. The
// caller owns the returned body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body any) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	begin := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("backend request failed")
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(begin)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// decode unmarshals data into out, surfacing an "error" field of an object
// body as an *APIError.
func decode(path string, data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe struct {
			Error *string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &probe); err == nil && probe.Error != nil {
			return &APIError{Status: http.StatusOK, Path: path, Body: *probe.Error}
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformedBody, err)
	}
	return nil
}
