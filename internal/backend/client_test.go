package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/financeiq/internal/cache"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second, opts...)
}

const analysisBody = `{
	"ticker": "AAPL",
	"name": "Apple Inc.",
	"sector": "Technology",
	"industry": "Consumer Electronics",
	"market_cap": 3000000000000,
	"technicals": {"rsi": 55.2, "price": 190.5, "trend": "Bullish"},
	"ratios": {"pe": 29.1, "pb": null},
	"price_history": [
		{"time": "2024-01-02", "open": 187.1, "high": 188.4, "low": 183.9, "close": 185.6, "volume": 82488700},
		{"time": "2024-01-03", "open": 184.2, "high": 185.9, "low": 183.4, "close": 184.3, "volume": 58414500}
	]
}`

func TestAnalyze(t *testing.T) {
	var got struct {
		Ticker    string `json:"ticker"`
		Timeframe string `json:"timeframe"`
	}
	var requestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get(RequestIDHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, analysisBody)
	})

	a, err := c.Analyze(context.Background(), " aapl ", "6M")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, "6M", got.Timeframe)
	_, err = uuid.Parse(requestID)
	assert.NoError(t, err, "request id should be a uuid")

	assert.Equal(t, "Apple Inc.", a.Name)
	assert.Equal(t, "Technology", a.Sector)
	assert.Equal(t, 3e12, a.MarketCap)
	require.Len(t, a.PriceHistory, 2)
	assert.Equal(t, "2024-01-02", a.PriceHistory[0].Key())
	require.NotNil(t, a.PriceHistory[1].Close)
	assert.Equal(t, 184.3, *a.PriceHistory[1].Close)
	assert.Nil(t, a.Ratios["pb"])
	assert.Equal(t, "Bullish", a.Technicals["trend"])
}

func TestAnalyze_ErrorField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error": "No data found for ZZZZ"}`)
	})
	_, err := c.Analyze(context.Background(), "zzzz", "1Y")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "/api/analyze", apiErr.Path)
	assert.Equal(t, "No data found for ZZZZ", apiErr.Body)
}

func TestClient_Non2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	_, err := c.Divergence(context.Background(), "AAPL")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "/api/divergence/AAPL", apiErr.Path)
	assert.Equal(t, "upstream exploded", apiErr.Body)
	assert.False(t, IsNotFound(err))
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, http.NotFound)
	_, err := c.Technicals(context.Background(), "AAPL")
	assert.True(t, IsNotFound(err))
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	_, err := c.News(context.Background(), "AAPL", 10)
	assert.ErrorIs(t, err, ErrMalformedBody)
}

func TestClient_EmptyTicker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx := context.Background()

	_, err := c.Analyze(ctx, "  ", "1Y")
	assert.ErrorIs(t, err, ErrEmptyTicker)
	_, err = c.Technicals(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyTicker)
	_, err = c.News(ctx, "", 5)
	assert.ErrorIs(t, err, ErrEmptyTicker)
	_, err = c.Predict(ctx, "", 10)
	assert.ErrorIs(t, err, ErrEmptyTicker)
	_, err = c.MonteCarlo(ctx, "", 30, 50)
	assert.ErrorIs(t, err, ErrEmptyTicker)
	_, err = c.Peers(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyTicker)
	err = c.Chat(ctx, "", nil, io.Discard)
	assert.ErrorIs(t, err, ErrEmptyTicker)
	err = c.AgentAnalysis(ctx, "", func(AgentEvent) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyTicker)

	assert.Zero(t, calls.Load())
}

func TestNews(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/news/TSLA", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"ticker":"TSLA","average_score":-0.1234,"sentiment_label":"Negative",
			"scored_news":[{"title":"Recall","link":"https://x","published":"Mon","summary":"s","sentiment_score":-0.9,"decayed_score":-0.45}]}`)
	})
	n, err := c.News(context.Background(), "tsla", 5)
	require.NoError(t, err)
	assert.Equal(t, "Negative", n.SentimentLabel)
	assert.InDelta(t, -0.1234, n.AverageScore, 1e-9)
	require.Len(t, n.ScoredNews, 1)
	require.NotNil(t, n.ScoredNews[0].DecayedScore)
	assert.InDelta(t, -0.45, *n.ScoredNews[0].DecayedScore, 1e-9)

	_, err = c.News(context.Background(), "TSLA", 0)
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/predict/NVDA", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("days"))
		_, _ = io.WriteString(w, `{"ticker":"NVDA","current_price":100,"forecast_price":110,"projected_return":10,
			"historical_context":{"dates":["2024-01-02"],"prices":[100]},
			"forecast":{"days":10,"prices":[101,102]},
			"xai_explanation":{"description":"d","feature_importance":[{"feature":"Volume","importance":0.4}]}}`)
	})
	p, err := c.Predict(context.Background(), "NVDA", 10)
	require.NoError(t, err)
	assert.Equal(t, 110.0, p.ForecastPrice)
	assert.Equal(t, 10, p.Forecast.Days)
	assert.Equal(t, []float64{101, 102}, p.Forecast.Prices)
	require.Len(t, p.XAIExplanation.FeatureImportance, 1)
	assert.Equal(t, "Volume", p.XAIExplanation.FeatureImportance[0].Feature)
}

func TestMonteCarlo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze/monte_carlo/MSFT", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		assert.Equal(t, "50", r.URL.Query().Get("sims"))
		_, _ = io.WriteString(w, `{"paths":[[1,2],[1,0.5]],"mean_final_price":1.25,"pct_chance_up":50,"current_price":1}`)
	})
	mc, err := c.MonteCarlo(context.Background(), "MSFT", 30, 50)
	require.NoError(t, err)
	assert.Len(t, mc.Paths, 2)
	assert.Equal(t, 50.0, mc.PctChanceUp)

	_, err = c.MonteCarlo(context.Background(), "MSFT", 0, 50)
	assert.Error(t, err)
}

func TestSearchAndPeers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/market/search":
			assert.Equal(t, "app", r.URL.Query().Get("q"))
			_, _ = io.WriteString(w, `[{"symbol":"AAPL","shortname":"Apple Inc.","type":"EQUITY","exchange":"NMS"}]`)
		case "/api/market/peers/AAPL":
			_, _ = io.WriteString(w, `{"peers":[{"ticker":"AAPL","price":190,"market_cap":null,"similar":0},{"ticker":"MSFT","price":400,"similar":1}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	results, err := c.Search(ctx, " app ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Apple Inc.", results[0].ShortName)

	empty, err := c.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	peers, err := c.Peers(ctx, "aapl")
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Nil(t, peers[0].MarketCap)
	assert.Equal(t, 1, peers[1].Similar)
}

func TestClient_CachesReads(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"ticker":"AAPL","status":"Neutral","divergence_score":0,"message":"m"}`)
	}, WithCache(cache.NewMemory()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := c.Divergence(ctx, "aapl")
		require.NoError(t, err)
		assert.Equal(t, "Neutral", d.Status)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := c.Divergence(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"error":"temporarily unavailable"}`)
			return
		}
		_, _ = io.WriteString(w, analysisBody)
	}, WithCache(cache.NewMemory()))
	ctx := context.Background()

	_, err := c.Analyze(ctx, "AAPL", "1Y")
	require.Error(t, err)
	a, err := c.Analyze(ctx, "AAPL", "1Y")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", a.Ticker)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ZeroTTLBypassesCache(t *testing.T) {
	var calls atomic.Int32
	mem := cache.NewMemory()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"rsi": 40}`)
	}, WithCache(mem), WithTTLs(TTLs{}))

	for i := 0; i < 2; i++ {
		_, err := c.Technicals(context.Background(), "AAPL")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, mem.Len())
}

func TestChat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ticker   string    `json:"ticker"`
			Messages []Message `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AMD", body.Ticker)
		assert.Equal(t, []Message{{Role: "user", Content: "Summarize"}}, body.Messages)

		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"AMD ", "looks ", "range-bound."} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
		}
	})

	var buf bytes.Buffer
	err := c.Chat(context.Background(), "amd", []Message{{Role: "user", Content: "Summarize"}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "AMD looks range-bound.", buf.String())
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Technicals(ctx, "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline"))
}
