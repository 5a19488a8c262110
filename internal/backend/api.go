package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amirphl/financeiq/internal/candle"
)

// Analysis is the full security analysis returned by POST /api/analyze.
type Analysis struct {
	Ticker       string              `json:"ticker"`
	Name         string              `json:"name"`
	Sector       string              `json:"sector"`
	Industry     string              `json:"industry"`
	MarketCap    float64             `json:"market_cap"`
	Technicals   map[string]any      `json:"technicals"`
	Ratios       map[string]*float64 `json:"ratios"`
	PriceHistory []candle.RawCandle  `json:"price_history"`
}

type NewsItem struct {
	Title           string   `json:"title"`
	Link            string   `json:"link"`
	Published       string   `json:"published"`
	Summary         string   `json:"summary"`
	Source          string   `json:"source,omitempty"`
	SentimentScore  float64  `json:"sentiment_score"`
	DecayMultiplier *float64 `json:"decay_multiplier,omitempty"`
	DecayedScore    *float64 `json:"decayed_score,omitempty"`
}

// News is the sentiment-scored headline feed of a ticker.
type News struct {
	Ticker         string     `json:"ticker"`
	AverageScore   float64    `json:"average_score"`
	SentimentLabel string     `json:"sentiment_label"`
	ScoredNews     []NewsItem `json:"scored_news"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Prediction is a model price forecast with its explanation.
type Prediction struct {
	Ticker            string  `json:"ticker"`
	Target            string  `json:"target"`
	CurrentPrice      float64 `json:"current_price"`
	ForecastPrice     float64 `json:"forecast_price"`
	ProjectedReturn   float64 `json:"projected_return"`
	HistoricalContext struct {
		Dates  []string  `json:"dates"`
		Prices []float64 `json:"prices"`
	} `json:"historical_context"`
	Forecast struct {
		Days   int       `json:"days"`
		Prices []float64 `json:"prices"`
	} `json:"forecast"`
	XAIExplanation struct {
		Description       string              `json:"description"`
		FeatureImportance []FeatureImportance `json:"feature_importance"`
	} `json:"xai_explanation"`
}

// MonteCarlo holds simulated future price paths.
type MonteCarlo struct {
	Paths          [][]float64 `json:"paths"`
	MeanFinalPrice float64     `json:"mean_final_price"`
	PctChanceUp    float64     `json:"pct_chance_up"`
	CurrentPrice   float64     `json:"current_price"`
}

// Divergence compares the recent price move with news sentiment.
type Divergence struct {
	Ticker          string  `json:"ticker"`
	Status          string  `json:"status"`
	DivergenceScore float64 `json:"divergence_score"`
	Message         string  `json:"message"`
	PriceReturnPct  float64 `json:"price_return_pct"`
	SentimentScore  float64 `json:"sentiment_score"`
}

type SearchResult struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	Type      string `json:"type"`
	Exchange  string `json:"exchange"`
}

type Peer struct {
	Ticker    string   `json:"ticker"`
	Price     *float64 `json:"price"`
	MarketCap *float64 `json:"market_cap"`
	PERatio   *float64 `json:"pe_ratio"`
	ForwardPE *float64 `json:"forward_pe"`
	EPS       *float64 `json:"eps"`
	Similar   int      `json:"similar"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analyze fetches price history, technicals and ratios of ticker over rng.
func (c *Client) Analyze(ctx context.Context, ticker, rng string) (*Analysis, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"ticker": t, "timeframe": rng}
	var out Analysis
	key := "analysis:" + t + ":" + rng
	if err := c.call(ctx, http.MethodPost, "/api/analyze", nil, body, key, c.ttls.Analysis, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Technicals returns the backend's technical snapshot as-is; values are
// numbers or pre-formatted strings.
func (c *Client) Technicals(ctx context.Context, ticker string) (map[string]any, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	path := "/api/technicals/" + url.PathEscape(t)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, "technicals:"+t, c.ttls.Technicals, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) News(ctx context.Context, ticker string, limit int) (*News, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("news limit %d must be positive", limit)
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out News
	path := "/api/news/" + url.PathEscape(t)
	if err := c.call(ctx, http.MethodGet, path, q, nil, fmt.Sprintf("news:%s:%d", t, limit), c.ttls.News, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Predict(ctx context.Context, ticker string, days int) (*Prediction, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("prediction horizon %d must be positive", days)
	}
	q := url.Values{"days": {strconv.Itoa(days)}}
	var out Prediction
	path := "/api/ai/predict/" + url.PathEscape(t)
	if err := c.call(ctx, http.MethodGet, path, q, nil, fmt.Sprintf("predict:%s:%d", t, days), c.ttls.Prediction, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MonteCarlo(ctx context.Context, ticker string, days, sims int) (*MonteCarlo, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if days <= 0 || sims <= 0 {
		return nil, fmt.Errorf("monte carlo days %d and sims %d must be positive", days, sims)
	}
	q := url.Values{"days": {strconv.Itoa(days)}, "sims": {strconv.Itoa(sims)}}
	var out MonteCarlo
	path := "/api/analyze/monte_carlo/" + url.PathEscape(t)
	key := fmt.Sprintf("monte_carlo:%s:%d:%d", t, days, sims)
	if err := c.call(ctx, http.MethodGet, path, q, nil, key, c.ttls.MonteCarlo, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Divergence(ctx context.Context, ticker string) (*Divergence, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	var out Divergence
	path := "/api/divergence/" + url.PathEscape(t)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, "divergence:"+t, c.ttls.Divergence, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search looks up tickers matching q. A blank query returns no results
// without a request.
func (c *Client) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []SearchResult{}, nil
	}
	var out []SearchResult
	key := "search:" + strings.ToUpper(q)
	if err := c.call(ctx, http.MethodGet, "/api/market/search", url.Values{"q": {q}}, nil, key, c.ttls.Search, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []SearchResult{}
	}
	return out, nil
}

func (c *Client) Peers(ctx context.Context, ticker string) ([]Peer, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	var out struct {
		Peers []Peer `json:"peers"`
	}
	path := "/api/market/peers/" + url.PathEscape(t)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, "peers:"+t, c.ttls.Peers, &out); err != nil {
		return nil, err
	}
	if out.Peers == nil {
		return []Peer{}, nil
	}
	return out.Peers, nil
}

// Chat sends the conversation and copies the streamed plain-text reply to w
// as it arrives.
func (c *Client) Chat(ctx context.Context, ticker string, messages []Message, w io.Writer) error {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []Message{}
	}
	body := struct {
		Ticker   string    `json:"ticker"`
		Messages []Message `json:"messages"`
	}{t, messages}

	resp, err := c.do(ctx, c.stream, http.MethodPost, "/api/ai/chat", nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to stream chat reply: %w", err)
	}
	return nil
}
