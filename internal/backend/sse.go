package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Agent event names.
const (
	EventThinking   = "thinking"
	EventFinding    = "finding"
	EventDebate     = "debate"
	EventConclusion = "conclusion"
	EventError      = "error"
)

// AgentEvent is one step of the multi-agent analysis stream.
type AgentEvent struct {
	Event   string `json:"event"`
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// ErrStopStream may be returned by an AgentAnalysis callback to end the
// stream early without an error.
var ErrStopStream = errors.New("stop stream")

// AgentAnalysis streams the multi-agent analysis of ticker, calling fn for
// every event in order. Events whose data is not valid JSON are skipped. The
// stream ends when the backend closes it, fn returns an error, or ctx is done.
func (c *Client) AgentAnalysis(ctx context.Context, ticker string, fn func(AgentEvent) error) error {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return err
	}
	path := "/agent/analyze/" + url.PathEscape(t)
	resp, err := c.do(ctx, c.stream, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	r := newSSEReader(resp.Body)
	for {
		name, data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read agent stream: %w", err)
		}

		ev := AgentEvent{Event: name}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn().Err(err).Str("event", name).Msg("skipping malformed agent event")
			continue
		}
		ev.Event = name
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
}

// sseReader splits a text/event-stream body into events.
type sseReader struct {
	sc *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &sseReader{sc: sc}
}

// Next returns the next dispatched event. An event without an explicit name
// is "message". Comments, ids and retry hints are ignored. Returns io.EOF
// when the stream ends; a trailing event without a blank line is dropped.
func (r *sseReader) Next() (name, data string, err error) {
	var lines []string
	hasData := false
	for r.sc.Scan() {
		line := strings.TrimSuffix(r.sc.Text(), "\r")
		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = "message"
			}
			return name, strings.Join(lines, "\n"), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			lines = append(lines, value)
			hasData = true
		}
	}
	if err := r.sc.Err(); err != nil {
		return "", "", err
	}
	return "", "", io.EOF
}
