package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	Retries int
	Delay   time.Duration

	apiURL string
	client *http.Client
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration) *TelegramNotifier {
	if retries < 1 {
		retries = 1
	}
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		Retries: retries,
		Delay:   delay,
		apiURL:  defaultTelegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.Token)
	form := url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *TelegramNotifier) SendWithRetry(ctx context.Context, message string) error {
	return retry(ctx, t.Retries, t.Delay, func() error { return t.Send(ctx, message) })
}

func (t *TelegramNotifier) RetryWithNotification(ctx context.Context, action func() error, description string) error {
	err := retry(ctx, t.Retries, t.Delay, action)
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("FinanceIQ: %s failed after %d attempts: %v", description, t.Retries, err)
	if nerr := t.SendWithRetry(ctx, msg); nerr != nil {
		return fmt.Errorf("%w (notification failed: %v)", err, nerr)
	}
	return err
}

// retry calls fn up to attempts times, sleeping delay between failures.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
