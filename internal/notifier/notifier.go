// Package notifier
package notifier

import "context"

// Notifier interface for sending operator notifications (e.g., Telegram).
type Notifier interface {
	Send(ctx context.Context, msg string) error
	SendWithRetry(ctx context.Context, msg string) error
	// RetryWithNotification runs action until it succeeds or the retries are
	// spent, then reports the final failure.
	RetryWithNotification(ctx context.Context, action func() error, description string) error
}

// Nop discards every message. Used when no channel is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error          { return nil }
func (Nop) SendWithRetry(context.Context, string) error { return nil }

func (Nop) RetryWithNotification(_ context.Context, action func() error, _ string) error {
	return action()
}
