// Package notifier
package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Notifier interface for sending alerts (e.g., Telegram).
type Notifier interface {
	Send(ctx context.Context, msg string) error
	SendWithRetry(ctx context.Context, msg string) error
	RetryWithNotification(ctx context.Context, action func() error, description string) error
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retry calls fn up to attempts times, waiting delay between calls.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// LogNotifier writes alerts to the logger. Used when no Telegram bot is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(_ context.Context, msg string) error {
	l.logger.Warn("Notifier | alert", zap.String("message", msg))
	return nil
}

func (l *LogNotifier) SendWithRetry(ctx context.Context, msg string) error {
	return l.Send(ctx, msg)
}

func (l *LogNotifier) RetryWithNotification(ctx context.Context, action func() error, description string) error {
	if err := action(); err != nil {
		_ = l.Send(ctx, fmt.Sprintf("%s failed: %v", description, err))
		return err
	}
	return nil
}
