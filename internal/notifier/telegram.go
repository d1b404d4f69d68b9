package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	baseURL string
	client  *http.Client
	retries int
	delay   time.Duration
	logger  *zap.Logger
}

type TelegramOption func(*TelegramNotifier)

// WithBaseURL points the notifier at another Bot API host.
func WithBaseURL(u string) TelegramOption {
	return func(t *TelegramNotifier) { t.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramNotifier) { t.client = c }
}

func WithLogger(logger *zap.Logger) TelegramOption {
	return func(t *TelegramNotifier) { t.logger = logger }
}

// WithProxy routes requests through proxyURL. Empty means direct.
func WithProxy(proxyURL string) TelegramOption {
	return func(t *TelegramNotifier) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			t.logger.Warn("Notifier | ignoring invalid proxy url", zap.String("proxy", proxyURL), zap.Error(err))
			return
		}
		t.client = &http.Client{
			Timeout:   t.client.Timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		}
	}
}

func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: retries,
		delay:   delay,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.Token)
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
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *TelegramNotifier) SendWithRetry(ctx context.Context, message string) error {
	return retry(ctx, t.retries, t.delay, func() error {
		err := t.Send(ctx, message)
		if err != nil {
			t.logger.Warn("Notifier | telegram send failed", zap.Error(err))
		}
		return err
	})
}

// RetryWithNotification retries action and alerts once if every attempt fails.
func (t *TelegramNotifier) RetryWithNotification(ctx context.Context, action func() error, description string) error {
	err := retry(ctx, t.retries, t.delay, action)
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("%s failed: %v", description, err)
	if nerr := t.SendWithRetry(ctx, msg); nerr != nil {
		t.logger.Error("Notifier | could not deliver alert", zap.String("description", description), zap.Error(nerr))
	}
	return err
}
