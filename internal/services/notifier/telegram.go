package notifier

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

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
)

var ErrNotConfigured = errors.New("notifier: telegram bot token or chat id not set")

type TelegramOptions struct {
	APIURL   string
	BotToken string
	ChatID   string
	Timeout  time.Duration
	// Breaker trips after FailThreshold consecutive failures and stays open
	// for OpenTimeout.
	FailThreshold uint32
	OpenTimeout   time.Duration
}

// Telegram sends alerts through the Bot API. Each Send is a single attempt.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewTelegram(opts TelegramOptions, logger *zap.Logger, m *metrics.Metrics) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.APIURL == "" {
		opts.APIURL = "https://api.telegram.org"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FailThreshold == 0 {
		opts.FailThreshold = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	logger = logger.Named("telegram")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "telegram",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.FailThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			m.SetCircuitBreakerState(name, float64(to))
		},
	})

	return &Telegram{
		baseURL: strings.TrimRight(opts.APIURL, "/"),
		token:   strings.TrimSpace(opts.BotToken),
		chatID:  strings.TrimSpace(opts.ChatID),
		client:  &http.Client{Timeout: opts.Timeout},
		cb:      cb,
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Send posts text to the configured chat with HTML parse mode.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.token == "" || t.chatID == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	_, err = t.cb.Execute(func() (interface{}, error) {
		return t.call(ctx, http.MethodPost, "sendMessage", body)
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.logger.Debug("notification sent")
	return nil
}

// CheckConnection calls getMe and returns the bot username.
func (t *Telegram) CheckConnection(ctx context.Context) (string, error) {
	if t.token == "" {
		return "", ErrNotConfigured
	}
	res, err := t.call(ctx, http.MethodGet, "getMe", nil)
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %w", err)
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(res.Result, &me); err != nil {
		return "", fmt.Errorf("telegram getMe: decode result: %w", err)
	}
	return me.Username, nil
}

func (t *Telegram) call(ctx context.Context, method, endpoint string, body []byte) (*apiResponse, error) {
	target := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, endpoint)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the token; keep it out of logs
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, uerr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("HTTP %d: undecodable body", resp.StatusCode)
	}
	if !out.OK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, out.Description)
	}
	return &out, nil
}
