package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSend_PostsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{APIURL: srv.URL, BotToken: "TOKEN", ChatID: "42"}, zaptest.NewLogger(t), nil)
	require.NoError(t, tg.Send(context.Background(), "🔦 Lamp ON"))

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "🔦 Lamp ON", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSend_NotConfigured(t *testing.T) {
	tg := NewTelegram(TelegramOptions{BotToken: "TOKEN"}, nil, nil)
	assert.ErrorIs(t, tg.Send(context.Background(), "x"), ErrNotConfigured)

	_, err := NewTelegram(TelegramOptions{}, nil, nil).CheckConnection(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_APIErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{APIURL: srv.URL, BotToken: "T", ChatID: "1"}, nil, nil)
	err := tg.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSend_NoRetryAndBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"description":"boom"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{
		APIURL: srv.URL, BotToken: "T", ChatID: "1",
		FailThreshold: 2, OpenTimeout: time.Minute,
	}, nil, nil)

	assert.Error(t, tg.Send(context.Background(), "a"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Error(t, tg.Send(context.Background(), "b"))

	err := tg.Send(context.Background(), "c")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT/getMe", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"pju_bot"}}`))
	}))
	defer srv.Close()

	name, err := NewTelegram(TelegramOptions{APIURL: srv.URL, BotToken: "T"}, nil, nil).CheckConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pju_bot", name)
}

func TestLog_NeverFails(t *testing.T) {
	assert.NoError(t, NewLog(zaptest.NewLogger(t)).Send(context.Background(), "hello"))
}
