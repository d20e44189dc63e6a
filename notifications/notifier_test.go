package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierEnabled(t *testing.T) {
	assert.False(t, NewNotifier("", "", "", zerolog.Nop()).Enabled())
	assert.True(t, NewNotifier("https://discord.example/hook", "", "", zerolog.Nop()).Enabled())
	assert.False(t, NewNotifier("", "token", "", zerolog.Nop()).Enabled())
	assert.True(t, NewNotifier("", "token", "chat", zerolog.Nop()).Enabled())
}

func TestNotifyDiscord(t *testing.T) {
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "", "", zerolog.Nop())
	n.Notify(context.Background(), "order sent: BUY AAPL")

	assert.Equal(t, "order sent: BUY AAPL", body["content"])
}

func TestNotifyTelegram(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("", "token123", "chat456", zerolog.Nop())
	n.telegramBase = server.URL
	n.Notify(context.Background(), "hello")

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotChat)
	assert.Equal(t, "hello", gotText)
}

func TestNotifyRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "", "", zerolog.Nop())
	n.Notify(context.Background(), "retry me")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotifyFailureNeverPanics(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1/closed", "", "", zerolog.Nop())
	// Delivery failure is swallowed; the dispatch path must not notice.
	n.Notify(context.Background(), "doomed")
}
