package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommend(t *testing.T) {
	var gotReq map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommend", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{
			"ok": true,
			"snapshot": {"date": "2026-08-24"},
			"plan": {"entry_price": 100.5, "target_price": 120, "stop_price": 90},
			"confidence": 0.8,
			"status": "ready"
		}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	rec, err := c.Recommend(context.Background(), "aapl", "sharpe", 250)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", gotReq["code"])
	assert.Equal(t, "sharpe", gotReq["optimize"])
	assert.Equal(t, float64(250), gotReq["lookback_bars"])

	assert.True(t, rec.OK)
	assert.Equal(t, "2026-08-24", rec.AsofDate)
	require.NotNil(t, rec.EntryPrice)
	assert.Equal(t, 100.5, *rec.EntryPrice)
	require.NotNil(t, rec.TargetPrice)
	assert.Equal(t, 120.0, *rec.TargetPrice)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.8, *rec.Confidence)
	assert.Equal(t, "ready", rec.Status)
	assert.NotEmpty(t, rec.Raw)
}

func TestRecommendNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error": "insufficient history"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	rec, err := c.Recommend(context.Background(), "NEW", "", 0)
	require.NoError(t, err)
	assert.False(t, rec.OK)
	assert.Equal(t, "insufficient history", rec.Err)
	assert.Nil(t, rec.EntryPrice)
}

func TestRecommendFillsDefaultError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, zerolog.Nop())
	rec, err := c.Recommend(context.Background(), "X", "", 0)
	require.NoError(t, err)
	assert.False(t, rec.OK)
	assert.NotEmpty(t, rec.Err)
}

func TestRecommendTransportErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, zerolog.Nop())
		_, err := c.Recommend(context.Background(), "X", "", 0)
		assert.Error(t, err)
	})

	t.Run("connection refused", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", zerolog.Nop())
		_, err := c.Recommend(context.Background(), "X", "", 0)
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer server.Close()

		c := NewClient(server.URL, zerolog.Nop())
		_, err := c.Recommend(context.Background(), "X", "", 0)
		assert.Error(t, err)
	})
}
