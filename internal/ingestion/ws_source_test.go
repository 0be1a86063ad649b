package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer serves frames to one client, then either closes normally or
// waits for the client to hang up.
func feedServer(t *testing.T, frames []string, closeAfter bool, subscribed chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if subscribed != nil {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subscribed <- string(msg)
		}

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func frame(t *testing.T, sec int, bid float64) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"ts":          t0.Add(time.Duration(sec) * time.Second).UnixMilli(),
		"bid":         bid,
		"ask":         bid + 0.1,
		"bid_vol":     10,
		"ask_vol":     12,
		"trade_price": bid,
		"trade_size":  1.5,
	})
	require.NoError(t, err)
	return string(b)
}

func TestWSSource_StopsAtMaxTicks(t *testing.T) {
	frames := []string{frame(t, 0, 100), frame(t, 1, 101), frame(t, 2, 102), frame(t, 3, 103)}
	srv := feedServer(t, frames, false, nil)
	defer srv.Close()

	src := NewWSSource(WSConfig{URL: wsURL(srv), MaxTicks: 3}, quietLogger())
	ticks, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, ticks, 3)
	assert.Equal(t, t0, ticks[0].Timestamp)
	assert.Equal(t, 102.0, ticks[2].Bid)
	assert.Equal(t, 12.0, ticks[2].AskVol)
}

func TestWSSource_SkipsMalformedAndSubscribes(t *testing.T) {
	frames := []string{
		"not json",
		`{"bid": 1, "ask": 2}`,
		`{"timestamp": "2025-01-02T09:30:05Z", "bid": 99, "ask": 100, "bid_vol": 1, "ask_vol": 1}`,
	}
	subscribed := make(chan string, 1)
	srv := feedServer(t, frames, true, subscribed)
	defer srv.Close()

	cfg := WSConfig{URL: wsURL(srv), MaxTicks: 10, Subscribe: []byte(`{"op":"subscribe"}`)}
	ticks, err := NewWSSource(cfg, quietLogger()).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `{"op":"subscribe"}`, <-subscribed)
	require.Len(t, ticks, 1, "normal close ends the capture early")
	assert.Equal(t, t0.Add(5*time.Second), ticks[0].Timestamp)
}

func TestWSSource_RequiresBound(t *testing.T) {
	_, err := NewWSSource(WSConfig{URL: "ws://127.0.0.1:1"}, quietLogger()).Fetch(context.Background())
	assert.True(t, errors.Is(err, ErrUnbounded))
}

func TestWSSource_MaxDuration(t *testing.T) {
	srv := feedServer(t, []string{frame(t, 0, 100)}, false, nil)
	defer srv.Close()

	cfg := WSConfig{URL: wsURL(srv), MaxTicks: 100, MaxDuration: 200 * time.Millisecond}
	start := time.Now()
	ticks, err := NewWSSource(cfg, quietLogger()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, ticks, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWSSource_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWSSource(WSConfig{URL: wsURL(srv), MaxTicks: 1}, quietLogger()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial")
}
