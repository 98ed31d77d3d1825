package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFeedServer runs a websocket endpoint driven by handle, which owns the
// accepted connection. Returns the ws:// URL and a counter of accepted
// connections.
func newFeedServer(t *testing.T, handle func(conn *websocket.Conn)) (string, *atomic.Int64) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	accepted := &atomic.Int64{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted.Add(1)
		handle(conn)
	}))
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http"), accepted
}

// ---------------------------------------------------------------------------
// TestTokenFeed_DeliversCreateEvents
// ---------------------------------------------------------------------------
func TestTokenFeed_DeliversCreateEvents(t *testing.T) {
	url, _ := newFeedServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		msgs := []feedMessage{
			{Mint: "MintA", Symbol: "AAA", TxType: "create"},
			{Mint: "MintB", Symbol: "BBB", TxType: "buy"}, // not a listing
			{Mint: "MintC", Symbol: "CCC"},
		}
		for _, m := range msgs {
			data, _ := json.Marshal(m)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	})

	feed := NewTokenFeed(FeedConfig{WSEndpoint: url, ReconnectDelayMs: 1, PingIntervalS: 30})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := feed.Start(ctx)

	var got []TokenEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("timed out with %d events", len(got))
		}
	}

	assert.Equal(t, Pubkey("MintA"), got[0].Mint)
	assert.Equal(t, Pubkey("MintC"), got[1].Mint)
}

// ---------------------------------------------------------------------------
// TestTokenFeed_ReconnectDoesNotLeakGoroutines
// Dropped connections must not leave a pinger behind per cycle
// ---------------------------------------------------------------------------
func TestTokenFeed_ReconnectDoesNotLeakGoroutines(t *testing.T) {
	url, accepted := newFeedServer(t, func(conn *websocket.Conn) {
		conn.Close() // force an immediate read error and reconnect
	})

	feed := NewTokenFeed(FeedConfig{WSEndpoint: url, ReconnectDelayMs: 1, PingIntervalS: 1})
	ctx, cancel := context.WithCancel(context.Background())
	events := feed.Start(ctx)

	require.Eventually(t, func() bool { return accepted.Load() >= 5 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	base := runtime.NumGoroutine()

	require.Eventually(t, func() bool { return accepted.Load() >= 25 }, 10*time.Second, 5*time.Millisecond)

	// Twenty further reconnect cycles must not grow the goroutine count.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base+3
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
