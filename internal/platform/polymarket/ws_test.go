package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

func TestWSClientReconnectsAfterDrop(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the reconnect backoff")
	}

	upgrader := websocket.Upgrader{}
	bookMsg := []byte(`{"event_type":"book","asset_id":"tok-1","asks":[{"price":"0.40","size":"10"}],"timestamp":"1700000000000"}`)

	var mu sync.Mutex
	var connCount int

	srv := httptest.NewServer(http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(wr, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connCount++
		n := connCount
		mu.Unlock()

		// Drop the first connection straight away to force a reconnect.
		if n == 1 {
			_ = c.Close()
			return
		}

		// The replacement connection serves two snapshots with a gap, then
		// stays open. Both must reach the handler: if anything closed this
		// connection in between, the second write fails.
		_ = c.WriteMessage(websocket.TextMessage, bookMsg)
		time.Sleep(300 * time.Millisecond)
		_ = c.WriteMessage(websocket.TextMessage, bookMsg)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var disconnects atomic.Int32
	books := make(chan domain.OrderbookSnapshot, 8)
	client := NewWSClient(
		"ws"+strings.TrimPrefix(srv.URL, "http"),
		func(s domain.OrderbookSnapshot) { books <- s },
		nil,
		func() { disconnects.Add(1) },
	)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	for i := 0; i < 2; i++ {
		select {
		case snap := <-books:
			assert.Equal(t, "tok-1", snap.TokenID)
		case <-time.After(10 * time.Second):
			t.Fatal("no snapshot from the replacement connection")
		}
	}

	assert.Equal(t, int32(1), disconnects.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, connCount)
}

func TestWSClientSubscriptionsRestoredOnReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the reconnect backoff")
	}

	upgrader := websocket.Upgrader{}

	var mu sync.Mutex
	var connCount int
	subs := make(chan WSCommand, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(wr, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connCount++
		n := connCount
		mu.Unlock()

		for {
			var cmd WSCommand
			if err := c.ReadJSON(&cmd); err != nil {
				return
			}
			subs <- cmd
			// Drop the connection right after the first subscribe arrives.
			if n == 1 {
				_ = c.Close()
				return
			}
		}
	}))
	defer srv.Close()

	client := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil, nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.NoError(t, client.Subscribe(context.Background(), []string{"tok-1", "tok-2"}))

	// One subscribe per connection: the original and the restored one.
	for i := 0; i < 2; i++ {
		select {
		case cmd := <-subs:
			assert.Equal(t, "subscribe", cmd.Type)
			assert.Equal(t, []string{"tok-1", "tok-2"}, cmd.Assets)
		case <-time.After(10 * time.Second):
			t.Fatal("subscription not restored after reconnect")
		}
	}
}
