package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// BookHandler is called when a full orderbook snapshot is received.
type BookHandler func(domain.OrderbookSnapshot)

// ChangeHandler is called when an incremental price level update is received.
type ChangeHandler func(domain.PriceChange)

// DisconnectHandler is called when the connection drops, before any reconnect
// attempt. Consumers use it to invalidate state derived from the dead stream.
type DisconnectHandler func()

// WSClient is a WebSocket client for the Polymarket CLOB market data feed.
// It manages the connection lifecycle and subscriptions, and dispatches book
// snapshots and price changes to its handlers from a single read goroutine.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []WSCommand

	onBook       BookHandler
	onChange     ChangeHandler
	onDisconnect DisconnectHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market". The handlers are
// invoked sequentially on the feed's read goroutine; all may be nil.
func NewWSClient(wsURL string, onBook BookHandler, onChange ChangeHandler, onDisconnect DisconnectHandler) *WSClient {
	return &WSClient{
		wsURL:        wsURL,
		onBook:       onBook,
		onChange:     onChange,
		onDisconnect: onDisconnect,
		done:         make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously registered subscriptions are restored.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	// Keep-alive via pong deadline extension.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	for _, cmd := range w.subscriptions {
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to the market channel for the given asset IDs and
// records the subscription for restoration after a reconnect.
func (w *WSClient) Subscribe(ctx context.Context, assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	cmd := WSCommand{
		Type:    "subscribe",
		Channel: "market",
		Assets:  assetIDs,
	}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	w.subscriptions = append(w.subscriptions, cmd)

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches them
// to the handlers. It runs in its own goroutine; on disconnect it attempts to
// reconnect with exponential backoff.
//
// The loop owns exactly the connection it was started with. It must never
// touch w.conn again: once reconnect installs a fresh connection, a new
// readLoop owns that one, and closing it from here would kill the live feed.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			if w.onDisconnect != nil {
				w.onDisconnect()
			}
			w.reconnect()
			return // a fresh readLoop is started by reconnect -> Connect
		}

		w.dispatch(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive. Like
// readLoop it pings only the connection it was started with and dies with it.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch parses a raw frame and routes each event to the matching handler.
// The feed may batch several events into one JSON array.
func (w *WSClient) dispatch(raw []byte) {
	trimmed := raw
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\n' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return
		}
		for _, item := range batch {
			w.dispatchOne(item)
		}
		return
	}

	w.dispatchOne(trimmed)
}

func (w *WSClient) dispatchOne(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
		MsgType   string `json:"msg_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // silently drop unparseable messages
	}

	msgType := envelope.EventType
	if msgType == "" {
		msgType = envelope.MsgType
	}

	switch msgType {
	case "book":
		var book BookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return
		}
		if w.onBook != nil {
			w.onBook(book.ToDomainSnapshot())
		}

	case "price_change":
		var pc PriceChangeMessage
		if err := json.Unmarshal(raw, &pc); err != nil {
			return
		}
		if w.onChange != nil {
			w.onChange(pc.ToDomainChange())
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
