package solana

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// WebSocket Token Feed — real-time new-listing push events
// Poll-based discovery still runs; the feed just shortens reaction time.
// ---------------------------------------------------------------------------

// FeedConfig configures the WebSocket token feed.
type FeedConfig struct {
	WSEndpoint       string `yaml:"ws_endpoint"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	PingIntervalS    int    `yaml:"ping_interval_s"`
}

// DefaultFeedConfig returns mainnet defaults.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		WSEndpoint:       "wss://pumpportal.fun/api/data",
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
	}
}

// TokenEvent is emitted when the feed pushes a new token listing.
type TokenEvent struct {
	Mint       Pubkey    `json:"mint"`
	Symbol     string    `json:"symbol,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// TokenFeed maintains a websocket subscription to a new-listing push feed.
type TokenFeed struct {
	config FeedConfig

	mu   sync.Mutex
	conn *websocket.Conn

	eventChan chan TokenEvent
	closed    atomic.Bool

	// Stats.
	messagesRecv atomic.Int64
	reconnects   atomic.Int64
	connected    atomic.Bool
}

// NewTokenFeed creates a new token feed.
func NewTokenFeed(config FeedConfig) *TokenFeed {
	return &TokenFeed{
		config:    config,
		eventChan: make(chan TokenEvent, 256),
	}
}

// Start begins the connection loop and returns the event channel.
// The channel is closed when ctx is cancelled.
func (f *TokenFeed) Start(ctx context.Context) <-chan TokenEvent {
	go f.runLoop(ctx)
	return f.eventChan
}

// Connected reports whether the feed currently holds a live connection.
func (f *TokenFeed) Connected() bool {
	return f.connected.Load()
}

func (f *TokenFeed) runLoop(ctx context.Context) {
	defer func() {
		if f.closed.CompareAndSwap(false, true) {
			close(f.eventChan)
		}
	}()

	delay := time.Duration(f.config.ReconnectDelayMs) * time.Millisecond
	const maxDelay = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			f.disconnect()
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			log.Warn().Err(err).Msg("feed: connection failed")
			f.reconnects.Add(1)
			select {
			case <-time.After(delay):
				delay *= 2
				if delay > maxDelay {
					delay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		delay = time.Duration(f.config.ReconnectDelayMs) * time.Millisecond
		f.readLoop(ctx)
	}
}

func (f *TokenFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.config.WSEndpoint, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	f.connected.Store(true)

	log.Info().Str("endpoint", f.config.WSEndpoint).Msg("feed: connected")
	return nil
}

func (f *TokenFeed) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	f.connected.Store(false)
}

// feedMessage is the wire shape of a push event.
type feedMessage struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol"`
	TxType string `json:"txType"`
}

func (f *TokenFeed) readLoop(ctx context.Context) {
	defer f.disconnect()

	pingInterval := time.Duration(f.config.PingIntervalS) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	// The pinger lives exactly as long as this connection. Ticks alone are
	// not enough to unblock it once the ticker stops.
	pingDone := make(chan struct{})
	defer close(pingDone)

	go func() {
		for {
			select {
			case <-pingDone:
				return
			case <-pingTicker.C:
				f.mu.Lock()
				conn := f.conn
				f.mu.Unlock()
				if conn == nil {
					return
				}
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("feed: read error, reconnecting")
			}
			return
		}

		f.messagesRecv.Add(1)

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Mint == "" {
			continue
		}
		if msg.TxType != "" && msg.TxType != "create" {
			continue
		}

		event := TokenEvent{
			Mint:       Pubkey(msg.Mint),
			Symbol:     msg.Symbol,
			DetectedAt: time.Now(),
		}

		select {
		case f.eventChan <- event:
		default:
			log.Warn().Str("mint", msg.Mint).Msg("feed: event channel full, dropping")
		}
	}
}
