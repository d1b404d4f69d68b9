// Package exchange
//
// Depth feed notes:
//   - Wallex speaks Socket.IO v4 over a raw websocket. The watcher performs the
//     "40" handshake itself and answers engine.io pings ("2") with pongs ("3").
//   - Every Broadcaster frame carries a full side snapshot, so each frame
//     replaces the stored book instead of patching it.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/depthbook/internal/metrics"
	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	WallexSocketURL = "wss://api.wallex.ir/socket.io/?EIO=4&transport=websocket"

	BuyDepth  = "buyDepth"
	SellDepth = "sellDepth"

	pingInterval  = 20 * time.Second
	pongTimeout   = 10 * time.Second
	readTimeout   = 30 * time.Second
	minRetryDelay = time.Second
	maxRetryDelay = 60 * time.Second
)

var ErrPongTimeout = errors.New("no pong since last ping")

// DepthWatcher interface for market depth monitoring
type DepthWatcher interface {
	IsConnected() bool
	Health() error
	Close()
	Start(ctx context.Context) error
	Run(ctx context.Context) error
}

// ConnectionState represents the state of the websocket connection
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// NormalizeSymbol converts e.g. btc-usdt to BTCUSDT for Wallex API
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// DepthTypeFor maps a book side to its Wallex channel suffix. Bids rest on
// the buy side.
func DepthTypeFor(side orderbook.Side) string {
	if side == orderbook.Bids {
		return BuyDepth
	}
	return SellDepth
}

func DepthKey(symbol string, side orderbook.Side) string {
	return fmt.Sprintf("%s@%s", NormalizeSymbol(symbol), DepthTypeFor(side))
}

// GetBuyDepthKey returns the normalized key for buy depth data
func GetBuyDepthKey(symbol string) string {
	return DepthKey(symbol, orderbook.Bids)
}

// GetSellDepthKey returns the normalized key for sell depth data
func GetSellDepthKey(symbol string) string {
	return DepthKey(symbol, orderbook.Asks)
}

// OrderBookEntry represents a single depth row
type OrderBookEntry struct {
	Quantity float64 `json:"quantity"`
	Price    string  `json:"price"`
	Sum      float64 `json:"sum"`
}

// UnmarshalJSON accepts the price as a string or a number
func (o *OrderBookEntry) UnmarshalJSON(data []byte) error {
	var temp struct {
		Quantity json.Number `json:"quantity"`
		Price    any         `json:"price"`
		Sum      json.Number `json:"sum"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	var err error
	if o.Quantity, err = numberOrZero(temp.Quantity); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	if o.Sum, err = numberOrZero(temp.Sum); err != nil {
		return fmt.Errorf("sum: %w", err)
	}

	switch v := temp.Price.(type) {
	case string:
		o.Price = v
	case float64:
		o.Price = fmt.Sprintf("%.8f", v)
	case nil:
		return fmt.Errorf("missing price")
	default:
		o.Price = fmt.Sprintf("%v", v)
	}
	return nil
}

func numberOrZero(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	return n.Float64()
}

// OrderBook is the keyed shape of a depth payload
type OrderBook map[string]OrderBookEntry

// WallexDepthWatcher streams one symbol/side from Wallex into a BookState.
type WallexDepthWatcher struct {
	conn    *websocket.Conn
	cancel  context.CancelFunc
	state   *BookState
	symbol  string
	side    orderbook.Side
	url     string
	dialer  *websocket.Dialer
	logger  *zap.Logger
	metrics *metrics.Metrics

	writeMu sync.Mutex

	mu        sync.RWMutex
	closed    bool
	healthErr error
	connState ConnectionState
	lastPing  time.Time
	lastPong  time.Time
}

var _ DepthWatcher = (*WallexDepthWatcher)(nil)

type WatcherOption func(*WallexDepthWatcher)

func WithURL(u string) WatcherOption {
	return func(w *WallexDepthWatcher) { w.url = u }
}

func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *WallexDepthWatcher) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *WallexDepthWatcher) { w.metrics = m }
}

func NewWallexDepthWatcher(state *BookState, symbol string, side orderbook.Side, opts ...WatcherOption) *WallexDepthWatcher {
	w := &WallexDepthWatcher{
		state:     state,
		symbol:    symbol,
		side:      side,
		url:       WallexSocketURL,
		dialer:    websocket.DefaultDialer,
		logger:    zap.NewNop(),
		connState: Disconnected,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("channel", w.channel()))
	return w
}

func (w *WallexDepthWatcher) channel() string {
	return DepthKey(w.symbol, w.side)
}

// IsConnected returns true if the websocket is currently connected
func (w *WallexDepthWatcher) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connState == Connected
}

// Health returns the last connection error, or ErrPongTimeout when a ping
// has gone unanswered for longer than pongTimeout.
func (w *WallexDepthWatcher) Health() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.healthErr != nil {
		return w.healthErr
	}
	if w.connState == Connected && w.lastPing.After(w.lastPong) {
		if waited := time.Since(w.lastPing); waited > pongTimeout {
			return fmt.Errorf("%w: waited %v", ErrPongTimeout, waited.Truncate(time.Second))
		}
	}
	return nil
}

func (w *WallexDepthWatcher) State() ConnectionState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connState
}

// Close closes the websocket connection and cancels the context
func (w *WallexDepthWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.conn != nil {
		w.conn.Close()
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.closed = true
	w.connState = Disconnected
	w.logger.Info("WallexDepthWatcher | closed")
}

// Start launches the watcher in the background.
func (w *WallexDepthWatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.Run(ctx)
	return nil
}

// nextRetryDelay returns how long to wait before reconnecting and the delay to
// carry into the following attempt. A session that got connected starts the
// backoff over.
func nextRetryDelay(current time.Duration, connected bool) (wait, next time.Duration) {
	wait = current
	if connected {
		wait = minRetryDelay
	}
	return wait, min(wait*2, maxRetryDelay)
}

// Run reconnects with exponential backoff until ctx is done.
func (w *WallexDepthWatcher) Run(ctx context.Context) error {
	defer w.setClosed()
	next := minRetryDelay
	for {
		connected, err := w.connectAndStream(ctx)
		if ctx.Err() != nil {
			w.logger.Info("WallexDepthWatcher | context cancelled, stopping")
			return nil
		}
		var retryDelay time.Duration
		retryDelay, next = nextRetryDelay(next, connected)
		w.setHealthErr(err)
		w.setConnState(Reconnecting)
		if w.metrics != nil {
			w.metrics.WSReconnects.WithLabelValues(w.symbol, w.side.String()).Inc()
		}
		w.logger.Warn("WallexDepthWatcher | disconnected, retrying",
			zap.Duration("delay", retryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
	}
}

func (w *WallexDepthWatcher) write(c *websocket.Conn, messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return c.WriteMessage(messageType, data)
}

func (w *WallexDepthWatcher) subscribe(c *websocket.Conn) error {
	payload, err := json.Marshal(map[string]string{"channel": w.channel()})
	if err != nil {
		return err
	}
	return w.write(c, websocket.TextMessage, []byte(fmt.Sprintf(`42["subscribe",%s]`, payload)))
}

// connectAndStream reports whether the dial succeeded alongside the error
// that ended the session.
func (w *WallexDepthWatcher) connectAndStream(ctx context.Context) (bool, error) {
	w.setConnState(Connecting)
	w.setHealthErr(nil)

	c, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return false, err
	}
	w.setConn(c)
	w.setConnState(Connected)
	w.setLastPing(time.Now())
	w.setLastPong(time.Now())
	w.logger.Info("WallexDepthWatcher | connection established")

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { c.Close() })
	done := make(chan struct{})
	defer func() {
		close(done)
		stop()
		c.Close()
		w.setConn(nil)
		w.setConnState(Disconnected)
	}()

	if err := w.write(c, websocket.TextMessage, []byte("40")); err != nil {
		return true, err
	}

	c.SetPongHandler(func(string) error {
		w.setLastPong(time.Now())
		return nil
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.write(c, websocket.PingMessage, nil); err != nil {
					return
				}
				w.setLastPing(time.Now())
			}
		}
	}()

	for {
		c.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := c.ReadMessage()
		if err != nil {
			return true, err
		}
		if err := w.handle(c, string(message)); err != nil {
			return true, err
		}
	}
}

func (w *WallexDepthWatcher) handle(c *websocket.Conn, msg string) error {
	switch {
	case msg == "2":
		return w.write(c, websocket.TextMessage, []byte("3"))
	case strings.HasPrefix(msg, "40"):
		if err := w.subscribe(c); err != nil {
			return err
		}
		w.logger.Info("WallexDepthWatcher | subscribed")
	case strings.HasPrefix(msg, "42"):
		var event []json.RawMessage
		if err := json.Unmarshal([]byte(msg[2:]), &event); err != nil || len(event) < 3 {
			return nil
		}
		var name, channel string
		if json.Unmarshal(event[0], &name) != nil || json.Unmarshal(event[1], &channel) != nil {
			return nil
		}
		if name != "Broadcaster" || channel != w.channel() {
			return nil
		}
		if err := w.apply(event[2]); err != nil {
			w.logger.Warn("WallexDepthWatcher | failed to apply depth", zap.Error(err))
		}
	}
	return nil
}

func (w *WallexDepthWatcher) apply(data []byte) error {
	entries, err := decodeDepth(data)
	if err != nil {
		return err
	}
	levels, err := levelsFromEntries(entries)
	if err != nil {
		return err
	}
	if err := w.state.Replace(w.symbol, w.side, levels); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.DepthUpdates.WithLabelValues(w.symbol, w.side.String()).Inc()
	}
	return nil
}

func (w *WallexDepthWatcher) setConn(c *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = c
}

func (w *WallexDepthWatcher) setConnState(state ConnectionState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connState = state
}

func (w *WallexDepthWatcher) setHealthErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.healthErr = err
}

func (w *WallexDepthWatcher) setLastPing(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastPing = t
}

func (w *WallexDepthWatcher) setLastPong(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastPong = t
}

func (w *WallexDepthWatcher) setClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.connState = Disconnected
}
