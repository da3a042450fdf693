package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cascade-lab/internal/config"
	"cascade-lab/internal/domain"
	"cascade-lab/internal/observability"
)

const eventChannelBuffer = 4096

var _ EventSource = (*WSEventSource)(nil)

// WSEventSource subscribes to a normalized liquidation feed over WebSocket.
// It reconnects with exponential backoff and resubscribes after reconnect.
type WSEventSource struct {
	cfg config.IngestConfig
	log logrus.FieldLogger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	wanted map[string]struct{}
	events chan *domain.LiquidationEvent
}

// subscribeRequest is the frame sent after every (re)connect.
type subscribeRequest struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// wireEvent is the feed's message shape. Messages with a non-liquidation
// type (heartbeats, acks) are ignored.
type wireEvent struct {
	Type      string  `json:"type,omitempty"`
	Symbol    string  `json:"symbol"`
	Exchange  string  `json:"exchange"`
	USDValue  float64 `json:"usd_value"`
	Timestamp float64 `json:"timestamp"`
	Side      string  `json:"side,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// NewWSEventSource creates a source for the configured endpoint and symbols.
// The connection is established on Subscribe.
func NewWSEventSource(cfg config.IngestConfig, log logrus.FieldLogger) *WSEventSource {
	wanted := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		wanted[s] = struct{}{}
	}
	return &WSEventSource{
		cfg:    cfg,
		log:    log.WithField("component", "ws_source"),
		done:   make(chan struct{}),
		wanted: wanted,
		events: make(chan *domain.LiquidationEvent, eventChannelBuffer),
	}
}

// Subscribe connects to the feed and returns the event channel. The channel
// is closed when Close is called or the context is cancelled before the
// first connect.
func (s *WSEventSource) Subscribe(ctx context.Context) (<-chan *domain.LiquidationEvent, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("source closed")
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s.events, nil
}

// connect dials the endpoint and sends the subscribe frame.
func (s *WSEventSource) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", s.cfg.Endpoint, err)
	}

	req := subscribeRequest{Op: "subscribe", Symbols: s.cfg.Symbols}
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.log.WithField("symbols", len(s.cfg.Symbols)).Info("subscribed to liquidation feed")
	return nil
}

// Close closes the connection and the event channel.
func (s *WSEventSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *WSEventSource) current() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *WSEventSource) dropConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// readLoop reads feed messages and redials on error with exponential backoff.
func (s *WSEventSource) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	delay := s.cfg.ReconnectDelay

	for !s.closed.Load() {
		conn := s.current()
		if conn == nil {
			if !s.redial(delay) {
				return
			}
			delay *= 2
			if delay > s.cfg.MaxReconnectDelay {
				delay = s.cfg.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.log.WithError(err).Warn("feed read failed, reconnecting")
			s.dropConn()
			continue
		}

		delay = s.cfg.ReconnectDelay
		s.handleMessage(message)
	}
}

// redial waits for the backoff delay and reconnects. Returns false on
// shutdown.
func (s *WSEventSource) redial(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	observability.DefaultMetrics.FeedReconnects.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.WithError(err).Warn("feed reconnect failed")
		return !s.closed.Load()
	}
	return true
}

// handleMessage validates one feed message and forwards it.
func (s *WSEventSource) handleMessage(message []byte) {
	var we wireEvent
	if err := json.Unmarshal(message, &we); err != nil {
		observability.RecordEventError("decode")
		s.log.WithError(err).Debug("dropping undecodable feed message")
		return
	}

	if we.Type != "" && we.Type != "liquidation" {
		return
	}

	if we.Symbol == "" || we.Exchange == "" || we.USDValue <= 0 || we.Timestamp <= 0 {
		observability.RecordEventError("invalid_event")
		return
	}

	if len(s.wanted) > 0 {
		if _, ok := s.wanted[we.Symbol]; !ok {
			return
		}
	}

	event := &domain.LiquidationEvent{
		Symbol:    we.Symbol,
		USDValue:  we.USDValue,
		Exchange:  domain.Exchange(we.Exchange),
		Timestamp: we.Timestamp,
		Side:      we.Side,
		Quantity:  we.Quantity,
		Price:     we.Price,
	}

	observability.RecordLiquidation(we.Exchange)

	select {
	case s.events <- event:
	case <-s.done:
	}
}

// pingLoop keeps the connection alive between feed messages.
func (s *WSEventSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and redials.
				}
			}
			s.connMu.Unlock()
		}
	}
}
