package ingestion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cascade-lab/internal/config"
	"cascade-lab/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testIngestConfig(endpoint string) config.IngestConfig {
	return config.IngestConfig{
		Endpoint:          endpoint,
		Symbols:           []string{"BTC", "ETH"},
		ReconnectDelay:    20 * time.Millisecond,
		MaxReconnectDelay: 100 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       2 * time.Second,
		WriteTimeout:      time.Second,
	}
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSSourceSubscribeSendsFrame(t *testing.T) {
	gotFrame := make(chan subscribeRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		gotFrame <- req

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	source := NewWSEventSource(testIngestConfig(wsURL(server)), testLogger())
	defer source.Close()

	if _, err := source.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case req := <-gotFrame:
		if req.Op != "subscribe" {
			t.Errorf("op = %q, want subscribe", req.Op)
		}
		if len(req.Symbols) != 2 {
			t.Errorf("symbols = %v", req.Symbols)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received subscribe frame")
	}
}

func TestWSSourceDeliversAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		messages := []string{
			`{"type":"heartbeat"}`,
			`{"symbol":"BTC","exchange":"binance","usd_value":50000,"timestamp":1700000000,"side":"long","quantity":0.8,"price":62500}`,
			`{"symbol":"DOGE","exchange":"binance","usd_value":100,"timestamp":1700000001}`,
			`{"symbol":"ETH","exchange":"bybit","usd_value":0,"timestamp":1700000002}`,
			`{"symbol":"ETH","exchange":"okx","usd_value":25000,"timestamp":1700000003}`,
			`not json`,
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	source := NewWSEventSource(testIngestConfig(wsURL(server)), testLogger())
	defer source.Close()

	events, err := source.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var got []*domain.LiquidationEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case event := <-events:
			got = append(got, event)
		case <-timeout:
			t.Fatalf("received %d events, want 2", len(got))
		}
	}

	if got[0].Symbol != "BTC" || got[0].Exchange != domain.ExchangeBinance || got[0].USDValue != 50000 {
		t.Errorf("first event = %+v", got[0])
	}
	if got[0].Side != domain.SideLong || got[0].Quantity != 0.8 || got[0].Price != 62500 {
		t.Errorf("first event = %+v, want side/quantity/price carried", got[0])
	}
	if got[1].Symbol != "ETH" || got[1].Exchange != domain.ExchangeOKX {
		t.Errorf("second event = %+v", got[1])
	}

	// The unknown symbol, zero notional, heartbeat and garbage messages
	// must not arrive.
	select {
	case event := <-events:
		t.Errorf("unexpected extra event: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSSourceReconnects(t *testing.T) {
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		if n == 1 {
			// Drop the first connection immediately after the subscribe.
			return
		}

		event := `{"symbol":"BTC","exchange":"binance","usd_value":75000,"timestamp":1700000010}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	source := NewWSEventSource(testIngestConfig(wsURL(server)), testLogger())
	defer source.Close()

	events, err := source.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case event := <-events:
		if event.USDValue != 75000 {
			t.Errorf("event = %+v", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("never received event after reconnect")
	}

	if conns.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", conns.Load())
	}
}

func TestWSSourceCloseClosesChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	source := NewWSEventSource(testIngestConfig(wsURL(server)), testLogger())

	events, err := source.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := source.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := source.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after Close")
	}

	if _, err := source.Subscribe(context.Background()); err == nil {
		t.Error("Subscribe after Close should fail")
	}
}
