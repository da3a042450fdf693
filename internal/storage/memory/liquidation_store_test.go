package memory

import (
	"context"
	"errors"
	"testing"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

func testEvent(symbol string, ts float64, usd float64, ex domain.Exchange) *domain.LiquidationEvent {
	return &domain.LiquidationEvent{
		Symbol:    symbol,
		USDValue:  usd,
		Exchange:  ex,
		Timestamp: ts,
	}
}

func TestLiquidationStore_InsertAndGet(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("BTC", 1000, 25000, domain.ExchangeBinance)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetBySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("Expected 1 event, got %d", len(result))
	}
	if result[0].Exchange != domain.ExchangeBinance {
		t.Errorf("Exchange mismatch: got %s, want %s", result[0].Exchange, domain.ExchangeBinance)
	}
}

func TestLiquidationStore_DuplicateKey(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	event := testEvent("BTC", 1000, 25000, domain.ExchangeBinance)
	if err := store.Insert(ctx, event); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, event)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same timestamp but a different venue is a distinct event.
	if err := store.Insert(ctx, testEvent("BTC", 1000, 25000, domain.ExchangeBybit)); err != nil {
		t.Errorf("Distinct-exchange insert failed: %v", err)
	}
}

func TestLiquidationStore_InvalidInput(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, testEvent("", 1000, 25000, domain.ExchangeBinance)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
}

func TestLiquidationStore_InsertBulkAtomic(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	events := []*domain.LiquidationEvent{
		testEvent("BTC", 1000, 25000, domain.ExchangeBinance),
		testEvent("BTC", 1001, 12000, domain.ExchangeBybit),
		testEvent("BTC", 1000, 25000, domain.ExchangeBinance), // intra-batch duplicate
	}

	err := store.InsertBulk(ctx, events)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Entire batch must have been rejected.
	result, err := store.GetBySymbol(ctx, "BTC")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected 0 events after failed batch, got %d", len(result))
	}
}

func TestLiquidationStore_GetByTimeRange(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	for i, ts := range []float64{100, 200, 300, 400} {
		if err := store.Insert(ctx, testEvent("BTC", ts, float64(1000*(i+1)), domain.ExchangeBinance)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, "BTC", 200, 300)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(result))
	}
	if result[0].Timestamp != 200 || result[1].Timestamp != 300 {
		t.Errorf("Expected timestamps [200 300], got [%v %v]", result[0].Timestamp, result[1].Timestamp)
	}
}

func TestLiquidationStore_OrderedByTimestamp(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	for _, ts := range []float64{300, 100, 200} {
		if err := store.Insert(ctx, testEvent("ETH", ts, 5000, domain.ExchangeOKX)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetBySymbol(ctx, "ETH")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	for i := 1; i < len(result); i++ {
		if result[i].Timestamp < result[i-1].Timestamp {
			t.Errorf("Events not ordered: %v before %v", result[i-1].Timestamp, result[i].Timestamp)
		}
	}
}

func TestLiquidationStore_Symbols(t *testing.T) {
	store := NewLiquidationStore()
	ctx := context.Background()

	store.Insert(ctx, testEvent("ETH", 100, 1000, domain.ExchangeBinance))
	store.Insert(ctx, testEvent("BTC", 100, 1000, domain.ExchangeBinance))
	store.Insert(ctx, testEvent("BTC", 200, 2000, domain.ExchangeBinance))

	symbols, err := store.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "BTC" || symbols[1] != "ETH" {
		t.Errorf("Expected [BTC ETH], got %v", symbols)
	}
}
