package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

func testEvent(symbol string, ts, usd float64, ex domain.Exchange) *domain.LiquidationEvent {
	return &domain.LiquidationEvent{
		Symbol:    symbol,
		USDValue:  usd,
		Exchange:  ex,
		Timestamp: ts,
	}
}

func TestLiquidationStore_InsertAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("BTC", 1000.5, 25000, domain.ExchangeBinance)))
	require.NoError(t, store.Insert(ctx, testEvent("BTC", 1001.25, 12000, domain.ExchangeBybit)))
	require.NoError(t, store.Insert(ctx, testEvent("ETH", 1000.5, 8000, domain.ExchangeOKX)))

	events, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 1000.5, events[0].Timestamp)
	require.Equal(t, domain.ExchangeBinance, events[0].Exchange)
	require.Equal(t, 25000.0, events[0].USDValue)
}

func TestLiquidationStore_PricedRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	e := testEvent("BTC", 1500.5, 50_000, domain.ExchangeBinance)
	e.Side = domain.SideLong
	e.Quantity = 0.8
	e.Price = 62_500
	require.NoError(t, store.Insert(ctx, e))

	events, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.SideLong, events[0].Side)
	require.Equal(t, 0.8, events[0].Quantity)
	require.Equal(t, 62_500.0, events[0].Price)
}

func TestLiquidationStore_DuplicateRejected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	e := testEvent("BTC", 2000, 30000, domain.ExchangeBinance)
	require.NoError(t, store.Insert(ctx, e))

	err := store.Insert(ctx, e)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// A different notional at the same instant is a distinct event.
	require.NoError(t, store.Insert(ctx, testEvent("BTC", 2000, 31000, domain.ExchangeBinance)))
}

func TestLiquidationStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	events := []*domain.LiquidationEvent{
		testEvent("BTC", 3000, 1000, domain.ExchangeBinance),
		testEvent("BTC", 3000, 1000, domain.ExchangeBinance),
	}
	err := store.InsertBulk(ctx, events)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySymbol(ctx, "BTC")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLiquidationStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	var batch []*domain.LiquidationEvent
	for i := 0; i < 10; i++ {
		batch = append(batch, testEvent("SOL", 100+float64(i), float64(1000+i), domain.ExchangeBybit))
	}
	require.NoError(t, store.InsertBulk(ctx, batch))

	events, err := store.GetByTimeRange(ctx, "SOL", 102, 105)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, 102.0, events[0].Timestamp)
	require.Equal(t, 105.0, events[3].Timestamp)
}

func TestLiquidationStore_Symbols(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testEvent("ETH", 100, 1000, domain.ExchangeBinance)))
	require.NoError(t, store.Insert(ctx, testEvent("BTC", 100, 1000, domain.ExchangeBinance)))
	require.NoError(t, store.Insert(ctx, testEvent("BTC", 200, 2000, domain.ExchangeBybit)))

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"BTC", "ETH"}, symbols)
}
