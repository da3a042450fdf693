package velocity

import (
	"math"
	"testing"

	"cascade-lab/internal/domain"
)

func TestSnapshotEmptySymbol(t *testing.T) {
	e := NewEngine()
	if snap := e.Snapshot("BTC", 100); snap != nil {
		t.Fatalf("snapshot for unknown symbol = %+v, want nil", snap)
	}

	e.AddEvent("ETH", 1000, domain.ExchangeBinance, 50)
	if snap := e.Snapshot("BTC", 100); snap != nil {
		t.Fatalf("snapshot for untracked symbol = %+v, want nil", snap)
	}
}

func TestBufferBoundedAtCapacity(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 5000; i++ {
		e.AddEvent("BTC", 1000, domain.ExchangeBinance, float64(i)*0.001)
	}

	st := e.state("BTC")
	if got := st.buf.len(); got != DefaultMaxEvents {
		t.Fatalf("buffered events = %d, want %d", got, DefaultMaxEvents)
	}

	// Oldest surviving event is the 2001st pushed (index 2000).
	if got := st.buf.at(0).Timestamp; got != 2.0 {
		t.Fatalf("oldest timestamp = %v, want 2.0", got)
	}
}

func TestWindowCountsNested(t *testing.T) {
	e := NewEngine()
	now := 1000.0
	ages := []float64{0.05, 0.3, 1.0, 5.0, 30.0, 120.0}
	for _, age := range ages {
		e.AddEvent("BTC", 1000, domain.ExchangeBinance, now-age)
	}

	snap := e.Snapshot("BTC", now)
	if snap == nil {
		t.Fatal("snapshot = nil")
	}
	if snap.Count100ms != 1 || snap.Count500ms != 2 || snap.Count2s != 3 || snap.Count10s != 4 || snap.Count60s != 5 {
		t.Fatalf("counts = %d/%d/%d/%d/%d, want 1/2/3/4/5",
			snap.Count100ms, snap.Count500ms, snap.Count2s, snap.Count10s, snap.Count60s)
	}
	if snap.Count100ms > snap.Count500ms || snap.Count500ms > snap.Count2s ||
		snap.Count2s > snap.Count10s || snap.Count10s > snap.Count60s {
		t.Fatal("window counts must be monotonically non-decreasing with window size")
	}
}

func TestVelocityRate(t *testing.T) {
	e := NewEngine()
	now := 500.0
	// 10 events spread uniformly across the trailing 10 seconds.
	for i := 0; i < 10; i++ {
		e.AddEvent("BTC", 2000, domain.ExchangeBinance, now-0.5-float64(i))
	}

	snap := e.Snapshot("BTC", now)
	if snap == nil {
		t.Fatal("snapshot = nil")
	}
	if math.Abs(snap.Velocity10s-1.0) > 0.1 {
		t.Fatalf("velocity_10s = %v, want ~1.0", snap.Velocity10s)
	}
	if want := snap.Velocity10s * 2000; math.Abs(snap.VWVelocity10s-want) > 1 {
		t.Fatalf("vw_velocity_10s = %v, want %v", snap.VWVelocity10s, want)
	}
}

func TestVolumeMetrics(t *testing.T) {
	e := NewEngine()
	now := 100.0
	e.AddEvent("BTC", 1000, domain.ExchangeBinance, now-1)
	e.AddEvent("BTC", 3000, domain.ExchangeBybit, now-2)
	e.AddEvent("BTC", 2000, domain.ExchangeOKX, now-3)
	// Outside the 60s volume window.
	e.AddEvent("BTC", 50000, domain.ExchangeBinance, now-90)

	snap := e.Snapshot("BTC", now)
	if snap.TotalVolumeUSD != 6000 {
		t.Fatalf("total volume = %v, want 6000", snap.TotalVolumeUSD)
	}
	if snap.AvgEventSizeUSD != 2000 {
		t.Fatalf("avg event size = %v, want 2000", snap.AvgEventSizeUSD)
	}
	if snap.MaxEventSizeUSD != 3000 {
		t.Fatalf("max event size = %v, want 3000", snap.MaxEventSizeUSD)
	}
}

func TestDerivativesAppearWithHistory(t *testing.T) {
	e := NewEngine()
	base := 100.0

	e.AddEvent("BTC", 1000, domain.ExchangeBinance, base)
	s1 := e.Snapshot("BTC", base+0.1)
	if s1.Acceleration != nil || s1.Jerk != nil {
		t.Fatal("first snapshot should carry no derivatives")
	}

	e.AddEvent("BTC", 1000, domain.ExchangeBinance, base+0.5)
	e.AddEvent("BTC", 1000, domain.ExchangeBinance, base+0.9)
	s2 := e.Snapshot("BTC", base+1.0)
	if s2.Acceleration == nil {
		t.Fatal("second snapshot should carry acceleration")
	}
	if *s2.Acceleration <= 0 {
		t.Fatalf("acceleration = %v, want positive while velocity rises", *s2.Acceleration)
	}
	if s2.Jerk != nil {
		t.Fatal("second snapshot should not yet carry jerk")
	}

	e.AddEvent("BTC", 1000, domain.ExchangeBinance, base+1.5)
	s3 := e.Snapshot("BTC", base+2.0)
	if s3.Acceleration == nil || s3.Jerk == nil {
		t.Fatal("third snapshot should carry both acceleration and jerk")
	}
}

func TestSnapshotCoarse(t *testing.T) {
	e := NewEngine()
	now := 200.0
	e.AddEvent("BTC", 1500, domain.ExchangeBinance, now-5)
	e.AddEvent("BTC", 2500, domain.ExchangeBybit, now-30)

	snap := e.SnapshotCoarse("BTC", now)
	if snap == nil {
		t.Fatal("coarse snapshot = nil")
	}
	if snap.Count60s != 2 {
		t.Fatalf("count_60s = %d, want 2", snap.Count60s)
	}
	if snap.TotalVolumeUSD != 4000 {
		t.Fatalf("total volume = %v, want 4000", snap.TotalVolumeUSD)
	}
	if snap.Count10s != 0 || snap.Velocity10s != 0 {
		t.Fatal("coarse snapshot must skip the fine windows")
	}
	if snap.Acceleration != nil || snap.Jerk != nil {
		t.Fatal("coarse snapshot must not advance derivative history")
	}
}

func TestExchangeBreakdown(t *testing.T) {
	e := NewEngine()
	now := 100.0
	e.AddEvent("BTC", 1000, domain.ExchangeBinance, now-1)
	e.AddEvent("BTC", 2000, domain.ExchangeBinance, now-2)
	e.AddEvent("BTC", 500, domain.ExchangeBybit, now-3)
	e.AddEvent("BTC", 900, domain.ExchangeOKX, now-90)

	bd := e.ExchangeBreakdown("BTC", now)
	if len(bd) != 2 {
		t.Fatalf("breakdown venues = %d, want 2", len(bd))
	}
	if s := bd[domain.ExchangeBinance]; s.Count != 2 || s.VolumeUSD != 3000 {
		t.Fatalf("binance stats = %+v, want count 2 volume 3000", s)
	}
	if s := bd[domain.ExchangeBybit]; s.Count != 1 || s.VolumeUSD != 500 {
		t.Fatalf("bybit stats = %+v, want count 1 volume 500", s)
	}
}

func TestClearOldDataIdempotent(t *testing.T) {
	e := NewEngine()
	now := 1000.0
	for i := 0; i < 10; i++ {
		e.AddEvent("BTC", 1000, domain.ExchangeBinance, now-float64(i)*100)
	}

	removed := e.ClearOldData(300, now)
	if removed != 6 {
		t.Fatalf("removed = %d, want 6", removed)
	}
	if again := e.ClearOldData(300, now); again != 0 {
		t.Fatalf("second clear removed = %d, want 0", again)
	}

	snap := e.Snapshot("BTC", now)
	if snap.Count60s != 1 {
		t.Fatalf("count_60s after clear = %d, want 1", snap.Count60s)
	}
}

func TestClearOldDataPreservesWrappedBuffer(t *testing.T) {
	e := NewEngineWithCapacity(4)
	now := 1000.0
	sizes := []float64{1000, 2000, 3000, 4000, 5000, 6000}
	for i, usd := range sizes {
		e.AddEvent("BTC", usd, domain.ExchangeBinance, now-10+float64(i))
	}
	// Capacity eviction has wrapped the ring; [3000 4000 5000 6000] remain.

	if removed := e.ClearOldData(60, now); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}

	snap := e.Snapshot("BTC", now)
	if snap.TotalVolumeUSD != 18000 {
		t.Fatalf("total volume = %v, want 18000", snap.TotalVolumeUSD)
	}
	if snap.MaxEventSizeUSD != 6000 {
		t.Fatalf("max event size = %v, want 6000", snap.MaxEventSizeUSD)
	}

	// Dropping the two oldest survivors leaves the newest pair intact.
	if removed := e.ClearOldData(6.5, now); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	snap = e.Snapshot("BTC", now)
	if snap.TotalVolumeUSD != 11000 {
		t.Fatalf("total volume after clear = %v, want 11000", snap.TotalVolumeUSD)
	}
}

func TestStatsCounters(t *testing.T) {
	e := NewEngine()
	now := 100.0
	for i := 0; i < 20; i++ {
		e.AddEvent("BTC", 1000, domain.ExchangeBinance, now-float64(i))
	}
	e.Snapshot("BTC", now)
	e.Snapshot("BTC", now+1)
	e.SnapshotCoarse("BTC", now+2)

	st := e.Stats()
	if st.EventsProcessed != 20 {
		t.Fatalf("events_processed = %d, want 20", st.EventsProcessed)
	}
	if st.CalculationsPerformed != 3 {
		t.Fatalf("calculations_performed = %d, want 3", st.CalculationsPerformed)
	}
	if st.AvgCalculationTimeMs < 0 {
		t.Fatalf("avg_calculation_time_ms = %v, want >= 0", st.AvgCalculationTimeMs)
	}
	if st.MemoryEstimateKB <= 0 {
		t.Fatalf("memory_estimate_kb = %v, want > 0", st.MemoryEstimateKB)
	}
	if st.Symbols != 1 {
		t.Fatalf("symbols = %d, want 1", st.Symbols)
	}
}

func TestSymbolsSorted(t *testing.T) {
	e := NewEngine()
	e.AddEvent("ETH", 1, domain.ExchangeBinance, 1)
	e.AddEvent("BTC", 1, domain.ExchangeBinance, 1)
	e.AddEvent("SOL", 1, domain.ExchangeBinance, 1)

	got := e.Symbols()
	want := []string{"BTC", "ETH", "SOL"}
	if len(got) != len(want) {
		t.Fatalf("symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("symbols = %v, want %v", got, want)
		}
	}
}
