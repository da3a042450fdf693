package velocity

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cascade-lab/internal/domain"
)

// Engine limits. The per-symbol memory bound is the product of
// DefaultMaxEvents and the fixed event size, plus two small derivative
// rings; nothing grows with event rate.
const (
	// DefaultMaxEvents caps the per-symbol event buffer.
	DefaultMaxEvents = 3000

	// historyDepth caps the per-symbol derivative sample rings.
	historyDepth = 8

	// eventBytes approximates the in-memory size of one buffered event,
	// used only for the memory estimate in Stats.
	eventBytes = 56
)

// Stats is a point-in-time copy of the engine's running counters.
type Stats struct {
	EventsProcessed       uint64  `json:"events_processed"`
	CalculationsPerformed uint64  `json:"calculations_performed"`
	AvgCalculationTimeMs  float64 `json:"avg_calculation_time_ms"`
	MemoryEstimateKB      float64 `json:"memory_estimate_kb"`
	Symbols               int     `json:"symbols"`
}

// symbolState holds everything the engine retains for one symbol. All access
// goes through mu; different symbols never share state, so they can be
// processed fully in parallel.
type symbolState struct {
	mu         sync.Mutex
	buf        *eventBuffer
	velSamples sampleRing // (timestamp, velocity_10s)
	accSamples sampleRing // (timestamp, acceleration)
}

// Engine maintains bounded per-symbol liquidation history and computes
// multi-timeframe velocity statistics from it. Every operation takes an
// explicit now (epoch seconds); the engine never reads the wall clock, which
// keeps window math deterministic under test and replay.
type Engine struct {
	maxEvents int

	mu      sync.RWMutex
	symbols map[string]*symbolState

	events    atomic.Uint64
	calcs     atomic.Uint64
	calcNanos atomic.Int64
}

// NewEngine creates an engine with the default per-symbol buffer capacity.
func NewEngine() *Engine {
	return NewEngineWithCapacity(DefaultMaxEvents)
}

// NewEngineWithCapacity creates an engine with a custom per-symbol capacity.
func NewEngineWithCapacity(maxEvents int) *Engine {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Engine{
		maxEvents: maxEvents,
		symbols:   make(map[string]*symbolState, 64),
	}
}

// state returns the symbol's state, creating it on first use.
func (e *Engine) state(symbol string) *symbolState {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{
		buf:        newEventBuffer(e.maxEvents),
		velSamples: newSampleRing(historyDepth),
		accSamples: newSampleRing(historyDepth),
	}
	e.symbols[symbol] = st
	return st
}

// AddEvent appends one liquidation to the symbol's buffer, evicting the
// oldest event when at capacity. Non-positive USD values are accepted; it is
// the caller's policy whether to filter them upstream.
func (e *Engine) AddEvent(symbol string, usdValue float64, exchange domain.Exchange, timestamp float64) {
	st := e.state(symbol)

	st.mu.Lock()
	st.buf.push(domain.LiquidationEvent{
		Symbol:    symbol,
		USDValue:  usdValue,
		Exchange:  exchange,
		Timestamp: timestamp,
	})
	st.mu.Unlock()

	e.events.Add(1)
}

// Snapshot computes the full multi-timeframe velocity snapshot for a symbol
// measured backward from now. Returns nil when the symbol has no buffered
// events, which is an empty state rather than an error. Each call also
// advances the
// derivative history, so acceleration appears from the second call onward
// and jerk from the third.
func (e *Engine) Snapshot(symbol string, now float64) *domain.VelocitySnapshot {
	start := time.Now()
	defer e.recordCalc(start)

	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.buf.len() == 0 {
		return nil
	}

	snap := &domain.VelocitySnapshot{Symbol: symbol, Timestamp: now}

	var (
		vwSum10s float64
		volSum   float64
		volMax   float64
	)
	for i := 0; i < st.buf.len(); i++ {
		ev := st.buf.at(i)
		age := now - ev.Timestamp
		if age < 0 || age > domain.Window60s {
			continue
		}
		snap.Count60s++
		volSum += ev.USDValue
		if ev.USDValue > volMax {
			volMax = ev.USDValue
		}
		if age <= domain.Window10s {
			snap.Count10s++
			vwSum10s += ev.USDValue
		}
		if age <= domain.Window2s {
			snap.Count2s++
		}
		if age <= domain.Window500ms {
			snap.Count500ms++
		}
		if age <= domain.Window100ms {
			snap.Count100ms++
		}
	}

	snap.Velocity100ms = float64(snap.Count100ms) / domain.Window100ms
	snap.Velocity500ms = float64(snap.Count500ms) / domain.Window500ms
	snap.Velocity2s = float64(snap.Count2s) / domain.Window2s
	snap.Velocity10s = float64(snap.Count10s) / domain.Window10s
	snap.Velocity60s = float64(snap.Count60s) / domain.Window60s
	snap.VWVelocity10s = vwSum10s / domain.Window10s

	// Volume metrics use the 60s reference window (domain.VolumeWindowSeconds).
	snap.TotalVolumeUSD = volSum
	snap.MaxEventSizeUSD = volMax
	if snap.Count60s > 0 {
		snap.AvgEventSizeUSD = volSum / float64(snap.Count60s)
	}

	// Advance the derivative history and attach acceleration/jerk when
	// enough samples exist.
	st.velSamples.push(sample{ts: now, value: snap.Velocity10s})
	if acc, ok := st.velSamples.diff(); ok {
		a := acc
		snap.Acceleration = &a
		st.accSamples.push(sample{ts: now, value: acc})
		if jerk, ok := st.accSamples.diff(); ok {
			j := jerk
			snap.Jerk = &j
		}
	}

	return snap
}

// SnapshotCoarse computes only the 60s window and skips derivative history.
// It is the degraded path for extreme load: strictly cheaper than Snapshot
// and safe to substitute when the calculation budget is being exceeded.
func (e *Engine) SnapshotCoarse(symbol string, now float64) *domain.VelocitySnapshot {
	start := time.Now()
	defer e.recordCalc(start)

	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.buf.len() == 0 {
		return nil
	}

	snap := &domain.VelocitySnapshot{Symbol: symbol, Timestamp: now}
	var volSum, volMax float64
	for i := 0; i < st.buf.len(); i++ {
		ev := st.buf.at(i)
		age := now - ev.Timestamp
		if age < 0 || age > domain.Window60s {
			continue
		}
		snap.Count60s++
		volSum += ev.USDValue
		if ev.USDValue > volMax {
			volMax = ev.USDValue
		}
	}
	snap.Velocity60s = float64(snap.Count60s) / domain.Window60s
	snap.TotalVolumeUSD = volSum
	snap.MaxEventSizeUSD = volMax
	if snap.Count60s > 0 {
		snap.AvgEventSizeUSD = volSum / float64(snap.Count60s)
	}
	return snap
}

// ExchangeBreakdown partitions the 60s window's events by venue.
func (e *Engine) ExchangeBreakdown(symbol string, now float64) map[domain.Exchange]domain.ExchangeStats {
	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make(map[domain.Exchange]domain.ExchangeStats)
	for i := 0; i < st.buf.len(); i++ {
		ev := st.buf.at(i)
		age := now - ev.Timestamp
		if age < 0 || age > domain.Window60s {
			continue
		}
		s := out[ev.Exchange]
		s.Count++
		s.VolumeUSD += ev.USDValue
		out[ev.Exchange] = s
	}
	return out
}

// ClearOldData purges events older than maxAgeSeconds across all symbols.
// Idempotent: a second call with the same cutoff removes nothing further.
func (e *Engine) ClearOldData(maxAgeSeconds float64, now float64) int {
	cutoff := now - maxAgeSeconds

	e.mu.RLock()
	states := make([]*symbolState, 0, len(e.symbols))
	for _, st := range e.symbols {
		states = append(states, st)
	}
	e.mu.RUnlock()

	removed := 0
	for _, st := range states {
		st.mu.Lock()
		removed += st.buf.dropOlderThan(cutoff)
		st.mu.Unlock()
	}
	return removed
}

// Symbols returns all tracked symbols in sorted order.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	out := make([]string, 0, len(e.symbols))
	for s := range e.symbols {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Stats returns a copy of the engine's running performance counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	n := len(e.symbols)
	e.mu.RUnlock()

	calcs := e.calcs.Load()
	var avgMs float64
	if calcs > 0 {
		avgMs = float64(e.calcNanos.Load()) / float64(calcs) / 1e6
	}

	perSymbol := float64(e.maxEvents*eventBytes + 2*historyDepth*16)
	return Stats{
		EventsProcessed:       e.events.Load(),
		CalculationsPerformed: calcs,
		AvgCalculationTimeMs:  avgMs,
		MemoryEstimateKB:      float64(n) * perSymbol / 1024,
		Symbols:               n,
	}
}

func (e *Engine) recordCalc(start time.Time) {
	e.calcs.Add(1)
	e.calcNanos.Add(time.Since(start).Nanoseconds())
}
