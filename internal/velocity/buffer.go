package velocity

import "cascade-lab/internal/domain"

// eventBuffer is a fixed-capacity ring of liquidation events in insertion
// order, oldest first. When full, pushing evicts the oldest element, so the
// length invariant len <= capacity holds after any sequence of pushes.
type eventBuffer struct {
	events []domain.LiquidationEvent
	head   int // index of the oldest element
	size   int
}

func newEventBuffer(capacity int) *eventBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxEvents
	}
	return &eventBuffer{events: make([]domain.LiquidationEvent, capacity)}
}

func (b *eventBuffer) push(ev domain.LiquidationEvent) {
	if b.size == len(b.events) {
		// Overwrite the oldest slot.
		b.events[b.head] = ev
		b.head = (b.head + 1) % len(b.events)
		return
	}
	b.events[(b.head+b.size)%len(b.events)] = ev
	b.size++
}

func (b *eventBuffer) len() int { return b.size }

// at returns the i-th element in insertion order, 0 being the oldest.
func (b *eventBuffer) at(i int) domain.LiquidationEvent {
	return b.events[(b.head+i)%len(b.events)]
}

// dropOlderThan removes every event with Timestamp < cutoff and returns how
// many were removed. Compacts in insertion order, so relative order of the
// survivors is preserved.
func (b *eventBuffer) dropOlderThan(cutoff float64) int {
	if b.size == 0 {
		return 0
	}
	kept := make([]domain.LiquidationEvent, 0, b.size)
	for i := 0; i < b.size; i++ {
		if ev := b.at(i); ev.Timestamp >= cutoff {
			kept = append(kept, ev)
		}
	}
	removed := b.size - len(kept)
	if removed == 0 {
		return 0
	}
	// The ring may have wrapped, so survivors are staged in logical order
	// before being written back from slot zero.
	copy(b.events, kept)
	b.head = 0
	b.size = len(kept)
	return removed
}
