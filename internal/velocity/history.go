package velocity

// sample is one retained (timestamp, value) observation.
type sample struct {
	ts    float64
	value float64
}

// sampleRing is a small fixed-capacity ring of samples used to estimate
// velocity derivatives by finite differences. Oldest entries are evicted
// first; the ring never allocates after construction.
type sampleRing struct {
	samples []sample
	head    int
	size    int
}

func newSampleRing(capacity int) sampleRing {
	return sampleRing{samples: make([]sample, capacity)}
}

func (r *sampleRing) push(s sample) {
	if r.size == len(r.samples) {
		r.samples[r.head] = s
		r.head = (r.head + 1) % len(r.samples)
		return
	}
	r.samples[(r.head+r.size)%len(r.samples)] = s
	r.size++
}

func (r *sampleRing) len() int { return r.size }

// last returns the most recent sample. Caller must check len() first.
func (r *sampleRing) last() sample {
	return r.samples[(r.head+r.size-1)%len(r.samples)]
}

// prev returns the second most recent sample. Caller must check len() >= 2.
func (r *sampleRing) prev() sample {
	return r.samples[(r.head+r.size-2)%len(r.samples)]
}

// diff returns the finite-difference derivative between the two most recent
// samples, or (0, false) when fewer than two samples exist or the timestamps
// do not advance.
func (r *sampleRing) diff() (float64, bool) {
	if r.size < 2 {
		return 0, false
	}
	a, b := r.prev(), r.last()
	dt := b.ts - a.ts
	if dt <= 0 {
		return 0, false
	}
	return (b.value - a.value) / dt, true
}
