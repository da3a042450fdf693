package velocity

import (
	"math"
	"time"

	"cascade-lab/internal/domain"
)

// correlationBucketSeconds is the resolution used to discretize per-exchange
// event streams before correlating them.
const correlationBucketSeconds = 1.0

// minSharedBuckets is the minimum number of buckets in which both exchanges
// of a pair saw activity for the pair to be correlated at all. Below this the
// Pearson estimate is noise.
const minSharedBuckets = 3

// Correlation computes pairwise Pearson correlation of per-exchange
// liquidation counts over the trailing window, bucketed at one-second
// resolution. Pairs without enough shared activity, or where either series
// has zero variance, are omitted from the matrix rather than reported as
// zero. Returns nil when the symbol is unknown or fewer than two exchanges
// were active in the window.
func (e *Engine) Correlation(symbol string, windowSeconds float64, now float64) *domain.CorrelationMatrix {
	start := time.Now()
	defer e.recordCalc(start)

	e.mu.RLock()
	st, ok := e.symbols[symbol]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	nBuckets := int(math.Ceil(windowSeconds / correlationBucketSeconds))
	if nBuckets < 1 {
		return nil
	}
	windowStart := now - windowSeconds

	st.mu.Lock()
	series := make(map[domain.Exchange][]float64)
	for i := 0; i < st.buf.len(); i++ {
		ev := st.buf.at(i)
		if ev.Timestamp < windowStart || ev.Timestamp > now {
			continue
		}
		idx := int((ev.Timestamp - windowStart) / correlationBucketSeconds)
		if idx < 0 {
			idx = 0
		}
		if idx >= nBuckets {
			idx = nBuckets - 1
		}
		s, ok := series[ev.Exchange]
		if !ok {
			s = make([]float64, nBuckets)
			series[ev.Exchange] = s
		}
		s[idx]++
	}
	st.mu.Unlock()

	if len(series) < 2 {
		return nil
	}

	exchanges := make([]domain.Exchange, 0, len(series))
	for ex := range series {
		exchanges = append(exchanges, ex)
	}

	m := &domain.CorrelationMatrix{
		Symbol:        symbol,
		Timestamp:     now,
		WindowSeconds: windowSeconds,
		BucketSeconds: correlationBucketSeconds,
		Entries:       make(map[domain.ExchangePair]float64),
	}
	for i := 0; i < len(exchanges); i++ {
		for j := i + 1; j < len(exchanges); j++ {
			r, ok := pearson(series[exchanges[i]], series[exchanges[j]])
			if !ok {
				continue
			}
			m.Entries[domain.NewExchangePair(exchanges[i], exchanges[j])] = r
		}
	}
	if len(m.Entries) == 0 {
		return nil
	}
	return m
}

// pearson returns the sample correlation coefficient of x and y, or false
// when the pair is too sparse or either series is constant.
func pearson(x, y []float64) (float64, bool) {
	shared := 0
	for i := range x {
		if x[i] > 0 && y[i] > 0 {
			shared++
		}
	}
	if shared < minSharedBuckets {
		return 0, false
	}

	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	// Guard against floating point drift just outside [-1, 1].
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}
