package domain

// ExchangePair is an unordered pair of venues. Construct via NewExchangePair
// so that (a, b) and (b, a) map to the same key.
type ExchangePair struct {
	A Exchange
	B Exchange
}

// NewExchangePair returns the canonical (lexicographically ordered) pair.
func NewExchangePair(a, b Exchange) ExchangePair {
	if b < a {
		a, b = b, a
	}
	return ExchangePair{A: a, B: b}
}

// CorrelationMatrix holds pairwise Pearson correlation of bucketed
// liquidation count series across venues within a shared trailing window.
// Pairs with insufficient co-occurring samples or zero variance on either
// series are omitted from Entries entirely rather than reported as zero.
type CorrelationMatrix struct {
	Symbol        string
	Timestamp     float64
	WindowSeconds float64
	BucketSeconds float64
	Entries       map[ExchangePair]float64
}

// Mean returns the mean pairwise coefficient and whether any entries exist.
func (m *CorrelationMatrix) Mean() (float64, bool) {
	if m == nil || len(m.Entries) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range m.Entries {
		sum += v
	}
	return sum / float64(len(m.Entries)), true
}
