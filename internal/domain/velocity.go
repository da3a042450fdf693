package domain

// Velocity window lengths in seconds, ordered smallest to largest. Windows
// are nested: every event counted in a smaller window is also counted in
// every larger one, so counts are monotonically non-decreasing with window
// size.
const (
	Window100ms = 0.1
	Window500ms = 0.5
	Window2s    = 2.0
	Window10s   = 10.0
	Window60s   = 60.0
)

// VolumeWindowSeconds is the single reference window for the aggregate
// volume metrics on a snapshot (TotalVolumeUSD, AvgEventSizeUSD,
// MaxEventSizeUSD). It is deliberately the largest configured window so the
// volume figures always cover every counted event.
const VolumeWindowSeconds = Window60s

// VelocitySnapshot is a point-in-time view of liquidation activity for one
// symbol across all configured trailing windows. Created fresh per
// calculation; the engine retains only the (timestamp, velocity_10s) sample
// needed for derivative estimation.
type VelocitySnapshot struct {
	Symbol    string  `json:"symbol"`
	Timestamp float64 `json:"timestamp"`

	Count100ms int `json:"count_100ms"`
	Count500ms int `json:"count_500ms"`
	Count2s    int `json:"count_2s"`
	Count10s   int `json:"count_10s"`
	Count60s   int `json:"count_60s"`

	// Velocities are events per second within each window.
	Velocity100ms float64 `json:"velocity_100ms"`
	Velocity500ms float64 `json:"velocity_500ms"`
	Velocity2s    float64 `json:"velocity_2s"`
	Velocity10s   float64 `json:"velocity_10s"`
	Velocity60s   float64 `json:"velocity_60s"`

	// VWVelocity10s is USD notional per second over the 10s window.
	VWVelocity10s float64 `json:"vw_velocity_10s"`

	// Volume metrics over VolumeWindowSeconds.
	TotalVolumeUSD  float64 `json:"total_volume_usd"`
	AvgEventSizeUSD float64 `json:"avg_event_size_usd"`
	MaxEventSizeUSD float64 `json:"max_event_size_usd"`

	// Acceleration is the finite-difference derivative of Velocity10s and
	// Jerk the derivative of Acceleration. Both are nil until enough
	// snapshot history has accumulated.
	Acceleration *float64 `json:"acceleration,omitempty"`
	Jerk         *float64 `json:"jerk,omitempty"`
}

// ExchangeStats is the per-venue slice of recent activity returned by the
// engine's exchange breakdown.
type ExchangeStats struct {
	Count     int     `json:"count"`
	VolumeUSD float64 `json:"volume_usd"`
}
