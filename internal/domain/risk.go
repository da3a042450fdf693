package domain

import (
	"encoding/json"
	"fmt"
)

// RiskLevel classifies a risk score. Levels are ordered so callers can
// compare directly (e.g. level >= RiskHigh).
type RiskLevel int

// Risk levels, lowest to highest.
const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the canonical upper-case label.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its string label.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a string label back into a level.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "LOW":
		*l = RiskLow
	case "MEDIUM":
		*l = RiskMedium
	case "HIGH":
		*l = RiskHigh
	case "CRITICAL":
		*l = RiskCritical
	default:
		return fmt.Errorf("unknown risk level %q", s)
	}
	return nil
}

// Action is the recommended downstream reaction to an assessment.
type Action string

// Actions, escalating.
const (
	ActionWatch  Action = "WATCH"
	ActionAlert  Action = "ALERT"
	ActionUrgent Action = "URGENT"
)

// RiskFactors are the individual component scores, each in [0, 100].
type RiskFactors struct {
	AccelerationScore float64 `json:"acceleration_score"`
	JerkScore         float64 `json:"jerk_score"`
	VolumeScore       float64 `json:"volume_score"`
	CorrelationScore  float64 `json:"correlation_score"`
	ClusteringScore   float64 `json:"clustering_score"`
}

// RiskAssessment is the calculator's verdict for one velocity snapshot.
// It is stateless and owned by the caller once returned.
type RiskAssessment struct {
	Symbol      string      `json:"symbol"`
	Timestamp   float64     `json:"timestamp"`
	RiskLevel   RiskLevel   `json:"risk_level"`
	RiskScore   float64     `json:"risk_score"`
	RiskFactors RiskFactors `json:"risk_factors"`
	Confidence  float64     `json:"confidence"`
	Action      Action      `json:"action"`
	Explanation string      `json:"explanation"`
}

// ToMap returns the assessment in the flat map shape consumed by dispatch
// and display collaborators.
func (a *RiskAssessment) ToMap() map[string]any {
	return map[string]any{
		"symbol":     a.Symbol,
		"timestamp":  a.Timestamp,
		"risk_level": a.RiskLevel.String(),
		"risk_score": a.RiskScore,
		"risk_factors": map[string]float64{
			"acceleration_score": a.RiskFactors.AccelerationScore,
			"jerk_score":         a.RiskFactors.JerkScore,
			"volume_score":       a.RiskFactors.VolumeScore,
			"correlation_score":  a.RiskFactors.CorrelationScore,
			"clustering_score":   a.RiskFactors.ClusteringScore,
		},
		"confidence":  a.Confidence,
		"action":      string(a.Action),
		"explanation": a.Explanation,
	}
}
