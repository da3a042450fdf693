// Package risk turns velocity snapshots into explainable cascade risk
// assessments. The calculator is a pure function of its inputs plus a run
// counter; it keeps no per-symbol state.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"cascade-lab/internal/domain"
)

// Factor weights. Non-negative, sum to 1, so the composite score stays in
// [0, 100]. Acceleration and volume dominate: a cascade announces itself
// first as a rate-of-change spike backed by notional.
const (
	WeightAcceleration = 0.30
	WeightJerk         = 0.10
	WeightVolume       = 0.30
	WeightCorrelation  = 0.15
	WeightClustering   = 0.15
)

// Risk level thresholds on the composite score.
const (
	ThresholdMedium   = 25.0
	ThresholdHigh     = 50.0
	ThresholdCritical = 70.0
)

// neutralCorrelationScore is used when no correlation matrix is available.
// Cross-venue agreement is unknown, not absent, so the factor sits at a low
// but nonzero baseline instead of zeroing out.
const neutralCorrelationScore = 20.0

// urgentConfidenceFloor gates the URGENT action: a CRITICAL score backed by
// only a handful of events stays at ALERT.
const urgentConfidenceFloor = 0.5

// Saturation scales for the exponential factor curves. Each is the input
// magnitude at which the factor reaches roughly 63 of its 100-point range.
const (
	accelerationScale = 4.0
	jerkScale         = 2.0
	totalVolumeScale  = 2_000_000.0
	avgEventScale     = 50_000.0
	eventCountScale   = 30.0
	clusteringScale   = 10.0
)

// Calculator scores cascade risk from velocity statistics. Safe for
// concurrent use; the only mutable state is the assessment counter.
type Calculator struct {
	assessments atomic.Uint64
}

// NewCalculator returns a ready calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// AssessmentsPerformed reports how many assessments this calculator has run.
func (c *Calculator) AssessmentsPerformed() uint64 {
	return c.assessments.Load()
}

// Assess produces a risk assessment from a snapshot and an optional
// correlation matrix. Returns nil when the snapshot is nil, mirroring the
// engine's empty-state convention. Missing derivatives or a missing matrix
// are treated as neutral inputs, never as errors.
func (c *Calculator) Assess(snap *domain.VelocitySnapshot, corr *domain.CorrelationMatrix) *domain.RiskAssessment {
	if snap == nil {
		return nil
	}
	c.assessments.Add(1)

	factors := domain.RiskFactors{
		AccelerationScore: derivativeScore(snap.Acceleration, accelerationScale),
		JerkScore:         derivativeScore(snap.Jerk, jerkScale),
		VolumeScore:       volumeScore(snap),
		CorrelationScore:  correlationScore(corr),
		ClusteringScore:   clusteringScore(snap),
	}

	score := WeightAcceleration*factors.AccelerationScore +
		WeightJerk*factors.JerkScore +
		WeightVolume*factors.VolumeScore +
		WeightCorrelation*factors.CorrelationScore +
		WeightClustering*factors.ClusteringScore

	level := levelForScore(score)
	confidence := confidenceForCount(snap.Count60s)

	return &domain.RiskAssessment{
		Symbol:      snap.Symbol,
		Timestamp:   snap.Timestamp,
		RiskLevel:   level,
		RiskScore:   score,
		RiskFactors: factors,
		Confidence:  confidence,
		Action:      actionFor(level, confidence),
		Explanation: explain(level, score, factors),
	}
}

// derivativeScore maps a non-negative derivative onto [0, 100) with
// exponential saturation. Absent or negative derivatives score zero: a
// decelerating stream is not cascading.
func derivativeScore(v *float64, scale float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return 100 * (1 - math.Exp(-*v/scale))
}

// volumeScore blends total notional, average event size and raw event count
// over the snapshot's volume window. Total notional carries the most weight:
// a cascade moves real money, not just prints.
func volumeScore(snap *domain.VelocitySnapshot) float64 {
	total := 1 - math.Exp(-snap.TotalVolumeUSD/totalVolumeScale)
	avg := 1 - math.Exp(-snap.AvgEventSizeUSD/avgEventScale)
	count := 1 - math.Exp(-float64(snap.Count60s)/eventCountScale)
	return 100 * (0.5*total + 0.3*avg + 0.2*count)
}

// correlationScore maps the mean pairwise correlation onto [0, 100].
// Negative means clamp to zero; a missing matrix scores the neutral
// baseline.
func correlationScore(corr *domain.CorrelationMatrix) float64 {
	if corr == nil {
		return neutralCorrelationScore
	}
	mean, ok := corr.Mean()
	if !ok {
		return neutralCorrelationScore
	}
	if mean <= 0 {
		return 0
	}
	return 100 * mean
}

// clusteringScore measures how front-loaded activity is: the 100ms velocity
// relative to the 60s baseline. A quiet baseline with any instantaneous
// activity is maximal clustering.
func clusteringScore(snap *domain.VelocitySnapshot) float64 {
	if snap.Velocity60s == 0 {
		if snap.Velocity100ms > 0 {
			return 100
		}
		return 0
	}
	ratio := snap.Velocity100ms / snap.Velocity60s
	return 100 * ratio / (ratio + clusteringScale)
}

func levelForScore(score float64) domain.RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return domain.RiskCritical
	case score >= ThresholdHigh:
		return domain.RiskHigh
	case score >= ThresholdMedium:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// confidenceForCount saturates toward 1 as the 60s window fills with events.
func confidenceForCount(count60s int) float64 {
	n := float64(count60s)
	return n / (n + 10)
}

func actionFor(level domain.RiskLevel, confidence float64) domain.Action {
	switch {
	case level == domain.RiskCritical && confidence >= urgentConfidenceFloor:
		return domain.ActionUrgent
	case level >= domain.RiskHigh:
		return domain.ActionAlert
	default:
		return domain.ActionWatch
	}
}

// explain names the one or two factors contributing most to the weighted
// score. The "Risk Level: <LEVEL>" prefix is a contract with consumers that
// parse the text.
func explain(level domain.RiskLevel, score float64, f domain.RiskFactors) string {
	type contrib struct {
		name   string
		weight float64
	}
	contribs := []contrib{
		{"acceleration", WeightAcceleration * f.AccelerationScore},
		{"jerk", WeightJerk * f.JerkScore},
		{"volume", WeightVolume * f.VolumeScore},
		{"cross-exchange correlation", WeightCorrelation * f.CorrelationScore},
		{"temporal clustering", WeightClustering * f.ClusteringScore},
	}
	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].weight > contribs[j].weight
	})

	dominant := []string{contribs[0].name}
	if contribs[1].weight > 0 && contribs[1].weight >= 0.5*contribs[0].weight {
		dominant = append(dominant, contribs[1].name)
	}

	return fmt.Sprintf("Risk Level: %s (score %.1f); dominant factors: %s",
		level, score, strings.Join(dominant, ", "))
}
