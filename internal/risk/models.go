// Package risk scores segments and routes for travel risk on a 1-10 scale.
// Factors are computed independently, normalized to [0,1], and combined by a
// single weight configuration. The engine only reports; blocking decisions
// belong to callers.
package risk

import "errors"

// ErrRiskInputMissing means a factor has no historical data. The engine
// absorbs it into the documented neutral default and marks the factor low
// confidence; it never escapes an assessment.
var ErrRiskInputMissing = errors.New("risk input missing")

// Factor names, stable across the API breakdown.
const (
	FactorDelay        = "historical_delay"
	FactorCancellation = "cancellation_rate"
	FactorOccupancy    = "occupancy"
	FactorRegularity   = "schedule_regularity"
	FactorSeasonality  = "seasonality"
	FactorWeather      = "weather"
)

// Level buckets a risk value.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelForValue maps a 1-10 value onto its level.
func LevelForValue(value float64) Level {
	switch {
	case value < 3:
		return LevelLow
	case value < 6:
		return LevelMedium
	case value < 8:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// FactorScore is one normalized risk input. Score and Confidence are both in
// [0,1]; low confidence flags a factor computed from the neutral default.
type FactorScore struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// SegmentScore is the per-segment slice of a route assessment.
type SegmentScore struct {
	FromStopID string  `json:"fromStopId"`
	ToStopID   string  `json:"toStopId"`
	Value      float64 `json:"value"`
	Level      Level   `json:"level"`
}

// Score is a complete risk assessment. Value is always in [1,10] and Level
// always matches the documented thresholds.
type Score struct {
	Value           float64        `json:"value"`
	Level           Level          `json:"level"`
	Factors         []FactorScore  `json:"factors"`
	Segments        []SegmentScore `json:"segments,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Weights is the single source of truth for factor weighting, the neutral
// fallback and the tight-connection penalty. Previously these constants were
// duplicated per call site with drifting values; all tuning happens here.
type Weights struct {
	Delay        float64
	Cancellation float64
	Occupancy    float64
	Regularity   float64
	Seasonality  float64
	Weather      float64

	// NeutralScore substitutes for any factor with no data.
	NeutralScore float64

	// NeutralConfidence marks such factors in the breakdown.
	NeutralConfidence float64

	// TightConnectionMinBufferMin is the transfer buffer below which a route
	// takes the tight-connection penalty.
	TightConnectionMinBufferMin float64

	// TightConnectionPenalty is added to the route value, capped at 10.
	TightConnectionPenalty float64
}

// DefaultWeights is the production configuration.
var DefaultWeights = Weights{
	Delay:        0.25,
	Cancellation: 0.25,
	Occupancy:    0.10,
	Regularity:   0.10,
	Seasonality:  0.15,
	Weather:      0.15,

	NeutralScore:      0.35,
	NeutralConfidence: 0.2,

	TightConnectionMinBufferMin: 15,
	TightConnectionPenalty:      0.5,
}

func (w Weights) factorWeight(name string) float64 {
	switch name {
	case FactorDelay:
		return w.Delay
	case FactorCancellation:
		return w.Cancellation
	case FactorOccupancy:
		return w.Occupancy
	case FactorRegularity:
		return w.Regularity
	case FactorSeasonality:
		return w.Seasonality
	case FactorWeather:
		return w.Weather
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
