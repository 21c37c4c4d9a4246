// Package weather supplies current conditions for risk assessment. Providers
// return raw observations; Severity folds them into the single hazard number
// the risk engine consumes.
package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Condition is the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionRain         Condition = "RAIN"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// conditionSeverity is the base hazard per condition before wind and
// visibility uplifts. Unknown sits mid-low rather than zero so missing data
// never reads as perfect weather.
var conditionSeverity = map[Condition]float64{
	ConditionClear:        0.0,
	ConditionClouds:       0.05,
	ConditionDrizzle:      0.2,
	ConditionMist:         0.2,
	ConditionHaze:         0.25,
	ConditionRain:         0.35,
	ConditionFog:          0.5,
	ConditionSnow:         0.6,
	ConditionThunderstorm: 0.85,
	ConditionUnknown:      0.25,
}

// Observation is current weather at a point.
type Observation struct {
	Lat         float64
	Lon         float64
	Temperature float64 // Celsius
	WindSpeed   float64 // m/s
	WindGust    float64 // m/s, 0 when not reported
	CloudCover  float64 // percent
	Visibility  float64 // meters
	Condition   Condition
	Description string
	ObservedAt  time.Time
	FetchedAt   time.Time
}

// Severity maps the observation to a hazard score in [0,1]. The condition
// sets the base; strong wind and poor visibility add uplifts.
func (o *Observation) Severity() float64 {
	severity, ok := conditionSeverity[o.Condition]
	if !ok {
		severity = conditionSeverity[ConditionUnknown]
	}

	wind := o.WindSpeed
	if o.WindGust > wind {
		wind = o.WindGust
	}
	switch {
	case wind >= 20: // storm force, cancellations likely
		severity += 0.3
	case wind >= 14:
		severity += 0.2
	case wind >= 8:
		severity += 0.1
	}

	switch {
	case o.Visibility > 0 && o.Visibility < 200:
		severity += 0.3
	case o.Visibility > 0 && o.Visibility < 1000:
		severity += 0.15
	}

	if severity > 1 {
		severity = 1
	}
	return severity
}
