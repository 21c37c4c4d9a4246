package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/transitgrid/transitgrid/internal/weather"
)

// Saturation points for factor normalization. A factor reaching its
// saturation scores 1.0; anything beyond is equally bad.
const (
	delaySaturationMin     = 45.0 // average delay, minutes
	cancelSaturationRate   = 0.25 // cancellation rate
	cancelSaturationCount  = 20   // absolute cancellations
	deviationSaturationMin = 20.0 // schedule deviation stddev, minutes
)

// Factors whose history inputs are entirely zero fall back to the neutral
// default with low confidence. A route the operator never cancelled is not
// the same as a route with a perfect record; the data is simply absent.

// windowedAverage blends the 30/60/90-day windows, weighting recent windows
// more. Windows without data are excluded and the weights renormalized, so a
// route with only a 90-day record is judged on that record alone.
func windowedAverage(v30, v60, v90 float64) float64 {
	values := []float64{v30, v60, v90}
	weights := []float64{0.5, 0.3, 0.2}

	sum, weightSum := 0.0, 0.0
	for i, v := range values {
		if v <= 0 {
			continue
		}
		sum += v * weights[i]
		weightSum += weights[i]
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func delayFactor(h *History, w Weights) FactorScore {
	avgDelay := windowedAverage(h.AvgDelayMin30, h.AvgDelayMin60, h.AvgDelayMin90)
	if avgDelay == 0 && h.DelayFrequency == 0 {
		return neutralFactor(FactorDelay, w, "no delay records")
	}
	score := 0.7*clamp01(avgDelay/delaySaturationMin) + 0.3*clamp01(h.DelayFrequency)

	return FactorScore{
		Name:       FactorDelay,
		Score:      clamp01(score),
		Confidence: 0.9,
		Detail:     fmt.Sprintf("avg delay %.0f min, delayed %.0f%% of departures", avgDelay, h.DelayFrequency*100),
	}
}

func cancellationFactor(h *History, w Weights) FactorScore {
	rate := windowedAverage(h.CancelRate30, h.CancelRate60, h.CancelRate90)
	if rate == 0 && h.CancelCount == 0 {
		return neutralFactor(FactorCancellation, w, "no cancellation records")
	}
	countScore := clamp01(float64(h.CancelCount) / cancelSaturationCount)
	score := 0.8*clamp01(rate/cancelSaturationRate) + 0.2*countScore

	return FactorScore{
		Name:       FactorCancellation,
		Score:      clamp01(score),
		Confidence: 0.9,
		Detail:     fmt.Sprintf("cancellation rate %.1f%%, %d cancellations", rate*100, h.CancelCount),
	}
}

func occupancyFactor(h *History, w Weights) FactorScore {
	if h.AvgLoadFactor == 0 && h.HighLoadShare == 0 {
		return neutralFactor(FactorOccupancy, w, "no occupancy records")
	}
	score := 0.7*clamp01(h.AvgLoadFactor) + 0.3*clamp01(h.HighLoadShare)

	return FactorScore{
		Name:       FactorOccupancy,
		Score:      clamp01(score),
		Confidence: 0.8,
		Detail:     fmt.Sprintf("avg load %.0f%%, %.0f%% of departures above 90%%", h.AvgLoadFactor*100, h.HighLoadShare*100),
	}
}

func regularityFactor(h *History, w Weights) FactorScore {
	if h.DeviationStdDevMin == 0 {
		return neutralFactor(FactorRegularity, w, "no schedule deviation records")
	}
	score := clamp01(h.DeviationStdDevMin / deviationSaturationMin)

	return FactorScore{
		Name:       FactorRegularity,
		Score:      score,
		Confidence: 0.8,
		Detail:     fmt.Sprintf("schedule deviation stddev %.1f min", h.DeviationStdDevMin),
	}
}

func seasonalityFactor(date time.Time) FactorScore {
	profile := seasonalHazards(date)

	detail := date.Month().String()
	if len(profile.hazards) > 0 {
		detail += ": " + strings.Join(profile.hazards, ", ")
	}

	return FactorScore{
		Name:       FactorSeasonality,
		Score:      clamp01(profile.score),
		Confidence: 1.0,
		Detail:     detail,
	}
}

func weatherFactor(obs *weather.Observation) FactorScore {
	detail := string(obs.Condition)
	if obs.Description != "" {
		detail = obs.Description
	}

	return FactorScore{
		Name:       FactorWeather,
		Score:      obs.Severity(),
		Confidence: 0.8,
		Detail:     detail,
	}
}

// neutralFactor is the documented fallback for a factor with no data.
func neutralFactor(name string, w Weights, detail string) FactorScore {
	return FactorScore{
		Name:       name,
		Score:      w.NeutralScore,
		Confidence: w.NeutralConfidence,
		Detail:     detail,
	}
}
