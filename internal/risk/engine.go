package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/search"
	"github.com/transitgrid/transitgrid/internal/transit"
	"github.com/transitgrid/transitgrid/internal/weather"
)

// ObservationSource supplies current weather for a point. Satisfied by
// weather.Service.
type ObservationSource interface {
	ObservationAt(ctx context.Context, lat, lon float64) (*weather.Observation, error)
}

// EngineConfig holds configuration for the risk engine.
type EngineConfig struct {
	// History supplies per-route operational statistics.
	History HistoryProvider

	// Weather supplies live conditions at connection points. Nil disables
	// the weather factor (it falls back to neutral).
	Weather ObservationSource

	// Stops locates connection points for the weather factor. Nil disables
	// the weather factor.
	Stops transit.StopRepository

	// Weights overrides DefaultWeights when non-zero.
	Weights Weights

	// Logger for engine operations.
	Logger zerolog.Logger
}

// Engine computes reproducible risk assessments. It is stateless across
// requests and safe for concurrent use.
type Engine struct {
	history HistoryProvider
	weather ObservationSource
	stops   transit.StopRepository
	weights Weights
	logger  zerolog.Logger
}

// NewEngine creates a risk engine with defaults applied.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}

	return &Engine{
		history: cfg.History,
		weather: cfg.Weather,
		stops:   cfg.Stops,
		weights: cfg.Weights,
		logger:  cfg.Logger,
	}
}

// AssessSegment scores one route segment for a travel date.
func (e *Engine) AssessSegment(ctx context.Context, segment search.Segment, date time.Time, passengers int) (*Score, error) {
	factors := e.segmentFactors(ctx, segment, date)
	value := e.aggregate(factors)

	return &Score{
		Value:           value,
		Level:           LevelForValue(value),
		Factors:         factors,
		Recommendations: e.recommendations(factors, value, passengers),
	}, nil
}

// AssessRoute scores a built route: the maximum segment value, raised by the
// tight-connection penalty for every transfer buffer below the configured
// minimum and capped at 10.
func (e *Engine) AssessRoute(ctx context.Context, route *search.BuiltRoute, date time.Time) (*Score, error) {
	if route == nil || len(route.Segments) == 0 {
		return nil, fmt.Errorf("route has no segments")
	}

	var (
		maxValue   float64
		maxFactors []FactorScore
		segments   = make([]SegmentScore, 0, len(route.Segments))
		penalty    float64
	)

	for _, segment := range route.Segments {
		factors := e.segmentFactors(ctx, segment, date)
		value := e.aggregate(factors)

		segments = append(segments, SegmentScore{
			FromStopID: segment.FromStopID,
			ToStopID:   segment.ToStopID,
			Value:      value,
			Level:      LevelForValue(value),
		})

		if value > maxValue {
			maxValue = value
			maxFactors = factors
		}
		if segment.TransferBufferMin > 0 && segment.TransferBufferMin < e.weights.TightConnectionMinBufferMin {
			penalty += e.weights.TightConnectionPenalty
		}
	}

	// Penalties apply on top of the route maximum, regardless of which
	// segment carries the tight buffer.
	maxValue += penalty
	if maxValue > 10 {
		maxValue = 10
	}

	recommendations := e.recommendations(maxFactors, maxValue, 1)
	if penalty > 0 {
		recommendations = append(recommendations, "tight connection on this route, allow extra transfer time")
	}

	return &Score{
		Value:           maxValue,
		Level:           LevelForValue(maxValue),
		Factors:         maxFactors,
		Segments:        segments,
		Recommendations: recommendations,
	}, nil
}

// segmentFactors computes all six factors. Missing inputs never fail an
// assessment: they degrade to the neutral default with low confidence.
func (e *Engine) segmentFactors(ctx context.Context, segment search.Segment, date time.Time) []FactorScore {
	factors := make([]FactorScore, 0, 6)

	history, err := e.history.RouteHistory(ctx, segment.RouteID)
	if err != nil {
		if !errors.Is(err, ErrRiskInputMissing) {
			e.logger.Warn().Err(err).Str("route_id", segment.RouteID).Msg("history lookup failed")
		}
		detail := "no operational history"
		factors = append(factors,
			neutralFactor(FactorDelay, e.weights, detail),
			neutralFactor(FactorCancellation, e.weights, detail),
			neutralFactor(FactorOccupancy, e.weights, detail),
			neutralFactor(FactorRegularity, e.weights, detail),
		)
	} else {
		factors = append(factors,
			delayFactor(history, e.weights),
			cancellationFactor(history, e.weights),
			occupancyFactor(history, e.weights),
			regularityFactor(history, e.weights),
		)
	}

	factors = append(factors, seasonalityFactor(date))
	factors = append(factors, e.weatherFactorAt(ctx, segment.ToStopID))

	return factors
}

// weatherFactorAt evaluates live weather at the connection point.
func (e *Engine) weatherFactorAt(ctx context.Context, stopID string) FactorScore {
	if e.weather == nil || e.stops == nil {
		return neutralFactor(FactorWeather, e.weights, "weather source not configured")
	}

	stop, err := e.stops.Get(ctx, stopID)
	if err != nil {
		return neutralFactor(FactorWeather, e.weights, "connection point location unknown")
	}

	obs, err := e.weather.ObservationAt(ctx, stop.Lat, stop.Lon)
	if err != nil {
		e.logger.Warn().Err(err).Str("stop_id", stopID).Msg("weather lookup failed")
		return neutralFactor(FactorWeather, e.weights, "weather unavailable")
	}

	return weatherFactor(obs)
}

// aggregate folds the factors into a value in [1,10]. Weights scale with
// factor confidence, so a neutral-default factor pulls far less than a factor
// backed by real data.
func (e *Engine) aggregate(factors []FactorScore) float64 {
	num, den := 0.0, 0.0
	for _, factor := range factors {
		w := e.weights.factorWeight(factor.Name) * factor.Confidence
		num += w * factor.Score
		den += w
	}

	agg := e.weights.NeutralScore
	if den > 0 {
		agg = num / den
	}
	return 1 + 9*clamp01(agg)
}

func (e *Engine) recommendations(factors []FactorScore, value float64, passengers int) []string {
	var recs []string
	for _, factor := range factors {
		switch {
		case factor.Name == FactorDelay && factor.Score >= 0.5:
			recs = append(recs, "frequent delays on this leg, plan buffer time for onward connections")
		case factor.Name == FactorCancellation && factor.Score >= 0.5:
			recs = append(recs, "elevated cancellation rate, prefer refundable fares")
		case factor.Name == FactorOccupancy && factor.Score >= 0.6:
			if passengers > 1 {
				recs = append(recs, "high occupancy expected, reserve seats for the whole group")
			} else {
				recs = append(recs, "high occupancy expected, reserve a seat in advance")
			}
		case factor.Name == FactorWeather && factor.Score >= 0.6:
			recs = append(recs, "adverse weather at the connection point, check conditions before departure")
		}
	}

	if value >= 8 {
		recs = append(recs, "critical risk, consider an alternative route or travel date")
	}
	return recs
}
