package risk_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transitgrid/internal/risk"
	"github.com/transitgrid/transitgrid/internal/search"
)

func newTestEngine(provider risk.HistoryProvider) *risk.Engine {
	return risk.NewEngine(risk.EngineConfig{
		History: provider,
		Logger:  zerolog.Nop(),
	})
}

func trainSegment(routeID string) search.Segment {
	return search.Segment{
		FromStopID: "ams",
		ToStopID:   "rtm",
		RouteID:    routeID,
	}
}

func june() time.Time {
	return time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)
}

func january() time.Time {
	return time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)
}

func TestAssessSegment_NoHistoryFallsBackToNeutral(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), june(), 1)
	require.NoError(t, err)

	assert.InDelta(t, 3.52, score.Value, 0.01)
	assert.Equal(t, risk.LevelMedium, score.Level)
	require.Len(t, score.Factors, 6)

	for _, factor := range score.Factors {
		switch factor.Name {
		case risk.FactorSeasonality:
			assert.Equal(t, 1.0, factor.Confidence)
		default:
			assert.Equal(t, 0.2, factor.Confidence, factor.Name)
			assert.Equal(t, 0.35, factor.Score, factor.Name)
		}
	}
}

func TestAssessSegment_ChronicDelaysInWinterAreNotLow(t *testing.T) {
	provider := risk.NewInMemoryHistoryProvider()
	provider.Set("ic-2100", risk.History{
		AvgDelayMin90:  45,
		DelayFrequency: 0.4,
	})
	engine := newTestEngine(provider)

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), january(), 1)
	require.NoError(t, err)

	assert.InDelta(t, 6.75, score.Value, 0.01)
	assert.Equal(t, risk.LevelHigh, score.Level)
	assert.NotEqual(t, risk.LevelLow, score.Level)

	var delay risk.FactorScore
	for _, factor := range score.Factors {
		if factor.Name == risk.FactorDelay {
			delay = factor
		}
	}
	assert.InDelta(t, 0.82, delay.Score, 0.001)
	assert.Equal(t, 0.9, delay.Confidence)

	assert.Contains(t, score.Recommendations, "frequent delays on this leg, plan buffer time for onward connections")
}

func TestAssessSegment_WorstCaseHistoryIsCritical(t *testing.T) {
	provider := risk.NewInMemoryHistoryProvider()
	provider.Set("ic-2100", risk.History{
		AvgDelayMin30:      120,
		DelayFrequency:     1,
		CancelRate30:       1,
		CancelCount:        100,
		AvgLoadFactor:      1,
		HighLoadShare:      1,
		DeviationStdDevMin: 100,
	})
	engine := newTestEngine(provider)

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), january(), 2)
	require.NoError(t, err)

	assert.InDelta(t, 9.09, score.Value, 0.01)
	assert.Equal(t, risk.LevelCritical, score.Level)
	assert.LessOrEqual(t, score.Value, 10.0)

	assert.Contains(t, score.Recommendations, "elevated cancellation rate, prefer refundable fares")
	assert.Contains(t, score.Recommendations, "high occupancy expected, reserve seats for the whole group")
	assert.Contains(t, score.Recommendations, "critical risk, consider an alternative route or travel date")
}

func TestAssessSegment_WindowedAverageRenormalizes(t *testing.T) {
	provider := risk.NewInMemoryHistoryProvider()
	// Only the 30 and 90 day windows have data; the 60 day weight is
	// redistributed. Blended delay: (10*0.5 + 40*0.2) / 0.7 = 18.57 min.
	provider.Set("ic-2100", risk.History{
		AvgDelayMin30: 10,
		AvgDelayMin90: 40,
	})
	engine := newTestEngine(provider)

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), june(), 1)
	require.NoError(t, err)

	var delay risk.FactorScore
	for _, factor := range score.Factors {
		if factor.Name == risk.FactorDelay {
			delay = factor
		}
	}
	assert.InDelta(t, 0.7*(18.571/45.0), delay.Score, 0.001)
	assert.Contains(t, delay.Detail, "avg delay 19 min")
}

func TestAssessSegment_SparseHistoryDegradesPerFactor(t *testing.T) {
	provider := risk.NewInMemoryHistoryProvider()
	// A record that only covers delays: the other history factors must fall
	// back to neutral instead of reading absence as a perfect score.
	provider.Set("ic-2100", risk.History{AvgDelayMin30: 20})
	engine := newTestEngine(provider)

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), june(), 1)
	require.NoError(t, err)

	for _, factor := range score.Factors {
		switch factor.Name {
		case risk.FactorDelay:
			assert.Equal(t, 0.9, factor.Confidence)
		case risk.FactorCancellation, risk.FactorOccupancy, risk.FactorRegularity:
			assert.Equal(t, 0.2, factor.Confidence, factor.Name)
			assert.Equal(t, 0.35, factor.Score, factor.Name)
		}
	}
}

func TestAssessSegment_WeatherSourceNotConfigured(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	score, err := engine.AssessSegment(context.Background(), trainSegment("ic-2100"), june(), 1)
	require.NoError(t, err)

	var weather risk.FactorScore
	for _, factor := range score.Factors {
		if factor.Name == risk.FactorWeather {
			weather = factor
		}
	}
	assert.Equal(t, "weather source not configured", weather.Detail)
	assert.Equal(t, 0.2, weather.Confidence)
}

func TestAssessRoute_TightConnectionPenalty(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	route := &search.BuiltRoute{
		Segments: []search.Segment{
			{FromStopID: "ams", ToStopID: "rtm", RouteID: "ic-2100"},
			{FromStopID: "rtm", ToStopID: "ein", RouteID: "ic-1900", TransferBufferMin: 10},
		},
	}

	score, err := engine.AssessRoute(context.Background(), route, june())
	require.NoError(t, err)

	// Max segment value plus one tight-connection penalty.
	assert.InDelta(t, 3.52+0.5, score.Value, 0.01)
	require.Len(t, score.Segments, 2)
	assert.Contains(t, score.Recommendations, "tight connection on this route, allow extra transfer time")
}

func TestAssessRoute_PenaltySurvivesLaterRiskierSegment(t *testing.T) {
	provider := risk.NewInMemoryHistoryProvider()
	provider.Set("ic-2100", risk.History{
		AvgDelayMin90:  45,
		DelayFrequency: 0.4,
	})
	engine := newTestEngine(provider)

	// The tight buffer sits on the quiet leg; the riskiest leg comes after.
	// The penalty still applies on top of the route maximum.
	route := &search.BuiltRoute{
		Segments: []search.Segment{
			{FromStopID: "ams", ToStopID: "rtm", RouteID: "local-1", TransferBufferMin: 10},
			{FromStopID: "rtm", ToStopID: "ein", RouteID: "ic-2100"},
		},
	}

	score, err := engine.AssessRoute(context.Background(), route, june())
	require.NoError(t, err)

	require.Len(t, score.Segments, 2)
	assert.InDelta(t, 3.52, score.Segments[0].Value, 0.01)
	assert.InDelta(t, 5.66, score.Segments[1].Value, 0.01)

	assert.InDelta(t, 5.66+0.5, score.Value, 0.01)
	assert.Equal(t, risk.LevelHigh, score.Level)
	assert.Contains(t, score.Recommendations, "tight connection on this route, allow extra transfer time")
}

func TestAssessRoute_ComfortableBufferTakesNoPenalty(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	route := &search.BuiltRoute{
		Segments: []search.Segment{
			{FromStopID: "ams", ToStopID: "rtm", RouteID: "ic-2100"},
			{FromStopID: "rtm", ToStopID: "ein", RouteID: "ic-1900", TransferBufferMin: 20},
		},
	}

	score, err := engine.AssessRoute(context.Background(), route, june())
	require.NoError(t, err)

	assert.InDelta(t, 3.52, score.Value, 0.01)
	assert.NotContains(t, score.Recommendations, "tight connection on this route, allow extra transfer time")
}

func TestAssessRoute_ValueCappedAtTen(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	segments := make([]search.Segment, 0, 16)
	segments = append(segments, search.Segment{FromStopID: "s0", ToStopID: "s1", RouteID: "r0"})
	for i := 1; i < 16; i++ {
		segments = append(segments, search.Segment{
			FromStopID:        "s" + string(rune('0'+i%10)),
			ToStopID:          "t" + string(rune('0'+i%10)),
			RouteID:           "r1",
			TransferBufferMin: 5,
		})
	}

	score, err := engine.AssessRoute(context.Background(), &search.BuiltRoute{Segments: segments}, june())
	require.NoError(t, err)

	assert.Equal(t, 10.0, score.Value)
	assert.Equal(t, risk.LevelCritical, score.Level)
}

func TestAssessRoute_EmptyRoute(t *testing.T) {
	engine := newTestEngine(risk.NewInMemoryHistoryProvider())

	_, err := engine.AssessRoute(context.Background(), nil, june())
	assert.Error(t, err)

	_, err = engine.AssessRoute(context.Background(), &search.BuiltRoute{}, june())
	assert.Error(t, err)
}

func TestLevelForValue(t *testing.T) {
	assert.Equal(t, risk.LevelLow, risk.LevelForValue(1))
	assert.Equal(t, risk.LevelLow, risk.LevelForValue(2.99))
	assert.Equal(t, risk.LevelMedium, risk.LevelForValue(3))
	assert.Equal(t, risk.LevelMedium, risk.LevelForValue(5.99))
	assert.Equal(t, risk.LevelHigh, risk.LevelForValue(6))
	assert.Equal(t, risk.LevelHigh, risk.LevelForValue(7.99))
	assert.Equal(t, risk.LevelCritical, risk.LevelForValue(8))
	assert.Equal(t, risk.LevelCritical, risk.LevelForValue(10))
}
