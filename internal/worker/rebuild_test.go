package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/transit"
	"github.com/transitgrid/transitgrid/internal/weather"
	"github.com/transitgrid/transitgrid/internal/worker"
)

// toggleFeed serves a fixed feed snapshot, or fails on demand.
type toggleFeed struct {
	err error
}

func (f *toggleFeed) Name() string { return "toggle-test" }

func (f *toggleFeed) FetchAll(_ context.Context) (*source.FeedSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &source.FeedSnapshot{
		DatasetVersion: "ds-2026-08",
		Stops: []*transit.Stop{
			{ID: "ams-centraal", Name: "Amsterdam Centraal", City: "Amsterdam", Lat: 52.3791, Lon: 4.9003},
			{ID: "rtm-centraal", Name: "Rotterdam Centraal", City: "Rotterdam", Lat: 51.9244, Lon: 4.4690},
		},
		Segments: []*transit.Segment{
			{
				FromStopID:  "ams-centraal",
				ToStopID:    "rtm-centraal",
				Transport:   transit.TransportTrain,
				DurationMin: 41,
				Price:       17.80,
				Departure:   "08:08",
				RouteID:     "ic-2100",
			},
		},
	}, nil
}

// fetchCounter is a weather provider counting upstream fetches.
type fetchCounter struct {
	calls int64
}

func (p *fetchCounter) ObservationAt(_ context.Context, lat, lon float64) (*weather.Observation, error) {
	atomic.AddInt64(&p.calls, 1)
	return &weather.Observation{Lat: lat, Lon: lon, Condition: weather.ConditionClear}, nil
}

func (p *fetchCounter) Name() string { return "fetch-counter" }

type jobEnv struct {
	job          *worker.RebuildJob
	orchestrator *pipeline.Orchestrator
	store        *graph.Store
	feed         *toggleFeed
	provider     *fetchCounter
}

func newJobEnv(t *testing.T) *jobEnv {
	t.Helper()

	feed := &toggleFeed{}
	repos := pipeline.Repositories{
		Stops:    transit.NewInMemoryStopRepository(),
		Segments: transit.NewInMemorySegmentRepository(),
		Flights:  transit.NewInMemoryFlightRepository(),
		Datasets: transit.NewInMemoryDatasetRepository(),
	}
	store := graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: graph.NewInMemoryMetadataRepository(),
		Logger:   zerolog.Nop(),
	})

	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Stages: []pipeline.Stage{
			pipeline.NewSyncStage(feed, repos, zerolog.Nop()),
			pipeline.NewVirtualStage(repos, zerolog.Nop()),
			pipeline.NewBuildStage(repos, store, nil, zerolog.Nop()),
		},
		Repositories: repos,
		Logger:       zerolog.Nop(),
	})

	provider := &fetchCounter{}
	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	job := worker.NewRebuildJob(worker.RebuildJobConfig{
		Config: worker.RebuildConfig{
			Timeout:           time.Minute,
			WarmupConcurrency: 2,
			WarmupTimeout:     time.Second,
			WarmupTargets: []worker.WarmupTarget{
				{Name: "Amsterdam", Priority: 1, Points: []worker.Point{{Lat: 52.37, Lon: 4.90}}},
				{Name: "Rotterdam", Priority: 2, Points: []worker.Point{{Lat: 51.92, Lon: 4.47}}},
			},
		},
		Logger:         zerolog.Nop(),
		Orchestrator:   orchestrator,
		Store:          store,
		WeatherService: weatherService,
	})

	return &jobEnv{job: job, orchestrator: orchestrator, store: store, feed: feed, provider: provider}
}

func TestRebuildJob_RunPublishesAndWarmsCache(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	result, err := env.job.Run(ctx, false)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.NotEmpty(t, result.GraphVersion)
	require.NotNil(t, result.Pipeline)
	assert.True(t, result.Pipeline.Success)

	version, err := env.store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, result.GraphVersion)

	metrics := env.job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.SuccessfulRuns)
	assert.Equal(t, version, metrics.LastGraphVersion)

	// Both warmup points fetched, each grid cell once.
	assert.Equal(t, int64(2), metrics.WarmupFetches)
	assert.Equal(t, int64(0), metrics.WarmupFailures)
	assert.Equal(t, int64(2), atomic.LoadInt64(&env.provider.calls))
}

func TestRebuildJob_SkipsWhenGraphIsHealthy(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	_, err := env.job.Run(ctx, false)
	require.NoError(t, err)

	// Data is in place; an unforced trigger is a no-op.
	result, err := env.job.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Nil(t, result.Pipeline)

	metrics := env.job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.SuccessfulRuns)
	assert.Equal(t, int64(1), metrics.SkippedRuns)
}

func TestRebuildJob_ForceBypassesSkip(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	_, err := env.job.Run(ctx, false)
	require.NoError(t, err)

	result, err := env.job.Run(ctx, true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	metrics := env.job.GetMetrics()
	assert.Equal(t, int64(2), metrics.SuccessfulRuns)
	assert.Equal(t, int64(0), metrics.SkippedRuns)
}

func TestRebuildJob_FailedPipelineCountsAsFailure(t *testing.T) {
	env := newJobEnv(t)
	ctx := context.Background()

	env.feed.err = source.ErrSourceUnavailable
	_, err := env.job.Run(ctx, false)
	require.Error(t, err)

	metrics := env.job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(1), metrics.FailedRuns)
	assert.Equal(t, int64(0), metrics.SuccessfulRuns)

	// No warmup after a failed run.
	assert.Equal(t, int64(0), atomic.LoadInt64(&env.provider.calls))
}

func TestRebuildJob_MetricsSnapshot(t *testing.T) {
	env := newJobEnv(t)

	_, err := env.job.Run(context.Background(), false)
	require.NoError(t, err)

	snapshot := env.job.MetricsSnapshot()
	assert.Equal(t, int64(1), snapshot["total_runs"])
	assert.Equal(t, int64(1), snapshot["successful_runs"])
	assert.NotEmpty(t, snapshot["last_graph_version"])
}

func TestRebuildConfig_AllPointsOrderedByPriority(t *testing.T) {
	cfg := worker.RebuildConfig{
		WarmupTargets: []worker.WarmupTarget{
			{Name: "Maastricht", Priority: 3, Points: []worker.Point{{Lat: 50.85, Lon: 5.70}}},
			{Name: "Amsterdam", Priority: 1, Points: []worker.Point{{Lat: 52.37, Lon: 4.90}}},
			{Name: "Eindhoven", Priority: 2, Points: []worker.Point{{Lat: 51.44, Lon: 5.47}}},
		},
	}

	points := cfg.AllPoints()
	require.Len(t, points, 3)
	assert.Equal(t, 52.37, points[0].Lat)
	assert.Equal(t, 51.44, points[1].Lat)
	assert.Equal(t, 50.85, points[2].Lat)
}
