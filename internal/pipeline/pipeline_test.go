package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// staticFeed serves a fixed feed snapshot, or fails on demand.
type staticFeed struct {
	snapshot *source.FeedSnapshot
	err      error
}

func (f *staticFeed) Name() string { return "static-test" }

func (f *staticFeed) FetchAll(_ context.Context) (*source.FeedSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func testFeed() *source.FeedSnapshot {
	return &source.FeedSnapshot{
		DatasetVersion: "ds-2026-08",
		Stops: []*transit.Stop{
			{ID: "ams-centraal", Name: "Amsterdam Centraal", City: "Amsterdam", Lat: 52.3791, Lon: 4.9003},
			{ID: "ams-zuid", Name: "Amsterdam Zuid", City: "Amsterdam", Lat: 52.3389, Lon: 4.8734},
			{ID: "rtm-centraal", Name: "Rotterdam Centraal", City: "Rotterdam", Lat: 51.9244, Lon: 4.4690},
		},
		Segments: []*transit.Segment{
			{
				FromStopID:  "ams-centraal",
				ToStopID:    "rtm-centraal",
				Transport:   transit.TransportTrain,
				DistanceKm:  78,
				DurationMin: 41,
				Price:       17.80,
				Departure:   "08:08",
				RouteID:     "ic-2100",
			},
		},
		Flights: []*transit.Flight{
			{
				Number:     "HV5032",
				FromStopID: "ams-zuid",
				ToStopID:   "rtm-centraal",
				Departure:  time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
				Arrival:    time.Date(2026, 8, 31, 9, 35, 0, 0, time.UTC),
				DistanceKm: 60,
				Price:      49,
				SeatsTotal: 180,
				SeatsFree:  40,
			},
		},
	}
}

func newPipeline(feed *staticFeed) (*pipeline.Orchestrator, *graph.Store, pipeline.Repositories) {
	repos := emptyRepos()
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
	return orchestrator, store, repos
}

func TestPipeline_FullRun_PublishesGraph(t *testing.T) {
	ctx := context.Background()
	orchestrator, store, repos := newPipeline(&staticFeed{snapshot: testFeed()})

	result, err := orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.StagesExecuted)

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	// 3 real stops plus the Amsterdam hub; Rotterdam has one stop and gets none.
	assert.Equal(t, 4, stats.TotalNodes)

	// Real segment + flight + 4 hub connectors.
	assert.Equal(t, 6, stats.TotalEdges)

	hub, err := repos.Stops.Get(ctx, "vstop-amsterdam")
	require.NoError(t, err)
	assert.True(t, hub.IsVirtual)
	assert.Equal(t, "Amsterdam Hub", hub.Name)

	// Metadata carries the dataset lineage and is active.
	active, err := store.ActiveMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, active.Version)
	assert.Equal(t, "ds-2026-08", active.DatasetVersion)
}

func TestPipeline_Rerun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	orchestrator, _, repos := newPipeline(&staticFeed{snapshot: testFeed()})

	_, err := orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)

	realStops, err := repos.Stops.CountReal(ctx)
	require.NoError(t, err)
	virtualStops, err := repos.Stops.CountVirtual(ctx)
	require.NoError(t, err)
	segments, err := repos.Segments.Count(ctx)
	require.NoError(t, err)
	datasets, err := repos.Datasets.Count(ctx)
	require.NoError(t, err)

	// Unchanged input: entity counts stay put, no duplicate lineage row.
	_, err = orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)

	realStops2, _ := repos.Stops.CountReal(ctx)
	virtualStops2, _ := repos.Stops.CountVirtual(ctx)
	segments2, _ := repos.Segments.Count(ctx)
	datasets2, _ := repos.Datasets.Count(ctx)

	assert.Equal(t, realStops, realStops2)
	assert.Equal(t, virtualStops, virtualStops2)
	assert.Equal(t, segments, segments2)
	assert.Equal(t, datasets, datasets2)
	assert.Equal(t, 1, datasets2)
}

func TestPipeline_FailedRun_PreservesPublishedVersion(t *testing.T) {
	ctx := context.Background()
	feed := &staticFeed{snapshot: testFeed()}
	orchestrator, store, _ := newPipeline(feed)

	_, err := orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)

	published, err := store.Version(ctx)
	require.NoError(t, err)

	// The next run fails at sync; the published version keeps serving.
	feed.err = source.ErrSourceUnavailable
	result, err := orchestrator.ExecuteFullPipeline(ctx)
	require.Error(t, err)
	assert.Equal(t, "sync", result.FailedStage)

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, published, version)
}

func TestPipeline_RerunPromotesNewVersion(t *testing.T) {
	ctx := context.Background()
	orchestrator, store, _ := newPipeline(&staticFeed{snapshot: testFeed()})

	_, err := orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)
	first, err := store.Version(ctx)
	require.NoError(t, err)

	_, err = orchestrator.ExecuteFullPipeline(ctx)
	require.NoError(t, err)
	second, err := store.Version(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVirtualStage_SkipsSingleStopCities(t *testing.T) {
	ctx := context.Background()
	repos := emptyRepos()
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "rtm-centraal", City: "Rotterdam", Lat: 51.92, Lon: 4.47}))

	stage := pipeline.NewVirtualStage(repos, zerolog.Nop())
	result, err := stage.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ItemsProcessed)
	assert.Equal(t, 1, result.ItemsSkipped)

	count, err := repos.Stops.CountVirtual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestVirtualStage_CreatesBidirectionalConnectors(t *testing.T) {
	ctx := context.Background()
	repos := emptyRepos()
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "utr-centraal", City: "Utrecht", Lat: 52.0894, Lon: 5.1102}))
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "utr-overvecht", City: "Utrecht", Lat: 52.1173, Lon: 5.1143}))

	stage := pipeline.NewVirtualStage(repos, zerolog.Nop())
	// Hub plus two connectors per member stop.
	result, err := stage.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.ItemsProcessed)

	outbound, err := repos.Segments.ListFrom(ctx, "vstop-utrecht")
	require.NoError(t, err)
	assert.Len(t, outbound, 2)

	for _, segment := range outbound {
		assert.Equal(t, transit.TransportBus, segment.Transport)
		assert.Equal(t, 0.0, segment.Price)
		assert.Positive(t, segment.DurationMin)
	}

	fromMember, err := repos.Segments.ListFrom(ctx, "utr-centraal")
	require.NoError(t, err)
	require.Len(t, fromMember, 1)
	assert.Equal(t, "vstop-utrecht", fromMember[0].ToStopID)
}

func TestVirtualStage_HubNameHandlesMultiByteCity(t *testing.T) {
	ctx := context.Background()
	repos := emptyRepos()
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "oer-central", City: "örebro", Lat: 59.2788, Lon: 15.2046}))
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "oer-south", City: "örebro", Lat: 59.2530, Lon: 15.2130}))

	stage := pipeline.NewVirtualStage(repos, zerolog.Nop())
	_, err := stage.Run(ctx)
	require.NoError(t, err)

	hub, err := repos.Stops.Get(ctx, "vstop-örebro")
	require.NoError(t, err)
	assert.Equal(t, "Örebro Hub", hub.Name)
}

func TestBuildStage_MergesSchedulesOnSamePair(t *testing.T) {
	ctx := context.Background()
	repos := emptyRepos()
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "a", City: "Alpha"}))
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "b", City: "Beta"}))

	// Two departures on the same pair, the later one faster.
	require.NoError(t, repos.Segments.Upsert(ctx, &transit.Segment{
		ID: "s1", FromStopID: "a", ToStopID: "b", Transport: transit.TransportTrain,
		DurationMin: 50, Price: 10, Departure: "08:00", RouteID: "r1",
	}))
	require.NoError(t, repos.Segments.Upsert(ctx, &transit.Segment{
		ID: "s2", FromStopID: "a", ToStopID: "b", Transport: transit.TransportTrain,
		DurationMin: 35, Price: 12, Departure: "09:00", RouteID: "r1",
	}))

	store := graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: graph.NewInMemoryMetadataRepository(),
		Logger:   zerolog.Nop(),
	})

	stage := pipeline.NewBuildStage(repos, store, nil, zerolog.Nop())
	_, err := stage.Run(ctx)
	require.NoError(t, err)

	weight, err := store.EdgeWeight(ctx, "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 35.0, weight, 0.001)

	meta, err := store.EdgeMetadata(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "2", meta["scheduleCount"])
}

func TestBuildStage_DropsDanglingEdges(t *testing.T) {
	ctx := context.Background()
	repos := emptyRepos()
	require.NoError(t, repos.Stops.Upsert(ctx, &transit.Stop{ID: "a", City: "Alpha"}))

	require.NoError(t, repos.Segments.Upsert(ctx, &transit.Segment{
		ID: "s1", FromStopID: "a", ToStopID: "missing", Transport: transit.TransportBus,
		DurationMin: 10, Departure: "08:00", RouteID: "r1",
	}))

	store := graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: graph.NewInMemoryMetadataRepository(),
		Logger:   zerolog.Nop(),
	})

	stage := pipeline.NewBuildStage(repos, store, nil, zerolog.Nop())
	_, err := stage.Run(ctx)
	require.NoError(t, err)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalNodes)
	assert.Equal(t, 0, stats.TotalEdges)
}
