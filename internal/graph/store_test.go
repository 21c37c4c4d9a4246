package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/transit"
)

func newTestStore() *graph.Store {
	return graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: graph.NewInMemoryMetadataRepository(),
		Logger:   zerolog.Nop(),
	})
}

func testSnapshot(version string) *graph.Snapshot {
	snap := graph.NewSnapshot(version)
	snap.AddNode("ams")
	snap.AddNode("rtm")
	snap.AddNode("utr")
	snap.AddEdge("ams", &graph.Edge{
		To:        "rtm",
		Weight:    40,
		Price:     17.50,
		Transport: transit.TransportTrain,
		RouteID:   "ic-2100",
		Metadata:  map[string]string{"departure": "08:15"},
	})
	snap.AddEdge("rtm", &graph.Edge{
		To:        "utr",
		Weight:    38,
		Price:     15.20,
		Transport: transit.TransportTrain,
		RouteID:   "ic-2800",
	})
	return snap
}

func TestStore_SaveGraph_DoesNotPublish(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.SaveGraph(ctx, testSnapshot("v1")))

	_, err := store.Version(ctx)
	assert.ErrorIs(t, err, graph.ErrGraphUnavailable)
}

func TestStore_SetVersion_Publishes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.SaveGraph(ctx, testSnapshot("v1")))
	require.NoError(t, store.SetVersion(ctx, "v1"))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)

	nodes, err := store.AllNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ams", "rtm", "utr"}, nodes)
}

func TestStore_SetVersion_UnknownVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	err := store.SetVersion(ctx, "never-staged")
	assert.ErrorIs(t, err, graph.ErrGraphUnavailable)
}

func TestStore_Promotion_IsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	require.NoError(t, store.SaveGraph(ctx, testSnapshot("v1")))
	require.NoError(t, store.SetVersion(ctx, "v1"))

	// Staging v2 must not affect readers of v1.
	v2 := testSnapshot("v2")
	v2.AddNode("ein")
	v2.AddEdge("utr", &graph.Edge{To: "ein", Weight: 50, Transport: transit.TransportTrain, RouteID: "ic-3500"})
	require.NoError(t, store.SaveGraph(ctx, v2))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)

	ok, err := store.HasNode(ctx, "ein")
	require.NoError(t, err)
	assert.False(t, ok)

	// After promotion every read resolves to v2.
	require.NoError(t, store.SetVersion(ctx, "v2"))

	version, err = store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", version)

	ok, err = store.HasNode(ctx, "ein")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_SaveGraph_RejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	snap := graph.NewSnapshot("bad")
	snap.AddNode("ams")
	snap.AddEdge("ams", &graph.Edge{To: "ghost", Weight: 10})

	err := store.SaveGraph(ctx, snap)
	assert.ErrorIs(t, err, graph.ErrInvalidSnapshot)
}

func TestStore_SaveGraph_RejectsNegativeWeight(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	snap := graph.NewSnapshot("bad")
	snap.AddNode("ams")
	snap.AddNode("rtm")
	snap.AddEdge("ams", &graph.Edge{To: "rtm", Weight: -1})

	err := store.SaveGraph(ctx, snap)
	assert.ErrorIs(t, err, graph.ErrInvalidSnapshot)
}

func TestStore_Neighbors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	edges, err := store.Neighbors(ctx, "ams")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "rtm", edges[0].To)

	_, err = store.Neighbors(ctx, "ghost")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestStore_EdgeWeight(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	weight, err := store.EdgeWeight(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, weight, 0.001)

	// Nodes exist but are not directly connected.
	_, err = store.EdgeWeight(ctx, "ams", "utr")
	assert.ErrorIs(t, err, graph.ErrNoEdge)
}

func TestStore_EdgeMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	meta, err := store.EdgeMetadata(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.Equal(t, "08:15", meta["departure"])
}

func TestStore_Statistics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", stats.Version)
	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 2, stats.TotalEdges)
	// 2 edges out of 3*2 possible directed edges.
	assert.InDelta(t, 2.0/6.0, stats.Density, 0.001)
}

func TestStore_Statistics_Unavailable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_, err := store.Statistics(ctx)
	assert.ErrorIs(t, err, graph.ErrGraphUnavailable)
}

func TestStore_ExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore()
	require.NoError(t, src.Import(ctx, testSnapshot("v1")))

	exported, err := src.Export(ctx)
	require.NoError(t, err)

	dst := newTestStore()
	require.NoError(t, dst.Import(ctx, exported))

	version, err := dst.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)

	srcNodes, err := src.AllNodes(ctx)
	require.NoError(t, err)
	dstNodes, err := dst.AllNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcNodes, dstNodes)

	weight, err := dst.EdgeWeight(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, weight, 0.001)

	meta, err := dst.EdgeMetadata(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.Equal(t, "08:15", meta["departure"])
}

func TestStore_Export_DoesNotAliasLiveState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	exported, err := store.Export(ctx)
	require.NoError(t, err)

	// Mutating the export must not leak into the published graph.
	exported.AddNode("mutant")
	exported.Adjacency["ams"]["rtm"].Weight = 999
	exported.Adjacency["ams"]["rtm"].Metadata["departure"] = "23:59"

	ok, err := store.HasNode(ctx, "mutant")
	require.NoError(t, err)
	assert.False(t, ok)

	weight, err := store.EdgeWeight(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, weight, 0.001)

	meta, err := store.EdgeMetadata(ctx, "ams", "rtm")
	require.NoError(t, err)
	assert.Equal(t, "08:15", meta["departure"])
}

func TestStore_DeleteGraph(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	require.NoError(t, store.Import(ctx, testSnapshot("v1")))

	require.NoError(t, store.DeleteGraph(ctx))

	_, err := store.Version(ctx)
	assert.ErrorIs(t, err, graph.ErrGraphUnavailable)
}

func TestStore_MetadataLineage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	now := time.Now().UTC()
	require.NoError(t, store.SaveMetadata(ctx, &graph.Metadata{
		ID: "gm-1", Version: "v1", DatasetVersion: "ds-2026-01", TotalNodes: 3, TotalEdges: 2, CreatedAt: now,
	}))
	require.NoError(t, store.SaveMetadata(ctx, &graph.Metadata{
		ID: "gm-2", Version: "v2", DatasetVersion: "ds-2026-01", TotalNodes: 4, TotalEdges: 3, CreatedAt: now.Add(time.Minute),
	}))

	require.NoError(t, store.SetActiveMetadata(ctx, "v2"))

	active, err := store.ActiveMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", active.Version)

	// Re-activating v1 clears the flag on v2.
	require.NoError(t, store.SetActiveMetadata(ctx, "v1"))
	active, err = store.ActiveMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", active.Version)

	byVersion, err := store.MetadataByVersion(ctx, "v2")
	require.NoError(t, err)
	assert.False(t, byVersion.Active)

	lineage, err := store.MetadataByDatasetVersion(ctx, "ds-2026-01")
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, "v1", lineage[0].Version)
	assert.Equal(t, "v2", lineage[1].Version)

	_, err = store.MetadataByID(ctx, "missing")
	assert.ErrorIs(t, err, graph.ErrMetadataNotFound)
}

func TestComputeDensity(t *testing.T) {
	assert.Equal(t, 0.0, graph.ComputeDensity(0, 0))
	assert.Equal(t, 0.0, graph.ComputeDensity(1, 0))
	assert.InDelta(t, 1.0, graph.ComputeDensity(2, 2), 0.001)
	assert.InDelta(t, 0.5, graph.ComputeDensity(3, 3), 0.001)
}
