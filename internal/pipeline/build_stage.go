package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// BuildStage computes the adjacency structure and edge weights from all real
// and virtual entities, stages the snapshot in the graph store and promotes
// it. Promotion (SetVersion) is the last write: a failure anywhere before it
// leaves the previously published version untouched.
type BuildStage struct {
	repos       Repositories
	store       *graph.Store
	objectStore source.ObjectStore
	logger      zerolog.Logger
}

// NewBuildStage creates the graph-build stage.
func NewBuildStage(repos Repositories, store *graph.Store, objectStore source.ObjectStore, logger zerolog.Logger) *BuildStage {
	return &BuildStage{
		repos:       repos,
		store:       store,
		objectStore: objectStore,
		logger:      logger,
	}
}

// Name identifies the stage.
func (s *BuildStage) Name() string {
	return "graph-build"
}

// Run builds and publishes a new graph version.
func (s *BuildStage) Run(ctx context.Context) (StageResult, error) {
	var (
		wg       sync.WaitGroup
		stops    []*transit.Stop
		segments []*transit.Segment
		flights  []*transit.Flight
		errs     = make([]error, 3)
	)

	// The three reads are independent; fetch them concurrently.
	wg.Add(3)
	go func() { defer wg.Done(); stops, errs[0] = s.repos.Stops.List(ctx) }()
	go func() { defer wg.Done(); segments, errs[1] = s.repos.Segments.ListAll(ctx) }()
	go func() { defer wg.Done(); flights, errs[2] = s.repos.Flights.ListAll(ctx) }()
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return StageResult{}, err
	}

	version := fmt.Sprintf("v-%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:6])
	snapshot := s.buildSnapshot(version, stops, segments, flights)

	datasetVersion := ""
	if latest, err := s.repos.Datasets.Latest(ctx); err == nil {
		datasetVersion = latest.Version
	}

	if err := s.store.SaveGraph(ctx, snapshot); err != nil {
		return StageResult{}, fmt.Errorf("stage graph: %w", err)
	}

	meta := &graph.Metadata{
		ID:             "gm-" + uuid.New().String()[:8],
		Version:        version,
		DatasetVersion: datasetVersion,
		TotalNodes:     len(snapshot.Nodes),
		TotalEdges:     snapshot.EdgeCount(),
		BuiltAt:        snapshot.BuiltAt,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveMetadata(ctx, meta); err != nil {
		return StageResult{}, fmt.Errorf("save graph metadata: %w", err)
	}

	// Promotion boundary. Everything after this point is best-effort.
	if err := s.store.SetVersion(ctx, version); err != nil {
		return StageResult{}, fmt.Errorf("promote graph: %w", err)
	}
	if err := s.store.SetActiveMetadata(ctx, version); err != nil {
		return StageResult{}, fmt.Errorf("activate graph metadata: %w", err)
	}

	s.archiveDataset(ctx, datasetVersion, snapshot)

	return StageResult{
		ItemsProcessed: len(snapshot.Nodes) + snapshot.EdgeCount(),
		Detail:         fmt.Sprintf("version %s", version),
	}, nil
}

// buildSnapshot composes the adjacency structure. Several schedule entries
// on the same stop pair collapse into one edge carrying the fastest
// connection and a schedule count in its metadata.
func (s *BuildStage) buildSnapshot(version string, stops []*transit.Stop, segments []*transit.Segment, flights []*transit.Flight) *graph.Snapshot {
	snapshot := graph.NewSnapshot(version)

	known := make(map[string]struct{}, len(stops))
	for _, stop := range stops {
		snapshot.AddNode(stop.ID)
		known[stop.ID] = struct{}{}
	}

	for _, segment := range segments {
		if !validEndpoints(known, segment.FromStopID, segment.ToStopID) {
			continue
		}
		s.mergeEdge(snapshot, segment.FromStopID, &graph.Edge{
			To:         segment.ToStopID,
			Weight:     float64(segment.DurationMin),
			Price:      segment.Price,
			DistanceKm: segment.DistanceKm,
			Transport:  segment.Transport,
			RouteID:    segment.RouteID,
			Metadata:   map[string]string{"departure": segment.Departure},
		})
	}

	for _, flight := range flights {
		if !validEndpoints(known, flight.FromStopID, flight.ToStopID) {
			continue
		}
		metadata := map[string]string{
			"flightNumber": flight.Number,
			"departure":    flight.Departure.UTC().Format("15:04"),
		}
		if flight.SeatsTotal > 0 {
			occupancy := float64(flight.SeatsTotal-flight.SeatsFree) / float64(flight.SeatsTotal)
			metadata["occupancy"] = strconv.FormatFloat(occupancy, 'f', 2, 64)
		}
		s.mergeEdge(snapshot, flight.FromStopID, &graph.Edge{
			To:         flight.ToStopID,
			Weight:     float64(flight.DurationMin()),
			Price:      flight.Price,
			DistanceKm: flight.DistanceKm,
			Transport:  transit.TransportFlight,
			RouteID:    "flight-" + flight.Number,
			Metadata:   metadata,
		})
	}

	return snapshot
}

// mergeEdge keeps the fastest connection per stop pair and counts the
// schedule entries collapsed into it.
func (s *BuildStage) mergeEdge(snapshot *graph.Snapshot, from string, edge *graph.Edge) {
	existing, ok := snapshot.Adjacency[from][edge.To]
	if !ok {
		edge.Metadata["scheduleCount"] = "1"
		snapshot.AddEdge(from, edge)
		return
	}

	count := 1
	if c, err := strconv.Atoi(existing.Metadata["scheduleCount"]); err == nil {
		count = c
	}

	if edge.Weight < existing.Weight {
		edge.Metadata["scheduleCount"] = strconv.Itoa(count + 1)
		snapshot.AddEdge(from, edge)
		return
	}
	existing.Metadata["scheduleCount"] = strconv.Itoa(count + 1)
}

// archiveDataset uploads the built snapshot. Failure is logged, never
// fatal: the graph is already published.
func (s *BuildStage) archiveDataset(ctx context.Context, datasetVersion string, snapshot *graph.Snapshot) {
	if s.objectStore == nil || datasetVersion == "" {
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal snapshot for archive")
		return
	}

	if err := s.objectStore.UploadDataset(ctx, datasetVersion, payload); err != nil {
		s.logger.Warn().Err(err).
			Str("dataset_version", datasetVersion).
			Msg("dataset archive upload failed, graph already published")
	}
}

func validEndpoints(known map[string]struct{}, from, to string) bool {
	_, okFrom := known[from]
	_, okTo := known[to]
	return okFrom && okTo && from != to
}

// Ensure BuildStage implements Stage.
var _ Stage = (*BuildStage)(nil)
