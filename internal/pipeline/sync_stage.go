package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// SyncStage fetches the external transport feed and upserts it into the
// source repositories. Upserts are keyed on natural identity, so running the
// stage twice over unchanged input is a no-op.
type SyncStage struct {
	provider source.FeedProvider
	repos    Repositories
	logger   zerolog.Logger
}

// NewSyncStage creates the sync stage.
func NewSyncStage(provider source.FeedProvider, repos Repositories, logger zerolog.Logger) *SyncStage {
	return &SyncStage{provider: provider, repos: repos, logger: logger}
}

// Name identifies the stage.
func (s *SyncStage) Name() string {
	return "sync"
}

// Run fetches the feed and upserts stops, segments and flights. The three
// upsert batches are independent and run concurrently; the stage joins them
// before completing so the next stage sees committed state.
func (s *SyncStage) Run(ctx context.Context) (StageResult, error) {
	snapshot, err := s.provider.FetchAll(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("fetch feed from %s: %w", s.provider.Name(), err)
	}

	now := time.Now().UTC()
	var wg sync.WaitGroup
	errs := make([]error, 3)
	counts := make([]int, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		counts[0], errs[0] = s.upsertStops(ctx, snapshot.Stops, now)
	}()
	go func() {
		defer wg.Done()
		counts[1], errs[1] = s.upsertSegments(ctx, snapshot.Segments, now)
	}()
	go func() {
		defer wg.Done()
		counts[2], errs[2] = s.upsertFlights(ctx, snapshot.Flights, now)
	}()
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return StageResult{}, err
	}

	if err := s.recordDataset(ctx, snapshot, now); err != nil {
		return StageResult{}, err
	}

	processed := counts[0] + counts[1] + counts[2]
	s.logger.Info().
		Int("stops", counts[0]).
		Int("segments", counts[1]).
		Int("flights", counts[2]).
		Strs("skipped_feeds", snapshot.Skipped).
		Str("dataset_version", snapshot.DatasetVersion).
		Msg("feed synced")

	return StageResult{
		ItemsProcessed: processed,
		ItemsSkipped:   len(snapshot.Skipped),
		Detail:         fmt.Sprintf("dataset %s", snapshot.DatasetVersion),
	}, nil
}

func (s *SyncStage) upsertStops(ctx context.Context, stops []*transit.Stop, now time.Time) (int, error) {
	for _, stop := range stops {
		stop.IsVirtual = false
		if stop.CreatedAt.IsZero() {
			stop.CreatedAt = now
		}
		stop.UpdatedAt = now
		if err := s.repos.Stops.Upsert(ctx, stop); err != nil {
			return 0, fmt.Errorf("upsert stop %s: %w", stop.ID, err)
		}
	}
	return len(stops), nil
}

func (s *SyncStage) upsertSegments(ctx context.Context, segments []*transit.Segment, now time.Time) (int, error) {
	for _, segment := range segments {
		if segment.ID == "" {
			segment.ID = "seg-" + uuid.New().String()[:8]
		}
		if segment.CreatedAt.IsZero() {
			segment.CreatedAt = now
		}
		segment.UpdatedAt = now
		if err := s.repos.Segments.Upsert(ctx, segment); err != nil {
			return 0, fmt.Errorf("upsert segment %s: %w", segment.NaturalKey(), err)
		}
	}
	return len(segments), nil
}

func (s *SyncStage) upsertFlights(ctx context.Context, flights []*transit.Flight, now time.Time) (int, error) {
	for _, flight := range flights {
		if flight.ID == "" {
			flight.ID = "flt-" + uuid.New().String()[:8]
		}
		if flight.CreatedAt.IsZero() {
			flight.CreatedAt = now
		}
		flight.UpdatedAt = now
		if err := s.repos.Flights.Upsert(ctx, flight); err != nil {
			return 0, fmt.Errorf("upsert flight %s: %w", flight.Number, err)
		}
	}
	return len(flights), nil
}

// recordDataset stores lineage for this sync unless the latest recorded
// dataset already carries the same version (unchanged input).
func (s *SyncStage) recordDataset(ctx context.Context, snapshot *source.FeedSnapshot, now time.Time) error {
	latest, err := s.repos.Datasets.Latest(ctx)
	if err == nil && latest.Version == snapshot.DatasetVersion {
		return nil
	}
	if err != nil && !errors.Is(err, transit.ErrDatasetNotFound) {
		return err
	}

	return s.repos.Datasets.Create(ctx, &transit.Dataset{
		ID:           "dst-" + uuid.New().String()[:8],
		Version:      snapshot.DatasetVersion,
		SourceURI:    s.provider.Name(),
		StopCount:    len(snapshot.Stops),
		SegmentCount: len(snapshot.Segments),
		FlightCount:  len(snapshot.Flights),
		CreatedAt:    now,
	})
}

// Ensure SyncStage implements Stage.
var _ Stage = (*SyncStage)(nil)
