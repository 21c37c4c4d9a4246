// Package pipeline rebuilds the transit graph: it syncs the external feed
// into the source repositories, derives virtual entities, builds the
// adjacency structure and atomically promotes the new graph version.
package pipeline

import (
	"context"
	"errors"

	"github.com/transitgrid/transitgrid/internal/transit"
)

// Pipeline errors.
var (
	// ErrPipelineBusy is returned when a rebuild is already in progress.
	ErrPipelineBusy = errors.New("pipeline already running")
)

// Stage is one ordered, idempotent unit of the rebuild pipeline. Stages run
// strictly in sequence; each may fan out internally.
type Stage interface {
	// Name identifies the stage in results and logs.
	Name() string

	// Run executes the stage. A returned error fails the pipeline run and
	// leaves the previously published graph version untouched.
	Run(ctx context.Context) (StageResult, error)
}

// StageResult reports what a completed stage did.
type StageResult struct {
	ItemsProcessed int
	ItemsSkipped   int
	Detail         string
}

// Repositories bundles the source repositories every stage reads or writes.
type Repositories struct {
	Stops    transit.StopRepository
	Segments transit.SegmentRepository
	Flights  transit.FlightRepository
	Datasets transit.DatasetRepository
}
