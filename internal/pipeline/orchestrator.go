package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the orchestrator's observable lifecycle state.
type State string

const (
	StateIdle       State = "Idle"
	StateSyncing    State = "Syncing"
	StateGenerating State = "GeneratingVirtualEntities"
	StateBuilding   State = "BuildingGraph"
	StatePublished  State = "Published"
	StateFailed     State = "Failed"
)

// Result reports one full pipeline run.
type Result struct {
	Success        bool          `json:"success"`
	Duration       time.Duration `json:"duration"`
	StagesExecuted int           `json:"stagesExecuted"`
	FailedStage    string        `json:"failedStage,omitempty"`
	Stages         []StageReport `json:"stages"`
}

// StageReport is the per-stage slice of a Result.
type StageReport struct {
	Name           string        `json:"name"`
	Duration       time.Duration `json:"duration"`
	ItemsProcessed int           `json:"itemsProcessed"`
	ItemsSkipped   int           `json:"itemsSkipped"`
	Detail         string        `json:"detail,omitempty"`
}

// OrchestratorConfig holds configuration for the pipeline orchestrator.
type OrchestratorConfig struct {
	// Stages run strictly in order. Normally sync, virtual, build.
	Stages []Stage

	// Repositories back the RebuildNeeded decision.
	Repositories Repositories

	// Logger for orchestrator operations.
	Logger zerolog.Logger
}

// Orchestrator runs the rebuild pipeline as a single logical job. Concurrent
// triggers are rejected with ErrPipelineBusy; readers of the published graph
// are never blocked by a run.
type Orchestrator struct {
	stages []Stage
	repos  Repositories
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	state   State
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		stages: cfg.Stages,
		repos:  cfg.Repositories,
		logger: cfg.Logger,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Running reports whether a pipeline run is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// stateForStage maps a stage position to its lifecycle state.
func (o *Orchestrator) stateForStage(name string) State {
	switch name {
	case "sync":
		return StateSyncing
	case "virtual-entities":
		return StateGenerating
	case "graph-build":
		return StateBuilding
	default:
		return StateBuilding
	}
}

// ExecuteFullPipeline runs all stages in order. On stage failure the run
// stops, the failing stage is reported, and the previously published graph
// version remains queryable throughout.
func (o *Orchestrator) ExecuteFullPipeline(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrPipelineBusy
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.state = StateIdle
		o.mu.Unlock()
	}()

	start := time.Now()
	result := &Result{}

	o.logger.Info().Int("stages", len(o.stages)).Msg("pipeline run started")

	for _, stage := range o.stages {
		o.setState(o.stateForStage(stage.Name()))
		stageStart := time.Now()

		stageResult, err := stage.Run(ctx)
		stageDuration := time.Since(stageStart)

		if err != nil {
			o.setState(StateFailed)
			result.Duration = time.Since(start)
			result.FailedStage = stage.Name()

			o.logger.Error().Err(err).
				Str("stage", stage.Name()).
				Dur("duration", stageDuration).
				Msg("pipeline stage failed, published graph untouched")

			return result, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		result.StagesExecuted++
		result.Stages = append(result.Stages, StageReport{
			Name:           stage.Name(),
			Duration:       stageDuration,
			ItemsProcessed: stageResult.ItemsProcessed,
			ItemsSkipped:   stageResult.ItemsSkipped,
			Detail:         stageResult.Detail,
		})

		o.logger.Info().
			Str("stage", stage.Name()).
			Dur("duration", stageDuration).
			Int("processed", stageResult.ItemsProcessed).
			Int("skipped", stageResult.ItemsSkipped).
			Msg("pipeline stage completed")
	}

	o.setState(StatePublished)
	result.Success = true
	result.Duration = time.Since(start)

	o.logger.Info().
		Dur("duration", result.Duration).
		Int("stages", result.StagesExecuted).
		Msg("pipeline run completed")

	return result, nil
}

// RebuildNeeded reports whether the source repositories are empty enough to
// warrant a startup build. The independent count queries run concurrently.
func (o *Orchestrator) RebuildNeeded(ctx context.Context) (bool, error) {
	var (
		wg     sync.WaitGroup
		counts = make([]int, 4)
		errs   = make([]error, 4)
	)

	wg.Add(4)
	go func() { defer wg.Done(); counts[0], errs[0] = o.repos.Stops.CountReal(ctx) }()
	go func() { defer wg.Done(); counts[1], errs[1] = o.repos.Segments.Count(ctx) }()
	go func() { defer wg.Done(); counts[2], errs[2] = o.repos.Flights.Count(ctx) }()
	go func() { defer wg.Done(); counts[3], errs[3] = o.repos.Datasets.Count(ctx) }()
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return false, err
	}

	// No stops means nothing was ever synced; no datasets means lineage is
	// missing even if tables carry leftovers.
	return counts[0] == 0 || counts[3] == 0, nil
}
