package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/weather"
)

// RebuildJob runs the graph rebuild pipeline and the post-rebuild warmup.
type RebuildJob struct {
	config       RebuildConfig
	logger       zerolog.Logger
	orchestrator *pipeline.Orchestrator
	store        *graph.Store

	// Weather service for cache warmup (optional, nil disables warmup).
	weatherService *weather.Service

	metrics *RebuildMetrics
}

// RebuildMetrics tracks rebuild job statistics.
type RebuildMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	SkippedRuns    int64
	WarmupFetches  int64
	WarmupFailures int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration

	// LastGraphVersion is the version published by the last successful run.
	LastGraphVersion string
}

// RebuildJobConfig holds configuration for creating a RebuildJob.
type RebuildJobConfig struct {
	Config         RebuildConfig
	Logger         zerolog.Logger
	Orchestrator   *pipeline.Orchestrator
	Store          *graph.Store
	WeatherService *weather.Service
}

// NewRebuildJob creates a new rebuild job processor.
func NewRebuildJob(cfg RebuildJobConfig) *RebuildJob {
	config := cfg.Config
	if config.Timeout == 0 {
		config = DefaultRebuildConfig()
	}

	return &RebuildJob{
		config:         config,
		logger:         cfg.Logger,
		orchestrator:   cfg.Orchestrator,
		store:          cfg.Store,
		weatherService: cfg.WeatherService,
		metrics:        &RebuildMetrics{},
	}
}

// RebuildResult contains the result of one rebuild trigger.
type RebuildResult struct {
	Skipped      bool
	GraphVersion string
	Pipeline     *pipeline.Result
}

// Run executes one rebuild trigger. Unless forced, it first consults
// RebuildNeeded so scheduled triggers against a healthy graph are cheap
// no-ops.
func (j *RebuildJob) Run(ctx context.Context, force bool) (*RebuildResult, error) {
	if !force {
		needed, err := j.orchestrator.RebuildNeeded(ctx)
		if err != nil {
			return nil, err
		}
		if !needed {
			j.logger.Info().Msg("rebuild not needed, skipping")
			j.recordSkip()
			return &RebuildResult{Skipped: true}, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result, err := j.orchestrator.ExecuteFullPipeline(runCtx)
	if err != nil {
		j.recordRun(result, "", false)
		return &RebuildResult{Pipeline: result}, err
	}

	version, _ := j.store.Version(ctx)
	j.recordRun(result, version, true)

	j.warmWeatherCache(ctx)

	return &RebuildResult{GraphVersion: version, Pipeline: result}, nil
}

// warmWeatherCache fetches weather for the configured hub points through a
// small worker pool, so risk assessments right after a rebuild are served
// from cache. Failures are counted, never fatal.
func (j *RebuildJob) warmWeatherCache(ctx context.Context) {
	if j.weatherService == nil {
		return
	}

	points := j.config.AllPoints()
	if len(points) == 0 {
		return
	}

	pointsChan := make(chan Point, len(points))
	var wg sync.WaitGroup
	for i := 0; i < j.config.WarmupConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for point := range pointsChan {
				fetchCtx, cancel := context.WithTimeout(ctx, j.config.WarmupTimeout)
				_, err := j.weatherService.ObservationAt(fetchCtx, point.Lat, point.Lon)
				cancel()

				if err != nil {
					atomic.AddInt64(&j.metrics.WarmupFailures, 1)
					j.logger.Warn().Err(err).
						Float64("lat", point.Lat).
						Float64("lon", point.Lon).
						Msg("weather warmup fetch failed")
					continue
				}
				atomic.AddInt64(&j.metrics.WarmupFetches, 1)
			}
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)
	wg.Wait()

	j.logger.Info().Int("points", len(points)).Msg("weather cache warmup completed")
}

func (j *RebuildJob) recordRun(result *pipeline.Result, version string, success bool) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if success {
		j.metrics.SuccessfulRuns++
		j.metrics.LastGraphVersion = version
	} else {
		j.metrics.FailedRuns++
	}
	j.metrics.LastRunAt = time.Now()
	if result != nil {
		j.metrics.LastRunDuration = result.Duration
		j.metrics.TotalDuration += result.Duration
	}
}

func (j *RebuildJob) recordSkip() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	j.metrics.TotalRuns++
	j.metrics.SkippedRuns++
	j.metrics.LastRunAt = time.Now()
}

// GetMetrics returns a copy of the current metrics.
func (j *RebuildJob) GetMetrics() RebuildMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RebuildMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulRuns:   j.metrics.SuccessfulRuns,
		FailedRuns:       j.metrics.FailedRuns,
		SkippedRuns:      j.metrics.SkippedRuns,
		WarmupFetches:    atomic.LoadInt64(&j.metrics.WarmupFetches),
		WarmupFailures:   atomic.LoadInt64(&j.metrics.WarmupFailures),
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
		LastGraphVersion: j.metrics.LastGraphVersion,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RebuildJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_runs":    m.SuccessfulRuns,
		"failed_runs":        m.FailedRuns,
		"skipped_runs":       m.SkippedRuns,
		"warmup_fetches":     m.WarmupFetches,
		"warmup_failures":    m.WarmupFailures,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
		"last_graph_version": m.LastGraphVersion,
	}
}
