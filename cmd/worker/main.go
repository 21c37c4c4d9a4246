// Package main provides the entrypoint for the TransitGrid worker.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/database"
	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/transit"
	"github.com/transitgrid/transitgrid/internal/weather"
	"github.com/transitgrid/transitgrid/internal/weather/openweathermap"
	"github.com/transitgrid/transitgrid/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "transitgrid-worker"

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TransitGrid worker")

	// Worker also exposes health endpoints for the platform.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database. Without one the worker runs on in-memory
	// repositories, which suits local development.
	var (
		repos    pipeline.Repositories
		metaRepo graph.MetadataRepository
	)
	dbConfig := database.ConfigFromEnv()
	pool, dbErr := database.Connect(ctx, dbConfig)
	if dbErr != nil {
		log.Warn().Err(dbErr).Msg("database unavailable, using in-memory repositories")
		repos = pipeline.Repositories{
			Stops:    transit.NewInMemoryStopRepository(),
			Segments: transit.NewInMemorySegmentRepository(),
			Flights:  transit.NewInMemoryFlightRepository(),
			Datasets: transit.NewInMemoryDatasetRepository(),
		}
		metaRepo = graph.NewInMemoryMetadataRepository()
	} else {
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Str("database", dbConfig.Database).
			Msg("database connected")

		repos = pipeline.Repositories{
			Stops:    transit.NewPostgresStopRepository(pool),
			Segments: transit.NewPostgresSegmentRepository(pool),
			Flights:  transit.NewPostgresFlightRepository(pool),
			Datasets: transit.NewPostgresDatasetRepository(pool),
		}
		metaRepo = graph.NewPostgresMetadataRepository(pool)
	}

	graphStore := graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: metaRepo,
		Logger:   log,
	})

	var feedProvider source.FeedProvider
	if feedURL := os.Getenv("FEED_URL"); feedURL != "" {
		feedProvider = source.NewHTTPProvider(source.HTTPProviderConfig{
			BaseURL: feedURL,
			Logger:  log,
		})
	} else {
		feedDir := os.Getenv("FEED_DIR")
		if feedDir == "" {
			feedDir = "./data/feed"
		}
		feedProvider = source.NewFileProvider(feedDir, log)
	}

	snapshotDir := os.Getenv("SNAPSHOT_DIR")
	if snapshotDir == "" {
		snapshotDir = "./data/snapshots"
	}
	objectStore := source.NewFileObjectStore(snapshotDir, log)

	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Stages: []pipeline.Stage{
			pipeline.NewSyncStage(feedProvider, repos, log),
			pipeline.NewVirtualStage(repos, log),
			pipeline.NewBuildStage(repos, graphStore, objectStore, log),
		},
		Repositories: repos,
		Logger:       log,
	})

	// Weather service for post-rebuild cache warmup. Only wired when a
	// live provider is configured; warming a static provider is pointless.
	var weatherService *weather.Service
	if apiKey := os.Getenv("OWM_API_KEY"); apiKey != "" {
		weatherService = weather.NewService(weather.ServiceConfig{
			Provider: openweathermap.NewClient(openweathermap.ClientConfig{
				APIKey: apiKey,
				Logger: log,
			}),
			Logger: log,
		})
	}

	rebuildJob := worker.NewRebuildJob(worker.RebuildJobConfig{
		Config:         worker.DefaultRebuildConfig(),
		Logger:         log,
		Orchestrator:   orchestrator,
		Store:          graphStore,
		WeatherService: weatherService,
	})

	// Health and metrics endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(rebuildJob.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Rebuild triggers arrive over Pub/Sub when configured. Without a
	// project the worker falls back to a local rebuild ticker.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RebuildJob:       rebuildJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub receive failed")
			}
		}()
	} else {
		interval := 6 * time.Hour
		if raw := os.Getenv("REBUILD_INTERVAL"); raw != "" {
			if parsed, err := time.ParseDuration(raw); err == nil {
				interval = parsed
			}
		}

		log.Info().
			Dur("interval", interval).
			Msg("pubsub not configured, running local rebuild ticker")

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Initial run brings an empty deployment up without waiting
			// a full interval.
			if _, err := rebuildJob.Run(ctx, false); err != nil {
				log.Error().Err(err).Msg("rebuild failed")
			}

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := rebuildJob.Run(ctx, false); err != nil {
						log.Error().Err(err).Msg("rebuild failed")
					}
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
