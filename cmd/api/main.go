// Package main provides the entrypoint for the TransitGrid API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/api"
	"github.com/transitgrid/transitgrid/internal/api/handler"
	"github.com/transitgrid/transitgrid/internal/api/middleware"
	"github.com/transitgrid/transitgrid/internal/database"
	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/risk"
	"github.com/transitgrid/transitgrid/internal/search"
	"github.com/transitgrid/transitgrid/internal/source"
	"github.com/transitgrid/transitgrid/internal/telemetry"
	"github.com/transitgrid/transitgrid/internal/transit"
	"github.com/transitgrid/transitgrid/internal/weather"
	"github.com/transitgrid/transitgrid/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "transitgrid-api"

	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TransitGrid API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database. Without one the service runs on in-memory
	// repositories, which suits local development and tests.
	var (
		repos    pipeline.Repositories
		metaRepo graph.MetadataRepository
		dbPing   func(context.Context) error
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
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		repos = pipeline.Repositories{
			Stops:    transit.NewPostgresStopRepository(pool),
			Segments: transit.NewPostgresSegmentRepository(pool),
			Flights:  transit.NewPostgresFlightRepository(pool),
			Datasets: transit.NewPostgresDatasetRepository(pool),
		}
		metaRepo = graph.NewPostgresMetadataRepository(pool)
		dbPing = pool.Ping
	}

	// Hybrid graph store: in-memory cache for traversal, durable metadata
	// for lineage.
	graphStore := graph.NewStore(graph.StoreConfig{
		Cache:    graph.NewMemoryCache(),
		Metadata: metaRepo,
		Logger:   log,
	})

	// Feed source: remote feed when FEED_URL is set, local files otherwise.
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
	log.Info().Str("feed", feedProvider.Name()).Msg("pipeline initialized")

	// Build the graph at startup when the source repositories are empty.
	// A failed startup build is not fatal: the API serves GRAPH_NOT_AVAILABLE
	// until a rebuild succeeds.
	if needed, rebuildErr := orchestrator.RebuildNeeded(ctx); rebuildErr != nil {
		log.Warn().Err(rebuildErr).Msg("startup rebuild check failed")
	} else if needed {
		log.Info().Msg("running startup graph build")
		if _, buildErr := orchestrator.ExecuteFullPipeline(ctx); buildErr != nil {
			log.Error().Err(buildErr).Msg("startup graph build failed")
		}
	}

	searchService := search.NewService(search.ServiceConfig{
		Store:  graphStore,
		Stops:  repos.Stops,
		Logger: log,
	})
	log.Info().Msg("search service initialized")

	// Weather: live provider when an API key is configured, a calm static
	// observation otherwise.
	var weatherProvider weather.Provider
	if apiKey := os.Getenv("OWM_API_KEY"); apiKey != "" {
		weatherProvider = openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey: apiKey,
			Logger: log,
		})
	} else {
		log.Warn().Msg("OWM_API_KEY not set, weather factor uses static observations")
		weatherProvider = &weather.StaticProvider{}
	}
	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: weatherProvider,
		Logger:   log,
	})
	log.Info().Str("provider", weatherProvider.Name()).Msg("weather service initialized")

	riskEngine := risk.NewEngine(risk.EngineConfig{
		History: risk.NewInMemoryHistoryProvider(),
		Weather: weatherService,
		Stops:   repos.Stops,
		Logger:  log,
	})
	log.Info().Msg("risk engine initialized")

	readyChecks := []handler.ReadyCheck{
		{
			Name: "graph",
			Probe: func(ctx context.Context) error {
				_, versionErr := graphStore.Version(ctx)
				return versionErr
			},
		},
	}
	if dbPing != nil {
		readyChecks = append(readyChecks, handler.ReadyCheck{
			Name:  "database",
			Probe: dbPing,
		})
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		SearchSvc:    searchService,
		RiskEngine:   riskEngine,
		GraphStore:   graphStore,
		Orchestrator: orchestrator,
		ReadyChecks:  readyChecks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
