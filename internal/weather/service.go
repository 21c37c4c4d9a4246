package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider fetches weather observations from an external source.
type Provider interface {
	// ObservationAt fetches current weather for a location.
	ObservationAt(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// CacheTTL is how long observations stay fresh (default 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize groups nearby points into one cache cell, in degrees
	// (default 0.1, roughly 11km).
	CacheGridSize float64

	// StaleIfErrorTTL allows serving expired data on provider errors
	// (default 1 hour).
	StaleIfErrorTTL time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service caches provider observations per grid cell. Risk assessment hits
// the same handful of cities repeatedly, so the cache absorbs nearly all
// provider traffic.
type Service struct {
	provider        Provider
	cacheTTL        time.Duration
	gridSize        float64
	staleIfErrorTTL time.Duration
	logger          zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*cachedObservation
}

type cachedObservation struct {
	observation *Observation
	fetchedAt   time.Time
	expiresAt   time.Time
}

// NewService creates a weather service with defaults applied.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.CacheGridSize == 0 {
		cfg.CacheGridSize = 0.1
	}
	if cfg.StaleIfErrorTTL == 0 {
		cfg.StaleIfErrorTTL = time.Hour
	}

	return &Service{
		provider:        cfg.Provider,
		cacheTTL:        cfg.CacheTTL,
		gridSize:        cfg.CacheGridSize,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		logger:          cfg.Logger,
		cache:           make(map[string]*cachedObservation),
	}
}

// ObservationAt returns current weather for a location, served from cache
// when fresh.
func (s *Service) ObservationAt(ctx context.Context, lat, lon float64) (*Observation, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}

	key := s.cacheKey(lat, lon)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.observation, nil
	}
	s.mu.RUnlock()

	return s.fetch(ctx, lat, lon, key)
}

func (s *Service) fetch(ctx context.Context, lat, lon float64, key string) (*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check under the write lock.
	if cached, ok := s.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.observation, nil
	}

	obs, err := s.provider.ObservationAt(ctx, lat, lon)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("weather fetch failed")

		if cached, ok := s.cache[key]; ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale weather observation")
			return cached.observation, nil
		}
		return nil, ErrProviderUnavailable
	}

	now := time.Now()
	s.cache[key] = &cachedObservation{
		observation: obs,
		fetchedAt:   now,
		expiresAt:   now.Add(s.cacheTTL),
	}
	return obs, nil
}

// InvalidateCache clears all cached observations.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedObservation)
}

func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.gridSize) * s.gridSize
	gridLon := math.Floor(lon/s.gridSize) * s.gridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon)
}

// StaticProvider serves a fixed observation, used when no external weather
// API is configured and as a test double.
type StaticProvider struct {
	Observation Observation
}

// ObservationAt returns the fixed observation stamped with the query point.
func (p *StaticProvider) ObservationAt(_ context.Context, lat, lon float64) (*Observation, error) {
	obs := p.Observation
	obs.Lat = lat
	obs.Lon = lon
	if obs.Condition == "" {
		obs.Condition = ConditionClear
	}
	now := time.Now()
	obs.ObservedAt = now
	obs.FetchedAt = now
	return &obs, nil
}

// Name identifies the provider for logging.
func (p *StaticProvider) Name() string {
	return "static"
}

// Ensure StaticProvider implements Provider.
var _ Provider = (*StaticProvider)(nil)
