package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// Default search bounds. The expansion bound caps worst-case latency on
// degenerate graphs; the buffer models the minimum realistic transfer time.
const (
	defaultMaxExpandedNodes  = 50000
	defaultTransferBufferMin = 10.0
	defaultCacheTTL          = 2 * time.Minute
	cachePruneThreshold      = 1024
)

// ServiceConfig holds configuration for the search service.
type ServiceConfig struct {
	// Store serves graph reads.
	Store *graph.Store

	// Stops resolves city names to canonical stops.
	Stops transit.StopRepository

	// MaxExpandedNodes bounds one pathfinder run. Zero means default.
	MaxExpandedNodes int

	// TransferBufferMin is the per-transfer duration penalty in minutes.
	// Zero means default.
	TransferBufferMin float64

	// CacheTTL bounds how long a computed result may be served from cache.
	// Zero means default.
	CacheTTL time.Duration

	// Logger for search operations.
	Logger zerolog.Logger
}

type cacheEntry struct {
	result  *Result
	expires time.Time
}

// Service answers route queries. It holds no graph state of its own: every
// request pins the published version once and computes against that snapshot,
// so a pipeline run promoting a new version mid-request is never observed.
type Service struct {
	store       *graph.Store
	stops       transit.StopRepository
	maxExpanded int
	bufferMin   float64
	cacheTTL    time.Duration
	logger      zerolog.Logger

	cache *resultCache
}

// NewService creates a search service with defaults applied.
func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxExpandedNodes <= 0 {
		cfg.MaxExpandedNodes = defaultMaxExpandedNodes
	}
	if cfg.TransferBufferMin <= 0 {
		cfg.TransferBufferMin = defaultTransferBufferMin
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	return &Service{
		store:       cfg.Store,
		stops:       cfg.Stops,
		maxExpanded: cfg.MaxExpandedNodes,
		bufferMin:   cfg.TransferBufferMin,
		cacheTTL:    cfg.CacheTTL,
		logger:      cfg.Logger,
		cache:       newResultCache(),
	}
}

// BuildRoute answers one route query against the currently published graph.
// Identical queries against the same graph version return identical routes.
func (s *Service) BuildRoute(ctx context.Context, query Query) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	// Pin the version first. It scopes both the cache key and the snapshot,
	// so a result is never served across a version promotion.
	version, err := s.store.Version(ctx)
	if err != nil {
		return nil, err
	}

	key := cacheKey(version, query)
	if result, ok := s.cache.get(key); ok {
		return result, nil
	}

	snapshot, err := s.store.SnapshotForVersion(ctx, version)
	if err != nil {
		return nil, err
	}

	originStop, err := s.resolveCityStop(ctx, query.Origin)
	if err != nil {
		return nil, err
	}
	destinationStop, err := s.resolveCityStop(ctx, query.Destination)
	if err != nil {
		return nil, err
	}
	if originStop.ID == destinationStop.ID {
		return nil, fmt.Errorf("%w: origin and destination resolve to the same stop", ErrInvalidQuery)
	}

	finder := &pathfinder{
		snap:        snapshot,
		weights:     PreferenceWeights[query.Preference],
		allowed:     allowedTransports(query.Transport),
		bufferMin:   s.bufferMin,
		maxExpanded: s.maxExpanded,
	}

	primary, err := finder.shortestPath(originStop.ID, destinationStop.ID, nil)
	if err != nil {
		return nil, err
	}

	routes := []*BuiltRoute{s.materialize(primary, version, query.Passengers)}
	for _, alt := range s.alternatives(finder, originStop.ID, destinationStop.ID, primary, query.MaxAlternatives) {
		routes = append(routes, s.materialize(alt, version, query.Passengers))
	}

	result := &Result{
		Routes:         routes,
		GraphVersion:   version,
		GraphAvailable: true,
	}
	s.cache.put(key, result, s.cacheTTL)

	s.logger.Debug().
		Str("origin", query.Origin).
		Str("destination", query.Destination).
		Str("graph_version", version).
		Int("routes", len(routes)).
		Msg("route built")

	return result, nil
}

// resolveCityStop maps a city name to its canonical stop: the virtual hub when
// one exists, otherwise the real stop with the smallest id. The tie-break is
// what keeps identical queries deterministic.
func (s *Service) resolveCityStop(ctx context.Context, city string) (*transit.Stop, error) {
	stops, err := s.stops.ListByCity(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: city %q", ErrStopsNotFound, city)
	}

	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	for _, stop := range stops {
		if stop.IsVirtual {
			return stop, nil
		}
	}
	return stops[0], nil
}

// alternatives seeds one constrained search per distinct first hop other than
// the primary's and returns the best ones in deterministic order.
func (s *Service) alternatives(finder *pathfinder, origin, destination string, primary *pathResult, max int) []*pathResult {
	if max <= 0 || len(primary.steps) == 0 {
		return nil
	}
	primaryFirst := primary.steps[0].edge

	var found []*pathResult
	for _, edge := range finder.snap.Neighbors(origin) {
		if edge.To == primaryFirst.To || !finder.transportAllowed(edge) {
			continue
		}
		alt, err := finder.shortestPath(origin, destination, edge)
		if err != nil {
			continue
		}
		found = append(found, alt)
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].cost != found[j].cost {
			return found[i].cost < found[j].cost
		}
		if found[i].transfers != found[j].transfers {
			return found[i].transfers < found[j].transfers
		}
		return found[i].steps[0].edge.To < found[j].steps[0].edge.To
	})

	if len(found) > max {
		found = found[:max]
	}
	return found
}

// materialize turns a raw path into the response shape. Total price scales
// with the passenger count; total duration includes transfer buffers.
func (s *Service) materialize(path *pathResult, version string, passengers int) *BuiltRoute {
	route := &BuiltRoute{
		ID:            "rt-" + uuid.New().String()[:8],
		Segments:      make([]Segment, 0, len(path.steps)),
		TransferCount: path.transfers,
		GraphVersion:  version,
	}

	var prev *graph.Edge
	for _, step := range path.steps {
		segment := Segment{
			FromStopID:  step.from,
			ToStopID:    step.edge.To,
			Transport:   step.edge.Transport,
			DurationMin: step.edge.Weight,
			Price:       step.edge.Price,
			DistanceKm:  step.edge.DistanceKm,
			RouteID:     step.edge.RouteID,
			Metadata:    step.edge.Metadata,
		}
		if isTransfer(prev, step.edge) {
			segment.TransferBufferMin = s.bufferMin
		}
		route.Segments = append(route.Segments, segment)
		route.TotalDurationMin += segment.DurationMin + segment.TransferBufferMin
		route.TotalPrice += segment.Price * float64(passengers)
		prev = step.edge
	}

	return route
}

func allowedTransports(transports []transit.TransportType) map[transit.TransportType]struct{} {
	if len(transports) == 0 {
		return nil
	}
	allowed := make(map[transit.TransportType]struct{}, len(transports))
	for _, t := range transports {
		allowed[t] = struct{}{}
	}
	return allowed
}

// cacheKey scopes a query result to one graph version. The date is truncated
// to the day because schedules are day-granular.
func cacheKey(version string, q Query) string {
	transports := make([]string, 0, len(q.Transport))
	for _, t := range q.Transport {
		transports = append(transports, string(t))
	}
	sort.Strings(transports)

	return strings.Join([]string{
		version,
		strings.ToLower(strings.TrimSpace(q.Origin)),
		strings.ToLower(strings.TrimSpace(q.Destination)),
		q.Date.UTC().Format("2006-01-02"),
		fmt.Sprintf("%d", q.Passengers),
		string(q.Preference),
		strings.Join(transports, ","),
		fmt.Sprintf("%d", q.MaxAlternatives),
	}, "|")
}
