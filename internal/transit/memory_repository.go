package transit

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryStopRepository is an in-memory implementation of StopRepository.
// This is intended for testing and the file-backed dev setup.
type InMemoryStopRepository struct {
	mu    sync.RWMutex
	stops map[string]*Stop
}

// NewInMemoryStopRepository creates a new in-memory stop repository.
func NewInMemoryStopRepository() *InMemoryStopRepository {
	return &InMemoryStopRepository{stops: make(map[string]*Stop)}
}

// Upsert creates or replaces a stop by its id.
func (r *InMemoryStopRepository) Upsert(_ context.Context, stop *Stop) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *stop
	r.stops[stop.ID] = &cpy
	return nil
}

// Get retrieves a stop by id.
func (r *InMemoryStopRepository) Get(_ context.Context, id string) (*Stop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stops[id]
	if !ok {
		return nil, ErrStopNotFound
	}

	cpy := *s
	return &cpy, nil
}

// List retrieves all stops sorted by id for deterministic iteration.
func (r *InMemoryStopRepository) List(_ context.Context) ([]*Stop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stops := make([]*Stop, 0, len(r.stops))
	for _, s := range r.stops {
		cpy := *s
		stops = append(stops, &cpy)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	return stops, nil
}

// ListByCity retrieves all stops in a city.
func (r *InMemoryStopRepository) ListByCity(ctx context.Context, city string) ([]*Stop, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var stops []*Stop
	for _, s := range all {
		if strings.EqualFold(s.City, city) {
			stops = append(stops, s)
		}
	}
	return stops, nil
}

// CountReal returns the number of non-virtual stops.
func (r *InMemoryStopRepository) CountReal(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, s := range r.stops {
		if !s.IsVirtual {
			count++
		}
	}
	return count, nil
}

// CountVirtual returns the number of virtual stops.
func (r *InMemoryStopRepository) CountVirtual(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, s := range r.stops {
		if s.IsVirtual {
			count++
		}
	}
	return count, nil
}

// DeleteVirtual removes all virtual stops.
func (r *InMemoryStopRepository) DeleteVirtual(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.stops {
		if s.IsVirtual {
			delete(r.stops, id)
		}
	}
	return nil
}

// InMemorySegmentRepository is an in-memory implementation of SegmentRepository.
type InMemorySegmentRepository struct {
	mu       sync.RWMutex
	segments map[string]*Segment // keyed by natural key
}

// NewInMemorySegmentRepository creates a new in-memory segment repository.
func NewInMemorySegmentRepository() *InMemorySegmentRepository {
	return &InMemorySegmentRepository{segments: make(map[string]*Segment)}
}

// Upsert creates or replaces a segment by its natural key.
func (r *InMemorySegmentRepository) Upsert(_ context.Context, segment *Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *segment
	r.segments[segment.NaturalKey()] = &cpy
	return nil
}

// ListAll retrieves all segments sorted by id.
func (r *InMemorySegmentRepository) ListAll(_ context.Context) ([]*Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segments := make([]*Segment, 0, len(r.segments))
	for _, s := range r.segments {
		cpy := *s
		segments = append(segments, &cpy)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].ID < segments[j].ID })
	return segments, nil
}

// ListFrom retrieves all segments departing a stop.
func (r *InMemorySegmentRepository) ListFrom(ctx context.Context, stopID string) ([]*Segment, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var segments []*Segment
	for _, s := range all {
		if s.FromStopID == stopID {
			segments = append(segments, s)
		}
	}
	return segments, nil
}

// Count returns the number of segments.
func (r *InMemorySegmentRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments), nil
}

// InMemoryFlightRepository is an in-memory implementation of FlightRepository.
type InMemoryFlightRepository struct {
	mu      sync.RWMutex
	flights map[string]*Flight // keyed by number + departure
}

// NewInMemoryFlightRepository creates a new in-memory flight repository.
func NewInMemoryFlightRepository() *InMemoryFlightRepository {
	return &InMemoryFlightRepository{flights: make(map[string]*Flight)}
}

func flightKey(f *Flight) string {
	return f.Number + ":" + f.Departure.UTC().Format("2006-01-02T15:04")
}

// Upsert creates or replaces a flight by number and departure.
func (r *InMemoryFlightRepository) Upsert(_ context.Context, flight *Flight) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *flight
	r.flights[flightKey(flight)] = &cpy
	return nil
}

// ListAll retrieves all flights sorted by id.
func (r *InMemoryFlightRepository) ListAll(_ context.Context) ([]*Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flights := make([]*Flight, 0, len(r.flights))
	for _, f := range r.flights {
		cpy := *f
		flights = append(flights, &cpy)
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

// Count returns the number of flights.
func (r *InMemoryFlightRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flights), nil
}

// InMemoryDatasetRepository is an in-memory implementation of DatasetRepository.
type InMemoryDatasetRepository struct {
	mu       sync.RWMutex
	datasets []*Dataset
}

// NewInMemoryDatasetRepository creates a new in-memory dataset repository.
func NewInMemoryDatasetRepository() *InMemoryDatasetRepository {
	return &InMemoryDatasetRepository{}
}

// Create records a new dataset snapshot.
func (r *InMemoryDatasetRepository) Create(_ context.Context, dataset *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *dataset
	r.datasets = append(r.datasets, &cpy)
	return nil
}

// Latest returns the most recently created dataset.
func (r *InMemoryDatasetRepository) Latest(_ context.Context) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.datasets) == 0 {
		return nil, ErrDatasetNotFound
	}

	cpy := *r.datasets[len(r.datasets)-1]
	return &cpy, nil
}

// Count returns the number of recorded datasets.
func (r *InMemoryDatasetRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets), nil
}

// Ensure implementations satisfy the repository interfaces.
var (
	_ StopRepository    = (*InMemoryStopRepository)(nil)
	_ SegmentRepository = (*InMemorySegmentRepository)(nil)
	_ FlightRepository  = (*InMemoryFlightRepository)(nil)
	_ DatasetRepository = (*InMemoryDatasetRepository)(nil)
)
