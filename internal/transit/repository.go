package transit

import "context"

// StopRepository defines persistence for stops, real and virtual.
type StopRepository interface {
	// Upsert creates or replaces a stop by its id.
	Upsert(ctx context.Context, stop *Stop) error

	// Get retrieves a stop by id. Returns ErrStopNotFound if absent.
	Get(ctx context.Context, id string) (*Stop, error)

	// List retrieves all stops.
	List(ctx context.Context) ([]*Stop, error)

	// ListByCity retrieves all stops in a city (case-insensitive match).
	ListByCity(ctx context.Context, city string) ([]*Stop, error)

	// CountReal returns the number of non-virtual stops.
	CountReal(ctx context.Context) (int, error)

	// CountVirtual returns the number of virtual stops.
	CountVirtual(ctx context.Context) (int, error)

	// DeleteVirtual removes all virtual stops so the virtual-entity stage
	// can regenerate them deterministically.
	DeleteVirtual(ctx context.Context) error
}

// SegmentRepository defines persistence for scheduled ground segments.
type SegmentRepository interface {
	// Upsert creates or replaces a segment by its natural key.
	Upsert(ctx context.Context, segment *Segment) error

	// ListAll retrieves all segments.
	ListAll(ctx context.Context) ([]*Segment, error)

	// ListFrom retrieves all segments departing a stop.
	ListFrom(ctx context.Context, stopID string) ([]*Segment, error)

	// Count returns the number of segments.
	Count(ctx context.Context) (int, error)
}

// FlightRepository defines persistence for scheduled flights.
type FlightRepository interface {
	// Upsert creates or replaces a flight by number and departure.
	Upsert(ctx context.Context, flight *Flight) error

	// ListAll retrieves all flights.
	ListAll(ctx context.Context) ([]*Flight, error)

	// Count returns the number of flights.
	Count(ctx context.Context) (int, error)
}

// DatasetRepository defines persistence for ingested dataset lineage.
type DatasetRepository interface {
	// Create records a new dataset snapshot.
	Create(ctx context.Context, dataset *Dataset) error

	// Latest returns the most recently created dataset.
	// Returns ErrDatasetNotFound when none exist.
	Latest(ctx context.Context) (*Dataset, error)

	// Count returns the number of recorded datasets.
	Count(ctx context.Context) (int, error)
}
