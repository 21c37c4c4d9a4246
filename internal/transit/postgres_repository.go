package transit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStopRepository is a PostgreSQL implementation of StopRepository.
type PostgresStopRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStopRepository creates a new PostgreSQL stop repository.
func NewPostgresStopRepository(pool *pgxpool.Pool) *PostgresStopRepository {
	return &PostgresStopRepository{pool: pool}
}

const stopColumns = `id, name, city, lat, lon, is_virtual, created_at, updated_at`

// Upsert creates or replaces a stop by its id.
func (r *PostgresStopRepository) Upsert(ctx context.Context, stop *Stop) error {
	query := `
		INSERT INTO stops (id, name, city, lat, lon, is_virtual, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			is_virtual = EXCLUDED.is_virtual,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		stop.ID,
		stop.Name,
		stop.City,
		stop.Lat,
		stop.Lon,
		stop.IsVirtual,
		stop.CreatedAt,
		stop.UpdatedAt,
	)
	return err
}

// Get retrieves a stop by id.
func (r *PostgresStopRepository) Get(ctx context.Context, id string) (*Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops WHERE id = $1`

	var stop Stop
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&stop.ID,
		&stop.Name,
		&stop.City,
		&stop.Lat,
		&stop.Lon,
		&stop.IsVirtual,
		&stop.CreatedAt,
		&stop.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStopNotFound
		}
		return nil, err
	}

	return &stop, nil
}

// List retrieves all stops.
func (r *PostgresStopRepository) List(ctx context.Context) ([]*Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops ORDER BY id`
	return r.queryStops(ctx, query)
}

// ListByCity retrieves all stops in a city.
func (r *PostgresStopRepository) ListByCity(ctx context.Context, city string) ([]*Stop, error) {
	query := `SELECT ` + stopColumns + ` FROM stops WHERE LOWER(city) = LOWER($1) ORDER BY id`
	return r.queryStops(ctx, query, city)
}

func (r *PostgresStopRepository) queryStops(ctx context.Context, query string, args ...interface{}) ([]*Stop, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []*Stop
	for rows.Next() {
		var stop Stop
		err := rows.Scan(
			&stop.ID,
			&stop.Name,
			&stop.City,
			&stop.Lat,
			&stop.Lon,
			&stop.IsVirtual,
			&stop.CreatedAt,
			&stop.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		stops = append(stops, &stop)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stops, nil
}

// CountReal returns the number of non-virtual stops.
func (r *PostgresStopRepository) CountReal(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM stops WHERE is_virtual = FALSE`)
}

// CountVirtual returns the number of virtual stops.
func (r *PostgresStopRepository) CountVirtual(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM stops WHERE is_virtual = TRUE`)
}

func (r *PostgresStopRepository) count(ctx context.Context, query string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteVirtual removes all virtual stops.
func (r *PostgresStopRepository) DeleteVirtual(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stops WHERE is_virtual = TRUE`)
	return err
}

// PostgresSegmentRepository is a PostgreSQL implementation of SegmentRepository.
type PostgresSegmentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSegmentRepository creates a new PostgreSQL segment repository.
func NewPostgresSegmentRepository(pool *pgxpool.Pool) *PostgresSegmentRepository {
	return &PostgresSegmentRepository{pool: pool}
}

const segmentColumns = `id, from_stop_id, to_stop_id, transport, distance_km,
	duration_min, price, departure, route_id, created_at, updated_at`

// Upsert creates or replaces a segment by its natural key.
func (r *PostgresSegmentRepository) Upsert(ctx context.Context, segment *Segment) error {
	query := `
		INSERT INTO segments (
			id, from_stop_id, to_stop_id, transport, distance_km,
			duration_min, price, departure, route_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (from_stop_id, to_stop_id, transport, departure) DO UPDATE SET
			distance_km = EXCLUDED.distance_km,
			duration_min = EXCLUDED.duration_min,
			price = EXCLUDED.price,
			route_id = EXCLUDED.route_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		segment.ID,
		segment.FromStopID,
		segment.ToStopID,
		segment.Transport,
		segment.DistanceKm,
		segment.DurationMin,
		segment.Price,
		segment.Departure,
		segment.RouteID,
		segment.CreatedAt,
		segment.UpdatedAt,
	)
	return err
}

// ListAll retrieves all segments.
func (r *PostgresSegmentRepository) ListAll(ctx context.Context) ([]*Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments ORDER BY id`
	return r.querySegments(ctx, query)
}

// ListFrom retrieves all segments departing a stop.
func (r *PostgresSegmentRepository) ListFrom(ctx context.Context, stopID string) ([]*Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE from_stop_id = $1 ORDER BY id`
	return r.querySegments(ctx, query, stopID)
}

func (r *PostgresSegmentRepository) querySegments(ctx context.Context, query string, args ...interface{}) ([]*Segment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		var s Segment
		err := rows.Scan(
			&s.ID,
			&s.FromStopID,
			&s.ToStopID,
			&s.Transport,
			&s.DistanceKm,
			&s.DurationMin,
			&s.Price,
			&s.Departure,
			&s.RouteID,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		segments = append(segments, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return segments, nil
}

// Count returns the number of segments.
func (r *PostgresSegmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM segments`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PostgresFlightRepository is a PostgreSQL implementation of FlightRepository.
type PostgresFlightRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFlightRepository creates a new PostgreSQL flight repository.
func NewPostgresFlightRepository(pool *pgxpool.Pool) *PostgresFlightRepository {
	return &PostgresFlightRepository{pool: pool}
}

// Upsert creates or replaces a flight by number and departure.
func (r *PostgresFlightRepository) Upsert(ctx context.Context, flight *Flight) error {
	query := `
		INSERT INTO flights (
			id, number, from_stop_id, to_stop_id, departure, arrival,
			distance_km, price, seats_total, seats_free, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (number, departure) DO UPDATE SET
			from_stop_id = EXCLUDED.from_stop_id,
			to_stop_id = EXCLUDED.to_stop_id,
			arrival = EXCLUDED.arrival,
			distance_km = EXCLUDED.distance_km,
			price = EXCLUDED.price,
			seats_total = EXCLUDED.seats_total,
			seats_free = EXCLUDED.seats_free,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		flight.ID,
		flight.Number,
		flight.FromStopID,
		flight.ToStopID,
		flight.Departure,
		flight.Arrival,
		flight.DistanceKm,
		flight.Price,
		flight.SeatsTotal,
		flight.SeatsFree,
		flight.CreatedAt,
		flight.UpdatedAt,
	)
	return err
}

// ListAll retrieves all flights.
func (r *PostgresFlightRepository) ListAll(ctx context.Context) ([]*Flight, error) {
	query := `
		SELECT id, number, from_stop_id, to_stop_id, departure, arrival,
			distance_km, price, seats_total, seats_free, created_at, updated_at
		FROM flights
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []*Flight
	for rows.Next() {
		var f Flight
		err := rows.Scan(
			&f.ID,
			&f.Number,
			&f.FromStopID,
			&f.ToStopID,
			&f.Departure,
			&f.Arrival,
			&f.DistanceKm,
			&f.Price,
			&f.SeatsTotal,
			&f.SeatsFree,
			&f.CreatedAt,
			&f.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		flights = append(flights, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return flights, nil
}

// Count returns the number of flights.
func (r *PostgresFlightRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flights`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PostgresDatasetRepository is a PostgreSQL implementation of DatasetRepository.
type PostgresDatasetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDatasetRepository creates a new PostgreSQL dataset repository.
func NewPostgresDatasetRepository(pool *pgxpool.Pool) *PostgresDatasetRepository {
	return &PostgresDatasetRepository{pool: pool}
}

// Create records a new dataset snapshot.
func (r *PostgresDatasetRepository) Create(ctx context.Context, dataset *Dataset) error {
	query := `
		INSERT INTO datasets (id, version, source_uri, stop_count, segment_count, flight_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		dataset.ID,
		dataset.Version,
		dataset.SourceURI,
		dataset.StopCount,
		dataset.SegmentCount,
		dataset.FlightCount,
		dataset.CreatedAt,
	)
	return err
}

// Latest returns the most recently created dataset.
func (r *PostgresDatasetRepository) Latest(ctx context.Context) (*Dataset, error) {
	query := `
		SELECT id, version, source_uri, stop_count, segment_count, flight_count, created_at
		FROM datasets
		ORDER BY created_at DESC
		LIMIT 1
	`

	var d Dataset
	err := r.pool.QueryRow(ctx, query).Scan(
		&d.ID,
		&d.Version,
		&d.SourceURI,
		&d.StopCount,
		&d.SegmentCount,
		&d.FlightCount,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}

	return &d, nil
}

// Count returns the number of recorded datasets.
func (r *PostgresDatasetRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure implementations satisfy the repository interfaces.
var (
	_ StopRepository    = (*PostgresStopRepository)(nil)
	_ SegmentRepository = (*PostgresSegmentRepository)(nil)
	_ FlightRepository  = (*PostgresFlightRepository)(nil)
	_ DatasetRepository = (*PostgresDatasetRepository)(nil)
)
