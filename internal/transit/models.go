// Package transit holds the source-of-truth transport entities: stops, route
// segments, flights and dataset lineage. The pipeline writes them, the
// graph-build stage reads them.
package transit

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrStopNotFound    = errors.New("stop not found")
	ErrDatasetNotFound = errors.New("dataset not found")
)

// TransportType identifies the mode of a scheduled connection.
type TransportType string

const (
	TransportBus    TransportType = "BUS"
	TransportTrain  TransportType = "TRAIN"
	TransportFlight TransportType = "FLIGHT"
	TransportFerry  TransportType = "FERRY"
)

// KnownTransportTypes lists all modes the graph builder understands.
var KnownTransportTypes = []TransportType{
	TransportBus,
	TransportTrain,
	TransportFlight,
	TransportFerry,
}

// Stop is a physical or synthesized waypoint: an airport, a bus stop, or a
// derived city hub. Once part of a published graph version a stop is never
// mutated, only superseded by the next sync run.
type Stop struct {
	ID        string
	Name      string
	City      string
	Lat       float64
	Lon       float64
	IsVirtual bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Segment is a scheduled ground connection between two stops, normalized
// during the sync stage.
type Segment struct {
	ID          string
	FromStopID  string
	ToStopID    string
	Transport   TransportType
	DistanceKm  float64
	DurationMin int
	Price       float64

	// Departure is the scheduled local departure time in HH:MM.
	Departure string

	// RouteID groups segments belonging to the same operated line.
	RouteID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NaturalKey identifies a segment independently of its row id. The sync
// stage upserts on it so re-running over unchanged input is a no-op.
func (s *Segment) NaturalKey() string {
	return s.FromStopID + ":" + s.ToStopID + ":" + string(s.Transport) + ":" + s.Departure
}

// Flight is a scheduled air connection. Airports appear as regular stops.
type Flight struct {
	ID         string
	Number     string
	FromStopID string
	ToStopID   string
	Departure  time.Time
	Arrival    time.Time
	DistanceKm float64
	Price      float64
	SeatsTotal int
	SeatsFree  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DurationMin returns the scheduled flight duration in minutes.
func (f *Flight) DurationMin() int {
	return int(f.Arrival.Sub(f.Departure).Minutes())
}

// Dataset records one ingested source snapshot. The graph version built from
// it references the dataset version for lineage.
type Dataset struct {
	ID           string
	Version      string
	SourceURI    string
	StopCount    int
	SegmentCount int
	FlightCount  int
	CreatedAt    time.Time
}
