// Package search answers "route from A to B" queries against the currently
// published graph version. It is stateless and read-only: every request pins
// one version and never observes a concurrent rebuild.
package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/transitgrid/transitgrid/internal/transit"
)

// Search errors. Each maps to a distinct, stable API error code so callers
// never conflate "try later" with "this query has no answer".
var (
	// ErrStopsNotFound means the origin or destination city is unknown.
	ErrStopsNotFound = errors.New("origin or destination stops not found")

	// ErrNoPathFound means the graph is reachable but disconnected for
	// this pair.
	ErrNoPathFound = errors.New("no path found")

	// ErrSearchBudgetExceeded means the pathfinder hit its expansion bound.
	// It unwraps to ErrNoPathFound so callers see one failure kind.
	ErrSearchBudgetExceeded = fmt.Errorf("search budget exceeded: %w", ErrNoPathFound)

	// ErrInvalidQuery means the query parameters fail validation.
	ErrInvalidQuery = errors.New("invalid search query")
)

// Preference selects how duration and price mix into the edge cost.
type Preference string

const (
	PreferFastest  Preference = "fastest"
	PreferCheapest Preference = "cheapest"
	PreferBalanced Preference = "balanced"
)

// CostWeights mixes duration (minutes) and price into a single edge cost.
type CostWeights struct {
	TimeFactor  float64
	PriceFactor float64
}

// PreferenceWeights is the single named configuration for route ranking.
// The scattered per-call-site ratios this replaces drifted apart; any tuning
// happens here and nowhere else.
var PreferenceWeights = map[Preference]CostWeights{
	PreferFastest:  {TimeFactor: 1.0, PriceFactor: 0.0},
	PreferCheapest: {TimeFactor: 0.0, PriceFactor: 1.0},
	PreferBalanced: {TimeFactor: 0.6, PriceFactor: 0.4},
}

// Query is one route search request. Origin and Destination are city names;
// the service resolves them to canonical stops.
type Query struct {
	Origin          string
	Destination     string
	Date            time.Time
	Passengers      int
	Preference      Preference
	Transport       []transit.TransportType
	MaxAlternatives int
}

// Validate normalizes and checks the query.
func (q *Query) Validate() error {
	if q.Origin == "" || q.Destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInvalidQuery)
	}
	if q.Passengers <= 0 {
		q.Passengers = 1
	}
	if q.Date.IsZero() {
		q.Date = time.Now().UTC()
	}
	if q.Preference == "" {
		q.Preference = PreferBalanced
	}
	if _, ok := PreferenceWeights[q.Preference]; !ok {
		return fmt.Errorf("%w: unknown preference %q", ErrInvalidQuery, q.Preference)
	}
	if q.MaxAlternatives < 0 || q.MaxAlternatives > 5 {
		return fmt.Errorf("%w: maxAlternatives must be in [0,5]", ErrInvalidQuery)
	}
	return nil
}

// Segment is one materialized leg of a built route.
type Segment struct {
	FromStopID        string                `json:"fromStopId"`
	ToStopID          string                `json:"toStopId"`
	Transport         transit.TransportType `json:"transport"`
	DurationMin       float64               `json:"durationMin"`
	Price             float64               `json:"price"`
	DistanceKm        float64               `json:"distanceKm"`
	RouteID           string                `json:"routeId"`
	TransferBufferMin float64               `json:"transferBufferMin"`
	Metadata          map[string]string     `json:"metadata,omitempty"`
}

// BuiltRoute is one concrete path through the graph answering a query.
// TotalDuration includes transfer buffers; TotalPrice covers all passengers.
type BuiltRoute struct {
	ID               string    `json:"routeId"`
	Segments         []Segment `json:"segments"`
	TotalDurationMin float64   `json:"totalDurationMin"`
	TotalPrice       float64   `json:"totalPrice"`
	TransferCount    int       `json:"transferCount"`
	GraphVersion     string    `json:"graphVersion"`
}

// Result is the search response: the primary route first, then alternatives
// in deterministic cost order.
type Result struct {
	Routes         []*BuiltRoute `json:"routes"`
	GraphVersion   string        `json:"graphVersion"`
	GraphAvailable bool          `json:"graphAvailable"`
}
