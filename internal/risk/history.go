package risk

import (
	"context"
	"fmt"
	"sync"
)

// History is the operational track record of one carrier route. Delay and
// cancellation statistics come in 30/60/90-day rolling windows.
type History struct {
	AvgDelayMin30 float64
	AvgDelayMin60 float64
	AvgDelayMin90 float64

	// DelayFrequency is the share of departures delayed beyond 5 minutes,
	// in [0,1].
	DelayFrequency float64

	CancelRate30 float64
	CancelRate60 float64
	CancelRate90 float64
	CancelCount  int

	// AvgLoadFactor is mean occupancy in [0,1]; HighLoadShare is the share
	// of departures above 90% occupancy.
	AvgLoadFactor float64
	HighLoadShare float64

	// DeviationStdDevMin is the standard deviation of departure deviation
	// in minutes. Low values mean a regular, predictable schedule.
	DeviationStdDevMin float64
}

// HistoryProvider supplies per-route operational statistics. A route with no
// record yields ErrRiskInputMissing, which the engine absorbs into the
// neutral default.
type HistoryProvider interface {
	RouteHistory(ctx context.Context, routeID string) (*History, error)
}

// InMemoryHistoryProvider holds route histories in memory, seeded at startup
// or by tests.
type InMemoryHistoryProvider struct {
	mu        sync.RWMutex
	histories map[string]*History
}

// NewInMemoryHistoryProvider creates an empty history provider.
func NewInMemoryHistoryProvider() *InMemoryHistoryProvider {
	return &InMemoryHistoryProvider{histories: make(map[string]*History)}
}

// Set stores the history for a route.
func (p *InMemoryHistoryProvider) Set(routeID string, history History) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.histories[routeID] = &history
}

// RouteHistory returns a copy of the stored history.
func (p *InMemoryHistoryProvider) RouteHistory(_ context.Context, routeID string) (*History, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	history, ok := p.histories[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: route %s", ErrRiskInputMissing, routeID)
	}

	cpy := *history
	return &cpy, nil
}

// Ensure InMemoryHistoryProvider implements HistoryProvider.
var _ HistoryProvider = (*InMemoryHistoryProvider)(nil)
