package search

import (
	"container/heap"

	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/transit"
)

// costEpsilon bounds float comparison when two paths tie on cost.
const costEpsilon = 1e-9

// pathfinder runs Dijkstra over one pinned snapshot. It is built per request
// and never outlives it, so it needs no locking.
type pathfinder struct {
	snap        *graph.Snapshot
	weights     CostWeights
	allowed     map[transit.TransportType]struct{}
	bufferMin   float64
	maxExpanded int
}

// pathStep is one traversed edge with its source node.
type pathStep struct {
	from string
	edge *graph.Edge
}

// pathResult is a complete path from origin to destination.
type pathResult struct {
	steps     []pathStep
	cost      float64
	transfers int
}

// label is the best known way to reach a node.
type label struct {
	cost      float64
	transfers int
	prevNode  string
	prevEdge  *graph.Edge
}

// queueItem is a priority queue entry. Stale entries are skipped on pop
// instead of being decreased in place.
type queueItem struct {
	node      string
	cost      float64
	transfers int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

// Less orders by cost, then fewer transfers, then node id. The final string
// comparison makes pop order, and therefore the chosen path, deterministic.
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	if pq[i].transfers != pq[j].transfers {
		return pq[i].transfers < pq[j].transfers
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) { *pq = append(*pq, x.(*queueItem)) }

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// transportAllowed reports whether the edge's transport passes the query
// filter. An empty filter allows everything.
func (p *pathfinder) transportAllowed(edge *graph.Edge) bool {
	if len(p.allowed) == 0 {
		return true
	}
	_, ok := p.allowed[edge.Transport]
	return ok
}

// edgeCost folds duration, transfer buffer and price into one scalar using
// the preference weights. Duration-side terms carry the buffer so a transfer
// is never free even under the cheapest preference.
func (p *pathfinder) edgeCost(edge *graph.Edge, transfer bool) float64 {
	duration := edge.Weight
	if transfer {
		duration += p.bufferMin
	}
	return duration*p.weights.TimeFactor + edge.Price*p.weights.PriceFactor
}

// isTransfer reports whether taking edge after prev changes the carrier route.
func isTransfer(prev, edge *graph.Edge) bool {
	return prev != nil && prev.RouteID != edge.RouteID
}

// better reports whether candidate beats incumbent. Equal-cost paths prefer
// fewer transfers, then the lexicographically smaller incoming route id.
func better(candidate, incumbent *label) bool {
	if candidate.cost < incumbent.cost-costEpsilon {
		return true
	}
	if candidate.cost > incumbent.cost+costEpsilon {
		return false
	}
	if candidate.transfers != incumbent.transfers {
		return candidate.transfers < incumbent.transfers
	}
	return candidate.prevEdge != nil && incumbent.prevEdge != nil &&
		candidate.prevEdge.RouteID < incumbent.prevEdge.RouteID
}

// shortestPath runs Dijkstra from origin to destination. A non-nil forcedFirst
// restricts the first hop to that edge, which is how alternatives are seeded.
// Returns ErrNoPathFound when the destination is unreachable and
// ErrSearchBudgetExceeded when the expansion bound is hit first.
func (p *pathfinder) shortestPath(origin, destination string, forcedFirst *graph.Edge) (*pathResult, error) {
	if _, ok := p.snap.Nodes[origin]; !ok {
		return nil, ErrNoPathFound
	}
	if _, ok := p.snap.Nodes[destination]; !ok {
		return nil, ErrNoPathFound
	}

	labels := map[string]*label{origin: {}}
	pq := &priorityQueue{{node: origin}}
	heap.Init(pq)

	expanded := 0
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*queueItem)

		current, ok := labels[item.node]
		if !ok || item.cost > current.cost+costEpsilon {
			continue // stale entry
		}

		if item.node == destination {
			return p.reconstruct(labels, origin, destination), nil
		}

		expanded++
		if expanded > p.maxExpanded {
			return nil, ErrSearchBudgetExceeded
		}

		for _, edge := range p.snap.Neighbors(item.node) {
			if !p.transportAllowed(edge) {
				continue
			}
			if item.node == origin && forcedFirst != nil && edge.To != forcedFirst.To {
				continue
			}

			transfer := isTransfer(current.prevEdge, edge)
			candidate := &label{
				cost:      current.cost + p.edgeCost(edge, transfer),
				transfers: current.transfers,
				prevNode:  item.node,
				prevEdge:  edge,
			}
			if transfer {
				candidate.transfers++
			}

			incumbent, seen := labels[edge.To]
			if seen && !better(candidate, incumbent) {
				continue
			}
			labels[edge.To] = candidate
			heap.Push(pq, &queueItem{node: edge.To, cost: candidate.cost, transfers: candidate.transfers})
		}
	}

	return nil, ErrNoPathFound
}

// reconstruct walks the prev pointers back from destination to origin.
func (p *pathfinder) reconstruct(labels map[string]*label, origin, destination string) *pathResult {
	final := labels[destination]
	var steps []pathStep
	for node := destination; node != origin; {
		l := labels[node]
		steps = append(steps, pathStep{from: l.prevNode, edge: l.prevEdge})
		node = l.prevNode
	}

	// Reverse into origin-first order.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	return &pathResult{steps: steps, cost: final.cost, transfers: final.transfers}
}
