// Package graph provides the versioned hybrid graph store: a low-latency
// cache backend for the live connectivity graph and a durable metadata
// repository for version lineage. A facade composes both so callers never
// pick a backend.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/transitgrid/transitgrid/internal/transit"
)

// Store errors.
var (
	// ErrGraphUnavailable means the cache holds no published graph or is
	// unreachable. Callers must treat this as retryable, never as "no route".
	ErrGraphUnavailable = errors.New("graph unavailable")

	// ErrNoEdge means both nodes exist but no edge connects them.
	ErrNoEdge = errors.New("no edge between nodes")

	// ErrNodeNotFound means the node is absent from the published version.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMetadataNotFound means no metadata row matched the query.
	ErrMetadataNotFound = errors.New("graph metadata not found")

	// ErrInvalidSnapshot means a snapshot failed structural validation.
	ErrInvalidSnapshot = errors.New("invalid graph snapshot")
)

// Edge is a weighted directed connection between two nodes. Weight is travel
// time in minutes; a single edge may be the composite of several schedule
// entries on the same stop pair.
type Edge struct {
	To         string                `json:"to"`
	Weight     float64               `json:"weight"`
	Price      float64               `json:"price"`
	DistanceKm float64               `json:"distanceKm"`
	Transport  transit.TransportType `json:"transport"`
	RouteID    string                `json:"routeId"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

// Snapshot is one immutable, fully-built graph version: the node set and the
// adjacency structure. Snapshots are never mutated after SaveGraph.
type Snapshot struct {
	Version   string                      `json:"version"`
	BuiltAt   time.Time                   `json:"builtAt"`
	Nodes     map[string]struct{}         `json:"nodes"`
	Adjacency map[string]map[string]*Edge `json:"adjacency"`
}

// NewSnapshot creates an empty snapshot for a version.
func NewSnapshot(version string) *Snapshot {
	return &Snapshot{
		Version:   version,
		BuiltAt:   time.Now().UTC(),
		Nodes:     make(map[string]struct{}),
		Adjacency: make(map[string]map[string]*Edge),
	}
}

// AddNode registers a node id.
func (s *Snapshot) AddNode(id string) {
	s.Nodes[id] = struct{}{}
}

// AddEdge registers a directed edge from a node.
func (s *Snapshot) AddEdge(from string, edge *Edge) {
	if s.Adjacency[from] == nil {
		s.Adjacency[from] = make(map[string]*Edge)
	}
	s.Adjacency[from][edge.To] = edge
}

// NodeIDs returns all node ids sorted for deterministic iteration.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors returns the outgoing edges of a node sorted by neighbor id.
func (s *Snapshot) Neighbors(id string) []*Edge {
	adj := s.Adjacency[id]
	edges := make([]*Edge, 0, len(adj))
	for _, e := range adj {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	return edges
}

// EdgeCount returns the total number of directed edges.
func (s *Snapshot) EdgeCount() int {
	count := 0
	for _, adj := range s.Adjacency {
		count += len(adj)
	}
	return count
}

// Validate checks the structural invariants: every edge endpoint is a node
// of this snapshot and all weights are non-negative.
func (s *Snapshot) Validate() error {
	for from, adj := range s.Adjacency {
		if _, ok := s.Nodes[from]; !ok {
			return fmt.Errorf("%w: edge source %q is not a node", ErrInvalidSnapshot, from)
		}
		for to, edge := range adj {
			if _, ok := s.Nodes[to]; !ok {
				return fmt.Errorf("%w: edge target %q is not a node", ErrInvalidSnapshot, to)
			}
			if edge.Weight < 0 {
				return fmt.Errorf("%w: negative weight on edge %s->%s", ErrInvalidSnapshot, from, to)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot. Used by export so callers can
// never alias live cache state.
func (s *Snapshot) Clone() *Snapshot {
	cpy := NewSnapshot(s.Version)
	cpy.BuiltAt = s.BuiltAt
	for id := range s.Nodes {
		cpy.AddNode(id)
	}
	for from, adj := range s.Adjacency {
		for _, edge := range adj {
			e := *edge
			if edge.Metadata != nil {
				e.Metadata = make(map[string]string, len(edge.Metadata))
				for k, v := range edge.Metadata {
					e.Metadata[k] = v
				}
			}
			cpy.AddEdge(from, &e)
		}
	}
	return cpy
}

// Metadata is the durable record of one built graph version. Exactly one row
// per dataset lineage carries the active flag.
type Metadata struct {
	ID             string
	Version        string
	DatasetVersion string
	TotalNodes     int
	TotalEdges     int
	BuiltAt        time.Time
	Active         bool
	CreatedAt      time.Time
}

// Statistics summarizes the published graph for diagnostics.
type Statistics struct {
	Version    string    `json:"version"`
	TotalNodes int       `json:"totalNodes"`
	TotalEdges int       `json:"totalEdges"`
	Density    float64   `json:"density"`
	BuiltAt    time.Time `json:"builtAt"`
}

// ComputeDensity returns edge count over the maximum possible directed edge
// count for n nodes. Zero for graphs with fewer than two nodes.
func ComputeDensity(nodes, edges int) float64 {
	if nodes < 2 {
		return 0
	}
	return float64(edges) / float64(nodes*(nodes-1))
}
