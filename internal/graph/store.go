package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// StoreConfig holds configuration for the graph store facade.
type StoreConfig struct {
	// Cache is the low-latency backend serving graph reads.
	Cache CacheBackend

	// Metadata is the durable backend serving version lineage.
	Metadata MetadataRepository

	// Logger for store operations.
	Logger zerolog.Logger
}

// Store is the hybrid graph store facade. It decides which backend serves
// which operation: the cache answers traversal reads, the metadata
// repository answers lineage queries. Only the pipeline writes; all readers
// resolve the published version pointer per request.
type Store struct {
	cache  CacheBackend
	meta   MetadataRepository
	logger zerolog.Logger
}

// NewStore creates a new graph store facade.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		cache:  cfg.Cache,
		meta:   cfg.Metadata,
		logger: cfg.Logger,
	}
}

// SaveGraph validates and stages a snapshot in the cache without publishing
// it. The previously published version keeps serving reads.
func (s *Store) SaveGraph(ctx context.Context, snapshot *Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	if err := s.cache.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.Version, err)
	}

	s.logger.Info().
		Str("version", snapshot.Version).
		Int("nodes", len(snapshot.Nodes)).
		Int("edges", snapshot.EdgeCount()).
		Msg("graph snapshot staged")

	return nil
}

// SetVersion publishes a staged version. This is the promotion boundary: a
// single indivisible cache write, after which every new read resolves to the
// new snapshot.
func (s *Store) SetVersion(ctx context.Context, version string) error {
	if err := s.cache.SetVersion(ctx, version); err != nil {
		return fmt.Errorf("publish version %s: %w", version, err)
	}

	s.logger.Info().Str("version", version).Msg("graph version published")
	return nil
}

// Version returns the currently published graph version.
func (s *Store) Version(ctx context.Context) (string, error) {
	return s.cache.Version(ctx)
}

// published resolves the pointer and loads the live snapshot once. Every
// read path goes through here so a reader observes exactly one version.
func (s *Store) published(ctx context.Context) (*Snapshot, error) {
	version, err := s.cache.Version(ctx)
	if err != nil {
		return nil, err
	}
	return s.cache.Snapshot(ctx, version)
}

// SnapshotForVersion returns the cached snapshot for an explicit version.
// Readers that must stay on one version across several lookups resolve the
// pointer once and use this for the rest of the request.
func (s *Store) SnapshotForVersion(ctx context.Context, version string) (*Snapshot, error) {
	return s.cache.Snapshot(ctx, version)
}

// AllNodes returns the node ids of the published version.
func (s *Store) AllNodes(ctx context.Context) ([]string, error) {
	snap, err := s.published(ctx)
	if err != nil {
		if errors.Is(err, ErrGraphUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return snap.NodeIDs(), nil
}

// HasNode reports whether the published version contains the node.
func (s *Store) HasNode(ctx context.Context, id string) (bool, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return false, err
	}
	_, ok := snap.Nodes[id]
	return ok, nil
}

// Neighbors returns the outgoing edges of a node in the published version.
func (s *Store) Neighbors(ctx context.Context, id string) ([]*Edge, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Nodes[id]; !ok {
		return nil, ErrNodeNotFound
	}
	return snap.Neighbors(id), nil
}

// EdgeWeight returns the weight of the edge between two nodes.
// Returns ErrNoEdge when the nodes are not directly connected.
func (s *Store) EdgeWeight(ctx context.Context, from, to string) (float64, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return 0, err
	}

	edge, ok := snap.Adjacency[from][to]
	if !ok {
		return 0, ErrNoEdge
	}
	return edge.Weight, nil
}

// EdgeMetadata returns the metadata map of the edge between two nodes.
func (s *Store) EdgeMetadata(ctx context.Context, from, to string) (map[string]string, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return nil, err
	}

	edge, ok := snap.Adjacency[from][to]
	if !ok {
		return nil, ErrNoEdge
	}
	return edge.Metadata, nil
}

// Statistics returns node/edge counts and density of the published version.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return nil, err
	}

	nodes := len(snap.Nodes)
	edges := snap.EdgeCount()
	return &Statistics{
		Version:    snap.Version,
		TotalNodes: nodes,
		TotalEdges: edges,
		Density:    ComputeDensity(nodes, edges),
		BuiltAt:    snap.BuiltAt,
	}, nil
}

// SaveMetadata records a built version in the durable store.
func (s *Store) SaveMetadata(ctx context.Context, meta *Metadata) error {
	return s.meta.Save(ctx, meta)
}

// MetadataByID retrieves a metadata row by id.
func (s *Store) MetadataByID(ctx context.Context, id string) (*Metadata, error) {
	return s.meta.ByID(ctx, id)
}

// MetadataByVersion retrieves a metadata row by graph version.
func (s *Store) MetadataByVersion(ctx context.Context, version string) (*Metadata, error) {
	return s.meta.ByVersion(ctx, version)
}

// MetadataByDatasetVersion retrieves all versions built from a dataset.
func (s *Store) MetadataByDatasetVersion(ctx context.Context, datasetVersion string) ([]*Metadata, error) {
	return s.meta.ByDatasetVersion(ctx, datasetVersion)
}

// SetActiveMetadata marks one version active in the durable store.
func (s *Store) SetActiveMetadata(ctx context.Context, version string) error {
	return s.meta.SetActive(ctx, version)
}

// ActiveMetadata returns the active metadata row.
func (s *Store) ActiveMetadata(ctx context.Context) (*Metadata, error) {
	return s.meta.Active(ctx)
}

// Export returns a deep copy of the published snapshot for backup, cache
// migration and test fixtures.
func (s *Store) Export(ctx context.Context) (*Snapshot, error) {
	snap, err := s.published(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// Import stages a snapshot and publishes it. The round-trip with Export is
// lossless: node set, edge set and all weights/metadata survive unchanged.
func (s *Store) Import(ctx context.Context, snapshot *Snapshot) error {
	if err := s.SaveGraph(ctx, snapshot.Clone()); err != nil {
		return err
	}
	return s.SetVersion(ctx, snapshot.Version)
}

// DeleteGraph clears the live cache graph and the published pointer. Durable
// metadata history is untouched; the next pipeline run repopulates the cache.
func (s *Store) DeleteGraph(ctx context.Context) error {
	if err := s.cache.DeleteAll(ctx); err != nil {
		return err
	}
	s.logger.Warn().Msg("live graph cache cleared")
	return nil
}
