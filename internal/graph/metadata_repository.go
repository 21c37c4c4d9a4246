package graph

import (
	"context"
	"sort"
	"sync"
)

// MetadataRepository is the durable side of the hybrid store: one row per
// built graph version, exactly one marked active per dataset lineage. Prior
// rows are retained for rollback and audit, never mutated except the flag.
type MetadataRepository interface {
	// Save records a built graph version.
	Save(ctx context.Context, meta *Metadata) error

	// ByID retrieves metadata by row id.
	ByID(ctx context.Context, id string) (*Metadata, error)

	// ByVersion retrieves metadata by graph version.
	ByVersion(ctx context.Context, version string) (*Metadata, error)

	// ByDatasetVersion retrieves all metadata built from a dataset version.
	ByDatasetVersion(ctx context.Context, datasetVersion string) ([]*Metadata, error)

	// SetActive marks one version active and clears the flag everywhere else.
	SetActive(ctx context.Context, version string) error

	// Active returns the currently active metadata row.
	Active(ctx context.Context) (*Metadata, error)
}

// InMemoryMetadataRepository is an in-memory implementation of
// MetadataRepository for tests and the file-backed dev setup.
type InMemoryMetadataRepository struct {
	mu   sync.RWMutex
	rows map[string]*Metadata // keyed by id
}

// NewInMemoryMetadataRepository creates a new in-memory metadata repository.
func NewInMemoryMetadataRepository() *InMemoryMetadataRepository {
	return &InMemoryMetadataRepository{rows: make(map[string]*Metadata)}
}

// Save records a built graph version.
func (r *InMemoryMetadataRepository) Save(_ context.Context, meta *Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *meta
	r.rows[meta.ID] = &cpy
	return nil
}

// ByID retrieves metadata by row id.
func (r *InMemoryMetadataRepository) ByID(_ context.Context, id string) (*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.rows[id]
	if !ok {
		return nil, ErrMetadataNotFound
	}

	cpy := *m
	return &cpy, nil
}

// ByVersion retrieves metadata by graph version.
func (r *InMemoryMetadataRepository) ByVersion(_ context.Context, version string) (*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rows {
		if m.Version == version {
			cpy := *m
			return &cpy, nil
		}
	}
	return nil, ErrMetadataNotFound
}

// ByDatasetVersion retrieves all metadata built from a dataset version.
func (r *InMemoryMetadataRepository) ByDatasetVersion(_ context.Context, datasetVersion string) ([]*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*Metadata
	for _, m := range r.rows {
		if m.DatasetVersion == datasetVersion {
			cpy := *m
			rows = append(rows, &cpy)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

// SetActive marks one version active and clears the flag everywhere else.
func (r *InMemoryMetadataRepository) SetActive(_ context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, m := range r.rows {
		m.Active = m.Version == version
		if m.Active {
			found = true
		}
	}
	if !found {
		return ErrMetadataNotFound
	}
	return nil
}

// Active returns the currently active metadata row.
func (r *InMemoryMetadataRepository) Active(_ context.Context) (*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rows {
		if m.Active {
			cpy := *m
			return &cpy, nil
		}
	}
	return nil, ErrMetadataNotFound
}

// Ensure InMemoryMetadataRepository implements MetadataRepository.
var _ MetadataRepository = (*InMemoryMetadataRepository)(nil)
