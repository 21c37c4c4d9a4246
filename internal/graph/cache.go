package graph

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// CacheBackend is the low-latency side of the hybrid store. It holds full
// graph snapshots keyed by version plus a single published-version pointer,
// so a rebuild can stage version N+1 while readers keep resolving N.
type CacheBackend interface {
	// SaveSnapshot stores a fully-built snapshot under its version without
	// publishing it.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// SetVersion atomically publishes a version. All reads issued after this
	// call resolve to the new snapshot.
	SetVersion(ctx context.Context, version string) error

	// Version returns the published version.
	// Returns ErrGraphUnavailable when nothing is published.
	Version(ctx context.Context) (string, error)

	// Snapshot returns the stored snapshot for a version.
	// Returns ErrGraphUnavailable when the version is not in the cache.
	Snapshot(ctx context.Context, version string) (*Snapshot, error)

	// DeleteAll clears all snapshots and the published pointer.
	DeleteAll(ctx context.Context) error
}

// MemoryCache is the in-process CacheBackend. Snapshots are immutable once
// stored, so reads need no locking beyond the concurrent map; the published
// pointer is a single atomic-swap entry in the same map.
type MemoryCache struct {
	snapshots *xsync.MapOf[string, *Snapshot]
	version   *xsync.MapOf[string, string]
}

const versionKey = "published"

// NewMemoryCache creates an empty in-process graph cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		snapshots: xsync.NewMapOf[string, *Snapshot](),
		version:   xsync.NewMapOf[string, string](),
	}
}

// SaveSnapshot stores a snapshot under its version.
func (c *MemoryCache) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	c.snapshots.Store(snapshot.Version, snapshot)
	return nil
}

// SetVersion atomically publishes a version.
func (c *MemoryCache) SetVersion(_ context.Context, version string) error {
	if _, ok := c.snapshots.Load(version); !ok {
		return ErrGraphUnavailable
	}
	c.version.Store(versionKey, version)
	return nil
}

// Version returns the published version.
func (c *MemoryCache) Version(_ context.Context) (string, error) {
	v, ok := c.version.Load(versionKey)
	if !ok || v == "" {
		return "", ErrGraphUnavailable
	}
	return v, nil
}

// Snapshot returns the stored snapshot for a version.
func (c *MemoryCache) Snapshot(_ context.Context, version string) (*Snapshot, error) {
	s, ok := c.snapshots.Load(version)
	if !ok {
		return nil, ErrGraphUnavailable
	}
	return s, nil
}

// DeleteAll clears all snapshots and the published pointer.
func (c *MemoryCache) DeleteAll(_ context.Context) error {
	c.version.Delete(versionKey)
	c.snapshots.Range(func(key string, _ *Snapshot) bool {
		c.snapshots.Delete(key)
		return true
	})
	return nil
}

// Ensure MemoryCache implements CacheBackend.
var _ CacheBackend = (*MemoryCache)(nil)
