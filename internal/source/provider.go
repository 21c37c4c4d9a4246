// Package source defines the capability interfaces for the external
// collaborators the pipeline consumes: the raw transport feed and the
// object store used to archive built datasets.
package source

import (
	"context"
	"errors"

	"github.com/transitgrid/transitgrid/internal/transit"
)

// Provider errors.
var (
	// ErrSourceUnavailable means the feed could not be reached at all.
	// Individually missing feeds are reported as skips, not errors.
	ErrSourceUnavailable = errors.New("source feed unavailable")
)

// FeedSnapshot is one complete fetch of the external transport feed. Any
// slice may be empty when the corresponding feed was missing; Skipped names
// the feeds that were.
type FeedSnapshot struct {
	Stops          []*transit.Stop
	Segments       []*transit.Segment
	Flights        []*transit.Flight
	DatasetVersion string
	Skipped        []string
}

// FeedProvider fetches the raw stop/route/flight feed.
type FeedProvider interface {
	// Name identifies the provider for logging.
	Name() string

	// FetchAll fetches a complete feed snapshot. Partial source failure
	// (individual missing feeds) is tolerated and recorded in Skipped;
	// only a totally unreachable source returns ErrSourceUnavailable.
	FetchAll(ctx context.Context) (*FeedSnapshot, error)
}

// ObjectStore archives built datasets. Upload failure must never block
// graph publication; callers log and continue.
type ObjectStore interface {
	// UploadDataset stores an archive payload under the dataset id.
	UploadDataset(ctx context.Context, id string, payload []byte) error
}
