package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/source/resilience"
)

// HTTPProvider fetches the transport feed over HTTP with circuit breaker
// and retry protection.
type HTTPProvider struct {
	baseURL string
	client  *resilience.Client
	logger  zerolog.Logger
}

// HTTPProviderConfig holds configuration for the HTTP feed provider.
type HTTPProviderConfig struct {
	// BaseURL is the feed root; individual feeds live at /stops, /segments,
	// /flights and /version below it.
	BaseURL string

	// Client is the resilient HTTP client. A default is created when nil.
	Client *resilience.Client

	// Logger for provider operations.
	Logger zerolog.Logger
}

// NewHTTPProvider creates a new HTTP feed provider.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	client := cfg.Client
	if client == nil {
		client = resilience.NewClient(resilience.ClientConfig{Name: "transport-feed"})
	}

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		client:  client,
		logger:  cfg.Logger,
	}
}

// Name identifies the provider for logging.
func (p *HTTPProvider) Name() string {
	return "http"
}

// FetchAll fetches all feeds. Individual feed failures are skipped and
// recorded; if every feed fails the source counts as unavailable.
func (p *HTTPProvider) FetchAll(ctx context.Context) (*FeedSnapshot, error) {
	snapshot := &FeedSnapshot{}
	failures := 0

	if err := p.fetchJSON(ctx, "/stops", &snapshot.Stops); err != nil {
		snapshot.Skipped = append(snapshot.Skipped, "stops")
		p.logger.Warn().Err(err).Str("feed", "stops").Msg("feed skipped")
		failures++
	}
	if err := p.fetchJSON(ctx, "/segments", &snapshot.Segments); err != nil {
		snapshot.Skipped = append(snapshot.Skipped, "segments")
		p.logger.Warn().Err(err).Str("feed", "segments").Msg("feed skipped")
		failures++
	}
	if err := p.fetchJSON(ctx, "/flights", &snapshot.Flights); err != nil {
		snapshot.Skipped = append(snapshot.Skipped, "flights")
		p.logger.Warn().Err(err).Str("feed", "flights").Msg("feed skipped")
		failures++
	}

	if failures == 3 {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, p.baseURL)
	}

	var version struct {
		DatasetVersion string `json:"datasetVersion"`
	}
	if err := p.fetchJSON(ctx, "/version", &version); err != nil {
		p.logger.Warn().Err(err).Msg("feed version endpoint unavailable, deriving from content")
	}
	snapshot.DatasetVersion = version.DatasetVersion
	if snapshot.DatasetVersion == "" {
		snapshot.DatasetVersion = fmt.Sprintf("ds-http-%d-%d-%d",
			len(snapshot.Stops), len(snapshot.Segments), len(snapshot.Flights))
	}

	return snapshot, nil
}

func (p *HTTPProvider) fetchJSON(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed %s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// Ensure HTTPProvider implements FeedProvider.
var _ FeedProvider = (*HTTPProvider)(nil)
