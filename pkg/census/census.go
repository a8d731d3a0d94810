// Package census provides a client for the Census Bureau Data API:
// variable catalog lookups and ACS estimate retrieval by geography.
package census

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/twpayne/go-geom"
	"golang.org/x/time/rate"

	"github.com/sells-group/censusmap/internal/resilience"
)

const defaultBaseURL = "https://api.census.gov/data"

// Client queries the Census Data API.
type Client interface {
	// Variables loads the variable catalog for a year and dataset.
	// Catalogs are cached for the lifetime of the client.
	Variables(ctx context.Context, year int, dataset string) (*Catalog, error)

	// GetACS fetches one Unit per geographic unit matching the request,
	// with an estimate and margin of error per requested variable.
	GetACS(ctx context.Context, req GetACSRequest) ([]Unit, error)
}

// VariableSpec maps a human-readable alias to a source variable code.
// The code is the bare table cell (e.g. "B06011_001"); the API's E and M
// column suffixes are appended by the client.
type VariableSpec struct {
	Alias string
	Code  string
}

// Value is a single estimate with its margin of error. Sentinel fills
// from the API (jam values such as -666666666) are reported as invalid.
type Value struct {
	Estimate float64
	MOE      float64
	Valid    bool // Estimate is a real observation
	HasMOE   bool // MOE is a real observation
}

// Unit is one geographic unit with its requested metrics keyed by alias.
// Geometry is nil until a boundary set is attached.
type Unit struct {
	GEOID    string
	Name     string
	Values   map[string]Value
	Geometry geom.T
}

// Option configures the client.
type Option func(*client)

// WithAPIKey sets the Census API key appended to every request.
func WithAPIKey(key string) Option {
	return func(c *client) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithoutRetry disables the single retry on transient failures.
func WithoutRetry() Option {
	return func(c *client) {
		c.retry.MaxAttempts = 1
	}
}

// CatalogStore persists raw variables.json documents between runs. The
// client consults it after the in-memory cache and before the network.
type CatalogStore interface {
	GetCatalog(ctx context.Context, year int, dataset string) ([]byte, bool, error)
	PutCatalog(ctx context.Context, year int, dataset string, payload []byte, ttl time.Duration) error
}

// WithCatalogStore attaches a persistent catalog cache. Fetched catalogs are
// written back with the given TTL.
func WithCatalogStore(cs CatalogStore, ttl time.Duration) Option {
	return func(c *client) {
		c.catalogStore = cs
		c.catalogTTL = ttl
	}
}

type client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	limiter      *rate.Limiter
	retry        resilience.RetryConfig
	catalogStore CatalogStore
	catalogTTL   time.Duration

	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewClient creates a Census Data API client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(2, 4),
		retry:      resilience.DefaultRetryConfig(),
		catalogs:   make(map[string]*Catalog),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
