package sources

import (
	"context"
	"time"

	"crosslight/internal/domain/models"
)

// Connector is the uniform contract every raw-observation source implements.
// Collectors are opaque to the core pipeline: whatever they scrape or query,
// they yield timestamped, source-tagged RawRecords.
type Connector interface {
	// Slug returns the unique identifier for this source
	Slug() string

	// Name returns the human-readable name of this source
	Name() string

	// Fetch retrieves raw records from the source
	Fetch(ctx context.Context) (*models.FetchResult, error)

	// IsEnabled returns whether this source is enabled
	IsEnabled() bool

	// Configure configures the connector with the given config
	Configure(cfg ConnectorConfig) error
}

// QueryableConnector is implemented by connectors that accept follow-up
// collection queries produced by the query generator.
type QueryableConnector interface {
	Connector

	// SetQueries replaces the connector's search queries for the next cycle
	SetQueries(queries []string)
}

// ConnectorConfig holds configuration common to all connectors.
type ConnectorConfig struct {
	Enabled           bool          `json:"enabled"`
	APIURL            string        `json:"api_url,omitempty"`
	FeedURL           string        `json:"feed_url,omitempty"`
	APIKey            string        `json:"api_key,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
	RequestsPerMinute int           `json:"requests_per_minute,omitempty"`
	Cooldown          time.Duration `json:"cooldown,omitempty"`
}

// DefaultConfig returns default connector configuration
func DefaultConfig() ConnectorConfig {
	return ConnectorConfig{
		Enabled:           true,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 60,
		Cooldown:          time.Second,
	}
}

// BaseConnector provides common functionality for connectors
type BaseConnector struct {
	slug    string
	name    string
	config  ConnectorConfig
	limiter *RateLimiter
}

// NewBaseConnector creates a new base connector
func NewBaseConnector(slug, name string) *BaseConnector {
	cfg := DefaultConfig()
	return &BaseConnector{
		slug:    slug,
		name:    name,
		config:  cfg,
		limiter: NewRateLimiter(cfg.RequestsPerMinute, cfg.Cooldown),
	}
}

// Slug returns the unique identifier for this source
func (c *BaseConnector) Slug() string {
	return c.slug
}

// Name returns the human-readable name of this source
func (c *BaseConnector) Name() string {
	return c.name
}

// IsEnabled returns whether this source is enabled
func (c *BaseConnector) IsEnabled() bool {
	return c.config.Enabled
}

// Configure configures the connector
func (c *BaseConnector) Configure(cfg ConnectorConfig) error {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c.config = cfg
	c.limiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.Cooldown)
	return nil
}

// Config returns the current configuration
func (c *BaseConnector) Config() ConnectorConfig {
	return c.config
}

// Limiter returns the connector's rate limiter. Each source owns its own
// limiter since quotas are independent.
func (c *BaseConnector) Limiter() *RateLimiter {
	return c.limiter
}
