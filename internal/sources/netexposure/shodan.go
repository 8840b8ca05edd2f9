package netexposure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/internal/sources"
	"crosslight/pkg/logger"
)

const slug = models.SourceNetExposure

// Default searches for known malicious services and C2 infrastructure.
// The query generator replaces these with indicator-derived queries on
// subsequent cycles.
var defaultThreatSearches = []string{
	"product:Cobalt Strike",
	"product:Metasploit",
	"product:Sliver",
	"http.html:phishing",
}

// Connector queries a Shodan-style host search API and yields raw records.
type Connector struct {
	*sources.BaseConnector
	client  *http.Client
	logger  *logger.Logger
	queries []string
}

// New creates a network-exposure connector. Disabled until configured with
// an API key.
func New(log *logger.Logger) *Connector {
	c := &Connector{
		BaseConnector: sources.NewBaseConnector(slug, "Network Exposure Scan"),
		client:        &http.Client{Timeout: 60 * time.Second},
		logger:        log.WithComponent("netexposure"),
		queries:       defaultThreatSearches,
	}
	c.Configure(sources.ConnectorConfig{Enabled: false})
	return c
}

// Configure applies connector config and resizes the HTTP timeout.
func (c *Connector) Configure(cfg sources.ConnectorConfig) error {
	if err := c.BaseConnector.Configure(cfg); err != nil {
		return err
	}
	if cfg.Timeout > 0 {
		c.client.Timeout = cfg.Timeout
	}
	return nil
}

// IsEnabled requires both the enabled flag and an API key.
func (c *Connector) IsEnabled() bool {
	return c.BaseConnector.IsEnabled() && c.Config().APIKey != ""
}

// SetQueries replaces the search queries for the next fetch cycle.
func (c *Connector) SetQueries(queries []string) {
	if len(queries) > 0 {
		c.queries = queries
	}
}

// Fetch runs the configured searches and converts hosts to raw records.
// Individual search failures are logged and skipped; the result carries
// whatever the remaining searches produced.
func (c *Connector) Fetch(ctx context.Context) (*models.FetchResult, error) {
	start := time.Now()
	result := &models.FetchResult{
		SourceSlug: slug,
		FetchedAt:  start,
	}

	if c.Config().APIKey == "" {
		result.Error = fmt.Errorf("API key required for network exposure source")
		result.Duration = time.Since(start)
		return result, result.Error
	}

	c.logger.Info().Int("queries", len(c.queries)).Msg("fetching network exposure data")

	var records []models.RawRecord
	for _, query := range c.queries {
		if err := c.Limiter().Wait(ctx); err != nil {
			result.Error = err
			result.Records = records
			result.Duration = time.Since(start)
			return result, err
		}

		hosts, err := c.searchHosts(ctx, query)
		if err != nil {
			c.logger.Warn().Err(err).Str("query", query).Msg("search failed")
			continue
		}
		records = append(records, c.hostsToRecords(hosts, query)...)
	}

	result.Records = records
	result.Success = true
	result.Duration = time.Since(start)

	c.logger.Info().
		Int("records", len(records)).
		Dur("duration", result.Duration).
		Msg("network exposure fetch completed")

	return result, nil
}

type searchResponse struct {
	Matches []hostMatch `json:"matches"`
	Total   int         `json:"total"`
}

type hostMatch struct {
	IP        string   `json:"ip_str"`
	Port      int      `json:"port"`
	Hostnames []string `json:"hostnames"`
	Domains   []string `json:"domains"`
	Org       string   `json:"org"`
	Product   string   `json:"product,omitempty"`
	Version   string   `json:"version,omitempty"`
	Transport string   `json:"transport"`
	Timestamp string   `json:"timestamp"`
	Data      string   `json:"data,omitempty"` // raw banner
}

func (c *Connector) searchHosts(ctx context.Context, query string) ([]hostMatch, error) {
	searchURL := fmt.Sprintf("%s/shodan/host/search?key=%s&query=%s",
		c.Config().APIURL,
		c.Config().APIKey,
		url.QueryEscape(query),
	)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search hosts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("host search returned status %d: %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return searchResp.Matches, nil
}

// hostsToRecords converts host matches to raw records. The free-text field
// concatenates the banner and naming fields so the extractor's regex pass
// sees everything; the structured host observation carries IP/port directly.
func (c *Connector) hostsToRecords(hosts []hostMatch, query string) []models.RawRecord {
	records := make([]models.RawRecord, 0, len(hosts))
	for _, host := range hosts {
		observedAt := parseHostTimestamp(host.Timestamp)

		var sb strings.Builder
		sb.WriteString(query)
		for _, part := range []string{host.Product, host.Version, host.Org, host.Data} {
			if part != "" {
				sb.WriteString(" ")
				sb.WriteString(part)
			}
		}
		for _, d := range host.Domains {
			sb.WriteString(" ")
			sb.WriteString(d)
		}
		for _, h := range host.Hostnames {
			sb.WriteString(" ")
			sb.WriteString(h)
		}

		records = append(records, models.RawRecord{
			Source:      slug,
			ObservedAt:  observedAt,
			Text:        sb.String(),
			EvidenceURL: fmt.Sprintf("https://www.shodan.io/host/%s", host.IP),
			Host: &models.HostObservation{
				IP:        host.IP,
				Port:      host.Port,
				Transport: host.Transport,
				Product:   host.Product,
				Version:   host.Version,
			},
		})
	}
	return records
}

// parseHostTimestamp parses the scan API's timestamp format. Malformed
// timestamps yield the zero time, which the correlation engine treats as
// "unknown" and excludes from temporal classification.
func parseHostTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000000", time.RFC3339} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
