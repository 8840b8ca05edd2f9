package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/internal/sources"
	"crosslight/pkg/logger"
)

const slug = models.SourceSocial

// Connector pulls threat chatter from a social media monitoring feed. The
// feed is an upstream aggregation endpoint that exposes collected posts as
// a JSON array; this connector treats post bodies as opaque text for the
// extraction layer.
type Connector struct {
	*sources.BaseConnector
	client *http.Client
	logger *logger.Logger
}

func New(log *logger.Logger) *Connector {
	c := &Connector{
		BaseConnector: sources.NewBaseConnector(slug, "Social Media Monitoring"),
		client:        &http.Client{Timeout: 60 * time.Second},
		logger:        log.WithComponent("social"),
	}
	c.Configure(sources.ConnectorConfig{Enabled: false})
	return c
}

func (c *Connector) Configure(cfg sources.ConnectorConfig) error {
	if err := c.BaseConnector.Configure(cfg); err != nil {
		return err
	}
	if cfg.Timeout > 0 {
		c.client.Timeout = cfg.Timeout
	}
	return nil
}

// IsEnabled requires the enabled flag and a feed URL.
func (c *Connector) IsEnabled() bool {
	return c.BaseConnector.IsEnabled() && c.Config().FeedURL != ""
}

type feedPost struct {
	ID       string `json:"id"`
	Author   string `json:"author,omitempty"`
	Text     string `json:"text"`
	PostedAt string `json:"posted_at,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Fetch downloads the current feed page and converts posts to raw records.
// Posts with empty bodies are dropped; missing or malformed timestamps
// leave the record without an observation time.
func (c *Connector) Fetch(ctx context.Context) (*models.FetchResult, error) {
	start := time.Now()
	result := &models.FetchResult{
		SourceSlug: slug,
		FetchedAt:  start,
	}

	feedURL := c.Config().FeedURL
	if feedURL == "" {
		result.Error = fmt.Errorf("feed URL required for social source")
		result.Duration = time.Since(start)
		return result, result.Error
	}

	if err := c.Limiter().Wait(ctx); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, err
	}

	posts, err := c.fetchPosts(ctx, feedURL)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, err
	}

	records := make([]models.RawRecord, 0, len(posts))
	for _, post := range posts {
		if strings.TrimSpace(post.Text) == "" {
			continue
		}
		records = append(records, models.RawRecord{
			Source:      slug,
			ObservedAt:  parsePostedAt(post.PostedAt),
			Text:        post.Text,
			EvidenceURL: post.URL,
		})
	}

	result.Records = records
	result.Success = true
	result.Duration = time.Since(start)

	c.logger.Info().
		Int("posts", len(posts)).
		Int("records", len(records)).
		Dur("duration", result.Duration).
		Msg("social feed fetch completed")

	return result, nil
}

func (c *Connector) fetchPosts(ctx context.Context, feedURL string) ([]feedPost, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if key := c.Config().APIKey; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var posts []feedPost
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return posts, nil
}

func parsePostedAt(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
