package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crosslight/internal/analysis"
	"crosslight/internal/artifact"
	"crosslight/internal/correlate"
	"crosslight/internal/domain/models"
	"crosslight/internal/extract"
	"crosslight/internal/infrastructure/cache"
	"crosslight/internal/querygen"
	"crosslight/internal/sources"
	"crosslight/pkg/logger"
)

// Publisher is the artifact sink surface the pipeline needs.
type Publisher interface {
	Publish(tree *artifact.Value, generatedAt time.Time) (string, error)
	Latest() ([]byte, error)
}

// Translator localizes the artifact tree in place.
type Translator interface {
	TranslateTree(ctx context.Context, root *artifact.Value) error
}

// RunStats summarizes one completed cycle.
type RunStats struct {
	StartedAt       time.Time         `json:"started_at"`
	Duration        time.Duration     `json:"duration"`
	RecordsBySource map[string]int    `json:"records_by_source"`
	SourceErrors    map[string]string `json:"source_errors,omitempty"`
	Indicators      int               `json:"indicators"`
	Signals         int               `json:"signals"`
	Correlated      int               `json:"correlated"`
	Suggestions     int               `json:"suggestions"`
	RiskLevel       models.RiskLevel  `json:"risk_level"`
	RiskScore       int               `json:"risk_score"`
	ArtifactPath    string            `json:"artifact_path"`
}

// Options wires one pipeline instance. Translator and stores may be nil.
type Options struct {
	Registry   *sources.Registry
	Extractor  *extract.Extractor
	Engine     *correlate.Engine
	Analyzer   *analysis.Analyzer
	QueryGen   *querygen.Generator
	Translator Translator
	Publisher  Publisher
	Stores     []cache.Store
	ValidFor   time.Duration
	Interval   time.Duration
}

// Pipeline runs the full cycle: concurrent collection, extraction,
// correlation, the four sequential analysis stages, query feedback,
// translation, and artifact publication. At most one cycle runs at a time.
type Pipeline struct {
	opts   Options
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	last    *RunStats
}

func New(opts Options, log *logger.Logger) *Pipeline {
	return &Pipeline{opts: opts, logger: log.WithComponent("pipeline")}
}

// LastRun returns the stats of the most recent completed cycle, or nil.
func (p *Pipeline) LastRun() *RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// RunOnce executes a single cycle. Collector and reasoning failures degrade
// the result; only an inability to publish the artifact is an error.
func (p *Pipeline) RunOnce(ctx context.Context) (*RunStats, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline cycle already in progress")
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	start := time.Now()
	stats := &RunStats{
		StartedAt:       start,
		RecordsBySource: make(map[string]int),
		SourceErrors:    make(map[string]string),
	}
	p.logger.Info().Msg("pipeline cycle started")

	records := p.collect(ctx, stats)

	indicators := p.opts.Extractor.Extract(records)
	stats.Indicators = len(indicators)

	correlated := p.opts.Engine.Correlate(indicators)
	stats.Signals = correlated.Summary.TotalSignals
	stats.Correlated = correlated.Summary.Correlated

	result := p.opts.Analyzer.Analyze(ctx, analysis.Input{
		Indicators:  indicators,
		Correlated:  correlated,
		RecordCount: len(records),
	})
	stats.RiskLevel = result.Assessment.RiskLevel
	stats.RiskScore = result.Assessment.RiskScore

	p.feedQueries(ctx, indicators, stats)

	doc := artifact.Build(artifact.BuildInput{
		GeneratedAt: start,
		ValidFor:    p.opts.ValidFor,
		Indicators:  indicators,
		Correlated:  correlated,
		Analysis:    result,
		Records:     records,
	})
	tree, err := doc.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to render artifact: %w", err)
	}

	if p.opts.Translator != nil {
		if err := p.opts.Translator.TranslateTree(ctx, tree); err != nil {
			p.logger.Warn().Err(err).Msg("translation incomplete, publishing untranslated sections")
		}
	}

	path, err := p.opts.Publisher.Publish(tree, start)
	if err != nil {
		return nil, fmt.Errorf("failed to publish artifact: %w", err)
	}
	stats.ArtifactPath = path

	p.flushStores(ctx)

	stats.Duration = time.Since(start)
	if len(stats.SourceErrors) == 0 {
		stats.SourceErrors = nil
	}

	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()

	p.logger.Info().
		Dur("duration", stats.Duration).
		Int("indicators", stats.Indicators).
		Int("signals", stats.Signals).
		Int("correlated", stats.Correlated).
		Str("risk_level", string(stats.RiskLevel)).
		Msg("pipeline cycle completed")
	return stats, nil
}

// collect fans out to every enabled connector concurrently. Each connector
// carries its own rate limiter, so there is no shared pool to bound. A
// failing source contributes nothing and the cycle continues.
func (p *Pipeline) collect(ctx context.Context, stats *RunStats) []models.RawRecord {
	connectors := p.opts.Registry.Enabled()
	if len(connectors) == 0 {
		p.logger.Warn().Msg("no enabled sources")
		return nil
	}

	var mu sync.Mutex
	var records []models.RawRecord

	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range connectors {
		conn := conn
		g.Go(func() error {
			result, err := conn.Fetch(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error().Err(err).Str("source", conn.Slug()).Msg("source fetch failed")
				stats.SourceErrors[conn.Slug()] = err.Error()
			}
			if result != nil {
				records = append(records, result.Records...)
				stats.RecordsBySource[conn.Slug()] = len(result.Records)
			}
			return nil
		})
	}
	g.Wait()
	return records
}

// feedQueries generates follow-up queries and pushes them into connectors
// that accept them, steering the next collection cycle toward what this
// cycle surfaced.
func (p *Pipeline) feedQueries(ctx context.Context, indicators []models.Indicator, stats *RunStats) {
	if p.opts.QueryGen == nil {
		return
	}
	suggestions := p.opts.QueryGen.Generate(ctx, indicators)
	stats.Suggestions = len(suggestions)
	if len(suggestions) == 0 {
		return
	}

	queries := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		queries = append(queries, s.QueryString)
	}
	for _, conn := range p.opts.Registry.Enabled() {
		if q, ok := conn.(sources.QueryableConnector); ok {
			q.SetQueries(queries)
			p.logger.Info().
				Str("source", conn.Slug()).
				Int("queries", len(queries)).
				Msg("follow-up queries applied")
		}
	}
}

func (p *Pipeline) flushStores(ctx context.Context) {
	for _, store := range p.opts.Stores {
		if store == nil {
			continue
		}
		if err := store.Flush(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("cache flush failed")
		}
	}
}

// Run executes cycles on the configured interval until the context is
// cancelled. The first cycle starts immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := p.opts.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error().Err(err).Msg("pipeline cycle failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("pipeline cycle failed")
			}
		}
	}
}
