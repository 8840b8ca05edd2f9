package querygen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"crosslight/internal/domain/models"
	"crosslight/internal/infrastructure/cache"
	"crosslight/internal/reasoning"
	"crosslight/pkg/logger"
)

// DefaultMaxSuggestions bounds the output to respect downstream collector
// rate limits.
const DefaultMaxSuggestions = 5

// Reasoner is the reasoning-service surface the generator uses.
type Reasoner interface {
	Generate(ctx context.Context, stage, prompt string) (string, error)
	Available() bool
}

// Generator derives follow-up collection queries from extracted indicators:
// deterministic templates first, optional reasoning-service candidates on
// top, merged and bounded. Results are cached per calendar day.
type Generator struct {
	reasoner Reasoner
	store    cache.Store
	max      int
	useLLM   bool
	cacheTTL time.Duration
	now      func() time.Time
	logger   *logger.Logger
}

func New(reasoner Reasoner, store cache.Store, max int, useLLM bool, cacheTTL time.Duration, log *logger.Logger) *Generator {
	if max <= 0 {
		max = DefaultMaxSuggestions
	}
	return &Generator{
		reasoner: reasoner,
		store:    store,
		max:      max,
		useLLM:   useLLM,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   log.WithComponent("querygen"),
	}
}

// Generate returns at most max traceable suggestions. With zero indicators
// and no reasoning service it returns an empty list; no data beats
// misleading data.
func (g *Generator) Generate(ctx context.Context, indicators []models.Indicator) []models.QuerySuggestion {
	cacheKey := "queries:" + g.now().UTC().Format("2006-01-02")
	if g.store != nil {
		if raw, ok, err := g.store.Get(ctx, cacheKey); err == nil && ok {
			var cached []models.QuerySuggestion
			if json.Unmarshal([]byte(raw), &cached) == nil {
				g.logger.Debug().Int("suggestions", len(cached)).Msg("using cached daily queries")
				return cached
			}
		}
	}

	suggestions := heuristicSuggestions(indicators)
	if g.useLLM && g.reasoner != nil && g.reasoner.Available() && len(indicators) > 0 {
		if llm := g.llmSuggestions(ctx, indicators); len(llm) > 0 {
			suggestions = merge(suggestions, llm)
		}
	}

	suggestions = filterTraceable(suggestions, indicators)
	sortSuggestions(suggestions)
	if len(suggestions) > g.max {
		suggestions = suggestions[:g.max]
	}

	// Empty results are cached too, or a day with no traceable suggestions
	// would re-invoke the reasoning service on every cycle.
	if g.store != nil {
		if raw, err := json.Marshal(suggestions); err == nil {
			if err := g.store.Set(ctx, cacheKey, string(raw), g.cacheTTL); err != nil {
				g.logger.Warn().Err(err).Msg("failed to cache query suggestions")
			}
		}
	}
	return suggestions
}

type llmSuggestionPayload struct {
	Suggestions []models.QuerySuggestion `json:"suggestions"`
}

func (g *Generator) llmSuggestions(ctx context.Context, indicators []models.Indicator) []models.QuerySuggestion {
	var sb strings.Builder
	sb.WriteString("Propose search queries for a Shodan-style host search API to investigate these indicators. ")
	sb.WriteString("Every query must target a specific listed indicator; do not propose generic or exploratory queries. ")
	sb.WriteString("Tag each query with the exact indicator values it targets.\n\nIndicators:\n")
	for _, ind := range indicators {
		fmt.Fprintf(&sb, "- [%s] %s\n", ind.Kind, ind.NormalizedValue())
	}
	sb.WriteString(`
Respond with strict JSON only matching:
{"suggestions": [{"query_string": "", "rationale": "", "priority": "high|medium|low", "tags": []}]}`)

	text, err := g.reasoner.Generate(ctx, "query_generation", sb.String())
	if err != nil {
		g.logger.Warn().Err(err).Msg("reasoning-service query generation failed")
		return nil
	}
	var payload llmSuggestionPayload
	if err := reasoning.ParseJSON(text, &payload); err != nil {
		g.logger.Warn().Err(err).Msg("unparseable query generation response")
		return nil
	}
	return payload.Suggestions
}

// merge combines heuristic and reasoning-service suggestions, deduplicating
// by normalized query string. LLM entries win conflicts since they carry
// richer rationales.
func merge(heuristic, llm []models.QuerySuggestion) []models.QuerySuggestion {
	byQuery := make(map[string]models.QuerySuggestion, len(heuristic)+len(llm))
	var order []string
	for _, s := range heuristic {
		key := normalizeQuery(s.QueryString)
		if _, ok := byQuery[key]; !ok {
			order = append(order, key)
		}
		byQuery[key] = s
	}
	for _, s := range llm {
		key := normalizeQuery(s.QueryString)
		if _, ok := byQuery[key]; !ok {
			order = append(order, key)
		}
		byQuery[key] = s
	}

	out := make([]models.QuerySuggestion, 0, len(order))
	for _, key := range order {
		out = append(out, byQuery[key])
	}
	return out
}

// filterTraceable drops suggestions whose tags reference nothing in the
// current indicator set. Untraceable suggestions are an invariant violation
// and are silently removed, not errors.
func filterTraceable(suggestions []models.QuerySuggestion, indicators []models.Indicator) []models.QuerySuggestion {
	values := make(map[string]bool, len(indicators))
	for _, ind := range indicators {
		values[ind.NormalizedValue()] = true
	}

	out := suggestions[:0]
	for _, s := range suggestions {
		if s.QueryString == "" {
			continue
		}
		traced := false
		for _, tag := range s.Tags {
			if values[strings.ToLower(strings.TrimSpace(tag))] || values[strings.ToUpper(strings.TrimSpace(tag))] {
				traced = true
				break
			}
		}
		if traced {
			out = append(out, s)
		}
	}
	return out
}

var priorityRank = map[models.QueryPriority]int{
	models.QueryPriorityHigh:   0,
	models.QueryPriorityMedium: 1,
	models.QueryPriorityLow:    2,
}

func sortSuggestions(suggestions []models.QuerySuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, iok := priorityRank[suggestions[i].Priority]
		rj, jok := priorityRank[suggestions[j].Priority]
		if !iok {
			ri = len(priorityRank)
		}
		if !jok {
			rj = len(priorityRank)
		}
		if ri != rj {
			return ri < rj
		}
		return suggestions[i].QueryString < suggestions[j].QueryString
	})
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
