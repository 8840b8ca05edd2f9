package correlate

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"crosslight/internal/domain/models"
	"crosslight/internal/risk"
	"crosslight/pkg/logger"
)

// DefaultSimultaneityWindow is the delta under which two sources observing
// the same indicator are classified as simultaneous.
const DefaultSimultaneityWindow = time.Hour

// DefaultEvidenceCap bounds sample evidence per source aggregate to keep the
// artifact small. Precision over the cap is deliberately discarded.
const DefaultEvidenceCap = 3

// DefaultMinCrossSource is the number of cross-source signals a run must
// produce before a dominant pattern is reported at all.
const DefaultMinCrossSource = 1

// signalNamespace makes signal IDs a pure function of the grouping key, so
// identical input sets produce byte-identical output across runs.
var signalNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("crosslight/correlation-signal"))

// Engine groups indicators into cross-source signals and classifies their
// temporal relationship. Deterministic: no randomness, no wall clock; the
// only time inputs are the ObservedAt values already on the indicators.
type Engine struct {
	window      time.Duration
	evidenceCap int
	minCross    int
	logger      *logger.Logger
}

func NewEngine(window time.Duration, evidenceCap, minCrossSource int, log *logger.Logger) *Engine {
	if window <= 0 {
		window = DefaultSimultaneityWindow
	}
	if evidenceCap <= 0 {
		evidenceCap = DefaultEvidenceCap
	}
	if minCrossSource <= 0 {
		minCrossSource = DefaultMinCrossSource
	}
	return &Engine{
		window:      window,
		evidenceCap: evidenceCap,
		minCross:    minCrossSource,
		logger:      log.WithComponent("correlate"),
	}
}

// Correlate builds signals and the run summary. It never errors: indicators
// with missing timestamps still count toward per-source totals but are
// excluded from temporal classification.
func (e *Engine) Correlate(indicators []models.Indicator) models.CorrelatedData {
	groups := make(map[string][]models.Indicator)
	var keys []string
	for _, ind := range indicators {
		key := ind.Key()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], ind)
	}
	sort.Strings(keys)

	signals := make([]models.CorrelationSignal, 0, len(keys))
	summary := models.CorrelationSummary{}
	patternWeights := make(map[models.Precedence]int)

	for _, key := range keys {
		sig := e.buildSignal(groups[key])
		signals = append(signals, sig)
		summary.TotalSignals++

		switch {
		case sig.CrossSource():
			summary.Correlated++
		case sig.PerSource[0].Source == models.SourceNetExposure:
			summary.InfraOnly++
		case sig.PerSource[0].Source == models.SourceSocial:
			summary.SocialOnly++
		}

		if sig.Temporal != nil && sig.Temporal.Precedence != models.PrecedenceUnknown {
			patternWeights[sig.Temporal.Precedence] += corroboration(sig)
		}
	}

	summary.DominantPattern = e.dominantPattern(patternWeights, summary.Correlated)

	e.logger.Debug().
		Int("signals", summary.TotalSignals).
		Int("correlated", summary.Correlated).
		Str("pattern", string(summary.DominantPattern)).
		Msg("correlation completed")

	return models.CorrelatedData{Signals: signals, Summary: summary}
}

func (e *Engine) buildSignal(group []models.Indicator) models.CorrelationSignal {
	perSource := make(map[string]*models.SourceAggregate)
	evidence := make(map[string]map[string]bool)
	var order []string
	for _, ind := range group {
		agg, ok := perSource[ind.SourceTag]
		if !ok {
			agg = &models.SourceAggregate{Source: ind.SourceTag}
			perSource[ind.SourceTag] = agg
			evidence[ind.SourceTag] = make(map[string]bool)
			order = append(order, ind.SourceTag)
		}
		agg.Count++
		if ind.HasTimestamp() {
			if agg.FirstSeen.IsZero() || ind.ObservedAt.Before(agg.FirstSeen) {
				agg.FirstSeen = ind.ObservedAt
			}
			if ind.ObservedAt.After(agg.LastSeen) {
				agg.LastSeen = ind.ObservedAt
			}
		}
		if ind.EvidenceURL != "" {
			evidence[ind.SourceTag][ind.EvidenceURL] = true
		}
	}
	sort.Strings(order)

	aggs := make([]models.SourceAggregate, 0, len(order))
	for _, src := range order {
		agg := perSource[src]
		// Evidence is sorted before truncation so sampling does not depend
		// on the order indicators arrived in.
		urls := make([]string, 0, len(evidence[src]))
		for u := range evidence[src] {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		if len(urls) > e.evidenceCap {
			urls = urls[:e.evidenceCap]
		}
		if len(urls) > 0 {
			agg.SampleEvidence = urls
		}
		aggs = append(aggs, *agg)
	}

	first := group[0]
	sig := models.CorrelationSignal{
		ID:        uuid.NewSHA1(signalNamespace, []byte(first.Key())),
		Kind:      first.Kind,
		Label:     first.NormalizedValue(),
		PerSource: aggs,
	}
	if sig.CrossSource() {
		sig.Temporal = e.classify(aggs, sig.TotalCount())
	}
	return sig
}

// classify compares the two earliest-represented sources of a cross-source
// signal. Sources without any usable timestamp cannot be ordered, yielding
// an unknown precedence with zero delta.
func (e *Engine) classify(aggs []models.SourceAggregate, totalCount int) *models.TemporalLink {
	timestamped := make([]models.SourceAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if !agg.FirstSeen.IsZero() {
			timestamped = append(timestamped, agg)
		}
	}

	link := &models.TemporalLink{
		Precedence: models.PrecedenceUnknown,
		Confidence: float64(risk.Confidence(len(aggs), totalCount)),
	}
	if len(timestamped) < 2 {
		return link
	}

	sort.Slice(timestamped, func(i, j int) bool {
		if !timestamped[i].FirstSeen.Equal(timestamped[j].FirstSeen) {
			return timestamped[i].FirstSeen.Before(timestamped[j].FirstSeen)
		}
		return timestamped[i].Source < timestamped[j].Source
	})

	earliest, second := timestamped[0], timestamped[1]
	delta := second.FirstSeen.Sub(earliest.FirstSeen)
	link.DeltaHours = delta.Hours()

	switch {
	case delta < e.window:
		link.Precedence = models.PrecedenceSimultaneous
	case earliest.Source == models.SourceNetExposure:
		link.Precedence = models.PrecedenceInfraFirst
	case earliest.Source == models.SourceSocial:
		link.Precedence = models.PrecedenceSocialFirst
	}
	return link
}

// corroboration weights a signal's vote for the dominant pattern by the
// smaller of its two largest per-source counts. A signal both sources saw
// many times says more about the overall pattern than a one-off match.
func corroboration(sig models.CorrelationSignal) int {
	counts := make([]int, 0, len(sig.PerSource))
	for _, agg := range sig.PerSource {
		counts = append(counts, agg.Count)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	if len(counts) < 2 {
		return 0
	}
	return counts[1]
}

// tieOrder breaks equal-weight ties deterministically.
var tieOrder = []models.Precedence{
	models.PrecedenceInfraFirst,
	models.PrecedenceSocialFirst,
	models.PrecedenceSimultaneous,
}

func (e *Engine) dominantPattern(weights map[models.Precedence]int, correlated int) models.DominantPattern {
	if correlated < e.minCross {
		return models.PatternInsufficientData
	}
	best := models.Precedence("")
	bestWeight := -1
	for _, p := range tieOrder {
		if w := weights[p]; w > bestWeight {
			best, bestWeight = p, w
		}
	}
	if bestWeight <= 0 {
		return models.PatternInsufficientData
	}
	return models.DominantPattern(best)
}
