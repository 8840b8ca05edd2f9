package querygen

import (
	"fmt"

	"crosslight/internal/domain/models"
)

// Curated query templates per indicator kind. Only kinds with a sharp,
// traceable search form get a template; generic keywords produce noisy
// searches and are left to the reasoning service (which is instructed to
// avoid them too).
func heuristicSuggestions(indicators []models.Indicator) []models.QuerySuggestion {
	seen := make(map[string]bool)
	var out []models.QuerySuggestion

	add := func(s models.QuerySuggestion) {
		if key := normalizeQuery(s.QueryString); !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}

	for _, ind := range indicators {
		value := ind.NormalizedValue()
		switch ind.Kind {
		case models.IndicatorKindCVE:
			add(models.QuerySuggestion{
				QueryString: fmt.Sprintf("vuln:%s", value),
				Rationale:   fmt.Sprintf("Find hosts still exposed to %s", value),
				Priority:    models.QueryPriorityHigh,
				Tags:        []string{value},
			})
		case models.IndicatorKindMalwareFamily:
			add(models.QuerySuggestion{
				QueryString: fmt.Sprintf("product:%q", value),
				Rationale:   fmt.Sprintf("Locate infrastructure running %s tooling", value),
				Priority:    models.QueryPriorityHigh,
				Tags:        []string{value},
			})
		case models.IndicatorKindThreatActor:
			add(models.QuerySuggestion{
				QueryString: fmt.Sprintf("http.title:%q", value),
				Rationale:   fmt.Sprintf("Surface services referencing %s infrastructure", value),
				Priority:    models.QueryPriorityMedium,
				Tags:        []string{value},
			})
		}
	}
	return out
}
