package risk

import "crosslight/internal/domain/models"

// Severity weights. Deliberately simple and monotonic; tests rely on the
// exact arithmetic, so do not tune these without updating the thresholds.
const (
	weightCritical = 40
	weightHigh     = 20
	weightMedium   = 5
	weightLow      = 1

	maxScore      = 100
	maxConfidence = 95
)

// Score computes a bounded weighted risk score from severity counts.
// Monotonically non-decreasing in every argument, clamped to [0, 100].
func Score(critical, high, medium, low int) int {
	s := critical*weightCritical + high*weightHigh + medium*weightMedium + low*weightLow
	if s < 0 {
		return 0
	}
	if s > maxScore {
		return maxScore
	}
	return s
}

// Level maps a score to its reporting band.
func Level(score int) models.RiskLevel {
	switch {
	case score >= 75:
		return models.RiskLevelCritical
	case score >= 45:
		return models.RiskLevelElevated
	case score >= 15:
		return models.RiskLevelModerate
	default:
		return models.RiskLevelLow
	}
}

// Confidence scores how much to trust an assessment from source diversity
// and sample size: 10 points per distinct source, 15 more at ten or more
// observations (10 at five), capped at 95 since certainty is never total.
func Confidence(distinctSources, observations int) int {
	c := distinctSources * 10
	switch {
	case observations >= 10:
		c += 15
	case observations >= 5:
		c += 10
	}
	if c < 0 {
		return 0
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
