// Package evaluation records judge output as bounded score structures.
package evaluation

// Criteria names are fixed; every committed evaluation carries all of them.
const (
	CriterionGrounding = "grounding"
	CriterionRelevance = "relevance"
	CriterionTone      = "tone"
)

// Bounds is the inclusive score range of one criterion.
type Bounds struct {
	Min float64
	Max float64
}

// Criteria declares the criterion set and its bounds. The judge rubric
// scores 1-5 on every dimension.
var Criteria = map[string]Bounds{
	CriterionGrounding: {Min: 1, Max: 5},
	CriterionRelevance: {Min: 1, Max: 5},
	CriterionTone:      {Min: 1, Max: 5},
}

// Overall returns the unweighted mean across all criteria.
func Overall(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// MinScore returns the lowest criterion score.
func MinScore(scores map[string]float64) float64 {
	first := true
	var min float64
	for _, v := range scores {
		if first || v < min {
			min = v
			first = false
		}
	}
	return min
}
