package attempt

import (
	"github.com/lumenlms/assessment-engine/internal/catalog"
)

// Aggregate is the rolled-up scoring of one attempt.
type Aggregate struct {
	Score        float64
	MaxScore     float64
	Percentage   float64
	Passed       bool
	NeedsGrading bool
}

// aggregate re-derives the attempt totals from the current question set and
// the per-question responses. MaxScore is always recomputed fresh so question
// edits after the attempt started are reflected at grading time, and the
// whole computation is idempotent: the same inputs always yield the same
// output, with no running totals to double-count.
func aggregate(questions []catalog.Question, responses []Response, passingScore float64) Aggregate {
	var agg Aggregate
	byQuestion := make(map[string]Response, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}
	for _, q := range questions {
		agg.MaxScore += q.Points
		r, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		if r.PointsEarned == nil {
			if manualType(q.Type) {
				agg.NeedsGrading = true
			}
			continue
		}
		agg.Score += *r.PointsEarned
	}
	if agg.MaxScore > 0 {
		agg.Percentage = agg.Score / agg.MaxScore * 100
	}
	agg.Passed = agg.Percentage >= passingScore
	return agg
}

func manualType(t catalog.QuestionType) bool {
	switch t {
	case catalog.Essay, catalog.Coding, catalog.FileUpload, catalog.Matching:
		return true
	}
	return false
}

// applyLatePenalty deducts the configured share of the pre-penalty
// percentage, clamping at zero. Returns the post-penalty percentage and the
// deduction applied.
func applyLatePenalty(percentage, penaltyPercent float64) (float64, float64) {
	penalty := penaltyPercent / 100 * percentage
	after := percentage - penalty
	if after < 0 {
		after = 0
	}
	return after, penalty
}

// gradeLetter derives the letter grade from a final percentage.
func gradeLetter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
