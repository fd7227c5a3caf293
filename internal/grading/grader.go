package grading

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lumenlms/assessment-engine/internal/catalog"
)

// Answer is the student's submitted answer to one question, already
// decoupled from how the attempt store persists it.
type Answer struct {
	Selected []string // option IDs, for choice types
	Text     string   // for text types
	Files    []string // file references, for upload types
}

// Empty reports whether nothing was actually answered.
func (a Answer) Empty() bool {
	return len(a.Selected) == 0 && strings.TrimSpace(a.Text) == "" && len(a.Files) == 0
}

// Result is the outcome of grading a single question response.
type Result struct {
	Points      float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	Correct     bool
	NeedsManual bool // true if grader review is required; Points is meaningless then
}

type Option func(*Grader)

// WithLogger overrides the logger used for data-integrity warnings.
func WithLogger(l logrus.FieldLogger) Option { return func(g *Grader) { g.log = l } }

// Grader scores a single (question, answer) pair. It is deterministic and
// total: malformed or inconsistent input degrades to a 0-point result, never
// an error, so a submitted attempt is always gradable end to end.
type Grader struct {
	log logrus.FieldLogger
}

func New(opts ...Option) *Grader {
	g := &Grader{log: logrus.StandardLogger()}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Grader) Grade(q catalog.Question, ans Answer) Result {
	res := Result{MaxPoints: q.Points}

	// Validation precedes grading: a required question answered with nothing
	// scores 0 without inspecting content further.
	if ans.Empty() {
		if q.IsRequired {
			return res
		}
		switch q.Type {
		case catalog.Essay, catalog.Coding, catalog.FileUpload, catalog.Matching:
			res.NeedsManual = true
		}
		return res
	}

	switch q.Type {
	case catalog.TrueFalse:
		return g.gradeTrueFalse(q, ans)
	case catalog.SingleChoice:
		return g.gradeSingleChoice(q, ans)
	case catalog.MultipleChoice:
		return g.gradeMultipleChoice(q, ans)
	case catalog.FillBlank:
		return g.gradeFillBlank(q, ans)
	case catalog.Essay, catalog.Coding, catalog.FileUpload, catalog.Matching:
		res.NeedsManual = true
		return res
	default:
		// Unknown type in stored data: surface to a grader rather than guess.
		g.log.WithField("question_id", q.ID).Warnf("grading: unknown question type %q", q.Type)
		res.NeedsManual = true
		return res
	}
}

// authoritativeCorrect picks the correct option. With multiple options marked
// correct (a data-entry inconsistency) the first by sort_order wins; with
// none, grading proceeds as "no match possible".
func (g *Grader) authoritativeCorrect(q catalog.Question) (catalog.Option, bool) {
	correct := q.CorrectOptions()
	switch len(correct) {
	case 0:
		g.log.WithFields(logrus.Fields{"question_id": q.ID, "type": q.Type}).
			Warn("grading: choice question has no correct option")
		return catalog.Option{}, false
	case 1:
		return correct[0], true
	default:
		g.log.WithFields(logrus.Fields{"question_id": q.ID, "correct_options": len(correct)}).
			Warn("grading: choice question has multiple correct options; using first by sort order")
		best := correct[0]
		for _, o := range correct[1:] {
			if o.SortOrder < best.SortOrder {
				best = o
			}
		}
		return best, true
	}
}

func (g *Grader) gradeTrueFalse(q catalog.Question, ans Answer) Result {
	res := Result{MaxPoints: q.Points}
	key, ok := g.authoritativeCorrect(q)
	if !ok {
		return res
	}
	// Accept either the correct option's identifier or a boolean-like value
	// matching the option's text.
	if len(ans.Selected) == 1 {
		if !q.HasOption(ans.Selected[0]) {
			return res // fail closed on foreign option IDs
		}
		if ans.Selected[0] == key.ID {
			res.Points, res.Correct = q.Points, true
		}
		return res
	}
	if len(ans.Selected) > 1 {
		return res
	}
	if boolEqual(ans.Text, key.Text) {
		res.Points, res.Correct = q.Points, true
	}
	return res
}

func (g *Grader) gradeSingleChoice(q catalog.Question, ans Answer) Result {
	res := Result{MaxPoints: q.Points}
	if len(ans.Selected) != 1 || !q.HasOption(ans.Selected[0]) {
		return res
	}
	key, ok := g.authoritativeCorrect(q)
	if !ok {
		return res
	}
	if ans.Selected[0] == key.ID {
		res.Points, res.Correct = q.Points, true
	}
	return res
}

func (g *Grader) gradeMultipleChoice(q catalog.Question, ans Answer) Result {
	res := Result{MaxPoints: q.Points}
	selected := toSet(ans.Selected)
	for id := range selected {
		if !q.HasOption(id) {
			return res // fail closed, never throw
		}
	}
	correct := map[string]struct{}{}
	for _, o := range q.CorrectOptions() {
		correct[o.ID] = struct{}{}
	}
	// Exact set equality, order irrelevant, duplicates collapsed. No partial
	// credit: a strict subset or superset scores 0.
	if len(correct) > 0 && setEqual(selected, correct) {
		res.Points, res.Correct = q.Points, true
	}
	return res
}

func (g *Grader) gradeFillBlank(q catalog.Question, ans Answer) Result {
	res := Result{MaxPoints: q.Points}
	got := normalize(ans.Text)
	if got == "" {
		return res
	}
	for _, o := range q.Options {
		if o.IsCorrect && normalize(o.Text) == got {
			res.Points, res.Correct = q.Points, true
			return res
		}
	}
	return res
}

func boolEqual(submitted, keyText string) bool {
	s := strings.TrimSpace(strings.ToLower(submitted))
	k := strings.TrimSpace(strings.ToLower(keyText))
	switch s {
	case "true", "1", "yes":
		s = "true"
	case "false", "0", "no":
		s = "false"
	}
	switch k {
	case "true", "1", "yes":
		k = "true"
	case "false", "0", "no":
		k = "false"
	}
	return s != "" && s == k
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
