package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("assessment not found")

// Store is the catalog the engine reads during an attempt. Write operations
// exist for the instructor surface; the engine itself never mutates it while
// grading.
type Store interface {
	Put(ctx context.Context, a Assessment) error
	// Get returns the full assessment, answer keys included. Callers serving
	// students must strip correctness flags (see StripAnswers).
	Get(ctx context.Context, id string) (Assessment, error)
	// QuestionsFor returns the assessment's questions ordered by sort_order
	// ascending, insertion order breaking ties.
	QuestionsFor(ctx context.Context, assessmentID string) ([]Question, error)
}

// SortQuestions orders by sort_order ascending; ties keep insertion order.
func SortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].SortOrder < qs[j].SortOrder })
}

// StripQuestions returns copies safe to serve to students: correctness flags
// cleared, options still present in display order.
func StripQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		opts := make([]Option, len(out[i].Options))
		copy(opts, out[i].Options)
		for j := range opts {
			opts[j].IsCorrect = false
		}
		out[i].Options = opts
	}
	return out
}

// StripAnswers is StripQuestions applied to a whole assessment.
func StripAnswers(a Assessment) Assessment {
	a.Questions = StripQuestions(a.Questions)
	return a
}

type memoryStore struct {
	mu          sync.RWMutex
	assessments map[string]Assessment
}

func NewInMemoryStore() Store {
	return &memoryStore{assessments: map[string]Assessment{}}
}

func (m *memoryStore) Put(_ context.Context, a Assessment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[a.ID] = a
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) QuestionsFor(ctx context.Context, assessmentID string) ([]Question, error) {
	a, err := m.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	qs := make([]Question, len(a.Questions))
	copy(qs, a.Questions)
	SortQuestions(qs)
	return qs, nil
}
