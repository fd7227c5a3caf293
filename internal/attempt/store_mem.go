package attempt

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu        sync.RWMutex
	attempts  map[string]Attempt
	responses map[string]map[string]Response // attemptID -> questionID -> Response
	seq       map[string]int                 // insertion order of attempts
	nextSeq   int
}

// NewInMemoryStore is the offline/test counterpart of the SQL store.
func NewInMemoryStore() Store {
	return &memoryStore{
		attempts:  map[string]Attempt{},
		responses: map[string]map[string]Response{},
		seq:       map[string]int{},
	}
}

func (m *memoryStore) Create(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.attempts {
		if ex.AssessmentID == a.AssessmentID && ex.UserID == a.UserID && ex.AttemptNumber == a.AttemptNumber {
			return fmt.Errorf("attempt %d already exists for user %s on assessment %s",
				a.AttemptNumber, a.UserID, a.AssessmentID)
		}
	}
	m.attempts[a.ID] = a
	m.nextSeq++
	m.seq[a.ID] = m.nextSeq
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) Update(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; !ok {
		return ErrNotFound
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) CountForUser(_ context.Context, assessmentID, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.AssessmentID == assessmentID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.AssessmentID != "" && a.AssessmentID != opts.AssessmentID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) UpsertResponse(_ context.Context, r Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[r.AttemptID]; !ok {
		return ErrNotFound
	}
	byQ, ok := m.responses[r.AttemptID]
	if !ok {
		byQ = map[string]Response{}
		m.responses[r.AttemptID] = byQ
	}
	if prev, ok := byQ[r.QuestionID]; ok {
		r.ID = prev.ID
	} else if r.ID == "" {
		r.ID = uuid.NewString()
	}
	byQ[r.QuestionID] = r
	return nil
}

func (m *memoryStore) ResponsesFor(_ context.Context, attemptID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQ := m.responses[attemptID]
	out := make([]Response, 0, len(byQ))
	for _, r := range byQ {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}
