package catalog

import (
	"hash/fnv"
	"math/rand"
)

// ShuffleForAttempt returns the question IDs in a shuffled order seeded by the
// attempt ID, so the same attempt always re-renders the same order while
// different attempts get independent ones.
func ShuffleForAttempt(attemptID string, qs []Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ids
}

// OrderQuestions arranges qs to follow the given ID order. IDs not present in
// qs are skipped; questions missing from the order (added after the attempt
// started) are appended in catalog order.
func OrderQuestions(order []string, qs []Question) []Question {
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	out := make([]Question, 0, len(qs))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if q, ok := byID[id]; ok {
			out = append(out, q)
			seen[id] = true
		}
	}
	for _, q := range qs {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}
	return out
}
