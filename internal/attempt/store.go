package attempt

import "context"

type ListOpts struct {
	AssessmentID string
	UserID       string
	Status       Status
	Limit        int
	Offset       int
}

// Store is dumb persistence for attempts and responses. State-machine rules
// live in Service; stores only enforce the uniqueness constraints.
type Store interface {
	// Create persists a new attempt. Fails if (assessment_id, user_id,
	// attempt_number) already exists.
	Create(ctx context.Context, a Attempt) error
	Get(ctx context.Context, id string) (Attempt, error)
	Update(ctx context.Context, a Attempt) error
	// CountForUser returns how many attempts the user has for the assessment.
	CountForUser(ctx context.Context, assessmentID, userID string) (int, error)
	List(ctx context.Context, opts ListOpts) ([]Attempt, error)

	// UpsertResponse writes the response for its (attempt, question) pair,
	// overwriting any previous one. Last write wins.
	UpsertResponse(ctx context.Context, r Response) error
	ResponsesFor(ctx context.Context, attemptID string) ([]Response, error)
}
