package repositories

import (
	"context"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

// AttemptRepository owns AssessmentAttempt records. Every mutating method is
// atomic with respect to a single attempt.
type AttemptRepository interface {
	// Create inserts a new in_progress attempt. Returns ErrDuplicateActiveAttempt
	// if the student already has an in_progress attempt for the paper.
	Create(ctx context.Context, attempt *models.AssessmentAttempt) error

	// GetByID loads the attempt with its answers and, once submitted, its result.
	GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error)

	// GetActive returns the in_progress attempt for (student, paper) or ErrNotFound.
	GetActive(ctx context.Context, studentID, paperID string) (*models.AssessmentAttempt, error)

	List(ctx context.Context, filters AttemptFilters) ([]*models.AssessmentAttempt, int64, error)

	// RecordAnswer upserts one answer (last write wins by AnsweredAt) and advances
	// the time used to max(stored, timeUsed), both under the attempt's lock.
	RecordAnswer(ctx context.Context, attemptID string, answer *models.AttemptAnswer, timeUsed int) (*models.AssessmentAttempt, error)

	// AdvanceTime moves the time used forward; smaller values are ignored.
	AdvanceTime(ctx context.Context, attemptID string, timeUsed int) (*models.AssessmentAttempt, error)

	// Finalize performs the in_progress -> submitted transition exactly once.
	// When the attempt is already submitted fn is not called and the stored
	// record is returned with transitioned=false.
	Finalize(ctx context.Context, attemptID string, fn FinalizeFunc) (attempt *models.AssessmentAttempt, transitioned bool, err error)
}

// PaperRepository is the read-only paper reader.
type PaperRepository interface {
	GetByID(ctx context.Context, id string) (*models.AssessmentPaper, error)
}

// ItemRepository is the read-only question bank reader.
type ItemRepository interface {
	GetByID(ctx context.Context, id string) (*models.AssessmentItem, error)
	// GetByIDs returns the items found, keyed by id. Missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.AssessmentItem, error)
}

type SubscriptionRepository interface {
	// HasActive reports whether the student holds a subscription valid at the given time.
	HasActive(ctx context.Context, studentID string, at time.Time) (bool, error)
}

// Repository groups the stores behind one handle.
type Repository interface {
	Attempt() AttemptRepository
	Paper() PaperRepository
	Item() ItemRepository
	Subscription() SubscriptionRepository
}
