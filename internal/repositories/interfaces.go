package repositories

import (
	"errors"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

// ===== SHARED ERRORS =====

var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateActiveAttempt is returned by Create when the (student, paper)
	// pair already has an in_progress attempt.
	ErrDuplicateActiveAttempt = errors.New("an in-progress attempt already exists for this student and paper")

	// ErrAttemptNotInProgress is returned by mutating calls on a submitted attempt.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")

	// ErrAttemptExpired is returned by RecordAnswer when the stored time budget
	// was already exhausted before the write.
	ErrAttemptExpired = errors.New("attempt time budget exhausted")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	StudentID string               `json:"student_id"`
	PaperID   string               `json:"paper_id"`
	Status    models.AttemptStatus `json:"status"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortOrder string               `json:"sort_order"` // "asc", "desc" on started_at
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps pagination to sane bounds.
func (f AttemptFilters) Normalize() AttemptFilters {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
	return f
}

// FinalizeFunc receives the locked in_progress attempt, applies the terminal
// fields to it and returns the score to persist alongside the transition.
type FinalizeFunc func(attempt *models.AssessmentAttempt) (*models.AttemptResult, error)

