package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errLostTransition signals that the guarded status update matched no row.
var errLostTransition = errors.New("status transition lost to a concurrent writer")

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.AssessmentAttempt) error {
	err := a.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
	if isDuplicateKeyError(err) {
		return repositories.ErrDuplicateActiveAttempt
	}
	return err
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error) {
	return a.loadAttempt(a.db.WithContext(ctx), id)
}

func (a *AttemptPostgreSQL) GetActive(ctx context.Context, studentID, paperID string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND paper_id = ? AND status = ?", studentID, paperID, models.AttemptInProgress).
		Preload("Answers").
		First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	filters = filters.Normalize()

	var attempts []*models.AssessmentAttempt
	var total int64

	// apply filter first
	query := a.db.WithContext(ctx).Model(&models.AssessmentAttempt{})
	query = applyAttemptFilters(query, filters).Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	if err := query.
		Order("started_at " + filters.SortOrder).
		Limit(filters.Limit).
		Offset(filters.Offset).
		Preload("Result").
		Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) RecordAnswer(ctx context.Context, attemptID string, answer *models.AttemptAnswer, timeUsed int) (*models.AssessmentAttempt, error) {
	var out *models.AssessmentAttempt

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := a.lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if !attempt.IsActive() {
			return repositories.ErrAttemptNotInProgress
		}
		if attempt.IsExpired() {
			return repositories.ErrAttemptExpired
		}

		answer.AttemptID = attemptID
		// Per-question upsert; an older write never replaces a newer one.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_index", "text_answer", "answered_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "assessment_attempt_answers.answered_at <= excluded.answered_at"},
			}},
		}).Create(answer).Error; err != nil {
			return fmt.Errorf("failed to upsert answer: %w", err)
		}

		if err := advanceTime(tx, attempt, timeUsed); err != nil {
			return err
		}

		out, err = a.loadAttempt(tx, attemptID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AttemptPostgreSQL) AdvanceTime(ctx context.Context, attemptID string, timeUsed int) (*models.AssessmentAttempt, error) {
	var out *models.AssessmentAttempt

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := a.lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if !attempt.IsActive() {
			return repositories.ErrAttemptNotInProgress
		}
		if err := advanceTime(tx, attempt, timeUsed); err != nil {
			return err
		}
		out, err = a.loadAttempt(tx, attemptID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AttemptPostgreSQL) Finalize(ctx context.Context, attemptID string, fn repositories.FinalizeFunc) (*models.AssessmentAttempt, bool, error) {
	var out *models.AssessmentAttempt
	transitioned := false

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := a.lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		if !attempt.IsActive() {
			out, err = a.loadAttempt(tx, attemptID)
			return err
		}

		result, err := fn(attempt)
		if err != nil {
			return err
		}

		res := tx.Model(&models.AssessmentAttempt{}).
			Where("id = ? AND status = ?", attemptID, models.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":            attempt.Status,
				"submitted_at":      attempt.SubmittedAt,
				"time_used_seconds": attempt.TimeUsedSeconds,
				"auto_submitted":    attempt.AutoSubmitted,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update attempt status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostTransition
		}

		if result != nil {
			result.AttemptID = attemptID
			if err := tx.Create(result).Error; err != nil {
				return fmt.Errorf("failed to persist attempt result: %w", err)
			}
		}

		transitioned = true
		out, err = a.loadAttempt(tx, attemptID)
		return err
	})

	if errors.Is(err, errLostTransition) {
		// Someone else submitted first; the stored record is authoritative.
		out, err = a.GetByID(ctx, attemptID)
		return out, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return out, transitioned, nil
}

// lockAttempt reads the attempt row under a row lock together with its answers.
func (a *AttemptPostgreSQL) lockAttempt(tx *gorm.DB, id string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	if err := forUpdate(tx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	if err := tx.Where("attempt_id = ?", id).Find(&attempt.Answers).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) loadAttempt(db *gorm.DB, id string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	if err := db.
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answered_at ASC")
		}).
		Preload("Result").
		First(&attempt, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

// advanceTime never lets a smaller reported value roll the clock back.
func advanceTime(tx *gorm.DB, attempt *models.AssessmentAttempt, timeUsed int) error {
	if timeUsed <= attempt.TimeUsedSeconds {
		return nil
	}
	if err := tx.Model(&models.AssessmentAttempt{}).
		Where("id = ? AND status = ? AND time_used_seconds < ?", attempt.ID, models.AttemptInProgress, timeUsed).
		Update("time_used_seconds", timeUsed).Error; err != nil {
		return fmt.Errorf("failed to advance time used: %w", err)
	}
	attempt.TimeUsedSeconds = timeUsed
	return nil
}

func applyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.StudentID != "" {
		query = query.Where("student_id = ?", filters.StudentID)
	}
	if filters.PaperID != "" {
		query = query.Where("paper_id = ?", filters.PaperID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	return query
}
