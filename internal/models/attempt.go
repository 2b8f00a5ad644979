package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

type AssessmentAttempt struct {
	ID string `json:"id" gorm:"primaryKey;size:36"`

	// One in_progress attempt per (student, paper); the partial index lets
	// submitted attempts accumulate.
	PaperID   string        `json:"paper_id" gorm:"not null;size:64;index;uniqueIndex:idx_active_attempt,where:status = 'in_progress'"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;index;uniqueIndex:idx_active_attempt,where:status = 'in_progress'"`
	Status    AttemptStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`

	// Timing
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	DurationSeconds int        `json:"duration_seconds" gorm:"not null;default:0"` // copied from the paper at creation
	TimeUsedSeconds int        `json:"time_used_seconds" gorm:"not null;default:0"`
	AutoSubmitted   bool       `json:"auto_submitted" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []AttemptAnswer `json:"answers" gorm:"foreignKey:AttemptID"`
	Result  *AttemptResult  `json:"score,omitempty" gorm:"foreignKey:AttemptID"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

func (a *AssessmentAttempt) IsActive() bool {
	return a.Status == AttemptInProgress
}

func (a *AssessmentAttempt) IsTimed() bool {
	return a.DurationSeconds > 0
}

// IsExpired reports whether the time budget has been used up. Untimed attempts never expire.
func (a *AssessmentAttempt) IsExpired() bool {
	return a.IsTimed() && a.TimeUsedSeconds >= a.DurationSeconds
}

// TimeRemaining is -1 for untimed attempts.
func (a *AssessmentAttempt) TimeRemaining() int {
	if !a.IsTimed() {
		return -1
	}
	if remaining := a.DurationSeconds - a.TimeUsedSeconds; remaining > 0 {
		return remaining
	}
	return 0
}

// AnswerFor returns the stored answer for a question, or nil.
func (a *AssessmentAttempt) AnswerFor(questionID string) *AttemptAnswer {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return &a.Answers[i]
		}
	}
	return nil
}

// AnswerMap indexes answers by question id.
func (a *AssessmentAttempt) AnswerMap() map[string]AttemptAnswer {
	out := make(map[string]AttemptAnswer, len(a.Answers))
	for _, ans := range a.Answers {
		out[ans.QuestionID] = ans
	}
	return out
}

// AttemptAnswer holds exactly one of SelectedIndex or TextAnswer.
type AttemptAnswer struct {
	AttemptID     string    `json:"-" gorm:"primaryKey;size:36"`
	QuestionID    string    `json:"question_id" gorm:"primaryKey;size:64"`
	SelectedIndex *int      `json:"selected_index"`
	TextAnswer    *string   `json:"text_answer" gorm:"type:text"`
	AnsweredAt    time.Time `json:"answered_at" gorm:"not null"`
}

func (AttemptAnswer) TableName() string {
	return "assessment_attempt_answers"
}

// IsAnswered treats whitespace-only text as no answer.
func (aa *AttemptAnswer) IsAnswered() bool {
	if aa == nil {
		return false
	}
	if aa.SelectedIndex != nil {
		return true
	}
	return aa.TextAnswer != nil && strings.TrimSpace(*aa.TextAnswer) != ""
}

// AttemptResult is written in the same transaction that marks an attempt submitted.
type AttemptResult struct {
	AttemptID      string                              `json:"-" gorm:"primaryKey;size:36"`
	TotalQuestions int                                 `json:"total_questions"`
	Answered       int                                 `json:"answered"`
	Correct        int                                 `json:"correct"`
	Percentage     int                                 `json:"percentage"`
	MarksAwarded   int                                 `json:"marks_awarded"`
	TotalMarks     int                                 `json:"total_marks"`
	NeedsReview    int                                 `json:"needs_review"`
	Questions      datatypes.JSONSlice[QuestionResult] `json:"per_question"`
	ScoredAt       time.Time                           `json:"scored_at"`
}

func (AttemptResult) TableName() string {
	return "assessment_attempt_results"
}

// QuestionResult is one row of the per-question breakdown shown on the results page.
type QuestionResult struct {
	QuestionID    string   `json:"question_id"`
	Order         int      `json:"order"`
	Type          ItemType `json:"type"`
	SelectedIndex *int     `json:"selected_index"`
	TextAnswer    *string  `json:"text_answer"`
	CorrectIndex  *int     `json:"correct_index,omitempty"`
	CorrectAnswer *string  `json:"correct_answer,omitempty"`
	Answered      bool     `json:"answered"`
	IsCorrect     bool     `json:"is_correct"`
	NeedsReview   bool     `json:"needs_review"`
	ItemMissing   bool     `json:"item_missing,omitempty"`
	Marks         int      `json:"marks"`
	MarksAwarded  int      `json:"marks_awarded"`
	Explanation   *string  `json:"explanation,omitempty"`
}

// Subscription backs the entitlement gate when subscriptions are stored locally.
type Subscription struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	StudentID string     `json:"student_id" gorm:"not null;size:255;index"`
	Plan      string     `json:"plan" gorm:"size:50"`
	Active    bool       `json:"active" gorm:"not null"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsValidAt reports whether the subscription grants access at t.
func (s *Subscription) IsValidAt(t time.Time) bool {
	if !s.Active {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(t)
}
