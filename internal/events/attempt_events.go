package events

import (
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/google/uuid"
)

// EventType names an attempt lifecycle event
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
)

const (
	eventSource  = "attempt-service"
	eventVersion = "1.0"
)

// AttemptEvent is the envelope published for every lifecycle event
type AttemptEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptStartedData struct {
	AttemptID       string    `json:"attempt_id"`
	PaperID         string    `json:"paper_id"`
	PaperTitle      string    `json:"paper_title"`
	StudentID       string    `json:"student_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

type AttemptSubmittedData struct {
	AttemptID       string    `json:"attempt_id"`
	PaperID         string    `json:"paper_id"`
	StudentID       string    `json:"student_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
	AutoSubmitted   bool      `json:"auto_submitted"`
	TimeUsedSeconds int       `json:"time_used_seconds"`
	TotalQuestions  int       `json:"total_questions"`
	Answered        int       `json:"answered"`
	Correct         int       `json:"correct"`
	Percentage      int       `json:"percentage"`
	NeedsReview     int       `json:"needs_review"`
}

func newEvent(eventType EventType, data interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewAttemptStartedEvent(attempt *models.AssessmentAttempt, paper *models.AssessmentPaper) *AttemptEvent {
	return newEvent(EventAttemptStarted, AttemptStartedData{
		AttemptID:       attempt.ID,
		PaperID:         attempt.PaperID,
		PaperTitle:      paper.Title,
		StudentID:       attempt.StudentID,
		StartedAt:       attempt.StartedAt,
		DurationSeconds: attempt.DurationSeconds,
	})
}

func NewAttemptSubmittedEvent(attempt *models.AssessmentAttempt) *AttemptEvent {
	data := AttemptSubmittedData{
		AttemptID:       attempt.ID,
		PaperID:         attempt.PaperID,
		StudentID:       attempt.StudentID,
		AutoSubmitted:   attempt.AutoSubmitted,
		TimeUsedSeconds: attempt.TimeUsedSeconds,
	}
	if attempt.SubmittedAt != nil {
		data.SubmittedAt = *attempt.SubmittedAt
	}
	if r := attempt.Result; r != nil {
		data.TotalQuestions = r.TotalQuestions
		data.Answered = r.Answered
		data.Correct = r.Correct
		data.Percentage = r.Percentage
		data.NeedsReview = r.NeedsReview
	}
	return newEvent(EventAttemptSubmitted, data)
}
