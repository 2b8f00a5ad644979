package services

import (
	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

// ===== REQUESTS =====

type StartAttemptRequest struct {
	PaperID string `json:"paper_id" validate:"required,max=64"`
}

// RecordAnswerRequest carries exactly one of SelectedIndex or TextAnswer.
type RecordAnswerRequest struct {
	QuestionID      string  `json:"question_id" validate:"required,max=64"`
	SelectedIndex   *int    `json:"selected_index" validate:"omitempty,min=0"`
	TextAnswer      *string `json:"text_answer"`
	TimeUsedSeconds int     `json:"time_used_seconds" validate:"min=0"`
}

type HeartbeatRequest struct {
	TimeUsedSeconds int `json:"time_used_seconds" validate:"min=0"`
}

type SubmitAttemptRequest struct {
	AutoSubmitted   bool `json:"auto_submitted"`
	TimeUsedSeconds int  `json:"time_used_seconds" validate:"min=0"`
}

type ListAttemptsRequest struct {
	PaperID   string `form:"paper_id" validate:"max=64"`
	Status    string `form:"status" validate:"attempt_status"`
	Limit     int    `form:"limit" validate:"min=0,max=100"`
	Offset    int    `form:"offset" validate:"min=0"`
	SortOrder string `form:"sort_order" validate:"sort_order"`
}

// ===== RESPONSES =====

type AttemptResponse struct {
	*models.AssessmentAttempt
	// -1 when the paper is untimed
	TimeRemainingSeconds int `json:"time_remaining_seconds"`
	HeartbeatSeconds     int `json:"heartbeat_seconds,omitempty"`
}

// AckResponse acknowledges an answer or heartbeat. Status flips to submitted
// when the call itself exhausted the time budget.
type AckResponse struct {
	AttemptID            string               `json:"attempt_id"`
	Status               models.AttemptStatus `json:"status"`
	TimeUsedSeconds      int                  `json:"time_used_seconds"`
	TimeRemainingSeconds int                  `json:"time_remaining_seconds"`
	AutoSubmitted        bool                 `json:"auto_submitted"`
}

type ListAttemptsResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// PaperView is a paper as shown to a student taking it: no answers, no mark schemes.
type PaperView struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Subject         string          `json:"subject"`
	Board           string          `json:"board"`
	Level           string          `json:"level"`
	DurationSeconds int             `json:"duration_seconds"`
	TotalMarks      int             `json:"total_marks"`
	Items           []PaperItemView `json:"items"`
}

type PaperItemView struct {
	Order int                   `json:"order"`
	Marks int                   `json:"marks"`
	Item  models.AssessmentItem `json:"item"`
}

// QuestionResultView adds the question text to a scored row.
type QuestionResultView struct {
	models.QuestionResult
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

type ResultsResponse struct {
	Attempt     *models.AssessmentAttempt `json:"attempt"`
	Paper       *PaperView                `json:"paper"`
	Score       *models.AttemptResult     `json:"score"`
	PerQuestion []QuestionResultView      `json:"per_question"`
}

type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}
