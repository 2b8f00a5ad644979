package services

import (
	"context"
)

// Identity is the authenticated caller, resolved by the transport layer and
// passed explicitly into every operation.
type Identity struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// AttemptService is the attempt lifecycle controller.
type AttemptService interface {
	// StartOrResume returns the caller's in_progress attempt for the paper, or creates one.
	StartOrResume(ctx context.Context, id Identity, req *StartAttemptRequest) (*AttemptResponse, error)
	GetInProgress(ctx context.Context, id Identity, paperID string) (*AttemptResponse, error)
	RecordAnswer(ctx context.Context, id Identity, attemptID string, req *RecordAnswerRequest) (*AckResponse, error)
	Heartbeat(ctx context.Context, id Identity, attemptID string, req *HeartbeatRequest) (*AckResponse, error)
	// Submit is idempotent: an already submitted attempt is returned unchanged.
	Submit(ctx context.Context, id Identity, attemptID string, req *SubmitAttemptRequest) (*AttemptResponse, error)
	GetResults(ctx context.Context, id Identity, attemptID string) (*ResultsResponse, error)

	GetByID(ctx context.Context, id Identity, attemptID string) (*AttemptResponse, error)
	List(ctx context.Context, id Identity, req *ListAttemptsRequest) (*ListAttemptsResponse, error)
	ExportResults(ctx context.Context, id Identity, attemptID string) (*ExportFile, error)
}

// PaperService serves the student-facing view of a paper.
type PaperService interface {
	GetPaper(ctx context.Context, id Identity, paperID string) (*PaperView, error)
}

// EntitlementChecker gates access to paid content.
type EntitlementChecker interface {
	IsEntitled(ctx context.Context, studentID string) (bool, error)
}
