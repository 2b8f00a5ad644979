package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/events"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/ask4sham/letsrevise-attempts/internal/scoring"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/ask4sham/letsrevise-attempts/internal/validator"
	"github.com/google/uuid"
)

type attemptService struct {
	repo         repositories.Repository
	entitlements EntitlementChecker
	engine       *scoring.Engine
	publisher    events.EventPublisher
	validator    *validator.Validator
	logger       utils.Logger
	opLog        *ServiceLogger
	now          func() time.Time
	newID        func() string

	heartbeatInterval time.Duration
}

const DefaultHeartbeatInterval = 30 * time.Second

type AttemptServiceOption func(*attemptService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AttemptServiceOption {
	return func(s *attemptService) { s.now = now }
}

// WithHeartbeatInterval sets the cadence advertised to clients.
func WithHeartbeatInterval(d time.Duration) AttemptServiceOption {
	return func(s *attemptService) {
		if d > 0 {
			s.heartbeatInterval = d
		}
	}
}

// WithIDGenerator overrides attempt id generation.
func WithIDGenerator(newID func() string) AttemptServiceOption {
	return func(s *attemptService) { s.newID = newID }
}

func NewAttemptService(
	repo repositories.Repository,
	entitlements EntitlementChecker,
	engine *scoring.Engine,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger utils.Logger,
	opts ...AttemptServiceOption,
) AttemptService {
	s := &attemptService{
		repo:         repo,
		entitlements: entitlements,
		engine:       engine,
		publisher:    publisher,
		validator:    validator,
		logger:       logger,
		opLog:        NewServiceLogger(logger, LogConfig{Service: "attempt-service", Component: "attempts"}),
		now:          time.Now,
		newID:        uuid.NewString,

		heartbeatInterval: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) StartOrResume(ctx context.Context, id Identity, req *StartAttemptRequest) (resp *AttemptResponse, err error) {
	done := s.opLog.TrackOperation(ctx, "start_attempt", id.UserID, req.PaperID, "paper")
	defer func() { done(err) }()

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requireEntitlement(ctx, id); err != nil {
		return nil, err
	}

	// Resume first so a double click never creates a second attempt.
	existing, err := s.repo.Attempt().GetActive(ctx, id.UserID, req.PaperID)
	if err == nil {
		s.logger.InfoContext(ctx, "Resuming existing attempt", "attempt_id", existing.ID, "paper_id", req.PaperID)
		return s.toResponse(existing), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up active attempt: %w", err)
	}

	paper, err := s.loadPaper(ctx, req.PaperID)
	if err != nil {
		return nil, err
	}

	attempt := &models.AssessmentAttempt{
		ID:              s.newID(),
		PaperID:         paper.ID,
		StudentID:       id.UserID,
		Status:          models.AttemptInProgress,
		StartedAt:       s.now().UTC(),
		DurationSeconds: paper.DurationSeconds,
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateActiveAttempt) {
			return nil, fmt.Errorf("failed to create attempt: %w", err)
		}
		// Lost a concurrent start; hand back the winner's record.
		winner, getErr := s.repo.Attempt().GetActive(ctx, id.UserID, req.PaperID)
		if getErr != nil {
			return nil, fmt.Errorf("%w: concurrent start for paper %s", ErrConflict, req.PaperID)
		}
		s.logger.InfoContext(ctx, "Concurrent start resolved to existing attempt", "attempt_id", winner.ID)
		return s.toResponse(winner), nil
	}

	s.logger.InfoContext(ctx, "Assessment attempt started",
		"attempt_id", attempt.ID,
		"paper_id", paper.ID,
		"student_id", id.UserID,
		"duration_seconds", attempt.DurationSeconds)
	s.publish(ctx, events.NewAttemptStartedEvent(attempt, paper))

	return s.toResponse(attempt), nil
}

func (s *attemptService) GetInProgress(ctx context.Context, id Identity, paperID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetActive(ctx, id.UserID, paperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}
	return s.toResponse(attempt), nil
}

func (s *attemptService) RecordAnswer(ctx context.Context, id Identity, attemptID string, req *RecordAnswerRequest) (ack *AckResponse, err error) {
	done := s.opLog.TrackOperation(ctx, "record_answer", id.UserID, attemptID, "attempt")
	defer func() { done(err) }()

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	attempt, err := s.ownedAttempt(ctx, id, attemptID, "answer")
	if err != nil {
		return nil, err
	}
	if !attempt.IsActive() {
		return nil, ErrAttemptNotActive
	}
	if err := s.requireEntitlement(ctx, id); err != nil {
		return nil, err
	}

	paper, err := s.loadPaper(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}
	if !paperHasItem(paper, req.QuestionID) {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, req.QuestionID)
	}
	item, err := s.repo.Item().GetByID(ctx, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, req.QuestionID)
		}
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if err := s.validator.Answer().Validate(item, req.SelectedIndex, req.TextAnswer); err != nil {
		return nil, err
	}

	answer := &models.AttemptAnswer{
		QuestionID:    req.QuestionID,
		SelectedIndex: req.SelectedIndex,
		TextAnswer:    req.TextAnswer,
		AnsweredAt:    s.now().UTC(),
	}

	updated, err := s.repo.Attempt().RecordAnswer(ctx, attemptID, answer, clampToBudget(attempt, req.TimeUsedSeconds))
	switch {
	case errors.Is(err, repositories.ErrAttemptNotInProgress):
		return nil, ErrAttemptNotActive
	case errors.Is(err, repositories.ErrAttemptExpired):
		// The budget ran out before this write; close the attempt and reject the answer.
		if _, ferr := s.finalize(ctx, attempt, true, req.TimeUsedSeconds, "expired_before_answer"); ferr != nil {
			return nil, ferr
		}
		return nil, ErrAttemptNotActive
	case err != nil:
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	if updated.IsExpired() {
		if updated, err = s.finalize(ctx, updated, true, req.TimeUsedSeconds, "expired_on_answer"); err != nil {
			return nil, err
		}
	}

	return toAck(updated), nil
}

func (s *attemptService) Heartbeat(ctx context.Context, id Identity, attemptID string, req *HeartbeatRequest) (*AckResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	attempt, err := s.ownedAttempt(ctx, id, attemptID, "heartbeat")
	if err != nil {
		return nil, err
	}
	if !attempt.IsActive() {
		return nil, ErrAttemptNotActive
	}

	updated, err := s.repo.Attempt().AdvanceTime(ctx, attemptID, clampToBudget(attempt, req.TimeUsedSeconds))
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotInProgress) {
			return nil, ErrAttemptNotActive
		}
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}

	if updated.IsExpired() {
		if updated, err = s.finalize(ctx, updated, true, req.TimeUsedSeconds, "expired_on_heartbeat"); err != nil {
			return nil, err
		}
	}

	s.logger.DebugContext(ctx, "Heartbeat recorded",
		"attempt_id", attemptID,
		"time_used_seconds", updated.TimeUsedSeconds,
		"status", updated.Status)

	return toAck(updated), nil
}

func (s *attemptService) Submit(ctx context.Context, id Identity, attemptID string, req *SubmitAttemptRequest) (resp *AttemptResponse, err error) {
	done := s.opLog.TrackOperation(ctx, "submit_attempt", id.UserID, attemptID, "attempt")
	defer func() { done(err) }()

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	attempt, err := s.ownedAttempt(ctx, id, attemptID, "submit")
	if err != nil {
		return nil, err
	}
	if !attempt.IsActive() {
		s.logger.InfoContext(ctx, "Submit on already submitted attempt", "attempt_id", attemptID)
		return s.toResponse(attempt), nil
	}

	trigger := "manual"
	if req.AutoSubmitted {
		trigger = "client_timer"
	}
	submitted, err := s.finalize(ctx, attempt, req.AutoSubmitted, req.TimeUsedSeconds, trigger)
	if err != nil {
		return nil, err
	}
	return s.toResponse(submitted), nil
}

func (s *attemptService) GetResults(ctx context.Context, id Identity, attemptID string) (*ResultsResponse, error) {
	attempt, err := s.ownedAttempt(ctx, id, attemptID, "view_results")
	if err != nil {
		return nil, err
	}
	if attempt.IsActive() {
		return nil, ErrAttemptNotSubmitted
	}

	paper, items, err := s.loadPaperWithItems(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}

	result := attempt.Result
	if result == nil {
		// Scoring is pure, so a missing row can be recomputed.
		s.logger.WarnContext(ctx, "Submitted attempt has no stored score, rescoring", "attempt_id", attemptID)
		if result, err = s.engine.Score(attempt, paper, items, s.now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to score attempt: %w", err)
		}
	}

	return &ResultsResponse{
		Attempt:     attempt,
		Paper:       buildPaperView(paper, items),
		Score:       result,
		PerQuestion: buildResultRows(result, items),
	}, nil
}

// ===== READS =====

func (s *attemptService) GetByID(ctx context.Context, id Identity, attemptID string) (*AttemptResponse, error) {
	attempt, err := s.ownedAttempt(ctx, id, attemptID, "view")
	if err != nil {
		return nil, err
	}
	return s.toResponse(attempt), nil
}

func (s *attemptService) List(ctx context.Context, id Identity, req *ListAttemptsRequest) (*ListAttemptsResponse, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	filters := repositories.AttemptFilters{
		StudentID: id.UserID,
		PaperID:   req.PaperID,
		Status:    models.AttemptStatus(req.Status),
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortOrder: req.SortOrder,
	}.Normalize()

	attempts, total, err := s.repo.Attempt().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	out := make([]*AttemptResponse, len(attempts))
	for i, a := range attempts {
		out[i] = s.toResponse(a)
	}
	return &ListAttemptsResponse{
		Attempts: out,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

func (s *attemptService) ExportResults(ctx context.Context, id Identity, attemptID string) (*ExportFile, error) {
	results, err := s.GetResults(ctx, id, attemptID)
	if err != nil {
		return nil, err
	}
	return exportResults(results)
}
