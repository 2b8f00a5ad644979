package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/events"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ask4sham/letsrevise-attempts/internal/services")

// ===== SUBMISSION =====

// finalize performs the one-way transition to submitted and persists the score
// in the same atomic step. If another caller already submitted, the stored
// record is returned untouched.
func (s *attemptService) finalize(ctx context.Context, attempt *models.AssessmentAttempt, auto bool, reportedTime int, trigger string) (final *models.AssessmentAttempt, err error) {
	ctx, span := tracer.Start(ctx, "attempt.finalize", trace.WithAttributes(
		attribute.String("attempt.id", attempt.ID),
		attribute.String("attempt.trigger", trigger),
		attribute.Bool("attempt.auto_submitted", auto),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	paper, items, err := s.loadPaperWithItems(ctx, attempt.PaperID)
	if err != nil {
		return nil, err
	}
	if missing := missingItemIDs(paper, items); len(missing) > 0 {
		s.logger.WarnContext(ctx, "Scoring paper with missing items",
			"paper_id", paper.ID,
			"attempt_id", attempt.ID,
			"item_ids", missing)
	}

	submittedAt := s.now().UTC()
	var transitioned bool
	final, transitioned, err = s.repo.Attempt().Finalize(ctx, attempt.ID, func(locked *models.AssessmentAttempt) (*models.AttemptResult, error) {
		timeUsed := locked.TimeUsedSeconds
		if reportedTime > timeUsed {
			timeUsed = reportedTime
		}
		locked.TimeUsedSeconds = clampToBudget(locked, timeUsed)
		locked.Status = models.AttemptSubmitted
		locked.SubmittedAt = &submittedAt
		locked.AutoSubmitted = auto

		return s.engine.Score(locked, paper, items, submittedAt)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	span.SetAttributes(attribute.Bool("attempt.transitioned", transitioned))
	if transitioned {
		s.opLog.LogTransition(ctx, final, trigger)
		s.publish(ctx, events.NewAttemptSubmittedEvent(final))
	}
	return final, nil
}

// clampToBudget caps reported time at the attempt's duration. Reports over
// budget still expire the attempt but never push the stored value past it.
func clampToBudget(attempt *models.AssessmentAttempt, reported int) int {
	if reported < 0 {
		return 0
	}
	if attempt.IsTimed() && reported > attempt.DurationSeconds {
		return attempt.DurationSeconds
	}
	return reported
}

// ===== LOOKUPS =====

func (s *attemptService) ownedAttempt(ctx context.Context, id Identity, attemptID, action string) (*models.AssessmentAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != id.UserID {
		permErr := NewPermissionError(id.UserID, attemptID, "attempt", action, "not owned by student")
		s.opLog.LogPermissionDenied(ctx, action, permErr)
		return nil, permErr
	}
	return attempt, nil
}

func (s *attemptService) loadPaper(ctx context.Context, paperID string) (*models.AssessmentPaper, error) {
	paper, err := s.repo.Paper().GetByID(ctx, paperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

func (s *attemptService) loadPaperWithItems(ctx context.Context, paperID string) (*models.AssessmentPaper, map[string]*models.AssessmentItem, error) {
	paper, err := s.loadPaper(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.Item().GetByIDs(ctx, paper.ItemIDs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load paper items: %w", err)
	}
	return paper, items, nil
}

func (s *attemptService) requireEntitlement(ctx context.Context, id Identity) error {
	ok, err := s.entitlements.IsEntitled(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !ok {
		return ErrSubscriptionRequired
	}
	return nil
}

func paperHasItem(paper *models.AssessmentPaper, itemID string) bool {
	for _, ref := range paper.Items {
		if ref.ItemID == itemID {
			return true
		}
	}
	return false
}

func missingItemIDs(paper *models.AssessmentPaper, items map[string]*models.AssessmentItem) []string {
	var missing []string
	for _, ref := range paper.Items {
		if items[ref.ItemID] == nil {
			missing = append(missing, ref.ItemID)
		}
	}
	return missing
}

// publish never fails the calling operation.
func (s *attemptService) publish(ctx context.Context, event *events.AttemptEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish attempt event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}

// ===== RESPONSE BUILDERS =====

func (s *attemptService) toResponse(attempt *models.AssessmentAttempt) *AttemptResponse {
	return &AttemptResponse{
		AssessmentAttempt:    attempt,
		TimeRemainingSeconds: attempt.TimeRemaining(),
		HeartbeatSeconds:     int(s.heartbeatInterval / time.Second),
	}
}

func toAck(attempt *models.AssessmentAttempt) *AckResponse {
	return &AckResponse{
		AttemptID:            attempt.ID,
		Status:               attempt.Status,
		TimeUsedSeconds:      attempt.TimeUsedSeconds,
		TimeRemainingSeconds: attempt.TimeRemaining(),
		AutoSubmitted:        attempt.AutoSubmitted,
	}
}

// buildPaperView lists items in paper order with answers stripped. Items that
// no longer exist are skipped.
func buildPaperView(paper *models.AssessmentPaper, items map[string]*models.AssessmentItem) *PaperView {
	view := &PaperView{
		ID:              paper.ID,
		Title:           paper.Title,
		Subject:         paper.Subject,
		Board:           paper.Board,
		Level:           paper.Level,
		DurationSeconds: paper.DurationSeconds,
		Items:           make([]PaperItemView, 0, len(paper.Items)),
	}
	for _, ref := range paper.OrderedItems() {
		item, ok := items[ref.ItemID]
		if !ok {
			continue
		}
		marks := ref.EffectiveMarks(item)
		view.TotalMarks += marks
		view.Items = append(view.Items, PaperItemView{
			Order: ref.Order,
			Marks: marks,
			Item:  item.PublicView(),
		})
	}
	return view
}

func buildResultRows(result *models.AttemptResult, items map[string]*models.AssessmentItem) []QuestionResultView {
	rows := make([]QuestionResultView, len(result.Questions))
	for i, q := range result.Questions {
		rows[i] = QuestionResultView{QuestionResult: q}
		if item, ok := items[q.QuestionID]; ok {
			rows[i].Prompt = item.Prompt
			rows[i].Options = item.Options
		}
	}
	return rows
}
