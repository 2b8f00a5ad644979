// Package memory is a process-local Repository used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
)

// Store keeps every table in maps guarded by a single mutex, so each method is
// atomic on its own.
type Store struct {
	mu            sync.RWMutex
	papers        map[string]models.AssessmentPaper
	items         map[string]models.AssessmentItem
	attempts      map[string]*models.AssessmentAttempt
	answers       map[string]map[string]models.AttemptAnswer
	results       map[string]*models.AttemptResult
	subscriptions map[string][]models.Subscription
}

func NewStore() *Store {
	return &Store{
		papers:        map[string]models.AssessmentPaper{},
		items:         map[string]models.AssessmentItem{},
		attempts:      map[string]*models.AssessmentAttempt{},
		answers:       map[string]map[string]models.AttemptAnswer{},
		results:       map[string]*models.AttemptResult{},
		subscriptions: map[string][]models.Subscription{},
	}
}

func (s *Store) Attempt() repositories.AttemptRepository           { return s }
func (s *Store) Paper() repositories.PaperRepository               { return paperReader{s} }
func (s *Store) Item() repositories.ItemRepository                 { return itemReader{s} }
func (s *Store) Subscription() repositories.SubscriptionRepository { return subscriptionReader{s} }

// ===== SEEDING =====

func (s *Store) PutPaper(p models.AssessmentPaper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Items = append([]models.PaperItem(nil), p.Items...)
	for i := range p.Items {
		p.Items[i].PaperID = p.ID
	}
	s.papers[p.ID] = p
}

func (s *Store) PutItem(items ...models.AssessmentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.items[item.ID] = item
	}
}

func (s *Store) PutSubscription(sub models.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.StudentID] = append(s.subscriptions[sub.StudentID], sub)
}

// ===== ATTEMPTS =====

func (s *Store) Create(ctx context.Context, attempt *models.AssessmentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLocked(attempt.StudentID, attempt.PaperID) != nil {
		return repositories.ErrDuplicateActiveAttempt
	}

	now := time.Now()
	stored := *attempt
	stored.Answers = nil
	stored.Result = nil
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.attempts[stored.ID] = &stored
	s.answers[stored.ID] = map[string]models.AttemptAnswer{}

	attempt.CreatedAt, attempt.UpdatedAt = now, now
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.attempts[id]; !ok {
		return nil, repositories.ErrNotFound
	}
	return s.snapshotLocked(id), nil
}

func (s *Store) GetActive(ctx context.Context, studentID, paperID string) (*models.AssessmentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.activeLocked(studentID, paperID)
	if a == nil {
		return nil, repositories.ErrNotFound
	}
	return s.snapshotLocked(a.ID), nil
}

func (s *Store) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	filters = filters.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.AssessmentAttempt
	for id, a := range s.attempts {
		if filters.StudentID != "" && a.StudentID != filters.StudentID {
			continue
		}
		if filters.PaperID != "" && a.PaperID != filters.PaperID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		matched = append(matched, s.snapshotLocked(id))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if filters.SortOrder == "asc" {
			return matched[i].StartedAt.Before(matched[j].StartedAt)
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := int64(len(matched))
	if filters.Offset >= len(matched) {
		return []*models.AssessmentAttempt{}, total, nil
	}
	end := filters.Offset + filters.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filters.Offset:end], total, nil
}

func (s *Store) RecordAnswer(ctx context.Context, attemptID string, answer *models.AttemptAnswer, timeUsed int) (*models.AssessmentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if !a.IsActive() {
		return nil, repositories.ErrAttemptNotInProgress
	}
	if a.IsExpired() {
		return nil, repositories.ErrAttemptExpired
	}

	stored := cloneAnswer(*answer)
	stored.AttemptID = attemptID
	if prev, ok := s.answers[attemptID][stored.QuestionID]; !ok || !prev.AnsweredAt.After(stored.AnsweredAt) {
		s.answers[attemptID][stored.QuestionID] = stored
	}
	s.advanceLocked(a, timeUsed)

	return s.snapshotLocked(attemptID), nil
}

func (s *Store) AdvanceTime(ctx context.Context, attemptID string, timeUsed int) (*models.AssessmentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if !a.IsActive() {
		return nil, repositories.ErrAttemptNotInProgress
	}
	s.advanceLocked(a, timeUsed)

	return s.snapshotLocked(attemptID), nil
}

func (s *Store) Finalize(ctx context.Context, attemptID string, fn repositories.FinalizeFunc) (*models.AssessmentAttempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[attemptID]; !ok {
		return nil, false, repositories.ErrNotFound
	}
	working := s.snapshotLocked(attemptID)
	if !working.IsActive() {
		return working, false, nil
	}

	result, err := fn(working)
	if err != nil {
		return nil, false, err
	}

	a := s.attempts[attemptID]
	a.Status = working.Status
	a.SubmittedAt = working.SubmittedAt
	a.TimeUsedSeconds = working.TimeUsedSeconds
	a.AutoSubmitted = working.AutoSubmitted
	a.UpdatedAt = time.Now()
	if result != nil {
		r := cloneResult(result)
		r.AttemptID = attemptID
		s.results[attemptID] = r
	}

	return s.snapshotLocked(attemptID), true, nil
}

func (s *Store) activeLocked(studentID, paperID string) *models.AssessmentAttempt {
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.PaperID == paperID && a.IsActive() {
			return a
		}
	}
	return nil
}

func (s *Store) advanceLocked(a *models.AssessmentAttempt, timeUsed int) {
	if timeUsed > a.TimeUsedSeconds {
		a.TimeUsedSeconds = timeUsed
		a.UpdatedAt = time.Now()
	}
}

// snapshotLocked returns a deep copy so callers never share memory with the store.
func (s *Store) snapshotLocked(id string) *models.AssessmentAttempt {
	a := *s.attempts[id]
	if a.SubmittedAt != nil {
		a.SubmittedAt = models.TimePtr(*a.SubmittedAt)
	}

	a.Answers = make([]models.AttemptAnswer, 0, len(s.answers[id]))
	for _, ans := range s.answers[id] {
		a.Answers = append(a.Answers, cloneAnswer(ans))
	}
	sort.SliceStable(a.Answers, func(i, j int) bool {
		if a.Answers[i].AnsweredAt.Equal(a.Answers[j].AnsweredAt) {
			return a.Answers[i].QuestionID < a.Answers[j].QuestionID
		}
		return a.Answers[i].AnsweredAt.Before(a.Answers[j].AnsweredAt)
	})

	if r, ok := s.results[id]; ok {
		a.Result = cloneResult(r)
	}
	return &a
}

func cloneAnswer(ans models.AttemptAnswer) models.AttemptAnswer {
	if ans.SelectedIndex != nil {
		ans.SelectedIndex = models.IntPtr(*ans.SelectedIndex)
	}
	if ans.TextAnswer != nil {
		ans.TextAnswer = models.StringPtr(*ans.TextAnswer)
	}
	return ans
}

func cloneResult(r *models.AttemptResult) *models.AttemptResult {
	out := *r
	out.Questions = append([]models.QuestionResult(nil), r.Questions...)
	return &out
}

// ===== READERS =====

type paperReader struct{ s *Store }

func (r paperReader) GetByID(ctx context.Context, id string) (*models.AssessmentPaper, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.papers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	p.Items = p.OrderedItems()
	return &p, nil
}

type itemReader struct{ s *Store }

func (r itemReader) GetByID(ctx context.Context, id string) (*models.AssessmentItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &item, nil
}

func (r itemReader) GetByIDs(ctx context.Context, ids []string) (map[string]*models.AssessmentItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*models.AssessmentItem, len(ids))
	for _, id := range ids {
		if item, ok := r.s.items[id]; ok {
			out[id] = &item
		}
	}
	return out, nil
}

type subscriptionReader struct{ s *Store }

func (r subscriptionReader) HasActive(ctx context.Context, studentID string, at time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sub := range r.s.subscriptions[studentID] {
		if sub.IsValidAt(at) {
			return true, nil
		}
	}
	return false, nil
}
