package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func attempt(id, paperID, studentID string, duration int) *models.AssessmentAttempt {
	return &models.AssessmentAttempt{
		ID: id, PaperID: paperID, StudentID: studentID,
		Status: models.AttemptInProgress, StartedAt: t0, DurationSeconds: duration,
	}
}

func TestStore_CreateIsExclusivePerStudentAndPaper(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, attempt(string(rune('a'+i)), "p1", "s1", 0))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, repositories.ErrDuplicateActiveAttempt)
	}
	assert.Equal(t, 1, created)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, attempt("a1", "p1", "s1", 0)))

	ans := &models.AttemptAnswer{QuestionID: "q1", TextAnswer: models.StringPtr("mitochondria"), AnsweredAt: t0}
	got, err := s.RecordAnswer(ctx, "a1", ans, 3)
	require.NoError(t, err)

	*ans.TextAnswer = "changed"
	*got.Answers[0].TextAnswer = "changed too"

	again, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "mitochondria", *again.AnswerFor("q1").TextAnswer)
}

func TestStore_RecordAnswerAndTime(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, attempt("a1", "p1", "s1", 60)))

	_, err := s.RecordAnswer(ctx, "a1", &models.AttemptAnswer{QuestionID: "q1", SelectedIndex: models.IntPtr(3), AnsweredAt: t0.Add(2 * time.Second)}, 40)
	require.NoError(t, err)
	got, err := s.RecordAnswer(ctx, "a1", &models.AttemptAnswer{QuestionID: "q1", SelectedIndex: models.IntPtr(1), AnsweredAt: t0.Add(time.Second)}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, *got.AnswerFor("q1").SelectedIndex)
	assert.Equal(t, 40, got.TimeUsedSeconds)

	_, err = s.AdvanceTime(ctx, "a1", 60)
	require.NoError(t, err)
	_, err = s.RecordAnswer(ctx, "a1", &models.AttemptAnswer{QuestionID: "q2", SelectedIndex: models.IntPtr(0), AnsweredAt: t0.Add(time.Minute)}, 61)
	assert.ErrorIs(t, err, repositories.ErrAttemptExpired)

	_, err = s.AdvanceTime(ctx, "missing", 1)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestStore_FinalizeRunsOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, attempt("a1", "p1", "s1", 0)))

	var calls int
	var mu sync.Mutex
	fn := func(a *models.AssessmentAttempt) (*models.AttemptResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		a.Status = models.AttemptSubmitted
		a.SubmittedAt = models.TimePtr(t0)
		return &models.AttemptResult{TotalQuestions: 2, Correct: 1, Percentage: 50}, nil
	}

	var wg sync.WaitGroup
	transitions := make([]bool, 5)
	for i := range transitions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, tr, err := s.Finalize(ctx, "a1", fn)
			assert.NoError(t, err)
			transitions[i] = tr
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	n := 0
	for _, tr := range transitions {
		if tr {
			n++
		}
	}
	assert.Equal(t, 1, n)

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSubmitted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 50, got.Result.Percentage)

	_, err = s.RecordAnswer(ctx, "a1", &models.AttemptAnswer{QuestionID: "q1", SelectedIndex: models.IntPtr(0), AnsweredAt: t0}, 1)
	assert.ErrorIs(t, err, repositories.ErrAttemptNotInProgress)
}

func TestStore_ListPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		a := attempt(id, "p"+id, "s1", 0)
		a.StartedAt = t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, a))
	}

	list, total, err := s.List(ctx, repositories.AttemptFilters{StudentID: "s1", Limit: 2, Offset: 1, SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	list, _, err = s.List(ctx, repositories.AttemptFilters{StudentID: "s1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_Readers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.PutItem(models.AssessmentItem{ID: "q1", Type: models.ItemMCQ, Options: []string{"a", "b"}, CorrectIndex: models.IntPtr(0)})
	s.PutPaper(models.AssessmentPaper{ID: "p1", Items: []models.PaperItem{{ItemID: "q1", Order: 1}}})
	s.PutSubscription(models.Subscription{StudentID: "s1", Active: true})

	paper, err := s.Paper().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", paper.Items[0].PaperID)

	items, err := s.Item().GetByIDs(ctx, []string{"q1", "q9"})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	ok, err := s.Subscription().HasActive(ctx, "s1", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Paper().GetByID(ctx, "p9")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestStore_ConcurrentAnswersAndFinalize(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, attempt("a1", "p1", "s1", 0)))

	const writers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[string]bool{}
		scored   int
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			qid := fmt.Sprintf("q%d", i)
			_, err := s.RecordAnswer(ctx, "a1", &models.AttemptAnswer{
				QuestionID: qid, SelectedIndex: models.IntPtr(1), AnsweredAt: t0.Add(time.Duration(i) * time.Second),
			}, i)
			if err == nil {
				mu.Lock()
				accepted[qid] = true
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, repositories.ErrAttemptNotInProgress)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, _, err := s.Finalize(ctx, "a1", func(a *models.AssessmentAttempt) (*models.AttemptResult, error) {
			scored = len(a.Answers)
			a.Status = models.AttemptSubmitted
			a.SubmittedAt = models.TimePtr(t0)
			return &models.AttemptResult{TotalQuestions: writers, Correct: scored}, nil
		})
		assert.NoError(t, err)
	}()
	close(start)
	wg.Wait()

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got.Answers, len(accepted))
	assert.Equal(t, len(accepted), scored)
	assert.Equal(t, len(accepted), got.Result.Correct)
	for _, a := range got.Answers {
		assert.True(t, accepted[a.QuestionID], a.QuestionID)
	}
}
