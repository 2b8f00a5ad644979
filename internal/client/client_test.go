package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/auth"
	"github.com/ask4sham/letsrevise-attempts/internal/client"
	"github.com/ask4sham/letsrevise-attempts/internal/events"
	"github.com/ask4sham/letsrevise-attempts/internal/handlers"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories/memory"
	"github.com/ask4sham/letsrevise-attempts/internal/scoring"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/ask4sham/letsrevise-attempts/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*client.APIClient, *auth.JWTResolver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.PutItem(
		models.AssessmentItem{
			ID: "mcq-1", Type: models.ItemMCQ, Prompt: "Powerhouse of the cell?",
			Options: []string{"Nucleus", "Mitochondrion", "Ribosome"}, CorrectIndex: models.IntPtr(1), Marks: 1,
		},
		models.AssessmentItem{
			ID: "short-1", Type: models.ItemShort, Prompt: "Capital of France?",
			CorrectAnswer: models.StringPtr("Paris"), Marks: 2,
		},
	)
	store.PutPaper(models.AssessmentPaper{
		ID: "sprint", Title: "Sprint", DurationSeconds: 5,
		Items: []models.PaperItem{{ItemID: "mcq-1", Order: 1}},
	})
	store.PutPaper(models.AssessmentPaper{
		ID: "practice", Title: "Practice",
		Items: []models.PaperItem{{ItemID: "mcq-1", Order: 1}, {ItemID: "short-1", Order: 2}},
	})

	logger := utils.NewNopLogger()
	entitlements := services.AllowAll{}
	attempts := services.NewAttemptService(store, entitlements, scoring.NewEngine(scoring.PolicyNormalized),
		events.NewMockEventPublisher(logger), validator.New(), logger)
	papers := services.NewPaperService(store, entitlements, logger)

	resolver := auth.NewJWTResolver("client-test-secret")
	hm := handlers.NewHandlerManager(attempts, papers, resolver, nil, logger)
	srv := httptest.NewServer(hm.NewRouter(nil))
	t.Cleanup(srv.Close)

	return client.NewAPIClient(srv.URL, srv.Client()), resolver
}

func sessionFor(t *testing.T, resolver *auth.JWTResolver, studentID string) client.Session {
	t.Helper()
	tok, err := resolver.Issue(services.Identity{UserID: studentID}, time.Hour)
	require.NoError(t, err)
	return client.Session{Token: tok, StudentID: studentID}
}

func TestDriver_CountdownAutoSubmitsAgainstServer(t *testing.T) {
	api, resolver := newServer(t)
	s := sessionFor(t, resolver, "student-1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	paper, err := api.GetPaper(ctx, s, "sprint")
	require.NoError(t, err)
	require.Len(t, paper.Items, 1)
	assert.Nil(t, paper.Items[0].Item.CorrectIndex)

	attempt, err := api.Start(ctx, s, "sprint")
	require.NoError(t, err)
	assert.Equal(t, 5, attempt.TimeRemainingSeconds)

	d := client.NewDriver(api, s, attempt,
		client.WithTickInterval(5*time.Millisecond),
		client.WithHeartbeatTicks(2))
	require.NoError(t, d.SelectOption(ctx, "mcq-1", 1))

	require.NoError(t, d.Run(ctx))

	final := d.Final()
	require.NotNil(t, final)
	assert.Equal(t, models.AttemptSubmitted, final.Status)
	assert.True(t, final.AutoSubmitted)
	assert.Equal(t, 5, final.TimeUsedSeconds)

	results, err := api.Results(ctx, s, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Score.Correct)
	assert.Equal(t, 100, results.Score.Percentage)

	_, err = api.RecordAnswer(ctx, s, attempt.ID, &services.RecordAnswerRequest{
		QuestionID: "mcq-1", SelectedIndex: models.IntPtr(0), TimeUsedSeconds: 5,
	})
	assert.True(t, client.IsAttemptNotActive(err))
}

func TestDriver_ResumeAndManualSubmitAgainstServer(t *testing.T) {
	api, resolver := newServer(t)
	s := sessionFor(t, resolver, "student-2")
	ctx := context.Background()

	attempt, err := api.Start(ctx, s, "practice")
	require.NoError(t, err)
	assert.Equal(t, -1, attempt.TimeRemainingSeconds)

	first := client.NewDriver(api, s, attempt)
	require.NoError(t, first.SelectOption(ctx, "mcq-1", 0))

	// A second device resumes the same attempt with the saved selection.
	resumed, err := api.GetInProgress(ctx, s, "practice")
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, resumed.ID)

	second := client.NewDriver(api, s, resumed)
	idx, ok := second.Selection("mcq-1")
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	require.NoError(t, second.SelectOption(ctx, "mcq-1", 1))
	require.NoError(t, second.Navigate(ctx, "short-1"))
	second.SetText("short-1", "  paris ")

	final, err := second.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, final.AutoSubmitted)

	results, err := api.Results(ctx, s, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Score.Correct)
	assert.Equal(t, 3, results.Score.MarksAwarded)
	assert.Equal(t, 100, results.Score.Percentage)

	// The stale driver learns about the submission on its next write.
	err = first.SelectOption(ctx, "mcq-1", 2)
	assert.True(t, client.IsAttemptNotActive(err))
	select {
	case <-first.Done():
	default:
		t.Fatal("stale driver should be closed")
	}
}

func TestAPIClient_RequiresAuth(t *testing.T) {
	api, _ := newServer(t)

	_, err := api.Start(context.Background(), client.Session{}, "sprint")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, handlers.CodeUnauthorized, apiErr.Code)
}
