package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/handlers"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records calls in order and can be told to fail or block.
type fakeAPI struct {
	mu         sync.Mutex
	calls      []string
	answers    []services.RecordAnswerRequest
	heartbeats []int
	submits    []services.SubmitAttemptRequest

	answerErr       error
	submitErrs      []error
	submitGate      chan struct{}
	heartbeatGate   chan struct{}
	heartbeatStatus models.AttemptStatus
}

func (f *fakeAPI) RecordAnswer(_ context.Context, _ Session, attemptID string, req *services.RecordAnswerRequest) (*services.AckResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "answer:"+req.QuestionID)
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	f.answers = append(f.answers, *req)
	return &services.AckResponse{AttemptID: attemptID, Status: models.AttemptInProgress, TimeUsedSeconds: req.TimeUsedSeconds}, nil
}

func (f *fakeAPI) Heartbeat(_ context.Context, _ Session, attemptID string, req *services.HeartbeatRequest) (*services.AckResponse, error) {
	if f.heartbeatGate != nil {
		<-f.heartbeatGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "heartbeat")
	f.heartbeats = append(f.heartbeats, req.TimeUsedSeconds)
	status := f.heartbeatStatus
	if status == "" {
		status = models.AttemptInProgress
	}
	return &services.AckResponse{AttemptID: attemptID, Status: status, TimeUsedSeconds: req.TimeUsedSeconds}, nil
}

func (f *fakeAPI) Submit(_ context.Context, _ Session, attemptID string, req *services.SubmitAttemptRequest) (*services.AttemptResponse, error) {
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "submit")
	f.submits = append(f.submits, *req)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	now := time.Now()
	return &services.AttemptResponse{AssessmentAttempt: &models.AssessmentAttempt{
		ID: attemptID, Status: models.AttemptSubmitted, SubmittedAt: &now,
		AutoSubmitted: req.AutoSubmitted, TimeUsedSeconds: req.TimeUsedSeconds,
	}}, nil
}

func (f *fakeAPI) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(call string) int {
	n := 0
	for _, c := range f.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

func newAttempt(duration, used int) *services.AttemptResponse {
	return &services.AttemptResponse{AssessmentAttempt: &models.AssessmentAttempt{
		ID: "att-1", PaperID: "p1", StudentID: "s1", Status: models.AttemptInProgress,
		DurationSeconds: duration, TimeUsedSeconds: used,
	}}
}

var session = Session{Token: "tok", StudentID: "s1"}

func TestDriver_HeartbeatEveryThirtyTicks(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(0, 0))

	for i := 0; i < 95; i++ {
		d.Tick(context.Background())
	}
	d.Wait()

	assert.ElementsMatch(t, []int{30, 60, 90}, api.heartbeats)
	assert.Equal(t, 95, d.TimeUsed())
	assert.Equal(t, -1, d.Remaining())
}

func TestDriver_TickDoesNotWaitForHeartbeat(t *testing.T) {
	api := &fakeAPI{heartbeatGate: make(chan struct{})}
	d := NewDriver(api, session, newAttempt(600, 0), WithHeartbeatTicks(1))

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			d.Tick(context.Background())
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("tick blocked on heartbeat")
	}
	assert.Equal(t, 597, d.Remaining())

	close(api.heartbeatGate)
	d.Wait()
	assert.Len(t, api.heartbeats, 3)
}

func TestDriver_AutoSubmitFiresOnce(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(5, 0))

	for i := 0; i < 20; i++ {
		d.Tick(context.Background())
	}
	d.Wait()

	assert.Equal(t, 1, api.count("submit"))
	require.Len(t, api.submits, 1)
	assert.True(t, api.submits[0].AutoSubmitted)
	assert.Equal(t, 5, api.submits[0].TimeUsedSeconds)
	require.NotNil(t, d.Final())
	assert.Equal(t, 0, d.Remaining())

	select {
	case <-d.Done():
	default:
		t.Fatal("driver not closed after submit")
	}
}

func TestDriver_AutoSubmitFailureLeavesManualRetry(t *testing.T) {
	api := &fakeAPI{submitErrs: []error{errors.New("network down")}}
	d := NewDriver(api, session, newAttempt(2, 0))

	for i := 0; i < 5; i++ {
		d.Tick(context.Background())
	}
	d.Wait()

	assert.Equal(t, 1, api.count("submit"))
	assert.Nil(t, d.Final())
	assert.Error(t, d.LastError())

	resp, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSubmitted, resp.Status)
	assert.False(t, resp.AutoSubmitted)
	assert.NoError(t, d.LastError())

	// Further ticks never fire a second auto-submit.
	d.Tick(context.Background())
	d.Wait()
	assert.Equal(t, 2, api.count("submit"))
}

func TestDriver_AutoSubmitRetriesAfterManualSubmitFails(t *testing.T) {
	api := &fakeAPI{submitGate: make(chan struct{}), submitErrs: []error{errors.New("network down")}}
	d := NewDriver(api, session, newAttempt(2, 0))
	ctx := context.Background()

	manual := make(chan error, 1)
	go func() {
		_, err := d.Submit(ctx)
		manual <- err
	}()
	require.Eventually(t, func() bool { return d.submitting.Load() }, time.Second, 5*time.Millisecond)

	d.Tick(ctx)
	d.Tick(ctx)
	d.Wait()
	assert.False(t, d.autoFired.Load())

	close(api.submitGate)
	require.Error(t, <-manual)
	assert.Nil(t, d.Final())

	d.Tick(ctx)
	d.Wait()
	require.Len(t, api.submits, 2)
	assert.False(t, api.submits[0].AutoSubmitted)
	assert.True(t, api.submits[1].AutoSubmitted)
	require.NotNil(t, d.Final())
	assert.True(t, d.Final().AutoSubmitted)
}

func TestDriver_ConcurrentSubmitIsLatched(t *testing.T) {
	api := &fakeAPI{submitGate: make(chan struct{})}
	d := NewDriver(api, session, newAttempt(600, 10))

	firstDone := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background())
		firstDone <- err
	}()

	require.Eventually(t, func() bool { return d.submitting.Load() }, time.Second, 5*time.Millisecond)
	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(api.submitGate)
	require.NoError(t, <-firstDone)

	// Once submitted, Submit returns the stored record without a network call.
	again, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, d.Final(), again)
	assert.Equal(t, 1, api.count("submit"))
}

func TestDriver_SelectOptionRollsBackOnFailure(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(600, 0))
	ctx := context.Background()

	require.NoError(t, d.SelectOption(ctx, "q1", 2))
	idx, ok := d.Selection("q1")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	api.answerErr = errors.New("timeout")
	assert.Error(t, d.SelectOption(ctx, "q1", 0))
	idx, _ = d.Selection("q1")
	assert.Equal(t, 2, idx)

	assert.Error(t, d.SelectOption(ctx, "q2", 1))
	_, ok = d.Selection("q2")
	assert.False(t, ok)
}

func TestDriver_TextIsBufferedUntilBlurOrNavigation(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(600, 0))
	ctx := context.Background()

	require.NoError(t, d.Navigate(ctx, "q1"))
	d.SetText("q1", "Par")
	d.SetText("q1", "Paris")
	assert.Empty(t, api.snapshot())

	require.NoError(t, d.Navigate(ctx, "q2"))
	require.Len(t, api.answers, 1)
	assert.Equal(t, "Paris", *api.answers[0].TextAnswer)

	d.SetText("q2", "Mitochondria")
	require.NoError(t, d.Blur(ctx, "q2"))
	require.NoError(t, d.Blur(ctx, "q2"))
	assert.Len(t, api.answers, 2)
}

func TestDriver_FlushesAllTextBeforeSubmit(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(600, 0))

	d.SetText("q1", "first")
	d.SetText("q3", "third")
	d.SetText("q2", "second")

	_, err := d.Submit(context.Background())
	require.NoError(t, err)

	calls := api.snapshot()
	require.Len(t, calls, 4)
	assert.ElementsMatch(t, []string{"answer:q1", "answer:q2", "answer:q3"}, calls[:3])
	assert.Equal(t, "submit", calls[3])
}

func TestDriver_FlushFailureAbortsSubmit(t *testing.T) {
	api := &fakeAPI{answerErr: errors.New("network down")}
	d := NewDriver(api, session, newAttempt(600, 0))
	d.SetText("q1", "unsaved")

	_, err := d.Submit(context.Background())
	require.Error(t, err)
	assert.Zero(t, api.count("submit"))
	assert.Equal(t, "unsaved", d.Text("q1"))

	api.mu.Lock()
	api.answerErr = nil
	api.mu.Unlock()
	_, err = d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("submit"))
}

func TestDriver_SubmitProceedsWhenServerAlreadyClosed(t *testing.T) {
	api := &fakeAPI{answerErr: &APIError{Status: http.StatusConflict, Code: handlers.CodeAttemptNotActive}}
	d := NewDriver(api, session, newAttempt(600, 0))
	d.SetText("q1", "late")

	resp, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSubmitted, resp.Status)
}

func TestDriver_ServerExpiryClosesDriver(t *testing.T) {
	api := &fakeAPI{heartbeatStatus: models.AttemptSubmitted}
	d := NewDriver(api, session, newAttempt(600, 0), WithHeartbeatTicks(1))

	d.Tick(context.Background())
	d.Wait()

	select {
	case <-d.Done():
	default:
		t.Fatal("driver should close when the server reports submission")
	}
	assert.ErrorIs(t, d.SelectOption(context.Background(), "q1", 0), ErrAttemptClosed)
}

func TestDriver_AdoptsServerTimeWhenAhead(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(600, 100))
	d.observe(&services.AckResponse{Status: models.AttemptInProgress, TimeUsedSeconds: 250})
	assert.Equal(t, 250, d.TimeUsed())

	d.observe(&services.AckResponse{Status: models.AttemptInProgress, TimeUsedSeconds: 10})
	assert.Equal(t, 250, d.TimeUsed())
}

func TestDriver_RunStopsWhenSubmitted(t *testing.T) {
	api := &fakeAPI{}
	d := NewDriver(api, session, newAttempt(3, 0), WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	require.NotNil(t, d.Final())
	assert.True(t, d.Final().AutoSubmitted)
}

func TestNewDriver_FromSubmittedAttempt(t *testing.T) {
	attempt := newAttempt(600, 600)
	attempt.Status = models.AttemptSubmitted
	d := NewDriver(&fakeAPI{}, session, attempt)

	assert.Equal(t, attempt, d.Final())
	resp, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, attempt, resp)
}

func TestNewDriver_AdoptsServerHeartbeatCadence(t *testing.T) {
	api := &fakeAPI{}
	attempt := newAttempt(600, 0)
	attempt.HeartbeatSeconds = 5
	d := NewDriver(api, session, attempt)

	for i := 0; i < 12; i++ {
		d.Tick(context.Background())
	}
	d.Wait()

	assert.ElementsMatch(t, []int{5, 10}, api.heartbeats)
}
