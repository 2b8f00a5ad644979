package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTickInterval   = time.Second
	DefaultHeartbeatTicks = 30
)

var (
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrAttemptClosed    = errors.New("attempt is no longer in progress")
)

// AttemptAPI is the part of the HTTP API the driver needs. *APIClient implements it.
type AttemptAPI interface {
	RecordAnswer(ctx context.Context, s Session, attemptID string, req *services.RecordAnswerRequest) (*services.AckResponse, error)
	Heartbeat(ctx context.Context, s Session, attemptID string, req *services.HeartbeatRequest) (*services.AckResponse, error)
	Submit(ctx context.Context, s Session, attemptID string, req *services.SubmitAttemptRequest) (*services.AttemptResponse, error)
}

type DriverOption func(*Driver)

func WithTickInterval(d time.Duration) DriverOption {
	return func(dr *Driver) { dr.tickInterval = d }
}

// WithHeartbeatTicks sets how many ticks pass between heartbeats.
func WithHeartbeatTicks(n int) DriverOption {
	return func(dr *Driver) {
		if n > 0 {
			dr.heartbeatTicks = n
		}
	}
}

func WithLogger(logger utils.Logger) DriverOption {
	return func(dr *Driver) { dr.logger = logger }
}

// Driver runs the countdown for one attempt and keeps answers flowing to the
// server. Selections are written immediately; typed text is buffered until
// blur, navigation or submit.
type Driver struct {
	api       AttemptAPI
	session   Session
	attemptID string
	duration  int
	logger    utils.Logger

	tickInterval   time.Duration
	heartbeatTicks int

	mu         sync.Mutex
	ticks      int
	timeUsed   int
	current    string
	selections map[string]int
	pendingSeq map[string]uint64
	seq        uint64
	texts      map[string]string
	dirty      map[string]bool
	closed     bool
	final      *services.AttemptResponse
	lastErr    error

	autoFired  atomic.Bool // one-shot unless it lost to a manual submit
	submitting atomic.Bool // released when a submit fails

	inflight  sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewDriver resumes local state from the attempt returned by start or resume.
func NewDriver(api AttemptAPI, session Session, attempt *services.AttemptResponse, opts ...DriverOption) *Driver {
	d := &Driver{
		api:            api,
		session:        session,
		attemptID:      attempt.ID,
		duration:       attempt.DurationSeconds,
		timeUsed:       attempt.TimeUsedSeconds,
		logger:         utils.NewNopLogger(),
		tickInterval:   DefaultTickInterval,
		heartbeatTicks: DefaultHeartbeatTicks,
		selections:     make(map[string]int),
		pendingSeq:     make(map[string]uint64),
		texts:          make(map[string]string),
		dirty:          make(map[string]bool),
		done:           make(chan struct{}),
	}
	if attempt.HeartbeatSeconds > 0 {
		d.heartbeatTicks = attempt.HeartbeatSeconds
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, ans := range attempt.Answers {
		if ans.SelectedIndex != nil {
			d.selections[ans.QuestionID] = *ans.SelectedIndex
		}
		if ans.TextAnswer != nil {
			d.texts[ans.QuestionID] = *ans.TextAnswer
		}
	}
	if !attempt.IsActive() {
		d.final = attempt
		d.markClosed()
	}
	return d
}

// ===== COUNTDOWN =====

// Run ticks until the attempt is closed or ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.inflight.Wait()
			return ctx.Err()
		case <-d.done:
			d.inflight.Wait()
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick advances the countdown by one second. Network work it triggers runs in
// the background so the countdown never waits on a round trip. Once the
// countdown reaches zero it auto-submits once; a failed auto-submit is left to
// a manual Submit, but one that found a manual submit in flight fires again on
// a later tick.
func (d *Driver) Tick(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.ticks++
	if !d.timed() || d.timeUsed < d.duration {
		d.timeUsed++
	}
	timeUsed := d.timeUsed
	heartbeatDue := d.ticks%d.heartbeatTicks == 0
	expired := d.timed() && d.timeUsed >= d.duration
	d.mu.Unlock()

	if heartbeatDue {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			d.heartbeat(ctx, timeUsed)
		}()
	}

	if expired && d.autoFired.CompareAndSwap(false, true) {
		d.logger.Info("Countdown reached zero, auto-submitting", "attempt_id", d.attemptID)
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			if _, err := d.submit(ctx, true); err != nil {
				if errors.Is(err, ErrSubmitInProgress) {
					// Retried on a later tick if the other submit fails.
					d.autoFired.Store(false)
					return
				}
				d.logger.Warn("Auto-submit failed", "attempt_id", d.attemptID, "error", err)
			}
		}()
	}
}

func (d *Driver) heartbeat(ctx context.Context, timeUsed int) {
	ack, err := d.api.Heartbeat(ctx, d.session, d.attemptID, &services.HeartbeatRequest{TimeUsedSeconds: timeUsed})
	if err != nil {
		if IsAttemptNotActive(err) {
			d.markClosed()
			return
		}
		// The next heartbeat carries a larger value, so a lost one is harmless.
		d.logger.Debug("Heartbeat failed", "attempt_id", d.attemptID, "error", err)
		return
	}
	d.observe(ack)
}

// observe adopts server time when it is ahead and notices server-side expiry.
func (d *Driver) observe(ack *services.AckResponse) {
	d.mu.Lock()
	if ack.TimeUsedSeconds > d.timeUsed {
		d.timeUsed = ack.TimeUsedSeconds
	}
	d.mu.Unlock()

	if ack.Status == models.AttemptSubmitted {
		d.markClosed()
	}
}

// ===== ANSWERS =====

// SelectOption records an mcq choice locally and sends it right away. The
// local value is rolled back if the write fails and nothing newer replaced it.
func (d *Driver) SelectOption(ctx context.Context, questionID string, index int) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrAttemptClosed
	}
	prev, hadPrev := d.selections[questionID]
	d.seq++
	seq := d.seq
	d.selections[questionID] = index
	d.pendingSeq[questionID] = seq
	timeUsed := d.timeUsed
	d.mu.Unlock()

	ack, err := d.api.RecordAnswer(ctx, d.session, d.attemptID, &services.RecordAnswerRequest{
		QuestionID:      questionID,
		SelectedIndex:   &index,
		TimeUsedSeconds: timeUsed,
	})

	d.mu.Lock()
	if d.pendingSeq[questionID] == seq {
		delete(d.pendingSeq, questionID)
		if err != nil {
			if hadPrev {
				d.selections[questionID] = prev
			} else {
				delete(d.selections, questionID)
			}
		}
	}
	d.mu.Unlock()

	if err != nil {
		if IsAttemptNotActive(err) {
			d.markClosed()
		}
		return err
	}
	d.observe(ack)
	return nil
}

// SetText buffers a free-text answer without sending it.
func (d *Driver) SetText(questionID, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.texts[questionID] != text {
		d.texts[questionID] = text
		d.dirty[questionID] = true
	}
}

// Blur flushes the buffered text of the question losing focus.
func (d *Driver) Blur(ctx context.Context, questionID string) error {
	return d.flushText(ctx, questionID)
}

// Navigate flushes the question being left and makes next current.
func (d *Driver) Navigate(ctx context.Context, next string) error {
	d.mu.Lock()
	leaving := d.current
	d.current = next
	d.mu.Unlock()

	if leaving == "" || leaving == next {
		return nil
	}
	return d.flushText(ctx, leaving)
}

// FlushAll sends every buffered text answer, across all questions.
func (d *Driver) FlushAll(ctx context.Context) error {
	d.mu.Lock()
	pending := make([]string, 0, len(d.dirty))
	for q := range d.dirty {
		pending = append(pending, q)
	}
	d.mu.Unlock()
	sort.Strings(pending)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range pending {
		g.Go(func() error {
			return d.flushText(gctx, q)
		})
	}
	return g.Wait()
}

func (d *Driver) flushText(ctx context.Context, questionID string) error {
	d.mu.Lock()
	if !d.dirty[questionID] {
		d.mu.Unlock()
		return nil
	}
	text := d.texts[questionID]
	timeUsed := d.timeUsed
	d.mu.Unlock()

	ack, err := d.api.RecordAnswer(ctx, d.session, d.attemptID, &services.RecordAnswerRequest{
		QuestionID:      questionID,
		TextAnswer:      &text,
		TimeUsedSeconds: timeUsed,
	})
	if err != nil {
		if IsAttemptNotActive(err) {
			d.markClosed()
		}
		return fmt.Errorf("failed to save answer for %s: %w", questionID, err)
	}

	d.mu.Lock()
	// Text typed while the request was in flight stays dirty.
	if d.texts[questionID] == text {
		delete(d.dirty, questionID)
	}
	d.mu.Unlock()

	d.observe(ack)
	return nil
}

// ===== SUBMISSION =====

// Submit flushes all buffered answers and then submits. A failed submit can be retried.
func (d *Driver) Submit(ctx context.Context) (*services.AttemptResponse, error) {
	return d.submit(ctx, false)
}

func (d *Driver) submit(ctx context.Context, auto bool) (*services.AttemptResponse, error) {
	if final := d.Final(); final != nil {
		return final, nil
	}
	if !d.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}

	// If the server already closed the attempt the flush is moot; submit
	// still returns the stored record.
	if err := d.FlushAll(ctx); err != nil && !IsAttemptNotActive(err) {
		d.fail(err)
		return nil, err
	}

	resp, err := d.api.Submit(ctx, d.session, d.attemptID, &services.SubmitAttemptRequest{
		AutoSubmitted:   auto,
		TimeUsedSeconds: d.TimeUsed(),
	})
	if err != nil {
		d.fail(err)
		return nil, err
	}

	d.mu.Lock()
	d.final = resp
	d.lastErr = nil
	d.mu.Unlock()
	d.markClosed()
	return resp, nil
}

func (d *Driver) fail(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	d.submitting.Store(false)
}

func (d *Driver) markClosed() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.closeOnce.Do(func() { close(d.done) })
}

// ===== STATE =====

func (d *Driver) timed() bool {
	return d.duration > 0
}

// Wait blocks until background heartbeats and auto-submits have returned.
func (d *Driver) Wait() {
	d.inflight.Wait()
}

// Done is closed once the attempt is known to be submitted.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

func (d *Driver) Final() *services.AttemptResponse {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.final
}

// LastError is the most recent submit failure, cleared by a successful submit.
func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Driver) TimeUsed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeUsed
}

// Remaining is -1 for untimed attempts.
func (d *Driver) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.timed() {
		return -1
	}
	if r := d.duration - d.timeUsed; r > 0 {
		return r
	}
	return 0
}

func (d *Driver) Selection(questionID string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.selections[questionID]
	return idx, ok
}

func (d *Driver) Text(questionID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts[questionID]
}
