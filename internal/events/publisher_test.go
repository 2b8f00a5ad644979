package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submittedAttempt() *models.AssessmentAttempt {
	at := time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC)
	return &models.AssessmentAttempt{
		ID: "a1", PaperID: "p1", StudentID: "s1",
		Status: models.AttemptSubmitted, SubmittedAt: &at,
		AutoSubmitted: true, TimeUsedSeconds: 600, DurationSeconds: 600,
		Result: &models.AttemptResult{TotalQuestions: 4, Answered: 3, Correct: 2, Percentage: 50, NeedsReview: 1},
	}
}

func TestWatermillEventPublisher_DeliversEnvelope(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "attempts")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "attempts", utils.NewNopLogger())
	event := NewAttemptSubmittedEvent(submittedAttempt())
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventAttemptSubmitted), msg.Metadata.Get("event_type"))

		var decoded struct {
			Type EventType            `json:"type"`
			Data AttemptSubmittedData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventAttemptSubmitted, decoded.Type)
		assert.True(t, decoded.Data.AutoSubmitted)
		assert.Equal(t, 50, decoded.Data.Percentage)
		assert.Equal(t, 1, decoded.Data.NeedsReview)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(utils.NewNopLogger())
	ctx := context.Background()

	paper := &models.AssessmentPaper{ID: "p1", Title: "Chemistry Paper 1"}
	started := &models.AssessmentAttempt{ID: "a1", PaperID: "p1", StudentID: "s1", DurationSeconds: 600}

	require.NoError(t, m.Publish(ctx, NewAttemptStartedEvent(started, paper)))
	require.NoError(t, m.Publish(ctx, NewAttemptSubmittedEvent(submittedAttempt())))

	assert.Len(t, m.GetPublishedEvents(), 2)
	startedEvents := m.EventsOfType(EventAttemptStarted)
	require.Len(t, startedEvents, 1)
	data, ok := startedEvents[0].Data.(AttemptStartedData)
	require.True(t, ok)
	assert.Equal(t, "Chemistry Paper 1", data.PaperTitle)
	assert.NotEmpty(t, startedEvents[0].ID)

	m.ClearEvents()
	assert.Empty(t, m.GetPublishedEvents())
}
