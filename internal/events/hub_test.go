package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToJobSubscribers(t *testing.T) {
	hub := NewHub(0)
	jobA, jobB := uuid.New(), uuid.New()

	chA, cancelA := hub.Subscribe(jobA)
	defer cancelA()
	chB, cancelB := hub.Subscribe(jobB)
	defer cancelB()

	require.NoError(t, hub.HandleEvent(context.Background(), NewJobEvent(jobA, domain.JobStatusProcessing, "")))

	select {
	case e := <-chA:
		assert.Equal(t, domain.JobStatusProcessing, e.Status)
	default:
		t.Fatal("subscriber of job A received nothing")
	}
	assert.Empty(t, chB)
}

func TestHubClosesOnTerminalEvent(t *testing.T) {
	hub := NewHub(0)
	jobID := uuid.New()
	ch, cancel := hub.Subscribe(jobID)

	require.NoError(t, hub.HandleEvent(context.Background(), NewJobEvent(jobID, domain.JobStatusCompleted, "")))

	e, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, e.Status)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after the terminal event")
	assert.Equal(t, 0, hub.Subscribers(jobID))

	// Cancelling after the hub closed the channel must not panic.
	cancel()
}

func TestHubCancel(t *testing.T) {
	hub := NewHub(1)
	jobID := uuid.New()
	ch, cancel := hub.Subscribe(jobID)
	assert.Equal(t, 1, hub.Subscribers(jobID))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers(jobID))
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	jobID := uuid.New()
	ch, cancel := hub.Subscribe(jobID)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, hub.HandleEvent(ctx, NewJobEvent(jobID, domain.JobStatusPending, "")))
	require.NoError(t, hub.HandleEvent(ctx, NewJobEvent(jobID, domain.JobStatusProcessing, "")))

	assert.Len(t, ch, 1)
	assert.Equal(t, domain.JobStatusPending, (<-ch).Status)
}
