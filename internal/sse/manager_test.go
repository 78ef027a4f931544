package sse

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/store"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManager_BroadcastFiltersByTimeline(t *testing.T) {
	m := testManager(t)

	all, err := m.Connect("")
	require.NoError(t, err)
	scoped, err := m.Connect("tl-1")
	require.NoError(t, err)
	other, err := m.Connect("tl-2")
	require.NoError(t, err)

	m.broadcast(NewSyncStateEvent("tl-1", domain.SyncStateOutOfSync, []string{"seg-1"}, ""))

	select {
	case evt := <-all.EventChan:
		assert.Equal(t, EventTimelineOutOfSync, evt.Type)
	default:
		t.Fatal("unscoped client should receive the event")
	}

	select {
	case evt := <-scoped.EventChan:
		assert.Equal(t, EventTimelineOutOfSync, evt.Type)
	default:
		t.Fatal("matching client should receive the event")
	}

	select {
	case <-other.EventChan:
		t.Fatal("client scoped to another timeline should not receive the event")
	default:
	}
}

func TestManager_CoercesStoreEvents(t *testing.T) {
	m := testManager(t)

	tl := &domain.Timeline{ID: "tl-1", Title: "Test"}

	evt, ok := m.coerce(store.TimelineCreated{Timeline: tl})
	require.True(t, ok)
	assert.Equal(t, EventTimelineCreated, evt.Type)
	assert.Equal(t, "tl-1", evt.TimelineID)

	evt, ok = m.coerce(store.TimelineDeleted{ID: "tl-1"})
	require.True(t, ok)
	assert.Equal(t, EventTimelineDeleted, evt.Type)

	_, ok = m.coerce("not an event")
	assert.False(t, ok)
}

func TestManager_SyncStateEventTypes(t *testing.T) {
	tests := []struct {
		state  domain.SyncState
		errMsg string
		want   EventType
	}{
		{domain.SyncStateOutOfSync, "", EventTimelineOutOfSync},
		{domain.SyncStateRegenerating, "", EventTimelineRegenerating},
		{domain.SyncStateSynced, "", EventTimelineSynced},
		{domain.SyncStateOutOfSync, "synthesis failed", EventTimelineSyncFailed},
	}
	for _, tt := range tests {
		evt := NewSyncStateEvent("tl-1", tt.state, nil, tt.errMsg)
		assert.Equal(t, tt.want, evt.Type, "state %s err %q", tt.state, tt.errMsg)
	}
}

func TestManager_DisconnectClosesClient(t *testing.T) {
	m := testManager(t)

	client, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	select {
	case <-client.Done:
	case <-time.After(time.Second):
		t.Fatal("Done channel should be closed")
	}

	// Disconnecting twice is a no-op.
	m.Disconnect(client.ID)
}
