// Package sse implements Server-Sent Events for pushing timeline sync state
// changes to connected editors.
package sse

import (
	"time"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventTimelineCreated represents a timeline creation event.
	EventTimelineCreated EventType = "timeline.created"
	// EventTimelineUpdated represents a timeline update event.
	EventTimelineUpdated EventType = "timeline.updated"
	// EventTimelineDeleted represents a timeline deletion event.
	EventTimelineDeleted EventType = "timeline.deleted"

	// EventTimelineOutOfSync signals that script edits have diverged from the
	// rendered audio and captions; the UI shows its "Sync Audio" affordance.
	EventTimelineOutOfSync EventType = "timeline.out_of_sync"
	// EventTimelineRegenerating signals that a regeneration run started.
	EventTimelineRegenerating EventType = "timeline.regenerating"
	// EventTimelineSynced signals that regeneration completed and the
	// timeline is consistent again.
	EventTimelineSynced EventType = "timeline.synced"
	// EventTimelineSyncFailed signals a failed regeneration run.
	EventTimelineSyncFailed EventType = "timeline.sync_failed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct
// deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// TimelineID filters delivery to clients watching a specific timeline.
	// Empty means broadcast to all clients.
	TimelineID string `json:"-"`
}

// TimelineEventData is the data payload for timeline CRUD events.
type TimelineEventData struct {
	Timeline *domain.Timeline `json:"timeline"`
}

// TimelineDeletedEventData is the data payload for timeline delete events.
type TimelineDeletedEventData struct {
	DeletedAt  time.Time `json:"deleted_at"`
	TimelineID string    `json:"timeline_id"`
}

// SyncStateEventData is the data payload for sync state transition events.
type SyncStateEventData struct {
	TimelineID      string           `json:"timeline_id"`
	State           domain.SyncState `json:"state"`
	DirtySegmentIDs []string         `json:"dirty_segment_ids"`
	Error           string           `json:"error,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewTimelineCreatedEvent creates a timeline.created event.
func NewTimelineCreatedEvent(tl *domain.Timeline) Event {
	return Event{
		Type:       EventTimelineCreated,
		Data:       TimelineEventData{Timeline: tl},
		Timestamp:  time.Now(),
		TimelineID: tl.ID,
	}
}

// NewTimelineUpdatedEvent creates a timeline.updated event.
func NewTimelineUpdatedEvent(tl *domain.Timeline) Event {
	return Event{
		Type:       EventTimelineUpdated,
		Data:       TimelineEventData{Timeline: tl},
		Timestamp:  time.Now(),
		TimelineID: tl.ID,
	}
}

// NewTimelineDeletedEvent creates a timeline.deleted event.
func NewTimelineDeletedEvent(timelineID string, deletedAt time.Time) Event {
	return Event{
		Type: EventTimelineDeleted,
		Data: TimelineDeletedEventData{
			TimelineID: timelineID,
			DeletedAt:  deletedAt,
		},
		Timestamp:  time.Now(),
		TimelineID: timelineID,
	}
}

// NewSyncStateEvent creates the event matching a sync state transition.
func NewSyncStateEvent(timelineID string, state domain.SyncState, dirty []string, errMsg string) Event {
	var typ EventType
	switch state {
	case domain.SyncStateRegenerating:
		typ = EventTimelineRegenerating
	case domain.SyncStateSynced:
		typ = EventTimelineSynced
	default:
		typ = EventTimelineOutOfSync
		if errMsg != "" {
			typ = EventTimelineSyncFailed
		}
	}
	return Event{
		Type: typ,
		Data: SyncStateEventData{
			TimelineID:      timelineID,
			State:           state,
			DirtySegmentIDs: dirty,
			Error:           errMsg,
		},
		Timestamp:  time.Now(),
		TimelineID: timelineID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
