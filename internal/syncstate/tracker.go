// Package syncstate tracks whether a timeline's audio and captions are
// consistent with its current script text, and serializes the
// edit/regenerate lifecycle per timeline.
package syncstate

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/errors"
)

// Snapshot is a point-in-time view of one timeline's sync state.
type Snapshot struct {
	State           domain.SyncState `json:"state"`
	DirtySegmentIDs []string         `json:"dirtySegmentIds"`
	Epoch           uint64           `json:"epoch"`
	LastError       string           `json:"lastError,omitempty"`
}

// Tracker is the per-timeline sync state machine:
//
//	Synced --edit--> OutOfSync --begin--> Regenerating --complete--> Synced
//	                     ^                      |
//	                     +------ fail/cancel ---+
//
// Edits arriving while a regeneration is in flight are queued in the dirty
// set and re-evaluated on completion, so they are never lost. All transitions
// are serialized by a single mutex; one tracker guards exactly one timeline
// and trackers never share state.
type Tracker struct {
	mu sync.Mutex

	timelineID string
	log        *slog.Logger

	state domain.SyncState
	dirty map[string]struct{}

	// epoch increments on every BeginRegeneration. A completion carrying a
	// stale epoch lost a race with a cancel or a newer run and is discarded.
	epoch    uint64
	snapshot map[string]struct{}

	lastError string
}

// NewTracker creates a tracker in the Synced state.
func NewTracker(timelineID string, log *slog.Logger) *Tracker {
	return &Tracker{
		timelineID: timelineID,
		log:        log.With("timeline_id", timelineID),
		state:      domain.SyncStateSynced,
		dirty:      make(map[string]struct{}),
	}
}

// Edit records a text change to one segment. From Synced it moves to
// OutOfSync; from OutOfSync it stays put and grows the dirty set; during a
// regeneration the edit is queued so the completion handler can see it.
func (t *Tracker) Edit(segmentID string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dirty[segmentID] = struct{}{}
	if t.state == domain.SyncStateSynced {
		t.state = domain.SyncStateOutOfSync
	}
	return t.snapshotLocked()
}

// MarkSynced records that the timeline was realigned outside the regenerate
// workflow (a transcript attach covers the current script text): the dirty
// set is cleared and the state returns to Synced. During a regeneration it is
// a no-op, the run's completion handler owns that transition.
func (t *Tracker) MarkSynced() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != domain.SyncStateRegenerating {
		t.dirty = make(map[string]struct{})
		t.state = domain.SyncStateSynced
		t.lastError = ""
	}
	return t.snapshotLocked()
}

// BeginRegeneration starts a regeneration run and returns its epoch plus the
// dirty segment ids frozen for this run. Only legal from OutOfSync; any other
// state is a conflict (at most one run per timeline at a time, and
// regenerating a synced timeline is meaningless).
func (t *Tracker) BeginRegeneration() (uint64, []string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case domain.SyncStateRegenerating:
		return 0, nil, errors.Conflict("regeneration already in progress")
	case domain.SyncStateSynced:
		t.log.Warn("regeneration requested on synced timeline, ignoring")
		return 0, nil, errors.Conflict("timeline is already synced")
	}

	t.epoch++
	t.state = domain.SyncStateRegenerating
	t.lastError = ""

	t.snapshot = make(map[string]struct{}, len(t.dirty))
	for id := range t.dirty {
		t.snapshot[id] = struct{}{}
	}
	return t.epoch, sortedIDs(t.snapshot), nil
}

// Complete reports a successful regeneration for the given epoch. Segments in
// the run's snapshot are cleared from the dirty set; edits queued after the
// snapshot keep the timeline OutOfSync. Stale epochs are discarded and the
// return value reports whether the result was accepted.
func (t *Tracker) Complete(epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.runLiveLocked(epoch) {
		return false
	}

	for id := range t.snapshot {
		delete(t.dirty, id)
	}
	t.snapshot = nil

	if len(t.dirty) > 0 {
		// An edit arrived mid-run; the regenerated audio is already stale.
		t.state = domain.SyncStateOutOfSync
		t.log.Info("regeneration finished but new edits are queued",
			"queued_segments", len(t.dirty))
	} else {
		t.state = domain.SyncStateSynced
		t.log.Info("timeline back in sync")
	}
	return true
}

// Fail reports a failed regeneration for the given epoch. The dirty set is
// untouched so the user can retry; the error message is surfaced via State.
func (t *Tracker) Fail(epoch uint64, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.runLiveLocked(epoch) {
		return false
	}

	t.snapshot = nil
	t.state = domain.SyncStateOutOfSync
	if err != nil {
		t.lastError = err.Error()
	}
	t.log.Warn("regeneration failed", "error", t.lastError)
	return true
}

// Cancel aborts the in-flight run with the given epoch. A result arriving
// later for that epoch will be discarded by Complete/Fail.
func (t *Tracker) Cancel(epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.runLiveLocked(epoch) {
		return false
	}

	t.snapshot = nil
	t.state = domain.SyncStateOutOfSync
	t.log.Info("regeneration cancelled", "epoch", epoch)
	return true
}

// State returns the current snapshot.
func (t *Tracker) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// runLiveLocked reports whether epoch identifies the currently in-flight run.
func (t *Tracker) runLiveLocked(epoch uint64) bool {
	if t.state != domain.SyncStateRegenerating || epoch != t.epoch {
		t.log.Debug("discarding stale regeneration event",
			"event_epoch", epoch, "current_epoch", t.epoch, "state", string(t.state))
		return false
	}
	return true
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		State:           t.state,
		DirtySegmentIDs: sortedIDs(t.dirty),
		Epoch:           t.epoch,
		LastError:       t.lastError,
	}
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
