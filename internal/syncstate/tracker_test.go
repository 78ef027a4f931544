package syncstate

import (
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTracker_EditsAccumulateDirtySet(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	assert.Equal(t, domain.SyncStateSynced, tr.State().State)

	snap := tr.Edit("s3")
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, []string{"s3"}, snap.DirtySegmentIDs)

	snap = tr.Edit("s5")
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, []string{"s3", "s5"}, snap.DirtySegmentIDs)
}

func TestTracker_MarkSyncedClearsDirtySet(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s3")
	tr.Edit("s5")

	snap := tr.MarkSynced()
	assert.Equal(t, domain.SyncStateSynced, snap.State)
	assert.Empty(t, snap.DirtySegmentIDs)
	assert.Empty(t, snap.LastError)
}

func TestTracker_MarkSyncedNoopDuringRegeneration(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	epoch, _, err := tr.BeginRegeneration()
	require.NoError(t, err)

	snap := tr.MarkSynced()
	assert.Equal(t, domain.SyncStateRegenerating, snap.State)
	assert.Equal(t, []string{"s1"}, snap.DirtySegmentIDs)

	// The run still owns the transition.
	require.True(t, tr.Complete(epoch))
	assert.Equal(t, domain.SyncStateSynced, tr.State().State)
}

func TestTracker_RegenerationRoundTrip(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")
	tr.Edit("s2")

	epoch, dirty, err := tr.BeginRegeneration()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, dirty)
	assert.Equal(t, domain.SyncStateRegenerating, tr.State().State)

	assert.True(t, tr.Complete(epoch))

	snap := tr.State()
	assert.Equal(t, domain.SyncStateSynced, snap.State)
	assert.Empty(t, snap.DirtySegmentIDs)
}

func TestTracker_BeginRejectedOutsideOutOfSync(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())

	_, _, err := tr.BeginRegeneration()
	assert.Error(t, err, "synced timeline has nothing to regenerate")

	tr.Edit("s1")
	epoch, _, err := tr.BeginRegeneration()
	require.NoError(t, err)

	_, _, err = tr.BeginRegeneration()
	assert.Error(t, err, "only one run per timeline at a time")

	tr.Complete(epoch)
}

func TestTracker_EditDuringRegenerationIsQueued(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	epoch, dirty, err := tr.BeginRegeneration()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, dirty)

	// Edit lands after the snapshot was frozen.
	snap := tr.Edit("s2")
	assert.Equal(t, domain.SyncStateRegenerating, snap.State)

	require.True(t, tr.Complete(epoch))

	// The run covered s1 only, so the timeline is still out of sync.
	snap = tr.State()
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, []string{"s2"}, snap.DirtySegmentIDs)
}

func TestTracker_FailureKeepsDirtySet(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	epoch, _, err := tr.BeginRegeneration()
	require.NoError(t, err)

	require.True(t, tr.Fail(epoch, stderrors.New("synthesis timed out")))

	snap := tr.State()
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, []string{"s1"}, snap.DirtySegmentIDs)
	assert.Equal(t, "synthesis timed out", snap.LastError)
}

func TestTracker_StaleEpochDiscarded(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	epoch, _, err := tr.BeginRegeneration()
	require.NoError(t, err)
	require.True(t, tr.Cancel(epoch))

	// The cancelled run's result arrives late.
	assert.False(t, tr.Complete(epoch))
	assert.False(t, tr.Fail(epoch, stderrors.New("late")))

	snap := tr.State()
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, []string{"s1"}, snap.DirtySegmentIDs)
}

func TestTracker_NewRunSupersedesCancelled(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	first, _, err := tr.BeginRegeneration()
	require.NoError(t, err)
	tr.Cancel(first)

	tr.Edit("s2")
	second, dirty, err := tr.BeginRegeneration()
	require.NoError(t, err)
	assert.Greater(t, second, first)
	assert.Equal(t, []string{"s1", "s2"}, dirty)

	// Only the live epoch may complete.
	assert.False(t, tr.Complete(first))
	assert.True(t, tr.Complete(second))
	assert.Equal(t, domain.SyncStateSynced, tr.State().State)
}

func TestTracker_ErrorClearedOnNextRun(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())
	tr.Edit("s1")

	epoch, _, _ := tr.BeginRegeneration()
	tr.Fail(epoch, stderrors.New("boom"))
	assert.NotEmpty(t, tr.State().LastError)

	epoch, _, _ = tr.BeginRegeneration()
	assert.Empty(t, tr.State().LastError)
	tr.Complete(epoch)
}

func TestTracker_ConcurrentEdits(t *testing.T) {
	tr := NewTracker("tl-1", testLogger())

	var wg sync.WaitGroup
	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for range 20 {
				tr.Edit(id)
			}
		}(id)
	}
	wg.Wait()

	snap := tr.State()
	assert.Equal(t, domain.SyncStateOutOfSync, snap.State)
	assert.Equal(t, ids, snap.DirtySegmentIDs)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(testLogger())

	assert.Nil(t, reg.Get("tl-1"))

	tr := reg.GetOrCreate("tl-1")
	require.NotNil(t, tr)
	assert.Same(t, tr, reg.GetOrCreate("tl-1"))
	assert.Same(t, tr, reg.Get("tl-1"))
	assert.Equal(t, 1, reg.Len())

	reg.Remove("tl-1")
	assert.Nil(t, reg.Get("tl-1"))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	reg := NewRegistry(testLogger())

	var wg sync.WaitGroup
	trackers := make([]*Tracker, 8)
	for i := range trackers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trackers[i] = reg.GetOrCreate("tl-1")
		}(i)
	}
	wg.Wait()

	for _, tr := range trackers {
		assert.Same(t, trackers[0], tr)
	}
	assert.Equal(t, 1, reg.Len())
}
