package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/errors"
)

type recordingEmitter struct {
	events []any
}

func (r *recordingEmitter) Emit(event any) {
	r.events = append(r.events, event)
}

func newTestStore(t *testing.T) (*Store, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)), emitter)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s, emitter
}

func testTimeline(id string) *domain.Timeline {
	return &domain.Timeline{
		ID:    id,
		Title: "Test Timeline",
		Segments: []domain.NarrationSegment{
			{ID: "seg-1", Text: "hello world", EstimatedStart: 0, EstimatedEnd: 2},
		},
		SyncState: domain.SyncStateSynced,
	}
}

func TestStore_CreateAndGetTimeline(t *testing.T) {
	s, emitter := newTestStore(t)
	ctx := context.Background()

	tl := testTimeline("tl-1")
	require.NoError(t, s.CreateTimeline(ctx, tl))
	assert.False(t, tl.CreatedAt.IsZero())

	got, err := s.GetTimeline(ctx, "tl-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Timeline", got.Title)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "hello world", got.Segments[0].Text)
	assert.Equal(t, domain.SyncStateSynced, got.SyncState)

	require.Len(t, emitter.events, 1)
	assert.IsType(t, TimelineCreated{}, emitter.events[0])
}

func TestStore_CreateDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTimeline(ctx, testTimeline("tl-1")))

	err := s.CreateTimeline(ctx, testTimeline("tl-1"))
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetTimeline(context.Background(), "tl-missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStore_UpdateTimeline(t *testing.T) {
	s, emitter := newTestStore(t)
	ctx := context.Background()

	tl := testTimeline("tl-1")
	require.NoError(t, s.CreateTimeline(ctx, tl))

	tl.SyncState = domain.SyncStateOutOfSync
	tl.DirtySegmentIDs = []string{"seg-1"}
	require.NoError(t, s.UpdateTimeline(ctx, tl))

	got, err := s.GetTimeline(ctx, "tl-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStateOutOfSync, got.SyncState)
	assert.Equal(t, []string{"seg-1"}, got.DirtySegmentIDs)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	require.Len(t, emitter.events, 2)
	assert.IsType(t, TimelineUpdated{}, emitter.events[1])
}

func TestStore_UpdateMissing(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.UpdateTimeline(context.Background(), testTimeline("tl-missing"))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStore_ListTimelines(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTimeline(ctx, testTimeline("tl-a")))
	require.NoError(t, s.CreateTimeline(ctx, testTimeline("tl-b")))

	timelines, err := s.ListTimelines(ctx)
	require.NoError(t, err)
	assert.Len(t, timelines, 2)
}

func TestStore_DeleteTimeline(t *testing.T) {
	s, emitter := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTimeline(ctx, testTimeline("tl-1")))
	require.NoError(t, s.DeleteTimeline(ctx, "tl-1"))

	_, err := s.GetTimeline(ctx, "tl-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	err = s.DeleteTimeline(ctx, "tl-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.Len(t, emitter.events, 2)
	assert.Equal(t, TimelineDeleted{ID: "tl-1"}, emitter.events[1])
}

func TestStore_RoundTripsDerivedData(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tl := testTimeline("tl-1")
	tl.Realigned = []domain.RealignedSegment{
		{ID: "seg-1", Text: "hello world", StartSec: 0.1, EndSec: 1.2, DurationSec: 1.1},
	}
	tl.Captions = []domain.CaptionChunk{
		{Text: "hello world", StartSec: 0.1, EndSec: 1.0, LineCount: 1},
	}
	require.NoError(t, s.CreateTimeline(ctx, tl))

	got, err := s.GetTimeline(ctx, "tl-1")
	require.NoError(t, err)
	require.Len(t, got.Realigned, 1)
	assert.InDelta(t, 1.1, got.Realigned[0].DurationSec, 1e-9)
	require.Len(t, got.Captions, 1)
	assert.Equal(t, 1, got.Captions[0].LineCount)
}
