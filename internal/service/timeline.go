// Package service orchestrates timeline lifecycle operations: creation,
// transcript alignment, script edits, and the regenerate workflow.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bluefxvideo/voiceline-server/internal/align"
	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/errors"
	"github.com/bluefxvideo/voiceline-server/internal/id"
	"github.com/bluefxvideo/voiceline-server/internal/ratelimit"
	"github.com/bluefxvideo/voiceline-server/internal/speech"
	"github.com/bluefxvideo/voiceline-server/internal/sse"
	"github.com/bluefxvideo/voiceline-server/internal/store"
	"github.com/bluefxvideo/voiceline-server/internal/syncstate"
)

// SegmentInput is one narration segment supplied by the script breakdown.
type SegmentInput struct {
	Text        string  `json:"text"`
	ImagePrompt string  `json:"imagePrompt,omitempty"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
}

// TimelineService owns the narration-to-timeline synchronization workflow.
type TimelineService struct {
	store       *store.Store
	trackers    *syncstate.Registry
	synthesizer speech.Synthesizer
	recognizer  speech.Recognizer
	emitter     store.EventEmitter
	limiter     *ratelimit.KeyedRateLimiter
	pipeline    align.PipelineOptions
	logger      *slog.Logger

	// In-flight regeneration runs, keyed by timeline id.
	runsMu sync.Mutex
	runs   map[string]*regenRun
}

type regenRun struct {
	epoch  uint64
	cancel context.CancelFunc
}

// NewTimelineService creates the timeline service.
func NewTimelineService(
	st *store.Store,
	trackers *syncstate.Registry,
	synthesizer speech.Synthesizer,
	recognizer speech.Recognizer,
	emitter store.EventEmitter,
	limiter *ratelimit.KeyedRateLimiter,
	pipeline align.PipelineOptions,
	logger *slog.Logger,
) *TimelineService {
	return &TimelineService{
		store:       st,
		trackers:    trackers,
		synthesizer: synthesizer,
		recognizer:  recognizer,
		emitter:     emitter,
		limiter:     limiter,
		pipeline:    pipeline,
		logger:      logger,
		runs:        make(map[string]*regenRun),
	}
}

// CreateTimeline persists a new timeline from script-breakdown segments.
// Segments keep their estimated timings until a transcript is attached.
func (s *TimelineService) CreateTimeline(ctx context.Context, title string, inputs []SegmentInput) (*domain.Timeline, error) {
	if len(inputs) == 0 {
		return nil, errors.Validation("timeline needs at least one segment")
	}

	timelineID, err := id.Generate(id.PrefixTimeline)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate timeline id")
	}

	segments := make([]domain.NarrationSegment, len(inputs))
	for i, in := range inputs {
		segID, err := id.Generate(id.PrefixSegment)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "generate segment id")
		}
		segments[i] = domain.NarrationSegment{
			ID:             segID,
			Text:           in.Text,
			ImagePrompt:    in.ImagePrompt,
			EstimatedStart: in.StartTime,
			EstimatedEnd:   in.EndTime,
		}
	}

	tl := &domain.Timeline{
		ID:        timelineID,
		Title:     title,
		Segments:  segments,
		SyncState: domain.SyncStateSynced,
	}
	if err := s.store.CreateTimeline(ctx, tl); err != nil {
		return nil, err
	}

	s.trackers.GetOrCreate(tl.ID)
	return tl, nil
}

// GetTimeline returns one timeline.
func (s *TimelineService) GetTimeline(ctx context.Context, timelineID string) (*domain.Timeline, error) {
	return s.store.GetTimeline(ctx, timelineID)
}

// ListTimelines returns all timelines.
func (s *TimelineService) ListTimelines(ctx context.Context) ([]*domain.Timeline, error) {
	return s.store.ListTimelines(ctx)
}

// DeleteTimeline removes a timeline and its tracker.
func (s *TimelineService) DeleteTimeline(ctx context.Context, timelineID string) error {
	if err := s.store.DeleteTimeline(ctx, timelineID); err != nil {
		return err
	}
	s.cancelRun(timelineID)
	s.trackers.Remove(timelineID)
	return nil
}

// AttachTranscript aligns a speech-to-text transcript against the timeline's
// segments and persists the realigned timeline plus caption chunks.
//
// Total alignment failure leaves the stored timeline untouched: the caller
// gets a sync-failed error and the estimated timings stay authoritative
// rather than being replaced by a bogus partial result.
func (s *TimelineService) AttachTranscript(ctx context.Context, timelineID string, rawTranscript []byte) (*domain.Timeline, error) {
	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}

	words, err := align.ParseTranscript(rawTranscript)
	if err != nil {
		if errors.Is(err, errors.ErrEmptyTranscript) {
			return nil, errors.EmptyTranscript("transcript contains no word timings")
		}
		return nil, errors.Wrap(err, errors.CodeValidation, "parse transcript")
	}

	return s.applyAlignment(ctx, tl, words)
}

// applyAlignment runs the alignment pipeline and persists the result.
func (s *TimelineService) applyAlignment(ctx context.Context, tl *domain.Timeline, words []domain.TimedWord) (*domain.Timeline, error) {
	res := align.Run(s.logger, tl.Segments, words, s.pipeline)

	if res.NoneMatched {
		return nil, errors.SyncFailed("could not sync audio: no segments matched the transcript", nil)
	}

	// The attached transcript covers the current script text, so any dirty
	// edits are resolved; the tracker must agree with the stored state.
	snap := s.trackers.GetOrCreate(tl.ID).MarkSynced()

	tl.Realigned = res.Segments
	tl.Captions = res.Captions
	tl.SyncState = snap.State
	tl.DirtySegmentIDs = snap.DirtySegmentIDs
	tl.LastSyncError = snap.LastError

	if err := s.store.UpdateTimeline(ctx, tl); err != nil {
		return nil, err
	}

	s.emitSyncState(tl.ID, snap)
	s.logger.Info("timeline aligned",
		"timeline_id", tl.ID,
		"segments", len(res.Segments),
		"captions", len(res.Captions),
		"unmatched", len(res.UnmatchedIDs),
	)
	return tl, nil
}

// EditSegment updates one segment's script text and marks the timeline out of
// sync. Edits landing during a regeneration are queued by the tracker.
func (s *TimelineService) EditSegment(ctx context.Context, timelineID, segmentID, text, imagePrompt string) (*domain.Timeline, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Validation("segment text cannot be empty")
	}

	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}

	seg := tl.SegmentByID(segmentID)
	if seg == nil {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}
	seg.Text = text
	if imagePrompt != "" {
		seg.ImagePrompt = imagePrompt
	}
	// The stored timings no longer describe this text.
	seg.MatchedWords = nil
	seg.AlignmentFailed = false

	snap := s.trackers.GetOrCreate(timelineID).Edit(segmentID)
	tl.SyncState = snap.State
	tl.DirtySegmentIDs = snap.DirtySegmentIDs

	if err := s.store.UpdateTimeline(ctx, tl); err != nil {
		return nil, err
	}

	s.emitSyncState(timelineID, snap)
	return tl, nil
}

// SyncState returns the timeline's current sync snapshot.
func (s *TimelineService) SyncState(ctx context.Context, timelineID string) (syncstate.Snapshot, error) {
	if _, err := s.store.GetTimeline(ctx, timelineID); err != nil {
		return syncstate.Snapshot{}, err
	}
	return s.trackers.GetOrCreate(timelineID).State(), nil
}

// Captions returns the timeline's caption chunks.
func (s *TimelineService) Captions(ctx context.Context, timelineID string) ([]domain.CaptionChunk, error) {
	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	return tl.Captions, nil
}

// RechunkCaptions rebuilds caption chunks from the stored word timings with
// caller-supplied display bounds. Zero-valued bounds fall back to the
// configured defaults. The persisted captions are not touched.
func (s *TimelineService) RechunkCaptions(ctx context.Context, timelineID string, opts align.ChunkOptions) ([]domain.CaptionChunk, error) {
	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}

	var words []domain.TimedWord
	for _, seg := range tl.Realigned {
		words = append(words, seg.WordTimings...)
	}
	if len(words) == 0 {
		return nil, errors.Conflict("timeline has no word timings to chunk; attach a transcript first")
	}

	return align.Chunk(words, opts), nil
}

// RequestRegenerate starts an asynchronous regeneration run for the
// timeline's dirty segments: re-render the narration, transcribe it, and
// realign the whole timeline. Returns the tracker snapshot for the
// Regenerating state; completion is pushed over SSE.
func (s *TimelineService) RequestRegenerate(ctx context.Context, timelineID string) (syncstate.Snapshot, error) {
	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return syncstate.Snapshot{}, err
	}

	if !s.limiter.Allow(timelineID) {
		return syncstate.Snapshot{}, errors.RateLimited("regeneration requested too frequently")
	}

	tracker := s.trackers.GetOrCreate(timelineID)
	epoch, dirty, err := tracker.BeginRegeneration()
	if err != nil {
		return syncstate.Snapshot{}, err
	}

	snap := tracker.State()
	tl.SyncState = snap.State
	if err := s.store.UpdateTimeline(ctx, tl); err != nil {
		tracker.Fail(epoch, err)
		return syncstate.Snapshot{}, err
	}
	s.emitSyncState(timelineID, snap)

	// The run outlives the request; it is bounded by the synthesis and
	// recognition round trips and cancellable via CancelRegenerate.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.registerRun(timelineID, &regenRun{epoch: epoch, cancel: cancel})

	go s.runRegeneration(runCtx, timelineID, epoch, dirty)

	return snap, nil
}

// CancelRegenerate aborts the in-flight regeneration run, if any. A stale
// result arriving after cancellation is discarded by the tracker.
func (s *TimelineService) CancelRegenerate(ctx context.Context, timelineID string) (syncstate.Snapshot, error) {
	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		return syncstate.Snapshot{}, err
	}

	s.runsMu.Lock()
	run := s.runs[timelineID]
	delete(s.runs, timelineID)
	s.runsMu.Unlock()

	tracker := s.trackers.GetOrCreate(timelineID)
	if run == nil || !tracker.Cancel(run.epoch) {
		return syncstate.Snapshot{}, errors.Conflict("no regeneration in progress")
	}
	run.cancel()

	snap := tracker.State()
	tl.SyncState = snap.State
	tl.DirtySegmentIDs = snap.DirtySegmentIDs
	if err := s.store.UpdateTimeline(ctx, tl); err != nil {
		return syncstate.Snapshot{}, err
	}
	s.emitSyncState(timelineID, snap)
	return snap, nil
}

// runRegeneration executes one regeneration run end to end.
func (s *TimelineService) runRegeneration(ctx context.Context, timelineID string, epoch uint64, dirty []string) {
	defer s.unregisterRun(timelineID, epoch)

	log := s.logger.With("timeline_id", timelineID, "epoch", epoch)
	log.Info("regeneration started", "dirty_segments", len(dirty))

	tracker := s.trackers.GetOrCreate(timelineID)

	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err != nil {
		s.failRun(ctx, timelineID, tracker, epoch, err)
		return
	}

	words, err := s.renderNarration(ctx, tl)
	if err != nil {
		s.failRun(ctx, timelineID, tracker, epoch, err)
		return
	}

	res := align.Run(s.logger, tl.Segments, words, s.pipeline)
	if res.NoneMatched {
		s.failRun(ctx, timelineID, tracker, epoch,
			errors.SyncFailed("could not sync audio: no segments matched the transcript", nil))
		return
	}

	if !tracker.Complete(epoch) {
		log.Info("discarding superseded regeneration result")
		return
	}

	snap := tracker.State()
	tl.Realigned = res.Segments
	tl.Captions = res.Captions
	tl.SyncState = snap.State
	tl.DirtySegmentIDs = snap.DirtySegmentIDs
	tl.LastSyncError = ""

	if err := s.store.UpdateTimeline(ctx, tl); err != nil {
		log.Error("failed to persist regenerated timeline", "error", err)
		return
	}

	s.emitSyncState(timelineID, snap)
	log.Info("regeneration complete", "state", string(snap.State))
}

// renderNarration re-renders the full narration and returns word timings,
// via the synthesizer when it provides them or the recognizer otherwise.
func (s *TimelineService) renderNarration(ctx context.Context, tl *domain.Timeline) ([]domain.TimedWord, error) {
	texts := make([]string, len(tl.Segments))
	for i, seg := range tl.Segments {
		texts[i] = seg.Text
	}

	synth, err := s.synthesizer.Synthesize(ctx, speech.SynthesisRequest{Text: strings.Join(texts, " ")})
	if err != nil {
		return nil, errors.SyncFailed("narration synthesis failed", err)
	}
	if len(synth.Words) > 0 {
		return synth.Words, nil
	}

	words, err := s.recognizer.Transcribe(ctx, synth.AudioURL)
	if err != nil {
		return nil, errors.SyncFailed("speech recognition failed", err)
	}
	return words, nil
}

// failRun records a failed regeneration and pushes the resulting state.
func (s *TimelineService) failRun(ctx context.Context, timelineID string, tracker *syncstate.Tracker, epoch uint64, cause error) {
	if !tracker.Fail(epoch, cause) {
		return
	}
	snap := tracker.State()

	tl, err := s.store.GetTimeline(ctx, timelineID)
	if err == nil {
		tl.SyncState = snap.State
		tl.DirtySegmentIDs = snap.DirtySegmentIDs
		tl.LastSyncError = snap.LastError
		if err := s.store.UpdateTimeline(ctx, tl); err != nil {
			s.logger.Error("failed to persist regeneration failure", "timeline_id", timelineID, "error", err)
		}
	}

	s.emitSyncState(timelineID, snap)
	s.logger.Warn("regeneration failed", "timeline_id", timelineID, "error", cause)
}

func (s *TimelineService) emitSyncState(timelineID string, snap syncstate.Snapshot) {
	s.emitter.Emit(sse.NewSyncStateEvent(timelineID, snap.State, snap.DirtySegmentIDs, snap.LastError))
}

func (s *TimelineService) registerRun(timelineID string, run *regenRun) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if old := s.runs[timelineID]; old != nil {
		old.cancel()
	}
	s.runs[timelineID] = run
}

// unregisterRun drops the bookkeeping entry once a run finishes, unless a
// newer run has already replaced it.
func (s *TimelineService) unregisterRun(timelineID string, epoch uint64) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if run := s.runs[timelineID]; run != nil && run.epoch == epoch {
		run.cancel()
		delete(s.runs, timelineID)
	}
}

// cancelRun aborts any in-flight run for a deleted timeline.
func (s *TimelineService) cancelRun(timelineID string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if run := s.runs[timelineID]; run != nil {
		run.cancel()
		delete(s.runs, timelineID)
	}
}
