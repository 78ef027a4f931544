// Package domain contains the core types for narration timelines: timed
// words from speech recognition, narration segments, realigned output
// segments, and caption chunks.
package domain

import "time"

// TimedWord is a single word with timestamps from speech recognition.
// Words are immutable once ingested; StartSec <= EndSec always holds.
type TimedWord struct {
	Text       string  `json:"text"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Confidence float64 `json:"confidence,omitempty"`
}

// DurationSec returns the spoken duration of the word.
func (w TimedWord) DurationSec() float64 {
	return w.EndSec - w.StartSec
}

// NarrationSegment is a contiguous unit of narration text with estimated
// timings produced by script breakdown, before any audio exists. The aligner
// fills MatchedWords and the actual timings; the repair pass adjusts them.
type NarrationSegment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	ImagePrompt string `json:"image_prompt,omitempty"`

	// Estimated timings from script breakdown, kept as the fallback when
	// alignment fails.
	EstimatedStart float64 `json:"estimated_start"`
	EstimatedEnd   float64 `json:"estimated_end"`

	// Derived by the aligner. Zero until Align has run.
	ActualStart     float64     `json:"actual_start,omitempty"`
	ActualEnd       float64     `json:"actual_end,omitempty"`
	MatchedWords    []TimedWord `json:"matched_words,omitempty"`
	AlignmentFailed bool        `json:"alignment_failed,omitempty"`
}

// Start returns the segment's best-known start time: the aligned start when
// alignment succeeded, the estimate otherwise.
func (s *NarrationSegment) Start() float64 {
	if s.AlignmentFailed || len(s.MatchedWords) == 0 {
		return s.EstimatedStart
	}
	return s.ActualStart
}

// End returns the segment's best-known end time.
func (s *NarrationSegment) End() float64 {
	if s.AlignmentFailed || len(s.MatchedWords) == 0 {
		return s.EstimatedEnd
	}
	return s.ActualEnd
}

// RealignedSegment is the immutable output of the repair pass. Over any
// ordered list for one timeline, segments[i].EndSec == segments[i+1].StartSec:
// no overlaps, no gaps.
type RealignedSegment struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	StartSec    float64     `json:"start_sec"`
	EndSec      float64     `json:"end_sec"`
	DurationSec float64     `json:"duration_sec"`
	ImagePrompt string      `json:"image_prompt,omitempty"`
	WordTimings []TimedWord `json:"word_timings,omitempty"`
}

// CaptionChunk is a bounded group of words for on-screen subtitle display.
// Chunk boundaries are always word boundaries.
type CaptionChunk struct {
	Text      string      `json:"text"`
	StartSec  float64     `json:"start_sec"`
	EndSec    float64     `json:"end_sec"`
	Words     []TimedWord `json:"words"`
	LineCount int         `json:"line_count"`
}

// DurationSec returns the display duration of the chunk.
func (c CaptionChunk) DurationSec() float64 {
	return c.EndSec - c.StartSec
}

// SyncState describes whether a timeline's audio and captions are known to
// be consistent with its current script text.
type SyncState string

const (
	// SyncStateSynced means audio and captions match the script text.
	SyncStateSynced SyncState = "synced"
	// SyncStateOutOfSync means at least one segment was edited since the
	// last successful regeneration.
	SyncStateOutOfSync SyncState = "out_of_sync"
	// SyncStateRegenerating means a narration regeneration is in flight.
	SyncStateRegenerating SyncState = "regenerating"
)

// Timeline is a persisted narration timeline: the script segments, the last
// successful alignment output, and the published sync status.
type Timeline struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Segments  []NarrationSegment `json:"segments"`
	Realigned []RealignedSegment `json:"realigned,omitempty"`
	Captions  []CaptionChunk     `json:"captions,omitempty"`

	// Published sync status, mirrored from the tracker on every change so
	// clients polling the store see the same state the tracker holds.
	SyncState       SyncState `json:"sync_state"`
	DirtySegmentIDs []string  `json:"dirty_segment_ids,omitempty"`
	LastSyncError   string    `json:"last_sync_error,omitempty"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (t *Timeline) Touch() {
	t.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (t *Timeline) InitTimestamps() {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// SegmentByID returns a pointer to the segment with the given id, or nil.
func (t *Timeline) SegmentByID(id string) *NarrationSegment {
	for i := range t.Segments {
		if t.Segments[i].ID == id {
			return &t.Segments[i]
		}
	}
	return nil
}

// TotalDurationSec returns the end timestamp of the last realigned segment,
// falling back to the last segment estimate when unaligned.
func (t *Timeline) TotalDurationSec() float64 {
	if n := len(t.Realigned); n > 0 {
		return t.Realigned[n-1].EndSec
	}
	if n := len(t.Segments); n > 0 {
		return t.Segments[n-1].End()
	}
	return 0
}
