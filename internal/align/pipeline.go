package align

import (
	"log/slog"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// PipelineOptions configures one end-to-end synchronization run.
type PipelineOptions struct {
	GapExtendThreshold float64
	Chunk              ChunkOptions
}

// DefaultPipelineOptions returns the product-standard run configuration.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		GapExtendThreshold: DefaultGapExtendThreshold,
		Chunk:              DefaultChunkOptions(),
	}
}

// PipelineResult is the output of one synchronization run.
type PipelineResult struct {
	Segments []domain.RealignedSegment
	Captions []domain.CaptionChunk
	// UnmatchedIDs lists segments that fell back to estimated timing.
	UnmatchedIDs []string
	// NoneMatched reports total alignment failure: Segments carries the
	// estimated timeline unmodified and the caller should surface a "could
	// not sync audio" condition.
	NoneMatched bool
}

// Run executes ingest output through alignment, repair, and caption chunking
// for one timeline. Pure and synchronous; safe to call concurrently for
// different timelines.
//
// When no segment aligns at all, the estimated timeline is returned as-is
// (no repair, no derived word timings) so a bogus partial result is never
// persisted in place of the original.
func Run(log *slog.Logger, segments []domain.NarrationSegment, words []domain.TimedWord, opts PipelineOptions) PipelineResult {
	res := Align(segments, words)

	for _, id := range res.UnmatchedIDs {
		log.Warn("segment matched no words, keeping estimated timing", "segment_id", id)
	}

	if res.NoneMatched {
		log.Warn("no segments aligned, keeping estimated timeline", "segments", len(segments))
		return PipelineResult{
			Segments:     estimatedView(segments),
			Captions:     Chunk(words, opts.Chunk),
			UnmatchedIDs: res.UnmatchedIDs,
			NoneMatched:  true,
		}
	}

	return PipelineResult{
		Segments:     Repair(res.Segments, opts.GapExtendThreshold),
		Captions:     Chunk(words, opts.Chunk),
		UnmatchedIDs: res.UnmatchedIDs,
	}
}

// estimatedView projects segments to their estimated timing without any
// repair adjustments.
func estimatedView(segments []domain.NarrationSegment) []domain.RealignedSegment {
	out := make([]domain.RealignedSegment, len(segments))
	for i, seg := range segments {
		out[i] = domain.RealignedSegment{
			ID:          seg.ID,
			Text:        seg.Text,
			StartSec:    seg.EstimatedStart,
			EndSec:      seg.EstimatedEnd,
			DurationSec: seg.EstimatedEnd - seg.EstimatedStart,
			ImagePrompt: seg.ImagePrompt,
		}
	}
	return out
}
