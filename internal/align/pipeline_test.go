package align

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_EndToEnd(t *testing.T) {
	segments := []domain.NarrationSegment{
		{ID: "seg-1", Text: "hello world", EstimatedStart: 0, EstimatedEnd: 2},
		{ID: "seg-2", Text: "goodbye now", EstimatedStart: 2, EstimatedEnd: 4},
	}
	words := []domain.TimedWord{
		word("hello", 0.1, 0.5),
		word("world", 0.5, 1.0),
		word("goodbye", 1.2, 1.8),
		word("now", 1.8, 2.0),
	}

	res := Run(discardLogger(), segments, words, DefaultPipelineOptions())

	require.Len(t, res.Segments, 2)
	assert.False(t, res.NoneMatched)

	// The 0.2s gap between the segments is absorbed forward.
	assert.InDelta(t, 0.1, res.Segments[0].StartSec, 1e-9)
	assert.InDelta(t, 1.2, res.Segments[0].EndSec, 1e-9)
	assert.InDelta(t, 1.2, res.Segments[1].StartSec, 1e-9)
	assert.InDelta(t, 2.0, res.Segments[1].EndSec, 1e-9)

	require.NotEmpty(t, res.Captions)
	assert.Equal(t, "hello world goodbye now", res.Captions[0].Text)
}

func TestRun_NoneMatchedKeepsEstimates(t *testing.T) {
	segments := []domain.NarrationSegment{
		{ID: "seg-1", Text: "alpha", EstimatedStart: 0, EstimatedEnd: 2},
		{ID: "seg-2", Text: "beta", EstimatedStart: 2, EstimatedEnd: 4},
	}
	words := []domain.TimedWord{word("unrelated", 0, 0.5)}

	res := Run(discardLogger(), segments, words, DefaultPipelineOptions())

	assert.True(t, res.NoneMatched)
	require.Len(t, res.Segments, 2)
	assert.InDelta(t, 0.0, res.Segments[0].StartSec, 1e-9)
	assert.InDelta(t, 2.0, res.Segments[0].EndSec, 1e-9)
	assert.InDelta(t, 2.0, res.Segments[1].StartSec, 1e-9)
	assert.InDelta(t, 4.0, res.Segments[1].EndSec, 1e-9)
	assert.Empty(t, res.Segments[0].WordTimings)
}

func TestRun_Idempotent(t *testing.T) {
	segments := []domain.NarrationSegment{
		{ID: "seg-1", Text: "hello world", EstimatedStart: 0, EstimatedEnd: 2},
		{ID: "seg-2", Text: "goodbye now", EstimatedStart: 2, EstimatedEnd: 4},
	}
	words := []domain.TimedWord{
		word("hello", 0.1, 0.5),
		word("world", 0.5, 1.0),
		word("goodbye", 1.2, 1.8),
		word("now", 1.8, 2.0),
	}

	first := Run(discardLogger(), segments, words, DefaultPipelineOptions())
	second := Run(discardLogger(), segments, words, DefaultPipelineOptions())

	assert.Equal(t, first, second)
}

func TestRun_PartitionInvariantHolds(t *testing.T) {
	segments := []domain.NarrationSegment{
		{ID: "seg-1", Text: "the quick brown fox", EstimatedStart: 0, EstimatedEnd: 2},
		{ID: "seg-2", Text: "jumps over the lazy dog", EstimatedStart: 2, EstimatedEnd: 4},
		{ID: "seg-3", Text: "and runs far away", EstimatedStart: 4, EstimatedEnd: 6},
	}
	var words []domain.TimedWord
	start := 0.0
	for _, txt := range []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog", "and", "runs", "far", "away"} {
		words = append(words, word(txt, start, start+0.35))
		start += 0.35
	}

	res := Run(discardLogger(), segments, words, DefaultPipelineOptions())
	require.Len(t, res.Segments, 3)

	for i := 0; i < len(res.Segments)-1; i++ {
		assert.InDelta(t, res.Segments[i+1].StartSec, res.Segments[i].EndSec, 1e-9)
	}
	for _, seg := range res.Segments {
		assert.Less(t, seg.StartSec, seg.EndSec)
	}
}
