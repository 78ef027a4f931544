package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentStartEnd_FallsBackToEstimate(t *testing.T) {
	seg := NarrationSegment{
		ID:             "seg-1",
		Text:           "hello world",
		EstimatedStart: 1.0,
		EstimatedEnd:   3.0,
	}

	// Unaligned: estimates win.
	assert.Equal(t, 1.0, seg.Start())
	assert.Equal(t, 3.0, seg.End())

	// Aligned: actuals win.
	seg.MatchedWords = []TimedWord{{Text: "hello", StartSec: 1.2, EndSec: 1.6}}
	seg.ActualStart = 1.2
	seg.ActualEnd = 1.6
	assert.Equal(t, 1.2, seg.Start())
	assert.Equal(t, 1.6, seg.End())

	// Failed alignment: back to estimates even with stale actuals.
	seg.AlignmentFailed = true
	assert.Equal(t, 1.0, seg.Start())
	assert.Equal(t, 3.0, seg.End())
}

func TestTimelineSegmentByID(t *testing.T) {
	tl := Timeline{
		Segments: []NarrationSegment{
			{ID: "seg-a", Text: "first"},
			{ID: "seg-b", Text: "second"},
		},
	}

	seg := tl.SegmentByID("seg-b")
	if assert.NotNil(t, seg) {
		assert.Equal(t, "second", seg.Text)
	}

	// Returned pointer aliases the slice element.
	seg.Text = "edited"
	assert.Equal(t, "edited", tl.Segments[1].Text)

	assert.Nil(t, tl.SegmentByID("seg-missing"))
}

func TestTimelineTotalDuration(t *testing.T) {
	tl := Timeline{}
	assert.Zero(t, tl.TotalDurationSec())

	tl.Segments = []NarrationSegment{{EstimatedStart: 0, EstimatedEnd: 4.5}}
	assert.Equal(t, 4.5, tl.TotalDurationSec())

	tl.Realigned = []RealignedSegment{{StartSec: 0, EndSec: 4.2}}
	assert.Equal(t, 4.2, tl.TotalDurationSec())
}
