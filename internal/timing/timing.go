// Package timing provides shared arithmetic helpers for timeline spans:
// overlap and gap detection, and conversions between seconds, milliseconds,
// and video frames.
package timing

import "math"

// Span is a half-open time range in seconds.
type Span struct {
	Start float64
	End   float64
}

// Duration returns the span length in seconds. Never negative.
func (s Span) Duration() float64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Overlap returns how many seconds a and b overlap, or 0 when they don't touch.
func Overlap(a, b Span) float64 {
	start := math.Max(a.Start, b.Start)
	end := math.Min(a.End, b.End)
	if end <= start {
		return 0
	}
	return end - start
}

// Overlaps reports whether a and b share any interior point.
// Spans that merely touch at a boundary do not overlap.
func Overlaps(a, b Span) bool {
	return Overlap(a, b) > 0
}

// Gap returns the silence between a and b in seconds, where a precedes b.
// Returns 0 when the spans touch or overlap.
func Gap(a, b Span) float64 {
	if b.Start <= a.End {
		return 0
	}
	return b.Start - a.End
}

// SecondsToMillis converts seconds to whole milliseconds, rounding half away
// from zero.
func SecondsToMillis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// MillisToSeconds converts milliseconds to seconds.
func MillisToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

// SecondsToFrames converts a timestamp in seconds to a frame index at the
// given frame rate, rounding to the nearest frame.
func SecondsToFrames(sec, fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Round(sec * fps))
}

// FramesToSeconds converts a frame index back to seconds at the given rate.
func FramesToSeconds(frames int64, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frames) / fps
}
