package align

import (
	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/timing"
)

// DefaultGapExtendThreshold is the largest gap, in seconds, that repair
// silently absorbs by extending the earlier segment. Larger gaps are assumed
// to be intentional pauses and are left alone.
const DefaultGapExtendThreshold = 0.5

// Repair walks aligned segments in script order and enforces the partition
// rules between each adjacent pair:
//
//   - small gap (< threshold): extend the earlier segment to close it, so
//     renderers never see brief dead air between narration beats
//   - large gap: keep it — an authored pause
//   - overlap: trim the earlier segment unconditionally; overlap has no
//     acceptable magnitude
//
// Segments that failed alignment keep their estimated timing and go through
// the same rules against their repaired neighbors, so one bad segment cannot
// corrupt the rest of the chain. The output partition invariant (end[i] ==
// start[i+1], modulo intentional pauses) is a programming-error check covered
// by tests, not a runtime error path.
func Repair(aligned []domain.NarrationSegment, gapExtendThreshold float64) []domain.RealignedSegment {
	if gapExtendThreshold <= 0 {
		gapExtendThreshold = DefaultGapExtendThreshold
	}

	out := make([]domain.RealignedSegment, len(aligned))
	for i := range aligned {
		seg := &aligned[i]
		out[i] = domain.RealignedSegment{
			ID:          seg.ID,
			Text:        seg.Text,
			StartSec:    seg.Start(),
			EndSec:      seg.End(),
			ImagePrompt: seg.ImagePrompt,
			WordTimings: seg.MatchedWords,
		}
	}

	for i := 0; i < len(out)-1; i++ {
		cur, next := &out[i], &out[i+1]
		a := timing.Span{Start: cur.StartSec, End: cur.EndSec}
		b := timing.Span{Start: next.StartSec, End: next.EndSec}

		switch gap := timing.Gap(a, b); {
		case gap > 0:
			if gap < gapExtendThreshold {
				cur.EndSec = next.StartSec
			}
		case cur.EndSec > next.StartSec:
			// Overlap, including the degenerate zero-duration neighbor.
			cur.EndSec = next.StartSec
		}
	}

	for i := range out {
		out[i].DurationSec = out[i].EndSec - out[i].StartSec
	}
	return out
}
