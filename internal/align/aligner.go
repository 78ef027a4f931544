// Package align implements the narration-to-timeline synchronization engine:
// transcript ingest, segment alignment against word timings, timeline repair,
// and caption chunking.
package align

import (
	"strings"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// Result holds the aligned segments plus the warnings the run produced.
type Result struct {
	Segments []domain.NarrationSegment
	// UnmatchedIDs lists segments that matched zero words and fell back to
	// their estimated timing.
	UnmatchedIDs []string
	// NoneMatched is set when not a single segment aligned. Callers should
	// keep the original estimated timeline and surface a "could not sync
	// audio" condition rather than persist a bogus partial result.
	NoneMatched bool
}

// Align matches each narration segment's text against the timed word sequence
// and derives actual start/end times from the matched words.
//
// Matching is monotonic: a cursor into words only ever advances, so a word is
// never used by two segments and repeated words ("the", "a") are resolved by
// position alone — first occurrence after the cursor wins. This is
// deliberately simpler than an edit-distance aligner; it trades optimality
// for determinism and keeps the total scan cost linear.
//
// The input slice is not modified; aligned copies are returned in script order.
func Align(segments []domain.NarrationSegment, words []domain.TimedWord) Result {
	out := Result{Segments: make([]domain.NarrationSegment, len(segments))}
	copy(out.Segments, segments)

	searchFrom := 0
	matchedAny := false

	for i := range out.Segments {
		seg := &out.Segments[i]
		seg.MatchedWords = nil
		seg.AlignmentFailed = false

		tokens := tokenize(seg.Text)
		var matched []domain.TimedWord

		for _, tok := range tokens {
			idx := findWord(words, searchFrom, tok)
			if idx < 0 {
				continue
			}
			matched = append(matched, words[idx])
			searchFrom = idx + 1
		}

		if len(matched) == 0 {
			seg.AlignmentFailed = true
			out.UnmatchedIDs = append(out.UnmatchedIDs, seg.ID)
			continue
		}

		matchedAny = true
		seg.MatchedWords = matched
		// Matched words are in time order by construction, so min start is
		// the first and max end is the last.
		seg.ActualStart = matched[0].StartSec
		seg.ActualEnd = matched[len(matched)-1].EndSec
	}

	out.NoneMatched = len(segments) > 0 && !matchedAny
	return out
}

// findWord scans words[from..] for the first entry matching tok, returning
// its index or -1.
func findWord(words []domain.TimedWord, from int, tok string) int {
	for i := from; i < len(words); i++ {
		if wordsMatch(normalizeToken(words[i].Text), tok) {
			return i
		}
	}
	return -1
}

// wordsMatch reports whether a recognized word corresponds to a script token.
// Exact equality after normalization, or either string containing the other —
// the substring check absorbs recognizer merges and splits ("can't" vs
// "cant", "cannot" vs "can").
func wordsMatch(word, tok string) bool {
	if word == "" || tok == "" {
		return false
	}
	if word == tok {
		return true
	}
	return strings.Contains(word, tok) || strings.Contains(tok, word)
}

// tokenize splits segment text into normalized tokens, dropping any that
// normalize to nothing (bare punctuation).
func tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := normalizeToken(f); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// normalizeToken lowercases and strips sentence punctuation. Apostrophes are
// kept so contractions stay comparable via the substring check.
func normalizeToken(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':':
			return -1
		}
		return r
	}, s)
}
