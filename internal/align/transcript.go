package align

import (
	"encoding/json/v2"
	"fmt"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
	"github.com/bluefxvideo/voiceline-server/internal/errors"
)

// rawWord is one word entry as produced by a speech-to-text provider.
// Providers disagree on field names ("word" vs "text", "start" vs
// "start_time"), so both spellings are accepted. An entry carrying a nested
// Words array is a recognizer segment rather than a word.
type rawWord struct {
	Word      string    `json:"word"`
	Text      string    `json:"text"`
	Start     *float64  `json:"start"`
	End       *float64  `json:"end"`
	StartTime *float64  `json:"start_time"`
	EndTime   *float64  `json:"end_time"`
	Conf      float64   `json:"confidence"`
	Words     []rawWord `json:"words"`
}

// rawTranscript covers the two top-level object shapes recognizers emit.
type rawTranscript struct {
	Words    []rawWord `json:"words"`
	Segments []rawWord `json:"segments"`
}

// ParseTranscript decodes a speech-to-text result into the canonical ordered
// word sequence. The input may be a flat JSON array of word objects, an array
// of recognizer segments each holding a nested word array, or an object
// wrapping either under "words"/"segments". Source order is preserved and
// assumed chronological.
//
// Returns errors.ErrEmptyTranscript when no usable words are present; callers
// must then keep the original estimated timings unchanged.
func ParseTranscript(raw []byte) ([]domain.TimedWord, error) {
	var entries []rawWord
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Not a bare array; try the wrapper object form.
		var wrapper rawTranscript
		if objErr := json.Unmarshal(raw, &wrapper); objErr != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
		entries = wrapper.Words
		entries = append(entries, wrapper.Segments...)
	}

	words := flattenWords(entries)
	if len(words) == 0 {
		return nil, errors.ErrEmptyTranscript
	}
	return words, nil
}

// Ingest normalizes already-decoded recognizer words. It exists for callers
// holding typed provider responses rather than raw JSON.
func Ingest(words []domain.TimedWord) ([]domain.TimedWord, error) {
	out := make([]domain.TimedWord, 0, len(words))
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		out = append(out, clampWord(w))
	}
	if len(out) == 0 {
		return nil, errors.ErrEmptyTranscript
	}
	return out, nil
}

func flattenWords(entries []rawWord) []domain.TimedWord {
	var out []domain.TimedWord
	for _, e := range entries {
		if len(e.Words) > 0 {
			out = append(out, flattenWords(e.Words)...)
			continue
		}
		w, ok := e.toTimedWord()
		if !ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (e rawWord) toTimedWord() (domain.TimedWord, bool) {
	text := e.Word
	if text == "" {
		text = e.Text
	}
	if text == "" {
		return domain.TimedWord{}, false
	}

	start := e.Start
	if start == nil {
		start = e.StartTime
	}
	end := e.End
	if end == nil {
		end = e.EndTime
	}
	if start == nil || end == nil {
		return domain.TimedWord{}, false
	}

	return clampWord(domain.TimedWord{
		Text:       text,
		StartSec:   *start,
		EndSec:     *end,
		Confidence: e.Conf,
	}), true
}

// clampWord enforces the StartSec <= EndSec invariant on provider data.
func clampWord(w domain.TimedWord) domain.TimedWord {
	if w.EndSec < w.StartSec {
		w.EndSec = w.StartSec
	}
	return w
}
