package align

import (
	"strings"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// ChunkOptions bounds caption chunks for on-screen display.
type ChunkOptions struct {
	MaxWordsPerChunk int     `json:"maxWordsPerChunk"`
	MaxCharsPerLine  int     `json:"maxCharsPerLine"`
	MinChunkDuration float64 `json:"minChunkDuration"`
	MaxChunkDuration float64 `json:"maxChunkDuration"`
}

// DefaultChunkOptions returns the product-standard caption bounds.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		MaxWordsPerChunk: 6,
		MaxCharsPerLine:  42,
		MinChunkDuration: 0.833,
		MaxChunkDuration: 4.0,
	}
}

func (o ChunkOptions) withDefaults() ChunkOptions {
	d := DefaultChunkOptions()
	if o.MaxWordsPerChunk <= 0 {
		o.MaxWordsPerChunk = d.MaxWordsPerChunk
	}
	if o.MaxCharsPerLine <= 0 {
		o.MaxCharsPerLine = d.MaxCharsPerLine
	}
	if o.MinChunkDuration <= 0 {
		o.MinChunkDuration = d.MinChunkDuration
	}
	if o.MaxChunkDuration <= 0 {
		o.MaxChunkDuration = d.MaxChunkDuration
	}
	return o
}

// Chunk groups timed words into caption-display chunks. Greedy and
// left-to-right: the current chunk accumulates words until adding one would
// exceed the word, character, or duration cap, then closes and the violating
// word starts the next chunk. Chunk boundaries are always word boundaries.
//
// A closed chunk shorter than MinChunkDuration is merged forward into its
// successor when the merged chunk still fits within the caps (two display
// lines' worth of characters); otherwise it stays short. The final chunk of a
// timeline is allowed to be short.
func Chunk(words []domain.TimedWord, opts ChunkOptions) []domain.CaptionChunk {
	opts = opts.withDefaults()
	if len(words) == 0 {
		return nil
	}

	var chunks []domain.CaptionChunk
	var cur []domain.TimedWord
	curChars := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(cur, opts))
		cur = nil
		curChars = 0
	}

	for _, w := range words {
		wlen := len(w.Text)
		if len(cur) > 0 {
			withSpace := curChars + 1 + wlen
			if len(cur) >= opts.MaxWordsPerChunk ||
				withSpace > opts.MaxCharsPerLine ||
				w.EndSec-cur[0].StartSec > opts.MaxChunkDuration {
				flush()
			}
		}
		if len(cur) > 0 {
			curChars += 1 + wlen
		} else {
			curChars = wlen
		}
		cur = append(cur, w)
	}
	flush()

	return mergeShortChunks(chunks, opts)
}

// mergeShortChunks folds sub-minimum chunks into their successor where the
// merged result still respects the caps. The trailing chunk may stay short.
func mergeShortChunks(chunks []domain.CaptionChunk, opts ChunkOptions) []domain.CaptionChunk {
	if len(chunks) < 2 {
		return chunks
	}

	// A merged chunk can wrap onto a second display line.
	maxMergedChars := opts.MaxCharsPerLine * 2

	out := make([]domain.CaptionChunk, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		c := chunks[i]
		if i == len(chunks)-1 || c.DurationSec() >= opts.MinChunkDuration {
			out = append(out, c)
			continue
		}

		next := chunks[i+1]
		mergedWords := len(c.Words) + len(next.Words)
		mergedChars := len(c.Text) + 1 + len(next.Text)
		mergedDur := next.EndSec - c.StartSec
		if mergedWords > opts.MaxWordsPerChunk ||
			mergedChars > maxMergedChars ||
			mergedDur > opts.MaxChunkDuration {
			out = append(out, c)
			continue
		}

		merged := buildChunk(append(append([]domain.TimedWord{}, c.Words...), next.Words...), opts)
		out = append(out, merged)
		i++ // consumed the successor
	}
	return out
}

func buildChunk(words []domain.TimedWord, opts ChunkOptions) domain.CaptionChunk {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	text := strings.Join(texts, " ")

	lines := (len(text) + opts.MaxCharsPerLine - 1) / opts.MaxCharsPerLine
	if lines < 1 {
		lines = 1
	}
	if lines > 2 {
		lines = 2
	}

	return domain.CaptionChunk{
		Text:      text,
		StartSec:  words[0].StartSec,
		EndSec:    words[len(words)-1].EndSec,
		Words:     words,
		LineCount: lines,
	}
}
