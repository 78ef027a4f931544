// Package speech defines the boundary to the external voice pipeline: a
// synthesizer that renders narration audio and a recognizer that produces
// word-level timestamps from that audio.
package speech

import (
	"context"

	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// SynthesisRequest asks for one narration render.
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// SynthesisResult is the rendered audio. Words is best-effort: most voice
// providers do not return word timings, in which case the recognizer must be
// run against AudioURL to obtain them.
type SynthesisResult struct {
	AudioURL    string             `json:"audioUrl"`
	DurationSec float64            `json:"durationSec"`
	Words       []domain.TimedWord `json:"words,omitempty"`
}

// Synthesizer renders narration text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
}

// Recognizer transcribes rendered audio into word-level timings.
type Recognizer interface {
	Transcribe(ctx context.Context, audioURL string) ([]domain.TimedWord, error)
}
