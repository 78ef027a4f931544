// Command alignctl runs the alignment pipeline against local files, for
// inspecting what the server would do with a given script and transcript.
//
// Usage:
//
//	alignctl <segments.json> <transcript.json>
//
// segments.json holds an array of narration segments with estimated timings;
// transcript.json holds word timings in any of the supported provider shapes.
package main

import (
	"encoding/json/v2"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/bluefxvideo/voiceline-server/internal/align"
	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

func main() {
	gapThreshold := flag.Float64("gap-extend-threshold", align.DefaultGapExtendThreshold, "largest gap in seconds absorbed during repair")
	maxWords := flag.Int("caption-max-words", 0, "max words per caption chunk (0 = default)")
	maxChars := flag.Int("caption-max-chars", 0, "max characters per caption line (0 = default)")
	verbose := flag.Bool("v", false, "log alignment details to stderr")
	flag.Parse()

	if flag.NArg() != 2 {
		log.Fatal("Usage: alignctl [flags] <segments.json> <transcript.json>")
	}

	var segments []domain.NarrationSegment
	if err := readJSON(flag.Arg(0), &segments); err != nil {
		log.Fatalf("Failed to read segments: %v", err)
	}

	rawTranscript, err := os.ReadFile(flag.Arg(1))
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}
	words, err := align.ParseTranscript(rawTranscript)
	if err != nil {
		log.Fatalf("Failed to parse transcript: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	opts := align.DefaultPipelineOptions()
	opts.GapExtendThreshold = *gapThreshold
	if *maxWords > 0 {
		opts.Chunk.MaxWordsPerChunk = *maxWords
	}
	if *maxChars > 0 {
		opts.Chunk.MaxCharsPerLine = *maxChars
	}

	res := align.Run(logger, segments, words, opts)

	if res.NoneMatched {
		fmt.Fprintln(os.Stderr, "No segments matched the transcript; timings below are the script estimates.")
	}
	for _, id := range res.UnmatchedIDs {
		fmt.Fprintf(os.Stderr, "Segment %s did not match\n", id)
	}

	out, err := json.Marshal(map[string]any{
		"segments": res.Segments,
		"captions": res.Captions,
	})
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
