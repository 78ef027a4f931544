package speech

import (
	"bytes"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bluefxvideo/voiceline-server/internal/align"
	"github.com/bluefxvideo/voiceline-server/internal/domain"
)

// Client talks to the hosted voice pipeline over HTTP and implements both
// Synthesizer and Recognizer.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a voice pipeline client.
// Rate limited to 2 requests per second with a small burst; synthesis is the
// expensive call and the provider throttles beyond that anyway.
func NewClient(baseURL, apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesizeResponse struct {
	AudioURL    string  `json:"audio_url"`
	DurationSec float64 `json:"duration_sec"`
	// Some voice providers include word timings with the render; most do not.
	Words jsontext.Value `json:"words,omitempty"`
}

// Synthesize renders narration text to audio.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error) {
	var out SynthesisResult

	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("encode synthesis request: %w", err)
	}

	raw, err := c.post(ctx, "/v1/synthesize", body)
	if err != nil {
		return out, err
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out, fmt.Errorf("parse synthesis response: %w", err)
	}

	out.AudioURL = resp.AudioURL
	out.DurationSec = resp.DurationSec
	if len(resp.Words) > 0 {
		// Best effort; a provider that advertises timings but sends garbage
		// falls back to the recognizer path.
		words, err := align.ParseTranscript(resp.Words)
		if err != nil {
			c.logger.Warn("synthesis response carried unusable word timings", "error", err)
		} else {
			out.Words = words
		}
	}

	c.logger.Debug("synthesized narration",
		"chars", len(req.Text),
		"duration_sec", out.DurationSec,
		"has_word_timings", len(out.Words) > 0,
	)
	return out, nil
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

// Transcribe runs speech recognition over rendered audio and returns the
// canonical word timing sequence.
func (c *Client) Transcribe(ctx context.Context, audioURL string) ([]domain.TimedWord, error) {
	body, err := json.Marshal(transcribeRequest{AudioURL: audioURL})
	if err != nil {
		return nil, fmt.Errorf("encode transcribe request: %w", err)
	}

	raw, err := c.post(ctx, "/v1/transcribe", body)
	if err != nil {
		return nil, err
	}

	words, err := align.ParseTranscript(raw)
	if err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	c.logger.Debug("transcribed audio", "audio_url", audioURL, "words", len(words))
	return words, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice pipeline request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice pipeline %s: status %d: %s", path, resp.StatusCode, truncate(raw, 200))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
