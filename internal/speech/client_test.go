package speech

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"audio_url": "https://cdn.example.com/a.mp3",
			"duration_sec": 2.0,
			"words": [{"word": "hello", "start": 0.1, "end": 0.5}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", testLogger())

	res, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp3", res.AudioURL)
	assert.InDelta(t, 2.0, res.DurationSec, 1e-9)
	require.Len(t, res.Words, 1)
	assert.Equal(t, "hello", res.Words[0].Text)
}

func TestClient_SynthesizeWithoutWordTimings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"audio_url": "https://cdn.example.com/a.mp3", "duration_sec": 3.5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())

	res, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, res.Words)
}

func TestClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcribe", r.URL.Path)
		w.Write([]byte(`[
			{"word": "hello", "start": 0.1, "end": 0.5},
			{"word": "world", "start": 0.5, "end": 1.0}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())

	words, err := c.Transcribe(context.Background(), "https://cdn.example.com/a.mp3")
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "world", words[1].Text)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())

	_, err := c.Transcribe(context.Background(), "https://cdn.example.com/a.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
