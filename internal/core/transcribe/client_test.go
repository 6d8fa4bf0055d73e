package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUnconfigured(t *testing.T) {
	c := NewClient("", "")

	_, err := c.Transcribe(context.Background(), "https://youtu.be/abc")
	assert.ErrorIs(t, err, ErrUnconfigured)
}

func TestClientTranscribe(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://youtu.be/abc", body["url"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"transcript": "hello world",
			"language":   "en",
			"segments":   []map[string]any{{"text": "hello world", "start": 0.0, "end": 1.5}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k3y")
	result, err := c.Transcribe(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)

	assert.Equal(t, "Bearer k3y", gotAuth)
	assert.Equal(t, "hello world", result.Transcript)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "hello world", result.Segments[0].Text)
}

func TestClientEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Transcribe(context.Background(), "https://youtu.be/abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}
