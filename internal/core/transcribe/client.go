// Package transcribe models the external transcription engine at its
// interface. The engine itself is a remote service; this package only knows
// how to ask it for a transcript and decode what comes back.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mediagrab/internal/core/job"
)

// Transcriber produces a transcription result for a media URL.
type Transcriber interface {
	Transcribe(ctx context.Context, url string) (*job.Result, error)
}

// ErrUnconfigured is returned when no engine endpoint is configured.
// Jobs still run their full lifecycle and terminate in the error state.
var ErrUnconfigured = errors.New("transcription engine not configured")

// Client calls a remote transcription endpoint with POST {url} and expects
// {transcript, segments, language} back.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{},
	}
}

func (c *Client) Transcribe(ctx context.Context, url string) (*job.Result, error) {
	if c.endpoint == "" {
		return nil, ErrUnconfigured
	}

	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription engine returned %d: %s", resp.StatusCode, snippet)
	}

	var result job.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	return &result, nil
}
