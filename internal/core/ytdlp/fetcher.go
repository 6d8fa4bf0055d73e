// Package ytdlp wraps the external yt-dlp binary behind a one-shot fetch
// operation with a single, narrowly scoped retry: when the primary attempt
// dies because no JavaScript runtime is available and a fallback runtime
// exists on the host, the fetch is retried exactly once with the fallback
// substituted. Every other failure is terminal.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"
)

// runtimeMissingMarker is the exact diagnostic yt-dlp emits when it cannot
// find a JavaScript runtime. The retry heuristic is a substring match
// against this wording and nothing else; it is brittle coupling to the
// tool's error text, kept deliberately narrow.
const runtimeMissingMarker = "No supported JavaScript runtime could be found"

// stderrTailLimit bounds the diagnostic text surfaced to callers. The full
// stream still goes to the log, credentials redacted.
const stderrTailLimit = 1500

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var allowedURL = regexp.MustCompile(`^https?://(www\.|m\.|music\.)?(youtube\.com|youtu\.be)(/|$)`)

// AllowedURL reports whether raw points at an allow-listed source. Checked
// before anything is spawned.
func AllowedURL(raw string) bool {
	return allowedURL.MatchString(raw)
}

// ErrArtifactMissing means the subprocess exited zero but no output file
// exists under any candidate extension. That is a contract violation
// between the tool and the filesystem, reported as a server error and
// never retried.
var ErrArtifactMissing = errors.New("extraction succeeded but no output file was produced")

// ErrUnsupportedURL rejects non-allow-listed sources.
var ErrUnsupportedURL = errors.New("url is not an allowed media source")

// ProcessError is a terminal subprocess failure: the exit code plus a
// bounded tail of the diagnostic stream.
type ProcessError struct {
	ExitCode int
	Tail     string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("yt-dlp exited with code %d", e.ExitCode)
}

// Output describes the located artifact of a successful fetch.
type Output struct {
	UID      string
	FilePath string
	Ext      string
}

// runFunc executes one attempt and reports its finalized outcome.
// Injectable so the retry policy is testable without a binary.
type runFunc func(ctx context.Context, binary string, args []string) procResult

type Fetcher struct {
	binary          string
	downloadDir     string
	fallbackRuntime string
	hasFallback     bool

	run runFunc
}

// NewFetcher probes the fallback runtime once at construction; the
// capability never changes for the life of the process.
func NewFetcher(binary, downloadDir, fallbackRuntime string) *Fetcher {
	f := &Fetcher{
		binary:          binary,
		downloadDir:     downloadDir,
		fallbackRuntime: fallbackRuntime,
		run:             runProcess,
	}
	if fallbackRuntime != "" {
		if _, err := exec.LookPath(fallbackRuntime); err == nil {
			f.hasFallback = true
		}
	}
	return f
}

// Fetch runs yt-dlp to completion for url and locates the produced file.
// The caller blocks until the subprocess (and at most one retry) finishes.
func (f *Fetcher) Fetch(ctx context.Context, url string, format Format) (Output, error) {
	if !AllowedURL(url) {
		return Output{}, ErrUnsupportedURL
	}
	if err := os.MkdirAll(f.downloadDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create download dir: %w", err)
	}

	uid := uuid.NewString()
	template := filepath.Join(f.downloadDir, uid+".%(ext)s")

	res := f.run(ctx, f.binary, buildArgs(url, format, template, ""))
	if res.failed() && f.hasFallback && strings.Contains(res.stderr, runtimeMissingMarker) {
		log.Warn().Str("url", Redact(url)).Str("runtime", f.fallbackRuntime).
			Msg("no JavaScript runtime found, retrying with fallback")
		res = f.run(ctx, f.binary, buildArgs(url, format, template, f.fallbackRuntime))
	}

	if res.failed() {
		log.Error().Int("exit_code", res.exitCode).Str("url", Redact(url)).
			Str("stderr", Redact(res.stderr)).Msg("yt-dlp failed")
		return Output{}, &ProcessError{ExitCode: res.exitCode, Tail: tail(res.stderr, stderrTailLimit)}
	}

	// Audio extension first, then video.
	for _, ext := range []string{"mp3", "mp4"} {
		path := filepath.Join(f.downloadDir, uid+"."+ext)
		if _, err := os.Stat(path); err == nil {
			log.Info().Str("uid", uid).Str("ext", ext).Msg("yt-dlp fetch complete")
			return Output{UID: uid, FilePath: path, Ext: ext}, nil
		}
	}

	log.Error().Str("uid", uid).Msg("yt-dlp reported success but no artifact exists")
	return Output{}, ErrArtifactMissing
}

// buildArgs assembles the argv for one attempt. The core flags are shared
// between primary and fallback attempts; only the runtime selection
// differs.
func buildArgs(url string, format Format, outputTemplate, jsRuntime string) []string {
	args := []string{
		"--no-playlist",
		"--user-agent", defaultUserAgent,
		"--extractor-args", "youtube:player_client=web_safari",
		"-o", outputTemplate,
	}
	switch format {
	case FormatMP3:
		args = append(args, "-x", "--audio-format", "mp3")
	default:
		args = append(args, "-f", "bestvideo+bestaudio/best", "--merge-output-format", "mp4")
	}
	if jsRuntime != "" {
		args = append(args, "--js-runtimes", jsRuntime)
	}
	return append(args, url)
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
