package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// procResult is the single terminal outcome of one spawned process.
type procResult struct {
	exitCode int
	stderr   string
	err      error
}

func (r procResult) failed() bool {
	return r.err != nil || r.exitCode != 0
}

// procHandle guards the finalize-once contract: no matter how many paths
// try to report completion (start failure, wait error, context death),
// exactly one result wins and duplicates are dropped.
type procHandle struct {
	once sync.Once
	done chan struct{}
	res  procResult
}

func newProcHandle() *procHandle {
	return &procHandle{done: make(chan struct{})}
}

func (h *procHandle) finalize(res procResult) {
	h.once.Do(func() {
		h.res = res
		close(h.done)
	})
}

func (h *procHandle) wait() procResult {
	<-h.done
	return h.res
}

// runProcess spawns one attempt and blocks until its finalized outcome.
// Stdout is ignored; the diagnostic stream is stderr, captured in full and
// echoed line by line at debug level with credentials redacted.
func runProcess(ctx context.Context, binary string, args []string) procResult {
	handle := startProcess(ctx, binary, args)
	return handle.wait()
}

func startProcess(ctx context.Context, binary string, args []string) *procHandle {
	handle := newProcHandle()

	cmd := exec.CommandContext(ctx, binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		handle.finalize(procResult{exitCode: -1, err: err})
		return handle
	}

	if err := cmd.Start(); err != nil {
		handle.finalize(procResult{exitCode: -1, err: err})
		return handle
	}

	go func() {
		var captured strings.Builder
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			captured.WriteString(line)
			captured.WriteByte('\n')
			log.Debug().Str("ytdlp", Redact(line)).Msg("yt-dlp stderr")
		}

		if err := cmd.Wait(); err != nil {
			code := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			handle.finalize(procResult{exitCode: code, stderr: captured.String(), err: err})
			return
		}
		handle.finalize(procResult{exitCode: 0, stderr: captured.String()})
	}()

	return handle
}
