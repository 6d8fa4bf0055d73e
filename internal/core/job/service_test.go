package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/internal/core/event"
	"mediagrab/internal/core/job"
	"mediagrab/internal/store"
)

type fakeEngine struct {
	fn func(ctx context.Context, url string) (*job.Result, error)
}

func (f *fakeEngine) Transcribe(ctx context.Context, url string) (*job.Result, error) {
	return f.fn(ctx, url)
}

func newTestService(t *testing.T, engine job.Transcriber) (*job.Service, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	st := store.New(rdb, time.Hour)
	svc := job.NewService(st, engine, event.NewBus(), 20*time.Millisecond, 10*time.Millisecond)
	return svc, st
}

func waitForStatus(t *testing.T, svc *job.Service, id string, want job.Status) *job.Envelope {
	t.Helper()
	var env *job.Envelope
	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), id)
		if err != nil || got == nil {
			return false
		}
		env = got
		return env.Status == want
	}, 2*time.Second, 5*time.Millisecond, "job never reached status %s", want)
	return env
}

func TestJobLifecycleSuccess(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		return &job.Result{Transcript: "hello world", Language: "en"}, nil
	}}
	svc, _ := newTestService(t, engine)

	input := json.RawMessage(`{"url":"https://youtu.be/abc"}`)
	id, err := svc.Create(context.Background(), "https://youtu.be/abc", input)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Immediately after creation the job is queued.
	env, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, job.StatusQueued, env.Status)
	assert.Equal(t, job.TypeTranscription, env.Type)
	assert.Equal(t, "queued", env.Progress.Stage)
	assert.JSONEq(t, string(input), string(env.Input))

	env = waitForStatus(t, svc, id, job.StatusDone)
	require.NotNil(t, env.Result)
	assert.Equal(t, "hello world", env.Result.Transcript)
	assert.Equal(t, "en", env.Result.Language)
	assert.Nil(t, env.Error)
	assert.Equal(t, "done", env.Progress.Stage)
	assert.Equal(t, 100, env.Progress.Pct)
	assert.GreaterOrEqual(t, env.UpdatedAt, env.CreatedAt)
}

func TestJobPassesThroughProcessing(t *testing.T) {
	release := make(chan struct{})
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		<-release
		return &job.Result{Transcript: "ok"}, nil
	}}
	svc, _ := newTestService(t, engine)

	id, err := svc.Create(context.Background(), "https://youtu.be/abc", nil)
	require.NoError(t, err)

	env := waitForStatus(t, svc, id, job.StatusProcessing)
	assert.Equal(t, "transcribing", env.Progress.Stage)
	assert.Equal(t, 10, env.Progress.Pct)

	close(release)
	waitForStatus(t, svc, id, job.StatusDone)
}

func TestJobEngineFailureBecomesErrorState(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		return nil, errors.New("model unavailable")
	}}
	svc, _ := newTestService(t, engine)

	id, err := svc.Create(context.Background(), "https://youtu.be/abc", nil)
	require.NoError(t, err)

	env := waitForStatus(t, svc, id, job.StatusError)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TRANSCRIPTION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "model unavailable")
	assert.Nil(t, env.Result, "a failed job must not fabricate a result")
}

func TestJobEmptyTranscriptRejected(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		return &job.Result{Transcript: "  ", Segments: []job.Segment{{Text: ""}}}, nil
	}}
	svc, _ := newTestService(t, engine)

	id, err := svc.Create(context.Background(), "https://youtu.be/abc", nil)
	require.NoError(t, err)

	env := waitForStatus(t, svc, id, job.StatusError)
	require.NotNil(t, env.Error)
	assert.Equal(t, "EMPTY_TRANSCRIPT", env.Error.Code)
}

func TestJobEnginePanicContained(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		panic("boom")
	}}
	svc, _ := newTestService(t, engine)

	id, err := svc.Create(context.Background(), "https://youtu.be/abc", nil)
	require.NoError(t, err)

	env := waitForStatus(t, svc, id, job.StatusError)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL", env.Error.Code)
}

func TestAdvanceMissingJobIsNoop(t *testing.T) {
	engine := &fakeEngine{fn: func(context.Context, string) (*job.Result, error) {
		return &job.Result{Transcript: "x"}, nil
	}}
	svc, _ := newTestService(t, engine)

	env, err := svc.Advance(context.Background(), "does-not-exist", job.Patch{Status: job.StatusProcessing})
	require.NoError(t, err, "expiry is expected, not exceptional")
	assert.Nil(t, env)
}
