package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mediagrab/internal/core/event"
)

// Store is the persistence contract the state machine drives. Get and Merge
// report an absent key as (nil, nil): expiry is expected, not exceptional.
type Store interface {
	Get(ctx context.Context, id string) (*Envelope, error)
	Set(ctx context.Context, id string, env *Envelope) error
	Merge(ctx context.Context, id string, p Patch) (*Envelope, error)
}

// Transcriber is the out-of-scope transcription engine, seen only at its
// interface. Satisfied by transcribe.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, url string) (*Result, error)
}

// Service owns the job lifecycle: creation, staged progression and terminal
// completion, all persisted as merge-patches. Each job runs its progression
// on one dedicated goroutine, which gives per-job ordering for free;
// different jobs are independent and unordered.
type Service struct {
	store  Store
	engine Transcriber
	bus    event.Bus

	processingDelay time.Duration
	completionDelay time.Duration
}

func NewService(store Store, engine Transcriber, bus event.Bus, processingDelay, completionDelay time.Duration) *Service {
	return &Service{
		store:           store,
		engine:          engine,
		bus:             bus,
		processingDelay: processingDelay,
		completionDelay: completionDelay,
	}
}

// Create persists a queued envelope and schedules the background
// progression. Returns the job id immediately; completion is observed by
// polling Get.
func (s *Service) Create(ctx context.Context, url string, input json.RawMessage) (string, error) {
	id := uuid.NewString()
	now := time.Now().UnixMilli()
	env := &Envelope{
		JobID:     id,
		Type:      TypeTranscription,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Input:     input,
		Progress:  Progress{Stage: "queued", Pct: 0},
	}
	if err := s.store.Set(ctx, id, env); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}

	s.bus.Publish(ctx, event.Event{
		Type:    event.EventJobCreated,
		Payload: event.JobEvent{JobID: id, Status: string(StatusQueued)},
	})

	go s.run(id, url)
	return id, nil
}

// Get returns the stored envelope, or nil when expired or never created.
func (s *Service) Get(ctx context.Context, id string) (*Envelope, error) {
	return s.store.Get(ctx, id)
}

// Advance applies a merge-patch and rewrites updatedAt. An absent job is a
// not-found no-op, not an error.
func (s *Service) Advance(ctx context.Context, id string, p Patch) (*Envelope, error) {
	return s.store.Merge(ctx, id, p)
}

// run drives one job from queued to a terminal state. It is detached from
// the request context and must never propagate a failure: anything the
// engine or the store throws becomes an error-state patch.
func (s *Service) run(id, url string) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", id).Any("panic", r).Msg("job progression panicked")
			s.fail(ctx, id, "INTERNAL", fmt.Sprintf("internal error: %v", r))
		}
	}()

	time.Sleep(s.processingDelay)

	env, err := s.Advance(ctx, id, Patch{
		Status:   StatusProcessing,
		Progress: &ProgressPatch{Stage: strPtr("transcribing"), Pct: intPtr(10)},
	})
	if err != nil {
		s.fail(ctx, id, "STORE_ERROR", err.Error())
		return
	}
	if env == nil {
		// Expired before we got to it; nothing left to update.
		log.Warn().Str("job_id", id).Msg("job expired before processing")
		return
	}

	result, engineErr := s.engine.Transcribe(ctx, url)

	time.Sleep(s.completionDelay)

	switch {
	case engineErr != nil:
		s.fail(ctx, id, "TRANSCRIPTION_FAILED", engineErr.Error())
	case result.Empty():
		s.fail(ctx, id, "EMPTY_TRANSCRIPT", "transcription produced no usable text")
	default:
		_, err := s.Advance(ctx, id, Patch{
			Status:   StatusDone,
			Progress: &ProgressPatch{Stage: strPtr("done"), Pct: intPtr(100)},
			Result: &ResultPatch{
				Transcript: strPtr(result.Transcript),
				Segments:   result.Segments,
				Language:   strPtr(result.Language),
			},
			ClearError: true,
		})
		if err != nil {
			s.fail(ctx, id, "STORE_ERROR", err.Error())
			return
		}
		s.bus.Publish(ctx, event.Event{
			Type:    event.EventJobCompleted,
			Payload: event.JobEvent{JobID: id, Status: string(StatusDone)},
		})
	}
}

// fail moves the job to the terminal error state. Best-effort: if the store
// itself is down there is nothing more to do than log.
func (s *Service) fail(ctx context.Context, id, code, message string) {
	_, err := s.Advance(ctx, id, Patch{
		Status: StatusError,
		Error:  &Error{Code: code, Message: message},
	})
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Str("code", code).Msg("failed to record job error")
		return
	}
	s.bus.Publish(ctx, event.Event{
		Type:    event.EventJobFailed,
		Payload: event.JobEvent{JobID: id, Status: string(StatusError), Error: message},
	})
}
