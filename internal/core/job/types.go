package job

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of a job. Valid transitions are
// queued -> processing -> done and queued -> processing -> error.
// done and error are terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// TypeTranscription is the only job type currently produced.
const TypeTranscription = "transcription"

// Envelope is the persisted record for one unit of asynchronous work.
// Timestamps are epoch milliseconds.
type Envelope struct {
	JobID     string          `json:"jobId"`
	Type      string          `json:"type"`
	Status    Status          `json:"status"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt int64           `json:"updatedAt"`
	Input     json.RawMessage `json:"input"`
	Progress  Progress        `json:"progress"`
	Result    *Result         `json:"result"`
	Error     *Error          `json:"error"`
}

type Progress struct {
	Stage string `json:"stage"`
	Pct   int    `json:"pct"`
}

// Result holds the eventual transcription output. All fields stay empty
// until the engine produces them.
type Result struct {
	Transcript string    `json:"transcript"`
	Segments   []Segment `json:"segments,omitempty"`
	Language   string    `json:"language,omitempty"`
}

type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Empty reports whether the result carries no usable transcript: blank
// text and no segment with non-blank text.
func (r *Result) Empty() bool {
	if r == nil {
		return true
	}
	if strings.TrimSpace(r.Transcript) != "" {
		return false
	}
	for _, s := range r.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Patch is a merge-patch against an Envelope. Zero-valued fields are left
// untouched; Progress and Result merge field-by-field so a patch naming
// only one sibling never erases the others. ClearError resets a previously
// set error (the explicit error:null of the wire format).
type Patch struct {
	Status     Status
	Progress   *ProgressPatch
	Result     *ResultPatch
	Error      *Error
	ClearError bool
}

type ProgressPatch struct {
	Stage *string
	Pct   *int
}

type ResultPatch struct {
	Transcript *string
	Segments   []Segment
	Language   *string
}

// Apply merges p into e and rewrites UpdatedAt.
func (e *Envelope) Apply(p Patch) {
	if p.Status != "" {
		e.Status = p.Status
	}
	if p.Progress != nil {
		if p.Progress.Stage != nil {
			e.Progress.Stage = *p.Progress.Stage
		}
		if p.Progress.Pct != nil {
			e.Progress.Pct = *p.Progress.Pct
		}
	}
	if p.Result != nil {
		if e.Result == nil {
			e.Result = &Result{}
		}
		if p.Result.Transcript != nil {
			e.Result.Transcript = *p.Result.Transcript
		}
		if p.Result.Segments != nil {
			e.Result.Segments = p.Result.Segments
		}
		if p.Result.Language != nil {
			e.Result.Language = *p.Result.Language
		}
	}
	if p.ClearError {
		e.Error = nil
	} else if p.Error != nil {
		e.Error = p.Error
	}
	e.UpdatedAt = nowMillis()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
