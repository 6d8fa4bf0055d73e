package event

import "time"

type EventType string

const (
	// Download lifecycle
	EventDownloadStarted   EventType = "download.started"
	EventDownloadCompleted EventType = "download.completed"
	EventDownloadFailed    EventType = "download.failed"

	// Job lifecycle
	EventJobCreated   EventType = "job.created"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"

	// Artifact cache
	EventArtifactEvicted EventType = "artifact.evicted"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type DownloadEvent struct {
	URL      string
	Format   string
	ID       string
	Filename string
	Error    string
}

type JobEvent struct {
	JobID  string
	Status string
	Error  string
}

type ArtifactEvent struct {
	ID       string
	FilePath string
	Age      time.Duration
}
