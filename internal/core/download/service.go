// Package download drives a synchronous extraction: run the fetcher to
// completion, confirm the artifact on disk, register it in the ephemeral
// cache and hand back the entry for serving.
package download

import (
	"context"

	"mediagrab/internal/core/artifact"
	"mediagrab/internal/core/event"
	"mediagrab/internal/core/ytdlp"
)

// Fetcher runs the extraction subprocess. Satisfied by *ytdlp.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string, format ytdlp.Format) (ytdlp.Output, error)
}

type Service struct {
	fetcher Fetcher
	cache   *artifact.Cache
	bus     event.Bus
}

func NewService(fetcher Fetcher, cache *artifact.Cache, bus event.Bus) *Service {
	return &Service{fetcher: fetcher, cache: cache, bus: bus}
}

// Download blocks until the subprocess finishes, then registers exactly one
// artifact entry. The entry is inserted only after the fetcher has located
// the file on disk, so readers and the sweep never see a half-written one.
func (s *Service) Download(ctx context.Context, url string, format ytdlp.Format) (artifact.Entry, error) {
	s.bus.Publish(ctx, event.Event{
		Type:    event.EventDownloadStarted,
		Payload: event.DownloadEvent{URL: ytdlp.Redact(url), Format: string(format)},
	})

	out, err := s.fetcher.Fetch(ctx, url, format)
	if err != nil {
		s.bus.Publish(ctx, event.Event{
			Type:    event.EventDownloadFailed,
			Payload: event.DownloadEvent{URL: ytdlp.Redact(url), Format: string(format), Error: err.Error()},
		})
		return artifact.Entry{}, err
	}

	entry := artifact.Entry{
		ID:       out.UID,
		FilePath: out.FilePath,
		Filename: out.UID + "." + out.Ext,
		MIME:     mimeForExt(out.Ext),
	}
	s.cache.Put(entry)

	s.bus.Publish(ctx, event.Event{
		Type:    event.EventDownloadCompleted,
		Payload: event.DownloadEvent{URL: ytdlp.Redact(url), Format: string(format), ID: entry.ID, Filename: entry.Filename},
	})
	return entry, nil
}

func mimeForExt(ext string) string {
	switch ext {
	case "mp3":
		return "audio/mpeg"
	case "mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
