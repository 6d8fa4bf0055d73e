// Package artifact keeps track of locally produced files awaiting pickup.
// The cache is ephemeral by design: entries live in memory, the files on
// local disk, and a periodic sweep evicts both together once an entry
// outlives the retention window. Nothing survives a restart.
package artifact

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mediagrab/internal/core/event"
)

// Entry describes one produced file. The entry and its backing file are a
// unit: they are created together (file confirmed on disk first) and the
// sweep removes them together.
type Entry struct {
	ID        string
	FilePath  string
	Filename  string
	MIME      string
	CreatedAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry

	retention time.Duration
	interval  time.Duration
	bus       event.Bus

	now func() time.Time
}

func NewCache(retention, interval time.Duration, bus event.Bus) *Cache {
	return &Cache{
		entries:   make(map[string]Entry),
		retention: retention,
		interval:  interval,
		bus:       bus,
		now:       time.Now,
	}
}

// Put registers an entry. Call only after the file is fully written and
// present on disk, so the sweep never observes a half-written artifact.
func (c *Cache) Put(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.now()
	}
	c.mu.Lock()
	c.entries[e.ID] = e
	c.mu.Unlock()
}

func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps on a fixed interval until ctx is cancelled. Each sweep pass
// runs synchronously inside the tick receive, so a new tick can never start
// a pass while the previous one is still walking the entries.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep deletes every entry older than the retention window along with its
// backing file. File deletion is best-effort: a file already gone is not an
// error, but the entry is still removed so no dangling metadata remains.
func (c *Cache) Sweep(ctx context.Context) {
	cutoff := c.now().Add(-c.retention)

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		if e.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(e.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", e.FilePath).Msg("artifact file removal failed")
		}
		delete(c.entries, id)
		log.Debug().Str("id", id).Str("path", e.FilePath).Msg("artifact evicted")
		if c.bus != nil {
			c.bus.Publish(ctx, event.Event{
				Type:    event.EventArtifactEvicted,
				Payload: event.ArtifactEvent{ID: id, FilePath: e.FilePath, Age: c.now().Sub(e.CreatedAt)},
			})
		}
	}
}
