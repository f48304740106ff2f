// Package sources ingests session logs from registered listeners that pull
// from places the push API cannot reach: sandboxed runners writing JSONL
// files, batch exports, and similar. Entries flow through the same
// normalize-append-publish pipeline as the ingest endpoint.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentflow-dev/agentflow/pkg/ingest"
	"github.com/agentflow-dev/agentflow/pkg/normalize"
)

// Entry is one raw observation pulled from a source.
type Entry struct {
	SessionID string
	Payload   map[string]any
}

// Handler receives a listener's output. Implemented by the Registry.
type Handler interface {
	OnEntry(ctx context.Context, source string, entry Entry)
	OnError(ctx context.Context, source string, err error)
}

// Listener pulls entries from one external source.
type Listener interface {
	// Name is the source tag recorded on every entry's events.
	Name() string
	// Start begins background collection. Non-blocking; collection stops
	// when ctx is cancelled or Stop is called.
	Start(ctx context.Context, h Handler) error
	// Stop halts collection.
	Stop()
	// SyncNow performs one synchronous collection pass.
	SyncNow(ctx context.Context, h Handler) error
}

// Registry owns the registered listeners and bridges their callbacks into
// the ingest pipeline.
type Registry struct {
	recorder *ingest.Recorder

	mu        sync.Mutex
	listeners map[string]Listener

	logger *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(recorder *ingest.Recorder) *Registry {
	return &Registry{
		recorder:  recorder,
		listeners: make(map[string]Listener),
		logger:    slog.Default().With("component", "source-registry"),
	}
}

// Register adds a listener. Last registration wins on name collision.
func (r *Registry) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[l.Name()] = l
}

// StartAll starts every registered listener.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, l := range r.listeners {
		if err := l.Start(ctx, r); err != nil {
			r.logger.Error("Failed to start source listener", "source", name, "error", err)
			_ = r.recorder.Publisher().PublishSourceError(name, err)
			continue
		}
		_ = r.recorder.Publisher().PublishSourceStatus(name, "started")
	}
}

// StopAll stops every registered listener.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, l := range r.listeners {
		l.Stop()
		_ = r.recorder.Publisher().PublishSourceStatus(name, "stopped")
	}
}

// SyncNow runs one synchronous collection pass for a named source.
func (r *Registry) SyncNow(ctx context.Context, name string) error {
	r.mu.Lock()
	l, ok := r.listeners[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}

	_ = r.recorder.Publisher().PublishSourceStatus(name, "syncing")
	return l.SyncNow(ctx, r)
}

// OnEntry normalizes and records one entry, then announces it.
func (r *Registry) OnEntry(ctx context.Context, source string, entry Entry) {
	event := normalize.Normalize(source, entry.SessionID, entry.Payload)
	if _, err := r.recorder.Record(ctx, nil, event); err != nil {
		r.logger.Error("Failed to record source entry",
			"source", source, "session_id", entry.SessionID, "error", err)
		_ = r.recorder.Publisher().PublishSourceError(source, err)
		return
	}
	_ = r.recorder.Publisher().PublishSourceEntry(source, event.SessionID, event.ID)
}

// OnError reports a listener failure. Listeners keep running; a bad pass is
// retried on the next interval.
func (r *Registry) OnError(ctx context.Context, source string, err error) {
	r.logger.Warn("Source listener error", "source", source, "error", err)
	_ = r.recorder.Publisher().PublishSourceError(source, err)
}
