package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// DirListener tails a directory of JSONL session logs, as written by
// sandboxed agent runners that cannot reach the ingest API. One file is one
// session; the session id is the file name without extension.
type DirListener struct {
	dir      string
	interval time.Duration

	mu      sync.Mutex
	offsets map[string]int64
	stop    chan struct{}
	once    sync.Once
}

// NewDirListener creates a DirListener polling dir at the given interval.
func NewDirListener(dir string, interval time.Duration) *DirListener {
	return &DirListener{
		dir:      dir,
		interval: interval,
		offsets:  make(map[string]int64),
		stop:     make(chan struct{}),
	}
}

// Name implements Listener.
func (d *DirListener) Name() string { return models.SourceSandbox }

// Start implements Listener. Polls until ctx is cancelled or Stop is called.
func (d *DirListener) Start(ctx context.Context, h Handler) error {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-ticker.C:
				if err := d.SyncNow(ctx, h); err != nil {
					h.OnError(ctx, d.Name(), err)
				}
			}
		}
	}()
	return nil
}

// Stop implements Listener.
func (d *DirListener) Stop() {
	d.once.Do(func() { close(d.stop) })
}

// SyncNow implements Listener: reads every log file past its last consumed
// offset and hands new lines to the handler.
func (d *DirListener) SyncNow(ctx context.Context, h Handler) error {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*.jsonl"))
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := d.syncFile(ctx, h, path); err != nil {
			h.OnError(ctx, d.Name(), err)
		}
	}
	return nil
}

func (d *DirListener) syncFile(ctx context.Context, h Handler, path string) error {
	d.mu.Lock()
	offset := d.offsets[path]
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return err
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	consumed := offset

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1 // newline

		if len(line) == 0 {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(line, &payload); err != nil {
			// Skip the bad line but keep the offset moving.
			continue
		}
		h.OnEntry(ctx, d.Name(), Entry{SessionID: sessionID, Payload: payload})
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.offsets[path] = consumed
	d.mu.Unlock()
	return nil
}
