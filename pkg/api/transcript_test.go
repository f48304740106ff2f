package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestSpliceTranscriptResult(t *testing.T) {
	t.Run("latest assistant turn wins", func(t *testing.T) {
		path := writeTranscript(t, `
{"type":"user","message":{"content":[{"type":"text","text":"fix the bug"}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"looking at it"}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"fixed"},{"type":"text","text":"see store.go"}]}}
`)
		event := map[string]any{"hook_event_name": "Stop", "transcript_path": path}
		spliceTranscriptResult(event)
		assert.Equal(t, "fixed\nsee store.go", event["result"])
	})

	t.Run("existing result is never overwritten", func(t *testing.T) {
		path := writeTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"new"}]}}`)
		event := map[string]any{"transcript_path": path, "result": "original"}
		spliceTranscriptResult(event)
		assert.Equal(t, "original", event["result"])
	})

	t.Run("missing file is silent", func(t *testing.T) {
		event := map[string]any{"transcript_path": "/nonexistent/transcript.jsonl"}
		spliceTranscriptResult(event)
		_, ok := event["result"]
		assert.False(t, ok)
	})

	t.Run("no transcript path is silent", func(t *testing.T) {
		event := map[string]any{"hook_event_name": "Stop"}
		spliceTranscriptResult(event)
		_, ok := event["result"]
		assert.False(t, ok)
	})

	t.Run("malformed lines are skipped", func(t *testing.T) {
		path := writeTranscript(t, `
not json at all
{"type":"assistant","message":{"content":[{"type":"text","text":"survived"}]}}
{"type":"assistant"}
`)
		event := map[string]any{"transcript_path": path}
		spliceTranscriptResult(event)
		assert.Equal(t, "survived", event["result"])
	})

	t.Run("tool-only assistant turns carry no text", func(t *testing.T) {
		path := writeTranscript(t, `
{"type":"assistant","message":{"content":[{"type":"text","text":"earlier text"}]}}
{"type":"assistant","message":{"content":[{"type":"tool_use","text":""}]}}
`)
		event := map[string]any{"transcript_path": path}
		spliceTranscriptResult(event)
		assert.Equal(t, "earlier text", event["result"])
	})
}
