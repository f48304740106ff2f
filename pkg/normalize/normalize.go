// Package normalize translates per-source raw payloads into the canonical
// event model. Normalization is pure and total: it performs no I/O and no
// raw payload is ever rejected — unrecognized shapes become system events
// carrying the original payload under meta.rawEvent.
package normalize

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// handlerFunc fills in the category/type/payload fields of a partially
// built event from the raw payload.
type handlerFunc func(e *models.Event, raw map[string]any)

// dialect is one producer's mapping table: a discriminator extractor plus
// a handler per discriminator value. Adding a producer is additive — a new
// dialect entry, no changes to the dispatch.
type dialect struct {
	key   func(raw map[string]any) string
	table map[string]handlerFunc
}

var dialects = map[string]dialect{
	models.SourceClaudeCode: {key: claudeKey, table: claudeTable},
	models.SourceCodex:      {key: codexKey, table: codexTable},
	models.SourceOpenCode:   {key: opencodeKey, table: opencodeTable},
	// Sandbox runners write opencode-compatible jsonl lines.
	models.SourceSandbox: {key: opencodeKey, table: opencodeTable},
}

// Normalize maps a raw producer payload to a canonical Event. The event id
// is freshly assigned; the timestamp comes from the payload's numeric
// "timestamp" field when present, otherwise now.
func Normalize(source, sessionID string, raw map[string]any) *models.Event {
	e := &models.Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Source:    source,
		Timestamp: timestampFrom(raw),
	}

	if d, ok := dialects[source]; ok {
		if h, ok := d.table[d.key(raw)]; ok {
			h(e, raw)
			return e
		}
		fallbackSystem(e, d.key(raw), raw)
		return e
	}

	fallbackSystem(e, "", raw)
	return e
}

// fallbackSystem is the catch-all for unknown dialects and unknown
// discriminator values: a system event preserving the raw payload.
func fallbackSystem(e *models.Event, rawType string, raw map[string]any) {
	e.Category = models.CategorySystem
	if rawType == "" {
		rawType = "unknown"
	}
	e.Type = rawType
	e.Meta = map[string]any{"rawEvent": raw}
}

func timestampFrom(raw map[string]any) int64 {
	switch v := raw["timestamp"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return time.Now().UnixMilli()
}

// --- shared payload helpers ---

// firstString returns the first key whose value is a non-empty string.
func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// childMap returns raw[key] as a map, or an empty map.
func childMap(raw map[string]any, key string) map[string]any {
	if m, ok := raw[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func setText(e *models.Event, raw map[string]any, keys ...string) {
	if s, ok := firstString(raw, keys...); ok {
		e.Text = models.StrPtr(s)
	}
}

func metaSet(e *models.Event, key string, value any) {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
}
