// Package masking strips credentials from events before they are stored.
// Agent tool output routinely echoes environment variables, DSNs and API
// responses; masking keeps leaked secrets out of the database and out of
// every downstream surface (query API, WebSocket frames, analyzer prompts).
package masking

// Service applies the built-in masking patterns to event payloads.
// Masking is best-effort: values that fail to match are left untouched.
type Service struct {
	patterns []*CompiledPattern
}

// NewService creates a Service with the built-in pattern set compiled.
func NewService() *Service {
	return &Service{patterns: compileBuiltinPatterns()}
}

// MaskString applies every pattern to s.
func (s *Service) MaskString(in string) string {
	for _, p := range s.patterns {
		in = p.Regex.ReplaceAllString(in, p.Replacement)
	}
	return in
}

// MaskValue walks a decoded JSON value and masks every string in it.
// Non-string scalars pass through unchanged.
func (s *Service) MaskValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.MaskString(val)
	case map[string]any:
		for k, child := range val {
			val[k] = s.MaskValue(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = s.MaskValue(child)
		}
		return val
	}
	return v
}
