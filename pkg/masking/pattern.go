package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns covers credentials that commonly leak through agent tool
// output: provider API keys, CI and chat tokens, and DSN passwords.
var builtinPatterns = map[string]struct {
	Pattern     string
	Replacement string
}{
	"api_key": {
		Pattern:     `\bsk-[A-Za-z0-9_-]{20,}\b`,
		Replacement: "***MASKED_API_KEY***",
	},
	"bearer_token": {
		Pattern:     `(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`,
		Replacement: "Bearer ***MASKED_TOKEN***",
	},
	"slack_token": {
		Pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		Replacement: "***MASKED_SLACK_TOKEN***",
	},
	"github_token": {
		Pattern:     `\bgh[pousr]_[A-Za-z0-9]{36,}\b`,
		Replacement: "***MASKED_GITHUB_TOKEN***",
	},
	"aws_access_key": {
		Pattern:     `\bAKIA[0-9A-Z]{16}\b`,
		Replacement: "***MASKED_AWS_KEY***",
	},
	"url_password": {
		Pattern:     `://([^:/@\s]+):([^@/\s]+)@`,
		Replacement: "://$1:***MASKED***@",
	},
}

// compileBuiltinPatterns compiles the built-in set. Invalid patterns are
// logged and skipped.
func compileBuiltinPatterns() []*CompiledPattern {
	patterns := make([]*CompiledPattern, 0, len(builtinPatterns))
	for name, p := range builtinPatterns {
		compiled, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		patterns = append(patterns, &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: p.Replacement,
		})
	}
	return patterns
}
