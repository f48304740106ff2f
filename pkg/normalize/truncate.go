package normalize

import (
	"encoding/json"
	"fmt"
)

// MaxToolOutputChars bounds the serialized size of a stored toolOutput.
const MaxToolOutputChars = 10_000

// TruncateToolOutput enforces the toolOutput size invariant. Values whose
// serialized form fits within MaxToolOutputChars pass through unchanged;
// oversize values are replaced by a string holding the first
// MaxToolOutputChars characters plus an explicit marker preserving the
// original length.
func TruncateToolOutput(v any) any {
	if v == nil {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			// Unserializable values are stored as their stringified form.
			s = fmt.Sprintf("%v", v)
		} else {
			s = string(b)
		}
		if len(s) <= MaxToolOutputChars {
			return v
		}
	} else if len(s) <= MaxToolOutputChars {
		return v
	}

	return s[:MaxToolOutputChars] + fmt.Sprintf("... [truncated, %d chars total]", len(s))
}
