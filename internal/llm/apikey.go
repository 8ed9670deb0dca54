package llm

import (
	"fmt"
	"strings"
)

// maskAPIKey renders key safe for a startup log line: empty keys are called
// out explicitly, short keys are fully starred, and longer keys keep their
// first and last two characters so two runs against different keys are
// distinguishable without exposing either one.
func maskAPIKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return fmt.Sprintf("%s%s%s", key[:2], strings.Repeat("*", len(key)-4), key[len(key)-2:])
}
