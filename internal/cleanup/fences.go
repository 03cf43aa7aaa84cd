// Package cleanup normalises model output that ignored the "no markdown" instruction.
package cleanup

import "strings"

const fence = "```"

// StripCodeFences removes a surrounding markdown code block (```json ... ```)
// and trims the result. Text without a leading fence is only trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}

	// Drop the opening fence line, including any language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, fence)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}
