package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses bounds the strip/unescape loop for nested entity encodings.
const maxSanitizePasses = 8

// textSanitizer strips every HTML element from free text while keeping the
// characters a user typed.
type textSanitizer struct {
	policy *bluemonday.Policy
}

func newTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean repeats strip-then-unescape until the text stops changing, so markup
// smuggled in as entities is stripped once it decodes into tags.
func (s *textSanitizer) Clean(in string) string {
	out := strings.TrimSpace(in)
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			return out
		}
		out = next
	}
	// Still changing after the cap: drop what is left of any angle brackets.
	return strings.NewReplacer("<", "", ">", "").Replace(out)
}
