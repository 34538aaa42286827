package extract

import (
	"regexp"
	"strings"
)

// Telegram username rules: @ followed by letters, digits and underscores,
// between 5 and 32 characters long.
const (
	MinHandleLen = 5
	MaxHandleLen = 32
)

// Handle is a contact identifier pulled out of free text, sigil included.
type Handle string

// String returns the handle with its @ sigil.
func (h Handle) String() string { return string(h) }

// Bare returns the handle without the @ sigil.
func (h Handle) Bare() string { return strings.TrimPrefix(string(h), "@") }

var handleRun = regexp.MustCompile(`@[A-Za-z0-9_]+`)

// Extract returns the first well-formed handle in reading order. Runs of
// identifier characters outside the platform length bounds are skipped
// entirely rather than truncated to fit. The second return value is false
// when the text contains no handle.
func Extract(text string) (Handle, bool) {
	for _, match := range handleRun.FindAllString(text, -1) {
		if n := len(match) - 1; n >= MinHandleLen && n <= MaxHandleLen {
			return Handle(match), true
		}
	}

	return "", false
}
