package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultKeywords marks posts about UI/UX design work. The list is
// overridable via the `keywords` configuration key.
var DefaultKeywords = []string{
	"UI",
	"UX",
	"interface",
	"figma",
	"فرانت",
	"طراحی رابط",
}

// Classifier reports whether post text belongs to the configured topical
// domain. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	pattern  *regexp.Regexp
	keywords []string
}

var wordLike = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// New compiles a classifier from the provided keyword list. An empty list
// falls back to DefaultKeywords. Matching is case-insensitive; keywords made
// of plain word characters match on word boundaries so that short ones like
// "UI" do not fire inside unrelated words, everything else matches as a
// substring.
func New(keywords []string) (*Classifier, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}

	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultKeywords...)
	}

	alternatives := make([]string, 0, len(cleaned))
	for _, k := range cleaned {
		quoted := regexp.QuoteMeta(k)
		if wordLike.MatchString(k) {
			quoted = `\b` + quoted + `\b`
		}
		alternatives = append(alternatives, quoted)
	}

	pattern, err := regexp.Compile(`(?i)(` + strings.Join(alternatives, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("compiling keyword pattern: %w", err)
	}

	return &Classifier{pattern: pattern, keywords: cleaned}, nil
}

// Relevant reports whether the text contains at least one configured keyword.
func (c *Classifier) Relevant(text string) bool {
	return c.pattern.MatchString(text)
}

// Keywords returns the effective keyword list, for logging.
func (c *Classifier) Keywords() []string {
	return c.keywords
}
