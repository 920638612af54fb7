package revision

import (
	"regexp"
)

// Matcher extracts revision identifiers from archive object keys of the
// form <prefix><revision>.zip, where the revision holds no dot.
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher quotes prefix so characters such as "." or "+" match literally.
func NewMatcher(prefix string) *Matcher {
	return &Matcher{re: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `([^.]*)\.zip$`)}
}

// Match returns the revision encoded in key, or false when key is not a
// revision archive under the prefix.
func (m *Matcher) Match(key string) (string, bool) {
	sub := m.re.FindStringSubmatch(key)
	if sub == nil {
		return "", false
	}
	return sub[1], true
}
