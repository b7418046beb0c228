package moderation

import (
	"regexp"
	"strings"
)

// word boundary that also understands non-ASCII letters
const (
	wordStart = `(?i)(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// MatchWord reports whether keyword occurs in text as a whole word or phrase,
// ignoring case.
func MatchWord(text, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || text == "" {
		return false
	}
	re, err := regexp.Compile(wordStart + regexp.QuoteMeta(keyword) + wordEnd)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// FirstMatch returns the first keyword found in text.
func FirstMatch(text string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if MatchWord(text, k) {
			return k, true
		}
	}
	return "", false
}
