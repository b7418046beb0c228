package moderation

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"modbot/modules/db"
)

// MaxMessageLength is the platform limit for one text message.
const MaxMessageLength = 4096

// SplitMessage breaks text on line boundaries into chunks the platform
// accepts. A single line longer than the limit is cut hard.
func SplitMessage(text string) []string {
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for line := range strings.SplitAfterSeq(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > MaxMessageLength {
			flush()
		}
		for n > MaxMessageLength {
			r := []rune(line)
			chunks = append(chunks, string(r[:MaxMessageLength]))
			line = string(r[MaxMessageLength:])
			n -= MaxMessageLength
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}

// SplitQuotes returns the first token of text, which may be double-quoted to
// contain spaces, and the remainder.
func SplitQuotes(text string) (string, string) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) {
		if end := strings.Index(text[1:], `"`); end > 0 {
			return text[1 : end+1], strings.TrimSpace(text[end+2:])
		}
	}
	first, rest, _ := strings.Cut(text, " ")
	return first, strings.TrimSpace(rest)
}

var durationRe = regexp.MustCompile(`^(\d+)([mhdw])$`)

// ParseDuration reads durations such as 30m, 2h, 1d or 1w.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}

	unit := time.Minute
	switch m[2] {
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

var buttonRe = regexp.MustCompile(`\[([^\]]+)\]\((buttonurl:)?([^)\s]+?)(:same)?\)`)

// ParseButtons strips button markup from text and returns the buttons. Both
// [label](buttonurl:url[:same]) and plain [label](https://url) are accepted.
// A :same suffix puts the button on the previous row. Escaped brackets are
// left alone.
func ParseButtons(text string) (string, []db.Button) {
	var buttons []db.Button
	var out strings.Builder
	prev := 0

	for _, loc := range buttonRe.FindAllStringSubmatchIndex(text, -1) {
		if escaped(text, loc[0]) {
			continue
		}
		url := strings.TrimPrefix(text[loc[6]:loc[7]], "//")
		if loc[4] < 0 && !strings.Contains(url, "://") {
			continue
		}
		if !strings.Contains(url, "://") {
			url = "https://" + url
		}
		buttons = append(buttons, db.Button{
			Text:     text[loc[2]:loc[3]],
			URL:      url,
			SameLine: loc[8] >= 0,
		})
		out.WriteString(text[prev:loc[0]])
		prev = loc[1]
	}
	out.WriteString(text[prev:])
	return strings.TrimSpace(out.String()), buttons
}

// escaped reports whether the byte at i is preceded by an odd number of
// backslashes.
func escaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// ButtonRows lays buttons out in rows, joining SameLine buttons to the row
// before them.
func ButtonRows(buttons []db.Button) [][]db.Button {
	var rows [][]db.Button
	for _, b := range buttons {
		if b.SameLine && len(rows) > 0 {
			rows[len(rows)-1] = append(rows[len(rows)-1], b)
			continue
		}
		rows = append(rows, []db.Button{b})
	}
	return rows
}

// Mention renders an HTML link to the user.
func Mention(userID int64, name string) string {
	if name == "" {
		name = strconv.FormatInt(userID, 10)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}
