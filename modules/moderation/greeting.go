package moderation

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultWelcome = "Hey {first}, how are you?"
	DefaultGoodbye = "Nice knowing ya!"
)

type GreetUser struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

type GreetChat struct {
	Title   string
	Members int
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// FormatGreeting fills the placeholders of tmpl. Names are HTML-escaped;
// unknown placeholders are left as written.
func FormatGreeting(tmpl string, u GreetUser, chat GreetChat) string {
	first := html.EscapeString(u.FirstName)
	if first == "" {
		first = "PersonWithNoName"
	}
	last := html.EscapeString(u.LastName)
	fullname := first
	if last != "" {
		fullname = first + " " + last
	} else {
		last = first
	}
	mention := Mention(u.ID, u.FirstName)
	username := mention
	if u.Username != "" {
		username = "@" + html.EscapeString(u.Username)
	}

	values := map[string]string{
		"first":    first,
		"last":     last,
		"fullname": fullname,
		"username": username,
		"mention":  mention,
		"id":       strconv.FormatInt(u.ID, 10),
		"count":    strconv.Itoa(chat.Members),
		"chatname": html.EscapeString(chat.Title),
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(p string) string {
		if v, ok := values[strings.ToLower(p[1:len(p)-1])]; ok {
			return v
		}
		return p
	})
}
