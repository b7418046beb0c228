package moderation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"modbot/modules/db"
)

type UsernameResolver interface {
	UserIDByUsername(username string) (int64, error)
}

// TextMention is a mention entity that opens the command arguments. Rest is
// the text following it.
type TextMention struct {
	UserID int64
	Rest   string
}

type ExtractInput struct {
	Args          string
	Mention       *TextMention
	ReplySenderID int64
}

// ExtractUser finds the user a command is aimed at and the text after it.
// A text mention wins over @username, which wins over a numeric id, which
// wins over the sender of the replied message.
func ExtractUser(in ExtractInput, users UsernameResolver) (int64, string, error) {
	args := strings.TrimSpace(in.Args)
	first, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch {
	case in.Mention != nil && in.Mention.UserID != 0:
		return in.Mention.UserID, strings.TrimSpace(in.Mention.Rest), nil

	case strings.HasPrefix(first, "@") && len(first) > 1:
		id, err := users.UserIDByUsername(first)
		if errors.Is(err, db.ErrNotFound) {
			return 0, "", fmt.Errorf("%w: %s", ErrUnknownUser, first)
		}
		if err != nil {
			return 0, "", err
		}
		return id, rest, nil

	case isUserID(first):
		id, _ := strconv.ParseInt(first, 10, 64)
		return id, rest, nil

	case in.ReplySenderID != 0:
		return in.ReplySenderID, args, nil
	}
	return 0, "", ErrNoUser
}

func isUserID(s string) bool {
	if s == "" {
		return false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return err == nil && id > 0
}
