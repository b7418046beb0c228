package modules

import (
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf16"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"
)

var randomAFKMessages = []string{
	"<b>%s</b> is AFK since <b>%s</b>.",
	"<b>%s</b> is AFK for <b>%s</b>.",
	"<b>%s</b> has been AFK since <b>%s</b>.",
	"<b>%s</b> stepped away and is AFK for <b>%s</b>.",
	"<b>%s</b> is currently AFK for <b>%s</b>.",
}

func markAFK(m *tg.NewMessage, reason string) {
	if err := Store.SetAFK(m.SenderID(), strings.TrimSpace(reason)); err != nil {
		log.Error("set afk", zap.Int64("user_id", m.SenderID()), zap.Error(err))
		return
	}
	m.Reply(html.EscapeString(senderName(m)) + " is now AFK!")
}

func AFKHandler(m *tg.NewMessage) error {
	markAFK(m, m.Args())
	return nil
}

func isCommand(m *tg.NewMessage, name string) bool {
	text := strings.ToLower(m.Text())
	for _, p := range []string{"/", "!"} {
		if cmd, _, _ := strings.Cut(text, " "); cmd == p+name || strings.HasPrefix(cmd, p+name+"@") {
			return true
		}
	}
	return false
}

// afkWatcher handles "brb", clears the AFK state of returning users and
// answers mentions of users who are away.
func afkWatcher(m *tg.NewMessage) {
	text := m.Text()
	if word, rest, _ := strings.Cut(text, " "); strings.EqualFold(word, "brb") {
		markAFK(m, rest)
		return
	}

	if !isCommand(m, "afk") {
		afk, err := Store.RemoveAFK(m.SenderID())
		if err != nil {
			log.Warn("remove afk", zap.Int64("user_id", m.SenderID()), zap.Error(err))
		}
		if afk != nil {
			m.Reply(fmt.Sprintf("%s is no longer AFK! They were away for %s.",
				html.EscapeString(senderName(m)), time.Since(afk.Since).Round(time.Second)))
		}
	}

	for _, id := range mentionedUsers(m) {
		if id == m.SenderID() {
			continue
		}
		afk, err := Store.GetAFK(id)
		if err != nil || afk == nil {
			continue
		}
		msg := fmt.Sprintf(randomAFKMessages[rand.IntN(len(randomAFKMessages))],
			html.EscapeString(userName(id)), time.Since(afk.Since).Round(time.Second))
		if afk.Reason != "" {
			msg += "\nReason: " + html.EscapeString(afk.Reason)
		}
		m.Reply(msg)
	}
}

// mentionedUsers returns the users a message points at: mention entities
// and the author of the replied message.
func mentionedUsers(m *tg.NewMessage) []int64 {
	seen := map[int64]bool{}
	var ids []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if m.Message != nil && len(m.Message.Entities) > 0 {
		units := utf16.Encode([]rune(m.Text()))
		for _, e := range m.Message.Entities {
			switch ent := e.(type) {
			case *tg.MessageEntityMentionName:
				add(ent.UserID)
			case *tg.MessageEntityMention:
				start, end := int(ent.Offset), int(ent.Offset+ent.Length)
				if start < 0 || end > len(units) || start >= end {
					continue
				}
				username := string(utf16.Decode(units[start:end]))
				if id, err := Store.UserIDByUsername(username); err == nil {
					add(id)
				}
			}
		}
	}

	if m.IsReply() {
		if r, err := m.GetReplyMessage(); err == nil {
			add(r.SenderID())
		}
	}
	return ids
}

func init() {
	Mods.AddModule("AFK", `<b>AFK</b>

Let people know you are away.

<b>Commands:</b>
 - /afk [reason] - Mark yourself as away
 - brb [reason] - Same as /afk, without the slash

Anyone who mentions you or replies to you while you are away gets told so. Your next message clears it.`)
}
