package modules

import (
	"fmt"
	"strconv"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/moderation"
)

func SetFloodHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	arg := strings.ToLower(strings.TrimSpace(m.Args()))
	var limit int
	switch arg {
	case "":
		m.Reply("Use <code>/setflood &lt;number&gt;</code> to enable anti-flood, or <code>/setflood off</code> to disable it.")
		return nil
	case "off", "no", "0":
	default:
		n, err := strconv.Atoi(arg)
		if err != nil {
			m.Reply("Unrecognised argument - please use a number, 'off', or 'no'.")
			return nil
		}
		if n < moderation.MinFloodLimit {
			m.Reply(fmt.Sprintf("Antiflood has to be either 0 (disabled), or a number bigger than %d!", moderation.MinFloodLimit-1))
			return nil
		}
		limit = n
	}

	if err := Mod.SetFloodLimit(m.ChatID(), limit); err != nil {
		reportError(m, err)
		return nil
	}

	if limit == 0 {
		m.Reply("Antiflood has been disabled.")
	} else {
		m.Reply(fmt.Sprintf("Antiflood has been updated and set to %d", limit))
	}
	sendLog(m.ChatID(), chatTitle(m), "SETFLOOD",
		logField("Admin", mention(m.SenderID())),
		logField("Limit", strconv.Itoa(limit)))
	return nil
}

func FloodHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	limit, err := Store.GetFloodLimit(m.ChatID())
	if err != nil {
		log.Error("get flood limit", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if limit == 0 {
		m.Reply("I'm not currently enforcing flood control here!")
		return nil
	}
	m.Reply(fmt.Sprintf("I'm currently banning users if they send more than %d consecutive messages.", limit))
	return nil
}

// checkFlood runs antiflood for one group message. It reports whether the
// sender was removed.
func checkFlood(m *tg.NewMessage, senderIsAdmin bool) bool {
	res, err := Mod.CheckFlood(m.ChatID(), m.SenderID(), senderIsAdmin)
	if err != nil {
		log.Warn("flood check", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
	}

	switch res {
	case moderation.FloodBanned:
		m.Reply("I like to leave the flooding to natural disasters. But you, you were just a disappointment. Get out.")
		sendLog(m.ChatID(), chatTitle(m), "BAN",
			logField("User", mention(m.SenderID())),
			logField("Reason", "flooded the group"))
		return true
	case moderation.FloodDisabled:
		m.Respond("I can't kick people here, give me permissions first! Until then, I'll disable antiflood.")
		sendLog(m.ChatID(), chatTitle(m), "INFO",
			logField("Note", "Don't have kick permissions, so automatically disabled antiflood."))
	}
	return false
}

func init() {
	Mods.AddModule("Antiflood", `<b>Antiflood</b>

Ban users who send too many messages in a row.

<b>Commands:</b>
 - /flood - Show the current flood limit
 - /setflood <num|off> - Ban after more than num consecutive messages (3 or more); off disables`)
}
