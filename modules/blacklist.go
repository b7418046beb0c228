package modules

import (
	"fmt"
	"html"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/moderation"
)

// triggerLines splits command input into one trigger per non-empty line.
func triggerLines(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		if t := strings.ToLower(strings.TrimSpace(line)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func BlacklistHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	triggers, err := Store.GetBlacklist(m.ChatID())
	if err != nil {
		log.Error("get blacklist", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if len(triggers) == 0 {
		m.Reply("There are no blacklisted messages here!")
		return nil
	}

	settings, _ := Store.GetBlacklistSettings(m.ChatID())
	action := string(settings.Action)
	if settings.Duration != "" {
		action += " (" + settings.Duration + ")"
	}

	var sb strings.Builder
	sb.WriteString("Current blacklisted words:\n")
	for _, t := range triggers {
		sb.WriteString(" - <code>" + html.EscapeString(t) + "</code>\n")
	}
	sb.WriteString("\nAction: <b>" + action + "</b>\n")
	replyChunks(m, sb.String())
	return nil
}

func AddBlacklistHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	triggers := triggerLines(m.Args())
	if len(triggers) == 0 {
		m.Reply("Tell me which words you would like to add to the blacklist.")
		return nil
	}

	added, err := Store.AddBlacklist(m.ChatID(), triggers...)
	if err != nil {
		log.Error("add blacklist", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to update the blacklist.")
		return nil
	}

	if len(triggers) == 1 {
		m.Reply("Added <code>" + html.EscapeString(triggers[0]) + "</code> to the blacklist!")
	} else {
		m.Reply(fmt.Sprintf("Added <code>%d</code> triggers to the blacklist.", added))
	}
	sendLog(m.ChatID(), chatTitle(m), "BLACKLIST_ADD",
		logField("Admin", mention(m.SenderID())),
		logField("Triggers", html.EscapeString(strings.Join(triggers, ", "))))
	return nil
}

func RemoveBlacklistHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	triggers := triggerLines(m.Args())
	if len(triggers) == 0 {
		m.Reply("Tell me which words you would like to remove from the blacklist.")
		return nil
	}

	removed := 0
	for _, t := range triggers {
		ok, err := Store.RemoveBlacklist(m.ChatID(), t)
		if err != nil {
			log.Error("remove blacklist", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
			m.Reply("Failed to update the blacklist.")
			return nil
		}
		if ok {
			removed++
		}
	}

	switch {
	case len(triggers) == 1 && removed == 1:
		m.Reply("Removed <code>" + html.EscapeString(triggers[0]) + "</code> from the blacklist!")
	case len(triggers) == 1:
		m.Reply("This isn't a blacklisted trigger...!")
	case removed == len(triggers):
		m.Reply(fmt.Sprintf("Removed <code>%d</code> triggers from the blacklist.", removed))
	case removed == 0:
		m.Reply("None of these triggers exist, so they weren't removed.")
	default:
		m.Reply(fmt.Sprintf("Removed <code>%d</code> triggers from the blacklist. %d did not exist, so were not removed.",
			removed, len(triggers)-removed))
	}
	if removed > 0 {
		sendLog(m.ChatID(), chatTitle(m), "BLACKLIST_REMOVE",
			logField("Admin", mention(m.SenderID())),
			logField("Triggers", html.EscapeString(strings.Join(triggers, ", "))))
	}
	return nil
}

func ClearBlacklistHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	triggers, err := Store.GetBlacklist(m.ChatID())
	if err != nil {
		log.Error("get blacklist", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if len(triggers) == 0 {
		m.Reply("There are no blacklisted messages here!")
		return nil
	}
	if err := Store.ClearBlacklist(m.ChatID()); err != nil {
		log.Error("clear blacklist", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to update the blacklist.")
		return nil
	}

	m.Reply(fmt.Sprintf("Removed all <code>%d</code> triggers from the blacklist.", len(triggers)))
	sendLog(m.ChatID(), chatTitle(m), "BLACKLIST_CLEAR",
		logField("Admin", mention(m.SenderID())),
		logField("Triggers", fmt.Sprint(len(triggers))))
	return nil
}

func BlacklistActionHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	args := strings.Fields(strings.ToLower(m.Args()))
	if len(args) == 0 {
		current, _ := Store.GetBlacklistSettings(m.ChatID())
		action := string(current.Action)
		if current.Duration != "" {
			action += " " + current.Duration
		}
		m.Reply(`<b>Blacklist action:</b> ` + action + `

Usage: /blaction &lt;action&gt; [duration]

<b>Actions:</b>
 - <code>delete</code> - Only delete the message
 - <code>ban</code> - Ban the sender
 - <code>mute</code> - Mute the sender
 - <code>tban 1d</code> - Ban for a while
 - <code>tmute 2h</code> - Mute for a while`)
		return nil
	}

	duration := ""
	if len(args) > 1 {
		duration = args[1]
	}
	settings, err := moderation.ParseBlacklistAction(args[0], duration)
	if err != nil {
		m.Reply("Unknown action or bad duration. Use delete, ban, mute, tban &lt;time&gt; or tmute &lt;time&gt;.")
		return nil
	}
	if err := Store.SetBlacklistSettings(m.ChatID(), settings); err != nil {
		log.Error("set blacklist action", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	text := "Blacklist action set to <b>" + string(settings.Action) + "</b>"
	if settings.Duration != "" {
		text += " for <b>" + settings.Duration + "</b>"
	}
	m.Reply(text)
	return nil
}

func init() {
	Mods.AddModule("Blacklist", `<b>Blacklist</b>

Delete messages that contain certain words, and punish whoever sent them.
Matching ignores case and only hits whole words.

<b>Commands:</b>
 - /blacklist - List the blacklisted words
 - /addblacklist <triggers> - Blacklist words, one per line
 - /unblacklist <triggers> - Remove words, one per line (also /rmblacklist)
 - /unblacklistall - Empty the blacklist
 - /blaction <action> [time] - delete, ban, mute, tban or tmute`)
}
