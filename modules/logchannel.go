package modules

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"
)

// sendLog records a moderation action. The line always goes to the zap log
// and is also posted to the chat's log channel when one is set.
func sendLog(chatID int64, title, tag string, fields ...string) {
	log.Info("action", zap.String("tag", tag), zap.Int64("chat_id", chatID), zap.Strings("fields", fields))

	channel, err := Store.GetLogChannel(chatID)
	if err != nil || channel == 0 {
		return
	}

	text := fmt.Sprintf("<b>%s:</b>\n#%s\n%s", html.EscapeString(title), tag, strings.Join(fields, "\n"))
	if _, err := Client.SendMessage(channel, text); err != nil {
		log.Warn("log channel send failed", zap.Int64("chat_id", chatID), zap.Int64("channel_id", channel), zap.Error(err))
	}
}

func logField(name, value string) string {
	return "<b>" + name + ":</b> " + value
}

func reasonField(reason string) string {
	if reason == "" {
		return logField("Reason", "none")
	}
	return logField("Reason", html.EscapeString(reason))
}

// logChannelFrom finds the channel a /setlog points at: a numeric argument,
// or a message forwarded from the channel (the command itself or its reply).
func logChannelFrom(m *tg.NewMessage) int64 {
	if id, err := strconv.ParseInt(strings.TrimSpace(m.Args()), 10, 64); err == nil && id != 0 {
		return id
	}

	fromChannel := func(msg *tg.NewMessage) int64 {
		if !msg.IsForward() {
			return 0
		}
		if _, ok := msg.Message.FwdFrom.FromID.(*tg.PeerChannel); !ok {
			return 0
		}
		return msg.Client.GetPeerID(msg.Message.FwdFrom.FromID)
	}

	if id := fromChannel(m); id != 0 {
		return id
	}
	if m.IsReply() {
		if r, err := m.GetReplyMessage(); err == nil {
			return fromChannel(r)
		}
	}
	return 0
}

func SetLogHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	channel := logChannelFrom(m)
	if channel == 0 {
		m.Reply("Reply to a message forwarded from your log channel, or give me its id: <code>/setlog -100123456789</code>")
		return nil
	}

	if _, err := Client.SendMessage(channel, "This channel has been set as the log channel for <b>"+html.EscapeString(chatTitle(m))+"</b>."); err != nil {
		m.Reply("I can't post in that channel. Make sure I'm an admin there.")
		return nil
	}

	if err := Store.SetLogChannel(m.ChatID(), channel); err != nil {
		log.Error("set log channel", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to save the log channel.")
		return nil
	}

	m.Reply("Successfully set log channel!")
	return nil
}

func UnsetLogHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	channel, _ := Store.GetLogChannel(m.ChatID())
	removed, err := Store.UnsetLogChannel(m.ChatID())
	if err != nil {
		log.Error("unset log channel", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to unset the log channel.")
		return nil
	}
	if !removed {
		m.Reply("No log channel has been set yet!")
		return nil
	}

	Client.SendMessage(channel, "Channel has been unlinked from <b>"+html.EscapeString(chatTitle(m))+"</b>.")
	m.Reply("Log channel has been un-set.")
	return nil
}

func init() {
	Mods.AddModule("Logs", `<b>Log Channel</b>

Keep a record of every moderation action in a channel.

<b>Commands:</b>
 - /setlog - Reply to a message forwarded from the channel, or pass the channel id
 - /unsetlog - Stop logging to the channel

<b>Logged actions:</b> bans, kicks, mutes, warns, blacklist and flood actions.`)
}
