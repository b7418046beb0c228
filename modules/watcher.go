package modules

import (
	"fmt"
	"html"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
)

// MessageWatcher runs the passive checks on every incoming message. The
// order matters: a gbanned or flooding sender is removed before any filter
// looks at the text.
func MessageWatcher(m *tg.NewMessage) error {
	if m.Sender != nil && m.SenderID() > 0 {
		if err := Store.UpdateUser(db.User{ID: m.SenderID(), Username: m.Sender.Username, FirstName: m.Sender.FirstName}); err != nil {
			log.Warn("update user", zap.Int64("user_id", m.SenderID()), zap.Error(err))
		}
	}
	if m.IsPrivate() {
		return nil
	}
	if err := Store.UpdateChat(db.Chat{ID: m.ChatID(), Title: chatTitle(m)}); err != nil {
		log.Warn("update chat", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
	}

	if enforceGbans(m) {
		return nil
	}

	admin := isAdmin(m.ChatID(), m.SenderID())
	if checkFlood(m, admin) {
		return nil
	}

	if !admin && !isStaff(m.SenderID()) {
		if filterMessage(m) {
			return nil
		}
	}

	if hashNote(m) {
		return nil
	}
	afkWatcher(m)
	return nil
}

// filterMessage applies the blacklist and then the warn filters. It reports
// whether the message was acted on.
func filterMessage(m *tg.NewMessage) bool {
	text := matchText(m)
	if text == "" {
		return false
	}

	hit, err := Mod.CheckBlacklist(m.ChatID(), m.SenderID(), m.ID, text)
	if err != nil {
		log.Warn("blacklist check", zap.Int64("chat_id", m.ChatID()), zap.Int64("user_id", m.SenderID()), zap.Error(err))
	}
	if hit != nil {
		fields := []string{
			logField("User", mention(m.SenderID())),
			logField("Trigger", "<code>"+html.EscapeString(hit.Trigger)+"</code>"),
			logField("Action", string(hit.Action)),
		}
		if hit.Duration > 0 {
			fields = append(fields, logField("Duration", hit.Duration.String()))
		}
		sendLog(m.ChatID(), chatTitle(m), "BLACKLIST", fields...)
		return true
	}

	// Commands are not checked against warn filters, so /addwarn does not
	// trip the filter it creates.
	if strings.HasPrefix(text, "/") || strings.HasPrefix(text, "!") {
		return false
	}

	f, out, err := Mod.FilterWarn(m.ChatID(), m.SenderID(), text)
	if err != nil {
		log.Warn("warn filter", zap.Int64("chat_id", m.ChatID()), zap.Int64("user_id", m.SenderID()), zap.Error(err))
		return false
	}
	if out == nil {
		return false
	}
	log.Debug("warn filter fired", zap.Int64("chat_id", m.ChatID()), zap.String("keyword", f.Keyword))
	announceWarn(m, m.SenderID(), 0, out)
	return true
}

// ServiceWatcher reacts to service messages. A group upgraded to a
// supergroup keeps its settings under the new id.
func ServiceWatcher(m *tg.NewMessage) error {
	if joinLeaveNotice(m.Action) {
		cleanService(m)
		return nil
	}

	switch a := m.Action.(type) {
	case *tg.MessageActionChatMigrateTo:
		oldID := m.ChatID()
		newID, err := migratedChatID(a.ChannelID)
		if err != nil {
			return nil
		}
		if err := Store.MigrateChat(oldID, newID); err != nil {
			log.Error("migrate chat", zap.Int64("old_chat_id", oldID), zap.Int64("new_chat_id", newID), zap.Error(err))
			return nil
		}
		log.Info("chat migrated", zap.Int64("old_chat_id", oldID), zap.Int64("new_chat_id", newID))
		Client.SendMessage(newID, "Successfully migrated!")
	}
	return nil
}

// migratedChatID returns the key the upgraded chat's records live under.
// The client reports chat ids bare, without the -100 prefix, for groups and
// supergroups alike, so the channel id is used as is.
func migratedChatID(channelID int64) (int64, error) {
	if channelID <= 0 {
		return 0, fmt.Errorf("bad channel id %d", channelID)
	}
	return channelID, nil
}
