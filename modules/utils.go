package modules

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
	"modbot/modules/moderation"
)

func groupOnly(m *tg.NewMessage) bool {
	if m.IsPrivate() {
		m.Reply("This command is meant to be used in group chats, not in PM!")
		return false
	}
	return true
}

func isAdmin(chatID, userID int64) bool {
	if Cfg.IsSudo(userID) {
		return true
	}
	ok, err := Mod.IsAdmin(chatID, userID)
	if err != nil {
		log.Warn("admin check failed", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

// adminOnly is the guard for admin commands. It replies when the sender is
// not allowed.
func adminOnly(m *tg.NewMessage) bool {
	if !groupOnly(m) {
		return false
	}
	if !isAdmin(m.ChatID(), m.SenderID()) {
		m.Reply("Who dis non-admin telling me what to do?")
		return false
	}
	return true
}

func botCanRestrict(m *tg.NewMessage) bool {
	me, err := members.Member(m.ChatID(), BotID)
	if err == nil && me.CanRestrict {
		return true
	}
	m.Reply("I can't restrict people here! Make sure I'm admin and can restrict other members.")
	return false
}

// textMention returns the first mention-name entity and the text after it.
// Entity offsets count UTF-16 code units.
func textMention(m *tg.NewMessage) *moderation.TextMention {
	if m.Message == nil {
		return nil
	}
	for _, e := range m.Message.Entities {
		ent, ok := e.(*tg.MessageEntityMentionName)
		if !ok {
			continue
		}
		units := utf16.Encode([]rune(m.Text()))
		end := int(ent.Offset + ent.Length)
		if end > len(units) {
			end = len(units)
		}
		return &moderation.TextMention{
			UserID: ent.UserID,
			Rest:   string(utf16.Decode(units[end:])),
		}
	}
	return nil
}

// extractUser resolves the user a command targets and the reason following
// it. On failure it replies to the sender and returns 0.
func extractUser(m *tg.NewMessage) (int64, string) {
	in := moderation.ExtractInput{Args: m.Args(), Mention: textMention(m)}
	if m.IsReply() {
		if r, err := m.GetReplyMessage(); err == nil {
			in.ReplySenderID = r.SenderID()
		}
	}

	id, reason, err := moderation.ExtractUser(in, Store)
	switch {
	case err == nil:
		return id, reason
	case errors.Is(err, moderation.ErrUnknownUser):
		m.Reply("I don't know this user. Forward me one of their messages and I'll be able to find them.")
	case errors.Is(err, moderation.ErrNoUser):
		m.Reply("You don't seem to be referring to a user.")
	default:
		log.Error("extract user", zap.Error(err))
		m.Reply("Couldn't look up that user.")
	}
	return 0, ""
}

// userName returns a display name, preferring the stored record.
func userName(userID int64) string {
	if u, err := Store.GetUser(userID); err == nil && u.FirstName != "" {
		return u.FirstName
	}
	if u, err := Client.GetUser(userID); err == nil && u != nil {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return fmt.Sprint(userID)
}

func mention(userID int64) string {
	return moderation.Mention(userID, userName(userID))
}

func senderName(m *tg.NewMessage) string {
	if m.Sender != nil && m.Sender.FirstName != "" {
		return m.Sender.FirstName
	}
	return fmt.Sprint(m.SenderID())
}

// matchText is what filters look at: message text or caption, or the emoji
// of a sticker.
func matchText(m *tg.NewMessage) string {
	if t := m.Text(); t != "" {
		return t
	}
	if s := m.Sticker(); s != nil {
		for _, a := range s.Attributes {
			if st, ok := a.(*tg.DocumentAttributeSticker); ok {
				return st.Alt
			}
		}
	}
	return ""
}

// storedMedia returns the type and bot file id of a message's media.
func storedMedia(msg *tg.NewMessage) (string, string) {
	if !msg.IsMedia() || msg.File == nil {
		return "", ""
	}
	switch {
	case msg.Sticker() != nil:
		return "sticker", msg.File.FileID
	case msg.Animation() != nil:
		return "animation", msg.File.FileID
	case msg.Photo() != nil:
		return "photo", msg.File.FileID
	case msg.Video() != nil:
		return "video", msg.File.FileID
	case msg.Audio() != nil:
		return "audio", msg.File.FileID
	case msg.Document() != nil:
		return "document", msg.File.FileID
	}
	return "", ""
}

func buildKeyboard(buttons []db.Button) *tg.ReplyInlineMarkup {
	if len(buttons) == 0 {
		return nil
	}
	kb := tg.NewKeyboard()
	for _, row := range moderation.ButtonRows(buttons) {
		var btns []tg.KeyboardButton
		for _, b := range row {
			btns = append(btns, tg.Button.URL(b.Text, b.URL))
		}
		kb.AddRow(btns...)
	}
	return kb.Build()
}

// sendStored sends a saved text or media message with its buttons. A
// non-zero replyTo makes it a reply.
func sendStored(chatID int64, replyTo int32, text, fileID string, buttons []db.Button) (*tg.NewMessage, error) {
	keyboard := buildKeyboard(buttons)
	if fileID != "" {
		media, err := tg.ResolveBotFileID(fileID)
		if err != nil {
			return nil, fmt.Errorf("resolve file id: %w", err)
		}
		opts := &tg.MediaOptions{Caption: text, ReplyID: replyTo}
		if keyboard != nil {
			opts.ReplyMarkup = keyboard
		}
		return Client.SendMedia(chatID, media, opts)
	}

	opts := &tg.SendOptions{ReplyID: replyTo}
	if keyboard != nil {
		opts.ReplyMarkup = keyboard
	}
	return Client.SendMessage(chatID, text, opts)
}

// replyChunks replies with text split to the message size limit.
func replyChunks(m *tg.NewMessage, text string) {
	for _, chunk := range moderation.SplitMessage(text) {
		if _, err := m.Respond(chunk); err != nil {
			log.Warn("send chunk", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
			return
		}
	}
}

func chatTitle(m *tg.NewMessage) string {
	if m.Channel != nil {
		return m.Channel.Title
	}
	if m.Chat != nil {
		return m.Chat.Title
	}
	return fmt.Sprint(m.ChatID())
}

// reportError answers a failed moderation call. Refusals get their usual
// wording; anything else is logged.
func reportError(m *tg.NewMessage, err error) {
	switch {
	case errors.Is(err, moderation.ErrSelfTarget):
		m.Reply("I'm not gonna do that to myself, are you crazy?")
	case errors.Is(err, moderation.ErrProtectedTarget):
		m.Reply("That user is part of the bot staff. I can't act against them.")
	case errors.Is(err, moderation.ErrAdminTarget):
		m.Reply("I really wish I could do that to admins...")
	default:
		log.Error("moderation call failed",
			zap.Int64("chat_id", m.ChatID()), zap.Int64("user_id", m.SenderID()), zap.Error(err))
		m.Reply("Well damn, I can't do that: <code>" + html.EscapeString(err.Error()) + "</code>")
	}
}
