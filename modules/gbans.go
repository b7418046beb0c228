package modules

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/moderation"
)

const fanoutTimeout = 30 * time.Minute

// notifyStaff tells every sudo and support user about a global action.
func notifyStaff(text string) {
	for _, id := range Cfg.Staff() {
		if _, err := Client.SendMessage(id, text); err != nil {
			log.Debug("staff notify failed", zap.Int64("user_id", id), zap.Error(err))
		}
	}
}

func GbanHandler(m *tg.NewMessage) error {
	userID, reason := extractUser(m)
	if userID == 0 {
		return nil
	}

	name := userName(userID)
	old, _ := Store.GetGbannedUser(userID)

	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	target := moderation.GbanTarget{UserID: userID, Name: name, Private: userID > 0}
	if old == nil && target.Private && userID != BotID && !isStaff(userID) {
		m.Reply("*Blows dust off of banhammer* 😉")
		notifyStaff(fmt.Sprintf("%s is gbanning user %s because:\n%s",
			mention(m.SenderID()), moderation.Mention(userID, name), html.EscapeString(orNone(reason))))
	}

	res, err := Mod.Gban(ctx, target, reason, m.SenderID())
	var fanErr *moderation.FanoutError
	switch {
	case errors.Is(err, moderation.ErrSelfTarget):
		m.Reply("You uhh...want me to punch myself?")
		return nil
	case errors.Is(err, moderation.ErrProtectedTarget):
		m.Reply("I spy, with my little eye... a staff war! Why are you guys turning on each other?")
		return nil
	case errors.Is(err, moderation.ErrNoUser):
		m.Reply("That's not a user!")
		return nil
	case errors.Is(err, moderation.ErrAlreadyGbanned):
		m.Reply("This user is already gbanned; I'd change the reason, but you haven't given me one...")
		return nil
	case errors.As(err, &fanErr):
		m.Reply("Could not gban due to: <code>" + html.EscapeString(fanErr.Err.Error()) + "</code>")
		notifyStaff(fmt.Sprintf("Could not gban %s due to: %s", moderation.Mention(userID, name), html.EscapeString(fanErr.Error())))
		return nil
	case err != nil:
		log.Error("gban", zap.Int64("user_id", userID), zap.Error(err))
		m.Reply("Could not gban: <code>" + html.EscapeString(err.Error()) + "</code>")
		return nil
	}

	if res.Updated {
		prev := ""
		if old != nil {
			prev = old.Reason
		}
		m.Reply(fmt.Sprintf("This user is already gbanned, for the following reason:\n<code>%s</code>\nI've gone and updated it with your new reason!",
			html.EscapeString(orNone(prev))))
		return nil
	}

	notifyStaff(fmt.Sprintf("%s has been successfully gbanned! Banned in %d/%d chats, %d skipped.",
		moderation.Mention(userID, name), res.Done, res.Chats, res.Skipped))
	m.Reply("Person has been gbanned.")
	return nil
}

func UngbanHandler(m *tg.NewMessage) error {
	userID, _ := extractUser(m)
	if userID == 0 {
		return nil
	}

	gbanned, err := Store.IsGbanned(userID)
	if err != nil {
		log.Error("gban lookup", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !gbanned {
		m.Reply("This user is not gbanned!")
		return nil
	}

	name := userName(userID)
	m.Reply("I'll give " + html.EscapeString(name) + " a second chance, globally.")
	notifyStaff(fmt.Sprintf("%s has ungbanned user %s", mention(m.SenderID()), moderation.Mention(userID, name)))

	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	res, err := Mod.Ungban(ctx, userID)
	if err != nil {
		m.Reply("Could not un-gban due to: <code>" + html.EscapeString(err.Error()) + "</code>")
		notifyStaff(fmt.Sprintf("Un-gban of %s failed: %s", moderation.Mention(userID, name), html.EscapeString(err.Error())))
		return nil
	}

	notifyStaff(fmt.Sprintf("%s has been un-gbanned! Lifted in %d/%d chats.", moderation.Mention(userID, name), res.Done, res.Chats))
	m.Reply("Person has been un-gbanned.")
	return nil
}

func GbanListHandler(m *tg.NewMessage) error {
	users, err := Store.GbanList()
	if err != nil {
		log.Error("gban list", zap.Error(err))
		return nil
	}
	if len(users) == 0 {
		m.Reply("There aren't any gbanned users! You're kinder than I expected...")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Screw these guys.\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "[x] %s - %d\n", u.Name, u.UserID)
		if u.Reason != "" {
			fmt.Fprintf(&sb, "Reason: %s\n", u.Reason)
		}
	}

	dir, err := os.MkdirTemp("", "gbanlist")
	if err != nil {
		log.Error("gban list file", zap.Error(err))
		return nil
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "gbanlist.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		log.Error("gban list file", zap.Error(err))
		return nil
	}
	if _, err := m.ReplyMedia(path, &tg.MediaOptions{Caption: "Here is the list of currently gbanned users."}); err != nil {
		log.Warn("send gban list", zap.Error(err))
	}
	return nil
}

func GbanStatHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(m.Args())) {
	case "on", "yes":
		if err := Store.SetChatGbans(m.ChatID(), true); err != nil {
			log.Error("gbanstat", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
			return nil
		}
		m.Reply("I've enabled gbans in this group. This will help protect you from spammers, unsavoury characters, and the biggest trolls.")
	case "off", "no":
		if err := Store.SetChatGbans(m.ChatID(), false); err != nil {
			log.Error("gbanstat", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
			return nil
		}
		m.Reply("I've disabled gbans in this group. GBans won't affect your users anymore. You'll be less protected from any trolls and spammers though!")
	default:
		enabled, _ := Store.ChatGbansEnabled(m.ChatID())
		m.Reply(fmt.Sprintf("Give me some arguments to choose a setting! on/off, yes/no!\n\nYour current setting is: <code>%t</code>\nWhen true, any gbans that happen will also happen in your group.", enabled))
	}
	return nil
}

// enforceGbans bans a gbanned sender, and silently a gbanned author of the
// replied message. It reports whether the sender was removed.
func enforceGbans(m *tg.NewMessage) bool {
	if enforceGban(m.ChatID(), m.SenderID(), "sender") {
		m.Reply("This is a bad person, they shouldn't be here!")
		return true
	}

	if m.IsReply() {
		if r, err := m.GetReplyMessage(); err == nil && r.SenderID() != 0 {
			enforceGban(m.ChatID(), r.SenderID(), "replied")
		}
	}
	return false
}

// enforceGban bans userID in chatID if they are gbanned. Failures are logged
// with role telling which user of the message it was.
func enforceGban(chatID, userID int64, role string) bool {
	banned, err := Mod.EnforceGban(chatID, userID)
	fields := []zap.Field{zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.String("role", role)}
	if err != nil {
		log.Warn("gban enforce", append(fields, zap.Error(err))...)
		return false
	}
	if banned {
		log.Info("gbanned user removed", fields...)
	}
	return banned
}

func orNone(s string) string {
	if s == "" {
		return "No reason given"
	}
	return s
}

func init() {
	Mods.AddModule("Gbans", `<b>Global Bans</b>

Bot staff can ban a user from every chat the bot moderates at once.

<b>Admin commands:</b>
 - /gbanstat <on|off> - Let gbans affect this chat (on by default)

<b>Staff commands:</b>
 - /gban <user> [reason] - Ban a user everywhere; gbanning again with a reason updates it
 - /ungban <user> - Lift a global ban
 - /gbanlist - Get the list of gbanned users as a file`)
}
