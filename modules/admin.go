package modules

import (
	"errors"
	"html"
	"strings"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/moderation"
)

// restrictTarget runs the common guards of ban-like commands and returns the
// target and the reason. temp commands also parse a leading duration.
func restrictTarget(m *tg.NewMessage, temp bool) (userID int64, reason string, until time.Time, span string) {
	if !adminOnly(m) || !botCanRestrict(m) {
		return
	}
	id, rest := extractUser(m)
	if id == 0 {
		return
	}

	if temp {
		span, reason, _ = strings.Cut(rest, " ")
		if span == "" {
			m.Reply("You haven't specified a time to restrict this user for!")
			return
		}
		d, err := moderation.ParseDuration(span)
		if err != nil {
			m.Reply("Invalid time type specified. Expected m, h, d or w, got: <code>" + html.EscapeString(span) + "</code>")
			return
		}
		until = time.Now().Add(d)
		return id, strings.TrimSpace(reason), until, span
	}
	return id, rest, until, ""
}

func sendBanSticker(chatID int64) {
	if Cfg.BanSticker == "" {
		return
	}
	media, err := tg.ResolveBotFileID(Cfg.BanSticker)
	if err != nil {
		log.Warn("bad ban sticker", zap.Error(err))
		return
	}
	Client.SendMedia(chatID, media, &tg.MediaOptions{})
}

func banHandler(m *tg.NewMessage, temp bool) error {
	userID, reason, until, span := restrictTarget(m, temp)
	if userID == 0 {
		return nil
	}

	if err := Mod.Ban(m.ChatID(), userID, until); err != nil {
		reportError(m, err)
		return nil
	}

	sendBanSticker(m.ChatID())
	tag, text := "BANNED", "Banned!"
	if temp {
		tag, text = "TEMP_BANNED", "Banned! User will be banned for "+span+"."
	}
	m.Reply(text)
	sendLog(m.ChatID(), chatTitle(m), tag,
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)),
		reasonField(reason))
	return nil
}

func BanHandler(m *tg.NewMessage) error { return banHandler(m, false) }

func TempBanHandler(m *tg.NewMessage) error { return banHandler(m, true) }

func KickHandler(m *tg.NewMessage) error {
	userID, reason, _, _ := restrictTarget(m, false)
	if userID == 0 {
		return nil
	}

	if err := Mod.Kick(m.ChatID(), userID); err != nil {
		reportError(m, err)
		return nil
	}

	sendBanSticker(m.ChatID())
	m.Reply("Kicked!")
	sendLog(m.ChatID(), chatTitle(m), "KICKED",
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)),
		reasonField(reason))
	return nil
}

func KickMeHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	err := Mod.KickMe(m.ChatID(), m.SenderID())
	switch {
	case errors.Is(err, moderation.ErrAdminTarget):
		m.Reply("I wish I could... but you're an admin.")
	case err != nil:
		reportError(m, err)
	default:
		m.Reply("*kicks you out of the group*")
	}
	return nil
}

func UnbanHandler(m *tg.NewMessage) error {
	if !adminOnly(m) || !botCanRestrict(m) {
		return nil
	}
	userID, _ := extractUser(m)
	if userID == 0 {
		return nil
	}

	err := Mod.Unban(m.ChatID(), userID)
	switch {
	case errors.Is(err, moderation.ErrStillMember):
		m.Reply("Why are you trying to unban someone that's already in the chat?")
		return nil
	case err != nil:
		reportError(m, err)
		return nil
	}

	m.Reply("Yep, this user can join!")
	sendLog(m.ChatID(), chatTitle(m), "UNBANNED",
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)))
	return nil
}

func muteHandler(m *tg.NewMessage, temp bool) error {
	userID, reason, until, span := restrictTarget(m, temp)
	if userID == 0 {
		return nil
	}

	err := Mod.Mute(m.ChatID(), userID, until)
	switch {
	case errors.Is(err, moderation.ErrAlreadyMuted):
		m.Reply("This user is already muted!")
		return nil
	case err != nil:
		reportError(m, err)
		return nil
	}

	tag, text := "MUTE", "Muted!"
	if temp {
		tag, text = "TEMP_MUTED", "Muted for "+span+"!"
	}
	m.Reply(text)
	sendLog(m.ChatID(), chatTitle(m), tag,
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)),
		reasonField(reason))
	return nil
}

func MuteHandler(m *tg.NewMessage) error { return muteHandler(m, false) }

func TempMuteHandler(m *tg.NewMessage) error { return muteHandler(m, true) }

func UnmuteHandler(m *tg.NewMessage) error {
	if !adminOnly(m) || !botCanRestrict(m) {
		return nil
	}
	userID, _ := extractUser(m)
	if userID == 0 {
		return nil
	}

	err := Mod.Unmute(m.ChatID(), userID)
	switch {
	case errors.Is(err, moderation.ErrNotInChat):
		m.Reply("This user isn't even in the chat, unmuting them won't make them talk more than they already do!")
		return nil
	case errors.Is(err, moderation.ErrNotMuted):
		m.Reply("This user already has the right to speak.")
		return nil
	case err != nil:
		reportError(m, err)
		return nil
	}

	m.Reply("Unmuted!")
	sendLog(m.ChatID(), chatTitle(m), "UNMUTE",
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)))
	return nil
}

func init() {
	Mods.AddModule("Bans", `<b>Bans and Mutes</b>

Remove or silence users. Targets can be a reply, an @username, a user id or a text mention.

<b>Commands:</b>
 - /ban <user> [reason] - Ban a user
 - /tban <user> <time> [reason] - Ban for a while (m/h/d/w, e.g. 2h)
 - /kick <user> [reason] - Remove a user, who can join again
 - /unban <user> - Lift a ban
 - /kickme - Leave the chat
 - /mute <user> [reason] - Stop a user from talking
 - /tmute <user> <time> [reason] - Mute for a while
 - /unmute <user> - Let a user talk again`)
}
