package modules

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
	"modbot/modules/moderation"
)

var warnVerbs = map[db.WarnAction]string{
	db.WarnActionBan:  "banned",
	db.WarnActionKick: "kicked",
	db.WarnActionMute: "muted",
}

// announceWarn replies with the outcome of a warn and logs it. warnerID 0
// marks a warn issued by a filter.
func announceWarn(m *tg.NewMessage, userID, warnerID int64, out *moderation.WarnOutcome) {
	warner := "Automated warn filter."
	if warnerID != 0 {
		warner = mention(warnerID)
	}

	if out.Punished() {
		text := fmt.Sprintf("%d warnings, %s has been %s!", out.Limit, mention(userID), warnVerbs[out.Action])
		if out.Reason != "" {
			text += "\n<b>Last reason:</b> " + html.EscapeString(out.Reason)
		}
		m.Respond(text)
		sendLog(m.ChatID(), chatTitle(m), "WARN_"+strings.ToUpper(string(out.Action)),
			logField("Admin", warner),
			logField("User", mention(userID)),
			logField("Counts", fmt.Sprintf("<code>%d/%d</code>", out.Count, out.Limit)),
			reasonField(out.Reason))
		return
	}

	text := fmt.Sprintf("%s has %d/%d warnings... watch out!", mention(userID), out.Count, out.Limit)
	if out.Reason != "" {
		text += "\nReason for last warn:\n" + html.EscapeString(out.Reason)
	}
	m.Respond(text, &tg.SendOptions{
		ReplyMarkup: tg.NewKeyboard().AddRow(
			tg.Button.Data("Remove warn", fmt.Sprintf("rmwarn_%d", userID)),
		).Build(),
	})
	sendLog(m.ChatID(), chatTitle(m), "WARN",
		logField("Admin", warner),
		logField("User", mention(userID)),
		logField("Counts", fmt.Sprintf("<code>%d/%d</code>", out.Count, out.Limit)),
		reasonField(out.Reason))
}

func WarnHandler(m *tg.NewMessage) error {
	if !adminOnly(m) || !botCanRestrict(m) {
		return nil
	}
	userID, reason := extractUser(m)
	if userID == 0 {
		return nil
	}

	out, err := Mod.Warn(m.ChatID(), userID, reason, m.SenderID())
	if errors.Is(err, moderation.ErrAdminTarget) {
		m.Reply("Damn admins, can't even be warned!")
		return nil
	}
	if err != nil {
		reportError(m, err)
		return nil
	}

	announceWarn(m, userID, m.SenderID(), out)
	return nil
}

func RemoveWarnCallback(c *tg.CallbackQuery) error {
	userID, err := strconv.ParseInt(strings.TrimPrefix(c.DataString(), "rmwarn_"), 10, 64)
	if err != nil {
		return nil
	}

	if !isAdmin(c.ChatID, c.SenderID) {
		c.Answer("You need to be an admin to do this.", &tg.CallbackOptions{Alert: true})
		return nil
	}

	removed, err := Mod.RemoveLastWarn(c.ChatID, userID)
	if err != nil {
		log.Error("remove warn", zap.Int64("chat_id", c.ChatID), zap.Int64("user_id", userID), zap.Error(err))
		c.Answer("Failed to remove the warn.", &tg.CallbackOptions{Alert: true})
		return nil
	}
	if !removed {
		c.Edit("User already has no warns.")
		return nil
	}

	c.Edit("Warn removed by " + mention(c.SenderID) + ".")
	sendLog(c.ChatID, fmt.Sprint(c.ChatID), "UNWARN",
		logField("Admin", mention(c.SenderID)),
		logField("User", mention(userID)))
	return nil
}

func WarnsHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	userID := m.SenderID()
	if strings.TrimSpace(m.Args()) != "" || m.IsReply() {
		if userID, _ = extractUser(m); userID == 0 {
			return nil
		}
	}

	sum, err := Mod.Warns(m.ChatID(), userID)
	if err != nil {
		log.Error("get warns", zap.Int64("chat_id", m.ChatID()), zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if sum.Count == 0 {
		m.Reply("This user hasn't got any warnings!")
		return nil
	}
	if len(sum.Reasons) == 0 {
		m.Reply(fmt.Sprintf("User has %d/%d warnings, but no reasons for any of them.", sum.Count, sum.Limit))
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "This user has %d/%d warnings, for the following reasons:\n", sum.Count, sum.Limit)
	for _, r := range sum.Reasons {
		sb.WriteString(" - " + html.EscapeString(r) + "\n")
	}
	replyChunks(m, sb.String())
	return nil
}

func ResetWarnsHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}
	userID, _ := extractUser(m)
	if userID == 0 {
		return nil
	}

	if err := Mod.ResetWarns(m.ChatID(), userID); err != nil {
		reportError(m, err)
		return nil
	}

	m.Reply("Warnings have been reset!")
	sendLog(m.ChatID(), chatTitle(m), "RESETWARNS",
		logField("Admin", mention(m.SenderID())),
		logField("User", mention(userID)))
	return nil
}

func AddWarnFilterHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	keyword, reply := moderation.SplitQuotes(m.Args())
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || reply == "" {
		m.Reply("Usage: <code>/addwarn &lt;keyword&gt; &lt;reply&gt;</code>. Quote the keyword to include spaces.")
		return nil
	}

	if err := Store.SaveWarnFilter(m.ChatID(), db.WarnFilter{Keyword: keyword, Reply: reply}); err != nil {
		log.Error("save warn filter", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to save the warn filter.")
		return nil
	}

	m.Reply("Warn handler added for '<code>" + html.EscapeString(keyword) + "</code>'!")
	return nil
}

func RemoveWarnFilterHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	keyword, _ := moderation.SplitQuotes(m.Args())
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		m.Reply("Which filter should I stop? Usage: <code>/nowarn &lt;keyword&gt;</code>")
		return nil
	}

	removed, err := Store.RemoveWarnFilter(m.ChatID(), keyword)
	if err != nil {
		log.Error("remove warn filter", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if !removed {
		m.Reply("That's not a current warning filter - run /warnlist for all active warning filters.")
		return nil
	}
	m.Reply("Yep, I'll stop warning people for that.")
	return nil
}

func WarnFiltersHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	filters, err := Store.GetWarnFilters(m.ChatID())
	if err != nil {
		log.Error("list warn filters", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if len(filters) == 0 {
		m.Reply("No warning filters are active here!")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("<b>Current warning filters in this chat:</b>\n")
	for _, f := range filters {
		sb.WriteString(" - <code>" + html.EscapeString(f.Keyword) + "</code>\n")
	}
	replyChunks(m, sb.String())
	return nil
}

func WarnLimitHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	arg := strings.TrimSpace(m.Args())
	if arg == "" {
		settings, _ := Store.GetWarnSettings(m.ChatID())
		m.Reply(fmt.Sprintf("The current warn limit is <b>%d</b>", settings.Limit))
		return nil
	}

	limit, err := strconv.Atoi(arg)
	if err != nil {
		m.Reply("Give me a number as an arg!")
		return nil
	}
	err = Mod.SetWarnLimit(m.ChatID(), limit)
	if errors.Is(err, moderation.ErrLimitTooLow) {
		m.Reply(fmt.Sprintf("The minimum warn limit is %d!", db.MinWarnLimit))
		return nil
	}
	if err != nil {
		reportError(m, err)
		return nil
	}

	m.Reply(fmt.Sprintf("Updated the warn limit to %d", limit))
	sendLog(m.ChatID(), chatTitle(m), "SET_WARN_LIMIT",
		logField("Admin", mention(m.SenderID())),
		logField("Limit", strconv.Itoa(limit)))
	return nil
}

func setWarnAction(m *tg.NewMessage, action db.WarnAction, text string) {
	if err := Mod.SetWarnAction(m.ChatID(), action); err != nil {
		reportError(m, err)
		return
	}
	m.Reply(text)
	sendLog(m.ChatID(), chatTitle(m), "WARN_ACTION",
		logField("Admin", mention(m.SenderID())),
		logField("Action", string(action)))
}

func StrongWarnHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(m.Args())) {
	case "on", "yes":
		setWarnAction(m, db.WarnActionBan, "Too many warns will now result in a ban!")
	case "off", "no":
		setWarnAction(m, db.WarnActionKick, "Too many warns will now result in a kick! Users will be able to join again after.")
	case "":
		settings, _ := Store.GetWarnSettings(m.ChatID())
		m.Reply(fmt.Sprintf("Warns are currently set to <b>%s</b> users when they exceed the limits.", settings.Action))
	default:
		m.Reply("I only understand on/yes/no/off!")
	}
	return nil
}

func WarnActionHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	arg := db.WarnAction(strings.ToLower(strings.TrimSpace(m.Args())))
	if arg == "" {
		settings, _ := Store.GetWarnSettings(m.ChatID())
		m.Reply(fmt.Sprintf("<b>Warn action:</b> %s\n<b>Warn limit:</b> %d\n\nUsage: /warnaction &lt;ban|kick|mute&gt;", settings.Action, settings.Limit))
		return nil
	}
	if _, ok := warnVerbs[arg]; !ok {
		m.Reply("Unknown action. Use: ban, kick, mute")
		return nil
	}

	setWarnAction(m, arg, fmt.Sprintf("Too many warns will now get users %s.", warnVerbs[arg]))
	return nil
}

func init() {
	Mods.AddModule("Warns", `<b>Warns</b>

Keep your members in check with warnings.

<b>Commands:</b>
 - /warns [user] - Show a user's warns and their reasons
 - /warn <user> [reason] - Warn a user
 - /resetwarns <user> - Clear a user's warns
 - /addwarn <keyword> <reply> - Warn anyone who says the keyword
 - /nowarn <keyword> - Remove a warn filter
 - /warnlist - List the warn filters of this chat
 - /warnlimit <num> - Set the warn limit (3 or more)
 - /strongwarn <on|off> - On bans, off kicks when the limit is reached
 - /warnaction <ban|kick|mute> - Pick the action at the limit

Quote the keyword to use a phrase: <code>/addwarn "buy now" no ads here</code>`)
}
