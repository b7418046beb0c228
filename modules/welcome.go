package modules

import (
	"fmt"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
	"modbot/modules/moderation"
)

type greetingKind struct {
	name     string
	fallback string
	get      func(int64) (*db.Greeting, error)
	set      func(int64, *db.Greeting) error
}

var (
	welcomeKind = greetingKind{"welcome", moderation.DefaultWelcome, getWelcome, setWelcome}
	goodbyeKind = greetingKind{"goodbye", moderation.DefaultGoodbye, getGoodbye, setGoodbye}
)

func getWelcome(id int64) (*db.Greeting, error) { return Store.GetWelcome(id) }

func setWelcome(id int64, g *db.Greeting) error { return Store.SetWelcome(id, g) }

func getGoodbye(id int64) (*db.Greeting, error) { return Store.GetGoodbye(id) }

func setGoodbye(id int64, g *db.Greeting) error { return Store.SetGoodbye(id, g) }

func (k greetingKind) template(g *db.Greeting) string {
	if g.IsCustom() {
		return g.Content
	}
	return k.fallback
}

func greetChat(chatID int64) moderation.GreetChat {
	var gc moderation.GreetChat
	if ch, err := Client.GetChannel(chatID); err == nil && ch != nil {
		gc.Title = ch.Title
		gc.Members = int(ch.ParticipantsCount)
	}
	if gc.Title == "" {
		if c, err := Store.GetChat(chatID); err == nil {
			gc.Title = c.Title
		}
	}
	return gc
}

func ParticipantHandler(p *tg.ParticipantUpdate) error {
	user := p.User
	if user == nil {
		return nil
	}
	chatID := p.ChatID()

	switch {
	case p.IsJoined() || p.IsAdded():
		if user.ID == BotID {
			Store.UpdateChat(db.Chat{ID: chatID, Title: greetChat(chatID).Title})
			return nil
		}
		Store.UpdateUser(db.User{ID: user.ID, Username: user.Username, FirstName: user.FirstName})
		if banned, err := Mod.EnforceGban(chatID, user.ID); banned {
			p.Client.SendMessage(chatID, "This is a bad person, they shouldn't be here!")
			return nil
		} else if err != nil {
			log.Warn("gban enforce on join", zap.Int64("chat_id", chatID), zap.Int64("user_id", user.ID), zap.Error(err))
		}
		greet(chatID, user, welcomeKind)

	case p.IsLeft() || p.IsKicked() || p.IsBanned():
		if user.ID == BotID {
			if err := Store.RemoveChat(chatID); err != nil {
				log.Warn("remove chat", zap.Int64("chat_id", chatID), zap.Error(err))
			}
			log.Info("removed from chat", zap.Int64("chat_id", chatID))
			return nil
		}
		greet(chatID, user, goodbyeKind)
	}
	return nil
}

func greet(chatID int64, user *tg.UserObj, kind greetingKind) {
	g, err := kind.get(chatID)
	if err != nil {
		log.Error("load greeting", zap.String("kind", kind.name), zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if !g.Enabled {
		return
	}

	welcome := kind.name == welcomeKind.name
	if welcome && user.ID == Cfg.OwnerID {
		Client.SendMessage(chatID, "Master is in the houseeee, let's get this party started!")
		return
	}

	text := moderation.FormatGreeting(kind.template(g), moderation.GreetUser{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}, greetChat(chatID))

	if welcome && g.CleanWelcome {
		if last, _ := Store.GetLastWelcomeID(chatID); last > 0 {
			Client.DeleteMessages(chatID, []int32{last})
		}
	}

	sent, err := sendStored(chatID, 0, text, g.FileID, g.Buttons)
	if err != nil {
		log.Warn("send greeting", zap.String("kind", kind.name), zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if welcome && sent != nil {
		Store.SetLastWelcomeID(chatID, sent.ID)
	}
}

func toggleGreeting(m *tg.NewMessage, kind greetingKind, onText, offText string) error {
	if !adminOnly(m) {
		return nil
	}

	g, err := kind.get(m.ChatID())
	if err != nil {
		log.Error("load greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(m.Args())) {
	case "":
		m.Reply(fmt.Sprintf("I am currently saying %s to users: <code>%t</code>.\nThe %s message (not filling the {}) is:", kind.name, g.Enabled, kind.name))
		if _, err := sendStored(m.ChatID(), 0, kind.template(g), g.FileID, g.Buttons); err != nil {
			m.Respond("I couldn't send the preview: the saved media may be gone.")
		}
		return nil
	case "on", "yes":
		g.Enabled = true
		m.Reply(onText)
	case "off", "no":
		g.Enabled = false
		m.Reply(offText)
	default:
		m.Reply("I understand 'on/yes' or 'off/no' only!")
		return nil
	}

	if err := kind.set(m.ChatID(), g); err != nil {
		log.Error("save greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
	}
	return nil
}

func WelcomeToggleHandler(m *tg.NewMessage) error {
	return toggleGreeting(m, welcomeKind, "I'll be polite!", "I'm sulking, not saying hello anymore.")
}

func GoodbyeToggleHandler(m *tg.NewMessage) error {
	return toggleGreeting(m, goodbyeKind, "I'll be sorry when people leave!", "They leave, they're dead to me.")
}

func setGreeting(m *tg.NewMessage, kind greetingKind) error {
	if !adminOnly(m) {
		return nil
	}

	g, err := kind.get(m.ChatID())
	if err != nil {
		log.Error("load greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	content := strings.TrimSpace(m.Args())
	var mediaType, fileID string
	if m.IsReply() {
		reply, err := m.GetReplyMessage()
		if err != nil {
			m.Reply("Error getting reply message")
			return nil
		}
		mediaType, fileID = storedMedia(reply)
		if content == "" {
			content = reply.Text()
		}
	}

	text, buttons := moderation.ParseButtons(content)
	if text == "" && fileID == "" {
		m.Reply("You didn't specify what to reply with!")
		return nil
	}

	g.Content, g.MediaType, g.FileID, g.Buttons = text, mediaType, fileID, buttons
	if err := kind.set(m.ChatID(), g); err != nil {
		log.Error("save greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to save the " + kind.name + " message.")
		return nil
	}

	m.Reply("Successfully set custom " + kind.name + " message!")
	sendLog(m.ChatID(), chatTitle(m), "SET_"+strings.ToUpper(kind.name),
		logField("Admin", mention(m.SenderID())))
	return nil
}

func SetWelcomeHandler(m *tg.NewMessage) error { return setGreeting(m, welcomeKind) }

func SetGoodbyeHandler(m *tg.NewMessage) error { return setGreeting(m, goodbyeKind) }

func resetGreeting(m *tg.NewMessage, kind greetingKind) error {
	if !adminOnly(m) {
		return nil
	}

	g, err := kind.get(m.ChatID())
	if err != nil {
		log.Error("load greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	g.Content, g.MediaType, g.FileID, g.Buttons = "", "", "", nil
	if err := kind.set(m.ChatID(), g); err != nil {
		log.Error("save greeting", zap.String("kind", kind.name), zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	m.Reply("Successfully reset " + kind.name + " message to default!")
	sendLog(m.ChatID(), chatTitle(m), "RESET_"+strings.ToUpper(kind.name),
		logField("Admin", mention(m.SenderID())))
	return nil
}

func ResetWelcomeHandler(m *tg.NewMessage) error { return resetGreeting(m, welcomeKind) }

func ResetGoodbyeHandler(m *tg.NewMessage) error { return resetGreeting(m, goodbyeKind) }

// welcomeSwitch reads or flips one boolean option kept on the welcome.
func welcomeSwitch(m *tg.NewMessage, flag func(*db.Greeting) *bool, status [2]string, onText, offText string) error {
	if !adminOnly(m) {
		return nil
	}

	g, err := Store.GetWelcome(m.ChatID())
	if err != nil {
		log.Error("load welcome", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(m.Args())) {
	case "":
		if *flag(g) {
			m.Reply(status[1])
		} else {
			m.Reply(status[0])
		}
		return nil
	case "on", "yes":
		*flag(g) = true
		m.Reply(onText)
	case "off", "no":
		*flag(g) = false
		m.Reply(offText)
	default:
		m.Reply("I understand 'on/yes' or 'off/no' only!")
		return nil
	}

	if err := Store.SetWelcome(m.ChatID(), g); err != nil {
		log.Error("save welcome", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
	}
	return nil
}

func CleanWelcomeHandler(m *tg.NewMessage) error {
	return welcomeSwitch(m, func(g *db.Greeting) *bool { return &g.CleanWelcome },
		[2]string{"I'm currently not deleting old welcome messages!", "I delete the previous welcome message whenever someone new joins."},
		"I'll try to delete old welcome messages!",
		"I won't delete old welcome messages.")
}

func CleanServiceHandler(m *tg.NewMessage) error {
	return welcomeSwitch(m, func(g *db.Greeting) *bool { return &g.CleanService },
		[2]string{"I'm leaving join and leave notices alone.", "I delete join and leave notices."},
		"I'll delete join and leave notices from now on!",
		"I'll leave join and leave notices alone.")
}

// joinLeaveNotice reports whether a service action is one of the notices
// /cleanservice removes.
func joinLeaveNotice(action tg.MessageAction) bool {
	switch action.(type) {
	case *tg.MessageActionChatAddUser, *tg.MessageActionChatJoinedByLink,
		*tg.MessageActionChatJoinedByRequest, *tg.MessageActionChatDeleteUser:
		return true
	}
	return false
}

// cleanService deletes a join or leave notice when the chat asked for it.
func cleanService(m *tg.NewMessage) {
	g, err := Store.GetWelcome(m.ChatID())
	if err != nil {
		log.Warn("load welcome", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return
	}
	if !g.CleanService {
		return
	}
	if err := Mod.API().DeleteMessage(m.ChatID(), m.ID); err != nil {
		log.Debug("clean service", zap.Int64("chat_id", m.ChatID()), zap.Int32("msg_id", m.ID), zap.Error(err))
	}
}

const welcomeHelp = `Your group's welcome/goodbye messages can be personalised in multiple ways. If you want the messages to be individually generated, like the default welcome message is, you can use these variables:
 - <code>{first}</code>: the user's first name
 - <code>{last}</code>: the user's last name, or the first name if they have none
 - <code>{fullname}</code>: the user's full name
 - <code>{username}</code>: the user's @username, or a mention if they have none
 - <code>{mention}</code>: a mention of the user, tagged with their first name
 - <code>{id}</code>: the user's id
 - <code>{count}</code>: the user's member number
 - <code>{chatname}</code>: the current chat's name

Buttons go at the end of the message:
 - <code>[Rules](buttonurl:https://example.com)</code>
 - <code>[Site](buttonurl:https://example.com:same)</code> puts the button on the previous row

You can also reply to a photo, gif, video, sticker or document with /setwelcome to welcome with that media.`

func WelcomeHelpHandler(m *tg.NewMessage) error {
	m.Reply(welcomeHelp)
	return nil
}

func init() {
	Mods.AddModule("Greetings", `<b>Greetings</b>

Welcome new members and say goodbye to leaving ones.

<b>Commands:</b>
 - /welcome [on|off] - Toggle welcomes; without args shows the current message
 - /goodbye [on|off] - Same for goodbyes
 - /setwelcome <text> - Set a custom welcome, or reply to media
 - /setgoodbye <text> - Set a custom goodbye
 - /resetwelcome - Go back to the default welcome
 - /resetgoodbye - Go back to the default goodbye
 - /cleanwelcome [on|off] - Delete the previous welcome on a new join
 - /cleanservice [on|off] - Delete the "joined" and "left" notices
 - /welcomehelp - Placeholders and button syntax`)
}
