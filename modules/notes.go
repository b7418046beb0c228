package modules

import (
	"errors"
	"html"
	"strings"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
	"modbot/modules/moderation"
)

func SaveNoteHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	name, content, _ := strings.Cut(strings.TrimSpace(m.Args()), " ")
	name = strings.ToLower(strings.TrimPrefix(name, "#"))
	if name == "" {
		m.Reply("Usage: <code>/save &lt;name&gt; &lt;text&gt;</code>, or reply to a message with <code>/save &lt;name&gt;</code>")
		return nil
	}

	note := &db.Note{Name: name, CreatedBy: m.SenderID()}
	content = strings.TrimSpace(content)
	if m.IsReply() {
		reply, err := m.GetReplyMessage()
		if err != nil {
			m.Reply("Error getting reply message")
			return nil
		}
		note.MediaType, note.FileID = storedMedia(reply)
		if content == "" {
			content = reply.Text()
		}
	}

	note.Content, note.Buttons = moderation.ParseButtons(content)
	if note.Content == "" && note.FileID == "" {
		m.Reply("Dude, there's no note")
		return nil
	}

	if err := Store.SaveNote(m.ChatID(), note); err != nil {
		log.Error("save note", zap.Int64("chat_id", m.ChatID()), zap.String("note", name), zap.Error(err))
		m.Reply("Failed to save the note.")
		return nil
	}

	m.Reply("Yas! Added <code>" + html.EscapeString(name) + "</code>.\nGet it with /get " + html.EscapeString(name) + ", or #" + html.EscapeString(name))
	return nil
}

// sendNote sends a saved note. When the command replies to a message, the
// note replies to that message instead. Missing notes are reported only when
// loud is set.
func sendNote(m *tg.NewMessage, name string, loud bool) {
	note, err := Store.GetNote(m.ChatID(), strings.ToLower(name))
	if errors.Is(err, db.ErrNotFound) {
		if loud {
			m.Reply("This note doesn't exist")
		}
		return
	}
	if err != nil {
		log.Error("get note", zap.Int64("chat_id", m.ChatID()), zap.String("note", name), zap.Error(err))
		return
	}

	replyTo := m.ID
	if m.IsReply() {
		replyTo = m.ReplyToMsgID()
	}
	if _, err := sendStored(m.ChatID(), replyTo, note.Content, note.FileID, note.Buttons); err != nil {
		log.Warn("send note", zap.Int64("chat_id", m.ChatID()), zap.String("note", name), zap.Error(err))
		if loud {
			m.Reply("This note could not be sent, as it is incorrectly formatted or its media is gone.")
		}
	}
}

func GetNoteHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	fields := strings.Fields(m.Args())
	if len(fields) == 0 {
		m.Reply("Get what?")
		return nil
	}
	sendNote(m, fields[0], true)
	return nil
}

// hashNote serves "#name" messages. It reports whether the message asked
// for a note.
func hashNote(m *tg.NewMessage) bool {
	text := m.Text()
	if !strings.HasPrefix(text, "#") {
		return false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	if name = strings.TrimSpace(name); name == "" {
		return false
	}
	sendNote(m, name, false)
	return true
}

func ClearNoteHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	fields := strings.Fields(m.Args())
	if len(fields) == 0 {
		m.Reply("Which note should I clear?")
		return nil
	}

	removed, err := Store.DeleteNote(m.ChatID(), strings.ToLower(fields[0]))
	if err != nil {
		log.Error("delete note", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if !removed {
		m.Reply("That's not a note in my database!")
		return nil
	}
	m.Reply("Successfully removed note.")
	return nil
}

func ListNotesHandler(m *tg.NewMessage) error {
	if !groupOnly(m) {
		return nil
	}

	notes, err := Store.GetAllNotes(m.ChatID())
	if err != nil {
		log.Error("list notes", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}
	if len(notes) == 0 {
		m.Reply("No notes in this chat!")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("<b>Notes in " + html.EscapeString(chatTitle(m)) + ":</b>\n")
	for _, n := range notes {
		sb.WriteString(" - <code>" + html.EscapeString(n.Name) + "</code>\n")
	}
	sb.WriteString("\nYou can retrieve these notes by using /get notename, or #notename")
	replyChunks(m, sb.String())
	return nil
}

func init() {
	Mods.AddModule("Notes", `<b>Notes</b>

Save messages and fetch them later by name.

<b>Commands:</b>
 - /get <name> or #name - Send a note; reply to a message to answer it with the note
 - /notes or /saved - List the notes of this chat
 - /save <name> <text> - Save a note; reply to a message to save it (media too)
 - /clear <name> - Delete a note

Buttons work like in greetings: <code>[Text](buttonurl:https://example.com)</code>`)
}
