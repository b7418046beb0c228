package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"

	tg "github.com/amarnathcjd/gogram/telegram"
	"go.uber.org/zap"

	"modbot/modules/db"
)

func ExportHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	bk, err := Store.Export(m.ChatID())
	if err != nil {
		log.Error("export", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Failed to export this chat.")
		return nil
	}
	data, err := json.MarshalIndent(bk, "", "  ")
	if err != nil {
		log.Error("encode backup", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		return nil
	}

	dir, err := os.MkdirTemp("", "backup")
	if err != nil {
		log.Error("backup file", zap.Error(err))
		return nil
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("modbot%d.backup", m.ChatID()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Error("backup file", zap.Error(err))
		return nil
	}

	if _, err := m.ReplyMedia(path, &tg.MediaOptions{
		Caption: "Here is the backup of this chat. Reply to it with /import to restore it.",
	}); err != nil {
		log.Warn("send backup", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
	}
	return nil
}

func ImportHandler(m *tg.NewMessage) error {
	if !adminOnly(m) {
		return nil
	}

	if !m.IsReply() {
		m.Reply("Reply to the backup file to import it!")
		return nil
	}
	reply, err := m.GetReplyMessage()
	if err != nil || reply.Document() == nil {
		m.Reply("Try downloading and re-uploading the file as yourself before importing - this one seems to be iffy!")
		return nil
	}

	dir, err := os.MkdirTemp("", "import")
	if err != nil {
		log.Error("import dir", zap.Error(err))
		return nil
	}
	defer os.RemoveAll(dir)

	path, err := reply.Download(&tg.DownloadOptions{FileName: filepath.Join(dir, "backup.json")})
	if err != nil {
		log.Warn("download backup", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("I couldn't download that file.")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("read backup", zap.Error(err))
		return nil
	}

	var bk db.Backup
	if err := json.Unmarshal(data, &bk); err != nil {
		m.Reply("This doesn't look like a backup file.")
		return nil
	}
	err = Store.Import(m.ChatID(), &bk)
	if errors.Is(err, db.ErrBadBackup) {
		m.Reply("This doesn't look like a valid backup: <code>" + html.EscapeString(err.Error()) + "</code>")
		return nil
	}
	if err != nil {
		log.Error("import", zap.Int64("chat_id", m.ChatID()), zap.Error(err))
		m.Reply("Exception occurred while restoring your data.")
		return nil
	}

	text := "Backup fully imported. Welcome back! :D"
	if bk.ChatID != 0 && bk.ChatID != m.ChatID() {
		text += "\nThis backup came from another chat; its settings now apply here."
	}
	m.Reply(text)
	sendLog(m.ChatID(), chatTitle(m), "IMPORT",
		logField("Admin", mention(m.SenderID())),
		logField("Backup", bk.ID))
	return nil
}

func init() {
	Mods.AddModule("Backups", `<b>Backups</b>

Move a chat's settings between groups or keep them safe.

<b>Commands:</b>
 - /export - Get a file with this chat's warns, notes, filters, blacklist and greetings
 - /import - Reply to a backup file to restore it here; existing data is replaced`)
}
