package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

const chat = int64(-1001)

func TestWarnsReachLimit(t *testing.T) {
	d := openTestDB(t)

	n, err := d.AddWarn(chat, 7, &Warn{Reason: "spam"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = d.AddWarn(chat, 7, &Warn{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	warns, err := d.GetWarns(chat, 7)
	require.NoError(t, err)
	require.Len(t, warns, 2)
	assert.Equal(t, "spam", warns[0].Reason)
	assert.NotEmpty(t, warns[0].ID)
	assert.NotEqual(t, warns[0].ID, warns[1].ID)

	n, err = d.AddWarn(chat, 7, &Warn{Reason: "again"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	warns, err = d.GetWarns(chat, 7)
	require.NoError(t, err)
	assert.Empty(t, warns, "warns reset once the limit is hit")
}

func TestRemoveLastWarn(t *testing.T) {
	d := openTestDB(t)

	removed, err := d.RemoveLastWarn(chat, 7)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = d.AddWarn(chat, 7, &Warn{Reason: "first"}, 5)
	require.NoError(t, err)
	_, err = d.AddWarn(chat, 7, &Warn{Reason: "second"}, 5)
	require.NoError(t, err)

	removed, err = d.RemoveLastWarn(chat, 7)
	require.NoError(t, err)
	assert.True(t, removed)

	warns, err := d.GetWarns(chat, 7)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "first", warns[0].Reason)

	require.NoError(t, d.ResetWarns(chat, 7))
	warns, err = d.GetWarns(chat, 7)
	require.NoError(t, err)
	assert.Empty(t, warns)
}

func TestWarnSettingsDefault(t *testing.T) {
	d := openTestDB(t)

	s, err := d.GetWarnSettings(chat)
	require.NoError(t, err)
	assert.Equal(t, DefaultWarnSettings(), s)

	require.NoError(t, d.SetWarnSettings(chat, WarnSettings{Limit: 5, Action: WarnActionKick}))
	s, err = d.GetWarnSettings(chat)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Limit)
	assert.Equal(t, WarnActionKick, s.Action)
}

func TestWarnFilters(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.SaveWarnFilter(chat, WarnFilter{Keyword: "Spam", Reply: "no spam"}))
	require.NoError(t, d.SaveWarnFilter(chat, WarnFilter{Keyword: "ads", Reply: "no ads"}))
	require.NoError(t, d.SaveWarnFilter(chat, WarnFilter{Keyword: "spam", Reply: "stop it"}))

	filters, err := d.GetWarnFilters(chat)
	require.NoError(t, err)
	assert.Equal(t, []WarnFilter{{"ads", "no ads"}, {"spam", "stop it"}}, filters)

	removed, err := d.RemoveWarnFilter(chat, "SPAM")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = d.RemoveWarnFilter(chat, "spam")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestUsersByUsername(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.UpdateUser(User{ID: 1, Username: "Alice", FirstName: "A"}))
	id, err := d.UserIDByUsername("@alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// the username moves to another account
	require.NoError(t, d.UpdateUser(User{ID: 1, Username: "alice2", FirstName: "A"}))
	require.NoError(t, d.UpdateUser(User{ID: 2, Username: "alice", FirstName: "B"}))
	id, err = d.UserIDByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = d.UserIDByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.GetUser(99)
	assert.ErrorIs(t, err, ErrNotFound)
	u, err := d.GetUser(2)
	require.NoError(t, err)
	assert.Equal(t, "B", u.FirstName)
}

func TestChats(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.UpdateChat(Chat{ID: -1, Title: "one"}))
	require.NoError(t, d.UpdateChat(Chat{ID: -2, Title: "two"}))
	require.NoError(t, d.UpdateChat(Chat{ID: -1, Title: "uno"}))

	chats, err := d.AllChats()
	require.NoError(t, err)
	assert.ElementsMatch(t, []Chat{{-1, "uno"}, {-2, "two"}}, chats)

	c, err := d.GetChat(-1)
	require.NoError(t, err)
	assert.Equal(t, "uno", c.Title)

	require.NoError(t, d.RemoveChat(-2))
	_, err = d.GetChat(-2)
	assert.ErrorIs(t, err, ErrNotFound)
	chats, err = d.AllChats()
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestBlacklist(t *testing.T) {
	d := openTestDB(t)

	added, err := d.AddBlacklist(chat, "Foo", "bar", "", "foo")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	words, err := d.GetBlacklist(chat)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, words)

	removed, err := d.RemoveBlacklist(chat, "BAR")
	require.NoError(t, err)
	assert.True(t, removed)

	s, err := d.GetBlacklistSettings(chat)
	require.NoError(t, err)
	assert.Equal(t, ActionDelete, s.Action)

	require.NoError(t, d.ClearBlacklist(chat))
	words, err = d.GetBlacklist(chat)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestNotes(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.SaveNote(chat, &Note{Name: "Rules", Content: "be nice"}))
	require.NoError(t, d.SaveNote(chat, &Note{Name: "faq", Content: "read it",
		Buttons: []Button{{Text: "site", URL: "https://example.com"}}}))

	n, err := d.GetNote(chat, "RULES")
	require.NoError(t, err)
	assert.Equal(t, "be nice", n.Content)

	_, err = d.GetNote(chat, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	notes, err := d.GetAllNotes(chat)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "faq", notes[0].Name)
	assert.Len(t, notes[0].Buttons, 1)

	removed, err := d.DeleteNote(chat, "rules")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = d.DeleteNote(chat, "rules")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGreetings(t *testing.T) {
	d := openTestDB(t)

	g, err := d.GetWelcome(chat)
	require.NoError(t, err)
	assert.True(t, g.Enabled)
	assert.False(t, g.IsCustom())

	require.NoError(t, d.SetGoodbye(chat, &Greeting{Enabled: false, Content: "bye {first}"}))
	bye, err := d.GetGoodbye(chat)
	require.NoError(t, err)
	assert.False(t, bye.Enabled)
	assert.True(t, bye.IsCustom())

	id, err := d.GetLastWelcomeID(chat)
	require.NoError(t, err)
	assert.Zero(t, id)
	require.NoError(t, d.SetLastWelcomeID(chat, 42))
	id, err = d.GetLastWelcomeID(chat)
	require.NoError(t, err)
	assert.Equal(t, int32(42), id)

	require.NoError(t, d.SetWelcome(chat, &Greeting{Enabled: true, CleanService: true}))
	g, err = d.GetWelcome(chat)
	require.NoError(t, err)
	assert.True(t, g.CleanService)
	assert.False(t, g.IsCustom(), "clean service alone keeps the default text")

	bk, err := d.Export(chat)
	require.NoError(t, err)
	require.NoError(t, d.Import(-2002, bk))
	g, err = d.GetWelcome(-2002)
	require.NoError(t, err)
	assert.True(t, g.CleanService)
}

func TestGbans(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.GbanUser(GbannedUser{UserID: 5, Name: "eve", Reason: "spam"}))
	ok, err := d.IsGbanned(5)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.UpdateGbanReason(5, "eve", "scam"))
	u, err := d.GetGbannedUser(5)
	require.NoError(t, err)
	assert.Equal(t, "scam", u.Reason)
	assert.False(t, u.Time.IsZero())

	assert.ErrorIs(t, d.UpdateGbanReason(6, "x", "y"), ErrNotFound)

	list, err := d.GbanList()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, d.UngbanUser(5))
	ok, err = d.IsGbanned(5)
	require.NoError(t, err)
	assert.False(t, ok)

	on, err := d.ChatGbansEnabled(chat)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, d.SetChatGbans(chat, false))
	on, err = d.ChatGbansEnabled(chat)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestFloodAFKAndLogChannel(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.SetFloodLimit(chat, 5))
	limit, err := d.GetFloodLimit(chat)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	require.NoError(t, d.SetFloodLimit(chat, 0))
	limit, err = d.GetFloodLimit(chat)
	require.NoError(t, err)
	assert.Zero(t, limit)

	require.NoError(t, d.SetAFK(3, "lunch"))
	afk, err := d.GetAFK(3)
	require.NoError(t, err)
	require.NotNil(t, afk)
	assert.Equal(t, "lunch", afk.Reason)
	afk, err = d.RemoveAFK(3)
	require.NoError(t, err)
	require.NotNil(t, afk)
	afk, err = d.RemoveAFK(3)
	require.NoError(t, err)
	assert.Nil(t, afk)

	require.NoError(t, d.SetLogChannel(chat, -100500))
	ch, err := d.GetLogChannel(chat)
	require.NoError(t, err)
	assert.Equal(t, int64(-100500), ch)
	removed, err := d.UnsetLogChannel(chat)
	require.NoError(t, err)
	assert.True(t, removed)
}

func seedChat(t *testing.T, d *DB, id int64) {
	t.Helper()
	_, err := d.AddWarn(id, 7, &Warn{Reason: "r"}, 3)
	require.NoError(t, err)
	require.NoError(t, d.SetWarnSettings(id, WarnSettings{Limit: 4, Action: WarnActionMute}))
	require.NoError(t, d.SaveWarnFilter(id, WarnFilter{Keyword: "spam", Reply: "no"}))
	_, err = d.AddBlacklist(id, "foo")
	require.NoError(t, err)
	require.NoError(t, d.SaveNote(id, &Note{Name: "rules", Content: "be nice"}))
	require.NoError(t, d.SetWelcome(id, &Greeting{Enabled: true, Content: "hi {first}"}))
	require.NoError(t, d.SetFloodLimit(id, 6))
	require.NoError(t, d.SetChatGbans(id, false))
	require.NoError(t, d.SetLogChannel(id, -999))
}

func assertSeeded(t *testing.T, d *DB, id int64) {
	t.Helper()
	warns, err := d.GetWarns(id, 7)
	require.NoError(t, err)
	assert.Len(t, warns, 1)
	ws, err := d.GetWarnSettings(id)
	require.NoError(t, err)
	assert.Equal(t, WarnSettings{Limit: 4, Action: WarnActionMute}, ws)
	filters, err := d.GetWarnFilters(id)
	require.NoError(t, err)
	assert.Len(t, filters, 1)
	words, err := d.GetBlacklist(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, words)
	_, err = d.GetNote(id, "rules")
	require.NoError(t, err)
	g, err := d.GetWelcome(id)
	require.NoError(t, err)
	assert.Equal(t, "hi {first}", g.Content)
	limit, err := d.GetFloodLimit(id)
	require.NoError(t, err)
	assert.Equal(t, 6, limit)
	on, err := d.ChatGbansEnabled(id)
	require.NoError(t, err)
	assert.False(t, on)
	ch, err := d.GetLogChannel(id)
	require.NoError(t, err)
	assert.Equal(t, int64(-999), ch)
}

func TestExportImport(t *testing.T) {
	d := openTestDB(t)
	seedChat(t, d, chat)

	bk, err := d.Export(chat)
	require.NoError(t, err)
	assert.NotEmpty(t, bk.ID)
	assert.Equal(t, BackupVersion, bk.Version)

	other := openTestDB(t)
	require.NoError(t, other.Import(-2002, bk))
	assertSeeded(t, other, -2002)

	assert.ErrorIs(t, other.Import(-2002, &Backup{}), ErrBadBackup)
}

func TestImportNormalisesKeys(t *testing.T) {
	d := openTestDB(t)

	bk := &Backup{
		Version:     BackupVersion,
		Notes:       []*Note{{Name: " Rules ", Content: "be nice"}},
		WarnFilters: []WarnFilter{{Keyword: "BadWord", Reply: "no"}},
		Blacklist:   []string{"CaSiNo"},
	}
	require.NoError(t, d.Import(chat, bk))

	note, err := d.GetNote(chat, "rules")
	require.NoError(t, err)
	assert.Equal(t, "rules", note.Name)
	assert.Equal(t, "be nice", note.Content)
	assert.Equal(t, " Rules ", bk.Notes[0].Name, "the caller's backup is left as is")

	filters, err := d.GetWarnFilters(chat)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, "badword", filters[0].Keyword)

	words, err := d.GetBlacklist(chat)
	require.NoError(t, err)
	assert.Equal(t, []string{"casino"}, words)

	ok, err := d.RemoveBlacklist(chat, "casino")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportRejectsBlankKeys(t *testing.T) {
	d := openTestDB(t)
	seedChat(t, d, chat)

	bad := []*Backup{
		{Version: BackupVersion, Notes: []*Note{{Name: "", Content: "x"}}},
		{Version: BackupVersion, Notes: []*Note{nil}},
		{Version: BackupVersion, WarnFilters: []WarnFilter{{Keyword: "  ", Reply: "x"}}},
		{Version: BackupVersion, Blacklist: []string{""}},
	}
	for i, bk := range bad {
		assert.ErrorIs(t, d.Import(chat, bk), ErrBadBackup, i)
	}
	assertSeeded(t, d, chat)
}

func TestMigrateChat(t *testing.T) {
	d := openTestDB(t)
	seedChat(t, d, chat)
	require.NoError(t, d.UpdateChat(Chat{ID: chat, Title: "group"}))

	require.NoError(t, d.MigrateChat(chat, -1009))
	assertSeeded(t, d, -1009)

	words, err := d.GetBlacklist(chat)
	require.NoError(t, err)
	assert.Empty(t, words)
	limit, err := d.GetFloodLimit(chat)
	require.NoError(t, err)
	assert.Zero(t, limit)

	chats, err := d.AllChats()
	require.NoError(t, err)
	assert.Equal(t, []Chat{{ID: -1009, Title: "group"}}, chats)

	// warn sequence carries over so new warns keep their order
	_, err = d.AddWarn(-1009, 7, &Warn{Reason: "later"}, 5)
	require.NoError(t, err)
	warns, err := d.GetWarns(-1009, 7)
	require.NoError(t, err)
	require.Len(t, warns, 2)
	assert.Equal(t, "later", warns[1].Reason)
}

func TestStats(t *testing.T) {
	d := openTestDB(t)
	seedChat(t, d, chat)
	require.NoError(t, d.UpdateUser(User{ID: 1, FirstName: "a"}))
	require.NoError(t, d.GbanUser(GbannedUser{UserID: 9}))

	s, err := d.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Users)
	assert.Equal(t, 1, s.Gbans)
	assert.Equal(t, 1, s.Warns)
	assert.Equal(t, 1, s.WarnedUsers)
	assert.Equal(t, 1, s.Notes)
	assert.Equal(t, 1, s.BlacklistWords)
	assert.Equal(t, 1, s.WarnFilters)
}
