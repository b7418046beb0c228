package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/modules/db"
)

func TestWarnEscalatesToBan(t *testing.T) {
	e, api := newTestEngine(t)

	out, err := e.Warn(testChat, 7, "spam", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 3, out.Limit)
	assert.False(t, out.Punished())

	_, err = e.Warn(testChat, 7, "", 1)
	require.NoError(t, err)
	out, err = e.Warn(testChat, 7, "again", 1)
	require.NoError(t, err)
	assert.True(t, out.Punished())
	assert.Equal(t, db.WarnActionBan, out.Action)
	assert.Equal(t, []string{"ban"}, api.ops())

	s, err := e.Warns(testChat, 7)
	require.NoError(t, err)
	assert.Zero(t, s.Count, "warns reset after the action")
}

func TestWarnKickAndMute(t *testing.T) {
	e, api := newTestEngine(t)
	require.NoError(t, e.SetWarnLimit(testChat, 3))
	require.NoError(t, e.SetWarnAction(testChat, db.WarnActionKick))

	for range 3 {
		_, err := e.Warn(testChat, 7, "", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"ban", "unban"}, api.ops())

	require.NoError(t, e.SetWarnAction(testChat, db.WarnActionMute))
	for range 3 {
		_, err := e.Warn(testChat, 8, "", 1)
		require.NoError(t, err)
	}
	mutes := api.callsFor("mute")
	require.Len(t, mutes, 1)
	assert.Equal(t, int64(8), mutes[0].UserID)
	assert.True(t, mutes[0].Until.IsZero())
}

func TestWarnRefusesAdminsAndBot(t *testing.T) {
	e, api := newTestEngine(t)
	api.setMember(testChat, 7, StatusAdmin)

	_, err := e.Warn(testChat, 7, "x", 1)
	assert.ErrorIs(t, err, ErrAdminTarget)
	_, err = e.Warn(testChat, testBot, "x", 1)
	assert.ErrorIs(t, err, ErrSelfTarget)
	_, err = e.Warn(testChat, testStaff, "x", 1)
	assert.ErrorIs(t, err, ErrProtectedTarget)
	assert.Empty(t, api.ops())
}

func TestConcurrentWarnsPunishOnce(t *testing.T) {
	e, api := newTestEngine(t)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Warn(testChat, 7, "", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, api.callsFor("ban"), 1)
}

func TestWarnLimitAndSummary(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.ErrorIs(t, e.SetWarnLimit(testChat, 2), ErrLimitTooLow)
	require.NoError(t, e.SetWarnLimit(testChat, 5))

	_, err := e.Warn(testChat, 7, "first", 1)
	require.NoError(t, err)
	_, err = e.Warn(testChat, 7, "", 1)
	require.NoError(t, err)
	_, err = e.Warn(testChat, 7, "third", 1)
	require.NoError(t, err)

	removed, err := e.RemoveLastWarn(testChat, 7)
	require.NoError(t, err)
	assert.True(t, removed)

	s, err := e.Warns(testChat, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 5, s.Limit)
	assert.Equal(t, []string{"first"}, s.Reasons)

	require.NoError(t, e.ResetWarns(testChat, 7))
	removed, err = e.RemoveLastWarn(testChat, 7)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFilterWarn(t *testing.T) {
	e, api := newTestEngine(t)
	require.NoError(t, e.Store().SaveWarnFilter(testChat, db.WarnFilter{Keyword: "buy now", Reply: "no selling"}))

	f, out, err := e.FilterWarn(testChat, 7, "hey, BUY NOW!")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "no selling", out.Reason)
	assert.Equal(t, 1, out.Count)

	f, _, err = e.FilterWarn(testChat, 7, "buy nowhere")
	require.NoError(t, err)
	assert.Nil(t, f)

	api.setMember(testChat, 8, StatusCreator)
	f, out, err = e.FilterWarn(testChat, 8, "buy now")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.Nil(t, out)

	warns, err := e.Store().GetWarns(testChat, 7)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Zero(t, warns[0].AdminID)
}

func TestBanKickUnban(t *testing.T) {
	e, api := newTestEngine(t)

	until := time.Now().Add(time.Hour)
	require.NoError(t, e.Ban(testChat, 7, until))
	assert.Equal(t, until, api.callsFor("ban")[0].Until)

	assert.ErrorIs(t, e.Unban(testChat, 8), ErrStillMember)
	require.NoError(t, e.Unban(testChat, 7))

	require.NoError(t, e.Kick(testChat, 9))
	assert.Equal(t, []string{"ban", "unban", "ban", "unban"}, api.ops())

	api.setMember(testChat, 10, StatusAdmin)
	assert.ErrorIs(t, e.Ban(testChat, 10, time.Time{}), ErrAdminTarget)
	assert.ErrorIs(t, e.KickMe(testChat, 10), ErrAdminTarget)
	assert.ErrorIs(t, e.Ban(testChat, testBot, time.Time{}), ErrSelfTarget)
	assert.ErrorIs(t, e.Kick(testChat, testStaff), ErrProtectedTarget)
}

func TestMuteUnmute(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.ErrorIs(t, e.Unmute(testChat, 7), ErrNotMuted)
	require.NoError(t, e.Mute(testChat, 7, time.Time{}))
	assert.ErrorIs(t, e.Mute(testChat, 7, time.Time{}), ErrAlreadyMuted)
	require.NoError(t, e.Unmute(testChat, 7))

	require.NoError(t, e.Ban(testChat, 8, time.Time{}))
	assert.ErrorIs(t, e.Unmute(testChat, 8), ErrNotInChat)
}

func TestFlood(t *testing.T) {
	e, api := newTestEngine(t)
	assert.ErrorIs(t, e.SetFloodLimit(testChat, 2), ErrLimitTooLow)
	require.NoError(t, e.SetFloodLimit(testChat, 3))

	for range 3 {
		res, err := e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
		assert.Equal(t, FloodNone, res)
	}
	// another user breaks the streak
	res, err := e.CheckFlood(testChat, 8, false)
	require.NoError(t, err)
	assert.Equal(t, FloodNone, res)

	for range 3 {
		_, err := e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
	}
	// an admin message resets it too
	_, err = e.CheckFlood(testChat, 9, true)
	require.NoError(t, err)
	for range 3 {
		_, err := e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
	}
	assert.Empty(t, api.ops())

	res, err = e.CheckFlood(testChat, 7, false)
	require.NoError(t, err)
	assert.Equal(t, FloodBanned, res)
	assert.Equal(t, []string{"ban"}, api.ops())

	// counter restarts after a ban
	res, err = e.CheckFlood(testChat, 7, false)
	require.NoError(t, err)
	assert.Equal(t, FloodNone, res)
}

func TestFloodDisablesWhenBanFails(t *testing.T) {
	e, api := newTestEngine(t)
	require.NoError(t, e.SetFloodLimit(testChat, 3))
	api.failOn("ban", testChat, errors.New("CHAT_ADMIN_REQUIRED"))

	var res FloodResult
	for range 4 {
		var err error
		res, err = e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
	}
	assert.Equal(t, FloodDisabled, res)

	limit, err := e.Store().GetFloodLimit(testChat)
	require.NoError(t, err)
	assert.Zero(t, limit)
}

func TestFloodKeepsLimitOnTransientBanError(t *testing.T) {
	e, api := newTestEngine(t)
	require.NoError(t, e.SetFloodLimit(testChat, 3))
	api.failOn("ban", testChat, errors.New("rpc error: i/o timeout"))

	for range 3 {
		_, err := e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
	}
	res, err := e.CheckFlood(testChat, 7, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Equal(t, FloodNone, res)

	limit, err := e.Store().GetFloodLimit(testChat)
	require.NoError(t, err)
	assert.Equal(t, 3, limit)

	// once the platform recovers the next flood is punished
	api.failOn("ban", testChat, nil)
	for range 3 {
		_, err := e.CheckFlood(testChat, 7, false)
		require.NoError(t, err)
	}
	res, err = e.CheckFlood(testChat, 7, false)
	require.NoError(t, err)
	assert.Equal(t, FloodBanned, res)
}

func TestBlacklist(t *testing.T) {
	e, api := newTestEngine(t)
	_, err := e.Store().AddBlacklist(testChat, "casino")
	require.NoError(t, err)

	hit, err := e.CheckBlacklist(testChat, 7, 55, "best CASINO in town")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, db.ActionDelete, hit.Action)
	assert.Equal(t, []string{"delete"}, api.ops())

	settings, err := ParseBlacklistAction("tmute", "2h")
	require.NoError(t, err)
	require.NoError(t, e.Store().SetBlacklistSettings(testChat, settings))

	hit, err = e.CheckBlacklist(testChat, 7, 56, "casino")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, hit.Duration)
	mutes := api.callsFor("mute")
	require.Len(t, mutes, 1)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), mutes[0].Until, time.Minute)

	api.setMember(testChat, 8, StatusAdmin)
	hit, err = e.CheckBlacklist(testChat, 8, 57, "casino")
	require.NoError(t, err)
	assert.Nil(t, hit)

	hit, err = e.CheckBlacklist(testChat, 7, 58, "casinos")
	require.NoError(t, err)
	assert.Nil(t, hit)

	_, err = ParseBlacklistAction("tban", "soon")
	assert.ErrorIs(t, err, ErrBadDuration)
	_, err = ParseBlacklistAction("explode", "")
	assert.Error(t, err)
}

func seedChats(t *testing.T, e *Engine, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, e.Store().UpdateChat(db.Chat{ID: id, Title: "chat"}))
	}
}

func TestGbanFanout(t *testing.T) {
	e, api := newTestEngine(t)
	seedChats(t, e, -1, -2, -3, -4)
	require.NoError(t, e.Store().SetChatGbans(-4, false))
	api.failOn("ban", -2, errors.New("rpc error code 400: USER_NOT_PARTICIPANT"))

	res, err := e.Gban(context.Background(), GbanTarget{UserID: 7, Name: "eve", Private: true}, "spam", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chats)
	assert.Equal(t, 2, res.Done)
	assert.Equal(t, 1, res.Skipped)

	ok, err := e.Store().IsGbanned(7)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Gban(context.Background(), GbanTarget{UserID: 7, Name: "eve", Private: true}, "", 1)
	assert.ErrorIs(t, err, ErrAlreadyGbanned)

	res, err = e.Gban(context.Background(), GbanTarget{UserID: 7, Name: "eve", Private: true}, "scam", 1)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	u, err := e.Store().GetGbannedUser(7)
	require.NoError(t, err)
	assert.Equal(t, "scam", u.Reason)
}

func TestGbanRollsBackOnFatalError(t *testing.T) {
	e, api := newTestEngine(t)
	seedChats(t, e, -1, -2)
	api.failOn("ban", -2, errors.New("FLOOD_WAIT_300"))

	_, err := e.Gban(context.Background(), GbanTarget{UserID: 7, Private: true}, "", 1)
	var fe *FanoutError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(-2), fe.ChatID)

	ok, err := e.Store().IsGbanned(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGbanRefusals(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Gban(ctx, GbanTarget{UserID: testBot, Private: true}, "", 1)
	assert.ErrorIs(t, err, ErrSelfTarget)
	_, err = e.Gban(ctx, GbanTarget{UserID: testStaff, Private: true}, "", 1)
	assert.ErrorIs(t, err, ErrProtectedTarget)
	_, err = e.Gban(ctx, GbanTarget{UserID: 5}, "", 1)
	assert.ErrorIs(t, err, ErrNoUser)
	_, err = e.Ungban(ctx, 5)
	assert.ErrorIs(t, err, ErrNotGbanned)
}

func TestUngban(t *testing.T) {
	e, api := newTestEngine(t)
	seedChats(t, e, -1, -2, -3)
	require.NoError(t, e.Store().GbanUser(db.GbannedUser{UserID: 7}))
	api.setMember(-1, 7, StatusKicked)
	api.setMember(-2, 7, StatusMember)
	api.failOn("member", -3, errors.New("CHANNEL_PRIVATE"))

	res, err := e.Ungban(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chats)
	assert.Equal(t, 1, res.Skipped)

	unbans := api.callsFor("unban")
	require.Len(t, unbans, 1)
	assert.Equal(t, int64(-1), unbans[0].ChatID)

	ok, err := e.Store().IsGbanned(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFanoutForgetsDeadChats(t *testing.T) {
	e, api := newTestEngine(t)
	seedChats(t, e, -1, -2, -3, -4)
	api.failOn("ban", -2, errors.New("CHANNEL_INVALID"))
	api.failOn("ban", -3, errors.New("CHAT_ADMIN_REQUIRED"))
	api.failOn("ban", -4, errors.New("rpc error: GROUP_CHAT_WAS_DEACTIVATED"))

	res, err := e.Gban(context.Background(), GbanTarget{UserID: 7, Private: true}, "spam", testStaff)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Chats)
	assert.Equal(t, 1, res.Done)
	assert.Equal(t, 3, res.Skipped)

	chats, err := e.Store().AllChats()
	require.NoError(t, err)
	var ids []int64
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []int64{-1, -3}, ids, "a chat lacking rights is kept")
}

func TestUngbanKeepsRecordOnFatalError(t *testing.T) {
	e, api := newTestEngine(t)
	seedChats(t, e, -1)
	require.NoError(t, e.Store().GbanUser(db.GbannedUser{UserID: 7}))
	api.setMember(-1, 7, StatusKicked)
	api.failOn("unban", -1, errors.New("INTERNAL_SERVER_ERROR"))

	_, err := e.Ungban(context.Background(), 7)
	require.Error(t, err)

	ok, err := e.Store().IsGbanned(7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnforceGban(t *testing.T) {
	e, api := newTestEngine(t)
	require.NoError(t, e.Store().GbanUser(db.GbannedUser{UserID: 7}))

	banned, err := e.EnforceGban(testChat, 8)
	require.NoError(t, err)
	assert.False(t, banned)

	banned, err = e.EnforceGban(testChat, 7)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, e.Store().SetChatGbans(-5, false))
	banned, err = e.EnforceGban(-5, 7)
	require.NoError(t, err)
	assert.False(t, banned)

	api.setMember(-6, 7, StatusAdmin)
	banned, err = e.EnforceGban(-6, 7)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestMemberCache(t *testing.T) {
	api := newFakeAPI()
	cache, err := NewMemberCache(api, 100, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	api.setMember(testChat, 7, StatusAdmin)
	m, err := cache.Member(testChat, 7)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin())
	_, err = cache.Member(testChat, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, api.memberLookup)

	require.NoError(t, cache.Ban(testChat, 7, time.Time{}))
	m, err = cache.Member(testChat, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusKicked, m.Status)
	assert.Equal(t, 2, api.memberLookup)
}
