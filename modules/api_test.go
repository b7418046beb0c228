package modules

import (
	"testing"

	tg "github.com/amarnathcjd/gogram/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/modules/moderation"
)

func TestChannelMember(t *testing.T) {
	banned := &tg.ChannelParticipantBanned{
		Peer:         &tg.PeerUser{UserID: 7},
		BannedRights: &tg.ChatBannedRights{ViewMessages: true, SendMessages: true},
	}
	muted := &tg.ChannelParticipantBanned{
		Peer:         &tg.PeerUser{UserID: 7},
		BannedRights: &tg.ChatBannedRights{SendMessages: true},
	}
	restrictedLeft := &tg.ChannelParticipantBanned{
		Left:         true,
		Peer:         &tg.PeerUser{UserID: 7},
		BannedRights: &tg.ChatBannedRights{SendMessages: true},
	}

	cases := []struct {
		name        string
		status      string
		rights      *tg.ChatAdminRights
		part        tg.ChannelParticipant
		want        moderation.MemberStatus
		canRestrict bool
		muted       bool
		inChat      bool
	}{
		{"creator", tg.Creator, nil, &tg.ChannelParticipantCreator{UserID: 7}, moderation.StatusCreator, true, false, true},
		{"admin with ban rights", tg.Admin, &tg.ChatAdminRights{BanUsers: true}, &tg.ChannelParticipantAdmin{UserID: 7}, moderation.StatusAdmin, true, false, true},
		{"admin without ban rights", tg.Admin, &tg.ChatAdminRights{}, &tg.ChannelParticipantAdmin{UserID: 7}, moderation.StatusAdmin, false, false, true},
		{"member", tg.Member, nil, &tg.ChannelParticipantObj{UserID: 7}, moderation.StatusMember, false, false, true},
		{"banned", tg.Restricted, nil, banned, moderation.StatusKicked, false, false, false},
		{"muted", tg.Restricted, nil, muted, moderation.StatusRestricted, false, true, true},
		{"restricted then left", tg.Restricted, nil, restrictedLeft, moderation.StatusLeft, false, false, false},
		{"left", tg.Left, nil, &tg.ChannelParticipantLeft{Peer: &tg.PeerUser{UserID: 7}}, moderation.StatusLeft, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := channelMember(7, tc.status, tc.rights, tc.part)
			assert.Equal(t, int64(7), m.UserID)
			assert.Equal(t, tc.want, m.Status)
			assert.Equal(t, tc.canRestrict, m.CanRestrict)
			assert.Equal(t, tc.muted, m.IsMuted())
			assert.Equal(t, tc.inChat, m.InChat())
		})
	}
}

func TestBasicGroupMember(t *testing.T) {
	list := &tg.ChatParticipantsObj{
		ChatID: 55,
		Participants: []tg.ChatParticipant{
			&tg.ChatParticipantCreator{UserID: 1},
			&tg.ChatParticipantAdmin{UserID: 2, InviterID: 1},
			&tg.ChatParticipantObj{UserID: 3, InviterID: 2},
		},
	}

	m, err := basicGroupMember(1, list)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusCreator, m.Status)
	assert.True(t, m.CanRestrict)

	m, err = basicGroupMember(2, list)
	require.NoError(t, err)
	assert.True(t, m.IsAdmin())
	assert.True(t, m.CanRestrict)

	m, err = basicGroupMember(3, list)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusMember, m.Status)
	assert.True(t, m.CanSendMessages)
	assert.False(t, m.IsMuted())

	m, err = basicGroupMember(4, list)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusLeft, m.Status)
	assert.False(t, m.InChat())

	_, err = basicGroupMember(1, &tg.ChatParticipantsForbidden{ChatID: 55})
	assert.Error(t, err)
}

func TestHelpModules(t *testing.T) {
	var mods Modules
	mods.AddModule("Warns", "warn help")
	mods.AddModule("Admin", "admin help")
	mods.AddModule("Backups", "backup help")

	assert.Equal(t, "warn help", mods.GetHelp("warns"))
	assert.Empty(t, mods.GetHelp("nope"))

	sorted := mods.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"Admin", "Backups", "Warns"}, []string{sorted[0].Name, sorted[1].Name, sorted[2].Name})
	assert.Equal(t, "Warns", mods.Mod[0].Name, "Sorted leaves the registration order alone")
}
