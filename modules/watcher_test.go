package modules

import (
	"testing"

	tg "github.com/amarnathcjd/gogram/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeaveNotice(t *testing.T) {
	for _, a := range []tg.MessageAction{
		&tg.MessageActionChatAddUser{Users: []int64{7}},
		&tg.MessageActionChatJoinedByLink{InviterID: 1},
		&tg.MessageActionChatJoinedByRequest{},
		&tg.MessageActionChatDeleteUser{UserID: 7},
	} {
		assert.True(t, joinLeaveNotice(a), "%T", a)
	}

	assert.False(t, joinLeaveNotice(&tg.MessageActionChatMigrateTo{ChannelID: 5}))
	assert.False(t, joinLeaveNotice(&tg.MessageActionPinMessage{}))
	assert.False(t, joinLeaveNotice(nil))
}

func TestMigratedChatID(t *testing.T) {
	id, err := migratedChatID(1234567890)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), id)

	_, err = migratedChatID(0)
	assert.Error(t, err)
}
