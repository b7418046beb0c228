package modules

import (
	"errors"
	"fmt"
	"time"

	tg "github.com/amarnathcjd/gogram/telegram"

	"modbot/modules/moderation"
)

// errBasicGroup is returned for restrictions that basic groups do not have.
var errBasicGroup = errors.New("basic groups can't restrict members, upgrade the group to a supergroup first")

// tgAPI carries out moderation calls through the gogram client.
type tgAPI struct {
	c *tg.Client
}

func tillDate(until time.Time) int32 {
	if until.IsZero() {
		return 0
	}
	return int32(until.Unix())
}

// basicGroup returns the bare chat id when chatID is a basic (non-super)
// group.
func (a *tgAPI) basicGroup(chatID int64) (int64, bool, error) {
	peer, err := a.c.ResolvePeer(chatID)
	if err != nil {
		return 0, false, err
	}
	if chat, ok := peer.(*tg.InputPeerChat); ok {
		return chat.ChatID, true, nil
	}
	return 0, false, nil
}

func (a *tgAPI) Ban(chatID, userID int64, until time.Time) error {
	_, err := a.c.EditBanned(chatID, userID, &tg.BannedOptions{Ban: true, TillDate: tillDate(until)})
	return err
}

// Unban lifts a ban. Basic groups keep no ban list, so there is nothing to
// lift there.
func (a *tgAPI) Unban(chatID, userID int64) error {
	if _, basic, err := a.basicGroup(chatID); err != nil || basic {
		return err
	}
	_, err := a.c.EditBanned(chatID, userID, &tg.BannedOptions{Unban: true})
	return err
}

// Mute and Unmute refuse basic groups: the client maps every restriction
// there to removing the member.
func (a *tgAPI) Mute(chatID, userID int64, until time.Time) error {
	if _, basic, err := a.basicGroup(chatID); err != nil {
		return err
	} else if basic {
		return errBasicGroup
	}
	_, err := a.c.EditBanned(chatID, userID, &tg.BannedOptions{Mute: true, TillDate: tillDate(until)})
	return err
}

func (a *tgAPI) Unmute(chatID, userID int64) error {
	if _, basic, err := a.basicGroup(chatID); err != nil {
		return err
	} else if basic {
		return errBasicGroup
	}
	_, err := a.c.EditBanned(chatID, userID, &tg.BannedOptions{Unmute: true})
	return err
}

func (a *tgAPI) Member(chatID, userID int64) (*moderation.Member, error) {
	bare, basic, err := a.basicGroup(chatID)
	if err != nil {
		return nil, err
	}
	if basic {
		full, err := a.c.MessagesGetFullChat(bare)
		if err != nil {
			return nil, err
		}
		obj, ok := full.FullChat.(*tg.ChatFullObj)
		if !ok {
			return nil, fmt.Errorf("unexpected full chat %T", full.FullChat)
		}
		return basicGroupMember(userID, obj.Participants)
	}

	p, err := a.c.GetChatMember(chatID, userID)
	if err != nil {
		return nil, err
	}
	return channelMember(userID, p.Status, p.Rights, p.Participant), nil
}

// channelMember maps a supergroup participant. The client reports banned
// and restricted users alike as restricted; the banned rights tell them
// apart.
func channelMember(userID int64, status string, rights *tg.ChatAdminRights, part tg.ChannelParticipant) *moderation.Member {
	m := &moderation.Member{UserID: userID, Status: moderation.StatusMember, CanSendMessages: true}
	switch status {
	case tg.Creator:
		m.Status = moderation.StatusCreator
		m.CanRestrict = true
	case tg.Admin:
		m.Status = moderation.StatusAdmin
		m.CanRestrict = rights != nil && rights.BanUsers
	case tg.Left:
		m.Status = moderation.StatusLeft
	case tg.Kicked:
		m.Status = moderation.StatusKicked
		m.CanSendMessages = false
	case tg.Restricted:
		b, ok := part.(*tg.ChannelParticipantBanned)
		switch {
		case ok && b.BannedRights != nil && b.BannedRights.ViewMessages:
			m.Status = moderation.StatusKicked
			m.CanSendMessages = false
		case ok && b.Left:
			m.Status = moderation.StatusLeft
		default:
			m.Status = moderation.StatusRestricted
			if ok && b.BannedRights != nil {
				m.CanSendMessages = !b.BannedRights.SendMessages
			}
		}
	}
	return m
}

// basicGroupMember finds userID in a basic group's participant list. Anyone
// missing from it is treated as having left.
func basicGroupMember(userID int64, participants tg.ChatParticipants) (*moderation.Member, error) {
	list, ok := participants.(*tg.ChatParticipantsObj)
	if !ok {
		return nil, errors.New("participants of this group are hidden")
	}

	m := &moderation.Member{UserID: userID, Status: moderation.StatusLeft}
	for _, p := range list.Participants {
		switch p := p.(type) {
		case *tg.ChatParticipantCreator:
			if p.UserID == userID {
				m.Status, m.CanRestrict, m.CanSendMessages = moderation.StatusCreator, true, true
				return m, nil
			}
		case *tg.ChatParticipantAdmin:
			if p.UserID == userID {
				m.Status, m.CanRestrict, m.CanSendMessages = moderation.StatusAdmin, true, true
				return m, nil
			}
		case *tg.ChatParticipantObj:
			if p.UserID == userID {
				m.Status, m.CanSendMessages = moderation.StatusMember, true
				return m, nil
			}
		}
	}
	return m, nil
}

func (a *tgAPI) DeleteMessage(chatID int64, msgID int32) error {
	_, err := a.c.DeleteMessages(chatID, []int32{msgID})
	return err
}

func (a *tgAPI) SendMessage(chatID int64, text string) error {
	_, err := a.c.SendMessage(chatID, text)
	return err
}
