// Package moderation holds the bot's moderation rules: warns, bans, antiflood,
// blacklists, global bans and greeting formatting. It talks to the chat
// platform only through ChatAPI so that every rule can run without a network.
package moderation

import (
	"errors"
	"time"
)

type MemberStatus string

const (
	StatusCreator    MemberStatus = "creator"
	StatusAdmin      MemberStatus = "admin"
	StatusMember     MemberStatus = "member"
	StatusRestricted MemberStatus = "restricted"
	StatusLeft       MemberStatus = "left"
	StatusKicked     MemberStatus = "kicked"
)

type Member struct {
	UserID          int64
	Status          MemberStatus
	CanSendMessages bool
	CanRestrict     bool
}

func (m *Member) IsAdmin() bool {
	return m.Status == StatusCreator || m.Status == StatusAdmin
}

// InChat reports whether the user currently belongs to the chat.
func (m *Member) InChat() bool {
	return m.Status != StatusLeft && m.Status != StatusKicked
}

func (m *Member) IsMuted() bool {
	return m.Status == StatusRestricted && !m.CanSendMessages
}

// ChatAPI is what the rules need from the chat platform. A zero until means
// forever.
type ChatAPI interface {
	Ban(chatID, userID int64, until time.Time) error
	Unban(chatID, userID int64) error
	Mute(chatID, userID int64, until time.Time) error
	Unmute(chatID, userID int64) error
	Member(chatID, userID int64) (*Member, error)
	DeleteMessage(chatID int64, msgID int32) error
	SendMessage(chatID int64, text string) error
}

var (
	ErrAdminTarget     = errors.New("target is a chat admin")
	ErrSelfTarget      = errors.New("target is the bot itself")
	ErrProtectedTarget = errors.New("target is bot staff")
	ErrNoUser          = errors.New("no user given")
	ErrUnknownUser     = errors.New("unknown username")
	ErrStillMember     = errors.New("user is still in the chat")
	ErrNotInChat       = errors.New("user is not in the chat")
	ErrAlreadyMuted    = errors.New("user is already muted")
	ErrNotMuted        = errors.New("user is not muted")
	ErrLimitTooLow     = errors.New("limit too low")
	ErrAlreadyGbanned  = errors.New("user is already gbanned")
	ErrNotGbanned      = errors.New("user is not gbanned")
	ErrBadDuration     = errors.New("invalid duration")
)
