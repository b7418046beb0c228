package moderation

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"modbot/modules/db"
)

type Options struct {
	BotID int64

	// Staff reports whether a user is bot staff (owner, sudo or support).
	// Staff cannot be banned, muted or gbanned.
	Staff           func(userID int64) bool
	StrictGban      bool
	GbanConcurrency int
	GbanCallsPerSec float64
}

type Engine struct {
	store *db.DB
	api   ChatAPI
	log   *zap.Logger
	opts  Options

	limiter *rate.Limiter

	floodMu sync.Mutex
	flood   map[int64]*floodState
}

func New(store *db.DB, api ChatAPI, log *zap.Logger, opts Options) *Engine {
	if opts.Staff == nil {
		opts.Staff = func(int64) bool { return false }
	}
	if opts.GbanConcurrency <= 0 {
		opts.GbanConcurrency = 8
	}
	limit := rate.Inf
	if opts.GbanCallsPerSec > 0 {
		limit = rate.Limit(opts.GbanCallsPerSec)
	}
	return &Engine{
		store:   store,
		api:     api,
		log:     log,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		flood:   make(map[int64]*floodState),
	}
}

func (e *Engine) Store() *db.DB { return e.store }

func (e *Engine) API() ChatAPI { return e.api }

func (e *Engine) IsStaff(userID int64) bool { return e.opts.Staff(userID) }

// IsAdmin reports whether the user administers the chat.
func (e *Engine) IsAdmin(chatID, userID int64) (bool, error) {
	m, err := e.api.Member(chatID, userID)
	if err != nil {
		return false, fmt.Errorf("member %d in %d: %w", userID, chatID, err)
	}
	return m.IsAdmin(), nil
}

// checkTarget refuses actions against the bot, staff and chat admins.
func (e *Engine) checkTarget(chatID, userID int64) (*Member, error) {
	if userID == e.opts.BotID {
		return nil, ErrSelfTarget
	}
	if e.opts.Staff(userID) {
		return nil, ErrProtectedTarget
	}
	m, err := e.api.Member(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("member %d in %d: %w", userID, chatID, err)
	}
	if m.IsAdmin() {
		return m, ErrAdminTarget
	}
	return m, nil
}

// Ban bans the user until the given time; zero means forever.
func (e *Engine) Ban(chatID, userID int64, until time.Time) error {
	if _, err := e.checkTarget(chatID, userID); err != nil {
		return err
	}
	return e.api.Ban(chatID, userID, until)
}

// Kick removes the user without leaving them banned.
func (e *Engine) Kick(chatID, userID int64) error {
	if _, err := e.checkTarget(chatID, userID); err != nil {
		return err
	}
	return e.kick(chatID, userID)
}

func (e *Engine) kick(chatID, userID int64) error {
	if err := e.api.Ban(chatID, userID, time.Time{}); err != nil {
		return err
	}
	return e.api.Unban(chatID, userID)
}

// KickMe lets a member leave by themselves. Admins are refused.
func (e *Engine) KickMe(chatID, userID int64) error {
	admin, err := e.IsAdmin(chatID, userID)
	if err != nil {
		return err
	}
	if admin {
		return ErrAdminTarget
	}
	return e.kick(chatID, userID)
}

func (e *Engine) Unban(chatID, userID int64) error {
	if userID == e.opts.BotID {
		return ErrSelfTarget
	}
	m, err := e.api.Member(chatID, userID)
	if err != nil {
		return fmt.Errorf("member %d in %d: %w", userID, chatID, err)
	}
	if m.InChat() && m.Status != StatusRestricted {
		return ErrStillMember
	}
	return e.api.Unban(chatID, userID)
}

func (e *Engine) Mute(chatID, userID int64, until time.Time) error {
	m, err := e.checkTarget(chatID, userID)
	if err != nil {
		return err
	}
	if until.IsZero() && m.IsMuted() {
		return ErrAlreadyMuted
	}
	return e.api.Mute(chatID, userID, until)
}

func (e *Engine) Unmute(chatID, userID int64) error {
	m, err := e.api.Member(chatID, userID)
	if err != nil {
		return fmt.Errorf("member %d in %d: %w", userID, chatID, err)
	}
	if !m.InChat() {
		return ErrNotInChat
	}
	if !m.IsMuted() {
		return ErrNotMuted
	}
	return e.api.Unmute(chatID, userID)
}
