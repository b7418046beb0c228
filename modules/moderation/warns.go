package moderation

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"modbot/modules/db"
)

type WarnOutcome struct {
	Count  int
	Limit  int
	Reason string
	// Action is set when this warn hit the limit and the user was punished.
	Action db.WarnAction
}

func (o *WarnOutcome) Punished() bool { return o.Action != "" }

// Warn adds a warn for userID. warnerID 0 marks an automated filter warn.
// When the warn count reaches the chat's limit the warns are cleared and the
// configured action is applied.
func (e *Engine) Warn(chatID, userID int64, reason string, warnerID int64) (*WarnOutcome, error) {
	if _, err := e.checkTarget(chatID, userID); err != nil {
		return nil, err
	}

	settings, err := e.store.GetWarnSettings(chatID)
	if err != nil {
		return nil, fmt.Errorf("warn settings: %w", err)
	}

	count, err := e.store.AddWarn(chatID, userID, &db.Warn{
		Reason:    reason,
		AdminID:   warnerID,
		Timestamp: time.Now(),
	}, settings.Limit)
	if err != nil {
		return nil, fmt.Errorf("add warn: %w", err)
	}

	out := &WarnOutcome{Count: count, Limit: settings.Limit, Reason: reason}
	log := e.log.With(zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))

	if count < settings.Limit {
		log.Debug("warned", zap.Int("count", count), zap.Int("limit", settings.Limit))
		return out, nil
	}

	switch settings.Action {
	case db.WarnActionKick:
		err = e.kick(chatID, userID)
	case db.WarnActionMute:
		err = e.api.Mute(chatID, userID, time.Time{})
	default:
		settings.Action = db.WarnActionBan
		err = e.api.Ban(chatID, userID, time.Time{})
	}
	if err != nil {
		return out, fmt.Errorf("warn %s: %w", settings.Action, err)
	}
	out.Action = settings.Action
	log.Info("warn limit reached", zap.String("action", string(settings.Action)))
	return out, nil
}

// RemoveLastWarn drops the newest warn and reports whether there was one.
func (e *Engine) RemoveLastWarn(chatID, userID int64) (bool, error) {
	return e.store.RemoveLastWarn(chatID, userID)
}

func (e *Engine) ResetWarns(chatID, userID int64) error {
	return e.store.ResetWarns(chatID, userID)
}

type WarnSummary struct {
	Count   int
	Limit   int
	Reasons []string
}

func (e *Engine) Warns(chatID, userID int64) (*WarnSummary, error) {
	warns, err := e.store.GetWarns(chatID, userID)
	if err != nil {
		return nil, err
	}
	settings, err := e.store.GetWarnSettings(chatID)
	if err != nil {
		return nil, err
	}

	s := &WarnSummary{Count: len(warns), Limit: settings.Limit}
	for _, w := range warns {
		if w.Reason != "" {
			s.Reasons = append(s.Reasons, w.Reason)
		}
	}
	return s, nil
}

func (e *Engine) SetWarnLimit(chatID int64, limit int) error {
	if limit < db.MinWarnLimit {
		return fmt.Errorf("%w: minimum is %d", ErrLimitTooLow, db.MinWarnLimit)
	}
	settings, err := e.store.GetWarnSettings(chatID)
	if err != nil {
		return err
	}
	settings.Limit = limit
	return e.store.SetWarnSettings(chatID, settings)
}

func (e *Engine) SetWarnAction(chatID int64, action db.WarnAction) error {
	settings, err := e.store.GetWarnSettings(chatID)
	if err != nil {
		return err
	}
	settings.Action = action
	return e.store.SetWarnSettings(chatID, settings)
}

// FilterWarn warns the sender when text contains one of the chat's warn
// filter keywords. Admins and staff are skipped. It returns nil when no
// filter fired.
func (e *Engine) FilterWarn(chatID, senderID int64, text string) (*db.WarnFilter, *WarnOutcome, error) {
	if text == "" {
		return nil, nil, nil
	}
	filters, err := e.store.GetWarnFilters(chatID)
	if err != nil || len(filters) == 0 {
		return nil, nil, err
	}

	for _, f := range filters {
		if !MatchWord(text, f.Keyword) {
			continue
		}
		out, err := e.Warn(chatID, senderID, f.Reply, 0)
		if errors.Is(err, ErrAdminTarget) || errors.Is(err, ErrProtectedTarget) || errors.Is(err, ErrSelfTarget) {
			return nil, nil, nil
		}
		return &f, out, err
	}
	return nil, nil, nil
}
