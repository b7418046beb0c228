package moderation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"modbot/modules/db"
)

const defaultTempAction = time.Hour

type BlacklistHit struct {
	Trigger  string
	Action   db.BlacklistAction
	Duration time.Duration
}

// CheckBlacklist deletes a message whose text hits one of the chat's
// triggers and applies the configured action to its sender. It returns nil
// when nothing matched or the sender is an admin.
func (e *Engine) CheckBlacklist(chatID, senderID int64, msgID int32, text string) (*BlacklistHit, error) {
	if text == "" {
		return nil, nil
	}
	triggers, err := e.store.GetBlacklist(chatID)
	if err != nil || len(triggers) == 0 {
		return nil, err
	}
	trigger, ok := FirstMatch(text, triggers)
	if !ok {
		return nil, nil
	}

	admin, err := e.IsAdmin(chatID, senderID)
	if err != nil {
		return nil, err
	}
	if admin || e.opts.Staff(senderID) {
		return nil, nil
	}

	settings, err := e.store.GetBlacklistSettings(chatID)
	if err != nil {
		return nil, err
	}
	hit := &BlacklistHit{Trigger: trigger, Action: settings.Action}

	log := e.log.With(zap.Int64("chat_id", chatID), zap.Int64("user_id", senderID), zap.String("trigger", trigger))
	if err := e.api.DeleteMessage(chatID, msgID); err != nil {
		log.Warn("delete blacklisted message", zap.Error(err))
	}

	switch settings.Action {
	case db.ActionBan:
		err = e.api.Ban(chatID, senderID, time.Time{})
	case db.ActionMute:
		err = e.api.Mute(chatID, senderID, time.Time{})
	case db.ActionTBan, db.ActionTMute:
		hit.Duration = defaultTempAction
		if d, perr := ParseDuration(settings.Duration); perr == nil {
			hit.Duration = d
		}
		until := time.Now().Add(hit.Duration)
		if settings.Action == db.ActionTBan {
			err = e.api.Ban(chatID, senderID, until)
		} else {
			err = e.api.Mute(chatID, senderID, until)
		}
	default:
		hit.Action = db.ActionDelete
	}
	if err != nil {
		return hit, fmt.Errorf("blacklist %s: %w", settings.Action, err)
	}
	return hit, nil
}

// ParseBlacklistAction validates the arguments of /blaction.
func ParseBlacklistAction(action, duration string) (db.BlacklistSettings, error) {
	s := db.BlacklistSettings{Action: db.BlacklistAction(action)}
	switch s.Action {
	case db.ActionDelete, db.ActionBan, db.ActionMute:
		return s, nil
	case db.ActionTBan, db.ActionTMute:
		if _, err := ParseDuration(duration); err != nil {
			return s, err
		}
		s.Duration = duration
		return s, nil
	}
	return s, fmt.Errorf("unknown blacklist action %q", action)
}
