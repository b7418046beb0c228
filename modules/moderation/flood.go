package moderation

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MinFloodLimit is the smallest accepted non-zero antiflood limit.
const MinFloodLimit = 3

// Ban failures that mean the bot lacks the rights to enforce antiflood at
// all. Anything else is treated as transient.
var floodRightsErrors = []string{
	"chat admin required",
	"not enough rights",
	"right forbidden",
	"user admin invalid",
	"chat write forbidden",
}

type floodState struct {
	userID int64
	count  int
}

type FloodResult int

const (
	FloodNone FloodResult = iota
	// FloodBanned means the sender flooded and was banned.
	FloodBanned
	// FloodDisabled means the bot may not ban here and antiflood was
	// switched off.
	FloodDisabled
)

// countFlood records one message and reports whether the sender went over
// limit consecutive messages. userID 0 resets the counter.
func (e *Engine) countFlood(chatID, userID int64, limit int) bool {
	e.floodMu.Lock()
	defer e.floodMu.Unlock()

	st, ok := e.flood[chatID]
	if !ok {
		st = &floodState{}
		e.flood[chatID] = st
	}
	if userID == 0 || st.userID != userID {
		st.userID = userID
		st.count = 0
		if userID == 0 {
			return false
		}
	}

	st.count++
	if st.count > limit {
		st.userID = 0
		st.count = 0
		return true
	}
	return false
}

// CheckFlood counts a message from senderID and bans a flooding sender.
// Messages from admins reset the counter.
func (e *Engine) CheckFlood(chatID, senderID int64, senderIsAdmin bool) (FloodResult, error) {
	limit, err := e.store.GetFloodLimit(chatID)
	if err != nil || limit == 0 {
		return FloodNone, err
	}
	if senderIsAdmin || e.opts.Staff(senderID) {
		e.countFlood(chatID, 0, limit)
		return FloodNone, nil
	}
	if !e.countFlood(chatID, senderID, limit) {
		return FloodNone, nil
	}

	log := e.log.With(zap.Int64("chat_id", chatID), zap.Int64("user_id", senderID))
	if err := e.api.Ban(chatID, senderID, time.Time{}); err != nil {
		if !skippable(err, floodRightsErrors) {
			log.Warn("flood ban failed", zap.Error(err))
			return FloodNone, fmt.Errorf("flood ban: %w", err)
		}
		log.Warn("no rights to ban flooders, disabling antiflood", zap.Error(err))
		if err := e.store.SetFloodLimit(chatID, 0); err != nil {
			return FloodNone, err
		}
		return FloodDisabled, nil
	}
	log.Info("flooder banned")
	return FloodBanned, nil
}

// SetFloodLimit sets the chat's limit; 0 turns antiflood off.
func (e *Engine) SetFloodLimit(chatID int64, limit int) error {
	if limit != 0 && limit < MinFloodLimit {
		return fmt.Errorf("%w: minimum is %d", ErrLimitTooLow, MinFloodLimit)
	}
	if err := e.store.SetFloodLimit(chatID, limit); err != nil {
		return err
	}
	e.floodMu.Lock()
	delete(e.flood, chatID)
	e.floodMu.Unlock()
	return nil
}
