package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modbot/modules/db"
)

// Platform errors that only mean "this chat cannot take part". Matching is
// done on the lower-cased message with underscores read as spaces, so both
// RPC codes and human-readable texts are covered.
var gbanSkippable = []string{
	"user is an administrator of the chat",
	"user admin invalid",
	"chat not found",
	"chat id invalid",
	"channel invalid",
	"not enough rights to restrict/unrestrict chat member",
	"chat admin required",
	"user not participant",
	"peer id invalid",
	"group chat was deactivated",
	"need to be inviter of a user to kick it from a basic group",
	"only the creator of a basic group can kick group administrators",
	"can't remove chat owner",
	"user not found",
}

var ungbanSkippable = append([]string{
	"method is available for supergroups only",
	"not in the chat",
	"channel private",
	"chat write forbidden",
}, gbanSkippable...)

// Errors meaning the bot is no longer in the chat, or the chat is gone. Such
// chats are dropped from the fan-out list.
var deadChatErrors = []string{
	"chat not found",
	"chat id invalid",
	"channel invalid",
	"channel private",
	"group chat was deactivated",
}

func skippable(err error, list []string) bool {
	msg := strings.ReplaceAll(strings.ToLower(err.Error()), "_", " ")
	for _, s := range list {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// FanoutError is a non-skippable failure that stopped a gban or ungban.
type FanoutError struct {
	ChatID int64
	Err    error
}

func (e *FanoutError) Error() string {
	return fmt.Sprintf("chat %d: %v", e.ChatID, e.Err)
}

func (e *FanoutError) Unwrap() error { return e.Err }

type FanoutResult struct {
	Chats   int
	Done    int
	Skipped int
	// Updated is set when an existing gban only had its reason changed.
	Updated bool
}

// fanout runs fn once per chat that enforces gbans, with bounded parallelism
// and paced calls. The first non-skippable error cancels the rest.
func (e *Engine) fanout(ctx context.Context, userID int64, skip []string, fn func(chatID int64) error) (*FanoutResult, error) {
	chats, err := e.store.AllChats()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	var targets []int64
	for _, c := range chats {
		enabled, err := e.store.ChatGbansEnabled(c.ID)
		if err != nil {
			return nil, err
		}
		if enabled {
			targets = append(targets, c.ID)
		}
	}

	res := &FanoutResult{Chats: len(targets)}
	var done, skipped atomic.Int64
	log := e.log.With(zap.Int64("user_id", userID))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.GbanConcurrency)
	for _, chatID := range targets {
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			err := fn(chatID)
			switch {
			case err == nil:
				done.Add(1)
			case skippable(err, skip):
				skipped.Add(1)
				log.Debug("chat skipped", zap.Int64("chat_id", chatID), zap.Error(err))
				if skippable(err, deadChatErrors) {
					e.forgetChat(chatID, err)
				}
			default:
				return &FanoutError{ChatID: chatID, Err: err}
			}
			return nil
		})
	}

	err = g.Wait()
	res.Done = int(done.Load())
	res.Skipped = int(skipped.Load())
	return res, err
}

// forgetChat drops a chat the bot can no longer reach from the chat list.
func (e *Engine) forgetChat(chatID int64, cause error) {
	if err := e.store.RemoveChat(chatID); err != nil {
		e.log.Warn("remove chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	e.log.Info("chat forgotten", zap.Int64("chat_id", chatID), zap.NamedError("cause", cause))
}

type GbanTarget struct {
	UserID int64
	Name   string

	// Private is false when the id belongs to a chat or channel.
	Private bool
}

// Gban records a global ban and bans the user in every chat that enforces
// gbans. A non-skippable failure undoes the record.
func (e *Engine) Gban(ctx context.Context, t GbanTarget, reason string, bannerID int64) (*FanoutResult, error) {
	if t.UserID == e.opts.BotID {
		return nil, ErrSelfTarget
	}
	if e.opts.Staff(t.UserID) {
		return nil, ErrProtectedTarget
	}
	if !t.Private {
		return nil, ErrNoUser
	}

	gbanned, err := e.store.IsGbanned(t.UserID)
	if err != nil {
		return nil, err
	}
	if gbanned {
		if reason == "" {
			return nil, ErrAlreadyGbanned
		}
		if err := e.store.UpdateGbanReason(t.UserID, t.Name, reason); err != nil {
			return nil, err
		}
		return &FanoutResult{Updated: true}, nil
	}

	if err := e.store.GbanUser(db.GbannedUser{UserID: t.UserID, Name: t.Name, Reason: reason, BanBy: bannerID}); err != nil {
		return nil, err
	}

	log := e.log.With(zap.Int64("user_id", t.UserID))
	res, err := e.fanout(ctx, t.UserID, gbanSkippable, func(chatID int64) error {
		return e.api.Ban(chatID, t.UserID, time.Time{})
	})
	if err != nil {
		log.Error("gban aborted", zap.Error(err))
		if rerr := e.store.UngbanUser(t.UserID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return res, err
	}
	log.Info("gban done", zap.Int("chats", res.Chats), zap.Int("done", res.Done), zap.Int("skipped", res.Skipped))
	return res, nil
}

// Ungban lifts the ban wherever the user is still kicked, then drops the
// record. On a non-skippable failure the record stays.
func (e *Engine) Ungban(ctx context.Context, userID int64) (*FanoutResult, error) {
	gbanned, err := e.store.IsGbanned(userID)
	if err != nil {
		return nil, err
	}
	if !gbanned {
		return nil, ErrNotGbanned
	}

	res, err := e.fanout(ctx, userID, ungbanSkippable, func(chatID int64) error {
		m, err := e.api.Member(chatID, userID)
		if err != nil {
			return err
		}
		if m.Status != StatusKicked {
			return nil
		}
		return e.api.Unban(chatID, userID)
	})
	if err != nil {
		e.log.Error("ungban aborted", zap.Int64("user_id", userID), zap.Error(err))
		return res, err
	}
	if err := e.store.UngbanUser(userID); err != nil {
		return res, err
	}
	e.log.Info("ungban done", zap.Int64("user_id", userID), zap.Int("chats", res.Chats), zap.Int("done", res.Done))
	return res, nil
}

// EnforceGban bans userID in chatID if the user is gbanned and the chat
// enforces gbans. It reports whether a ban was issued.
func (e *Engine) EnforceGban(chatID, userID int64) (bool, error) {
	if !e.opts.StrictGban || userID == 0 {
		return false, nil
	}
	enabled, err := e.store.ChatGbansEnabled(chatID)
	if err != nil || !enabled {
		return false, err
	}
	gbanned, err := e.store.IsGbanned(userID)
	if err != nil || !gbanned {
		return false, err
	}

	admin, err := e.IsAdmin(chatID, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return false, nil
	}
	if err := e.api.Ban(chatID, userID, time.Time{}); err != nil {
		return false, err
	}
	e.log.Info("gban enforced", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID))
	return true, nil
}
