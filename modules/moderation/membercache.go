package moderation

import (
	"time"

	"github.com/maypok86/otter"
)

type memberKey struct {
	chatID int64
	userID int64
}

// MemberCache wraps a ChatAPI and remembers member lookups for a while.
// Every restriction issued through it forgets the affected member.
type MemberCache struct {
	ChatAPI
	cache otter.Cache[memberKey, Member]
}

func NewMemberCache(api ChatAPI, capacity int, ttl time.Duration) (*MemberCache, error) {
	cache, err := otter.MustBuilder[memberKey, Member](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &MemberCache{ChatAPI: api, cache: cache}, nil
}

func (c *MemberCache) Member(chatID, userID int64) (*Member, error) {
	key := memberKey{chatID, userID}
	if m, ok := c.cache.Get(key); ok {
		return &m, nil
	}
	m, err := c.ChatAPI.Member(chatID, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, *m)
	return m, nil
}

// Forget drops a cached member, e.g. after a promotion.
func (c *MemberCache) Forget(chatID, userID int64) {
	c.cache.Delete(memberKey{chatID, userID})
}

func (c *MemberCache) Ban(chatID, userID int64, until time.Time) error {
	defer c.Forget(chatID, userID)
	return c.ChatAPI.Ban(chatID, userID, until)
}

func (c *MemberCache) Unban(chatID, userID int64) error {
	defer c.Forget(chatID, userID)
	return c.ChatAPI.Unban(chatID, userID)
}

func (c *MemberCache) Mute(chatID, userID int64, until time.Time) error {
	defer c.Forget(chatID, userID)
	return c.ChatAPI.Mute(chatID, userID, until)
}

func (c *MemberCache) Unmute(chatID, userID int64) error {
	defer c.Forget(chatID, userID)
	return c.ChatAPI.Unmute(chatID, userID)
}

func (c *MemberCache) Close() {
	c.cache.Close()
}
