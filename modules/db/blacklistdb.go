package db

import (
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"
)

type BlacklistAction string

const (
	ActionDelete BlacklistAction = "delete"
	ActionBan    BlacklistAction = "ban"
	ActionMute   BlacklistAction = "mute"
	ActionTBan   BlacklistAction = "tban"
	ActionTMute  BlacklistAction = "tmute"
)

type BlacklistSettings struct {
	Action   BlacklistAction `json:"action"`
	Duration string          `json:"duration,omitempty"`
}

// AddBlacklist stores the lower-cased triggers and returns how many were new.
func (d *DB) AddBlacklist(chatID int64, triggers ...string) (int, error) {
	added := 0
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketBlacklist, chatID)
		if err != nil {
			return err
		}
		for _, t := range triggers {
			key := []byte(strings.ToLower(t))
			if len(key) == 0 {
				continue
			}
			if cb.Get(key) == nil {
				added++
			}
			if err := cb.Put(key, []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}

// RemoveBlacklist reports whether the trigger was present.
func (d *DB) RemoveBlacklist(chatID int64, trigger string) (bool, error) {
	key := []byte(strings.ToLower(trigger))
	removed := false
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketBlacklist, chatID)
		if cb == nil || cb.Get(key) == nil {
			return nil
		}
		removed = true
		return cb.Delete(key)
	})
	return removed, err
}

// GetBlacklist returns the chat's triggers in sorted order.
func (d *DB) GetBlacklist(chatID int64) ([]string, error) {
	var triggers []string
	err := d.bolt.View(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketBlacklist, chatID)
		if cb == nil {
			return nil
		}
		return cb.ForEach(func(k, _ []byte) error {
			triggers = append(triggers, string(k))
			return nil
		})
	})
	sort.Strings(triggers)
	return triggers, err
}

func (d *DB) ClearBlacklist(chatID int64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		if chatBucket(tx, bucketBlacklist, chatID) == nil {
			return nil
		}
		return tx.Bucket(bucketBlacklist).DeleteBucket(idKey(chatID))
	})
}

func (d *DB) SetBlacklistSettings(chatID int64, settings BlacklistSettings) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketBlacklistConf), idKey(chatID), settings)
	})
}

func (d *DB) GetBlacklistSettings(chatID int64) (BlacklistSettings, error) {
	settings := BlacklistSettings{Action: ActionDelete}
	err := d.bolt.View(func(tx *bolt.Tx) error {
		_, err := getJSON(tx.Bucket(bucketBlacklistConf), idKey(chatID), &settings)
		return err
	})
	return settings, err
}
