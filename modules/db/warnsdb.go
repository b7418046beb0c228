package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

type WarnAction string

const (
	WarnActionBan  WarnAction = "ban"
	WarnActionKick WarnAction = "kick"
	WarnActionMute WarnAction = "mute"
)

const (
	DefaultWarnLimit = 3
	MinWarnLimit     = 3
)

type Warn struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason,omitempty"`
	AdminID   int64     `json:"admin_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type WarnSettings struct {
	Limit  int        `json:"limit"`
	Action WarnAction `json:"action"`
}

func DefaultWarnSettings() WarnSettings {
	return WarnSettings{Limit: DefaultWarnLimit, Action: WarnActionBan}
}

// AddWarn appends w for the user and returns the new warn count. When the
// count reaches limit the user's warns are cleared in the same transaction, so
// two concurrent warns can never both cross the threshold.
func (d *DB) AddWarn(chatID, userID int64, w *Warn, limit int) (int, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Timestamp.IsZero() {
		w.Timestamp = time.Now()
	}

	var count int
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketWarns, chatID)
		if err != nil {
			return err
		}
		ub, err := cb.CreateBucketIfNotExists(idKey(userID))
		if err != nil {
			return err
		}

		seq, err := ub.NextSequence()
		if err != nil {
			return err
		}
		if err := putJSON(ub, itob(seq), w); err != nil {
			return err
		}

		c := ub.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		if limit > 0 && count >= limit {
			return cb.DeleteBucket(idKey(userID))
		}
		return nil
	})
	return count, err
}

func (d *DB) GetWarns(chatID, userID int64) ([]*Warn, error) {
	var warns []*Warn
	err := d.bolt.View(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWarns, chatID)
		if cb == nil {
			return nil
		}
		ub := cb.Bucket(idKey(userID))
		if ub == nil {
			return nil
		}

		c := ub.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var w Warn
			if err := json.Unmarshal(v, &w); err != nil {
				continue
			}
			warns = append(warns, &w)
		}
		return nil
	})
	return warns, err
}

// RemoveLastWarn drops the newest warn and reports whether there was one.
func (d *DB) RemoveLastWarn(chatID, userID int64) (bool, error) {
	removed := false
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWarns, chatID)
		if cb == nil {
			return nil
		}
		ub := cb.Bucket(idKey(userID))
		if ub == nil {
			return nil
		}
		k, _ := ub.Cursor().Last()
		if k == nil {
			return nil
		}
		removed = true
		return ub.Delete(k)
	})
	return removed, err
}

func (d *DB) ResetWarns(chatID, userID int64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWarns, chatID)
		if cb == nil || cb.Bucket(idKey(userID)) == nil {
			return nil
		}
		return cb.DeleteBucket(idKey(userID))
	})
}

func (d *DB) SetWarnSettings(chatID int64, settings WarnSettings) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketWarnSettings), idKey(chatID), settings)
	})
}

func (d *DB) GetWarnSettings(chatID int64) (WarnSettings, error) {
	settings := DefaultWarnSettings()
	err := d.bolt.View(func(tx *bolt.Tx) error {
		_, err := getJSON(tx.Bucket(bucketWarnSettings), idKey(chatID), &settings)
		return err
	})
	return settings, err
}
