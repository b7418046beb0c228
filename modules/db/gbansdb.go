package db

import (
	"encoding/json"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

type GbannedUser struct {
	UserID int64     `json:"user_id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason,omitempty"`
	BanBy  int64     `json:"ban_by,omitempty"`
	Time   time.Time `json:"time"`
}

func (d *DB) GbanUser(u GbannedUser) error {
	if u.Time.IsZero() {
		u.Time = time.Now()
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketGbans), idKey(u.UserID), u)
	})
}

// UpdateGbanReason rewrites name and reason of an existing gban. It returns
// ErrNotFound when the user is not gbanned.
func (d *DB) UpdateGbanReason(userID int64, name, reason string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGbans)
		var u GbannedUser
		found, err := getJSON(b, idKey(userID), &u)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		u.Name = name
		u.Reason = reason
		return putJSON(b, idKey(userID), u)
	})
}

func (d *DB) UngbanUser(userID int64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGbans).Delete(idKey(userID))
	})
}

func (d *DB) IsGbanned(userID int64) (bool, error) {
	found := false
	err := d.bolt.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketGbans).Get(idKey(userID)) != nil
		return nil
	})
	return found, err
}

func (d *DB) GetGbannedUser(userID int64) (*GbannedUser, error) {
	var u GbannedUser
	var found bool
	err := d.bolt.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket(bucketGbans), idKey(userID), &u)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GbanList returns every gbanned user, oldest first.
func (d *DB) GbanList() ([]GbannedUser, error) {
	var users []GbannedUser
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGbans).ForEach(func(_, v []byte) error {
			var u GbannedUser
			if err := json.Unmarshal(v, &u); err != nil {
				return nil
			}
			users = append(users, u)
			return nil
		})
	})
	sort.Slice(users, func(i, j int) bool { return users[i].Time.Before(users[j].Time) })
	return users, err
}

// SetChatGbans toggles gban enforcement for a chat. Enforcement is on unless
// a chat opted out.
func (d *DB) SetChatGbans(chatID int64, enabled bool) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGbanOptOut)
		if enabled {
			return b.Delete(idKey(chatID))
		}
		return b.Put(idKey(chatID), []byte{1})
	})
}

func (d *DB) ChatGbansEnabled(chatID int64) (bool, error) {
	enabled := true
	err := d.bolt.View(func(tx *bolt.Tx) error {
		enabled = tx.Bucket(bucketGbanOptOut).Get(idKey(chatID)) == nil
		return nil
	})
	return enabled, err
}
