package db

import (
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// SetFloodLimit stores the antiflood limit; 0 disables antiflood.
func (d *DB) SetFloodLimit(chatID int64, limit int) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFlood)
		if limit <= 0 {
			return b.Delete(idKey(chatID))
		}
		return b.Put(idKey(chatID), []byte(strconv.Itoa(limit)))
	})
}

func (d *DB) GetFloodLimit(chatID int64) (int, error) {
	limit := 0
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFlood).Get(idKey(chatID))
		if v == nil {
			return nil
		}
		var err error
		limit, err = strconv.Atoi(string(v))
		return err
	})
	return limit, err
}

type AFK struct {
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since"`
}

func (d *DB) SetAFK(userID int64, reason string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketAFK), idKey(userID), AFK{Reason: reason, Since: time.Now()})
	})
}

// RemoveAFK clears the AFK mark and returns it, or nil if there was none.
func (d *DB) RemoveAFK(userID int64) (*AFK, error) {
	var afk AFK
	var found bool
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAFK)
		var err error
		found, err = getJSON(b, idKey(userID), &afk)
		if err != nil || !found {
			return err
		}
		return b.Delete(idKey(userID))
	})
	if err != nil || !found {
		return nil, err
	}
	return &afk, nil
}

func (d *DB) GetAFK(userID int64) (*AFK, error) {
	var afk AFK
	var found bool
	err := d.bolt.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket(bucketAFK), idKey(userID), &afk)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &afk, nil
}

func (d *DB) SetLogChannel(chatID, channelID int64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLogChannels).Put(idKey(chatID), idKey(channelID))
	})
}

// UnsetLogChannel reports whether a log channel was set.
func (d *DB) UnsetLogChannel(chatID int64) (bool, error) {
	removed := false
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogChannels)
		if b.Get(idKey(chatID)) == nil {
			return nil
		}
		removed = true
		return b.Delete(idKey(chatID))
	})
	return removed, err
}

// GetLogChannel returns 0 when the chat has none.
func (d *DB) GetLogChannel(chatID int64) (int64, error) {
	var channelID int64
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLogChannels).Get(idKey(chatID))
		if v == nil {
			return nil
		}
		var err error
		channelID, err = keyID(v)
		return err
	})
	return channelID, err
}
