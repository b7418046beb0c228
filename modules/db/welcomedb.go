package db

import (
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Greeting is a welcome or goodbye configuration. Empty Content and FileID
// mean the built-in default text. CleanService is only read from the
// welcome: it deletes the platform's join and leave notices.
type Greeting struct {
	Enabled      bool     `json:"enabled"`
	Content      string   `json:"content,omitempty"`
	MediaType    string   `json:"media_type,omitempty"`
	FileID       string   `json:"file_id,omitempty"`
	Buttons      []Button `json:"buttons,omitempty"`
	CleanWelcome bool     `json:"clean_welcome,omitempty"`
	CleanService bool     `json:"clean_service,omitempty"`
}

func (g *Greeting) IsCustom() bool {
	return g.Content != "" || g.FileID != ""
}

var (
	keyWelcome     = []byte("msg")
	keyGoodbye     = []byte("bye")
	keyLastWelcome = []byte("last_msg_id")
)

func (d *DB) SetWelcome(chatID int64, g *Greeting) error {
	return d.putGreeting(chatID, keyWelcome, g)
}

func (d *DB) GetWelcome(chatID int64) (*Greeting, error) {
	return d.getGreeting(chatID, keyWelcome)
}

func (d *DB) SetGoodbye(chatID int64, g *Greeting) error {
	return d.putGreeting(chatID, keyGoodbye, g)
}

func (d *DB) GetGoodbye(chatID int64) (*Greeting, error) {
	return d.getGreeting(chatID, keyGoodbye)
}

func (d *DB) putGreeting(chatID int64, key []byte, g *Greeting) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketWelcome, chatID)
		if err != nil {
			return err
		}
		return putJSON(cb, key, g)
	})
}

func (d *DB) getGreeting(chatID int64, key []byte) (*Greeting, error) {
	g := &Greeting{Enabled: true}
	err := d.bolt.View(func(tx *bolt.Tx) error {
		_, err := getJSON(chatBucket(tx, bucketWelcome, chatID), key, g)
		return err
	})
	return g, err
}

func (d *DB) SetLastWelcomeID(chatID int64, msgID int32) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketWelcome, chatID)
		if err != nil {
			return err
		}
		return cb.Put(keyLastWelcome, []byte(strconv.Itoa(int(msgID))))
	})
}

func (d *DB) GetLastWelcomeID(chatID int64) (int32, error) {
	var msgID int
	err := d.bolt.View(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWelcome, chatID)
		if cb == nil {
			return nil
		}
		data := cb.Get(keyLastWelcome)
		if data == nil {
			return nil
		}
		var err error
		msgID, err = strconv.Atoi(string(data))
		return err
	})
	return int32(msgID), err
}
