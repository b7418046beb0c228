package db

import (
	"encoding/json"
	"strings"

	bolt "go.etcd.io/bbolt"
)

type Chat struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
}

// UpdateChat records a chat the bot has seen. Titles are refreshed on change.
func (d *DB) UpdateChat(chat Chat) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChats)
		var old Chat
		found, err := getJSON(b, idKey(chat.ID), &old)
		if err != nil {
			return err
		}
		if found && old.Title == chat.Title {
			return nil
		}
		return putJSON(b, idKey(chat.ID), chat)
	})
}

func (d *DB) GetChat(chatID int64) (*Chat, error) {
	var c Chat
	err := d.bolt.View(func(tx *bolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketChats), idKey(chatID), &c)
		if err == nil && !found {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) RemoveChat(chatID int64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChats).Delete(idKey(chatID))
	})
}

func (d *DB) AllChats() ([]Chat, error) {
	var chats []Chat
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChats).ForEach(func(_, v []byte) error {
			var c Chat
			if err := json.Unmarshal(v, &c); err != nil {
				return nil
			}
			chats = append(chats, c)
			return nil
		})
	})
	return chats, err
}

// UpdateUser records a user and indexes its username. A username that moved to
// another account is re-pointed.
func (d *DB) UpdateUser(user User) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		names := tx.Bucket(bucketUsernames)

		var old User
		found, err := getJSON(users, idKey(user.ID), &old)
		if err != nil {
			return err
		}
		if found && old == user {
			return nil
		}
		if found && old.Username != "" && !strings.EqualFold(old.Username, user.Username) {
			if err := names.Delete([]byte(strings.ToLower(old.Username))); err != nil {
				return err
			}
		}
		if user.Username != "" {
			if err := names.Put([]byte(strings.ToLower(user.Username)), idKey(user.ID)); err != nil {
				return err
			}
		}
		return putJSON(users, idKey(user.ID), user)
	})
}

func (d *DB) GetUser(userID int64) (*User, error) {
	var u User
	var found bool
	err := d.bolt.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx.Bucket(bucketUsers), idKey(userID), &u)
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

// UserIDByUsername resolves a username, with or without the leading '@'.
func (d *DB) UserIDByUsername(username string) (int64, error) {
	name := strings.ToLower(strings.TrimPrefix(username, "@"))
	var id int64
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsernames).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		var err error
		id, err = keyID(v)
		return err
	})
	return id, err
}
