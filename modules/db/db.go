package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("not found")

var (
	bucketChats          = []byte("chats")
	bucketUsers          = []byte("users")
	bucketUsernames      = []byte("usernames")
	bucketWarns          = []byte("warns")
	bucketWarnSettings   = []byte("warns_settings")
	bucketWarnFilters    = []byte("warn_filters")
	bucketBlacklist      = []byte("blacklist")
	bucketBlacklistConf  = []byte("blacklist_settings")
	bucketNotes          = []byte("notes")
	bucketWelcome        = []byte("welcome")
	bucketFlood          = []byte("flood")
	bucketGbans          = []byte("gbans")
	bucketGbanOptOut     = []byte("gban_optout")
	bucketAFK            = []byte("afk")
	bucketLogChannels    = []byte("log_channels")
	perChatNestedBuckets = [][]byte{bucketWarns, bucketWarnFilters, bucketBlacklist, bucketNotes, bucketWelcome}
	perChatValueBuckets  = [][]byte{bucketWarnSettings, bucketBlacklistConf, bucketFlood, bucketGbanOptOut, bucketLogChannels}
)

// DB is the bot's persistent store, a single bbolt file.
type DB struct {
	bolt *bolt.DB
}

func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = b.Update(func(tx *bolt.Tx) error {
		all := [][]byte{bucketChats, bucketUsers, bucketUsernames, bucketGbans, bucketAFK}
		all = append(all, perChatNestedBuckets...)
		all = append(all, perChatValueBuckets...)
		for _, name := range all {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}

	return &DB{bolt: b}, nil
}

func (d *DB) Close() error {
	return d.bolt.Close()
}

func idKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func keyID(k []byte) (int64, error) {
	return strconv.ParseInt(string(k), 10, 64)
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// getJSON decodes key into v and reports whether the key existed.
func getJSON(b *bolt.Bucket, key []byte, v any) (bool, error) {
	if b == nil {
		return false, nil
	}
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

// chatBucket returns the per-chat sub-bucket of root, or nil.
func chatBucket(tx *bolt.Tx, root []byte, chatID int64) *bolt.Bucket {
	r := tx.Bucket(root)
	if r == nil {
		return nil
	}
	return r.Bucket(idKey(chatID))
}

func chatBucketRW(tx *bolt.Tx, root []byte, chatID int64) (*bolt.Bucket, error) {
	return tx.Bucket(root).CreateBucketIfNotExists(idKey(chatID))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(v >> (i * 8))
	}
	return b
}
