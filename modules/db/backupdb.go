package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const BackupVersion = 1

var ErrBadBackup = errors.New("invalid backup")

// Backup is a portable snapshot of one chat's settings.
type Backup struct {
	ID                string             `json:"id"`
	Version           int                `json:"version"`
	ChatID            int64              `json:"chat_id"`
	ExportedAt        time.Time          `json:"exported_at"`
	Warns             map[string][]*Warn `json:"warns,omitempty"`
	WarnSettings      *WarnSettings      `json:"warn_settings,omitempty"`
	WarnFilters       []WarnFilter       `json:"warn_filters,omitempty"`
	Blacklist         []string           `json:"blacklist,omitempty"`
	BlacklistSettings *BlacklistSettings `json:"blacklist_settings,omitempty"`
	Notes             []*Note            `json:"notes,omitempty"`
	Welcome           *Greeting          `json:"welcome,omitempty"`
	Goodbye           *Greeting          `json:"goodbye,omitempty"`
	FloodLimit        int                `json:"flood_limit,omitempty"`
	GbansDisabled     bool               `json:"gbans_disabled,omitempty"`
	LogChannel        int64              `json:"log_channel,omitempty"`
}

func (d *DB) Export(chatID int64) (*Backup, error) {
	bk := &Backup{
		ID:         uuid.NewString(),
		Version:    BackupVersion,
		ChatID:     chatID,
		ExportedAt: time.Now().UTC(),
		Warns:      map[string][]*Warn{},
	}

	err := d.bolt.View(func(tx *bolt.Tx) error {
		if cb := chatBucket(tx, bucketWarns, chatID); cb != nil {
			err := cb.ForEachBucket(func(user []byte) error {
				c := cb.Bucket(user).Cursor()
				for k, v := c.First(); k != nil; k, v = c.Next() {
					var w Warn
					if err := json.Unmarshal(v, &w); err != nil {
						return fmt.Errorf("warn %s: %w", user, err)
					}
					bk.Warns[string(user)] = append(bk.Warns[string(user)], &w)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		var ws WarnSettings
		if found, err := getJSON(tx.Bucket(bucketWarnSettings), idKey(chatID), &ws); err != nil {
			return err
		} else if found {
			bk.WarnSettings = &ws
		}
		var bs BlacklistSettings
		if found, err := getJSON(tx.Bucket(bucketBlacklistConf), idKey(chatID), &bs); err != nil {
			return err
		} else if found {
			bk.BlacklistSettings = &bs
		}

		if cb := chatBucket(tx, bucketWelcome, chatID); cb != nil {
			var g Greeting
			if found, err := getJSON(cb, keyWelcome, &g); err != nil {
				return err
			} else if found {
				bk.Welcome = &g
			}
			var bye Greeting
			if found, err := getJSON(cb, keyGoodbye, &bye); err != nil {
				return err
			} else if found {
				bk.Goodbye = &bye
			}
		}

		bk.GbansDisabled = tx.Bucket(bucketGbanOptOut).Get(idKey(chatID)) != nil
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export %d: %w", chatID, err)
	}

	if bk.WarnFilters, err = d.GetWarnFilters(chatID); err != nil {
		return nil, err
	}
	if bk.Blacklist, err = d.GetBlacklist(chatID); err != nil {
		return nil, err
	}
	if bk.Notes, err = d.GetAllNotes(chatID); err != nil {
		return nil, err
	}
	if bk.FloodLimit, err = d.GetFloodLimit(chatID); err != nil {
		return nil, err
	}
	if bk.LogChannel, err = d.GetLogChannel(chatID); err != nil {
		return nil, err
	}
	return bk, nil
}

// Import replaces chatID's settings with those in bk. The backup may come from
// another chat.
func (d *DB) Import(chatID int64, bk *Backup) error {
	if bk == nil || bk.Version == 0 || bk.Version > BackupVersion {
		return ErrBadBackup
	}
	notes, filters, blacklist, err := bk.keys()
	if err != nil {
		return err
	}

	return d.bolt.Update(func(tx *bolt.Tx) error {
		clearChat(tx, chatID)

		if len(bk.Warns) > 0 {
			cb, err := chatBucketRW(tx, bucketWarns, chatID)
			if err != nil {
				return err
			}
			for user, warns := range bk.Warns {
				if _, err := keyID([]byte(user)); err != nil {
					return fmt.Errorf("%w: user key %q", ErrBadBackup, user)
				}
				ub, err := cb.CreateBucketIfNotExists([]byte(user))
				if err != nil {
					return err
				}
				for _, w := range warns {
					seq, _ := ub.NextSequence()
					if err := putJSON(ub, itob(seq), w); err != nil {
						return err
					}
				}
			}
		}

		if bk.WarnSettings != nil {
			if err := putJSON(tx.Bucket(bucketWarnSettings), idKey(chatID), bk.WarnSettings); err != nil {
				return err
			}
		}
		if bk.BlacklistSettings != nil {
			if err := putJSON(tx.Bucket(bucketBlacklistConf), idKey(chatID), bk.BlacklistSettings); err != nil {
				return err
			}
		}

		if len(filters) > 0 {
			cb, err := chatBucketRW(tx, bucketWarnFilters, chatID)
			if err != nil {
				return err
			}
			for _, f := range filters {
				if err := putJSON(cb, []byte(f.Keyword), f); err != nil {
					return err
				}
			}
		}
		if len(blacklist) > 0 {
			cb, err := chatBucketRW(tx, bucketBlacklist, chatID)
			if err != nil {
				return err
			}
			for _, t := range blacklist {
				if err := cb.Put([]byte(t), []byte{1}); err != nil {
					return err
				}
			}
		}
		if len(notes) > 0 {
			cb, err := chatBucketRW(tx, bucketNotes, chatID)
			if err != nil {
				return err
			}
			for _, n := range notes {
				if err := putJSON(cb, []byte(n.Name), n); err != nil {
					return err
				}
			}
		}
		if bk.Welcome != nil || bk.Goodbye != nil {
			cb, err := chatBucketRW(tx, bucketWelcome, chatID)
			if err != nil {
				return err
			}
			if bk.Welcome != nil {
				if err := putJSON(cb, keyWelcome, bk.Welcome); err != nil {
					return err
				}
			}
			if bk.Goodbye != nil {
				if err := putJSON(cb, keyGoodbye, bk.Goodbye); err != nil {
					return err
				}
			}
		}

		if bk.FloodLimit > 0 {
			if err := tx.Bucket(bucketFlood).Put(idKey(chatID), fmt.Appendf(nil, "%d", bk.FloodLimit)); err != nil {
				return err
			}
		}
		if bk.GbansDisabled {
			if err := tx.Bucket(bucketGbanOptOut).Put(idKey(chatID), []byte{1}); err != nil {
				return err
			}
		}
		if bk.LogChannel != 0 {
			if err := tx.Bucket(bucketLogChannels).Put(idKey(chatID), idKey(bk.LogChannel)); err != nil {
				return err
			}
		}
		return nil
	})
}

// keys returns the backup's notes, warn filters and blacklist with their
// keys normalised the way the live setters store them. Blank keys make the
// backup invalid.
func (bk *Backup) keys() ([]*Note, []WarnFilter, []string, error) {
	norm := func(kind, key string) (string, error) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return "", fmt.Errorf("%w: empty %s", ErrBadBackup, kind)
		}
		return key, nil
	}

	notes := make([]*Note, 0, len(bk.Notes))
	for _, n := range bk.Notes {
		if n == nil {
			return nil, nil, nil, fmt.Errorf("%w: empty note", ErrBadBackup)
		}
		name, err := norm("note name", n.Name)
		if err != nil {
			return nil, nil, nil, err
		}
		cp := *n
		cp.Name = name
		notes = append(notes, &cp)
	}

	filters := make([]WarnFilter, 0, len(bk.WarnFilters))
	for _, f := range bk.WarnFilters {
		kw, err := norm("warn filter keyword", f.Keyword)
		if err != nil {
			return nil, nil, nil, err
		}
		f.Keyword = kw
		filters = append(filters, f)
	}

	blacklist := make([]string, 0, len(bk.Blacklist))
	for _, t := range bk.Blacklist {
		t, err := norm("blacklist trigger", t)
		if err != nil {
			return nil, nil, nil, err
		}
		blacklist = append(blacklist, t)
	}
	return notes, filters, blacklist, nil
}

// clearChat drops every per-chat record of chatID.
func clearChat(tx *bolt.Tx, chatID int64) {
	for _, root := range perChatNestedBuckets {
		if chatBucket(tx, root, chatID) != nil {
			_ = tx.Bucket(root).DeleteBucket(idKey(chatID))
		}
	}
	for _, root := range perChatValueBuckets {
		_ = tx.Bucket(root).Delete(idKey(chatID))
	}
}

// MigrateChat moves every per-chat record from oldID to newID, as happens when
// a group is upgraded to a supergroup. Records already under newID are replaced.
func (d *DB) MigrateChat(oldID, newID int64) error {
	if oldID == newID {
		return nil
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		clearChat(tx, newID)

		for _, root := range perChatNestedBuckets {
			src := chatBucket(tx, root, oldID)
			if src == nil {
				continue
			}
			dst, err := chatBucketRW(tx, root, newID)
			if err != nil {
				return err
			}
			if err := copyBucket(dst, src); err != nil {
				return fmt.Errorf("migrate %s: %w", root, err)
			}
			if err := tx.Bucket(root).DeleteBucket(idKey(oldID)); err != nil {
				return err
			}
		}

		for _, root := range perChatValueBuckets {
			b := tx.Bucket(root)
			v := b.Get(idKey(oldID))
			if v == nil {
				continue
			}
			if err := b.Put(idKey(newID), append([]byte(nil), v...)); err != nil {
				return err
			}
			if err := b.Delete(idKey(oldID)); err != nil {
				return err
			}
		}

		chats := tx.Bucket(bucketChats)
		var c Chat
		if found, _ := getJSON(chats, idKey(oldID), &c); found {
			c.ID = newID
			if err := putJSON(chats, idKey(newID), c); err != nil {
				return err
			}
			return chats.Delete(idKey(oldID))
		}
		return nil
	})
}

func copyBucket(dst, src *bolt.Bucket) error {
	if err := dst.SetSequence(src.Sequence()); err != nil {
		return err
	}
	return src.ForEach(func(k, v []byte) error {
		if v != nil {
			return dst.Put(append([]byte(nil), k...), append([]byte(nil), v...))
		}
		child, err := dst.CreateBucketIfNotExists(append([]byte(nil), k...))
		if err != nil {
			return err
		}
		return copyBucket(child, src.Bucket(k))
	})
}

type Stats struct {
	Chats          int
	Users          int
	Gbans          int
	WarnedUsers    int
	Warns          int
	WarnFilters    int
	BlacklistWords int
	Notes          int
	AFK            int
}

func (d *DB) Stats() (*Stats, error) {
	s := &Stats{}
	err := d.bolt.View(func(tx *bolt.Tx) error {
		s.Chats = tx.Bucket(bucketChats).Stats().KeyN
		s.Users = tx.Bucket(bucketUsers).Stats().KeyN
		s.Gbans = tx.Bucket(bucketGbans).Stats().KeyN
		s.AFK = tx.Bucket(bucketAFK).Stats().KeyN
		s.WarnFilters = countNested(tx.Bucket(bucketWarnFilters))
		s.BlacklistWords = countNested(tx.Bucket(bucketBlacklist))
		s.Notes = countNested(tx.Bucket(bucketNotes))

		warns := tx.Bucket(bucketWarns)
		return warns.ForEachBucket(func(chat []byte) error {
			cb := warns.Bucket(chat)
			return cb.ForEachBucket(func(user []byte) error {
				n := cb.Bucket(user).Stats().KeyN
				if n > 0 {
					s.WarnedUsers++
					s.Warns += n
				}
				return nil
			})
		})
	})
	return s, err
}

// countNested counts the leaf keys of every per-chat sub-bucket of root.
func countNested(root *bolt.Bucket) int {
	n := 0
	_ = root.ForEachBucket(func(chat []byte) error {
		n += root.Bucket(chat).Stats().KeyN
		return nil
	})
	return n
}
