package db

import (
	"encoding/json"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// Button is an inline URL button attached to a note or greeting.
type Button struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	SameLine bool   `json:"same_line,omitempty"`
}

type Note struct {
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	MediaType string   `json:"media_type,omitempty"`
	FileID    string   `json:"file_id,omitempty"`
	Buttons   []Button `json:"buttons,omitempty"`
	CreatedBy int64    `json:"created_by,omitempty"`
}

func (d *DB) SaveNote(chatID int64, note *Note) error {
	note.Name = strings.ToLower(note.Name)
	return d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketNotes, chatID)
		if err != nil {
			return err
		}
		return putJSON(cb, []byte(note.Name), note)
	})
}

func (d *DB) GetNote(chatID int64, name string) (*Note, error) {
	var note Note
	var found bool
	err := d.bolt.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(chatBucket(tx, bucketNotes, chatID), []byte(strings.ToLower(name)), &note)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &note, nil
}

// DeleteNote reports whether the note existed.
func (d *DB) DeleteNote(chatID int64, name string) (bool, error) {
	key := []byte(strings.ToLower(name))
	removed := false
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketNotes, chatID)
		if cb == nil || cb.Get(key) == nil {
			return nil
		}
		removed = true
		return cb.Delete(key)
	})
	return removed, err
}

// GetAllNotes returns the chat's notes ordered by name.
func (d *DB) GetAllNotes(chatID int64) ([]*Note, error) {
	var notes []*Note
	err := d.bolt.View(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketNotes, chatID)
		if cb == nil {
			return nil
		}
		c := cb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var note Note
			if err := json.Unmarshal(v, &note); err != nil {
				continue
			}
			notes = append(notes, &note)
		}
		return nil
	})
	return notes, err
}
