package db

import (
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// WarnFilter warns whoever says Keyword, using Reply as the warn reason.
type WarnFilter struct {
	Keyword string `json:"keyword"`
	Reply   string `json:"reply"`
}

// SaveWarnFilter adds or replaces the filter for its (lower-cased) keyword.
func (d *DB) SaveWarnFilter(chatID int64, f WarnFilter) error {
	f.Keyword = strings.ToLower(f.Keyword)
	return d.bolt.Update(func(tx *bolt.Tx) error {
		cb, err := chatBucketRW(tx, bucketWarnFilters, chatID)
		if err != nil {
			return err
		}
		return putJSON(cb, []byte(f.Keyword), f)
	})
}

// RemoveWarnFilter reports whether a filter for keyword existed.
func (d *DB) RemoveWarnFilter(chatID int64, keyword string) (bool, error) {
	key := []byte(strings.ToLower(keyword))
	removed := false
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWarnFilters, chatID)
		if cb == nil || cb.Get(key) == nil {
			return nil
		}
		removed = true
		return cb.Delete(key)
	})
	return removed, err
}

// GetWarnFilters returns the chat's filters sorted by keyword.
func (d *DB) GetWarnFilters(chatID int64) ([]WarnFilter, error) {
	var filters []WarnFilter
	err := d.bolt.View(func(tx *bolt.Tx) error {
		cb := chatBucket(tx, bucketWarnFilters, chatID)
		if cb == nil {
			return nil
		}
		return cb.ForEach(func(k, v []byte) error {
			var f WarnFilter
			if _, err := getJSON(cb, k, &f); err != nil {
				return nil
			}
			filters = append(filters, f)
			return nil
		})
	})
	sort.Slice(filters, func(i, j int) bool { return filters[i].Keyword < filters[j].Keyword })
	return filters, err
}
