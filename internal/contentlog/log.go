// Package contentlog is an append-only record of generated and
// published content. Appends are fire-and-forget from the publishing
// core's perspective: a failed append never rolls back a publish.
package contentlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/YuvaAi/promoforge/internal/platform"
)

var bucketContent = []byte("content_log")

// Entry is one content-log record
type Entry struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Content   string            `json:"content"`
	ImageURL  string            `json:"image_url,omitempty"`
	Prompt    string            `json:"prompt,omitempty"`
	Platform  platform.Platform `json:"platform,omitempty"`
	Status    string            `json:"status"`
	RemoteID  string            `json:"remote_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Log is the append-only content log contract
type Log interface {
	Append(userID string, entry Entry) error
	List(userID string, limit int) ([]Entry, error)
}

// BoltLog implements Log using BoltDB
type BoltLog struct {
	db *bolt.DB
}

// NewBoltLog wraps a bolt database as a content log
func NewBoltLog(db *bolt.DB) (*BoltLog, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketContent); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltLog{db: db}, nil
}

// entryKey builds a user-scoped, time-sortable key
func entryKey(userID string, t time.Time, id string) []byte {
	return []byte(userID + "/" + t.Format(time.RFC3339Nano) + ":" + id)
}

// Append writes one entry. Entries are never updated or deleted.
func (l *BoltLog) Append(userID string, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.UserID = userID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		return tx.Bucket(bucketContent).Put(entryKey(userID, entry.CreatedAt, entry.ID), data)
	})
}

// List returns the newest entries for a user, most recent first
func (l *BoltLog) List(userID string, limit int) ([]Entry, error) {
	var entries []Entry

	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketContent).Cursor()
		prefix := []byte(userID + "/")

		// Seek past the user's range, then walk backwards
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}

		for i := len(keys) - 1; i >= 0; i-- {
			var e Entry
			if err := json.Unmarshal(tx.Bucket(bucketContent).Get(keys[i]), &e); err != nil {
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})

	return entries, err
}
