// Package credstore persists platform credentials keyed by user and
// platform. The publishing core only reads; writes happen on the OAuth
// callback edge.
package credstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/YuvaAi/promoforge/internal/platform"
)

var bucketCredentials = []byte("credentials")

// Store is the credential store contract consumed by the publishing core
type Store interface {
	// Get returns the credential for (user, platform), or nil if absent
	Get(userID string, p platform.Platform) (*platform.Credential, error)

	// GetAll returns every credential for the user keyed by platform
	GetAll(userID string) (map[platform.Platform]platform.Credential, error)

	// Put replaces the credential for (user, platform) wholesale
	Put(userID string, cred platform.Credential) error

	// Delete removes the credential for (user, platform)
	Delete(userID string, p platform.Platform) error

	// Close closes the store
	Close() error
}

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db      *bolt.DB
	ownedDB bool
}

// NewBoltStore opens (or creates) a credential store at path
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BoltStore{db: db, ownedDB: true}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltStoreWithDB wraps an existing bolt database (shared with the
// content log)
func NewBoltStoreWithDB(db *bolt.DB) (*BoltStore, error) {
	s := &BoltStore{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCredentials); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
}

func credKey(userID string, p platform.Platform) []byte {
	return []byte(userID + "/" + string(p))
}

// Get returns the credential for (user, platform), or nil if absent
func (s *BoltStore) Get(userID string, p platform.Platform) (*platform.Credential, error) {
	var cred *platform.Credential

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCredentials).Get(credKey(userID, p))
		if data == nil {
			return nil
		}
		cred = &platform.Credential{}
		return json.Unmarshal(data, cred)
	})

	return cred, err
}

// GetAll returns every credential for the user keyed by platform
func (s *BoltStore) GetAll(userID string) (map[platform.Platform]platform.Credential, error) {
	creds := make(map[platform.Platform]platform.Credential)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCredentials).Cursor()
		prefix := []byte(userID + "/")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var cred platform.Credential
			if err := json.Unmarshal(v, &cred); err != nil {
				continue
			}
			creds[cred.Platform] = cred
		}
		return nil
	})

	return creds, err
}

// Put replaces the credential for (user, platform) wholesale. An
// existing record is never mutated in place.
func (s *BoltStore) Put(userID string, cred platform.Credential) error {
	if !cred.Platform.Valid() {
		return fmt.Errorf("unknown platform: %s", cred.Platform)
	}
	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(&cred)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}
		return tx.Bucket(bucketCredentials).Put(credKey(userID, cred.Platform), data)
	})
}

// Delete removes the credential for (user, platform)
func (s *BoltStore) Delete(userID string, p platform.Platform) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).Delete(credKey(userID, p))
	})
}

// DB returns the underlying bolt database
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

// Close closes the database if this store owns it
func (s *BoltStore) Close() error {
	if s.ownedDB {
		return s.db.Close()
	}
	return nil
}
