package chatpants

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var _ Store = &BoltStore{}

var (
	bucketConversations = []byte("conversations")
	bucketAssignments   = []byte("assignments")
)

// BoltStore implements Store on a single bbolt file. Conversations and
// assignments live in separate buckets, JSON encoded.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the database file at path and
// ensures both buckets exist.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketAssignments} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveConversation(_ context.Context, rec Record) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConversations).Put([]byte(rec.ID), enc)
	})
}

func (s *BoltStore) LoadConversation(_ context.Context, participantID string, group Group) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketConversations).Get([]byte(RecordKey(participantID, group)))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *BoltStore) SaveAssignment(_ context.Context, a Assignment) error {
	enc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assignment: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAssignments).Put([]byte(a.ParticipantID), enc)
	})
}

func (s *BoltStore) LoadAssignment(_ context.Context, participantID string) (Assignment, error) {
	var a Assignment
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAssignments).Get([]byte(participantID))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &a)
	})
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}
