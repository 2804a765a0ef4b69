// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sentry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"

	"github.com/warden-foundation/warden/lib/codec"
)

var bucketSentries = []byte("sentries")

// StoreConfig holds configuration for opening a Store.
type StoreConfig struct {
	// Path is the location of the database file. Parent directories
	// are created as needed.
	Path string
	// Logger receives store activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store persists sentry records keyed by account username.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// SaveResult describes the state of a record after one chunk write.
type SaveResult struct {
	// Size is the number of bytes received so far across all spans.
	Size int64
	// Complete is true once every byte of the declared total has
	// arrived. Hash is set only then.
	Complete bool
	// Hash is the BLAKE3 digest of the fully assembled content.
	Hash []byte
}

// Open opens (creating if necessary) the sentry database at the
// configured path.
func Open(config StoreConfig) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sentry: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return nil, fmt.Errorf("sentry: creating store directory: %w", err)
	}
	db, err := bolt.Open(config.Path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("sentry: opening %s: %w", config.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSentries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sentry: creating bucket: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether a complete sentry is on file for username.
func (s *Store) Exists(username string) (bool, error) {
	rec, err := s.load(username)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Complete, nil
}

// Hash returns the BLAKE3 digest of username's sentry, or nil when no
// complete sentry is on file. Logins present this to skip the
// first-machine challenge.
func (s *Store) Hash(username string) ([]byte, error) {
	rec, err := s.load(username)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Complete {
		return nil, nil
	}
	return rec.Hash, nil
}

// Save writes one chunk of username's sentry. Chunks may arrive in
// any order and may overlap; a chunk whose name or declared size
// disagrees with what is already on file restarts the record. Only
// the first length bytes of data are used.
func (s *Store) Save(username, name string, offset int64, data []byte, length int, totalSize int64) (SaveResult, error) {
	if length < 0 || length > len(data) {
		return SaveResult{}, fmt.Errorf("sentry: chunk length %d outside data of %d bytes", length, len(data))
	}
	if offset < 0 || offset+int64(length) > totalSize {
		return SaveResult{}, fmt.Errorf("sentry: chunk [%d, %d) outside declared size %d", offset, offset+int64(length), totalSize)
	}
	if totalSize <= 0 {
		return SaveResult{}, fmt.Errorf("sentry: declared size %d is not positive", totalSize)
	}

	var result SaveResult
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSentries)
		rec, err := decodeRecord(bucket.Get([]byte(username)))
		if err != nil {
			return err
		}
		if rec == nil || rec.Name != name || rec.TotalSize != totalSize {
			if rec != nil {
				s.logger.Warn("sentry record restarted",
					"username", username,
					"old_name", rec.Name,
					"new_name", name)
			}
			rec = &record{
				Name:      name,
				TotalSize: totalSize,
				Content:   make([]byte, totalSize),
			}
		}

		copy(rec.Content[offset:], data[:length])
		rec.addSpan(offset, offset+int64(length))

		if !rec.Complete && rec.covered() {
			sum := blake3.Sum256(rec.Content)
			rec.Hash = sum[:]
			rec.Complete = true
			s.logger.Info("sentry complete",
				"username", username,
				"name", name,
				"size", totalSize)
		}

		encoded, err := codec.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		if err := bucket.Put([]byte(username), encoded); err != nil {
			return fmt.Errorf("storing record: %w", err)
		}

		for _, sp := range rec.Spans {
			result.Size += sp.End - sp.Start
		}
		result.Complete = rec.Complete
		result.Hash = rec.Hash
		return nil
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("sentry: saving chunk for %q: %w", username, err)
	}
	return result, nil
}

// Delete removes username's sentry record, complete or not.
func (s *Store) Delete(username string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSentries).Delete([]byte(username))
	})
	if err != nil {
		return fmt.Errorf("sentry: deleting record for %q: %w", username, err)
	}
	return nil
}

func (s *Store) load(username string) (*record, error) {
	var rec *record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = decodeRecord(tx.Bucket(bucketSentries).Get([]byte(username)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sentry: loading record for %q: %w", username, err)
	}
	return rec, nil
}

func decodeRecord(raw []byte) (*record, error) {
	if raw == nil {
		return nil, nil
	}
	var rec record
	if err := codec.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &rec, nil
}
