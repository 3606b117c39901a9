package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketRuns     = "runs"      // run ID -> RunMeta JSON
	bucketRunIndex = "run_index" // target -> []run ID
)

// openTimeout bounds the wait for the file lock held by a concurrent run
const openTimeout = 2 * time.Second

// Store is the run history database
type Store struct {
	db   *bbolt.DB
	path string
}

// NewStore opens (creating if needed) the history database at path, along
// with its parent directory and buckets.
func NewStore(path string) (*Store, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening run history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRuns, bucketRunIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Path is the database file location
func (s *Store) Path() string {
	return s.path
}

// Close releases the database file lock
func (s *Store) Close() error {
	return s.db.Close()
}
