// Package storage persists trained artifact pairs in a BoltDB file. Each
// version lives in its own bucket holding the schema, scaler, model and
// manifest as independently decodable JSON values; a meta bucket records
// which version is active.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kdd-ids/internal/common"

	"go.etcd.io/bbolt"
)

const (
	versionsBucket = "versions" // one nested bucket per artifact version
	metaBucket     = "meta"     // registry-wide keys

	activeKey = "active"

	schemaKey   = "schema"
	scalerKey   = "scaler"
	modelKey    = "model"
	manifestKey = "manifest"
)

var (
	// ErrVersionNotFound is returned for an unknown artifact version.
	ErrVersionNotFound = errors.New("artifact version not found")

	// ErrNoActiveVersion is returned when nothing has been activated yet.
	ErrNoActiveVersion = errors.New("no active artifact version")
)

// Store provides persistent storage for artifact pairs using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the artifact database under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	dbPath := filepath.Join(dataPath, common.ArtifactDBName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(versionsBucket)); err != nil {
			return fmt.Errorf("create versions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
