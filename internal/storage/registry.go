package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"kdd-ids/internal/features"
	"kdd-ids/internal/ml"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// VersionInfo describes one stored artifact version.
type VersionInfo struct {
	Version   string      `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	IsActive  bool        `json:"is_active"`
	Manifest  ml.Manifest `json:"manifest"`
}

// SavePair writes the pair under a new version in a single transaction and
// returns the version. A version name is derived from the creation time
// and run id when the manifest does not carry one. With activate set, the
// new version becomes the active one in the same transaction.
func (s *Store) SavePair(pair *ml.ArtifactPair, activate bool) (string, error) {
	manifest := pair.Manifest
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	if manifest.Version == "" {
		manifest.Version = versionName(manifest)
	}

	values := map[string]interface{}{
		schemaKey:   pair.Schema,
		scalerKey:   pair.Scaler,
		modelKey:    pair.Model,
		manifestKey: manifest,
	}
	encoded := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", key, err)
		}
		encoded[key] = data
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		versions := tx.Bucket([]byte(versionsBucket))
		if versions.Bucket([]byte(manifest.Version)) != nil {
			return fmt.Errorf("version %s already exists", manifest.Version)
		}
		b, err := versions.CreateBucket([]byte(manifest.Version))
		if err != nil {
			return fmt.Errorf("create version bucket: %w", err)
		}
		for key, data := range encoded {
			if err := b.Put([]byte(key), data); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		if activate {
			return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(manifest.Version))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("version", manifest.Version).
		Int("features", pair.ExpectedFeatures()).
		Bool("active", activate).
		Msg("artifact pair saved")
	return manifest.Version, nil
}

func versionName(m ml.Manifest) string {
	name := m.CreatedAt.UTC().Format("20060102-150405")
	if len(m.RunID) >= 8 {
		name += "-" + m.RunID[:8]
	}
	return name
}

// LoadPair decodes a stored version and re-validates it as a pair.
func (s *Store) LoadPair(version string) (*ml.ArtifactPair, error) {
	var (
		schema   features.Schema
		scaler   ml.ScalerArtifact
		model    ml.Ensemble
		manifest ml.Manifest
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(versionsBucket)).Bucket([]byte(version))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
		}
		targets := []struct {
			key string
			v   interface{}
		}{
			{schemaKey, &schema},
			{scalerKey, &scaler},
			{modelKey, &model},
			{manifestKey, &manifest},
		}
		for _, t := range targets {
			data := b.Get([]byte(t.key))
			if data == nil {
				return fmt.Errorf("version %s is missing %s", version, t.key)
			}
			if err := json.Unmarshal(data, t.v); err != nil {
				return fmt.Errorf("decode %s of version %s: %w", t.key, version, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, err := ml.NewArtifactPair(&schema, &scaler, &model, manifest)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", version, err)
	}
	return pair, nil
}

// ActiveVersion returns the active version name.
func (s *Store) ActiveVersion() (string, error) {
	var active string
	err := s.db.View(func(tx *bbolt.Tx) error {
		active = string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
		return nil
	})
	if err != nil {
		return "", err
	}
	if active == "" {
		return "", ErrNoActiveVersion
	}
	return active, nil
}

// LoadActive loads the active pair.
func (s *Store) LoadActive() (*ml.ArtifactPair, error) {
	version, err := s.ActiveVersion()
	if err != nil {
		return nil, err
	}
	return s.LoadPair(version)
}

// ListVersions returns every stored version, newest first.
func (s *Store) ListVersions() ([]VersionInfo, error) {
	var versions []VersionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		active := string(tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey)))
		root := tx.Bucket([]byte(versionsBucket))
		return root.ForEach(func(k, v []byte) error {
			b := root.Bucket(k)
			if b == nil {
				return nil
			}
			var m ml.Manifest
			if err := json.Unmarshal(b.Get([]byte(manifestKey)), &m); err != nil {
				log.Warn().Err(err).Str("version", string(k)).Msg("skipping version with unreadable manifest")
				return nil
			}
			versions = append(versions, VersionInfo{
				Version:   string(k),
				CreatedAt: m.CreatedAt,
				IsActive:  string(k) == active,
				Manifest:  m,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(versions, func(i, j int) bool {
		if versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].Version > versions[j].Version
		}
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions, nil
}

// Activate makes version the active one after checking it loads as a
// valid pair.
func (s *Store) Activate(version string) error {
	if _, err := s.LoadPair(version); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(version))
	})
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("artifact version activated")
	return nil
}

// Rollback activates the version created immediately before the active one
// and returns its name.
func (s *Store) Rollback() (string, error) {
	versions, err := s.ListVersions()
	if err != nil {
		return "", err
	}
	if len(versions) < 2 {
		return "", fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return "", ErrNoActiveVersion
	}
	if currentIdx+1 >= len(versions) {
		return "", fmt.Errorf("no version older than %s", versions[currentIdx].Version)
	}

	previous := versions[currentIdx+1].Version
	if err := s.Activate(previous); err != nil {
		return "", err
	}
	return previous, nil
}
