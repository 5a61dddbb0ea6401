// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package snapshot persists aggregation results in Badger, keyed by date
// range, and serves them through a freshness-checking cache.
//
// A snapshot is a disposable projection of the point store: losing the
// Badger directory costs recomputation time, never data.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// keyPrefix namespaces snapshot entries within the Badger keyspace.
const keyPrefix = "snapshot:"

// Store persists snapshots in Badger with per-entry TTLs. Badger expires
// entries itself; the TTL mirrors the snapshot's ExpiresAt so a dead
// snapshot disappears from disk without a sweeper.
type Store struct {
	db *badger.DB
}

// NewStore opens the Badger-backed snapshot store. An empty path runs
// fully in-memory, which is what tests use.
func NewStore(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	// Badger's default logger writes raw lines to stderr; route nothing
	// through it and log open/close ourselves.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("Snapshot store opened")
	return &Store{db: db}, nil
}

// Put stores a snapshot under its SnapshotKey with a TTL running to its
// ExpiresAt. An existing snapshot under the same key is overwritten.
func (s *Store) Put(snap *models.AnalysisSnapshot) error {
	if snap.SnapshotKey == "" {
		return fmt.Errorf("snapshot key must not be empty")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ttl := time.Until(snap.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("snapshot %s is already expired", snap.SnapshotKey)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+snap.SnapshotKey), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", snap.SnapshotKey, err)
	}
	return nil
}

// Get loads the snapshot stored under key. Returns ErrNotFound when the
// key is absent or Badger already expired it.
func (s *Store) Get(key string) (*models.AnalysisSnapshot, error) {
	var snap models.AnalysisSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Delete removes the snapshot stored under key. Deleting a missing key is
// not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// RunGC runs one round of Badger value-log garbage collection. Badger
// returns ErrNoRewrite when there was nothing to collect; that is routine
// and swallowed here.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}
