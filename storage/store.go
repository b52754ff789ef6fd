// Package storage persists baselines and the target registry in a single
// bbolt database, with a btree index over baseline state for fast scans.
// Baseline writes go through a revision-based compare-and-swap so a stale
// check cycle can never clobber a newer commit.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/shelfwatch/types"
)

// Bucket names in bbolt
var (
	bucketBaselines = []byte("baselines")
	bucketTargets   = []byte("targets")
	bucketMeta      = []byte("meta")
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("storage: not found")

	// ErrRevisionConflict is returned by CompareAndSwap when the stored
	// baseline has moved past the caller's revision.
	ErrRevisionConflict = errors.New("storage: revision conflict")
)

// Store is the durable state layer: one bucket of baselines keyed by target
// ID, one bucket for the target registry, and a meta bucket carrying the
// global revision counter.
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast lookups
	index *btree.BTreeG[*BaselineState]

	db *bbolt.DB

	// Global revision counter, monotonically increasing across all targets
	currentRev int64

	dir string
}

// BaselineState summarizes one target's stored baseline in the index.
type BaselineState struct {
	TargetID  string
	Status    types.Status
	Revision  int64
	UpdatedAt time.Time
}

// Open opens (or creates) the database under dir and rebuilds the index.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "shelfwatch.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketBaselines, bucketTargets, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		index: btree.NewG[*BaselineState](32, func(a, b *BaselineState) bool {
			return a.TargetID < b.TargetID
		}),
		db:  db,
		dir: dir,
	}

	if err := s.loadRevision(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBaseline returns the stored baseline for a target, or ErrNotFound.
func (s *Store) LoadBaseline(targetID string) (*types.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b types.Baseline
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBaselines).Get([]byte(targetID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CompareAndSwap commits a baseline iff the stored revision still matches
// b.Revision (0 means "must not exist yet"). On success the baseline is
// stamped with a fresh revision and UpdatedAt, and the new revision is
// returned. A lost race returns ErrRevisionConflict and writes nothing.
func (s *Store) CompareAndSwap(b *types.Baseline) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := s.currentRev + 1
	updatedAt := time.Now().UTC()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBaselines)
		key := []byte(b.TargetID)

		stored := bucket.Get(key)
		switch {
		case stored == nil:
			if b.Revision != 0 {
				return ErrRevisionConflict
			}
		default:
			var current types.Baseline
			if err := json.Unmarshal(stored, &current); err != nil {
				return fmt.Errorf("decode stored baseline: %w", err)
			}
			if current.Revision != b.Revision {
				return ErrRevisionConflict
			}
		}

		// stamp a copy: the caller's baseline must not carry a revision
		// the transaction never committed
		stamped := *b
		stamped.Revision = rev
		stamped.UpdatedAt = updatedAt

		value, err := json.Marshal(&stamped)
		if err != nil {
			return err
		}
		if err := bucket.Put(key, value); err != nil {
			return err
		}

		return tx.Bucket(bucketMeta).Put([]byte("current_revision"), int64ToBytes(rev))
	})
	if err != nil {
		return 0, err
	}

	b.Revision = rev
	b.UpdatedAt = updatedAt
	s.currentRev = rev
	s.updateIndex(b)

	return rev, nil
}

// DeleteBaseline removes a target's baseline. Deleting a missing baseline
// is not an error.
func (s *Store) DeleteBaseline(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBaselines).Delete([]byte(targetID))
	})
	if err != nil {
		return err
	}

	s.index.Delete(&BaselineState{TargetID: targetID})
	return nil
}

// BaselineStates returns the index entries for all stored baselines,
// ordered by target ID.
func (s *Store) BaselineStates() []*BaselineState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*BaselineState
	s.index.Ascend(func(state *BaselineState) bool {
		results = append(results, state)
		return true
	})
	return results
}

// CurrentRevision returns the global revision counter.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// SaveTarget upserts a target in the registry.
func (s *Store) SaveTarget(t types.MonitoredTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTargets).Put([]byte(t.ID), value)
	})
}

// GetTarget returns one registered target, or ErrNotFound.
func (s *Store) GetTarget(targetID string) (types.MonitoredTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t types.MonitoredTarget
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTargets).Get([]byte(targetID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &t)
	})
	return t, err
}

// DeleteTarget removes a target and its baseline.
func (s *Store) DeleteTarget(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTargets).Delete([]byte(targetID)); err != nil {
			return err
		}
		return tx.Bucket(bucketBaselines).Delete([]byte(targetID))
	})
	if err != nil {
		return err
	}

	s.index.Delete(&BaselineState{TargetID: targetID})
	return nil
}

// ListTargets returns all registered targets ordered by ID.
func (s *Store) ListTargets() ([]types.MonitoredTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []types.MonitoredTarget
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTargets).ForEach(func(_, v []byte) error {
			var t types.MonitoredTarget
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			targets = append(targets, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// Helper functions

func (s *Store) updateIndex(b *types.Baseline) {
	state := &BaselineState{
		TargetID:  b.TargetID,
		Revision:  b.Revision,
		UpdatedAt: b.UpdatedAt,
	}
	if b.Confirmed != nil {
		state.Status = b.Confirmed.Status
	}
	s.index.ReplaceOrInsert(state)
}

func (s *Store) loadRevision() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte("current_revision"))
		if data != nil {
			s.currentRev = bytesToInt64(data)
		}
		return nil
	})
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBaselines).ForEach(func(_, v []byte) error {
			var b types.Baseline
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			s.updateIndex(&b)
			return nil
		})
	})
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	fmt.Sscanf(string(b), "%d", &n)
	return n
}
