// Package schedule keeps the current batch snapshot and refreshes it on a
// cron schedule from the platform API and ICS feeds.
package schedule

import (
	"sync"
	"time"

	"batchcal/internal/model"
)

// Snapshot is an immutable view of the batches known at RefreshedAt.
type Snapshot struct {
	Batches     []model.Batch
	RefreshedAt time.Time
	// Issues counts records that had data-quality problems in the last refresh.
	Issues int
	// Generation increases on every Set; equal generations mean equal contents.
	Generation uint64
}

// Store holds the latest snapshot. Readers never see a partially written one.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{snap: Snapshot{Batches: []model.Batch{}}}
}

// Set replaces the snapshot. batches must not be mutated afterwards.
func (s *Store) Set(batches []model.Batch, issues int, at time.Time) {
	if batches == nil {
		batches = []model.Batch{}
	}
	s.mu.Lock()
	s.snap = Snapshot{Batches: batches, RefreshedAt: at, Issues: issues, Generation: s.snap.Generation + 1}
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
