package repository

import (
	"context"

	"github.com/iliyamo/seat-booking/internal/model"
)

// SnapshotStore loads and saves the full booking state.  Save overwrites the
// previous snapshot entirely; there is no partial update.
type SnapshotStore interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

// MemoryStore keeps the snapshot in process memory.  It is used when
// SNAPSHOT_DRIVER=memory and by tests.  Loaded and saved values are deep
// copies so callers never share storage with the store.
type MemoryStore struct {
	snap    *model.Snapshot
	saveErr error
	saves   int
}

// NewMemoryStore returns an empty store.  Load reports ErrSnapshotNotFound
// until the first Save.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(_ context.Context) (*model.Snapshot, error) {
	if m.snap == nil {
		return nil, ErrSnapshotNotFound
	}
	return m.snap.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, snap *model.Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// FailSaves makes every following Save return err.  Pass nil to recover.
func (m *MemoryStore) FailSaves(err error) { m.saveErr = err }

// Saves reports how many successful saves the store has seen.
func (m *MemoryStore) Saves() int { return m.saves }
