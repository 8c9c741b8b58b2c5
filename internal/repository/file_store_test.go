package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
)

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Movies: model.Catalog{{
			ID:    "m1",
			Title: "Dune",
			Times: []model.Showtime{{Time: "18:00", Price: 10, AvailableSeats: []string{"A1", "A2"}}},
		}},
		Bookings: model.Ledger{{
			PaymentCode: "PAY-123456",
			MovieID:     "m1",
			Time:        "18:00",
			Seats:       []string{"A1"},
			TotalPrice:  10,
			Status:      model.StatusUnpaid,
		}},
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "db.json"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "db.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"movies\""), "expected two-space indented document")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), got)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot()))
	require.NoError(t, s.Save(ctx, &model.Snapshot{Movies: model.Catalog{}, Bookings: model.Ledger{}}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Movies)
	assert.Empty(t, got.Bookings)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStore_LoadNormalizesNulls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init_db.json")
	doc := `{"movies":[{"id":"m1","title":"Dune","times":[{"time":"18:00","price":10,"availableSeats":null}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := NewReadOnlyFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Bookings)
	assert.NotNil(t, got.Movies[0].Times[0].AvailableSeats)
}

func TestFileStore_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestFileStore_ReadOnlyRejectsSave(t *testing.T) {
	s := NewReadOnlyFileStore(filepath.Join(t.TempDir(), "init_db.json"))

	err := s.Save(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))
	snap.Bookings[0].Status = model.StatusPaid

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnpaid, got.Bookings[0].Status, "store must keep its own copy")
	assert.Equal(t, 1, s.Saves())

	s.FailSaves(errors.New("disk full"))
	assert.Error(t, s.Save(ctx, snap))
	assert.Equal(t, 1, s.Saves())
}
