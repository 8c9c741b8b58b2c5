package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-booking/internal/model"
)

// snapshotRowID is the primary key of the single row holding the live
// snapshot.  The table only ever contains this one row.
const snapshotRowID = 1

// SnapshotSchema creates the table used by MySQLStore.  payload holds the
// JSON encoded snapshot.
const SnapshotSchema = `CREATE TABLE IF NOT EXISTS booking_snapshots (
    id         TINYINT UNSIGNED NOT NULL PRIMARY KEY,
    payload    JSON             NOT NULL,
    updated_at DATETIME         NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQLStore persists the snapshot as one JSON document in MySQL.  Each Save
// upserts the whole document, mirroring the file store's overwrite semantics.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to the provided database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying handle so callers can close it on shutdown.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// EnsureSchema creates the snapshot table when it does not exist.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SnapshotSchema); err != nil {
		return fmt.Errorf("create booking_snapshots: %w", err)
	}
	return nil
}

// Load returns the stored snapshot or ErrSnapshotNotFound when the row has
// not been written yet.
func (s *MySQLStore) Load(ctx context.Context) (*model.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM booking_snapshots WHERE id = ?`, snapshotRowID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}

// Save writes the snapshot, replacing any previous payload.
func (s *MySQLStore) Save(ctx context.Context, snap *model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	const upsert = `INSERT INTO booking_snapshots (id, payload) VALUES (?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload)`
	if _, err := s.db.ExecContext(ctx, upsert, snapshotRowID, payload); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
