// Package repository persists booking snapshots.  A snapshot is the whole
// state of the service (catalog plus booking ledger) and every store writes
// it as a single document, replacing whatever was there before.
package repository

import "errors"

// ErrSnapshotNotFound is returned by Load when the store has never been
// written.  Callers seed the store from the initial snapshot in that case.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrReadOnly is returned when Save is called on a store opened for reading
// only, such as the initial snapshot file.
var ErrReadOnly = errors.New("snapshot store is read-only")
