// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ingest

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/logging"
)

// Tracker records per-item progress across import runs so an abandoned
// batch can be inspected after a restart. Recording is best-effort; a
// tracker failure never fails the run.
type Tracker interface {
	Record(platformID string, state ItemState, detail string)
	Last(platformID string) (ItemState, bool)
	Close() error
}

// progressRecord is the persisted per-item state.
type progressRecord struct {
	State     ItemState `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BadgerTracker persists progress in a local Badger store.
type BadgerTracker struct {
	db *badger.DB
}

var _ Tracker = (*BadgerTracker)(nil)

// NewBadgerTracker opens (or creates) the progress store at cfg.Path.
func NewBadgerTracker(cfg *config.ProgressConfig) (*BadgerTracker, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open progress store at %s: %w", cfg.Path, err)
	}
	return &BadgerTracker{db: db}, nil
}

func progressKey(platformID string) []byte {
	return []byte("progress/" + platformID)
}

// Record stores the latest state for an item.
func (t *BadgerTracker) Record(platformID string, state ItemState, detail string) {
	record := progressRecord{State: state, Detail: detail, UpdatedAt: time.Now().UTC()}
	encoded, err := json.Marshal(record)
	if err != nil {
		logging.Warn().Err(err).Str("platform_id", platformID).Msg("Failed to encode progress record")
		return
	}

	err = t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(progressKey(platformID), encoded)
	})
	if err != nil {
		logging.Warn().Err(err).Str("platform_id", platformID).Msg("Failed to record import progress")
	}
}

// Last returns the most recently recorded state for an item.
func (t *BadgerTracker) Last(platformID string) (ItemState, bool) {
	var record progressRecord
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(progressKey(platformID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return "", false
	}
	return record.State, true
}

// Close flushes and closes the store.
func (t *BadgerTracker) Close() error {
	return t.db.Close()
}

// NoopTracker discards progress records; used when tracking is disabled.
type NoopTracker struct{}

var _ Tracker = NoopTracker{}

func (NoopTracker) Record(string, ItemState, string) {}

func (NoopTracker) Last(string) (ItemState, bool) { return "", false }

func (NoopTracker) Close() error { return nil }
