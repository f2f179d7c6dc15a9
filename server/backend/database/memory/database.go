/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/statesync/server/backend/database"
)

// currentID is the id of the only snapshot row.
const currentID = "current"

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// snapshotRecord wraps Snapshot with an ID for memory database storage.
type snapshotRecord struct {
	ID                 string `json:"id"`
	*database.Snapshot `json:"snapshot"`
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// FindSnapshot returns the stored snapshot.
func (d *DB) FindSnapshot(_ context.Context) (*database.Snapshot, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSnapshots, "id", currentID)
	if err != nil {
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	if raw == nil {
		return nil, database.ErrSnapshotNotFound
	}

	return raw.(*snapshotRecord).Snapshot.DeepCopy(), nil
}

// StoreSnapshot replaces the stored snapshot.
func (d *DB) StoreSnapshot(_ context.Context, snapshot *database.Snapshot) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	stored := snapshot.DeepCopy()
	if err := txn.Insert(tblSnapshots, &snapshotRecord{
		ID:       currentID,
		Snapshot: stored,
	}); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	txn.Commit()
	return nil
}
