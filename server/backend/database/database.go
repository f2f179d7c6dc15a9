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

// Package database defines the durable medium that mirrors the state
// document. Implementations persist a whole snapshot at once; none of them
// keep history.
package database

import (
	"context"
	"errors"

	"github.com/yorkie-team/statesync/api/types"
)

var (
	// ErrSnapshotNotFound is returned when nothing has been persisted yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Snapshot is the persisted form of a state document.
type Snapshot struct {
	Clients  []types.Record  `json:"clients"`
	Bookings []types.Record  `json:"bookings"`
	Sig      types.Signature `json:"sig"`
}

// NewSnapshot creates the persisted form of the given document.
func NewSnapshot(doc *types.StateDocument) *Snapshot {
	return &Snapshot{
		Clients:  doc.Clients,
		Bookings: doc.Bookings,
		Sig:      doc.Sig,
	}
}

// Document converts this snapshot into a state document with the given
// commit order.
func (s *Snapshot) Document(seq uint64) *types.StateDocument {
	return types.NewStateDocument(s.Clients, s.Bookings, s.Sig, seq)
}

// DeepCopy returns a deep copy of this snapshot.
func (s *Snapshot) DeepCopy() *Snapshot {
	if s == nil {
		return nil
	}

	doc := s.Document(0)
	return &Snapshot{
		Clients:  doc.Clients,
		Bookings: doc.Bookings,
		Sig:      doc.Sig,
	}
}

// Database is the durable medium behind the document store.
type Database interface {
	// FindSnapshot returns the persisted snapshot, or ErrSnapshotNotFound if
	// nothing has been stored yet.
	FindSnapshot(ctx context.Context) (*Snapshot, error)

	// StoreSnapshot replaces the persisted snapshot. A concurrent reader
	// observes either the previous or the new snapshot, never a mix.
	StoreSnapshot(ctx context.Context, snapshot *Snapshot) error

	// Close closes the database.
	Close() error
}
