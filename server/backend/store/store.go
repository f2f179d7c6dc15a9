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

// Package store owns the single state document. It keeps the current
// document in memory and mirrors it to the durable medium on every replace.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yorkie-team/statesync/api/types"
	statuserrors "github.com/yorkie-team/statesync/pkg/errors"
	"github.com/yorkie-team/statesync/server/backend/database"
	"github.com/yorkie-team/statesync/server/backend/signature"
	"github.com/yorkie-team/statesync/server/logging"
)

var (
	// ErrStorageUnavailable is returned when the durable medium cannot be
	// read or written.
	ErrStorageUnavailable = statuserrors.Unavailable("storage unavailable").WithCode("ErrStorageUnavailable")
)

// Store is the document store. The zero value is not usable; use New.
type Store struct {
	db   database.Database
	sigs *signature.Generator

	// mu serializes initialization and replaces. Readers never take it once
	// the document has been loaded.
	mu      sync.Mutex
	seq     uint64
	current atomic.Pointer[types.StateDocument]
}

// New creates a Store backed by the given database.
func New(db database.Database, sigs *signature.Generator) *Store {
	return &Store{
		db:   db,
		sigs: sigs,
	}
}

// Load returns the current document. On first-ever use it initializes an
// empty document and persists it before returning it.
func (s *Store) Load(ctx context.Context) (*types.StateDocument, error) {
	if doc := s.current.Load(); doc != nil {
		return doc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc := s.current.Load(); doc != nil {
		return doc, nil
	}

	snapshot, err := s.db.FindSnapshot(ctx)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		doc := types.NewStateDocument(nil, nil, s.sigs.Next(), s.nextSeq())
		if err := s.db.StoreSnapshot(ctx, database.NewSnapshot(doc)); err != nil {
			return nil, fmt.Errorf("initialize state: %w: %w", ErrStorageUnavailable, err)
		}

		logging.From(ctx).Infof("STATE: initialized %s", doc.Sig)
		s.current.Store(doc)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w: %w", ErrStorageUnavailable, err)
	}

	s.sigs.Observe(snapshot.Sig)
	doc := snapshot.Document(s.nextSeq())
	s.current.Store(doc)
	return doc, nil
}

// Replace builds a new document with a fresh signature, persists it and
// makes it current. Concurrent calls are applied one at a time; the last one
// to complete is what Load returns afterwards. If persisting fails the
// current document is left as it was.
func (s *Store) Replace(
	ctx context.Context,
	clients []types.Record,
	bookings []types.Record,
) (*types.StateDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := types.NewStateDocument(clients, bookings, s.sigs.Next(), s.seq+1)
	if err := s.db.StoreSnapshot(ctx, database.NewSnapshot(doc)); err != nil {
		return nil, fmt.Errorf("replace state: %w: %w", ErrStorageUnavailable, err)
	}

	s.seq++
	s.current.Store(doc)
	return doc, nil
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}
