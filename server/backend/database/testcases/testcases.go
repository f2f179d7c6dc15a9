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

// Package testcases contains testcases for database. It is used by database
// implementations to test their own implementations with the same testcases.
package testcases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/backend/database"
)

// RunSnapshotTest runs the FindSnapshot and StoreSnapshot tests for the given db.
func RunSnapshotTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("find before store test", func(t *testing.T) {
		_, err := db.FindSnapshot(ctx)
		assert.ErrorIs(t, err, database.ErrSnapshotNotFound)
	})

	t.Run("store and find test", func(t *testing.T) {
		snapshot := &database.Snapshot{
			Clients:  []types.Record{types.Record(`{"id":1,"name":"A"}`)},
			Bookings: []types.Record{},
			Sig:      "1700000000000",
		}
		require.NoError(t, db.StoreSnapshot(ctx, snapshot))

		found, err := db.FindSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, snapshot.Sig, found.Sig)
		require.Len(t, found.Clients, 1)
		assert.JSONEq(t, `{"id":1,"name":"A"}`, string(found.Clients[0]))
		assert.Len(t, found.Bookings, 0)

		data, err := json.Marshal(found)
		require.NoError(t, err)
		assert.JSONEq(t, `{"clients":[{"id":1,"name":"A"}],"bookings":[],"sig":"1700000000000"}`, string(data))
	})

	t.Run("replace whole snapshot test", func(t *testing.T) {
		require.NoError(t, db.StoreSnapshot(ctx, &database.Snapshot{
			Clients:  []types.Record{types.Record(`{"id":1}`), types.Record(`{"id":2}`)},
			Bookings: []types.Record{types.Record(`{"id":"b"}`)},
			Sig:      "2",
		}))
		require.NoError(t, db.StoreSnapshot(ctx, &database.Snapshot{
			Clients:  []types.Record{},
			Bookings: []types.Record{},
			Sig:      "3",
		}))

		found, err := db.FindSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.Signature("3"), found.Sig)
		assert.Len(t, found.Clients, 0)
		assert.Len(t, found.Bookings, 0)
	})

	t.Run("modifying a found snapshot does not leak test", func(t *testing.T) {
		require.NoError(t, db.StoreSnapshot(ctx, &database.Snapshot{
			Clients:  []types.Record{types.Record(`{"id":1}`)},
			Bookings: []types.Record{},
			Sig:      "4",
		}))

		found, err := db.FindSnapshot(ctx)
		require.NoError(t, err)
		found.Clients[0] = types.Record(`{"id":99}`)
		found.Sig = "changed"

		again, err := db.FindSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.Signature("4"), again.Sig)
		assert.JSONEq(t, `{"id":1}`, string(again.Clients[0]))
	})

	t.Run("concurrent store test", func(t *testing.T) {
		const n = 10
		wg := sync.WaitGroup{}
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, db.StoreSnapshot(ctx, &database.Snapshot{
					Clients:  []types.Record{types.Record(fmt.Sprintf(`{"id":%d}`, i))},
					Bookings: []types.Record{},
					Sig:      types.Signature(fmt.Sprintf("%d", i)),
				}))
			}(i)
		}
		wg.Wait()

		found, err := db.FindSnapshot(ctx)
		require.NoError(t, err)
		require.Len(t, found.Clients, 1)
		assert.JSONEq(t, fmt.Sprintf(`{"id":%s}`, found.Sig), string(found.Clients[0]))
	})
}
