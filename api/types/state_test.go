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

package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/api/types"
)

func TestStateDocument(t *testing.T) {
	t.Run("new document copies records test", func(t *testing.T) {
		clients := []types.Record{types.Record(`{"id":1,"name":"Rex"}`)}
		doc := types.NewStateDocument(clients, nil, "T1", 3)

		clients[0][2] = 'X'
		assert.Equal(t, `{"id":1,"name":"Rex"}`, string(doc.Clients[0]))
		assert.NotNil(t, doc.Bookings)
		assert.Equal(t, uint64(3), doc.Seq())
	})

	t.Run("empty document marshals arrays test", func(t *testing.T) {
		doc := types.NewStateDocument(nil, nil, "T0", 1)
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, `{"clients":[],"bookings":[],"sig":"T0"}`, string(data))
	})
}

func TestSyncResponse(t *testing.T) {
	t.Run("unchanged response carries only sig test", func(t *testing.T) {
		resp := &types.SyncResponse{Sig: "T1"}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sig":"T1"}`, string(data))

		decoded := &types.SyncResponse{}
		require.NoError(t, json.Unmarshal(data, decoded))
		assert.True(t, decoded.Unchanged())
		assert.Equal(t, types.Signature("T1"), decoded.Sig)
	})

	t.Run("full response carries the document test", func(t *testing.T) {
		doc := types.NewStateDocument([]types.Record{types.Record(`{"id":1}`)}, nil, "T2", 2)
		resp := &types.SyncResponse{Document: doc, Sig: doc.Sig}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"clients":[{"id":1}],"bookings":[],"sig":"T2"}`, string(data))

		decoded := &types.SyncResponse{}
		require.NoError(t, json.Unmarshal(data, decoded))
		assert.False(t, decoded.Unchanged())
		assert.Equal(t, types.Signature("T2"), decoded.Sig)
		assert.Len(t, decoded.Document.Clients, 1)
		assert.JSONEq(t, `{"id":1}`, string(decoded.Document.Clients[0]))
	})
}

func TestUpdateRequest(t *testing.T) {
	t.Run("valid request test", func(t *testing.T) {
		req := &types.UpdateRequest{}
		require.NoError(t, json.Unmarshal([]byte(`{"clients":[{"id":1}],"bookings":[],"prevSig":"T0"}`), req))
		assert.NoError(t, req.Validate())
		assert.Equal(t, types.Signature("T0"), req.PrevSig)

		clients, bookings, err := req.Records()
		require.NoError(t, err)
		assert.Len(t, clients, 1)
		assert.Len(t, bookings, 0)
	})

	t.Run("non-array fields are rejected test", func(t *testing.T) {
		req := &types.UpdateRequest{}
		require.NoError(t, json.Unmarshal([]byte(`{"clients":"not-a-list","bookings":[]}`), req))
		assert.Error(t, req.Validate())

		req = &types.UpdateRequest{}
		require.NoError(t, json.Unmarshal([]byte(`{"clients":[]}`), req))
		assert.Error(t, req.Validate())
	})

	t.Run("build from records test", func(t *testing.T) {
		req, err := types.NewUpdateRequest(nil, []types.Record{types.Record(`{"room":"A"}`)}, "")
		require.NoError(t, err)
		assert.NoError(t, req.Validate())
		assert.Equal(t, `[]`, string(req.Clients))
		assert.JSONEq(t, `[{"room":"A"}]`, string(req.Bookings))
	})
}
