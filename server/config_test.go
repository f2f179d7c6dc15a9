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

package server_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/server"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/rpc"
)

func TestNewConfigFromFile(t *testing.T) {
	t.Run("fail read config file test", func(t *testing.T) {
		conf := server.NewConfig()
		assert.Equal(t, conf.RPCAddr(), "localhost:"+strconv.Itoa(server.DefaultRPCPort))
		_, err := server.NewConfigFromFile("nowhere.yml")
		assert.Error(t, err)
		assert.Equal(t, conf.RPC.Port, server.DefaultRPCPort)
		assert.Equal(t, conf.Backend.StateFile, server.DefaultStateFile)
		assert.NoError(t, conf.Validate())
	})

	t.Run("read config file test", func(t *testing.T) {
		filePath := "config.sample.yml"
		conf, err := server.NewConfigFromFile(filePath)
		assert.NoError(t, err)

		assert.Equal(t, conf.RPC.Port, server.DefaultRPCPort)
		assert.Equal(t, conf.RPC.MaxRequestBytes, uint64(server.DefaultMaxRequestBytes))
		assert.Equal(t, conf.RPC.AllowedOrigin, server.DefaultAllowedOrigin)
		assert.Equal(t, conf.RPC.ParseStreamKeepAlive(), server.DefaultStreamKeepAlive)
		assert.Equal(t, conf.Profiling.Port, server.DefaultProfilingPort)

		assert.Equal(t, conf.Backend.Environment, server.DefaultEnvironment)
		assert.Equal(t, conf.Backend.DataDir, server.DefaultDataDir)
		assert.Equal(t, conf.Backend.Database, backend.DatabaseFile)
		assert.Equal(t, conf.Backend.ParsePublishTimeout(), server.DefaultPublishTimeout)
		assert.Equal(t, conf.Backend.SubscriptionBufferSize, server.DefaultSubscriptionBufferSize)

		connTimeout, err := time.ParseDuration(conf.Mongo.ConnectionTimeout)
		assert.NoError(t, err)
		assert.Equal(t, connTimeout, server.DefaultMongoConnectionTimeout)
		assert.Equal(t, conf.Mongo.ConnectionURI, server.DefaultMongoConnectionURI)
		assert.Equal(t, conf.Mongo.Database, server.DefaultMongoDatabase)
		assert.Equal(t, conf.Mongo.Collection, server.DefaultMongoCollection)

		assert.NoError(t, conf.Validate())
	})

	t.Run("partial config file test", func(t *testing.T) {
		filePath := filepath.Join(t.TempDir(), "partial.yml")
		require.NoError(t, os.WriteFile(filePath, []byte("RPC:\n  Port: 7000\n"), 0o600))

		conf, err := server.NewConfigFromFile(filePath)
		require.NoError(t, err)
		assert.Equal(t, 7000, conf.RPC.Port)
		assert.Equal(t, server.DefaultProfilingPort, conf.Profiling.Port)
		assert.Equal(t, server.DefaultStateFile, conf.Backend.StateFile)
		assert.Nil(t, conf.Mongo)
		assert.NoError(t, conf.Validate())
	})

	t.Run("invalid config test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.RPC.Port = 0
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidRPCPort)

		conf = server.NewConfig()
		conf.Backend.Database = "sqlite"
		assert.ErrorIs(t, conf.Validate(), backend.ErrInvalidDatabase)

		_, err := server.New(conf)
		assert.ErrorIs(t, err, backend.ErrInvalidDatabase)
	})
}
