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

package mongo_test

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/server/backend/database/mongo"
	"github.com/yorkie-team/statesync/server/backend/database/testcases"
)

const mongoConnectionURI = "mongodb://localhost:27017"

func setupTestWithDummyData(t *testing.T) *mongo.Client {
	config := &mongo.Config{
		ConnectionTimeout: "1s",
		ConnectionURI:     mongoConnectionURI,
		Database:          "statesync-test",
		Collection:        fmt.Sprintf("state_%d", time.Now().UnixNano()),
		PingTimeout:       "1s",
	}
	require.NoError(t, config.Validate())

	cli, err := mongo.Dial(config)
	if err != nil {
		t.Skipf("mongo is not available at %s: %v", mongoConnectionURI, err)
	}
	t.Cleanup(func() {
		assert.NoError(t, cli.Close())
	})

	return cli
}

func TestClient(t *testing.T) {
	cli := setupTestWithDummyData(t)

	testcases.RunSnapshotTest(t, cli)
}

func TestDial(t *testing.T) {
	t.Run("failed ping releases the client test", func(t *testing.T) {
		before := runtime.NumGoroutine()

		_, err := mongo.Dial(&mongo.Config{
			ConnectionTimeout: "1s",
			ConnectionURI:     "mongodb://127.0.0.1:1/?connectTimeoutMS=100",
			Database:          "statesync-test",
			Collection:        "state",
			PingTimeout:       "200ms",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping mongo")

		assert.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before
		}, 3*time.Second, 50*time.Millisecond, "monitor goroutines should stop after disconnect")
	})
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		config := &mongo.Config{
			ConnectionTimeout: "5s",
			ConnectionURI:     mongoConnectionURI,
			Database:          "statesync",
			Collection:        "state",
			PingTimeout:       "5s",
		}
		assert.NoError(t, config.Validate())

		config.ConnectionTimeout = "5"
		assert.Error(t, config.Validate())

		config.ConnectionTimeout = "5s"
		config.PingTimeout = "5"
		assert.Error(t, config.Validate())

		config.PingTimeout = "5s"
		config.Database = ""
		assert.ErrorIs(t, config.Validate(), mongo.ErrEmptyDatabase)

		config.Database = "statesync"
		config.Collection = ""
		assert.ErrorIs(t, config.Validate(), mongo.ErrEmptyCollection)
	})
}
