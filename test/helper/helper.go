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

// Package helper provides helper functions for testing.
package helper

import (
	"context"
	"fmt"
	"net"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/backend/database/mongo"
	"github.com/yorkie-team/statesync/server/backend/pubsub"
	"github.com/yorkie-team/statesync/server/profiling"
	"github.com/yorkie-team/statesync/server/profiling/prometheus"
	"github.com/yorkie-team/statesync/server/rpc"
)

// Below are the values of the statesync config used in the test.
var (
	RPCPort = 12101

	ProfilingPort = 12102

	Environment            = "test"
	PublishTimeout         = 100 * gotime.Millisecond
	SubscriptionBufferSize = 16
	StreamKeepAlive        = 50 * gotime.Millisecond

	MongoConnectionURI     = "mongodb://localhost:27017"
	MongoConnectionTimeout = "5s"
	MongoPingTimeout       = "5s"

	// ReceiveTimeout bounds how long tests wait for a pushed document.
	ReceiveTimeout = 2 * gotime.Second
)

// TestBackendConfig returns config for creating an in-memory Backend.
func TestBackendConfig() *backend.Config {
	return &backend.Config{
		Environment:            Environment,
		Database:               backend.DatabaseMemory,
		StateFile:              server.DefaultStateFile,
		PublishTimeout:         PublishTimeout.String(),
		SubscriptionBufferSize: SubscriptionBufferSize,
	}
}

// TestBackend returns a started in-memory Backend that is shut down when the
// test finishes.
func TestBackend(t testing.TB) *backend.Backend {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(TestBackendConfig(), nil, metrics)
	require.NoError(t, err)
	require.NoError(t, be.Start(context.Background()))

	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})

	return be
}

var portOffset = 0

// TestConfig returns config for creating a StateSync instance whose state
// file lives under dataDir.
func TestConfig(dataDir string) *server.Config {
	portOffset += 100
	return &server.Config{
		RPC: &rpc.Config{
			Port:            RPCPort + portOffset,
			MaxRequestBytes: server.DefaultMaxRequestBytes,
			AllowedOrigin:   server.DefaultAllowedOrigin,
			StreamKeepAlive: StreamKeepAlive.String(),
		},
		Profiling: &profiling.Config{
			Port: ProfilingPort + portOffset,
		},
		Backend: &backend.Config{
			Environment:            Environment,
			DataDir:                dataDir,
			StateFile:              server.DefaultStateFile,
			Database:               backend.DatabaseFile,
			PublishTimeout:         PublishTimeout.String(),
			SubscriptionBufferSize: SubscriptionBufferSize,
		},
		Mongo: &mongo.Config{
			ConnectionURI:     MongoConnectionURI,
			ConnectionTimeout: MongoConnectionTimeout,
			PingTimeout:       MongoPingTimeout,
			Database:          fmt.Sprintf("test-statesync-%d", gotime.Now().Unix()),
			Collection:        server.DefaultMongoCollection,
		},
	}
}

// TestServer returns a started StateSync whose state file lives in a
// temporary directory. The server is shut down when the test finishes.
func TestServer(t testing.TB) *server.StateSync {
	svr, err := server.New(TestConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, svr.Start())
	require.NoError(t, WaitForServerToStart(svr.RPCAddr()))

	t.Cleanup(func() {
		assert.NoError(t, svr.Shutdown(true))
	})

	return svr
}

// WaitForServerToStart waits for the server to start.
func WaitForServerToStart(addr string) error {
	maxRetries := 10
	initialDelay := 10 * gotime.Millisecond
	maxDelay := gotime.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		delay := initialDelay * gotime.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}

		conn, err := net.DialTimeout("tcp", addr, gotime.Second)
		if err != nil {
			gotime.Sleep(delay)
			continue
		}

		if err := conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}

		return nil
	}

	return fmt.Errorf("timeout for server to start: %s", addr)
}

// Records builds records from raw JSON texts.
func Records(raws ...string) []types.Record {
	records := make([]types.Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, types.Record(raw))
	}
	return records
}

// UpdateRequest builds an UpdateRequest from raw JSON texts of clients and
// bookings.
func UpdateRequest(clients, bookings string, prevSig types.Signature) *types.UpdateRequest {
	return &types.UpdateRequest{
		Clients:  []byte(clients),
		Bookings: []byte(bookings),
		PrevSig:  prevSig,
	}
}

// Receive waits for the next document of the given subscription.
func Receive(t testing.TB, sub *pubsub.Subscription) *types.StateDocument {
	select {
	case doc, ok := <-sub.Events():
		require.True(t, ok, "subscription %s closed", sub.ID())
		return doc
	case <-gotime.After(ReceiveTimeout):
		require.FailNow(t, "timed out waiting for a document", sub.ID())
		return nil
	}
}

// AssertNoReceive asserts that the subscription receives nothing within the
// given duration.
func AssertNoReceive(t testing.TB, sub *pubsub.Subscription, within gotime.Duration) {
	select {
	case doc := <-sub.Events():
		assert.Fail(t, "unexpected document", "%s", doc)
	case <-gotime.After(within):
	}
}
