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

package rpc_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/profiling/prometheus"
	"github.com/yorkie-team/statesync/server/rpc"
	"github.com/yorkie-team/statesync/server/rpc/httphelper"
	"github.com/yorkie-team/statesync/test/helper"
)

func testRPCConfig() *rpc.Config {
	return &rpc.Config{
		Port:            helper.RPCPort,
		MaxRequestBytes: 1024,
		AllowedOrigin:   "*",
		StreamKeepAlive: helper.StreamKeepAlive.String(),
	}
}

// newTestServer serves the given backend with httptest.
func newTestServer(t *testing.T, conf *rpc.Config, be *backend.Backend) (*rpc.Server, *httptest.Server) {
	svr, err := rpc.NewServer(conf, be)
	require.NoError(t, err)

	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		svr.Shutdown(false)
	})

	return svr, ts
}

// newFileBackend returns a started backend that stores the state in dataDir.
func newFileBackend(t *testing.T, dataDir string, limit int) *backend.Backend {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	conf := helper.TestBackendConfig()
	conf.Database = backend.DatabaseFile
	conf.DataDir = dataDir
	conf.SubscriberLimit = limit

	be, err := backend.New(conf, nil, metrics)
	require.NoError(t, err)
	require.NoError(t, be.Start(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})

	return be
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, resp.Body.Close())
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) *httphelper.ErrorResponse {
	errResp := &httphelper.ErrorResponse{}
	require.NoError(t, json.Unmarshal(data, errResp))
	return errResp
}

// openSSE opens a state stream and returns a channel of its `data:` frames
// and a channel of its comment lines.
func openSSE(t *testing.T, url string) (*http.Response, <-chan string, <-chan string) {
	resp, err := http.Get(url + "/api/state/stream")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	events := make(chan string, 16)
	comments := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data: "):
				events <- strings.TrimPrefix(line, "data: ")
			case strings.HasPrefix(line, ":"):
				select {
				case comments <- line:
				default:
				}
			}
		}
	}()

	return resp, events, comments
}

func receiveFrame(t *testing.T, events <-chan string) *types.StateDocument {
	select {
	case data, ok := <-events:
		require.True(t, ok, "stream closed")
		doc := &types.StateDocument{}
		require.NoError(t, json.Unmarshal([]byte(data), doc))
		return doc
	case <-time.After(helper.ReceiveTimeout):
		require.FailNow(t, "timed out waiting for a frame")
		return nil
	}
}

func TestStateAPI(t *testing.T) {
	t.Run("read and conditional read test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, data := doRequest(t, http.MethodGet, ts.URL+"/api/state", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		doc := &types.StateDocument{}
		require.NoError(t, json.Unmarshal(data, doc))
		assert.Empty(t, doc.Clients)
		assert.Empty(t, doc.Bookings)
		assert.NotEmpty(t, doc.Sig)
		assert.Contains(t, string(data), `"clients":[]`)

		resp, data = doRequest(t, http.MethodGet, ts.URL+"/api/state?sig="+doc.Sig.String(), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"sig":"`+doc.Sig.String()+`"}`, string(data))

		resp, data = doRequest(t, http.MethodGet, ts.URL+"/api/state?sig=stale", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), `"bookings"`)
	})

	t.Run("write then read test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, data := doRequest(t, http.MethodPut, ts.URL+"/api/state",
			`{"clients":[{"id":1,"name":"Rex"}],"bookings":[{"id":"b1","clientId":1}]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		updated := &types.UpdateResponse{}
		require.NoError(t, json.Unmarshal(data, updated))
		assert.True(t, updated.OK)
		assert.NotEmpty(t, updated.Sig)

		_, data = doRequest(t, http.MethodGet, ts.URL+"/api/state", "")
		assert.JSONEq(t,
			`{"clients":[{"id":1,"name":"Rex"}],"bookings":[{"id":"b1","clientId":1}],"sig":"`+
				updated.Sig.String()+`"}`,
			string(data),
		)
	})

	t.Run("stale prevSig is accepted test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, _ := doRequest(t, http.MethodPut, ts.URL+"/api/state",
			`{"clients":[],"bookings":[],"prevSig":"not-current"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid payload test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		before, err := be.Store.Load(context.Background())
		require.NoError(t, err)

		for _, body := range []string{
			`not json`,
			`{"clients":{},"bookings":[]}`,
			`{"clients":[]}`,
			`{"clients":[],"bookings":"x"}`,
			`{"clients":[ 1 , {"a" : 2} ],"bookings":[]} trailing`,
			`{"clients":[],"bookings":[]}{"clients":[],"bookings":[]}`,
		} {
			resp, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, "ErrInvalidPayload", decodeError(t, data).Code, body)
		}

		after, err := be.Store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, before.Sig, after.Sig)

		resp, _ := doRequest(t, http.MethodPut, ts.URL+"/api/state", "{\"clients\":[],\"bookings\":[]}\n\t ")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "trailing whitespace is allowed")
	})

	t.Run("field violations test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", `{"clients":5,"bookings":[]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errResp := decodeError(t, data)
		require.NotEmpty(t, errResp.Violations)
		assert.Equal(t, "Clients", errResp.Violations[0].Field)
	})

	t.Run("body limit test", func(t *testing.T) {
		conf := testRPCConfig()
		conf.MaxRequestBytes = 64
		_, ts := newTestServer(t, conf, helper.TestBackend(t))

		body := `{"clients":[{"name":"` + strings.Repeat("x", 128) + `"}],"bookings":[]}`
		resp, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "ErrInvalidPayload", decodeError(t, data).Code)
	})

	t.Run("storage failure test", func(t *testing.T) {
		dataDir := t.TempDir()
		be := newFileBackend(t, dataDir, 0)
		_, ts := newTestServer(t, testRPCConfig(), be)

		require.NoError(t, os.RemoveAll(dataDir))

		resp, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", `{"clients":[],"bookings":[]}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		errResp := decodeError(t, data)
		assert.Equal(t, "Failed to write state.", errResp.Error)
		assert.Equal(t, "ErrStorageUnavailable", errResp.Code)
	})

	t.Run("method not allowed test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/state", `{}`)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

		resp, _ = doRequest(t, http.MethodDelete, ts.URL+"/api/state/stream", "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

		resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/unknown", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("handled counter test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		doRequest(t, http.MethodGet, ts.URL+"/api/state", "")
		doRequest(t, http.MethodPut, ts.URL+"/api/state", `bad`)
		doRequest(t, http.MethodGet, ts.URL+"/api/unknown/1", "")
		doRequest(t, http.MethodGet, ts.URL+"/api/unknown/2", "")

		count, err := testutil.GatherAndCount(be.Metrics.Registry(), "statesync_http_server_handled_total")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		families, err := be.Metrics.Registry().Gather()
		require.NoError(t, err)
		routes := map[string]float64{}
		for _, family := range families {
			if family.GetName() != "statesync_http_server_handled_total" {
				continue
			}
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "http_route" {
						routes[label.GetValue()] += metric.GetCounter().GetValue()
					}
				}
			}
		}
		assert.Equal(t, map[string]float64{"/api/state": 2, "unmatched": 2}, routes)
	})
}

func TestCORS(t *testing.T) {
	t.Run("preflight test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		resp, _ := doRequest(t, http.MethodOptions, ts.URL+"/api/state", "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
		assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	})

	t.Run("configured origin test", func(t *testing.T) {
		conf := testRPCConfig()
		conf.AllowedOrigin = "https://booking.example"
		_, ts := newTestServer(t, conf, helper.TestBackend(t))

		resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/state", "")
		assert.Equal(t, "https://booking.example", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestHealth(t *testing.T) {
	be := helper.TestBackend(t)
	_, ts := newTestServer(t, testRPCConfig(), be)

	resp, data := doRequest(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	info := &types.HealthInfo{}
	require.NoError(t, json.Unmarshal(data, info))
	assert.Equal(t, "ok", info.Status)
	assert.Equal(t, helper.Environment, info.Environment)
	assert.False(t, info.Timestamp.IsZero())
	assert.Equal(t, 0, info.Subscribers)

	resp, data = doRequest(t, http.MethodHead, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, data)
}

func TestSSEStream(t *testing.T) {
	t.Run("initial document and updates test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		resp, events, _ := openSSE(t, ts.URL)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

		initial := receiveFrame(t, events)
		current, err := be.Store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, current.Sig, initial.Sig)

		_, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", `{"clients":[{"id":7}],"bookings":[]}`)
		updated := &types.UpdateResponse{}
		require.NoError(t, json.Unmarshal(data, updated))

		pushed := receiveFrame(t, events)
		assert.Equal(t, updated.Sig, pushed.Sig)
		require.Len(t, pushed.Clients, 1)
		assert.JSONEq(t, `{"id":7}`, string(pushed.Clients[0]))
	})

	t.Run("keep-alive test", func(t *testing.T) {
		_, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		_, events, comments := openSSE(t, ts.URL)
		receiveFrame(t, events)

		select {
		case comment := <-comments:
			assert.Equal(t, ": keep-alive", comment)
		case <-time.After(helper.ReceiveTimeout):
			assert.Fail(t, "no keep-alive comment")
		}
	})

	t.Run("disconnect unregisters test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		resp, events, _ := openSSE(t, ts.URL)
		receiveFrame(t, events)
		assert.Equal(t, 1, be.PubSub.Len())

		require.NoError(t, resp.Body.Close())
		assert.Eventually(t, func() bool {
			return be.PubSub.Len() == 0
		}, helper.ReceiveTimeout, 10*time.Millisecond)
	})

	t.Run("subscriber limit test", func(t *testing.T) {
		be := newFileBackend(t, t.TempDir(), 1)
		_, ts := newTestServer(t, testRPCConfig(), be)

		_, events, _ := openSSE(t, ts.URL)
		receiveFrame(t, events)

		resp, data := doRequest(t, http.MethodGet, ts.URL+"/api/state/stream", "")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		errResp := decodeError(t, data)
		assert.Equal(t, "ErrTooManySubscribers", errResp.Code)
		assert.Equal(t, "1", errResp.Metadata["limit"])
	})

	t.Run("shutdown ends streams test", func(t *testing.T) {
		svr, ts := newTestServer(t, testRPCConfig(), helper.TestBackend(t))

		_, events, _ := openSSE(t, ts.URL)
		receiveFrame(t, events)

		svr.Shutdown(false)

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(helper.ReceiveTimeout):
			assert.Fail(t, "stream did not end on shutdown")
		}
	})
}

func TestWebSocketStream(t *testing.T) {
	wsURL := func(ts *httptest.Server) string {
		return "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/state/ws"
	}

	t.Run("initial document and updates test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, conn.Close())
		}()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(helper.ReceiveTimeout)))

		initial := &types.StateDocument{}
		require.NoError(t, conn.ReadJSON(initial))
		current, err := be.Store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, current.Sig, initial.Sig)

		_, data := doRequest(t, http.MethodPut, ts.URL+"/api/state", `{"clients":[],"bookings":[{"id":"b1"}]}`)
		updated := &types.UpdateResponse{}
		require.NoError(t, json.Unmarshal(data, updated))

		pushed := &types.StateDocument{}
		require.NoError(t, conn.ReadJSON(pushed))
		assert.Equal(t, updated.Sig, pushed.Sig)
		assert.Len(t, pushed.Bookings, 1)
	})

	t.Run("close unregisters test", func(t *testing.T) {
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, testRPCConfig(), be)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(helper.ReceiveTimeout)))
		require.NoError(t, conn.ReadJSON(&types.StateDocument{}))
		assert.Equal(t, 1, be.PubSub.Len())

		require.NoError(t, conn.Close())
		assert.Eventually(t, func() bool {
			return be.PubSub.Len() == 0
		}, helper.ReceiveTimeout, 10*time.Millisecond)
	})

	t.Run("origin check test", func(t *testing.T) {
		conf := testRPCConfig()
		conf.AllowedOrigin = "https://booking.example"
		be := helper.TestBackend(t)
		_, ts := newTestServer(t, conf, be)

		header := http.Header{}
		header.Set("Origin", "https://other.example")
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		assert.Eventually(t, func() bool {
			return be.PubSub.Len() == 0
		}, helper.ReceiveTimeout, 10*time.Millisecond)
	})
}
