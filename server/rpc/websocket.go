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

package rpc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/rpc/httphelper"
	"github.com/yorkie-team/statesync/server/states"
)

const (
	wsBufferSize   = 1024
	wsWriteTimeout = 10 * time.Second
)

// watchState serves GET /api/state/ws. It pushes the same documents as the
// SSE stream, one JSON text message per document. Messages sent by the
// client are ignored.
func (s *Server) watchState(w http.ResponseWriter, r *http.Request) {
	sub, err := states.Subscribe(r.Context(), s.be, r.RemoteAddr)
	if err != nil {
		httphelper.WriteError(w, r, err, msgStreamFailed)
		return
	}
	logger := logging.From(r.Context())

	// NOTE: the request context is not canceled when a hijacked connection
	// goes away, so the reader below cancels ctx instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer states.Unsubscribe(ctx, s.be, sub)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WS: upgrade: %v", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	s.be.Metrics.AddStreamConnections(transportWebSocket)
	defer s.be.Metrics.RemoveStreamConnections(transportWebSocket)

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(doc *types.StateDocument) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(doc)
	}
	ping := func() error {
		return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
	}

	err = streamDocuments(ctx, s.serviceCtx, sub, send, s.conf.ParseStreamKeepAlive(), ping)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("WS: stream of %s ended: %v", sub.Subscriber(), err)
	}

	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout),
	)
}

// checkOrigin accepts requests without an Origin header and requests from
// the configured origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.conf.AllowedOrigin == "*" {
		return true
	}
	return origin == s.conf.AllowedOrigin
}
