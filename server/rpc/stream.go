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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/backend/pubsub"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/rpc/httphelper"
	"github.com/yorkie-team/statesync/server/states"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"

	msgStreamFailed = "Failed to open state stream."
)

// streamState serves GET /api/state/stream as server-sent events. Each event
// carries one full document; the first one is the current document.
func (s *Server) streamState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httphelper.WriteError(w, r, errors.New("streaming unsupported"), msgStreamFailed)
		return
	}

	ctx := r.Context()
	sub, err := states.Subscribe(ctx, s.be, r.RemoteAddr)
	if err != nil {
		httphelper.WriteError(w, r, err, msgStreamFailed)
		return
	}
	defer states.Unsubscribe(ctx, s.be, sub)

	s.be.Metrics.AddStreamConnections(transportSSE)
	defer s.be.Metrics.RemoveStreamConnections(transportSSE)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return
	}
	flusher.Flush()

	send := func(doc *types.StateDocument) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	ping := func() error {
		if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err = streamDocuments(ctx, s.serviceCtx, sub, send, s.conf.ParseStreamKeepAlive(), ping)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.From(ctx).Warnf("SSE: stream of %s ended: %v", sub.Subscriber(), err)
	}
}

// streamDocuments reads documents from a subscription and sends them over a
// stream. It blocks until the context is done, the serviceCtx is done, the
// subscription channel is closed, or a send fails.
//
// When keepAlive is positive, ping is called after each keepAlive interval
// without a document.
func streamDocuments(
	ctx context.Context,
	serviceCtx context.Context,
	sub *pubsub.Subscription,
	send func(*types.StateDocument) error,
	keepAlive time.Duration,
	ping func() error,
) error {
	var tick <-chan time.Time
	if keepAlive > 0 && ping != nil {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-serviceCtx.Done():
			return context.Canceled
		case <-ctx.Done():
			return context.Canceled
		case <-tick:
			if err := ping(); err != nil {
				return err
			}
		case doc, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if err := send(doc); err != nil {
				return err
			}
		}
	}
}
