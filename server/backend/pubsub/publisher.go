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

package pubsub

import (
	"context"
	"strconv"
	gosync "sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/logging"
)

var id loggerID

type loggerID int32

func (c *loggerID) next() string {
	next := atomic.AddInt32((*int32)(c), 1)
	return "p" + strconv.Itoa(int(next))
}

// Publisher queues documents and broadcasts them in the order they were
// published, off the caller's goroutine. Nothing is dropped or coalesced.
type Publisher struct {
	logger *zap.SugaredLogger
	mutex  gosync.Mutex
	docs   []*types.StateDocument

	notify chan struct{}
	pubsub *PubSub
}

// NewPublisher creates a new Publisher instance for the given registry.
func NewPublisher(pubsub *PubSub) *Publisher {
	return &Publisher{
		logger: logging.New(id.next()),
		notify: make(chan struct{}, 1),
		pubsub: pubsub,
	}
}

// Publish enqueues the given document. It never blocks on subscribers.
func (p *Publisher) Publish(doc *types.StateDocument) {
	p.mutex.Lock()
	p.docs = append(p.docs, doc)
	p.mutex.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued documents.
func (p *Publisher) Pending() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.docs)
}

// Run broadcasts queued documents until ctx is done. Documents queued before
// ctx is done are flushed before Run returns.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-p.notify:
			p.publish(ctx)
		case <-ctx.Done():
			p.publish(ctx)
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context) {
	p.mutex.Lock()

	if len(p.docs) == 0 {
		p.mutex.Unlock()
		return
	}

	docs := p.docs
	p.docs = nil

	p.mutex.Unlock()

	if logging.Enabled(zap.DebugLevel) {
		p.logger.Debugf(
			"Publishing %d documents to %d subscribers",
			len(docs),
			p.pubsub.Len(),
		)
	}

	for _, doc := range docs {
		p.pubsub.Broadcast(ctx, doc)
	}
}
