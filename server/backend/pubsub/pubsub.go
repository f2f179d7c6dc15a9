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

// Package pubsub provides the registry of state listeners and the broadcast
// of new documents to them.
package pubsub

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	gotime "time"

	"go.uber.org/zap"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/internal/metaerrors"
	"github.com/yorkie-team/statesync/pkg/cmap"
	"github.com/yorkie-team/statesync/pkg/errors"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/profiling/prometheus"
)

var (
	// ErrTooManySubscribers is returned when the the subscription limit is exceeded.
	ErrTooManySubscribers = errors.ResourceExhausted("subscription limit exceeded").WithCode("ErrTooManySubscribers")
)

// Options configures a PubSub.
type Options struct {
	// Limit is the maximum number of subscriptions. 0 means unlimited.
	Limit int

	// BufferSize is the channel buffer size of each subscription.
	BufferSize int

	// PublishTimeout bounds how long a publish waits for a slow subscriber.
	PublishTimeout gotime.Duration
}

// PubSub is the memory implementation of the subscriber registry, used for
// single server.
type PubSub struct {
	options Options
	metrics *prometheus.Metrics

	subs  *cmap.Map[string, *Subscription]
	count atomic.Int64
}

// New creates an instance of PubSub.
func New(options Options, metrics *prometheus.Metrics) *PubSub {
	return &PubSub{
		options: options,
		metrics: metrics,
		subs:    cmap.New[string, *Subscription](),
	}
}

// Subscribe registers a new subscription for the given subscriber.
func (m *PubSub) Subscribe(ctx context.Context, subscriber string) (*Subscription, error) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s) Start`, subscriber)
	}

	limit := int64(m.options.Limit)
	for {
		n := m.count.Load()
		if limit > 0 && n >= limit {
			return nil, metaerrors.New(
				fmt.Errorf("subscribe %s: %w", subscriber, ErrTooManySubscribers),
				map[string]string{"limit": strconv.FormatInt(limit, 10)},
			)
		}
		if m.count.CompareAndSwap(n, n+1) {
			break
		}
	}

	sub := NewSubscription(subscriber, m.options.BufferSize, m.options.PublishTimeout)
	m.subs.Set(sub.ID(), sub)

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s,%s) End`, subscriber, sub.ID())
	}

	return sub, nil
}

// Unsubscribe closes and removes the given subscription. Unsubscribing a
// subscription that is already gone is a no-op.
func (m *PubSub) Unsubscribe(ctx context.Context, sub *Subscription) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) Start`, sub.Subscriber(), sub.ID())
	}

	sub.Close()

	if m.subs.Delete(sub.ID(), func(_ *Subscription, exists bool) bool {
		return exists
	}) {
		m.count.Add(-1)
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) End`, sub.Subscriber(), sub.ID())
	}
}

// Broadcast delivers the given document to every registered subscription.
// A failed delivery closes and removes that subscription only; it never
// affects the other subscriptions or the caller.
func (m *PubSub) Broadcast(ctx context.Context, doc *types.StateDocument) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Broadcast(%s) Start`, doc)
	}

	for _, sub := range m.subs.Values() {
		m.Deliver(ctx, sub, doc)
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Broadcast(%s) End`, doc)
	}
}

// Deliver publishes the given document to a single subscription.
func (m *PubSub) Deliver(ctx context.Context, sub *Subscription, doc *types.StateDocument) DeliveryResult {
	result := sub.Publish(doc)
	m.metrics.AddPubSubDelivery(string(result))

	if result.Failed() {
		logging.From(ctx).Infof(
			"Publish(%s) to %s(%s) %s, removing subscription",
			doc.Sig,
			sub.Subscriber(),
			sub.ID(),
			result,
		)
		m.Unsubscribe(ctx, sub)
	}

	return result
}

// Len returns the number of registered subscriptions.
func (m *PubSub) Len() int {
	return int(m.count.Load())
}

// Close closes and removes every subscription.
func (m *PubSub) Close() {
	ctx := context.Background()
	for _, sub := range m.subs.Values() {
		m.Unsubscribe(ctx, sub)
	}
}
