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
	"sync"
	gotime "time"

	"github.com/rs/xid"

	"github.com/yorkie-team/statesync/api/types"
)

// DeliveryResult is the outcome of publishing a document to one subscription.
type DeliveryResult string

const (
	// Delivered means the document was placed on the subscription's channel.
	Delivered DeliveryResult = "delivered"

	// Skipped means the subscription already received this document or a
	// newer one.
	Skipped DeliveryResult = "skipped"

	// TimedOut means the subscriber did not drain its channel in time.
	TimedOut DeliveryResult = "timeout"

	// Closed means the subscription was already closed.
	Closed DeliveryResult = "closed"
)

// Failed returns whether the subscriber should be removed.
func (r DeliveryResult) Failed() bool {
	return r == TimedOut || r == Closed
}

// Subscription is a listener of the state document.
type Subscription struct {
	id         string
	subscriber string
	timeout    gotime.Duration

	mu      sync.Mutex
	closed  bool
	lastSeq uint64
	events  chan *types.StateDocument
}

// NewSubscription creates a new instance of Subscription with the given
// buffer size. A publish that cannot be buffered within timeout fails.
func NewSubscription(subscriber string, bufSize int, timeout gotime.Duration) *Subscription {
	return &Subscription{
		id:         xid.New().String(),
		subscriber: subscriber,
		timeout:    timeout,
		events:     make(chan *types.StateDocument, bufSize),
	}
}

// ID returns the id of this subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Subscriber returns a description of the listener, e.g. its remote address.
func (s *Subscription) Subscriber() string {
	return s.subscriber
}

// Events returns the document channel of this subscription. It is closed
// when the subscription is closed.
func (s *Subscription) Events() <-chan *types.StateDocument {
	return s.events
}

// Close closes all resources of this Subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Publish sends the given document to the subscriber. Documents older than
// or equal to the last delivered one are skipped so that a subscriber never
// observes the state moving backwards.
func (s *Subscription) Publish(doc *types.StateDocument) DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Closed
	}

	if doc.Seq() <= s.lastSeq {
		return Skipped
	}

	timer := gotime.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.events <- doc:
		s.lastSeq = doc.Seq()
		return Delivered
	case <-timer.C:
		return TimedOut
	}
}
