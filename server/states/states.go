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

// Package states provides the synchronization service of the shared state
// document: conditional reads, whole-document writes and subscriptions.
package states

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/pkg/errors"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/backend/pubsub"
	"github.com/yorkie-team/statesync/server/logging"
)

var (
	// ErrInvalidPayload is returned when clients or bookings of a write are
	// not arrays.
	ErrInvalidPayload = errors.InvalidArgument("Invalid payload").WithCode("ErrInvalidPayload")
)

const (
	resultFull      = "full"
	resultUnchanged = "unchanged"
	resultOK        = "ok"
	resultInvalid   = "invalid"
	resultFailed    = "failed"
)

// Read returns the current document. If sigHint equals the current
// signature, only the signature is returned.
func Read(
	ctx context.Context,
	be *backend.Backend,
	sigHint types.Signature,
) (*types.SyncResponse, error) {
	doc, err := be.Store.Load(ctx)
	if err != nil {
		be.Metrics.AddStateRead(resultFailed)
		return nil, err
	}

	if sigHint != "" && sigHint == doc.Sig {
		be.Metrics.AddStateRead(resultUnchanged)
		return &types.SyncResponse{Sig: doc.Sig}, nil
	}

	be.Metrics.AddStateRead(resultFull)
	return &types.SyncResponse{Document: doc, Sig: doc.Sig}, nil
}

// Write replaces the whole document and schedules its broadcast. The
// returned signature does not wait for subscribers to receive it.
//
// PrevSig of the request is advisory: a write based on a stale signature is
// logged and applied anyway.
func Write(
	ctx context.Context,
	be *backend.Backend,
	req *types.UpdateRequest,
) (*types.UpdateResponse, error) {
	if req == nil {
		be.Metrics.AddStateWrite(resultInvalid)
		return nil, fmt.Errorf("empty request: %w", ErrInvalidPayload)
	}
	if err := req.Validate(); err != nil {
		be.Metrics.AddStateWrite(resultInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	clients, bookings, err := req.Records()
	if err != nil {
		be.Metrics.AddStateWrite(resultInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if req.PrevSig != "" {
		if current, err := be.Store.Load(ctx); err == nil && current.Sig != req.PrevSig {
			logging.From(ctx).Infof(
				"STATE: write based on %s while current is %s, last writer wins",
				req.PrevSig,
				current.Sig,
			)
		}
	}

	start := gotime.Now()
	doc, err := be.Store.Replace(ctx, clients, bookings)
	if err != nil {
		be.Metrics.AddStateWrite(resultFailed)
		return nil, err
	}
	be.Metrics.ObserveStateWriteSeconds(gotime.Since(start).Seconds())
	be.Metrics.AddStateWrite(resultOK)

	be.Publisher.Publish(doc)

	return &types.UpdateResponse{
		OK:  true,
		Sig: doc.Sig,
	}, nil
}

// Subscribe registers a new listener and delivers the current document to
// it before any later broadcast.
func Subscribe(
	ctx context.Context,
	be *backend.Backend,
	subscriber string,
) (*pubsub.Subscription, error) {
	sub, err := be.PubSub.Subscribe(ctx, subscriber)
	if err != nil {
		return nil, err
	}

	doc, err := be.Store.Load(ctx)
	if err != nil {
		be.PubSub.Unsubscribe(ctx, sub)
		return nil, err
	}

	be.PubSub.Deliver(ctx, sub, doc)
	return sub, nil
}

// Unsubscribe removes the given listener. It is safe to call more than once.
func Unsubscribe(
	ctx context.Context,
	be *backend.Backend,
	sub *pubsub.Subscription,
) {
	be.PubSub.Unsubscribe(ctx, sub)
}
