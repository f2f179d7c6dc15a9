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

// Package signature generates the opaque tokens that identify versions of
// the state document.
package signature

import (
	"strconv"
	"sync"
	gotime "time"

	"github.com/yorkie-team/statesync/api/types"
)

// Clock returns the current time.
type Clock func() gotime.Time

// Generator issues signatures derived from the wall clock, formatted as the
// decimal number of milliseconds since the Unix epoch.
//
// Two signatures issued by the same Generator are never equal: when the clock
// has not advanced past the last issued value, the last value plus one is
// used instead.
type Generator struct {
	mu    sync.Mutex
	clock Clock
	last  int64
}

// New creates a Generator that reads the system clock.
func New() *Generator {
	return NewWithClock(gotime.Now)
}

// NewWithClock creates a Generator that reads the given clock.
func NewWithClock(clock Clock) *Generator {
	return &Generator{clock: clock}
}

// Next returns a new signature.
func (g *Generator) Next() types.Signature {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UnixMilli()
	if now <= g.last {
		now = g.last + 1
	}
	g.last = now

	return types.Signature(strconv.FormatInt(now, 10))
}

// Observe records a signature issued elsewhere, e.g. by a previous process,
// so that the next one differs from it.
func (g *Generator) Observe(sig types.Signature) {
	issued, err := strconv.ParseInt(sig.String(), 10, 64)
	if err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if issued > g.last {
		g.last = issued
	}
}
