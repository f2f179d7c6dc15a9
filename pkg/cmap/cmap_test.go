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

package cmap_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/statesync/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cmap.New[string, int]()

		m.Set("a", 1)
		v, exists := m.Get("a")
		assert.True(t, exists)
		assert.Equal(t, 1, v)

		v, exists = m.Get("b")
		assert.False(t, exists)
		assert.Equal(t, 0, v)
	})

	t.Run("delete", func(t *testing.T) {
		m := cmap.New[string, int]()

		m.Set("a", 1)
		deleted := m.Delete("a", func(val int, exists bool) bool {
			assert.Equal(t, 1, val)
			return exists
		})
		assert.True(t, deleted)

		_, exists := m.Get("a")
		assert.False(t, exists)

		deleted = m.Delete("a", func(val int, exists bool) bool {
			return true
		})
		assert.False(t, deleted, "deleting a missing key reports false")
	})

	t.Run("delete vetoed", func(t *testing.T) {
		m := cmap.New[int, string]()

		m.Set(7, "seven")
		assert.False(t, m.Delete(7, func(string, bool) bool { return false }))
		assert.Equal(t, 1, m.Len())
	})
}

func TestConcurrentMap(t *testing.T) {
	t.Run("iterate while mutating", func(t *testing.T) {
		m := cmap.New[string, int]()
		for i := 0; i < 100; i++ {
			m.Set(fmt.Sprintf("key-%d", i), i)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Delete(fmt.Sprintf("key-%d", i), func(int, bool) bool { return true })
				m.Set(fmt.Sprintf("new-%d", i), i)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, v := range m.Values() {
					assert.GreaterOrEqual(t, v, 0)
				}
			}
		}()
		wg.Wait()

		assert.Equal(t, 100, m.Len())
	})

	t.Run("concurrent set and get", func(t *testing.T) {
		m := cmap.New[string, int]()
		const numRoutines = 50
		const numOperations = 100

		var wg sync.WaitGroup
		wg.Add(numRoutines)
		for i := 0; i < numRoutines; i++ {
			go func(routineID int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key-%d-%d", routineID, j)
					m.Set(key, j)
					v, ok := m.Get(key)
					assert.True(t, ok)
					assert.Equal(t, j, v)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, numRoutines*numOperations, m.Len())
	})
}
