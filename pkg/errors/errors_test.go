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

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode_String(t *testing.T) {
	tests := []struct {
		name string
		code StatusCode
		want string
	}{
		{"InvalidArgument", ErrCodeInvalidArgument, "invalid_argument"},
		{"NotFound", ErrCodeNotFound, "not_found"},
		{"ResourceExhausted", ErrCodeResourceExhausted, "resource_exhausted"},
		{"FailedPrecondition", ErrCodeFailedPrecondition, "failed_precondition"},
		{"Internal", ErrCodeInternal, "internal"},
		{"Unavailable", ErrCodeUnavailable, "unavailable"},
		{"Unknown", StatusCode(999), "code_999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
		})
	}
}

func TestStatusOf(t *testing.T) {
	t.Run("StatusError", func(t *testing.T) {
		err := InvalidArgument("invalid payload")
		assert.Equal(t, ErrCodeInvalidArgument, StatusOf(err))
		assert.True(t, IsClientError(err))
		assert.False(t, IsServerError(err))
	})

	t.Run("WrappedStatusError", func(t *testing.T) {
		base := Unavailable("storage unavailable").WithCode("ErrStorageUnavailable")
		wrapped := fmt.Errorf("replace state: %w", fmt.Errorf("write file: %w", base))
		assert.Equal(t, ErrCodeUnavailable, StatusOf(wrapped))
		assert.Equal(t, "ErrStorageUnavailable", CodeOf(wrapped))
		assert.True(t, IsServerError(wrapped))
		assert.ErrorIs(t, wrapped, base)
	})

	t.Run("StandardError", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, StatusCode(0), StatusOf(err))
		assert.Equal(t, "", CodeOf(err))
		assert.False(t, IsClientError(err))
		assert.False(t, IsServerError(err))
	})

	t.Run("NilError", func(t *testing.T) {
		assert.Equal(t, StatusCode(0), StatusOf(nil))
		assert.False(t, IsStatus(nil, ErrCodeNotFound))
	})
}

func TestWithCode(t *testing.T) {
	base := ResourceExhausted("subscription limit exceeded")
	coded := base.WithCode("ErrTooManySubscribers")

	assert.Equal(t, "", base.Code())
	assert.Equal(t, "ErrTooManySubscribers", coded.Code())
	assert.Equal(t, base.Error(), coded.Error())
	assert.Equal(t, ErrCodeResourceExhausted, coded.Status())
}
