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

// Package metaerrors provides a way to attach metadata to errors.
package metaerrors

import (
	"errors"
	"sort"
	"strings"
)

// MetaError is an error that can have metadata attached to it. This can be
// used to send additional information to the client, e.g. the limit that a
// request exceeded.
type MetaError struct {
	// Err is the underlying error.
	Err error

	// Metadata is a map of additional information that can be attached to the
	// error.
	Metadata map[string]string
}

// New returns a new MetaError with the given error and metadata.
func New(err error, metadata map[string]string) *MetaError {
	return &MetaError{
		Err:      err,
		Metadata: metadata,
	}
}

// Error returns the error message. Metadata is appended in key order.
func (e MetaError) Error() string {
	if len(e.Metadata) == 0 {
		return e.Err.Error()
	}

	keys := make([]string, 0, len(e.Metadata))
	for key := range e.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sb := strings.Builder{}
	for _, key := range keys {
		if sb.Len() > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(e.Metadata[key])
	}

	return e.Err.Error() + " [" + sb.String() + "]"
}

// Unwrap returns the underlying error.
func (e MetaError) Unwrap() error {
	return e.Err
}

// MetadataOf returns the metadata of the first MetaError in the chain of the
// given error, or nil.
func MetadataOf(err error) map[string]string {
	var metaErr *MetaError
	if errors.As(err, &metaErr) {
		return metaErr.Metadata
	}
	return nil
}
