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

// Package httphelper provides helper functions for the JSON over HTTP API:
// mapping logic errors to status codes and writing JSON bodies.
package httphelper

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"net/http"

	"github.com/yorkie-team/statesync/internal/metaerrors"
	"github.com/yorkie-team/statesync/internal/validation"
	"github.com/yorkie-team/statesync/pkg/errors"
	"github.com/yorkie-team/statesync/server/logging"
)

// StatusClientClosedRequest is used when the client went away before the
// response was written.
const StatusClientClosedRequest = 499

// statusToHTTPCode maps an error status to an HTTP status code.
var statusToHTTPCode = map[errors.StatusCode]int{
	errors.ErrCodeInvalidArgument:    http.StatusBadRequest,
	errors.ErrCodeNotFound:           http.StatusNotFound,
	errors.ErrCodeResourceExhausted:  http.StatusTooManyRequests,
	errors.ErrCodeFailedPrecondition: http.StatusConflict,
	errors.ErrCodeInternal:           http.StatusInternalServerError,
	errors.ErrCodeUnavailable:        http.StatusInternalServerError,
}

// FieldViolation describes one invalid field of a request.
type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error      string           `json:"error"`
	Code       string           `json:"code,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`

	// Metadata carries details of a client error, e.g. an exceeded limit.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToHTTPStatus returns the HTTP status code of the given logic error.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if goerrors.Is(err, context.Canceled) {
		return StatusClientClosedRequest
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	if code, ok := statusToHTTPCode[errors.StatusOf(err)]; ok {
		return code
	}

	return http.StatusInternalServerError
}

// ToErrorResponse builds the body of a failed request. Client errors carry
// their own message; server errors are reported with the given fallback so
// that storage details are not leaked.
func ToErrorResponse(err error, fallback string) *ErrorResponse {
	resp := &ErrorResponse{
		Error: fallback,
		Code:  errors.CodeOf(err),
	}
	if errors.IsClientError(err) {
		resp.Error = err.Error()
		resp.Metadata = metaerrors.MetadataOf(err)
	}

	var structErr *validation.StructError
	if goerrors.As(err, &structErr) {
		for _, v := range structErr.Violations {
			resp.Violations = append(resp.Violations, FieldViolation{
				Field:       v.Field,
				Description: v.Description,
			})
		}
	}

	return resp
}

// WriteJSON writes the given value as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError logs the given error and writes it as a JSON body.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := ToHTTPStatus(err)
	logger := logging.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Infof("%s %s: %v", r.Method, r.URL.Path, err)
	}

	if err := WriteJSON(w, status, ToErrorResponse(err, fallback)); err != nil {
		logger.Warnf("write error response: %v", err)
	}
}
