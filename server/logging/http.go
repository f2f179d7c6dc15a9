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

package logging

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"
)

type requestID int32

func (c *requestID) next() string {
	next := atomic.AddInt32((*int32)(c), 1)
	return "r" + strconv.Itoa(int(next))
}

// AccessLogFunc is called once per request after the handler has returned.
type AccessLogFunc func(r *http.Request, code int, duration time.Duration)

// NewAccessLogMiddleware returns a middleware that attaches a request-scoped
// logger to each request context and logs the request once it completes.
// The optional observe func receives the same measurements, e.g. for metrics.
func NewAccessLogMiddleware(observe AccessLogFunc) func(http.Handler) http.Handler {
	var ids requestID

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := New(ids.next())
			r = r.WithContext(With(r.Context(), logger))

			m := httpsnoop.CaptureMetrics(next, w, r)
			LogHTTPRequest(logger, r, m.Code, m.Duration, m.Written)

			if observe != nil {
				observe(r, m.Code, m.Duration)
			}
		})
	}
}

// LogHTTPRequest logs a completed request. Server errors are logged at error
// level, client errors at info level and everything else at debug level.
func LogHTTPRequest(logger Logger, r *http.Request, code int, duration time.Duration, written int64) {
	const template = "HTTP : %s %q %d %s %dB"

	switch {
	case code >= http.StatusInternalServerError:
		logger.Errorf(template, r.Method, r.URL.RequestURI(), code, duration, written)
	case code >= http.StatusBadRequest:
		logger.Infof(template, r.Method, r.URL.RequestURI(), code, duration, written)
	default:
		logger.Debugf(template, r.Method, r.URL.RequestURI(), code, duration, written)
	}
}
