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

// Package httphealth uses http GET to provide a health check for the server.
package httphealth

import (
	"net/http"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/rpc/httphelper"
)

// NewHandler creates a new HTTP handler for health checks. HEAD answers with
// the status only.
func NewHandler(be *backend.Backend, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}

		info := types.NewHealthInfo(
			be.Config.Environment,
			be.Config.DataDir,
			version,
			be.PubSub.Len(),
		)
		if err := httphelper.WriteJSON(w, http.StatusOK, info); err != nil {
			logging.From(r.Context()).Warnf("write health: %v", err)
		}
	})
}
