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

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/yorkie-team/statesync/api/types"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/rpc/httphelper"
	"github.com/yorkie-team/statesync/server/states"
)

const (
	msgReadFailed  = "Failed to read state."
	msgWriteFailed = "Failed to write state."
)

// getState serves GET /api/state?sig=S.
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	sigHint := types.Signature(r.URL.Query().Get("sig"))

	resp, err := states.Read(r.Context(), s.be, sigHint)
	if err != nil {
		httphelper.WriteError(w, r, err, msgReadFailed)
		return
	}

	if err := httphelper.WriteJSON(w, http.StatusOK, resp); err != nil {
		logging.From(r.Context()).Warnf("write state: %v", err)
	}
}

// putState serves PUT /api/state.
func (s *Server) putState(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeUpdateRequest(w, r)
	if err != nil {
		httphelper.WriteError(w, r, err, msgWriteFailed)
		return
	}

	resp, err := states.Write(r.Context(), s.be, req)
	if err != nil {
		httphelper.WriteError(w, r, err, msgWriteFailed)
		return
	}

	if err := httphelper.WriteJSON(w, http.StatusOK, resp); err != nil {
		logging.From(r.Context()).Warnf("write update response: %v", err)
	}
}

// decodeUpdateRequest reads the body of a write. A body that is not a single
// JSON value or is larger than MaxRequestBytes is an invalid payload.
func (s *Server) decodeUpdateRequest(w http.ResponseWriter, r *http.Request) (*types.UpdateRequest, error) {
	body := http.MaxBytesReader(w, r.Body, int64(s.conf.MaxRequestBytes))
	defer func() {
		_ = body.Close()
	}()

	dec := json.NewDecoder(body)
	req := &types.UpdateRequest{}
	if err := dec.Decode(req); err != nil {
		return nil, invalidBody(err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after the JSON body")
		}
		return nil, invalidBody(err)
	}

	return req, nil
}

func invalidBody(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Errorf(
			"%w: body exceeds %d bytes",
			states.ErrInvalidPayload,
			maxBytesErr.Limit,
		)
	}
	return fmt.Errorf("%w: %w", states.ErrInvalidPayload, err)
}
