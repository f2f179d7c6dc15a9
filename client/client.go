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

// Package client provides the client implementation of the state sync API.
// It can be used to read and replace the shared document and to watch it.
package client

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/yorkie-team/statesync/api/types"
)

var (
	// ErrEmptyAddress occurs when the address of the server is empty.
	ErrEmptyAddress = errors.New("server address is empty")
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error returns the error message.
func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// CodeOf returns the error code the server attached to the given error, or
// an empty string.
func CodeOf(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return ""
}

// Client is a client of the state sync API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	options    Options
	logger     *zap.Logger
}

// Dial creates a new client that talks to the server at the given address.
// The address may omit the scheme, e.g. "localhost:5000".
func Dial(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}

	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if options.H2C {
		transport = &http2.Transport{
			AllowHTTP: true,
			DialTLS: func(network, addr string, _ *tls.Config) (net.Conn, error) {
				return net.Dial(network, addr)
			},
		}
	}

	baseURL := addr
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Transport: transport},
		options:    options,
		logger:     logger,
	}, nil
}

// Close closes idle connections of this client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Get reads the current document. If sig is the current signature, the
// response only carries the signature.
func (c *Client) Get(ctx context.Context, sig types.Signature) (*types.SyncResponse, error) {
	path := "/api/state"
	if sig != "" {
		path += "?sig=" + sig.String()
	}

	resp := &types.SyncResponse{}
	if err := c.do(ctx, http.MethodGet, path, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Update replaces the whole document with the given records. prevSig is the
// signature the caller last saw; it is advisory.
func (c *Client) Update(
	ctx context.Context,
	clients, bookings []types.Record,
	prevSig types.Signature,
) (*types.UpdateResponse, error) {
	req, err := types.NewUpdateRequest(clients, bookings, prevSig)
	if err != nil {
		return nil, err
	}
	return c.Put(ctx, req)
}

// Put sends the given update request as is.
func (c *Client) Put(ctx context.Context, req *types.UpdateRequest) (*types.UpdateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal update request: %w", err)
	}

	resp := &types.UpdateResponse{}
	if err := c.do(ctx, http.MethodPut, "/api/state", body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Health returns the health report of the server.
func (c *Client) Health(ctx context.Context) (*types.HealthInfo, error) {
	info := &types.HealthInfo{}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// WatchResponse is a structure representing response of Watch.
type WatchResponse struct {
	Document *types.StateDocument
	Err      error
}

// Watch subscribes to the document. The first response carries the current
// document, and each later one the document of a write.
// If the context "ctx" is canceled or timed out, returned channel is closed,
// and no error is sent.
func (c *Client) Watch(ctx context.Context) (<-chan WatchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/state/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("create watch request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open watch stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer c.closeBody(resp.Body)
		return nil, toStatusError(resp)
	}

	rch := make(chan WatchResponse)
	go func() {
		defer close(rch)
		defer c.closeBody(resp.Body)

		err := readEvents(resp.Body, func(data []byte) bool {
			doc := &types.StateDocument{}
			if err := json.Unmarshal(data, doc); err != nil {
				c.logger.Warn("skip malformed state frame", zap.Error(err))
				return true
			}

			select {
			case rch <- WatchResponse{Document: doc}:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			select {
			case rch <- WatchResponse{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return rch, nil
}

// readEvents calls handle with the data of each server-sent event until the
// stream ends or handle returns false. Comment lines are skipped.
func readEvents(r io.Reader, handle func(data []byte) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() == 0 {
				continue
			}
			if !handle(bytes.Clone(data.Bytes())) {
				return nil
			}
			data.Reset()
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read watch stream: %w", err)
	}
	return io.EOF
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if c.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return toStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		c.logger.Debug("close response body", zap.Error(err))
	}
}

// toStatusError builds a StatusError from a failed response. The body is
// expected to be `{"error": ..., "code": ...}`.
func toStatusError(resp *http.Response) error {
	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Error != "" {
			statusErr.Message = body.Error
		}
		statusErr.Code = body.Code
	}

	return statusErr
}
