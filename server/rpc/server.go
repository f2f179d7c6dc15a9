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

// Package rpc provides the JSON over HTTP API of the state sync server:
// conditional reads, whole-document writes and push streams.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/yorkie-team/statesync/internal/version"
	"github.com/yorkie-team/statesync/server/backend"
	"github.com/yorkie-team/statesync/server/logging"
	"github.com/yorkie-team/statesync/server/rpc/httphealth"
)

const (
	readHeaderTimeout = 10 * time.Second

	// unmatchedRoute labels requests no route answers, keeping the route
	// label bounded.
	unmatchedRoute = "unmatched"
)

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf       *Config
	be         *backend.Backend
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	// serviceCtx is canceled on shutdown so that open streams end.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) (*Server, error) {
	serviceCtx, serviceCancel := context.WithCancel(context.Background())

	s := &Server{
		conf:          conf,
		be:            be,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}

	router := mux.NewRouter()
	router.Methods(http.MethodGet).Path("/api/state").HandlerFunc(s.getState)
	router.Methods(http.MethodPut).Path("/api/state").HandlerFunc(s.putState)
	router.Methods(http.MethodGet).Path("/api/state/stream").HandlerFunc(s.streamState)
	router.Methods(http.MethodGet).Path("/api/state/ws").HandlerFunc(s.watchState)
	router.Methods(http.MethodGet, http.MethodHead).Path("/api/health").Handler(
		httphealth.NewHandler(be, version.Version),
	)
	s.router = router

	var handler http.Handler = router
	handler = corsMiddleware(conf.AllowedOrigin)(handler)
	handler = logging.NewAccessLogMiddleware(s.observeRequest)(handler)
	if conf.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// Handler returns the root handler of this server, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the address this server listens on, or the configured
// address before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	return s.listenAndServe()
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) {
	s.serviceCancel()

	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Errorf("HTTP server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Errorf("HTTP server close: %v", err)
	}
}

func (s *Server) listenAndServe() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		logging.DefaultLogger().Error(err)
		return err
	}
	s.listener = lis

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		if err := s.httpServer.Serve(lis); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logging.DefaultLogger().Error(err)
			}
		}
	}()

	return nil
}

// observeRequest counts a handled request by its route template. Requests
// that match no route are counted as "unmatched".
func (s *Server) observeRequest(r *http.Request, code int, _ time.Duration) {
	route := unmatchedRoute
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			route = tmpl
		}
	}

	s.be.Metrics.AddServerHandledCounter(r.Method, route, strconv.Itoa(code))
}

// corsMiddleware sets the CORS headers on every response and answers
// preflight requests.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
