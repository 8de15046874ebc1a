// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package restcatalog serves a Hive metastore over HTTP using the
// namespace and table listing endpoints of the Iceberg REST catalog
// protocol. Hive databases are exposed as single-level namespaces.
package restcatalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hotels/beeju/metastore"
	log "github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Server.
type State int32

const (
	New State = iota
	Initialised
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Initialised:
		return "INITIALISED"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrInvalidState is returned when a lifecycle call does not fit the
	// current state, such as Start before Init.
	ErrInvalidState = errors.New("invalid server state")
)

const requestTimeout = 30 * time.Second

// Server is an HTTP catalog service backed by a metastore client.
type Server struct {
	client    metastore.Client
	warehouse string
	logger    *log.Entry
	handler   http.Handler

	mu       sync.Mutex
	state    atomic.Int32
	listener net.Listener
	server   *http.Server
	served   chan struct{}
}

// NewServer creates a server in the New state. warehouse is advertised to
// clients as the default warehouse location. A nil logger uses the
// standard logrus logger.
func NewServer(client metastore.Client, warehouse string, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	s := &Server{
		client:    client,
		warehouse: warehouse,
		logger:    logger.WithField("component", "catalog-server"),
	}
	s.handler = s.routes()

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/config", s.getConfig)

		r.Get("/namespaces", s.listNamespaces)
		r.Post("/namespaces", s.createNamespace)

		r.Route("/namespaces/{namespace}", func(r chi.Router) {
			r.Get("/", s.loadNamespace)
			r.Head("/", s.namespaceExists)
			r.Delete("/", s.dropNamespace)
			r.Post("/properties", s.updateNamespaceProperties)

			r.Get("/tables", s.listTables)
			r.Post("/tables", notImplemented)
			r.Get("/tables/{table}", notImplemented)
			r.Post("/tables/{table}", notImplemented)
			r.Head("/tables/{table}", s.tableExists)
			r.Delete("/tables/{table}", s.dropTable)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("catalog request")
	})
}

// Handler returns the HTTP handler serving the catalog routes.
func (s *Server) Handler() http.Handler { return s.handler }

// State reports the lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// Init binds the listening socket on addr (host:port).
func (s *Server) Init(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != New {
		return fmt.Errorf("%w: init in state %s", ErrInvalidState, s.State())
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = l
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: requestTimeout,
	}
	s.state.Store(int32(Initialised))

	return nil
}

// Addr is the bound address, or nil before Init.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Start serves requests on a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != Initialised {
		return fmt.Errorf("%w: start in state %s", ErrInvalidState, s.State())
	}

	s.served = make(chan struct{})
	go func(srv *http.Server, l net.Listener, done chan<- struct{}) {
		defer close(done)
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("catalog server stopped unexpectedly")
		}
	}(s.server, s.listener, s.served)

	s.state.Store(int32(Started))
	s.logger.WithField("addr", s.listener.Addr().String()).Info("catalog server started")

	return nil
}

// Stop shuts the server down gracefully, waiting for in-flight requests
// until ctx expires. Stop is idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case Stopped:
		return nil
	case New:
		s.state.Store(int32(Stopped))

		return nil
	}

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
		if s.served == nil {
			// initialised but never started: Shutdown does not close
			// listeners it is not serving
			s.listener.Close()
		} else {
			select {
			case <-s.served:
			case <-ctx.Done():
				if err == nil {
					err = ctx.Err()
				}
			}
		}
	}

	s.state.Store(int32(Stopped))
	s.logger.Info("catalog server stopped")

	return err
}
