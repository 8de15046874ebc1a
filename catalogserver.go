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

package beeju

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hotels/beeju/restcatalog"
	log "github.com/sirupsen/logrus"
)

// CatalogDriver is the driver name reported by catalog server fixtures.
const CatalogDriver = "rest"

const readinessRequestTimeout = time.Second

// catalogService serves an embedded metastore over HTTP with the Iceberg
// REST catalog protocol.
type catalogService struct {
	hiveMetaStoreService

	logger *log.Entry
	server *restcatalog.Server
	port   int
	uri    string
}

func (s *catalogService) Start(ctx context.Context, conf *Configuration) error {
	if err := s.hiveMetaStoreService.Start(ctx, conf); err != nil {
		return err
	}

	port, err := freePort()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceStart, err)
	}
	conf.setInt(CatalogPortKey, port)

	// the post-configuration may pin the port
	typed, err := conf.typed()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceStart, err)
	}
	if err := validatePort(typed.CatalogPort); err != nil {
		return err
	}
	port = typed.CatalogPort

	s.server = restcatalog.NewServer(s.client, s.store.Warehouse(), s.logger)
	if err := s.server.Init(net.JoinHostPort("localhost", strconv.Itoa(port))); err != nil {
		return fmt.Errorf("%w: catalog server: %w", ErrServiceStart, err)
	}
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("%w: catalog server: %w", ErrServiceStart, err)
	}

	s.port = s.server.Addr().(*net.TCPAddr).Port
	s.uri = "http://localhost:" + strconv.Itoa(s.port) + "/"

	if err := awaitStarted(ctx, "catalog server", polledStart, catalogReady(s.uri, s.server.State)); err != nil {
		return err
	}

	s.info = ConnectionInfo{URL: s.uri, Driver: CatalogDriver, Port: s.port}

	return nil
}

// catalogReady reports the catalog started once it is in the Started state
// and answers a configuration request at uri.
func catalogReady(uri string, state func() restcatalog.State) readinessCheck {
	client := &http.Client{Timeout: readinessRequestTimeout}

	return func(ctx context.Context, _ time.Duration) error {
		if st := state(); st != restcatalog.Started {
			return fmt.Errorf("%w: catalog server is %s", errNotStartedYet, st)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri+"v1/config", nil)
		if err != nil {
			return err
		}

		rsp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", errNotStartedYet, err)
		}
		defer rsp.Body.Close()
		io.Copy(io.Discard, rsp.Body)

		if rsp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: catalog config answered %s", errNotStartedYet, rsp.Status)
		}

		return nil
	}
}

func (s *catalogService) Stop(ctx context.Context) error {
	var result error
	if s.server != nil {
		if err := s.server.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop catalog server: %w", err))
		}
	}

	if err := s.hiveMetaStoreService.Stop(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

func (s *catalogService) state() restcatalog.State {
	if s.server == nil {
		return restcatalog.New
	}

	return s.server.State()
}

func (s *catalogService) URI() string { return s.uri }
func (s *catalogService) Port() int   { return s.port }
