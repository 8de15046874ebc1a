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
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/hotels/beeju/metastore"
	"golang.org/x/sync/errgroup"
)

// thriftService serves an embedded metastore over the Hive Metastore
// Thrift protocol on a local port.
type thriftService struct {
	hiveMetaStoreService

	// requestedPort is the port asked for, 0 to pick a free one.
	requestedPort int
	port          int
	uri           string

	server *metastore.ThriftServer
	served *errgroup.Group
	remote metastore.Client
}

func newThriftService(port int) (*thriftService, error) {
	if err := validatePort(port); err != nil {
		return nil, err
	}

	return &thriftService{requestedPort: port}, nil
}

func (s *thriftService) Start(ctx context.Context, conf *Configuration) error {
	if err := s.hiveMetaStoreService.Start(ctx, conf); err != nil {
		return err
	}

	port := s.requestedPort
	if port == 0 {
		var err error
		if port, err = freePort(); err != nil {
			return fmt.Errorf("%w: %w", ErrServiceStart, err)
		}
	}

	s.port = port
	s.uri = "thrift://localhost:" + strconv.Itoa(port)
	conf.setInt(metastore.ThriftPortKey, port)
	conf.Set(metastore.URIsKey, s.uri)

	server, err := metastore.NewThriftServer(s.store, net.JoinHostPort("localhost", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceStart, err)
	}
	s.server = server

	started := make(chan struct{})
	failed := make(chan error, 1)
	serveCtx := context.WithoutCancel(ctx)

	s.served = new(errgroup.Group)
	s.served.Go(func() error {
		err := server.Serve(serveCtx, started)
		failed <- err

		return err
	})

	if err := awaitStarted(ctx, "thrift metastore", signalledStart, signalReady(started, failed)); err != nil {
		return err
	}

	s.remote, err = metastore.NewThriftClient(s.uri)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceStart, err)
	}

	s.info.Port = port

	return nil
}

func (s *thriftService) Stop(ctx context.Context) error {
	var result error
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close thrift client: %w", err))
		}
		s.remote = nil
	}

	if s.server != nil {
		if err := s.server.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop thrift server: %w", err))
		}
		if err := s.served.Wait(); err != nil {
			result = multierror.Append(result, fmt.Errorf("thrift server: %w", err))
		}
		s.server = nil
	}

	if err := s.hiveMetaStoreService.Stop(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// Client returns the Thrift client owned by the service.
func (s *thriftService) Client() metastore.Client { return s.remote }

func (s *thriftService) NewClient(context.Context) (metastore.Client, error) {
	if s.server == nil {
		return nil, ErrFixtureClosed
	}

	return metastore.NewThriftClient(s.uri)
}

func (s *thriftService) URI() string { return s.uri }
func (s *thriftService) Port() int   { return s.port }
