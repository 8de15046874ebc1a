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

	"github.com/hashicorp/go-multierror"
	"github.com/hotels/beeju/metastore"
	"golang.org/x/sync/errgroup"
)

// hiveMetaStoreService runs the metastore in process, reached through an
// embedded client.
type hiveMetaStoreService struct {
	store  *metastore.Store
	client metastore.Client
	info   ConnectionInfo
}

func (s *hiveMetaStoreService) Start(ctx context.Context, conf *Configuration) error {
	opts, err := conf.metastoreOptions()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceStart, err)
	}

	// The store is opened on its own goroutine so that initialisation runs
	// away from the caller, which only waits for the result.
	var g errgroup.Group
	g.Go(func() error {
		store, err := metastore.Open(ctx, opts)
		if err != nil {
			return err
		}
		s.store = store
		s.client = metastore.NewEmbeddedClient(store)

		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: metastore: %w", ErrServiceStart, err)
	}

	s.info = ConnectionInfo{URL: opts.ConnectionURL, Driver: opts.Driver}

	return nil
}

func (s *hiveMetaStoreService) Stop(context.Context) error {
	var result error
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close client: %w", err))
		}
		s.client = nil
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close metastore: %w", err))
		}
		s.store = nil
	}

	return result
}

func (s *hiveMetaStoreService) ConnectionInfo() ConnectionInfo { return s.info }

func (s *hiveMetaStoreService) Client() metastore.Client { return s.client }

func (s *hiveMetaStoreService) NewClient(context.Context) (metastore.Client, error) {
	if s.store == nil {
		return nil, ErrFixtureClosed
	}

	return metastore.NewEmbeddedClient(s.store), nil
}
