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
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hotels/beeju/restcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitStartedTimesOutAfterAttempts(t *testing.T) {
	calls := 0
	err := awaitStarted(context.Background(), "test", startPolicy{attempts: 5, interval: time.Millisecond},
		func(context.Context, time.Duration) error {
			calls++

			return errNotStartedYet
		})

	assert.ErrorIs(t, err, ErrServiceStartTimeout)
	assert.Equal(t, 5, calls)
}

func TestAwaitStartedSucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	err := awaitStarted(context.Background(), "test", startPolicy{attempts: 5, interval: time.Millisecond},
		func(context.Context, time.Duration) error {
			calls++
			if calls < 3 {
				return errNotStartedYet
			}

			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAwaitStartedStopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := awaitStarted(context.Background(), "test", startPolicy{attempts: 5, interval: time.Millisecond},
		func(context.Context, time.Duration) error {
			calls++

			return boom
		})

	assert.ErrorIs(t, err, ErrServiceStart)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestAwaitStartedSignalled(t *testing.T) {
	started := make(chan struct{})
	failed := make(chan error, 1)
	p := startPolicy{attempts: 3, interval: 10 * time.Millisecond, signalled: true}

	err := awaitStarted(context.Background(), "test", p, signalReady(started, failed))
	assert.ErrorIs(t, err, ErrServiceStartTimeout)

	close(started)
	assert.NoError(t, awaitStarted(context.Background(), "test", p, signalReady(started, failed)))
}

func TestAwaitStartedSignalledFailure(t *testing.T) {
	boom := errors.New("listen failed")
	failed := make(chan error, 1)
	failed <- boom

	err := awaitStarted(context.Background(), "test", signalledStart, signalReady(make(chan struct{}), failed))
	assert.ErrorIs(t, err, ErrServiceStart)
	assert.ErrorIs(t, err, boom)
}

func TestAwaitStartedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := awaitStarted(ctx, "test", signalledStart, signalReady(make(chan struct{}), make(chan error)))
	assert.ErrorIs(t, err, ErrServiceStart)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogReadyRequiresStartedState(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	check := catalogReady(srv.URL+"/", func() restcatalog.State { return restcatalog.Initialised })

	assert.ErrorIs(t, check(context.Background(), 0), errNotStartedYet)
	assert.Zero(t, requests.Load())
}

func TestCatalogReadyQueriesConfig(t *testing.T) {
	var healthy atomic.Bool
	var configRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/config" {
			configRequests.Add(1)
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}
		w.Write([]byte(`{"defaults":{},"overrides":{}}`))
	}))
	defer srv.Close()

	check := catalogReady(srv.URL+"/", func() restcatalog.State { return restcatalog.Started })
	policy := startPolicy{attempts: 2, interval: time.Millisecond}

	err := awaitStarted(context.Background(), "catalog", policy, check)
	assert.ErrorIs(t, err, ErrServiceStartTimeout)
	assert.EqualValues(t, 2, configRequests.Load())

	healthy.Store(true)
	assert.NoError(t, awaitStarted(context.Background(), "catalog", policy, check))
}

func TestCatalogReadyUnreachable(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)

	check := catalogReady("http://localhost:"+strconv.Itoa(port)+"/",
		func() restcatalog.State { return restcatalog.Started })

	assert.ErrorIs(t, check(context.Background(), 0), errNotStartedYet)
}

func TestFreePort(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)
	assert.Positive(t, port)

	l, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	require.NoError(t, err)
	l.Close()
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, validatePort(0))
	assert.NoError(t, validatePort(9083))
	assert.ErrorIs(t, validatePort(-1), ErrInvalidArgument)
}
