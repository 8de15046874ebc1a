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
	"os"
	"testing"

	"github.com/hotels/beeju/metastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Start(ctx context.Context, conf *Configuration) error {
	return m.Called(ctx, conf).Error(0)
}

func (m *mockService) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockService) ConnectionInfo() ConnectionInfo {
	return m.Called().Get(0).(ConnectionInfo)
}

func (m *mockService) Client() metastore.Client {
	c, _ := m.Called().Get(0).(metastore.Client)

	return c
}

func (m *mockService) NewClient(ctx context.Context) (metastore.Client, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(metastore.Client)

	return c, args.Error(1)
}

func mockFixture(t *testing.T, svc Service) *Fixture {
	f, err := newFixture("mock", DefaultDatabaseName, func(fixtureOptions) (Service, error) {
		return svc, nil
	}, []Option{WithTempDir(t.TempDir())})
	require.NoError(t, err)

	return f
}

func TestFixtureStartFailure(t *testing.T) {
	svc := new(mockService)
	boom := errors.New("boom")
	svc.On("Start", mock.Anything, mock.Anything).Return(boom).Once()
	svc.On("Stop", mock.Anything).Return(nil).Once()

	f := mockFixture(t, svc)
	assert.ErrorIs(t, f.Before(context.Background()), boom)
	assert.Equal(t, DirectoriesReady, f.State())

	root := f.TempDir()
	assert.DirExists(t, root)

	f.After()
	assert.NoDirExists(t, root)
	assert.Equal(t, DirectoriesDeleted, f.State())
	svc.AssertExpectations(t)
}

func TestFixtureStopFailureIsSwallowed(t *testing.T) {
	store, err := metastore.Open(context.Background(), func() *metastore.Options {
		opts := metastore.NewOptions()
		require.NoError(t, opts.ApplyProperties(map[string]string{
			metastore.ConnectionURLKey: "file:mock_" + t.Name() + "?mode=memory&cache=shared",
			metastore.WarehouseKey:     t.TempDir(),
		}))

		return opts
	}())
	require.NoError(t, err)
	defer store.Close()

	svc := new(mockService)
	svc.On("Start", mock.Anything, mock.Anything).Return(nil).Once()
	svc.On("Client").Return(metastore.NewEmbeddedClient(store))
	svc.On("Stop", mock.Anything).Return(errors.New("stop failed")).Once()

	f := mockFixture(t, svc)
	require.NoError(t, f.Before(context.Background()))
	assert.Equal(t, DatabaseReady, f.State())

	root := f.TempDir()
	assert.NotPanics(t, f.After)
	assert.NoDirExists(t, root)
	svc.AssertExpectations(t)
}

func TestFixtureStartSeesWorkspaceSettings(t *testing.T) {
	t.Setenv(sqliteTempDirEnv, "before")

	svc := new(mockService)
	svc.On("Start", mock.Anything, mock.MatchedBy(func(conf *Configuration) bool {
		home := conf.Get(EngineHomeKey)

		return home != "" && os.Getenv(sqliteTempDirEnv) == home && conf.Get(metastore.WarehouseKey) != ""
	})).Return(errors.New("stop here")).Once()
	svc.On("Stop", mock.Anything).Return(nil)

	f := mockFixture(t, svc)
	assert.Error(t, f.Before(context.Background()))
	f.After()

	assert.Equal(t, "before", os.Getenv(sqliteTempDirEnv))
	svc.AssertExpectations(t)
}
