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
	"sync"
	"testing"
	"time"

	"github.com/beltran/gohive/hive_metastore"
	"github.com/hotels/beeju/metastore"
	"github.com/hotels/beeju/restcatalog"
	log "github.com/sirupsen/logrus"
)

// DefaultDatabaseName is the database name used by most tests.
const DefaultDatabaseName = "test_database"

const defaultStopTimeout = 30 * time.Second

// State is the lifecycle state of a Fixture.
type State int32

const (
	Uninitialised State = iota
	DirectoriesReady
	ServiceStarted
	DatabaseReady
	ServiceStopped
	DirectoriesDeleted
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "UNINITIALISED"
	case DirectoriesReady:
		return "DIRECTORIES_READY"
	case ServiceStarted:
		return "SERVICE_STARTED"
	case DatabaseReady:
		return "DATABASE_READY"
	case ServiceStopped:
		return "SERVICE_STOPPED"
	case DirectoriesDeleted:
		return "DIRECTORIES_DELETED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Fixture sequences the workspace, configuration and service of one
// embedded metastore.
type Fixture struct {
	name    string
	kind    string
	opts    fixtureOptions
	conf    *Configuration
	service Service
	logger  *log.Entry
	env     engineEnvironment

	mu        sync.Mutex
	state     State
	workspace *Workspace
	client    metastore.Client
}

func newFixture(kind, databaseName string, service func(fixtureOptions) (Service, error), opts []Option) (*Fixture, error) {
	o := applyOptions(opts)

	conf, err := newConfiguration(databaseName, o.pre, o.post)
	if err != nil {
		return nil, err
	}

	svc, err := service(o)
	if err != nil {
		return nil, err
	}

	return &Fixture{
		name:    databaseName,
		kind:    kind,
		opts:    o,
		conf:    conf,
		service: svc,
		logger:  o.logger.WithFields(log.Fields{"fixture": kind, "database": databaseName}),
	}, nil
}

// Before creates the workspace, starts the service and creates the
// fixture database. After must be called even when Before fails, to
// release whatever was created.
func (f *Fixture) Before(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Uninitialised {
		return fmt.Errorf("%w: before in state %s", ErrInvalidState, f.state)
	}

	ws, err := newWorkspace(f.opts.tempDir, f.logger)
	if err != nil {
		return err
	}
	f.workspace = ws
	f.conf.applyDefaults(ws.settings())
	f.transition(DirectoriesReady)

	if err := f.env.apply(f.conf.Get(EngineHomeKey)); err != nil {
		return fmt.Errorf("failed to set engine environment: %w", err)
	}

	if err := f.service.Start(ctx, f.conf); err != nil {
		return err
	}
	f.client = f.service.Client()
	f.transition(ServiceStarted)

	if err := f.createDatabase(ctx, f.client, f.name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", f.name, err)
	}
	f.transition(DatabaseReady)

	return nil
}

// After stops the service and deletes the workspace. Failures are logged,
// never returned. After may be called in any state and more than once.
func (f *Fixture) After() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == DirectoriesDeleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.opts.stopTimeout)
	defer cancel()

	if err := f.service.Stop(ctx); err != nil {
		f.logger.WithError(err).Warn("failed to stop service")
	}
	f.transition(ServiceStopped)

	if err := f.env.restore(); err != nil {
		f.logger.WithError(err).Warn("failed to restore engine environment")
	}

	if f.workspace != nil {
		f.workspace.Destroy()
	}
	f.transition(DirectoriesDeleted)
}

// Register runs Before and schedules After as a cleanup of tb. A setup
// failure fails the test.
func (f *Fixture) Register(tb testing.TB) {
	tb.Helper()

	tb.Cleanup(f.After)
	if err := f.Before(context.Background()); err != nil {
		tb.Fatalf("%s fixture setup failed: %v", f.kind, err)
	}
}

func (f *Fixture) transition(to State) {
	f.logger.WithFields(log.Fields{"from": f.state, "to": to}).Debug("fixture state change")
	f.state = to
}

func (f *Fixture) createDatabase(ctx context.Context, client metastore.Client, name string) error {
	return client.CreateDatabase(ctx, &hive_metastore.Database{
		Name:        name,
		LocationUri: f.workspace.DatabaseLocation(name),
		Parameters:  map[string]string{},
	})
}

// live returns the fixture client while the service is running.
func (f *Fixture) live() (metastore.Client, error) {
	if f.state != ServiceStarted && f.state != DatabaseReady {
		return nil, fmt.Errorf("%w: state %s", ErrFixtureClosed, f.state)
	}

	return f.client, nil
}

// CreateDatabase creates a database located in the fixture workspace.
// Metastore exceptions are returned unchanged.
func (f *Fixture) CreateDatabase(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	client, err := f.live()
	if err != nil {
		return err
	}

	return f.createDatabase(ctx, client, name)
}

func (f *Fixture) DatabaseName() string { return f.name }

// ConnectionURL is the URL of the service, valid after Before.
func (f *Fixture) ConnectionURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.service.ConnectionInfo().URL
}

// DriverName is the driver of the service, valid after Before.
func (f *Fixture) DriverName() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.service.ConnectionInfo().Driver
}

// Conf returns a copy of the resolved configuration.
func (f *Fixture) Conf() map[string]string { return f.conf.Settings() }

func (f *Fixture) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// TempDir is the workspace root, or "" before Before.
func (f *Fixture) TempDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.workspace == nil {
		return ""
	}

	return f.workspace.Root()
}

// Client is the client owned by the fixture. It fails with
// metastore.ErrClientClosed after After.
func (f *Fixture) Client() metastore.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.client
}

// NewClient opens a new client to the service. The caller must close it.
func (f *Fixture) NewClient(ctx context.Context) (metastore.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.live(); err != nil {
		return nil, err
	}

	return f.service.NewClient(ctx)
}

// HiveMetaStore is a fixture with an embedded metastore client and no
// network service.
type HiveMetaStore struct {
	*Fixture
}

func NewHiveMetaStore(databaseName string, opts ...Option) (*HiveMetaStore, error) {
	f, err := newFixture("hive-metastore", databaseName, func(fixtureOptions) (Service, error) {
		return &hiveMetaStoreService{}, nil
	}, opts)
	if err != nil {
		return nil, err
	}

	return &HiveMetaStore{Fixture: f}, nil
}

// ThriftHiveMetaStore is a fixture serving the metastore over Thrift.
type ThriftHiveMetaStore struct {
	*Fixture
	thrift *thriftService
}

func NewThriftHiveMetaStore(databaseName string, opts ...Option) (*ThriftHiveMetaStore, error) {
	var svc *thriftService
	f, err := newFixture("thrift-hive-metastore", databaseName, func(o fixtureOptions) (Service, error) {
		var err error
		svc, err = newThriftService(o.thriftPort)

		return svc, err
	}, opts)
	if err != nil {
		return nil, err
	}

	return &ThriftHiveMetaStore{Fixture: f, thrift: svc}, nil
}

// ThriftConnectionURI is the thrift:// URI of the server, valid after
// Before.
func (t *ThriftHiveMetaStore) ThriftConnectionURI() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.thrift.URI()
}

func (t *ThriftHiveMetaStore) ThriftPort() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.thrift.Port()
}

// CatalogServer is a fixture serving the metastore over HTTP with the
// Iceberg REST catalog protocol.
type CatalogServer struct {
	*Fixture
	catalog *catalogService
}

func NewCatalogServer(databaseName string, opts ...Option) (*CatalogServer, error) {
	var svc *catalogService
	f, err := newFixture("catalog-server", databaseName, func(o fixtureOptions) (Service, error) {
		svc = &catalogService{logger: o.logger}

		return svc, nil
	}, opts)
	if err != nil {
		return nil, err
	}

	return &CatalogServer{Fixture: f, catalog: svc}, nil
}

// CatalogURI is the base URI of the catalog service, valid after Before.
func (c *CatalogServer) CatalogURI() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.catalog.URI()
}

func (c *CatalogServer) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.catalog.Port()
}

// ServerState reports the state of the catalog server.
func (c *CatalogServer) ServerState() restcatalog.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.catalog.state()
}
