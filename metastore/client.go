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

package metastore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/beltran/gohive"
	"github.com/beltran/gohive/hive_metastore"
)

// Client is a Hive metastore client. The embedded client talks to a Store
// in process, the Thrift client to a metastore server. Both report
// failures with the Hive Metastore exception types.
type Client interface {
	Close() error

	GetDatabase(ctx context.Context, name string) (*hive_metastore.Database, error)
	CreateDatabase(ctx context.Context, database *hive_metastore.Database) error
	AlterDatabase(ctx context.Context, dbname string, db *hive_metastore.Database) error
	DropDatabase(ctx context.Context, name string, deleteData, cascade bool) error
	GetAllDatabases(ctx context.Context) ([]string, error)
	GetDatabases(ctx context.Context, pattern string) ([]string, error)

	GetTable(ctx context.Context, dbName, tableName string) (*hive_metastore.Table, error)
	CreateTable(ctx context.Context, tbl *hive_metastore.Table) error
	AlterTable(ctx context.Context, dbName, tableName string, newTbl *hive_metastore.Table) error
	DropTable(ctx context.Context, dbName, tableName string, deleteData bool) error
	GetTables(ctx context.Context, dbName, pattern string) ([]string, error)
	GetAllTables(ctx context.Context, dbName string) ([]string, error)

	Lock(ctx context.Context, request *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error)
	CheckLock(ctx context.Context, lockId int64) (*hive_metastore.LockResponse, error)
	Unlock(ctx context.Context, lockId int64) error

	GetMetaConf(ctx context.Context, key string) (string, error)
	SetMetaConf(ctx context.Context, key, value string) error
}

var (
	_ Client = (*embeddedClient)(nil)
	_ Client = (*thriftClient)(nil)
)

// embeddedClient serves every call from a Store. Closing the client does
// not close the Store.
type embeddedClient struct {
	store *Store

	closed atomic.Bool
}

// NewEmbeddedClient returns a Client backed directly by store.
func NewEmbeddedClient(store *Store) Client {
	return &embeddedClient{store: store}
}

func (c *embeddedClient) Close() error {
	c.closed.Store(true)

	return nil
}

func (c *embeddedClient) check() error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	return nil
}

func (c *embeddedClient) GetDatabase(ctx context.Context, name string) (*hive_metastore.Database, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetDatabase(ctx, name)
}

func (c *embeddedClient) CreateDatabase(ctx context.Context, database *hive_metastore.Database) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.CreateDatabase(ctx, database)
}

func (c *embeddedClient) AlterDatabase(ctx context.Context, dbname string, db *hive_metastore.Database) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.AlterDatabase(ctx, dbname, db)
}

func (c *embeddedClient) DropDatabase(ctx context.Context, name string, deleteData, cascade bool) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.DropDatabase(ctx, name, deleteData, cascade)
}

func (c *embeddedClient) GetAllDatabases(ctx context.Context) ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetAllDatabases(ctx)
}

func (c *embeddedClient) GetDatabases(ctx context.Context, pattern string) ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetDatabases(ctx, pattern)
}

func (c *embeddedClient) GetTable(ctx context.Context, dbName, tableName string) (*hive_metastore.Table, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetTable(ctx, dbName, tableName)
}

func (c *embeddedClient) CreateTable(ctx context.Context, tbl *hive_metastore.Table) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.CreateTable(ctx, tbl)
}

func (c *embeddedClient) AlterTable(ctx context.Context, dbName, tableName string, newTbl *hive_metastore.Table) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.AlterTable(ctx, dbName, tableName, newTbl)
}

func (c *embeddedClient) DropTable(ctx context.Context, dbName, tableName string, deleteData bool) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.DropTable(ctx, dbName, tableName, deleteData)
}

func (c *embeddedClient) GetTables(ctx context.Context, dbName, pattern string) ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetTables(ctx, dbName, pattern)
}

func (c *embeddedClient) GetAllTables(ctx context.Context, dbName string) ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.GetAllTables(ctx, dbName)
}

func (c *embeddedClient) Lock(ctx context.Context, request *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.Lock(ctx, request)
}

func (c *embeddedClient) CheckLock(ctx context.Context, lockId int64) (*hive_metastore.LockResponse, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	return c.store.CheckLock(ctx, lockId)
}

func (c *embeddedClient) Unlock(ctx context.Context, lockId int64) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.Unlock(ctx, lockId)
}

func (c *embeddedClient) GetMetaConf(ctx context.Context, key string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}

	return c.store.GetMetaConf(ctx, key)
}

func (c *embeddedClient) SetMetaConf(ctx context.Context, key, value string) error {
	if err := c.check(); err != nil {
		return err
	}

	return c.store.SetMetaConf(ctx, key, value)
}

// thriftClient serializes calls because a Thrift connection carries one
// request at a time.
type thriftClient struct {
	mu     sync.Mutex
	client *gohive.HiveMetastoreClient
}

// NewThriftClient connects to the metastore server at uri, a
// thrift://host:port address, without SASL over the binary transport.
func NewThriftClient(uri string) (Client, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}

	if parsed.Scheme != "thrift" {
		return nil, fmt.Errorf("%w: unsupported metastore URI %q", ErrInvalidArgument, uri)
	}

	host := parsed.Hostname()
	portStr := parsed.Port()
	if portStr == "" {
		portStr = strconv.Itoa(DefaultThriftPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	config := gohive.NewMetastoreConnectConfiguration()
	config.TransportMode = "binary"

	client, err := gohive.ConnectToMetastore(host, port, "NOSASL", config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metastore: %w", err)
	}

	return &thriftClient{client: client}, nil
}

func (c *thriftClient) acquire() (*hive_metastore.ThriftHiveMetastoreClient, error) {
	c.mu.Lock()
	if c.client == nil {
		c.mu.Unlock()

		return nil, ErrClientClosed
	}

	return c.client.Client, nil
}

func (c *thriftClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}

	return nil
}

func (c *thriftClient) GetDatabase(ctx context.Context, name string) (*hive_metastore.Database, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetDatabase(ctx, name)
}

func (c *thriftClient) CreateDatabase(ctx context.Context, database *hive_metastore.Database) error {
	if database == nil {
		return fmt.Errorf("%w: nil database", ErrInvalidArgument)
	}

	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.CreateDatabase(ctx, database)
}

func (c *thriftClient) AlterDatabase(ctx context.Context, dbname string, db *hive_metastore.Database) error {
	if db == nil {
		return fmt.Errorf("%w: nil database", ErrInvalidArgument)
	}

	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.AlterDatabase(ctx, dbname, db)
}

func (c *thriftClient) DropDatabase(ctx context.Context, name string, deleteData, cascade bool) error {
	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.DropDatabase(ctx, name, deleteData, cascade)
}

func (c *thriftClient) GetAllDatabases(ctx context.Context) ([]string, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetAllDatabases(ctx)
}

func (c *thriftClient) GetDatabases(ctx context.Context, pattern string) ([]string, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetDatabases(ctx, pattern)
}

func (c *thriftClient) GetTable(ctx context.Context, dbName, tableName string) (*hive_metastore.Table, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetTable(ctx, dbName, tableName)
}

func (c *thriftClient) CreateTable(ctx context.Context, tbl *hive_metastore.Table) error {
	if tbl == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidArgument)
	}

	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.CreateTable(ctx, tbl)
}

func (c *thriftClient) AlterTable(ctx context.Context, dbName, tableName string, newTbl *hive_metastore.Table) error {
	if newTbl == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidArgument)
	}

	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.AlterTable(ctx, dbName, tableName, newTbl)
}

func (c *thriftClient) DropTable(ctx context.Context, dbName, tableName string, deleteData bool) error {
	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.DropTable(ctx, dbName, tableName, deleteData)
}

func (c *thriftClient) GetTables(ctx context.Context, dbName, pattern string) ([]string, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetTables(ctx, dbName, pattern)
}

func (c *thriftClient) GetAllTables(ctx context.Context, dbName string) ([]string, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.GetAllTables(ctx, dbName)
}

func (c *thriftClient) Lock(ctx context.Context, request *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.Lock(ctx, request)
}

func (c *thriftClient) CheckLock(ctx context.Context, lockId int64) (*hive_metastore.LockResponse, error) {
	cl, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	return cl.CheckLock(ctx, &hive_metastore.CheckLockRequest{
		Lockid: lockId,
	})
}

func (c *thriftClient) Unlock(ctx context.Context, lockId int64) error {
	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.Unlock(ctx, &hive_metastore.UnlockRequest{
		Lockid: lockId,
	})
}

func (c *thriftClient) GetMetaConf(ctx context.Context, key string) (string, error) {
	cl, err := c.acquire()
	if err != nil {
		return "", err
	}
	defer c.mu.Unlock()

	return cl.GetMetaConf(ctx, key)
}

func (c *thriftClient) SetMetaConf(ctx context.Context, key, value string) error {
	cl, err := c.acquire()
	if err != nil {
		return err
	}
	defer c.mu.Unlock()

	return cl.SetMetaConf(ctx, key, value)
}
