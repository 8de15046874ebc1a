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

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/beltran/gohive/hive_metastore"
)

// servedMethods are the Thrift calls answered by handler. Any other call
// is rejected with an UNKNOWN_METHOD application exception.
var servedMethods = map[string]struct{}{
	"getMetaConf":       {},
	"setMetaConf":       {},
	"create_database":   {},
	"get_database":      {},
	"drop_database":     {},
	"get_databases":     {},
	"get_all_databases": {},
	"alter_database":    {},
	"create_table":      {},
	"drop_table":        {},
	"get_tables":        {},
	"get_all_tables":    {},
	"get_table":         {},
	"alter_table":       {},
	"lock":              {},
	"check_lock":        {},
	"unlock":            {},
}

// handler implements the served subset of the ThriftHiveMetastore
// service on top of a Store. The embedded interface is nil and only
// satisfies the generated service type; newProcessor never routes an
// unserved call to it.
type handler struct {
	hive_metastore.ThriftHiveMetastore

	store *Store
}

func newProcessor(store *Store) thrift.TProcessor {
	processor := hive_metastore.NewThriftHiveMetastoreProcessor(&handler{store: store})

	calls := processor.ProcessorMap()
	for name := range calls {
		if _, ok := servedMethods[name]; !ok {
			delete(calls, name)
		}
	}

	return processor
}

func (h *handler) GetMetaConf(ctx context.Context, key string) (string, error) {
	return h.store.GetMetaConf(ctx, key)
}

func (h *handler) SetMetaConf(ctx context.Context, key string, value string) error {
	return h.store.SetMetaConf(ctx, key, value)
}

func (h *handler) CreateDatabase(ctx context.Context, database *hive_metastore.Database) error {
	if database == nil {
		return invalidObject("database is required")
	}

	return h.store.CreateDatabase(ctx, database)
}

func (h *handler) GetDatabase(ctx context.Context, name string) (*hive_metastore.Database, error) {
	return h.store.GetDatabase(ctx, name)
}

func (h *handler) DropDatabase(ctx context.Context, name string, deleteData bool, cascade bool) error {
	return h.store.DropDatabase(ctx, name, deleteData, cascade)
}

func (h *handler) GetDatabases(ctx context.Context, pattern string) ([]string, error) {
	return h.store.GetDatabases(ctx, pattern)
}

func (h *handler) GetAllDatabases(ctx context.Context) ([]string, error) {
	return h.store.GetAllDatabases(ctx)
}

func (h *handler) AlterDatabase(ctx context.Context, dbname string, db *hive_metastore.Database) error {
	if db == nil {
		return metaError("database is required")
	}

	return h.store.AlterDatabase(ctx, dbname, db)
}

func (h *handler) CreateTable(ctx context.Context, tbl *hive_metastore.Table) error {
	if tbl == nil {
		return invalidObject("table is required")
	}

	return h.store.CreateTable(ctx, tbl)
}

func (h *handler) DropTable(ctx context.Context, dbname string, name string, deleteData bool) error {
	return h.store.DropTable(ctx, dbname, name, deleteData)
}

func (h *handler) GetTables(ctx context.Context, dbName string, pattern string) ([]string, error) {
	return h.store.GetTables(ctx, dbName, pattern)
}

func (h *handler) GetAllTables(ctx context.Context, dbName string) ([]string, error) {
	return h.store.GetAllTables(ctx, dbName)
}

func (h *handler) GetTable(ctx context.Context, dbname string, tblName string) (*hive_metastore.Table, error) {
	return h.store.GetTable(ctx, dbname, tblName)
}

func (h *handler) AlterTable(ctx context.Context, dbname string, tblName string, newTbl *hive_metastore.Table) error {
	if newTbl == nil {
		return invalidOperation("table is required")
	}

	return h.store.AlterTable(ctx, dbname, tblName, newTbl)
}

func (h *handler) Lock(ctx context.Context, rqst *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error) {
	if rqst == nil || len(rqst.Component) == 0 {
		return nil, thrift.NewTApplicationException(thrift.INVALID_PROTOCOL, "lock request without components")
	}

	return h.store.Lock(ctx, rqst)
}

func (h *handler) CheckLock(ctx context.Context, rqst *hive_metastore.CheckLockRequest) (*hive_metastore.LockResponse, error) {
	if rqst == nil {
		return nil, thrift.NewTApplicationException(thrift.INVALID_PROTOCOL, "check lock request is required")
	}

	return h.store.CheckLock(ctx, rqst.Lockid)
}

func (h *handler) Unlock(ctx context.Context, rqst *hive_metastore.UnlockRequest) error {
	if rqst == nil {
		return thrift.NewTApplicationException(thrift.INVALID_PROTOCOL, "unlock request is required")
	}

	return h.store.Unlock(ctx, rqst.Lockid)
}
