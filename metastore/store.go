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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/beltran/gohive/hive_metastore"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mssqldialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/oracledialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

type SupportedDialect string

const (
	Postgres SupportedDialect = "postgres"
	MySQL    SupportedDialect = "mysql"
	SQLite   SupportedDialect = "sqlite"
	MSSQL    SupportedDialect = "mssql"
	Oracle   SupportedDialect = "oracle"
)

var (
	dialects  = map[SupportedDialect]schema.Dialect{}
	dialectMx sync.Mutex
)

func createDialect(d SupportedDialect) (schema.Dialect, error) {
	switch d {
	case Postgres:
		return pgdialect.New(), nil
	case MySQL:
		return mysqldialect.New(), nil
	case SQLite:
		return sqlitedialect.New(), nil
	case MSSQL:
		return mssqldialect.New(), nil
	case Oracle:
		return oracledialect.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, d)
	}
}

func getDialect(d SupportedDialect) (schema.Dialect, error) {
	dialectMx.Lock()
	defer dialectMx.Unlock()
	ret, ok := dialects[d]
	if !ok {
		var err error
		if ret, err = createDialect(d); err != nil {
			return nil, err
		}
		dialects[d] = ret
	}

	return ret, nil
}

type sqlDatabase struct {
	bun.BaseModel `bun:"table:hms_databases"`

	Name        string `bun:",pk"`
	Description string
	LocationURI string
	OwnerName   sql.NullString
	OwnerType   sql.NullString
}

type sqlDatabaseParam struct {
	bun.BaseModel `bun:"table:hms_database_params"`

	DbName     string `bun:",pk"`
	ParamKey   string `bun:",pk"`
	ParamValue string
}

type sqlTable struct {
	bun.BaseModel `bun:"table:hms_tables"`

	DbName    string `bun:",pk"`
	TableName string `bun:",pk"`
	TableType string
	Location  string
	Payload   []byte
}

func withReadTx[R any](ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) (R, error)) (result R, err error) {
	txErr := db.RunInTx(ctx, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx bun.Tx) error {
		result, err = fn(ctx, tx)

		return err
	})
	if err == nil {
		err = txErr
	}

	return
}

func withWriteTx(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// Store is an embedded Hive metastore catalog persisted in a relational
// database through bun. It holds databases, tables and locks and is safe
// for concurrent use.
type Store struct {
	db      *bun.DB
	opts    Options
	logFile io.Closer

	serializer   *thrift.TSerializerPool
	deserializer *thrift.TDeserializerPool
	locks        *lockManager

	confMx sync.RWMutex
	conf   map[string]string

	closed atomic.Bool
}

// Open connects to the database described by opts and prepares the
// metastore schema.
//
// If opts.AutoCreateSchema is set the metastore tables are created when
// missing. If opts.InitDefaultDatabase is set the "default" database is
// created at the warehouse directory when it does not exist yet.
//
// Queries are logged to opts.LogFile when opts.SQLDebug is 1 (failed
// queries) or 2 (all queries). The BEEJU_SQL_DEBUG environment variable
// overrides the setting.
//
// SQLite connections are limited to a single connection so that a
// shared-cache in-memory database lives exactly as long as the Store.
func Open(ctx context.Context, opts *Options) (*Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: nil options", ErrInvalidArgument)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	dialect, err := getDialect(SupportedDialect(strings.ToLower(string(opts.Dialect))))
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(opts.Driver, opts.ConnectionURL)
	if err != nil {
		return nil, err
	}

	if opts.Dialect == SQLite {
		sqldb.SetMaxOpenConns(1)
	}

	s := &Store{
		db:   bun.NewDB(sqldb, dialect),
		opts: *opts,
		serializer: thrift.NewTSerializerPool(func() *thrift.TSerializer {
			return thrift.NewTSerializer()
		}),
		deserializer: thrift.NewTDeserializerPool(func() *thrift.TDeserializer {
			return thrift.NewTDeserializer()
		}),
		locks: newLockManager(),
		conf:  maps.Clone(opts.Conf),
	}
	if s.conf == nil {
		s.conf = map[string]string{}
	}

	if err := s.addQueryHook(); err != nil {
		s.db.Close()

		return nil, err
	}

	if err := s.init(ctx); err != nil {
		s.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) addQueryHook() error {
	hookOpts := []bundebug.Option{
		bundebug.WithEnabled(s.opts.SQLDebug > 0),
		bundebug.WithVerbose(s.opts.SQLDebug > 1),
	}

	if s.opts.LogFile != "" {
		f, err := os.OpenFile(s.opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open engine log: %w", err)
		}
		s.logFile = f
		hookOpts = append(hookOpts, bundebug.WithWriter(f))
	}

	// BEEJU_SQL_DEBUG=1 logs only failed queries
	// BEEJU_SQL_DEBUG=2 log all queries
	hookOpts = append(hookOpts, bundebug.FromEnv(SQLDebugEnv))
	s.db.AddQueryHook(bundebug.NewQueryHook(hookOpts...))

	return nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}

	if s.opts.AutoCreateSchema {
		if err := s.CreateSQLTables(ctx); err != nil {
			return err
		}
	}

	if !s.opts.InitDefaultDatabase {
		return nil
	}

	err := s.CreateDatabase(ctx, &hive_metastore.Database{
		Name:        DefaultDatabaseName,
		Description: DefaultDatabaseDescription,
		LocationUri: s.opts.Warehouse,
		Parameters:  map[string]string{},
	})
	if err != nil && !IsAlreadyExists(err) {
		return err
	}

	return nil
}

// CreateSQLTables creates the tables backing the metastore if they do
// not exist.
func (s *Store) CreateSQLTables(ctx context.Context) error {
	for _, model := range []any{(*sqlDatabase)(nil), (*sqlDatabaseParam)(nil), (*sqlTable)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// DropSQLTables removes the tables backing the metastore.
func (s *Store) DropSQLTables(ctx context.Context) error {
	for _, model := range []any{(*sqlTable)(nil), (*sqlDatabaseParam)(nil), (*sqlDatabase)(nil)} {
		if _, err := s.db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the database handle and the engine log. Closing the
// last connection of an in-memory database discards its contents.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.db.Close()
	if s.logFile != nil {
		if lerr := s.logFile.Close(); err == nil {
			err = lerr
		}
	}

	return err
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	return nil
}

// Warehouse is the directory holding databases without an explicit location.
func (s *Store) Warehouse() string { return s.opts.Warehouse }

func (s *Store) defaultDatabaseLocation(name string) string {
	if name == DefaultDatabaseName {
		return s.opts.Warehouse
	}

	return childLocation(s.opts.Warehouse, name+".db")
}

func databaseExists(ctx context.Context, tx bun.IDB, name string) (bool, error) {
	return tx.NewSelect().Model((*sqlDatabase)(nil)).
		Where("name = ?", name).Limit(1).Exists(ctx)
}

func (s *Store) CreateDatabase(ctx context.Context, database *hive_metastore.Database) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if database == nil {
		return fmt.Errorf("%w: nil database", ErrInvalidArgument)
	}

	if !ValidName(database.Name) {
		return invalidObject("%s is not a valid database name", database.Name)
	}

	name := normalizeName(database.Name)
	location := database.LocationUri
	if location == "" {
		location = s.defaultDatabaseLocation(name)
	}

	row := &sqlDatabase{
		Name:        name,
		Description: database.Description,
		LocationURI: location,
	}
	if database.OwnerName != nil {
		row.OwnerName = sql.NullString{String: *database.OwnerName, Valid: true}
	}
	if database.OwnerType != nil {
		row.OwnerType = sql.NullString{String: database.OwnerType.String(), Valid: true}
	}

	err := withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		exists, err := databaseExists(ctx, tx, name)
		if err != nil {
			return err
		}
		if exists {
			return alreadyExists("Database %s already exists", name)
		}

		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create database %s: %w", name, err)
		}

		return insertParams(ctx, tx, name, database.Parameters)
	})
	if err != nil {
		return err
	}

	if p, ok := localPath(location); ok {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return metaError("failed to create database directory %s: %s", p, err)
		}
	}

	return nil
}

func insertParams(ctx context.Context, tx bun.Tx, name string, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}

	rows := make([]sqlDatabaseParam, 0, len(params))
	for k, v := range params {
		rows = append(rows, sqlDatabaseParam{DbName: name, ParamKey: k, ParamValue: v})
	}

	_, err := tx.NewInsert().Model(&rows).Exec(ctx)

	return err
}

func (s *Store) GetDatabase(ctx context.Context, name string) (*hive_metastore.Database, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	name = normalizeName(name)

	return withReadTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) (*hive_metastore.Database, error) {
		var row sqlDatabase
		err := tx.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, noSuchObject("database %s does not exist", name)
			}

			return nil, err
		}

		var params []sqlDatabaseParam
		if err := tx.NewSelect().Model(&params).Where("db_name = ?", name).Scan(ctx); err != nil {
			return nil, err
		}

		db := &hive_metastore.Database{
			Name:        row.Name,
			Description: row.Description,
			LocationUri: row.LocationURI,
			Parameters:  make(map[string]string, len(params)),
		}
		for _, p := range params {
			db.Parameters[p.ParamKey] = p.ParamValue
		}
		if row.OwnerName.Valid {
			db.OwnerName = &row.OwnerName.String
		}
		if row.OwnerType.Valid {
			if pt, err := hive_metastore.PrincipalTypeFromString(row.OwnerType.String); err == nil {
				db.OwnerType = &pt
			}
		}

		return db, nil
	})
}

func (s *Store) GetAllDatabases(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return withReadTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) ([]string, error) {
		var names []string
		err := tx.NewSelect().Model((*sqlDatabase)(nil)).Column("name").
			OrderExpr("name ASC").Scan(ctx, &names)

		return names, err
	})
}

// GetDatabases returns the names of the databases matching a Hive name
// pattern.
func (s *Store) GetDatabases(ctx context.Context, pattern string) ([]string, error) {
	names, err := s.GetAllDatabases(ctx)
	if err != nil {
		return nil, err
	}

	return filterNames(names, pattern)
}

// AlterDatabase replaces the description, location, owner and parameters
// of an existing database. The name can not be changed.
func (s *Store) AlterDatabase(ctx context.Context, name string, database *hive_metastore.Database) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if database == nil {
		return fmt.Errorf("%w: nil database", ErrInvalidArgument)
	}

	name = normalizeName(name)

	return withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var row sqlDatabase
		if err := tx.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return noSuchObject("database %s does not exist", name)
			}

			return err
		}

		row.Description = database.Description
		if database.LocationUri != "" {
			row.LocationURI = database.LocationUri
		}
		if database.OwnerName != nil {
			row.OwnerName = sql.NullString{String: *database.OwnerName, Valid: true}
		}
		if database.OwnerType != nil {
			row.OwnerType = sql.NullString{String: database.OwnerType.String(), Valid: true}
		}

		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("failed to alter database %s: %w", name, err)
		}

		if _, err := tx.NewDelete().Model((*sqlDatabaseParam)(nil)).
			Where("db_name = ?", name).Exec(ctx); err != nil {
			return err
		}

		return insertParams(ctx, tx, name, database.Parameters)
	})
}

// DropDatabase removes a database. A database holding tables is only
// dropped with cascade, which drops its tables too. With deleteData the
// local directories of the database and its tables are removed.
func (s *Store) DropDatabase(ctx context.Context, name string, deleteData, cascade bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	name = normalizeName(name)
	if name == DefaultDatabaseName {
		return metaError("Can not drop default database")
	}

	var locations []string
	err := withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var row sqlDatabase
		if err := tx.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return noSuchObject("database %s does not exist", name)
			}

			return err
		}

		var tables []sqlTable
		if err := tx.NewSelect().Model(&tables).Column("table_name", "location").
			Where("db_name = ?", name).Scan(ctx); err != nil {
			return err
		}

		if len(tables) > 0 && !cascade {
			return invalidOperation("Database %s is not empty. One or more tables exist.", name)
		}

		for _, t := range tables {
			locations = append(locations, t.Location)
		}
		locations = append(locations, row.LocationURI)

		if _, err := tx.NewDelete().Model((*sqlTable)(nil)).
			Where("db_name = ?", name).Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*sqlDatabaseParam)(nil)).
			Where("db_name = ?", name).Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().Model((*sqlDatabase)(nil)).Where("name = ?", name).Exec(ctx)

		return err
	})
	if err != nil {
		return err
	}

	if deleteData {
		return removeLocations(locations)
	}

	return nil
}

func removeLocations(locations []string) error {
	for _, loc := range slices.Compact(slices.Sorted(slices.Values(locations))) {
		p, ok := localPath(loc)
		if !ok {
			continue
		}

		if err := os.RemoveAll(p); err != nil {
			return metaError("failed to delete %s: %s", p, err)
		}
	}

	return nil
}

// GetMetaConf returns the value of a metastore configuration key.
func (s *Store) GetMetaConf(_ context.Context, key string) (string, error) {
	s.confMx.RLock()
	defer s.confMx.RUnlock()

	v, ok := s.conf[strings.ToLower(key)]
	if !ok {
		return "", metaError("Invalid configuration key %s", key)
	}

	return v, nil
}

// SetMetaConf sets a metastore configuration key for this store.
func (s *Store) SetMetaConf(_ context.Context, key, value string) error {
	if key == "" {
		return metaError("Invalid configuration key %q", key)
	}

	s.confMx.Lock()
	defer s.confMx.Unlock()
	s.conf[strings.ToLower(key)] = value

	return nil
}
