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
	"os"
	"time"

	"github.com/beltran/gohive/hive_metastore"
	"github.com/uptrace/bun"
)

const (
	TableTypeManagedTable  = "MANAGED_TABLE"
	TableTypeExternalTable = "EXTERNAL_TABLE"
	TableTypeVirtualView   = "VIRTUAL_VIEW"
)

func (s *Store) encodeTable(ctx context.Context, tbl *hive_metastore.Table) ([]byte, error) {
	return s.serializer.Write(ctx, tbl)
}

func (s *Store) decodeTable(ctx context.Context, payload []byte) (*hive_metastore.Table, error) {
	tbl := hive_metastore.NewTable()
	if err := s.deserializer.Read(ctx, tbl, payload); err != nil {
		return nil, fmt.Errorf("failed to decode table: %w", err)
	}

	return tbl, nil
}

// prepareTable copies tbl with normalized names and a storage location,
// defaulting to a directory named after the table inside its database.
func (s *Store) prepareTable(ctx context.Context, tbl *hive_metastore.Table, dbLocation string) (*sqlTable, error) {
	payload, err := s.encodeTable(ctx, tbl)
	if err != nil {
		return nil, err
	}

	cp, err := s.decodeTable(ctx, payload)
	if err != nil {
		return nil, err
	}

	cp.DbName = normalizeName(cp.DbName)
	cp.TableName = normalizeName(cp.TableName)
	if cp.TableType == "" {
		cp.TableType = TableTypeManagedTable
	}
	if cp.CreateTime == 0 {
		cp.CreateTime = int32(time.Now().Unix())
	}
	if cp.Parameters == nil {
		cp.Parameters = map[string]string{}
	}
	if cp.Sd == nil {
		cp.Sd = hive_metastore.NewStorageDescriptor()
	}
	if cp.Sd.Location == "" && cp.TableType != TableTypeVirtualView {
		cp.Sd.Location = childLocation(dbLocation, cp.TableName)
	}

	if payload, err = s.encodeTable(ctx, cp); err != nil {
		return nil, err
	}

	return &sqlTable{
		DbName:    cp.DbName,
		TableName: cp.TableName,
		TableType: cp.TableType,
		Location:  cp.Sd.Location,
		Payload:   payload,
	}, nil
}

func lookupDatabaseLocation(ctx context.Context, tx bun.Tx, name string) (string, bool, error) {
	var location string
	err := tx.NewSelect().Model((*sqlDatabase)(nil)).Column("location_uri").
		Where("name = ?", name).Scan(ctx, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	return location, err == nil, err
}

func tableExists(ctx context.Context, tx bun.Tx, dbName, tableName string) (bool, error) {
	return tx.NewSelect().Model((*sqlTable)(nil)).
		Where("db_name = ?", dbName).Where("table_name = ?", tableName).
		Limit(1).Exists(ctx)
}

func (s *Store) CreateTable(ctx context.Context, tbl *hive_metastore.Table) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if tbl == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidArgument)
	}

	if !ValidName(tbl.TableName) {
		return invalidObject("%s is not a valid object name", tbl.TableName)
	}

	dbName := normalizeName(tbl.DbName)

	var row *sqlTable
	err := withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		dbLocation, ok, err := lookupDatabaseLocation(ctx, tx, dbName)
		if err != nil {
			return err
		}
		if !ok {
			return noSuchObject("The database %s does not exist", dbName)
		}

		if row, err = s.prepareTable(ctx, tbl, dbLocation); err != nil {
			return err
		}

		exists, err := tableExists(ctx, tx, row.DbName, row.TableName)
		if err != nil {
			return err
		}
		if exists {
			return alreadyExists("Table %s.%s already exists", row.DbName, row.TableName)
		}

		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s.%s: %w", row.DbName, row.TableName, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if p, ok := localPath(row.Location); ok && row.TableType != TableTypeVirtualView {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return metaError("failed to create table directory %s: %s", p, err)
		}
	}

	return nil
}

func (s *Store) GetTable(ctx context.Context, dbName, tableName string) (*hive_metastore.Table, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	dbName, tableName = normalizeName(dbName), normalizeName(tableName)

	return withReadTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) (*hive_metastore.Table, error) {
		var row sqlTable
		err := tx.NewSelect().Model(&row).
			Where("db_name = ?", dbName).Where("table_name = ?", tableName).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, noSuchObject("%s.%s table not found", dbName, tableName)
			}

			return nil, err
		}

		return s.decodeTable(ctx, row.Payload)
	})
}

// GetAllTables lists the tables of a database. A missing database has no
// tables.
func (s *Store) GetAllTables(ctx context.Context, dbName string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	dbName = normalizeName(dbName)

	return withReadTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) ([]string, error) {
		names := []string{}
		err := tx.NewSelect().Model((*sqlTable)(nil)).Column("table_name").
			Where("db_name = ?", dbName).OrderExpr("table_name ASC").Scan(ctx, &names)

		return names, err
	})
}

// GetTables lists the tables of a database matching a Hive name pattern.
func (s *Store) GetTables(ctx context.Context, dbName, pattern string) ([]string, error) {
	names, err := s.GetAllTables(ctx, dbName)
	if err != nil {
		return nil, err
	}

	return filterNames(names, pattern)
}

// AlterTable replaces the definition of a table. When newTbl carries a
// different database or table name the table is renamed.
func (s *Store) AlterTable(ctx context.Context, dbName, tableName string, newTbl *hive_metastore.Table) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if newTbl == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidArgument)
	}

	if !ValidName(newTbl.TableName) {
		return invalidOperation("%s is not a valid object name", newTbl.TableName)
	}

	dbName, tableName = normalizeName(dbName), normalizeName(tableName)

	return withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var old sqlTable
		err := tx.NewSelect().Model(&old).
			Where("db_name = ?", dbName).Where("table_name = ?", tableName).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return invalidOperation("table %s.%s doesn't exist", dbName, tableName)
			}

			return err
		}

		target := newTbl
		if target.DbName == "" {
			target = hive_metastore.NewTable()
			*target = *newTbl
			target.DbName = dbName
		}

		dbLocation, ok, err := lookupDatabaseLocation(ctx, tx, normalizeName(target.DbName))
		if err != nil {
			return err
		}
		if !ok {
			return invalidOperation("Unable to change partition or table. Database %s does not exist", target.DbName)
		}

		row, err := s.prepareTable(ctx, target, dbLocation)
		if err != nil {
			return err
		}

		if row.DbName != old.DbName || row.TableName != old.TableName {
			exists, err := tableExists(ctx, tx, row.DbName, row.TableName)
			if err != nil {
				return err
			}
			if exists {
				return invalidOperation("new table %s.%s already exists", row.DbName, row.TableName)
			}
		}

		if _, err := tx.NewDelete().Model(&old).WherePK().Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewInsert().Model(row).Exec(ctx)

		return err
	})
}

// DropTable removes a table. With deleteData its local directory is
// removed as well.
func (s *Store) DropTable(ctx context.Context, dbName, tableName string, deleteData bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	dbName, tableName = normalizeName(dbName), normalizeName(tableName)

	var location string
	err := withWriteTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var row sqlTable
		err := tx.NewSelect().Model(&row).Column("db_name", "table_name", "location").
			Where("db_name = ?", dbName).Where("table_name = ?", tableName).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return noSuchObject("%s.%s table not found", dbName, tableName)
			}

			return err
		}
		location = row.Location

		_, err = tx.NewDelete().Model(&row).WherePK().Exec(ctx)

		return err
	})
	if err != nil {
		return err
	}

	if deleteData {
		return removeLocations([]string{location})
	}

	return nil
}
