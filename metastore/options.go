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
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	// ConnectionURLKey is the data source name handed to sql.Open.
	ConnectionURLKey = "metastore.connection.url"
	// ConnectionDriverKey is the database/sql driver name.
	ConnectionDriverKey = "metastore.connection.driver"
	// ConnectionUserKey and ConnectionPasswordKey are the technical
	// credentials of the backing database.
	ConnectionUserKey     = "metastore.connection.user"
	ConnectionPasswordKey = "metastore.pwd"
	// DialectKey selects the SQL dialect, one of the SupportedDialect values.
	DialectKey = "metastore.sql.dialect"
	// SQLDebugKey enables query logging: 1 logs failed queries, 2 logs all.
	SQLDebugKey = "metastore.sql.debug"

	WarehouseKey           = "metastore.warehouse.dir"
	URIsKey                = "metastore.uris"
	ThriftPortKey          = "metastore.thrift.port"
	SchemaAutoCreateKey    = "metastore.schema.autocreateall"
	SchemaVerificationKey  = "metastore.schema.verification"
	InitDefaultDatabaseKey = "metastore.init.default.database"

	// EngineLogFileKey is the file receiving the SQL query log.
	EngineLogFileKey = "engine.log.file"

	// SQLDebugEnv overrides SQLDebugKey when set.
	SQLDebugEnv = "BEEJU_SQL_DEBUG"

	DefaultDatabaseName        = "default"
	DefaultDatabaseDescription = "Default Hive database"
	DefaultThriftPort          = 9083
)

// Options configures the embedded metastore store.
type Options struct {
	ConnectionURL       string           `mapstructure:"metastore.connection.url"`
	Driver              string           `mapstructure:"metastore.connection.driver"`
	User                string           `mapstructure:"metastore.connection.user"`
	Password            string           `mapstructure:"metastore.pwd"`
	Dialect             SupportedDialect `mapstructure:"metastore.sql.dialect"`
	SQLDebug            int              `mapstructure:"metastore.sql.debug"`
	Warehouse           string           `mapstructure:"metastore.warehouse.dir"`
	LogFile             string           `mapstructure:"engine.log.file"`
	AutoCreateSchema    bool             `mapstructure:"metastore.schema.autocreateall"`
	InitDefaultDatabase bool             `mapstructure:"metastore.init.default.database"`

	// Conf holds every property applied to the options. It seeds the
	// values served by GetMetaConf.
	Conf map[string]string `mapstructure:"-"`
}

func NewOptions() *Options {
	return &Options{
		Driver:              sqliteshim.ShimName,
		Dialect:             SQLite,
		AutoCreateSchema:    true,
		InitDefaultDatabase: true,
	}
}

// ApplyProperties overlays the recognised keys of props onto o. String
// values are converted to the field types; unknown keys are ignored.
func (o *Options) ApplyProperties(props map[string]string) error {
	if err := mapstructure.WeakDecode(props, o); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	if o.Conf == nil {
		o.Conf = make(map[string]string, len(props))
	}
	for k, v := range props {
		o.Conf[strings.ToLower(k)] = v
	}

	return nil
}

func (o *Options) validate() error {
	if o.ConnectionURL == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, ConnectionURLKey)
	}

	if o.Driver == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, ConnectionDriverKey)
	}

	return nil
}
