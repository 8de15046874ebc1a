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
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hotels/beeju/metastore"
	"github.com/spf13/viper"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	ScratchDirKey      = "exec.scratchdir"
	LocalScratchDirKey = "exec.local.scratchdir"
	EngineHomeKey      = "engine.home"
	CatalogPortKey     = "server.catalog.port"

	StatsAutoGatherKey    = "metastore.stats.autogather"
	ConcurrencySupportKey = "metastore.concurrency.support"
	ClientCacheDisabled   = "metastore.client.cache.disabled"
	ForceReloadConfKey    = "metastore.handler.force.reload.conf"
	WebUIPortKey          = "server.webui.port"

	// DefaultUser and DefaultPassword are the technical credentials of the
	// embedded database.
	DefaultUser     = "db_user"
	DefaultPassword = "db_password"
)

// keyDelimiter keeps dotted property names flat inside viper.
const keyDelimiter = "::"

func softDefaults() map[string]string {
	return map[string]string{
		metastore.SchemaAutoCreateKey:    "true",
		metastore.SchemaVerificationKey:  "false",
		StatsAutoGatherKey:               "false",
		ConcurrencySupportKey:            "false",
		ClientCacheDisabled:              "true",
		ForceReloadConfKey:               "true",
		WebUIPortKey:                     "0",
		metastore.InitDefaultDatabaseKey: "true",
	}
}

func fixedSettings() map[string]string {
	return map[string]string{
		metastore.ConnectionURLKey:      "file:beeju_" + uuid.NewString() + "?mode=memory&cache=shared",
		metastore.ConnectionDriverKey:   sqliteshim.ShimName,
		metastore.DialectKey:            string(metastore.SQLite),
		metastore.ConnectionUserKey:     DefaultUser,
		metastore.ConnectionPasswordKey: DefaultPassword,
	}
}

// Configuration is the layered settings of one fixture. From lowest to
// highest precedence the layers are: soft defaults and workspace paths,
// pre-configuration, fixed fixture settings, post-configuration.
//
// Keys are case-insensitive.
type Configuration struct {
	mu   sync.RWMutex
	v    *viper.Viper
	post map[string]string
}

func newConfiguration(databaseName string, pre, post map[string]string) (*Configuration, error) {
	if databaseName == "" {
		return nil, fmt.Errorf("%w: database name is required", ErrInvalidArgument)
	}

	return buildConfiguration(softDefaults(), pre, fixedSettings(), post)
}

func buildConfiguration(defaults, pre, fixed, post map[string]string) (*Configuration, error) {
	c := &Configuration{
		v:    viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter)),
		post: lowerKeys(post),
	}

	for k, v := range defaults {
		c.v.SetDefault(k, v)
	}

	if len(pre) > 0 {
		if err := c.v.MergeConfigMap(toAny(pre)); err != nil {
			return nil, fmt.Errorf("%w: pre-configuration: %s", ErrInvalidArgument, err)
		}
	}

	for k, v := range fixed {
		c.v.Set(k, v)
	}
	for k, v := range c.post {
		c.v.Set(k, v)
	}

	return c, nil
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}

	return out
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// applyDefaults adds soft defaults, such as workspace paths, that every
// other layer may still override.
func (c *Configuration) applyDefaults(defaults map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range defaults {
		c.v.SetDefault(k, v)
	}
}

// Set writes a runtime setting, such as an allocated port. Keys pinned by
// the post-configuration keep their post-configuration value.
func (c *Configuration) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, pinned := c.post[strings.ToLower(key)]; pinned {
		return
	}
	c.v.Set(key, value)
}

// Get returns the value of key, or "" when it is unset.
func (c *Configuration) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.v.GetString(key)
}

func (c *Configuration) GetInt(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.v.GetInt(key)
}

func (c *Configuration) GetBool(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.v.GetBool(key)
}

func (c *Configuration) IsSet(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.v.IsSet(key)
}

// Settings returns a copy of every resolved setting.
func (c *Configuration) Settings() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.v.AllKeys()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = c.v.GetString(k)
	}

	return out
}

// Copy returns an independent configuration with the same resolved
// settings and the same post-configuration pins.
func (c *Configuration) Copy() *Configuration {
	settings := c.Settings()

	c.mu.RLock()
	post := maps.Clone(c.post)
	c.mu.RUnlock()

	// only a pre-configuration merge can fail
	cp, _ := buildConfiguration(nil, nil, settings, post)

	return cp
}

// settings is the typed view of the keys the fixture itself reads.
type settings struct {
	Warehouse   string `mapstructure:"metastore.warehouse.dir"`
	ThriftPort  int    `mapstructure:"metastore.thrift.port"`
	URIs        string `mapstructure:"metastore.uris"`
	CatalogPort int    `mapstructure:"server.catalog.port"`
	EngineHome  string `mapstructure:"engine.home"`
}

func (c *Configuration) typed() (settings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s settings
	if err := c.v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	return s, nil
}

// metastoreOptions decodes the settings consumed by the metastore store.
func (c *Configuration) metastoreOptions() (*metastore.Options, error) {
	opts := metastore.NewOptions()
	if err := opts.ApplyProperties(c.Settings()); err != nil {
		return nil, err
	}

	return opts, nil
}

func (c *Configuration) setInt(key string, value int) {
	c.Set(key, strconv.Itoa(value))
}
