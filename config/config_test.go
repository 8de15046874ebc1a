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

package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgs = []struct {
	file     []byte
	profile  string
	expected *ProfileConfig
	err      error
}{
	// config file does not exist
	{nil, "default", nil, ErrProfileNotFound},
	// config does not have the default profile
	{[]byte(`
profile:
  thrift:
    service: thrift
    database: test_db
`), "default", nil, ErrProfileNotFound},
	// default profile
	{
		[]byte(`
profile:
  default:
    service: metastore
    database: test_database
    output: json
`), "default",
		&ProfileConfig{
			Service:  "metastore",
			Database: "test_database",
			Output:   "json",
		}, nil,
	},
	// custom profile with configuration maps
	{
		[]byte(`
profile:
  thrift:
    service: thrift
    database: test_db
    port: 9083
    temp-dir: /tmp/beeju
    log-level: debug
    pre-configuration:
      metastore.stats.autogather: "true"
    post-configuration:
      metastore.pwd: secret
`), "thrift",
		&ProfileConfig{
			Service:           "thrift",
			Database:          "test_db",
			Port:              9083,
			TempDir:           "/tmp/beeju",
			LogLevel:          "debug",
			PreConfiguration:  map[string]string{"metastore.stats.autogather": "true"},
			PostConfiguration: map[string]string{"metastore.pwd": "secret"},
		}, nil,
	},
	// unknown service
	{[]byte(`
profile:
  default:
    service: hiveserver2
`), "default", nil, ErrInvalidProfile},
	// port out of range
	{[]byte(`
profile:
  default:
    port: 70000
`), "default", nil, ErrInvalidProfile},
	// unknown output
	{[]byte(`
profile:
  default:
    output: xml
`), "default", nil, ErrInvalidProfile},
}

func TestParseConfig(t *testing.T) {
	for _, tt := range testArgs {
		actual, err := ParseConfig(tt.file, tt.profile)

		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, tt.expected, actual)
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte("profile: [not, a, map"), "default")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestConfigProfile(t *testing.T) {
	cfg := Config{Profiles: map[string]ProfileConfig{
		"catalog": {Service: ServiceCatalog, Port: 8080},
		"broken":  {Service: "spark"},
	}}

	p, err := cfg.Profile("catalog")
	require.NoError(t, err)
	assert.Equal(t, ServiceCatalog, p.Service)

	_, err = cfg.Profile("broken")
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = cfg.Profile("missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), cfgFile)
	require.NoError(t, os.WriteFile(path, []byte("default-profile: thrift\n"), 0o644))

	file, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("default-profile: thrift\n"), file)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadConfigMissingHomeFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	file, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Nil(t, file)
}

func TestFromConfigFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BEEJU_HOME", home)

	assert.Equal(t, "default", fromConfigFiles().DefaultProfile)

	require.NoError(t, os.WriteFile(filepath.Join(home, cfgFile), []byte(`
default-profile: thrift
profile:
  thrift:
    service: thrift
`), 0o644))

	cfg := fromConfigFiles()
	assert.Equal(t, "thrift", cfg.DefaultProfile)
	assert.Equal(t, "thrift", cfg.Profiles["thrift"].Service)
}
