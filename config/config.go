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

// Package config reads the .beeju.yaml file of the beeju command. The
// file holds named profiles, each one describing a fixture to serve.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	cfgFile        = ".beeju.yaml"
	defaultProfile = "default"
)

// Services a profile may serve.
const (
	ServiceMetastore = "metastore"
	ServiceThrift    = "thrift"
	ServiceCatalog   = "catalog"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

type Config struct {
	DefaultProfile string                   `yaml:"default-profile"`
	Profiles       map[string]ProfileConfig `yaml:"profile"`
}

// ProfileConfig is one named fixture setup.
type ProfileConfig struct {
	Service  string `yaml:"service"`
	Database string `yaml:"database"`
	Port     int    `yaml:"port"`
	TempDir  string `yaml:"temp-dir"`
	Output   string `yaml:"output"`
	LogLevel string `yaml:"log-level"`

	PreConfiguration  map[string]string `yaml:"pre-configuration"`
	PostConfiguration map[string]string `yaml:"post-configuration"`
}

// Validate checks the fields the command can not check on its own. Empty
// fields are valid and leave the command defaults in place.
func (p ProfileConfig) Validate() error {
	if p.Service != "" && !slices.Contains([]string{ServiceMetastore, ServiceThrift, ServiceCatalog}, p.Service) {
		return fmt.Errorf("%w: unknown service %q", ErrInvalidProfile, p.Service)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidProfile, p.Port)
	}
	if p.Output != "" && p.Output != "text" && p.Output != "json" {
		return fmt.Errorf("%w: unknown output %q", ErrInvalidProfile, p.Output)
	}

	return nil
}

// Profile returns the validated profile called name.
func (c Config) Profile(name string) (*ProfileConfig, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}

	return &p, nil
}

// LoadConfig reads configPath. An empty configPath reads ~/.beeju.yaml,
// which may be missing: LoadConfig then returns no content and no error.
func LoadConfig(configPath string) ([]byte, error) {
	if configPath != "" {
		return os.ReadFile(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}

	file, err := os.ReadFile(filepath.Join(homeDir, cfgFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	return file, err
}

// ParseConfig decodes file and returns its validated profile.
func ParseConfig(file []byte, profile string) (*ProfileConfig, error) {
	cfg, err := parse(file)
	if err != nil {
		return nil, err
	}

	return cfg.Profile(profile)
}

func parse(file []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", cfgFile, err)
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = defaultProfile
	}

	return cfg, nil
}

// fromConfigFiles reads the file under BEEJU_HOME, or the one in the home
// directory. An unreadable or malformed file yields an empty configuration.
func fromConfigFiles() Config {
	var path string
	if dir := os.Getenv("BEEJU_HOME"); dir != "" {
		path = filepath.Join(dir, cfgFile)
	}

	file, err := LoadConfig(path)
	if err != nil {
		file = nil
	}

	cfg, err := parse(file)
	if err != nil {
		cfg, _ = parse(nil)
	}

	return cfg
}

var EnvConfig = fromConfigFiles()
