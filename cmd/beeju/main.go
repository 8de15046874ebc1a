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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/hotels/beeju"
	"github.com/hotels/beeju/config"
	log "github.com/sirupsen/logrus"
)

const usage = `beeju.

Usage:
  beeju serve [options] [metastore | thrift | catalog]
  beeju -h | --help | --version

Commands:
  serve       Run a fixture until interrupted.

Services (default: the service of the profile, else metastore):
  metastore   Embedded metastore, reachable through its database URL.
  thrift      Metastore served over the Hive Metastore Thrift protocol.
  catalog     Metastore served over the Iceberg REST catalog protocol.

Options:
  -h --help          	show this help messages and exit
  --database TEXT    	name of the database to create [default: test_database]
  --port INT         	port of the thrift metastore, 0 picks a free port
  --temp-dir TEXT    	parent directory of the fixture workspace
  --output TYPE      	output type (json/text)
  --profile TEXT     	profile of the configuration file [default: default]
  --config TEXT      	specify the path to the configuration file
  --pre TEXT         	pre-configuration in key=value format
                     	Ex:"metastore.stats.autogather=true,my.key=value"
  --post TEXT        	post-configuration in key=value format
  --log-level LEVEL  	log level (debug/info/warn/error)`

type Config struct {
	Serve     bool `docopt:"serve"`
	Metastore bool `docopt:"metastore"`
	Thrift    bool `docopt:"thrift"`
	Catalog   bool `docopt:"catalog"`

	Database string `docopt:"--database"`
	Port     string `docopt:"--port"`
	TempDir  string `docopt:"--temp-dir"`
	Output   string `docopt:"--output"`
	Profile  string `docopt:"--profile"`
	Config   string `docopt:"--config"`
	Pre      string `docopt:"--pre"`
	Post     string `docopt:"--post"`
	LogLevel string `docopt:"--log-level"`
}

func main() {
	args, err := docopt.ParseArgs(usage, os.Args[1:], beeju.Version())
	if err != nil {
		log.Fatal(err)
	}

	cfg := Config{}
	if err := args.Bind(&cfg); err != nil {
		log.Fatal(err)
	}

	fileCfg, err := loadProfile(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if fileCfg != nil {
		mergeConf(fileCfg, &cfg)
	}

	if cfg.Output == "" {
		cfg.Output = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "text":
		output = textOutput{}
	case "json":
		output = jsonOutput{}
	default:
		log.Fatal("unimplemented output type")
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		output.Error(err)
		os.Exit(1)
	}
	log.SetLevel(level)

	opts, err := fixtureOptions(cfg, fileCfg)
	if err != nil {
		output.Error(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, output, cfg, opts); err != nil {
		output.Error(err)
		os.Exit(1)
	}
}

// loadProfile returns the selected profile of the configuration file. A
// missing profile is only an error when the file was named explicitly.
func loadProfile(cfg Config) (*config.ProfileConfig, error) {
	if cfg.Config == "" {
		p, err := config.EnvConfig.Profile(cfg.Profile)
		if errors.Is(err, config.ErrProfileNotFound) {
			return nil, nil
		}

		return p, err
	}

	file, err := config.LoadConfig(cfg.Config)
	if err != nil {
		return nil, err
	}

	return config.ParseConfig(file, cfg.Profile)
}

func mergeConf(fileConf *config.ProfileConfig, resConfig *Config) {
	if !resConfig.Metastore && !resConfig.Thrift && !resConfig.Catalog {
		switch fileConf.Service {
		case config.ServiceMetastore:
			resConfig.Metastore = true
		case config.ServiceThrift:
			resConfig.Thrift = true
		case config.ServiceCatalog:
			resConfig.Catalog = true
		}
	}
	if len(resConfig.Port) == 0 && fileConf.Port != 0 {
		resConfig.Port = strconv.Itoa(fileConf.Port)
	}
	if len(resConfig.TempDir) == 0 {
		resConfig.TempDir = fileConf.TempDir
	}
	if len(resConfig.Output) == 0 {
		resConfig.Output = fileConf.Output
	}
	if len(resConfig.LogLevel) == 0 {
		resConfig.LogLevel = fileConf.LogLevel
	}
	if fileConf.Database != "" && resConfig.Database == beeju.DefaultDatabaseName {
		resConfig.Database = fileConf.Database
	}
}

// fixtureOptions turns flags and the profile into fixture options. Flag
// values win over profile values for the same configuration key.
func fixtureOptions(cfg Config, fileCfg *config.ProfileConfig) ([]beeju.Option, error) {
	var opts []beeju.Option

	if fileCfg != nil {
		opts = append(opts,
			beeju.WithPreConfiguration(fileCfg.PreConfiguration),
			beeju.WithPostConfiguration(fileCfg.PostConfiguration))
	}

	pre, err := parseProperties(cfg.Pre)
	if err != nil {
		return nil, fmt.Errorf("failed to parse --pre: %w", err)
	}
	post, err := parseProperties(cfg.Post)
	if err != nil {
		return nil, fmt.Errorf("failed to parse --post: %w", err)
	}
	opts = append(opts, beeju.WithPreConfiguration(pre), beeju.WithPostConfiguration(post))

	if cfg.Port != "" {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid port %q", beeju.ErrInvalidArgument, cfg.Port)
		}
		opts = append(opts, beeju.WithThriftPort(port))
	}

	if cfg.TempDir != "" {
		opts = append(opts, beeju.WithTempDir(cfg.TempDir))
	}

	return opts, nil
}

// runningFixture is the part of a fixture the command needs.
type runningFixture interface {
	Before(ctx context.Context) error
	After()
	DatabaseName() string
	ConnectionURL() string
	DriverName() string
	TempDir() string
}

func newFixture(cfg Config, opts []beeju.Option) (runningFixture, func(*fixtureInfo), error) {
	switch {
	case cfg.Thrift:
		f, err := beeju.NewThriftHiveMetaStore(cfg.Database, opts...)
		if err != nil {
			return nil, nil, err
		}

		return f, func(info *fixtureInfo) {
			info.Service = "thrift"
			info.URI = f.ThriftConnectionURI()
			info.Port = f.ThriftPort()
		}, nil
	case cfg.Catalog:
		f, err := beeju.NewCatalogServer(cfg.Database, opts...)
		if err != nil {
			return nil, nil, err
		}

		return f, func(info *fixtureInfo) {
			info.Service = "catalog"
			info.URI = f.CatalogURI()
			info.Port = f.Port()
		}, nil
	default:
		f, err := beeju.NewHiveMetaStore(cfg.Database, opts...)
		if err != nil {
			return nil, nil, err
		}

		return f, func(info *fixtureInfo) { info.Service = "metastore" }, nil
	}
}

func serve(ctx context.Context, output Output, cfg Config, opts []beeju.Option) error {
	f, describe, err := newFixture(cfg, opts)
	if err != nil {
		return err
	}
	defer f.After()

	if err := f.Before(ctx); err != nil {
		return err
	}

	info := fixtureInfo{
		Database:      f.DatabaseName(),
		ConnectionURL: f.ConnectionURL(),
		Driver:        f.DriverName(),
		TempDir:       f.TempDir(),
	}
	describe(&info)
	output.Fixture(info)

	<-ctx.Done()
	output.Text("Stopping " + info.Service)

	return nil
}
