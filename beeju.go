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

// Package beeju provides disposable, embedded Hive metastores for tests.
//
// A fixture owns a temporary workspace, an in-memory catalog database and
// optionally a network service exposing the metastore. The service variants
// are:
//
//   - NewHiveMetaStore: an embedded metastore client, no network service.
//   - NewThriftHiveMetaStore: the metastore served over the Hive Metastore
//     Thrift protocol on a local port.
//   - NewCatalogServer: the metastore served over HTTP with the Iceberg REST
//     catalog protocol.
//
// The usual way to use a fixture is through Register:
//
//	func TestSomething(t *testing.T) {
//		hms := beeju.NewHiveMetaStore(beeju.DefaultDatabaseName)
//		hms.Register(t)
//
//		db, err := hms.Client().GetDatabase(ctx, hms.DatabaseName())
//		...
//	}
package beeju

import (
	"runtime/debug"
	"strings"
)

var version string

func init() {
	version = "(unknown version)"
	if info, ok := debug.ReadBuildInfo(); ok {
		if strings.HasPrefix(info.Main.Path, "github.com/hotels/beeju") {
			version = info.Main.Version
		}
		for _, dep := range info.Deps {
			if strings.HasPrefix(dep.Path, "github.com/hotels/beeju") {
				version = dep.Version

				break
			}
		}
	}
}

func Version() string { return version }
