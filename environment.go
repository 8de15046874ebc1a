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
	"os"
	"sync"
)

// sqliteTempDirEnv is the only process setting the embedded engine reads:
// SQLite places its temporary files in this directory.
const sqliteTempDirEnv = "SQLITE_TMPDIR"

// engineEnvironment mirrors the engine home into the process environment
// and restores the previous value afterwards. The environment is process
// wide, so fixtures using it must not run in parallel.
type engineEnvironment struct {
	mu       sync.Mutex
	applied  bool
	previous string
	had      bool
}

func (e *engineEnvironment) apply(engineHome string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.applied || engineHome == "" {
		return nil
	}

	e.previous, e.had = os.LookupEnv(sqliteTempDirEnv)
	if err := os.Setenv(sqliteTempDirEnv, engineHome); err != nil {
		return err
	}
	e.applied = true

	return nil
}

func (e *engineEnvironment) restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.applied {
		return nil
	}
	e.applied = false

	if e.had {
		return os.Setenv(sqliteTempDirEnv, e.previous)
	}

	return os.Unsetenv(sqliteTempDirEnv)
}
