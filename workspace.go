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
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/hotels/beeju/metastore"
	log "github.com/sirupsen/logrus"
)

const (
	warehouseDirName    = "warehouse"
	scratchDirName      = "scratch"
	localScratchDirName = "local-scratch"
	engineDirName       = "engine"
	engineLogFileName   = "metastore.log"
)

// Workspace is the temporary directory tree owned by one fixture.
type Workspace struct {
	root string

	once   sync.Once
	logger *log.Entry
}

// newWorkspace creates a uniquely named root under parent (the system
// temporary directory when parent is empty) and its children.
func newWorkspace(parent string, logger *log.Entry) (*Workspace, error) {
	root, err := os.MkdirTemp(parent, "beeju-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	w := &Workspace{root: root, logger: logger}
	for _, dir := range []string{w.Warehouse(), w.Scratch(), w.LocalScratch(), w.EngineHome()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			os.RemoveAll(root)

			return nil, fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}

	return w, nil
}

func (w *Workspace) Root() string         { return w.root }
func (w *Workspace) Warehouse() string    { return filepath.Join(w.root, warehouseDirName) }
func (w *Workspace) Scratch() string      { return filepath.Join(w.root, scratchDirName) }
func (w *Workspace) LocalScratch() string { return filepath.Join(w.root, localScratchDirName) }
func (w *Workspace) EngineHome() string   { return filepath.Join(w.root, engineDirName) }
func (w *Workspace) EngineLogFile() string {
	return filepath.Join(w.EngineHome(), engineLogFileName)
}

// DatabaseLocation is the location given to databases the fixture creates.
func (w *Workspace) DatabaseLocation(name string) string {
	return "file:" + filepath.ToSlash(filepath.Join(w.root, name))
}

// settings are the directory-derived configuration defaults.
func (w *Workspace) settings() map[string]string {
	return map[string]string{
		metastore.WarehouseKey:     w.Warehouse(),
		ScratchDirKey:              w.Scratch(),
		LocalScratchDirKey:         w.LocalScratch(),
		EngineHomeKey:              w.EngineHome(),
		metastore.EngineLogFileKey: w.EngineLogFile(),
	}
}

// Destroy removes the workspace recursively. Failures are logged. Only the
// first call has an effect.
func (w *Workspace) Destroy() {
	w.once.Do(func() {
		if err := removeAll(w.root); err != nil {
			w.logger.WithError(err).WithField("dir", w.root).Warn("failed to delete workspace")
		}
	})
}

// removeAll keeps going after a failure so that as much of the tree as
// possible is removed.
func removeAll(root string) error {
	if err := os.RemoveAll(root); err == nil {
		return nil
	}

	var result error
	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := os.Remove(root); err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, err)
	}

	return result
}
