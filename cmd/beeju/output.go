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
	"encoding/json"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

// fixtureInfo is what the command reports about a running fixture.
type fixtureInfo struct {
	Service       string `json:"service"`
	Database      string `json:"database"`
	ConnectionURL string `json:"connection-url"`
	Driver        string `json:"driver"`
	URI           string `json:"uri,omitempty"`
	Port          int    `json:"port,omitempty"`
	TempDir       string `json:"temp-dir"`
}

type Output interface {
	Fixture(fixtureInfo)
	Text(string)
	Error(error)
}

type textOutput struct{}

func (textOutput) Fixture(info fixtureInfo) {
	data := pterm.TableData{
		{"Service", info.Service},
		{"Database", info.Database},
		{"Connection URL", info.ConnectionURL},
		{"Driver", info.Driver},
	}
	if info.URI != "" {
		data = append(data, []string{"URI", info.URI})
	}
	if info.Port != 0 {
		data = append(data, []string{"Port", strconv.Itoa(info.Port)})
	}
	data = append(data, []string{"Temp dir", info.TempDir})

	pterm.DefaultTable.
		WithBoxed(true).
		WithData(data).Render()
}

func (textOutput) Text(val string) {
	pterm.Println(val)
}

func (textOutput) Error(err error) {
	pterm.Error.Println(err)
}

type jsonOutput struct{}

func (jsonOutput) Fixture(info fixtureInfo) {
	if err := json.NewEncoder(os.Stdout).Encode(info); err != nil {
		log.Error(err)
	}
}

func (jsonOutput) Text(val string) {
	type dataType struct {
		Data string `json:"data"`
	}

	json.NewEncoder(os.Stdout).Encode(dataType{Data: val})
}

func (jsonOutput) Error(err error) {
	type errorType struct {
		Error string `json:"error"`
	}

	json.NewEncoder(os.Stderr).Encode(errorType{Error: err.Error()})
}
