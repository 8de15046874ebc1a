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
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfo = fixtureInfo{
	Service:       "thrift",
	Database:      "test_database",
	ConnectionURL: "file:beeju_1?mode=memory&cache=shared",
	Driver:        "sqlite3",
	URI:           "thrift://localhost:9083",
	Port:          9083,
	TempDir:       "/tmp/beeju-1",
}

func Test_textOutput_Fixture(t *testing.T) {
	var buf bytes.Buffer
	pterm.SetDefaultOutput(&buf)
	pterm.DisableColor()
	defer pterm.SetDefaultOutput(os.Stdout)

	textOutput{}.Fixture(testInfo)

	out := buf.String()
	for _, want := range []string{
		"Service", "thrift",
		"Database", "test_database",
		"Connection URL", testInfo.ConnectionURL,
		"URI", "thrift://localhost:9083",
		"Port", "9083",
		"Temp dir", "/tmp/beeju-1",
	} {
		assert.Contains(t, out, want)
	}
}

func Test_textOutput_FixtureWithoutNetworkService(t *testing.T) {
	var buf bytes.Buffer
	pterm.SetDefaultOutput(&buf)
	pterm.DisableColor()
	defer pterm.SetDefaultOutput(os.Stdout)

	info := testInfo
	info.Service, info.URI, info.Port = "metastore", "", 0
	textOutput{}.Fixture(info)

	assert.NotContains(t, buf.String(), "Port")
	assert.NotContains(t, buf.String(), "URI")
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()

	fn()

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	return buf.String()
}

func Test_jsonOutput_Fixture(t *testing.T) {
	out := captureStdout(t, func() { jsonOutput{}.Fixture(testInfo) })

	assert.JSONEq(t, `{
		"service": "thrift",
		"database": "test_database",
		"connection-url": "file:beeju_1?mode=memory&cache=shared",
		"driver": "sqlite3",
		"uri": "thrift://localhost:9083",
		"port": 9083,
		"temp-dir": "/tmp/beeju-1"
	}`, out)
}

func Test_jsonOutput_Text(t *testing.T) {
	out := captureStdout(t, func() { jsonOutput{}.Text("Stopping thrift") })
	assert.JSONEq(t, `{"data":"Stopping thrift"}`, out)
}

func Test_jsonOutput_Error(t *testing.T) {
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() {
		os.Stderr = oldStderr
	}()

	jsonOutput{}.Error(errors.New("boom"))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	assert.JSONEq(t, `{"error":"boom"}`, strings.TrimSpace(buf.String()))
}
