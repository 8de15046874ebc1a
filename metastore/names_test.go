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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"test_database", true},
		{"DB1", true},
		{"_", true},
		{"", false},
		{"with space", false},
		{"dotted.name", false},
		{"dash-name", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidName(tt.name), tt.name)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		matches []string
		misses  []string
	}{
		{"", []string{"anything", "x"}, nil},
		{"*", []string{"anything"}, nil},
		{"sales*", []string{"sales", "sales_eu", "SALES_US"}, []string{"presales"}},
		{"a|b", []string{"a", "B"}, []string{"ab", "c"}},
		{"a.b", []string{"a.b"}, []string{"axb"}},
		{"*_tmp | raw*", []string{"x_tmp", "raw_events"}, []string{"tmp"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			re, err := compilePattern(tt.pattern)
			require.NoError(t, err)
			for _, m := range tt.matches {
				assert.True(t, re.MatchString(m), m)
			}
			for _, m := range tt.misses {
				assert.False(t, re.MatchString(m), m)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		location string
		path     string
		ok       bool
	}{
		{"/tmp/warehouse", "/tmp/warehouse", true},
		{"file:/tmp/warehouse/db", "/tmp/warehouse/db", true},
		{"file:///tmp/warehouse/", "/tmp/warehouse", true},
		{"s3://bucket/db", "", false},
		{"relative/dir", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		p, ok := localPath(tt.location)
		assert.Equal(t, tt.ok, ok, tt.location)
		assert.Equal(t, tt.path, p, tt.location)
	}
}

func TestChildLocation(t *testing.T) {
	assert.Equal(t, "file:/w/db.db", childLocation("file:/w/", "db.db"))
	assert.Equal(t, "/w/t", childLocation("/w", "t"))
	assert.Empty(t, childLocation("", "t"))
}
