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
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var validName = regexp.MustCompile(`^\w+$`)

// ValidName reports whether name is acceptable as a database or table
// name: one or more letters, digits or underscores.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// normalizeName folds identifiers to lower case the way the Hive
// metastore stores them.
func normalizeName(name string) string {
	return strings.ToLower(name)
}

// compilePattern turns a Hive name pattern into a regular expression.
// '*' matches any sequence of characters and '|' separates alternatives.
// Matching is case-insensitive. An empty pattern matches everything.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = "*"
	}

	alternatives := strings.Split(pattern, "|")
	for i, alt := range alternatives {
		quoted := regexp.QuoteMeta(strings.TrimSpace(alt))
		alternatives[i] = strings.ReplaceAll(quoted, `\*`, ".*")
	}

	return regexp.Compile("(?i)^(?:" + strings.Join(alternatives, "|") + ")$")
}

func filterNames(names []string, pattern string) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if re.MatchString(n) {
			out = append(out, n)
		}
	}

	return out, nil
}

// localPath returns the filesystem path of a location on the local
// filesystem: a file: URI or an absolute path.
func localPath(location string) (string, bool) {
	if location == "" {
		return "", false
	}

	if filepath.IsAbs(location) {
		return filepath.Clean(location), true
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme != "file" {
		return "", false
	}

	p := u.Path
	if p == "" {
		p = u.Opaque
	}

	if p == "" {
		return "", false
	}

	return filepath.Clean(p), true
}

func childLocation(parent, name string) string {
	if parent == "" {
		return ""
	}

	return strings.TrimSuffix(parent, "/") + "/" + name
}
