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
	"maps"
	"time"

	log "github.com/sirupsen/logrus"
)

type fixtureOptions struct {
	pre        map[string]string
	post       map[string]string
	thriftPort int
	tempDir    string
	logger     *log.Entry

	stopTimeout time.Duration
}

// Option customises a fixture at construction.
type Option func(*fixtureOptions)

// WithPreConfiguration adds settings applied over the soft defaults. They
// can not replace the settings the fixture fixes, such as the connection
// URL of the embedded database.
func WithPreConfiguration(conf map[string]string) Option {
	return func(o *fixtureOptions) {
		if o.pre == nil {
			o.pre = map[string]string{}
		}
		maps.Copy(o.pre, conf)
	}
}

// WithPostConfiguration adds settings applied last. They override every
// other setting, including values the services write at start.
func WithPostConfiguration(conf map[string]string) Option {
	return func(o *fixtureOptions) {
		if o.post == nil {
			o.post = map[string]string{}
		}
		maps.Copy(o.post, conf)
	}
}

// WithThriftPort serves the Thrift metastore on port instead of a free
// one. It only affects NewThriftHiveMetaStore.
func WithThriftPort(port int) Option {
	return func(o *fixtureOptions) { o.thriftPort = port }
}

// WithTempDir creates the fixture workspace under dir.
func WithTempDir(dir string) Option {
	return func(o *fixtureOptions) { o.tempDir = dir }
}

// WithStopTimeout bounds how long After waits for the service to stop.
// Connections a caller left open are closed once it expires. Defaults to
// 30 seconds.
func WithStopTimeout(d time.Duration) Option {
	return func(o *fixtureOptions) { o.stopTimeout = d }
}

func WithLogger(logger *log.Entry) Option {
	return func(o *fixtureOptions) { o.logger = logger }
}

func applyOptions(opts []Option) fixtureOptions {
	var o fixtureOptions
	for _, apply := range opts {
		apply(&o)
	}

	if o.logger == nil {
		o.logger = log.NewEntry(log.StandardLogger())
	}
	if o.stopTimeout <= 0 {
		o.stopTimeout = defaultStopTimeout
	}

	return o
}
