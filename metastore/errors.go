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
	"errors"
	"fmt"

	"github.com/beltran/gohive/hive_metastore"
)

var (
	// ErrInvalidArgument is returned when a caller passes a nil or
	// otherwise unusable argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClientClosed is returned by a Client after Close.
	ErrClientClosed = errors.New("metastore client is closed")
	// ErrStoreClosed is returned by a Store after Close.
	ErrStoreClosed = errors.New("metastore store is closed")
	// ErrUnsupportedDialect is returned by Open for an unknown SQL dialect.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
)

// The metastore reports failures with the exception types of the Hive
// Metastore Thrift definitions so that the embedded and remote clients
// return the same error values. They are returned unwrapped because the
// Thrift processor serializes them by concrete type.

func alreadyExists(format string, args ...any) error {
	return &hive_metastore.AlreadyExistsException{Message: fmt.Sprintf(format, args...)}
}

func noSuchObject(format string, args ...any) error {
	return &hive_metastore.NoSuchObjectException{Message: fmt.Sprintf(format, args...)}
}

func invalidObject(format string, args ...any) error {
	return &hive_metastore.InvalidObjectException{Message: fmt.Sprintf(format, args...)}
}

func invalidOperation(format string, args ...any) error {
	return &hive_metastore.InvalidOperationException{Message: fmt.Sprintf(format, args...)}
}

func metaError(format string, args ...any) error {
	return &hive_metastore.MetaException{Message: fmt.Sprintf(format, args...)}
}

func noSuchLock(id int64) error {
	return &hive_metastore.NoSuchLockException{Message: fmt.Sprintf("No such lock lockid:%d", id)}
}

// IsAlreadyExists reports whether err is an AlreadyExistsException.
func IsAlreadyExists(err error) bool {
	var target *hive_metastore.AlreadyExistsException

	return errors.As(err, &target)
}

// IsNoSuchObject reports whether err is a NoSuchObjectException.
func IsNoSuchObject(err error) bool {
	var target *hive_metastore.NoSuchObjectException

	return errors.As(err, &target)
}

// IsInvalidObject reports whether err is an InvalidObjectException.
func IsInvalidObject(err error) bool {
	var target *hive_metastore.InvalidObjectException

	return errors.As(err, &target)
}

// IsInvalidOperation reports whether err is an InvalidOperationException.
func IsInvalidOperation(err error) bool {
	var target *hive_metastore.InvalidOperationException

	return errors.As(err, &target)
}

// IsMetaError reports whether err is a MetaException.
func IsMetaError(err error) bool {
	var target *hive_metastore.MetaException

	return errors.As(err, &target)
}
