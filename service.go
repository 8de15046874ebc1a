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
	"context"

	"github.com/hotels/beeju/metastore"
)

// ConnectionInfo describes how tests reach a running service.
type ConnectionInfo struct {
	URL    string
	Driver string
	// Port is the network port of the service, 0 for embedded services.
	Port int
}

// Service is one way of running the metastore for a fixture.
type Service interface {
	// Start brings the service up using conf. Settings the service
	// allocates at start, such as ports, are written back to conf.
	Start(ctx context.Context, conf *Configuration) error
	// Stop releases the service. It is safe to call on a service that
	// did not start.
	Stop(ctx context.Context) error
	ConnectionInfo() ConnectionInfo
	// Client is the client owned by the service. It is valid between
	// Start and Stop.
	Client() metastore.Client
	// NewClient opens a client the caller must close.
	NewClient(ctx context.Context) (metastore.Client, error)
}
