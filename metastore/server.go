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
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
)

const transportBufferSize = 4096

// ThriftServer exposes a Store with the Hive Metastore Thrift protocol
// over an unframed binary transport, the way a metastore started without
// SASL listens.
type ThriftServer struct {
	addr      string
	transport *serverTransport
	server    *thrift.TSimpleServer
}

// NewThriftServer prepares a server for store listening on addr
// (host:port). Nothing is bound until Serve.
func NewThriftServer(store *Store, addr string) (*ThriftServer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidArgument)
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid metastore address %q: %w", addr, err)
	}

	transport := &serverTransport{addr: addr, conns: map[net.Conn]struct{}{}}
	server := thrift.NewTSimpleServer4(newProcessor(store), transport,
		thrift.NewTBufferedTransportFactory(transportBufferSize),
		thrift.NewTBinaryProtocolFactoryConf(nil))

	return &ThriftServer{addr: addr, transport: transport, server: server}, nil
}

// Serve binds the listening socket, closes started once connections are
// accepted, and blocks until Stop. started is left open when binding
// fails.
func (s *ThriftServer) Serve(ctx context.Context, started chan<- struct{}) error {
	s.server.SetLogContext(ctx)

	if err := s.server.Listen(); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	close(started)

	return s.server.AcceptLoop()
}

// Addr is the bound address once listening, nil before.
func (s *ThriftServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Stop stops accepting connections and waits for open connections to
// finish. When ctx expires first, the connections still open are closed
// and ctx.Err() is returned once the server has wound down.
func (s *ThriftServer) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.server.Stop() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		s.transport.closeConnections()
		<-done
		err = ctx.Err()
	}

	if cerr := s.transport.Close(); err == nil {
		err = cerr
	}

	return err
}

// OpenConnections is the number of client connections currently accepted.
func (s *ThriftServer) OpenConnections() int {
	return s.transport.openConnections()
}

// serverTransport is a TCP server transport that keeps the connections it
// accepted so Stop can cut idle clients loose.
type serverTransport struct {
	addr string

	mu       sync.Mutex
	listener net.Listener
	bound    net.Addr
	conns    map[net.Conn]struct{}
}

func (t *serverTransport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return nil
	}

	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return thrift.NewTTransportExceptionFromError(err)
	}
	t.listener, t.bound = l, l.Addr()

	return nil
}

func (t *serverTransport) Accept() (thrift.TTransport, error) {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()

	if l == nil {
		return nil, thrift.NewTTransportException(thrift.NOT_OPEN, "server socket is not listening")
	}

	conn, err := l.Accept()
	if err != nil {
		return nil, thrift.NewTTransportExceptionFromError(err)
	}

	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()

	return thrift.NewTSocketFromConnConf(&trackedConn{Conn: conn, owner: t}, nil), nil
}

// Interrupt unblocks Accept.
func (t *serverTransport) Interrupt() error {
	return t.Close()
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return nil
	}

	err := t.listener.Close()
	t.listener = nil

	return err
}

func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.bound
}

func (t *serverTransport) closeConnections() {
	t.mu.Lock()
	conns := make([]net.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (t *serverTransport) openConnections() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.conns)
}

func (t *serverTransport) forget(c net.Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

type trackedConn struct {
	net.Conn
	owner *serverTransport
}

func (c *trackedConn) Close() error {
	c.owner.forget(c.Conn)

	return c.Conn.Close()
}
