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
	"slices"
	"sync"

	"github.com/beltran/gohive/hive_metastore"
)

type heldLock struct {
	id         int64
	components []*hive_metastore.LockComponent
	state      hive_metastore.LockState
}

// lockManager grants database and table locks in request order. Locks
// live in memory only and vanish with the Store.
type lockManager struct {
	mu     sync.Mutex
	nextID int64
	locks  map[int64]*heldLock
}

func newLockManager() *lockManager {
	return &lockManager{nextID: 1, locks: make(map[int64]*heldLock)}
}

func sameObject(a, b *hive_metastore.LockComponent) bool {
	if normalizeName(a.Dbname) != normalizeName(b.Dbname) {
		return false
	}

	if a.Level == hive_metastore.LockLevel_DB || b.Level == hive_metastore.LockLevel_DB ||
		a.Tablename == nil || b.Tablename == nil {
		return true
	}

	if normalizeName(*a.Tablename) != normalizeName(*b.Tablename) {
		return false
	}

	if a.Partitionname != nil && b.Partitionname != nil {
		return *a.Partitionname == *b.Partitionname
	}

	return true
}

// compatible follows the Hive lock matrix: exclusive locks conflict with
// everything, shared writes conflict with each other, shared reads only
// with exclusive locks.
func compatible(a, b hive_metastore.LockType) bool {
	switch {
	case a == hive_metastore.LockType_EXCLUSIVE || b == hive_metastore.LockType_EXCLUSIVE:
		return false
	case a == hive_metastore.LockType_SHARED_WRITE && b == hive_metastore.LockType_SHARED_WRITE:
		return false
	default:
		return true
	}
}

func conflicts(a, b *heldLock) bool {
	for _, ca := range a.components {
		for _, cb := range b.components {
			if sameObject(ca, cb) && !compatible(ca.Type, cb.Type) {
				return true
			}
		}
	}

	return false
}

// grantable reports whether l can be acquired: no acquired lock and no
// earlier waiting lock conflicts with it.
func (m *lockManager) grantable(l *heldLock) bool {
	for id, other := range m.locks {
		if id == l.id {
			continue
		}

		if other.state == hive_metastore.LockState_ACQUIRED || id < l.id {
			if conflicts(l, other) {
				return false
			}
		}
	}

	return true
}

func (m *lockManager) promote() {
	ids := make([]int64, 0, len(m.locks))
	for id, l := range m.locks {
		if l.state == hive_metastore.LockState_WAITING {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	for _, id := range ids {
		if l := m.locks[id]; m.grantable(l) {
			l.state = hive_metastore.LockState_ACQUIRED
		}
	}
}

func (m *lockManager) lock(req *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error) {
	if req == nil || len(req.Component) == 0 {
		return nil, fmt.Errorf("%w: lock request without components", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l := &heldLock{
		id:         m.nextID,
		components: slices.Clone(req.Component),
		state:      hive_metastore.LockState_WAITING,
	}
	m.nextID++
	m.locks[l.id] = l

	if m.grantable(l) {
		l.state = hive_metastore.LockState_ACQUIRED
	}

	return &hive_metastore.LockResponse{Lockid: l.id, State: l.state}, nil
}

func (m *lockManager) check(id int64) (*hive_metastore.LockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		return nil, noSuchLock(id)
	}

	m.promote()

	return &hive_metastore.LockResponse{Lockid: l.id, State: l.state}, nil
}

func (m *lockManager) unlock(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locks[id]; !ok {
		return noSuchLock(id)
	}

	delete(m.locks, id)
	m.promote()

	return nil
}

// Lock requests the locks described by req. The response state is
// ACQUIRED when granted immediately and WAITING otherwise; poll CheckLock
// until the lock is acquired.
func (s *Store) Lock(_ context.Context, req *hive_metastore.LockRequest) (*hive_metastore.LockResponse, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return s.locks.lock(req)
}

func (s *Store) CheckLock(_ context.Context, lockID int64) (*hive_metastore.LockResponse, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return s.locks.check(lockID)
}

func (s *Store) Unlock(_ context.Context, lockID int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.locks.unlock(lockID)
}
