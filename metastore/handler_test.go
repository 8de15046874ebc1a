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
	"maps"
	"slices"
	"testing"

	"github.com/beltran/gohive/hive_metastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorServesOnlyImplementedCalls(t *testing.T) {
	processor := newProcessor(&Store{})

	calls := slices.Sorted(maps.Keys(processor.ProcessorMap()))
	assert.Equal(t, slices.Sorted(maps.Keys(servedMethods)), calls)
}

func TestHandlerRejectsNilArguments(t *testing.T) {
	h := &handler{store: &Store{}}
	ctx := context.Background()

	var invalid *hive_metastore.InvalidObjectException
	require.ErrorAs(t, h.CreateDatabase(ctx, nil), &invalid)
	require.ErrorAs(t, h.CreateTable(ctx, nil), &invalid)

	var meta *hive_metastore.MetaException
	require.ErrorAs(t, h.AlterDatabase(ctx, "db", nil), &meta)

	var op *hive_metastore.InvalidOperationException
	require.ErrorAs(t, h.AlterTable(ctx, "db", "t", nil), &op)

	_, err := h.Lock(ctx, nil)
	assert.Error(t, err)
	_, err = h.CheckLock(ctx, nil)
	assert.Error(t, err)
	assert.Error(t, h.Unlock(ctx, nil))
}
