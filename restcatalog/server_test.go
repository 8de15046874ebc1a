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

package restcatalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"
	"github.com/apache/iceberg-go/catalog/rest"
	"github.com/beltran/gohive/hive_metastore"
	"github.com/google/uuid"
	"github.com/hotels/beeju/metastore"
	"github.com/hotels/beeju/restcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func openStore(t testing.TB) *metastore.Store {
	opts := metastore.NewOptions()
	require.NoError(t, opts.ApplyProperties(map[string]string{
		metastore.ConnectionURLKey: "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared",
		metastore.WarehouseKey:     t.TempDir(),
	}))

	store, err := metastore.Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

type CatalogServerTestSuite struct {
	suite.Suite

	ctx     context.Context
	store   *metastore.Store
	server  *restcatalog.Server
	baseURI string
	cat     *rest.Catalog
}

func (s *CatalogServerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = openStore(s.T())
	s.server = restcatalog.NewServer(metastore.NewEmbeddedClient(s.store), s.store.Warehouse(), nil)

	s.Require().NoError(s.server.Init("localhost:0"))
	s.Require().NoError(s.server.Start())
	s.baseURI = "http://" + s.server.Addr().String()

	var err error
	s.cat, err = rest.NewCatalog(s.ctx, "beeju", s.baseURI)
	s.Require().NoError(err)
}

func (s *CatalogServerTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	s.NoError(s.server.Stop(ctx))
	s.Equal(restcatalog.Stopped, s.server.State())
}

func (s *CatalogServerTestSuite) createTable(db, name string) {
	s.Require().NoError(s.store.CreateTable(s.ctx, &hive_metastore.Table{DbName: db, TableName: name}))
}

func (s *CatalogServerTestSuite) TestConfigAdvertisesWarehouse() {
	rsp, err := http.Get(s.baseURI + "/v1/config")
	s.Require().NoError(err)
	defer rsp.Body.Close()

	s.Equal(http.StatusOK, rsp.StatusCode)

	var cfg struct {
		Defaults  map[string]string `json:"defaults"`
		Overrides map[string]string `json:"overrides"`
	}
	s.Require().NoError(json.NewDecoder(rsp.Body).Decode(&cfg))
	s.Equal(s.store.Warehouse(), cfg.Defaults["warehouse"])
	s.Empty(cfg.Overrides)
}

func (s *CatalogServerTestSuite) TestNamespaceLifecycle() {
	s.Require().NoError(s.cat.CreateNamespace(s.ctx, []string{"sales"}, iceberg.Properties{
		"comment": "sales data",
		"owner":   "analytics",
	}))

	err := s.cat.CreateNamespace(s.ctx, []string{"sales"}, nil)
	s.ErrorIs(err, catalog.ErrNamespaceAlreadyExists)

	namespaces, err := s.cat.ListNamespaces(s.ctx, nil)
	s.Require().NoError(err)
	s.ElementsMatch([][]string{{"default"}, {"sales"}}, namespaces)

	exists, err := s.cat.CheckNamespaceExists(s.ctx, []string{"sales"})
	s.Require().NoError(err)
	s.True(exists)

	props, err := s.cat.LoadNamespaceProperties(s.ctx, []string{"sales"})
	s.Require().NoError(err)
	s.Equal("sales data", props["comment"])
	s.Equal("analytics", props["owner"])
	s.NotEmpty(props["location"])

	db, err := s.store.GetDatabase(s.ctx, "sales")
	s.Require().NoError(err)
	s.Equal("sales data", db.Description)
	s.Equal("analytics", db.Parameters["owner"])

	s.Require().NoError(s.cat.DropNamespace(s.ctx, []string{"sales"}))

	exists, err = s.cat.CheckNamespaceExists(s.ctx, []string{"sales"})
	s.Require().NoError(err)
	s.False(exists)
}

func (s *CatalogServerTestSuite) TestMissingNamespace() {
	_, err := s.cat.LoadNamespaceProperties(s.ctx, []string{"missing"})
	s.ErrorIs(err, catalog.ErrNoSuchNamespace)

	err = s.cat.DropNamespace(s.ctx, []string{"missing"})
	s.ErrorIs(err, catalog.ErrNoSuchNamespace)

	_, err = s.cat.ListNamespaces(s.ctx, []string{"missing"})
	s.ErrorIs(err, catalog.ErrNoSuchNamespace)

	children, err := s.cat.ListNamespaces(s.ctx, []string{"default"})
	s.Require().NoError(err)
	s.Empty(children)
}

func (s *CatalogServerTestSuite) TestNestedNamespacesAreRejected() {
	err := s.cat.CreateNamespace(s.ctx, []string{"a", "b"}, nil)
	s.Error(err)

	exists, err := s.cat.CheckNamespaceExists(s.ctx, []string{"default", "nested"})
	s.Require().NoError(err)
	s.False(exists)
}

func (s *CatalogServerTestSuite) TestDropDefaultNamespaceIsForbidden() {
	err := s.cat.DropNamespace(s.ctx, []string{"default"})
	s.Require().Error(err)
	s.Contains(err.Error(), "ForbiddenException")
}

func (s *CatalogServerTestSuite) TestDropNonEmptyNamespace() {
	s.Require().NoError(s.cat.CreateNamespace(s.ctx, []string{"full"}, nil))
	s.createTable("full", "t1")

	err := s.cat.DropNamespace(s.ctx, []string{"full"})
	s.Require().Error(err)
	s.Contains(err.Error(), "NamespaceNotEmptyException")
}

func (s *CatalogServerTestSuite) TestUpdateNamespaceProperties() {
	s.Require().NoError(s.cat.CreateNamespace(s.ctx, []string{"props"}, iceberg.Properties{
		"a": "1",
		"b": "2",
	}))

	summary, err := s.cat.UpdateNamespaceProperties(s.ctx, []string{"props"},
		[]string{"a", "absent"}, iceberg.Properties{"c": "3", "comment": "updated"})
	s.Require().NoError(err)
	s.Equal([]string{"a"}, summary.Removed)
	s.Equal([]string{"absent"}, summary.Missing)
	s.Equal([]string{"c", "comment"}, summary.Updated)

	props, err := s.cat.LoadNamespaceProperties(s.ctx, []string{"props"})
	s.Require().NoError(err)
	s.NotContains(props, "a")
	s.Equal("2", props["b"])
	s.Equal("3", props["c"])
	s.Equal("updated", props["comment"])

	_, err = s.cat.UpdateNamespaceProperties(s.ctx, []string{"props"},
		[]string{"b"}, iceberg.Properties{"b": "again"})
	s.Error(err)
}

func (s *CatalogServerTestSuite) TestTables() {
	s.createTable("default", "orders")

	exists, err := s.cat.CheckTableExists(s.ctx, []string{"default", "orders"})
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.cat.CheckTableExists(s.ctx, []string{"default", "missing"})
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.cat.DropTable(s.ctx, []string{"default", "orders"}))
	s.ErrorIs(s.cat.DropTable(s.ctx, []string{"default", "orders"}), catalog.ErrNoSuchTable)
}

func (s *CatalogServerTestSuite) TestListTablesPages() {
	for i := range 5 {
		s.createTable("default", fmt.Sprintf("t%d", i))
	}

	var (
		names []string
		token string
		pages int
	)
	for {
		url := s.baseURI + "/v1/namespaces/default/tables?pageSize=2"
		if token != "" {
			url += "&pageToken=" + token
		}

		rsp, err := http.Get(url)
		s.Require().NoError(err)
		s.Require().Equal(http.StatusOK, rsp.StatusCode)

		var page struct {
			Identifiers []struct {
				Namespace []string `json:"namespace"`
				Name      string   `json:"name"`
			} `json:"identifiers"`
			NextPageToken string `json:"next-page-token"`
		}
		s.Require().NoError(json.NewDecoder(rsp.Body).Decode(&page))
		rsp.Body.Close()

		for _, id := range page.Identifiers {
			s.Equal([]string{"default"}, id.Namespace)
			names = append(names, id.Name)
		}
		pages++

		if token = page.NextPageToken; token == "" {
			break
		}
	}

	s.Equal(3, pages)
	s.Equal([]string{"t0", "t1", "t2", "t3", "t4"}, names)

	rsp, err := http.Get(s.baseURI + "/v1/namespaces/missing/tables")
	s.Require().NoError(err)
	rsp.Body.Close()
	s.Equal(http.StatusNotFound, rsp.StatusCode)
}

func (s *CatalogServerTestSuite) TestUnsupportedTableCalls() {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req, err := http.NewRequest(method, s.baseURI+"/v1/namespaces/default/tables/t", nil)
		s.Require().NoError(err)

		rsp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		rsp.Body.Close()
		s.Equal(http.StatusNotImplemented, rsp.StatusCode, method)
	}
}

func TestCatalogServer(t *testing.T) {
	suite.Run(t, new(CatalogServerTestSuite))
}

func TestErrorEnvelope(t *testing.T) {
	store := openStore(t)
	srv := restcatalog.NewServer(metastore.NewEmbeddedClient(store), "", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/namespaces",
		strings.NewReader(`{"namespace":["bad name"],"properties":{}}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "BadRequestException", body.Error.Type)
	assert.Equal(t, http.StatusBadRequest, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func TestServiceFailureOnClosedClient(t *testing.T) {
	store := openStore(t)
	client := metastore.NewEmbeddedClient(store)
	require.NoError(t, client.Close())

	srv := restcatalog.NewServer(client, "", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/namespaces", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ServiceFailureException")
}

func TestServerLifecycle(t *testing.T) {
	store := openStore(t)
	srv := restcatalog.NewServer(metastore.NewEmbeddedClient(store), "", nil)

	assert.Equal(t, restcatalog.New, srv.State())
	assert.Nil(t, srv.Addr())
	assert.ErrorIs(t, srv.Start(), restcatalog.ErrInvalidState)

	require.NoError(t, srv.Init("localhost:0"))
	assert.Equal(t, restcatalog.Initialised, srv.State())
	assert.NotNil(t, srv.Addr())
	assert.ErrorIs(t, srv.Init("localhost:0"), restcatalog.ErrInvalidState)

	require.NoError(t, srv.Start())
	assert.Equal(t, restcatalog.Started, srv.State())
	assert.Equal(t, "STARTED", srv.State().String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
	assert.Equal(t, restcatalog.Stopped, srv.State())
}

func TestStopInitialisedServer(t *testing.T) {
	store := openStore(t)
	srv := restcatalog.NewServer(metastore.NewEmbeddedClient(store), "", nil)
	require.NoError(t, srv.Init("localhost:0"))

	require.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, restcatalog.Stopped, srv.State())
}
