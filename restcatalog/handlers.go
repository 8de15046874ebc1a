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

package restcatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"
	"github.com/apache/iceberg-go/table"
	"github.com/beltran/gohive/hive_metastore"
	"github.com/go-chi/chi/v5"
	"github.com/hotels/beeju/metastore"
)

const (
	// namespaceSeparator joins the levels of a namespace in a URL path.
	namespaceSeparator = "\x1F"

	commentProperty  = "comment"
	locationProperty = "location"
)

const (
	typeBadRequest        = "BadRequestException"
	typeForbidden         = "ForbiddenException"
	typeNoSuchNamespace   = "NoSuchNamespaceException"
	typeNoSuchTable       = "NoSuchTableException"
	typeAlreadyExists     = "AlreadyExistsException"
	typeNamespaceNotEmpty = "NamespaceNotEmptyException"
	typeUnprocessable     = "UnprocessableEntityException"
	typeNotImplemented    = "NotImplementedException"
	typeServiceFailure    = "ServiceFailureException"
)

type errorModel struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type errorResponse struct {
	Error errorModel `json:"error"`
}

type configResponse struct {
	Defaults  iceberg.Properties `json:"defaults"`
	Overrides iceberg.Properties `json:"overrides"`
}

type namespaceResponse struct {
	Namespace  table.Identifier   `json:"namespace"`
	Properties iceberg.Properties `json:"properties"`
}

type listNamespacesResponse struct {
	Namespaces []table.Identifier `json:"namespaces"`
}

type updatePropertiesRequest struct {
	Removals []string           `json:"removals"`
	Updates  iceberg.Properties `json:"updates"`
}

type identifier struct {
	Namespace []string `json:"namespace"`
	Name      string   `json:"name"`
}

type listTablesResponse struct {
	Identifiers   []identifier `json:"identifiers"`
	NextPageToken string       `json:"next-page-token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, errorResponse{Error: errorModel{Message: msg, Type: typ, Code: status}})
}

// writeMetastoreError translates a metastore failure to an HTTP error.
// notFound is the error type reported for a missing object.
func writeMetastoreError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case metastore.IsNoSuchObject(err):
		writeError(w, http.StatusNotFound, notFound, err.Error())
	case metastore.IsAlreadyExists(err):
		writeError(w, http.StatusConflict, typeAlreadyExists, err.Error())
	case metastore.IsInvalidObject(err), errors.Is(err, metastore.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, typeBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, typeServiceFailure, err.Error())
	}
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, typeNotImplemented,
		fmt.Sprintf("%s %s is not supported by this catalog", r.Method, r.URL.Path))
}

// databaseName extracts the Hive database addressed by the namespace path
// parameter. Nested namespaces do not exist in a Hive metastore.
func databaseName(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "namespace")
	ns, err := url.PathUnescape(raw)
	if err != nil || ns == "" || strings.Contains(ns, namespaceSeparator) {
		return "", false
	}

	return ns, true
}

func tableName(r *http.Request) string {
	raw := chi.URLParam(r, "table")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}

	return raw
}

func databaseProperties(db *hive_metastore.Database) iceberg.Properties {
	props := iceberg.Properties{}
	maps.Copy(props, db.Parameters)
	if db.Description != "" {
		props[commentProperty] = db.Description
	}
	if db.LocationUri != "" {
		props[locationProperty] = db.LocationUri
	}

	return props
}

func applyProperties(db *hive_metastore.Database, props iceberg.Properties) {
	if db.Parameters == nil {
		db.Parameters = map[string]string{}
	}

	for k, v := range props {
		switch k {
		case commentProperty:
			db.Description = v
		case locationProperty:
			db.LocationUri = v
		default:
			db.Parameters[k] = v
		}
	}
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	defaults := iceberg.Properties{}
	if s.warehouse != "" {
		defaults["warehouse"] = s.warehouse
	}

	writeJSON(w, http.StatusOK, configResponse{Defaults: defaults, Overrides: iceberg.Properties{}})
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if parent := r.URL.Query().Get("parent"); parent != "" {
		if _, err := s.client.GetDatabase(ctx, parent); err != nil {
			writeMetastoreError(w, err, typeNoSuchNamespace)

			return
		}
		writeJSON(w, http.StatusOK, listNamespacesResponse{Namespaces: []table.Identifier{}})

		return
	}

	names, err := s.client.GetAllDatabases(ctx)
	if err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	rsp := listNamespacesResponse{Namespaces: make([]table.Identifier, 0, len(names))}
	for _, n := range names {
		rsp.Namespaces = append(rsp.Namespaces, table.Identifier{n})
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var req namespaceResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, typeBadRequest, "malformed request: "+err.Error())

		return
	}

	if len(req.Namespace) != 1 {
		writeError(w, http.StatusBadRequest, typeBadRequest,
			fmt.Sprintf("namespace must have exactly one level: %v", req.Namespace))

		return
	}

	db := &hive_metastore.Database{Name: req.Namespace[0]}
	applyProperties(db, req.Properties)

	if err := s.client.CreateDatabase(r.Context(), db); err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	created, err := s.client.GetDatabase(r.Context(), db.Name)
	if err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	writeJSON(w, http.StatusOK, namespaceResponse{
		Namespace:  table.Identifier{created.Name},
		Properties: databaseProperties(created),
	})
}

func (s *Server) loadNamespace(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		writeError(w, http.StatusNotFound, typeNoSuchNamespace, "namespace does not exist")

		return
	}

	db, err := s.client.GetDatabase(r.Context(), name)
	if err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	writeJSON(w, http.StatusOK, namespaceResponse{
		Namespace:  table.Identifier{db.Name},
		Properties: databaseProperties(db),
	})
}

func (s *Server) namespaceExists(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	if _, err := s.client.GetDatabase(r.Context(), name); err != nil {
		if metastore.IsNoSuchObject(err) {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dropNamespace(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		writeError(w, http.StatusNotFound, typeNoSuchNamespace, "namespace does not exist")

		return
	}

	err := s.client.DropDatabase(r.Context(), name, false, false)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case metastore.IsInvalidOperation(err):
		writeError(w, http.StatusConflict, typeNamespaceNotEmpty, err.Error())
	case metastore.IsMetaError(err):
		writeError(w, http.StatusForbidden, typeForbidden, err.Error())
	default:
		writeMetastoreError(w, err, typeNoSuchNamespace)
	}
}

func (s *Server) updateNamespaceProperties(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		writeError(w, http.StatusNotFound, typeNoSuchNamespace, "namespace does not exist")

		return
	}

	var req updatePropertiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, typeBadRequest, "malformed request: "+err.Error())

		return
	}

	for _, k := range req.Removals {
		if _, ok := req.Updates[k]; ok {
			writeError(w, http.StatusUnprocessableEntity, typeUnprocessable,
				fmt.Sprintf("property %q is both removed and updated", k))

			return
		}
	}

	db, err := s.client.GetDatabase(r.Context(), name)
	if err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	current := databaseProperties(db)
	summary := catalog.PropertiesUpdateSummary{
		Removed: []string{},
		Updated: []string{},
		Missing: []string{},
	}

	for _, k := range req.Removals {
		if _, ok := current[k]; !ok {
			summary.Missing = append(summary.Missing, k)

			continue
		}
		summary.Removed = append(summary.Removed, k)
		switch k {
		case commentProperty:
			db.Description = ""
		case locationProperty:
			// the location of a database can not be unset
		default:
			delete(db.Parameters, k)
		}
	}

	applyProperties(db, req.Updates)
	summary.Updated = slices.Sorted(maps.Keys(req.Updates))

	if err := s.client.AlterDatabase(r.Context(), name, db); err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		writeError(w, http.StatusNotFound, typeNoSuchNamespace, "namespace does not exist")

		return
	}

	ctx := r.Context()
	if _, err := s.client.GetDatabase(ctx, name); err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	names, err := s.client.GetAllTables(ctx, name)
	if err != nil {
		writeMetastoreError(w, err, typeNoSuchNamespace)

		return
	}

	start, end, next, err := page(r.URL.Query(), len(names))
	if err != nil {
		writeError(w, http.StatusBadRequest, typeBadRequest, err.Error())

		return
	}

	rsp := listTablesResponse{Identifiers: make([]identifier, 0, end-start), NextPageToken: next}
	for _, t := range names[start:end] {
		rsp.Identifiers = append(rsp.Identifiers, identifier{Namespace: []string{name}, Name: t})
	}

	writeJSON(w, http.StatusOK, rsp)
}

// page resolves the pageToken and pageSize query parameters against a
// result of n entries. The token is the offset of the next entry.
func page(q url.Values, n int) (start, end int, next string, err error) {
	if tok := q.Get("pageToken"); tok != "" {
		if start, err = strconv.Atoi(tok); err != nil || start < 0 || start > n {
			return 0, 0, "", fmt.Errorf("invalid page token %q", tok)
		}
	}

	end = n
	if sz := q.Get("pageSize"); sz != "" {
		size, err := strconv.Atoi(sz)
		if err != nil || size < 1 {
			return 0, 0, "", fmt.Errorf("invalid page size %q", sz)
		}
		if start+size < n {
			end = start + size
			next = strconv.Itoa(end)
		}
	}

	return start, end, next, nil
}

func (s *Server) tableExists(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	if _, err := s.client.GetTable(r.Context(), name, tableName(r)); err != nil {
		if metastore.IsNoSuchObject(err) {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dropTable(w http.ResponseWriter, r *http.Request) {
	name, ok := databaseName(r)
	if !ok {
		writeError(w, http.StatusNotFound, typeNoSuchNamespace, "namespace does not exist")

		return
	}

	purge, _ := strconv.ParseBool(r.URL.Query().Get("purgeRequested"))
	if err := s.client.DropTable(r.Context(), name, tableName(r), purge); err != nil {
		writeMetastoreError(w, err, typeNoSuchTable)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
