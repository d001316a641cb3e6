/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goscriptwriter/internal/storage"
)

func TestClientAgainstFakeServer(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok"})
	})
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, []Project{{ID: 7, StableID: "abc", Name: "Rain", Version: 2}})
	})
	mux.HandleFunc("GET /api/projects/{id}/revision", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "7" {
			writeError(w, http.StatusNotFound, errNoRevisionForTest)
			return
		}
		writeJSON(w, http.StatusOK, Revision{ProjectID: 7, Version: 2, Hash: "h", Document: json.RawMessage(`{"blocks":[]}`)})
	})
	mux.HandleFunc("GET /api/projects/{id}/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []storage.SearchResult{{Pos: 3, Type: "dialog", Text: "hi"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL+"/", "", time.Second)
	if err := c.Login(ctx, "ed"); err != nil {
		t.Fatalf("login: %v", err)
	}
	list, err := c.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Rain" {
		t.Fatalf("ListProjects = %+v, %v", list, err)
	}
	rev, err := c.LatestRevision(ctx, 7)
	if err != nil || rev.Version != 2 {
		t.Fatalf("LatestRevision = %+v, %v", rev, err)
	}
	if _, err := c.LatestRevision(ctx, 8); err == nil || !strings.Contains(err.Error(), "no revision") {
		t.Fatalf("expected server error message, got %v", err)
	}
	res, err := c.Search(ctx, 7, storage.SearchQuery{Text: "hi", Types: []string{"dialog"}, SceneFrom: 1})
	if err != nil || len(res) != 1 || res[0].Pos != 3 {
		t.Fatalf("Search = %+v, %v", res, err)
	}
	for _, want := range []string{"q=hi", "type=dialog", "from=1"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q lacks %q", gotQuery, want)
		}
	}
}
