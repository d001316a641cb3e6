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
	"database/sql"
	"fmt"
	"strings"

	"goscriptwriter/internal/storage"
)

// SearchPG runs q against the published blocks of projectID. Filters and result shape
// match storage.Search so local and published results can be compared. Text is parsed
// with plainto_tsquery; snippets use the same [ ] markers as the local index.
func SearchPG(ctx context.Context, db *sql.DB, projectID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	query, args := buildSearchPG(projectID, q)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.Pos, &r.Type, &r.Scene, &r.Speaker, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func buildSearchPG(projectID int64, q storage.SearchQuery) (string, []any) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		tq := "plainto_tsquery('simple', " + place(text) + ")"
		b.WriteString("SELECT b.pos, b.type, b.scene, COALESCE(b.speaker,''), b.text, ")
		b.WriteString("ts_headline('simple', b.text, " + tq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12') ")
		b.WriteString("FROM blocks b WHERE b.project_id = " + place(projectID) + " AND b.search_vector @@ " + tq + " ")
	} else {
		b.WriteString("SELECT b.pos, b.type, b.scene, COALESCE(b.speaker,''), b.text, '' ")
		b.WriteString("FROM blocks b WHERE b.project_id = " + place(projectID) + " ")
	}
	if len(q.Types) > 0 {
		b.WriteString("AND b.type = ANY (" + place(q.Types) + ") ")
	}
	switch {
	case q.SceneFrom > 0 && q.SceneTo > 0 && q.SceneTo >= q.SceneFrom:
		b.WriteString("AND b.scene BETWEEN " + place(q.SceneFrom) + " AND " + place(q.SceneTo) + " ")
	case q.SceneFrom > 0:
		b.WriteString("AND b.scene >= " + place(q.SceneFrom) + " ")
	case q.SceneTo > 0:
		b.WriteString("AND b.scene <= " + place(q.SceneTo) + " ")
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		b.WriteString("AND lower(b.speaker) = " + place(strings.ToLower(s)) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString("ORDER BY b.pos LIMIT " + place(limit) + " OFFSET " + place(offset))
	return b.String(), args
}
