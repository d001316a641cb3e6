/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes a script search.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Types restricts results to block type names such as "dialog" or "scene_heading".
// Speaker keeps only character, parenthetical and dialog blocks of that character
// (case-insensitive). SceneFrom/To are inclusive; 0 means unset.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	Types     []string
	Speaker   string
	SceneFrom int
	SceneTo   int
	Limit     int
	Offset    int
}

// SearchResult represents a single matching block.
// Pos is the block's position in document order. Snippet is a highlighted excerpt
// using [ ] markers when FTS text is used.
type SearchResult struct {
	Pos     int
	Type    string
	Scene   int
	Speaker string
	Text    string
	Snippet string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a plain scan over blocks with filters applied.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT b.pos, b.type, b.scene, COALESCE(b.speaker,''), b.text, snippet(fts_blocks, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_blocks JOIN blocks b ON fts_blocks.rowid = b.pos\n")
		sb.WriteString("WHERE fts_blocks MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT b.pos, b.type, b.scene, COALESCE(b.speaker,''), b.text, ''\n")
		sb.WriteString("FROM blocks b\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND b.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.SceneFrom > 0 && q.SceneTo > 0 && q.SceneTo >= q.SceneFrom {
		sb.WriteString(" AND b.scene BETWEEN ? AND ?\n")
		args = append(args, q.SceneFrom, q.SceneTo)
	} else if q.SceneFrom > 0 {
		sb.WriteString(" AND b.scene >= ?\n")
		args = append(args, q.SceneFrom)
	} else if q.SceneTo > 0 {
		sb.WriteString(" AND b.scene <= ?\n")
		args = append(args, q.SceneTo)
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		sb.WriteString(" AND lower(b.speaker) = ?\n")
		args = append(args, strings.ToLower(s))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	sb.WriteString("ORDER BY b.pos\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.Pos, &r.Type, &r.Scene, &r.Speaker, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
