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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/domain"
	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/navigator"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/textdoc"
)

// Project is a published project as listed by the backend.
type Project struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	Template  string    `json:"template"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is one published state of a project's script.
type Revision struct {
	ProjectID int64           `json:"project_id"`
	Version   int64           `json:"version"`
	Hash      string          `json:"hash"`
	CreatedAt time.Time       `json:"created_at"`
	Document  json.RawMessage `json:"document"`
	Outline   domain.Outline  `json:"outline"`
}

// Script decodes the published document.
func (r Revision) Script() (*textdoc.Document, error) {
	if len(r.Document) == 0 {
		return nil, errors.New("revision has no document")
	}
	d := textdoc.New()
	if err := d.UnmarshalJSON(r.Document); err != nil {
		return nil, fmt.Errorf("decode revision %d: %w", r.Version, err)
	}
	return d, nil
}

// Store reads and writes published revisions.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore wraps an open database, typically from Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, log: applog.WithComponent("backend")}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// EnsureProject returns the id of the project with stableID, creating it or updating its
// name and template.
func (s *Store) EnsureProject(ctx context.Context, stableID string, p domain.Project) (int64, error) {
	if stableID == "" {
		return 0, errors.New("stable id is required")
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO projects(stable_id, name, template) VALUES($1, $2, $3)
		ON CONFLICT (stable_id) DO UPDATE SET name = excluded.name, template = excluded.template
		RETURNING id`, stableID, p.Name, p.Template).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure project: %w", err)
	}
	return id, nil
}

// ListProjects returns all projects, most recently published first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, stable_id, name, template, version, updated_at FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.StableID, &p.Name, &p.Template, &p.Version, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Publish stores doc as the next revision of projectID and replaces the project's
// searchable blocks. Publishing content identical to the latest revision is a no-op and
// returns that revision with false.
func (s *Store) Publish(ctx context.Context, projectID int64, doc *textdoc.Document, tpl *blockstyle.Template) (Revision, bool, error) {
	if doc == nil {
		return Revision{}, false, errors.New("nil document")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return Revision{}, false, fmt.Errorf("marshal document: %w", err)
	}
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	latest, ok, err := s.LatestRevision(ctx, projectID)
	if err != nil {
		return Revision{}, false, err
	}
	if ok && latest.Hash == hash {
		return latest, false, nil
	}

	outline := navigator.Rebuild(doc, tpl).Outline()
	if outline == nil {
		outline = domain.Outline{}
	}
	outJSON, err := json.Marshal(outline)
	if err != nil {
		return Revision{}, false, fmt.Errorf("marshal outline: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, false, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(err error) (Revision, bool, error) {
		_ = tx.Rollback()
		return Revision{}, false, err
	}

	rev := Revision{ProjectID: projectID, Hash: hash, Document: body, Outline: outline}
	err = tx.QueryRowContext(ctx, `INSERT INTO revisions(project_id, version, hash, document, outline)
		VALUES($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM revisions WHERE project_id = $1), $2, $3, $4)
		RETURNING version, created_at`, projectID, hash, string(body), string(outJSON)).Scan(&rev.Version, &rev.CreatedAt)
	if err != nil {
		return rollback(fmt.Errorf("insert revision: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE project_id = $1`, projectID); err != nil {
		return rollback(fmt.Errorf("clear blocks: %w", err))
	}
	for _, b := range storage.IndexBlocks(doc) {
		var speaker sql.NullString
		if b.Speaker != "" {
			speaker = sql.NullString{String: b.Speaker, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO blocks(project_id, pos, type, scene, speaker, text) VALUES($1, $2, $3, $4, $5, $6)`,
			projectID, b.Pos, b.Type, b.Scene, speaker, b.Text); err != nil {
			return rollback(fmt.Errorf("insert block %d: %w", b.Pos, err))
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET version = $2, updated_at = now() WHERE id = $1`, projectID, rev.Version); err != nil {
		return rollback(fmt.Errorf("update project: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, false, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("revision published", slog.Int64("project", projectID), slog.Int64("version", rev.Version))
	return rev, true, nil
}

// LatestRevision returns the newest revision of projectID. The second value is false when
// nothing was published yet.
func (s *Store) LatestRevision(ctx context.Context, projectID int64) (Revision, bool, error) {
	var (
		rev     Revision
		doc     []byte
		outline []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT project_id, version, hash, document, outline, created_at
		FROM revisions WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID).
		Scan(&rev.ProjectID, &rev.Version, &rev.Hash, &doc, &outline, &rev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, false, nil
	}
	if err != nil {
		return Revision{}, false, fmt.Errorf("latest revision: %w", err)
	}
	rev.Document = json.RawMessage(doc)
	if len(outline) > 0 {
		if err := json.Unmarshal(outline, &rev.Outline); err != nil {
			return Revision{}, false, fmt.Errorf("decode outline: %w", err)
		}
	}
	return rev, true, nil
}
