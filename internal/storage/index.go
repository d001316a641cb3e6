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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/domain"
	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/navigator"
	"goscriptwriter/internal/textdoc"
	"goscriptwriter/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project ephemeral/index data under the project root.
	IndexDirName  = ".gsw"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .gsw/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers close it when no longer needed.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(projectRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so migrations can run
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// blockIndexes were added with schema 2.
var blockIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_blocks_type ON blocks(type);`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_scene ON blocks(scene);`,
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = blockIndexes
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		if next == 2 {
			// best-effort FTS optimize outside the tx
			_, _ = db.ExecContext(ctx, `INSERT INTO fts_blocks(fts_blocks) VALUES('optimize')`)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per non-empty block, keyed by document position.
		`CREATE TABLE IF NOT EXISTS blocks (
			pos     INTEGER PRIMARY KEY,
			type    TEXT    NOT NULL,
			scene   INTEGER NOT NULL DEFAULT 0,
			speaker TEXT,
			text    TEXT
		);`,

		// External content FTS5 index over blocks.text, kept in sync by triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_blocks USING fts5(
			text,
			content='blocks',
			content_rowid='pos',
			tokenize = 'unicode61'
		);`,

		// Cached navigator outline, pre-order.
		`CREATE TABLE IF NOT EXISTS outline (
			seq         INTEGER PRIMARY KEY,
			depth       INTEGER NOT NULL,
			folder      INTEGER NOT NULL,
			number      INTEGER NOT NULL,
			header      TEXT    NOT NULL,
			description TEXT    NOT NULL,
			block       INTEGER NOT NULL
		);`,

		// Script snapshots (history of the script document for change tracking)
		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id    INTEGER PRIMARY KEY,
			ts    TEXT    NOT NULL,
			hash  TEXT    NOT NULL,
			blob  BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_ts ON script_snapshots(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS blocks_ai AFTER INSERT ON blocks BEGIN
			INSERT INTO fts_blocks(rowid, text) VALUES (new.pos, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_ad AFTER DELETE ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.pos, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS blocks_au AFTER UPDATE OF text ON blocks BEGIN
			INSERT INTO fts_blocks(fts_blocks, rowid, text) VALUES ('delete', old.pos, old.text);
			INSERT INTO fts_blocks(rowid, text) VALUES (new.pos, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, ph *ProjectHandle, doc navigator.Source, tpl *blockstyle.Template) (bool, error) {
	path := IndexPath(ph.Root)
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, ph, doc, tpl); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM blocks LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, ph, doc, tpl); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .gsw/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty populates the index from doc if it has no blocks yet.
func BuildIndexIfEmpty(ctx context.Context, ph *ProjectHandle, doc navigator.Source, tpl *blockstyle.Template) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocks;").Scan(&cnt); err != nil {
		return fmt.Errorf("check blocks count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return writeIndex(ctx, db, ph.Project, doc, tpl)
}

// UpdateIndex replaces the indexed blocks and outline with the current content of doc.
func UpdateIndex(ctx context.Context, ph *ProjectHandle, doc navigator.Source, tpl *blockstyle.Template) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	return writeIndex(ctx, db, ph.Project, doc, tpl)
}

// RebuildIndex drops and recreates the derived tables and repopulates them from doc.
// Meta, version and script snapshots are preserved.
func RebuildIndex(ctx context.Context, ph *ProjectHandle, doc navigator.Source, tpl *blockstyle.Template) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS blocks_ai;",
		"DROP TRIGGER IF EXISTS blocks_ad;",
		"DROP TRIGGER IF EXISTS blocks_au;",
		"DROP TABLE IF EXISTS blocks;",
		"DROP TABLE IF EXISTS fts_blocks;",
		"DROP TABLE IF EXISTS outline;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	for _, q := range blockIndexes {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
	}
	return writeIndex(ctx, db, ph.Project, doc, tpl)
}

type blockRow struct {
	pos     int
	typ     string
	scene   int
	speaker sql.NullString
	text    string
}

// blockRows flattens doc into index rows. Scene numbers follow scene headings; the speaker is
// carried from a character block through its parentheticals and dialog.
func blockRows(doc navigator.Source) []blockRow {
	rows := make([]blockRow, 0, 256)
	scene := 0
	speaker := ""
	for b, i := doc.First(), 0; b != textdoc.NoBlock; b, i = doc.Next(b), i+1 {
		typ := doc.Tag(b)
		text := strings.TrimSpace(doc.Text(b))
		switch typ {
		case blockstyle.SceneHeading:
			scene++
			speaker = ""
		case blockstyle.Character:
			speaker = text
		case blockstyle.Parenthetical, blockstyle.Dialog:
		default:
			speaker = ""
		}
		if text == "" {
			continue
		}
		r := blockRow{pos: i, typ: typ.String(), scene: scene, text: text}
		if speaker != "" && (typ == blockstyle.Character || typ == blockstyle.Parenthetical || typ == blockstyle.Dialog) {
			r.speaker = sql.NullString{String: speaker, Valid: true}
		}
		rows = append(rows, r)
	}
	return rows
}

// IndexedBlock is one searchable block as the index stores it.
type IndexedBlock struct {
	Pos     int    `json:"pos"`
	Type    string `json:"type"`
	Scene   int    `json:"scene"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// IndexBlocks returns the searchable blocks of doc in document order. Blank blocks are
// skipped; positions still count them.
func IndexBlocks(doc navigator.Source) []IndexedBlock {
	rows := blockRows(doc)
	out := make([]IndexedBlock, len(rows))
	for i, r := range rows {
		out[i] = IndexedBlock{Pos: r.pos, Type: r.typ, Scene: r.scene, Speaker: r.speaker.String, Text: r.text}
	}
	return out
}

// writeIndex replaces blocks, outline and project meta in one transaction.
func writeIndex(ctx context.Context, db *sql.DB, proj domain.Project, doc navigator.Source, tpl *blockstyle.Template) error {
	rows := blockRows(doc)
	outline := navigator.Rebuild(doc, tpl).Outline()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(err error) error {
		_ = tx.Rollback()
		return err
	}
	for _, q := range []string{"DELETE FROM blocks;", "DELETE FROM outline;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return rollback(fmt.Errorf("clear index: %w", err))
		}
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO blocks(pos, type, scene, speaker, text) VALUES(?,?,?,?,?);")
	if err != nil {
		return rollback(fmt.Errorf("prepare insert: %w", err))
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.pos, r.typ, r.scene, r.speaker, r.text); err != nil {
			return rollback(fmt.Errorf("insert block: %w", err))
		}
	}
	outIns, err := tx.PrepareContext(ctx, "INSERT INTO outline(seq, depth, folder, number, header, description, block) VALUES(?,?,?,?,?,?,?);")
	if err != nil {
		return rollback(fmt.Errorf("prepare outline insert: %w", err))
	}
	defer outIns.Close()
	for i, e := range outline {
		if _, err := outIns.ExecContext(ctx, i, e.Depth, e.Folder, e.Number, e.Header, e.Description, e.Block); err != nil {
			return rollback(fmt.Errorf("insert outline: %w", err))
		}
	}
	meta := map[string]string{
		"project.name":     proj.Name,
		"project.title":    proj.Metadata.Title,
		"project.author":   proj.Metadata.Author,
		"project.template": proj.Template,
		"indexed_at":       time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value;", k, v); err != nil {
			return rollback(fmt.Errorf("write meta: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadOutline returns the cached outline in pre-order.
func ReadOutline(ctx context.Context, projectRoot string) (domain.Outline, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, "SELECT depth, folder, number, header, description, block FROM outline ORDER BY seq;")
	if err != nil {
		return nil, fmt.Errorf("outline query: %w", err)
	}
	defer rows.Close()
	var out domain.Outline
	for rows.Next() {
		var e domain.OutlineEntry
		if err := rows.Scan(&e.Depth, &e.Folder, &e.Number, &e.Header, &e.Description, &e.Block); err != nil {
			return nil, fmt.Errorf("scan outline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Meta returns a value from the index meta table, "" when unset.
func Meta(ctx context.Context, projectRoot, key string) (string, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var v string
	err = db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key=?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}
