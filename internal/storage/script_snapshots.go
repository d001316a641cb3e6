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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"goscriptwriter/internal/textdoc"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(ts, hash, blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestScriptSnapshotSQL = `SELECT id, ts, hash, blob FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectScriptSnapshotSQL = `SELECT id, ts, hash, blob FROM script_snapshots WHERE id = ?`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT id, ts, hash, blob FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE id NOT IN (
	SELECT id FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?
)`

// ScriptSnapshot is one stored revision of the script document.
type ScriptSnapshot struct {
	ID   int64
	TS   time.Time
	Hash string
	Blob []byte
}

// Document decodes the snapshot.
func (s ScriptSnapshot) Document() (*textdoc.Document, error) {
	doc := textdoc.New()
	if err := doc.UnmarshalJSON(s.Blob); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", s.ID, err)
	}
	return doc, nil
}

// SaveScriptSnapshot stores the current content of doc unless it equals the latest snapshot.
// It reports whether a row was written. The history lives in the disposable index; it backs
// editor change tracking, not canonical storage.
func SaveScriptSnapshot(ctx context.Context, ph *ProjectHandle, doc *textdoc.Document, ts time.Time) (bool, error) {
	if ph == nil {
		return false, errors.New("nil ProjectHandle")
	}
	blob, err := doc.MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("encode script: %w", err)
	}
	sum := sha256.Sum256(blob)
	hash := hex.EncodeToString(sum[:])

	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()
	latest, err := scanSnapshot(db.QueryRowContext(ctx, selectLatestScriptSnapshotSQL))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	if err == nil && latest.Hash == hash {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, insertScriptSnapshotSQL, ts.UTC().Format(time.RFC3339Nano), hash, blob); err != nil {
		return false, err
	}
	return true, nil
}

// GetLatestScriptSnapshot returns the newest snapshot. ok is false when there is none.
func GetLatestScriptSnapshot(ctx context.Context, ph *ProjectHandle) (ScriptSnapshot, bool, error) {
	return getScriptSnapshot(ctx, ph, selectLatestScriptSnapshotSQL)
}

// GetScriptSnapshot returns the snapshot with the given id. ok is false when it does not exist.
func GetScriptSnapshot(ctx context.Context, ph *ProjectHandle, id int64) (ScriptSnapshot, bool, error) {
	return getScriptSnapshot(ctx, ph, selectScriptSnapshotSQL, id)
}

func getScriptSnapshot(ctx context.Context, ph *ProjectHandle, query string, args ...any) (ScriptSnapshot, bool, error) {
	if ph == nil {
		return ScriptSnapshot{}, false, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return ScriptSnapshot{}, false, err
	}
	defer func() { _ = db.Close() }()
	s, err := scanSnapshot(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, false, nil
	}
	if err != nil {
		return ScriptSnapshot{}, false, err
	}
	return s, true, nil
}

// ListScriptSnapshots returns up to limit most recent script snapshots, newest first.
func ListScriptSnapshots(ctx context.Context, ph *ProjectHandle, limit int) ([]ScriptSnapshot, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listScriptSnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneOldScriptSnapshots keeps at most keepLast snapshots and deletes older ones.
func PruneOldScriptSnapshots(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSnapshot(r rowScanner) (ScriptSnapshot, error) {
	var s ScriptSnapshot
	var tsStr string
	if err := r.Scan(&s.ID, &tsStr, &s.Hash, &s.Blob); err != nil {
		return ScriptSnapshot{}, err
	}
	s.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return s, nil
}
