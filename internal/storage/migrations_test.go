/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// TestMigrations_UpgradeV1ToV2 ensures that an older library (schema=1) is migrated to schemaVersion (2),
// the new indexes exist and existing games are searchable.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), LibraryFileName)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	// minimal v1 layout: no player/eco indexes, no FTS
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS players (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, elo INTEGER);`,
		`CREATE TABLE IF NOT EXISTS games (id INTEGER PRIMARY KEY, event TEXT, site TEXT, date TEXT, round TEXT,
			white_id INTEGER REFERENCES players(id), black_id INTEGER REFERENCES players(id), white_elo INTEGER, black_elo INTEGER,
			result TEXT NOT NULL DEFAULT '*', time_control TEXT, eco TEXT, ply_count INTEGER NOT NULL DEFAULT 0, fen TEXT,
			tree_json TEXT NOT NULL, pgn TEXT NOT NULL, search_text TEXT NOT NULL DEFAULT '', updated_at TEXT NOT NULL);`,
		`INSERT INTO games(id, result, tree_json, pgn, search_text, updated_at) VALUES(1, '*', '{}', '', 'Alapin', '2020-01-01T00:00:00Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	lib, err := OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	defer lib.Close()
	var schema int
	if err := lib.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("expected schema %d after migration, got %d", schemaVersion, schema)
	}
	var cnt int
	if err := lib.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name IN ('idx_games_white','idx_games_black','idx_games_eco')`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 3 {
		t.Fatalf("expected 3 game indexes after migration, got %d", cnt)
	}
	res, err := lib.SearchGames(ctx, GameQuery{Text: "alapin"})
	if err != nil {
		t.Fatalf("SearchGames: %v", err)
	}
	if len(res) != 1 || res[0].ID != 1 {
		t.Fatalf("expected backfilled row to be searchable, got %+v", res)
	}
}

func TestOpenLibraryIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), LibraryFileName)
	for i := 0; i < 2; i++ {
		lib, err := OpenLibrary(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		if err := lib.Check(context.Background()); err != nil {
			t.Fatalf("check #%d: %v", i, err)
		}
		_ = lib.Close()
	}
}
