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

	applog "gochessstudio/internal/log"
	"gochessstudio/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	LibraryFileName = "library.sqlite"

	// schemaVersion tracks the library schema. Bump it with every migration.
	schemaVersion = 2
)

// ErrNotFound is returned when a game id does not exist in the library.
var ErrNotFound = errors.New("not found")

// Library is the per-user game database.
type Library struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenLibrary opens or creates the SQLite library at path, enables WAL mode and
// brings the schema up to date.
func OpenLibrary(path string) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "library_open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("library path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create library dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	// forward slashes for the SQLite URI
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
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
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureLibrarySchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure library schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("library ready")
	return &Library{db: db, path: path, log: applog.WithComponent("library")}, nil
}

// Path returns the database file path.
func (lib *Library) Path() string { return lib.path }

// Close releases the database.
func (lib *Library) Close() error { return lib.db.Close() }

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
		// fresh database: ensureLibrarySchema creates the current layout directly
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for runMigrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureLibrarySchema creates the v1 tables. Later additions live in runMigrations
// and in ensureSearchSchema.
func ensureLibrarySchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id   INTEGER PRIMARY KEY,
			name TEXT    NOT NULL UNIQUE,
			elo  INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			id           INTEGER PRIMARY KEY,
			event        TEXT,
			site         TEXT,
			date         TEXT,
			round        TEXT,
			white_id     INTEGER REFERENCES players(id),
			black_id     INTEGER REFERENCES players(id),
			white_elo    INTEGER,
			black_elo    INTEGER,
			result       TEXT    NOT NULL DEFAULT '*',
			time_control TEXT,
			eco          TEXT,
			ply_count    INTEGER NOT NULL DEFAULT 0,
			fen          TEXT,
			tree_json    TEXT    NOT NULL,
			pgn          TEXT    NOT NULL,
			search_text  TEXT    NOT NULL DEFAULT '',
			updated_at   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_games_date ON games(date);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			game_id    INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			ts         TEXT    NOT NULL,
			tree_blob  BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_game_ts ON snapshots(game_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure library schema: %w", err)
		}
	}
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur >= 2 {
		return ensureSearchSchema(ctx, db)
	}
	return nil
}

// searchSchema is the layout added by schema 2: player/eco indexes and a
// contentless FTS index over players, event, site and comments.
var searchSchema = []string{
	`CREATE INDEX IF NOT EXISTS idx_games_white ON games(white_id);`,
	`CREATE INDEX IF NOT EXISTS idx_games_black ON games(black_id);`,
	`CREATE INDEX IF NOT EXISTS idx_games_eco ON games(eco);`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS fts_games USING fts5(
		text,
		content='',
		tokenize = 'unicode61'
	);`,
	`CREATE TRIGGER IF NOT EXISTS games_ai AFTER INSERT ON games BEGIN
		INSERT INTO fts_games(rowid, text) VALUES (new.id, new.search_text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS games_ad AFTER DELETE ON games BEGIN
		INSERT INTO fts_games(fts_games, rowid, text) VALUES ('delete', old.id, old.search_text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS games_au AFTER UPDATE OF search_text ON games BEGIN
		INSERT INTO fts_games(fts_games, rowid, text) VALUES ('delete', old.id, old.search_text);
		INSERT INTO fts_games(rowid, text) VALUES (new.id, new.search_text);
	END;`,
}

func ensureSearchSchema(ctx context.Context, db *sql.DB) error {
	for _, q := range searchSchema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure search schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// written by a newer build; leave it alone
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		var stmts []string
		switch next {
		case 2:
			stmts = append(stmts, searchSchema...)
			// backfill the index for rows written before it existed
			stmts = append(stmts, `INSERT INTO fts_games(rowid, text) SELECT id, search_text FROM games;`)
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
		cur = next
	}
	return nil
}

// Check runs SQLite's quick_check and reports whether the database is healthy.
func (lib *Library) Check(ctx context.Context) error {
	var chk string
	if err := lib.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("library corrupt: %s", chk)
	}
	return nil
}

// RecoverLibrary opens the library at path. When the file cannot be opened or fails
// its integrity check it is copied into the backups directory, replaced by an empty
// library, and every game document under docsDir (if set) is imported again.
// The boolean reports whether a rebuild happened.
func RecoverLibrary(ctx context.Context, path, docsDir string) (*Library, bool, error) {
	lib, err := OpenLibrary(path)
	if err == nil {
		healthy := lib.Check(ctx) == nil
		if healthy {
			if _, perr := lib.db.ExecContext(ctx, `SELECT 1 FROM games LIMIT 1;`); perr != nil {
				healthy = false
			}
		}
		if healthy {
			return lib, false, nil
		}
		_ = lib.Close()
	}
	applog.WithComponent("storage").Warn("library unhealthy, rebuilding", slog.String("path", path), slog.Any("err", err))
	backupLibraryFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	lib, err = OpenLibrary(path)
	if err != nil {
		return nil, false, fmt.Errorf("recreate library: %w", err)
	}
	if docsDir != "" {
		if _, err := lib.ImportDocuments(ctx, docsDir); err != nil {
			_ = lib.Close()
			return nil, false, fmt.Errorf("rebuild library: %w", err)
		}
	}
	return lib, true, nil
}

// ImportDocuments saves every game document found under dir as a new library game
// and returns how many were imported. Backup copies are skipped.
func (lib *Library) ImportDocuments(ctx context.Context, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == BackupsDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), DocumentExt) {
			return nil
		}
		dh, err := OpenDocument(p)
		if err != nil {
			lib.log.Warn("skip unreadable document", slog.String("path", p), slog.Any("err", err))
			return nil
		}
		t, err := dh.Tree()
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		g := dh.Doc.Game
		g.ID = 0
		if _, err := lib.SaveGame(ctx, g, t); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		n++
		return nil
	})
	return n, err
}

// backupLibraryFile copies the library file into a timestamped backup next to it.
func backupLibraryFile(path string) {
	bdir := backupsDir(path)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	_ = copyFile(path, filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp)))
}
