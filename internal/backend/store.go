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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gochessstudio/internal/domain"
)

// ErrNotFound is returned by a Store when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// GameSummary is a published game as listed by the API.
type GameSummary struct {
	ID          int64         `json:"id"`
	StableID    string        `json:"stable_id"`
	Event       string        `json:"event"`
	Date        string        `json:"date"`
	White       string        `json:"white"`
	Black       string        `json:"black"`
	Result      domain.Result `json:"result"`
	ECO         string        `json:"eco,omitempty"`
	PlyCount    int           `json:"ply_count"`
	PublishedBy string        `json:"published_by,omitempty"`
	PublishedAt time.Time     `json:"published_at"`
}

// GameFilter narrows ListGames. Text is matched against players, event, site and
// the movetext including comments.
type GameFilter struct {
	Text   string
	Player string
	ECO    string
	Limit  int
	Offset int
}

// Store is the persistence the HTTP server needs.
type Store interface {
	Ping(ctx context.Context) error
	ListGames(ctx context.Context, f GameFilter) ([]GameSummary, error)
	GamePGN(ctx context.Context, id int64) (string, error)
	PublishGame(ctx context.Context, h domain.Headers, pgnText, publisher string) (GameSummary, error)
	Engines(ctx context.Context, os string) ([]domain.Engine, error)
}

// PGStore implements Store on Postgres through the pgx database/sql driver.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open pgx-backed *sql.DB.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

// OpenPG opens and pings the database at dsn.
func OpenPG(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ListGames searches published games, newest first.
func (s *PGStore) ListGames(ctx context.Context, f GameFilter) ([]GameSummary, error) {
	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	b.WriteString("SELECT id, stable_id::text, event, date, white, black, result, eco, ply_count, published_by, published_at FROM games WHERE true ")
	if t := strings.TrimSpace(f.Text); t != "" {
		b.WriteString(" AND search_vector @@ plainto_tsquery('simple', " + place(t) + ") ")
	}
	if p := strings.ToLower(strings.TrimSpace(f.Player)); p != "" {
		ph := place("%" + p + "%")
		b.WriteString(" AND (lower(white) LIKE " + ph + " OR lower(black) LIKE " + ph + ") ")
	}
	if e := strings.ToUpper(strings.TrimSpace(f.ECO)); e != "" {
		b.WriteString(" AND eco LIKE " + place(e+"%") + " ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := max(f.Offset, 0)
	b.WriteString(" ORDER BY published_at DESC, id DESC ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		var result string
		if err := rows.Scan(&g.ID, &g.StableID, &g.Event, &g.Date, &g.White, &g.Black, &result, &g.ECO, &g.PlyCount, &g.PublishedBy, &g.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		g.Result = domain.Result(result)
		out = append(out, g)
	}
	return out, rows.Err()
}

// GamePGN returns the stored export of a published game.
func (s *PGStore) GamePGN(ctx context.Context, id int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT pgn FROM games WHERE id = $1`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return text, err
}

// PublishGame stores a game export and returns its summary.
func (s *PGStore) PublishGame(ctx context.Context, h domain.Headers, pgnText, publisher string) (GameSummary, error) {
	g := GameSummary{
		StableID:    uuid.New().String(),
		Event:       h.Event,
		Date:        h.Date,
		White:       h.White,
		Black:       h.Black,
		Result:      h.Result,
		ECO:         h.ECO,
		PlyCount:    h.PlyCount,
		PublishedBy: publisher,
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO games
		(stable_id, event, site, date, round, white, black, white_elo, black_elo, result, eco, ply_count, pgn, published_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, published_at`,
		g.StableID, h.Event, h.Site, h.Date, h.Round, h.White, h.Black, h.WhiteElo, h.BlackElo,
		string(h.Result), h.ECO, h.PlyCount, pgnText, publisher,
	).Scan(&g.ID, &g.PublishedAt)
	if err != nil {
		return GameSummary{}, fmt.Errorf("publish game: %w", err)
	}
	return g, nil
}

// Engines returns the default engines for os.
func (s *PGStore) Engines(ctx context.Context, os string) ([]domain.Engine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, version, path, image, elo, download_url, download_size
		FROM engines WHERE os = $1 ORDER BY name`, os)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Engine
	for rows.Next() {
		var e domain.Engine
		var elo sql.NullInt64
		if err := rows.Scan(&e.Name, &e.Version, &e.Path, &e.Image, &elo, &e.DownloadURL, &e.DownloadSize); err != nil {
			return nil, fmt.Errorf("scan engine: %w", err)
		}
		if elo.Valid {
			v := int(elo.Int64)
			e.Elo = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
