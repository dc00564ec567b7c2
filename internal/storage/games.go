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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/tree"
)

// language=SQL
// dialect=SQLite
const upsertPlayerSQL = `INSERT INTO players(name, elo) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET elo = COALESCE(excluded.elo, players.elo)
RETURNING id`

// language=SQL
// dialect=SQLite
const insertGameSQL = `INSERT INTO games(event, site, date, round, white_id, black_id, white_elo, black_elo,
	result, time_control, eco, ply_count, fen, tree_json, pgn, search_text, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const updateGameSQL = `UPDATE games SET event=?, site=?, date=?, round=?, white_id=?, black_id=?, white_elo=?, black_elo=?,
	result=?, time_control=?, eco=?, ply_count=?, fen=?, tree_json=?, pgn=?, search_text=?, updated_at=?
WHERE id=?`

// language=SQL
// dialect=SQLite
const selectGameSQL = `SELECT g.id, COALESCE(g.event,''), COALESCE(g.site,''), COALESCE(g.date,''), COALESCE(g.round,''),
	COALESCE(w.name,''), COALESCE(b.name,''), g.white_elo, g.black_elo, g.result,
	COALESCE(g.time_control,''), COALESCE(g.eco,''), g.ply_count, COALESCE(g.fen,''), g.tree_json
FROM games g
LEFT JOIN players w ON w.id = g.white_id
LEFT JOIN players b ON b.id = g.black_id
WHERE g.id = ?`

// language=SQL
// dialect=SQLite
const selectGamePGNSQL = `SELECT pgn FROM games WHERE id = ?`

// language=SQL
// dialect=SQLite
const deleteGameSQL = `DELETE FROM games WHERE id = ?`

// language=SQL
// dialect=SQLite
const listPlayersSQL = `SELECT id, name, elo FROM players ORDER BY name`

// GameSummary is one row of a game list.
type GameSummary struct {
	ID       int64         `json:"id"`
	Event    string        `json:"event"`
	Date     string        `json:"date"`
	White    string        `json:"white"`
	Black    string        `json:"black"`
	Result   domain.Result `json:"result"`
	ECO      string        `json:"eco,omitempty"`
	PlyCount int           `json:"plyCount"`
}

// GameQuery filters SearchGames. Text uses SQLite FTS5 syntax and matches player
// names, event, site, ECO and comments. Empty fields are ignored.
type GameQuery struct {
	Text   string
	Player string // either colour, case-insensitive substring
	Event  string
	ECO    string // prefix, e.g. "B2"
	Result domain.Result
	Limit  int
	Offset int
}

// SaveGame stores g with the content of t. A zero g.ID inserts a new game and
// returns its id; otherwise the existing row is replaced.
func (lib *Library) SaveGame(ctx context.Context, g domain.Game, t *tree.Tree) (int64, error) {
	if t == nil {
		return 0, errors.New("nil tree")
	}
	h := g.Headers
	if h.Result == "" {
		h.Result = domain.ResultUnknown
	}
	treeJSON, err := t.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("marshal tree: %w", err)
	}
	doc := t.Document()
	if doc.StartFEN != domain.StartFEN {
		h.FEN = doc.StartFEN
	} else {
		h.FEN = ""
	}
	h.PlyCount = mainLinePlies(doc.Root)
	text := pgn.Export(h, t, pgn.AllOptions())

	tx, err := lib.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	whiteID, err := upsertPlayer(ctx, tx, h.White, h.WhiteElo)
	if err != nil {
		return 0, err
	}
	blackID, err := upsertPlayer(ctx, tx, h.Black, h.BlackElo)
	if err != nil {
		return 0, err
	}
	args := []any{
		nullString(h.Event), nullString(h.Site), nullString(h.Date), nullString(h.Round),
		whiteID, blackID, nullInt(h.WhiteElo), nullInt(h.BlackElo),
		string(h.Result), nullString(h.TimeControl), nullString(h.ECO), h.PlyCount, nullString(h.FEN),
		string(treeJSON), text, searchText(h, doc.Root), time.Now().UTC().Format(time.RFC3339Nano),
	}
	id := g.ID
	if id == 0 {
		res, err := tx.ExecContext(ctx, insertGameSQL, args...)
		if err != nil {
			return 0, fmt.Errorf("insert game: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("insert game id: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, updateGameSQL, append(args, id)...)
		if err != nil {
			return 0, fmt.Errorf("update game %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("update game %d: %w", id, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	lib.log.Debug("game saved", slog.Int64("game", id), slog.Int("plies", h.PlyCount))
	return id, nil
}

// GetGame loads a game and rebuilds its tree.
func (lib *Library) GetGame(ctx context.Context, id int64) (domain.Game, *tree.Tree, error) {
	var (
		g          = domain.Game{ID: id}
		h          = &g.Headers
		welo, belo sql.NullInt64
		result     string
		treeJSON   string
	)
	err := lib.db.QueryRowContext(ctx, selectGameSQL, id).Scan(&g.ID, &h.Event, &h.Site, &h.Date, &h.Round,
		&h.White, &h.Black, &welo, &belo, &result, &h.TimeControl, &h.ECO, &h.PlyCount, &h.FEN, &treeJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Game{}, nil, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Game{}, nil, fmt.Errorf("get game %d: %w", id, err)
	}
	h.Result = domain.Result(result)
	h.WhiteElo = fromNullInt(welo)
	h.BlackElo = fromNullInt(belo)
	var d tree.Document
	if err := json.Unmarshal([]byte(treeJSON), &d); err != nil {
		return domain.Game{}, nil, fmt.Errorf("decode tree of game %d: %w", id, err)
	}
	t, err := tree.FromDocument(d)
	if err != nil {
		return domain.Game{}, nil, fmt.Errorf("decode tree of game %d: %w", id, err)
	}
	return g, t, nil
}

// GamePGN returns the stored export of a game.
func (lib *Library) GamePGN(ctx context.Context, id int64) (string, error) {
	var text string
	err := lib.db.QueryRowContext(ctx, selectGamePGNSQL, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return text, err
}

// DeleteGame removes a game and its snapshots.
func (lib *Library) DeleteGame(ctx context.Context, id int64) error {
	res, err := lib.db.ExecContext(ctx, deleteGameSQL, id)
	if err != nil {
		return fmt.Errorf("delete game %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListGames returns games, most recently added first.
func (lib *Library) ListGames(ctx context.Context, limit, offset int) ([]GameSummary, error) {
	return lib.SearchGames(ctx, GameQuery{Limit: limit, Offset: offset})
}

// SearchGames returns games matching every set field of q, most recently added first.
func (lib *Library) SearchGames(ctx context.Context, q GameQuery) ([]GameSummary, error) {
	var args []any
	var sb strings.Builder
	sb.WriteString(`SELECT g.id, COALESCE(g.event,''), COALESCE(g.date,''), COALESCE(w.name,''), COALESCE(b.name,''),
	g.result, COALESCE(g.eco,''), g.ply_count
FROM games g
LEFT JOIN players w ON w.id = g.white_id
LEFT JOIN players b ON b.id = g.black_id
`)
	if s := strings.TrimSpace(q.Text); s != "" {
		sb.WriteString("JOIN fts_games ON fts_games.rowid = g.id\nWHERE fts_games MATCH ?\n")
		args = append(args, s)
	} else {
		sb.WriteString("WHERE 1=1\n")
	}
	if s := strings.ToLower(strings.TrimSpace(q.Player)); s != "" {
		sb.WriteString(" AND (lower(w.name) LIKE ? OR lower(b.name) LIKE ?)\n")
		args = append(args, likeContains(s), likeContains(s))
	}
	if s := strings.ToLower(strings.TrimSpace(q.Event)); s != "" {
		sb.WriteString(" AND lower(g.event) LIKE ?\n")
		args = append(args, likeContains(s))
	}
	if s := strings.ToUpper(strings.TrimSpace(q.ECO)); s != "" {
		sb.WriteString(" AND g.eco LIKE ?\n")
		args = append(args, s+"%")
	}
	if q.Result != "" {
		sb.WriteString(" AND g.result = ?\n")
		args = append(args, string(q.Result))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY g.id DESC\nLIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := lib.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search games: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []GameSummary
	for rows.Next() {
		var s GameSummary
		var result string
		if err := rows.Scan(&s.ID, &s.Event, &s.Date, &s.White, &s.Black, &result, &s.ECO, &s.PlyCount); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		s.Result = domain.Result(result)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Players lists every known player by name.
func (lib *Library) Players(ctx context.Context) ([]domain.Player, error) {
	rows, err := lib.db.QueryContext(ctx, listPlayersSQL)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Player
	for rows.Next() {
		var p domain.Player
		var elo sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &elo); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Elo = fromNullInt(elo)
		out = append(out, p)
	}
	return out, rows.Err()
}

// upsertPlayer returns the players row id for name, or nil for unknown players.
func upsertPlayer(ctx context.Context, tx *sql.Tx, name string, elo *int) (any, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "?" {
		return nil, nil
	}
	var id int64
	if err := tx.QueryRowContext(ctx, upsertPlayerSQL, name, nullInt(elo)).Scan(&id); err != nil {
		return nil, fmt.Errorf("upsert player %q: %w", name, err)
	}
	return id, nil
}

func mainLinePlies(n tree.NodeDoc) int {
	plies := 0
	for len(n.Children) > 0 {
		n = n.Children[0]
		plies++
	}
	return plies
}

// searchText is the text indexed by fts_games.
func searchText(h domain.Headers, root tree.NodeDoc) string {
	parts := []string{h.White, h.Black, h.Event, h.Site, h.ECO}
	var walk func(n tree.NodeDoc)
	walk = func(n tree.NodeDoc) {
		parts = append(parts, n.Comments...)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && p != "?" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func nullString(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func likeContains(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "_", "")
	return "%" + s + "%"
}
