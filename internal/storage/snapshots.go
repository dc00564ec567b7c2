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
	"errors"
	"fmt"
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(game_id, ts, tree_blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, tree_blob FROM snapshots WHERE game_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, tree_blob FROM snapshots WHERE game_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE game_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE game_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// snapshotTimeLayout has a fixed width so that ts sorts lexicographically.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is a stored tree state of a game.
type Snapshot struct {
	TS   time.Time
	Blob []byte
}

// SaveSnapshot persists a serialized tree of a game with a timestamp.
func (lib *Library) SaveSnapshot(ctx context.Context, gameID int64, blob []byte, ts time.Time) error {
	if len(blob) == 0 {
		return errors.New("empty snapshot")
	}
	if _, err := lib.db.ExecContext(ctx, insertSnapshotSQL, gameID, ts.UTC().Format(snapshotTimeLayout), blob); err != nil {
		return fmt.Errorf("save snapshot of game %d: %w", gameID, err)
	}
	return nil
}

// GetLatestSnapshot returns the newest snapshot of a game or a nil blob if none.
func (lib *Library) GetLatestSnapshot(ctx context.Context, gameID int64) ([]byte, time.Time, error) {
	var tsStr string
	var blob []byte
	err := lib.db.QueryRowContext(ctx, selectLatestSnapshotSQL, gameID).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	ts, err := time.Parse(snapshotTimeLayout, tsStr)
	if err != nil {
		return blob, time.Time{}, nil // return blob even if ts parse fails
	}
	return blob, ts, nil
}

// ListSnapshots returns up to limit most recent snapshots of a game.
func (lib *Library) ListSnapshots(ctx context.Context, gameID int64, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := lib.db.QueryContext(ctx, listSnapshotsSQL, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr string
		var s Snapshot
		if err := rows.Scan(&tsStr, &s.Blob); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(snapshotTimeLayout, tsStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots of the game and deletes older ones.
func (lib *Library) PruneOldSnapshots(ctx context.Context, gameID int64, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := lib.db.ExecContext(ctx, pruneOldSnapshotsSQL, gameID, gameID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
