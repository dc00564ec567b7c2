/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders games to printable and shareable formats: PDF score sheets
// and board diagrams as PNG or SVG.
package export

import (
	"errors"
	"fmt"
	"strings"

	"gochessstudio/internal/tree"
)

// ErrBadFEN is returned when a FEN piece-placement field cannot be read.
var ErrBadFEN = errors.New("bad FEN")

// Board is the piece placement of a position: rows run from rank 8 down to rank 1,
// columns from file a to h. Empty squares are 0, pieces use FEN letters.
type Board [8][8]byte

// ParseBoard reads the piece-placement field of fen. The remaining fields are ignored.
func ParseBoard(fen string) (Board, error) {
	var b Board
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return b, fmt.Errorf("%w: empty", ErrBadFEN)
	}
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return b, fmt.Errorf("%w: want 8 ranks, got %d", ErrBadFEN, len(ranks))
	}
	for r, rank := range ranks {
		f := 0
		for i := 0; i < len(rank); i++ {
			c := rank[i]
			switch {
			case c >= '1' && c <= '8':
				f += int(c - '0')
			case strings.IndexByte("pnbrqkPNBRQK", c) >= 0:
				if f < 8 {
					b[r][f] = c
				}
				f++
			default:
				return b, fmt.Errorf("%w: unexpected %q in rank %d", ErrBadFEN, c, 8-r)
			}
			if f > 8 {
				return b, fmt.Errorf("%w: rank %d overflows", ErrBadFEN, 8-r)
			}
		}
		if f != 8 {
			return b, fmt.Errorf("%w: rank %d has %d files", ErrBadFEN, 8-r, f)
		}
	}
	return b, nil
}

// FinalPosition returns the position after the last main-line move that carries a
// FEN, with a caption such as "After 12... Qd7". Games without board data give the
// start position.
func FinalPosition(t *tree.Tree) (fen, caption string) {
	t.View(func(v tree.View) {
		end := v.Root()
		if line := v.MainLine(end); len(line) > 0 {
			end = line[len(line)-1]
		}
		fen, caption = PositionAt(v, end)
	})
	return fen, caption
}

// PositionAt is FinalPosition for an arbitrary node: the nearest move on r's path
// that carries a FEN decides the board.
func PositionAt(v tree.View, r tree.Ref) (fen, caption string) {
	path := v.Path(r)
	for i := len(path) - 1; i >= 0; i-- {
		m, ok := v.Move(path[i])
		if !ok || m.FEN == "" {
			continue
		}
		n, white := v.MoveNumber(path[i])
		dots := "."
		if !white {
			dots = "..."
		}
		return m.FEN, fmt.Sprintf("After %d%s %s", n, dots, m.SAN)
	}
	return v.StartFEN(), "Start position"
}
