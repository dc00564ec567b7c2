/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// This file defines the core data model structures for Go Chess Studio.
// Moves arrive already validated by the rules layer; nothing here checks legality.

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Move describes one ply. SAN is the text written to PGN; From/To/Promotion are the
// square data needed to tell two moves apart when SAN alone is ambiguous (e.g. after
// an import where SAN was normalised differently). FEN is the position after the move.
type Move struct {
	SAN       string `json:"san"`
	From      string `json:"from,omitempty"`      // e.g. "e2"
	To        string `json:"to,omitempty"`        // e.g. "e4"
	Promotion string `json:"promotion,omitempty"` // "q", "r", "b", "n"
	FEN       string `json:"fen,omitempty"`
}

// UCI returns the long algebraic form or "" when square data is missing.
func (m Move) UCI() string {
	if m.From == "" || m.To == "" {
		return ""
	}
	return m.From + m.To + strings.ToLower(m.Promotion)
}

// Equal reports whether two descriptors denote the same move.
// Square data wins when both sides carry it.
func (m Move) Equal(o Move) bool {
	if a, b := m.UCI(), o.UCI(); a != "" && b != "" {
		return a == b
	}
	return m.SAN == o.SAN
}

// Valid reports whether the descriptor is structurally usable.
func (m Move) Valid() bool {
	return strings.TrimSpace(m.SAN) != ""
}

// Result is the PGN game termination marker.
type Result string

const (
	ResultWhite   Result = "1-0"
	ResultBlack   Result = "0-1"
	ResultDraw    Result = "1/2-1/2"
	ResultUnknown Result = "*"
)

// ParseResult maps a token to a Result; ok is false for anything else.
func ParseResult(s string) (Result, bool) {
	switch Result(strings.TrimSpace(s)) {
	case ResultWhite:
		return ResultWhite, true
	case ResultBlack:
		return ResultBlack, true
	case ResultDraw:
		return ResultDraw, true
	case ResultUnknown:
		return ResultUnknown, true
	}
	return "", false
}

// Player mirrors the players table of the game library.
type Player struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Elo  *int   `json:"elo,omitempty"`
}

// Headers holds the tag section of a game: the Seven Tag Roster plus the optional
// tags the library indexes.
type Headers struct {
	Event       string `json:"event"`
	Site        string `json:"site"`
	Date        string `json:"date"` // YYYY.MM.DD, "?" for unknown parts
	Round       string `json:"round"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Result      Result `json:"result"`
	WhiteElo    *int   `json:"whiteElo,omitempty"`
	BlackElo    *int   `json:"blackElo,omitempty"`
	ECO         string `json:"eco,omitempty"`
	TimeControl string `json:"timeControl,omitempty"`
	FEN         string `json:"fen,omitempty"` // set when the game does not start from StartFEN
	PlyCount    int    `json:"plyCount,omitempty"`
}

// DefaultHeaders returns headers with PGN's "unknown" placeholders filled in.
func DefaultHeaders() Headers {
	return Headers{
		Event:  "?",
		Site:   "?",
		Date:   "????.??.??",
		Round:  "?",
		White:  "?",
		Black:  "?",
		Result: ResultUnknown,
	}
}

// Game is a stored game record; the move tree travels next to it.
type Game struct {
	ID      int64   `json:"id,omitempty"`
	Headers Headers `json:"headers"`
}

// Engine is an installed or downloadable chess engine. Path is the executable; for
// catalog entries it is relative to the engines directory the archive unpacks into.
type Engine struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	Path         string `json:"path" yaml:"path"`
	Image        string `json:"image,omitempty" yaml:"image,omitempty"`
	Elo          *int   `json:"elo,omitempty" yaml:"elo,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty" yaml:"-"`
	DownloadSize int64  `json:"downloadSize,omitempty" yaml:"-"`
}
