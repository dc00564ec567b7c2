/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pgn

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/tree"
)

// LineWidth is the column limit of exported movetext.
const LineWidth = 80

// Game is one parsed game record.
type Game struct {
	Headers domain.Headers
	Tree    *tree.Tree
}

var reTag = regexp.MustCompile(`^\[\s*([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]$`)

// ParseGame reads a single game: tag pairs followed by movetext. A FEN tag roots the
// tree at that position. A result in the movetext overrides the Result tag.
func ParseGame(text string) (Game, error) {
	h := domain.DefaultHeaders()
	var movetext strings.Builder
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	inTags := true
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trim := strings.TrimSpace(line)
		if inTags {
			if trim == "" {
				continue
			}
			if m := reTag.FindStringSubmatch(trim); m != nil {
				setTag(&h, m[1], unescapeTag(m[2]))
				continue
			}
			if strings.HasPrefix(trim, "[") {
				return Game{}, newParseError(lineNo, 1, "malformed tag pair %q", trim)
			}
			inTags = false
			// keep movetext line numbers aligned with the source
			movetext.WriteString(strings.Repeat("\n", lineNo-1))
		}
		movetext.WriteString(line)
		movetext.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return Game{}, err
	}

	t := tree.NewFromFEN(h.FEN)
	res, err := ParseInto(t, movetext.String())
	if err != nil {
		return Game{}, err
	}
	if res != "" {
		h.Result = res
	}
	return Game{Headers: h, Tree: t}, nil
}

// SplitGames cuts a multi-game PGN file into single-game chunks. A new game starts
// at a tag line that follows movetext.
func SplitGames(text string) []string {
	var (
		games   []string
		cur     strings.Builder
		hasMove bool
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "[") && hasMove {
			games = append(games, cur.String())
			cur.Reset()
			hasMove = false
		}
		if trim != "" && !strings.HasPrefix(trim, "[") {
			hasMove = true
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if strings.TrimSpace(cur.String()) != "" {
		games = append(games, cur.String())
	}
	return games
}

// ParseAll parses every game in text. It stops at the first malformed game.
func ParseAll(text string) ([]Game, error) {
	var out []Game
	for _, chunk := range SplitGames(text) {
		g, err := ParseGame(chunk)
		if err != nil {
			return out, err
		}
		out = append(out, g)
	}
	return out, nil
}

func setTag(h *domain.Headers, name, value string) {
	switch name {
	case "Event":
		h.Event = value
	case "Site":
		h.Site = value
	case "Date":
		h.Date = value
	case "Round":
		h.Round = value
	case "White":
		h.White = value
	case "Black":
		h.Black = value
	case "Result":
		if r, ok := domain.ParseResult(value); ok {
			h.Result = r
		}
	case "WhiteElo":
		h.WhiteElo = parseElo(value)
	case "BlackElo":
		h.BlackElo = parseElo(value)
	case "ECO":
		h.ECO = value
	case "TimeControl":
		h.TimeControl = value
	case "FEN":
		h.FEN = value
	case "PlyCount":
		if n, err := strconv.Atoi(value); err == nil {
			h.PlyCount = n
		}
	}
}

func parseElo(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func unescapeTag(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}

func escapeTag(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Export writes a complete game record: the tag section, a blank line, the movetext
// wrapped at LineWidth and the result terminator. PlyCount is taken from the main
// line of t.
func Export(h domain.Headers, t *tree.Tree, opts Options) string {
	var (
		movetext string
		plies    int
		fen      string
	)
	t.View(func(v tree.View) {
		movetext = RenderView(v, v.Root(), opts)
		plies = len(v.MainLine(v.Root()))
		fen = v.StartFEN()
	})
	if h.Result == "" {
		h.Result = domain.ResultUnknown
	}

	var sb strings.Builder
	tag := func(name, value string) {
		sb.WriteString("[" + name + " \"" + escapeTag(value) + "\"]\n")
	}
	tag("Event", h.Event)
	tag("Site", h.Site)
	tag("Date", h.Date)
	tag("Round", h.Round)
	tag("White", h.White)
	tag("Black", h.Black)
	tag("Result", string(h.Result))
	if h.WhiteElo != nil {
		tag("WhiteElo", strconv.Itoa(*h.WhiteElo))
	}
	if h.BlackElo != nil {
		tag("BlackElo", strconv.Itoa(*h.BlackElo))
	}
	if h.ECO != "" {
		tag("ECO", h.ECO)
	}
	if h.TimeControl != "" {
		tag("TimeControl", h.TimeControl)
	}
	if fen != domain.StartFEN {
		tag("SetUp", "1")
		tag("FEN", fen)
	}
	tag("PlyCount", strconv.Itoa(plies))
	sb.WriteByte('\n')

	body := string(h.Result)
	if movetext != "" {
		body = movetext + " " + body
	}
	sb.WriteString(Wrap(body, LineWidth))
	sb.WriteByte('\n')
	return sb.String()
}

// Wrap breaks s at spaces so that no line exceeds width where possible. Spaces
// inside comments are not used as break points, so comment text survives a
// re-import unchanged. A single token longer than width stays on its own line.
func Wrap(s string, width int) string {
	var (
		out      strings.Builder
		lineLen  int
		depth    int
		tokStart int
	)
	flush := func(tok string) {
		n := len([]rune(tok))
		switch {
		case lineLen == 0:
		case lineLen+1+n > width:
			out.WriteByte('\n')
			lineLen = 0
		default:
			out.WriteByte(' ')
			lineLen++
		}
		out.WriteString(tok)
		lineLen += n
	}
	for i, r := range s {
		switch {
		case r == '{':
			depth++
		case r == '}' && depth > 0:
			depth--
		case r == ' ' && depth == 0:
			if i > tokStart {
				flush(s[tokStart:i])
			}
			tokStart = i + 1
		}
	}
	if tokStart < len(s) {
		flush(s[tokStart:])
	}
	return out.String()
}
