/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gochessstudio/internal/pgn"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of several games.
//
// Path semantics:
//   - OutDir is required; outputs go to <OutDir>/<format>/game-<n>.<ext> with n
//     counting from 1 in input order.
//   - Diagram formats (png, svg) draw the final recorded position of each game.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, png, svg, pgn; empty means preset defaults
	Games   []int    // zero-based indices; empty means all games
	OutDir  string
	PGN     *pgn.Options // when set, overrides the preset's annotation classes
	Flip    bool
}

// BatchExport runs exports according to the given preset and returns the written files.
func BatchExport(games []pgn.Game, opt BatchOptions) ([]string, error) {
	if len(games) == 0 {
		return nil, fmt.Errorf("no games to export")
	}
	if strings.TrimSpace(opt.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	// normalize format strings
	norm := make([]string, 0, len(formats))
	for _, f := range formats {
		norm = append(norm, strings.ToLower(strings.TrimSpace(f)))
	}

	pgnOpts := presetPGNOptions(opt.Preset)
	if opt.PGN != nil {
		pgnOpts = *opt.PGN
	}

	idx := opt.Games
	if len(idx) == 0 {
		idx = make([]int, len(games))
		for i := range idx {
			idx[i] = i
		}
	}

	var written []string
	for _, gi := range idx {
		if gi < 0 || gi >= len(games) {
			continue
		}
		g := games[gi]
		for _, f := range norm {
			out := filepath.Join(opt.OutDir, f, fmt.Sprintf("game-%d.%s", gi+1, f))
			var err error
			switch f {
			case "pdf":
				err = ExportGamePDF(g.Headers, g.Tree, out, PDFOptions{PGN: pgnOpts, Diagram: opt.Preset == PresetPrint, Flip: opt.Flip})
			case "png":
				fen, _ := FinalPosition(g.Tree)
				err = ExportDiagramPNG(fen, out, DiagramOptions{Flip: opt.Flip, Coordinates: true})
			case "svg":
				fen, _ := FinalPosition(g.Tree)
				err = ExportDiagramSVG(fen, out, DiagramOptions{Flip: opt.Flip, Coordinates: true})
			case "pgn":
				err = writePGN(out, pgn.Export(g.Headers, g.Tree, pgnOpts))
			default:
				return written, fmt.Errorf("unknown format: %s", f)
			}
			if err != nil {
				return written, fmt.Errorf("%s game %d: %w", f, gi+1, err)
			}
			written = append(written, out)
		}
	}
	return written, nil
}

func writePGN(out, text string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"pgn", "png", "svg"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pgn"}
	}
}

// presetPGNOptions returns the annotation classes a preset writes. Print drops
// numeric NAGs.
func presetPGNOptions(p PresetName) pgn.Options {
	switch p {
	case PresetPrint:
		return pgn.DefaultOptions()
	default:
		return pgn.AllOptions()
	}
}
