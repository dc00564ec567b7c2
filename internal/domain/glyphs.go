/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strconv"
	"strings"
)

// NAG is a Numeric Annotation Glyph code ($n in PGN).
type NAG uint8

// GlyphClass tells how a glyph is written in movetext.
// Move glyphs judge the move itself and attach to it ("e4!").
// Position glyphs assess the resulting position and stand alone ("e4 ±").
// Numeric glyphs have no portable text form and are only written as $n.
type GlyphClass int

const (
	GlyphMove GlyphClass = iota
	GlyphPosition
	GlyphNumeric
)

// Informal reports whether g has a textual form usable in movetext.
func (g Glyph) Informal() bool { return g.Class != GlyphNumeric }

// Glyph is one entry of the fixed annotation table.
type Glyph struct {
	NAG   NAG
	Text  string
	Name  string
	Class GlyphClass
}

// Glyphs is the table of annotation codes the editor understands, ordered by NAG.
var Glyphs = []Glyph{
	{1, "!", "Good move", GlyphMove},
	{2, "?", "Mistake", GlyphMove},
	{3, "!!", "Brilliant move", GlyphMove},
	{4, "??", "Blunder", GlyphMove},
	{5, "!?", "Interesting move", GlyphMove},
	{6, "?!", "Dubious move", GlyphMove},
	{7, "□", "Only move", GlyphMove},
	{10, "=", "Equal position", GlyphPosition},
	{13, "∞", "Unclear position", GlyphPosition},
	{14, "⩲", "White is slightly better", GlyphPosition},
	{15, "⩱", "Black is slightly better", GlyphPosition},
	{16, "±", "White is better", GlyphPosition},
	{17, "∓", "Black is better", GlyphPosition},
	{18, "+−", "White is winning", GlyphPosition},
	{19, "−+", "Black is winning", GlyphPosition},
	{22, "⨀", "Zugzwang", GlyphNumeric},
	{32, "⟳", "Development", GlyphNumeric},
	{36, "→", "Initiative", GlyphNumeric},
	{40, "↑", "Attack", GlyphNumeric},
	{132, "⇆", "Counterplay", GlyphNumeric},
	{138, "⊕", "Time trouble", GlyphNumeric},
	{146, "N", "Novelty", GlyphNumeric},
}

var (
	glyphByNAG  = map[NAG]Glyph{}
	glyphByText = map[string]Glyph{}
)

func init() {
	for _, g := range Glyphs {
		glyphByNAG[g.NAG] = g
		glyphByText[g.Text] = g
	}
	// ASCII spellings annotators type instead of the unicode glyphs
	for text, n := range map[string]NAG{"+-": 18, "-+": 19, "+=": 14, "=+": 15, "+/-": 16, "-/+": 17} {
		glyphByText[text] = glyphByNAG[n]
	}
}

// LookupNAG returns the table entry for n.
func LookupNAG(n NAG) (Glyph, bool) {
	g, ok := glyphByNAG[n]
	return g, ok
}

// ParseGlyph accepts either a glyph ("!?", "±") or its numeric form ("$5").
// Numeric codes outside the table are rejected.
func ParseGlyph(s string) (Glyph, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "$") {
		v, err := strconv.Atoi(s[1:])
		if err != nil || v < 0 || v > 255 {
			return Glyph{}, false
		}
		return LookupNAG(NAG(v))
	}
	g, ok := glyphByText[s]
	return g, ok
}

// Dollar returns the $n spelling.
func (n NAG) Dollar() string { return "$" + strconv.Itoa(int(n)) }
