/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
)

// pieceGlyphs maps FEN letters to the Unicode chess symbols used in SVG diagrams.
var pieceGlyphs = map[byte]string{
	'K': "♔", 'Q': "♕", 'R': "♖", 'B': "♗", 'N': "♘", 'P': "♙",
	'k': "♚", 'q': "♛", 'r': "♜", 'b': "♝", 'n': "♞", 'p': "♟",
}

// DiagramSVG renders the position of fen as a standalone SVG document.
func DiagramSVG(fen string, opt DiagramOptions) ([]byte, error) {
	b, err := ParseBoard(fen)
	if err != nil {
		return nil, err
	}
	opt = opt.withDefaults()
	sq, m := opt.SquareSize, opt.margin()
	size := 8*sq + 2*m

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", size, size, size, size)
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"#ffffff\"/>\n", size, size)

	light, dark := svgColor(opt.Light), svgColor(opt.Dark)
	fontSize := float64(sq) * 0.8
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			r, f := opt.square(row, col)
			fill := light
			if (r+f)%2 == 1 {
				fill = dark
			}
			x, y := m+col*sq, m+row*sq
			wf("  <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"%s\"/>\n", x, y, sq, sq, fill)
			if g, ok := pieceGlyphs[b[r][f]]; ok {
				wf("  <text x=\"%g\" y=\"%g\" font-size=\"%g\" text-anchor=\"middle\" dominant-baseline=\"central\">%s</text>\n",
					float64(x)+float64(sq)/2, float64(y)+float64(sq)/2, fontSize, escText(g))
			}
		}
	}
	wf("  <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"none\" stroke=\"#000000\" stroke-width=\"1\"/>\n", m, m, 8*sq, 8*sq)

	if opt.Coordinates {
		for i := 0; i < 8; i++ {
			r, f := opt.square(i, i)
			wf("  <text x=\"%d\" y=\"%d\" font-family=\"%s\" font-size=\"%d\" text-anchor=\"middle\">%c</text>\n",
				m+i*sq+sq/2, size-m/4, escAttr("Helvetica, Arial, sans-serif"), m*2/3, 'a'+f)
			wf("  <text x=\"%d\" y=\"%d\" font-family=\"%s\" font-size=\"%d\" text-anchor=\"middle\" dominant-baseline=\"central\">%c</text>\n",
				m/2, m+i*sq+sq/2, escAttr("Helvetica, Arial, sans-serif"), m*2/3, '8'-r)
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// ExportDiagramSVG writes the position of fen as an SVG file to out.
func ExportDiagramSVG(fen, out string, opt DiagramOptions) error {
	b, err := DiagramSVG(fen, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	// naive escaping sufficient for our simple usage
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
