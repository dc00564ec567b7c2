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

	"github.com/jung-kurt/gofpdf"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/tree"
)

// PDFOptions controls game PDF export.
// Units are points. Built-in Helvetica keeps text vector without embedding fonts.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	PageSize string      // "A4" (default) or "Letter"
	PGN      pgn.Options // annotation classes included in the movetext
	Diagram  bool        // add a diagram of the final recorded position
	Flip     bool        // draw the diagram from Black's side
}

// ExportGamePDF writes a score sheet for one game to outPath: a header block, the
// movetext and optionally a diagram of the final position.
func ExportGamePDF(h domain.Headers, t *tree.Tree, outPath string, opt PDFOptions) error {
	if t == nil {
		return fmt.Errorf("game tree is nil")
	}
	size := "A4"
	if strings.EqualFold(opt.PageSize, "letter") {
		size = "Letter"
	}
	pdf := gofpdf.New("P", "pt", size, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("%s - %s", orUnknown(h.White), orUnknown(h.Black))
	pdf.SetTitle(tr(title), false)
	pdf.SetAuthor("GoChessStudio", false)
	pdf.SetMargins(56, 56, 56)
	pdf.SetAutoPageBreak(true, 56)
	pdf.AddPage()

	// Header block
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 22, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range headerLines(h) {
		pdf.CellFormat(0, 14, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	y := pdf.GetY()
	pdf.SetLineWidth(0.5)
	pdf.Line(left, y, pageW-right, y)
	pdf.Ln(10)

	// Movetext
	var movetext string
	t.View(func(v tree.View) { movetext = pgn.RenderView(v, v.Root(), opt.PGN) })
	if movetext == "" {
		movetext = string(h.Result)
	} else if h.Result != "" {
		movetext += " " + string(h.Result)
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 15, tr(movetext), "", "L", false)

	if opt.Diagram {
		fen, caption := FinalPosition(t)
		b, err := ParseBoard(fen)
		if err != nil {
			return fmt.Errorf("diagram: %w", err)
		}
		const sq = 24.0
		if pdf.GetY()+8*sq+40 > pdfPageHeight(pdf) {
			pdf.AddPage()
		}
		pdf.Ln(16)
		top := pdf.GetY()
		drawPDFBoard(pdf, left, top, sq, b, opt.Flip)
		pdf.SetXY(left, top+8*sq+6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(8*sq, 14, tr(caption), "", 1, "C", false, 0, "")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func headerLines(h domain.Headers) []string {
	var out []string
	event := orUnknown(h.Event)
	if h.Round != "" && h.Round != "?" {
		event += ", round " + h.Round
	}
	out = append(out, event)
	var where []string
	if h.Site != "" && h.Site != "?" {
		where = append(where, h.Site)
	}
	if h.Date != "" && h.Date != "????.??.??" {
		where = append(where, h.Date)
	}
	if len(where) > 0 {
		out = append(out, strings.Join(where, ", "))
	}
	var extra []string
	if h.WhiteElo != nil || h.BlackElo != nil {
		extra = append(extra, fmt.Sprintf("Elo %s / %s", eloString(h.WhiteElo), eloString(h.BlackElo)))
	}
	if h.ECO != "" {
		extra = append(extra, "ECO "+h.ECO)
	}
	if h.TimeControl != "" {
		extra = append(extra, "Time control "+h.TimeControl)
	}
	if h.Result != "" {
		extra = append(extra, "Result "+string(h.Result))
	}
	if len(extra) > 0 {
		out = append(out, strings.Join(extra, "   "))
	}
	return out
}

func drawPDFBoard(pdf *gofpdf.Fpdf, x, y, sq float64, b Board, flip bool) {
	opt := DiagramOptions{Flip: flip}.withDefaults()
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", sq*0.55)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			r, f := opt.square(row, col)
			c := opt.Light
			if (r+f)%2 == 1 {
				c = opt.Dark
			}
			sx, sy := x+float64(col)*sq, y+float64(row)*sq
			pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
			pdf.Rect(sx, sy, sq, sq, "F")
			p := b[r][f]
			if p == 0 {
				continue
			}
			if p >= 'a' && p <= 'z' {
				pdf.SetFillColor(30, 30, 30)
				pdf.SetTextColor(250, 250, 250)
				p -= 'a' - 'A'
			} else {
				pdf.SetFillColor(250, 250, 250)
				pdf.SetTextColor(0, 0, 0)
			}
			pdf.Circle(sx+sq/2, sy+sq/2, sq*0.38, "FD")
			pdf.SetXY(sx, sy)
			pdf.CellFormat(sq, sq, string(rune(p)), "", 0, "C", false, 0, "")
		}
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Rect(x, y, 8*sq, 8*sq, "D")
}

func pdfPageHeight(pdf *gofpdf.Fpdf) float64 {
	_, h := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	return h - bottom
}

func eloString(e *int) string {
	if e == nil {
		return "-"
	}
	return fmt.Sprint(*e)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}
