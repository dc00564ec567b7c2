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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DiagramOptions controls board diagram rendering.
//   - SquareSize is the edge of one square in pixels (PNG) or user units (SVG); 0 means 48.
//   - Flip draws the board from Black's side.
//   - Coordinates adds file letters and rank numbers in a margin.
//   - Light and Dark are the square colors; zero values get a classic brown theme.
type DiagramOptions struct {
	SquareSize  int
	Flip        bool
	Coordinates bool
	Light       color.RGBA
	Dark        color.RGBA
}

func (o DiagramOptions) withDefaults() DiagramOptions {
	if o.SquareSize <= 0 {
		o.SquareSize = 48
	}
	if o.Light == (color.RGBA{}) {
		o.Light = color.RGBA{R: 240, G: 217, B: 181, A: 255}
	}
	if o.Dark == (color.RGBA{}) {
		o.Dark = color.RGBA{R: 181, G: 136, B: 99, A: 255}
	}
	return o
}

func (o DiagramOptions) margin() int {
	if o.Coordinates {
		return max(o.SquareSize/3, 14)
	}
	return 0
}

// square returns the board indices drawn at screen row/column.
func (o DiagramOptions) square(row, col int) (int, int) {
	if o.Flip {
		return 7 - row, 7 - col
	}
	return row, col
}

// RenderDiagram draws the position of fen.
func RenderDiagram(fen string, opt DiagramOptions) (*image.RGBA, error) {
	b, err := ParseBoard(fen)
	if err != nil {
		return nil, err
	}
	opt = opt.withDefaults()
	sq, m := opt.SquareSize, opt.margin()
	size := 8*sq + 2*m
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			r, f := opt.square(row, col)
			c := opt.Light
			if (r+f)%2 == 1 {
				c = opt.Dark
			}
			x0, y0 := m+col*sq, m+row*sq
			fillRect(img, x0, y0, x0+sq-1, y0+sq-1, c)
			if p := b[r][f]; p != 0 {
				drawPiece(img, x0, y0, sq, p)
			}
		}
	}
	black := color.RGBA{A: 255}
	strokeRect(img, m, m, m+8*sq-1, m+8*sq-1, black)

	if opt.Coordinates {
		for i := 0; i < 8; i++ {
			r, f := opt.square(i, i)
			drawLabel(img, m+i*sq+sq/2, size-m/2, string(rune('a'+f)), black)
			drawLabel(img, m/2, m+i*sq+sq/2, string(rune('8'-r)), black)
		}
	}
	return img, nil
}

// ExportDiagramPNG writes the position of fen as a PNG to out, creating parent
// directories.
func ExportDiagramPNG(fen, out string, opt DiagramOptions) error {
	img, err := RenderDiagram(fen, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// drawPiece draws a disc in the piece's color with its letter on top.
func drawPiece(img *image.RGBA, x0, y0, sq int, p byte) {
	fill, ink := color.RGBA{250, 250, 250, 255}, color.RGBA{A: 255}
	if p >= 'a' && p <= 'z' {
		fill, ink = color.RGBA{30, 30, 30, 255}, color.RGBA{250, 250, 250, 255}
	}
	cx, cy := x0+sq/2, y0+sq/2
	rad := sq * 3 / 8
	fillDisc(img, cx, cy, rad, color.RGBA{A: 255})
	fillDisc(img, cx, cy, rad-1, fill)
	upper := p
	if upper >= 'a' {
		upper -= 'a' - 'A'
	}
	drawLabel(img, cx, cy, string(rune(upper)), ink)
}

// drawLabel centers s on (cx, cy) using the 7x13 bitmap face.
func drawLabel(img *image.RGBA, cx, cy int, s string, col color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	w := d.MeasureString(s).Round()
	met := face.Metrics()
	h := (met.Ascent + met.Descent).Round()
	d.Dot = fixed.P(cx-w/2, cy-h/2+met.Ascent.Round())
	d.DrawString(s)
}

func fillDisc(img *image.RGBA, cx, cy, r int, col color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.SetRGBA(cx+x, cy+y, col)
			}
		}
	}
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	// top and bottom
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	// left and right
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
