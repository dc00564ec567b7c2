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
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gochessstudio/internal/domain"
)

func TestExportDiagramPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "png", "start.png")
	if err := ExportDiagramPNG(domain.StartFEN, out, DiagramOptions{SquareSize: 32, Coordinates: true}); err != nil {
		t.Fatalf("export png: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := max(32/3, 14)
	if got, want := img.Bounds().Dx(), 8*32+2*m; got != want {
		t.Fatalf("width: got %d want %d", got, want)
	}
}

func TestRenderDiagramSquareColors(t *testing.T) {
	opt := DiagramOptions{SquareSize: 10}
	img, err := RenderDiagram("8/8/8/8/8/8/8/8 w - - 0 1", opt)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	opt = opt.withDefaults()
	// a8 is light, h1 is light, a1 is dark
	for _, tc := range []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"a8", 5, 5, opt.Light},
		{"h1", 75, 75, opt.Light},
		{"a1", 5, 75, opt.Dark},
	} {
		if got := img.RGBAAt(tc.x, tc.y); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}

	flipped, err := RenderDiagram("8/8/8/8/8/8/8/8 w - - 0 1", DiagramOptions{SquareSize: 10, Flip: true})
	if err != nil {
		t.Fatalf("render flipped: %v", err)
	}
	// top-left is h1 when flipped, still light
	if got := flipped.RGBAAt(5, 5); got != opt.Light {
		t.Fatalf("flipped h1: got %v", got)
	}
}

func TestRenderDiagramRejectsBadFEN(t *testing.T) {
	if _, err := RenderDiagram("not a fen", DiagramOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExportDiagramSVG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "svg", "start.svg")
	if err := ExportDiagramSVG(domain.StartFEN, out, DiagramOptions{Coordinates: true, Flip: true}); err != nil {
		t.Fatalf("export svg: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "<?xml") || !strings.HasSuffix(s, "</svg>\n") {
		t.Fatalf("not an svg document")
	}
	if n := strings.Count(s, "♟"); n != 8 {
		t.Fatalf("black pawns: got %d want 8", n)
	}
	if n := strings.Count(s, "♔"); n != 1 {
		t.Fatalf("white king: got %d want 1", n)
	}
}
