/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pgn

import (
	"fmt"
	"strconv"
	"strings"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/tree"
)

// Render writes the movetext of the subtree rooted at from. When from is the root
// its comments come first; otherwise the rendering starts with from's own move.
// No result terminator is appended. A handle foreign to t fails with
// tree.ErrInvalidOperation.
func Render(t *tree.Tree, from tree.Ref, opts Options) (string, error) {
	var (
		out string
		err error
	)
	t.View(func(v tree.View) {
		if !v.Contains(from) {
			err = fmt.Errorf("%w: render from %s", tree.ErrInvalidOperation, from)
			return
		}
		out = RenderView(v, from, opts)
	})
	return out, err
}

// RenderTop renders the whole game from its top variation.
func RenderTop(t *tree.Tree, opts Options) string {
	var out string
	t.View(func(v tree.View) { out = RenderView(v, v.Root(), opts) })
	return out
}

// RenderView is Render for callers already inside Tree.View.
func RenderView(v tree.View, from tree.Ref, opts Options) string {
	r := renderer{v: v, opts: opts}
	if v.IsRoot(from) {
		r.comments(from)
		r.line(from, true)
	} else {
		force := r.move(from, true)
		r.line(from, force)
	}
	return r.String()
}

type renderer struct {
	v    tree.View
	opts Options
	sb   strings.Builder
	open bool // last write was "(" so the next token attaches without a space
}

func (r *renderer) String() string { return r.sb.String() }

func (r *renderer) token(s string) {
	if r.sb.Len() > 0 && !r.open {
		r.sb.WriteByte(' ')
	}
	r.sb.WriteString(s)
	r.open = false
}

// line follows the main line below parent. force requests a move number before
// the next move even when Black is to play.
func (r *renderer) line(parent tree.Ref, force bool) {
	for {
		children := r.v.Children(parent)
		if len(children) == 0 {
			return
		}
		main := children[0]
		force = r.move(main, force)
		if r.opts.Variations && len(children) > 1 {
			for _, alt := range children[1:] {
				r.token("(")
				r.open = true
				r.line(alt, r.move(alt, true))
				r.sb.WriteByte(')')
			}
			force = true
		}
		parent = main
	}
}

// move writes one ply with its annotations and reports whether the following
// move needs its number repeated.
func (r *renderer) move(n tree.Ref, force bool) bool {
	m, _ := r.v.Move(n)
	num, white := r.v.MoveNumber(n)
	switch {
	case white:
		r.token(strconv.Itoa(num) + ".")
	case force:
		r.token(strconv.Itoa(num) + "...")
	}

	san := m.SAN
	var rest []string
	for _, code := range r.v.Symbols(n) {
		g, ok := domain.LookupNAG(code)
		if !ok {
			continue
		}
		switch {
		case r.opts.Symbols && g.Informal():
			// only a leading move glyph attaches; "!" followed by "?" would read as "!?"
			if g.Class == domain.GlyphMove && san == m.SAN && len(rest) == 0 {
				san += g.Text
			} else {
				rest = append(rest, g.Text)
			}
		case r.opts.SpecialSymbols:
			rest = append(rest, code.Dollar())
		}
	}
	r.token(san)
	for _, s := range rest {
		r.token(s)
	}
	return r.comments(n)
}

func (r *renderer) comments(n tree.Ref) bool {
	if !r.opts.Comments {
		return false
	}
	cs := r.v.Comments(n)
	for _, c := range cs {
		r.token("{" + c + "}")
	}
	return len(cs) > 0
}
