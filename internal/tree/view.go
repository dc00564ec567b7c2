/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import "gochessstudio/internal/domain"

// View is a read-only accessor valid only inside the callback passed to Tree.View.
// Methods given a foreign or deleted handle return zero values.
type View struct{ t *Tree }

// View runs fn with the read lock held. fn must not call mutators on the same tree.
func (t *Tree) View(fn func(v View)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(View{t: t})
}

func (v View) id(r Ref) (int32, bool) {
	id, err := v.t.resolve(r)
	return id, err == nil
}

// Root returns the root node.
func (v View) Root() Ref { return v.t.ref(rootID) }

// Cursor returns the cursor node.
func (v View) Cursor() Ref { return v.t.ref(v.t.cursor) }

// StartFEN returns the position of the root.
func (v View) StartFEN() string { return v.t.startFEN }

// Contains reports whether r is a live node of this tree.
func (v View) Contains(r Ref) bool {
	_, ok := v.id(r)
	return ok
}

// IsRoot reports whether r is the root.
func (v View) IsRoot(r Ref) bool {
	id, ok := v.id(r)
	return ok && id == rootID
}

// Parent returns r's parent; ok is false for the root.
func (v View) Parent(r Ref) (Ref, bool) {
	id, ok := v.id(r)
	if !ok || v.t.nodes[id].parent == noNode {
		return Ref{}, false
	}
	return v.t.ref(v.t.nodes[id].parent), true
}

// Children returns r's children, main line first.
func (v View) Children(r Ref) []Ref {
	id, ok := v.id(r)
	if !ok {
		return nil
	}
	cs := v.t.nodes[id].children
	out := make([]Ref, len(cs))
	for i, c := range cs {
		out[i] = v.t.ref(c)
	}
	return out
}

// Move returns the move that reached r; ok is false for the root.
func (v View) Move(r Ref) (domain.Move, bool) {
	id, ok := v.id(r)
	if !ok || v.t.nodes[id].move == nil {
		return domain.Move{}, false
	}
	return *v.t.nodes[id].move, true
}

// Comments returns a copy of r's comments.
func (v View) Comments(r Ref) []string {
	id, ok := v.id(r)
	if !ok {
		return nil
	}
	return append([]string(nil), v.t.nodes[id].comments...)
}

// Symbols returns a copy of r's glyphs in insertion order.
func (v View) Symbols(r Ref) []domain.NAG {
	id, ok := v.id(r)
	if !ok {
		return nil
	}
	return append([]domain.NAG(nil), v.t.nodes[id].symbols...)
}

// Ply returns the zero-based half-move index of the move that reached r.
// For the root it is the index of the first move minus one.
func (v View) Ply(r Ref) int {
	id, ok := v.id(r)
	if !ok {
		return 0
	}
	return v.t.startPly + int(v.t.nodes[id].depth) - 1
}

// MoveNumber returns the fullmove number of r's move and whether White played it.
func (v View) MoveNumber(r Ref) (int, bool) {
	p := v.Ply(r)
	return p/2 + 1, p%2 == 0
}

// MainLine returns the index-0 continuation starting after r.
func (v View) MainLine(r Ref) []Ref {
	id, ok := v.id(r)
	if !ok {
		return nil
	}
	var out []Ref
	for len(v.t.nodes[id].children) > 0 {
		id = v.t.nodes[id].children[0]
		out = append(out, v.t.ref(id))
	}
	return out
}

// Path returns the nodes from the first move down to r; empty for the root.
func (v View) Path(r Ref) []Ref {
	id, ok := v.id(r)
	if !ok {
		return nil
	}
	var out []Ref
	for id != rootID {
		out = append(out, v.t.ref(id))
		id = v.t.nodes[id].parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Convenience wrappers taking the read lock themselves.

// Move returns the move that reached r.
func (t *Tree) Move(r Ref) (m domain.Move, ok bool) {
	t.View(func(v View) { m, ok = v.Move(r) })
	return m, ok
}

// Children returns r's children.
func (t *Tree) Children(r Ref) (out []Ref) {
	t.View(func(v View) { out = v.Children(r) })
	return out
}

// Parent returns r's parent.
func (t *Tree) Parent(r Ref) (p Ref, ok bool) {
	t.View(func(v View) { p, ok = v.Parent(r) })
	return p, ok
}

// Comments returns r's comments.
func (t *Tree) Comments(r Ref) (out []string) {
	t.View(func(v View) { out = v.Comments(r) })
	return out
}

// Symbols returns r's glyphs.
func (t *Tree) Symbols(r Ref) (out []domain.NAG) {
	t.View(func(v View) { out = v.Symbols(r) })
	return out
}

// Root returns the root node.
func (t *Tree) Root() (r Ref) {
	t.View(func(v View) { r = v.Root() })
	return r
}

// Contains reports whether r is a live node of this tree.
func (t *Tree) Contains(r Ref) (ok bool) {
	t.View(func(v View) { ok = v.Contains(r) })
	return ok
}
