/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import (
	"encoding/json"
	"fmt"

	"gochessstudio/internal/domain"
)

// Document is the persisted form of a tree. Nodes nest; the cursor is stored as the
// list of child indexes leading to it from the root.
type Document struct {
	StartFEN string  `json:"startFen"`
	StartPly int     `json:"startPly"`
	Cursor   []int   `json:"cursor,omitempty"`
	Root     NodeDoc `json:"root"`
}

// NodeDoc is one node of a Document. Move is nil for the root.
// NAGs is []int so JSON writes numbers rather than base64.
type NodeDoc struct {
	Move     *domain.Move `json:"move,omitempty"`
	Comments []string     `json:"comments,omitempty"`
	NAGs     []int        `json:"nags,omitempty"`
	Children []NodeDoc    `json:"children,omitempty"`
}

// Document snapshots the tree.
func (t *Tree) Document() Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d := Document{StartFEN: t.startFEN, StartPly: t.startPly, Root: t.nodeDoc(rootID)}
	for id := t.cursor; id != rootID; id = t.nodes[id].parent {
		d.Cursor = append([]int{indexOf(t.nodes[t.nodes[id].parent].children, id)}, d.Cursor...)
	}
	return d
}

func (t *Tree) nodeDoc(id int32) NodeDoc {
	n := t.nodes[id]
	d := NodeDoc{Comments: append([]string(nil), n.comments...)}
	if n.move != nil {
		m := *n.move
		d.Move = &m
	}
	for _, s := range n.symbols {
		d.NAGs = append(d.NAGs, int(s))
	}
	for _, c := range n.children {
		d.Children = append(d.Children, t.nodeDoc(c))
	}
	return d
}

// FromDocument builds a tree from d. Invalid moves, comments or glyph codes, and
// duplicate sibling moves, are rejected with ErrInvalidInput.
func FromDocument(d Document) (*Tree, error) {
	fen := d.StartFEN
	if fen == "" {
		fen = domain.StartFEN
	}
	if d.Root.Move != nil {
		return nil, fmt.Errorf("%w: root carries a move", ErrInvalidInput)
	}
	if len(d.Root.NAGs) > 0 {
		return nil, fmt.Errorf("%w: root carries glyphs", ErrInvalidInput)
	}
	if d.StartPly < 0 {
		return nil, fmt.Errorf("%w: negative start ply", ErrInvalidInput)
	}
	t := &Tree{}
	t.reset(fen, d.StartPly)
	if err := t.load(rootID, d.Root); err != nil {
		return nil, err
	}
	for _, idx := range d.Cursor {
		cs := t.nodes[t.cursor].children
		if idx < 0 || idx >= len(cs) {
			return nil, fmt.Errorf("%w: cursor path leaves the tree", ErrInvalidInput)
		}
		t.cursor = cs[idx]
	}
	return t, nil
}

func (t *Tree) load(id int32, d NodeDoc) error {
	for _, c := range d.Comments {
		if err := checkComment(c); err != nil {
			return err
		}
	}
	t.nodes[id].comments = append([]string(nil), d.Comments...)
	for _, v := range d.NAGs {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: glyph code %d", ErrInvalidInput, v)
		}
		if _, ok := domain.LookupNAG(domain.NAG(v)); !ok {
			return fmt.Errorf("%w: unknown glyph code $%d", ErrInvalidInput, v)
		}
		t.nodes[id].symbols = append(t.nodes[id].symbols, domain.NAG(v))
	}
	for _, cd := range d.Children {
		if cd.Move == nil || !cd.Move.Valid() {
			return fmt.Errorf("%w: child without move", ErrInvalidInput)
		}
		for _, sib := range t.nodes[id].children {
			if t.nodes[sib].move.Equal(*cd.Move) {
				return fmt.Errorf("%w: duplicate sibling move %s", ErrInvalidInput, cd.Move.SAN)
			}
		}
		m := *cd.Move
		cid := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{move: &m, parent: id, depth: t.nodes[id].depth + 1, alive: true})
		t.nodes[id].children = append(t.nodes[id].children, cid)
		t.live++
		if err := t.load(cid, cd); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes the tree as a Document.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Document())
}

// UnmarshalJSON replaces the tree's content. Handles issued before are invalidated.
func (t *Tree) UnmarshalJSON(b []byte) error {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	nt, err := FromDocument(d)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serial, t.nodes, t.cursor = nt.serial, nt.nodes, nt.cursor
	t.startFEN, t.startPly, t.live = nt.startFEN, nt.startPly, nt.live
	return nil
}

// Clone returns a deep copy with its own handle space.
func (t *Tree) Clone() *Tree {
	nt, err := FromDocument(t.Document())
	if err != nil {
		// a live tree always satisfies its own invariants
		panic(err)
	}
	return nt
}
