/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tree implements the game move tree: an arena of nodes addressed by stable
// handles, with a cursor, variations, comments and annotation glyphs.
//
// A Tree has one writer at a time. Mutators take the write lock; readers use View,
// which holds the read lock for the whole traversal so a render never observes a
// half-applied edit.
package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"gochessstudio/internal/domain"
)

// Sentinel errors. Callers test with errors.Is.
var (
	// ErrInvalidOperation reports a structurally impossible edit or a handle that does
	// not belong to the tree.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidInput reports malformed annotation or move data.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	rootID = 0
	noNode = -1
)

var serials atomic.Uint64

// Ref is a handle to a node. It records which tree issued it, so handles from
// another tree, or from before a Restore, are rejected instead of aliasing.
type Ref struct {
	tree uint64
	id   int32
}

// IsZero reports whether r is the zero handle.
func (r Ref) IsZero() bool { return r.tree == 0 }

// String is meant for logs only.
func (r Ref) String() string {
	if r.IsZero() {
		return "node(nil)"
	}
	return "node(" + strconv.FormatUint(r.tree, 10) + ":" + strconv.Itoa(int(r.id)) + ")"
}

type node struct {
	move     *domain.Move // nil only for the root
	parent   int32
	depth    int32
	children []int32
	comments []string
	symbols  []domain.NAG
	alive    bool
}

// Tree owns every node reachable from its root plus the editing cursor.
type Tree struct {
	mu       sync.RWMutex
	serial   uint64
	nodes    []node
	cursor   int32
	startFEN string
	startPly int
	live     int
}

// New returns a tree rooted at the standard starting position.
func New() *Tree { return NewFromFEN(domain.StartFEN) }

// NewFromFEN returns a tree rooted at fen. The move numbering of the first ply is
// taken from the FEN side-to-move and fullmove fields.
func NewFromFEN(fen string) *Tree {
	if strings.TrimSpace(fen) == "" {
		fen = domain.StartFEN
	}
	t := &Tree{}
	t.reset(fen, PlyFromFEN(fen))
	return t
}

func (t *Tree) reset(fen string, startPly int) {
	t.serial = serials.Add(1)
	t.nodes = []node{{parent: noNode, alive: true}}
	t.cursor = rootID
	t.startFEN = fen
	t.startPly = startPly
	t.live = 1
}

// PlyFromFEN returns the zero-based half-move index of the next move in fen:
// 0 for White's first move, 1 for Black's reply and so on. Malformed fields fall
// back to the standard start.
func PlyFromFEN(fen string) int {
	f := strings.Fields(fen)
	full := 1
	if len(f) >= 6 {
		if n, err := strconv.Atoi(f[5]); err == nil && n > 0 {
			full = n
		}
	}
	ply := (full - 1) * 2
	if len(f) >= 2 && f[1] == "b" {
		ply++
	}
	return ply
}

func (t *Tree) ref(id int32) Ref { return Ref{tree: t.serial, id: id} }

// resolve validates r against this tree. Caller holds a lock.
func (t *Tree) resolve(r Ref) (int32, error) {
	if r.tree != t.serial || r.id < 0 || int(r.id) >= len(t.nodes) || !t.nodes[r.id].alive {
		return noNode, fmt.Errorf("%w: %s is not a node of this tree", ErrInvalidOperation, r)
	}
	return r.id, nil
}

// AddMove plays m from the cursor. When the cursor already has a child with an equal
// move, that child is reused; otherwise a new child is appended after the existing
// ones. Either way the cursor advances to the returned node.
func (t *Tree) AddMove(m domain.Move) (Ref, error) {
	if !m.Valid() {
		return Ref{}, fmt.Errorf("%w: move without SAN", ErrInvalidInput)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	parent := t.cursor
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].move.Equal(m) {
			t.cursor = c
			return t.ref(c), nil
		}
	}
	mv := m
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{
		move:   &mv,
		parent: parent,
		depth:  t.nodes[parent].depth + 1,
		alive:  true,
	})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	t.cursor = id
	t.live++
	return t.ref(id), nil
}

// PromoteVariation makes r the main line at its branch point. The former main line
// moves to index 1; the relative order of the other variations is kept.
func (t *Tree) PromoteVariation(r Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	if id == rootID {
		return fmt.Errorf("%w: cannot promote the root", ErrInvalidOperation)
	}
	siblings := t.nodes[t.nodes[id].parent].children
	idx := indexOf(siblings, id)
	if idx == 0 {
		return fmt.Errorf("%w: already the main line", ErrInvalidOperation)
	}
	copy(siblings[1:idx+1], siblings[:idx])
	siblings[0] = id
	return nil
}

// DemoteVariation swaps r with the sibling after it.
func (t *Tree) DemoteVariation(r Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	if id == rootID {
		return fmt.Errorf("%w: cannot demote the root", ErrInvalidOperation)
	}
	siblings := t.nodes[t.nodes[id].parent].children
	idx := indexOf(siblings, id)
	if idx == len(siblings)-1 {
		return fmt.Errorf("%w: already the last variation", ErrInvalidOperation)
	}
	siblings[idx], siblings[idx+1] = siblings[idx+1], siblings[idx]
	return nil
}

// DeleteNode removes r and its whole subtree. If the cursor was inside the removed
// subtree it moves to r's parent.
func (t *Tree) DeleteNode(r Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	if id == rootID {
		return fmt.Errorf("%w: cannot delete the root", ErrInvalidOperation)
	}
	parent := t.nodes[id].parent
	if t.isAncestor(id, t.cursor) {
		t.cursor = parent
	}
	siblings := t.nodes[parent].children
	idx := indexOf(siblings, id)
	t.nodes[parent].children = append(siblings[:idx:idx], siblings[idx+1:]...)

	stack := []int32{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, t.nodes[n].children...)
		t.nodes[n] = node{parent: noNode}
		t.live--
	}
	return nil
}

// TopVariation returns the root of the tree, found by walking parent links from the
// cursor.
func (t *Tree) TopVariation() Ref {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ref(t.top(t.cursor))
}

// TopVariationOf walks up from r instead of the cursor.
func (t *Tree) TopVariationOf(r Ref) (Ref, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, err := t.resolve(r)
	if err != nil {
		return Ref{}, err
	}
	return t.ref(t.top(id)), nil
}

func (t *Tree) top(id int32) int32 {
	for t.nodes[id].parent != noNode {
		id = t.nodes[id].parent
	}
	return id
}

// isAncestor reports whether a is n or one of n's ancestors.
func (t *Tree) isAncestor(a, n int32) bool {
	for n != noNode {
		if n == a {
			return true
		}
		n = t.nodes[n].parent
	}
	return false
}

// Len returns the number of live nodes including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

func indexOf(s []int32, v int32) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
