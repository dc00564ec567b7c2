/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session binds one game's headers and move tree to an undo history.
// Every edit goes through a Session so it can be undone; cursor movement does not
// and is done on Tree() directly.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"gochessstudio/internal/domain"
	applog "gochessstudio/internal/log"
	"gochessstudio/internal/pgn"
	"gochessstudio/internal/tree"
	"gochessstudio/internal/undo"
)

// Session is an open game. Undo and Redo replace the tree's content, which
// invalidates every handle issued before; look nodes up again afterwards.
type Session struct {
	mu      sync.Mutex
	id      int64
	headers domain.Headers
	tree    *tree.Tree
	history *undo.Manager
	dirty   bool
	now     func() time.Time
	log     *slog.Logger
	logCtx  context.Context
}

// New opens a session on t. A nil history disables undo.
func New(id int64, h domain.Headers, t *tree.Tree, history *undo.Manager) *Session {
	if t == nil {
		t = tree.NewFromFEN(h.FEN)
	}
	return &Session{
		id:      id,
		headers: h,
		tree:    t,
		history: history,
		now:     time.Now,
		log:     applog.WithComponent("session"),
		logCtx:  applog.ContextWithGame(context.Background(), id),
	}
}

// ID returns the game id the history is keyed by.
func (s *Session) ID() int64 { return s.id }

// Tree exposes the move tree for navigation and reads.
func (s *Session) Tree() *tree.Tree { return s.tree }

// Headers returns the tag section.
func (s *Session) Headers() domain.Headers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers
}

// SetHeaders replaces the tag section. It is not part of the undo history.
func (s *Session) SetHeaders(h domain.Headers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = h
	s.dirty = true
}

// Dirty reports whether there are edits since the last MarkSaved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved clears the dirty flag.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// edit runs fn and records the prior state when fn changed the tree.
func (s *Session) edit(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.tree.Document()
	if err := fn(); err != nil {
		s.log.DebugContext(s.logCtx, "edit rejected", slog.String("op", op), slog.Any("err", err))
		return err
	}
	// cursor-only changes, such as replaying an existing move, are not edits
	if reflect.DeepEqual(before.Root, s.tree.Document().Root) {
		return nil
	}
	s.dirty = true
	if s.history != nil {
		blob, err := json.Marshal(before)
		if err != nil {
			return fmt.Errorf("snapshot before %s: %w", op, err)
		}
		s.history.PushSnapshot(undo.Snapshot{GameID: s.id, Blob: blob, TS: s.now()})
	}
	s.log.DebugContext(s.logCtx, "edit", slog.String("op", op))
	return nil
}

// AddMove plays m at the cursor.
func (s *Session) AddMove(m domain.Move) (tree.Ref, error) {
	var ref tree.Ref
	err := s.edit("add_move", func() error {
		var err error
		ref, err = s.tree.AddMove(m)
		return err
	})
	return ref, err
}

// PromoteVariation makes r the main line at its branch point.
func (s *Session) PromoteVariation(r tree.Ref) error {
	return s.edit("promote", func() error { return s.tree.PromoteVariation(r) })
}

// DemoteVariation moves r one slot down among its siblings.
func (s *Session) DemoteVariation(r tree.Ref) error {
	return s.edit("demote", func() error { return s.tree.DemoteVariation(r) })
}

// DeleteNode removes r and its subtree.
func (s *Session) DeleteNode(r tree.Ref) error {
	return s.edit("delete", func() error { return s.tree.DeleteNode(r) })
}

// AddComment appends a comment to r.
func (s *Session) AddComment(r tree.Ref, text string) error {
	return s.edit("add_comment", func() error { return s.tree.AddComment(r, text) })
}

// RemoveComment deletes r's comment at index.
func (s *Session) RemoveComment(r tree.Ref, index int) error {
	return s.edit("remove_comment", func() error { return s.tree.RemoveComment(r, index) })
}

// ToggleSymbol flips a glyph on r and reports whether it is now present.
func (s *Session) ToggleSymbol(r tree.Ref, nag domain.NAG) (bool, error) {
	var on bool
	err := s.edit("toggle_symbol", func() error {
		var err error
		on, err = s.tree.ToggleSymbol(r, nag)
		return err
	})
	return on, err
}

// Undo restores the tree to its state before the last edit. It reports false
// when there is nothing to undo.
func (s *Session) Undo() (bool, error) {
	return s.swap("undo", func(cur []byte) (undo.Snapshot, bool) { return s.history.Undo(s.id, cur) })
}

// Redo re-applies the last undone edit.
func (s *Session) Redo() (bool, error) {
	return s.swap("redo", func(cur []byte) (undo.Snapshot, bool) { return s.history.Redo(s.id, cur) })
}

func (s *Session) swap(op string, pop func([]byte) (undo.Snapshot, bool)) (bool, error) {
	if s.history == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.tree.MarshalJSON()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	snap, ok := pop(cur)
	if !ok {
		return false, nil
	}
	if err := s.tree.UnmarshalJSON(snap.Blob); err != nil {
		return false, fmt.Errorf("%s: restore tree: %w", op, err)
	}
	s.dirty = true
	s.log.DebugContext(s.logCtx, op)
	return true, nil
}

// Close drops the undo history of this game.
func (s *Session) Close() {
	if s.history != nil {
		s.history.ClearGame(s.id)
	}
}

// PGN renders the movetext from the top variation.
func (s *Session) PGN(opts pgn.Options) string {
	return pgn.RenderTop(s.tree, opts)
}

// Export renders the complete game record.
func (s *Session) Export(opts pgn.Options) string {
	return pgn.Export(s.Headers(), s.tree, opts)
}
