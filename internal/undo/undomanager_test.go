/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerGame: 10, MinInterval: 10 * time.Millisecond})
	var game int64 = 1
	t0 := time.Now()
	m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("a"), TS: t0})
	m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("b"), TS: t0.Add(20 * time.Millisecond)})
	if _, games, total := m.Stats(); games != 1 || total != 2 {
		t.Fatalf("expected 1 game and 2 snapshots, got games=%d total=%d", games, total)
	}
	s, ok := m.Undo(game, []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanRedo(game) {
		t.Fatalf("redo should be available after undo")
	}
	s, ok = m.Redo(game, []byte("b"))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Undo(game, []byte("c"))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("second undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestCoalesceKeepsEarliestState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerGame: 10, MinInterval: 50 * time.Millisecond})
	var game int64 = 2
	t0 := time.Now()
	if !m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("1"), TS: t0}) {
		t.Fatalf("first snapshot must be kept")
	}
	if m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)}) {
		t.Fatalf("second snapshot should have been folded")
	}
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo(game, []byte("3"))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected the state before the burst, got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestNewEditClearsRedo(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	var game int64 = 5
	t0 := time.Now()
	m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("a"), TS: t0})
	m.Undo(game, []byte("b"))
	m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("a"), TS: t0.Add(time.Second)})
	if m.CanRedo(game) {
		t.Fatalf("redo must be cleared by a new edit")
	}
	if tb, _, _ := m.Stats(); tb != 1 {
		t.Fatalf("byte accounting off: %d", tb)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerGame: 2, MinInterval: time.Millisecond})
	var game int64 = 3
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("xxxxx"), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if _, _, total := m.Stats(); total > 2 {
		t.Fatalf("expected MaxPerGame cap to limit to 2, got %d", total)
	}
}

func TestGlobalPruneAcrossGames(t *testing.T) {
	m := NewManager(Config{MaxBytes: 8, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(Snapshot{GameID: 1, Blob: []byte("xxxx"), TS: t0})
	m.PushSnapshot(Snapshot{GameID: 2, Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	m.PushSnapshot(Snapshot{GameID: 2, Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})

	if m.CanUndo(1) {
		t.Fatalf("expected game 1 to have been pruned")
	}
	if _, ok := m.Undo(2, nil); !ok {
		t.Fatalf("expected game 2 to have snapshots")
	}
}

func TestClearGameAndStats(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxPerGame: 10, MinInterval: time.Millisecond})
	var game int64 = 7
	m.PushSnapshot(Snapshot{GameID: game, Blob: []byte("abcdef"), TS: time.Now()})
	m.Undo(game, []byte("gh"))
	m.ClearGame(game)
	tb, games, total := m.Stats()
	if tb != 0 || games != 0 || total != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d games=%d total=%d", tb, games, total)
	}
}
