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
	"sync"
	"time"
)

// Snapshot is an encoded game tree captured before an edit.
// Blob content is opaque to the manager; its size counts as len(Blob).
type Snapshot struct {
	GameID int64
	Blob   []byte
	TS     time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap across all games; the oldest entries go first.
	MaxBytes int
	// MaxPerGame limits the undo depth of one game (0 means unlimited).
	MaxPerGame int
	// MinInterval folds edits closer together than this into one undo step: the
	// later snapshot is dropped and the earlier state is kept.
	MinInterval time.Duration
}

// Manager keeps undo and redo stacks per game. It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-game stacks
	undo map[int64][]Snapshot
	redo map[int64][]Snapshot
	// accounting over both stacks
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[int64][]Snapshot), redo: make(map[int64][]Snapshot)}
}

// PushSnapshot records the state before an edit. It clears the game's redo stack.
// It reports false when the snapshot was folded into the previous one.
func (m *Manager) PushSnapshot(s Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.GameID)
	stack := m.undo[s.GameID]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		if s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
			// extend the burst so a steady stream of edits stays one step
			stack[n-1].TS = s.TS
			return false
		}
	}
	m.undo[s.GameID] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.GameID)
	return true
}

// Undo swaps current for the newest undo snapshot: current goes to the redo stack
// and the snapshot is returned for the caller to restore.
func (m *Manager) Undo(gameID int64, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[gameID]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[gameID] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[gameID] = append(m.redo[gameID], Snapshot{GameID: gameID, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	return s, true
}

// Redo is the inverse of Undo.
func (m *Manager) Redo(gameID int64, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[gameID]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[gameID] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	// backdated so the next edit starts a new step
	m.undo[gameID] = append(m.undo[gameID], Snapshot{GameID: gameID, Blob: current, TS: time.Now().Add(-m.cfg.MinInterval)})
	m.totalBytes += len(current)
	m.enforceCapsLocked(gameID)
	return s, true
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo(gameID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[gameID]) > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo(gameID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[gameID]) > 0
}

// ClearGame drops both stacks of a game, e.g. when its document closes.
func (m *Manager) ClearGame(gameID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[gameID] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(gameID)
	delete(m.undo, gameID)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, games int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	games = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, games, totalSnapshots
}

func (m *Manager) dropRedoLocked(gameID int64) {
	for _, s := range m.redo[gameID] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, gameID)
}

func (m *Manager) enforceCapsLocked(gameID int64) {
	if m.cfg.MaxPerGame > 0 {
		stack := m.undo[gameID]
		if len(stack) > m.cfg.MaxPerGame {
			toDrop := len(stack) - m.cfg.MaxPerGame
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[gameID] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune the oldest undo entry across games. The game just
	// edited keeps at least its newest step.
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		var (
			oldestGame int64
			found      bool
			oldestTS   time.Time
		)
		for id, stack := range m.undo {
			if len(stack) == 0 || (id == gameID && len(stack) == 1) {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) || (stack[0].TS.Equal(oldestTS) && id < oldestGame) {
				oldestGame, oldestTS, found = id, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestGame]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestGame] = stack[1:]
		if len(m.undo[oldestGame]) == 0 {
			delete(m.undo, oldestGame)
		}
	}
}
