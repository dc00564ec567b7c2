/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import (
	"fmt"
	"strings"

	"gochessstudio/internal/domain"
)

// AddComment appends text to r's comments. Blank text is rejected, and so is a
// closing brace, which would end the PGN comment early.
func (t *Tree) AddComment(r Ref, text string) error {
	if err := checkComment(text); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	t.nodes[id].comments = append(t.nodes[id].comments, text)
	return nil
}

// RemoveComment deletes the comment at index.
func (t *Tree) RemoveComment(r Ref, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	cs := t.nodes[id].comments
	if index < 0 || index >= len(cs) {
		return fmt.Errorf("%w: comment index %d out of range [0,%d)", ErrInvalidInput, index, len(cs))
	}
	t.nodes[id].comments = append(cs[:index:index], cs[index+1:]...)
	return nil
}

// ToggleSymbol adds nag to r's symbols, or removes it when present. Symbols keep
// insertion order. It reports whether the glyph is present afterwards.
func (t *Tree) ToggleSymbol(r Ref, nag domain.NAG) (bool, error) {
	if _, ok := domain.LookupNAG(nag); !ok {
		return false, fmt.Errorf("%w: unknown glyph code %s", ErrInvalidInput, nag.Dollar())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return false, err
	}
	if id == rootID {
		return false, fmt.Errorf("%w: the root has no move to annotate", ErrInvalidOperation)
	}
	syms := t.nodes[id].symbols
	for i, s := range syms {
		if s == nag {
			t.nodes[id].symbols = append(syms[:i:i], syms[i+1:]...)
			return false, nil
		}
	}
	t.nodes[id].symbols = append(syms, nag)
	return true, nil
}

func checkComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty comment", ErrInvalidInput)
	}
	if strings.Contains(text, "}") {
		return fmt.Errorf("%w: comment contains '}'", ErrInvalidInput)
	}
	return nil
}
