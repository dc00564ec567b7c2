/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

// Cursor movement. Next/Previous report false instead of failing when there is
// nowhere to go.

// Cursor returns the current node.
func (t *Tree) Cursor() Ref {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ref(t.cursor)
}

// Next follows the main line one ply.
func (t *Tree) Next() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.nodes[t.cursor].children
	if len(cs) == 0 {
		return false
	}
	t.cursor = cs[0]
	return true
}

// Previous steps back to the parent.
func (t *Tree) Previous() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.nodes[t.cursor].parent
	if p == noNode {
		return false
	}
	t.cursor = p
	return true
}

// GoToStart moves the cursor to the root.
func (t *Tree) GoToStart() {
	t.mu.Lock()
	t.cursor = rootID
	t.mu.Unlock()
}

// GoToEnd follows the main line from the cursor to its last ply.
func (t *Tree) GoToEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.nodes[t.cursor].children) > 0 {
		t.cursor = t.nodes[t.cursor].children[0]
	}
}

// GoToNode moves the cursor to r.
func (t *Tree) GoToNode(r Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.resolve(r)
	if err != nil {
		return err
	}
	t.cursor = id
	return nil
}
