/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pgn

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gochessstudio/internal/domain"
	"gochessstudio/internal/tree"
)

// ErrSyntax is wrapped by every ParseError.
var ErrSyntax = errors.New("pgn syntax error")

// ParseError carries the position of a movetext problem.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func newParseError(line, col int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pgn %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// Parse reads movetext into a new tree rooted at the standard start position.
// Moves are taken as written; legality is not checked. The cursor ends on the last
// main-line move. The result terminator, when present, is returned.
func Parse(movetext string) (*tree.Tree, domain.Result, error) {
	t := tree.New()
	res, err := ParseInto(t, movetext)
	if err != nil {
		return nil, "", err
	}
	return t, res, nil
}

// ParseInto reads movetext into t starting at t's root. Parsing stops at the first
// result terminator.
func ParseInto(t *tree.Tree, movetext string) (domain.Result, error) {
	p := parser{t: t, lex: newLexer(movetext)}
	t.GoToStart()
	return p.run()
}

type parser struct {
	t   *tree.Tree
	lex *lexer

	last    tree.Ref   // most recent move at the current nesting level
	stack   []tree.Ref // last move of each enclosing line
	pending []string   // comments seen before the first move of a variation
}

func (p *parser) run() (domain.Result, error) {
	for {
		tok, err := p.lex.next()
		if err != nil {
			return "", err
		}
		switch tok.typ {
		case tokEOF:
			if len(p.stack) > 0 {
				return "", newParseError(tok.line, tok.col, "unterminated variation")
			}
			return "", nil
		case tokResult:
			if len(p.stack) > 0 {
				return "", newParseError(tok.line, tok.col, "result inside variation")
			}
			return domain.Result(tok.text), nil
		case tokMoveNumber:
		case tokMove:
			if err := p.move(tok); err != nil {
				return "", err
			}
		case tokGlyph, tokNAG:
			if p.last.IsZero() {
				return "", newParseError(tok.line, tok.col, "%s before any move", tok.typ)
			}
			if err := p.glyphs(p.last, tok.nags); err != nil {
				return "", err
			}
		case tokComment:
			if err := p.comment(tok.text); err != nil {
				return "", err
			}
		case tokVariationStart:
			if p.last.IsZero() {
				return "", newParseError(tok.line, tok.col, "variation before any move")
			}
			parent, _ := p.t.Parent(p.last)
			if err := p.t.GoToNode(parent); err != nil {
				return "", err
			}
			p.stack = append(p.stack, p.last)
			p.last = tree.Ref{}
		case tokVariationEnd:
			if len(p.stack) == 0 {
				return "", newParseError(tok.line, tok.col, "unbalanced ')'")
			}
			if p.last.IsZero() {
				return "", newParseError(tok.line, tok.col, "empty variation")
			}
			p.last = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pending = nil
			if err := p.t.GoToNode(p.last); err != nil {
				return "", err
			}
		}
	}
}

func (p *parser) move(tok token) error {
	ref, err := p.t.AddMove(domain.Move{SAN: tok.text})
	if err != nil {
		return err
	}
	p.last = ref
	for _, c := range p.pending {
		if err := p.t.AddComment(ref, c); err != nil {
			return err
		}
	}
	p.pending = nil
	return p.glyphs(ref, tok.nags)
}

// glyphs adds nags that are not yet present; ToggleSymbol alone would remove a
// repeated one.
func (p *parser) glyphs(ref tree.Ref, nags []domain.NAG) error {
	for _, n := range nags {
		if slices.Contains(p.t.Symbols(ref), n) {
			continue
		}
		if _, err := p.t.ToggleSymbol(ref, n); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) comment(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	switch {
	case !p.last.IsZero():
		return p.t.AddComment(p.last, text)
	case len(p.stack) == 0:
		return p.t.AddComment(p.t.Root(), text)
	default:
		p.pending = append(p.pending, text)
		return nil
	}
}
