/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pgn

import (
	"strings"
	"unicode"

	"gochessstudio/internal/domain"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokMoveNumber
	tokMove
	tokGlyph
	tokNAG
	tokComment
	tokVariationStart
	tokVariationEnd
	tokResult
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokMoveNumber:
		return "move number"
	case tokMove:
		return "move"
	case tokGlyph:
		return "glyph"
	case tokNAG:
		return "NAG"
	case tokComment:
		return "comment"
	case tokVariationStart:
		return "'('"
	case tokVariationEnd:
		return "')'"
	case tokResult:
		return "result"
	}
	return "unknown"
}

type token struct {
	typ  tokenType
	text string // SAN for moves, comment body, result marker
	nags []domain.NAG
	line int
	col  int
}

// lexer splits movetext into tokens. Line and column are 1-based.
type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(s string) *lexer {
	return &lexer{src: []rune(s), line: 1, col: 1}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipToEOL() string {
	var sb strings.Builder
	for l.pos < len(l.src) && l.peek() != '\n' {
		sb.WriteRune(l.advance())
	}
	return sb.String()
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("(){};$", r)
}

func isSuffixGlyph(r rune) bool { return r == '!' || r == '?' || r == '□' }

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
			continue
		case r == '%' && l.col == 1:
			// escape line
			l.skipToEOL()
			continue
		}
		break
	}
	tok := token{line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		tok.typ = tokEOF
		return tok, nil
	}

	switch r := l.peek(); {
	case r == '{':
		l.advance()
		var sb strings.Builder
		for {
			if l.pos >= len(l.src) {
				return tok, l.errorf(tok, "unterminated comment")
			}
			c := l.advance()
			if c == '}' {
				break
			}
			sb.WriteRune(c)
		}
		tok.typ, tok.text = tokComment, sb.String()
		return tok, nil
	case r == ';':
		l.advance()
		tok.typ, tok.text = tokComment, strings.TrimSpace(l.skipToEOL())
		return tok, nil
	case r == '(':
		l.advance()
		tok.typ = tokVariationStart
		return tok, nil
	case r == ')':
		l.advance()
		tok.typ = tokVariationEnd
		return tok, nil
	case r == '$':
		l.advance()
		word := l.word()
		g, ok := domain.ParseGlyph("$" + word)
		if !ok {
			return tok, l.errorf(tok, "unknown NAG $%s", word)
		}
		tok.typ, tok.nags = tokNAG, []domain.NAG{g.NAG}
		return tok, nil
	case unicode.IsDigit(r):
		start := l.pos
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			for l.peek() == '.' {
				l.advance()
			}
			tok.typ, tok.text = tokMoveNumber, string(l.src[start:l.pos])
			return tok, nil
		}
		word := string(l.src[start:l.pos]) + l.word()
		if res, ok := domain.ParseResult(word); ok {
			tok.typ, tok.text = tokResult, string(res)
			return tok, nil
		}
		return l.move(tok, word)
	case r == '*':
		l.advance()
		tok.typ, tok.text = tokResult, string(domain.ResultUnknown)
		return tok, nil
	}

	word := l.word()
	if g, ok := domain.ParseGlyph(word); ok {
		tok.typ, tok.nags = tokGlyph, []domain.NAG{g.NAG}
		return tok, nil
	}
	return l.move(tok, word)
}

// word consumes runes up to the next delimiter.
func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isDelimiter(l.peek()) {
		l.advance()
	}
	return string(l.src[start:l.pos])
}

// move splits a SAN word from its attached glyph suffix ("Nf3!?").
func (l *lexer) move(tok token, word string) (token, error) {
	rs := []rune(word)
	i := 0
	for i < len(rs) && !isSuffixGlyph(rs[i]) {
		i++
	}
	san, suffix := string(rs[:i]), string(rs[i:])
	if san == "" {
		return tok, l.errorf(tok, "unexpected %q", word)
	}
	tok.typ, tok.text = tokMove, san
	if suffix != "" {
		g, ok := domain.ParseGlyph(suffix)
		if !ok {
			return tok, l.errorf(tok, "unknown glyph %q", suffix)
		}
		tok.nags = []domain.NAG{g.NAG}
	}
	return tok, nil
}

func (l *lexer) errorf(tok token, format string, args ...any) error {
	return newParseError(tok.line, tok.col, format, args...)
}
