/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package hmr

import (
	"fmt"
	"strings"
)

// AcceptedDep is one string-literal argument found inside an accept([...])
// call, with its byte offsets in the source for later URL rewriting.
type AcceptedDep struct {
	URL   string
	Start int
	End   int
}

// AcceptInfo is what ParseAcceptCalls extracts from one accept() call site.
type AcceptInfo struct {
	SelfAccepts bool
	Deps        []AcceptedDep
}

// LexError reports a lexical error at a source position, e.g. an
// unterminated string or template literal.
type LexError struct {
	Pos int
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("hmr: lex error at byte %d: %s", e.Pos, e.Msg)
}

type lexState int

const (
	stateInCall lexState = iota
	stateInArray
	stateInSingleQuote
	stateInDoubleQuote
	stateInTemplate
)

// ParseAcceptCalls scans src starting at the byte offset just past the
// opening "(" of an accept(...) call and extracts its dependency
// arguments. It implements the state machine described for the HMR
// runtime's accept() parser: inCall / inArray / inSingleQuote /
// inDoubleQuote / inTemplate.
//
// If the first non-space character is not a quote or "[", or a template
// literal contains an unescaped "${", the call is treated as
// self-accepting with no explicit deps (the callback takes no dep list).
// An unterminated string or template literal is a *LexError.
func ParseAcceptCalls(src string, offset int) (AcceptInfo, error) {
	i := offset
	n := len(src)

	for i < n && isSpace(src[i]) {
		i++
	}
	if i >= n {
		return AcceptInfo{SelfAccepts: true}, nil
	}

	switch src[i] {
	case '[':
		return lexArray(src, i)
	case '\'':
		dep, end, err := lexQuoted(src, i, stateInSingleQuote)
		if err != nil {
			return AcceptInfo{}, err
		}
		_ = end
		return AcceptInfo{Deps: []AcceptedDep{dep}}, nil
	case '"':
		dep, end, err := lexQuoted(src, i, stateInDoubleQuote)
		if err != nil {
			return AcceptInfo{}, err
		}
		_ = end
		return AcceptInfo{Deps: []AcceptedDep{dep}}, nil
	case '`':
		dep, end, err := lexTemplate(src, i)
		if err != nil {
			return AcceptInfo{}, err
		}
		if dep == nil {
			// Found "${": not a static literal, but not an error either
			// at this position - callers treat it as self-accepting.
			return AcceptInfo{SelfAccepts: true}, nil
		}
		_ = end
		return AcceptInfo{Deps: []AcceptedDep{*dep}}, nil
	default:
		// First argument is a callback/identifier, not a dep list: the
		// module is self-accepting with no explicit deps.
		return AcceptInfo{SelfAccepts: true}, nil
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// lexArray walks a `[...]` dep list starting at the index of '['. It
// implements the inArray state: comma-separated string literals, each
// lexed via lexQuoted/lexTemplate.
func lexArray(src string, start int) (AcceptInfo, error) {
	i := start + 1
	n := len(src)
	var deps []AcceptedDep

	for i < n {
		for i < n && (isSpace(src[i]) || src[i] == ',') {
			i++
		}
		if i >= n {
			break
		}
		if src[i] == ']' {
			i++
			break
		}

		switch src[i] {
		case '\'':
			dep, end, err := lexQuoted(src, i, stateInSingleQuote)
			if err != nil {
				return AcceptInfo{}, err
			}
			deps = append(deps, dep)
			i = end
		case '"':
			dep, end, err := lexQuoted(src, i, stateInDoubleQuote)
			if err != nil {
				return AcceptInfo{}, err
			}
			deps = append(deps, dep)
			i = end
		case '`':
			dep, end, err := lexTemplate(src, i)
			if err != nil {
				return AcceptInfo{}, err
			}
			if dep != nil {
				deps = append(deps, *dep)
			}
			i = end
		default:
			return AcceptInfo{}, &LexError{Pos: i, Msg: "expected string literal in accept() dep array"}
		}
	}

	return AcceptInfo{Deps: deps}, nil
}

// lexQuoted consumes a '...' or "..." literal starting at the index of the
// opening quote and returns its contents plus the index just past the
// closing quote.
func lexQuoted(src string, start int, state lexState) (AcceptedDep, int, error) {
	quote := byte('\'')
	if state == stateInDoubleQuote {
		quote = '"'
	}

	var b strings.Builder
	i := start + 1
	n := len(src)
	for i < n {
		c := src[i]
		if c == '\\' && i+1 < n {
			b.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == quote {
			return AcceptedDep{URL: b.String(), Start: start, End: i + 1}, i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return AcceptedDep{}, i, &LexError{Pos: start, Msg: "unterminated string literal"}
}

// lexTemplate consumes a `...` literal. Returns (nil, pos, nil) if an
// unescaped "${" is found partway through -- meaning the literal isn't
// statically resolvable and the call falls back to self-accepting -- or a
// hard LexError if the template is unterminated.
func lexTemplate(src string, start int) (*AcceptedDep, int, error) {
	var b strings.Builder
	i := start + 1
	n := len(src)
	for i < n {
		c := src[i]
		if c == '\\' && i+1 < n {
			b.WriteByte(src[i+1])
			i += 2
			continue
		}
		if c == '$' && i+1 < n && src[i+1] == '{' {
			return nil, i, nil
		}
		if c == '`' {
			dep := AcceptedDep{URL: b.String(), Start: start, End: i + 1}
			return &dep, i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return nil, i, &LexError{Pos: start, Msg: "unterminated template literal"}
}
