// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlguard implements the pre-flight read-only guard the
// PostgreSQL CLI executor runs before wrapping a query inside a scripted
// BEGIN; SET TRANSACTION READ ONLY; <query>; COMMIT; script. Without it,
// a query ending in "; COMMIT; DROP TABLE ..." would close the read-only
// transaction early and let the trailing statement run writable.
package sqlguard

import (
	"strings"

	"github.com/readonlysql/gateway/connectors/base"
)

// transactionControlVerbs is the fixed set of leading keywords that would
// let a statement manipulate the surrounding transaction rather than run
// inside it. Multi-word verbs are matched with arbitrary whitespace
// between their words.
var transactionControlVerbs = [][]string{
	{"COMMIT"},
	{"ROLLBACK"},
	{"ABORT"},
	{"END"},
	{"BEGIN"},
	{"START", "TRANSACTION"},
	{"SET", "TRANSACTION"},
	{"SET", "SESSION", "CHARACTERISTICS"},
	{"SAVEPOINT"},
	{"RELEASE", "SAVEPOINT"},
	{"ROLLBACK", "TO", "SAVEPOINT"},
	{"PREPARE", "TRANSACTION"},
	{"COMMIT", "PREPARED"},
	{"ROLLBACK", "PREPARED"},
}

// scanState is the scanner's current lexical context. Delimiters are all
// single ASCII bytes, so the scanner walks q byte-by-byte; that is safe
// even over multi-byte UTF-8 content because every UTF-8 continuation
// and lead byte outside ASCII is >= 0x80 and can never be mistaken for
// one of these delimiters.
type scanState int

const (
	stateDefault scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
	stateBlockComment
	stateDollarQuote
)

// Sanitize implements the §4.1 contract: it trims surrounding whitespace,
// rejects empty input, rejects multiple statements, and rejects a query
// that begins with a transaction-control verb. On success it returns the
// trimmed query unchanged.
func Sanitize(q string) (string, error) {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return "", &base.ReadOnlyViolationError{
			Kind:   base.ViolationMultiStatement,
			Detail: "query is empty",
		}
	}

	if verb, ok := leadingTransactionControlVerb(trimmed); ok {
		return "", &base.ReadOnlyViolationError{
			Kind:   base.ViolationTransactionControl,
			Detail: verb,
		}
	}

	if err := checkSingleStatement(trimmed); err != nil {
		return "", err
	}

	return trimmed, nil
}

// checkSingleStatement walks q tracking string/comment/dollar-quote
// state, recording a semicolon only when seen in the default state. More
// than one such semicolon is rejected; exactly one is allowed only when
// everything after it is whitespace or comments.
func checkSingleStatement(q string) error {
	positions := semicolonPositions(q)
	if len(positions) == 0 {
		return nil
	}
	if len(positions) > 1 {
		return &base.ReadOnlyViolationError{
			Kind:   base.ViolationMultiStatement,
			Detail: "more than one statement-terminating semicolon",
		}
	}

	tail := q[positions[0]+1:]
	if !isBlankOrComments(tail) {
		return &base.ReadOnlyViolationError{
			Kind:   base.ViolationMultiStatement,
			Detail: "content follows the terminating semicolon",
		}
	}
	return nil
}

// semicolonPositions returns the byte offsets of every ';' seen in the
// default scan state.
func semicolonPositions(q string) []int {
	var positions []int
	state := stateDefault
	var dollarTag string

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch state {
		case stateDefault:
			switch {
			case c == '\'':
				state = stateSingleQuote
			case c == '"':
				state = stateDoubleQuote
			case c == '-' && i+1 < len(q) && q[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(q) && q[i+1] == '*':
				state = stateBlockComment
				i++
			case c == '$':
				if tag, end, ok := matchDollarTagStart(q, i); ok {
					dollarTag = tag
					state = stateDollarQuote
					i = end
				}
			case c == ';':
				positions = append(positions, i)
			}
		case stateSingleQuote:
			if c == '\'' {
				if i+1 < len(q) && q[i+1] == '\'' {
					i++
				} else {
					state = stateDefault
				}
			}
		case stateDoubleQuote:
			if c == '"' {
				if i+1 < len(q) && q[i+1] == '"' {
					i++
				} else {
					state = stateDefault
				}
			}
		case stateLineComment:
			if c == '\n' {
				state = stateDefault
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(q) && q[i+1] == '/' {
				state = stateDefault
				i++
			}
		case stateDollarQuote:
			if c == '$' {
				if end, ok := matchDollarTagEnd(q, i, dollarTag); ok {
					state = stateDefault
					i = end
				}
			}
		}
	}
	return positions
}

// isBlankOrComments checks that a string contains only whitespace and
// line/block comments, using the same comment rules minus string
// handling (the tail after the lone terminating semicolon cannot itself
// contain a string literal and still be "just comments").
func isBlankOrComments(s string) bool {
	state := stateDefault
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateDefault:
			switch {
			case c == ' ' || c == '\t' || c == '\n' || c == '\r':
				continue
			case c == '-' && i+1 < len(s) && s[i+1] == '-':
				state = stateLineComment
				i++
			case c == '/' && i+1 < len(s) && s[i+1] == '*':
				state = stateBlockComment
				i++
			default:
				return false
			}
		case stateLineComment:
			if c == '\n' {
				state = stateDefault
			}
		case stateBlockComment:
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				state = stateDefault
				i++
			}
		}
	}
	return state == stateDefault
}

func matchDollarTagStart(q string, start int) (tag string, end int, ok bool) {
	i := start + 1
	for i < len(q) && isDollarTagByte(q[i]) {
		i++
	}
	if i < len(q) && q[i] == '$' {
		return q[start+1 : i], i, true
	}
	return "", 0, false
}

func matchDollarTagEnd(q string, start int, tag string) (end int, ok bool) {
	i := start + 1
	tagStart := i
	for i < len(q) && isDollarTagByte(q[i]) {
		i++
	}
	if i < len(q) && q[i] == '$' && q[tagStart:i] == tag {
		return i, true
	}
	return 0, false
}

func isDollarTagByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// leadingTransactionControlVerb reports whether q begins with one of the
// fixed transaction-control verbs, matching case-insensitively with
// arbitrary whitespace between a multi-word verb's component words.
func leadingTransactionControlVerb(q string) (string, bool) {
	words := leadingWords(q)
	for _, verb := range transactionControlVerbs {
		if len(words) < len(verb) {
			continue
		}
		matched := true
		for i, word := range verb {
			if !strings.EqualFold(words[i], word) {
				matched = false
				break
			}
		}
		if matched {
			return strings.Join(verb, " "), true
		}
	}
	return "", false
}

// leadingWords splits q into words on whitespace, treating ';' as a word
// boundary as well rather than part of the preceding word. strings.Fields
// alone would glue a verb directly onto a trailing semicolon into one
// token (e.g. "BEGIN;"), which would never match the bare verb "BEGIN".
func leadingWords(q string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range q {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		case r == ';':
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}
