package workload

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota + 1
	wordCode
	integerCode
	repeatCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	wordToken       = parsly.NewToken(wordCode, "Word", &wordMatcher{})
	integerToken    = parsly.NewToken(integerCode, "Integer", &integerMatcher{})
	repeatToken     = parsly.NewToken(repeatCode, "xN", &repeatMatcher{})
)

// wordMatcher matches a program name or keyword
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input, pos, size := cursor.Input, cursor.Pos, cursor.InputSize
	if pos >= size || !isLetter(input[pos]) {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '-' || c == '.' {
			matched++
			continue
		}
		break
	}
	return terminated(cursor, matched)
}

// integerMatcher matches a signed decimal or 0x prefixed hex integer
type integerMatcher struct{}

func (m *integerMatcher) Match(cursor *parsly.Cursor) int {
	input, pos, size := cursor.Input, cursor.Pos, cursor.InputSize
	i := pos
	if i < size && input[i] == '-' {
		i++
	}
	if i+1 < size && input[i] == '0' && (input[i+1] == 'x' || input[i+1] == 'X') {
		start := i + 2
		i = start
		for i < size && isHex(input[i]) {
			i++
		}
		if i == start {
			return 0
		}
		return terminated(cursor, i-pos)
	}
	start := i
	for i < size && isDigit(input[i]) {
		i++
	}
	if i == start {
		return 0
	}
	return terminated(cursor, i-pos)
}

// repeatMatcher matches the xN fork multiplier
type repeatMatcher struct{}

func (m *repeatMatcher) Match(cursor *parsly.Cursor) int {
	input, pos, size := cursor.Input, cursor.Pos, cursor.InputSize
	if pos+1 >= size || input[pos] != 'x' {
		return 0
	}
	i := pos + 1
	for i < size && isDigit(input[i]) {
		i++
	}
	if i == pos+1 {
		return 0
	}
	return terminated(cursor, i-pos)
}

// terminated rejects a match running into the next token without a separator
func terminated(cursor *parsly.Cursor, matched int) int {
	end := cursor.Pos + matched
	if end < cursor.InputSize && !isSpace(cursor.Input[end]) {
		return 0
	}
	return matched
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
