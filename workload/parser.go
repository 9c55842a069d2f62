package workload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

var (
	// ErrSyntax is returned for a malformed op line
	ErrSyntax = errors.New("workload: syntax error")
	// ErrUnknownProgram is returned when a fork or init names no program
	ErrUnknownProgram = errors.New("workload: unknown program")
)

// ParseLine parses one op. It returns nil for a blank or comment line.
func ParseLine(text string) (*Op, error) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	cursor := parsly.NewCursor("", []byte(text), 0)
	matched := cursor.MatchOne(wordToken)
	if matched.Code != wordCode {
		return nil, syntaxError(cursor, wordToken)
	}
	op := &Op{Kind: Kind(strings.ToLower(matched.Text(cursor)))}
	var err error
	switch op.Kind {
	case KindSpin, KindSleep, KindExit, KindKill, KindSbrk, KindLoop:
		if op.N, err = matchInt(cursor); err != nil {
			return nil, err
		}
		if op.N < 0 && op.Kind != KindExit && op.Kind != KindSbrk {
			return nil, fmt.Errorf("%w: %s expects a non-negative operand", ErrSyntax, op.Kind)
		}
	case KindFork:
		matched = cursor.MatchAfterOptional(whitespaceToken, wordToken)
		if matched.Code != wordCode {
			return nil, syntaxError(cursor, wordToken)
		}
		op.Name = matched.Text(cursor)
		op.Count = 1
		matched = cursor.MatchAfterOptional(whitespaceToken, repeatToken)
		if matched.Code == repeatCode {
			if op.Count, err = strconv.Atoi(matched.Text(cursor)[1:]); err != nil || op.Count < 1 {
				return nil, fmt.Errorf("%w: invalid fork count %q", ErrSyntax, matched.Text(cursor))
			}
		}
	case KindWait:
		matched = cursor.MatchAfterOptional(whitespaceToken, wordToken)
		if matched.Code == wordCode {
			if word := matched.Text(cursor); word != "all" {
				return nil, fmt.Errorf("%w: unexpected %q after wait", ErrSyntax, word)
			}
			op.All = true
		}
	case KindPriority:
		matched = cursor.MatchAfterOptional(whitespaceToken, wordToken)
		if matched.Code == wordCode {
			if word := matched.Text(cursor); word != "self" {
				return nil, fmt.Errorf("%w: priority target %q is neither a pid nor self", ErrSyntax, word)
			}
			op.Self = true
		} else if op.Target, err = matchInt(cursor); err != nil {
			return nil, err
		}
		if op.N, err = matchInt(cursor); err != nil {
			return nil, err
		}
	case KindStore, KindLoad:
		addr, err := matchInt(cursor)
		if err != nil {
			return nil, err
		}
		if addr < 0 {
			return nil, fmt.Errorf("%w: negative address %d", ErrSyntax, addr)
		}
		op.Addr = uint64(addr)
		if op.Kind == KindStore {
			if op.N, err = matchInt(cursor); err != nil {
				return nil, err
			}
			if op.N < 0 || op.N > 255 {
				return nil, fmt.Errorf("%w: store value %d is not a byte", ErrSyntax, op.N)
			}
		}
	case KindWaitX, KindEnd:
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrSyntax, op.Kind)
	}
	cursor.MatchOne(whitespaceToken)
	if cursor.Pos < cursor.InputSize {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, string(cursor.Input[cursor.Pos:]))
	}
	return op, nil
}

func matchInt(cursor *parsly.Cursor) (int, error) {
	matched := cursor.MatchAfterOptional(whitespaceToken, integerToken)
	if matched.Code != integerCode {
		return 0, syntaxError(cursor, integerToken)
	}
	value, err := strconv.ParseInt(matched.Text(cursor), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return int(value), nil
}

func syntaxError(cursor *parsly.Cursor, expected *parsly.Token) error {
	return fmt.Errorf("%w: %v", ErrSyntax, cursor.NewError(expected))
}

// Line is the source of one op
type Line struct {
	Number int
	Text   string
}

// ParseProgram parses lines into a tree of ops, nesting loop bodies
func ParseProgram(name string, lines []Line) ([]*Op, error) {
	root := &Op{}
	stack := []*Op{root}
	for _, line := range lines {
		op, err := ParseLine(line.Text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line.Number, err)
		}
		if op == nil {
			continue
		}
		op.Line = line.Number
		parent := stack[len(stack)-1]
		switch op.Kind {
		case KindLoop:
			parent.Body = append(parent.Body, op)
			stack = append(stack, op)
		case KindEnd:
			if len(stack) == 1 {
				return nil, fmt.Errorf("%s:%d: %w: end without loop", name, line.Number, ErrSyntax)
			}
			stack = stack[:len(stack)-1]
		default:
			parent.Body = append(parent.Body, op)
		}
	}
	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, fmt.Errorf("%s:%d: %w: loop without end", name, open.Line, ErrSyntax)
	}
	return root.Body, nil
}
