package workload

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/kproc/internal/yml"
	"github.com/viant/kproc/service/meta"
)

// Program is a named list of ops
type Program struct {
	Name string
	Ops  []*Op
}

// Workload is a set of programs started from Init
type Workload struct {
	Init     string
	Programs map[string]*Program
}

// Load downloads and decodes the workload document at URL
func Load(ctx context.Context, URL string) (*Workload, error) {
	data, err := meta.New(afs.New()).Download(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load workload: %w", err)
	}
	ret, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid workload %s: %w", URL, err)
	}
	return ret, nil
}

// Decode parses a YAML workload document. A program is either a sequence of
// op lines or a literal block with one op per line.
func Decode(data []byte) (*Workload, error) {
	root, err := yml.Decode(data)
	if err != nil {
		return nil, err
	}
	ret := &Workload{Init: "init", Programs: map[string]*Program{}}
	if node := root.Lookup("init"); node != nil {
		if ret.Init, err = node.Text(); err != nil {
			return nil, err
		}
	}
	programs := root.Lookup("programs")
	if programs == nil {
		return nil, fmt.Errorf("programs were not defined")
	}
	err = programs.Pairs(func(name string, node *yml.Node) error {
		lines, err := sourceLines(node)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ops, err := ParseProgram(name, lines)
		if err != nil {
			return err
		}
		ret.Programs[name] = &Program{Name: name, Ops: ops}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func sourceLines(node *yml.Node) ([]Line, error) {
	var lines []Line
	if node.IsScalar() {
		text, _ := node.Text()
		first := node.Line
		if node.IsBlock() {
			first++
		}
		for i, line := range strings.Split(text, "\n") {
			lines = append(lines, Line{Number: first + i, Text: line})
		}
		return lines, nil
	}
	err := node.Items(func(_ int, item *yml.Node) error {
		text, err := item.Text()
		if err != nil {
			return err
		}
		lines = append(lines, Line{Number: item.Line, Text: text})
		return nil
	})
	return lines, err
}

// Validate checks that init and every forked program exist and that init
// never exits
func (w *Workload) Validate() error {
	initProgram, ok := w.Programs[w.Init]
	if !ok {
		return fmt.Errorf("%w: init %q", ErrUnknownProgram, w.Init)
	}
	if op := find(initProgram.Ops, func(op *Op) bool { return op.Kind == KindExit }); op != nil {
		return fmt.Errorf("%s:%d: init cannot exit", w.Init, op.Line)
	}
	for _, name := range w.Names() {
		program := w.Programs[name]
		op := find(program.Ops, func(op *Op) bool {
			_, ok := w.Programs[op.Name]
			return op.Kind == KindFork && !ok
		})
		if op != nil {
			return fmt.Errorf("%s:%d: %w: %q", name, op.Line, ErrUnknownProgram, op.Name)
		}
	}
	return nil
}

// Names returns the sorted program names
func (w *Workload) Names() []string {
	names := make([]string, 0, len(w.Programs))
	for name := range w.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func find(ops []*Op, fn func(op *Op) bool) *Op {
	for _, op := range ops {
		if fn(op) {
			return op
		}
		if found := find(op.Body, fn); found != nil {
			return found
		}
	}
	return nil
}
