// Package stdlib implements Althread's per-datatype standard interface:
// the small set of built-in methods (len, push, at, set, remove) available
// on list values. Tables are built lazily and cached on first use rather
// than being precomputed up front.
package stdlib

import (
	"fmt"
	"sync"

	"github.com/althread/althread/internal/value"
)

// Method is a closure implementing one stdlib method. The receiver is
// passed by pointer so mutating methods (push, set, remove) observe and
// modify the caller's actual value, matching a "(&mut receiver, &mut
// args)" calling convention.
type Method func(receiver *value.Value, args []value.Value) (value.Value, error)

// Table maps method names to their implementation for one datatype kind.
type Table map[string]Method

// Stdlib holds the lazily-built, cached method tables for every datatype
// kind that supports methods. The compiled project carries one Stdlib,
// which the VM uses to dispatch method calls; the compiler does not
// validate method names against it.
type Stdlib struct {
	mu     sync.Mutex
	tables map[value.Kind]Table
}

// New returns an empty Stdlib; tables are built on first reference.
func New() *Stdlib {
	return &Stdlib{tables: make(map[value.Kind]Table)}
}

// Table returns the method table for kind, building and caching it on the
// first call for that kind.
func (s *Stdlib) Table(kind value.Kind) Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[kind]; ok {
		return t
	}
	var t Table
	switch kind {
	case value.KindList:
		t = listTable()
	default:
		t = Table{}
	}
	s.tables[kind] = t
	return t
}

// Lookup resolves a method name against kind's table, reporting whether it
// exists, without requiring a receiver value.
func (s *Stdlib) Lookup(kind value.Kind, name string) (Method, bool) {
	m, ok := s.Table(kind)[name]
	return m, ok
}

func listTable() Table {
	return Table{
		"len": func(recv *value.Value, args []value.Value) (value.Value, error) {
			l, err := asList(recv)
			if err != nil {
				return nil, err
			}
			return value.Int(len(l.Items)), nil
		},
		"push": func(recv *value.Value, args []value.Value) (value.Value, error) {
			l, err := asList(recv)
			if err != nil {
				return nil, err
			}
			if len(args) != 1 {
				return nil, fmt.Errorf("push expects 1 argument, got %d", len(args))
			}
			l.Items = append(l.Items, args[0])
			return value.Null{}, nil
		},
		"at": func(recv *value.Value, args []value.Value) (value.Value, error) {
			l, err := asList(recv)
			if err != nil {
				return nil, err
			}
			i, err := index(args, len(l.Items))
			if err != nil {
				return nil, err
			}
			return l.Items[i], nil
		},
		"set": func(recv *value.Value, args []value.Value) (value.Value, error) {
			l, err := asList(recv)
			if err != nil {
				return nil, err
			}
			if len(args) != 2 {
				return nil, fmt.Errorf("set expects 2 arguments, got %d", len(args))
			}
			i, err := index(args[:1], len(l.Items))
			if err != nil {
				return nil, err
			}
			l.Items[i] = args[1]
			return value.Null{}, nil
		},
		"remove": func(recv *value.Value, args []value.Value) (value.Value, error) {
			l, err := asList(recv)
			if err != nil {
				return nil, err
			}
			i, err := index(args, len(l.Items))
			if err != nil {
				return nil, err
			}
			removed := l.Items[i]
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return removed, nil
		},
	}
}

func asList(recv *value.Value) (*value.List, error) {
	l, ok := (*recv).(*value.List)
	if !ok {
		return nil, fmt.Errorf("type error: method requires a list receiver, got %s", (*recv).Type())
	}
	return l, nil
}

func index(args []value.Value, length int) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected 1 index argument, got %d", len(args))
	}
	i, ok := args[0].(value.Int)
	if !ok {
		return 0, fmt.Errorf("type error: index must be int, got %s", args[0].Type())
	}
	if int(i) < 0 || int(i) >= length {
		return 0, fmt.Errorf("index out of bounds: %d (length %d)", i, length)
	}
	return int(i), nil
}

// MethodNames lists the stdlib methods available on kind, in declaration
// order (nil for a kind with no methods).
func MethodNames(kind value.Kind) []string {
	switch kind {
	case value.KindList:
		return []string{"len", "push", "at", "set", "remove"}
	default:
		return nil
	}
}
