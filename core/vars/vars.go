// Package vars holds shell variables and their attributes.
package vars

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Attr is a set of variable attributes.
type Attr uint8

const (
	// AttrExport marks variables copied into the environment of children.
	AttrExport Attr = 1 << iota
	// AttrReadOnly marks variables that can't be changed or unset.
	AttrReadOnly
	// AttrLocal marks variables declared local to a function scope.
	AttrLocal
)

var (
	// ErrReadOnly matches errors caused by modifying a read-only variable.
	ErrReadOnly = errors.New("readonly variable")
	// ErrSpecial is returned when setting a special parameter.
	ErrSpecial = errors.New("cannot assign to special parameter")
	// ErrInvalidName is returned for names that aren't valid identifiers.
	ErrInvalidName = errors.New("not a valid identifier")
)

// ReadOnlyError is returned when a read-only variable would be modified.
type ReadOnlyError struct {
	Name string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s: readonly variable", e.Name)
}

// Is allows errors.Is(err, ErrReadOnly).
func (e *ReadOnlyError) Is(target error) bool {
	return target == ErrReadOnly
}

// Variable is a single shell variable. A variable may carry attributes while
// unset, for example after "export NAME".
type Variable struct {
	Value string
	Set   bool
	Attr  Attr
}

// Exported returns true if the variable is passed to child processes.
func (v Variable) Exported() bool { return v.Attr&AttrExport != 0 }

// ReadOnly returns true if the variable rejects modification.
func (v Variable) ReadOnly() bool { return v.Attr&AttrReadOnly != 0 }

// IsSpecial returns true for parameters computed by the shell that can't be
// stored: $?, $$, $!, $#, $@, $*, $- and the positional parameters.
func IsSpecial(name string) bool {
	if len(name) == 1 && strings.ContainsAny(name, "?$!#@*-") {
		return true
	}
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidName returns true if name can be used as a variable name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case '0' <= r && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func checkName(name string) error {
	switch {
	case IsSpecial(name):
		return fmt.Errorf("%s: %w", name, ErrSpecial)
	case !ValidName(name):
		return fmt.Errorf("%s: %w", name, ErrInvalidName)
	}
	return nil
}

// Store is a stack of variable scopes. Scope 0 holds global variables; each
// function call pushes a scope for variables declared local.
type Store struct {
	mu     sync.RWMutex
	scopes []map[string]*Variable
}

// NewStore creates an empty store with a global scope.
func NewStore() *Store {
	return &Store{scopes: []map[string]*Variable{make(map[string]*Variable)}}
}

// lookup finds the innermost binding for name.
func (s *Store) lookup(name string) *Variable {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

// Get returns the variable and whether it is set.
func (s *Store) Get(name string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.lookup(name)
	if v == nil {
		return Variable{}, false
	}
	return *v, v.Set
}

// Value returns the value of the variable or the empty string.
func (s *Store) Value(name string) string {
	v, _ := s.Get(name)
	return v.Value
}

// Set assigns value to name and adds attr to its attributes. New variables
// are created in the global scope unless a local binding shadows them.
func (s *Store) Set(name, value string, attr Attr) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookup(name)
	if v == nil {
		s.scopes[0][name] = &Variable{Value: value, Set: true, Attr: attr &^ AttrLocal}
		return nil
	}
	if v.ReadOnly() {
		return &ReadOnlyError{Name: name}
	}
	v.Value = value
	v.Set = true
	v.Attr |= attr &^ AttrLocal
	return nil
}

// SetAttr adds attributes to name without changing its value. The variable
// is created unset if it doesn't exist.
func (s *Store) SetAttr(name string, attr Attr) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.lookup(name)
	if v == nil {
		s.scopes[0][name] = &Variable{Attr: attr &^ AttrLocal}
		return nil
	}
	v.Attr |= attr &^ AttrLocal
	return nil
}

// Unset removes the variable. A local binding stays in place as unset so it
// continues to shadow outer scopes until the function returns.
func (s *Store) Unset(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.scopes) - 1; i >= 0; i-- {
		v, ok := s.scopes[i][name]
		if !ok {
			continue
		}
		if v.ReadOnly() {
			return &ReadOnlyError{Name: name}
		}
		if i == 0 {
			delete(s.scopes[0], name)
		} else {
			*v = Variable{Attr: AttrLocal}
		}
		return nil
	}
	return nil
}

// PushScope starts a function scope.
func (s *Store) PushScope() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scopes = append(s.scopes, make(map[string]*Variable))
}

// PopScope discards the innermost function scope.
func (s *Store) PopScope() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Depth returns the number of function scopes on the stack.
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.scopes) - 1
}

// DeclareLocal binds name in the innermost function scope. The new binding
// starts with the value visible before the declaration.
func (s *Store) DeclareLocal(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scopes) == 1 {
		return fmt.Errorf("%s: can only be used in a function", name)
	}
	top := s.scopes[len(s.scopes)-1]
	if _, ok := top[name]; ok {
		return nil
	}

	local := &Variable{Attr: AttrLocal}
	if outer := s.lookup(name); outer != nil {
		if outer.ReadOnly() {
			return &ReadOnlyError{Name: name}
		}
		local.Value = outer.Value
		local.Set = outer.Set
		local.Attr |= outer.Attr & AttrExport
	}
	top[name] = local
	return nil
}

// Binding is a variable binding captured by Save.
type Binding struct {
	Name  string
	Var   Variable
	Bound bool
}

// Save captures the innermost binding of name, for example before a
// temporary assignment.
func (s *Store) Save(name string) Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := Binding{Name: name}
	if v := s.lookup(name); v != nil {
		b.Var, b.Bound = *v, true
	}
	return b
}

// Restore puts back a binding captured by Save. Read-only attributes don't
// prevent it.
func (s *Store) Restore(b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.scopes) - 1; i >= 0; i-- {
		v, ok := s.scopes[i][b.Name]
		if !ok {
			continue
		}
		if b.Bound {
			*v = b.Var
		} else {
			delete(s.scopes[i], b.Name)
		}
		return
	}
	if b.Bound {
		val := b.Var
		s.scopes[0][b.Name] = &val
	}
}

// visible returns the innermost binding of every variable.
func (s *Store) visible() map[string]*Variable {
	out := make(map[string]*Variable)
	for _, scope := range s.scopes {
		for k, v := range scope {
			out[k] = v
		}
	}
	return out
}

// Names returns the sorted names of all visible variables including unset
// variables with attributes.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k := range s.visible() {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Environ serializes the exported, set variables as NAME=value pairs.
func (s *Store) Environ() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k, v := range s.visible() {
		if v.Set && v.Exported() {
			out = append(out, k+"="+v.Value)
		}
	}
	sort.Strings(out)
	return out
}

// ImportEnviron sets exported variables from a NAME=value list. Entries with
// invalid names are skipped.
func (s *Store) ImportEnviron(env []string) {
	for _, kv := range env {
		split := strings.SplitN(kv, "=", 2)
		if len(split) != 2 || !ValidName(split[0]) {
			continue
		}
		_ = s.Set(split[0], split[1], AttrExport)
	}
}

// Clone returns an independent copy of the store for a subshell.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Store{}
	for _, scope := range s.scopes {
		cp := make(map[string]*Variable, len(scope))
		for k, v := range scope {
			val := *v
			cp[k] = &val
		}
		out.scopes = append(out.scopes, cp)
	}
	return out
}
