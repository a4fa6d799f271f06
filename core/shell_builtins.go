package core

import (
	"sort"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]Builtin)

// SpecialBuiltins are found before functions during command search and
// their variable assignments persist after they return.
var SpecialBuiltins = map[string]bool{
	"break":    true,
	":":        true,
	"continue": true,
	".":        true,
	"eval":     true,
	"exec":     true,
	"exit":     true,
	"export":   true,
	"readonly": true,
	"return":   true,
	"set":      true,
	"shift":    true,
	"times":    true,
	"trap":     true,
	"unset":    true,
}

// Builtin is a command implemented by the shell itself. Builtins read and
// write through s.Stdin, s.Stdout and s.Stderr.
type Builtin interface {
	Main(s *Shell, args []string) int
}

// BuiltinFunc adapts a function to a Builtin.
type BuiltinFunc func(s *Shell, args []string) int

func (f BuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ Builtin = (BuiltinFunc)(nil)

// BuiltinNames returns the names in the builtin table, sorted.
func (s *Shell) BuiltinNames() []string {
	var out []string
	for k := range s.Builtins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoopDepth returns the number of enclosing loops.
func (s *Shell) LoopDepth() int {
	return s.loops
}

// InFunction returns true while a function or a dot script runs, which is
// where return is allowed.
func (s *Shell) InFunction() bool {
	return s.funcDepth > 0 || s.dotDepth > 0
}

// Break asks the n innermost loops to stop.
func (s *Shell) Break(n int) {
	s.ctrl, s.ctrlN = ctrlBreak, clamp(n, 1, s.loops)
}

// Continue asks the nth innermost loop to start its next iteration.
func (s *Shell) Continue(n int) {
	s.ctrl, s.ctrlN = ctrlContinue, clamp(n, 1, s.loops)
}

// Return asks the running function or dot script to finish with status.
func (s *Shell) Return(status int) {
	s.ctrl, s.ctrlN = ctrlReturn, status
}

// Exit asks the shell, or the current subshell, to finish with status.
func (s *Shell) Exit(status int) {
	s.ctrl, s.ctrlN = ctrlExit, status
}

// Exiting returns the exit status once Exit was called.
func (s *Shell) Exiting() (int, bool) {
	if s.ctrl == ctrlExit {
		return s.ctrlN, true
	}
	return 0, false
}

// stopped returns true while a control transfer is unwinding the commands
// being run.
func (s *Shell) stopped() bool {
	return s.ctrl != ctrlNone
}

func clamp(n, lo, hi int) int {
	if n > hi {
		n = hi
	}
	if n < lo {
		n = lo
	}
	return n
}
