package commands

import (
	"fmt"
	"strconv"

	"github.com/josephlewis42/psh/core"
)

// Exit quits the shell, or the subshell it runs in, with the given status
// or the status of the last command.
func Exit(s *core.Shell, args []string) int {
	status := s.LastStatus
	switch len(args) {
	case 1:
	case 2:
		n, ok := parseStatus(args[1])
		if !ok {
			fmt.Fprintln(s.Stderr(), "usage: exit [n]")
			return 1
		}
		status = n
	default:
		fmt.Fprintln(s.Stderr(), "usage: exit [n]")
		return 1
	}

	s.Exit(status)
	return status
}

// Return leaves the running function or dot script.
func Return(s *core.Shell, args []string) int {
	if !s.InFunction() {
		fmt.Fprintln(s.Stderr(), "return: can only be used in a function or sourced script")
		return 1
	}

	status := s.LastStatus
	switch len(args) {
	case 1:
	case 2:
		n, ok := parseStatus(args[1])
		if !ok {
			fmt.Fprintln(s.Stderr(), "usage: return [n]")
			return 1
		}
		status = n
	default:
		fmt.Fprintln(s.Stderr(), "usage: return [n]")
		return 1
	}

	s.Return(status)
	return status
}

// loopCount parses the optional loop count of break and continue.
func loopCount(s *core.Shell, args []string) (int, bool) {
	switch len(args) {
	case 1:
		return 1, true
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			fmt.Fprintf(s.Stderr(), "%s: %s: loop count must be a positive integer\n", args[0], args[1])
			return 0, false
		}
		return n, true
	default:
		fmt.Fprintf(s.Stderr(), "usage: %s [n]\n", args[0])
		return 0, false
	}
}

// Break exits from the n innermost enclosing loops.
func Break(s *core.Shell, args []string) int {
	n, ok := loopCount(s, args)
	if !ok {
		return 1
	}
	if s.LoopDepth() == 0 {
		return 0
	}
	s.Break(n)
	return 0
}

// Continue resumes the nth enclosing loop.
func Continue(s *core.Shell, args []string) int {
	n, ok := loopCount(s, args)
	if !ok {
		return 1
	}
	if s.LoopDepth() == 0 {
		return 0
	}
	s.Continue(n)
	return 0
}

func init() {
	addBuiltin(":", ": [ARG ...]", "Do nothing, successfully.", func(*core.Shell, []string) int { return 0 })
	addBuiltin("true", "true", "Return a successful result.", func(*core.Shell, []string) int { return 0 })
	addBuiltin("false", "false", "Return an unsuccessful result.", func(*core.Shell, []string) int { return 1 })
	addBuiltin("exit", "exit [n]", "Exit the shell.", Exit)
	addBuiltin("return", "return [n]", "Return from a function or sourced script.", Return)
	addBuiltin("break", "break [n]", "Exit from within a for, while or until loop.", Break)
	addBuiltin("continue", "continue [n]", "Resume the next iteration of a loop.", Continue)
}
