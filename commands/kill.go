package commands

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/jobs"
	"golang.org/x/sys/unix"
)

// maxSignal is the highest signal listed by kill -l.
const maxSignal = 31

// parseSignal accepts a signal name with or without the SIG prefix, or a
// number.
func parseSignal(spec string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		if n < 0 || n > 64 {
			return 0, fmt.Errorf("%s: invalid signal specification", spec)
		}
		return syscall.Signal(n), nil
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%s: invalid signal specification", spec)
}

// signalName returns the name of sig without the SIG prefix.
func signalName(sig syscall.Signal) string {
	return strings.TrimPrefix(unix.SignalName(sig), "SIG")
}

// listSignals implements kill -l.
func listSignals(s *core.Shell, operands []string) int {
	if len(operands) == 0 {
		var names []string
		for sig := syscall.Signal(1); sig <= maxSignal; sig++ {
			if name := signalName(sig); name != "" {
				names = append(names, name)
			}
		}
		fmt.Fprintln(s.Stdout(), strings.Join(names, " "))
		return 0
	}

	status := 0
	for _, arg := range operands {
		n, err := strconv.Atoi(arg)
		if err == nil {
			// Exit statuses of signalled commands map back to the signal.
			if n > 128 {
				n -= 128
			}
			if name := signalName(syscall.Signal(n)); name != "" {
				fmt.Fprintln(s.Stdout(), name)
				continue
			}
		} else if sig, err := parseSignal(arg); err == nil {
			fmt.Fprintln(s.Stdout(), int(sig))
			continue
		}
		fmt.Fprintf(s.Stderr(), "kill: %s: invalid signal specification\n", arg)
		status = 1
	}
	return status
}

// Kill sends a signal to processes or jobs.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/kill.html
func Kill(s *core.Shell, args []string) int {
	const usage = "usage: kill [-s SIGNAL | -SIGNAL] PID|JOB ... or kill -l [STATUS]"

	sig := syscall.SIGTERM
	operands := args[1:]
	if len(operands) > 0 {
		switch arg := operands[0]; {
		case arg == "-l" || arg == "-L":
			return listSignals(s, operands[1:])
		case arg == "-s" || arg == "-n":
			if len(operands) < 2 {
				fmt.Fprintln(s.Stderr(), usage)
				return 2
			}
			parsed, err := parseSignal(operands[1])
			if err != nil {
				fmt.Fprintf(s.Stderr(), "kill: %v\n", err)
				return 2
			}
			sig, operands = parsed, operands[2:]
		case arg == "--":
			operands = operands[1:]
		case len(arg) > 1 && arg[0] == '-' && len(operands) > 1:
			parsed, err := parseSignal(arg[1:])
			if err != nil {
				fmt.Fprintf(s.Stderr(), "kill: %v\n", err)
				return 2
			}
			sig, operands = parsed, operands[1:]
		}
	}
	if len(operands) > 0 && operands[0] == "--" {
		operands = operands[1:]
	}
	if len(operands) == 0 {
		fmt.Fprintln(s.Stderr(), usage)
		return 2
	}

	status := 0
	for _, arg := range operands {
		if err := signalTarget(s, arg, sig); err != nil {
			fmt.Fprintf(s.Stderr(), "kill: %v\n", err)
			status = 1
		}
	}
	return status
}

// signalTarget delivers sig to a job spec or a pid; negative pids name
// process groups.
func signalTarget(s *core.Shell, target string, sig syscall.Signal) error {
	if strings.HasPrefix(target, "%") {
		job, err := s.Jobs.Lookup(target)
		if err != nil {
			return err
		}
		if err := s.Jobs.Signal(job, sig); err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		if sig == syscall.SIGCONT {
			for _, p := range job.Procs {
				if p.State == jobs.Stopped {
					p.State = jobs.Running
				}
			}
		}
		return nil
	}

	pid, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("%s: arguments must be process or job IDs", target)
	}
	if job, ok := s.Jobs.FindPid(pid); ok && job.LastPid() == 0 {
		return s.Jobs.Signal(job, sig)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	return nil
}

func init() {
	addBuiltin("kill", "kill [-s SIGNAL | -SIGNAL] PID|JOB ...", "Send a signal to a job.", Kill)
}
