// Package jobs tracks the process groups launched by the shell.
//
// Job state only advances when the shell calls Poll or Wait, which keeps
// reporting at well defined points between commands.
package jobs

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// State is the lifecycle of a process or job.
type State int

const (
	Running State = iota
	Stopped
	Exited
	Signaled
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Exited:
		return "Done"
	case Signaled:
		return "Killed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Done returns true once the process can no longer run.
func (s State) Done() bool {
	return s == Exited || s == Signaled
}

// Process is one member of a job. It is either an OS process or a task
// running inside the shell, such as a builtin in a pipeline.
type Process struct {
	Pid    int
	Name   string
	State  State
	Status int
	Signal syscall.Signal

	done <-chan int
}

// NewProcess tracks a started OS process.
func NewProcess(pid int, name string) *Process {
	return &Process{Pid: pid, Name: name}
}

// NewTask tracks work done by the shell itself. The returned function must
// be called exactly once with the task's exit status.
func NewTask(name string) (*Process, func(status int)) {
	done := make(chan int, 1)
	p := &Process{Name: name, done: done}
	return p, func(status int) {
		done <- status
		close(done)
	}
}

// IsTask returns true if the process runs inside the shell.
func (p *Process) IsTask() bool {
	return p.done != nil
}

func (p *Process) finish(status int) {
	p.State = Exited
	p.Status = status
}

func (p *Process) update(ws unix.WaitStatus) {
	switch {
	case ws.Exited():
		p.State = Exited
		p.Status = ws.ExitStatus()
	case ws.Signaled():
		p.State = Signaled
		p.Signal = ws.Signal()
		p.Status = 128 + int(ws.Signal())
	case ws.Stopped():
		p.State = Stopped
		p.Signal = ws.StopSignal()
		p.Status = 128 + int(ws.StopSignal())
	case ws.Continued():
		p.State = Running
	}
}

// Job is a pipeline launched by the shell.
type Job struct {
	ID   int
	Pgid int
	// Cmd is the source text shown in job listings.
	Cmd   string
	Procs []*Process

	Foreground bool
	// Notified is set once the job's latest state has been reported.
	Notified bool

	// Cancel stops the in-shell members of the job, may be nil.
	Cancel func()

	// taskPid names a job without OS processes, see Table.Add.
	taskPid int
}

// State returns Running while any member runs, Stopped while any member is
// stopped and otherwise the final state of the last member.
func (j *Job) State() State {
	stopped := false
	for _, p := range j.Procs {
		switch p.State {
		case Running:
			return Running
		case Stopped:
			stopped = true
		}
	}
	if stopped {
		return Stopped
	}
	if len(j.Procs) == 0 {
		return Exited
	}
	return j.Procs[len(j.Procs)-1].State
}

// Status returns the exit status of the job. With pipefail the first
// non-zero member status is used, otherwise the last member's status.
// A stopped job reports 128 plus the stop signal.
func (j *Job) Status(pipefail bool) int {
	if len(j.Procs) == 0 {
		return 0
	}
	if j.State() == Stopped {
		for _, p := range j.Procs {
			if p.State == Stopped {
				return p.Status
			}
		}
	}
	if pipefail {
		for _, p := range j.Procs {
			if p.Status != 0 {
				return p.Status
			}
		}
		return 0
	}
	return j.Procs[len(j.Procs)-1].Status
}

// Pids returns the OS process ids of the job.
func (j *Job) Pids() []int {
	var out []int
	for _, p := range j.Procs {
		if !p.IsTask() {
			out = append(out, p.Pid)
		}
	}
	return out
}

// LastPid returns the pid of the last OS process, or 0.
func (j *Job) LastPid() int {
	pids := j.Pids()
	if len(pids) == 0 {
		return 0
	}
	return pids[len(pids)-1]
}

// Pid returns the process id reported by $! for the job: its last OS
// process, or the identifier the table gave a job run inside the shell.
func (j *Job) Pid() int {
	if pid := j.LastPid(); pid != 0 {
		return pid
	}
	return j.taskPid
}

// Describe returns the state column of a job listing.
func (j *Job) Describe() string {
	switch state := j.State(); state {
	case Exited:
		if st := j.Status(false); st != 0 {
			return fmt.Sprintf("Exit %d", st)
		}
		return "Done"
	case Signaled, Stopped:
		for _, p := range j.Procs {
			if p.State == state {
				return signalName(p.Signal, state)
			}
		}
		return state.String()
	default:
		return state.String()
	}
}

func signalName(sig syscall.Signal, state State) string {
	switch sig {
	case syscall.SIGTSTP, syscall.SIGSTOP:
		return "Stopped"
	case syscall.SIGTTIN:
		return "Stopped (tty input)"
	case syscall.SIGTTOU:
		return "Stopped (tty output)"
	case syscall.SIGKILL:
		return "Killed"
	case syscall.SIGTERM:
		return "Terminated"
	case syscall.SIGINT:
		return "Interrupt"
	case 0:
		return state.String()
	default:
		return unix.SignalName(sig)
	}
}
