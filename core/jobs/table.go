package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrNoSuchJob is returned when a job spec doesn't match any job.
	ErrNoSuchJob = errors.New("no such job")
	// ErrAmbiguous is returned when a job spec matches several jobs.
	ErrAmbiguous = errors.New("ambiguous job spec")
)

// TaskPidBase is above any Linux process id. Jobs made only of in-shell
// tasks are numbered from here so $! and wait can refer to them.
const TaskPidBase = 1 << 22

// maxReaped bounds the statuses kept for jobs reaped in the background.
const maxReaped = 1024

// Table is the set of jobs known to a shell.
type Table struct {
	mu       sync.Mutex
	jobs     []*Job
	current  *Job
	previous *Job

	lastTask int
	// reaped holds finished jobs removed by Reap, oldest first.
	reaped []reapedJob

	// wait4 is unix.Wait4, replaceable in tests.
	wait4 func(pid int, ws *unix.WaitStatus, options int, ru *unix.Rusage) (int, error)
}

// NewTable creates an empty job table.
func NewTable() *Table {
	return &Table{wait4: unix.Wait4}
}

// Add registers a newly launched job and makes it the current job.
func (t *Table) Add(job *Job) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := 1
	for _, j := range t.jobs {
		if j.ID >= id {
			id = j.ID + 1
		}
	}
	job.ID = id
	if job.LastPid() == 0 && job.taskPid == 0 {
		t.lastTask++
		job.taskPid = TaskPidBase + t.lastTask
	}
	t.jobs = append(t.jobs, job)
	t.setCurrent(job)
	return job
}

func (t *Table) setCurrent(job *Job) {
	if t.current == job {
		return
	}
	t.previous = t.current
	t.current = job
}

// Get returns the job with the given ID.
func (t *Table) Get(id int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// List returns the jobs ordered by ID.
func (t *Table) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*Job(nil), t.jobs...)
}

// Current returns the job marked "+" in listings, and Previous the one
// marked "-".
func (t *Table) Current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Table) Previous() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.previous
}

// Marker returns "+", "-" or " " for job listings.
func (t *Table) Marker(job *Job) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch job {
	case t.current:
		return "+"
	case t.previous:
		return "-"
	default:
		return " "
	}
}

// Remove forgets a job.
func (t *Table) Remove(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, j := range t.jobs {
		if j == job {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			break
		}
	}
	if t.previous == job {
		t.previous = nil
	}
	if t.current == job {
		t.current = t.previous
		t.previous = nil
	}
	if t.previous == nil {
		for i := len(t.jobs) - 1; i >= 0; i-- {
			if t.jobs[i] != t.current {
				t.previous = t.jobs[i]
				break
			}
		}
	}
}

// Lookup resolves a job spec: %n, %%, %+, %-, %string (command prefix) or
// %?string (command substring). A bare number is treated as %n.
func (t *Table) Lookup(spec string) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	orig := spec
	spec = strings.TrimPrefix(spec, "%")

	var found *Job
	switch {
	case spec == "" || spec == "%" || spec == "+":
		found = t.current
	case spec == "-":
		found = t.previous
	default:
		if id, err := strconv.Atoi(spec); err == nil {
			for _, j := range t.jobs {
				if j.ID == id {
					found = j
				}
			}
			break
		}

		match := func(j *Job) bool { return strings.HasPrefix(j.Cmd, spec) }
		if sub, ok := strings.CutPrefix(spec, "?"); ok {
			match = func(j *Job) bool { return strings.Contains(j.Cmd, sub) }
		}
		for _, j := range t.jobs {
			if !match(j) {
				continue
			}
			if found != nil {
				return nil, fmt.Errorf("%s: %w", orig, ErrAmbiguous)
			}
			found = j
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%s: %w", orig, ErrNoSuchJob)
	}
	return found, nil
}

// FindPid returns the job with a process, or task identifier, pid.
func (t *Table) FindPid(pid int) (*Job, bool) {
	for _, job := range t.List() {
		if job.Pid() == pid {
			return job, true
		}
		for _, p := range job.Pids() {
			if p == pid {
				return job, true
			}
		}
	}
	return nil, false
}

// Reap polls the jobs and removes the ones that finished without reporting
// them. Their statuses stay available through ReapedPid and ReapedJob. It returns the
// removed jobs.
func (t *Table) Reap(pipefail bool) []*Job {
	var removed []*Job
	for _, job := range t.Poll() {
		if !job.State().Done() {
			continue
		}
		job.Notified = true
		t.remember(job, job.Status(pipefail))
		t.Remove(job)
		removed = append(removed, job)
	}
	return removed
}

type reapedJob struct {
	id, pid, status int
}

func (t *Table) remember(job *Job, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reaped = append(t.reaped, reapedJob{id: job.ID, pid: job.Pid(), status: status})
	if len(t.reaped) > maxReaped {
		t.reaped = t.reaped[1:]
	}
}

// ReapedPid returns the status of a job removed by Reap whose $! was pid.
// Each status is returned once.
func (t *Table) ReapedPid(pid int) (int, bool) {
	return t.takeReaped(func(r reapedJob) bool { return r.pid == pid })
}

// ReapedJob is ReapedPid for a job number.
func (t *Table) ReapedJob(id int) (int, bool) {
	return t.takeReaped(func(r reapedJob) bool { return r.id == id })
}

func (t *Table) takeReaped(match func(reapedJob) bool) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.reaped) - 1; i >= 0; i-- {
		if r := t.reaped[i]; match(r) {
			t.reaped = append(t.reaped[:i], t.reaped[i+1:]...)
			return r.status, true
		}
	}
	return 0, false
}

// Poll reaps state changes without blocking and returns the jobs whose
// state changed and haven't been reported yet.
func (t *Table) Poll() []*Job {
	var changed []*Job
	for _, job := range t.List() {
		before := job.State()
		for _, p := range job.Procs {
			t.pollProcess(p, unix.WNOHANG)
		}
		after := job.State()
		if after != before {
			job.Notified = false
			if after == Stopped {
				t.mu.Lock()
				t.setCurrent(job)
				t.mu.Unlock()
			}
		}
		if !job.Notified && after != Running {
			changed = append(changed, job)
		}
	}
	return changed
}

func (t *Table) pollProcess(p *Process, options int) {
	if p.State.Done() {
		return
	}

	if p.IsTask() {
		if options&unix.WNOHANG != 0 {
			select {
			case st := <-p.done:
				p.finish(st)
			default:
			}
			return
		}
		p.finish(<-p.done)
		return
	}

	options |= unix.WUNTRACED
	if options&unix.WNOHANG != 0 {
		options |= unix.WCONTINUED
	}

	var ws unix.WaitStatus
	for {
		pid, err := t.wait4(p.Pid, &ws, options, nil)
		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ECHILD):
			// Somebody else reaped it; nothing more can be learned.
			p.State = Exited
			return
		case err != nil || pid == 0:
			return
		}
		p.update(ws)
		return
	}
}

// Wait blocks until every member of job has exited or the job stopped.
// In-shell members stop waiting when ctx is done.
func (t *Table) Wait(ctx context.Context, job *Job) error {
	for _, p := range job.Procs {
		if p.State != Running {
			continue
		}

		if p.IsTask() {
			select {
			case st := <-p.done:
				p.finish(st)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		t.pollProcess(p, 0)
	}

	if job.State() == Stopped {
		job.Foreground = false
		t.mu.Lock()
		t.setCurrent(job)
		t.mu.Unlock()
	}
	return nil
}

// WaitForeground gives the terminal to job, waits for it to exit or stop
// and takes the terminal back. term may be nil or disabled.
func (t *Table) WaitForeground(ctx context.Context, job *Job, term *Terminal) error {
	job.Foreground = true
	if term.Enabled() && job.Pgid > 0 {
		if err := term.Foreground(job.Pgid); err != nil {
			return err
		}
		defer term.Reclaim()
	}
	return t.Wait(ctx, job)
}

// Signal sends sig to every process of the job. In-shell members are
// cancelled for signals that would terminate them.
func (t *Table) Signal(job *Job, sig syscall.Signal) error {
	if job.Pgid > 0 {
		if err := unix.Kill(-job.Pgid, sig); err != nil {
			return err
		}
	} else {
		for _, pid := range job.Pids() {
			if err := unix.Kill(pid, sig); err != nil {
				return err
			}
		}
	}

	switch sig {
	case syscall.SIGCONT, syscall.SIGTSTP, syscall.SIGSTOP, syscall.SIGTTIN, syscall.SIGTTOU, 0:
	default:
		if job.Cancel != nil {
			job.Cancel()
		}
	}
	return nil
}

// Continue resumes a stopped job in the background or foreground.
func (t *Table) Continue(ctx context.Context, job *Job, foreground bool, term *Terminal) error {
	for _, p := range job.Procs {
		if p.State == Stopped {
			p.State = Running
		}
	}
	job.Notified = true

	if foreground && term.Enabled() && job.Pgid > 0 {
		if err := term.Foreground(job.Pgid); err != nil {
			return err
		}
	}
	if job.Pgid > 0 {
		if err := unix.Kill(-job.Pgid, syscall.SIGCONT); err != nil {
			return err
		}
	}
	if !foreground {
		job.Foreground = false
		return nil
	}
	return t.WaitForeground(ctx, job, term)
}

// Forward relays a signal received by the shell to the foreground job.
// It returns false if no job is in the foreground.
func (t *Table) Forward(sig syscall.Signal) bool {
	for _, job := range t.List() {
		if job.Foreground && job.State() == Running {
			_ = t.Signal(job, sig)
			return true
		}
	}
	return false
}

// Format renders a job listing line like "[1]+ Running  sleep 10".
func (t *Table) Format(job *Job, long bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d]%s ", job.ID, t.Marker(job))
	if long && job.Pgid > 0 {
		fmt.Fprintf(&sb, "%d ", job.Pgid)
	}
	fmt.Fprintf(&sb, "%-24s%s", job.Describe(), job.Cmd)
	return sb.String()
}
