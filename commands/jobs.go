package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/jobs"
)

// stateColor picks the color of a job listing line.
func stateColor(job *jobs.Job) *color.Color {
	switch job.State() {
	case jobs.Running:
		return ColorBoldGreen
	case jobs.Stopped:
		return ColorYellow
	case jobs.Signaled:
		return ColorBoldRed
	default:
		if job.Status(false) != 0 {
			return ColorBoldRed
		}
		return ColorBoldBlue
	}
}

// selectJobs resolves job specs, or returns every job when there are none.
func selectJobs(s *core.Shell, name string, specs []string) ([]*jobs.Job, bool) {
	if len(specs) == 0 {
		return s.Jobs.List(), true
	}

	ok := true
	var out []*jobs.Job
	for _, spec := range specs {
		job, err := s.Jobs.Lookup(spec)
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", name, err)
			ok = false
			continue
		}
		out = append(out, job)
	}
	return out, ok
}

// Jobs lists the jobs of the shell, forgetting the finished ones once they
// have been shown.
func Jobs(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "jobs [-lp] [JOB ...]",
		Short: "Display status of jobs.",
	}
	opts := cmd.Flags()
	long := opts.Bool('l', "include process group ids")
	pidsOnly := opts.Bool('p', "list process group leaders only")
	var cp ColorPrinter
	cp.Init(opts, s.Stdout())

	return cmd.Run(s, args, func() int {
		s.Jobs.Poll()
		selected, ok := selectJobs(s, "jobs", opts.Args())

		w := s.Stdout()
		for _, job := range selected {
			if *pidsOnly {
				pid := job.Pgid
				if pid == 0 {
					pid = job.Pid()
				}
				fmt.Fprintln(w, pid)
				continue
			}

			fmt.Fprintln(w, cp.Sprintf(stateColor(job), "%s", s.Jobs.Format(job, *long)))
			job.Notified = true
			if job.State().Done() {
				s.Jobs.Remove(job)
			}
		}

		if !ok {
			return 1
		}
		return 0
	})
}

// jobOperand resolves the single optional job operand of fg and bg.
func jobOperand(s *core.Shell, args []string) (*jobs.Job, bool) {
	spec := "%+"
	switch len(args) {
	case 1:
	case 2:
		spec = args[1]
	default:
		fmt.Fprintf(s.Stderr(), "usage: %s [JOB]\n", args[0])
		return nil, false
	}

	job, err := s.Jobs.Lookup(spec)
	if err != nil {
		if len(args) == 1 {
			fmt.Fprintf(s.Stderr(), "%s: no current job\n", args[0])
		} else {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		}
		return nil, false
	}
	return job, true
}

// Fg resumes a job in the foreground.
func Fg(s *core.Shell, args []string) int {
	if !s.JobControl() {
		fmt.Fprintln(s.Stderr(), "fg: no job control")
		return 1
	}
	job, ok := jobOperand(s, args)
	if !ok {
		return 1
	}
	return s.Foreground(job)
}

// Bg resumes stopped jobs in the background.
func Bg(s *core.Shell, args []string) int {
	if !s.JobControl() {
		fmt.Fprintln(s.Stderr(), "bg: no job control")
		return 1
	}
	job, ok := jobOperand(s, args)
	if !ok {
		return 1
	}
	if job.State() != jobs.Stopped {
		fmt.Fprintf(s.Stderr(), "bg: job %d already in background\n", job.ID)
		return 0
	}
	if err := s.Background(job); err != nil {
		fmt.Fprintf(s.Stderr(), "bg: %v\n", err)
		return 1
	}
	return 0
}

// Wait waits for the given jobs, or for all of them, to finish.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/wait.html
func Wait(s *core.Shell, args []string) int {
	if len(args) == 1 {
		for _, job := range s.Jobs.List() {
			if job.State() == jobs.Stopped {
				continue
			}
			if status, err := s.WaitJob(job); err != nil {
				return status
			}
		}
		return 0
	}

	status := 0
	for _, arg := range args[1:] {
		var job *jobs.Job
		if strings.HasPrefix(arg, "%") {
			found, err := s.Jobs.Lookup(arg)
			if err != nil {
				if id, convErr := strconv.Atoi(arg[1:]); convErr == nil {
					if st, ok := s.Jobs.ReapedJob(id); ok {
						status = st
						continue
					}
				}
				fmt.Fprintf(s.Stderr(), "wait: %v\n", err)
				status = 127
				continue
			}
			job = found
		} else {
			pid, err := strconv.Atoi(arg)
			if err != nil || pid <= 0 {
				fmt.Fprintf(s.Stderr(), "wait: %s: not a pid or valid job spec\n", arg)
				status = 2
				continue
			}
			found, ok := s.Jobs.FindPid(pid)
			if !ok {
				status = 127
				if st, ok := s.Jobs.ReapedPid(pid); ok {
					status = st
				}
				continue
			}
			job = found
		}

		st, err := s.WaitJob(job)
		if err != nil {
			return st
		}
		status = st
	}
	return status
}

func init() {
	addBuiltin("jobs", "jobs [-lp] [JOB ...]", "Display status of jobs.", Jobs)
	addBuiltin("fg", "fg [JOB]", "Move a job to the foreground.", Fg)
	addBuiltin("bg", "bg [JOB]", "Move a job to the background.", Bg)
	addBuiltin("wait", "wait [PID|JOB ...]", "Wait for job completion and return its status.", Wait)
}
