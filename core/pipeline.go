package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/josephlewis42/psh/core/jobs"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vos"
)

// launch collects the members of a job while they are started.
type launch struct {
	job        *jobs.Job
	jobControl bool
	bridges    []*vos.Bridge
}

func (s *Shell) newLaunch(ctx context.Context, text string, async bool) (*launch, context.Context) {
	parent := ctx
	if async {
		// Interrupting the foreground line must not reach background jobs.
		parent = context.WithoutCancel(ctx)
	}
	jobCtx, cancel := context.WithCancel(parent)
	return &launch{
		job:        &jobs.Job{Cmd: text, Cancel: cancel},
		jobControl: s.JobControl(),
	}, jobCtx
}

// runJob runs the commands of a pipeline, each in its own subshell, with
// the standard output of each connected to the standard input of the next.
func (s *Shell) runJob(ctx context.Context, cmds []syntax.Command, text string, async bool) int {
	l, jobCtx := s.newLaunch(ctx, text, async)

	var stdin *os.File
	if async && !l.jobControl {
		null, err := os.Open(os.DevNull)
		if err != nil {
			s.Errorf("%v", err)
			return 1
		}
		stdin = null
	}

	for i, cmd := range cmds {
		sub := s.Subshell()
		memberCtx := jobCtx
		var pipe *pipeWriter
		var owned []*os.File
		if stdin != nil {
			sub.fds[0] = &fdEntry{r: stdin}
			owned = append(owned, stdin)
			stdin = nil
		}
		if i < len(cmds)-1 {
			pr, pw, err := os.Pipe()
			if err != nil {
				closeFiles(owned)
				s.Errorf("pipe: %v", err)
				break
			}
			pipe, memberCtx = sub.pipeOutput(jobCtx, pw)
			owned = append(owned, pw)
			stdin = pr
		}
		s.startMember(memberCtx, l, sub, cmd, pipe, owned)
	}
	if stdin != nil {
		stdin.Close()
	}

	return s.waitJob(ctx, l, async)
}

// startMember starts one member of a job. External commands become child
// processes; everything else runs as a task inside the shell. The files in
// owned are closed once the member no longer needs them. A member writing
// to pipe ends with StatusBrokenPipe when the reader goes away first.
func (s *Shell) startMember(ctx context.Context, l *launch, sub *Shell, cmd syntax.Command, pipe *pipeWriter, owned []*os.File) {
	memberStatus := func(status int) int {
		if code, ok := sub.Exiting(); ok {
			status = code
		}
		if pipe != nil {
			pipe.stop()
			if pipe.broken.Load() {
				status = StatusBrokenPipe
			}
		}
		return status
	}

	sc, ok := cmd.(*syntax.SimpleCommand)
	if !ok {
		p, finish := jobs.NewTask(jobText(cmd))
		l.job.Procs = append(l.job.Procs, p)
		go func() {
			defer closeFiles(owned)
			finish(memberStatus(sub.runCommand(ctx, cmd)))
		}()
		return
	}

	pc, status, restore := sub.prepare(ctx, sc)
	if pc == nil {
		restore()
		closeFiles(owned)
		l.job.Procs = append(l.job.Procs, finishedTask(jobText(sc), memberStatus(status)))
		return
	}

	if pc.Kind == KindFile {
		sub.startExternal(l, pc)
		restore()
		closeFiles(owned)
		if pipe != nil {
			pipe.stop()
		}
		return
	}

	p, finish := jobs.NewTask(pc.Name)
	l.job.Procs = append(l.job.Procs, p)
	go func() {
		defer closeFiles(owned)
		defer restore()
		finish(memberStatus(sub.runPrepared(ctx, pc)))
	}()
}

// startExternal starts the child process of pc and adds it to the launch.
func (s *Shell) startExternal(l *launch, pc *prepared) {
	files, bridges, err := s.childFiles()
	if err != nil {
		s.Errorf("%s: %v", pc.Name, err)
		l.job.Procs = append(l.job.Procs, finishedTask(pc.Name, 126))
		return
	}

	proc, err := vos.StartProcess(pc.Path, pc.argv, &vos.ProcAttr{
		Dir:     s.Dir,
		Env:     s.childEnviron(pc.assigns),
		Files:   files,
		Setpgid: l.jobControl,
		Pgid:    l.job.Pgid,
	})
	for _, b := range bridges {
		b.Started()
	}
	if err != nil {
		status := 126
		if errors.Is(err, os.ErrNotExist) {
			status = 127
		}
		s.Errorf("%s: %v", pc.Name, unwrapPathError(err))
		s.Events.UnknownCommand(pc.argv, status, err)
		l.job.Procs = append(l.job.Procs, finishedTask(pc.Name, status))
		return
	}

	if l.jobControl && l.job.Pgid == 0 {
		l.job.Pgid = proc.Pid
	}
	l.job.Procs = append(l.job.Procs, jobs.NewProcess(proc.Pid, pc.Name))
	l.bridges = append(l.bridges, bridges...)
	// The job table reaps the child with wait4.
	_ = proc.Release()

	s.Events.RunCommand(pc.argv, pc.Kind.String(), pc.Path, -1)
}

// runExternal runs a single external command in the foreground.
func (s *Shell) runExternal(ctx context.Context, pc *prepared) int {
	l, _ := s.newLaunch(ctx, pc.text, false)
	s.startExternal(l, pc)
	return s.waitJob(ctx, l, false)
}

// waitJob registers a started job and, unless it runs in the background,
// waits for it to finish or stop.
func (s *Shell) waitJob(ctx context.Context, l *launch, async bool) int {
	job := s.Jobs.Add(l.job)

	if async {
		s.LastBgPid = job.Pid()
		if s.Interactive {
			fmt.Fprintf(s.Stderr(), "[%d] %d\n", job.ID, job.Pid())
		}
		s.Log.Printf("started background job %d: %s", job.ID, job.Cmd)
		return 0
	}

	var term *jobs.Terminal
	if l.jobControl {
		term = s.Term
	}
	err := s.Jobs.WaitForeground(ctx, job, term)
	switch {
	case err != nil && ctx.Err() != nil:
		// Interrupted: the job keeps running unattended and is reaped later.
		if job.Cancel != nil {
			job.Cancel()
		}
		job.Foreground = false
		return StatusInterrupted
	case err != nil:
		s.Errorf("%v", err)
		_ = s.Jobs.Wait(ctx, job)
	}

	for _, b := range l.bridges {
		if err := b.Wait(); err != nil {
			s.Log.Printf("copying output of %q: %v", job.Cmd, err)
		}
	}

	return s.settleForeground(job)
}

// settleForeground returns the status of a job that was waited for in the
// foreground. Stopped jobs are reported and kept, finished jobs are removed.
func (s *Shell) settleForeground(job *jobs.Job) int {
	status := job.Status(s.Opts.PipeFail)
	if job.State() == jobs.Stopped {
		job.Notified = true
		fmt.Fprintf(s.Stderr(), "\n%s\n", s.Jobs.Format(job, false))
		s.Events.JobState(job.ID, job.Cmd, job.Describe())
		return status
	}

	s.Jobs.Remove(job)
	if job.Cancel != nil {
		job.Cancel()
	}
	return status
}

// Notify reports background jobs that finished or stopped since the last
// call and forgets the finished ones.
func (s *Shell) Notify(w io.Writer) {
	for _, job := range s.Jobs.Poll() {
		fmt.Fprintln(w, s.Jobs.Format(job, false))
		job.Notified = true
		s.Events.JobState(job.ID, job.Cmd, job.Describe())
		if job.State().Done() {
			s.Jobs.Remove(job)
		}
	}
}

// reapJobs silently forgets finished background jobs. Interactive shells
// report them through Notify instead.
func (s *Shell) reapJobs() {
	if s.Interactive {
		return
	}
	for _, job := range s.Jobs.Reap(s.Opts.PipeFail) {
		s.Events.JobState(job.ID, job.Cmd, job.Describe())
		if job.Cancel != nil {
			job.Cancel()
		}
	}
}

// finishedTask is a job member that never ran.
func finishedTask(name string, status int) *jobs.Process {
	p, finish := jobs.NewTask(name)
	finish(status)
	return p
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func unwrapPathError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// jobText is the command text shown in job listings.
func jobText(node syntax.Node) string {
	text := syntax.String(node)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
