package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/psh/core/expand"
	"github.com/josephlewis42/psh/core/syntax"
)

// Run executes a parsed program and returns the resulting exit status.
func (s *Shell) Run(ctx context.Context, prog *syntax.Program) int {
	if prog == nil || prog.Body == nil {
		return s.LastStatus
	}
	s.runList(ctx, prog.Body)
	if code, ok := s.Exiting(); ok {
		return code
	}
	return s.LastStatus
}

func (s *Shell) runList(ctx context.Context, list *syntax.List) int {
	if list == nil {
		return s.LastStatus
	}
	for _, item := range list.Items {
		if s.stopped() {
			break
		}
		s.reapJobs()
		if ctx.Err() != nil {
			s.LastStatus = StatusInterrupted
			break
		}
		if item.Async {
			s.runAsync(ctx, item.AndOr)
			continue
		}
		s.runAndOr(ctx, item.AndOr)
	}
	return s.LastStatus
}

func (s *Shell) runAndOr(ctx context.Context, ao *syntax.AndOr) int {
	for i, pl := range ao.Pipelines {
		if i > 0 {
			switch ao.Ops[i-1] {
			case syntax.AndIf:
				if s.LastStatus != 0 {
					continue
				}
			case syntax.OrIf:
				if s.LastStatus == 0 {
					continue
				}
			}
		}

		last := i == len(ao.Pipelines)-1
		if !last {
			s.noErrExit++
		}
		status := s.runPipeline(ctx, pl)
		if !last {
			s.noErrExit--
		}
		if s.stopped() {
			break
		}
		if last && !pl.Bang {
			s.checkErrExit(status)
		}
	}
	return s.LastStatus
}

// checkErrExit exits the shell after a failure when errexit is on.
func (s *Shell) checkErrExit(status int) {
	if status != 0 && s.Opts.ErrExit && s.noErrExit == 0 {
		s.Exit(status)
	}
}

func (s *Shell) runPipeline(ctx context.Context, pl *syntax.Pipeline) int {
	if pl.Bang {
		s.noErrExit++
	}

	var status int
	if len(pl.Commands) == 1 {
		status = s.runCommand(ctx, pl.Commands[0])
	} else {
		status = s.runJob(ctx, pl.Commands, jobText(pl), false)
	}

	if pl.Bang {
		s.noErrExit--
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	s.LastStatus = status
	return status
}

// runAsync starts an AND-OR list in the background.
func (s *Shell) runAsync(ctx context.Context, ao *syntax.AndOr) {
	if len(ao.Pipelines) == 1 && !ao.Pipelines[0].Bang {
		pl := ao.Pipelines[0]
		s.runJob(ctx, pl.Commands, jobText(pl), true)
	} else {
		group := &syntax.BraceGroup{Body: &syntax.List{Items: []*syntax.ListItem{{AndOr: ao}}}}
		s.runJob(ctx, []syntax.Command{group}, jobText(ao), true)
	}
	s.LastStatus = 0
}

func (s *Shell) runCommand(ctx context.Context, cmd syntax.Command) int {
	switch c := cmd.(type) {
	case *syntax.SimpleCommand:
		return s.runSimple(ctx, c)

	case *syntax.Redirected:
		restore, err := s.redirect(ctx, c.Redirs)
		if err != nil {
			s.Errorf("%v", err)
			return 1
		}
		defer restore()
		return s.runCommand(ctx, c.Cmd)

	case *syntax.BraceGroup:
		return s.runList(ctx, c.Body)

	case *syntax.Subshell:
		return s.runSubshell(ctx, c.Body)

	case *syntax.IfClause:
		return s.runIf(ctx, c)

	case *syntax.WhileClause:
		return s.runWhile(ctx, c)

	case *syntax.ForClause:
		return s.runFor(ctx, c)

	case *syntax.CaseClause:
		return s.runCase(ctx, c)

	case *syntax.FuncDef:
		s.Funcs[c.Name] = c
		return 0
	}

	s.Errorf("unsupported command %T", cmd)
	return 1
}

// condition runs a list whose status is tested rather than reported.
func (s *Shell) condition(ctx context.Context, list *syntax.List) int {
	s.noErrExit++
	defer func() { s.noErrExit-- }()
	return s.runList(ctx, list)
}

func (s *Shell) runIf(ctx context.Context, c *syntax.IfClause) int {
	if s.condition(ctx, c.Cond) == 0 {
		if s.stopped() {
			return s.LastStatus
		}
		return s.runList(ctx, c.Then)
	}
	for _, elif := range c.Elifs {
		if s.stopped() {
			return s.LastStatus
		}
		if s.condition(ctx, elif.Cond) == 0 {
			if s.stopped() {
				return s.LastStatus
			}
			return s.runList(ctx, elif.Then)
		}
	}
	if s.stopped() {
		return s.LastStatus
	}
	if c.Else != nil {
		return s.runList(ctx, c.Else)
	}
	return 0
}

// loopControl consumes a break or continue aimed at the innermost loop and
// returns true if the loop must stop.
func (s *Shell) loopControl() bool {
	switch s.ctrl {
	case ctrlBreak:
		s.ctrlN--
		if s.ctrlN <= 0 {
			s.ctrl = ctrlNone
		}
		return true
	case ctrlContinue:
		s.ctrlN--
		if s.ctrlN <= 0 {
			s.ctrl = ctrlNone
			return false
		}
		return true
	case ctrlReturn, ctrlExit:
		return true
	}
	return false
}

func (s *Shell) runWhile(ctx context.Context, c *syntax.WhileClause) int {
	s.loops++
	defer func() { s.loops-- }()

	status := 0
	for ctx.Err() == nil {
		cond := s.condition(ctx, c.Cond)
		if s.loopControl() {
			break
		}
		if s.ctrl == ctrlNone && (cond == 0) == c.Until {
			break
		}

		status = s.runList(ctx, c.Body)
		if s.loopControl() {
			break
		}
	}
	s.LastStatus = status
	return status
}

func (s *Shell) runFor(ctx context.Context, c *syntax.ForClause) int {
	items := s.Params
	if c.In {
		var err error
		if items, err = expand.Fields(s.expandConfig(ctx), c.Items...); err != nil {
			return s.expansionFailed(err)
		}
	}

	s.loops++
	defer func() { s.loops-- }()

	status := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.SetVar(c.Name, item); err != nil {
			s.Errorf("%v", err)
			return 1
		}
		status = s.runList(ctx, c.Body)
		if s.loopControl() {
			break
		}
	}
	s.LastStatus = status
	return status
}

func (s *Shell) runCase(ctx context.Context, c *syntax.CaseClause) int {
	cfg := s.expandConfig(ctx)
	subject, err := expand.Literal(cfg, c.Word)
	if err != nil {
		return s.expansionFailed(err)
	}

	for _, item := range c.Items {
		for _, w := range item.Patterns {
			pat, err := expand.Pattern(cfg, w)
			if err != nil {
				return s.expansionFailed(err)
			}
			if !expand.Match(pat, subject) {
				continue
			}
			if item.Body == nil {
				return 0
			}
			return s.runList(ctx, item.Body)
		}
	}
	return 0
}

func (s *Shell) runSubshell(ctx context.Context, body *syntax.List) int {
	sub := s.Subshell()
	status := sub.runList(ctx, body)
	if code, ok := sub.Exiting(); ok {
		status = code
	}
	return status
}

// CallFunction runs a function with argv[1:] as positional parameters.
func (s *Shell) CallFunction(ctx context.Context, fn *syntax.FuncDef, argv []string) int {
	savedParams, savedLoops := s.Params, s.loops
	s.Params = append([]string(nil), argv[1:]...)
	s.loops = 0
	s.funcDepth++
	s.Vars.PushScope()
	defer func() {
		s.Vars.PopScope()
		s.funcDepth--
		s.Params, s.loops = savedParams, savedLoops
	}()

	status := s.runCommand(ctx, fn.Body)
	if s.ctrl == ctrlReturn {
		status = s.ctrlN
		s.ctrl, s.ctrlN = ctrlNone, 0
	}
	return status
}

// expansionFailed reports an expansion error. Only the current command is
// abandoned.
func (s *Shell) expansionFailed(err error) int {
	s.Errorf("%v", err)
	return 1
}

// cmdSubst runs a command substitution in a subshell and returns what it
// wrote to standard output.
func (s *Shell) cmdSubst(ctx context.Context, cs *syntax.CmdSubst) (string, error) {
	prog := cs.Prog
	if prog == nil {
		var err error
		if prog, err = syntax.Parse(cs.Text, s.parserOptions()...); err != nil {
			return "", err
		}
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("command substitution: %w", err)
	}

	sub := s.Subshell()
	sub.fds[1] = &fdEntry{w: pw}
	done := make(chan int, 1)
	go func() {
		defer pw.Close()
		done <- sub.Run(ctx, prog)
	}()

	out, readErr := io.ReadAll(pr)
	pr.Close()
	s.substStatus = <-done
	s.hadSubst = true
	if readErr != nil && !errors.Is(readErr, os.ErrClosed) {
		return "", fmt.Errorf("command substitution: %w", readErr)
	}
	return string(out), nil
}

func (s *Shell) parserOptions() []syntax.ParserOption {
	return []syntax.ParserOption{
		syntax.WithAliases(func(name string) (string, bool) {
			v, ok := s.Aliases[name]
			return v, ok
		}),
	}
}
