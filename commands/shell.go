package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/syntax"
	"golang.org/x/term"
)

const (
	DefaultPrompt     = "$ "
	DefaultRootPrompt = "# "
	DefaultPS2        = "> "
)

// InteractiveConfig configures the line editor of an interactive shell.
type InteractiveConfig struct {
	// HistoryFile persists entered lines, empty disables it.
	HistoryFile  string
	HistoryLimit int
}

// Interactive reads commands from a user with line editing. Lines are
// collected until they form complete commands, which then run in the
// shell.
type Interactive struct {
	Shell    *core.Shell
	Readline *readline.Instance

	buffer strings.Builder
	errs   *ColorPrinter
}

// NewInteractive sets up line editing on the shell's standard streams.
func NewInteractive(s *core.Shell, cfg InteractiveConfig) (*Interactive, error) {
	stdin := s.Stdin()
	rlCfg := &readline.Config{
		Stdin:        readline.NewCancelableStdin(stdin),
		Stdout:       s.Stdout(),
		Stderr:       s.Stderr(),
		HistoryFile:  cfg.HistoryFile,
		HistoryLimit: cfg.HistoryLimit,
		AutoComplete: &commandCompleter{shell: s},
		FuncIsTerminal: func() bool {
			f, ok := stdin.(*os.File)
			return ok && term.IsTerminal(int(f.Fd()))
		},
		FuncGetWidth: func() int {
			if f, ok := stdin.(*os.File); ok {
				if w, _, err := term.GetSize(int(f.Fd())); err == nil {
					return w
				}
			}
			return 80
		},
	}
	if err := rlCfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return nil, err
	}

	return &Interactive{
		Shell:    s,
		Readline: rl,
		errs:     NewColorPrinter(s.Stderr()),
	}, nil
}

// RunInteractive runs an interactive session until end of input or exit
// and returns the shell's exit status.
func RunInteractive(ctx context.Context, s *core.Shell, cfg InteractiveConfig) int {
	in, err := NewInteractive(s, cfg)
	if err != nil {
		s.Errorf("%v", err)
		return 1
	}
	defer in.Close()
	return in.Run(ctx)
}

// Close releases the terminal.
func (in *Interactive) Close() error {
	return in.Readline.Close()
}

// prompt expands PS1, or PS2 while a command is being continued.
func (in *Interactive) prompt() string {
	s := in.Shell
	name, def := core.EnvPS1, DefaultPrompt
	if in.buffer.Len() > 0 {
		name, def = core.EnvPS2, DefaultPS2
	}

	raw, ok := s.Vars.Get(name)
	if !ok {
		return def
	}
	expanded, err := s.ExpandString(raw.Value)
	if err != nil {
		s.Log.Printf("expanding %s: %v", name, err)
		return raw.Value
	}
	return expanded
}

// Run reads and executes lines until the input ends or the shell exits.
func (in *Interactive) Run(ctx context.Context) int {
	s := in.Shell
	for {
		if in.buffer.Len() == 0 {
			s.Notify(s.Stderr())
		}

		in.Readline.SetPrompt(in.prompt())
		line, err := in.Readline.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			in.buffer.Reset()
			continue
		case errors.Is(err, io.EOF):
			if in.buffer.Len() > 0 {
				in.buffer.Reset()
				fmt.Fprintf(s.Stderr(), "%s: syntax error: unexpected end of file\n", s.Arg0)
				s.LastStatus = core.StatusSyntaxError
			}
			return s.LastStatus
		case err != nil:
			s.Log.Printf("readline: %v", err)
			return s.LastStatus
		}

		in.buffer.WriteString(line)
		in.buffer.WriteByte('\n')

		if code, exit := in.Execute(ctx); exit {
			return code
		}
	}
}

// Execute parses the buffered lines and runs them once they form complete
// commands. It returns true if the shell exited.
func (in *Interactive) Execute(ctx context.Context) (int, bool) {
	s := in.Shell
	src := in.buffer.String()
	if strings.TrimSpace(src) == "" {
		in.buffer.Reset()
		return 0, false
	}

	prog, err := s.Parse(src)
	if syntax.IsIncomplete(err) {
		return 0, false
	}
	in.buffer.Reset()
	if err != nil {
		in.syntaxError(err)
		return 0, false
	}
	if s.Opts.NoExec {
		_ = syntax.Fprint(s.Stdout(), prog)
		return 0, false
	}

	lineCtx, cancel := context.WithCancel(ctx)
	stop := in.interruptLine(cancel)
	code, exited := s.RunLine(lineCtx, prog)
	stop()
	cancel()
	return code, exited
}

// interruptLine cancels the running line when the user interrupts it and
// relays the interrupt to the foreground job. The returned function stops
// listening.
func (in *Interactive) interruptLine(cancel context.CancelFunc) func() {
	s := in.Shell
	sigs := make(chan os.Signal, 1)
	if s.Term.Enabled() {
		s.Term.Notify(sigs)
	} else {
		signal.Notify(sigs, os.Interrupt)
	}

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			if sysSig, ok := sig.(syscall.Signal); ok {
				s.Jobs.Forward(sysSig)
			}
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (in *Interactive) syntaxError(err error) {
	s := in.Shell
	var se *syntax.SyntaxError
	if errors.As(err, &se) {
		fmt.Fprintf(s.Stderr(), "%s:%s: %s: %s\n", s.Arg0, se.Pos, in.errs.Sprintf(ColorBoldRed, "syntax error"), se.Msg)
	} else {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", s.Arg0, err)
	}
	s.Events.SyntaxError(s.Arg0, err)
	s.LastStatus = core.StatusSyntaxError
}

// commandCompleter completes the first word of a line with the names of
// builtins, functions and aliases.
type commandCompleter struct {
	shell *core.Shell
}

func (c *commandCompleter) Do(line []rune, pos int) ([][]rune, int) {
	head := string(line[:pos])
	if strings.ContainsAny(head, " \t") {
		return nil, 0
	}

	seen := make(map[string]bool)
	for _, name := range c.shell.BuiltinNames() {
		seen[name] = true
	}
	for name := range c.shell.Funcs {
		seen[name] = true
	}
	for name := range c.shell.Aliases {
		seen[name] = true
	}

	var names []string
	for name := range seen {
		if strings.HasPrefix(name, head) && name != head {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([][]rune, len(names))
	for i, name := range names {
		out[i] = []rune(name[len(head):] + " ")
	}
	return out, len([]rune(head))
}
