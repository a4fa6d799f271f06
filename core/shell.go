package core

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/josephlewis42/psh/core/expand"
	"github.com/josephlewis42/psh/core/jobs"
	"github.com/josephlewis42/psh/core/logger"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vars"
	"github.com/josephlewis42/psh/core/vos"
)

const (
	EnvHome   = "HOME"
	EnvPWD    = "PWD"
	EnvOldPWD = "OLDPWD"
	EnvPath   = "PATH"
	EnvIFS    = "IFS"
	EnvPS1    = "PS1"
	EnvPS2    = "PS2"
	EnvPS4    = "PS4"

	// DefaultPath is used for command lookup when PATH is unset.
	DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
	ctrlExit
)

// Shell is the state of a running shell. Subshells and the members of
// pipelines run on copies made by Subshell.
type Shell struct {
	Vars     *vars.Store
	Funcs    map[string]*syntax.FuncDef
	Aliases  map[string]string
	Builtins map[string]Builtin
	Jobs     *jobs.Table
	// Term is the controlling terminal, nil when job control isn't possible.
	Term *jobs.Terminal
	FS   vos.VFS
	Opts Options

	// Arg0 is $0 and prefixes diagnostics.
	Arg0   string
	Params []string
	// Dir is the working directory.
	Dir         string
	Pid         int
	Interactive bool

	LastStatus int
	LastBgPid  int

	Log    *log.Logger
	Events *logger.SessionLogger

	fds fdTable
	ctx context.Context

	ctrl  ctrlKind
	ctrlN int

	loops     int
	funcDepth int
	dotDepth  int
	// noErrExit is non-zero while running commands whose failure doesn't
	// trigger errexit, such as if conditions.
	noErrExit int

	substStatus int
	hadSubst    bool
	// keepRedirs is set by exec without a command so the redirections of
	// the running command stay in effect.
	keepRedirs bool

	subshell bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithStdio sets the standard streams. Writers that aren't OS files are
// serialized because pipeline members write concurrently.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *Shell) {
		out := syncWriter(stdout)
		errOut := out
		if stderr != stdout {
			errOut = syncWriter(stderr)
		}
		s.fds = fdTable{
			0: {r: stdin},
			1: {w: out},
			2: {w: errOut},
		}
	}
}

// WithVIO uses the streams of a vos.VIO.
func WithVIO(vio vos.VIO) Option {
	return WithStdio(vio.Stdin(), vio.Stdout(), vio.Stderr())
}

// WithFS sets the filesystem used for redirections, pathname expansion and
// command lookup.
func WithFS(fs vos.VFS) Option {
	return func(s *Shell) { s.FS = fs }
}

// WithDir sets the working directory.
func WithDir(dir string) Option {
	return func(s *Shell) { s.Dir = dir }
}

// WithArgs sets $0 and the positional parameters.
func WithArgs(arg0 string, params ...string) Option {
	return func(s *Shell) {
		s.Arg0 = arg0
		s.Params = params
	}
}

// WithEnviron imports NAME=value pairs as exported variables.
func WithEnviron(environ []string) Option {
	return func(s *Shell) { s.Vars.ImportEnviron(environ) }
}

// WithBuiltins replaces the builtin table.
func WithBuiltins(builtins map[string]Builtin) Option {
	return func(s *Shell) { s.Builtins = builtins }
}

// WithLogger sets the logger for internal diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Shell) { s.Log = l }
}

// WithEvents records executed commands to an audit log.
func WithEvents(events *logger.SessionLogger) Option {
	return func(s *Shell) { s.Events = events }
}

// WithTerminal enables job control over term.
func WithTerminal(term *jobs.Terminal) Option {
	return func(s *Shell) {
		s.Term = term
		s.Opts.Monitor = term.Enabled()
	}
}

// Interactive marks the shell as reading commands from a user.
func Interactive(on bool) Option {
	return func(s *Shell) { s.Interactive = on }
}

// NewShell creates a shell with the registered builtins, the process's
// standard streams and the OS filesystem.
func NewShell(opts ...Option) *Shell {
	dir, _ := os.Getwd()
	s := &Shell{
		Vars:     vars.NewStore(),
		Funcs:    make(map[string]*syntax.FuncDef),
		Aliases:  make(map[string]string),
		Builtins: AllBuiltins,
		Jobs:     jobs.NewTable(),
		FS:       vos.NewOsFs(),
		Arg0:     "psh",
		Dir:      dir,
		Pid:      os.Getpid(),
		Log:      log.New(io.Discard, "", 0),
		ctx:      context.Background(),
	}
	WithVIO(vos.NewOSIO())(s)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subshell returns a copy of the shell for a subshell environment. Changes
// made by the copy are invisible to s.
func (s *Shell) Subshell() *Shell {
	c := *s
	c.Vars = s.Vars.Clone()
	c.Funcs = make(map[string]*syntax.FuncDef, len(s.Funcs))
	for k, v := range s.Funcs {
		c.Funcs[k] = v
	}
	c.Aliases = make(map[string]string, len(s.Aliases))
	for k, v := range s.Aliases {
		c.Aliases[k] = v
	}
	c.Params = append([]string(nil), s.Params...)
	c.fds = s.fds.clone()
	c.Jobs = jobs.NewTable()
	c.Term = nil
	c.Opts.Monitor = false
	c.Interactive = false
	c.subshell = true
	c.ctrl, c.ctrlN = ctrlNone, 0
	return &c
}

// IsSubshell returns true for copies made by Subshell.
func (s *Shell) IsSubshell() bool {
	return s.subshell
}

// Context returns the context of the command being run, for builtins that
// block.
func (s *Shell) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Errorf writes a diagnostic prefixed with the shell name to standard error.
func (s *Shell) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(s.Stderr(), "%s: %s\n", s.Arg0, fmt.Sprintf(format, args...))
}

// Getenv returns the value of a shell variable.
func (s *Shell) Getenv(name string) string {
	return s.Vars.Value(name)
}

// SetVar assigns a variable, exporting it when allexport is on.
func (s *Shell) SetVar(name, value string) error {
	var attr vars.Attr
	if s.Opts.AllExport {
		attr = vars.AttrExport
	}
	return s.Vars.Set(name, value, attr)
}

// Path returns the command search path.
func (s *Shell) Path() string {
	if v, ok := s.Vars.Get(EnvPath); ok {
		return v.Value
	}
	return DefaultPath
}

// Chdir changes the working directory without updating PWD.
func (s *Shell) Chdir(dir string) error {
	dir = vos.Abs(s.Dir, dir)
	fi, err := s.FS.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &fs.PathError{Op: "chdir", Path: dir, Err: syscall.ENOTDIR}
	}
	s.Dir = dir
	return nil
}

// JobControl returns true if jobs run in their own process groups.
func (s *Shell) JobControl() bool {
	return s.Opts.Monitor && s.Term.Enabled()
}

// ValidAliasName returns true if name can be defined as an alias.
func ValidAliasName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r == '_', r == '!', r == '%', r == ',', r == '@':
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}

// special resolves the special parameters stored outside of Vars.
func (s *Shell) special(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(s.LastStatus), true
	case "$":
		return strconv.Itoa(s.Pid), true
	case "!":
		if s.LastBgPid == 0 {
			return "", false
		}
		return strconv.Itoa(s.LastBgPid), true
	case "-":
		flags := s.Opts.Flags()
		if s.Interactive {
			flags += "i"
		}
		return flags, true
	case "0":
		return s.Arg0, true
	}
	return "", false
}

// shellEnv routes assignments made during expansion through SetVar.
type shellEnv struct {
	s *Shell
}

func (e shellEnv) Get(name string) (vars.Variable, bool) {
	return e.s.Vars.Get(name)
}

func (e shellEnv) Names() []string {
	return e.s.Vars.Names()
}

func (e shellEnv) Set(name, value string, attr vars.Attr) error {
	if e.s.Opts.AllExport {
		attr |= vars.AttrExport
	}
	return e.s.Vars.Set(name, value, attr)
}

func (s *Shell) expandConfig(ctx context.Context) *expand.Config {
	return &expand.Config{
		Env:     shellEnv{s},
		Special: s.special,
		Params:  func() []string { return s.Params },
		CmdSubst: func(cs *syntax.CmdSubst) (string, error) {
			return s.cmdSubst(ctx, cs)
		},
		HomeDir: homeDir,
		FS:      s.FS,
		Dir:     s.Dir,
		NoUnset: s.Opts.NoUnset,
		NoGlob:  s.Opts.NoGlob,
	}
}

func homeDir(name string) (string, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

// Fields expands words the way command arguments are expanded.
func (s *Shell) Fields(words ...*syntax.Word) ([]string, error) {
	return expand.Fields(s.expandConfig(s.Context()), words...)
}

// Literal expands a word without field splitting or pathname expansion.
func (s *Shell) Literal(w *syntax.Word) (string, error) {
	return expand.Literal(s.expandConfig(s.Context()), w)
}

// ExpandString parses and expands src as a single word, as is done for
// prompts.
func (s *Shell) ExpandString(src string) (string, error) {
	w, err := syntax.NewParserFromString(src).ParseWord()
	if err != nil {
		return "", err
	}
	return s.Literal(w)
}
