package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/josephlewis42/psh/commands"
	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/config"
	"github.com/josephlewis42/psh/core/jobs"
	"github.com/josephlewis42/psh/core/logger"
	"github.com/josephlewis42/psh/core/ttylog"
	"github.com/josephlewis42/psh/core/vars"
	"github.com/josephlewis42/psh/core/vos"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// invocation holds the options psh was started with.
type invocation struct {
	command     bool
	stdin       bool
	interactive bool
	noExec      bool
	errExit     bool
	noUnset     bool
	xtrace      bool
	allExport   bool
	noGlob      bool
	noClobber   bool
	monitor     bool
	monitorSet  bool
	options     []string
	record      string
}

type inputMode int

const (
	inputStdin inputMode = iota
	inputCommand
	inputScript
)

// environ is replaced in tests.
var environ = os.Environ

// input works out where commands come from, $0 and the positional
// parameters.
func (inv invocation) input(args []string) (mode inputMode, src, arg0 string, params []string, err error) {
	switch {
	case inv.command:
		if len(args) == 0 {
			return 0, "", "", nil, errors.New("-c: option requires an argument")
		}
		arg0 = "psh"
		if len(args) > 1 {
			arg0 = args[1]
			params = args[2:]
		}
		return inputCommand, args[0], arg0, params, nil
	case !inv.stdin && len(args) > 0:
		return inputScript, args[0], args[0], args[1:], nil
	default:
		return inputStdin, "", "psh", args, nil
	}
}

func isTerminal(stream interface{}) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runShell starts a shell for the root command and returns its exit status.
func runShell(cmd *cobra.Command, inv invocation, args []string) (int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return 2, err
	}
	commands.ColorMode = cfg.Color

	mode, src, arg0, params, err := inv.input(args)
	if err != nil {
		return 2, err
	}

	debugLog := log.New(io.Discard, "", 0)
	if debug {
		debugLog = log.New(cmd.ErrOrStderr(), "[psh] ", 0)
	}

	interactive := inv.interactive ||
		(mode == inputStdin && isTerminal(cmd.InOrStdin()) && isTerminal(cmd.ErrOrStderr()))

	var vio vos.VIO = vos.NewVIOAdapter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if inv.record != "" {
		recording, err := os.Create(inv.record)
		if err != nil {
			return 1, err
		}
		defer recording.Close()
		vio = ttylog.NewRecorder(vio, ttylog.NewAsciicastLogSink(recording, recordingHeader(cmd.OutOrStdout())))
		debugLog.Printf("recording session to %s", inv.record)
	}

	var fs vos.VFS = vos.NewOsFs()
	if debug {
		fs = vos.NewTracingFs(fs, func(op vos.Op, name string) {
			debugLog.Printf("fs: %s %s", op, name)
		})
	}

	var events *logger.SessionLogger
	auditLog, err := cfg.OpenAuditLog()
	if err != nil {
		return 1, err
	}
	if auditLog != nil {
		defer auditLog.Close()
		events = logger.NewJsonLinesLogRecorder(auditLog).NewSession()
	}

	opts := []core.Option{
		core.WithVIO(vio),
		core.WithFS(fs),
		core.WithArgs(arg0, params...),
		core.WithEnviron(environ()),
		core.WithLogger(debugLog),
		core.WithEvents(events),
		core.Interactive(interactive),
	}
	if wantJobControl(inv, cfg, interactive) {
		tty, err := jobs.Open(os.Stdin)
		if err != nil {
			debugLog.Printf("job control disabled: %v", err)
		}
		defer tty.Close()
		opts = append(opts, core.WithTerminal(tty))
	}

	s := core.NewShell(opts...)
	initVars(s, cfg)
	for name, value := range cfg.Aliases {
		s.Aliases[name] = value
	}
	if err := applyOptions(s, inv, cfg); err != nil {
		return 2, err
	}

	ctx := context.Background()
	if interactive && !s.Opts.NoExec {
		sourceProfile(s)
		if code, ok := s.Exiting(); ok {
			return finish(s, code), nil
		}
	}

	var status int
	switch {
	case mode == inputCommand:
		status = s.RunString(ctx, src, arg0)
	case mode == inputScript:
		status = runScript(ctx, s, src)
	case interactive:
		status = commands.RunInteractive(ctx, s, commands.InteractiveConfig{
			HistoryFile:  cfg.HistoryPath(),
			HistoryLimit: cfg.HistoryLimit,
		})
	default:
		status = s.RunReader(ctx, s.Stdin(), arg0)
	}
	return finish(s, status), nil
}

func finish(s *core.Shell, status int) int {
	if err := s.Events.ShellExit(status); err != nil {
		s.Log.Printf("recording exit: %v", err)
	}
	return status
}

// runScript runs the commands in the file name.
func runScript(ctx context.Context, s *core.Shell, name string) int {
	f, err := s.FS.Open(name)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		fmt.Fprintf(s.Stderr(), "psh: %s: %v\n", name, err)
		if errors.Is(err, os.ErrNotExist) {
			return 127
		}
		return 126
	}
	defer f.Close()
	return s.RunReader(ctx, f, name)
}

// recordingHeader describes the terminal a session is recorded from.
func recordingHeader(stdout io.Writer) ttylog.AsciicastHeader {
	header := ttylog.AsciicastHeader{
		Title: "psh",
		Env: map[string]string{
			"SHELL": "psh",
			"TERM":  os.Getenv("TERM"),
		},
	}
	if f, ok := stdout.(*os.File); ok {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil {
			header.Width, header.Height = w, h
		}
	}
	return header
}

// wantJobControl decides whether the monitor option starts out on. The
// command line wins over the configuration, which wins over interactivity.
func wantJobControl(inv invocation, cfg *config.Configuration, interactive bool) bool {
	switch {
	case inv.monitorSet:
		return inv.monitor
	case cfg.Options.Monitor != nil:
		return *cfg.Options.Monitor
	default:
		return interactive
	}
}

// initVars sets the variables every shell starts with.
func initVars(s *core.Shell, cfg *config.Configuration) {
	setDefault := func(name, value string, attr vars.Attr) {
		if _, ok := s.Vars.Get(name); !ok {
			_ = s.Vars.Set(name, value, attr)
		}
	}

	_ = s.Vars.Set(core.EnvIFS, " \t\n", 0)
	_ = s.Vars.Set("PPID", strconv.Itoa(os.Getppid()), 0)
	_ = s.Vars.Set("OPTIND", "1", 0)

	if pwd, ok := s.Vars.Get(core.EnvPWD); ok && sameDir(s.FS, pwd.Value, s.Dir) {
		s.Dir = pwd.Value
	} else {
		_ = s.Vars.Set(core.EnvPWD, s.Dir, vars.AttrExport)
	}

	prompt := commands.DefaultPrompt
	if os.Geteuid() == 0 {
		prompt = commands.DefaultRootPrompt
	}
	setDefault(core.EnvPS1, prompt, 0)
	setDefault(core.EnvPS2, commands.DefaultPS2, 0)
	setDefault(core.EnvPath, cfg.Path, vars.AttrExport)

	for name, value := range cfg.Env {
		if err := s.Vars.Set(name, value, vars.AttrExport); err != nil {
			s.Errorf("config: %v", err)
		}
	}
}

// sameDir returns true if the absolute path pwd names the directory dir.
func sameDir(fs vos.VFS, pwd, dir string) bool {
	if !filepath.IsAbs(pwd) {
		return false
	}
	if filepath.Clean(pwd) == filepath.Clean(dir) {
		return true
	}
	a, err := fs.Stat(pwd)
	if err != nil {
		return false
	}
	b, err := fs.Stat(dir)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}

// applyOptions turns on the options from the configuration and the command
// line.
func applyOptions(s *core.Shell, inv invocation, cfg *config.Configuration) error {
	for _, name := range cfg.Options.Names() {
		if err := s.Opts.Set(name, true); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	for _, flag := range []struct {
		on   bool
		name string
	}{
		{inv.allExport, "allexport"},
		{inv.errExit, "errexit"},
		{inv.noClobber, "noclobber"},
		{inv.noExec, "noexec"},
		{inv.noGlob, "noglob"},
		{inv.noUnset, "nounset"},
		{inv.xtrace, "xtrace"},
	} {
		if flag.on {
			_ = s.Opts.Set(flag.name, true)
		}
	}

	for _, name := range inv.options {
		if err := s.Opts.Set(name, true); err != nil {
			return fmt.Errorf("-o: %w", err)
		}
	}

	s.Opts.Monitor = s.Opts.Monitor && s.Term.Enabled()
	return nil
}

// sourceProfile runs $HOME/.profile and then the file named by $ENV, as
// login and interactive shells do.
func sourceProfile(s *core.Shell) {
	var files []string
	if home := s.Getenv(core.EnvHome); home != "" {
		files = append(files, filepath.Join(home, ".profile"))
	}
	if env := s.Getenv("ENV"); env != "" {
		expanded, err := s.ExpandString(env)
		if err != nil {
			s.Errorf("ENV: %v", err)
		} else {
			files = append(files, expanded)
		}
	}

	for _, file := range files {
		if ok, _ := afero.Exists(s.FS, file); !ok {
			continue
		}
		s.Log.Printf("sourcing %s", file)
		s.RunUtility([]string{".", file})
		if _, exited := s.Exiting(); exited {
			return
		}
	}
}
