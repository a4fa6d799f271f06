// Package commands implements the shell's builtin utilities. Each file
// registers its builtins with core.AllBuiltins from an init function.
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/josephlewis42/psh/core"
	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/term"
)

// BuiltinInfo describes a builtin for help and the builtins listing.
type BuiltinInfo struct {
	Name  string
	Use   string
	Short string
}

var builtinInfo = make(map[string]BuiltinInfo)

// addBuiltin registers a builtin under name.
func addBuiltin(name, use, short string, fn func(s *core.Shell, args []string) int) {
	core.AllBuiltins[name] = core.BuiltinFunc(fn)
	builtinInfo[name] = BuiltinInfo{Name: name, Use: use, Short: short}
}

// ListBuiltins returns the registered builtins sorted by name.
func ListBuiltins() []BuiltinInfo {
	var out []BuiltinInfo
	for _, info := range builtinInfo {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupBuiltin returns the description of a builtin.
func LookupBuiltin(name string) (BuiltinInfo, bool) {
	info, ok := builtinInfo[name]
	return info, ok
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (c *SimpleCommand) Flags() *getopt.Set {
	if c.flags == nil {
		c.flags = getopt.New()
		c.flags.SetParameters("")
	}

	return c.flags
}

// PrintHelp writes help for the command to the given writer.
func (c *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, c.Use)
	fmt.Fprintln(w, c.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	c.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
// Usage errors exit with status 2.
func (c *SimpleCommand) Run(s *core.Shell, args []string, callback func() int) int {
	opts := c.Flags()

	// Add help flag if not overridden.
	if c.ShowHelp == nil {
		c.ShowHelp = opts.BoolLong("help", 0, "show this help and exit")
	}

	err := opts.Getopt(args, nil)
	if err != nil && !c.NeverBail {
		fmt.Fprintf(s.Stderr(), "%s: %s\n", args[0], err)
		fmt.Fprintf(s.Stderr(), "usage: %s\n", c.Use)
		return 2
	}

	if *c.ShowHelp {
		c.PrintHelp(s.Stdout())
		return 0
	}

	return callback()
}

// RunEachArg runs the callback for every operand, reporting errors and
// returning 1 if any of them failed.
func (c *SimpleCommand) RunEachArg(s *core.Shell, args []string, callback func(string) error) int {
	return c.Run(s, args, func() int {
		anyFailed := false
		for _, arg := range c.Flags().Args() {
			if err := callback(arg); err != nil {
				fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
				anyFailed = true
			}
		}

		if anyFailed {
			return 1
		}
		return 0
	})
}

// parseStatus parses an exit status operand in the range 0 to 255.
func parseStatus(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n > 255 {
		return 0, false
	}
	return n, true
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

// ColorModes are the accepted values of the color setting.
var ColorModes = []string{colorAlways, colorAuto, colorNever}

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
	ColorYellow    = color.New(color.FgYellow)
)

// ColorMode is the default policy used by ColorPrinter, set from the
// configuration.
var ColorMode = colorAuto

// ColorPrinter colours output when the policy allows it.
type ColorPrinter struct {
	value *string
	w     io.Writer
}

// Init sets up the flag and the writer used to determine the color output.
func (c *ColorPrinter) Init(flags *getopt.Set, w io.Writer) {
	c.w = w
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		ColorModes,
		ColorMode,
		"colorize the output (always|auto|never)")
}

// NewColorPrinter returns a printer for w following the configured policy.
func NewColorPrinter(w io.Writer) *ColorPrinter {
	mode := ColorMode
	return &ColorPrinter{value: &mode, w: w}
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		f, ok := c.w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
}

func (c *ColorPrinter) Sprintf(attrs *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		forced := *attrs
		forced.EnableColor()
		return forced.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
