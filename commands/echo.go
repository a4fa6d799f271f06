package commands

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/josephlewis42/psh/core"
)

var (
	unescapeOctal   = regexp.MustCompile(`\\0[0-8][0-8]?[0-8]?`)
	unescapeHex     = regexp.MustCompile(`\\x[0-9a-fA-F][0-9a-fA-F]?`)
	unescapeReplace = strings.NewReplacer(
		`\n`, "\n", // newline
		`\r`, "\r", // carriage return
		`\t`, "\t", // horizontal tab
		`\\`, `\`, // backslash literal
		`\b`, "\b", // backspace
		`\a`, "\a", // alert
		`\f`, "\f", // form feed
		`\v`, "\v", // vertical tab
	)
)

func unescape(s string) string {
	s = unescapeReplace.Replace(s)
	s = unescapeOctal.ReplaceAllStringFunc(s, func(arg string) string {
		out, err := strconv.ParseInt(arg[2:], 8, 8)
		if err != nil {
			return arg
		}
		return string(rune(out))
	})
	s = unescapeHex.ReplaceAllStringFunc(s, func(arg string) string {
		out, err := strconv.ParseInt(arg[2:], 16, 8)
		if err != nil {
			return arg
		}
		return string(rune(out))
	})
	return s
}

// Echo writes its arguments separated by spaces. -n suppresses the trailing
// newline and -e interprets backslash escapes. Any other argument starting
// with a dash is printed.
func Echo(s *core.Shell, args []string) int {
	args = args[1:]
	newline, escaped := true, false
	for len(args) > 0 && isEchoFlag(args[0]) {
		for _, f := range args[0][1:] {
			switch f {
			case 'n':
				newline = false
			case 'e':
				escaped = true
			case 'E':
				escaped = false
			}
		}
		args = args[1:]
	}

	w := s.Stdout()
	var out strings.Builder
	for i, arg := range args {
		if i > 0 {
			out.WriteByte(' ')
		}

		if escaped {
			var stop bool
			arg, stop = cutEscapeC(arg)
			out.WriteString(unescape(arg))
			if stop {
				newline = false
				break
			}
			continue
		}
		out.WriteString(arg)
	}
	if newline {
		out.WriteByte('\n')
	}

	if _, err := io.WriteString(w, out.String()); err != nil {
		fmt.Fprintf(s.Stderr(), "echo: write error: %v\n", err)
		return 1
	}
	return 0
}

func isEchoFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	return strings.Trim(arg[1:], "neE") == ""
}

// cutEscapeC truncates s at a \c escape, which ends all output.
func cutEscapeC(s string) (string, bool) {
	if i := strings.Index(s, `\c`); i >= 0 && !strings.HasSuffix(s[:i], `\`) {
		return s[:i], true
	}
	return s, false
}

func init() {
	addBuiltin("echo", "echo [-neE] [ARG ...]", "Write arguments to standard output.", Echo)
}
