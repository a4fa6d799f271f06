package commands

import (
	"testing"
)

func TestEcho_escapes(t *testing.T) {
	runScriptTests(t, map[string]scriptTest{
		"octal":             {script: `echo -e '\0101\011\07x'`, out: "A\t\ax\n"},
		"hex":               {script: `echo -e '\x4A\x9'`, out: "J\t\n"},
		"escaped-backslash": {script: `echo -e 'a\\nb'`, out: "a\\nb\n"},
		"control":           {script: `echo -e 'r\rb\bf\fv\v'`, out: "r\rb\bf\fv\v\n"},
		"stop-mid-args":     {script: `echo -e a 'b\c' c; echo .`, out: "a b.\n"},
		"escaped-stop":      {script: `echo -e 'a\\c'`, out: "a\\c\n"},
		"no-newline-only":   {script: `echo -n; echo x`, out: "x\n"},
		"double-dash":       {script: "echo -- -n", out: "-- -n\n"},
		"dash-alone":        {script: "echo - a", out: "- a\n"},
		"last-flag-wins":    {script: `echo -eE 'a\tb'`, out: "a\\tb\n"},
		"write-error": {
			script: "echo hi >&-; echo $?",
			out:    "echo: write error: bad file descriptor\n1\n",
		},
	})
}
