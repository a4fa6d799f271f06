package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	cases := map[string]struct {
		src  string
		want string
	}{
		"pipeline":  {"a|b&&c", "a | b && c\n"},
		"redirects": {"echo hi 2>&1 >out", "echo hi 2>&1 >out\n"},
		"async":     {"sleep 1 & wait", "sleep 1 &\nwait\n"},
		"if": {
			"if true; then echo yes; else echo no; fi",
			"if true; then\n\techo yes\nelse\n\techo no\nfi\n",
		},
		"for": {
			"for x in a b; do echo $x; done",
			"for x in a b; do\n\techo $x\ndone\n",
		},
		"heredoc": {
			"cat <<EOF\nhi\nEOF\n",
			"cat <<EOF\nhi\nEOF\n",
		},
		"function": {
			"f() { echo hi; }",
			"f() {\n\techo hi\n}\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, String(mustParse(t, tc.src)))
		})
	}
}

func TestString_Idempotent(t *testing.T) {
	sources := []string{
		"x=1 y=2 env | grep x > /dev/null 2>&1",
		"while read line; do case $line in a*|b) echo ab;; *) echo other;; esac; done < input",
		"until false; do break; done",
		"(cd /tmp && ls) | wc -l &",
		"! { echo a; echo b; } >> log",
		"for x; do echo \"$x\"; done",
		"if a; then b; elif c; then d; fi",
		"cat <<-'END' | tr a-z A-Z\n\tquoted $body\n\tEND\n",
		"echo $(echo nested $(echo deeper)) `echo old`",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			once := String(mustParse(t, src))
			twice := String(mustParse(t, once))
			assert.Equal(t, once, twice)
		})
	}
}
