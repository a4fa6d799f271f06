package commands

import (
	"context"
	"testing"

	"github.com/josephlewis42/psh/core"
	"github.com/stretchr/testify/assert"
)

func newTestInteractive(ts *testShell) *Interactive {
	mode := colorNever
	return &Interactive{
		Shell: ts.Shell,
		errs:  &ColorPrinter{value: &mode, w: ts.Out},
	}
}

// enter adds a line as if the user typed it and executes the buffer.
func (in *Interactive) enter(line string) (int, bool) {
	in.buffer.WriteString(line)
	in.buffer.WriteByte('\n')
	return in.Execute(context.Background())
}

func TestInteractive_Execute(t *testing.T) {
	t.Run("continued quote", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		assert.Equal(t, DefaultPrompt, in.prompt())
		_, exited := in.enter("echo 'a")
		assert.False(t, exited)
		assert.Empty(t, ts.Out.String())
		assert.Equal(t, DefaultPS2, in.prompt())

		_, exited = in.enter("b'")
		assert.False(t, exited)
		assert.Equal(t, "a\nb\n", ts.Out.String())
		assert.Equal(t, DefaultPrompt, in.prompt())
	})

	t.Run("continued compound command", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		in.enter("for i in 1 2; do")
		in.enter("echo $i")
		assert.Empty(t, ts.Out.String())
		in.enter("done")
		assert.Equal(t, "1\n2\n", ts.Out.String())
	})

	t.Run("prompt variables", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		in.enter("PS1='$PWD$ '; PS2='more> '")
		assert.Equal(t, "/home/user$ ", in.prompt())
		in.enter("if true")
		assert.Equal(t, "more> ", in.prompt())
		in.enter("then echo yes; fi")
		assert.Equal(t, "yes\n", ts.Out.String())
		assert.Equal(t, "/home/user$ ", in.prompt())
	})

	t.Run("recovers after syntax error", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		code, exited := in.enter("fi")
		assert.False(t, exited)
		assert.Zero(t, code)
		assert.Contains(t, ts.Out.String(), "syntax error")
		assert.Equal(t, core.StatusSyntaxError, ts.LastStatus)
		assert.Equal(t, DefaultPrompt, in.prompt())

		ts.Out.Reset()
		in.enter("echo $?; echo ok")
		assert.Equal(t, "2\nok\n", ts.Out.String())
	})

	t.Run("blank line", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		code, exited := in.enter("   ")
		assert.False(t, exited)
		assert.Zero(t, code)
		assert.Zero(t, in.buffer.Len())
	})

	t.Run("exit", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		code, exited := in.enter("echo bye; exit 3")
		assert.True(t, exited)
		assert.Equal(t, 3, code)
		assert.Equal(t, "bye\n", ts.Out.String())
	})

	t.Run("break outside loop keeps running", func(t *testing.T) {
		ts := newTestShell(t)
		in := newTestInteractive(ts)

		_, exited := in.enter("break; echo after")
		assert.False(t, exited)
		assert.Equal(t, "after\n", ts.Out.String())
	})
}
