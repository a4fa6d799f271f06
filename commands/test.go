package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vos"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

// errTestSyntax marks malformed test expressions, which exit with 2.
var errTestSyntax = errors.New("syntax error")

// Test evaluates a conditional expression.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/test.html
func Test(s *core.Shell, args []string) int {
	name := args[0]
	args = args[1:]
	if name == "[" {
		if len(args) == 0 || args[len(args)-1] != "]" {
			fmt.Fprintln(s.Stderr(), "[: missing ]")
			return 2
		}
		args = args[:len(args)-1]
	}

	t := &testExpr{shell: s, args: args}
	ok, err := t.eval()
	if err == nil && t.pos < len(t.args) {
		err = fmt.Errorf("%s: unexpected operator", t.args[t.pos])
	}
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", name, err)
		return 2
	}
	if ok {
		return 0
	}
	return 1
}

// testExpr is a recursive descent parser over the operands of test.
type testExpr struct {
	shell *core.Shell
	args  []string
	pos   int
}

func (t *testExpr) remaining() int {
	return len(t.args) - t.pos
}

func (t *testExpr) peek(n int) string {
	if t.pos+n < len(t.args) {
		return t.args[t.pos+n]
	}
	return ""
}

func (t *testExpr) eval() (bool, error) {
	if t.remaining() == 0 {
		return false, nil
	}
	return t.or()
}

func (t *testExpr) or() (bool, error) {
	left, err := t.and()
	if err != nil {
		return false, err
	}
	for t.remaining() > 1 && t.peek(0) == "-o" {
		t.pos++
		right, err := t.and()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (t *testExpr) and() (bool, error) {
	left, err := t.not()
	if err != nil {
		return false, err
	}
	for t.remaining() > 1 && t.peek(0) == "-a" {
		t.pos++
		right, err := t.not()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (t *testExpr) not() (bool, error) {
	if t.remaining() > 1 && t.peek(0) == "!" {
		t.pos++
		v, err := t.not()
		return !v, err
	}
	return t.primary()
}

func (t *testExpr) primary() (bool, error) {
	switch n := t.remaining(); {
	case n == 0:
		return false, fmt.Errorf("argument expected")

	case n >= 3 && isBinaryTestOp(t.peek(1)):
		left, op, right := t.peek(0), t.peek(1), t.peek(2)
		t.pos += 3
		return t.binary(left, op, right)

	case n >= 2 && t.peek(0) == "(":
		t.pos++
		v, err := t.or()
		if err != nil {
			return false, err
		}
		if t.peek(0) != ")" {
			return false, fmt.Errorf("')' expected")
		}
		t.pos++
		return v, nil

	case n >= 2 && isUnaryTestOp(t.peek(0)):
		op, operand := t.peek(0), t.peek(1)
		t.pos += 2
		return t.unary(op, operand)

	default:
		v := t.peek(0)
		t.pos++
		return v != "", nil
	}
}

func isUnaryTestOp(op string) bool {
	switch op {
	case "-b", "-c", "-d", "-e", "-f", "-g", "-h", "-L", "-n", "-p", "-r",
		"-S", "-s", "-t", "-u", "-w", "-x", "-z":
		return true
	}
	return false
}

func isBinaryTestOp(op string) bool {
	switch op {
	case "=", "!=", "<", ">", "-eq", "-ne", "-gt", "-ge", "-lt", "-le", "-nt", "-ot", "-ef":
		return true
	}
	return false
}

func (t *testExpr) stat(name string, follow bool) (os.FileInfo, bool) {
	s := t.shell
	name = vos.Abs(s.Dir, name)
	if !follow {
		if lstater, ok := s.FS.(afero.Lstater); ok {
			fi, _, err := lstater.LstatIfPossible(name)
			return fi, err == nil
		}
	}
	fi, err := s.FS.Stat(name)
	return fi, err == nil
}

func (t *testExpr) unary(op, operand string) (bool, error) {
	switch op {
	case "-n":
		return operand != "", nil
	case "-z":
		return operand == "", nil
	case "-t":
		fd, err := strconv.Atoi(operand)
		if err != nil {
			return false, fmt.Errorf("%s: integer expression expected", operand)
		}
		return t.isTerminal(fd), nil
	}

	fi, ok := t.stat(operand, op != "-h" && op != "-L")
	if !ok {
		return false, nil
	}
	mode := fi.Mode()
	switch op {
	case "-e":
		return true, nil
	case "-f":
		return mode.IsRegular(), nil
	case "-d":
		return mode.IsDir(), nil
	case "-h", "-L":
		return mode&fs.ModeSymlink != 0, nil
	case "-b":
		return mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice == 0, nil
	case "-c":
		return mode&fs.ModeCharDevice != 0, nil
	case "-p":
		return mode&fs.ModeNamedPipe != 0, nil
	case "-S":
		return mode&fs.ModeSocket != 0, nil
	case "-s":
		return fi.Size() > 0, nil
	case "-g":
		return mode&fs.ModeSetgid != 0, nil
	case "-u":
		return mode&fs.ModeSetuid != 0, nil
	case "-r":
		return mode.Perm()&0444 != 0, nil
	case "-w":
		return mode.Perm()&0222 != 0, nil
	case "-x":
		return mode.Perm()&0111 != 0, nil
	}
	return false, errTestSyntax
}

func (t *testExpr) isTerminal(fd int) bool {
	var stream interface{}
	switch fd {
	case 0:
		stream = t.shell.Stdin()
	case 1:
		stream = t.shell.Stdout()
	case 2:
		stream = t.shell.Stderr()
	default:
		return false
	}
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t *testExpr) binary(left, op, right string) (bool, error) {
	switch op {
	case "=":
		return left == right, nil
	case "!=":
		return left != right, nil
	case "<":
		return left < right, nil
	case ">":
		return left > right, nil
	case "-nt", "-ot", "-ef":
		return t.compareFiles(left, op, right), nil
	}

	a, err := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s: integer expression expected", left)
	}
	b, err := strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s: integer expression expected", right)
	}
	switch op {
	case "-eq":
		return a == b, nil
	case "-ne":
		return a != b, nil
	case "-gt":
		return a > b, nil
	case "-ge":
		return a >= b, nil
	case "-lt":
		return a < b, nil
	default:
		return a <= b, nil
	}
}

func (t *testExpr) compareFiles(left, op, right string) bool {
	a, aok := t.stat(left, true)
	b, bok := t.stat(right, true)
	switch op {
	case "-nt":
		return aok && (!bok || a.ModTime().After(b.ModTime()))
	case "-ot":
		return bok && (!aok || a.ModTime().Before(b.ModTime()))
	default:
		return aok && bok && os.SameFile(a, b)
	}
}

func init() {
	addBuiltin("test", "test EXPRESSION", "Evaluate a conditional expression.", Test)
	addBuiltin("[", "[ EXPRESSION ]", "Evaluate a conditional expression.", Test)
}
