package expand

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/psh/core/vars"
	shexpand "mvdan.cc/sh/v3/expand"
	shsyntax "mvdan.cc/sh/v3/syntax"
)

// ArithError is a malformed or failing arithmetic expression.
type ArithError struct {
	Expr string
	Msg  string
}

func (e *ArithError) Error() string {
	return fmt.Sprintf("%s: %s", strings.TrimSpace(e.Expr), e.Msg)
}

// Arith evaluates a shell arithmetic expression with signed 64 bit integers.
// Variables are referenced by name and assignment operators update them.
func Arith(cfg *Config, expr string) (int64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, nil
	}

	parser := shsyntax.NewParser(shsyntax.Variant(shsyntax.LangPOSIX))
	node, err := parser.Arithmetic(strings.NewReader(expr))
	if err != nil {
		return 0, &ArithError{Expr: expr, Msg: err.Error()}
	}
	if node == nil {
		return 0, nil
	}

	env := &arithEnv{cfg: cfg, expr: expr, assigned: map[string]bool{}}
	if err := env.prepare(node); err != nil {
		return 0, err
	}

	n, err := shexpand.Arithm(&shexpand.Config{Env: env}, node)
	switch {
	case env.err != nil:
		return 0, env.err
	case errors.Is(err, vars.ErrReadOnly):
		return 0, err
	case err != nil:
		return 0, &ArithError{Expr: expr, Msg: err.Error()}
	}
	return int64(n), nil
}

// parseNumber reads an integer constant in decimal, octal (leading 0) or
// hexadecimal (leading 0x). Empty values count as zero.
func parseNumber(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 0, 64)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func decimalWord(n int64) *shsyntax.Word {
	return &shsyntax.Word{Parts: []shsyntax.WordPart{&shsyntax.Lit{Value: strconv.FormatInt(n, 10)}}}
}

// arithEnv exposes the shell variables to the arithmetic evaluator.
// Values are handed over in decimal so octal and hexadecimal variables
// evaluate to their numeric value.
type arithEnv struct {
	cfg  *Config
	expr string

	// assigned holds the targets of plain assignments, which may be unset.
	assigned map[string]bool
	// err is the first lookup failure.
	err error
}

var _ shexpand.WriteEnviron = (*arithEnv)(nil)

// prepare rewrites numeric constants to decimal and makes the ternary
// condition test for any non-zero value.
func (e *arithEnv) prepare(node shsyntax.ArithmExpr) error {
	var err error
	shsyntax.Walk(node, func(n shsyntax.Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *shsyntax.BinaryArithm:
			switch x.Op {
			case shsyntax.TernQuest:
				x.X = &shsyntax.BinaryArithm{OpPos: x.OpPos, Op: shsyntax.Neq, X: x.X, Y: decimalWord(0)}
			case shsyntax.Assgn:
				if w, ok := x.X.(*shsyntax.Word); ok {
					e.assigned[w.Lit()] = true
				}
			}
		case *shsyntax.Word:
			lit := x.Lit()
			if lit == "" || !isDigit(lit[0]) {
				return true
			}
			num, perr := parseNumber(lit)
			if perr != nil {
				err = &ArithError{Expr: e.expr, Msg: fmt.Sprintf("invalid number %q", lit)}
				return false
			}
			x.Parts = decimalWord(num).Parts
			return false
		}
		return true
	})
	return err
}

func (e *arithEnv) Get(name string) shexpand.Variable {
	v, ok := e.cfg.Env.Get(name)
	if !ok || !v.Set {
		if e.cfg.NoUnset && !e.assigned[name] && e.err == nil {
			e.err = &UnsetError{Name: name}
		}
		return shexpand.Variable{}
	}

	value := v.Value
	// IFS is read by the evaluator itself and is never a number.
	if name != "IFS" && !shsyntax.ValidName(strings.TrimSpace(value)) {
		n, err := parseNumber(value)
		if err != nil {
			if e.err == nil {
				e.err = &ArithError{Expr: e.expr, Msg: fmt.Sprintf("%s: invalid number %q", name, value)}
			}
			return shexpand.Variable{}
		}
		value = strconv.FormatInt(n, 10)
	}
	return shexpand.Variable{
		Exported: v.Exported(),
		ReadOnly: v.ReadOnly(),
		Kind:     shexpand.String,
		Str:      value,
	}
}

func (e *arithEnv) Set(name string, vr shexpand.Variable) error {
	return e.cfg.Env.Set(name, vr.String(), 0)
}

func (e *arithEnv) Each(fn func(name string, vr shexpand.Variable) bool) {
	for _, name := range e.cfg.Env.Names() {
		if !fn(name, e.Get(name)) {
			return
		}
	}
}
