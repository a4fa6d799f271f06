// Package expand turns words into fields.
//
// Expansion follows the order of POSIX 2.6: tilde expansion, parameter
// expansion, command substitution and arithmetic expansion happen left to
// right, then the unquoted results are split on IFS, pathname expansion is
// applied to unquoted pattern characters and finally quotes are removed.
//
// See: https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_06
package expand

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vars"
	"github.com/josephlewis42/psh/core/vos"
	"mvdan.cc/sh/v3/pattern"
)

// DefaultIFS is used when IFS is unset.
const DefaultIFS = " \t\n"

// Env is the variable store consulted by expansions.
type Env interface {
	Get(name string) (vars.Variable, bool)
	Set(name, value string, attr vars.Attr) error
	Names() []string
}

// Config holds the shell state expansions read from.
type Config struct {
	Env Env

	// Special resolves $?, $$, $!, $- and $0.
	Special func(name string) (string, bool)
	// Params returns the positional parameters.
	Params func() []string
	// CmdSubst runs a command substitution and returns its output.
	CmdSubst func(cs *syntax.CmdSubst) (string, error)
	// HomeDir returns the home directory of a user for ~user.
	HomeDir func(user string) (string, bool)

	// FS and Dir are used for pathname expansion.
	FS  vos.VFS
	Dir string

	// NoUnset makes expanding an unset parameter an error.
	NoUnset bool
	// NoGlob disables pathname expansion.
	NoGlob bool
}

// UnsetError is returned for unset parameters when NoUnset is set and by
// ${name?message}.
type UnsetError struct {
	Name string
	Msg  string
}

func (e *UnsetError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Msg)
	}
	return fmt.Sprintf("%s: parameter not set", e.Name)
}

// Fields expands words into fields with field splitting and pathname
// expansion.
func Fields(cfg *Config, words ...*syntax.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		b := newBuilder(cfg, true)
		if err := b.parts(w.Parts, false); err != nil {
			return nil, err
		}
		for _, f := range b.finish() {
			out = append(out, b.globField(f)...)
		}
	}
	return out, nil
}

// Literal expands a word to a single string without field splitting or
// pathname expansion. It's used for assignments, redirection targets,
// case subjects and here-documents.
func Literal(cfg *Config, w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	b := newBuilder(cfg, false)
	if err := b.parts(w.Parts, false); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range b.finish() {
		for _, c := range f {
			sb.WriteString(c.s)
		}
	}
	return sb.String(), nil
}

// Pattern expands a word into a pattern for Match. Characters that were
// quoted are escaped so they only match themselves.
func Pattern(cfg *Config, w *syntax.Word) (string, error) {
	if w == nil {
		return "", nil
	}
	b := newBuilder(cfg, false)
	if err := b.parts(w.Parts, false); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, f := range b.finish() {
		sb.WriteString(f.pattern())
	}
	return sb.String(), nil
}

type chunk struct {
	s      string
	quoted bool
}

type field []chunk

func (f field) String() string {
	var sb strings.Builder
	for _, c := range f {
		sb.WriteString(c.s)
	}
	return sb.String()
}

func (f field) pattern() string {
	var sb strings.Builder
	for _, c := range f {
		if c.quoted {
			sb.WriteString(pattern.QuoteMeta(c.s, 0))
		} else {
			sb.WriteString(c.s)
		}
	}
	return sb.String()
}

// hasMeta returns true if an unquoted chunk contains pattern characters.
func (f field) hasMeta() bool {
	for _, c := range f {
		if !c.quoted && pattern.HasMeta(c.s, 0) {
			return true
		}
	}
	return false
}

const (
	delimNone = iota
	delimSpace
	delimOther
)

// builder accumulates the fields of one word.
type builder struct {
	cfg   *Config
	split bool
	ifs   string

	fields  []field
	cur     field
	started bool
	delim   int

	// splitLits splits unquoted literal text, which happens inside the
	// word of ${x:-word} and ${x:+word}.
	splitLits bool
}

func newBuilder(cfg *Config, split bool) *builder {
	b := &builder{cfg: cfg, split: split, ifs: DefaultIFS}
	if cfg.Env != nil {
		if v, ok := cfg.Env.Get("IFS"); ok {
			b.ifs = v.Value
		}
	}
	return b
}

func (b *builder) add(s string, quoted bool) {
	b.cur = append(b.cur, chunk{s: s, quoted: quoted})
	b.started = true
	b.delim = delimNone
}

func (b *builder) emit() {
	b.fields = append(b.fields, b.cur)
	b.cur = nil
	b.started = false
}

// expansion adds the unquoted result of an expansion, splitting it on IFS.
func (b *builder) expansion(s string) {
	if !b.split || b.ifs == "" {
		if s != "" {
			b.add(s, false)
		}
		return
	}

	var sb strings.Builder
	flushText := func() {
		if sb.Len() > 0 {
			b.add(sb.String(), false)
			sb.Reset()
		}
	}
	for _, r := range s {
		if !strings.ContainsRune(b.ifs, r) {
			sb.WriteRune(r)
			continue
		}
		flushText()
		if isIFSSpace(r) {
			if b.started {
				b.emit()
				b.delim = delimSpace
			}
			continue
		}
		switch {
		case b.started:
			b.emit()
		case b.delim == delimSpace:
		default:
			b.emit()
		}
		b.delim = delimOther
	}
	flushText()
}

func isIFSSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

func (b *builder) finish() []field {
	if b.started {
		b.emit()
	}
	return b.fields
}

func (b *builder) parts(parts []syntax.WordPart, quoted bool) error {
	for _, part := range parts {
		q := quoted || part.IsQuoted()
		switch p := part.(type) {
		case *syntax.Literal:
			if !q && b.splitLits {
				b.expansion(p.Value)
			} else {
				b.add(p.Value, q)
			}

		case *syntax.TildePrefix:
			if home, ok := b.home(p.User); ok {
				b.add(home, true)
			} else {
				b.add("~"+p.User, false)
			}

		case *syntax.ParamExp:
			if err := b.param(p, q); err != nil {
				return err
			}

		case *syntax.CmdSubst:
			if b.cfg.CmdSubst == nil {
				return fmt.Errorf("command substitution not supported")
			}
			out, err := b.cfg.CmdSubst(p)
			if err != nil {
				return err
			}
			b.result(strings.TrimRight(out, "\n"), q)

		case *syntax.ArithExp:
			expr, err := Literal(b.cfg, p.Expr)
			if err != nil {
				return err
			}
			n, err := Arith(b.cfg, expr)
			if err != nil {
				return err
			}
			b.result(strconv.FormatInt(n, 10), q)

		default:
			return fmt.Errorf("unknown word part %T", part)
		}
	}
	return nil
}

// result adds the outcome of an expansion, which is split when unquoted.
func (b *builder) result(s string, quoted bool) {
	if quoted {
		b.add(s, true)
		return
	}
	b.expansion(s)
}

func (b *builder) home(user string) (string, bool) {
	if user == "" && b.cfg.Env != nil {
		if v, ok := b.cfg.Env.Get("HOME"); ok && v.Set {
			return v.Value, true
		}
	}
	if b.cfg.HomeDir != nil {
		return b.cfg.HomeDir(user)
	}
	return "", false
}

func (b *builder) params() []string {
	if b.cfg.Params == nil {
		return nil
	}
	return b.cfg.Params()
}

// lookup resolves a parameter to its value.
func (b *builder) lookup(name string) (string, bool) {
	switch name {
	case "@", "*":
		params := b.params()
		return strings.Join(params, b.joiner(name)), len(params) > 0
	case "#":
		return strconv.Itoa(len(b.params())), true
	case "?", "$", "!", "-", "0":
		if b.cfg.Special == nil {
			return "", false
		}
		return b.cfg.Special(name)
	}

	if n, err := strconv.Atoi(name); err == nil {
		params := b.params()
		if n >= 1 && n <= len(params) {
			return params[n-1], true
		}
		return "", false
	}

	if b.cfg.Env == nil {
		return "", false
	}
	v, ok := b.cfg.Env.Get(name)
	return v.Value, ok
}

// joiner returns the separator for $* (the first IFS character) and $@.
func (b *builder) joiner(name string) string {
	if name == "@" {
		return " "
	}
	if b.ifs == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(b.ifs)
	return string(r)
}

func (b *builder) param(pe *syntax.ParamExp, quoted bool) error {
	val, set := b.lookup(pe.Name)
	isList := pe.Name == "@" || pe.Name == "*"

	if pe.Length {
		if !set && b.cfg.NoUnset && !isList {
			return &UnsetError{Name: pe.Name}
		}
		n := utf8.RuneCountInString(val)
		if isList {
			n = len(b.params())
		}
		b.result(strconv.Itoa(n), quoted)
		return nil
	}

	// For the colon forms a null value counts as unset.
	absent := !set || (pe.Colon && val == "")

	switch pe.Op {
	case "":
		if !set && b.cfg.NoUnset && !isList {
			return &UnsetError{Name: pe.Name}
		}
		if isList {
			b.list(pe.Name, quoted)
			return nil
		}
		b.result(val, quoted)

	case "-":
		if absent {
			return b.argument(pe, quoted)
		}
		b.value(pe.Name, val, quoted)

	case "+":
		if !absent {
			return b.argument(pe, quoted)
		}

	case "=":
		if absent {
			arg, err := Literal(b.cfg, pe.Arg)
			if err != nil {
				return err
			}
			if vars.IsSpecial(pe.Name) {
				return &UnsetError{Name: pe.Name, Msg: "cannot assign in this way"}
			}
			if err := b.cfg.Env.Set(pe.Name, arg, 0); err != nil {
				return err
			}
			val = arg
		}
		b.result(val, quoted)

	case "?":
		if absent {
			msg, err := Literal(b.cfg, pe.Arg)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "parameter null or not set"
			}
			return &UnsetError{Name: pe.Name, Msg: msg}
		}
		b.value(pe.Name, val, quoted)

	case "#", "##", "%", "%%":
		if !set && b.cfg.NoUnset && !isList {
			return &UnsetError{Name: pe.Name}
		}
		pat, err := Pattern(b.cfg, pe.Arg)
		if err != nil {
			return err
		}
		b.result(Trim(val, pat, pe.Op), quoted)

	default:
		return fmt.Errorf("%s: bad substitution", pe.Name)
	}
	return nil
}

// argument expands the word of a ${x-word} or ${x+word} expansion in place.
func (b *builder) argument(pe *syntax.ParamExp, quoted bool) error {
	if pe.Arg == nil {
		return nil
	}
	saved := b.splitLits
	b.splitLits = !quoted
	defer func() { b.splitLits = saved }()
	return b.parts(pe.Arg.Parts, quoted)
}

// value adds a parameter's value, keeping $@ and $* list semantics.
func (b *builder) value(name, val string, quoted bool) {
	if name == "@" || name == "*" {
		b.list(name, quoted)
		return
	}
	b.result(val, quoted)
}

// list adds the positional parameters for $@ and $*.
func (b *builder) list(name string, quoted bool) {
	params := b.params()

	switch {
	case quoted && name == "@" && b.split:
		// "$@" produces one field per parameter, and no field at all when
		// there are no parameters.
		for i, p := range params {
			if i > 0 {
				b.emit()
			}
			b.add(p, true)
		}

	case quoted || !b.split:
		b.add(strings.Join(params, b.joiner(name)), quoted)

	default:
		for i, p := range params {
			if i > 0 && b.started {
				b.emit()
				b.delim = delimSpace
			}
			b.expansion(p)
		}
	}
}
