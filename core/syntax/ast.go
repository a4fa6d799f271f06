package syntax

import "strings"

// Node is implemented by every element of the syntax tree.
type Node interface {
	Pos() Pos
}

// WordPart is one fragment of a Word.
type WordPart interface {
	Node
	// IsQuoted reports whether the fragment came from a quoted region, which
	// exempts its expansion from field splitting and pathname expansion.
	IsQuoted() bool
	wordPart()
}

// Word is a sequence of fragments that expands to zero or more fields.
type Word struct {
	Parts    []WordPart
	Position Pos
	// Raw holds the source text of the word.
	Raw string
}

func (w *Word) Pos() Pos { return w.Position }

// Lit returns the literal value of the word if it consists only of unquoted
// literal text.
func (w *Word) Lit() (string, bool) {
	var sb strings.Builder
	for _, p := range w.Parts {
		lit, ok := p.(*Literal)
		if !ok || lit.Quoted {
			return "", false
		}
		sb.WriteString(lit.Value)
	}
	return sb.String(), true
}

// HasQuotes returns true if any part of the word was quoted.
func (w *Word) HasQuotes() bool {
	for _, p := range w.Parts {
		if p.IsQuoted() {
			return true
		}
	}
	return false
}

// Unquoted returns the word's text after quote removal, without performing
// any expansion. It is used for here-document delimiters.
func (w *Word) Unquoted() string {
	var sb strings.Builder
	for _, p := range w.Parts {
		if lit, ok := p.(*Literal); ok {
			sb.WriteString(lit.Value)
			continue
		}
		if tp, ok := p.(*TildePrefix); ok {
			sb.WriteString("~" + tp.User)
		}
	}
	return sb.String()
}

// Literal is plain text. Quoted literals came from single quotes, double
// quotes or backslash escapes.
type Literal struct {
	Value    string
	Quoted   bool
	Single   bool
	Position Pos
}

// ParamExp is a parameter expansion such as $x, ${x:-word} or ${#x}.
type ParamExp struct {
	Name string
	// Op is the modifier, one of "", "-", "=", "?", "+", "%", "%%", "#", "##".
	Op string
	// Colon is set for the ":-", ":=", ":?" and ":+" forms.
	Colon  bool
	Arg    *Word
	Length bool
	// Braced is set for the ${...} form.
	Braced   bool
	Quoted   bool
	Position Pos
}

// CmdSubst is a command substitution, either $(...) or `...`.
type CmdSubst struct {
	Text      string
	Prog      *Program
	Backquote bool
	Quoted    bool
	Position  Pos
}

// ArithExp is an arithmetic expansion $((...)).
type ArithExp struct {
	Expr     *Word
	Quoted   bool
	Position Pos
}

// TildePrefix is a leading ~ or ~user.
type TildePrefix struct {
	User     string
	Position Pos
}

func (p *Literal) Pos() Pos     { return p.Position }
func (p *ParamExp) Pos() Pos    { return p.Position }
func (p *CmdSubst) Pos() Pos    { return p.Position }
func (p *ArithExp) Pos() Pos    { return p.Position }
func (p *TildePrefix) Pos() Pos { return p.Position }

func (p *Literal) IsQuoted() bool     { return p.Quoted }
func (p *ParamExp) IsQuoted() bool    { return p.Quoted }
func (p *CmdSubst) IsQuoted() bool    { return p.Quoted }
func (p *ArithExp) IsQuoted() bool    { return p.Quoted }
func (p *TildePrefix) IsQuoted() bool { return true }

func (*Literal) wordPart()     {}
func (*ParamExp) wordPart()    {}
func (*CmdSubst) wordPart()    {}
func (*ArithExp) wordPart()    {}
func (*TildePrefix) wordPart() {}

// Program is the result of parsing one logical command line or a whole file.
type Program struct {
	Body *List
}

func (p *Program) Pos() Pos {
	if p.Body == nil {
		return Pos{}
	}
	return p.Body.Pos()
}

// List is a sequence of AND/OR lists separated by ';', '&' or newlines.
type List struct {
	Items []*ListItem
}

func (l *List) Pos() Pos {
	if l == nil || len(l.Items) == 0 {
		return Pos{}
	}
	return l.Items[0].AndOr.Pos()
}

// ListItem is an AND/OR list and whether it runs asynchronously.
type ListItem struct {
	AndOr *AndOr
	Async bool
}

// AndOr is a chain of pipelines joined by && or ||. Ops[i] joins
// Pipelines[i] and Pipelines[i+1].
type AndOr struct {
	Pipelines []*Pipeline
	Ops       []Op
}

func (a *AndOr) Pos() Pos { return a.Pipelines[0].Pos() }

// Pipeline is one or more commands joined by '|'.
type Pipeline struct {
	Bang     bool
	Commands []Command
	Position Pos
}

func (p *Pipeline) Pos() Pos { return p.Position }

// Command is a simple command, a compound command, a function definition or
// a compound command wrapped with redirections.
type Command interface {
	Node
	commandNode()
}

// SimpleCommand owns its assignments, arguments and redirections.
type SimpleCommand struct {
	Assigns  []*Assign
	Args     []*Word
	Redirs   []*Redirect
	Position Pos
}

// Assign is a NAME=value prefix of a simple command.
type Assign struct {
	Name     string
	Value    *Word
	Position Pos
}

func (a *Assign) Pos() Pos { return a.Position }

// Redirect is a single redirection.
type Redirect struct {
	// Fd is the explicit IO_NUMBER or -1 for the operator's default.
	Fd     int
	Op     Op
	Target *Word
	// HereDoc holds the body of << and <<- redirections once it is read.
	HereDoc       *Word
	HereDocQuoted bool
	Position      Pos
}

func (r *Redirect) Pos() Pos { return r.Position }

// DefaultFd returns the descriptor the redirection applies to.
func (r *Redirect) DefaultFd() int {
	if r.Fd >= 0 {
		return r.Fd
	}
	switch r.Op {
	case Less, DLess, DLessDash, LessAnd, LessGreat:
		return 0
	default:
		return 1
	}
}

// Redirected wraps a compound command with its redirections.
type Redirected struct {
	Cmd    Command
	Redirs []*Redirect
}

// BraceGroup is { list; }.
type BraceGroup struct {
	Body     *List
	Position Pos
}

// Subshell is ( list ).
type Subshell struct {
	Body     *List
	Position Pos
}

// IfClause is if/elif/else/fi.
type IfClause struct {
	Cond     *List
	Then     *List
	Elifs    []*Elif
	Else     *List
	Position Pos
}

// Elif is a single elif branch.
type Elif struct {
	Cond *List
	Then *List
}

// WhileClause is a while or until loop.
type WhileClause struct {
	Until    bool
	Cond     *List
	Body     *List
	Position Pos
}

// ForClause is for name [in words]; do list; done.
type ForClause struct {
	Name string
	// In is set when an "in" word list was given, possibly empty.
	In       bool
	Items    []*Word
	Body     *List
	Position Pos
}

// CaseClause is case word in pattern) list;; ... esac.
type CaseClause struct {
	Word     *Word
	Items    []*CaseItem
	Position Pos
}

// CaseItem is one pattern list and its body.
type CaseItem struct {
	Patterns []*Word
	Body     *List
}

// FuncDef binds a name to a compound command.
type FuncDef struct {
	Name     string
	Body     Command
	Position Pos
}

func (c *SimpleCommand) Pos() Pos { return c.Position }
func (c *Redirected) Pos() Pos    { return c.Cmd.Pos() }
func (c *BraceGroup) Pos() Pos    { return c.Position }
func (c *Subshell) Pos() Pos      { return c.Position }
func (c *IfClause) Pos() Pos      { return c.Position }
func (c *WhileClause) Pos() Pos   { return c.Position }
func (c *ForClause) Pos() Pos     { return c.Position }
func (c *CaseClause) Pos() Pos    { return c.Position }
func (c *FuncDef) Pos() Pos       { return c.Position }

func (*SimpleCommand) commandNode() {}
func (*Redirected) commandNode()    {}
func (*BraceGroup) commandNode()    {}
func (*Subshell) commandNode()      {}
func (*IfClause) commandNode()      {}
func (*WhileClause) commandNode()   {}
func (*ForClause) commandNode()     {}
func (*CaseClause) commandNode()    {}
func (*FuncDef) commandNode()       {}
