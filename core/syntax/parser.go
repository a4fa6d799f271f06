// Package syntax turns shell source into a syntax tree.
//
// The grammar is the one defined by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
package syntax

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithAliases sets the alias lookup consulted for words in command position.
func WithAliases(lookup func(name string) (string, bool)) ParserOption {
	return func(p *Parser) {
		p.lex.aliases = lookup
	}
}

// Parser is a recursive descent parser over a Lexer.
type Parser struct {
	lex *Lexer

	tok      Token
	tokState lexState
	hasTok   bool

	err error

	// aliasNextOff is the source offset after an alias whose value ended in
	// a blank; the word starting there is also checked for an alias.
	aliasNextOff int
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader, opts ...ParserOption) *Parser {
	p := &Parser{lex: NewLexer(r)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewParserFromString creates a parser over src.
func NewParserFromString(src string, opts ...ParserOption) *Parser {
	return NewParser(strings.NewReader(src), opts...)
}

// Parse parses the whole input.
func Parse(src string, opts ...ParserOption) (*Program, error) {
	return NewParserFromString(src, opts...).Parse()
}

// Incomplete returns true if the last error was caused by input that ended
// before a construct was closed.
func (p *Parser) Incomplete() bool {
	return IsIncomplete(p.err)
}

// ParseLine parses one logical command line: complete commands up to an
// unquoted newline along with any here-document bodies that follow it.
// It returns io.EOF when no commands remain.
func (p *Parser) ParseLine() (*Program, error) {
	if p.err != nil {
		return nil, p.err
	}

	p.skipNewlines()
	if tok := p.peek(); tok.Kind == EOF {
		if p.err != nil {
			return nil, p.err
		}
		return nil, io.EOF
	}

	list := p.lineList()
	if p.err != nil {
		return nil, p.err
	}

	switch tok := p.peek(); tok.Kind {
	case NEWLINE:
		p.next()
	case EOF:
	default:
		p.unexpected(tok)
	}

	if p.err != nil {
		return nil, p.err
	}
	return &Program{Body: list}, nil
}

// Parse parses every remaining line of input into a single program.
func (p *Parser) Parse() (*Program, error) {
	out := &Program{Body: &List{}}
	for {
		prog, err := p.ParseLine()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out.Body.Items = append(out.Body.Items, prog.Body.Items...)
	}
}

// ParseWord parses the whole input as a single word. Blanks and operators are
// literal, but quotes and expansions are recognized.
func (p *Parser) ParseWord() (*Word, error) {
	pos := p.lex.pos()
	parts, err := p.lex.wordParts(modeWhole, false)
	if err != nil {
		p.err = err
		return nil, err
	}
	return &Word{Parts: parts, Position: pos, Raw: p.lex.text(pos.Offset, p.lex.off)}, nil
}

func (p *Parser) peek() Token {
	if p.err != nil {
		return Token{Kind: EOF, Pos: p.lex.pos()}
	}
	if !p.hasTok {
		if err := p.lex.skipBlanks(); err != nil {
			p.err = err
			return Token{Kind: EOF, Pos: p.lex.pos()}
		}
		p.tokState = p.lex.state()
		tok, err := p.lex.scan()
		if err != nil {
			p.err = err
			return Token{Kind: EOF, Pos: p.lex.pos()}
		}
		p.tok = tok
		p.hasTok = true
	}
	return p.tok
}

func (p *Parser) next() Token {
	tok := p.peek()
	p.hasTok = false
	return tok
}

func (p *Parser) fail(pos Pos, incomplete bool, format string, args ...interface{}) {
	if p.err == nil {
		p.err = &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...), Incomplete: incomplete}
	}
}

func (p *Parser) unexpected(tok Token) {
	if tok.Kind == EOF {
		p.fail(tok.Pos, true, "unexpected end of file")
		return
	}
	p.fail(tok.Pos, false, "unexpected %s", tok)
}

func (p *Parser) skipNewlines() {
	for p.peek().Kind == NEWLINE {
		p.next()
	}
}

func (p *Parser) isOp(tok Token, op Op) bool {
	return tok.Kind == OPERATOR && tok.Op == op
}

func (p *Parser) isWord(tok Token, lit string) bool {
	if tok.Kind != WORD {
		return false
	}
	val, ok := tok.Word.Lit()
	return ok && val == lit
}

var closers = map[string]bool{
	"then": true, "else": true, "elif": true, "fi": true,
	"do": true, "done": true, "esac": true, "}": true,
}

func (p *Parser) isRedirectStart(tok Token) bool {
	return tok.Kind == IO_NUMBER || (tok.Kind == OPERATOR && tok.Op.IsRedirect())
}

// startsCommand reports whether the lookahead can begin a command.
func (p *Parser) startsCommand() bool {
	tok := p.peek()
	switch tok.Kind {
	case WORD:
		lit, ok := tok.Word.Lit()
		return !ok || !closers[lit]
	case IO_NUMBER:
		return true
	case OPERATOR:
		return tok.Op == LParen || tok.Op.IsRedirect()
	}
	return false
}

// applyAlias substitutes aliases for the word in command position. A name
// is substituted at most once per source offset which stops recursion.
func (p *Parser) applyAlias() {
	for p.err == nil && p.lex.aliases != nil {
		tok := p.peek()
		if tok.Kind != WORD {
			return
		}
		name, ok := tok.Word.Lit()
		if !ok || IsReserved(name) {
			return
		}
		key := aliasKey{offset: tok.Pos.Offset, name: name}
		if p.lex.aliased[key] {
			return
		}
		repl, ok := p.lex.aliases(name)
		if !ok {
			return
		}

		p.lex.aliased[key] = true
		p.lex.splice(tok, p.tokState, repl)
		p.hasTok = false

		if strings.HasSuffix(repl, " ") || strings.HasSuffix(repl, "\t") {
			p.aliasNextOff = tok.Pos.Offset + len([]rune(repl))
		}
	}
}

// lineList parses the and-or lists of a single line.
func (p *Parser) lineList() *List {
	list := &List{}
	for p.err == nil {
		ao := p.andOr()
		if ao == nil {
			if len(list.Items) == 0 {
				p.unexpected(p.peek())
			}
			break
		}
		item := &ListItem{AndOr: ao}
		list.Items = append(list.Items, item)

		tok := p.peek()
		if !p.isOp(tok, Semi) && !p.isOp(tok, Amp) {
			break
		}
		p.next()
		item.Async = tok.Op == Amp
		if next := p.peek(); next.Kind == NEWLINE || next.Kind == EOF {
			break
		}
	}
	return list
}

// compoundList parses a newline-separated list inside a compound command.
func (p *Parser) compoundList() *List {
	list := &List{}
	p.skipNewlines()
	for p.err == nil && p.startsCommand() {
		ao := p.andOr()
		if ao == nil {
			break
		}
		item := &ListItem{AndOr: ao}
		list.Items = append(list.Items, item)

		tok := p.peek()
		switch {
		case p.isOp(tok, Semi), p.isOp(tok, Amp):
			p.next()
			item.Async = tok.Op == Amp
			p.skipNewlines()
		case tok.Kind == NEWLINE:
			p.skipNewlines()
		default:
			return list
		}
	}
	return list
}

func (p *Parser) nonEmpty(list *List, open Token) *List {
	if p.err == nil && len(list.Items) == 0 {
		tok := p.peek()
		if tok.Kind == EOF {
			p.fail(open.Pos, true, "unterminated %s", open.Text)
		} else {
			p.fail(tok.Pos, false, "unexpected %s in %s", tok, open.Text)
		}
	}
	return list
}

// expectWord consumes the reserved word lit that closes the construct opened
// by open.
func (p *Parser) expectWord(lit string, open Token) {
	tok := p.peek()
	if p.err != nil {
		return
	}
	switch {
	case p.isWord(tok, lit):
		p.next()
	case tok.Kind == EOF:
		p.fail(open.Pos, true, "unterminated %s: expected %q", open.Text, lit)
	default:
		p.fail(tok.Pos, false, "expected %q to close %s at %s, got %s", lit, open.Text, open.Pos, tok)
	}
}

func (p *Parser) expectOp(op Op, open Token) {
	tok := p.peek()
	if p.err != nil {
		return
	}
	switch {
	case p.isOp(tok, op):
		p.next()
	case tok.Kind == EOF:
		p.fail(open.Pos, true, "unterminated %s: expected %q", open.Text, op.String())
	default:
		p.fail(tok.Pos, false, "expected %q to close %s at %s, got %s", op.String(), open.Text, open.Pos, tok)
	}
}

func (p *Parser) andOr() *AndOr {
	pl := p.pipeline()
	if pl == nil {
		return nil
	}
	ao := &AndOr{Pipelines: []*Pipeline{pl}}
	for p.err == nil {
		tok := p.peek()
		if !p.isOp(tok, AndIf) && !p.isOp(tok, OrIf) {
			break
		}
		p.next()
		p.skipNewlines()
		next := p.pipeline()
		if next == nil {
			p.unexpected(p.peek())
			return ao
		}
		ao.Ops = append(ao.Ops, tok.Op)
		ao.Pipelines = append(ao.Pipelines, next)
	}
	return ao
}

func (p *Parser) pipeline() *Pipeline {
	tok := p.peek()
	pl := &Pipeline{Position: tok.Pos}
	if p.isWord(tok, "!") {
		p.next()
		pl.Bang = true
	}

	cmd := p.command()
	if cmd == nil {
		if pl.Bang {
			p.unexpected(p.peek())
		}
		return nil
	}
	pl.Commands = append(pl.Commands, cmd)

	for p.err == nil && p.isOp(p.peek(), Pipe) {
		p.next()
		p.skipNewlines()
		cmd := p.command()
		if cmd == nil {
			p.unexpected(p.peek())
			return pl
		}
		pl.Commands = append(pl.Commands, cmd)
	}
	return pl
}

func (p *Parser) command() Command {
	p.aliasNextOff = 0
	p.applyAlias()
	if p.err != nil {
		return nil
	}

	tok := p.peek()
	switch {
	case p.isOp(tok, LParen):
		p.next()
		body := p.nonEmpty(p.compoundList(), tok)
		p.expectOp(RParen, tok)
		return p.redirected(&Subshell{Body: body, Position: tok.Pos})

	case tok.Kind == WORD:
		lit, _ := tok.Word.Lit()
		switch lit {
		case "{":
			p.next()
			body := p.nonEmpty(p.compoundList(), tok)
			p.expectWord("}", tok)
			return p.redirected(&BraceGroup{Body: body, Position: tok.Pos})
		case "if":
			return p.redirected(p.ifClause())
		case "while", "until":
			return p.redirected(p.whileClause())
		case "for":
			return p.redirected(p.forClause())
		case "case":
			return p.redirected(p.caseClause())
		}
		if closers[lit] {
			return nil
		}
		return p.simpleCommand()

	case p.isRedirectStart(tok):
		return p.simpleCommand()
	}
	return nil
}

// redirected attaches trailing redirections to a compound command.
func (p *Parser) redirected(cmd Command) Command {
	var redirs []*Redirect
	for p.err == nil && p.isRedirectStart(p.peek()) {
		if r := p.redirect(); r != nil {
			redirs = append(redirs, r)
		}
	}
	if len(redirs) == 0 {
		return cmd
	}
	return &Redirected{Cmd: cmd, Redirs: redirs}
}

func (p *Parser) redirect() *Redirect {
	tok := p.next()
	r := &Redirect{Fd: -1, Position: tok.Pos}
	if tok.Kind == IO_NUMBER {
		fd, err := strconv.Atoi(tok.Text)
		if err != nil {
			p.fail(tok.Pos, false, "bad file descriptor %q", tok.Text)
			return nil
		}
		r.Fd = fd
		tok = p.next()
	}
	if tok.Kind != OPERATOR || !tok.Op.IsRedirect() {
		p.unexpected(tok)
		return nil
	}
	r.Op = tok.Op

	target := p.peek()
	if target.Kind != WORD && target.Kind != HEREDOC_DELIM {
		if target.Kind == EOF {
			p.unexpected(target)
		} else {
			p.fail(target.Pos, false, "expected a word after %s, got %s", r.Op, target)
		}
		return nil
	}
	p.next()
	r.Target = target.Word

	if r.Op == DLess || r.Op == DLessDash {
		p.lex.addHereDoc(r)
	}
	return r
}

// assignment splits NAME=value words that appear before the command name.
func assignment(w *Word) *Assign {
	if len(w.Parts) == 0 {
		return nil
	}
	lit, ok := w.Parts[0].(*Literal)
	if !ok || lit.Quoted {
		return nil
	}
	idx := strings.IndexByte(lit.Value, '=')
	if idx <= 0 || !IsName(lit.Value[:idx]) {
		return nil
	}

	var parts []WordPart
	if rest := lit.Value[idx+1:]; rest != "" {
		parts = append(parts, &Literal{Value: rest, Position: lit.Position})
	}
	parts = append(parts, w.Parts[1:]...)

	raw := w.Raw
	if i := strings.IndexByte(raw, '='); i >= 0 {
		raw = raw[i+1:]
	}
	return &Assign{
		Name:     lit.Value[:idx],
		Value:    &Word{Parts: splitTilde(parts), Position: w.Position, Raw: raw},
		Position: w.Position,
	}
}

func (p *Parser) simpleCommand() Command {
	start := p.peek()
	cmd := &SimpleCommand{Position: start.Pos}

	for p.err == nil {
		tok := p.peek()
		if p.isRedirectStart(tok) {
			if r := p.redirect(); r != nil {
				cmd.Redirs = append(cmd.Redirs, r)
			}
			continue
		}
		if tok.Kind == WORD {
			if as := assignment(tok.Word); as != nil {
				p.next()
				cmd.Assigns = append(cmd.Assigns, as)
				continue
			}
		}
		break
	}

	if tok := p.peek(); tok.Kind == WORD {
		p.next()
		cmd.Args = append(cmd.Args, tok.Word)

		if len(cmd.Assigns) == 0 && len(cmd.Redirs) == 0 && p.isOp(p.peek(), LParen) {
			return p.funcDef(tok)
		}

		for p.err == nil {
			if p.aliasNextOff > 0 {
				if next := p.peek(); next.Pos.Offset >= p.aliasNextOff {
					p.aliasNextOff = 0
					p.applyAlias()
				}
			}
			tok := p.peek()
			switch {
			case p.isRedirectStart(tok):
				if r := p.redirect(); r != nil {
					cmd.Redirs = append(cmd.Redirs, r)
				}
			case tok.Kind == WORD:
				p.next()
				cmd.Args = append(cmd.Args, tok.Word)
			default:
				return cmd
			}
		}
	}

	if len(cmd.Assigns) == 0 && len(cmd.Args) == 0 && len(cmd.Redirs) == 0 {
		return nil
	}
	return cmd
}

func (p *Parser) funcDef(name Token) Command {
	open := p.next()
	p.expectOp(RParen, open)
	if p.err != nil {
		return nil
	}

	lit, ok := name.Word.Lit()
	if !ok || !IsName(lit) {
		p.fail(name.Pos, false, "invalid function name %s", name)
		return nil
	}

	p.skipNewlines()
	body := p.command()
	if p.err != nil {
		return nil
	}
	switch b := body.(type) {
	case nil:
		p.unexpected(p.peek())
		return nil
	case *SimpleCommand, *FuncDef:
		p.fail(b.Pos(), false, "function body must be a compound command")
		return nil
	}
	return &FuncDef{Name: lit, Body: body, Position: name.Pos}
}

func (p *Parser) ifClause() Command {
	open := p.next()
	clause := &IfClause{Position: open.Pos}
	clause.Cond = p.nonEmpty(p.compoundList(), open)
	p.expectWord("then", open)
	clause.Then = p.nonEmpty(p.compoundList(), open)

	for p.err == nil {
		tok := p.peek()
		switch {
		case p.isWord(tok, "elif"):
			p.next()
			elif := &Elif{}
			elif.Cond = p.nonEmpty(p.compoundList(), tok)
			p.expectWord("then", tok)
			elif.Then = p.nonEmpty(p.compoundList(), tok)
			clause.Elifs = append(clause.Elifs, elif)
			continue
		case p.isWord(tok, "else"):
			p.next()
			clause.Else = p.nonEmpty(p.compoundList(), tok)
		}
		break
	}
	p.expectWord("fi", open)
	return clause
}

func (p *Parser) whileClause() Command {
	open := p.next()
	clause := &WhileClause{Position: open.Pos, Until: open.Text == "until"}
	clause.Cond = p.nonEmpty(p.compoundList(), open)
	clause.Body = p.doGroup(open)
	return clause
}

func (p *Parser) doGroup(open Token) *List {
	p.expectWord("do", open)
	body := p.nonEmpty(p.compoundList(), open)
	p.expectWord("done", open)
	return body
}

func (p *Parser) forClause() Command {
	open := p.next()
	clause := &ForClause{Position: open.Pos}

	name := p.next()
	lit, ok := "", false
	if name.Kind == WORD {
		lit, ok = name.Word.Lit()
	}
	if !ok || !IsName(lit) {
		if name.Kind == EOF {
			p.fail(open.Pos, true, "unterminated for")
		} else {
			p.fail(name.Pos, false, "bad for loop variable %s", name)
		}
		return nil
	}
	clause.Name = lit

	p.skipNewlines()
	tok := p.peek()
	switch {
	case p.isWord(tok, "in"):
		p.next()
		clause.In = true
		for p.err == nil {
			tok := p.peek()
			if tok.Kind != WORD {
				break
			}
			p.next()
			clause.Items = append(clause.Items, tok.Word)
		}
		switch tok := p.peek(); {
		case p.isOp(tok, Semi), tok.Kind == NEWLINE:
			p.next()
		default:
			p.unexpected(tok)
		}
		p.skipNewlines()
	case p.isOp(tok, Semi):
		p.next()
		p.skipNewlines()
	}

	clause.Body = p.doGroup(open)
	return clause
}

func (p *Parser) caseClause() Command {
	open := p.next()
	clause := &CaseClause{Position: open.Pos}

	subject := p.next()
	if subject.Kind != WORD {
		if subject.Kind == EOF {
			p.fail(open.Pos, true, "unterminated case")
		} else {
			p.fail(subject.Pos, false, "expected a word after case, got %s", subject)
		}
		return nil
	}
	clause.Word = subject.Word

	p.skipNewlines()
	p.expectWord("in", open)
	p.skipNewlines()

	for p.err == nil {
		tok := p.peek()
		if p.isWord(tok, "esac") {
			p.next()
			return clause
		}
		if tok.Kind == EOF {
			p.fail(open.Pos, true, "unterminated case: expected \"esac\"")
			return nil
		}

		item := &CaseItem{}
		if p.isOp(tok, LParen) {
			p.next()
		}
		for p.err == nil {
			pat := p.next()
			if pat.Kind != WORD {
				p.unexpected(pat)
				return nil
			}
			item.Patterns = append(item.Patterns, pat.Word)
			if !p.isOp(p.peek(), Pipe) {
				break
			}
			p.next()
		}
		p.expectOp(RParen, open)
		item.Body = p.compoundList()
		clause.Items = append(clause.Items, item)

		switch tok := p.peek(); {
		case p.isOp(tok, DSemi):
			p.next()
			p.skipNewlines()
		case p.isWord(tok, "esac"):
		case tok.Kind == EOF:
			p.fail(open.Pos, true, "unterminated case: expected \"esac\"")
		default:
			p.unexpected(tok)
		}
	}
	return nil
}

// parseSubst parses the body of $(...) up to and including the closing
// parenthesis.
func (p *Parser) parseSubst(open Pos) (*Program, error) {
	body := p.compoundList()
	if p.err != nil {
		return nil, p.err
	}
	tok := p.peek()
	switch {
	case p.isOp(tok, RParen):
		p.hasTok = false
	case tok.Kind == EOF:
		p.fail(open, true, "unterminated command substitution")
	default:
		p.unexpected(tok)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &Program{Body: body}, nil
}
