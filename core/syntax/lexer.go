package syntax

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const eofRune rune = -1

// source is a rune buffer that is filled a line at a time from a reader so
// interactive callers never block on input the parser doesn't need yet.
type source struct {
	r   *bufio.Reader
	buf []rune
	eof bool
	err error
}

func (s *source) fill() bool {
	if s.eof {
		return false
	}
	line, err := s.r.ReadString('\n')
	if len(line) > 0 {
		s.buf = append(s.buf, []rune(line)...)
	}
	if err != nil {
		s.eof = true
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
	}
	return len(line) > 0
}

type aliasKey struct {
	offset int
	name   string
}

// Lexer converts shell source into tokens. It tracks pending here-documents
// and reads their bodies after the next newline.
type Lexer struct {
	src  *source
	off  int
	line int
	col  int

	lastOp   Op
	lastKind TokenKind
	cmdStart bool

	heredocs []*Redirect

	aliases func(name string) (string, bool)
	aliased map[aliasKey]bool
}

// NewLexer creates a standalone lexer. Most callers want a Parser.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		src:      &source{r: bufio.NewReader(r)},
		line:     1,
		col:      1,
		cmdStart: true,
		aliased:  make(map[aliasKey]bool),
	}
}

// Next returns the next token. Reserved words are reported as RESERVED only
// when they appear where a command may start.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.scan()
	if err != nil {
		return tok, err
	}

	switch tok.Kind {
	case WORD:
		if lit, ok := tok.Word.Lit(); ok && l.cmdStart && IsReserved(lit) {
			tok.Kind = RESERVED
			// Reserved words are followed by another command except "in"
			// which is followed by a word list.
			l.cmdStart = lit != "in"
		} else {
			l.cmdStart = false
		}
	case HEREDOC_DELIM:
		l.addHereDoc(&Redirect{Op: l.lastOp, Target: tok.Word, Position: tok.Pos})
	case NEWLINE:
		l.cmdStart = true
	case OPERATOR:
		if !tok.Op.IsRedirect() {
			l.cmdStart = true
		}
	}
	return tok, nil
}

type lexState struct {
	off, line, col int
	lastOp         Op
	lastKind       TokenKind
}

func (l *Lexer) state() lexState {
	return lexState{off: l.off, line: l.line, col: l.col, lastOp: l.lastOp, lastKind: l.lastKind}
}

func (l *Lexer) restore(st lexState) {
	l.off, l.line, l.col = st.off, st.line, st.col
	l.lastOp, l.lastKind = st.lastOp, st.lastKind
}

func (l *Lexer) pos() Pos {
	return Pos{Offset: l.off, Line: l.line, Column: l.col}
}

func (l *Lexer) peekAt(n int) rune {
	for l.off+n >= len(l.src.buf) {
		if !l.src.fill() {
			return eofRune
		}
	}
	return l.src.buf[l.off+n]
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

func (l *Lexer) advance() rune {
	r := l.peek()
	if r == eofRune {
		return r
	}
	l.off++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) text(start, end int) string {
	return string(l.src.buf[start:end])
}

// splice replaces the source text of tok with repl and rewinds to the start
// of tok so the replacement is lexed next.
func (l *Lexer) splice(tok Token, st lexState, repl string) {
	start := tok.Pos.Offset
	end := start + len([]rune(tok.Text))

	buf := make([]rune, 0, len(l.src.buf)+len(repl))
	buf = append(buf, l.src.buf[:start]...)
	buf = append(buf, []rune(repl)...)
	buf = append(buf, l.src.buf[end:]...)
	l.src.buf = buf

	l.restore(st)
}

func (l *Lexer) addHereDoc(r *Redirect) {
	l.heredocs = append(l.heredocs, r)
}

func (l *Lexer) fail(pos Pos, incomplete bool, format string, args ...interface{}) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...), Incomplete: incomplete}
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isMeta(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '|', '&', ';', '(', ')', '<', '>':
		return true
	}
	return false
}

// skipBlanks skips blanks, line continuations and comments.
func (l *Lexer) skipBlanks() error {
	for {
		switch r := l.peek(); {
		case isBlank(r):
			l.advance()
		case r == '\\' && l.peekAt(1) == '\n':
			pos := l.pos()
			l.advance()
			l.advance()
			if l.peek() == eofRune {
				return l.fail(pos, true, "unexpected end of file after line continuation")
			}
		case r == '#':
			for r := l.peek(); r != '\n' && r != eofRune; r = l.peek() {
				l.advance()
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) scan() (Token, error) {
	if err := l.skipBlanks(); err != nil {
		return Token{}, err
	}
	if l.src.err != nil {
		return Token{}, l.src.err
	}

	tok, err := l.scanToken()
	if err != nil {
		return tok, err
	}
	l.lastKind = tok.Kind
	l.lastOp = tok.Op
	return tok, nil
}

func (l *Lexer) scanToken() (Token, error) {
	pos := l.pos()
	r := l.peek()

	switch {
	case r == eofRune:
		return Token{Kind: EOF, Pos: pos}, nil
	case r == '\n':
		l.advance()
		if err := l.readHereDocs(); err != nil {
			return Token{}, err
		}
		return Token{Kind: NEWLINE, Text: "\n", Pos: pos}, nil
	}

	if op, ok := l.scanOperator(); ok {
		return Token{Kind: OPERATOR, Op: op, Text: op.String(), Pos: pos}, nil
	}

	if isDigit(r) {
		n := 0
		for isDigit(l.peekAt(n)) {
			n++
		}
		if c := l.peekAt(n); c == '<' || c == '>' {
			for i := 0; i < n; i++ {
				l.advance()
			}
			return Token{Kind: IO_NUMBER, Text: l.text(pos.Offset, l.off), Pos: pos}, nil
		}
	}

	kind := WORD
	if l.lastKind == OPERATOR && (l.lastOp == DLess || l.lastOp == DLessDash) {
		kind = HEREDOC_DELIM
	}

	parts, err := l.wordParts(modeWord, false)
	if err != nil {
		return Token{}, err
	}
	word := &Word{
		Parts:    splitTilde(parts),
		Position: pos,
		Raw:      l.text(pos.Offset, l.off),
	}
	return Token{Kind: kind, Text: word.Raw, Pos: pos, Word: word}, nil
}

func (l *Lexer) scanOperator() (Op, bool) {
	for _, op := range operators {
		text := opText[op]
		match := true
		for i, r := range []rune(text) {
			if l.peekAt(i) != r {
				match = false
				break
			}
		}
		if match {
			for range text {
				l.advance()
			}
			return op, true
		}
	}
	return OpNone, false
}

// splitTilde converts a leading unquoted ~ into a TildePrefix. The prefix
// runs to the first slash and must be entirely unquoted literal text.
func splitTilde(parts []WordPart) []WordPart {
	if len(parts) == 0 {
		return parts
	}
	lit, ok := parts[0].(*Literal)
	if !ok || lit.Quoted || !strings.HasPrefix(lit.Value, "~") {
		return parts
	}

	idx := strings.IndexByte(lit.Value, '/')
	if idx < 0 {
		if len(parts) > 1 {
			return parts
		}
		idx = len(lit.Value)
	}

	user := lit.Value[1:idx]
	if user != "" && !isLoginName(user) {
		return parts
	}

	out := []WordPart{&TildePrefix{User: user, Position: lit.Position}}
	if rest := lit.Value[idx:]; rest != "" {
		out = append(out, &Literal{Value: rest, Position: lit.Position})
	}
	return append(out, parts[1:]...)
}

func isLoginName(s string) bool {
	for _, r := range s {
		if !isNameRune(r, false) && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

type wordMode int

const (
	// modeWord stops at an unquoted metacharacter.
	modeWord wordMode = iota
	// modeDQuote stops at the closing double quote.
	modeDQuote
	// modeParamArg stops at the closing brace of ${...}.
	modeParamArg
	// modeHereDoc reads a here-document body to the end of input.
	modeHereDoc
	// modeArith stops at the closing )) of $((...)).
	modeArith
	// modeWhole reads to the end of input treating blanks as literals.
	modeWhole
)

// wordParts reads word fragments until the mode's terminator. Fragments are
// marked quoted when quoted is set or they came from quoting characters.
func (l *Lexer) wordParts(mode wordMode, quoted bool) ([]WordPart, error) {
	var (
		parts     []WordPart
		lit       strings.Builder
		litPos    Pos
		litQuoted bool
		litSingle bool
		depth     int
	)
	start := l.pos()

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &Literal{Value: lit.String(), Quoted: litQuoted, Single: litSingle, Position: litPos})
			lit.Reset()
		}
	}
	addLit := func(pos Pos, s string, q, single bool) {
		if lit.Len() > 0 && (q != litQuoted || single != litSingle) {
			flush()
		}
		if lit.Len() == 0 {
			litPos, litQuoted, litSingle = pos, q, single
		}
		lit.WriteString(s)
	}
	addPart := func(p WordPart) {
		flush()
		parts = append(parts, p)
	}

	// Quote characters are only special outside double quotes and
	// here-documents.
	quotesActive := mode == modeWord || mode == modeWhole || mode == modeArith || (mode == modeParamArg && !quoted)

	for {
		pos := l.pos()
		r := l.peek()

		if r == eofRune {
			switch mode {
			case modeDQuote:
				return nil, l.fail(start, true, "unterminated double quote")
			case modeParamArg:
				return nil, l.fail(start, true, "unterminated parameter expansion")
			case modeArith:
				return nil, l.fail(start, true, "unterminated arithmetic expansion")
			}
			flush()
			return parts, nil
		}

		switch mode {
		case modeWord:
			if isMeta(r) {
				flush()
				return parts, nil
			}
		case modeDQuote:
			if r == '"' {
				flush()
				return parts, nil
			}
		case modeParamArg:
			if r == '}' && depth == 0 {
				flush()
				return parts, nil
			}
		case modeArith:
			if r == ')' && depth == 0 && l.peekAt(1) == ')' {
				flush()
				return parts, nil
			}
		}

		switch {
		case r == '\\':
			l.advance()
			next := l.peek()
			switch {
			case next == eofRune:
				addLit(pos, `\`, true, false)
			case next == '\n':
				l.advance()
				if mode == modeWord && l.peek() == eofRune {
					return nil, l.fail(pos, true, "unexpected end of file after line continuation")
				}
			case l.escapable(mode, quoted, next):
				l.advance()
				addLit(pos, string(next), true, false)
			default:
				addLit(pos, `\`, quoted, false)
			}

		case r == '\'' && quotesActive:
			l.advance()
			var sb strings.Builder
			for {
				c := l.advance()
				if c == eofRune {
					return nil, l.fail(pos, true, "unterminated single quote")
				}
				if c == '\'' {
					break
				}
				sb.WriteRune(c)
			}
			if sb.Len() == 0 {
				addPart(&Literal{Quoted: true, Single: true, Position: pos})
			} else {
				addLit(pos, sb.String(), true, true)
			}

		case r == '"' && (quotesActive || mode == modeParamArg):
			l.advance()
			sub, err := l.wordParts(modeDQuote, true)
			if err != nil {
				return nil, err
			}
			l.advance()
			flush()
			if len(sub) == 0 {
				parts = append(parts, &Literal{Quoted: true, Position: pos})
			}
			parts = append(parts, sub...)

		case r == '$':
			part, err := l.dollar(quoted)
			if err != nil {
				return nil, err
			}
			if part == nil {
				addLit(pos, "$", quoted, false)
				continue
			}
			addPart(part)

		case r == '`':
			part, err := l.backquote(quoted || mode == modeDQuote)
			if err != nil {
				return nil, err
			}
			addPart(part)

		default:
			switch {
			case mode == modeArith && r == '(':
				depth++
			case mode == modeArith && r == ')':
				depth--
			case mode == modeParamArg && r == '{':
				depth++
			case mode == modeParamArg && r == '}':
				depth--
			}
			l.advance()
			addLit(pos, string(r), quoted, false)
		}
	}
}

// escapable reports whether a backslash before r quotes it in mode.
func (l *Lexer) escapable(mode wordMode, quoted bool, r rune) bool {
	switch {
	case mode == modeHereDoc:
		return r == '$' || r == '`' || r == '\\'
	case mode == modeDQuote, mode == modeParamArg && quoted:
		return r == '$' || r == '`' || r == '"' || r == '\\'
	default:
		return true
	}
}

func isSpecialParam(r rune) bool {
	switch r {
	case '@', '*', '#', '?', '-', '$', '!':
		return true
	}
	return isDigit(r)
}

// dollar reads an expansion introduced by '$'. It returns nil if the '$' is
// literal.
func (l *Lexer) dollar(quoted bool) (WordPart, error) {
	pos := l.pos()
	r := l.peekAt(1)

	switch {
	case r == '{':
		l.advance()
		l.advance()
		return l.paramBraced(pos, quoted)
	case r == '(' && l.peekAt(2) == '(':
		l.advance()
		l.advance()
		l.advance()
		return l.arith(pos, quoted)
	case r == '(':
		l.advance()
		l.advance()
		return l.cmdSubst(pos, quoted)
	case isNameRune(r, true):
		l.advance()
		start := l.off
		for isNameRune(l.peek(), false) {
			l.advance()
		}
		return &ParamExp{Name: l.text(start, l.off), Quoted: quoted, Position: pos}, nil
	case isSpecialParam(r):
		l.advance()
		l.advance()
		return &ParamExp{Name: string(r), Quoted: quoted, Position: pos}, nil
	}
	l.advance()
	return nil, nil
}

func (l *Lexer) paramBraced(pos Pos, quoted bool) (WordPart, error) {
	pe := &ParamExp{Braced: true, Quoted: quoted, Position: pos}

	if l.peek() == '#' {
		next := l.peekAt(1)
		if next != '}' && (isNameRune(next, true) || isSpecialParam(next)) {
			l.advance()
			pe.Length = true
		}
	}

	start := l.off
	switch r := l.peek(); {
	case isNameRune(r, true):
		for isNameRune(l.peek(), false) {
			l.advance()
		}
	case isDigit(r):
		for isDigit(l.peek()) {
			l.advance()
		}
	case isSpecialParam(r):
		l.advance()
	case r == eofRune:
		return nil, l.fail(pos, true, "unterminated parameter expansion")
	default:
		return nil, l.fail(pos, false, "bad substitution")
	}
	pe.Name = l.text(start, l.off)

	if pe.Length {
		if r := l.advance(); r != '}' {
			if r == eofRune {
				return nil, l.fail(pos, true, "unterminated parameter expansion")
			}
			return nil, l.fail(pos, false, "bad substitution")
		}
		return pe, nil
	}

	switch r := l.advance(); r {
	case '}':
		return pe, nil
	case ':':
		switch op := l.advance(); op {
		case '-', '=', '?', '+':
			pe.Colon = true
			pe.Op = string(op)
		case eofRune:
			return nil, l.fail(pos, true, "unterminated parameter expansion")
		default:
			return nil, l.fail(pos, false, "bad substitution")
		}
	case '-', '=', '?', '+':
		pe.Op = string(r)
	case '%', '#':
		pe.Op = string(r)
		if l.peek() == r {
			l.advance()
			pe.Op += string(r)
		}
	case eofRune:
		return nil, l.fail(pos, true, "unterminated parameter expansion")
	default:
		return nil, l.fail(pos, false, "bad substitution")
	}

	argStart := l.pos()
	parts, err := l.wordParts(modeParamArg, quoted)
	if err != nil {
		return nil, err
	}
	pe.Arg = &Word{Parts: parts, Position: argStart, Raw: l.text(argStart.Offset, l.off)}
	l.advance()
	return pe, nil
}

func (l *Lexer) arith(pos Pos, quoted bool) (WordPart, error) {
	start := l.pos()
	parts, err := l.wordParts(modeArith, quoted)
	if err != nil {
		return nil, err
	}
	expr := &Word{Parts: parts, Position: start, Raw: l.text(start.Offset, l.off)}
	l.advance()
	l.advance()
	return &ArithExp{Expr: expr, Quoted: quoted, Position: pos}, nil
}

func (l *Lexer) cmdSubst(pos Pos, quoted bool) (WordPart, error) {
	start := l.off
	p := &Parser{lex: l}
	prog, err := p.parseSubst(pos)
	if err != nil {
		return nil, err
	}
	return &CmdSubst{
		Text:     l.text(start, l.off-1),
		Prog:     prog,
		Quoted:   quoted,
		Position: pos,
	}, nil
}

func (l *Lexer) backquote(quoted bool) (WordPart, error) {
	pos := l.pos()
	l.advance()

	var sb strings.Builder
	for {
		r := l.advance()
		switch {
		case r == eofRune:
			return nil, l.fail(pos, true, "unterminated backquote")
		case r == '`':
			text := sb.String()
			sub := NewParser(strings.NewReader(text), WithAliases(l.aliases))
			prog, err := sub.Parse()
			if err != nil {
				var serr *SyntaxError
				if errors.As(err, &serr) {
					return nil, l.fail(pos, false, "in command substitution: %s", serr.Msg)
				}
				return nil, err
			}
			return &CmdSubst{Text: text, Prog: prog, Backquote: true, Quoted: quoted, Position: pos}, nil
		case r == '\\':
			next := l.peek()
			if next == '$' || next == '`' || next == '\\' || (quoted && next == '"') {
				sb.WriteRune(l.advance())
				continue
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
}

// readLine reads the rest of the current line including the newline.
func (l *Lexer) readLine() (string, bool) {
	if l.peek() == eofRune {
		return "", false
	}
	var sb strings.Builder
	for {
		r := l.advance()
		if r == eofRune {
			return sb.String(), true
		}
		sb.WriteRune(r)
		if r == '\n' {
			return sb.String(), true
		}
	}
}

func (l *Lexer) readHereDocs() error {
	pending := l.heredocs
	l.heredocs = nil

	for _, r := range pending {
		delim := r.Target.Unquoted()
		quoted := r.Target.HasQuotes()

		var body strings.Builder
		for {
			line, ok := l.readLine()
			if !ok {
				return l.fail(r.Position, true, "unterminated here-document: expected %q", delim)
			}
			text := strings.TrimSuffix(line, "\n")
			if r.Op == DLessDash {
				text = strings.TrimLeft(text, "\t")
			}
			if text == delim {
				break
			}
			if !strings.HasSuffix(line, "\n") {
				return l.fail(r.Position, true, "unterminated here-document: expected %q", delim)
			}
			body.WriteString(text)
			body.WriteByte('\n')
		}

		r.HereDocQuoted = quoted
		if quoted {
			r.HereDoc = &Word{
				Parts:    []WordPart{&Literal{Value: body.String(), Quoted: true, Single: true, Position: r.Position}},
				Position: r.Position,
				Raw:      body.String(),
			}
			continue
		}

		sub := NewLexer(strings.NewReader(body.String()))
		sub.aliases = l.aliases
		parts, err := sub.wordParts(modeHereDoc, true)
		if err != nil {
			return err
		}
		r.HereDoc = &Word{Parts: parts, Position: r.Position, Raw: body.String()}
	}
	return nil
}
