package syntax

import "fmt"

// Pos is a position in the shell source. Line and Column are 1-based.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid returns true if the position was set by the lexer.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// TokenKind is the lexical class of a token.
type TokenKind int

const (
	EOF TokenKind = iota
	WORD
	NEWLINE
	OPERATOR
	IO_NUMBER
	RESERVED
	HEREDOC_DELIM
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case WORD:
		return "WORD"
	case NEWLINE:
		return "NEWLINE"
	case OPERATOR:
		return "OPERATOR"
	case IO_NUMBER:
		return "IO_NUMBER"
	case RESERVED:
		return "RESERVED"
	case HEREDOC_DELIM:
		return "HEREDOC_DELIM"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Op is a control or redirection operator.
type Op int

const (
	OpNone Op = iota

	Pipe      // |
	OrIf      // ||
	AndIf     // &&
	Semi      // ;
	DSemi     // ;;
	Amp       // &
	LParen    // (
	RParen    // )
	Less      // <
	Great     // >
	DGreat    // >>
	DLess     // <<
	DLessDash // <<-
	LessAnd   // <&
	GreatAnd  // >&
	LessGreat // <>
	Clobber   // >|
)

var opText = map[Op]string{
	Pipe:      "|",
	OrIf:      "||",
	AndIf:     "&&",
	Semi:      ";",
	DSemi:     ";;",
	Amp:       "&",
	LParen:    "(",
	RParen:    ")",
	Less:      "<",
	Great:     ">",
	DGreat:    ">>",
	DLess:     "<<",
	DLessDash: "<<-",
	LessAnd:   "<&",
	GreatAnd:  ">&",
	LessGreat: "<>",
	Clobber:   ">|",
}

// operators ordered longest first so the lexer can do maximal munch.
var operators = []Op{
	DLessDash,
	OrIf, AndIf, DSemi, DGreat, DLess, LessAnd, GreatAnd, LessGreat, Clobber,
	Pipe, Semi, Amp, LParen, RParen, Less, Great,
}

func (o Op) String() string {
	if s, ok := opText[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsRedirect returns true if the operator introduces a redirection.
func (o Op) IsRedirect() bool {
	switch o {
	case Less, Great, DGreat, DLess, DLessDash, LessAnd, GreatAnd, LessGreat, Clobber:
		return true
	}
	return false
}

// Token is a single lexical token. Tokens are never modified after the lexer
// hands them out.
type Token struct {
	Kind TokenKind
	Op   Op
	// Text holds the raw source text of the token.
	Text string
	Pos  Pos
	// Word is set for WORD, RESERVED and HEREDOC_DELIM tokens and records
	// which spans were quoted.
	Word *Word
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of file"
	case NEWLINE:
		return "newline"
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

var reservedWords = map[string]bool{
	"!":     true,
	"{":     true,
	"}":     true,
	"case":  true,
	"do":    true,
	"done":  true,
	"elif":  true,
	"else":  true,
	"esac":  true,
	"fi":    true,
	"for":   true,
	"if":    true,
	"in":    true,
	"then":  true,
	"until": true,
	"while": true,
}

// IsReserved returns true if s is a reserved word in command position.
func IsReserved(s string) bool {
	return reservedWords[s]
}

// IsName returns true if s is a valid variable name.
func IsName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !isNameRune(r, i == 0) {
			return false
		}
	}
	return true
}

func isNameRune(r rune, first bool) bool {
	switch {
	case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		return true
	case '0' <= r && r <= '9':
		return !first
	}
	return false
}
