package syntax

import (
	"errors"
	"fmt"
)

// ErrIncomplete matches syntax errors caused by input that ended before a
// construct was closed. Interactive callers should read another line and
// parse again.
var ErrIncomplete = errors.New("incomplete input")

// SyntaxError is a lexical or grammatical error with its source position.
type SyntaxError struct {
	Pos Pos
	Msg string
	// Incomplete is set when more input could complete the command.
	Incomplete bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Msg)
}

// Is allows errors.Is(err, ErrIncomplete).
func (e *SyntaxError) Is(target error) bool {
	return target == ErrIncomplete && e.Incomplete
}

// IsIncomplete returns true if err signals a continuation rather than a
// real syntax error.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}
