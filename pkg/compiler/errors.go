package compiler

import "fmt"

// ErrorKind classifies a diagnostic.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	ReferenceError
	TypeError
	RedefinitionError
	OverflowError
	EOFError
	CompilerError
)

var errorKindNames = [...]string{
	SyntaxError:       "SyntaxError",
	ReferenceError:    "ReferenceError",
	TypeError:         "TypeError",
	RedefinitionError: "RedefinitionError",
	OverflowError:     "OverflowError",
	EOFError:          "EOFError",
	CompilerError:     "CompilerError",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the single diagnostic a failed run produces. Line is stamped by
// the compiler when the error surfaces; components leave it zero.
type Error struct {
	Kind ErrorKind
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Line %d: %s: %s", e.Line, e.Kind, e.Msg)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
