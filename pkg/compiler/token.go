package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	KEYWORD    // frozen, not, raise
	TYPENAME   // int, bool, str, char, list
	IDENTIFIER // variable name
	INTEGER    // decimal digits
	BOOLEAN    // True, False
	STRING     // "..."
	CHAR       // 'c'
	LIST       // [...]
	SYMBOL     // = - + < > ( ) [ ] << >>
)

var tokenNames = [...]string{
	EOF:        "EOF",
	KEYWORD:    "KEYWORD",
	TYPENAME:   "TYPENAME",
	IDENTIFIER: "IDENTIFIER",
	INTEGER:    "INTEGER",
	BOOLEAN:    "BOOLEAN",
	STRING:     "STRING",
	CHAR:       "CHAR",
	LIST:       "LIST",
	SYMBOL:     "SYMBOL",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer. Literal lexemes keep
// their delimiters, so "abc" arrives with its quotes.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int // 1-based source line
}

func (t Token) String() string {
	if t.Type == EOF {
		return fmt.Sprintf("%-10s %-14s  line %d", t.Type, "", t.Line)
	}
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}

// Reserved words. Types double as keywords so they can never name a symbol.
var (
	typeNames = map[string]Type{
		"int":  TypeInt,
		"bool": TypeBool,
		"str":  TypeStr,
		"char": TypeChar,
		"list": TypeList,
	}

	controlWords = map[string]bool{
		"frozen": true,
		"not":    true,
		"raise":  true,
	}

	specialSymbols = map[rune]bool{
		'=': true, '-': true, '+': true,
		'<': true, '>': true,
		'(': true, ')': true,
		'[': true, ']': true,
	}
)

// lookupWord classifies a letter-initial word.
func lookupWord(word string) TokenType {
	switch {
	case isBoolean(word):
		return BOOLEAN
	case controlWords[word]:
		return KEYWORD
	case isTypeName(word):
		return TYPENAME
	}
	return IDENTIFIER
}

// errorCatalog lists the names a raise statement may use.
var errorCatalog = map[string]bool{
	"ArithmeticError": true, "AssertionError": true,
	"AttributeError": true, "BaseException": true,
	"BlockingIOError": true, "BrokenPipeError": true,
	"BufferError": true, "BytesWarning": true,
	"ChildProcessError": true, "ConnectionAbortedError": true,
	"ConnectionError": true, "ConnectionRefusedError": true,
	"ConnectionResetError": true, "DeprecationWarning": true,
	"EOFError": true, "Ellipsis": true, "EnvironmentError": true,
	"Exception": true, "FileExistsError": true, "FileNotFoundError": true,
	"FloatingPointError": true, "FutureWarning": true, "GeneratorExit": true,
	"IOError": true, "ImportError": true, "ImportWarning": true,
	"IndentationError": true, "IndexError": true, "InterruptedError": true,
	"IsADirectoryError": true, "KeyError": true, "KeyboardInterrupt": true,
	"LookupError": true, "MemoryError": true, "ModuleNotFoundError": true,
	"NameError": true, "NotADirectoryError": true, "NotImplemented": true,
	"NotImplementedError": true, "OSError": true, "OverflowError": true,
	"PendingDeprecationWarning": true, "PermissionError": true,
	"ProcessLookupError": true, "RecursionError": true, "ReferenceError": true,
	"ResourceWarning": true, "RuntimeError": true, "RuntimeWarning": true,
	"StopAsyncIteration": true, "StopIteration": true, "SyntaxError": true,
	"SyntaxWarning": true, "SystemError": true, "SystemExit": true, "TabError": true,
	"TimeoutError": true, "TypeError": true, "UnboundLocalError": true,
	"UnicodeDecodeError": true, "UnicodeEncodeError": true, "UnicodeError": true,
	"UnicodeTranslateError": true, "UnicodeWarning": true, "UserWarning": true,
	"ValueError": true, "Warning": true, "WindowsError": true, "ZeroDivisionError": true,
}

// IsCatalogError reports whether name is a raisable error kind.
func IsCatalogError(name string) bool {
	return errorCatalog[name]
}
