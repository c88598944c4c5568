package compiler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// EOFChar is the character source's end-of-input sentinel.
const EOFChar rune = -1

// Lexer pulls characters from a source reader one at a time and groups them
// into tokens. Every character read is echoed to the listing.
type Lexer struct {
	src     *bufio.Reader
	listing *listing

	ch        rune // current character, EOFChar once input is exhausted
	line      int  // 1-based line of ch, 0 before the first read
	lineStart bool // the next character read opens a new line
	primed    bool
	readErr   error
}

// NewLexer returns a lexer over r. Characters are echoed to listing when it
// is non-nil.
func NewLexer(r io.Reader, listing io.Writer) *Lexer {
	return newLexer(r, newListing(listing))
}

func newLexer(r io.Reader, lst *listing) *Lexer {
	return &Lexer{src: bufio.NewReader(r), listing: lst, lineStart: true}
}

// Line returns the line of the most recently read character.
func (l *Lexer) Line() int {
	return l.line
}

// nextChar advances to the next character. Once the source is exhausted it
// keeps returning EOFChar.
func (l *Lexer) nextChar() rune {
	if l.primed && l.ch == EOFChar {
		return EOFChar
	}
	l.primed = true

	r, _, err := l.src.ReadRune()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.readErr = err
		}
		l.ch = EOFChar
		return l.ch
	}

	if l.lineStart {
		l.line++
		l.listing.lineNumber(l.line)
		l.lineStart = false
	}
	l.listing.echo(r)
	if r == '\n' {
		l.lineStart = true
	}
	l.ch = r
	return l.ch
}

// NextToken skips whitespace and comments and returns the next token.
func (l *Lexer) NextToken() (Token, error) {
	tok, err := l.scan()
	if l.readErr != nil {
		return Token{}, newError(CompilerError, "reading source: %v", l.readErr)
	}
	return tok, err
}

func (l *Lexer) scan() (Token, error) {
	if !l.primed {
		l.nextChar()
	}

	for {
		switch {
		case l.ch == '#':
			for l.ch != '\n' && l.ch != EOFChar {
				l.nextChar()
			}
			// A comment must be closed by a newline.
			if l.ch == EOFChar {
				return Token{}, newError(EOFError, "Unexpected end of input inside a comment")
			}
			continue
		case l.ch != EOFChar && unicode.IsSpace(l.ch):
			l.nextChar()
			continue
		}
		break
	}

	line := l.line
	ch := l.ch

	switch {
	case ch == EOFChar:
		return Token{Type: EOF, Line: line}, nil

	case ch == '<' || ch == '>':
		l.nextChar()
		if l.ch == ch {
			l.nextChar()
			return Token{SYMBOL, string([]rune{ch, ch}), line}, nil
		}
		return Token{SYMBOL, string(ch), line}, nil

	case ch == '\'':
		return l.scanChar()

	case ch == '"':
		return l.scanDelimited('"', STRING)

	case ch == '[':
		return l.scanDelimited(']', LIST)

	case specialSymbols[ch]:
		l.nextChar()
		return Token{SYMBOL, string(ch), line}, nil

	case isLetter(ch):
		return l.scanWord()

	case isDigit(ch):
		var sb strings.Builder
		for isDigit(l.ch) {
			sb.WriteRune(l.ch)
			l.nextChar()
		}
		return Token{INTEGER, sb.String(), line}, nil
	}

	return Token{}, newError(SyntaxError, "Invalid symbol %q received", ch)
}

// scanChar collects 'c'. Exactly one character may sit between the quotes.
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	c := l.nextChar()
	if c == EOFChar {
		return Token{}, newError(EOFError, "Unexpected end of input in character literal")
	}
	closing := l.nextChar()
	if closing == EOFChar {
		return Token{}, newError(EOFError, "Unexpected end of input in character literal")
	}
	if closing != '\'' {
		return Token{}, newError(SyntaxError, "Character literal must hold exactly one character, found %q", closing)
	}
	l.nextChar()
	return Token{CHAR, "'" + string(c) + "'", line}, nil
}

// scanDelimited collects a string or list literal, delimiters included.
// The opening delimiter is the current character.
func (l *Lexer) scanDelimited(closing rune, tt TokenType) (Token, error) {
	line := l.line
	var sb strings.Builder
	sb.WriteRune(l.ch)
	for l.nextChar() != closing {
		if l.ch == EOFChar {
			return Token{}, newError(EOFError, "Unexpected end of input in %s literal", strings.ToLower(tt.String()))
		}
		sb.WriteRune(l.ch)
	}
	sb.WriteRune(closing)
	l.nextChar()
	return Token{tt, sb.String(), line}, nil
}

// scanWord collects a letter-initial run of letters, digits and underscores.
// The grammar needs something after every word, so input may not end here.
func (l *Lexer) scanWord() (Token, error) {
	line := l.line
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		sb.WriteRune(l.ch)
		l.nextChar()
	}
	word := sb.String()
	if l.ch == EOFChar {
		return Token{}, newError(EOFError, "Unexpected end of input after %q", word)
	}
	return Token{lookupWord(word), word, line}, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return r != EOFChar && unicode.IsLetter(r)
}

// Tokenize lexes src to completion. The EOF token is included.
func Tokenize(src io.Reader) ([]Token, error) {
	l := NewLexer(src, nil)
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) && ce.Line == 0 {
				ce.Line = l.Line()
			}
			return toks, fmt.Errorf("tokenize: %w", err)
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}
