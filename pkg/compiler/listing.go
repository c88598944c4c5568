package compiler

import (
	"fmt"
	"io"
	"time"
)

// ListingTimeFormat is the timestamp layout of the listing header.
const ListingTimeFormat = "2006/01/02 15:04 MST"

// listing writes the human-readable side channel: a header, the numbered
// source echo, at most one diagnostic and a closing summary.
type listing struct {
	w       io.Writer
	err     error
	midLine bool
}

func newListing(w io.Writer) *listing {
	if w == nil {
		w = io.Discard
	}
	return &listing{w: w}
}

func (l *listing) printf(format string, args ...any) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, format, args...)
}

func (l *listing) header(title string, now time.Time) {
	l.printf("%s\t%s\n\n", title, now.UTC().Format(ListingTimeFormat))
}

func (l *listing) lineNumber(n int) {
	l.printf("%5d| ", n)
	l.midLine = true
}

func (l *listing) echo(r rune) {
	l.printf("%c", r)
	l.midLine = r != '\n'
}

func (l *listing) endLine() {
	if l.midLine {
		l.printf("\n")
		l.midLine = false
	}
}

func (l *listing) diagnostic(e *Error) {
	l.endLine()
	l.printf("\nLine %d: %s: %s\n\n", e.Line, e.Kind, e.Msg)
}

func (l *listing) footer(errors, symbols int) {
	l.endLine()
	if errors > 0 {
		l.printf("Compilation stopped: %d error(s)\n", errors)
		return
	}
	l.printf("\nCompilation succeeded: %d symbol(s), 0 errors\n", symbols)
}
