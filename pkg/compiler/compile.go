package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Options configures one compilation run.
type Options struct {
	Title    string
	Includes []string  // defaults to DefaultIncludes
	Listing  io.Writer // nil discards the listing
	Logger   *slog.Logger
	Now      func() time.Time
}

// Compiler owns the state of one run: the lexer, symbol table, generator and
// the error count. It is not reusable.
type Compiler struct {
	opts   Options
	log    *slog.Logger
	lst    *listing
	lex    *Lexer
	syms   *SymbolTable
	cg     *CodeGen
	parser *Parser

	errorCount int
}

// New prepares a run that reads src and writes assembly to out.
func New(src io.Reader, out io.Writer, opts Options) *Compiler {
	if opts.Includes == nil {
		opts.Includes = DefaultIncludes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Compiler{
		opts: opts,
		log:  log,
		lst:  newListing(opts.Listing),
		syms: NewSymbolTable(),
		cg:   newCodeGen(out),
	}
	c.lex = newLexer(src, c.lst)
	c.parser = newParser(c.lex, c.syms, c.cg, log)
	return c
}

// Run translates the whole source. The first problem found ends the run and
// is returned as an *Error.
func (c *Compiler) Run() error {
	start := time.Now()
	c.log.Info("compile started", "title", c.opts.Title)

	c.lst.header(c.opts.Title, c.opts.Now())
	c.cg.prologue(c.opts.Title, c.opts.Includes)

	if err := c.parser.parse(); err != nil {
		return c.report(err)
	}
	if d := c.parser.stack.depth(); d != 0 {
		return c.report(newError(CompilerError, "operand stack holds %d names at end of input", d))
	}

	c.cg.epilogue(c.syms)
	c.lst.footer(0, c.syms.Len())

	if c.cg.err != nil {
		return fmt.Errorf("write assembly: %w", c.cg.err)
	}
	if c.lst.err != nil {
		return fmt.Errorf("write listing: %w", c.lst.err)
	}

	c.log.Info("compile finished",
		"title", c.opts.Title,
		"lines", c.lex.Line(),
		"symbols", c.syms.Len(),
		"duration", time.Since(start))
	return nil
}

// report records err as the run's diagnostic.
func (c *Compiler) report(err error) error {
	var ce *Error
	if !errors.As(err, &ce) {
		ce = newError(CompilerError, "%v", err)
	}
	if ce.Line == 0 {
		ce.Line = c.lex.Line()
	}
	c.errorCount++

	c.lst.diagnostic(ce)
	c.lst.footer(c.errorCount, c.syms.Len())
	c.log.Error("compile failed",
		"title", c.opts.Title,
		"line", ce.Line,
		"kind", ce.Kind.String(),
		"msg", ce.Msg)
	return ce
}

// ErrorCount is the number of diagnostics recorded, 0 or 1.
func (c *Compiler) ErrorCount() int {
	return c.errorCount
}

// Symbols exposes the symbol table for dumps once Run has returned.
func (c *Compiler) Symbols() *SymbolTable {
	return c.syms
}

// Result is the outcome of Compile.
type Result struct {
	Assembly string
	Listing  string
	Symbols  *SymbolTable
	// Errors is the number of diagnostics reported.
	Errors int
}

// Compile translates src held in memory.
func Compile(src string, opts Options) (*Result, error) {
	var asm, lst bytes.Buffer
	if opts.Listing == nil {
		opts.Listing = &lst
	}
	c := New(strings.NewReader(src), &asm, opts)
	err := c.Run()
	return &Result{Assembly: asm.String(), Listing: lst.String(), Symbols: c.syms, Errors: c.ErrorCount()}, err
}
