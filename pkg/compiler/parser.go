package compiler

import (
	"log/slog"
	"strings"
)

// Parser pulls tokens from the Lexer and translates each statement as soon
// as it is recognized. No tree is built; the symbol table and the CodeGen are
// driven directly.
//
// Grammar:
//
//	prog      = stmt* EOF
//	stmt      = "frozen" [type] IDENT assign
//	          | type IDENT assign
//	          | IDENT (assign | write | read)
//	          | "raise" raise
//	assign    = "=" (["+"|"-"] INTEGER | "not" BOOLEAN | literal | IDENT)
//	write     = "<<" IDENT
//	read      = ">>" IDENT
//	raise     = ERRORNAME ["(" (INTEGER | STRING | CHAR) ")"]
type Parser struct {
	lex   *Lexer
	syms  *SymbolTable
	cg    *CodeGen
	stack operandStack
	tok   Token
	log   *slog.Logger
}

func newParser(lex *Lexer, syms *SymbolTable, cg *CodeGen, log *slog.Logger) *Parser {
	return &Parser{lex: lex, syms: syms, cg: cg, log: log}
}

// advance replaces the current token with the next one from the lexer.
func (p *Parser) advance() error {
	tok, err := p.lex.NextToken()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *Parser) is(tt TokenType, lexeme string) bool {
	return p.tok.Type == tt && p.tok.Lexeme == lexeme
}

// describe renders the current token for diagnostics.
func (p *Parser) describe() string {
	if p.tok.Type == EOF {
		return "end of input"
	}
	return p.tok.Lexeme
}

func (p *Parser) parse() error {
	if err := p.advance(); err != nil {
		return err
	}
	for p.tok.Type != EOF {
		if err := p.stmt(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) stmt() error {
	switch {
	case p.is(KEYWORD, "frozen"):
		if err := p.advance(); err != nil {
			return err
		}
		typ, err := p.typeStmt()
		if err != nil {
			return err
		}
		return p.assignStmt(typ, ModeConst)

	case p.tok.Type == TYPENAME:
		typ, err := p.typeStmt()
		if err != nil {
			return err
		}
		return p.assignStmt(typ, ModeVar)

	case p.tok.Type == IDENTIFIER && isNonKeyID(p.tok.Lexeme):
		name := p.tok.Lexeme
		typ, err := p.typeStmt()
		if err != nil {
			return err
		}
		switch {
		case p.is(SYMBOL, "="):
			return p.assignStmt(typ, ModeVar)
		case p.is(SYMBOL, "<<"):
			return p.writeStmt()
		case p.is(SYMBOL, ">>"):
			return p.readStmt()
		}
		return newError(SyntaxError, "Expected '=', '<<' or '>>' after %q, got %s", name, p.describe())

	case p.is(KEYWORD, "raise"):
		if err := p.advance(); err != nil {
			return err
		}
		return p.raiseStmt()
	}

	return newError(SyntaxError, "Keyword expected, not %s", p.describe())
}

// typeStmt consumes an optional type name and the operand it applies to,
// leaving the operand on the stack. TypeUnknown means no type was written.
func (p *Parser) typeStmt() (Type, error) {
	typ := TypeUnknown
	if p.tok.Type == TYPENAME {
		typ = typeNames[p.tok.Lexeme]
		if err := p.advance(); err != nil {
			return typ, err
		}
	}

	if p.tok.Type != IDENTIFIER || !isNonKeyID(p.tok.Lexeme) {
		return typ, newError(SyntaxError, "Identifier expected, got %s", p.describe())
	}
	p.stack.push(p.tok.Lexeme)
	return typ, p.advance()
}

func (p *Parser) assignStmt(explicit Type, mode Mode) error {
	if !p.is(SYMBOL, "=") {
		return newError(SyntaxError, "Expected '=', got %s", p.describe())
	}
	if err := p.advance(); err != nil {
		return err
	}

	rhs := p.tok.Lexeme
	switch {
	case p.is(SYMBOL, "+"), p.is(SYMBOL, "-"):
		sign := p.tok.Lexeme
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.Type != INTEGER {
			return newError(SyntaxError, "Integer expected after sign, got %s", p.describe())
		}
		rhs = p.tok.Lexeme
		if sign == "-" {
			rhs = "-" + rhs
		}

	case p.is(KEYWORD, "not"):
		if err := p.advance(); err != nil {
			return err
		}
		if p.tok.Type != BOOLEAN {
			return newError(SyntaxError, "Boolean expected after \"not\", got %s", p.describe())
		}
		rhs = "not " + p.tok.Lexeme

	default:
		switch p.tok.Type {
		case BOOLEAN, INTEGER, STRING, CHAR, LIST, IDENTIFIER:
		default:
			return newError(SyntaxError, "Expected boolean, integer, string, char, list or identifier, got %s", p.describe())
		}
	}

	rhsType, err := p.syms.TypeOf(rhs)
	if err != nil {
		return err
	}
	if explicit != TypeUnknown && rhsType != explicit {
		return newError(TypeError, "The stated type %s was not the type given (%s)", explicit, rhsType)
	}

	name, err := p.stack.pop()
	if err != nil {
		return err
	}
	if err := p.declareOrStore(name, rhs, rhsType, mode); err != nil {
		return err
	}
	return p.advance()
}

// declareOrStore inserts name on first sight and otherwise stores rhs into
// the existing location.
func (p *Parser) declareOrStore(name, rhs string, rhsType Type, mode Mode) error {
	dst, ok := p.syms.Lookup(name)
	if !ok {
		value, err := p.syms.ValueOf(rhs)
		if err != nil {
			return err
		}
		units := 1
		if rhsType == TypeList {
			units = max(1, listElements(strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")))
		}
		p.log.Debug("declare", "name", name, "type", rhsType, "mode", mode, "value", value)
		return p.syms.Insert(name, rhsType, mode, value, true, units)
	}

	if dst.Mode == ModeConst {
		return newError(RedefinitionError, "You may not redefine the constant %q", name)
	}
	if mode == ModeConst {
		return newError(RedefinitionError, "%q is already a variable and cannot be frozen", name)
	}
	if rhsType != dst.Type {
		return newError(TypeError, "cannot store %s into %q of type %s", rhsType, name, dst.Type)
	}

	var operand string
	if t, isLit := literalType(rhs); isLit {
		switch t {
		case TypeInt, TypeChar:
			operand = rhs
		case TypeBool:
			operand = canonicalBool(rhs)
		default:
			return newError(TypeError, "a %s literal cannot be stored into %q", t, name)
		}
	} else {
		src, _ := p.syms.Lookup(rhs)
		// only word-sized values can be copied through eax
		if src.Type == TypeList || src.Type == TypeStr {
			return newError(TypeError, "a %s value cannot be stored into %q", src.Type, name)
		}
		operand = "[" + src.InternalName + "]"
	}

	p.cg.assign(rhs, operand, name, dst)
	return nil
}

// operand resolves the name following "<<" or ">>".
func (p *Parser) operand(op string) (string, *Entry, error) {
	if p.tok.Type != IDENTIFIER || !isNonKeyID(p.tok.Lexeme) {
		return "", nil, newError(SyntaxError, "Identifier expected after %q, got %s", op, p.describe())
	}
	name := p.tok.Lexeme

	target, err := p.stack.pop()
	if err != nil {
		return "", nil, err
	}
	if _, ok := p.syms.Lookup(target); !ok {
		return "", nil, newError(ReferenceError, "%s is not in symbol table", target)
	}
	e, ok := p.syms.Lookup(name)
	if !ok {
		return "", nil, newError(ReferenceError, "%s is not in symbol table", name)
	}
	return name, e, nil
}

func (p *Parser) writeStmt() error {
	if err := p.advance(); err != nil {
		return err
	}
	name, src, err := p.operand("<<")
	if err != nil {
		return err
	}
	if err := p.cg.write(name, src); err != nil {
		return err
	}
	return p.advance()
}

func (p *Parser) readStmt() error {
	if err := p.advance(); err != nil {
		return err
	}
	name, dst, err := p.operand(">>")
	if err != nil {
		return err
	}
	if dst.Type != TypeInt {
		return newError(TypeError, "cannot read into this type (%q is %s)", name, dst.Type)
	}
	if dst.Mode != ModeVar {
		return newError(RedefinitionError, "attempting to read into a read-only location %q", name)
	}
	p.cg.read(name, dst)
	return p.advance()
}

// raiseStmt validates a raise. It emits no code.
func (p *Parser) raiseStmt() error {
	if p.tok.Type != IDENTIFIER || !IsCatalogError(p.tok.Lexeme) {
		return newError(SyntaxError, "Expected an error type, got %s", p.describe())
	}
	kind := p.tok.Lexeme
	if err := p.advance(); err != nil {
		return err
	}

	arg := ""
	if p.is(SYMBOL, "(") {
		if err := p.advance(); err != nil {
			return err
		}
		switch p.tok.Type {
		case INTEGER, STRING, CHAR:
			arg = p.tok.Lexeme
		default:
			return newError(SyntaxError, "Illegal symbol in raise statement: %s", p.describe())
		}
		if err := p.advance(); err != nil {
			return err
		}
		if !p.is(SYMBOL, ")") {
			return newError(SyntaxError, "Expected a ')', got %s", p.describe())
		}
		if err := p.advance(); err != nil {
			return err
		}
	}

	p.log.Debug("raise validated", "error", kind, "arg", arg, "line", p.lex.Line())
	return nil
}
