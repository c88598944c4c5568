// Package compiler translates Along source into Along32 assembly in a single
// pass.
//
// Pipeline: source → Lexer → Parser ⇄ SymbolTable → CodeGen → assembly text
//
// The parser drives the lexer one token at a time and calls the generator as
// soon as a statement is recognized. The first diagnostic ends the run.
package compiler
