package compiler

import (
	"fmt"
	"io"
	"strings"
)

// DefaultIncludes are the macro files every generated program pulls in.
var DefaultIncludes = []string{"Along32.inc", "Macros_Along.inc"}

// CodeGen emits Along32 assembly one columnar line at a time.
type CodeGen struct {
	out io.Writer
	err error // first write failure, later writes are dropped

	nextLabel int

	// lastLoaded names the source value resident in eax; "" means unknown.
	lastLoaded string

	literalsEmitted bool
}

func newCodeGen(out io.Writer) *CodeGen {
	if out == nil {
		out = io.Discard
	}
	return &CodeGen{out: out}
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf(".L%d", cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) raw(s string) {
	if cg.err != nil {
		return
	}
	_, cg.err = io.WriteString(cg.out, s)
}

// emit writes label, instruction and operands in 8, 8 and 24 column fields
// followed by the comment.
func (cg *CodeGen) emit(label, instr, operands, comment string) {
	line := fmt.Sprintf("%-8s%-8s%-24s%s", label, instr, operands, comment)
	cg.raw(strings.TrimRight(line, " ") + "\n")
}

func (cg *CodeGen) prologue(title string, includes []string) {
	for _, inc := range includes {
		cg.raw(fmt.Sprintf("%%INCLUDE %q\n", inc))
	}
	cg.raw("\n")
	cg.emit("SECTION", ".text", "", "")
	cg.emit("global", "_start", "", "; "+title)
	cg.raw("\n")
	cg.emit("_start:", "", "", "")
}

// load puts name's value in eax unless it is already there. operand is the
// memory reference or immediate that holds it.
func (cg *CodeGen) load(name, operand string) {
	if cg.lastLoaded == name {
		return
	}
	cg.emit("", "mov", "eax,"+operand, "; load "+name+" in eax")
	cg.lastLoaded = name
}

func (cg *CodeGen) assign(rhs, rhsOperand, lhs string, dst *Entry) {
	cg.load(rhs, rhsOperand)
	cg.emit("", "mov", "["+dst.InternalName+"],eax", "; store eax at "+lhs)
}

func (cg *CodeGen) read(name string, dst *Entry) {
	cg.emit("", "call", "ReadInt", "; read int; value placed in eax")
	cg.emit("", "mov", "["+dst.InternalName+"],eax", "; store eax at "+name)
	cg.lastLoaded = name
}

func (cg *CodeGen) write(name string, src *Entry) error {
	if src.Type == TypeList {
		return newError(TypeError, "cannot write %q of type %s", name, src.Type)
	}

	cg.load(name, "["+src.InternalName+"]")

	switch src.Type {
	case TypeInt:
		cg.emit("", "call", "WriteInt", "; write int in eax to standard out")
	case TypeChar:
		cg.emit("", "call", "WriteChar", "; write char in al to standard out")
	case TypeStr:
		cg.emit("", "mov", "edx,"+src.InternalName, "; load address of "+name+" in edx")
		cg.emit("", "call", "WriteString", "; write string to standard out")
	case TypeBool:
		cg.writeBool()
	default:
		return newError(CompilerError, "no write code for type %s", src.Type)
	}

	cg.emit("", "call", "Crlf", `; write \r\n to standard out`)
	return nil
}

func (cg *CodeGen) writeBool() {
	cg.emit("", "cmp", "eax,0", "; compare to 0")
	falseLabel := cg.newLabel()
	cg.emit("", "je", falseLabel, "; jump if equal to print FALSE")
	cg.emit("", "mov", "edx,TRUELIT", "; load address of TRUE literal in edx")
	endLabel := cg.newLabel()
	cg.emit("", "jmp", endLabel, "; unconditionally jump to "+endLabel)
	cg.emit(falseLabel+":", "", "", "")
	cg.emit("", "mov", "edx,FALSLIT", "; load address of FALSE literal in edx")
	cg.emit(endLabel+":", "", "", "")
	cg.emit("", "call", "WriteString", "; write string to standard out")

	if !cg.literalsEmitted {
		cg.literalsEmitted = true
		cg.raw("\n")
		cg.emit("SECTION", ".data", "", "")
		cg.emit("TRUELIT", "db", "'TRUE',0", "; literal string TRUE")
		cg.emit("FALSLIT", "db", "'FALSE',0", "; literal string FALSE")
		cg.raw("\n")
		cg.emit("SECTION", ".text", "", "")
	}
}

func (cg *CodeGen) epilogue(syms *SymbolTable) {
	cg.emit("", "Exit", "{0}", "")
	cg.raw("\n")
	cg.storage(syms)
}

// storage lays out constants in .data and variables in .bss, each in
// insertion order.
func (cg *CodeGen) storage(syms *SymbolTable) {
	entries := syms.Entries()

	cg.emit("SECTION", ".data", "", "")
	for _, e := range entries {
		if e.Mode != ModeConst || !e.Allocated {
			continue
		}
		value := e.Value
		switch {
		case e.Type == TypeStr || e.Type == TypeChar:
			value += ",0"
		case e.Type == TypeList && listElements(value) == 0:
			value = "0"
		}
		cg.emit(e.InternalName, "dd", value, "; "+e.Name)
	}

	cg.raw("\n")
	cg.emit("SECTION", ".bss", "", "")
	for _, e := range entries {
		if e.Mode != ModeVar || !e.Allocated {
			continue
		}
		cg.emit(e.InternalName, "resd", fmt.Sprint(e.Units), "; "+e.Name)
	}
}
