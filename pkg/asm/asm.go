package asm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"alongc/pkg/cpu"
)

// Library routines the Along32 macro files provide.
var libraryRoutines = map[string]uint32{
	"READINT":     cpu.SysReadInt,
	"WRITEINT":    cpu.SysWriteInt,
	"WRITESTRING": cpu.SysWriteString,
	"WRITECHAR":   cpu.SysWriteChar,
	"CRLF":        cpu.SysCrlf,
}

var jumpOps = map[string]uint8{
	"JMP": cpu.OpJMP,
	"JE":  cpu.OpJE,
	"JZ":  cpu.OpJE,
	"JNE": cpu.OpJNE,
	"JNZ": cpu.OpJNE,
}

// instructions lists the executable mnemonics. Each one encodes to
// cpu.InstrSize bytes.
var instructions = map[string]bool{
	"MOV": true, "CMP": true, "CALL": true, "EXIT": true, "NOP": true,
	"JMP": true, "JE": true, "JZ": true, "JNE": true, "JNZ": true,
}

var dataDirectives = map[string]bool{"DB": true, "DD": true, "RESD": true}

type section int

const (
	sectionText section = iota
	sectionData
	sectionBSS
)

func (s section) String() string {
	return [...]string{".text", ".data", ".bss"}[s]
}

// Program is an assembled image: text at address 0, data after it, then the
// zero-filled bss.
type Program struct {
	Image    []byte // text + data, padded to BSSBase
	Entry    uint32
	DataBase uint32
	BSSBase  uint32
	BSSSize  uint32

	Includes  []string
	Labels    map[string]uint32
	SourceMap map[uint32]int // text address -> source line
}

// MemSize is the minimum memory the program needs.
func (p *Program) MemSize() int {
	return int(p.BSSBase + p.BSSSize)
}

type labelRef struct {
	sec    section
	offset uint32
}

type Assembler struct {
	labels   map[string]labelRef
	resolved map[string]uint32
	entry    string
	includes []string
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels:   make(map[string]labelRef),
		resolved: make(map[string]uint32),
	}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	lines := strings.Split(code, "\n")

	sizes, err := a.pass1(lines)
	if err != nil {
		return nil, err
	}

	dataBase := align4(sizes[sectionText])
	bssBase := dataBase + align4(sizes[sectionData])
	bases := [...]uint32{0, dataBase, bssBase}
	for name, ref := range a.labels {
		a.resolved[name] = bases[ref.sec] + ref.offset
	}

	entry := uint32(0)
	if a.entry != "" {
		addr, ok := a.resolved[normalizeLabel(a.entry)]
		if !ok {
			return nil, fmt.Errorf("entry point '%s' is not defined", a.entry)
		}
		entry = addr
	}

	text, data, sourceMap, err := a.pass2(lines)
	if err != nil {
		return nil, err
	}

	image := make([]byte, bssBase)
	copy(image, text)
	copy(image[dataBase:], data)

	return &Program{
		Image:     image,
		Entry:     entry,
		DataBase:  dataBase,
		BSSBase:   bssBase,
		BSSSize:   sizes[sectionBSS],
		Includes:  a.includes,
		Labels:    a.resolved,
		SourceMap: sourceMap,
	}, nil
}

func (a *Assembler) pass1(lines []string) ([3]uint32, error) {
	var offsets [3]uint32
	sec := sectionText

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return offsets, err
		}

		for _, lbl := range p.labels {
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return offsets, fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = labelRef{sec: sec, offset: offsets[sec]}
		}

		switch p.mnemonic {
		case "":
			continue
		case "%INCLUDE":
			if len(p.operands) != 1 {
				return offsets, fmt.Errorf("%%INCLUDE expects one file name on line %d", lineNo)
			}
			a.includes = append(a.includes, strings.Trim(p.operands[0], `"'`))
			continue
		case "SECTION":
			if sec, err = parseSection(p.operands, lineNo); err != nil {
				return offsets, err
			}
			continue
		case "GLOBAL":
			if len(p.operands) != 1 {
				return offsets, fmt.Errorf("global expects one symbol on line %d", lineNo)
			}
			a.entry = p.operands[0]
			continue
		}

		length, err := a.lineLength(p, sec)
		if err != nil {
			return offsets, err
		}
		offsets[sec] += length
	}

	return offsets, nil
}

// lineLength sizes an instruction or data directive and checks it sits in a
// section that can hold it.
func (a *Assembler) lineLength(p parsedLine, sec section) (uint32, error) {
	switch p.mnemonic {
	case "DB", "DD":
		if sec != sectionData {
			return 0, fmt.Errorf("%s outside .data on line %d", strings.ToLower(p.mnemonic), p.lineNo)
		}
		b, err := a.encodeData(p, false)
		if err != nil {
			return 0, err
		}
		return uint32(len(b)), nil

	case "RESD":
		if sec != sectionBSS {
			return 0, fmt.Errorf("resd outside .bss on line %d", p.lineNo)
		}
		if len(p.operands) != 1 {
			return 0, fmt.Errorf("resd expects one count on line %d", p.lineNo)
		}
		n, err := strconv.ParseUint(p.operands[0], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid resd count on line %d: %s", p.lineNo, p.operands[0])
		}
		return uint32(n) * 4, nil
	}

	length, ok := instructionLength(p.mnemonic)
	if !ok {
		return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	if sec != sectionText {
		return 0, fmt.Errorf("instruction %s in %s on line %d", strings.ToLower(p.mnemonic), sec, p.lineNo)
	}
	return length, nil
}

func (a *Assembler) pass2(lines []string) ([]byte, []byte, map[uint32]int, error) {
	var text, data []byte
	sourceMap := make(map[uint32]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, nil, err
		}

		switch p.mnemonic {
		case "", "%INCLUDE", "SECTION", "GLOBAL", "RESD":
			continue
		case "DB", "DD":
			b, err := a.encodeData(p, true)
			if err != nil {
				return nil, nil, nil, err
			}
			data = append(data, b...)
			continue
		}

		sourceMap[uint32(len(text))] = lineNo
		instr, err := a.encodeInstruction(p)
		if err != nil {
			return nil, nil, nil, err
		}
		text = append(text, instr...)
	}

	return text, data, sourceMap, nil
}

func (a *Assembler) encodeInstruction(p parsedLine) ([]byte, error) {
	mnemonic, ops, lineNo := p.mnemonic, p.operands, p.lineNo

	switch mnemonic {
	case "NOP":
		if len(ops) != 0 {
			return nil, fmt.Errorf("nop expects 0 operands on line %d", lineNo)
		}
		return cpu.EncodeInstruction(cpu.OpNOP, 0, 0), nil

	case "EXIT":
		code := uint32(0)
		if len(ops) == 1 {
			v, err := a.parseImmediate(strings.Trim(ops[0], "{}"), lineNo)
			if err != nil {
				return nil, err
			}
			code = v
		} else if len(ops) > 1 {
			return nil, fmt.Errorf("Exit expects at most 1 operand on line %d", lineNo)
		}
		return cpu.EncodeInstruction(cpu.OpHLT, 0, code), nil

	case "CALL":
		if len(ops) != 1 {
			return nil, fmt.Errorf("call expects 1 operand on line %d", lineNo)
		}
		n, ok := libraryRoutines[strings.ToUpper(ops[0])]
		if !ok {
			return nil, fmt.Errorf("unknown library routine '%s' on line %d", ops[0], lineNo)
		}
		return cpu.EncodeInstruction(cpu.OpSYS, 0, n), nil

	case "CMP":
		if len(ops) != 2 {
			return nil, fmt.Errorf("cmp expects 2 operands on line %d", lineNo)
		}
		reg, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		imm, err := a.parseImmediate(ops[1], lineNo)
		if err != nil {
			return nil, err
		}
		return cpu.EncodeInstruction(cpu.OpCMPI, reg, imm), nil

	case "MOV":
		if len(ops) != 2 {
			return nil, fmt.Errorf("mov expects 2 operands on line %d", lineNo)
		}
		if addr, ok := memoryOperand(ops[0]); ok {
			reg, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			target, err := a.parseImmediate(addr, lineNo)
			if err != nil {
				return nil, err
			}
			return cpu.EncodeInstruction(cpu.OpSTORE, reg, target), nil
		}

		reg, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		if addr, ok := memoryOperand(ops[1]); ok {
			src, err := a.parseImmediate(addr, lineNo)
			if err != nil {
				return nil, err
			}
			return cpu.EncodeInstruction(cpu.OpLOAD, reg, src), nil
		}
		imm, err := a.parseImmediate(ops[1], lineNo)
		if err != nil {
			return nil, err
		}
		return cpu.EncodeInstruction(cpu.OpMOVI, reg, imm), nil
	}

	if opcode, ok := jumpOps[mnemonic]; ok {
		if len(ops) != 1 {
			return nil, fmt.Errorf("%s expects 1 operand on line %d", strings.ToLower(mnemonic), lineNo)
		}
		target, err := a.parseImmediate(ops[0], lineNo)
		if err != nil {
			return nil, err
		}
		return cpu.EncodeInstruction(opcode, 0, target), nil
	}

	return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// encodeData lays out db/dd operands. Strings are stored byte by byte; under
// dd they are zero-padded to a whole number of dwords. Labels are only
// resolved when resolve is set, since pass 1 only needs sizes.
func (a *Assembler) encodeData(p parsedLine, resolve bool) ([]byte, error) {
	if len(p.operands) == 0 {
		return nil, fmt.Errorf("%s expects at least one value on line %d", strings.ToLower(p.mnemonic), p.lineNo)
	}
	width := 1
	if p.mnemonic == "DD" {
		width = 4
	}

	var out []byte
	for _, op := range p.operands {
		if s, ok := quoted(op); ok {
			b := []byte(s)
			for len(b)%width != 0 {
				b = append(b, 0)
			}
			out = append(out, b...)
			continue
		}

		var v uint32
		if resolve || !isLabel(op) {
			var err error
			if v, err = a.parseImmediate(op, p.lineNo); err != nil {
				return nil, err
			}
		}
		if width == 4 {
			out = binary.LittleEndian.AppendUint32(out, v)
		} else {
			out = append(out, byte(v))
		}
	}
	return out, nil
}

func parseSection(ops []string, lineNo int) (section, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf("SECTION expects one name on line %d", lineNo)
	}
	switch strings.ToLower(ops[0]) {
	case ".text":
		return sectionText, nil
	case ".data":
		return sectionData, nil
	case ".bss":
		return sectionBSS, nil
	}
	return 0, fmt.Errorf("unknown section '%s' on line %d", ops[0], lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	// "label:" prefixes, possibly several
	for {
		head, rest := cutSpace(line)
		if !strings.HasSuffix(head, ":") {
			break
		}
		lbl := strings.TrimSuffix(head, ":")
		if !isLabel(lbl) {
			return p, fmt.Errorf("invalid label '%s' on line %d", lbl, lineNo)
		}
		p.labels = append(p.labels, lbl)
		line = strings.TrimSpace(rest)
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(line)
	// NASM data lines carry their label without a colon: "I0 dd 5".
	if len(fields) > 1 && dataDirectives[strings.ToUpper(fields[1])] && !instructions[strings.ToUpper(fields[0])] {
		if !isLabel(fields[0]) {
			return p, fmt.Errorf("invalid label '%s' on line %d", fields[0], lineNo)
		}
		p.labels = append(p.labels, fields[0])
		line = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	}

	mnemonic, rest := cutSpace(line)
	p.mnemonic = strings.ToUpper(mnemonic)
	ops, err := splitOperands(rest, lineNo)
	if err != nil {
		return p, err
	}
	p.operands = ops
	return p, nil
}

// cutSpace splits s at its first run of blanks.
func cutSpace(s string) (head, rest string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// stripComments cuts the line at the first ';' outside quotes.
func stripComments(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return line[:i]
		}
	}
	return line
}

// splitOperands splits on commas outside quotes.
func splitOperands(s string, lineNo int) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var ops []string
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			ops = append(ops, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote on line %d", lineNo)
	}
	ops = append(ops, strings.TrimSpace(s[start:]))

	for _, op := range ops {
		if op == "" {
			return nil, fmt.Errorf("empty operand on line %d", lineNo)
		}
	}
	return ops, nil
}

func parseRegister(token string, lineNo int) (uint8, error) {
	switch strings.ToUpper(token) {
	case "EAX":
		return cpu.RegEAX, nil
	case "ECX":
		return cpu.RegECX, nil
	case "EDX":
		return cpu.RegEDX, nil
	case "EBX":
		return cpu.RegEBX, nil
	default:
		return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
	}
}

// parseImmediate accepts signed decimal or 0x numbers, one-character quoted
// literals and label names.
func (a *Assembler) parseImmediate(token string, lineNo int) (uint32, error) {
	base := 10
	if strings.HasPrefix(strings.ToLower(strings.TrimLeft(token, "+-")), "0x") {
		base = 0
	}
	if value, err := strconv.ParseInt(token, base, 64); err == nil {
		if value < -(1<<31) || value > 1<<32-1 {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint32(value), nil
	}

	if s, ok := quoted(token); ok {
		if len(s) == 0 || len(s) > 4 {
			return 0, fmt.Errorf("invalid character constant on line %d: %s", lineNo, token)
		}
		var buf [4]byte
		copy(buf[:], s)
		return binary.LittleEndian.Uint32(buf[:]), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.resolved[label]; ok {
		return addr, nil
	}

	if isLabel(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// memoryOperand unwraps "[x]".
func memoryOperand(op string) (string, bool) {
	if len(op) >= 3 && op[0] == '[' && op[len(op)-1] == ']' {
		return strings.TrimSpace(op[1 : len(op)-1]), true
	}
	return "", false
}

func quoted(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// instructionLength returns the byte length of an instruction.
func instructionLength(mnemonic string) (uint32, bool) {
	if instructions[strings.ToUpper(mnemonic)] {
		return cpu.InstrSize, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// isLabel also admits NASM local labels such as ".L0".
func isLabel(s string) bool {
	return isIdentifier(strings.TrimPrefix(s, "."))
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
