package asm

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"alongc/pkg/cpu"
)

func join(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	if !isLabel(".L12") || isLabel(".") || isLabel(".1") {
		t.Errorf("isLabel does not accept exactly the local label form")
	}

	if got := normalizeLabel("label"); got != "LABEL" {
		t.Errorf("normalizeLabel(\"label\") = %q; want \"LABEL\"", got)
	}

	lenTests := []struct {
		mnemonic string
		wantLen  uint32
		wantOk   bool
	}{
		{"mov", cpu.InstrSize, true},
		{"CALL", cpu.InstrSize, true},
		{"Exit", cpu.InstrSize, true},
		{"je", cpu.InstrSize, true},
		{"dd", 0, false},
		{"INVALID", 0, false},
	}
	for _, tc := range lenTests {
		gotLen, gotOk := instructionLength(tc.mnemonic)
		if gotLen != tc.wantLen || gotOk != tc.wantOk {
			t.Errorf("instructionLength(%q) = %d, %v; want %d, %v", tc.mnemonic, gotLen, gotOk, tc.wantLen, tc.wantOk)
		}
	}

	if got := stripComments(`mov eax,';' ; load`); got != `mov eax,';' ` {
		t.Errorf("stripComments kept %q", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    parsedLine
		wantErr bool
	}{
		{
			"        mov     eax,[I0]                ; load x in eax",
			parsedLine{lineNo: 1, mnemonic: "MOV", operands: []string{"eax", "[I0]"}},
			false,
		},
		{
			"_start:",
			parsedLine{lineNo: 1, labels: []string{"_start"}},
			false,
		},
		{
			".L0: .L1: nop",
			parsedLine{lineNo: 1, labels: []string{".L0", ".L1"}, mnemonic: "NOP"},
			false,
		},
		{
			`TRUELIT db      'TRUE',0                ; literal string TRUE`,
			parsedLine{lineNo: 1, labels: []string{"TRUELIT"}, mnemonic: "DB", operands: []string{"'TRUE'", "0"}},
			false,
		},
		{
			`S0      dd      "a, b",0`,
			parsedLine{lineNo: 1, labels: []string{"S0"}, mnemonic: "DD", operands: []string{`"a, b"`, "0"}},
			false,
		},
		{
			`%INCLUDE "Along32.inc"`,
			parsedLine{lineNo: 1, mnemonic: "%INCLUDE", operands: []string{`"Along32.inc"`}},
			false,
		},
		{
			"        Exit    {0}",
			parsedLine{lineNo: 1, mnemonic: "EXIT", operands: []string{"{0}"}},
			false,
		},
		{
			"   ; only a comment",
			parsedLine{lineNo: 1},
			false,
		},
		// Invalid cases
		{"1LABEL: nop", parsedLine{}, true},
		{`S0 dd "unterminated`, parsedLine{}, true},
		{"mov eax,", parsedLine{}, true},
	}

	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if tc.wantErr {
			continue
		}
		if got.mnemonic != tc.want.mnemonic {
			t.Errorf("parseLine(%q) mnemonic = %q, want %q", tc.line, got.mnemonic, tc.want.mnemonic)
		}
		if !reflect.DeepEqual(got.labels, tc.want.labels) && !(len(got.labels) == 0 && len(tc.want.labels) == 0) {
			t.Errorf("parseLine(%q) labels = %v, want %v", tc.line, got.labels, tc.want.labels)
		}
		if !reflect.DeepEqual(got.operands, tc.want.operands) && !(len(got.operands) == 0 && len(tc.want.operands) == 0) {
			t.Errorf("parseLine(%q) operands = %v, want %v", tc.line, got.operands, tc.want.operands)
		}
	}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    []byte
		wantErr bool
	}{
		{
			"Immediates and library calls",
			`
SECTION .text
_start:
        mov     eax,-3
        call    WriteInt
        mov     eax,'z'
        call    WriteChar
        Exit    {2}
`,
			join(
				cpu.EncodeInstruction(cpu.OpMOVI, cpu.RegEAX, 0xFFFFFFFD),
				cpu.EncodeInstruction(cpu.OpSYS, 0, cpu.SysWriteInt),
				cpu.EncodeInstruction(cpu.OpMOVI, cpu.RegEAX, 'z'),
				cpu.EncodeInstruction(cpu.OpSYS, 0, cpu.SysWriteChar),
				cpu.EncodeInstruction(cpu.OpHLT, 0, 2),
			),
			false,
		},
		{
			"Labels and jumps",
			// .L0 is at 0x18, .L1 at 0x20
			`
        cmp     eax,0
        je      .L0
        jmp     .L1
.L0:
        nop
.L1:
        Exit    {0}
`,
			join(
				cpu.EncodeInstruction(cpu.OpCMPI, cpu.RegEAX, 0),
				cpu.EncodeInstruction(cpu.OpJE, 0, 0x18),
				cpu.EncodeInstruction(cpu.OpJMP, 0, 0x20),
				cpu.EncodeInstruction(cpu.OpNOP, 0, 0),
				cpu.EncodeInstruction(cpu.OpHLT, 0, 0),
			),
			false,
		},
		{
			"Data follows text",
			// text is 0x10 bytes, so I0 sits at 0x10 and S0 at 0x14
			`
        mov     eax,[I0]
        mov     edx,S0
SECTION .data
I0      dd      7
S0      dd      "hi",0
`,
			join(
				cpu.EncodeInstruction(cpu.OpLOAD, cpu.RegEAX, 0x10),
				cpu.EncodeInstruction(cpu.OpMOVI, cpu.RegEDX, 0x14),
				[]byte{7, 0, 0, 0},
				[]byte{'h', 'i', 0, 0},
				[]byte{0, 0, 0, 0},
			),
			false,
		},
		{
			"Undefined label",
			"jmp nowhere",
			nil,
			true,
		},
		{
			"Duplicate label",
			"a:\na:\nnop",
			nil,
			true,
		},
		{
			"Unknown instruction",
			"push eax",
			nil,
			true,
		},
		{
			"Unknown routine",
			"call DumpRegs",
			nil,
			true,
		},
		{
			"Invalid register",
			"mov r9,1",
			nil,
			true,
		},
		{
			"Data in text",
			"x dd 1",
			nil,
			true,
		},
		{
			"Instruction in bss",
			"SECTION .bss\nnop",
			nil,
			true,
		},
		{
			"Unknown section",
			"SECTION .rodata",
			nil,
			true,
		},
		{
			"Immediate out of range",
			"mov eax,4294967296",
			nil,
			true,
		},
		{
			"Undefined entry point",
			"global main\nnop",
			nil,
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := Assemble(tc.code)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Assemble() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if !bytes.Equal(prog.Image, tc.want) {
				t.Errorf("Assemble() image\n got % X\nwant % X", prog.Image, tc.want)
			}
		})
	}
}

func TestAssembleLayout(t *testing.T) {
	code := `
%INCLUDE "Along32.inc"
%INCLUDE "Macros_Along.inc"

SECTION .text
global  _start

_start:
        mov     eax,[B0]
        Exit    {0}

SECTION .data
TRUELIT db      'TRUE',0

SECTION .bss
B0      resd    1
L0      resd    3
`
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if want := []string{"Along32.inc", "Macros_Along.inc"}; !reflect.DeepEqual(prog.Includes, want) {
		t.Errorf("Includes = %v; want %v", prog.Includes, want)
	}
	if prog.Entry != 0 {
		t.Errorf("Entry = 0x%X; want 0", prog.Entry)
	}
	// 16 bytes of text, 5 bytes of data padded to 8
	if prog.DataBase != 0x10 || prog.BSSBase != 0x18 || prog.BSSSize != 16 {
		t.Errorf("layout data=0x%X bss=0x%X size=%d", prog.DataBase, prog.BSSBase, prog.BSSSize)
	}
	if prog.MemSize() != 0x28 {
		t.Errorf("MemSize() = %d; want %d", prog.MemSize(), 0x28)
	}
	if got := prog.Labels["B0"]; got != 0x18 {
		t.Errorf("B0 = 0x%X; want 0x18", got)
	}
	if got := prog.Labels["L0"]; got != 0x1C {
		t.Errorf("L0 = 0x%X; want 0x1C", got)
	}
	if len(prog.Image) != int(prog.BSSBase) {
		t.Errorf("image length %d; bss must not be part of the image", len(prog.Image))
	}
}

// run assembles and executes source, returning everything the program printed.
func run(t *testing.T, code, input string) (string, *cpu.CPU) {
	t.Helper()
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	c := cpu.NewCPU(cpu.DefaultMemory)
	var out bytes.Buffer
	c.Output = &out
	c.Input = strings.NewReader(input)
	c.MaxSteps = 10000
	if err := c.Load(prog.Image, prog.Entry); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String(), c
}

func TestRunCompilerOutput(t *testing.T) {
	tests := []struct {
		golden string
		input  string
		want   string
	}{
		// bss starts zeroed, so an unassigned variable prints +0
		{"write_int", "", "+0\r\n"},
		{"write_bool", "", "FALSE\r\nTRUE\r\nTRUE\r\n"},
		{"constants", "", "hello, world\r\nA\r\n-42\r\n-42\r\n"},
		{"read_store", "12\n", "+12\r\n+12\r\nq\r\n"},
	}

	for _, tc := range tests {
		t.Run(tc.golden, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("..", "compiler", "testdata", tc.golden+".asm"))
			if err != nil {
				t.Fatal(err)
			}
			got, c := run(t, string(src), tc.input)
			if got != tc.want {
				t.Errorf("output = %q; want %q", got, tc.want)
			}
			if c.ExitCode != 0 {
				t.Errorf("exit code = %d", c.ExitCode)
			}
		})
	}
}
