package asm

import (
	"testing"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `; Line 1: comment
SECTION .text                   ; Line 2
_start:                         ; Line 3: label only
        mov     eax,5           ; Line 4: 0x00
                                ; Line 5: empty
        call    WriteInt        ; Line 6: 0x08
SECTION .data                   ; Line 7
K       dd      1               ; Line 8: data, not mapped
SECTION .text                   ; Line 9
        Exit    {0}             ; Line 10: 0x10
`
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	tests := []struct {
		addr uint32
		line int
	}{
		{0x0000, 4},
		{0x0008, 6},
		{0x0010, 10},
	}

	for _, tc := range tests {
		if got := prog.SourceMap[tc.addr]; got != tc.line {
			t.Errorf("SourceMap[0x%04X] = %d; want %d", tc.addr, got, tc.line)
		}
	}
	if len(prog.SourceMap) != len(tests) {
		t.Errorf("SourceMap has %d entries; want %d", len(prog.SourceMap), len(tests))
	}
	if got := prog.Labels["K"]; got != 0x18 {
		t.Errorf("K = 0x%X; want 0x18", got)
	}
}
