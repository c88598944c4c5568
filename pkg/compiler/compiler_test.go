package compiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func compileOK(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Compile(src, Options{Title: "test"})
	require.NoError(t, err)
	return res
}

// instructions strips the columns back to "instr operands" pairs so tests can
// assert on sequences without the comment column.
func instructions(asm string) []string {
	var out []string
	for _, line := range strings.Split(asm, "\n") {
		if i := strings.Index(line, " ;"); i >= 0 {
			line = line[:i]
		}
		if f := strings.Fields(line); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return out
}

func assertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Errorf("expected output to contain %q\n--- got ---\n%s", needle, haystack)
	}
}

func assertSequence(t *testing.T, asm string, want ...string) {
	t.Helper()
	got := instructions(asm)
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j := range want {
			if got[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	t.Errorf("sequence %q not found in\n%s", want, strings.Join(got, "\n"))
}

func TestScenarioWriteInt(t *testing.T) {
	res := compileOK(t, "int x = 5\nx << x\n")

	require.Equal(t, 1, res.Symbols.Len())
	e, ok := res.Symbols.Lookup("x")
	require.True(t, ok)
	require.Equal(t, TypeInt, e.Type)
	require.Equal(t, ModeVar, e.Mode)
	require.Equal(t, "5", e.Value)

	assertSequence(t, res.Assembly,
		"mov eax,[I0]",
		"call WriteInt",
		"call Crlf",
		"Exit {0}",
	)
}

func TestScenarioConstantRedefinition(t *testing.T) {
	_, err := Compile("frozen bool b = False\nbool b = True\n", Options{Title: "test"})
	ce := requireKind(t, err, RedefinitionError)
	require.Equal(t, 2, ce.Line)
}

func TestResultErrorCount(t *testing.T) {
	res, err := Compile("int x = 1\nx = True\nx = 'c'\n", Options{Title: "test"})
	requireKind(t, err, TypeError)
	require.Equal(t, 1, res.Errors)

	res = compileOK(t, "int x = 1\nx = 2\n")
	require.Zero(t, res.Errors)
}

func TestScenarioUnterminatedString(t *testing.T) {
	_, err := Compile("str s = \"never closed\n", Options{Title: "test"})
	requireKind(t, err, EOFError)
}

func TestScenarioBooleanWrite(t *testing.T) {
	res := compileOK(t, "bool f = False\nf << f\nf << f\n")

	assertSequence(t, res.Assembly,
		"mov eax,[B0]",
		"cmp eax,0",
		"je .L0",
		"mov edx,TRUELIT",
		"jmp .L1",
		".L0:",
		"mov edx,FALSLIT",
		".L1:",
		"call WriteString",
	)
	// second write reuses the cached register and the literal section
	assertSequence(t, res.Assembly,
		"call Crlf",
		"cmp eax,0",
		"je .L2",
	)
	require.Equal(t, 1, strings.Count(res.Assembly, "TRUELIT db"))
	require.Equal(t, 1, strings.Count(res.Assembly, "FALSLIT db"))
}

func TestExplicitTypeMatches(t *testing.T) {
	literals := map[string]string{
		"int":  "42",
		"bool": "True",
		"str":  `"text"`,
		"char": "'k'",
		"list": "[4,5]",
	}
	for typ, lit := range literals {
		res := compileOK(t, typ+" v = "+lit+"\n")
		e, ok := res.Symbols.Lookup("v")
		require.True(t, ok)
		require.Equal(t, typeNames[typ], e.Type)

		for other, otherLit := range literals {
			if other == typ {
				continue
			}
			_, err := Compile(typ+" v = "+otherLit+"\n", Options{})
			requireKind(t, err, TypeError)
		}
	}
}

func TestConstantRedefinitionAlwaysFails(t *testing.T) {
	for _, second := range []string{"K = 1", "K = 99", "int K = -4", "frozen int K = 0", "K >> K"} {
		_, err := Compile("frozen int K = 1\n"+second+"\n", Options{})
		requireKind(t, err, RedefinitionError)
	}
}

func TestCommentsAndWhitespaceAreTransparent(t *testing.T) {
	plain := "int a = 1\nbool b = True\na >> a\na << a\nb << b\n"
	noisy := "# leading comment\n\n   int   a=1   # one\n\tbool b =True\n\n\na>>a\na   <<   a # write\n  b<<b\n# end\n"

	require.Equal(t, compileOK(t, plain).Assembly, compileOK(t, noisy).Assembly)
}

func TestFolding(t *testing.T) {
	res := compileOK(t, "int neg = -12\nint pos = +12\nbool nt = not True\nbool nf = not False\n")

	for name, want := range map[string]string{"neg": "-12", "pos": "12", "nt": "0", "nf": "-1"} {
		e, ok := res.Symbols.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, want, e.Value, name)
	}
}

func TestStoreCodegen(t *testing.T) {
	t.Run("ImmediateLiterals", func(t *testing.T) {
		res := compileOK(t, "int i = 0\nbool b = True\nchar c = 'a'\ni = -3\nb = not True\nc = 'z'\n")
		assertSequence(t, res.Assembly,
			"mov eax,-3", "mov [I0],eax",
			"mov eax,0", "mov [B0],eax",
			"mov eax,'z'", "mov [C0],eax",
		)
	})

	t.Run("FromVariableUsesCache", func(t *testing.T) {
		res := compileOK(t, "int a = 1\nint b = 2\na = b\na = b\n")
		assertSequence(t, res.Assembly,
			"mov eax,[I1]", "mov [I0],eax", "mov [I0],eax",
		)
		require.Equal(t, 1, strings.Count(res.Assembly, "mov     eax,[I1]"))
	})

	t.Run("ReadUpdatesCache", func(t *testing.T) {
		res := compileOK(t, "int n = 0\nn >> n\nn << n\n")
		assertSequence(t, res.Assembly,
			"call ReadInt", "mov [I0],eax", "call WriteInt", "call Crlf",
		)
	})

	t.Run("StringAndCharWrites", func(t *testing.T) {
		res := compileOK(t, "frozen str s = \"hey\"\nfrozen char c = 'x'\ns << s\nc << c\n")
		assertSequence(t, res.Assembly,
			"mov eax,[S0]", "mov edx,S0", "call WriteString", "call Crlf",
			"mov eax,[C0]", "call WriteChar", "call Crlf",
		)
		assertContains(t, res.Assembly, `S0      dd      "hey",0                 ; s`)
		assertContains(t, res.Assembly, `C0      dd      'x',0                   ; c`)
	})
}

func TestStorageSections(t *testing.T) {
	res := compileOK(t, "frozen int K = 7\nint v = 1\nlist l = [1,2,3,4]\nfrozen list E = []\n")
	assertSequence(t, res.Assembly,
		"Exit {0}",
		"SECTION .data",
		"I0 dd 7",
		"L1 dd 0",
		"SECTION .bss",
		"I1 resd 1",
		"L0 resd 4",
	)
}

func TestPrologue(t *testing.T) {
	res, err := Compile("", Options{Title: "demo", Includes: []string{"Custom.inc"}})
	require.NoError(t, err)
	want := "%INCLUDE \"Custom.inc\"\n\n" +
		"SECTION .text\n" +
		"global  _start                          ; demo\n\n" +
		"_start:\n" +
		"        Exit    {0}\n\n" +
		"SECTION .data\n\n" +
		"SECTION .bss\n"
	require.Equal(t, want, res.Assembly)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		line int
	}{
		{"keyword expected", "= 5\n", SyntaxError, 1},
		{"identifier expected after type", "int 5 = 5\n", SyntaxError, 1},
		{"keyword as name", "int frozen = 5\n", SyntaxError, 1},
		{"bad follower", "int x = 1\nx + x\n", SyntaxError, 2},
		{"missing equals", "int x 5\n", SyntaxError, 1},
		{"sign without integer", "int x = - y\n", SyntaxError, 1},
		{"not without boolean", "bool b = not 1\n", SyntaxError, 1},
		{"bad right-hand side", "int x = (\n", SyntaxError, 1},
		{"undeclared rhs", "int x = y\n", ReferenceError, 1},
		{"undeclared write source", "int x = 1\nx << y\n", ReferenceError, 2},
		{"undeclared write target", "int x = 1\ny << x\n", ReferenceError, 2},
		{"explicit type mismatch", "int x = True\n", TypeError, 1},
		{"store type mismatch", "int x = 1\nx = 'c'\n", TypeError, 2},
		{"store string literal", "str s = \"a\"\ns = \"b\"\n", TypeError, 2},
		{"store list", "list l = [1]\nl = [2]\n", TypeError, 2},
		{"store string variable", "frozen str G = \"Hello, Along\"\nstr s = \"x\"\ns = G\n", TypeError, 3},
		{"store list variable", "list a = [1]\nlist b = [2]\nb = a\n", TypeError, 3},
		{"write list", "list l = [1]\nl << l\n", TypeError, 2},
		{"read into bool", "bool b = True\nb >> b\n", TypeError, 2},
		{"read into constant", "frozen int K = 1\nK >> K\n", RedefinitionError, 2},
		{"freeze existing variable", "int v = 1\nfrozen int v = 2\n", RedefinitionError, 2},
		{"unknown error name", "raise Oops\n", SyntaxError, 1},
		{"raise bad argument", "raise KeyError(True)\n", SyntaxError, 1},
		{"raise missing paren", "raise KeyError(1 x\n", SyntaxError, 1},
		{"write operand not identifier", "int x = 1\nx << 5\n", SyntaxError, 2},
		{"comment at end of input", "int x = 1\n# bye", EOFError, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, Options{Title: "t"})
			ce := requireKind(t, err, tt.kind)
			require.Equal(t, tt.line, ce.Line, ce.Msg)
		})
	}
}

func TestRaiseIsValidatedOnly(t *testing.T) {
	with := compileOK(t, "int x = 1\nraise ValueError(\"bad\")\nraise KeyError\nraise IndexError(3)\nx << x\n")
	without := compileOK(t, "int x = 1\nx << x\n")
	require.Equal(t, without.Assembly, with.Assembly)
}

func TestListingAndErrorCount(t *testing.T) {
	var lst, asm, logs bytes.Buffer
	c := New(strings.NewReader("int x = 1\nx = True\n"), &asm, Options{
		Title:   "prog",
		Listing: &lst,
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
		Now:     func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) },
	})

	err := c.Run()
	requireKind(t, err, TypeError)
	require.Equal(t, 1, c.ErrorCount())
	require.Equal(t, 1, c.Symbols().Len())

	require.True(t, strings.HasPrefix(lst.String(), "prog\t2024/03/09 14:05 UTC\n\n    1| int x = 1\n    2| x = True\n"))
	assertContains(t, lst.String(), "\nLine 2: TypeError: ")
	assertContains(t, lst.String(), "Compilation stopped: 1 error(s)\n")
	assertContains(t, logs.String(), "compile failed")
}

func TestListingSuccessFooter(t *testing.T) {
	res := compileOK(t, "int x = 1\nx = 5")
	// the source ends without a newline, so the footer starts one
	assertContains(t, res.Listing, "    2| x = 5\n\nCompilation succeeded: 1 symbol(s), 0 errors\n")
}
