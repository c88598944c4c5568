// Command alongdump prints every stage of a translation: tokens, assembly,
// symbol table and the assembled layout.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"alongc/pkg/asm"
	"alongc/pkg/compiler"
)

const testSource = `frozen int LIMIT = 10
bool done = False
int x = 0
x >> x
x << x
done << done
`

func main() {
	src := testSource
	title := "alongdump"
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		title = os.Args[1]
	}

	fmt.Printf("Source:\n%s\n", src)

	tokens, err := compiler.Tokenize(strings.NewReader(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	res, err := compiler.Compile(src, compiler.Options{Title: title})
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(res.Assembly)
	fmt.Println()
	fmt.Print(res.Symbols)
	fmt.Println()

	prog, err := asm.Assemble(res.Assembly)
	if err != nil {
		fmt.Fprintln(os.Stderr, "assemble error:", err)
		os.Exit(1)
	}

	fmt.Printf("Layout: text 0x0000, data 0x%04X, bss 0x%04X (+%d bytes), entry 0x%04X\n",
		prog.DataBase, prog.BSSBase, prog.BSSSize, prog.Entry)
	labels := make([]string, 0, len(prog.Labels))
	for name := range prog.Labels {
		labels = append(labels, name)
	}
	sort.Slice(labels, func(i, j int) bool { return prog.Labels[labels[i]] < prog.Labels[labels[j]] })
	for _, name := range labels {
		fmt.Printf("  0x%04X  %s\n", prog.Labels[name], name)
	}
}
