package compiler

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxSymbols bounds the symbol table.
const MaxSymbols = 512

// Type is the semantic type of a symbol or literal.
type Type int

const (
	TypeUnknown Type = iota
	TypeBool
	TypeInt
	TypeStr
	TypeChar
	TypeList
)

var typeStrings = [...]string{
	TypeUnknown: "UNKNOWN",
	TypeBool:    "BOOL",
	TypeInt:     "INT",
	TypeStr:     "STR",
	TypeChar:    "CHAR",
	TypeList:    "LIST",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeStrings) {
		return typeStrings[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// letter is the internal-name prefix for the type.
func (t Type) letter() string {
	return t.String()[:1]
}

// Mode is the storage classification of a symbol.
type Mode int

const (
	ModeVar Mode = iota
	ModeConst
)

func (m Mode) String() string {
	if m == ModeConst {
		return "CONST"
	}
	return "VAR"
}

// Entry is one symbol table record.
type Entry struct {
	InternalName string
	Type         Type
	Mode         Mode
	Value        string
	Allocated    bool
	Units        int
}

// SymbolTable maps external names to entries and remembers insertion order,
// which is the order storage is emitted in.
type SymbolTable struct {
	entries map[string]*Entry
	order   []string

	// Per-type name counters, seeded at -1 and incremented before use.
	counts map[Type]int
}

func NewSymbolTable() *SymbolTable {
	counts := make(map[Type]int, len(typeStrings))
	for t := range typeStrings {
		counts[Type(t)] = -1
	}
	return &SymbolTable{
		entries: make(map[string]*Entry),
		counts:  counts,
	}
}

// Len returns the number of entries.
func (s *SymbolTable) Len() int {
	return len(s.order)
}

// Lookup returns the entry for name and whether it exists.
func (s *SymbolTable) Lookup(name string) (*Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Entries returns the entries in insertion order, paired with their names.
func (s *SymbolTable) Entries() []NamedEntry {
	out := make([]NamedEntry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, NamedEntry{Name: name, Entry: *s.entries[name]})
	}
	return out
}

// NamedEntry is an entry together with its external name.
type NamedEntry struct {
	Name string
	Entry
}

// Insert adds one entry per name in externalNames, which may be a single name
// or a comma-joined list. Every name gets identical attributes. All names are
// checked before any is inserted.
func (s *SymbolTable) Insert(externalNames string, typ Type, mode Mode, value string, allocated bool, units int) error {
	names := strings.Split(externalNames, ",")
	added := make(map[string]bool)
	for i, name := range names {
		name = strings.TrimSpace(name)
		names[i] = name
		if name == "" {
			return newError(SyntaxError, "Empty name in %q", externalNames)
		}
		if isKeyword(name) {
			return newError(SyntaxError, "Illegal use of a keyword %q", name)
		}
		if prev, ok := s.entries[name]; ok {
			if prev.Mode == ModeConst {
				return newError(RedefinitionError, "You may not redefine the constant %q", name)
			}
			continue
		}
		added[name] = true
		if len(s.order)+len(added) > MaxSymbols {
			return newError(OverflowError, "Symbol table holds too many symbols (max %d)", MaxSymbols)
		}
	}

	v := value
	switch typ {
	case TypeBool:
		v = canonicalBool(v)
	case TypeList:
		if isList(v) {
			v = v[1 : len(v)-1]
		}
	}

	for _, name := range names {
		if _, ok := s.entries[name]; !ok {
			s.order = append(s.order, name)
		}
		s.entries[name] = &Entry{
			InternalName: s.genInternalName(typ),
			Type:         typ,
			Mode:         mode,
			Value:        v,
			Allocated:    allocated,
			Units:        units,
		}
	}
	return nil
}

func (s *SymbolTable) genInternalName(t Type) string {
	s.counts[t]++
	return fmt.Sprintf("%s%d", t.letter(), s.counts[t])
}

// TypeOf resolves the type of a literal spelling or a declared name.
func (s *SymbolTable) TypeOf(name string) (Type, error) {
	if t, ok := literalType(name); ok {
		return t, nil
	}
	if e, ok := s.entries[name]; ok {
		return e.Type, nil
	}
	return TypeUnknown, newError(ReferenceError, "No type determined for %q", name)
}

// ValueOf resolves the value of a literal spelling or a declared name.
func (s *SymbolTable) ValueOf(name string) (string, error) {
	if isLiteral(name) {
		return name, nil
	}
	if e, ok := s.entries[name]; ok {
		return e.Value, nil
	}
	return "", newError(ReferenceError, "No value determined for %q", name)
}

type yamlEntry struct {
	Name      string `yaml:"name"`
	Internal  string `yaml:"internal"`
	Type      string `yaml:"type"`
	Mode      string `yaml:"mode"`
	Value     string `yaml:"value"`
	Allocated bool   `yaml:"allocated"`
	Units     int    `yaml:"units"`
}

// WriteYAML dumps the table in insertion order.
func (s *SymbolTable) WriteYAML(w io.Writer) error {
	doc := struct {
		Symbols []yamlEntry `yaml:"symbols"`
	}{Symbols: make([]yamlEntry, 0, len(s.order))}

	for _, ne := range s.Entries() {
		doc.Symbols = append(doc.Symbols, yamlEntry{
			Name:      ne.Name,
			Internal:  ne.InternalName,
			Type:      ne.Type.String(),
			Mode:      ne.Mode.String(),
			Value:     ne.Value,
			Allocated: ne.Allocated,
			Units:     ne.Units,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode symbol table: %w", err)
	}
	return enc.Close()
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	if len(s.order) == 0 {
		return "Symbols: (empty)\n"
	}
	var sb strings.Builder
	sb.WriteString("Symbols:\n")
	for _, ne := range s.Entries() {
		fmt.Fprintf(&sb, "  %-20s  %-6s %-7s %-5s alloc=%-5v units=%d value=%s\n",
			ne.Name, ne.InternalName, ne.Type, ne.Mode, ne.Allocated, ne.Units, ne.Value)
	}
	return sb.String()
}
