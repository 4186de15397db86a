package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/r824vm/r824/arch"
	"github.com/r824vm/r824/assembler"
)

// SymbolEntry is one row of the cross-reference table: where a symbol is
// defined, its value, and every line that references it.
type SymbolEntry struct {
	Name       string
	Value      uint32
	Defined    bool
	DefLine    int
	References []int // source lines, ascending
}

// CrossReference is a symbol usage table built from an assembly run.
type CrossReference struct {
	Entries []SymbolEntry // sorted by name
}

// Xref assembles source against spec and builds the label/constant
// cross-reference table. Assembly errors do not stop the table from being
// built; the caller can still inspect what resolved.
func Xref(spec *arch.Spec, source string) (*CrossReference, error) {
	asm, err := assembler.Assemble(spec, source)
	if err != nil {
		return nil, err
	}

	xr := &CrossReference{}
	for name, sym := range asm.Symbols.All() {
		entry := SymbolEntry{
			Name:    name,
			Value:   sym.Value,
			Defined: sym.Defined,
			DefLine: sym.Pos.Line,
		}
		for _, ref := range sym.References {
			entry.References = append(entry.References, ref.Line)
		}
		sort.Ints(entry.References)
		xr.Entries = append(xr.Entries, entry)
	}

	sort.Slice(xr.Entries, func(a, b int) bool {
		return xr.Entries[a].Name < xr.Entries[b].Name
	})

	return xr, nil
}

// Lookup returns the entry for name, or nil.
func (xr *CrossReference) Lookup(name string) *SymbolEntry {
	for i := range xr.Entries {
		if xr.Entries[i].Name == name {
			return &xr.Entries[i]
		}
	}
	return nil
}

// String renders the table in the fixed-width layout the CLI prints.
func (xr *CrossReference) String() string {
	var sb strings.Builder

	sb.WriteString("Symbol Cross-Reference\n")
	sb.WriteString("======================\n\n")

	if len(xr.Entries) == 0 {
		sb.WriteString("No symbols defined\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-24s %-10s %-8s %s\n", "Name", "Value", "Defined", "References"))
	sb.WriteString(strings.Repeat("-", 72) + "\n")

	for _, e := range xr.Entries {
		value := fmt.Sprintf("0x%06X", e.Value)
		defined := "-"
		if e.Defined {
			defined = fmt.Sprintf("line %d", e.DefLine)
		}

		refs := "(unreferenced)"
		if len(e.References) > 0 {
			parts := make([]string, len(e.References))
			for i, line := range e.References {
				parts[i] = fmt.Sprintf("%d", line)
			}
			refs = strings.Join(parts, ", ")
		}

		sb.WriteString(fmt.Sprintf("%-24s %-10s %-8s %s\n", e.Name, value, defined, refs))
	}

	return sb.String()
}
