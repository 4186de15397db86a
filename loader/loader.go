// Package loader glues the assembler onto a VM: it assembles source text
// against an architecture description and loads the resulting byte image,
// per spec §6.
package loader

import (
	"fmt"
	"strings"

	"github.com/r824vm/r824/arch"
	"github.com/r824vm/r824/assembler"
	"github.com/r824vm/r824/vm"
)

// Result reports what assembling a program produced: the byte image itself
// (useful for writing to an output file), the resolved symbol table, and
// any diagnostics. Assembly aborts (Image is nil) only when Errors is
// non-empty.
type Result struct {
	Image   []byte
	Symbols map[string]uint32
	Errors  []string
}

// Assemble runs source through spec's rule table and packs the emitted
// words into a flat byte image per spec §6. It does not touch a VM; callers
// that only want to write an output file (the `<input.asm> <output.bin>`
// CLI path) can use this directly.
func Assemble(spec *arch.Spec, source string) Result {
	asm, err := assembler.Assemble(spec, source)
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	symbols := make(map[string]uint32, len(asm.Symbols.All()))
	for name, sym := range asm.Symbols.All() {
		if sym.Defined {
			symbols[name] = sym.Value
		}
	}

	if asm.Errors.HasErrors() {
		msgs := make([]string, len(asm.Errors.Errors))
		for i, e := range asm.Errors.Errors {
			msgs[i] = e.Error()
		}
		return Result{Symbols: symbols, Errors: msgs}
	}

	return Result{
		Image:   assembler.WordsToBytes(asm.Words, spec.Width),
		Symbols: symbols,
	}
}

// LoadProgramIntoVM assembles source against spec and loads the resulting
// image into machine's RAM starting at address 0, per spec §6's entry-point
// convention (execution begins at IPtr 0; a `.org`-placed `_start` label is
// a source-level convention, not a loader feature).
func LoadProgramIntoVM(machine *vm.VM, spec *arch.Spec, source string) (Result, error) {
	res := Assemble(spec, source)
	if len(res.Errors) > 0 {
		return res, fmt.Errorf("assembly failed: %s", strings.Join(res.Errors, "; "))
	}
	if err := machine.LoadImage(res.Image); err != nil {
		return res, err
	}
	return res, nil
}
