package assembler

import (
	"strings"
	"testing"

	"github.com/r824vm/r824/arch"
)

func assemble(t *testing.T, spec *arch.Spec, source string) *Assembler {
	t.Helper()
	asm, err := Assemble(spec, source)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return asm
}

func TestAssembleLine_BlankAndCommentLinesEmitNothing(t *testing.T) {
	asm := assemble(t, arch.Default(), "\n   \n; just a comment\n\t; another\n")

	if len(asm.Words) != 0 {
		t.Errorf("emitted %d words, want 0", len(asm.Words))
	}
	if asm.IP != 0 {
		t.Errorf("IP = %d, want 0", asm.IP)
	}
	if asm.Errors.HasErrors() {
		t.Errorf("unexpected errors: %v", asm.Errors.Errors)
	}
}

func TestAssembleLine_LabelOnlyBindsWithoutEmission(t *testing.T) {
	asm := assemble(t, arch.Default(), "nop\nHERE:\nnop\n")

	v, ok := asm.Symbols.Lookup("here")
	if !ok {
		t.Fatal("label not defined (and must be lower-cased)")
	}
	if v != 1 {
		t.Errorf("here = %d, want 1", v)
	}
	if len(asm.Words) != 2 {
		t.Errorf("emitted %d words, want 2", len(asm.Words))
	}
}

func TestAssembleLine_MultipleLabelsPerLine(t *testing.T) {
	asm := assemble(t, arch.Default(), "first: second: nop\n")

	for _, name := range []string{"first", "second"} {
		if v, ok := asm.Symbols.Lookup(name); !ok || v != 0 {
			t.Errorf("%s = %d (ok=%v), want 0", name, v, ok)
		}
	}
}

func TestAssembleLine_DuplicateLabelIsError(t *testing.T) {
	asm := assemble(t, arch.Default(), "here: nop\nhere: nop\n")

	if !asm.Errors.HasErrors() {
		t.Fatal("expected duplicate-label error")
	}
	if asm.Errors.Errors[0].Kind != ErrSemantics {
		t.Errorf("kind = %v, want semantics", asm.Errors.Errors[0].Kind)
	}
}

func TestAssembleLine_UnmatchedLineAborts(t *testing.T) {
	asm := assemble(t, arch.Default(), "frobnicate\nnop\n")

	if !asm.Aborted {
		t.Error("an unmatched line must set the aborted flag")
	}
	if len(asm.Words) != 0 {
		t.Error("lines after the fatal error must not be processed")
	}
	if !asm.Errors.HasErrors() {
		t.Fatal("expected an error")
	}
	if !strings.Contains(asm.Errors.Errors[0].Message, "could not decode") {
		t.Errorf("message = %q", asm.Errors.Errors[0].Message)
	}
}

func TestEmit_BitCountMatchesComponentSum(t *testing.T) {
	spec := arch.Default()
	asm := assemble(t, spec, "nop\ni $123456\nldl @5\nbeq 4\n")

	if asm.Errors.HasErrors() {
		t.Fatalf("unexpected errors: %v", asm.Errors.Errors)
	}

	wantBits := []int{8, 32, 8, 16}
	if len(asm.LineMeta) != len(wantBits) {
		t.Fatalf("line metas = %d, want %d", len(asm.LineMeta), len(wantBits))
	}
	for i, want := range wantBits {
		if asm.LineMeta[i].BitLen != want {
			t.Errorf("line %d: bit length %d, want %d", i+1, asm.LineMeta[i].BitLen, want)
		}
	}
}

func TestEmit_LittleEndianImmediateByteOrder(t *testing.T) {
	asm := assemble(t, arch.Default(), "i $123456\n")

	want := []uint32{0x33, 0x56, 0x34, 0x12}
	if len(asm.Words) != len(want) {
		t.Fatalf("words = %v", asm.Words)
	}
	for i, w := range want {
		if asm.Words[i] != w {
			t.Errorf("word %d = 0x%02X, want 0x%02X", i, asm.Words[i], w)
		}
	}
}

func TestEmit_ImmediateTooWideFallsToNextRule(t *testing.T) {
	spec := &arch.Spec{
		Name:  "toy",
		Width: 8,
		Vars: []arch.VarDesc{
			{Bits: 4},
			{Bits: 12},
		},
		VarIndex: map[string]int{"small": 0, "wide": 1},
		Rules: []arch.Rule{
			{Fmt: "put ~small", Bits: []arch.Component{
				{Kind: arch.KindLiteral, Literal: "0001"},
				{Kind: arch.KindVariable, VarIndex: 0},
			}},
			{Fmt: "put ~wide", Bits: []arch.Component{
				{Kind: arch.KindLiteral, Literal: "0010"},
				{Kind: arch.KindVariable, VarIndex: 1},
			}},
		},
	}

	asm := assemble(t, spec, "put 200\n")

	if asm.Errors.HasErrors() {
		t.Fatalf("expected fallback to the wide rule: %v", asm.Errors.Errors)
	}
	// 0010 then 0000 1100 1000 = 0x2 0xC8 over 16 bits
	if len(asm.Words) != 2 || asm.Words[0] != 0x20 || asm.Words[1] != 0xC8 {
		t.Errorf("words = %v, want [0x20 0xC8]", asm.Words)
	}
}

func TestEmit_TooWideEverywhereReportsLastError(t *testing.T) {
	spec := &arch.Spec{
		Name:     "toy",
		Width:    8,
		Vars:     []arch.VarDesc{{Bits: 4}},
		VarIndex: map[string]int{"small": 0},
		Rules: []arch.Rule{
			{Fmt: "put ~small", Bits: []arch.Component{
				{Kind: arch.KindLiteral, Literal: "0001"},
				{Kind: arch.KindVariable, VarIndex: 0},
			}},
		},
	}

	asm := assemble(t, spec, "put 200\n")

	if !asm.Errors.HasErrors() {
		t.Fatal("expected an error")
	}
	if !strings.Contains(asm.Errors.Errors[0].Message, "too wide") {
		t.Errorf("message = %q, want the remembered emission error", asm.Errors.Errors[0].Message)
	}
}

func TestEmit_UnknownEnumTokenTriesLaterRules(t *testing.T) {
	spec := &arch.Spec{
		Name:  "toy",
		Width: 8,
		Vars: []arch.VarDesc{
			{Bits: 4, Toks: []string{"up", "down"}},
			{Bits: 4},
		},
		VarIndex: map[string]int{"dir": 0, "imm": 1},
		Rules: []arch.Rule{
			{Fmt: "go ~dir", Bits: []arch.Component{
				{Kind: arch.KindLiteral, Literal: "0001"},
				{Kind: arch.KindVariable, VarIndex: 0},
			}},
			{Fmt: "go ~imm", Bits: []arch.Component{
				{Kind: arch.KindLiteral, Literal: "0010"},
				{Kind: arch.KindVariable, VarIndex: 1},
			}},
		},
	}

	// "go 7" matches the enum rule's \w+ group but 7 is not a token; the
	// numeric rule must pick it up.
	asm := assemble(t, spec, "go 7\n")

	if asm.Errors.HasErrors() {
		t.Fatalf("expected fallback: %v", asm.Errors.Errors)
	}
	if len(asm.Words) != 1 || asm.Words[0] != 0x27 {
		t.Errorf("words = %v, want [0x27]", asm.Words)
	}

	// The enum value is the zero-based token index.
	asm = assemble(t, spec, "go down\n")
	if len(asm.Words) != 1 || asm.Words[0] != 0x11 {
		t.Errorf("words = %v, want [0x11]", asm.Words)
	}
}

func TestDirective_DataEmitsConstants(t *testing.T) {
	asm := assemble(t, arch.Default(), ".org 0\n.data $01 $02 $03\n")

	image := WordsToBytes(asm.Words, asm.Width)
	if len(image) != 3 || image[0] != 1 || image[1] != 2 || image[2] != 3 {
		t.Errorf("image = %v, want [1 2 3]", image)
	}
	if asm.IP != 3 {
		t.Errorf("IP = %d, want 3", asm.IP)
	}
}

func TestDirective_String(t *testing.T) {
	asm := assemble(t, arch.Default(), `.string "hi"`)

	if len(asm.Words) != 2 || asm.Words[0] != 'h' || asm.Words[1] != 'i' {
		t.Errorf("words = %v, want [h i]", asm.Words)
	}
}

func TestDirective_DefineAndReference(t *testing.T) {
	asm := assemble(t, arch.Default(), ".define LIMIT 42\nu limit\n")

	if asm.Errors.HasErrors() {
		t.Fatalf("errors: %v", asm.Errors.Errors)
	}
	// The constant resolves through the fixup pass.
	if asm.Words[1] != 42 {
		t.Errorf("operand byte = %d, want 42", asm.Words[1])
	}
}

func TestDirective_OrgSetsIPAndOrigin(t *testing.T) {
	asm := assemble(t, arch.Default(), ".org $100\nmark: nop\n")

	if asm.Origin != 0x100 {
		t.Errorf("origin = 0x%X, want 0x100", asm.Origin)
	}
	if v, _ := asm.Symbols.Lookup("mark"); v != 0x100 {
		t.Errorf("mark = 0x%X, want 0x100", v)
	}
}

func TestDirective_AlignAdvancesIP(t *testing.T) {
	asm := assemble(t, arch.Default(), ".len 8\nnop\n.align 4\nnop\n")

	if asm.IP != 5 {
		t.Errorf("IP = %d, want 5 (1 padded to 4, then one word)", asm.IP)
	}
	// Alignment padding is zero words; the second nop lands at offset 4.
	if asm.Words[1] != 0 || asm.Words[2] != 0 || asm.Words[3] != 0 {
		t.Errorf("padding words = %v", asm.Words[1:4])
	}
	if asm.LineMeta[1].Offset != 4 {
		t.Errorf("second instruction offset = %d, want 4", asm.LineMeta[1].Offset)
	}
}

func TestDirective_AlignRejectsZeroAndOversize(t *testing.T) {
	asm := assemble(t, arch.Default(), ".len 4\n.align 0\n")
	if !asm.Errors.HasErrors() {
		t.Error(".align 0 must be rejected")
	}

	asm = assemble(t, arch.Default(), ".len 4\n.align 8\n")
	if !asm.Errors.HasErrors() {
		t.Error(".align beyond the declared code length must be rejected")
	}
}

func TestDirective_UnknownWarnsNonFatally(t *testing.T) {
	asm := assemble(t, arch.Default(), ".nonsense 1\nnop\n")

	if asm.Errors.HasErrors() {
		t.Errorf("unknown directive must not be an error: %v", asm.Errors.Errors)
	}
	if len(asm.Errors.Warnings) == 0 {
		t.Error("expected a warning")
	}
	if len(asm.Words) != 1 {
		t.Error("assembly must continue after the warning")
	}
}

func TestFinalize_PadsToDeclaredLength(t *testing.T) {
	asm := assemble(t, arch.Default(), ".len 8\nnop\nnop\n")

	if len(asm.Words) != 8 {
		t.Errorf("final length = %d, want 8", len(asm.Words))
	}
	if asm.OutputLength() != 8 {
		t.Errorf("OutputLength = %d, want 8", asm.OutputLength())
	}
}

func TestFinalize_EmissionBeyondDeclaredLengthWins(t *testing.T) {
	asm := assemble(t, arch.Default(), ".len 1\nnop\nnop\nnop\n")

	if len(asm.Words) != 3 {
		t.Errorf("final length = %d, want 3", len(asm.Words))
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	source := "start: ldl #$05\nldl #$07\nadd\nbeq start\nj start\nhlt\n"

	first := assemble(t, arch.Default(), source)
	second := assemble(t, arch.Default(), source)

	a := WordsToBytes(first.Words, first.Width)
	b := WordsToBytes(second.Words, second.Width)
	if string(a) != string(b) {
		t.Error("reassembly must be byte-identical")
	}
}

func TestWordsToBytes_WideWords(t *testing.T) {
	// A 16-bit word width packs most-significant byte first per word.
	got := WordsToBytes([]uint32{0x1234, 0xABCD}, 16)
	want := []byte{0x12, 0x34, 0xAB, 0xCD}
	if len(got) != len(want) {
		t.Fatalf("bytes = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

func TestSwapArch_ReplacesRuleTable(t *testing.T) {
	asm, err := New(arch.Default())
	if err != nil {
		t.Fatal(err)
	}

	toy := &arch.Spec{
		Name:     "toy",
		Width:    8,
		Vars:     []arch.VarDesc{},
		VarIndex: map[string]int{},
		Rules: []arch.Rule{
			{Fmt: "blip", Bits: []arch.Component{{Kind: arch.KindLiteral, Literal: "10101010"}}},
		},
	}
	if err := asm.SwapArch(toy); err != nil {
		t.Fatal(err)
	}

	asm.AssembleLine("blip")
	if asm.Errors.HasErrors() {
		t.Fatalf("errors: %v", asm.Errors.Errors)
	}
	if len(asm.Words) != 1 || asm.Words[0] != 0xAA {
		t.Errorf("words = %v, want [0xAA]", asm.Words)
	}
}
