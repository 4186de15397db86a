package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/r824vm/r824/arch"
)

// LineMeta records per-source-line emission metadata for diagnostics and
// listing output.
type LineMeta struct {
	Line   int
	Offset uint32
	BitLen int
	Hex    string
}

// IncludeLoader resolves `.include`/`.module` directives to the text of
// another source file; the host owns file I/O per spec §1/§5.
type IncludeLoader interface {
	Load(name string) (string, error)
}

// Assembler holds the full mutable state of a single assembly run, per
// spec §3.
type Assembler struct {
	Arch    *arch.Spec
	Rules   []*CompiledRule
	Symbols *SymbolTable
	Errors  *ErrorList

	IP      uint32
	Origin  uint32
	Line    int
	CodeLen uint32
	Width   int

	Words    []uint32
	LineMeta []LineMeta
	Fixups   []Fixup
	Aborted  bool

	Includes IncludeLoader
}

// New builds an Assembler for the given architecture spec, compiling its
// rule table.
func New(spec *arch.Spec) (*Assembler, error) {
	rules, err := CompileRules(spec)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		Arch:    spec,
		Rules:   rules,
		Symbols: NewSymbolTable(),
		Errors:  &ErrorList{},
		Width:   spec.Width,
	}, nil
}

// SwapArch replaces the active rule table without touching symbols, emitted
// words, or IP. The `.arch` directive does not call it; the host does.
func (a *Assembler) SwapArch(spec *arch.Spec) error {
	rules, err := CompileRules(spec)
	if err != nil {
		return err
	}
	a.Arch = spec
	a.Rules = rules
	a.Width = spec.Width
	return nil
}

func (a *Assembler) pos() Position {
	return Position{Line: a.Line}
}

// AssembleLine processes a single input line, per spec §4.2. Once a fatal
// error has set the aborted flag, lines are counted but no longer
// processed; the fixup and serialization stages still run so diagnostics
// come out complete.
func (a *Assembler) AssembleLine(raw string) {
	a.Line++
	if a.Aborted {
		return
	}
	line := stripComment(raw)
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, ".") {
		a.dispatchDirective(line)
		return
	}

	line = a.extractLabels(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	line = strings.ToLower(line)

	a.assembleInstruction(line)
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// extractLabels strips every leading `identifier:` prefix, binding each
// (lower-cased) to the current IP, and returns the remainder.
func (a *Assembler) extractLabels(line string) string {
	for {
		trimmed := strings.TrimLeft(line, " \t")
		idx := strings.IndexByte(trimmed, ':')
		if idx <= 0 {
			return line
		}
		candidate := trimmed[:idx]
		if !isLabelToken(candidate) {
			return line
		}
		name := strings.ToLower(candidate)
		if _, fresh := a.Symbols.Define(name, a.IP, a.pos()); !fresh {
			a.Errors.AddError(NewError(a.pos(), ErrSemantics, fmt.Sprintf("duplicate label %q", name)))
		}
		line = trimmed[idx+1:]
	}
}

func isLabelToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			return false
		}
		if !isIdentChar(c) {
			return false
		}
	}
	return true
}

// assembleInstruction tries each rule in order; the first whose regex
// matches produces an instruction. If a rule matches but emission fails,
// the error is remembered and later rules are tried, per spec §4.2.
func (a *Assembler) assembleInstruction(line string) {
	var lastErr error
	for _, rule := range a.Rules {
		m := rule.Regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if err := a.emit(rule, m[1:]); err != nil {
			lastErr = err
			continue
		}
		return
	}

	msg := "could not decode"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	a.Errors.AddError(NewError(a.pos(), ErrSyntax, msg))
	a.Aborted = true
}

type pendingFixup struct {
	dstOfs, dstLen int
	srcShift       int
	name           string
	varIdx         int
}

// emit walks a matched rule's bit-emission list, accumulating the opcode
// left to right, per spec §4.4. The k-th regex capture binds the k-th
// variable of the format string; a bit component finds its text through
// that binding, so one captured operand can feed several slices.
func (a *Assembler) emit(rule *CompiledRule, captures []string) error {
	capturedByVar := make(map[int]string, len(rule.CaptureVars))
	for k, varIdx := range rule.CaptureVars {
		capturedByVar[varIdx] = captures[k]
	}

	var opcode uint64
	var totalLen int
	var pending []pendingFixup

	for _, comp := range rule.Rule.Bits {
		var value uint64
		var complen int

		switch comp.Kind {
		case arch.KindLiteral:
			v, err := strconv.ParseUint(comp.Literal, 2, 64)
			if err != nil {
				return fmt.Errorf("malformed literal bits %q", comp.Literal)
			}
			value = v
			complen = len(comp.Literal)

		default:
			captured, ok := capturedByVar[comp.VarIndex]
			if !ok {
				return fmt.Errorf("rule references variable %d absent from its format string", comp.VarIndex)
			}
			varDesc := a.Arch.Vars[comp.VarIndex]
			width := varDesc.Bits
			if comp.Kind == arch.KindSlice {
				complen = comp.Width
			} else {
				complen = width
			}

			if varDesc.IsEnum() {
				tokIdx := indexOfToken(varDesc.Toks, captured)
				if tokIdx < 0 {
					return fmt.Errorf("unknown enumeration token %q", captured)
				}
				value = uint64(tokIdx)
				if comp.Kind == arch.KindSlice {
					value = (value >> uint(comp.Offset)) & mask64(comp.Width)
				}
			} else {
				n, ok := parseIntLiteral(captured)
				if !ok {
					srcShift := 0
					if comp.Kind == arch.KindSlice {
						srcShift = comp.Offset
					}
					pending = append(pending, pendingFixup{dstOfs: totalLen, dstLen: complen, srcShift: srcShift, name: captured, varIdx: comp.VarIndex})
					a.Symbols.Reference(captured, a.pos())
					value = 0
				} else {
					if !fitsWidth(n, width) {
						return fmt.Errorf("value %d too wide for %d-bit variable", n, width)
					}
					value = uint64(uint32(n)) & mask64(width)
					if varDesc.Endian == "little" {
						value = reverseByteGroups(value, width, a.Width)
					}
					if comp.Kind == arch.KindSlice {
						value = (value >> uint(comp.Offset)) & mask64(comp.Width)
					}
				}
			}
		}

		opcode = (opcode << uint(complen)) | (value & mask64(complen))
		totalLen += complen
	}

	if totalLen == 0 {
		a.Errors.AddWarning(a.pos(), "rule emitted zero bits")
	} else if totalLen > 32 {
		a.Errors.AddWarning(a.pos(), "rule emitted more than 32 bits")
	} else if totalLen%a.Width != 0 {
		a.Errors.AddWarning(a.pos(), "rule's bit length is not a multiple of the word width")
	}

	instrOffset := a.IP
	numWords := totalLen / a.Width
	var hexParts []string
	for i := 0; i < numWords; i++ {
		shift := uint((numWords - 1 - i) * a.Width)
		word := uint32((opcode >> shift) & mask64(a.Width))
		a.Words = append(a.Words, word)
		hexParts = append(hexParts, fmt.Sprintf("%0*X", (a.Width+3)/4, word))
	}
	a.LineMeta = append(a.LineMeta, LineMeta{Line: a.Line, Offset: instrOffset, BitLen: totalLen, Hex: strings.Join(hexParts, " ")})
	a.IP += uint32(numWords)

	for _, p := range pending {
		varDesc := a.Arch.Vars[p.varIdx]
		a.Fixups = append(a.Fixups, Fixup{
			SymbolName:  p.name,
			InstrOffset: instrOffset,
			DstOfs:      p.dstOfs,
			DstLen:      p.dstLen,
			SrcShift:    p.srcShift,
			Line:        a.Line,
			IPRelative:  varDesc.IPRel,
			IPOfs:       varDesc.IPOfs,
			IPMul:       varDesc.Multiplier(),
			Endian:      varDesc.Endian,
		})
	}

	return nil
}

func indexOfToken(toks []string, s string) int {
	for i, t := range toks {
		if strings.EqualFold(t, s) {
			return i
		}
	}
	return -1
}

// parseIntLiteral parses a decimal, $-prefixed hex, or 0x-prefixed hex
// integer. A false second return means the text is a label reference.
func parseIntLiteral(s string) (int64, bool) {
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseInt(s[1:], 16, 64)
		return v, err == nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return v, err == nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		return v, err == nil
	}
}

func fitsWidth(v int64, width int) bool {
	if v >= 0 {
		return uint64(v) <= mask64(width)
	}
	return v >= -(int64(1) << uint(width-1))
}

// reverseByteGroups reverses a value's bit groups of size groupWidth,
// across its totalWidth bits, per spec §4.4's little-endian splicing rule.
func reverseByteGroups(value uint64, totalWidth, groupWidth int) uint64 {
	if groupWidth <= 0 {
		return value
	}
	groups := (totalWidth + groupWidth - 1) / groupWidth
	var out uint64
	for i := 0; i < groups; i++ {
		shift := uint(i * groupWidth)
		g := (value >> shift) & mask64(groupWidth)
		destShift := uint((groups - 1 - i) * groupWidth)
		out |= g << destShift
	}
	return out
}

// Finalize resolves fixups and zero-pads the output to the declared code
// length, per spec §4.5.
func (a *Assembler) Finalize() []uint32 {
	a.ResolveFixups()
	for uint32(len(a.Words)) < a.CodeLen {
		a.Words = append(a.Words, 0)
	}
	return a.Words
}

// OutputLength is max(emitted word count, declared code length), per spec §6.
func (a *Assembler) OutputLength() int {
	if int(a.CodeLen) > len(a.Words) {
		return int(a.CodeLen)
	}
	return len(a.Words)
}

// Assemble runs a complete source document through a fresh Assembler for
// spec and returns it after Finalize, ready for error inspection or byte
// packing. One caller-convenience entry point shared by the loader and the
// inspection API, so both drive the line-by-line/Finalize contract the same
// way.
func Assemble(spec *arch.Spec, source string) (*Assembler, error) {
	a, err := New(spec)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(source, "\n") {
		a.AssembleLine(line)
	}
	a.Finalize()
	return a, nil
}

// WordsToBytes packs an emitted word stream into the flat byte image
// described by spec §6: one entry per word, each word truncated to its
// low width bits. Widths above 8 are packed most-significant-byte first
// within the word so the file stays a flat byte sequence.
func WordsToBytes(words []uint32, width int) []byte {
	bytesPerWord := (width + 7) / 8
	out := make([]byte, 0, len(words)*bytesPerWord)
	for _, w := range words {
		for i := bytesPerWord - 1; i >= 0; i-- {
			out = append(out, byte(w>>uint(i*8)))
		}
	}
	return out
}
