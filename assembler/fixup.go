package assembler

// Fixup is a deferred bit-patching record, per spec §3/§4.5. No cyclic
// ownership exists between symbols and fixups; resolution is a single pass
// after emission.
type Fixup struct {
	SymbolName string
	// InstrOffset is the absolute word address where the owning
	// instruction began emission.
	InstrOffset uint32
	// DstOfs is the bit offset, counted from the most-significant bit of
	// the instruction's accumulated opcode, where this field begins.
	DstOfs int
	// DstLen is the field's bit width.
	DstLen int
	// SrcShift is how far the resolved value shifts right before masking,
	// nonzero when the field is a slice of the variable.
	SrcShift int
	Line     int

	IPRelative bool
	IPOfs      int
	IPMul      int
	Endian     string // "big" or "little"
}

func mask64(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// ResolveFixups applies every pending fixup against the emitted word
// stream, per spec §4.5. Unresolved symbols and overlapping fixup bits
// produce warnings rather than aborting.
func (a *Assembler) ResolveFixups() {
	for _, fx := range a.Fixups {
		value, ok := a.Symbols.Lookup(fx.SymbolName)
		if !ok {
			a.Errors.AddWarning(Position{Line: fx.Line}, "unresolved symbol \""+fx.SymbolName+"\"")
			continue
		}

		resolved := uint64(value)
		if fx.IPRelative {
			mul := fx.IPMul
			if mul == 0 {
				mul = 1
			}
			signed := (int64(value) - int64(fx.InstrOffset)) * int64(mul)
			signed -= int64(fx.IPOfs)
			resolved = uint64(signed)
		}
		resolved >>= uint(fx.SrcShift)

		wordIdx := int(fx.InstrOffset) + fx.DstOfs/a.Width - int(a.Origin)
		if wordIdx < 0 {
			a.Errors.AddWarning(Position{Line: fx.Line}, "fixup resolves before the output stream")
			continue
		}

		if fx.DstLen <= a.Width {
			if wordIdx >= len(a.Words) {
				a.Errors.AddWarning(Position{Line: fx.Line}, "fixup resolves past the output stream")
				continue
			}
			shift := a.Width - (fx.DstOfs % a.Width) - fx.DstLen
			bits := (resolved & mask64(fx.DstLen)) << uint(shift)
			bits &= mask64(a.Width)
			if uint64(a.Words[wordIdx])&bits != 0 {
				a.Errors.AddWarning(Position{Line: fx.Line}, "overlapping fixup bits")
			}
			a.Words[wordIdx] ^= uint32(bits)
			continue
		}

		// Low word first, matching how emission lays out a reversed
		// little-endian value; a big-endian variable byte-swaps back to
		// most-significant first.
		numWords := (fx.DstLen + a.Width - 1) / a.Width
		masked := resolved & mask64(fx.DstLen)
		wordVals := make([]uint64, numWords)
		for w := 0; w < numWords; w++ {
			shift := uint(w * a.Width)
			wordVals[w] = (masked >> shift) & mask64(a.Width)
		}
		if fx.Endian != "little" {
			for l, r := 0, len(wordVals)-1; l < r; l, r = l+1, r-1 {
				wordVals[l], wordVals[r] = wordVals[r], wordVals[l]
			}
		}
		for w := 0; w < numWords; w++ {
			idx := wordIdx + w
			if idx < 0 || idx >= len(a.Words) {
				a.Errors.AddWarning(Position{Line: fx.Line}, "fixup resolves past the output stream")
				continue
			}
			if uint64(a.Words[idx])&wordVals[w] != 0 {
				a.Errors.AddWarning(Position{Line: fx.Line}, "overlapping fixup bits")
			}
			a.Words[idx] ^= uint32(wordVals[w])
		}
	}
}
