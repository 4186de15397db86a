package arch

// Default returns the architecture description built into the toolchain:
// the opcode table for the default R824 system described in spec §4.6 and
// §6. A `.arch` directive can swap in a JSON-loaded Spec instead (see
// LoadJSON); this literal keeps the toolchain self-contained without a
// document on disk.
//
// Opcode byte values here are the single source of truth shared with the
// interpreter's decode switch (see the vm package's Op* constants); the two
// tables are kept in lockstep by hand, the way a fixed ISA's assembler and
// disassembler agree on an encoding without a shared generator.
func Default() *Spec {
	vars := []struct {
		name string
		desc VarDesc
	}{
		// Branch offsets are relative to the operand byte's own address,
		// one past the instruction start, hence ipofs 1.
		{"off8", VarDesc{Bits: 8, IPRel: true, IPOfs: 1}},
		{"imm24", VarDesc{Bits: 24, Endian: "little"}},
		{"byteval", VarDesc{Bits: 8}},
		{"ipoff8", VarDesc{Bits: 8, IPRel: true, IPOfs: 1}},
		{"wsidx", VarDesc{Bits: 4}},
		{"mask8", VarDesc{Bits: 8}},
	}

	spec := &Spec{
		Name:     "r824",
		Width:    8,
		VarIndex: make(map[string]int, len(vars)),
	}
	for i, v := range vars {
		spec.Vars = append(spec.Vars, v.desc)
		spec.VarIndex[v.name] = i
	}

	idx := func(name string) int { return spec.VarIndex[name] }
	lit := func(bits string) Component { return Component{Kind: KindLiteral, Literal: bits} }
	v := func(name string) Component { return Component{Kind: KindVariable, VarIndex: idx(name)} }

	bare := func(mnemonic, bits string) Rule {
		return Rule{Fmt: mnemonic, Bits: []Component{lit(bits)}}
	}
	withOperand := func(mnemonic, bits, varName string) Rule {
		return Rule{Fmt: mnemonic + " ~" + varName, Bits: []Component{lit(bits), v(varName)}}
	}

	spec.Rules = []Rule{
		bare("nop", "00000000"),
		bare("dup", "00000001"),
		bare("swap", "00000010"),
		bare("pop1", "00000011"),
		bare("pop2", "00000100"),

		bare("add", "00000101"),
		bare("sub", "00000110"),
		bare("mul", "00000111"),
		bare("div", "00001000"),
		bare("rem", "00001001"),
		bare("and", "00001010"),
		bare("or", "00001011"),
		bare("xor", "00001100"),
		bare("inc", "00001101"),
		bare("dec", "00001110"),
		bare("neg", "00001111"),
		bare("inv", "00010000"),
		bare("i2b", "00010001"),
		bare("sll1", "00010010"),
		bare("sll2", "00010011"),
		bare("sll3", "00010100"),
		bare("sll4", "00010101"),
		bare("srl1", "00010110"),
		bare("srl2", "00010111"),
		bare("srl3", "00011000"),
		bare("srl4", "00011001"),
		bare("sra1", "00011010"),
		bare("sra2", "00011011"),
		bare("sra3", "00011100"),
		bare("sra4", "00011101"),
		bare("slt", "00011110"),
		bare("sltu", "00011111"),

		bare("ld", "00100000"),
		bare("lb", "00100001"),
		bare("lu", "00100010"),
		bare("st", "00100011"),
		// st #addr expands to I addr / SWAP / ST so the stored value ends
		// up in A and the pushed address in B.
		{Fmt: "st #~imm24", Bits: []Component{lit("00110011"), v("imm24"), lit("00000010"), lit("00100011")}},
		bare("sb", "00100100"),
		bare("pop", "00100101"),
		bare("push", "00100110"),

		withOperand("beq", "00100111", "off8"),
		withOperand("bne", "00101000", "off8"),
		withOperand("blt", "00101001", "off8"),
		withOperand("bltu", "00101010", "off8"),
		withOperand("bge", "00101011", "off8"),
		withOperand("bgeu", "00101100", "off8"),
		withOperand("j", "00101101", "off8"),
		withOperand("jal", "00101110", "off8"),
		bare("jr", "00101111"),
		bare("jalr", "00110000"),

		bare("iz0", "00110001"),
		bare("iz1", "00110010"),
		withOperand("i", "00110011", "imm24"),
		withOperand("u", "00110100", "byteval"),
		withOperand("b", "00110101", "byteval"),
		withOperand("aiip", "00110110", "ipoff8"),

		// ldl #imm is the immediate-push spelling of I; ldl @k / stl @k
		// address the workspace.
		{Fmt: "ldl #~imm24", Bits: []Component{lit("00110011"), v("imm24")}},
		{Fmt: "ldl @~wsidx", Bits: []Component{lit("0100"), v("wsidx")}},
		{Fmt: "stl @~wsidx", Bits: []Component{lit("0101"), v("wsidx")}},

		bare("ei", "01100000"),
		bare("di", "01100001"),
		withOperand("seti", "01100010", "mask8"),
		withOperand("clri", "01100011", "mask8"),
		bare("iret", "01100100"),
		bare("ecall", "01100101"),
		bare("ebreak", "01100110"),
		bare("hlt", "01100111"),
	}

	return spec
}
