package vm

// execDUP implements C<-B, B<-A (A unchanged).
func (c *CPU) execDUP() {
	c.C = c.B
	c.B = c.A
}

// execSWAP implements A<->B.
func (c *CPU) execSWAP() {
	c.A, c.B = c.B, c.A
}

// execPOP1 implements A<-B, B<-C (single-element pop discipline).
func (c *CPU) execPOP1() {
	c.popA()
}

// execPOP2 implements A<-B<-C: the single-element pop discipline applied
// twice.
func (c *CPU) execPOP2() {
	c.popA()
	c.popA()
}

// execLD implements LD: push (C<-B, B<-A) then overwrite A with the
// little-endian 24-bit value at [A].
func (vm *VM) execLD() error {
	addr := Trunc24(uint32(vm.CPU.A))
	v, err := vm.Memory.Read24(addr)
	if err != nil {
		return err
	}
	vm.CPU.pushA(SignExtend24(v))
	return nil
}

// execLB implements LB: push then overwrite A with a sign-extended byte at [A].
func (vm *VM) execLB() error {
	addr := Trunc24(uint32(vm.CPU.A))
	b, err := vm.Memory.ReadByte(addr)
	if err != nil {
		return err
	}
	vm.CPU.pushA(SignExtend8(b))
	return nil
}

// execLU implements LU: push then overwrite A with an unsigned byte at [A].
func (vm *VM) execLU() error {
	addr := Trunc24(uint32(vm.CPU.A))
	b, err := vm.Memory.ReadByte(addr)
	if err != nil {
		return err
	}
	vm.CPU.pushA(ZeroExtend8(b))
	return nil
}

// execST implements ST: write 24 bits of A to [B], then shift (A<-B, B<-C).
func (vm *VM) execST() error {
	addr := Trunc24(uint32(vm.CPU.B))
	if err := vm.Memory.Write24(addr, AsUint24(vm.CPU.A)); err != nil {
		return err
	}
	vm.CPU.popA()
	return nil
}

// execSB implements SB: write the low byte of A to [B], then shift.
func (vm *VM) execSB() error {
	addr := Trunc24(uint32(vm.CPU.B))
	if err := vm.Memory.WriteByte(addr, byte(vm.CPU.A)); err != nil {
		return err
	}
	vm.CPU.popA()
	return nil
}

// execPOP implements the stack-pointer POP: read 24 bits from [SP], advance
// SP by 3, then push the value (C<-B, B<-A, A<-value).
func (vm *VM) execPOP() error {
	sp := vm.CPU.SP()
	v, err := vm.Memory.Read24(sp)
	if err != nil {
		return err
	}
	vm.CPU.SetSP(Trunc24(sp + 3))
	vm.CPU.pushA(SignExtend24(v))
	return nil
}

// execPUSH implements the stack-pointer PUSH: decrement SP by 3, write 24
// bits of A to [SP], then shift (A<-B, B<-C).
func (vm *VM) execPUSH() error {
	sp := Trunc24(vm.CPU.SP() - 3)
	vm.CPU.SetSP(sp)
	if err := vm.Memory.Write24(sp, AsUint24(vm.CPU.A)); err != nil {
		return err
	}
	vm.CPU.popA()
	return nil
}

// execLDL implements LDL @k: push then overwrite A with workspace[k].
func (c *CPU) execLDL(k int) {
	c.pushA(c.W[k])
}

// execSTL implements STL @k: write A into workspace[k], then shift (pop).
func (c *CPU) execSTL(k int) {
	c.W[k] = SignExtend24(uint32(c.A))
	c.popA()
}

// branchPredicate evaluates the (B, A) condition for a conditional branch.
func branchPredicate(opcode byte, b, a int32) bool {
	switch opcode {
	case OpBEQ:
		return b == a
	case OpBNE:
		return b != a
	case OpBLT:
		return b < a
	case OpBLTU:
		return uint32(b)&Mask24 < uint32(a)&Mask24
	case OpBGE:
		return b >= a
	case OpBGEU:
		return uint32(b)&Mask24 >= uint32(a)&Mask24
	}
	return false
}

// execCondBranch implements BEQ/BNE/BLT/BLTU/BGE/BGEU. The signed offset
// is relative to base, the address of the offset operand itself. Per the
// project's Open Question decision, A<-C unconditionally follows the
// predicate check regardless of whether the branch is taken.
func (c *CPU) execCondBranch(opcode byte, offset int8, base uint32) {
	taken := branchPredicate(opcode, c.B, c.A)
	if taken {
		c.IPtr = Trunc24(base + uint32(int32(offset)))
	}
	c.A = c.C
}

// execJ implements the unconditional jump, offset relative to the operand
// byte's address.
func (c *CPU) execJ(offset int8, base uint32) {
	c.IPtr = Trunc24(base + uint32(int32(offset)))
}

// execJAL saves IPtr-after-operand into A, then branches relative to the
// operand byte's address.
func (c *CPU) execJAL(offset int8, base, afterOperand uint32) {
	c.A = SignExtend24(afterOperand)
	c.IPtr = Trunc24(base + uint32(int32(offset)))
}

// execJR jumps to A and shifts A<-B, B<-C.
func (c *CPU) execJR() {
	c.IPtr = Trunc24(uint32(c.A))
	c.popA()
}

// execJALR jumps to A and swaps the pre-branch IPtr into A.
func (c *CPU) execJALR(preBranchIPtr uint32) {
	target := Trunc24(uint32(c.A))
	c.A = SignExtend24(preBranchIPtr)
	c.IPtr = target
}

// execIZ pushes a literal 0 or 1.
func (c *CPU) execIZ(v int32) {
	c.pushA(v)
}

// execI pushes a sign-extended 24-bit immediate.
func (c *CPU) execI(raw uint32) {
	c.pushA(SignExtend24(raw))
}

// execU pushes an unsigned byte immediate.
func (c *CPU) execU(b byte) {
	c.pushA(ZeroExtend8(b))
}

// execB pushes a signed byte immediate.
func (c *CPU) execB(b byte) {
	c.pushA(SignExtend8(b))
}

// execAIIP pushes base + sext24(w) mod 2^24, where base is the address of
// the offset operand, the same reference point the branches use.
func (c *CPU) execAIIP(w byte, base uint32) {
	offset := SignExtend8(w)
	c.pushA(SignExtend24(Trunc24(base + uint32(offset))))
}
