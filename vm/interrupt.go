package vm

// RaiseInterrupt sets the pending bit for cause, to be observed at the next
// instruction boundary (spec §5: the check happens exactly once between
// instructions, never mid-instruction).
func (c *CPU) RaiseInterrupt(cause int) {
	c.Mip |= 1 << uint(cause)
}

// EnableInterrupt / DisableInterrupt set or clear a bit of mie (SETI/CLRI
// only touch the low three bits per spec §4.6; callers mask accordingly).
func (c *CPU) EnableInterrupt(mask uint8) {
	c.Mie |= mask
}

func (c *CPU) DisableInterrupt(mask uint8) {
	c.Mie &^= mask
}

// pendingCause returns the highest-priority cause that is both pending and
// enabled, or -1 if none.
func (c *CPU) pendingCause() int {
	if !c.MIE {
		return -1
	}
	active := c.Mip & c.Mie
	if active == 0 {
		return -1
	}
	for _, cause := range interruptPriority {
		if active&(1<<uint(cause)) != 0 {
			return cause
		}
	}
	return -1
}

// serviceInterrupt is invoked once per instruction boundary. It implements
// spec §4.8: clear MIE, pick the highest-priority pending&enabled cause,
// invoke the breakpoint hook for a software interrupt without saving state,
// otherwise save C/B/A/IPtr into the workspace save area, run the ecall
// handler for a system-call cause, and branch to the trap vector.
func (vm *VM) serviceInterrupt() error {
	cause := vm.CPU.pendingCause()
	if cause < 0 {
		return nil
	}

	vm.CPU.MIE = false
	vm.CPU.servicing = cause

	if cause == IntSoftware {
		if vm.BreakHook != nil {
			vm.BreakHook(vm.CPU.IPtr)
		}
		return nil
	}

	vm.CPU.W[SlotSaveC] = vm.CPU.C
	vm.CPU.W[SlotSaveB] = vm.CPU.B
	vm.CPU.W[SlotSaveA] = vm.CPU.A
	vm.CPU.W[SlotSaveIPtr] = SignExtend24(vm.CPU.IPtr)

	if cause == IntSyscall {
		if err := vm.ecall(); err != nil {
			return err
		}
	}

	vm.CPU.IPtr = TrapVector
	return nil
}

// iret implements the IRET opcode: clear the pending bit for the interrupt
// currently in service, restore C/B/A/IPtr from the save area unless the
// serviced cause was the software interrupt, then re-enable MIE.
func (c *CPU) iret() {
	cause := c.servicing
	if cause < 0 {
		c.MIE = true
		return
	}
	c.Mip &^= 1 << uint(cause)
	if cause != IntSoftware {
		c.C = c.W[SlotSaveC]
		c.B = c.W[SlotSaveB]
		c.A = c.W[SlotSaveA]
		c.IPtr = AsUint24(c.W[SlotSaveIPtr])
	}
	c.servicing = -1
	c.MIE = true
}
