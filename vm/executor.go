package vm

import "fmt"

// VM composes a CPU, a memory map and the host-provided side channels
// (console, breakpoint hook) into a runnable R824 machine. It mirrors the
// teacher's top-level VM struct in shape: CPU and Memory are owned
// exclusively by the interpreter thread for the duration of a Step, per
// spec §5.
type VM struct {
	CPU    *CPU
	Memory *MemoryMap
	Timer  *Timer

	Console Console

	// BreakHook is invoked when EBREAK executes or the software interrupt
	// is serviced, per spec §4.6/§4.8. A nil hook means no effect.
	BreakHook func(ipTr uint32)

	MaxCycles uint64
	ExitCode  int32
}

// Layout describes the memory-map bases and sizes a VM is built with. The
// zero value of any field falls back to the default system layout (spec §6).
type Layout struct {
	RAMSize   uint32
	VRAMBase  uint32
	VRAMSize  uint32
	TimerBase uint32
}

// DefaultLayout is the default system description of spec §6.
func DefaultLayout() Layout {
	return Layout{
		RAMSize:   RAMEnd - RAMStart + 1,
		VRAMBase:  VRAMStart,
		VRAMSize:  VRAMEnd - VRAMStart + 1,
		TimerBase: TimerBase,
	}
}

// NewVM wires a CPU, a memory map containing RAM/VRAM/timer regions per the
// default system description (spec §6), and a fresh timer device.
func NewVM() *VM {
	return NewVMWithLayout(DefaultLayout())
}

// NewVMWithLayout builds a VM with an overridden memory layout; zero fields
// in l take their default values.
func NewVMWithLayout(l Layout) *VM {
	def := DefaultLayout()
	if l.RAMSize == 0 {
		l.RAMSize = def.RAMSize
	}
	if l.VRAMBase == 0 {
		l.VRAMBase = def.VRAMBase
	}
	if l.VRAMSize == 0 {
		l.VRAMSize = def.VRAMSize
	}
	if l.TimerBase == 0 {
		l.TimerBase = def.TimerBase
	}

	timer := NewTimer()
	mm := NewMemoryMap()
	mm.AddRegion("ram", RAMStart, l.RAMSize, NewRAM(l.RAMSize))
	mm.AddRegion("vram", l.VRAMBase, l.VRAMSize, NewRAM(l.VRAMSize))
	mm.AddRegion("timer", l.TimerBase, TimerSize, timer)

	return &VM{
		CPU:    NewCPU(),
		Memory: mm,
		Timer:  timer,
	}
}

// LoadImage loads a binary image into the RAM region starting at address 0
// and resets the CPU so IPtr starts at 0.
func (vm *VM) LoadImage(image []byte) error {
	r, err := vm.Memory.find(RAMStart)
	if err != nil {
		return err
	}
	ram, ok := r.Device.(*RAM)
	if !ok {
		return fmt.Errorf("RAM region is not backed by a RAM device")
	}
	if err := ram.LoadImage(image); err != nil {
		return err
	}
	vm.CPU.Reset()
	return nil
}

// Reset returns the CPU and timer to their power-on state. Memory contents
// are left alone so a loaded image can be re-run from IPtr 0.
func (vm *VM) Reset() {
	vm.CPU.Reset()
	vm.Timer.Reset()
	vm.ExitCode = 0
}

func (vm *VM) fetchByte() (byte, error) {
	b, err := vm.Memory.ReadByte(vm.CPU.IPtr)
	if err != nil {
		return 0, err
	}
	vm.CPU.AdvanceIPtr(1)
	return b, nil
}

// Step executes exactly one instruction, or does nothing if the CPU is
// halted. It returns the number of cycles charged (0 when halted). A
// non-nil error means a runtime fault occurred (unmapped memory, per spec
// §7) and the caller should stop the run loop.
func (vm *VM) Step() (uint64, error) {
	if vm.CPU.Halted {
		return 0, nil
	}

	opcode, err := vm.fetchByte()
	if err != nil {
		return 0, err
	}

	cycles := uint64(2) // fetch + decode
	extra, err := vm.execute(opcode)
	if err != nil {
		return 0, err
	}
	cycles += extra

	vm.CPU.Cycles += cycles
	if vm.Timer.Advance(cycles) {
		vm.CPU.RaiseInterrupt(IntTimer)
	}

	if err := vm.serviceInterrupt(); err != nil {
		return cycles, err
	}

	return cycles, nil
}

// execute dispatches on the full opcode byte and returns the number of
// extra memory-access cycles beyond the fixed fetch+decode charge, per
// spec §4.6. Unassigned slots fall to the default case and charge nothing
// extra, per spec §1's Non-goal.
func (vm *VM) execute(opcode byte) (uint64, error) {
	c := vm.CPU

	switch {
	case opcode == OpNOP:
		return 0, nil
	case opcode == OpDUP:
		c.execDUP()
		return 0, nil
	case opcode == OpSWAP:
		c.execSWAP()
		return 0, nil
	case opcode == OpPOP1:
		c.execPOP1()
		return 0, nil
	case opcode == OpPOP2:
		c.execPOP2()
		return 0, nil

	case opcode == OpADD:
		c.execADD()
		return 0, nil
	case opcode == OpSUB:
		c.execSUB()
		return 0, nil
	case opcode == OpMUL:
		c.execMUL()
		return 0, nil
	case opcode == OpDIV:
		c.execDIV()
		return 0, nil
	case opcode == OpREM:
		c.execREM()
		return 0, nil
	case opcode == OpAND:
		c.execAND()
		return 0, nil
	case opcode == OpOR:
		c.execOR()
		return 0, nil
	case opcode == OpXOR:
		c.execXOR()
		return 0, nil
	case opcode == OpINC:
		c.execINC()
		return 0, nil
	case opcode == OpDEC:
		c.execDEC()
		return 0, nil
	case opcode == OpNEG:
		c.execNEG()
		return 0, nil
	case opcode == OpINV:
		c.execINV()
		return 0, nil
	case opcode == OpI2B:
		c.execI2B()
		return 0, nil
	case opcode >= OpSLL1 && opcode <= OpSLL4:
		c.execSLL(shiftAmount(opcode, OpSLL1))
		return 0, nil
	case opcode >= OpSRL1 && opcode <= OpSRL4:
		c.execSRL(shiftAmount(opcode, OpSRL1))
		return 0, nil
	case opcode >= OpSRA1 && opcode <= OpSRA4:
		c.execSRA(shiftAmount(opcode, OpSRA1))
		return 0, nil
	case opcode == OpSLT:
		c.execSLT()
		return 0, nil
	case opcode == OpSLTU:
		c.execSLTU()
		return 0, nil

	case opcode == OpLD:
		return 3, vm.execLD()
	case opcode == OpLB:
		return 1, vm.execLB()
	case opcode == OpLU:
		return 1, vm.execLU()
	case opcode == OpST:
		return 3, vm.execST()
	case opcode == OpSB:
		return 1, vm.execSB()
	case opcode == OpPOP:
		return 3, vm.execPOP()
	case opcode == OpPUSH:
		return 3, vm.execPUSH()

	case opcode >= OpBEQ && opcode <= OpBGEU:
		base := c.IPtr
		offset, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execCondBranch(opcode, int8(offset), base)
		return 1, nil
	case opcode == OpJ:
		base := c.IPtr
		offset, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execJ(int8(offset), base)
		return 1, nil
	case opcode == OpJAL:
		base := c.IPtr
		offset, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execJAL(int8(offset), base, c.IPtr)
		return 1, nil
	case opcode == OpJR:
		c.execJR()
		return 0, nil
	case opcode == OpJALR:
		pre := c.IPtr
		c.execJALR(pre)
		return 0, nil

	case opcode == OpIZ0:
		c.execIZ(0)
		return 0, nil
	case opcode == OpIZ1:
		c.execIZ(1)
		return 0, nil
	case opcode == OpI:
		var raw uint32
		for i := 0; i < 3; i++ {
			b, err := vm.fetchByte()
			if err != nil {
				return uint64(i), err
			}
			raw |= uint32(b) << (8 * i)
		}
		c.execI(raw)
		return 3, nil
	case opcode == OpU:
		b, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execU(b)
		return 1, nil
	case opcode == OpB:
		b, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execB(b)
		return 1, nil
	case opcode == OpAIIP:
		base := c.IPtr
		b, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.execAIIP(b, base)
		return 1, nil

	case opcode >= OpLDL0 && opcode <= OpLDL15:
		c.execLDL(int(opcode - OpLDL0))
		return 0, nil
	case opcode >= OpSTL0 && opcode <= OpSTL15:
		c.execSTL(int(opcode - OpSTL0))
		return 0, nil

	case opcode == OpEI:
		c.MIE = true
		return 0, nil
	case opcode == OpDI:
		c.MIE = false
		return 0, nil
	case opcode == OpSETI:
		mask, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.EnableInterrupt(mask & 0x07)
		return 1, nil
	case opcode == OpCLRI:
		mask, err := vm.fetchByte()
		if err != nil {
			return 1, err
		}
		c.DisableInterrupt(mask & 0x07)
		return 1, nil
	case opcode == OpIRET:
		c.iret()
		return 0, nil

	case opcode == OpECALL:
		return 0, vm.ecall()
	case opcode == OpEBRK:
		if vm.BreakHook != nil {
			vm.BreakHook(c.IPtr)
		}
		return 0, nil
	case opcode == OpHLT:
		c.Halted = true
		return 0, nil

	default:
		return 0, nil
	}
}

// Run executes instructions until halted, a cycle limit is reached, a
// runtime fault occurs, or stop reports true. stop is polled once per
// instruction boundary, per spec §5's cooperative-cancellation model.
func (vm *VM) Run(stop func() bool) error {
	for {
		if stop != nil && stop() {
			return nil
		}
		if vm.CPU.Halted {
			return nil
		}
		if vm.MaxCycles != 0 && vm.CPU.Cycles >= vm.MaxCycles {
			return fmt.Errorf("cycle limit of %d exceeded", vm.MaxCycles)
		}
		if _, err := vm.Step(); err != nil {
			return err
		}
	}
}
