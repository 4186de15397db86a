package vm

import "strconv"

// CPU holds the architectural state of an R824 core: the three-register
// stack cache, the sixteen-slot workspace, the instruction pointer and the
// interrupt control bits. Stack-cache values are stored sign-extended in
// 32-bit Go ints; only the low 24 bits are architecturally meaningful.
type CPU struct {
	A, B, C int32
	W       [WorkspaceSize]int32
	IPtr    uint32

	Halted bool
	MIE    bool
	Mip    uint8
	Mie    uint8

	Cycles uint64

	// servicing records which interrupt cause is currently being handled,
	// so IRET knows which pending bit to clear and whether to restore
	// state. -1 means no interrupt is in service.
	servicing int
}

// NewCPU returns a CPU with all state zeroed and no interrupt in service.
func NewCPU() *CPU {
	cpu := &CPU{servicing: -1}
	return cpu
}

// Reset returns the CPU to its power-on state.
func (c *CPU) Reset() {
	c.A, c.B, c.C = 0, 0, 0
	c.W = [WorkspaceSize]int32{}
	c.IPtr = 0
	c.Halted = false
	c.MIE = false
	c.Mip = 0
	c.Mie = 0
	c.Cycles = 0
	c.servicing = -1
}

// SP returns the current stack pointer, held in workspace slot 15.
func (c *CPU) SP() uint32 {
	return AsUint24(c.W[SlotSP])
}

// SetSP writes the stack pointer, truncating to 24 bits.
func (c *CPU) SetSP(v uint32) {
	c.W[SlotSP] = SignExtend24(v)
}

// AdvanceIPtr moves IPtr forward by n bytes, wrapping modulo 2^24.
func (c *CPU) AdvanceIPtr(n uint32) {
	c.IPtr = Trunc24(c.IPtr + n)
}

// pushA shifts C<-B, B<-A, then sets A to x. This is the shared
// push-discipline helper spec §9 calls for.
func (c *CPU) pushA(x int32) {
	c.C = c.B
	c.B = c.A
	c.A = x
}

// popA shifts A<-B, B<-C, leaving C unchanged (the caller overwrote it, or
// it is architecturally don't-care on a pop of one element).
func (c *CPU) popA() {
	c.A = c.B
	c.B = c.C
}

// IsServicing reports the interrupt cause currently being handled, or -1.
func (c *CPU) IsServicing() int {
	return c.servicing
}

// NumRegs is the size of the flat register-index space GetReg/SetReg
// address: A, B, C, then the 16 workspace slots.
const NumRegs = 3 + WorkspaceSize

// GetReg reads register idx from the flat index space used by the
// debugger and inspection API: 0=A, 1=B, 2=C, 3..18=workspace[0..15]. An
// out-of-range index reads as zero.
func (c *CPU) GetReg(idx int) int32 {
	switch idx {
	case 0:
		return c.A
	case 1:
		return c.B
	case 2:
		return c.C
	default:
		wi := idx - 3
		if wi >= 0 && wi < WorkspaceSize {
			return c.W[wi]
		}
		return 0
	}
}

// SetReg writes register idx in the same flat index space as GetReg. An
// out-of-range index is ignored.
func (c *CPU) SetReg(idx int, v int32) {
	switch idx {
	case 0:
		c.A = v
	case 1:
		c.B = v
	case 2:
		c.C = v
	default:
		wi := idx - 3
		if wi >= 0 && wi < WorkspaceSize {
			c.W[wi] = v
		}
	}
}

// RegName returns the canonical lower-case name for a flat register index,
// per GetReg/SetReg's indexing: "a", "b", "c", "w0".."w15".
func RegName(idx int) string {
	switch idx {
	case 0:
		return "a"
	case 1:
		return "b"
	case 2:
		return "c"
	default:
		wi := idx - 3
		if wi >= 0 && wi < WorkspaceSize {
			return "w" + strconv.Itoa(wi)
		}
		return "?"
	}
}

// RegIndex parses a register name ("a", "b", "c", "w0".."w15", case
// insensitive) into its flat GetReg/SetReg index.
func RegIndex(name string) (int, bool) {
	switch name {
	case "a", "A":
		return 0, true
	case "b", "B":
		return 1, true
	case "c", "C":
		return 2, true
	}
	if len(name) >= 2 && (name[0] == 'w' || name[0] == 'W') {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n < WorkspaceSize {
			return 3 + n, true
		}
	}
	return 0, false
}
