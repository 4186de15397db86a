package vm

// Memory map, per the default system description (spec §6).
const (
	RAMStart   = 0x000000
	RAMEnd     = 0x9FFFFF
	VRAMStart  = 0xE00000
	VRAMEnd    = 0xEFFFFF
	TimerBase  = 0xF00000
	TimerSize  = 8
	TrapVector = 0x000002
)

// Workspace layout. Slot 15 is the stack pointer by convention; slots
// 11..14 are the interrupt dispatcher's C/B/A/IPtr save area.
const (
	WorkspaceSize = 16
	SlotSP        = 15
	SlotSaveC     = 11
	SlotSaveB     = 12
	SlotSaveA     = 13
	SlotSaveIPtr  = 14
)

// Interrupt-pending/enable bit positions, highest priority first.
const (
	IntSoftware = iota
	IntTimer
	IntExternal
	IntDivZero
	IntSyscall
)

// interruptPriority lists the mip bits in service order, per spec §4.8.
var interruptPriority = []int{IntSoftware, IntTimer, IntExternal, IntDivZero, IntSyscall}

// Default opcode byte assignment for the built-in R824 architecture. The
// assembler's default rule table and this decode table must agree on these
// values; a custom `.arch` swap supplies its own rule table and the decoder
// falls back to its generic bit-emission form (see Decode).
const (
	OpNOP   = 0x00
	OpDUP   = 0x01
	OpSWAP  = 0x02
	OpPOP1  = 0x03
	OpPOP2  = 0x04
	OpADD   = 0x05
	OpSUB   = 0x06
	OpMUL   = 0x07
	OpDIV   = 0x08
	OpREM   = 0x09
	OpAND   = 0x0A
	OpOR    = 0x0B
	OpXOR   = 0x0C
	OpINC   = 0x0D
	OpDEC   = 0x0E
	OpNEG   = 0x0F
	OpINV   = 0x10
	OpI2B   = 0x11
	OpSLL1  = 0x12
	OpSLL4  = 0x15
	OpSRL1  = 0x16
	OpSRL4  = 0x19
	OpSRA1  = 0x1A
	OpSRA4  = 0x1D
	OpSLT   = 0x1E
	OpSLTU  = 0x1F
	OpLD    = 0x20
	OpLB    = 0x21
	OpLU    = 0x22
	OpST    = 0x23
	OpSB    = 0x24
	OpPOP   = 0x25
	OpPUSH  = 0x26
	OpBEQ   = 0x27
	OpBNE   = 0x28
	OpBLT   = 0x29
	OpBLTU  = 0x2A
	OpBGE   = 0x2B
	OpBGEU  = 0x2C
	OpJ     = 0x2D
	OpJAL   = 0x2E
	OpJR    = 0x2F
	OpJALR  = 0x30
	OpIZ0   = 0x31
	OpIZ1   = 0x32
	OpI     = 0x33
	OpU     = 0x34
	OpB     = 0x35
	OpAIIP  = 0x36
	OpLDL0  = 0x40
	OpLDL15 = 0x4F
	OpSTL0  = 0x50
	OpSTL15 = 0x5F
	OpEI    = 0x60
	OpDI    = 0x61
	OpSETI  = 0x62
	OpCLRI  = 0x63
	OpIRET  = 0x64
	OpECALL = 0x65
	OpEBRK  = 0x66
	OpHLT   = 0x67
)

// Environment-call numbers, dispatched on A per spec §4.7.
const (
	SysExit        = 0
	SysRegDump     = 1
	SysMemDump     = 2
	SysPrintInt    = 3
	SysPrintChar   = 4
	SysReadChar    = 5
	SysPrintString = 6
	SysReadString  = 7
)

// IOErrorSentinel is returned in A when an ecall's side-channel I/O fails;
// the guest sees it as -1 and reacts, per spec §7.
const IOErrorSentinel = -1
