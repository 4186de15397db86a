package vm

import (
	"testing"
)

// loadProgram writes raw opcode bytes at address 0 and resets the CPU.
func loadProgram(t *testing.T, machine *VM, program ...byte) {
	t.Helper()
	if err := machine.LoadImage(program); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
}

func step(t *testing.T, machine *VM) uint64 {
	t.Helper()
	cycles, err := machine.Step()
	if err != nil {
		t.Fatalf("Step at ipt=0x%06X: %v", machine.CPU.IPtr, err)
	}
	return cycles
}

func TestStep_NOPChargesFetchDecode(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpNOP)

	cycles := step(t, machine)

	if cycles != 2 {
		t.Errorf("NOP cycles = %d, want 2", cycles)
	}
	if machine.CPU.IPtr != 1 {
		t.Errorf("IPtr = %d, want 1", machine.CPU.IPtr)
	}
}

func TestStep_UnassignedOpcodeIsNoOp(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, 0xFE)
	machine.CPU.A, machine.CPU.B, machine.CPU.C = 1, 2, 3

	cycles := step(t, machine)

	if cycles != 2 {
		t.Errorf("unassigned opcode cycles = %d, want 2 (fetch+decode only)", cycles)
	}
	if machine.CPU.A != 1 || machine.CPU.B != 2 || machine.CPU.C != 3 {
		t.Error("unassigned opcode must not touch the stack cache")
	}
}

func TestStep_CycleAccounting(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		cycles  uint64
	}{
		{"24-bit immediate", []byte{OpI, 0x56, 0x34, 0x12}, 5},
		{"byte immediate", []byte{OpU, 0x80}, 3},
		{"load word", []byte{OpLD}, 5},
		{"load byte", []byte{OpLB}, 3},
		{"store word", []byte{OpST}, 5},
		{"branch", []byte{OpBEQ, 0x10}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM()
			loadProgram(t, machine, tt.program...)

			if got := step(t, machine); got != tt.cycles {
				t.Errorf("cycles = %d, want %d", got, tt.cycles)
			}
		})
	}
}

func TestStackManipulation(t *testing.T) {
	tests := []struct {
		name    string
		opcode  byte
		a, b, c int32
		wantA   int32
		wantB   int32
		wantC   int32
	}{
		{"dup", OpDUP, 1, 2, 3, 1, 1, 2},
		{"swap", OpSWAP, 1, 2, 3, 2, 1, 3},
		{"pop1", OpPOP1, 1, 2, 3, 2, 3, 3},
		{"pop2", OpPOP2, 1, 2, 3, 3, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM()
			loadProgram(t, machine, tt.opcode)
			machine.CPU.A, machine.CPU.B, machine.CPU.C = tt.a, tt.b, tt.c

			step(t, machine)

			if machine.CPU.A != tt.wantA || machine.CPU.B != tt.wantB || machine.CPU.C != tt.wantC {
				t.Errorf("got (%d,%d,%d), want (%d,%d,%d)",
					machine.CPU.A, machine.CPU.B, machine.CPU.C, tt.wantA, tt.wantB, tt.wantC)
			}
		})
	}
}

func TestImmediates(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine,
		OpIZ0,
		OpIZ1,
		OpI, 0xEF, 0xCD, 0xAB, // sign-extended 0xABCDEF
		OpU, 0x80, // unsigned byte
		OpB, 0x80, // signed byte
	)

	step(t, machine)
	if machine.CPU.A != 0 {
		t.Errorf("IZ0: A = %d, want 0", machine.CPU.A)
	}

	step(t, machine)
	if machine.CPU.A != 1 || machine.CPU.B != 0 {
		t.Errorf("IZ1: A = %d B = %d, want 1 0", machine.CPU.A, machine.CPU.B)
	}

	step(t, machine)
	if uint32(machine.CPU.A) != 0xFFABCDEF {
		t.Errorf("I: A = 0x%08X, want 0xFFABCDEF (sign-extended)", uint32(machine.CPU.A))
	}

	step(t, machine)
	if machine.CPU.A != 0x80 {
		t.Errorf("U: A = %d, want 128", machine.CPU.A)
	}

	step(t, machine)
	if machine.CPU.A != -128 {
		t.Errorf("B: A = %d, want -128", machine.CPU.A)
	}
}

func TestLoadsAndStores(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpLD)
	// Place 0x123456 at 0x2000 little-endian.
	if err := machine.Memory.Write24(0x2000, 0x123456); err != nil {
		t.Fatal(err)
	}
	machine.CPU.A = 0x2000
	machine.CPU.B = 7

	step(t, machine)

	if machine.CPU.A != 0x123456 {
		t.Errorf("LD: A = 0x%06X, want 0x123456", machine.CPU.A)
	}
	if machine.CPU.B != 0x2000 || machine.CPU.C != 7 {
		t.Error("LD must push (C<-B, B<-A) before overwriting A")
	}
}

func TestLoadByteSignAndZeroExtend(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpLB, OpLU)
	if err := machine.Memory.WriteByte(0x2000, 0xFF); err != nil {
		t.Fatal(err)
	}

	machine.CPU.A = 0x2000
	step(t, machine)
	if machine.CPU.A != -1 {
		t.Errorf("LB: A = %d, want -1", machine.CPU.A)
	}

	machine.CPU.A = 0x2000
	step(t, machine)
	if machine.CPU.A != 0xFF {
		t.Errorf("LU: A = %d, want 255", machine.CPU.A)
	}
}

func TestStoreWordAndByte(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpST, OpSB)

	machine.CPU.A = 0x123456
	machine.CPU.B = 0x2000
	machine.CPU.C = 9
	step(t, machine)

	v, err := machine.Memory.Read24(0x2000)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x123456 {
		t.Errorf("ST wrote 0x%06X, want 0x123456", v)
	}
	if machine.CPU.A != 0x2000 || machine.CPU.B != 9 {
		t.Error("ST must shift (A<-B, B<-C)")
	}

	machine.CPU.A = 0x1FF
	machine.CPU.B = 0x3000
	step(t, machine)
	b, _ := machine.Memory.ReadByte(0x3000)
	if b != 0xFF {
		t.Errorf("SB wrote 0x%02X, want 0xFF", b)
	}
}

func TestPushPopThroughSP(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpPUSH, OpPOP)
	machine.CPU.SetSP(0x4000)
	machine.CPU.A = SignExtend24(0xABCDEF)
	machine.CPU.B = 5
	machine.CPU.C = 6

	step(t, machine)

	if machine.CPU.SP() != 0x3FFD {
		t.Errorf("PUSH: SP = 0x%06X, want 0x3FFD", machine.CPU.SP())
	}
	if machine.CPU.A != 5 || machine.CPU.B != 6 {
		t.Error("PUSH must shift (A<-B, B<-C)")
	}

	step(t, machine)

	if machine.CPU.SP() != 0x4000 {
		t.Errorf("POP: SP = 0x%06X, want 0x4000", machine.CPU.SP())
	}
	if uint32(machine.CPU.A) != 0xFFABCDEF {
		t.Errorf("POP: A = 0x%08X, want 0xFFABCDEF (sign-extended)", uint32(machine.CPU.A))
	}
	if machine.CPU.B != 5 || machine.CPU.C != 6 {
		t.Error("POP must push the read value (C<-B, B<-A)")
	}
}

func TestWorkspaceOps(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpSTL0+3, OpLDL0+3)
	machine.CPU.A = 0x1234
	machine.CPU.B = 77
	machine.CPU.C = 88

	step(t, machine)

	if machine.CPU.W[3] != 0x1234 {
		t.Errorf("STL: workspace[3] = %d, want 0x1234", machine.CPU.W[3])
	}
	if machine.CPU.A != 77 || machine.CPU.B != 88 {
		t.Error("STL must pop (A<-B, B<-C)")
	}

	step(t, machine)

	if machine.CPU.A != 0x1234 {
		t.Errorf("LDL: A = %d, want 0x1234", machine.CPU.A)
	}
	if machine.CPU.B != 77 || machine.CPU.C != 88 {
		t.Error("LDL must push (C<-B, B<-A)")
	}
}

func TestBranch_OffsetIsRelativeToOperand(t *testing.T) {
	// J at 0 with offset -1 lands back on address 0: the offset is added
	// to the operand byte's own address.
	machine := NewVM()
	loadProgram(t, machine, OpJ, 0xFF)

	step(t, machine)
	if machine.CPU.IPtr != 0 {
		t.Errorf("IPtr = 0x%06X, want 0 (tight self-loop)", machine.CPU.IPtr)
	}

	// The loop is stable: stepping again returns to 0 every time.
	step(t, machine)
	if machine.CPU.IPtr != 0 {
		t.Errorf("IPtr = 0x%06X after second step, want 0", machine.CPU.IPtr)
	}
}

func TestBranch_TakenAndNotTaken(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		a, b   int32
		taken  bool
	}{
		{"beq taken", OpBEQ, 5, 5, true},
		{"beq not taken", OpBEQ, 5, 6, false},
		{"bne taken", OpBNE, 5, 6, true},
		{"blt taken", OpBLT, 5, -1, true},
		{"blt not taken", OpBLT, -1, 5, false},
		{"bltu sign bit is large", OpBLTU, -1, 5, true},
		{"bge taken", OpBGE, -1, 5, true},
		{"bgeu not taken", OpBGEU, -1, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM()
			loadProgram(t, machine, tt.opcode, 0x10)
			machine.CPU.A = tt.a
			machine.CPU.B = tt.b

			step(t, machine)

			want := uint32(2)
			if tt.taken {
				want = 0x11 // operand address 1 + offset 0x10
			}
			if machine.CPU.IPtr != want {
				t.Errorf("IPtr = 0x%06X, want 0x%06X", machine.CPU.IPtr, want)
			}
		})
	}
}

// The shift A<-C happens on every conditional branch, taken or not. This is
// deliberate: do not "fix" it without revisiting the branch contract.
func TestConditionalBranch_NotTakenStillShiftsAC(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpBEQ, 0x10)
	machine.CPU.A = 1
	machine.CPU.B = 2
	machine.CPU.C = 33

	step(t, machine)

	if machine.CPU.IPtr != 2 {
		t.Fatalf("branch must not be taken, IPtr = %d", machine.CPU.IPtr)
	}
	if machine.CPU.A != 33 {
		t.Errorf("A = %d, want 33 (A<-C even when not taken)", machine.CPU.A)
	}
}

func TestJALAndJR(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpJAL, 0x10)
	machine.CPU.C = 7

	step(t, machine)

	// JAL saves IPtr-after-operand (2) and branches from the operand
	// address (1 + 0x10).
	if machine.CPU.A != 2 {
		t.Errorf("JAL: A = %d, want 2 (return address)", machine.CPU.A)
	}
	if machine.CPU.IPtr != 0x11 {
		t.Errorf("JAL: IPtr = 0x%06X, want 0x11", machine.CPU.IPtr)
	}

	machine = NewVM()
	loadProgram(t, machine, OpJR)
	machine.CPU.A = 0x3000
	machine.CPU.B = 4
	machine.CPU.C = 5

	step(t, machine)

	if machine.CPU.IPtr != 0x3000 {
		t.Errorf("JR: IPtr = 0x%06X, want 0x3000", machine.CPU.IPtr)
	}
	if machine.CPU.A != 4 || machine.CPU.B != 5 {
		t.Error("JR must shift (A<-B, B<-C)")
	}
}

func TestJALRSwapsIPtrIntoA(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpJALR)
	machine.CPU.A = 0x3000

	step(t, machine)

	if machine.CPU.IPtr != 0x3000 {
		t.Errorf("JALR: IPtr = 0x%06X, want 0x3000", machine.CPU.IPtr)
	}
	if machine.CPU.A != 1 {
		t.Errorf("JALR: A = %d, want 1 (pre-branch IPtr)", machine.CPU.A)
	}
}

func TestAIIP(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpAIIP, 0x10)

	step(t, machine)

	// Offset is relative to the operand address, like the branches.
	if machine.CPU.A != 0x11 {
		t.Errorf("AIIP: A = 0x%06X, want 0x11", machine.CPU.A)
	}
}

func TestHLT_FurtherStepsAreFree(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpHLT)

	step(t, machine)
	if !machine.CPU.Halted {
		t.Fatal("HLT must set the halted flag")
	}

	cycles := step(t, machine)
	if cycles != 0 {
		t.Errorf("halted step cycles = %d, want 0", cycles)
	}
}

func TestRun_StopFlagIsCooperative(t *testing.T) {
	machine := NewVM()
	// Tight self-loop that never halts.
	loadProgram(t, machine, OpJ, 0xFF)

	steps := 0
	err := machine.Run(func() bool {
		steps++
		return steps > 10
	})

	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if steps != 11 {
		t.Errorf("stop polled %d times, want 11 (once per boundary)", steps)
	}
}

func TestRun_CycleLimit(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpJ, 0xFF)
	machine.MaxCycles = 10

	if err := machine.Run(nil); err == nil {
		t.Error("expected cycle-limit error")
	}
}

func TestStep_UnmappedAddressFaults(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpLD)
	machine.CPU.A = SignExtend24(0xD00000) // hole between RAM and VRAM

	if _, err := machine.Step(); err == nil {
		t.Error("expected unmapped-memory fault")
	}
}

func TestVMReset(t *testing.T) {
	machine := NewVM()
	loadProgram(t, machine, OpHLT)
	machine.CPU.A = 42
	step(t, machine)

	machine.Reset()

	if machine.CPU.A != 0 || machine.CPU.Halted || machine.CPU.IPtr != 0 {
		t.Error("Reset must return the CPU to power-on state")
	}

	// Memory survives reset so the image can re-run.
	b, err := machine.Memory.ReadByte(0)
	if err != nil {
		t.Fatal(err)
	}
	if b != OpHLT {
		t.Error("Reset must leave memory contents alone")
	}
}
