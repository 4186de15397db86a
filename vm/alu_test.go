package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestALU_BinaryOps(t *testing.T) {
	tests := []struct {
		name    string
		op      func(*CPU)
		a, b, c int32
		want    int32
	}{
		{"add", (*CPU).execADD, 7, 5, 99, 12},
		{"add wraps at 2^24", (*CPU).execADD, 1, 0x7FFFFF, 0, -0x800000},
		{"sub", (*CPU).execSUB, 5, 12, 0, 7},
		{"sub negative result", (*CPU).execSUB, 12, 5, 0, -7},
		{"mul", (*CPU).execMUL, 3, -4, 0, -12},
		{"mul masks to 24 bits", (*CPU).execMUL, 0x1000, 0x1000, 0, 0},
		{"div", (*CPU).execDIV, 4, 13, 0, 3},
		{"div truncates toward zero", (*CPU).execDIV, 4, -13, 0, -3},
		{"rem", (*CPU).execREM, 4, 13, 0, 1},
		{"and", (*CPU).execAND, 0x0F0, 0xFF0, 0, 0x0F0},
		{"or", (*CPU).execOR, 0x00F, 0xF00, 0, 0xF0F},
		{"xor", (*CPU).execXOR, 0x0FF, 0xFF0, 0, 0xF0F},
		{"slt true", (*CPU).execSLT, 5, -1, 0, 1},
		{"slt false", (*CPU).execSLT, -1, 5, 0, 0},
		{"sltu treats sign bit as large", (*CPU).execSLTU, -1, 5, 0, 1},
		{"sltu false", (*CPU).execSLTU, 5, -1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := NewCPU()
			cpu.A, cpu.B, cpu.C = tt.a, tt.b, tt.c

			tt.op(cpu)

			assert.Equal(t, tt.want, cpu.A, "result in A")
			assert.Equal(t, tt.c, cpu.B, "B must be popped down from C")
			assert.Equal(t, tt.c, cpu.C, "C is unchanged")
		})
	}
}

func TestALU_DivideByZeroRaisesInterrupt(t *testing.T) {
	cpu := NewCPU()
	cpu.A, cpu.B = 0, 42

	cpu.execDIV()

	assert.Equal(t, int32(0), cpu.A)
	assert.NotZero(t, cpu.Mip&(1<<IntDivZero), "divide-by-zero must be pending")

	cpu = NewCPU()
	cpu.A, cpu.B = 0, 42
	cpu.execREM()
	assert.NotZero(t, cpu.Mip&(1<<IntDivZero))
}

func TestALU_UnaryOps(t *testing.T) {
	tests := []struct {
		name string
		op   func(*CPU)
		a    int32
		want int32
	}{
		{"inc", (*CPU).execINC, 41, 42},
		{"inc wraps", (*CPU).execINC, 0x7FFFFF, -0x800000},
		{"dec", (*CPU).execDEC, 42, 41},
		{"dec wraps", (*CPU).execDEC, -0x800000, 0x7FFFFF},
		{"neg", (*CPU).execNEG, 5, -5},
		{"inv", (*CPU).execINV, 0, -1},
		{"i2b sign-extends the low byte", (*CPU).execI2B, 0x1FF, -1},
		{"i2b positive byte", (*CPU).execI2B, 0x17F, 0x7F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := NewCPU()
			cpu.A, cpu.B, cpu.C = tt.a, 11, 22

			tt.op(cpu)

			assert.Equal(t, tt.want, cpu.A)
			assert.Equal(t, int32(11), cpu.B, "unary ops leave B alone")
			assert.Equal(t, int32(22), cpu.C, "unary ops leave C alone")
		})
	}
}

func TestALU_Shifts(t *testing.T) {
	tests := []struct {
		name   string
		op     func(*CPU, uint)
		amount uint
		a      int32
		want   int32
	}{
		{"sll1", (*CPU).execSLL, 1, 1, 2},
		{"sll4", (*CPU).execSLL, 4, 1, 16},
		{"sll shifts into the sign bit", (*CPU).execSLL, 1, 0x400000, -0x800000},
		{"srl1", (*CPU).execSRL, 1, 8, 4},
		{"srl on negative is logical", (*CPU).execSRL, 1, -2, 0x7FFFFF},
		{"sra1 preserves bit 23", (*CPU).execSRA, 1, -2, -1},
		{"sra4 positive", (*CPU).execSRA, 4, 0x100, 0x10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := NewCPU()
			cpu.A = tt.a

			tt.op(cpu, tt.amount)

			assert.Equal(t, tt.want, cpu.A)
		})
	}
}

func TestSignExtend24_FlipsAtBit23(t *testing.T) {
	assert.Equal(t, int32(0x7FFFFF), SignExtend24(0x7FFFFF))
	assert.Equal(t, int32(-0x800000), SignExtend24(0x800000))
	assert.Equal(t, int32(-1), SignExtend24(0xFFFFFF))
	assert.Equal(t, int32(0), SignExtend24(0x1000000), "bit 24 is discarded")
}

func TestTrunc24(t *testing.T) {
	assert.Equal(t, uint32(0), Trunc24(0x1000000))
	assert.Equal(t, uint32(0xFFFFFF), Trunc24(0xFFFFFF))
	assert.Equal(t, uint32(2), Trunc24(0x1000002))
}
