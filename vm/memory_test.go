package vm

import (
	"strings"
	"testing"
)

func TestMemoryMap_DispatchesToRegion(t *testing.T) {
	mm := NewMemoryMap()
	mm.AddRegion("low", 0x000, 0x100, NewRAM(0x100))
	mm.AddRegion("high", 0x200, 0x100, NewRAM(0x100))

	if err := mm.WriteByte(0x210, 0xAB); err != nil {
		t.Fatal(err)
	}

	b, err := mm.ReadByte(0x210)
	if err != nil {
		t.Fatal(err)
	}
	if b != 0xAB {
		t.Errorf("read 0x%02X, want 0xAB", b)
	}

	// The same offset in the other region is untouched.
	b, err = mm.ReadByte(0x010)
	if err != nil {
		t.Fatal(err)
	}
	if b != 0 {
		t.Errorf("low region read 0x%02X, want 0", b)
	}
}

func TestMemoryMap_UnmappedIsHardFault(t *testing.T) {
	mm := NewMemoryMap()
	mm.AddRegion("ram", 0x000, 0x100, NewRAM(0x100))

	if _, err := mm.ReadByte(0x500); err == nil {
		t.Error("expected fault reading unmapped address")
	}
	if err := mm.WriteByte(0x500, 1); err == nil {
		t.Error("expected fault writing unmapped address")
	}
}

func TestMemoryMap_Read24LittleEndian(t *testing.T) {
	mm := NewMemoryMap()
	mm.AddRegion("ram", 0, 0x100, NewRAM(0x100))

	for i, b := range []byte{0x56, 0x34, 0x12} {
		if err := mm.WriteByte(uint32(i), b); err != nil {
			t.Fatal(err)
		}
	}

	v, err := mm.Read24(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x123456 {
		t.Errorf("Read24 = 0x%06X, want 0x123456", v)
	}
}

func TestMemoryMap_Write24RoundTrip(t *testing.T) {
	mm := NewMemoryMap()
	mm.AddRegion("ram", 0, 0x100, NewRAM(0x100))

	if err := mm.Write24(0x10, 0xABCDEF); err != nil {
		t.Fatal(err)
	}

	v, err := mm.Read24(0x10)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xABCDEF {
		t.Errorf("round trip = 0x%06X, want 0xABCDEF", v)
	}

	// Bytes land low-first.
	b, _ := mm.ReadByte(0x10)
	if b != 0xEF {
		t.Errorf("low byte = 0x%02X, want 0xEF", b)
	}
}

func TestROM_WritesIgnoredWithDiagnostic(t *testing.T) {
	rom := NewROM([]byte{1, 2, 3})

	if err := rom.WriteByte(1, 0xFF); err != nil {
		t.Fatalf("ROM write must not fault: %v", err)
	}

	b, err := rom.ReadByte(1)
	if err != nil {
		t.Fatal(err)
	}
	if b != 2 {
		t.Errorf("ROM contents changed: got %d, want 2", b)
	}

	if len(rom.Warnings) != 1 || !strings.Contains(rom.Warnings[0], "read-only") {
		t.Errorf("expected one read-only diagnostic, got %v", rom.Warnings)
	}
}

func TestRAM_LoadImage(t *testing.T) {
	ram := NewRAM(8)

	if err := ram.LoadImage([]byte{9, 8, 7}); err != nil {
		t.Fatal(err)
	}
	b, _ := ram.ReadByte(0)
	if b != 9 {
		t.Errorf("got %d, want 9", b)
	}

	if err := ram.LoadImage(make([]byte, 16)); err == nil {
		t.Error("expected error for an image larger than RAM")
	}
}

func TestDefaultLayoutRegions(t *testing.T) {
	machine := NewVM()

	// RAM, VRAM and the timer respond; the gap between them faults.
	if err := machine.Memory.WriteByte(RAMStart, 1); err != nil {
		t.Errorf("RAM write: %v", err)
	}
	if err := machine.Memory.WriteByte(VRAMStart, 1); err != nil {
		t.Errorf("VRAM write: %v", err)
	}
	if err := machine.Memory.WriteByte(TimerBase, 1); err != nil {
		t.Errorf("timer write: %v", err)
	}
	if _, err := machine.Memory.ReadByte(0xA00000); err == nil {
		t.Error("expected fault in the unmapped gap")
	}
}
