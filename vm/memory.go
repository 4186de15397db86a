package vm

import "fmt"

// Device is anything that can be mapped into the address space: a ReadByte
// and WriteByte pair addressed by an offset relative to the region's start.
type Device interface {
	ReadByte(offset uint32) (byte, error)
	WriteByte(offset uint32, v byte) error
	Size() uint32
}

// Region is a single (start, size, device) mapping.
type Region struct {
	Name   string
	Start  uint32
	Size   uint32
	Device Device
}

func (r *Region) contains(addr uint32) bool {
	return addr >= r.Start && addr < r.Start+r.Size
}

// MemoryMap is the set of non-overlapping regions an address dispatches
// through, per spec §4.9. Regions are checked in registration order; the
// first containing region wins, so callers should register more specific
// regions (like the timer) before broad catch-alls.
type MemoryMap struct {
	regions []*Region
}

// NewMemoryMap returns an empty map with no regions registered.
func NewMemoryMap() *MemoryMap {
	return &MemoryMap{}
}

// AddRegion registers a new region. It does not check for overlap with
// existing regions; the caller is responsible for a consistent layout.
func (m *MemoryMap) AddRegion(name string, start, size uint32, dev Device) {
	m.regions = append(m.regions, &Region{Name: name, Start: start, Size: size, Device: dev})
}

func (m *MemoryMap) find(addr uint32) (*Region, error) {
	for _, r := range m.regions {
		if r.contains(addr) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("unmapped memory access at 0x%06X", addr)
}

// ReadByte reads a single byte, faulting hard on an unmapped address.
func (m *MemoryMap) ReadByte(addr uint32) (byte, error) {
	r, err := m.find(addr)
	if err != nil {
		return 0, err
	}
	return r.Device.ReadByte(addr - r.Start)
}

// WriteByte writes a single byte, faulting hard on an unmapped address.
func (m *MemoryMap) WriteByte(addr uint32, v byte) error {
	r, err := m.find(addr)
	if err != nil {
		return err
	}
	return r.Device.WriteByte(addr-r.Start, v)
}

// Read24 reads a little-endian 24-bit value starting at addr.
func (m *MemoryMap) Read24(addr uint32) (uint32, error) {
	var v uint32
	for i := uint32(0); i < 3; i++ {
		b, err := m.ReadByte(Trunc24(addr + i))
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// Write24 writes a little-endian 24-bit value starting at addr.
func (m *MemoryMap) Write24(addr, v uint32) error {
	for i := uint32(0); i < 3; i++ {
		if err := m.WriteByte(Trunc24(addr+i), byte(v>>(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// RAM is a flat, read-write byte array backing device.
type RAM struct {
	data []byte
}

// NewRAM allocates a zeroed RAM device of the given size.
func NewRAM(size uint32) *RAM {
	return &RAM{data: make([]byte, size)}
}

func (r *RAM) Size() uint32 { return uint32(len(r.data)) }

func (r *RAM) ReadByte(offset uint32) (byte, error) {
	if offset >= uint32(len(r.data)) {
		return 0, fmt.Errorf("RAM read out of range at offset 0x%06X", offset)
	}
	return r.data[offset], nil
}

func (r *RAM) WriteByte(offset uint32, v byte) error {
	if offset >= uint32(len(r.data)) {
		return fmt.Errorf("RAM write out of range at offset 0x%06X", offset)
	}
	r.data[offset] = v
	return nil
}

// LoadImage copies a binary image into RAM starting at offset 0.
func (r *RAM) LoadImage(image []byte) error {
	if len(image) > len(r.data) {
		return fmt.Errorf("image of %d bytes does not fit in %d bytes of RAM", len(image), len(r.data))
	}
	copy(r.data, image)
	return nil
}

// ROM is read-only: writes are ignored with a diagnostic rather than faulting.
type ROM struct {
	data     []byte
	Warnings []string
}

// NewROM creates a ROM device pre-loaded with the given contents.
func NewROM(data []byte) *ROM {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &ROM{data: buf}
}

func (r *ROM) Size() uint32 { return uint32(len(r.data)) }

func (r *ROM) ReadByte(offset uint32) (byte, error) {
	if offset >= uint32(len(r.data)) {
		return 0, fmt.Errorf("ROM read out of range at offset 0x%06X", offset)
	}
	return r.data[offset], nil
}

func (r *ROM) WriteByte(offset uint32, _ byte) error {
	r.Warnings = append(r.Warnings, fmt.Sprintf("ignored write to read-only memory at offset 0x%06X", offset))
	return nil
}
