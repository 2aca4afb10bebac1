package emu

import "sort"

// GBA memory map.
const (
	BIOSBase  uint32 = 0x00000000
	BIOSSize  uint32 = 16 * 1024 // 16KB boot firmware
	EWRAMBase uint32 = 0x02000000
	EWRAMSize uint32 = 256 * 1024 // 256KB main RAM
	IWRAMBase uint32 = 0x03000000
	IWRAMSize uint32 = 32 * 1024 // 32KB on-chip fast RAM
	ROMBase   uint32 = 0x08000000
	ROMSize   uint32 = 32 * 1024 * 1024 // up to 32MB cartridge ROM
)

// Bus is the memory interface consumed by the core.
type Bus interface {
	// Read8 reads one byte.
	Read8(addr uint32) uint8
	// Read32 reads a little-endian word from addr..addr+3.
	Read32(addr uint32) uint32
	// Write8 writes one byte.
	Write8(addr uint32, value uint8)
}

// Region is a contiguous mapped address range. Only the first len(data)
// bytes of its capacity are backed; the rest reads as zero.
type Region struct {
	Name     string
	Base     uint32
	Size     uint32
	Writable bool

	data []byte
}

// Contains reports whether addr falls within the region's capacity.
func (r *Region) Contains(addr uint32) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// Backed returns the number of bytes backed by storage.
func (r *Region) Backed() int {
	return len(r.data)
}

// Memory is the flat GBA address space built from disjoint regions ordered
// by base address. Unmapped or unbacked addresses read as zero and ignore
// writes; there is no fault.
type Memory struct {
	regions []*Region
}

// NewMemory creates the GBA memory map with the given firmware and cartridge
// images. Images longer than their region are truncated.
func NewMemory(bios, rom []byte) *Memory {
	m := &Memory{}
	m.mapRegion("bios", BIOSBase, BIOSSize, false, clip(bios, BIOSSize))
	m.mapRegion("ewram", EWRAMBase, EWRAMSize, true, make([]byte, EWRAMSize))
	m.mapRegion("iwram", IWRAMBase, IWRAMSize, true, make([]byte, IWRAMSize))
	m.mapRegion("rom", ROMBase, ROMSize, false, clip(rom, ROMSize))
	return m
}

func clip(image []byte, size uint32) []byte {
	if uint64(len(image)) > uint64(size) {
		image = image[:size]
	}
	data := make([]byte, len(image))
	copy(data, image)
	return data
}

func (m *Memory) mapRegion(name string, base, size uint32, writable bool, data []byte) {
	m.regions = append(m.regions, &Region{
		Name:     name,
		Base:     base,
		Size:     size,
		Writable: writable,
		data:     data,
	})
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].Base < m.regions[j].Base
	})
}

// Regions returns the mapped regions in address order.
func (m *Memory) Regions() []*Region {
	return m.regions
}

// Lookup returns the region containing addr, or nil if it is unmapped.
func (m *Memory) Lookup(addr uint32) *Region {
	// First region whose end lies beyond addr.
	i := sort.Search(len(m.regions), func(i int) bool {
		r := m.regions[i]
		return uint64(r.Base)+uint64(r.Size) > uint64(addr)
	})
	if i < len(m.regions) && m.regions[i].Contains(addr) {
		return m.regions[i]
	}
	return nil
}

// Read8 reads a byte. Unmapped and unbacked addresses read as zero.
func (m *Memory) Read8(addr uint32) uint8 {
	r := m.Lookup(addr)
	if r == nil {
		return 0
	}
	off := addr - r.Base
	if uint64(off) >= uint64(len(r.data)) {
		return 0
	}
	return r.data[off]
}

// Read32 reads a little-endian word from four consecutive bytes.
func (m *Memory) Read32(addr uint32) uint32 {
	return uint32(m.Read8(addr)) |
		uint32(m.Read8(addr+1))<<8 |
		uint32(m.Read8(addr+2))<<16 |
		uint32(m.Read8(addr+3))<<24
}

// Write8 writes a byte. Writes to read-only, unmapped or unbacked
// addresses are ignored.
func (m *Memory) Write8(addr uint32, value uint8) {
	r := m.Lookup(addr)
	if r == nil || !r.Writable {
		return
	}
	off := addr - r.Base
	if uint64(off) >= uint64(len(r.data)) {
		return
	}
	r.data[off] = value
}

// Write32 writes a little-endian word as four byte writes.
func (m *Memory) Write32(addr uint32, value uint32) {
	write32(m, addr, value)
}

func write32(bus Bus, addr uint32, value uint32) {
	bus.Write8(addr, uint8(value))
	bus.Write8(addr+1, uint8(value>>8))
	bus.Write8(addr+2, uint8(value>>16))
	bus.Write8(addr+3, uint8(value>>24))
}
