// Package loader provides BIOS/ROM image loading and ELF loading for ARM
// executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/gbasim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// End returns the first address past the segment in memory.
func (s Segment) End() uint64 {
	size := uint64(s.MemSize)
	if n := uint64(len(s.Data)); n > size {
		size = n
	}
	return uint64(s.VirtAddr) + size
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// LoadImage reads a raw BIOS or cartridge image.
func LoadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// Load parses a little-endian 32-bit ARM ELF binary. When it has no
// PT_LOAD segments, the .text section is used instead.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    segmentFlags(phdr.Flags),
		})
	}

	if len(prog.Segments) == 0 {
		if err := prog.loadText(f); err != nil {
			return nil, err
		}
	}

	return prog, nil
}

func segmentFlags(pf elf.ProgFlag) SegmentFlags {
	var flags SegmentFlags
	if pf&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if pf&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if pf&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}
	return flags
}

func (p *Program) loadText(f *elf.File) error {
	text := f.Section(".text")
	if text == nil || text.Type == elf.SHT_NOBITS {
		return nil
	}

	data, err := text.Data()
	if err != nil {
		return fmt.Errorf("failed to read .text: %w", err)
	}

	p.Segments = append(p.Segments, Segment{
		VirtAddr: uint32(text.Addr),
		Data:     data,
		MemSize:  uint32(len(data)),
		Flags:    SegmentFlagRead | SegmentFlagExecute,
	})
	return nil
}

// inROM reports whether the segment starts inside the cartridge window at base.
func inROM(seg Segment, base uint32) bool {
	return seg.VirtAddr >= base && uint64(seg.VirtAddr) < uint64(base)+uint64(emu.ROMSize)
}

// ROMImage lays out the segments that start in the cartridge window at base
// as one contiguous image. Gaps and BSS tails are zero; anything past the
// window is cut off.
func (p *Program) ROMImage(base uint32) []byte {
	limit := uint64(base) + uint64(emu.ROMSize)

	var end uint64
	for _, seg := range p.Segments {
		if !inROM(seg, base) {
			continue
		}
		if e := seg.End(); e > end {
			end = e
		}
	}
	if end == 0 {
		return nil
	}
	if end > limit {
		end = limit
	}

	image := make([]byte, end-uint64(base))
	for _, seg := range p.Segments {
		if !inROM(seg, base) {
			continue
		}
		copy(image[seg.VirtAddr-base:], seg.Data)
	}
	return image
}

// LoadRAM writes the segments outside the cartridge window at base through
// bus, zero-filling BSS. Writes to unmapped or read-only space are dropped
// by the bus.
func (p *Program) LoadRAM(bus emu.Bus, base uint32) {
	for _, seg := range p.Segments {
		if inROM(seg, base) {
			continue
		}
		size := seg.End() - uint64(seg.VirtAddr)
		for i := uint64(0); i < size; i++ {
			var b byte
			if i < uint64(len(seg.Data)) {
				b = seg.Data[i]
			}
			bus.Write8(seg.VirtAddr+uint32(i), b)
		}
	}
}
