package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/loader"
)

// testSegment describes one PT_LOAD entry for createARMELF.
type testSegment struct {
	addr    uint32
	data    []byte
	memSize uint32
	flags   uint32
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	code := []byte{
		0x05, 0x00, 0xA0, 0xE3, // mov r0, #5
		0x1E, 0xFF, 0x2F, 0xE1, // bx lr
	}

	Describe("Load", func() {
		Context("with a valid ARM ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				createARMELF(elfPath, 0x08000000, []testSegment{
					{addr: 0x08000000, data: code, memSize: uint32(len(code)), flags: 0x5},
				})
			})

			It("should extract the entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x08000000)))
			})

			It("should load segment contents and permissions", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				Expect(prog.Segments).To(HaveLen(1))
				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint32(0x08000000)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagRead).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				err := os.WriteFile(notElfPath, []byte("not an elf file"), 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for x86 ELF", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				writeFile(elfPath, elf32Header(0, 0, 0, 0, 0, 3))

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not an ARM"))
			})

			It("should return error for 64-bit ELF", func() {
				elfPath := filepath.Join(tempDir, "elf64.elf")
				header := make([]byte, 64)
				copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
				header[4] = 2                                     // 64-bit
				header[5] = 1                                     // little endian
				header[6] = 1                                     // version
				binary.LittleEndian.PutUint16(header[16:18], 2)   // executable
				binary.LittleEndian.PutUint16(header[18:20], 183) // AArch64
				binary.LittleEndian.PutUint32(header[20:24], 1)   // version
				binary.LittleEndian.PutUint16(header[52:54], 64)  // ehsize
				binary.LittleEndian.PutUint16(header[54:56], 56)  // phentsize
				writeFile(elfPath, header)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 32-bit"))
			})
		})

		Context("with several segments", func() {
			It("should load BSS sizes", func() {
				elfPath := filepath.Join(tempDir, "multi.elf")
				createARMELF(elfPath, 0x08000000, []testSegment{
					{addr: 0x08000000, data: code, memSize: uint32(len(code)), flags: 0x5},
					{addr: 0x03000000, data: []byte{1, 2, 3, 4}, memSize: 16, flags: 0x6},
				})

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				Expect(prog.Segments).To(HaveLen(2))
				Expect(prog.Segments[1].MemSize).To(Equal(uint32(16)))
				Expect(prog.Segments[1].End()).To(Equal(uint64(0x03000010)))
			})
		})

		Context("without loadable segments", func() {
			It("should fall back to the .text section", func() {
				elfPath := filepath.Join(tempDir, "text.elf")
				createTextOnlyELF(elfPath, 0x08000000, code)

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				Expect(prog.Segments).To(HaveLen(1))
				Expect(prog.Segments[0].VirtAddr).To(Equal(uint32(0x08000000)))
				Expect(prog.Segments[0].Data).To(Equal(code))
			})
		})
	})

	Describe("Program", func() {
		prog := &loader.Program{
			EntryPoint: 0x08000000,
			Segments: []loader.Segment{
				{VirtAddr: 0x08000010, Data: []byte{0xAA, 0xBB}, MemSize: 4},
				{VirtAddr: 0x08000000, Data: []byte{1, 2, 3, 4}, MemSize: 4},
				{VirtAddr: 0x02000000, Data: []byte{9, 8}, MemSize: 4},
			},
		}

		It("should lay out ROM segments contiguously", func() {
			image := prog.ROMImage(0x08000000)

			Expect(image).To(HaveLen(0x14))
			Expect(image[0:4]).To(Equal([]byte{1, 2, 3, 4}))
			Expect(image[4:16]).To(Equal(make([]byte, 12)))
			Expect(image[16:20]).To(Equal([]byte{0xAA, 0xBB, 0, 0}))
		})

		It("should return nil when nothing is in ROM", func() {
			ram := &loader.Program{Segments: []loader.Segment{{VirtAddr: 0x03000000, Data: []byte{1}}}}

			Expect(ram.ROMImage(0x08000000)).To(BeNil())
		})

		It("should copy RAM segments through the bus", func() {
			memory := emu.NewMemory(nil, prog.ROMImage(emu.ROMBase))
			memory.Write32(emu.EWRAMBase, 0xFFFFFFFF)

			prog.LoadRAM(memory, emu.ROMBase)

			Expect(memory.Read32(emu.EWRAMBase)).To(Equal(uint32(0x00000809)))
			Expect(memory.Read32(emu.ROMBase)).To(Equal(uint32(0x04030201)))
		})
	})

	Describe("LoadImage", func() {
		It("should read raw bytes", func() {
			path := filepath.Join(tempDir, "game.gba")
			writeFile(path, []byte{0xEA, 0x00, 0x00, 0x2E})

			data, err := loader.LoadImage(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0xEA, 0x00, 0x00, 0x2E}))
		})

		It("should wrap read errors", func() {
			_, err := loader.LoadImage(filepath.Join(tempDir, "missing.gba"))

			Expect(err).To(MatchError(ContainSubstring("failed to read image")))
		})
	})
})

func writeFile(path string, parts ...[]byte) {
	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	for _, p := range parts {
		_, _ = file.Write(p)
	}
}

// elf32Header builds a little-endian ELF32 executable header.
func elf32Header(entry, phoff, phnum, shoff, shnum uint32, machine uint16) []byte {
	header := make([]byte, 52)

	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1                                          // 32-bit
	header[5] = 1                                          // little endian
	header[6] = 1                                          // version
	binary.LittleEndian.PutUint16(header[16:18], 2)        // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)  // machine
	binary.LittleEndian.PutUint32(header[20:24], 1)        // version
	binary.LittleEndian.PutUint32(header[24:28], entry)    // entry
	binary.LittleEndian.PutUint32(header[28:32], phoff)    // phoff
	binary.LittleEndian.PutUint32(header[32:36], shoff)    // shoff
	binary.LittleEndian.PutUint16(header[40:42], 52)       // ehsize
	binary.LittleEndian.PutUint16(header[42:44], 32)       // phentsize
	binary.LittleEndian.PutUint16(header[44:46], uint16(phnum))
	binary.LittleEndian.PutUint16(header[46:48], 40) // shentsize
	binary.LittleEndian.PutUint16(header[48:50], uint16(shnum))
	if shnum > 0 {
		binary.LittleEndian.PutUint16(header[50:52], uint16(shnum-1)) // shstrndx
	}
	return header
}

// createARMELF writes an ARM ELF32 binary with one PT_LOAD per segment.
func createARMELF(path string, entry uint32, segs []testSegment) {
	const armMachine = 40

	phoff := uint32(52)
	offset := phoff + 32*uint32(len(segs))

	parts := [][]byte{elf32Header(entry, phoff, uint32(len(segs)), 0, 0, armMachine)}
	var payload [][]byte

	for _, s := range segs {
		ph := make([]byte, 32)
		binary.LittleEndian.PutUint32(ph[0:4], 1)                    // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)               // offset
		binary.LittleEndian.PutUint32(ph[8:12], s.addr)              // vaddr
		binary.LittleEndian.PutUint32(ph[12:16], s.addr)             // paddr
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(s.data))) // filesz
		binary.LittleEndian.PutUint32(ph[20:24], s.memSize)          // memsz
		binary.LittleEndian.PutUint32(ph[24:28], s.flags)            // flags
		binary.LittleEndian.PutUint32(ph[28:32], 4)                  // align
		parts = append(parts, ph)
		payload = append(payload, s.data)
		offset += uint32(len(s.data))
	}

	writeFile(path, append(parts, payload...)...)
}

// createTextOnlyELF writes an ARM ELF32 binary with a .text section and no
// program headers.
func createTextOnlyELF(path string, addr uint32, code []byte) {
	const armMachine = 40

	strtab := []byte("\x00.text\x00.shstrtab\x00")
	textOff := uint32(52)
	strOff := textOff + uint32(len(code))
	shoff := (strOff + uint32(len(strtab)) + 3) &^ 3
	pad := make([]byte, shoff-strOff-uint32(len(strtab)))

	section := func(name, typ, flags, addr, off, size uint32) []byte {
		sh := make([]byte, 40)
		binary.LittleEndian.PutUint32(sh[0:4], name)
		binary.LittleEndian.PutUint32(sh[4:8], typ)
		binary.LittleEndian.PutUint32(sh[8:12], flags)
		binary.LittleEndian.PutUint32(sh[12:16], addr)
		binary.LittleEndian.PutUint32(sh[16:20], off)
		binary.LittleEndian.PutUint32(sh[20:24], size)
		binary.LittleEndian.PutUint32(sh[32:36], 1) // addralign
		return sh
	}

	writeFile(path,
		elf32Header(addr, 0, 0, shoff, 3, armMachine),
		code,
		strtab,
		pad,
		make([]byte, 40), // null section
		section(1, 1, 0x6, addr, textOff, uint32(len(code))),         // .text PROGBITS AX
		section(7, 3, 0, 0, strOff, uint32(len(strtab))),             // .shstrtab STRTAB
	)
}
