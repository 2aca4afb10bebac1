package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

var _ = Describe("MultiplyUnit", func() {
	var (
		regFile *emu.RegFile
		mulUnit *emu.MultiplyUnit
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		mulUnit = emu.NewMultiplyUnit(regFile)
	})

	Describe("MUL/MLA", func() {
		It("should multiply", func() {
			regFile.WriteReg(insts.R1, 3)
			regFile.WriteReg(insts.R2, 4)

			mulUnit.Multiply(insts.Multiply{Rd: insts.R0, Rm: insts.R1, Rs: insts.R2})

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(12)))
		})

		It("should accumulate", func() {
			regFile.WriteReg(insts.R1, 3)
			regFile.WriteReg(insts.R2, 4)
			regFile.WriteReg(insts.R3, 100)

			mulUnit.Multiply(insts.Multiply{
				Accumulate: true, Rd: insts.R0, Rn: insts.R3, Rm: insts.R1, Rs: insts.R2,
			})

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(112)))
		})

		It("should set N and Z but keep C and V", func() {
			regFile.WriteReg(insts.R1, 0x80000000)
			regFile.WriteReg(insts.R2, 2)
			regFile.CPSR.C = true
			regFile.CPSR.V = true
			regFile.CPSR.N = true

			mulUnit.Multiply(insts.Multiply{SetFlags: true, Rd: insts.R0, Rm: insts.R1, Rs: insts.R2})

			Expect(regFile.ReadReg(insts.R0)).To(BeZero())
			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.CPSR.N).To(BeFalse())
			Expect(regFile.CPSR.C).To(BeTrue())
			Expect(regFile.CPSR.V).To(BeTrue())
		})
	})

	Describe("long multiplies", func() {
		It("should produce an unsigned 64-bit product", func() {
			regFile.WriteReg(insts.R2, 0xFFFFFFFF)
			regFile.WriteReg(insts.R3, 0xFFFFFFFF)

			mulUnit.MultiplyLong(insts.MultiplyLong{
				RdLo: insts.R0, RdHi: insts.R1, Rm: insts.R2, Rs: insts.R3,
			})

			Expect(regFile.ReadReg(insts.R1)).To(Equal(uint32(0xFFFFFFFE)))
			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(1)))
		})

		It("should produce a signed 64-bit product", func() {
			regFile.WriteReg(insts.R2, 0xFFFFFFFF) // -1
			regFile.WriteReg(insts.R3, 2)

			mulUnit.MultiplyLong(insts.MultiplyLong{
				Signed: true, SetFlags: true,
				RdLo: insts.R0, RdHi: insts.R1, Rm: insts.R2, Rs: insts.R3,
			})

			Expect(regFile.ReadReg(insts.R1)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0xFFFFFFFE)))
			Expect(regFile.CPSR.N).To(BeTrue())
			Expect(regFile.CPSR.Z).To(BeFalse())
		})

		It("should accumulate into the 64-bit pair", func() {
			regFile.WriteReg(insts.R0, 0xFFFFFFFF)
			regFile.WriteReg(insts.R1, 0)
			regFile.WriteReg(insts.R2, 1)
			regFile.WriteReg(insts.R3, 1)

			mulUnit.MultiplyLong(insts.MultiplyLong{
				Accumulate: true, SetFlags: true,
				RdLo: insts.R0, RdHi: insts.R1, Rm: insts.R2, Rs: insts.R3,
			})

			Expect(regFile.ReadReg(insts.R1)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(insts.R0)).To(BeZero())
			Expect(regFile.CPSR.Z).To(BeFalse())
		})

		It("should set Z only when all 64 bits are zero", func() {
			mulUnit.MultiplyLong(insts.MultiplyLong{
				SetFlags: true, RdLo: insts.R0, RdHi: insts.R1, Rm: insts.R2, Rs: insts.R3,
			})

			Expect(regFile.CPSR.Z).To(BeTrue())
		})
	})
})
