package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

func imm(value, rotate uint8) insts.ImmediateOperand {
	return insts.ImmediateOperand{Value: value, Rotate: rotate}
}

func reg(rm insts.Reg) insts.RegisterOperand {
	return insts.RegisterOperand{Rm: rm}
}

var _ = Describe("BarrelShift", func() {
	DescribeTable("immediate amounts",
		func(value uint32, typ insts.ShiftType, amount uint32, carryIn bool, want uint32, wantCarry bool) {
			result, carry := emu.BarrelShift(value, typ, amount, carryIn, false)
			Expect(result).To(Equal(want))
			Expect(carry).To(Equal(wantCarry))
		},
		Entry("LSL #0 passes through with old carry", uint32(0x80000001), insts.ShiftLSL, uint32(0), true, uint32(0x80000001), true),
		Entry("LSL #1", uint32(0x80000001), insts.ShiftLSL, uint32(1), false, uint32(0x00000002), true),
		Entry("LSL #4", uint32(0x0F000000), insts.ShiftLSL, uint32(4), true, uint32(0xF0000000), false),
		Entry("LSR #0 encodes LSR #32", uint32(0x80000000), insts.ShiftLSR, uint32(0), false, uint32(0), true),
		Entry("LSR #4", uint32(0x000000F8), insts.ShiftLSR, uint32(4), false, uint32(0x0000000F), true),
		Entry("ASR #0 encodes ASR #32 of negative", uint32(0x80000000), insts.ShiftASR, uint32(0), false, uint32(0xFFFFFFFF), true),
		Entry("ASR #0 encodes ASR #32 of positive", uint32(0x7FFFFFFF), insts.ShiftASR, uint32(0), true, uint32(0), false),
		Entry("ASR #4", uint32(0x80000010), insts.ShiftASR, uint32(4), true, uint32(0xF8000001), false),
		Entry("ROR #0 encodes RRX", uint32(0x00000003), insts.ShiftROR, uint32(0), true, uint32(0x80000001), true),
		Entry("RRX without carry", uint32(0x00000002), insts.ShiftROR, uint32(0), false, uint32(0x00000001), false),
		Entry("ROR #8", uint32(0x000000FF), insts.ShiftROR, uint32(8), false, uint32(0xFF000000), true),
	)

	DescribeTable("register amounts",
		func(value uint32, typ insts.ShiftType, amount uint32, carryIn bool, want uint32, wantCarry bool) {
			result, carry := emu.BarrelShift(value, typ, amount, carryIn, true)
			Expect(result).To(Equal(want))
			Expect(carry).To(Equal(wantCarry))
		},
		Entry("amount 0 leaves value and carry", uint32(0x80000000), insts.ShiftLSR, uint32(0), false, uint32(0x80000000), false),
		Entry("LSL by 32", uint32(0x00000001), insts.ShiftLSL, uint32(32), false, uint32(0), true),
		Entry("LSL by 33", uint32(0xFFFFFFFF), insts.ShiftLSL, uint32(33), true, uint32(0), false),
		Entry("LSR by 32", uint32(0x80000000), insts.ShiftLSR, uint32(32), false, uint32(0), true),
		Entry("LSR by 40", uint32(0xFFFFFFFF), insts.ShiftLSR, uint32(40), true, uint32(0), false),
		Entry("ASR by 40", uint32(0x80000000), insts.ShiftASR, uint32(40), false, uint32(0xFFFFFFFF), true),
		Entry("ROR by 32", uint32(0x80000000), insts.ShiftROR, uint32(32), false, uint32(0x80000000), true),
		Entry("ROR by 36", uint32(0x000000F0), insts.ShiftROR, uint32(36), true, uint32(0x0000000F), false),
	)
})

var _ = Describe("AddWithCarry", func() {
	DescribeTable("flags",
		func(a, b uint32, carryIn bool, want uint32, wantCarry, wantOverflow bool) {
			result, carry, overflow := emu.AddWithCarry(a, b, carryIn)
			Expect(result).To(Equal(want))
			Expect(carry).To(Equal(wantCarry))
			Expect(overflow).To(Equal(wantOverflow))
		},
		Entry("unsigned wrap", uint32(0xFFFFFFFF), uint32(1), false, uint32(0), true, false),
		Entry("signed overflow", uint32(0x7FFFFFFF), uint32(1), false, uint32(0x80000000), false, true),
		Entry("carry in", uint32(1), uint32(1), true, uint32(3), false, false),
		Entry("5 - 5", uint32(5), ^uint32(5), true, uint32(0), true, false),
		Entry("0 - 1 borrows", uint32(0), ^uint32(1), true, uint32(0xFFFFFFFF), false, false),
		Entry("MIN - 1 overflows", uint32(0x80000000), ^uint32(1), true, uint32(0x7FFFFFFF), true, true),
	)
})

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		alu = emu.NewALU(regFile)
	})

	exec := func(opcode insts.DPOpcode, s bool, rd, rn insts.Reg, op2 insts.Operand2) bool {
		return alu.Execute(insts.DataProcessing{
			Opcode: opcode, SetFlags: s, Rd: rd, Rn: rn, Operand2: op2,
		})
	}

	Describe("arithmetic", func() {
		It("should add without touching flags", func() {
			regFile.WriteReg(insts.R3, 1)
			regFile.WriteReg(insts.R2, 2)
			regFile.CPSR.Z = true

			Expect(exec(insts.OpADD, false, insts.R3, insts.R3, reg(insts.R2))).To(BeFalse())

			Expect(regFile.ReadReg(insts.R3)).To(Equal(uint32(3)))
			Expect(regFile.CPSR.Z).To(BeTrue())
		})

		It("should set flags on SUBS with borrow", func() {
			regFile.WriteReg(insts.R1, 3)
			regFile.WriteReg(insts.R2, 5)

			exec(insts.OpSUB, true, insts.R0, insts.R1, reg(insts.R2))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0xFFFFFFFE)))
			Expect(regFile.CPSR.N).To(BeTrue())
			Expect(regFile.CPSR.Z).To(BeFalse())
			Expect(regFile.CPSR.C).To(BeFalse())
			Expect(regFile.CPSR.V).To(BeFalse())
		})

		It("should set overflow on ADDS", func() {
			regFile.WriteReg(insts.R1, 0x7FFFFFFF)

			exec(insts.OpADD, true, insts.R0, insts.R1, imm(1, 0))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0x80000000)))
			Expect(regFile.CPSR.V).To(BeTrue())
			Expect(regFile.CPSR.N).To(BeTrue())
		})

		It("should reverse subtract", func() {
			regFile.WriteReg(insts.R1, 1)

			exec(insts.OpRSB, false, insts.R0, insts.R1, imm(0, 0))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0xFFFFFFFF)))
		})

		DescribeTable("carry-consuming opcodes",
			func(opcode insts.DPOpcode, rn uint32, op2 uint8, carry bool, want uint32) {
				regFile.WriteReg(insts.R1, rn)
				regFile.CPSR.C = carry

				exec(opcode, false, insts.R0, insts.R1, imm(op2, 0))

				Expect(regFile.ReadReg(insts.R0)).To(Equal(want))
			},
			Entry("ADC with carry", insts.OpADC, uint32(1), uint8(1), true, uint32(3)),
			Entry("ADC without carry", insts.OpADC, uint32(1), uint8(1), false, uint32(2)),
			Entry("SBC with carry", insts.OpSBC, uint32(5), uint8(3), true, uint32(2)),
			Entry("SBC without carry", insts.OpSBC, uint32(5), uint8(3), false, uint32(1)),
			Entry("RSC with carry", insts.OpRSC, uint32(3), uint8(10), true, uint32(7)),
			Entry("RSC without carry", insts.OpRSC, uint32(3), uint8(10), false, uint32(6)),
		)
	})

	Describe("logical", func() {
		DescribeTable("results",
			func(opcode insts.DPOpcode, rn uint32, op2 uint8, want uint32) {
				regFile.WriteReg(insts.R1, rn)

				exec(opcode, false, insts.R0, insts.R1, imm(op2, 0))

				Expect(regFile.ReadReg(insts.R0)).To(Equal(want))
			},
			Entry("AND", insts.OpAND, uint32(0xFF), uint8(0x3C), uint32(0x3C)),
			Entry("EOR", insts.OpEOR, uint32(0xFF), uint8(0x0F), uint32(0xF0)),
			Entry("ORR", insts.OpORR, uint32(0xF0), uint8(0x0F), uint32(0xFF)),
			Entry("BIC", insts.OpBIC, uint32(0xFF), uint8(0x0F), uint32(0xF0)),
			Entry("MOV", insts.OpMOV, uint32(0xFF), uint8(5), uint32(5)),
			Entry("MVN", insts.OpMVN, uint32(0xFF), uint8(0), uint32(0xFFFFFFFF)),
		)

		It("should keep carry for an unrotated immediate", func() {
			regFile.CPSR.C = true
			regFile.CPSR.V = true

			exec(insts.OpMOV, true, insts.R0, insts.R0, imm(0, 0))

			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.CPSR.C).To(BeTrue())
			Expect(regFile.CPSR.V).To(BeTrue())
		})

		It("should take carry from bit 31 of a rotated immediate", func() {
			exec(insts.OpMOV, true, insts.R0, insts.R0, imm(2, 1))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0x80000000)))
			Expect(regFile.CPSR.N).To(BeTrue())
			Expect(regFile.CPSR.C).To(BeTrue())
		})

		It("should take carry from the shifter", func() {
			regFile.WriteReg(insts.R1, 0x80000000)
			op := insts.RegisterOperand{Rm: insts.R1, Shift: insts.Shift{Type: insts.ShiftLSL, Amount: 1}}

			exec(insts.OpMOV, true, insts.R0, insts.R0, op)

			Expect(regFile.ReadReg(insts.R0)).To(BeZero())
			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.CPSR.C).To(BeTrue())
		})
	})

	Describe("compares", func() {
		It("should only update flags", func() {
			regFile.WriteReg(insts.R0, 0x1234)
			regFile.WriteReg(insts.R1, 7)

			exec(insts.OpCMP, true, insts.R0, insts.R1, imm(7, 0))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0x1234)))
			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.CPSR.C).To(BeTrue())
		})

		It("should test bits with TST", func() {
			regFile.WriteReg(insts.R1, 0xF0)

			exec(insts.OpTST, true, insts.R0, insts.R1, imm(0x0F, 0))

			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.ReadReg(insts.R0)).To(BeZero())
		})

		It("should compare negative with CMN", func() {
			regFile.WriteReg(insts.R1, 0xFFFFFFFF)

			exec(insts.OpCMN, true, insts.R0, insts.R1, imm(1, 0))

			Expect(regFile.CPSR.Z).To(BeTrue())
			Expect(regFile.CPSR.C).To(BeTrue())
		})
	})

	Describe("R15", func() {
		It("should redirect on a write to PC", func() {
			regFile.WriteReg(insts.LR, 0x08000103)

			Expect(exec(insts.OpMOV, false, insts.PC, insts.R0, reg(insts.LR))).To(BeTrue())

			Expect(regFile.PC()).To(Equal(uint32(0x08000100)))
		})

		It("should read PC+12 with a register-specified shift", func() {
			regFile.SetPC(0x08000008)
			op := insts.RegisterOperand{
				Rm:    insts.PC,
				Shift: insts.Shift{Type: insts.ShiftLSL, ByRegister: true, Rs: insts.R2},
			}

			exec(insts.OpADD, false, insts.R0, insts.PC, op)

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0x0800000C * 2)))
		})

		It("should read PC+8 with an immediate shift", func() {
			regFile.SetPC(0x08000008)

			exec(insts.OpADD, false, insts.R0, insts.PC, imm(4, 0))

			Expect(regFile.ReadReg(insts.R0)).To(Equal(uint32(0x0800000C)))
		})
	})
})
