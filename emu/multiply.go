package emu

import "github.com/sarchlab/gbasim/insts"

// MultiplyUnit implements MUL, MLA and the 64-bit long multiplies.
type MultiplyUnit struct {
	regFile *RegFile
}

// NewMultiplyUnit creates a new MultiplyUnit connected to the given register file.
func NewMultiplyUnit(regFile *RegFile) *MultiplyUnit {
	return &MultiplyUnit{regFile: regFile}
}

// Multiply performs Rd = Rm*Rs (+ Rn). With SetFlags, N and Z follow the
// result; C and V are left unchanged.
func (m *MultiplyUnit) Multiply(inst insts.Multiply) {
	result := m.regFile.ReadReg(inst.Rm) * m.regFile.ReadReg(inst.Rs)
	if inst.Accumulate {
		result += m.regFile.ReadReg(inst.Rn)
	}

	m.regFile.WriteReg(inst.Rd, result)

	if inst.SetFlags {
		m.regFile.CPSR.setNZ(result)
	}
}

// MultiplyLong performs RdHi:RdLo = Rm*Rs (+ RdHi:RdLo), signed or unsigned.
func (m *MultiplyUnit) MultiplyLong(inst insts.MultiplyLong) {
	rm := m.regFile.ReadReg(inst.Rm)
	rs := m.regFile.ReadReg(inst.Rs)

	var result uint64
	if inst.Signed {
		result = uint64(int64(int32(rm)) * int64(int32(rs)))
	} else {
		result = uint64(rm) * uint64(rs)
	}

	if inst.Accumulate {
		acc := uint64(m.regFile.ReadReg(inst.RdHi))<<32 | uint64(m.regFile.ReadReg(inst.RdLo))
		result += acc
	}

	m.regFile.WriteReg(inst.RdLo, uint32(result))
	m.regFile.WriteReg(inst.RdHi, uint32(result>>32))

	if inst.SetFlags {
		m.regFile.CPSR.N = result>>63 == 1
		m.regFile.CPSR.Z = result == 0
	}
}
