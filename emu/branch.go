package emu

import "github.com/sarchlab/gbasim/insts"

// BranchUnit implements condition evaluation and ARM branch operations.
//
// R15 as seen here is the pipelined PC: the address of the branch plus 8.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// B performs a PC-relative branch. The displacement is in bytes and is added
// to the pipelined PC. With link set, R14 receives the address of the
// instruction following the branch.
func (b *BranchUnit) B(displacement int32, link bool) {
	pc := b.regFile.PC()
	if link {
		b.regFile.WriteReg(insts.LR, pc-4)
	}
	b.regFile.SetPC(pc + uint32(displacement))
}

// BX branches to the address in rm. Bit 0 of the value selects Thumb state
// and is cleared from the target.
func (b *BranchUnit) BX(rm insts.Reg) {
	target := b.regFile.ReadReg(rm)
	if target&1 == 1 {
		b.regFile.CPSR.State = StateThumb
	} else {
		b.regFile.CPSR.State = StateArm
	}
	b.regFile.SetPC(target &^ 1)
}

// CheckCondition evaluates an ARM condition code against the current flags.
func (b *BranchUnit) CheckCondition(cond insts.Cond) bool {
	return ConditionHolds(cond, b.regFile.CPSR)
}

// ConditionHolds evaluates cond against the flags in psr.
func ConditionHolds(cond insts.Cond, psr PSR) bool {
	switch cond {
	case insts.CondEQ:
		return psr.Z
	case insts.CondNE:
		return !psr.Z
	case insts.CondCS:
		return psr.C
	case insts.CondCC:
		return !psr.C
	case insts.CondMI:
		return psr.N
	case insts.CondPL:
		return !psr.N
	case insts.CondVS:
		return psr.V
	case insts.CondVC:
		return !psr.V
	case insts.CondHI:
		return psr.C && !psr.Z
	case insts.CondLS:
		return !psr.C || psr.Z
	case insts.CondGE:
		return psr.N == psr.V
	case insts.CondLT:
		return psr.N != psr.V
	case insts.CondGT:
		return !psr.Z && (psr.N == psr.V)
	case insts.CondLE:
		return psr.Z || (psr.N != psr.V)
	case insts.CondAL:
		return true
	default:
		return false
	}
}
