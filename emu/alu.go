package emu

import "github.com/sarchlab/gbasim/insts"

// ALU implements ARM data-processing operations and the barrel shifter.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Execute runs a data-processing instruction. It returns true when the
// result was written to R15.
func (a *ALU) Execute(dp insts.DataProcessing) bool {
	regShift := false
	if op, ok := dp.Operand2.(insts.RegisterOperand); ok {
		regShift = op.Shift.ByRegister
	}

	op1 := a.readOperand(dp.Rn, regShift)
	op2, shifterCarry := a.Operand2(dp.Operand2)
	carryIn := a.regFile.CPSR.C

	var (
		result   uint32
		carry    bool
		overflow bool
	)

	switch dp.Opcode {
	case insts.OpAND, insts.OpTST:
		result = op1 & op2
	case insts.OpEOR, insts.OpTEQ:
		result = op1 ^ op2
	case insts.OpORR:
		result = op1 | op2
	case insts.OpMOV:
		result = op2
	case insts.OpBIC:
		result = op1 &^ op2
	case insts.OpMVN:
		result = ^op2
	case insts.OpSUB, insts.OpCMP:
		result, carry, overflow = AddWithCarry(op1, ^op2, true)
	case insts.OpRSB:
		result, carry, overflow = AddWithCarry(op2, ^op1, true)
	case insts.OpADD, insts.OpCMN:
		result, carry, overflow = AddWithCarry(op1, op2, false)
	case insts.OpADC:
		result, carry, overflow = AddWithCarry(op1, op2, carryIn)
	case insts.OpSBC:
		result, carry, overflow = AddWithCarry(op1, ^op2, carryIn)
	case insts.OpRSC:
		result, carry, overflow = AddWithCarry(op2, ^op1, carryIn)
	}

	if dp.SetFlags {
		if dp.Opcode.IsLogical() {
			a.setLogicFlags(result, shifterCarry)
		} else {
			a.setArithFlags(result, carry, overflow)
		}
	}

	if dp.Opcode.IsCompare() {
		return false
	}

	if dp.Rd == insts.PC {
		a.regFile.SetPC(result &^ 0x3)
		return true
	}
	a.regFile.WriteReg(dp.Rd, result)
	return false
}

// Operand2 evaluates a data-processing second operand and returns it with
// the shifter carry-out.
func (a *ALU) Operand2(op insts.Operand2) (uint32, bool) {
	switch o := op.(type) {
	case insts.ImmediateOperand:
		value := o.Resolve()
		if o.Rotate == 0 {
			return value, a.regFile.CPSR.C
		}
		return value, value>>31 == 1
	case insts.RegisterOperand:
		return a.ShiftRegister(o.Rm, o.Shift)
	}
	return 0, a.regFile.CPSR.C
}

// ShiftRegister passes Rm through the barrel shifter.
func (a *ALU) ShiftRegister(rm insts.Reg, shift insts.Shift) (uint32, bool) {
	value := a.readOperand(rm, shift.ByRegister)
	if shift.ByRegister {
		amount := a.regFile.ReadReg(shift.Rs) & 0xFF
		return BarrelShift(value, shift.Type, amount, a.regFile.CPSR.C, true)
	}
	return BarrelShift(value, shift.Type, uint32(shift.Amount), a.regFile.CPSR.C, false)
}

// readOperand reads a source register. R15 reads one word further ahead
// when the shift amount comes from a register.
func (a *ALU) readOperand(reg insts.Reg, regShift bool) uint32 {
	value := a.regFile.ReadReg(reg)
	if reg == insts.PC && regShift {
		value += 4
	}
	return value
}

// BarrelShift applies an ARM shift. For immediate amounts, 0 encodes LSR #32,
// ASR #32 and RRX. For register amounts, 0 leaves the value and carry
// unchanged.
func BarrelShift(value uint32, typ insts.ShiftType, amount uint32, carryIn bool, byRegister bool) (uint32, bool) {
	if byRegister && amount == 0 {
		return value, carryIn
	}

	switch typ {
	case insts.ShiftLSL:
		switch {
		case amount == 0:
			return value, carryIn
		case amount < 32:
			return value << amount, (value>>(32-amount))&1 == 1
		case amount == 32:
			return 0, value&1 == 1
		default:
			return 0, false
		}

	case insts.ShiftLSR:
		if amount == 0 {
			amount = 32
		}
		switch {
		case amount < 32:
			return value >> amount, (value>>(amount-1))&1 == 1
		case amount == 32:
			return 0, value>>31 == 1
		default:
			return 0, false
		}

	case insts.ShiftASR:
		if amount == 0 || amount >= 32 {
			if value>>31 == 1 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(int32(value) >> amount), (value>>(amount-1))&1 == 1

	default: // ROR
		if amount == 0 {
			// RRX
			result := value >> 1
			if carryIn {
				result |= 1 << 31
			}
			return result, value&1 == 1
		}
		amount &= 31
		if amount == 0 {
			return value, value>>31 == 1
		}
		return insts.RotateRight(value, uint(amount)), (value>>(amount-1))&1 == 1
	}
}

// AddWithCarry computes a + b + carryIn and returns the result with the
// unsigned carry-out and signed overflow. Subtraction is a + ^b + 1.
func AddWithCarry(a, b uint32, carryIn bool) (result uint32, carry, overflow bool) {
	var c uint64
	if carryIn {
		c = 1
	}
	sum := uint64(a) + uint64(b) + c
	result = uint32(sum)
	carry = sum>>32 != 0
	overflow = ((a^result)&(b^result))>>31 == 1
	return result, carry, overflow
}

// setArithFlags sets NZCV flags for arithmetic operations.
func (a *ALU) setArithFlags(result uint32, carry, overflow bool) {
	a.regFile.CPSR.setNZ(result)
	a.regFile.CPSR.C = carry
	a.regFile.CPSR.V = overflow
}

// setLogicFlags sets NZ from the result and C from the shifter (V is unchanged).
func (a *ALU) setLogicFlags(result uint32, shifterCarry bool) {
	a.regFile.CPSR.setNZ(result)
	a.regFile.CPSR.C = shifterCarry
}
