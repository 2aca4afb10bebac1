// Package insts provides ARM7TDMI instruction definitions and decoding.
package insts

// Decoder decodes ARM machine words into instructions. It holds no state, so
// a single Decoder can be shared freely.
type Decoder struct{}

// NewDecoder creates a new ARM instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM instruction word. Words that land in an
// unsupported or reserved bucket yield a *DecodeError.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	cond := uint8(word >> 28) // bits [31:28]
	if cond == 0b1111 {
		return nil, d.fail(word, ReasonReservedCondition)
	}

	var (
		op  Operation
		err error
	)

	switch (word >> 26) & 0x3 { // bits [27:26]
	case 0b00:
		op, err = d.decodeGroup00(word)
	case 0b01:
		op, err = d.decodeSingleDataTransfer(word)
	case 0b10:
		if bit(word, 25) {
			op = d.decodeBranch(word)
		} else {
			op = d.decodeBlockDataTransfer(word)
		}
	default:
		if (word>>24)&0xF == 0xF {
			err = d.fail(word, ReasonSoftwareInterrupt)
		} else {
			err = d.fail(word, ReasonCoprocessor)
		}
	}

	if err != nil {
		return nil, err
	}

	return &Instruction{Cond: Cond(cond), Operation: op}, nil
}

func (d *Decoder) fail(word uint32, reason DecodeFailure) error {
	return &DecodeError{Word: word, Cond: uint8(word >> 28), Reason: reason}
}

// decodeGroup00 resolves the data-processing / multiply / swap / BX bucket.
// Bit 25 selects an immediate operand; otherwise bits 4 and 7 separate
// register-shifted data processing from the multiply/swap/BX space.
func (d *Decoder) decodeGroup00(word uint32) (Operation, error) {
	if bit(word, 25) {
		if d.isPSRSlot(word) {
			if !bit(word, 21) {
				return nil, d.fail(word, ReasonUndefined)
			}
			return d.decodeStatusWrite(word), nil
		}
		return d.decodeDataProcessing(word), nil
	}

	if !bit(word, 4) {
		if d.isPSRSlot(word) {
			if bit(word, 21) {
				return d.decodeStatusWrite(word), nil
			}
			return d.decodeStatusRead(word), nil
		}
		return d.decodeDataProcessing(word), nil
	}

	if !bit(word, 7) {
		if d.isBranchExchange(word) {
			return BranchExchange{Rm: reg(word, 0)}, nil
		}
		if d.isPSRSlot(word) {
			return nil, d.fail(word, ReasonUndefined)
		}
		return d.decodeDataProcessing(word), nil
	}

	if (word>>5)&0x3 != 0 { // bits [6:5]
		return nil, d.fail(word, ReasonHalfwordTransfer)
	}

	switch {
	case bit(word, 24):
		return d.decodeSwap(word)
	case bit(word, 23):
		return d.decodeMultiplyLong(word), nil
	default:
		return d.decodeMultiply(word)
	}
}

// isPSRSlot checks for a compare opcode (TST/TEQ/CMP/CMN, bits [24:23] == 0b10)
// without the S bit, which is where MRS/MSR live.
func (d *Decoder) isPSRSlot(word uint32) bool {
	return (word>>23)&0x3 == 0b10 && !bit(word, 20)
}

// isBranchExchange checks for BX.
// Format: cond | 0001 0010 1111 1111 1111 0001 | Rm
func (d *Decoder) isBranchExchange(word uint32) bool {
	return word&0x0FFFFFF0 == 0x012FFF10
}

// decodeDataProcessing decodes ALU instructions.
// Format: cond | 00 | I | opcode | S | Rn | Rd | operand2
func (d *Decoder) decodeDataProcessing(word uint32) Operation {
	return DataProcessing{
		Opcode:   DPOpcode((word >> 21) & 0xF), // bits [24:21]
		SetFlags: bit(word, 20),
		Rn:       reg(word, 16),
		Rd:       reg(word, 12),
		Operand2: d.decodeOperand2(word),
	}
}

// decodeOperand2 extracts a rotated immediate (I=1) or a shifted register.
func (d *Decoder) decodeOperand2(word uint32) Operand2 {
	if bit(word, 25) {
		return ImmediateOperand{
			Value:  uint8(word),              // bits [7:0]
			Rotate: uint8((word >> 8) & 0xF), // bits [11:8]
		}
	}
	return RegisterOperand{Rm: reg(word, 0), Shift: d.decodeShift(word)}
}

// decodeShift extracts the 8-bit shift descriptor, bits [11:4].
// Bit 4 clear: amount in bits [11:7]. Bit 4 set: amount in Rs, bits [11:8].
func (d *Decoder) decodeShift(word uint32) Shift {
	s := Shift{Type: ShiftType((word >> 5) & 0x3)} // bits [6:5]
	if bit(word, 4) {
		s.ByRegister = true
		s.Rs = reg(word, 8)
	} else {
		s.Amount = uint8((word >> 7) & 0x1F)
	}
	return s
}

// decodeStatusRead decodes MRS.
// Format: cond | 00010 | Ps | 001111 | Rd | 000000000000
func (d *Decoder) decodeStatusRead(word uint32) Operation {
	return StatusRead{
		Rd:    reg(word, 12),
		Saved: bit(word, 22),
	}
}

// decodeStatusWrite decodes MSR with a register or immediate source.
// Format: cond | 00 | I | 10 | Pd | 10 | mask | 1111 | source
func (d *Decoder) decodeStatusWrite(word uint32) Operation {
	return StatusWrite{
		Saved:     bit(word, 22),
		FieldMask: uint8((word >> 16) & 0xF), // bits [19:16]
		Source:    d.decodeOperand2(word),
	}
}

// decodeMultiply decodes MUL and MLA.
// Format: cond | 000000 | A | S | Rd | Rn | Rs | 1001 | Rm
func (d *Decoder) decodeMultiply(word uint32) (Operation, error) {
	if bit(word, 22) {
		return nil, d.fail(word, ReasonUndefined)
	}
	return Multiply{
		Accumulate: bit(word, 21),
		SetFlags:   bit(word, 20),
		Rd:         reg(word, 16),
		Rn:         reg(word, 12),
		Rs:         reg(word, 8),
		Rm:         reg(word, 0),
	}, nil
}

// decodeMultiplyLong decodes UMULL, UMLAL, SMULL and SMLAL.
// Format: cond | 00001 | U | A | S | RdHi | RdLo | Rs | 1001 | Rm
func (d *Decoder) decodeMultiplyLong(word uint32) Operation {
	return MultiplyLong{
		Signed:     bit(word, 22),
		Accumulate: bit(word, 21),
		SetFlags:   bit(word, 20),
		RdHi:       reg(word, 16),
		RdLo:       reg(word, 12),
		Rs:         reg(word, 8),
		Rm:         reg(word, 0),
	}
}

// decodeSwap decodes SWP and SWPB.
// Format: cond | 00010 | B | 00 | Rn | Rd | 0000 | 1001 | Rm
func (d *Decoder) decodeSwap(word uint32) (Operation, error) {
	if bit(word, 23) || (word>>20)&0x3 != 0 {
		return nil, d.fail(word, ReasonUndefined)
	}
	return Swap{
		Byte: bit(word, 22),
		Rn:   reg(word, 16),
		Rd:   reg(word, 12),
		Rm:   reg(word, 0),
	}, nil
}

// decodeSingleDataTransfer decodes LDR, STR, LDRB and STRB.
// Format: cond | 01 | I | P | U | B | W | L | Rn | Rd | offset
func (d *Decoder) decodeSingleDataTransfer(word uint32) (Operation, error) {
	registerOffset := bit(word, 25)
	if registerOffset && bit(word, 4) {
		return nil, d.fail(word, ReasonUndefined)
	}

	inst := SingleDataTransfer{
		PreIndex:  bit(word, 24),
		Up:        bit(word, 23),
		Byte:      bit(word, 22),
		WriteBack: bit(word, 21),
		Load:      bit(word, 20),
		Rn:        reg(word, 16),
		Rd:        reg(word, 12),
	}

	if registerOffset {
		inst.Offset = RegisterOffset{Rm: reg(word, 0), Shift: d.decodeShift(word)}
	} else {
		inst.Offset = ImmediateOffset{Value: uint16(word & 0xFFF)} // bits [11:0]
	}

	return inst, nil
}

// decodeBranch decodes B and BL.
// Format: cond | 101 | L | offset24
func (d *Decoder) decodeBranch(word uint32) Operation {
	return BranchOffset{
		Link:   bit(word, 24),
		Offset: word & 0xFFFFFF, // bits [23:0]
	}
}

// decodeBlockDataTransfer decodes LDM and STM.
// Format: cond | 100 | P | U | S | W | L | Rn | register list
func (d *Decoder) decodeBlockDataTransfer(word uint32) Operation {
	list := uint16(word) // bits [15:0]
	regs := make([]Reg, 0, 16)
	for r := Reg(0); r < NumRegs; r++ {
		if list&(1<<r) != 0 {
			regs = append(regs, r)
		}
	}

	return BlockDataTransfer{
		PreIndex:  bit(word, 24),
		Up:        bit(word, 23),
		ForceUser: bit(word, 22),
		WriteBack: bit(word, 21),
		Load:      bit(word, 20),
		Rn:        reg(word, 16),
		Registers: regs,
	}
}

func bit(word uint32, n uint) bool {
	return (word>>n)&1 == 1
}

func reg(word uint32, lsb uint) Reg {
	return Reg((word >> lsb) & 0xF)
}
