package emu

import "github.com/sarchlab/gbasim/insts"

// blockSizeEmptyList is how far an LDM/STM with an empty register list moves
// the base register. ARM7TDMI transfers R15 alone in that case.
const blockSizeEmptyList = 0x40

// LoadStoreUnit implements ARM single, swap and block data transfers.
type LoadStoreUnit struct {
	regFile *RegFile
	bus     Bus
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and bus.
func NewLoadStoreUnit(regFile *RegFile, bus Bus) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		bus:     bus,
	}
}

// LoadWord reads a word the way LDR does: the aligned word is rotated right
// by 8 times the low two address bits.
func (lsu *LoadStoreUnit) LoadWord(addr uint32) uint32 {
	word := lsu.bus.Read32(addr &^ 3)
	return insts.RotateRight(word, uint(addr&3)*8)
}

// StoreWord writes a word at the aligned address.
func (lsu *LoadStoreUnit) StoreWord(addr, value uint32) {
	write32(lsu.bus, addr&^3, value)
}

// Transfer executes LDR, STR, LDRB or STRB. It returns true when R15 was
// loaded.
func (lsu *LoadStoreUnit) Transfer(inst insts.SingleDataTransfer) bool {
	base := lsu.regFile.ReadReg(inst.Rn)
	offset := lsu.offset(inst.Offset)

	offsetBase := base - offset
	if inst.Up {
		offsetBase = base + offset
	}

	addr := base
	if inst.PreIndex {
		addr = offsetBase
	}

	if !inst.Load {
		value := lsu.storeValue(inst.Rd)
		if inst.Byte {
			lsu.bus.Write8(addr, uint8(value))
		} else {
			lsu.StoreWord(addr, value)
		}
		if !inst.PreIndex || inst.WriteBack {
			lsu.regFile.WriteReg(inst.Rn, offsetBase)
		}
		return false
	}

	var value uint32
	if inst.Byte {
		value = uint32(lsu.bus.Read8(addr))
	} else {
		value = lsu.LoadWord(addr)
	}

	// Write-back first so a load into the base register wins.
	if !inst.PreIndex || inst.WriteBack {
		lsu.regFile.WriteReg(inst.Rn, offsetBase)
	}

	if inst.Rd == insts.PC {
		lsu.regFile.SetPC(value &^ 3)
		return true
	}
	lsu.regFile.WriteReg(inst.Rd, value)
	return false
}

func (lsu *LoadStoreUnit) offset(off insts.Offset) uint32 {
	switch o := off.(type) {
	case insts.ImmediateOffset:
		return uint32(o.Value)
	case insts.RegisterOffset:
		value, _ := BarrelShift(lsu.regFile.ReadReg(o.Rm), o.Shift.Type,
			uint32(o.Shift.Amount), lsu.regFile.CPSR.C, false)
		return value
	}
	return 0
}

// storeValue reads a register for a store. R15 is stored as PC+12.
func (lsu *LoadStoreUnit) storeValue(reg insts.Reg) uint32 {
	value := lsu.regFile.ReadReg(reg)
	if reg == insts.PC {
		value += 4
	}
	return value
}

// Swap executes SWP or SWPB: the old memory value goes to Rd and Rm is
// written to the same address.
func (lsu *LoadStoreUnit) Swap(inst insts.Swap) {
	addr := lsu.regFile.ReadReg(inst.Rn)
	source := lsu.regFile.ReadReg(inst.Rm)

	if inst.Byte {
		old := lsu.bus.Read8(addr)
		lsu.bus.Write8(addr, uint8(source))
		lsu.regFile.WriteReg(inst.Rd, uint32(old))
		return
	}

	old := lsu.LoadWord(addr)
	lsu.StoreWord(addr, source)
	lsu.regFile.WriteReg(inst.Rd, old)
}

// BlockTransfer executes LDM or STM. Registers move in ascending order to
// ascending addresses. It returns true when R15 was loaded.
func (lsu *LoadStoreUnit) BlockTransfer(inst insts.BlockDataTransfer) bool {
	regs := inst.Registers
	size := uint32(len(regs)) * 4
	if len(regs) == 0 {
		regs = []insts.Reg{insts.PC}
		size = blockSizeEmptyList
	}

	base := lsu.regFile.ReadReg(inst.Rn)

	var addr, newBase uint32
	switch {
	case inst.Up && !inst.PreIndex: // IA
		addr, newBase = base, base+size
	case inst.Up && inst.PreIndex: // IB
		addr, newBase = base+4, base+size
	case !inst.Up && !inst.PreIndex: // DA
		addr, newBase = base-size+4, base-size
	default: // DB
		addr, newBase = base-size, base-size
	}

	if !inst.Load {
		for i, reg := range regs {
			lsu.StoreWord(addr, lsu.storeValue(reg))
			addr += 4
			// The base is updated after the first transfer, so a base
			// register listed first is stored with its original value.
			if i == 0 && inst.WriteBack {
				lsu.regFile.WriteReg(inst.Rn, newBase)
			}
		}
		return false
	}

	if inst.WriteBack {
		lsu.regFile.WriteReg(inst.Rn, newBase)
	}

	redirected := false
	for _, reg := range regs {
		value := lsu.bus.Read32(addr &^ 3)
		addr += 4
		if reg == insts.PC {
			lsu.regFile.SetPC(value &^ 3)
			redirected = true
			continue
		}
		lsu.regFile.WriteReg(reg, value)
	}
	return redirected
}
