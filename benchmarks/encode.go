package benchmarks

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/sarchlab/gbasim/insts"
)

// Helper functions for building ARM programs. Branch helpers take word
// indices within the program rather than byte addresses.

// BuildProgram assembles instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 4*len(instrs))
	for i, inst := range instrs {
		binary.LittleEndian.PutUint32(program[4*i:], inst)
	}
	return program
}

// WithCond replaces the condition field of an encoded instruction.
func WithCond(inst uint32, cond insts.Cond) uint32 {
	return inst&0x0FFFFFFF | uint32(cond)<<28
}

func always(inst uint32) uint32 {
	return WithCond(inst, insts.CondAL)
}

func bit(b bool, pos uint) uint32 {
	if b {
		return 1 << pos
	}
	return 0
}

// EncodeDPImm encodes a data-processing instruction with an immediate
// operand. It panics when imm is not an 8-bit value rotated by an even
// amount.
func EncodeDPImm(op insts.DPOpcode, setFlags bool, rd, rn insts.Reg, imm uint32) uint32 {
	for rot := 0; rot < 16; rot++ {
		v := bits.RotateLeft32(imm, 2*rot)
		if v <= 0xFF {
			return always(1<<25 | uint32(op)<<21 | bit(setFlags, 20) |
				uint32(rn)<<16 | uint32(rd)<<12 | uint32(rot)<<8 | v)
		}
	}
	panic(fmt.Sprintf("immediate 0x%X is not encodable", imm))
}

// EncodeDPReg encodes a data-processing instruction with an unshifted
// register operand.
func EncodeDPReg(op insts.DPOpcode, setFlags bool, rd, rn, rm insts.Reg) uint32 {
	return always(uint32(op)<<21 | bit(setFlags, 20) |
		uint32(rn)<<16 | uint32(rd)<<12 | uint32(rm))
}

// EncodeMOVImm encodes MOV rd, #imm.
func EncodeMOVImm(rd insts.Reg, imm uint32) uint32 {
	return EncodeDPImm(insts.OpMOV, false, rd, 0, imm)
}

// EncodeMOVReg encodes MOV rd, rm.
func EncodeMOVReg(rd, rm insts.Reg) uint32 {
	return EncodeDPReg(insts.OpMOV, false, rd, 0, rm)
}

// EncodeADDImm encodes ADD rd, rn, #imm.
func EncodeADDImm(rd, rn insts.Reg, imm uint32) uint32 {
	return EncodeDPImm(insts.OpADD, false, rd, rn, imm)
}

// EncodeADDReg encodes ADD rd, rn, rm.
func EncodeADDReg(rd, rn, rm insts.Reg) uint32 {
	return EncodeDPReg(insts.OpADD, false, rd, rn, rm)
}

// EncodeSUBSImm encodes SUBS rd, rn, #imm.
func EncodeSUBSImm(rd, rn insts.Reg, imm uint32) uint32 {
	return EncodeDPImm(insts.OpSUB, true, rd, rn, imm)
}

// EncodeCMPReg encodes CMP rn, rm.
func EncodeCMPReg(rn, rm insts.Reg) uint32 {
	return EncodeDPReg(insts.OpCMP, true, 0, rn, rm)
}

// EncodeB encodes B or BL at word index at, targeting word index target.
func EncodeB(at, target int, link bool) uint32 {
	offset := uint32(target-at-2) & 0xFFFFFF
	return always(0xA<<24 | bit(link, 24) | offset)
}

// EncodeBCond encodes a conditional B.
func EncodeBCond(at, target int, cond insts.Cond) uint32 {
	return WithCond(EncodeB(at, target, false), cond)
}

// EncodeBX encodes BX rm.
func EncodeBX(rm insts.Reg) uint32 {
	return always(0x012FFF10 | uint32(rm))
}

// EncodeMUL encodes MUL rd, rm, rs.
func EncodeMUL(rd, rm, rs insts.Reg) uint32 {
	return always(uint32(rd)<<16 | uint32(rs)<<8 | 0x90 | uint32(rm))
}

func encodeSDT(load, pre, writeBack bool, rd, rn insts.Reg, offset int) uint32 {
	up := offset >= 0
	if !up {
		offset = -offset
	}
	return always(1<<26 | bit(pre, 24) | bit(up, 23) | bit(writeBack, 21) |
		bit(load, 20) | uint32(rn)<<16 | uint32(rd)<<12 | uint32(offset)&0xFFF)
}

// EncodeLDR encodes LDR rd, [rn, #offset].
func EncodeLDR(rd, rn insts.Reg, offset int) uint32 {
	return encodeSDT(true, true, false, rd, rn, offset)
}

// EncodeSTR encodes STR rd, [rn, #offset].
func EncodeSTR(rd, rn insts.Reg, offset int) uint32 {
	return encodeSDT(false, true, false, rd, rn, offset)
}

// EncodeLDRPost encodes LDR rd, [rn], #offset.
func EncodeLDRPost(rd, rn insts.Reg, offset int) uint32 {
	return encodeSDT(true, false, false, rd, rn, offset)
}

// EncodeSTRPost encodes STR rd, [rn], #offset.
func EncodeSTRPost(rd, rn insts.Reg, offset int) uint32 {
	return encodeSDT(false, false, false, rd, rn, offset)
}

func registerList(regs []insts.Reg) uint32 {
	var list uint32
	for _, r := range regs {
		list |= 1 << r
	}
	return list
}

// EncodePush encodes STMDB SP!, {regs}.
func EncodePush(regs ...insts.Reg) uint32 {
	return always(1<<27 | 1<<24 | 1<<21 | uint32(insts.SP)<<16 | registerList(regs))
}

// EncodePop encodes LDMIA SP!, {regs}.
func EncodePop(regs ...insts.Reg) uint32 {
	return always(1<<27 | 1<<23 | 1<<21 | 1<<20 | uint32(insts.SP)<<16 | registerList(regs))
}
