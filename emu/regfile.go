// Package emu provides functional ARM7TDMI emulation.
package emu

import "github.com/sarchlab/gbasim/insts"

// ExecState is the instruction set the core fetches in.
type ExecState uint8

// Execution states.
const (
	StateArm ExecState = iota
	StateThumb
)

func (s ExecState) String() string {
	if s == StateThumb {
		return "Thumb"
	}
	return "Arm"
}

// ResetControl is the control byte after reset: IRQ and FIQ masked,
// supervisor mode.
const ResetControl uint8 = 0xD3

// Status word bit positions.
const (
	psrN = 31
	psrZ = 30
	psrC = 29
	psrV = 28
	psrT = 5
)

// RegFile represents the ARM7TDMI register file.
// It contains 16 general-purpose registers (R0-R15, with R13 the stack
// pointer, R14 the link register and R15 the program counter) and the
// current program status word. Registers are not banked by mode.
type RegFile struct {
	// R holds general-purpose registers R0-R15.
	R [insts.NumRegs]uint32

	// CPSR holds the condition flags and execution state.
	CPSR PSR
}

// PSR represents the program status word.
type PSR struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool

	// State is the execution state (bit 5 of the packed word).
	State ExecState

	// Control holds the interrupt mask and mode bits [7:0], excluding bit 5.
	// They are carried but never consulted.
	Control uint8
}

// NewRegFile creates a register file with architectural reset values.
func NewRegFile() *RegFile {
	return &RegFile{
		CPSR: PSR{State: StateArm, Control: ResetControl},
	}
}

// ReadReg reads a register value.
func (r *RegFile) ReadReg(reg insts.Reg) uint32 {
	return r.R[reg&0xF]
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(reg insts.Reg, value uint32) {
	r.R[reg&0xF] = value
}

// PC returns R15.
func (r *RegFile) PC() uint32 {
	return r.R[insts.PC]
}

// SetPC writes R15.
func (r *RegFile) SetPC(pc uint32) {
	r.R[insts.PC] = pc
}

// Word packs the status into the 32-bit CPSR layout.
func (p PSR) Word() uint32 {
	w := uint32(p.Control) &^ (1 << psrT)
	if p.N {
		w |= 1 << psrN
	}
	if p.Z {
		w |= 1 << psrZ
	}
	if p.C {
		w |= 1 << psrC
	}
	if p.V {
		w |= 1 << psrV
	}
	if p.State == StateThumb {
		w |= 1 << psrT
	}
	return w
}

// SetWord unpacks a 32-bit CPSR value. Reserved bits [27:8] are dropped.
func (p *PSR) SetWord(w uint32) {
	p.SetFlagsByte(w)
	p.Control = uint8(w) &^ (1 << psrT)
	if w&(1<<psrT) != 0 {
		p.State = StateThumb
	} else {
		p.State = StateArm
	}
}

// SetFlagsByte copies N, Z, C and V from bits [31:28] of w.
func (p *PSR) SetFlagsByte(w uint32) {
	p.N = w&(1<<psrN) != 0
	p.Z = w&(1<<psrZ) != 0
	p.C = w&(1<<psrC) != 0
	p.V = w&(1<<psrV) != 0
}

// setNZ sets N and Z from a 32-bit result.
func (p *PSR) setNZ(result uint32) {
	p.N = result>>31 == 1
	p.Z = result == 0
}
