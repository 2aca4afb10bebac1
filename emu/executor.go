package emu

import (
	"fmt"

	"github.com/sarchlab/gbasim/insts"
)

// Outcome reports whether an executed instruction changed control flow.
type Outcome uint8

// Execution outcomes.
const (
	// OutcomeContinue means execution falls through to the next word.
	OutcomeContinue Outcome = iota
	// OutcomeRedirected means R15 was written and the pipeline must flush.
	OutcomeRedirected
)

func (o Outcome) String() string {
	if o == OutcomeRedirected {
		return "Redirected"
	}
	return "Continue"
}

// Status word field-mask bits of MSR.
const (
	fieldControl = 1 << 0
	fieldFlags   = 1 << 3
)

// Executor applies decoded ARM instructions to a register file and bus.
//
// R15 must hold the address of the executing instruction plus 8 when
// Execute is called. An error means the instruction had no effect.
type Executor struct {
	regFile *RegFile
	bus     Bus

	// Execution units
	alu        *ALU
	branchUnit *BranchUnit
	mulUnit    *MultiplyUnit
	lsu        *LoadStoreUnit
}

// NewExecutor creates an executor operating on regFile and bus.
func NewExecutor(regFile *RegFile, bus Bus) *Executor {
	return &Executor{
		regFile:    regFile,
		bus:        bus,
		alu:        NewALU(regFile),
		branchUnit: NewBranchUnit(regFile),
		mulUnit:    NewMultiplyUnit(regFile),
		lsu:        NewLoadStoreUnit(regFile, bus),
	}
}

// RegFile returns the executor's register file.
func (e *Executor) RegFile() *RegFile {
	return e.regFile
}

// Bus returns the executor's memory bus.
func (e *Executor) Bus() Bus {
	return e.bus
}

// Execute runs one instruction. A false condition is a no-op that still
// returns OutcomeContinue.
func (e *Executor) Execute(inst *insts.Instruction) (Outcome, error) {
	if inst == nil || inst.Operation == nil {
		return OutcomeContinue, fmt.Errorf("execute: %w", unimplemented(insts.FormatUnknown, "empty instruction"))
	}

	if !e.branchUnit.CheckCondition(inst.Cond) {
		return OutcomeContinue, nil
	}

	if err := e.check(inst.Operation); err != nil {
		return OutcomeContinue, err
	}

	return e.dispatch(inst.Operation), nil
}

// check rejects forms that need state this core does not model, or whose
// result is unpredictable, before anything is modified.
func (e *Executor) check(op insts.Operation) error {
	switch o := op.(type) {
	case insts.DataProcessing:
		if o.SetFlags && o.Rd == insts.PC && !o.Opcode.IsCompare() {
			return unimplemented(insts.FormatDataProcessing, "status restore from SPSR")
		}
	case insts.StatusRead:
		if o.Saved {
			return unimplemented(insts.FormatPSRTransfer, "MRS from SPSR")
		}
		if o.Rd == insts.PC {
			return unimplemented(insts.FormatPSRTransfer, "MRS into R15")
		}
	case insts.StatusWrite:
		if o.Saved {
			return unimplemented(insts.FormatPSRTransfer, "MSR to SPSR")
		}
	case insts.Multiply:
		if o.Rd == insts.PC {
			return unimplemented(insts.FormatMultiply, "R15 destination")
		}
	case insts.MultiplyLong:
		if o.RdHi == insts.PC || o.RdLo == insts.PC || o.RdHi == o.RdLo {
			return unimplemented(insts.FormatMultiplyLong, "unpredictable destination")
		}
	case insts.Swap:
		if o.Rd == insts.PC || o.Rn == insts.PC || o.Rm == insts.PC {
			return unimplemented(insts.FormatSwap, "R15 operand")
		}
	case insts.SingleDataTransfer:
		if o.Rn == insts.PC && (o.WriteBack || !o.PreIndex) {
			return unimplemented(insts.FormatSingleDataTransfer, "write-back to R15")
		}
	case insts.BlockDataTransfer:
		if o.Rn == insts.PC && o.WriteBack {
			return unimplemented(insts.FormatBlockDataTransfer, "write-back to R15")
		}
		if o.Load && o.ForceUser && loadsPC(o) {
			return unimplemented(insts.FormatBlockDataTransfer, "status restore from SPSR")
		}
	}
	return nil
}

func loadsPC(o insts.BlockDataTransfer) bool {
	if len(o.Registers) == 0 {
		return true
	}
	return o.Registers[len(o.Registers)-1] == insts.PC
}

func (e *Executor) dispatch(op insts.Operation) Outcome {
	redirected := false

	switch o := op.(type) {
	case insts.DataProcessing:
		redirected = e.alu.Execute(o)
	case insts.StatusRead:
		e.regFile.WriteReg(o.Rd, e.regFile.CPSR.Word())
	case insts.StatusWrite:
		e.writeStatus(o)
	case insts.Multiply:
		e.mulUnit.Multiply(o)
	case insts.MultiplyLong:
		e.mulUnit.MultiplyLong(o)
	case insts.Swap:
		e.lsu.Swap(o)
	case insts.BranchOffset:
		e.branchUnit.B(o.Displacement(), o.Link)
		redirected = true
	case insts.BranchExchange:
		e.branchUnit.BX(o.Rm)
		redirected = true
	case insts.SingleDataTransfer:
		redirected = e.lsu.Transfer(o)
	case insts.BlockDataTransfer:
		redirected = e.lsu.BlockTransfer(o)
	}

	if redirected {
		return OutcomeRedirected
	}
	return OutcomeContinue
}

// writeStatus executes MSR. The execution state bit is not writable.
func (e *Executor) writeStatus(o insts.StatusWrite) {
	value, _ := e.alu.Operand2(o.Source)

	if o.FieldMask&fieldFlags != 0 {
		e.regFile.CPSR.SetFlagsByte(value)
	}
	if o.FieldMask&fieldControl != 0 {
		e.regFile.CPSR.Control = uint8(value) &^ (1 << psrT)
	}
}
