package pipeline

import (
	"fmt"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

// FetchStage handles instruction fetch from the bus.
type FetchStage struct {
	bus emu.Bus
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(bus emu.Bus) *FetchStage {
	return &FetchStage{bus: bus}
}

// Fetch reads the instruction word at the given PC.
func (s *FetchStage) Fetch(pc uint32) Latch {
	return Latch{Valid: true, PC: pc, Word: s.bus.Read32(pc)}
}

// DecodeStage turns a latched word into an instruction.
type DecodeStage struct {
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(decoder *insts.Decoder) *DecodeStage {
	return &DecodeStage{decoder: decoder}
}

// Decode decodes the word held by latch.
func (s *DecodeStage) Decode(latch Latch) (*insts.Instruction, error) {
	inst, err := s.decoder.Decode(latch.Word)
	if err != nil {
		return nil, fmt.Errorf("decode at 0x%08X: %w", latch.PC, err)
	}
	return inst, nil
}

// ExecuteStage applies decoded instructions to architectural state.
type ExecuteStage struct {
	regFile  *emu.RegFile
	executor *emu.Executor
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(regFile *emu.RegFile, bus emu.Bus) *ExecuteStage {
	return &ExecuteStage{
		regFile:  regFile,
		executor: emu.NewExecutor(regFile, bus),
	}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	// Outcome tells whether the instruction redirected control flow.
	Outcome emu.Outcome

	// Skipped is true when the condition failed and nothing changed.
	Skipped bool
}

// Execute runs inst, fetched from pc.
func (s *ExecuteStage) Execute(inst *insts.Instruction, pc uint32) (ExecuteResult, error) {
	skipped := !emu.ConditionHolds(inst.Cond, s.regFile.CPSR)

	outcome, err := s.executor.Execute(inst)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("execute at 0x%08X: %w", pc, err)
	}

	return ExecuteResult{Outcome: outcome, Skipped: skipped}, nil
}
