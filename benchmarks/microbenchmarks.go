package benchmarks

import (
	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific pipeline characteristic and returns through LR.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		countdownLoop(),
		memorySequential(),
		functionCalls(),
		stackFrames(),
		multiplyChain(),
		branchTaken(),
		conditionalSelect(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick
// validation: a loop, memory traffic and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countdownLoop(),
		memorySequential(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - straight-line ALU work, no flushes until return
func arithmeticSequential() Benchmark {
	words := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		r := insts.Reg(i % 5)
		words = append(words, EncodeADDImm(r, r, 1))
	}
	words = append(words, EncodeBX(insts.LR))

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDs - one instruction per cycle once full",
		Program:     BuildProgram(words...),
		ExpectedR0:  4,
	}
}

// 2. Countdown Loop - taken backward branch every iteration
func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "10 iterations of ADD/SUBS/BNE - refill cost of a taken branch",
		Program: BuildProgram(
			EncodeMOVImm(insts.R1, 10),
			EncodeMOVImm(insts.R0, 0),
			EncodeADDImm(insts.R0, insts.R0, 3), // loop:
			EncodeSUBSImm(insts.R1, insts.R1, 1),
			EncodeBCond(4, 2, insts.CondNE),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 30,
	}
}

// 3. Memory Sequential - post-indexed stores then loads in IWRAM
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "store 8 words then sum them back - data traffic through the bus",
		Program: BuildProgram(
			EncodeMOVImm(insts.R2, emu.IWRAMBase),
			EncodeMOVImm(insts.R1, 8),
			EncodeMOVImm(insts.R3, 0),
			EncodeSTRPost(insts.R1, insts.R2, 4), // store:
			EncodeSUBSImm(insts.R1, insts.R1, 1),
			EncodeBCond(5, 3, insts.CondNE),
			EncodeMOVImm(insts.R2, emu.IWRAMBase),
			EncodeMOVImm(insts.R0, 0),
			EncodeMOVImm(insts.R1, 8),
			EncodeLDRPost(insts.R3, insts.R2, 4), // load:
			EncodeADDReg(insts.R0, insts.R0, insts.R3),
			EncodeSUBSImm(insts.R1, insts.R1, 1),
			EncodeBCond(12, 9, insts.CondNE),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 36,
	}
}

// 4. Function Calls - BL and MOV PC, LR round trips
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf routine - call and return overhead",
		Program: BuildProgram(
			EncodeMOVReg(insts.R4, insts.LR),
			EncodeMOVImm(insts.R0, 0),
			EncodeB(2, 6, true),
			EncodeB(3, 6, true),
			EncodeB(4, 6, true),
			EncodeBX(insts.R4),
			EncodeADDImm(insts.R0, insts.R0, 5), // add5:
			EncodeMOVReg(insts.PC, insts.LR),
		),
		ExpectedR0: 15,
	}
}

// 5. Stack Frames - STMDB/LDMIA around a body that clobbers R4
func stackFrames() Benchmark {
	return Benchmark{
		Name:        "stack_frames",
		Description: "push and pop a frame - block transfers in IWRAM",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(insts.R4, 7)
		},
		Program: BuildProgram(
			EncodePush(insts.R4, insts.LR),
			EncodeMOVImm(insts.R4, 1),
			EncodeMOVImm(insts.R0, 32),
			EncodeADDReg(insts.R0, insts.R0, insts.R4),
			EncodePop(insts.R4, insts.LR),
			EncodeADDReg(insts.R0, insts.R0, insts.R4),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 40,
	}
}

// 6. Multiply Chain - factorial of 5
func multiplyChain() Benchmark {
	return Benchmark{
		Name:        "multiply_chain",
		Description: "5! with MUL in a loop - dependent multiplies",
		Program: BuildProgram(
			EncodeMOVImm(insts.R1, 1),
			EncodeMOVImm(insts.R2, 5),
			EncodeMUL(insts.R3, insts.R1, insts.R2), // loop:
			EncodeMOVReg(insts.R1, insts.R3),
			EncodeSUBSImm(insts.R2, insts.R2, 1),
			EncodeBCond(5, 2, insts.CondNE),
			EncodeMOVReg(insts.R0, insts.R1),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 120,
	}
}

// 7. Branch Taken - forward branches over dead code
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "2 forward branches skipping dead stores - flush cost",
		Program: BuildProgram(
			EncodeMOVImm(insts.R0, 0),
			EncodeB(1, 3, false),
			EncodeMOVImm(insts.R0, 99),
			EncodeADDImm(insts.R0, insts.R0, 1),
			EncodeB(4, 6, false),
			EncodeMOVImm(insts.R0, 99),
			EncodeADDImm(insts.R0, insts.R0, 1),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 2,
	}
}

// 8. Conditional Select - CMP followed by predicated moves
func conditionalSelect() Benchmark {
	return Benchmark{
		Name:        "conditional_select",
		Description: "max(5, 9) with MOVGT/MOVLE - skipped instructions cost a cycle",
		Program: BuildProgram(
			EncodeMOVImm(insts.R1, 5),
			EncodeMOVImm(insts.R2, 9),
			EncodeCMPReg(insts.R1, insts.R2),
			WithCond(EncodeMOVReg(insts.R0, insts.R1), insts.CondGT),
			WithCond(EncodeMOVReg(insts.R0, insts.R2), insts.CondLE),
			EncodeBX(insts.LR),
		),
		ExpectedR0: 9,
	}
}
