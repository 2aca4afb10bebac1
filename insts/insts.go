// Package insts provides ARM7TDMI (ARM state) instruction definitions and
// decoding.
//
// This package implements decoding of 32-bit ARM machine words into
// structured instruction representations. It supports:
//   - Data Processing: AND, EOR, SUB, RSB, ADD, ADC, SBC, RSC, TST, TEQ,
//     CMP, CMN, ORR, MOV, BIC, MVN with immediate or shifted register operands
//   - PSR Transfer: MRS, MSR
//   - Multiply: MUL, MLA, UMULL, UMLAL, SMULL, SMLAL
//   - Single Data Swap: SWP, SWPB
//   - Branch instructions: B, BL, BX
//   - Data Transfer: LDR, STR, LDRB, STRB, LDM, STM
//
// Halfword transfers, coprocessor instructions and software interrupts are
// reported as decode errors.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0xE0833002) // ADD R3, R3, R2
//	if err != nil {
//		return err
//	}
//	dp := inst.Operation.(insts.DataProcessing)
//	fmt.Printf("Op: %v, Rd: %v, Rn: %v\n", dp.Opcode, dp.Rd, dp.Rn)
package insts
