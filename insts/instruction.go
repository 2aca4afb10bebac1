package insts

import "fmt"

// Reg names one of the 16 ARM general-purpose registers.
type Reg uint8

// ARM registers.
const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	SP = R13 // Stack pointer
	LR = R14 // Link register
	PC = R15 // Program counter
)

// NumRegs is the number of general-purpose registers.
const NumRegs = 16

func (r Reg) String() string {
	switch r {
	case SP:
		return "SP"
	case LR:
		return "LR"
	case PC:
		return "PC"
	}
	return fmt.Sprintf("R%d", uint8(r))
}

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always (unconditional)
)

var condNames = [...]string{
	"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC",
	"HI", "LS", "GE", "LT", "GT", "LE", "AL",
}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("Cond(%d)", uint8(c))
}

// DPOpcode is a data-processing opcode, bits [24:21].
type DPOpcode uint8

// Data-processing opcodes.
const (
	OpAND DPOpcode = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
)

var dpOpcodeNames = [...]string{
	"AND", "EOR", "SUB", "RSB", "ADD", "ADC", "SBC", "RSC",
	"TST", "TEQ", "CMP", "CMN", "ORR", "MOV", "BIC", "MVN",
}

func (o DPOpcode) String() string {
	return dpOpcodeNames[o&0xF]
}

// IsCompare reports whether the opcode only updates flags (TST, TEQ, CMP, CMN).
func (o DPOpcode) IsCompare() bool {
	return o >= OpTST && o <= OpCMN
}

// IsLogical reports whether the opcode takes its carry from the shifter.
func (o DPOpcode) IsLogical() bool {
	switch o {
	case OpAND, OpEOR, OpTST, OpTEQ, OpORR, OpMOV, OpBIC, OpMVN:
		return true
	}
	return false
}

// ShiftType represents a barrel shifter operation.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right (RRX when the immediate amount is 0)
)

func (s ShiftType) String() string {
	return [...]string{"LSL", "LSR", "ASR", "ROR"}[s&0x3]
}

// Shift describes how a register operand passes through the barrel shifter.
// When ByRegister is set the amount is the bottom byte of Rs, otherwise it
// is the 5-bit Amount.
type Shift struct {
	Type       ShiftType
	Amount     uint8
	ByRegister bool
	Rs         Reg
}

// Format represents an instruction encoding family.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatDataProcessing
	FormatPSRTransfer
	FormatMultiply
	FormatMultiplyLong
	FormatSwap
	FormatBranch
	FormatBranchExchange
	FormatSingleDataTransfer
	FormatBlockDataTransfer
)

var formatNames = [...]string{
	"Unknown", "DataProcessing", "PSRTransfer", "Multiply", "MultiplyLong",
	"Swap", "Branch", "BranchExchange", "SingleDataTransfer", "BlockDataTransfer",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "Unknown"
}

// Instruction is a decoded ARM instruction: a condition plus exactly one
// operation variant.
type Instruction struct {
	Cond      Cond
	Operation Operation
}

// Format returns the encoding family of the instruction's operation.
func (i *Instruction) Format() Format {
	if i == nil || i.Operation == nil {
		return FormatUnknown
	}
	return i.Operation.format()
}

func (i *Instruction) String() string {
	if i == nil || i.Operation == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v %+v", i.Cond, i.Operation)
}

// Operation is the closed set of instruction variants. The concrete types are
// DataProcessing, StatusRead, StatusWrite, Multiply, MultiplyLong, Swap,
// BranchOffset, BranchExchange, SingleDataTransfer and BlockDataTransfer.
type Operation interface {
	format() Format
}

// Operand2 is the second operand of a data-processing or MSR instruction:
// ImmediateOperand or RegisterOperand.
type Operand2 interface {
	isOperand2()
}

// ImmediateOperand is an 8-bit value rotated right by 2*Rotate.
type ImmediateOperand struct {
	Value  uint8
	Rotate uint8 // 4 bits
}

// RegisterOperand is a register passed through the barrel shifter.
type RegisterOperand struct {
	Rm    Reg
	Shift Shift
}

func (ImmediateOperand) isOperand2() {}
func (RegisterOperand) isOperand2()  {}

// Resolve returns the rotated immediate value.
func (o ImmediateOperand) Resolve() uint32 {
	return RotateRight(uint32(o.Value), uint(o.Rotate)*2)
}

// RotateRight rotates v right by n bits (mod 32).
func RotateRight(v uint32, n uint) uint32 {
	n &= 31
	return v>>n | v<<((32-n)&31)
}

// DataProcessing is an ALU operation: Rd = Rn <op> Operand2.
type DataProcessing struct {
	Opcode   DPOpcode
	SetFlags bool
	Rd       Reg
	Rn       Reg
	Operand2 Operand2
}

// StatusRead copies the status word into Rd (MRS).
type StatusRead struct {
	Rd    Reg
	Saved bool // SPSR instead of CPSR
}

// StatusWrite updates fields of the status word (MSR). FieldMask holds
// bits [19:16]: bit 0 selects the control byte, bit 3 the flags byte.
type StatusWrite struct {
	Saved     bool
	FieldMask uint8
	Source    Operand2
}

// Multiply is MUL or MLA: Rd = Rm*Rs (+ Rn).
type Multiply struct {
	Accumulate bool
	SetFlags   bool
	Rd         Reg
	Rn         Reg
	Rs         Reg
	Rm         Reg
}

// MultiplyLong is UMULL, UMLAL, SMULL or SMLAL: RdHi:RdLo = Rm*Rs (+ RdHi:RdLo).
type MultiplyLong struct {
	Signed     bool
	Accumulate bool
	SetFlags   bool
	RdHi       Reg
	RdLo       Reg
	Rs         Reg
	Rm         Reg
}

// Swap is SWP or SWPB: Rd = [Rn]; [Rn] = Rm.
type Swap struct {
	Byte bool
	Rn   Reg
	Rd   Reg
	Rm   Reg
}

// BranchOffset is B or BL with a 24-bit signed word offset.
type BranchOffset struct {
	Link   bool
	Offset uint32 // raw 24-bit field
}

// WordOffset returns the sign-extended offset in words.
func (b BranchOffset) WordOffset() int32 {
	return int32(b.Offset<<8) >> 8
}

// Displacement returns the signed byte offset added to PC.
func (b BranchOffset) Displacement() int32 {
	return b.WordOffset() << 2
}

// BranchExchange is BX: PC = Rm with bit 0 selecting Thumb state.
type BranchExchange struct {
	Rm Reg
}

// Offset is the address offset of a single data transfer: ImmediateOffset
// or RegisterOffset.
type Offset interface {
	isOffset()
}

// ImmediateOffset is an unsigned 12-bit offset.
type ImmediateOffset struct {
	Value uint16
}

// RegisterOffset is a register shifted by an immediate amount.
type RegisterOffset struct {
	Rm    Reg
	Shift Shift
}

func (ImmediateOffset) isOffset() {}
func (RegisterOffset) isOffset()  {}

// SingleDataTransfer is LDR, STR, LDRB or STRB.
type SingleDataTransfer struct {
	PreIndex  bool
	Up        bool
	Byte      bool
	WriteBack bool
	Load      bool
	Rn        Reg
	Rd        Reg
	Offset    Offset
}

// BlockDataTransfer is LDM or STM. Registers is in ascending order, which is
// also ascending memory order.
type BlockDataTransfer struct {
	PreIndex  bool
	Up        bool
	ForceUser bool
	WriteBack bool
	Load      bool
	Rn        Reg
	Registers []Reg
}

func (DataProcessing) format() Format     { return FormatDataProcessing }
func (StatusRead) format() Format         { return FormatPSRTransfer }
func (StatusWrite) format() Format        { return FormatPSRTransfer }
func (Multiply) format() Format           { return FormatMultiply }
func (MultiplyLong) format() Format       { return FormatMultiplyLong }
func (Swap) format() Format               { return FormatSwap }
func (BranchOffset) format() Format       { return FormatBranch }
func (BranchExchange) format() Format     { return FormatBranchExchange }
func (SingleDataTransfer) format() Format { return FormatSingleDataTransfer }
func (BlockDataTransfer) format() Format  { return FormatBlockDataTransfer }
