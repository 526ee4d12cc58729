package ir

// Format is the hardware encoding family of an instruction. VOP3 and SDWA
// act as modifier bits: a VOP2 instruction upgraded to the longer VOP3
// encoding keeps its base format bit and gains the VOP3 bit.
type Format uint32

const (
	FmtPseudo Format = 1 << iota
	FmtSOP1
	FmtSOP2
	FmtSOPK
	FmtSOPP
	FmtSOPC
	FmtSMEM
	FmtVOP1
	FmtVOP2
	FmtVOPC
	FmtVINTRP
	FmtVOP3P
	FmtDS
	FmtMUBUF
	FmtMTBUF
	FmtMIMG
	FmtEXP
	FmtFLAT
	FmtSCRATCH
	FmtGLOBAL

	// modifier bits
	FmtVOP3 Format = 1 << 30
	FmtSDWA Format = 1 << 31
)

// AsVOP3 upgrades an encoding to its VOP3 form.
func AsVOP3(f Format) Format {
	return f | FmtVOP3
}

// Instruction is one ordered entry of a basic block: an opcode plus read
// (operand) and write (definition) slots. The extra fields carry encoding
// state the allocator may set: byte-select bits for sub-dword placement and
// the scratch bookkeeping of flag-preserving pseudo operations.
type Instruction struct {
	Opcode      Opcode
	Format      Format
	Operands    []Operand
	Definitions []Definition

	// Pseudo-op flag preservation (parallel copies, vector shuffles).
	TmpInSCC    bool
	ScratchSGPR PhysReg

	// Byte-select fields of the VOP3 / VOP3P encodings.
	Opsel   uint8
	OpselLo uint8
	OpselHi uint8

	// DS addressing through the global data share.
	GDS bool

	// Input/output modifiers; instructions carrying any cannot be
	// rewritten to the short two-operand forms.
	Clamp   bool
	Omod    uint8
	NegMask uint8
	AbsMask uint8
}

// NewInstruction builds an instruction with the given number of empty
// operand and definition slots.
func NewInstruction(op Opcode, format Format, numOperands, numDefinitions int) *Instruction {
	return &Instruction{
		Opcode:      op,
		Format:      format,
		Operands:    make([]Operand, numOperands),
		Definitions: make([]Definition, numDefinitions),
	}
}

func (i *Instruction) IsPseudo() bool { return i.Format&FmtPseudo != 0 }
func (i *Instruction) IsVOP3() bool   { return i.Format&FmtVOP3 != 0 }
func (i *Instruction) IsVOP3P() bool  { return i.Format&FmtVOP3P != 0 }
func (i *Instruction) IsSDWA() bool   { return i.Format&FmtSDWA != 0 }
func (i *Instruction) IsVOPC() bool   { return i.Format&FmtVOPC != 0 }
func (i *Instruction) IsSMEM() bool   { return i.Format&FmtSMEM != 0 }
func (i *Instruction) IsDS() bool     { return i.Format&FmtDS != 0 }
func (i *Instruction) IsMUBUF() bool  { return i.Format&FmtMUBUF != 0 }
func (i *Instruction) IsMIMG() bool   { return i.Format&FmtMIMG != 0 }
func (i *Instruction) IsEXP() bool    { return i.Format&FmtEXP != 0 }

// IsVMEM covers the buffer and image memory encodings.
func (i *Instruction) IsVMEM() bool {
	return i.Format&(FmtMUBUF|FmtMTBUF|FmtMIMG) != 0
}

// IsPhi reports whether this is a phi pseudo-instruction of either kind.
func (i *Instruction) IsPhi() bool {
	return i.Opcode == PPhi || i.Opcode == PLinearPhi
}

// UsesModifiers reports whether any input/output modifier is set.
func (i *Instruction) UsesModifiers() bool {
	return i.Clamp || i.Omod != 0 || i.NegMask != 0 || i.AbsMask != 0
}
