package ir

import "github.com/shaderlab/gsc/pkg/target"

// Block is a basic block of the control-flow graph. Predecessor and
// successor lists come in two kinds: logical edges reflect control flow as
// the divergence-aware front end sees it, linear edges reflect the raw
// hardware control flow. Uniform data only needs to be consistent along
// logical edges; control-mask state must be consistent along linear edges.
type Block struct {
	Index        int
	Instructions []*Instruction

	LogicalPreds []int
	LogicalSuccs []int
	LinearPreds  []int
	LinearSuccs  []int

	// Set by allocation when a predecessor must preserve the scalar
	// condition flag across the control transfer into this block.
	SCCLiveOut  bool
	ScratchSGPR PhysReg
}

// RegisterDemand is the declared register usage ceiling per bank, in units.
type RegisterDemand struct {
	VGPR int
	SGPR int
}

// Config is the output record the hardware encoder sizes the final
// register declaration from.
type Config struct {
	NumVGPRs int
	NumSGPRs int
}

// Program is one compiled function: its blocks, target description and the
// register demand bounds computed by earlier passes. Temporaries are
// identified by dense ids starting at 1; their classes are recorded here.
type Program struct {
	Blocks []*Block
	Chip   target.Chip

	// Current usage ceiling per bank; allocation may raise it up to the
	// chip limits when placement is otherwise infeasible.
	MaxRegDemand RegisterDemand

	Config Config

	tempClasses []RegClass // indexed by temp id; slot 0 unused
}

// NewProgram builds an empty program for the given chip.
func NewProgram(chip target.Chip) *Program {
	return &Program{
		Chip:        chip,
		tempClasses: make([]RegClass, 1),
	}
}

// NewBlock appends an empty block and returns it.
func (p *Program) NewBlock() *Block {
	b := &Block{Index: len(p.Blocks)}
	p.Blocks = append(p.Blocks, b)
	return b
}

// AllocateTemp creates a fresh temporary of the given class.
func (p *Program) AllocateTemp(rc RegClass) Temp {
	id := uint32(len(p.tempClasses))
	p.tempClasses = append(p.tempClasses, rc)
	return Temp{ID: id, RC: rc}
}

// PeekAllocationID returns the id the next AllocateTemp call will use.
func (p *Program) PeekAllocationID() uint32 {
	return uint32(len(p.tempClasses))
}

// TempClass returns the register class of a temporary by id.
func (p *Program) TempClass(id uint32) RegClass {
	return p.tempClasses[id]
}
