// Package regalloc assigns a physical register to every SSA temporary of a
// program while keeping the two register banks within their declared demand.
// Conflicts are resolved by shuffling already-placed values through inserted
// parallel-copy instructions, and values renamed by those copies are patched
// up across the control-flow graph with on-the-fly phi construction.
package regalloc

import (
	"go.uber.org/zap"

	"github.com/shaderlab/gsc/pkg/ir"
)

// Policy tunes allocation behaviour. The zero value is the production
// configuration.
type Policy struct {
	// SkipOptimisticPath disables the cheap first-fit search so every
	// placement runs through the full conflict-resolution machinery. Only
	// useful to stress that machinery in tests.
	SkipOptimisticPath bool

	// Logger receives placement traces. Nil means no logging.
	Logger *zap.Logger
}

// assignment records where a temporary currently lives.
type assignment struct {
	reg      ir.PhysReg
	rc       ir.RegClass
	assigned bool
}

// phiInfo tracks a phi created during renaming so it can later be proven
// trivial and removed, together with every instruction reading its result.
type phiInfo struct {
	phi      *ir.Instruction
	blockIdx int
	uses     map[*ir.Instruction]struct{}
}

// copyPair is one lane of a pending parallel copy: the value to move and
// its destination. The destination temporary is filled in by updateRenames.
type copyPair struct {
	op  ir.Operand
	def ir.Definition
}

type ctx struct {
	program *ir.Program

	assignments    []assignment // indexed by temp id
	renames        []map[uint32]ir.Temp
	incompletePhis [][]*ir.Instruction
	filled         []bool
	sealed         []bool
	origNames      map[uint32]ir.Temp
	phiMap         map[uint32]*phiInfo
	affinities     map[uint32]uint32
	vectors        map[uint32]*ir.Instruction
	splitVectors   map[uint32]*ir.Instruction
	pseudoDummy    *ir.Instruction

	maxUsedSGPR int
	maxUsedVGPR int
	sgprLimit   int
	vgprLimit   int

	// Registers a following instruction reads while this one writes; the
	// search must not place definitions there.
	warHint bitset512

	policy Policy
	log    *zap.Logger
}

func newCtx(program *ir.Program, policy Policy) *ctx {
	log := policy.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ctx{
		program:        program,
		assignments:    make([]assignment, program.PeekAllocationID()),
		renames:        makeRenameMaps(len(program.Blocks)),
		incompletePhis: make([][]*ir.Instruction, len(program.Blocks)),
		filled:         make([]bool, len(program.Blocks)),
		sealed:         make([]bool, len(program.Blocks)),
		origNames:      make(map[uint32]ir.Temp),
		phiMap:         make(map[uint32]*phiInfo),
		affinities:     make(map[uint32]uint32),
		vectors:        make(map[uint32]*ir.Instruction),
		splitVectors:   make(map[uint32]*ir.Instruction),
		pseudoDummy:    ir.NewInstruction(ir.PParallelcopy, ir.FmtPseudo, 0, 0),
		maxUsedSGPR:    -1,
		maxUsedVGPR:    -1,
		sgprLimit:      program.Chip.SGPRLimit,
		vgprLimit:      program.Chip.VGPRLimit,
		policy:         policy,
		log:            log,
	}
}

func makeRenameMaps(n int) []map[uint32]ir.Temp {
	maps := make([]map[uint32]ir.Temp, n)
	for i := range maps {
		maps[i] = make(map[uint32]ir.Temp)
	}
	return maps
}

// newAssignment grows the assignment table to cover a temp id just handed
// out by the program.
func (c *ctx) newAssignment(id uint32, a assignment) {
	for uint32(len(c.assignments)) <= id {
		c.assignments = append(c.assignments, assignment{})
	}
	c.assignments[id] = a
}

// bitset512 covers every unit of the register file.
type bitset512 [8]uint64

func (b *bitset512) set(i uint32)      { b[i/64] |= 1 << (i % 64) }
func (b *bitset512) get(i uint32) bool { return b[i/64]&(1<<(i%64)) != 0 }
func (b *bitset512) reset()            { *b = bitset512{} }

// bitset128 covers the scalar bank plus the condition flag (bit 127).
type bitset128 [2]uint64

func (b *bitset128) set(i uint32)      { b[i/64] |= 1 << (i % 64) }
func (b *bitset128) get(i uint32) bool { return b[i/64]&(1<<(i%64)) != 0 }

func divCeil(a, b int) int {
	return (a + b - 1) / b
}

func alignUp(v, a int) int {
	return divCeil(v, a) * a
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minReg(a, b ir.PhysReg) ir.PhysReg {
	if a < b {
		return a
	}
	return b
}
