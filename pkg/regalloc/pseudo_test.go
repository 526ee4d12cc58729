package regalloc

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/ir"
)

func scalarCopy(c *ctx, srcReg ir.PhysReg) *ir.Instruction {
	src := c.program.AllocateTemp(ir.S1)
	dst := c.program.AllocateTemp(ir.S1)
	instr := ir.NewInstruction(ir.PParallelcopy, ir.FmtPseudo, 1, 1)
	instr.Operands[0] = ir.TempOperand(src)
	instr.Operands[0].SetFixed(srcReg)
	instr.Definitions[0] = ir.TempDef(dst)
	return instr
}

func TestHandlePseudoFlagOccupied(t *testing.T) {
	c := testCtx(0, 8)
	file := newRegisterFile()
	file.fill(ir.Reg(0), 1, 1)
	file.fill(ir.Reg(1), 1, 2)
	file.fill(ir.SCC, 1, 3)
	c.maxUsedSGPR = 2

	instr := scalarCopy(c, ir.Reg(0))
	handlePseudo(c, file, instr)

	if !instr.TmpInSCC {
		t.Error("TmpInSCC = false with the flag occupied")
	}
	if instr.ScratchSGPR != ir.Reg(2) {
		t.Errorf("ScratchSGPR = %v, want s2", instr.ScratchSGPR)
	}
}

func TestHandlePseudoFlagFree(t *testing.T) {
	c := testCtx(0, 8)
	file := newRegisterFile()
	file.fill(ir.Reg(0), 1, 1)
	c.maxUsedSGPR = 0

	instr := scalarCopy(c, ir.Reg(0))
	instr.TmpInSCC = true
	handlePseudo(c, file, instr)

	if instr.TmpInSCC {
		t.Error("TmpInSCC = true with the flag free")
	}
}

func TestHandlePseudoScratchAboveHighWater(t *testing.T) {
	// every register up to the high-water mark is occupied; the scratch
	// scan must continue upward into untouched registers
	c := testCtx(0, 8)
	file := newRegisterFile()
	file.fill(ir.Reg(0), 1, 1)
	file.fill(ir.Reg(1), 1, 2)
	file.fill(ir.SCC, 1, 3)
	c.maxUsedSGPR = 1

	instr := scalarCopy(c, ir.Reg(0))
	handlePseudo(c, file, instr)

	if instr.ScratchSGPR != ir.Reg(2) {
		t.Errorf("ScratchSGPR = %v, want s2", instr.ScratchSGPR)
	}
	if c.maxUsedSGPR != 2 {
		t.Errorf("maxUsedSGPR = %d, want 2 after scratch use", c.maxUsedSGPR)
	}
}

func TestHandlePseudoVectorOnlyNeedsNoScratch(t *testing.T) {
	c := testCtx(4, 8)
	file := newRegisterFile()
	file.fill(ir.SCC, 1, 3)

	src := c.program.AllocateTemp(ir.V1)
	dst := c.program.AllocateTemp(ir.V1)
	instr := ir.NewInstruction(ir.PParallelcopy, ir.FmtPseudo, 1, 1)
	instr.Operands[0] = ir.TempOperand(src)
	instr.Operands[0].SetFixed(v(0))
	instr.Definitions[0] = ir.TempDef(dst)

	handlePseudo(c, file, instr)

	if instr.TmpInSCC {
		t.Error("vgpr-only copy flagged as clobbering the scalar flag")
	}
}

func TestHandlePseudoIgnoresOtherFormats(t *testing.T) {
	c := testCtx(0, 8)
	file := newRegisterFile()
	file.fill(ir.SCC, 1, 3)

	instr := ir.NewInstruction(ir.SMovB32, ir.FmtSOP1, 1, 1)
	handlePseudo(c, file, instr)

	if instr.TmpInSCC {
		t.Error("non-pseudo instruction flagged")
	}
}
