package regalloc

import (
	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

// handlePseudo prepares the shuffle pseudo-instructions for lowering: when
// their expansion may clobber the scalar condition flag, pick a scratch
// scalar register (and note whether the flag itself must be saved there).
func handlePseudo(c *ctx, file *RegisterFile, instr *ir.Instruction) {
	if instr.Format != ir.FmtPseudo {
		return
	}
	switch instr.Opcode {
	case ir.PExtractVector, ir.PCreateVector, ir.PSplitVector, ir.PParallelcopy, ir.PWQM:
	default:
		return
	}

	// all-vgpr writes never touch the flag
	writesSGPR := false
	for i := range instr.Definitions {
		if instr.Definitions[i].Temp().Type() == ir.SGPR {
			writesSGPR = true
			break
		}
	}
	readsSGPR := false
	readsSubdword := false
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.Temp().Type() == ir.SGPR {
			readsSGPR = true
			break
		}
		if op.IsTemp() && op.RegClass().IsSubdword() {
			readsSubdword = true
		}
	}
	needsScratch := (writesSGPR && readsSGPR) ||
		(c.program.Chip.Gen <= target.GFX7 && readsSubdword)
	if !needsScratch {
		return
	}

	if file.regs[ir.SCC.Unit()] != 0 {
		instr.TmpInSCC = true

		reg := c.maxUsedSGPR
		for reg >= 0 && file.regs[uint32(reg)] != 0 {
			reg--
		}
		if reg < 0 {
			reg = c.maxUsedSGPR + 1
			for reg < c.program.MaxRegDemand.SGPR && file.regs[uint32(reg)] != 0 {
				reg++
			}
			if reg == c.program.MaxRegDemand.SGPR {
				if !readsSubdword || file.regs[ir.M0.Unit()] != 0 {
					panic("regalloc: no scratch register for flag preservation")
				}
				reg = int(ir.M0.Unit())
			}
		}

		adjustMaxUsedRegs(c, ir.S1, uint32(reg))
		instr.ScratchSGPR = ir.Reg(uint32(reg))
	} else {
		instr.TmpInSCC = false
	}
}
