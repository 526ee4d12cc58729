package regalloc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/liveness"
	"github.com/shaderlab/gsc/pkg/target"
)

// Run assigns a physical register to every temporary of the program. The
// blocks must be in dominance-respecting order and liveOut must hold one
// live-out set per block, as produced by liveness.Compute. The sets are
// consumed: after the prepass each one holds the live-in set of its block.
func Run(program *ir.Program, liveOut []liveness.IDSet, policy Policy) error {
	if len(liveOut) != len(program.Blocks) {
		return fmt.Errorf("regalloc: %d live-out sets for %d blocks", len(liveOut), len(program.Blocks))
	}

	c := newCtx(program, policy)

	collectAffinities(c, liveOut)

	// register-file state right after the phis of each block
	sgprLiveIn := make([]bitset128, len(program.Blocks))

	for _, block := range program.Blocks {
		allocateBlock(c, block, liveOut[block.Index], sgprLiveIn)

		c.filled[block.Index] = true
		for _, succIdx := range block.LinearSuccs {
			succ := program.Blocks[succIdx]
			allFilled := true
			for _, predIdx := range succ.LinearPreds {
				if !c.filled[predIdx] {
					allFilled = false
					break
				}
			}
			if allFilled {
				sealBlock(c, succ)
			}
		}
	}

	stripRemovedPhis(program)
	chooseSCCSpillRegs(c, sgprLiveIn)

	program.Config.NumVGPRs = program.Chip.VGPRAlloc(c.maxUsedVGPR + 1)
	program.Config.NumSGPRs = program.Chip.SGPRAlloc(c.maxUsedSGPR + 1)
	return nil
}

// collectAffinities walks the program backwards gathering placement hints:
// chains of values that should share a register because phis, parallel
// copies or fused-multiply accumulators connect them, and the vector-build
// and vector-split relations. As a side effect each live-out set is reduced
// to the block's live-in set, which the forward pass starts from.
func collectAffinities(c *ctx, liveOut []liveness.IDSet) {
	gen := c.program.Chip.Gen

	// phiChains[i][0] is the last seen value of chain i; the rest are the
	// chain members.
	var phiChains [][]ir.Temp
	tempToChain := make(map[uint32]int)

	for blockIdx := len(c.program.Blocks) - 1; blockIdx >= 0; blockIdx-- {
		block := c.program.Blocks[blockIdx]
		live := liveOut[blockIdx]

		for ii := len(block.Instructions) - 1; ii >= 0; ii-- {
			instr := block.Instructions[ii]
			if instr.IsPhi() {
				def := &instr.Definitions[0]
				if def.IsKill() || def.IsFixed() {
					live.Erase(def.TempID())
					continue
				}
				chain := []ir.Temp{def.Temp(), def.Temp()}
				for i := range instr.Operands {
					op := &instr.Operands[i]
					if op.IsTemp() && op.RegClass() == def.RegClass() {
						chain = append(chain, op.Temp())
						tempToChain[op.TempID()] = len(phiChains)
					}
				}
				phiChains = append(phiChains, chain)
			} else {
				if instr.Opcode == ir.PCreateVector {
					for i := range instr.Operands {
						op := &instr.Operands[i]
						if op.IsTemp() && op.IsFirstKill() &&
							op.Temp().Type() == instr.Definitions[0].Temp().Type() {
							c.vectors[op.TempID()] = instr
						}
					}
				} else if instr.IsMIMG() && len(instr.Operands) > 4 {
					for i := 3; i < len(instr.Operands); i++ {
						if op := &instr.Operands[i]; op.IsTemp() {
							c.vectors[op.TempID()] = instr
						}
					}
				}

				if instr.Opcode == ir.PSplitVector && instr.Operands[0].IsFirstKillBeforeDef() {
					c.splitVectors[instr.Operands[0].TempID()] = instr
				}

				for i := range instr.Operands {
					if op := &instr.Operands[i]; op.IsTemp() {
						live.Insert(op.TempID())
					}
				}
			}

			for i := range instr.Definitions {
				def := &instr.Definitions[i]
				if !def.IsTemp() {
					continue
				}
				live.Erase(def.TempID())

				// this definition is the chain's latest value; try to pull
				// the copy or accumulator source into the chain as well
				chainIdx, ok := tempToChain[def.TempID()]
				if !ok || def.RegClass() != phiChains[chainIdx][0].RC {
					continue
				}
				phiChains[chainIdx][0] = def.Temp()

				var op ir.Operand
				if !def.IsFixed() && instr.Opcode == ir.PParallelcopy && i < len(instr.Operands) {
					op = instr.Operands[i]
				} else if isFusedMulAdd(gen, instr.Opcode) && !instr.UsesModifiers() {
					op = instr.Operands[2]
				}
				if op.IsTemp() && op.IsFirstKillBeforeDef() && def.RegClass() == op.RegClass() {
					phiChains[chainIdx] = append(phiChains[chainIdx], op.Temp())
					tempToChain[op.TempID()] = chainIdx
				}
			}
		}
	}

	for _, chain := range phiChains {
		for _, t := range chain[1:] {
			if t.ID != chain[0].ID {
				c.affinities[t.ID] = chain[0].ID
			}
		}
	}
}

// isFusedMulAdd reports whether the opcode is a three-operand multiply-add
// whose accumulator wants to share the destination register.
func isFusedMulAdd(gen target.Gen, op ir.Opcode) bool {
	switch op {
	case ir.VMadF32, ir.VMadF16, ir.VMadLegacyF16:
		return true
	case ir.VFmaF32, ir.VFmaF16:
		return gen >= target.GFX10
	}
	return false
}

// allocateBlock runs the forward pass over one block: place the phi
// definitions, then bind operands and definitions of every instruction in
// order, inserting parallel copies where placement demands shuffles.
func allocateBlock(c *ctx, block *ir.Block, live liveness.IDSet, sgprLiveIn []bitset128) {
	c.log.Debug("allocating block", zap.Int("block", block.Index))

	if block.Index == 0 && len(live) != 0 {
		panic("regalloc: entry block has live-in values")
	}

	file := newRegisterFile()
	c.warHint.reset()

	for id := range live {
		renamed := handleLiveIn(c, ir.Temp{ID: id, RC: c.program.TempClass(id)}, block)
		// a live-range split may have turned the live-in into a phi, which
		// has no register yet
		if a := &c.assignments[renamed.ID]; a.assigned {
			def := ir.FixedDef(ir.Temp{ID: renamed.ID, RC: a.rc}, a.reg)
			file.fillDef(&def)
		}
	}

	var instructions []*ir.Instruction

	// The phis are already in place; they are treated as incomplete phis
	// and only their definitions are handled here. First pass: reuse the
	// register of an affinity-related value where it is still free.
	for _, phi := range block.Instructions {
		if !phi.IsPhi() {
			break
		}
		def := &phi.Definitions[0]
		if def.IsKill() || def.IsFixed() {
			continue
		}

		aff, ok := c.affinities[def.TempID()]
		if !ok || !c.assignments[aff].assigned {
			continue
		}
		reg := c.assignments[aff].reg
		if reg == ir.SCC || reg == ir.Exec {
			// only usable when every source already sits there
			usable := true
			for i := range phi.Operands {
				op := &phi.Operands[i]
				if !(op.IsTemp() && c.assignments[op.TempID()].assigned &&
					c.assignments[op.TempID()].reg == reg) {
					usable = false
					break
				}
			}
			if !usable {
				continue
			}
		}
		if !file.test(reg, def.Bytes()) {
			def.SetFixed(reg)
			file.fillDef(def)
			c.assignments[def.TempID()] = assignment{reg: def.PhysReg(), rc: def.RegClass(), assigned: true}
		}
	}

	// second pass: find registers for the remaining phis
	phiEnd := 0
	for ; phiEnd < len(block.Instructions) && block.Instructions[phiEnd].IsPhi(); phiEnd++ {
		phi := block.Instructions[phiEnd]
		def := &phi.Definitions[0]
		if def.IsKill() {
			continue
		}

		if !def.IsFixed() {
			var pcs []copyPair

			// prefer a register one of the sources already occupies
			for i := range phi.Operands {
				op := &phi.Operands[i]
				if !(op.IsTemp() && c.assignments[op.TempID()].assigned) {
					continue
				}
				reg := c.assignments[op.TempID()].reg
				// tried on the previous pass
				if reg == ir.SCC || reg == ir.Exec {
					continue
				}
				if getRegSpecified(c, file, def.RegClass(), phi, reg) {
					def.SetFixed(reg)
					break
				}
			}
			if !def.IsFixed() {
				def.SetFixed(getReg(c, file, def.Temp(), &pcs, phi, -1))
				updateRenames(c, file, &pcs, phi, true)
			}

			for _, pc := range pcs {
				// a copy from a sibling phi just moves that phi's register
				var prevPhi *ir.Instruction
				for _, other := range instructions {
					if other.Definitions[0].TempID() == pc.op.TempID() {
						prevPhi = other
					}
				}
				for j := phiEnd + 1; prevPhi == nil && j < len(block.Instructions) && block.Instructions[j].IsPhi(); j++ {
					if block.Instructions[j].Definitions[0].TempID() == pc.op.TempID() {
						prevPhi = block.Instructions[j]
					}
				}
				if prevPhi != nil {
					prevDef := &prevPhi.Definitions[0]
					file.clearDef(prevDef)
					prevDef.SetFixed(pc.def.PhysReg())
					c.assignments[prevDef.TempID()] = assignment{reg: pc.def.PhysReg(), rc: pc.def.RegClass(), assigned: true}
					file.fillDef(prevDef)
					continue
				}

				// rename
				orig := pc.op.Temp()
				if o, ok := c.origNames[pc.op.TempID()]; ok {
					orig = o
				} else {
					c.origNames[pc.def.TempID()] = orig
				}
				c.renames[block.Index][orig.ID] = pc.def.Temp()

				// a moved live-in needs a new phi so the predecessors place
				// the value at its new register
				opcode := ir.PPhi
				preds := block.LogicalPreds
				if pc.op.Temp().RC.IsLinear() {
					opcode = ir.PLinearPhi
					preds = block.LinearPreds
				}
				newPhi := ir.NewInstruction(opcode, ir.FmtPseudo, len(preds), 1)
				newPhi.Definitions[0] = pc.def
				for i := range preds {
					newPhi.Operands[i] = pc.op
				}
				instructions = append(instructions, newPhi)
			}

			file.fillDef(def)
			c.assignments[def.TempID()] = assignment{reg: def.PhysReg(), rc: def.RegClass(), assigned: true}
		}
		live.Insert(def.TempID())

		for i := range phi.Operands {
			op := &phi.Operands[i]
			if op.IsTemp() && op.RegClass() == def.RegClass() {
				c.affinities[op.TempID()] = def.TempID()
			}
		}

		instructions = append(instructions, phi)
	}

	for i := 0; i <= c.maxUsedSGPR; i++ {
		if file.val(uint32(i)) != 0 {
			sgprLiveIn[block.Index].set(uint32(i))
		}
	}
	if file.val(ir.SCC.Unit()) != 0 {
		sgprLiveIn[block.Index].set(127)
	}

	for ii := phiEnd; ii < len(block.Instructions); ii++ {
		instr := block.Instructions[ii]

		// parallel copies feeding successor phis are emitted between the
		// logical end and the branch, so the sources' ranges end here too
		if instr.Opcode == ir.PLogicalEnd {
			clearOutgoingPhiOperands(c, file, block)
			instructions = append(instructions, instr)
			continue
		}

		instructions = allocateInstruction(c, block, file, live, instr, instructions)
	}

	if debugEnabled {
		c.log.Debug("block done",
			zap.Int("block", block.Index),
			zap.String("sgprs", dumpRegs(c, file, false)),
			zap.String("vgprs", dumpRegs(c, file, true)))
	}

	block.Instructions = instructions
}

// clearOutgoingPhiOperands frees the registers of scalar values whose only
// remaining use is a phi of the single logical successor.
func clearOutgoingPhiOperands(c *ctx, file *RegisterFile, block *ir.Block) {
	if len(block.LogicalSuccs) != 1 {
		return
	}
	succ := c.program.Blocks[block.LogicalSuccs[0]]
	idx := 0
	for ; idx < len(succ.LogicalPreds); idx++ {
		if succ.LogicalPreds[idx] == block.Index {
			break
		}
	}
	for _, phi := range succ.Instructions {
		if phi.Opcode == ir.PPhi {
			if idx >= len(phi.Operands) {
				continue
			}
			op := &phi.Operands[idx]
			if op.IsTemp() && op.Temp().Type() == ir.SGPR && op.IsFirstKillBeforeDef() {
				phiOp := readVariable(c, op.Temp(), block.Index)
				def := ir.FixedDef(phiOp, c.assignments[phiOp.ID].reg)
				file.clearDef(&def)
			}
		} else if phi.Opcode != ir.PLinearPhi {
			break
		}
	}
}

func allocateInstruction(c *ctx, block *ir.Block, file *RegisterFile, live liveness.IDSet,
	instr *ir.Instruction, instructions []*ir.Instruction) []*ir.Instruction {

	gen := c.program.Chip.Gen
	var pcs []copyPair

	// operands
	for i := range instr.Operands {
		operand := &instr.Operands[i]
		if !operand.IsTemp() {
			continue
		}

		operand.SetTemp(readVariable(c, operand.Temp(), block.Index))
		if !c.assignments[operand.TempID()].assigned {
			panic("regalloc: operand read before assignment")
		}

		reg := c.assignments[operand.TempID()].reg
		if operandCanUseReg(gen, instr, i, reg, operand.RegClass()) {
			operand.SetFixed(reg)
		} else {
			getRegForOperand(c, file, &pcs, instr, operand, i)
		}

		if instr.IsEXP() ||
			(instr.IsVMEM() && i == 3 && gen == target.GFX6) ||
			(instr.IsDS() && instr.GDS) {
			for j := uint32(0); j < uint32(operand.Size()); j++ {
				c.warHint.set(operand.PhysReg().Unit() + j)
			}
		}

		if info, ok := c.phiMap[operand.TempID()]; ok {
			info.uses[instr] = struct{}{}
		}
	}

	// remove dead values from the register file
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.IsFirstKillBeforeDef() {
			file.clearOp(op)
		}
	}

	tryConvertToShortAccumulate(c, file, instr)
	fixSameRegDefinitions(instr)

	// fixed definitions first
	for i := range instr.Definitions {
		def := &instr.Definitions[i]
		if !def.IsFixed() {
			continue
		}

		adjustMaxUsedRegs(c, def.RegClass(), def.PhysReg().Unit())
		if file.test(def.PhysReg(), def.Bytes()) {
			evictForFixedDef(c, file, &pcs, instr, def)
		}

		if !def.IsTemp() {
			continue
		}
		if !def.IsKill() {
			live.Insert(def.TempID())
		}
		c.assignments[def.TempID()] = assignment{reg: def.PhysReg(), rc: def.RegClass(), assigned: true}
		file.fillDef(def)
	}

	// all other definitions
	for i := range instr.Definitions {
		def := &instr.Definitions[i]
		if def.IsFixed() || !def.IsTemp() {
			continue
		}

		if def.HasHint() && getRegSpecified(c, file, def.RegClass(), instr, def.Hint()) {
			def.SetFixed(def.Hint())
		} else if instr.Opcode == ir.PSplitVector {
			reg := instr.Operands[0].PhysReg()
			for j := 0; j < i; j++ {
				reg = reg.Advance(instr.Definitions[j].Bytes())
			}
			if getRegSpecified(c, file, def.RegClass(), instr, reg) {
				def.SetFixed(reg)
			}
		} else if instr.Opcode == ir.PWQM || instr.Opcode == ir.PParallelcopy {
			op := &instr.Operands[i]
			if op.IsTemp() && op.Temp().Type() == def.Temp().Type() &&
				!file.test(op.PhysReg(), def.Bytes()) {
				def.SetFixed(op.PhysReg())
			}
		} else if instr.Opcode == ir.PExtractVector {
			reg := instr.Operands[0].PhysReg().Advance(def.Bytes() * int(instr.Operands[1].ConstantValue()))
			if getRegSpecified(c, file, def.RegClass(), instr, reg) {
				def.SetFixed(reg)
			}
		} else if instr.Opcode == ir.PCreateVector {
			reg := getRegCreateVector(c, file, def.Temp(), &pcs, instr)
			updateRenames(c, file, &pcs, instr, false)
			def.SetFixed(reg)
		}

		if !def.IsFixed() {
			if def.RegClass().IsSubdword() && def.Bytes() < 4 {
				reg := getReg(c, file, def.Temp(), &pcs, instr, -1)
				def.SetFixed(reg)
				if reg.Byte() != 0 || file.test(reg, 4) {
					addSubdwordDefinition(c.program, instr, i, reg)
				}
			} else {
				def.SetFixed(getReg(c, file, def.Temp(), &pcs, instr, -1))
			}
			updateRenames(c, file, &pcs, instr, instr.Opcode != ir.PCreateVector)
		}

		if isVGPR := def.Temp().Type() == ir.VGPR; isVGPR != (def.PhysReg().Unit() >= ir.FirstVGPR) {
			panic("regalloc: definition placed in the wrong bank")
		}

		if !def.IsKill() {
			live.Insert(def.TempID())
		}
		c.assignments[def.TempID()] = assignment{reg: def.PhysReg(), rc: def.RegClass(), assigned: true}
		file.fillDef(def)
	}

	handlePseudo(c, file, instr)

	// kill dead definitions and late-kill operands, and make sure assigned
	// sub-dword reads are encodable
	for i := range instr.Definitions {
		def := &instr.Definitions[i]
		if def.IsTemp() && def.IsKill() {
			file.clearDef(def)
		}
	}
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.IsFirstKill() && op.IsLateKill() {
			file.clearOp(op)
		}
		if op.IsTemp() && op.PhysReg().Byte() != 0 {
			addSubdwordOperand(c, instr, i, op.PhysReg().Byte(), op.RegClass())
		}
	}

	if len(pcs) > 0 {
		instructions = append(instructions, emitParallelcopy(c, block, file, instr, pcs))
	}

	if needsVCCEncoding(instr) {
		instructions = upgradeToVOP3(c, file, instr, instructions)
	}

	return append(instructions, instr)
}

// tryConvertToShortAccumulate rewrites a three-operand multiply-add whose
// accumulator dies here into the two-operand form that overwrites it,
// unless an affinity wants the result elsewhere and that register is free.
func tryConvertToShortAccumulate(c *ctx, file *RegisterFile, instr *ir.Instruction) {
	gen := c.program.Chip.Gen
	convertible := isFusedMulAdd(gen, instr.Opcode) ||
		(instr.Opcode == ir.VPkFmaF16 && gen >= target.GFX10)
	if !convertible ||
		!instr.Operands[2].IsTemp() || !instr.Operands[2].IsKillBeforeDef() ||
		instr.Operands[2].Temp().Type() != ir.VGPR ||
		!instr.Operands[1].IsTemp() || instr.Operands[1].Temp().Type() != ir.VGPR ||
		instr.UsesModifiers() ||
		instr.Operands[0].PhysReg().Byte() != 0 ||
		instr.Operands[1].PhysReg().Byte() != 0 ||
		instr.Operands[2].PhysReg().Byte() != 0 {
		return
	}

	defID := instr.Definitions[0].TempID()
	if aff, ok := c.affinities[defID]; ok && c.assignments[aff].assigned &&
		instr.Operands[2].PhysReg() != c.assignments[aff].reg &&
		!file.test(c.assignments[aff].reg, instr.Operands[2].Bytes()) {
		// the affinity register is reachable; keep the long form so the
		// result can be placed there
		return
	}

	instr.Format = ir.FmtVOP2
	switch instr.Opcode {
	case ir.VMadF32:
		instr.Opcode = ir.VMacF32
	case ir.VFmaF32:
		instr.Opcode = ir.VFmacF32
	case ir.VMadF16, ir.VMadLegacyF16:
		instr.Opcode = ir.VMacF16
	case ir.VFmaF16:
		instr.Opcode = ir.VFmacF16
	case ir.VPkFmaF16:
		instr.Opcode = ir.VPkFmacF16
	}
}

// fixSameRegDefinitions pins definitions that the encoding forces onto the
// register of one of the operands.
func fixSameRegDefinitions(instr *ir.Instruction) {
	switch instr.Opcode {
	case ir.VInterpP2F32, ir.VMacF32, ir.VFmacF32, ir.VMacF16, ir.VFmacF16,
		ir.VPkFmacF16, ir.VWritelaneB32, ir.VWritelaneB32E64:
		instr.Definitions[0].SetFixed(instr.Operands[2].PhysReg())
	case ir.SAddkI32, ir.SMulkI32:
		instr.Definitions[0].SetFixed(instr.Operands[0].PhysReg())
	default:
		if instr.IsMUBUF() && len(instr.Definitions) == 1 && len(instr.Operands) == 4 {
			instr.Definitions[0].SetFixed(instr.Operands[3].PhysReg())
		} else if instr.IsMIMG() && len(instr.Definitions) == 1 && !instr.Operands[2].IsUndefined() {
			instr.Definitions[0].SetFixed(instr.Operands[2].PhysReg())
		}
	}
}

// evictForFixedDef moves whatever occupies a fixed definition's register.
// Killed operands are re-enabled in a scratch file so the displaced values
// do not land on them.
func evictForFixedDef(c *ctx, file *RegisterFile, pcs *[]copyPair, instr *ir.Instruction, def *ir.Definition) {
	defRegs := interval{lo: def.PhysReg(), size: def.Size()}
	vars := collectVars(c, file, defRegs)

	tmpFile := file.clone()
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.IsFirstKillBeforeDef() {
			tmpFile.fillOp(op)
		}
	}

	info := makeDefInfo(c, instr, def.RegClass(), -1)
	if !getRegsForCopies(c, tmpFile, pcs, vars, info.bounds, instr, defRegs) {
		panic("regalloc: cannot move values blocking a fixed definition")
	}
	updateRenames(c, file, pcs, instr, false)
}

// emitParallelcopy packs the pending copy pairs into one parallelcopy
// instruction and threads the renames through the SSA bookkeeping. When the
// condition flag is live and a scalar copy's destination overlaps another scalar
// copy's source, the lowering needs a scratch register; handlePseudo picks
// it against a file reflecting the state the copy executes in.
func emitParallelcopy(c *ctx, block *ir.Block, file *RegisterFile, instr *ir.Instruction, pcs []copyPair) *ir.Instruction {
	pc := ir.NewInstruction(ir.PParallelcopy, ir.FmtPseudo, len(pcs), len(pcs))

	tempInSCC := file.val(ir.SCC.Unit()) != 0
	sgprOperandsAliasDefs := false
	var sgprOperands [4]uint64
	for i, pair := range pcs {
		if tempInSCC && pair.op.IsTemp() && pair.op.Temp().Type() == ir.SGPR && !sgprOperandsAliasDefs {
			reg := pair.op.PhysReg().Unit()
			sgprOperands[reg/64] |= bitConsecutive64(reg%64, pair.op.Size())

			reg = pair.def.PhysReg().Unit()
			if sgprOperands[reg/64]&bitConsecutive64(reg%64, pair.def.Size()) != 0 {
				sgprOperandsAliasDefs = true
			}
		}

		pc.Operands[i] = pair.op
		pc.Definitions[i] = pair.def
		if pc.Operands[i].Size() != pc.Definitions[i].Size() {
			panic("regalloc: parallelcopy size mismatch")
		}

		// the operand may already carry a new name; record the rename
		// against the original one
		orig := pc.Operands[i].Temp()
		if o, ok := c.origNames[pc.Operands[i].TempID()]; ok {
			orig = o
		} else {
			c.origNames[pc.Definitions[i].TempID()] = orig
		}
		c.renames[block.Index][orig.ID] = pc.Definitions[i].Temp()

		if info, ok := c.phiMap[pc.Operands[i].TempID()]; ok {
			info.uses[pc] = struct{}{}
		}
	}

	if tempInSCC && sgprOperandsAliasDefs {
		// the copy executes before this instruction: its definitions are
		// not written yet and its killed operands still occupy their slots
		tmpFile := file.clone()
		for i := range instr.Definitions {
			def := &instr.Definitions[i]
			if def.IsTemp() && !def.IsKill() {
				tmpFile.clearDef(def)
			}
		}
		for i := range instr.Operands {
			op := &instr.Operands[i]
			if op.IsTemp() && op.IsFirstKill() {
				tmpFile.block(op.PhysReg(), op.RegClass())
			}
		}
		handlePseudo(c, tmpFile, pc)
	} else {
		pc.TmpInSCC = false
	}

	return pc
}

// needsVCCEncoding reports whether the instruction's short encoding forces
// a flag onto vcc that ended up somewhere else.
func needsVCCEncoding(instr *ir.Instruction) bool {
	if instr.IsVOP3() {
		return false
	}
	if instr.IsVOPC() && instr.Definitions[0].PhysReg() != ir.VCC {
		return true
	}
	if instr.Opcode == ir.VCndmaskB32 && instr.Operands[2].PhysReg() != ir.VCC {
		return true
	}
	switch instr.Opcode {
	case ir.VAddCoU32, ir.VAddcCoU32, ir.VSubCoU32, ir.VSubbCoU32, ir.VSubrevCoU32, ir.VSubbrevCoU32:
		if instr.Definitions[1].PhysReg() != ir.VCC {
			return true
		}
	}
	switch instr.Opcode {
	case ir.VAddcCoU32, ir.VSubbCoU32, ir.VSubbrevCoU32:
		if instr.Operands[2].PhysReg() != ir.VCC {
			return true
		}
	}
	return false
}

// upgradeToVOP3 switches the instruction to the long encoding so an
// arbitrary register pair can hold the flag. Before GFX10 the long
// encoding takes no literal, so a literal first operand moves to a
// register first.
func upgradeToVOP3(c *ctx, file *RegisterFile, instr *ir.Instruction, instructions []*ir.Instruction) []*ir.Instruction {
	if len(instr.Operands) > 0 && instr.Operands[0].IsLiteral() && c.program.Chip.Gen < target.GFX10 {
		canSGPR := true
		for i := range instr.Operands {
			if op := &instr.Operands[i]; op.IsTemp() && op.Temp().Type() == ir.SGPR {
				canSGPR = false
				break
			}
		}

		// search in the state before this instruction: definitions are not
		// written yet and killed operands still hold their values
		tmpFile := file.clone()
		for i := range instr.Definitions {
			tmpFile.clearDef(&instr.Definitions[i])
		}
		for i := range instr.Operands {
			op := &instr.Operands[i]
			if op.IsTemp() && op.IsFirstKill() {
				tmpFile.block(op.PhysReg(), op.RegClass())
			}
		}

		rc := ir.S1
		if !canSGPR {
			rc = ir.V1
		}
		tmp := c.program.AllocateTemp(rc)
		c.newAssignment(tmp.ID, assignment{})
		var movPcs []copyPair
		reg := getReg(c, tmpFile, tmp, &movPcs, instr, -1)
		updateRenames(c, file, &movPcs, instr, true)
		c.assignments[tmp.ID] = assignment{reg: reg, rc: rc, assigned: true}

		movOp := ir.SMovB32
		movFmt := ir.FmtSOP1
		if !canSGPR {
			movOp = ir.VMovB32
			movFmt = ir.FmtVOP1
		}
		mov := ir.NewInstruction(movOp, movFmt, 1, 1)
		mov.Operands[0] = instr.Operands[0]
		mov.Definitions[0] = ir.FixedDef(tmp, reg)

		instr.Operands[0] = ir.TempOperand(tmp)
		instr.Operands[0].SetFixed(reg)
		instr.Operands[0].SetFirstKill(true)

		instructions = append(instructions, mov)
	}

	instr.Format = ir.AsVOP3(instr.Format)
	return instructions
}

// sealBlock marks a block whose predecessors are all filled and completes
// its phis: the incomplete ones created by renaming get their per-edge
// sources resolved and may turn out trivial; the program's own phis only
// need their operands renamed and pinned.
func sealBlock(c *ctx, block *ir.Block) {
	c.sealed[block.Index] = true

	for _, phi := range c.incompletePhis[block.Index] {
		preds := block.LogicalPreds
		if phi.Definitions[0].Temp().RC.IsLinear() {
			preds = block.LinearPreds
		}
		for i := range phi.Operands {
			op := &phi.Operands[i]
			op.SetTemp(readVariable(c, op.Temp(), preds[i]))
			op.SetFixed(c.assignments[op.TempID()].reg)
		}
		tryRemoveTrivialPhi(c, phi.Definitions[0].Temp())
	}

	for _, phi := range block.Instructions {
		if !phi.IsPhi() {
			break
		}
		preds := block.LinearPreds
		if phi.Opcode == ir.PPhi {
			preds = block.LogicalPreds
		}
		for i := range phi.Operands {
			op := &phi.Operands[i]
			if !op.IsTemp() {
				continue
			}
			op.SetTemp(readVariable(c, op.Temp(), preds[i]))
			op.SetFixed(c.assignments[op.TempID()].reg)
			if info, ok := c.phiMap[op.TempID()]; ok {
				info.uses[phi] = struct{}{}
			}
		}
	}
}

// stripRemovedPhis drops phis proven trivial from the block heads. They
// were only marked during renaming because removing them onsite would have
// invalidated the iteration.
func stripRemovedPhis(program *ir.Program) {
	for _, block := range program.Blocks {
		kept := block.Instructions[:0]
		tail := false
		for _, instr := range block.Instructions {
			if !tail && instr.IsPhi() && len(instr.Definitions) == 0 {
				continue
			}
			if !instr.IsPhi() {
				tail = true
			}
			kept = append(kept, instr)
		}
		block.Instructions = kept
	}
}

// chooseSCCSpillRegs picks, for every merge block entered with the scalar
// condition flag live, a scalar register its predecessors can save the flag
// in while the phi parallel copies execute.
func chooseSCCSpillRegs(c *ctx, sgprLiveIn []bitset128) {
	for _, block := range c.program.Blocks {
		if len(block.LinearPreds) <= 1 {
			continue
		}
		regs := sgprLiveIn[block.Index]
		if !regs.get(127) {
			continue
		}

		reg := 0
		for reg < c.program.MaxRegDemand.SGPR && regs.get(uint32(reg)) {
			reg++
		}
		if reg == c.program.MaxRegDemand.SGPR {
			panic("regalloc: no free scalar register to preserve the flag")
		}
		adjustMaxUsedRegs(c, ir.S1, uint32(reg))

		for _, predIdx := range block.LinearPreds {
			pred := c.program.Blocks[predIdx]
			pred.SCCLiveOut = true
			pred.ScratchSGPR = ir.Reg(uint32(reg))
		}
	}
}

// bitConsecutive64 returns a mask of size consecutive bits starting at bit.
func bitConsecutive64(bit uint32, size int) uint64 {
	if size >= 64 {
		return ^uint64(0) << bit
	}
	return ((uint64(1) << size) - 1) << bit
}
