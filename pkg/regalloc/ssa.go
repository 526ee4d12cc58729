package regalloc

import "github.com/shaderlab/gsc/pkg/ir"

// readVariable resolves the current name of a value within a block.
func readVariable(c *ctx, val ir.Temp, blockIdx int) ir.Temp {
	if renamed, ok := c.renames[blockIdx][val.ID]; ok {
		return renamed
	}
	return val
}

// updatePhiMap moves the recorded phi uses of old's operands over to instr.
func updatePhiMap(c *ctx, old, instr *ir.Instruction) {
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if !op.IsTemp() {
			continue
		}
		if info, ok := c.phiMap[op.TempID()]; ok {
			delete(info.uses, old)
			info.uses[instr] = struct{}{}
		}
	}
}

// updateRenames completes freshly created parallel-copy pairs: it allocates
// a destination temporary for each, renames the instruction's reads of the
// moved value, and keeps the register file in sync. Pairs whose definition
// already has a temporary were completed earlier and are skipped. A killed
// operand whose register does not clash with any copy destination may keep
// its name; renameNotKilledOps forces renaming for reads that stay live.
func updateRenames(c *ctx, file *RegisterFile, pcs *[]copyPair, instr *ir.Instruction, renameNotKilledOps bool) {
	// clear the sources
	for i := range *pcs {
		if (*pcs)[i].def.IsTemp() {
			continue
		}
		file.clearOp(&(*pcs)[i].op)
	}

	for i := range *pcs {
		pair := &(*pcs)[i]
		if pair.def.IsTemp() {
			continue
		}

		// follow a chain: this copy may move another copy's destination
		for j := range *pcs {
			other := &(*pcs)[j]
			if !other.def.IsTemp() {
				continue
			}
			if pair.op.Temp() == other.def.Temp() {
				pair.op.SetTemp(other.op.Temp())
				pair.op.SetFixed(other.op.PhysReg())
			}
		}

		origID := pair.op.TempID()
		newTemp := c.program.AllocateTemp(pair.def.RegClass())
		pair.def.SetTemp(newTemp)
		c.newAssignment(newTemp.ID, assignment{reg: pair.def.PhysReg(), rc: pair.def.RegClass(), assigned: true})

		first := true
		fill := true
		for k := range instr.Operands {
			op := &instr.Operands[k]
			if !op.IsTemp() || op.TempID() != origID {
				continue
			}
			// keep the old name when no copy destination overlaps it
			omit := !renameNotKilledOps && !op.IsKillBeforeDef()
			for j := range *pcs {
				defReg := (*pcs)[j].def.PhysReg()
				if defReg > pair.op.PhysReg() {
					omit = omit && pair.op.PhysReg().Unit()+uint32(pair.op.Size()) <= defReg.Unit()
				} else {
					omit = omit && defReg.Unit()+uint32((*pcs)[j].def.Size()) <= pair.op.PhysReg().Unit()
				}
			}
			if omit {
				if first {
					op.SetFirstKill(true)
				} else {
					op.SetKill(true)
				}
				first = false
				continue
			}
			op.SetTemp(pair.def.Temp())
			op.SetFixed(pair.def.PhysReg())

			fill = !op.IsKillBeforeDef()
		}

		if fill {
			file.fillDef(&pair.def)
		}
	}
}

// handleLiveIn resolves the name a live-in value carries inside this block,
// creating a phi when predecessors disagree. An unsealed block gets an
// incomplete phi to be filled in when its last predecessor is done. Linear
// vgprs are never renamed; they keep one location for their whole range.
func handleLiveIn(c *ctx, val ir.Temp, block *ir.Block) ir.Temp {
	preds := block.LogicalPreds
	if val.RC.IsLinear() {
		preds = block.LinearPreds
	}
	if len(preds) == 0 || val.RC.IsLinearVGPR() {
		return val
	}

	var newVal ir.Temp
	if !c.sealed[block.Index] {
		// consider the rename from an already processed predecessor
		tmp := readVariable(c, val, preds[0])

		newVal = c.program.AllocateTemp(val.RC)
		c.newAssignment(newVal.ID, assignment{})
		opcode := ir.PPhi
		if val.RC.IsLinear() {
			opcode = ir.PLinearPhi
		}
		phi := ir.NewInstruction(opcode, ir.FmtPseudo, len(preds), 1)
		phi.Definitions[0] = ir.TempDef(newVal)
		for i := range preds {
			phi.Operands[i] = ir.TempOperand(val)
		}
		if tmp.RC == newVal.RC {
			c.affinities[newVal.ID] = tmp.ID
		}

		c.phiMap[newVal.ID] = &phiInfo{phi: phi, blockIdx: block.Index, uses: make(map[*ir.Instruction]struct{})}
		c.incompletePhis[block.Index] = append(c.incompletePhis[block.Index], phi)
		block.Instructions = append([]*ir.Instruction{phi}, block.Instructions...)

	} else if len(preds) == 1 {
		newVal = readVariable(c, val, preds[0])
	} else {
		// sealed block with multiple predecessors
		ops := make([]ir.Temp, len(preds))
		needsPhi := false
		for i, pred := range preds {
			ops[i] = readVariable(c, val, pred)
			if i == 0 {
				newVal = ops[i]
			} else if newVal != ops[i] {
				needsPhi = true
			}
		}

		if needsPhi {
			opcode := ir.PPhi
			if val.RC.IsLinear() {
				opcode = ir.PLinearPhi
			}
			phi := ir.NewInstruction(opcode, ir.FmtPseudo, len(preds), 1)
			newVal = c.program.AllocateTemp(val.RC)
			phi.Definitions[0] = ir.TempDef(newVal)
			for i := range preds {
				phi.Operands[i] = ir.TempOperand(ops[i])
				phi.Operands[i].SetFixed(c.assignments[ops[i].ID].reg)
				if ops[i].RC == newVal.RC {
					c.affinities[newVal.ID] = ops[i].ID
				}
				// record the use so an operand from an incomplete phi is
				// given its original name when that phi turns out trivial
				if info, ok := c.phiMap[ops[i].ID]; ok {
					info.uses[phi] = struct{}{}
				}
			}
			c.newAssignment(newVal.ID, assignment{})
			c.phiMap[newVal.ID] = &phiInfo{phi: phi, blockIdx: block.Index, uses: make(map[*ir.Instruction]struct{})}
			block.Instructions = append([]*ir.Instruction{phi}, block.Instructions...)
		}
	}

	if newVal != val {
		c.renames[block.Index][val.ID] = newVal
		c.origNames[newVal.ID] = val
	}
	return newVal
}

// tryRemoveTrivialPhi removes a phi whose operands all resolve to one
// value, rerouting its uses and recursing into phis that may have become
// trivial in turn. Phis in unsealed blocks may still gain operands and are
// left alone.
func tryRemoveTrivialPhi(c *ctx, temp ir.Temp) {
	info, ok := c.phiMap[temp.ID]
	if !ok || !c.sealed[info.blockIdx] {
		return
	}

	phi := info.phi
	var same ir.Temp
	def := phi.Definitions[0]

	for i := range phi.Operands {
		op := &phi.Operands[i]
		t := op.Temp()
		if t == same || t == def.Temp() {
			continue
		}
		if same != (ir.Temp{}) || op.PhysReg() != def.PhysReg() {
			return
		}
		same = t
	}

	// reroute all uses to same and remove the phi
	var phiUsers []ir.Temp
	samePhiInfo := c.phiMap[same.ID]
	for use := range info.uses {
		if use.IsPhi() {
			// already flagged trivial
			if len(use.Definitions) == 0 {
				continue
			}
			if use.Definitions[0].Temp() != temp {
				phiUsers = append(phiUsers, use.Definitions[0].Temp())
			}
		}
		for i := range use.Operands {
			op := &use.Operands[i]
			if op.IsTemp() && op.TempID() == def.TempID() {
				op.SetTemp(same)
				if samePhiInfo != nil {
					samePhiInfo.uses[use] = struct{}{}
				}
			}
		}
	}

	origVar := same.ID
	if orig, ok := c.origNames[same.ID]; ok {
		origVar = orig.ID
	}
	for i := range c.program.Blocks {
		if renamed, ok := c.renames[i][origVar]; ok && renamed == def.Temp() {
			c.renames[i][origVar] = same
		}
	}

	phi.Definitions = nil // marks the phi for removal
	delete(c.phiMap, temp.ID)
	for _, t := range phiUsers {
		tryRemoveTrivialPhi(c, t)
	}
}
