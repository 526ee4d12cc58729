package regalloc

import (
	"sort"

	"go.uber.org/zap"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

// getRegSpecified checks whether rc can be placed at exactly reg: encoding
// strides, bank bounds (VCC is addressable outside them) and file state.
func getRegSpecified(c *ctx, file *RegisterFile, rc ir.RegClass, instr *ir.Instruction, reg ir.PhysReg) bool {
	var sdwStride, sdwWritten int
	if rc.IsSubdword() {
		sdwStride, sdwWritten = subdwordDefinitionInfo(c.program, instr, rc)
	}

	if rc.IsSubdword() && int(reg.Byte())%sdwStride != 0 {
		return false
	}
	if !rc.IsSubdword() && reg.Byte() != 0 {
		return false
	}
	if rc.Type == ir.SGPR && int(reg.Unit())%getStride(rc) != 0 {
		return false
	}

	win := interval{lo: reg, size: rc.Size()}
	bounds := getRegBounds(c.program, rc.Type)
	vccWin := interval{lo: ir.VCC, size: 2}
	isVCC := rc.Type == ir.SGPR && vccWin.containsIv(win)
	if !bounds.containsIv(win) && !isVCC {
		return false
	}

	if rc.IsSubdword() {
		testReg := ir.PhysReg(int(reg) &^ (sdwWritten - 1))
		if file.test(testReg, sdwWritten) {
			return false
		}
	} else if file.test(reg, rc.Bytes()) {
		return false
	}

	adjustMaxUsedRegs(c, rc, win.lo.Unit())
	return true
}

// increaseRegisterFile raises the demand ceiling of one bank by a unit,
// up to the addressable limit.
func increaseRegisterFile(c *ctx, t ir.RegType) bool {
	demand := &c.program.MaxRegDemand
	switch {
	case t == ir.VGPR && demand.VGPR < c.vgprLimit:
		demand.VGPR++
	case t == ir.SGPR && demand.SGPR < c.sgprLimit:
		demand.SGPR++
	default:
		return false
	}
	c.log.Debug("raised register demand",
		zap.String("bank", t.String()),
		zap.Int("vgpr", demand.VGPR),
		zap.Int("sgpr", demand.SGPR))
	return true
}

func addVar(vars []sizeID, v sizeID) []sizeID {
	for _, e := range vars {
		if e.id == v.id {
			return vars
		}
	}
	vars = append(vars, v)
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].bytes != vars[j].bytes {
			return vars[i].bytes < vars[j].bytes
		}
		return vars[i].id < vars[j].id
	})
	return vars
}

// getRegImpl places a value by evicting the cheapest window of other
// values, reusing the space of killed operands where possible.
func getRegImpl(c *ctx, file *RegisterFile, pcs *[]copyPair, info defInfo, instr *ir.Instruction) (ir.PhysReg, bool) {
	bounds := info.bounds
	size := info.size
	stride := info.stride
	rc := info.rc

	regsFree := file.countZero(bounds)

	// killed operands free their registers for the definition
	killedOps := 0
	var isKilledOperand bitset512
	if !instr.IsPhi() {
		for j := range instr.Operands {
			op := &instr.Operands[j]
			if op.IsTemp() && op.IsFirstKillBeforeDef() && bounds.contains(op.PhysReg()) &&
				!file.test(ir.Reg(op.PhysReg().Unit()), alignUp(op.Bytes()+int(op.PhysReg().Byte()), 4)) {
				for i := 0; i < op.Size(); i++ {
					isKilledOperand.set((op.PhysReg().Unit() & 0xff) + uint32(i))
				}
				killedOps += op.Size()
			}
		}
	}

	if regsFree < size {
		return 0, false
	}

	// dead operands may have to move into the destination to make space
	opMoves := 0
	if size > regsFree-killedOps {
		opMoves = size - (regsFree - killedOps)
	}

	bestWin := interval{lo: bounds.lo, size: size}
	numMoves := 0xFF
	numVars := 0

	for win := (interval{lo: bounds.lo, size: size}); win.hi() <= bounds.hi(); win.lo = win.lo.Advance(stride * 4) {
		// windows splitting an allocated variable at either border would
		// need to move more than they make room for
		if win.lo > bounds.lo && !file.isEmptyOrBlocked(win.lo) &&
			file.getID(win.lo) == file.getID(win.lo.Advance(-1)) {
			continue
		}
		if win.hi() < bounds.hi() && !file.isEmptyOrBlocked(win.hi().Advance(-1)) &&
			file.getID(win.hi().Advance(-1)) == file.getID(win.hi()) {
			continue
		}

		k := opMoves
		n := 0
		remainingOpMoves := opMoves
		lastVar := uint32(0)
		found := true
		aligned := rc == ir.V4 && win.lo.Unit()%4 == 0
		for u := win.lo.Unit(); u < win.lo.Unit()+uint32(size); u++ {
			if isKilledOperand.get(u & 0xff) {
				if remainingOpMoves > 0 {
					k--
					remainingOpMoves--
				}
				continue
			}

			entry := file.regs[u]
			if entry == idFree || entry == lastVar {
				continue
			}
			if entry == idSubdword {
				k++
				n++
				continue
			}
			if c.assignments[entry].rc.Size() >= size {
				found = false
				break
			}
			// live ranges of linear vgprs must not be split
			if c.assignments[entry].rc.IsLinearVGPR() {
				found = false
				break
			}

			k += c.assignments[entry].rc.Size()
			n++
			lastVar = entry
		}

		if !found || k > numMoves {
			continue
		}
		if k == numMoves && n < numVars {
			continue
		}
		if !aligned && k == numMoves && n == numVars {
			continue
		}

		bestWin = win
		numMoves = k
		numVars = n
	}

	if numMoves == 0xFF {
		return 0, false
	}

	tmpFile := file.clone()
	vars := collectVars(c, tmpFile, bestWin)

	if instr.Opcode == ir.PCreateVector {
		// Move killed operands not yet at their final vector position
		// (cheap from GFX9 on) or sitting inside the destination.
		reg := bestWin.lo
		for i := range instr.Operands {
			op := &instr.Operands[i]
			if op.IsTemp() && op.IsFirstKillBeforeDef() && op.Temp().Type() == rc.Type {
				if op.PhysReg() != reg &&
					(c.program.Chip.Gen >= target.GFX9 ||
						(op.PhysReg().Advance(op.Bytes()) > bestWin.lo && op.PhysReg() < bestWin.hi())) {
					vars = addVar(vars, sizeID{bytes: op.Bytes(), id: op.TempID()})
					tmpFile.clearOp(op)
				} else {
					tmpFile.fillOp(op)
				}
			}
			reg = reg.Advance(op.Bytes())
		}
	} else if !instr.IsPhi() {
		// re-enable killed operands
		for i := range instr.Operands {
			op := &instr.Operands[i]
			if op.IsTemp() && op.IsFirstKillBeforeDef() {
				tmpFile.fillOp(op)
			}
		}
	}

	var pc []copyPair
	if !getRegsForCopies(c, tmpFile, &pc, vars, bounds, instr, bestWin) {
		return 0, false
	}
	*pcs = append(*pcs, pc...)

	adjustMaxUsedRegs(c, rc, bestWin.lo.Unit())
	return bestWin.lo, true
}

// isMimgVaddrIntact reports whether the address operands of an image
// instruction already sit consecutively, so placing the value relative to
// them keeps the vector intact.
func isMimgVaddrIntact(c *ctx, file *RegisterFile, instr *ir.Instruction) bool {
	first := ir.Reg(512)
	for i := 0; i < len(instr.Operands)-3; i++ {
		op := &instr.Operands[i+3]
		if !op.IsTemp() {
			continue
		}

		if c.assignments[op.TempID()].assigned {
			reg := c.assignments[op.TempID()].reg

			if first.Unit() != 512 && reg != first.Advance(i*4) {
				return false // not at the best position
			}
			if int(reg.Unit())-256 < i {
				return false // no space for the previous operands
			}
			first = reg.Advance(i * -4)
		} else if first.Unit() != 512 {
			// an unrelated value sitting where this operand belongs
			id := file.getID(first.Advance(i * 4))
			if id != 0 && id != op.TempID() {
				return false
			}
		}
	}
	return true
}

// getReg places a temporary: vector and phi affinity hints first, then the
// optimistic free search, then eviction, then a wider register file, and
// as the last resort a full repack of the bank.
func getReg(c *ctx, file *RegisterFile, temp ir.Temp, pcs *[]copyPair, instr *ir.Instruction, operandIdx int) ir.PhysReg {
	if split, ok := c.splitVectors[temp.ID]; ok {
		offset := 0
		for i := range split.Definitions {
			def := &split.Definitions[i]
			if aff, ok := c.affinities[def.TempID()]; ok && c.assignments[aff].assigned {
				reg := c.assignments[aff].reg.Advance(-offset)
				if getRegSpecified(c, file, temp.RC, instr, reg) {
					return reg
				}
			}
			offset += def.Bytes()
		}
	}

	if aff, ok := c.affinities[temp.ID]; ok && c.assignments[aff].assigned {
		reg := c.assignments[aff].reg
		if getRegSpecified(c, file, temp.RC, instr, reg) {
			return reg
		}
	}

	if vec, ok := c.vectors[temp.ID]; ok {
		firstOperand := 0
		if vec.IsMIMG() {
			firstOperand = 3
		}
		byteOffset := 0
		for i := firstOperand; i < len(vec.Operands); i++ {
			op := &vec.Operands[i]
			if op.IsTemp() && op.TempID() == temp.ID {
				break
			}
			byteOffset += op.Bytes()
		}

		if !vec.IsMIMG() || isMimgVaddrIntact(c, file, vec) {
			k := 0
			for i := firstOperand; i < len(vec.Operands); i++ {
				op := &vec.Operands[i]
				if op.IsTemp() && op.TempID() != temp.ID && op.Temp().Type() == temp.Type() &&
					c.assignments[op.TempID()].assigned {
					reg := c.assignments[op.TempID()].reg.Advance(byteOffset - k)
					if getRegSpecified(c, file, temp.RC, instr, reg) {
						return reg
					}
				}
				k += op.Bytes()
			}

			vecRC := ir.ClassFor(temp.Type(), k)
			info := makeDefInfo(c, c.pseudoDummy, vecRC, -1)
			if reg, ok := getRegSimple(c, file, info); ok {
				reg = reg.Advance(byteOffset)
				// only use a byte offset the instruction supports
				if getRegSpecified(c, file, temp.RC, instr, reg) {
					return reg
				}
			}
		}
	}

	for {
		info := makeDefInfo(c, instr, temp.RC, operandIdx)

		if !c.policy.SkipOptimisticPath {
			if reg, ok := getRegSimple(c, file, info); ok {
				return reg
			}
		}

		if reg, ok := getRegImpl(c, file, pcs, info, instr); ok {
			return reg
		}

		if increaseRegisterFile(c, info.rc.Type) {
			continue
		}

		return compactFallback(c, file, pcs, info, instr)
	}
}

// compactFallback repacks every live value of the bank contiguously,
// reserving space for the instruction's killed operands and definitions.
func compactFallback(c *ctx, file *RegisterFile, pcs *[]copyPair, info defInfo, instr *ir.Instruction) ir.PhysReg {
	c.log.Debug("compacting register bank", zap.String("bank", info.rc.Type.String()))

	defSize := info.rc.Size()
	for i := range instr.Definitions {
		def := &instr.Definitions[i]
		if def.IsTemp() && c.assignments[def.TempID()].assigned && def.RegClass().Type == info.rc.Type {
			defSize += def.RegClass().Size()
		}
	}

	killedOpSize := 0
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.IsKillBeforeDef() && op.RegClass().Type == info.rc.Type {
			killedOpSize += op.RegClass().Size()
		}
	}

	bounds := getRegBounds(c.program, info.rc.Type)

	// passthrough values and non-killed operands
	var vars []idAndRC
	for _, v := range findVars(c, file, bounds) {
		vars = append(vars, idAndRC{id: v.id, rc: c.assignments[v.id].rc})
	}
	vars = append(vars, idAndRC{id: idGap, rc: ir.ClassFor(info.rc.Type, maxInt(defSize, killedOpSize)*4)})

	space := compactRelocateVars(c, vars, pcs, bounds.lo)

	// killed operands
	var killedOpVars []idAndRC
	for i := range instr.Operands {
		op := &instr.Operands[i]
		if op.IsTemp() && op.IsKillBeforeDef() && op.RegClass().Type == info.rc.Type {
			killedOpVars = append(killedOpVars, idAndRC{id: op.TempID(), rc: op.RegClass()})
		}
	}
	compactRelocateVars(c, killedOpVars, pcs, space)

	// definitions
	var defVars []idAndRC
	for i := range instr.Definitions {
		def := &instr.Definitions[i]
		if def.IsTemp() && c.assignments[def.TempID()].assigned && def.RegClass().Type == info.rc.Type {
			defVars = append(defVars, idAndRC{id: def.TempID(), rc: def.RegClass()})
		}
	}
	defVars = append(defVars, idAndRC{id: idGap, rc: info.rc})
	return compactRelocateVars(c, defVars, pcs, space)
}

// getRegCreateVector places a vector-build destination by weighing, for
// each killed operand, the shuffle cost of anchoring the vector at the
// position that keeps that operand in place.
func getRegCreateVector(c *ctx, file *RegisterFile, temp ir.Temp, pcs *[]copyPair, instr *ir.Instruction) ir.PhysReg {
	rc := temp.RC
	size := rc.Size()
	bytes := rc.Bytes()
	stride := getStride(rc)
	bounds := getRegBounds(c.program, rc.Type)

	for {
		bestPos := ir.Reg(0xFFF)
		numMoves := 0xFF
		bestWarHint := true

		offset := 0
		for i := 0; i < len(instr.Operands); i++ {
			op := &instr.Operands[i]
			opOffset := offset
			offset += op.Bytes()
			if !op.IsTemp() || !op.IsKillBeforeDef() || op.Temp().Type() != rc.Type {
				continue
			}
			if opOffset > int(op.PhysReg()) {
				continue
			}

			regLower := int(op.PhysReg()) - opOffset
			if regLower%4 != 0 {
				continue
			}
			win := interval{lo: ir.PhysReg(regLower), size: size}
			k := 0

			if win.lo == bestPos {
				continue
			}

			// borders
			if !bounds.containsIv(win) || int(win.lo.Unit())%stride != 0 {
				continue
			}
			if win.lo > bounds.lo && file.regs[win.lo.Unit()] != idFree &&
				file.getID(win.lo) == file.getID(win.lo.Advance(-1)) {
				continue
			}
			if win.hi() < bounds.hi() && file.regs[win.hi().Advance(-4).Unit()] != idFree &&
				file.getID(win.hi().Advance(-1)) == file.getID(win.hi()) {
				continue
			}

			// count values to move, and respect hazard hints
			warHint := false
			linearVGPR := false
			for u := win.lo.Unit(); u < win.lo.Unit()+uint32(size); u++ {
				if linearVGPR {
					break
				}
				if file.regs[u] != idFree {
					if file.regs[u] == idSubdword {
						reg := ir.Reg(u)
						bytesLeft := bytes - int(u-win.lo.Unit())*4
						for b := 0; b < minInt(bytesLeft, 4); b++ {
							if file.test(reg.Advance(b), 1) {
								k++
							}
						}
					} else {
						k += 4
						if c.assignments[file.regs[u]].rc.IsLinearVGPR() {
							linearVGPR = true
						}
					}
				}
				if c.warHint.get(u) {
					warHint = true
				}
			}
			if linearVGPR || (warHint && !bestWarHint) {
				continue
			}

			// operands not already in their slot of this layout
			offset2 := 0
			for j := 0; j < len(instr.Operands); j++ {
				other := &instr.Operands[j]
				otherOffset := offset2
				offset2 += other.Bytes()
				if j == i || !other.IsTemp() || other.Temp().Type() != rc.Type {
					continue
				}
				if int(other.PhysReg()) != int(win.lo)+otherOffset {
					k += other.Bytes()
				}
			}
			aligned := rc == ir.V4 && win.lo.Unit()%4 == 0
			if k > numMoves || (!aligned && k == numMoves) {
				continue
			}

			bestPos = win.lo
			numMoves = k
			bestWarHint = warHint
		}

		if numMoves >= bytes {
			return getReg(c, file, temp, pcs, instr, -1)
		}

		// re-enable killed operands that are in the wrong position
		tmpFile := file.clone()
		offset = 0
		for i := 0; i < len(instr.Operands); i++ {
			op := &instr.Operands[i]
			opOffset := offset
			offset += op.Bytes()
			if op.IsTemp() && op.IsFirstKillBeforeDef() && int(op.PhysReg()) != int(bestPos)+opOffset {
				tmpFile.fillOp(op)
			}
		}

		vars := collectVars(c, tmpFile, interval{lo: bestPos, size: size})

		offset = 0
		for i := 0; i < len(instr.Operands); i++ {
			op := &instr.Operands[i]
			opOffset := offset
			offset += op.Bytes()
			if !op.IsTemp() || !op.IsFirstKillBeforeDef() || op.Temp().Type() != rc.Type {
				continue
			}
			correctPos := int(op.PhysReg()) == int(bestPos)+opOffset
			// On GFX9+ register swaps are cheap enough to move every
			// misplaced killed operand into the final layout.
			if c.program.Chip.Gen >= target.GFX9 && !correctPos {
				vars = addVar(vars, sizeID{bytes: op.Bytes(), id: op.TempID()})
				tmpFile.clearOp(op)
			} else if correctPos {
				tmpFile.fillOp(op)
			}
		}

		var pc []copyPair
		if !getRegsForCopies(c, tmpFile, &pc, vars, bounds, instr, interval{lo: bestPos, size: size}) {
			if !increaseRegisterFile(c, temp.Type()) {
				// fall back to the repacking path in getReg
				return getReg(c, file, temp, pcs, instr, -1)
			}
			continue
		}

		*pcs = append(*pcs, pc...)
		adjustMaxUsedRegs(c, rc, bestPos.Unit())
		return bestPos
	}
}

// operandCanUseReg checks the encoding restrictions of reading an operand
// from the given register.
func operandCanUseReg(gen target.Gen, instr *ir.Instruction, idx int, reg ir.PhysReg, rc ir.RegClass) bool {
	if instr.Operands[idx].IsFixed() {
		return instr.Operands[idx].PhysReg() == reg
	}

	isWritelane := instr.Opcode == ir.VWritelaneB32 || instr.Opcode == ir.VWritelaneB32E64
	if gen <= target.GFX9 && isWritelane && idx <= 1 {
		// two scalar sources are only possible when one of them is m0
		other := &instr.Operands[1-idx]
		isOtherSGPR := other.IsTemp() && (!other.IsFixed() || other.PhysReg() != ir.M0)
		if isOtherSGPR && other.TempID() != instr.Operands[idx].TempID() {
			instr.Operands[idx].SetFixed(ir.M0)
			return reg == ir.M0
		}
	}

	if reg.Byte() != 0 {
		stride := subdwordOperandStride(gen, instr, idx, rc)
		if int(reg.Byte())%stride != 0 {
			return false
		}
	}

	if instr.IsSMEM() {
		return reg != ir.SCC &&
			reg != ir.Exec &&
			(reg != ir.M0 || idx == 1 || idx == 3) && // the offset can be m0
			(reg != ir.VCC || (len(instr.Definitions) == 0 && idx == 2) || gen >= target.GFX10)
	}
	return true
}

// getRegForOperand moves an operand's value to a register the instruction
// can read it from, displacing whatever blocks a fixed target.
func getRegForOperand(c *ctx, file *RegisterFile, pcs *[]copyPair, instr *ir.Instruction, operand *ir.Operand, operandIdx int) {
	var dst ir.PhysReg
	blockingVar := false
	if operand.IsFixed() {
		if operand.PhysReg() == c.assignments[operand.TempID()].reg {
			panic("regalloc: fixed operand already in place")
		}

		// move away whatever blocks the target
		if blockingID := file.regs[operand.PhysReg().Unit()]; blockingID != 0 {
			if blockingID == idSubdword {
				panic("regalloc: sub-dword value blocks a fixed operand")
			}
			rc := c.assignments[blockingID].rc
			pcOp := ir.TempOperand(ir.Temp{ID: blockingID, RC: rc})
			pcOp.SetFixed(operand.PhysReg())

			reg := getReg(c, file, pcOp.Temp(), pcs, c.pseudoDummy, -1)
			updateRenames(c, file, pcs, c.pseudoDummy, true)
			*pcs = append(*pcs, copyPair{op: pcOp, def: ir.RegDef(reg, rc)})
			blockingVar = true
		}
		dst = operand.PhysReg()
	} else {
		dst = getReg(c, file, operand.Temp(), pcs, instr, operandIdx)
		updateRenames(c, file, pcs, instr, instr.Opcode != ir.PCreateVector)
	}

	pcOp := *operand
	pcOp.SetFixed(c.assignments[operand.TempID()].reg)
	*pcs = append(*pcs, copyPair{op: pcOp, def: ir.RegDef(dst, pcOp.RegClass())})
	updateRenames(c, file, pcs, instr, true)

	if operand.IsKillBeforeDef() {
		file.fillDef(&(*pcs)[len(*pcs)-1].def)
	}
	// a killed blocking value will not have been filled by updateRenames
	if blockingVar {
		file.fillDef(&(*pcs)[len(*pcs)-2].def)
	}
}
