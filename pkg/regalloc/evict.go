package regalloc

import (
	"sort"

	"github.com/shaderlab/gsc/pkg/ir"
)

// sizeID identifies a live value to relocate together with its byte size,
// the primary relocation sort key.
type sizeID struct {
	bytes int
	id    uint32
}

// findVars enumerates the distinct values overlapping the interval,
// ordered by (size, id) ascending. The register file is left untouched.
func findVars(c *ctx, file *RegisterFile, iv interval) []sizeID {
	seen := make(map[uint32]struct{})
	var vars []sizeID
	add := func(id uint32) {
		if id == idFree {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		vars = append(vars, sizeID{bytes: c.assignments[id].rc.Bytes(), id: id})
	}
	for u := iv.lo.Unit(); u < iv.lo.Unit()+uint32(iv.size); u++ {
		if file.isBlocked(ir.Reg(u)) {
			continue
		}
		if file.regs[u] == idSubdword {
			sub := file.subdword[u]
			for k := 0; k < 4; k++ {
				add(sub[k])
			}
		} else {
			add(file.regs[u])
		}
	}
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].bytes != vars[j].bytes {
			return vars[i].bytes < vars[j].bytes
		}
		return vars[i].id < vars[j].id
	})
	return vars
}

// collectVars is findVars plus clearing every found value out of the file.
func collectVars(c *ctx, file *RegisterFile, iv interval) []sizeID {
	vars := findVars(c, file, iv)
	for _, v := range vars {
		a := &c.assignments[v.id]
		file.clearRC(a.reg, a.rc)
	}
	return vars
}

// getRegsForCopies finds a new home for every value in vars, emitting one
// parallel-copy pair per moved value. defReg is the window reserved for the
// definition being placed; dying operands may reuse it. Smaller values are
// relocated first. Returns false when even eviction cannot make room.
func getRegsForCopies(c *ctx, file *RegisterFile, pcs *[]copyPair, vars []sizeID,
	bounds interval, instr *ir.Instruction, defReg interval) bool {

	for _, v := range vars {
		id := v.id
		a := c.assignments[id]
		info := makeDefInfo(c, c.pseudoDummy, a.rc, -1)
		size := info.size

		// A dying operand can reuse the space vacated by the definition,
		// and its stride must come from the operand slot.
		isDeadOperand := false
		if !instr.IsPhi() {
			for i := range instr.Operands {
				op := &instr.Operands[i]
				if op.IsTemp() && op.TempID() == id {
					if op.IsKillBeforeDef() {
						isDeadOperand = true
					}
					info = makeDefInfo(c, instr, a.rc, i)
					break
				}
			}
		}

		var res ir.PhysReg
		found := false
		if isDeadOperand {
			if instr.Opcode == ir.PCreateVector {
				reg := defReg.lo
				for i := range instr.Operands {
					op := &instr.Operands[i]
					if op.IsTemp() && op.TempID() == id {
						found = (!a.rc.IsSubdword() || int(reg.Byte())%info.stride == 0) &&
							!file.test(reg, a.rc.Bytes())
						res = reg
						break
					}
					reg = reg.Advance(op.Bytes())
				}
				if !found {
					res, found = a.reg, !file.test(a.reg, a.rc.Bytes())
				}
			} else {
				info.bounds = defReg
				res, found = getRegSimple(c, file, info)
			}
		} else {
			// below the definition first, then above it
			info.bounds = intervalFromUntil(bounds.lo, minReg(defReg.lo, bounds.hi()))
			res, found = getRegSimple(c, file, info)
			if !found && defReg.hi() <= bounds.hi() {
				lo := alignUp(int(defReg.hi().Unit()), info.stride)
				info.bounds = intervalFromUntil(ir.Reg(uint32(lo)), bounds.hi())
				res, found = getRegSimple(c, file, info)
			}
		}

		if found {
			file.block(res, a.rc)
			pcOp := ir.TempOperand(ir.Temp{ID: id, RC: a.rc})
			pcOp.SetFixed(a.reg)
			*pcs = append(*pcs, copyPair{op: pcOp, def: ir.RegDef(res, a.rc)})
			continue
		}

		// No free spot: slide a window and evict whatever blocks the
		// cheapest one.
		bestPos := bounds.lo
		numMoves := 0xFF
		numVars := 0

		stride := info.stride
		if a.rc.IsSubdword() {
			stride = 1
		}
		for win := (interval{lo: bounds.lo, size: size}); win.hi() <= bounds.hi(); win.lo = win.lo.Advance(stride * 4) {
			if !isDeadOperand && intersects(win, defReg) {
				continue
			}

			k, n := 0, 0
			lastVar := uint32(0)
			ok := true
			for u := win.lo.Unit(); u < win.lo.Unit()+uint32(size); u++ {
				entry := file.regs[u]
				if entry == idFree || entry == lastVar {
					continue
				}
				if file.isBlocked(ir.Reg(u)) || k > numMoves {
					ok = false
					break
				}
				if entry == idSubdword {
					k++
					n++
					continue
				}
				// live ranges of linear vgprs must not be split
				if c.assignments[entry].rc.IsLinearVGPR() {
					ok = false
					break
				}
				isKill := false
				for j := range instr.Operands {
					op := &instr.Operands[j]
					if op.IsTemp() && op.IsKillBeforeDef() && op.TempID() == entry {
						isKill = true
						break
					}
				}
				// evicting something at least as large frees no pressure
				if !isKill && c.assignments[entry].rc.Size() >= size {
					ok = false
					break
				}

				k += c.assignments[entry].rc.Size()
				lastVar = entry
				n++
				if k > numMoves || (k == numMoves && n <= numVars) {
					ok = false
					break
				}
			}

			if ok {
				bestPos = win.lo
				numMoves = k
				numVars = n
			}
		}

		if numMoves == 0xFF {
			return false
		}

		win := interval{lo: bestPos, size: size}
		newVars := collectVars(c, file, win)
		file.block(win.lo, a.rc)
		adjustMaxUsedRegs(c, a.rc, win.lo.Unit())

		if !getRegsForCopies(c, file, pcs, newVars, bounds, instr, defReg) {
			return false
		}

		pcOp := ir.TempOperand(ir.Temp{ID: id, RC: a.rc})
		pcOp.SetFixed(a.reg)
		*pcs = append(*pcs, copyPair{op: pcOp, def: ir.RegDef(win.lo, a.rc)})
	}

	return true
}

// idGap marks a reserved hole in the compacted layout rather than a real
// value.
const idGap = 0xffffffff

// idAndRC names one value for compactRelocateVars.
type idAndRC struct {
	id uint32
	rc ir.RegClass
}

// compactRelocateVars repacks vars contiguously from start, sorted by
// stride descending then current register ascending, emitting a copy for
// every value that moves. The register assigned to an idGap entry is
// returned so callers can claim the reserved space.
func compactRelocateVars(c *ctx, vars []idAndRC, pcs *[]copyPair, start ir.PhysReg) ir.PhysReg {
	type idAndInfo struct {
		id   uint32
		info defInfo
	}
	sorted := make([]idAndInfo, 0, len(vars))
	for _, v := range vars {
		sorted = append(sorted, idAndInfo{id: v.id, info: makeDefInfo(c, c.pseudoDummy, v.rc, -1)})
	}

	strideBytes := func(info defInfo) int {
		if info.rc.IsSubdword() {
			return info.stride
		}
		return info.stride * 4
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		as, bs := strideBytes(a.info), strideBytes(b.info)
		if as != bs {
			return as > bs
		}
		if a.id == idGap || b.id == idGap {
			return a.id == idGap
		}
		return c.assignments[a.id].reg < c.assignments[b.id].reg
	})

	nextReg := start
	var spaceReg ir.PhysReg
	for _, v := range sorted {
		nextReg = ir.PhysReg(alignUp(int(nextReg), maxInt(strideBytes(v.info), 4)))

		if v.id != idGap {
			if nextReg != c.assignments[v.id].reg {
				rc := c.assignments[v.id].rc
				pcOp := ir.TempOperand(ir.Temp{ID: v.id, RC: rc})
				pcOp.SetFixed(c.assignments[v.id].reg)
				*pcs = append(*pcs, copyPair{op: pcOp, def: ir.RegDef(nextReg, rc)})
			}
		} else {
			spaceReg = nextReg
		}

		nextReg = nextReg.Advance(v.info.rc.Size() * 4)
	}

	return spaceReg
}
