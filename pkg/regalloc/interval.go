package regalloc

import "github.com/shaderlab/gsc/pkg/ir"

// interval is a half-open window of whole register units used by the
// sliding-window searches.
type interval struct {
	lo   ir.PhysReg
	size int
}

func intervalFromUntil(first, end ir.PhysReg) interval {
	return interval{lo: first, size: int(end.Unit() - first.Unit())}
}

// hi is the exclusive upper bound.
func (iv interval) hi() ir.PhysReg {
	return iv.lo.Advance(iv.size * 4)
}

func (iv interval) contains(reg ir.PhysReg) bool {
	return iv.lo <= reg && reg < iv.hi()
}

func (iv interval) containsIv(needle interval) bool {
	return needle.lo >= iv.lo && needle.hi() <= iv.hi()
}

func intersects(a, b interval) bool {
	return (a.lo >= b.lo && a.lo < b.hi()) ||
		(a.hi() > b.lo && a.hi() <= b.hi())
}

// getStride is the placement stride in units for whole-register classes.
func getStride(rc ir.RegClass) int {
	if rc.Type == ir.VGPR {
		return 1
	}
	switch size := rc.Size(); {
	case size == 2:
		return 2
	case size >= 4:
		return 4
	default:
		return 1
	}
}

func getRegBounds(prog *ir.Program, t ir.RegType) interval {
	if t == ir.VGPR {
		return interval{lo: ir.Reg(ir.FirstVGPR), size: prog.MaxRegDemand.VGPR}
	}
	return interval{lo: ir.Reg(0), size: prog.MaxRegDemand.SGPR}
}

// defInfo is the resolved placement requirement of one value: its search
// bounds, size in units and stride. The stride is in units for whole
// classes and in bytes for sub-dword classes.
type defInfo struct {
	bounds interval
	size   int
	stride int
	rc     ir.RegClass
}

// makeDefInfo computes the placement requirement of rc when placed for the
// given instruction. operandIdx is the operand slot being placed, or -1
// when placing a definition.
func makeDefInfo(c *ctx, instr *ir.Instruction, rc ir.RegClass, operandIdx int) defInfo {
	info := defInfo{
		size:   rc.Size(),
		stride: getStride(rc),
		bounds: getRegBounds(c.program, rc.Type),
		rc:     rc,
	}

	if rc.IsSubdword() && operandIdx >= 0 {
		// stride in bytes
		info.stride = subdwordOperandStride(c.program.Chip.Gen, instr, operandIdx, rc)
	} else if rc.IsSubdword() {
		stride, bytesWritten := subdwordDefinitionInfo(c.program, instr, rc)
		info.stride = stride
		if bytesWritten > rc.Bytes() {
			info.rc = ir.ClassFor(rc.Type, bytesWritten)
			info.size = info.rc.Size()
			// The definition might still fit in the high half, but that
			// only matters for affinities, which never reach this path.
			info.stride = alignUp(info.stride, bytesWritten)
			if !info.rc.IsSubdword() {
				info.stride = divCeil(info.stride, 4)
			}
		}
		if info.stride <= 0 {
			panic("regalloc: sub-dword stride must be positive")
		}
	}
	return info
}

func adjustMaxUsedRegs(c *ctx, rc ir.RegClass, unit uint32) {
	size := rc.Size()
	if rc.Type == ir.VGPR {
		hi := int(unit) - ir.FirstVGPR + size - 1
		c.maxUsedVGPR = maxInt(c.maxUsedVGPR, hi)
	} else if int(unit)+size <= c.sgprLimit {
		hi := int(unit) + size - 1
		c.maxUsedSGPR = maxInt(c.maxUsedSGPR, minInt(hi, c.sgprLimit))
	}
}

// getRegSimple finds a free place for a value without touching any other:
// first trying coarser power-of-two strides to keep large-vector slots
// intact, then a best-fit gap search (stride one) or a strided window scan.
func getRegSimple(c *ctx, file *RegisterFile, info defInfo) (ir.PhysReg, bool) {
	bounds := info.bounds
	size := info.size
	stride := info.stride
	if info.rc.IsSubdword() {
		stride = divCeil(info.stride, 4)
	}
	rc := info.rc

	coarse := info
	coarse.rc = ir.ClassFor(rc.Type, size*4)
	for newStride := 16; newStride > stride; newStride /= 2 {
		if size%newStride != 0 {
			continue
		}
		coarse.stride = newStride
		if reg, ok := getRegSimple(c, file, coarse); ok {
			return reg, true
		}
	}

	isFree := func(unit uint32) bool {
		return file.regs[unit] == idFree && !c.warHint.get(unit)
	}

	loUnit := bounds.lo.Unit()
	hiUnit := loUnit + uint32(bounds.size)

	if stride == 1 {
		// Best fit: the smallest gap the value fits in. Only the area up
		// to the high-water mark needs scanning; everything above it is
		// free by construction.
		maxGpr := c.maxUsedSGPR
		if rc.Type == ir.VGPR {
			maxGpr = ir.FirstVGPR + c.maxUsedVGPR
		}
		endUnit := uint32(maxInt(maxGpr+1, int(loUnit)))
		if endUnit > hiUnit {
			endUnit = hiUnit
		}

		bestLo, bestSize := uint32(0), int(^uint32(0)>>1)
		haveBest := false

		u := loUnit
		for u < hiUnit {
			for u < endUnit && !isFree(u) {
				u++
			}
			if u >= hiUnit {
				break
			}
			v := u
			for v < endUnit && isFree(v) {
				v++
			}
			if v >= endUnit {
				// all units past the high-water mark are free
				v = hiUnit
			}
			gapSize := int(v - u)

			if gapSize == size {
				adjustMaxUsedRegs(c, rc, u)
				return ir.Reg(u), true
			}
			if size < gapSize && gapSize < bestSize {
				bestLo, bestSize = u, gapSize
				haveBest = true
			}
			u = v
		}

		if !haveBest {
			return 0, false
		}

		// Shift to the top of the gap when that leaves a better-aligned
		// remainder for other values.
		buffer := bestSize - size
		if buffer > 1 {
			if ((bestLo+uint32(size))%8 != 0 && (bestLo+uint32(buffer))%8 == 0) ||
				((bestLo+uint32(size))%4 != 0 && (bestLo+uint32(buffer))%4 == 0) ||
				((bestLo+uint32(size))%2 != 0 && (bestLo+uint32(buffer))%2 == 0) {
				bestLo += uint32(buffer)
			}
		}

		adjustMaxUsedRegs(c, rc, bestLo)
		return ir.Reg(bestLo), true
	}

	for win := (interval{lo: bounds.lo, size: size}); win.hi() <= bounds.hi(); win.lo = win.lo.Advance(stride * 4) {
		if file.regs[win.lo.Unit()] != idFree {
			continue
		}
		valid := true
		for u := win.lo.Unit() + 1; u < win.lo.Unit()+uint32(size); u++ {
			if !isFree(u) {
				valid = false
				break
			}
		}
		if valid {
			adjustMaxUsedRegs(c, rc, win.lo.Unit())
			return win.lo, true
		}
	}

	// Upper-byte placement is a last resort: it can force larger encodings
	// or extra copies.
	if rc.IsSubdword() {
		for _, unit := range file.subdwordUnits() {
			if !bounds.contains(ir.Reg(unit)) {
				continue
			}
			sub := file.subdword[unit]
			for i := 0; i < 4; i += info.stride {
				found := true
				for j := i; j < minInt(4, i+rc.Bytes()); j++ {
					if sub[j] != idFree {
						found = false
						break
					}
				}
				if found && i+rc.Bytes() > 4 {
					found = file.regs[unit+1] == idFree
				}
				if found {
					adjustMaxUsedRegs(c, rc, unit)
					return ir.Reg(unit).Advance(i), true
				}
			}
		}
	}

	return 0, false
}
