package regalloc

import (
	"sort"

	"github.com/shaderlab/gsc/pkg/ir"
)

// Register file cell states. A cell holds the id of the temporary occupying
// it, idFree, or idBlocked. idSubdword marks cells whose bytes are tracked
// individually in the subdword side table.
const (
	idFree     = 0
	idBlocked  = 0xFFFFFFFF
	idSubdword = 0xF0000000
)

// RegisterFile simulates occupancy of both register banks at one program
// point. Units 0-255 are the scalar bank including the special scalar state,
// units 256-511 the vector bank. Vector units holding sub-dword values keep
// a per-byte entry in subdword instead of a single id.
type RegisterFile struct {
	regs     [512]uint32
	subdword map[uint32][4]uint32
}

func newRegisterFile() *RegisterFile {
	return &RegisterFile{subdword: make(map[uint32][4]uint32)}
}

func (rf *RegisterFile) clone() *RegisterFile {
	c := &RegisterFile{regs: rf.regs, subdword: make(map[uint32][4]uint32, len(rf.subdword))}
	for k, v := range rf.subdword {
		c.subdword[k] = v
	}
	return c
}

func (rf *RegisterFile) val(unit uint32) uint32 {
	return rf.regs[unit]
}

func (rf *RegisterFile) countZero(iv interval) int {
	n := 0
	for u := iv.lo.Unit(); u < iv.lo.Unit()+uint32(iv.size); u++ {
		if rf.regs[u] == idFree {
			n++
		}
	}
	return n
}

// test reports whether any byte in [start, start+numBytes) is allocated or
// blocked.
func (rf *RegisterFile) test(start ir.PhysReg, numBytes int) bool {
	for b := int(start); b < int(start)+numBytes; b++ {
		u := uint32(b) / 4
		if rf.regs[u]&0x0FFFFFFF != 0 {
			return true
		}
		if rf.regs[u] == idSubdword && rf.subdword[u][b%4] != idFree {
			return true
		}
	}
	return false
}

func (rf *RegisterFile) block(start ir.PhysReg, rc ir.RegClass) {
	if rc.IsSubdword() {
		rf.fillSubdword(start, rc.Bytes(), idBlocked)
	} else {
		rf.fill(start, rc.Size(), idBlocked)
	}
}

func (rf *RegisterFile) isBlocked(start ir.PhysReg) bool {
	u := start.Unit()
	if rf.regs[u] == idBlocked {
		return true
	}
	if rf.regs[u] == idSubdword {
		sub := rf.subdword[u]
		for i := start.Byte(); i < 4; i++ {
			if sub[i] == idBlocked {
				return true
			}
		}
	}
	return false
}

func (rf *RegisterFile) isEmptyOrBlocked(start ir.PhysReg) bool {
	u := start.Unit()
	if rf.regs[u] == idSubdword {
		v := rf.subdword[u][start.Byte()]
		return v == idFree || v == idBlocked
	}
	return rf.regs[u] == idFree || rf.regs[u] == idBlocked
}

func (rf *RegisterFile) clearRC(start ir.PhysReg, rc ir.RegClass) {
	if rc.IsSubdword() {
		rf.fillSubdword(start, rc.Bytes(), idFree)
	} else {
		rf.fill(start, rc.Size(), idFree)
	}
}

func (rf *RegisterFile) fillOp(op *ir.Operand) {
	if op.RegClass().IsSubdword() {
		rf.fillSubdword(op.PhysReg(), op.Bytes(), op.TempID())
	} else {
		rf.fill(op.PhysReg(), op.Size(), op.TempID())
	}
}

func (rf *RegisterFile) clearOp(op *ir.Operand) {
	rf.clearRC(op.PhysReg(), op.RegClass())
}

func (rf *RegisterFile) fillDef(def *ir.Definition) {
	if def.RegClass().IsSubdword() {
		rf.fillSubdword(def.PhysReg(), def.Bytes(), def.TempID())
	} else {
		rf.fill(def.PhysReg(), def.Size(), def.TempID())
	}
}

func (rf *RegisterFile) clearDef(def *ir.Definition) {
	rf.clearRC(def.PhysReg(), def.RegClass())
}

// getID resolves the temporary occupying the given register position.
func (rf *RegisterFile) getID(reg ir.PhysReg) uint32 {
	u := reg.Unit()
	if rf.regs[u] == idSubdword {
		return rf.subdword[u][reg.Byte()]
	}
	return rf.regs[u]
}

// subdwordUnits returns the units with byte-granular entries in ascending
// order, so iteration over them is deterministic.
func (rf *RegisterFile) subdwordUnits() []uint32 {
	units := make([]uint32, 0, len(rf.subdword))
	for u := range rf.subdword {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

func (rf *RegisterFile) fill(start ir.PhysReg, size int, val uint32) {
	for i := 0; i < size; i++ {
		rf.regs[start.Unit()+uint32(i)] = val
	}
}

func (rf *RegisterFile) fillSubdword(start ir.PhysReg, numBytes int, val uint32) {
	rf.fill(start, (numBytes+3)/4, idSubdword)
	for b := int(start); b < int(start)+numBytes; b++ {
		u := uint32(b) / 4
		sub := rf.subdword[u]
		sub[b%4] = val
		if sub == ([4]uint32{}) {
			delete(rf.subdword, u)
			rf.regs[u] = idFree
		} else {
			rf.subdword[u] = sub
		}
	}
}
