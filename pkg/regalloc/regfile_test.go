package regalloc

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

func TestRegisterFileFillClear(t *testing.T) {
	rf := newRegisterFile()

	rf.fill(v(2), 2, 7)
	if got := rf.getID(v(2)); got != 7 {
		t.Errorf("getID(v2) = %d, want 7", got)
	}
	if got := rf.getID(v(3)); got != 7 {
		t.Errorf("getID(v3) = %d, want 7", got)
	}
	if !rf.test(v(3), 4) {
		t.Error("test(v3) = false for an occupied unit")
	}
	if rf.test(v(4), 4) {
		t.Error("test(v4) = true for a free unit")
	}

	rf.clearRC(v(2), ir.V2)
	if rf.test(v(2), 8) {
		t.Error("cleared span still reads occupied")
	}
}

func TestRegisterFileCountZero(t *testing.T) {
	rf := newRegisterFile()
	rf.fill(v(1), 1, 3)
	rf.fill(v(3), 1, 4)

	iv := interval{lo: v(0), size: 5}
	if got := rf.countZero(iv); got != 3 {
		t.Errorf("countZero = %d, want 3", got)
	}
}

func TestRegisterFileBlock(t *testing.T) {
	rf := newRegisterFile()
	rf.block(v(5), ir.V1)

	if !rf.isBlocked(v(5)) {
		t.Error("isBlocked = false for a blocked unit")
	}
	if rf.isBlocked(v(6)) {
		t.Error("isBlocked = true for a free unit")
	}
	if !rf.test(v(5), 4) {
		t.Error("blocked unit reads free")
	}
	if !rf.isEmptyOrBlocked(v(5)) || !rf.isEmptyOrBlocked(v(6)) {
		t.Error("isEmptyOrBlocked should hold for blocked and free units")
	}
}

func TestRegisterFileSubdword(t *testing.T) {
	rf := newRegisterFile()

	// a 2-byte value in the low half of v0
	rf.fillSubdword(v(0), 2, 9)
	if got := rf.val(v(0).Unit()); got != idSubdword {
		t.Errorf("unit value = %#x, want subdword marker", got)
	}
	if got := rf.getID(v(0)); got != 9 {
		t.Errorf("getID(low byte) = %d, want 9", got)
	}
	if got := rf.getID(v(0).Advance(2)); got != idFree {
		t.Errorf("getID(high byte) = %d, want free", got)
	}
	if !rf.test(v(0), 1) {
		t.Error("occupied byte reads free")
	}
	if rf.test(v(0).Advance(2), 2) {
		t.Error("free bytes read occupied")
	}

	// clearing the value prunes the side table and frees the unit
	rf.fillSubdword(v(0), 2, idFree)
	if got := rf.val(v(0).Unit()); got != idFree {
		t.Errorf("unit value after clear = %#x, want free", got)
	}
	if len(rf.subdword) != 0 {
		t.Errorf("subdword table has %d entries after clear, want 0", len(rf.subdword))
	}
}

func TestRegisterFileClone(t *testing.T) {
	rf := newRegisterFile()
	rf.fill(v(1), 1, 5)
	rf.fillSubdword(v(2), 2, 6)

	c := rf.clone()
	c.fill(v(1), 1, idFree)
	c.fillSubdword(v(2), 2, idFree)

	if got := rf.getID(v(1)); got != 5 {
		t.Errorf("original mutated through clone: getID(v1) = %d, want 5", got)
	}
	if got := rf.getID(v(2)); got != 6 {
		t.Errorf("original subdword mutated through clone: getID(v2) = %d, want 6", got)
	}
}

func TestRegisterFileOperandsAndDefs(t *testing.T) {
	rf := newRegisterFile()
	prog := ir.NewProgram(target.Default())
	tmp := prog.AllocateTemp(ir.V2)

	def := ir.FixedDef(tmp, v(4))
	rf.fillDef(&def)
	if got := rf.getID(v(5)); got != tmp.ID {
		t.Errorf("getID(v5) = %d, want %d", got, tmp.ID)
	}

	op := ir.TempOperand(tmp)
	op.SetFixed(v(4))
	rf.clearOp(&op)
	if rf.test(v(4), 8) {
		t.Error("operand clear left units occupied")
	}
}
