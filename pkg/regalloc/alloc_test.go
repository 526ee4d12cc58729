package regalloc

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

func TestGetRegSpecified(t *testing.T) {
	c := testCtx(4, 8)
	file := newRegisterFile()

	if !getRegSpecified(c, file, ir.V1, c.pseudoDummy, v(0)) {
		t.Error("free aligned register rejected")
	}

	file.fill(v(0), 1, 1)
	if getRegSpecified(c, file, ir.V1, c.pseudoDummy, v(0)) {
		t.Error("occupied register accepted")
	}

	if getRegSpecified(c, file, ir.S2, c.pseudoDummy, ir.Reg(1)) {
		t.Error("odd register accepted for an even-aligned pair")
	}

	if getRegSpecified(c, file, ir.V1, c.pseudoDummy, v(4)) {
		t.Error("register beyond the demand ceiling accepted")
	}

	// the vcc pair is usable even though it lies outside the bank bounds
	if !getRegSpecified(c, file, ir.S2, c.pseudoDummy, ir.VCC) {
		t.Error("vcc rejected for a scalar pair")
	}
}

func TestGetRegUsesAffinity(t *testing.T) {
	c := testCtx(4, 0)
	file := newRegisterFile()

	a := c.program.AllocateTemp(ir.V1)
	b := c.program.AllocateTemp(ir.V1)
	c.newAssignment(a.ID, assignment{reg: v(2), rc: ir.V1, assigned: true})
	c.newAssignment(b.ID, assignment{})
	c.affinities[b.ID] = a.ID

	var pcs []copyPair
	if got := getReg(c, file, b, &pcs, c.pseudoDummy, -1); got != v(2) {
		t.Errorf("placement = %v, want affinity register v2", got)
	}
}

func TestGetRegAffinityBlockedFallsBack(t *testing.T) {
	c := testCtx(4, 0)
	file := newRegisterFile()
	file.fill(v(2), 1, 9)
	c.maxUsedVGPR = 2

	a := c.program.AllocateTemp(ir.V1)
	b := c.program.AllocateTemp(ir.V1)
	c.newAssignment(a.ID, assignment{reg: v(2), rc: ir.V1, assigned: true})
	c.newAssignment(b.ID, assignment{})
	c.affinities[b.ID] = a.ID

	var pcs []copyPair
	got := getReg(c, file, b, &pcs, c.pseudoDummy, -1)
	if got == v(2) {
		t.Error("occupied affinity register returned")
	}
	if len(pcs) != 0 {
		t.Errorf("affinity fallback inserted %d copies, want 0", len(pcs))
	}
}

func TestGetRegEvictsFragmentedBank(t *testing.T) {
	// two free units split by live values: a pair cannot be placed
	// without moving one of them, and the bank cannot grow
	c := testCtx(4, 0)
	c.vgprLimit = 4
	file := newRegisterFile()

	a := c.program.AllocateTemp(ir.V1)
	b := c.program.AllocateTemp(ir.V1)
	c.newAssignment(a.ID, assignment{reg: v(1), rc: ir.V1, assigned: true})
	c.newAssignment(b.ID, assignment{reg: v(3), rc: ir.V1, assigned: true})
	file.fill(v(1), 1, a.ID)
	file.fill(v(3), 1, b.ID)
	c.maxUsedVGPR = 3

	pair := c.program.AllocateTemp(ir.V2)
	var pcs []copyPair
	got := getReg(c, file, pair, &pcs, c.pseudoDummy, -1)

	if got != v(0) && got != v(2) {
		t.Errorf("placement = %v, want a window starting at v0 or v2", got)
	}
	if len(pcs) != 1 {
		t.Fatalf("eviction produced %d copies, want 1", len(pcs))
	}
	if id := pcs[0].op.TempID(); id != a.ID && id != b.ID {
		t.Errorf("copy moves id %d, want one of the live values", id)
	}
	if c.program.MaxRegDemand.VGPR != 4 {
		t.Errorf("demand grew to %d despite the bank limit", c.program.MaxRegDemand.VGPR)
	}
}

func TestGetRegRaisesDemand(t *testing.T) {
	c := testCtx(2, 0)
	file := newRegisterFile()

	a := c.program.AllocateTemp(ir.V2)
	c.newAssignment(a.ID, assignment{reg: v(0), rc: ir.V2, assigned: true})
	file.fill(v(0), 2, a.ID)
	c.maxUsedVGPR = 1

	x := c.program.AllocateTemp(ir.V1)
	var pcs []copyPair
	got := getReg(c, file, x, &pcs, c.pseudoDummy, -1)

	if got != v(2) {
		t.Errorf("placement = %v, want v2 in the widened bank", got)
	}
	if c.program.MaxRegDemand.VGPR != 3 {
		t.Errorf("MaxRegDemand.VGPR = %d, want 3", c.program.MaxRegDemand.VGPR)
	}
	if len(pcs) != 0 {
		t.Errorf("widening inserted %d copies, want 0", len(pcs))
	}
}

func TestOperandCanUseRegSMEM(t *testing.T) {
	load := ir.NewInstruction(ir.SLoadDword, ir.FmtSMEM, 2, 1)
	load.Operands[0] = ir.TempOperand(ir.Temp{ID: 1, RC: ir.S2})
	load.Operands[1] = ir.TempOperand(ir.Temp{ID: 2, RC: ir.S1})

	if operandCanUseReg(target.GFX9, load, 0, ir.SCC, ir.S2) {
		t.Error("scc accepted as a memory address")
	}
	if operandCanUseReg(target.GFX9, load, 0, ir.M0, ir.S2) {
		t.Error("m0 accepted as a memory address")
	}
	if !operandCanUseReg(target.GFX9, load, 1, ir.M0, ir.S1) {
		t.Error("m0 rejected as the offset")
	}
	if !operandCanUseReg(target.GFX9, load, 0, ir.Reg(4), ir.S2) {
		t.Error("plain scalar register rejected")
	}
}

func TestOperandCanUseRegFixed(t *testing.T) {
	instr := ir.NewInstruction(ir.VMovB32, ir.FmtVOP1, 1, 1)
	instr.Operands[0] = ir.TempOperand(ir.Temp{ID: 1, RC: ir.V1})
	instr.Operands[0].SetFixed(v(3))

	if !operandCanUseReg(target.GFX9, instr, 0, v(3), ir.V1) {
		t.Error("fixed register rejected for itself")
	}
	if operandCanUseReg(target.GFX9, instr, 0, v(4), ir.V1) {
		t.Error("other register accepted for a fixed operand")
	}
}

func TestOperandCanUseRegWritelane(t *testing.T) {
	// two distinct scalar sources force the second one into m0
	wl := ir.NewInstruction(ir.VWritelaneB32, ir.FmtVOP2, 3, 1)
	wl.Operands[0] = ir.TempOperand(ir.Temp{ID: 1, RC: ir.S1})
	wl.Operands[1] = ir.TempOperand(ir.Temp{ID: 2, RC: ir.S1})
	wl.Operands[2] = ir.TempOperand(ir.Temp{ID: 3, RC: ir.V1})

	if operandCanUseReg(target.GFX9, wl, 0, ir.Reg(0), ir.S1) {
		t.Error("plain scalar register accepted alongside another scalar source")
	}
	if !wl.Operands[0].IsFixed() || wl.Operands[0].PhysReg() != ir.M0 {
		t.Error("conflicting scalar source not pinned to m0")
	}
}
