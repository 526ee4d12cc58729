package ir

import "testing"

func TestOperandKinds(t *testing.T) {
	tmp := Temp{ID: 3, RC: V1}

	op := TempOperand(tmp)
	if !op.IsTemp() || op.IsConstant() || op.IsUndefined() {
		t.Error("temp operand misclassified")
	}
	if op.TempID() != 3 {
		t.Errorf("TempID = %d, want 3", op.TempID())
	}

	c := ConstOperand(42)
	if !c.IsConstant() || c.IsTemp() {
		t.Error("constant operand misclassified")
	}
	if c.Size() != 1 || c.Bytes() != 4 {
		t.Errorf("constant size = %d units %d bytes, want 1/4", c.Size(), c.Bytes())
	}

	u := UndefOperand(V2)
	if !u.IsUndefined() {
		t.Error("undef operand misclassified")
	}
}

func TestOperandIsLiteral(t *testing.T) {
	tests := []struct {
		val  uint64
		want bool
	}{
		{0, false},
		{64, false},
		{65, true},
		{uint64(0xFFFFFFFFFFFFFFF0), false}, // -16
		{uint64(0xFFFFFFFFFFFFFFEF), true},  // -17
	}
	for _, tt := range tests {
		op := ConstOperand(tt.val)
		if got := op.IsLiteral(); got != tt.want {
			t.Errorf("IsLiteral(%#x) = %v, want %v", tt.val, got, tt.want)
		}
	}
	tmp := TempOperand(Temp{ID: 1, RC: V1})
	if tmp.IsLiteral() {
		t.Error("temp operand reported as literal")
	}
}

func TestOperandKillFlags(t *testing.T) {
	op := TempOperand(Temp{ID: 1, RC: V1})
	op.SetFirstKill(true)
	if !op.IsKill() || !op.IsFirstKill() {
		t.Error("first-kill must imply kill")
	}
	if !op.IsKillBeforeDef() || !op.IsFirstKillBeforeDef() {
		t.Error("kill without late-kill must count before definitions")
	}

	op.SetLateKill(true)
	if op.IsKillBeforeDef() {
		t.Error("late-killed read counted as dead before definitions")
	}

	op.SetKill(false)
	if op.IsKill() || op.IsFirstKill() {
		t.Error("clearing kill left a kill flag set")
	}
}

func TestDefinitionFixedAndHint(t *testing.T) {
	tmp := Temp{ID: 2, RC: S2}

	d := TempDef(tmp)
	if d.IsFixed() {
		t.Error("fresh definition reports a fixed register")
	}
	d.SetHint(Reg(4))
	if !d.HasHint() || d.Hint() != Reg(4) {
		t.Error("hint not recorded")
	}
	d.SetFixed(Reg(6))
	if !d.IsFixed() || d.PhysReg() != Reg(6) {
		t.Error("fixed register not recorded")
	}

	f := FixedDef(tmp, Reg(8))
	if !f.IsFixed() || f.PhysReg() != Reg(8) {
		t.Error("FixedDef not fixed at its register")
	}

	r := RegDef(Reg(10), S2)
	if r.IsTemp() {
		t.Error("register-only definition carries a temp")
	}
	if r.RegClass() != S2 || r.PhysReg() != Reg(10) {
		t.Error("register-only definition lost class or register")
	}
}
