package ir

import "testing"

func TestRegClassSize(t *testing.T) {
	tests := []struct {
		rc    RegClass
		size  int
		bytes int
	}{
		{S1, 1, 4},
		{S4, 4, 16},
		{V2, 2, 8},
		{V1B, 1, 1},
		{V3B, 1, 3},
	}
	for _, tt := range tests {
		if got := tt.rc.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.rc, got, tt.size)
		}
		if got := tt.rc.Bytes(); got != tt.bytes {
			t.Errorf("%v.Bytes() = %d, want %d", tt.rc, got, tt.bytes)
		}
	}
}

func TestRegClassLinearity(t *testing.T) {
	if !S1.IsLinear() {
		t.Error("scalar class not linear")
	}
	if V1.IsLinear() {
		t.Error("plain vector class linear")
	}
	lv := LinearVClass(2)
	if !lv.IsLinear() || !lv.IsLinearVGPR() {
		t.Error("linear vector class not recognized")
	}
	if S1.IsLinearVGPR() {
		t.Error("scalar class reported as a linear vgpr")
	}
}

func TestClassFor(t *testing.T) {
	if got := ClassFor(VGPR, 8); got != V2 {
		t.Errorf("ClassFor(VGPR, 8) = %v, want v2", got)
	}
	if got := ClassFor(VGPR, 2); !got.IsSubdword() || got.Bytes() != 2 {
		t.Errorf("ClassFor(VGPR, 2) = %v, want v2b", got)
	}
}

func TestPhysRegArithmetic(t *testing.T) {
	r := Reg(FirstVGPR + 2)
	if r.Unit() != FirstVGPR+2 || r.Byte() != 0 {
		t.Errorf("unit/byte = %d/%d, want %d/0", r.Unit(), r.Byte(), FirstVGPR+2)
	}

	hi := r.Advance(2)
	if hi.Unit() != FirstVGPR+2 || hi.Byte() != 2 {
		t.Errorf("advanced unit/byte = %d/%d, want %d/2", hi.Unit(), hi.Byte(), FirstVGPR+2)
	}
	if back := hi.Advance(-2); back != r {
		t.Errorf("Advance(-2) = %v, want %v", back, r)
	}
}

func TestPhysRegString(t *testing.T) {
	tests := []struct {
		reg  PhysReg
		want string
	}{
		{Reg(4), "s4"},
		{Reg(FirstVGPR), "v0"},
		{Reg(FirstVGPR + 1).Advance(2), "v1.2"},
		{VCC, "s106"},
	}
	for _, tt := range tests {
		if got := tt.reg.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
