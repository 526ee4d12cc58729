package ir

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/target"
)

func TestDecodeProgram(t *testing.T) {
	prog, err := DecodeProgram([]byte(`
demand: {vgpr: 3, sgpr: 4}
temps:
  - {name: a, class: v1}
  - {name: b, class: s2}
blocks:
  - logical_succs: [1]
    linear_succs: [1]
    instructions:
      - {op: v_mov_b32, defs: [a], ops: ["c:7"]}
  - logical_preds: [0]
    linear_preds: [0]
    instructions:
      - {op: s_endpgm}
`), target.Default())
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}

	if got := prog.MaxRegDemand; got.VGPR != 3 || got.SGPR != 4 {
		t.Errorf("MaxRegDemand = v%d s%d, want v3 s4", got.VGPR, got.SGPR)
	}
	if len(prog.Blocks) != 2 {
		t.Fatalf("block count = %d, want 2", len(prog.Blocks))
	}
	if got := prog.Blocks[1].LogicalPreds; len(got) != 1 || got[0] != 0 {
		t.Errorf("LogicalPreds = %v, want [0]", got)
	}

	mov := prog.Blocks[0].Instructions[0]
	if mov.Opcode != VMovB32 || mov.Format != FmtVOP1 {
		t.Errorf("decoded %v/%v, want v_mov_b32 in VOP1", mov.Opcode, mov.Format)
	}
	if !mov.Definitions[0].IsTemp() || mov.Definitions[0].RegClass() != V1 {
		t.Error("definition not decoded as a v1 temporary")
	}
	if !mov.Operands[0].IsConstant() || mov.Operands[0].ConstantValue() != 7 {
		t.Error("constant operand not decoded")
	}
}

func TestDecodeFixedOperand(t *testing.T) {
	prog, err := DecodeProgram([]byte(`
demand: {vgpr: 1, sgpr: 4}
temps:
  - {name: x, class: s2}
blocks:
  - instructions:
      - {op: p_as_uniform, defs: [], ops: ["x@vcc"]}
`), target.Default())
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}

	op := prog.Blocks[0].Instructions[0].Operands[0]
	if !op.IsFixed() || op.PhysReg() != VCC {
		t.Errorf("operand register = %v fixed=%v, want vcc", op.PhysReg(), op.IsFixed())
	}
}

func TestDecodeUndefOperand(t *testing.T) {
	prog, err := DecodeProgram([]byte(`
demand: {vgpr: 1, sgpr: 0}
blocks:
  - instructions:
      - {op: exp, ops: [undef, "undef:v2"]}
`), target.Default())
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}

	ops := prog.Blocks[0].Instructions[0].Operands
	if !ops[0].IsUndefined() || ops[0].RegClass() != V1 {
		t.Error("bare undef not decoded as v1")
	}
	if !ops[1].IsUndefined() || ops[1].RegClass() != V2 {
		t.Error("classed undef not decoded as v2")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad opcode", `
blocks:
  - instructions:
      - {op: v_bogus}
`},
		{"unknown temp", `
blocks:
  - instructions:
      - {op: exp, ops: [ghost]}
`},
		{"bad class", `
temps:
  - {name: a, class: q3}
`},
		{"bad register", `
temps:
  - {name: a, class: s1}
blocks:
  - instructions:
      - {op: exp, ops: ["a@q9"]}
`},
		{"bad yaml", "blocks: ["},
	}
	for _, tt := range tests {
		if _, err := DecodeProgram([]byte(tt.src), target.Default()); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		in   string
		want RegClass
	}{
		{"s1", S1},
		{"s4", S4},
		{"v2", V2},
		{"v2b", V2B},
		{"lv1", LinearVClass(1)},
	}
	for _, tt := range tests {
		got, err := parseClass(tt.in)
		if err != nil {
			t.Errorf("parseClass(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseClass(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseReg(t *testing.T) {
	tests := []struct {
		in   string
		want PhysReg
	}{
		{"s0", Reg(0)},
		{"s5", Reg(5)},
		{"v3", Reg(FirstVGPR + 3)},
		{"vcc", VCC},
		{"exec", Exec},
		{"m0", M0},
		{"scc", SCC},
	}
	for _, tt := range tests {
		got, err := parseReg(tt.in)
		if err != nil {
			t.Errorf("parseReg(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseReg(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
