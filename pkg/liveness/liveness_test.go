package liveness

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

func decode(t *testing.T, src string) *ir.Program {
	t.Helper()
	prog, err := ir.DecodeProgram([]byte(src), target.Default())
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	return prog
}

func TestIDSetBasics(t *testing.T) {
	s := NewIDSet()
	s.Insert(3)
	s.Insert(7)
	if !s.Contains(3) || !s.Contains(7) {
		t.Error("inserted ids missing")
	}
	if s.Contains(5) {
		t.Error("Contains(5) = true for an absent id")
	}

	c := s.Clone()
	s.Erase(3)
	if s.Contains(3) {
		t.Error("erased id still present")
	}
	if !c.Contains(3) {
		t.Error("clone shares storage with the original")
	}
}

func TestComputeStraightLine(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 4, sgpr: 0}
temps:
  - {name: a, class: v1}
  - {name: b, class: v1}
blocks:
  - instructions:
      - {op: v_mov_b32, defs: [a], ops: ["c:0"]}
      - {op: v_mov_b32, defs: [b], ops: ["c:1"]}
      - {op: v_add_f32, defs: [], ops: [a, b]}
      - {op: s_endpgm}
`)
	liveOut := Compute(prog)

	if len(liveOut[0]) != 0 {
		t.Errorf("live-out of the exit block has %d ids, want 0", len(liveOut[0]))
	}

	add := prog.Blocks[0].Instructions[2]
	if !add.Operands[0].IsFirstKill() || !add.Operands[1].IsFirstKill() {
		t.Error("final reads not marked first-kill")
	}
	mov := prog.Blocks[0].Instructions[0]
	if mov.Definitions[0].IsKill() {
		t.Error("used definition marked dead")
	}
}

func TestComputeDeadDefinition(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 2, sgpr: 0}
temps:
  - {name: a, class: v1}
blocks:
  - instructions:
      - {op: v_mov_b32, defs: [a], ops: ["c:0"]}
      - {op: s_endpgm}
`)
	Compute(prog)

	if !prog.Blocks[0].Instructions[0].Definitions[0].IsKill() {
		t.Error("unread definition not marked dead")
	}
}

func TestComputeRepeatedReadFirstKill(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 2, sgpr: 0}
temps:
  - {name: a, class: v1}
blocks:
  - instructions:
      - {op: v_mov_b32, defs: [a], ops: ["c:0"]}
      - {op: v_add_f32, defs: [], ops: [a, a]}
      - {op: s_endpgm}
`)
	Compute(prog)

	add := prog.Blocks[0].Instructions[1]
	if !add.Operands[0].IsFirstKill() {
		t.Error("first of two final reads not marked first-kill")
	}
	if add.Operands[1].IsFirstKill() {
		t.Error("second read also marked first-kill")
	}
	if !add.Operands[1].IsKill() {
		t.Error("second read not marked kill")
	}
}

func TestComputeAcrossBlocks(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 2, sgpr: 8}
temps:
  - {name: x, class: s1}
blocks:
  - logical_succs: [1]
    linear_succs: [1]
    instructions:
      - {op: s_mov_b32, defs: [x], ops: ["c:0"]}
  - logical_preds: [0]
    linear_preds: [0]
    instructions:
      - {op: p_as_uniform, defs: [], ops: [x]}
      - {op: s_endpgm}
`)
	liveOut := Compute(prog)

	x := prog.Blocks[0].Instructions[0].Definitions[0].TempID()
	if !liveOut[0].Contains(x) {
		t.Error("value read in the successor missing from live-out")
	}
	use := prog.Blocks[1].Instructions[0]
	if !use.Operands[0].IsFirstKill() {
		t.Error("final cross-block read not marked first-kill")
	}
}

func TestComputePhiOperandsBelongToPreds(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 4, sgpr: 0}
temps:
  - {name: a, class: v1}
  - {name: b, class: v1}
  - {name: m, class: v1}
blocks:
  - logical_succs: [1, 2]
    linear_succs: [1, 2]
    instructions:
      - {op: s_branch}
  - logical_preds: [0]
    linear_preds: [0]
    logical_succs: [3]
    linear_succs: [3]
    instructions:
      - {op: v_mov_b32, defs: [a], ops: ["c:0"]}
      - {op: s_branch}
  - logical_preds: [0]
    linear_preds: [0]
    logical_succs: [3]
    linear_succs: [3]
    instructions:
      - {op: v_mov_b32, defs: [b], ops: ["c:1"]}
      - {op: s_branch}
  - logical_preds: [1, 2]
    linear_preds: [1, 2]
    instructions:
      - {op: p_phi, defs: [m], ops: [a, b]}
      - {op: exp, ops: [m]}
      - {op: s_endpgm}
`)
	liveOut := Compute(prog)

	a := prog.Blocks[1].Instructions[0].Definitions[0].TempID()
	b := prog.Blocks[2].Instructions[0].Definitions[0].TempID()
	if !liveOut[1].Contains(a) {
		t.Error("phi operand missing from its predecessor's live-out")
	}
	if liveOut[1].Contains(b) {
		t.Error("other edge's phi operand leaked into this predecessor")
	}

	phi := prog.Blocks[3].Instructions[0]
	if !phi.Operands[0].IsFirstKill() || !phi.Operands[1].IsFirstKill() {
		t.Error("phi operands dying on their edges not marked first-kill")
	}
}

func TestComputeLoopFixpoint(t *testing.T) {
	prog := decode(t, `
demand: {vgpr: 0, sgpr: 8}
temps:
  - {name: x, class: s1}
blocks:
  - logical_succs: [1]
    linear_succs: [1]
    instructions:
      - {op: s_mov_b32, defs: [x], ops: ["c:0"]}
  - logical_preds: [0, 1]
    linear_preds: [0, 1]
    logical_succs: [1, 2]
    linear_succs: [1, 2]
    instructions:
      - {op: p_as_uniform, defs: [], ops: [x]}
      - {op: s_branch}
  - logical_preds: [1]
    linear_preds: [1]
    instructions:
      - {op: s_endpgm}
`)
	liveOut := Compute(prog)

	x := prog.Blocks[0].Instructions[0].Definitions[0].TempID()
	if !liveOut[0].Contains(x) || !liveOut[1].Contains(x) {
		t.Error("loop-carried value missing from live-out around the back edge")
	}
	use := prog.Blocks[1].Instructions[0]
	if use.Operands[0].IsKill() {
		t.Error("read of a loop-carried value marked as its last use")
	}
}
