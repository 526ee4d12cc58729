package regalloc

import (
	"testing"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

func TestGetStride(t *testing.T) {
	tests := []struct {
		rc   ir.RegClass
		want int
	}{
		{ir.S1, 1},
		{ir.S2, 2},
		{ir.S3, 1},
		{ir.S4, 4},
		{ir.S8, 4},
		{ir.V1, 1},
		{ir.V4, 1},
	}
	for _, tt := range tests {
		if got := getStride(tt.rc); got != tt.want {
			t.Errorf("getStride(%v) = %d, want %d", tt.rc, got, tt.want)
		}
	}
}

func TestIntervalContains(t *testing.T) {
	iv := interval{lo: v(2), size: 3}
	if !iv.contains(v(2)) || !iv.contains(v(4)) {
		t.Error("interval excludes its own units")
	}
	if iv.contains(v(1)) || iv.contains(v(5)) {
		t.Error("interval includes units outside its window")
	}
	if !iv.containsIv(interval{lo: v(3), size: 2}) {
		t.Error("containsIv = false for an inner window")
	}
	if iv.containsIv(interval{lo: v(4), size: 2}) {
		t.Error("containsIv = true for an overhanging window")
	}
}

func TestIntervalIntersects(t *testing.T) {
	a := interval{lo: v(0), size: 4}
	if !intersects(a, interval{lo: v(2), size: 4}) {
		t.Error("overlapping windows do not intersect")
	}
	if intersects(a, interval{lo: v(4), size: 2}) {
		t.Error("adjacent windows intersect")
	}
}

func testCtx(vgprDemand, sgprDemand int) *ctx {
	prog := ir.NewProgram(target.Default())
	prog.MaxRegDemand = ir.RegisterDemand{VGPR: vgprDemand, SGPR: sgprDemand}
	return newCtx(prog, Policy{})
}

func TestGetRegSimpleSequential(t *testing.T) {
	c := testCtx(4, 0)
	file := newRegisterFile()

	info := makeDefInfo(c, c.pseudoDummy, ir.V1, -1)
	r1, ok := getRegSimple(c, file, info)
	if !ok || r1 != v(0) {
		t.Fatalf("first placement = %v, %v, want v0", r1, ok)
	}
	file.fill(r1, 1, 1)

	r2, ok := getRegSimple(c, file, info)
	if !ok || r2 != v(1) {
		t.Errorf("second placement = %v, %v, want v1", r2, ok)
	}
}

func TestGetRegSimpleExactGap(t *testing.T) {
	c := testCtx(6, 0)
	file := newRegisterFile()
	file.fill(v(0), 1, 1)
	file.fill(v(2), 1, 2)
	c.maxUsedVGPR = 2

	info := makeDefInfo(c, c.pseudoDummy, ir.V1, -1)
	reg, ok := getRegSimple(c, file, info)
	if !ok || reg != v(1) {
		t.Errorf("placement = %v, %v, want exact gap at v1", reg, ok)
	}
}

func TestGetRegSimplePairPrefersCoarseAlignment(t *testing.T) {
	// the gap at v1 fits the pair, but the coarse pre-pass keeps
	// even-aligned slots together and picks v4
	c := testCtx(6, 0)
	file := newRegisterFile()
	file.fill(v(0), 1, 1)
	file.fill(v(3), 1, 2)
	c.maxUsedVGPR = 3

	info := makeDefInfo(c, c.pseudoDummy, ir.V2, -1)
	reg, ok := getRegSimple(c, file, info)
	if !ok || reg != v(4) {
		t.Errorf("placement = %v, %v, want v4", reg, ok)
	}
}

func TestGetRegSimpleAlignedRemainder(t *testing.T) {
	// the only gap is v2..v4; placing at the top leaves v2..v3 free,
	// which is the better-aligned remainder for a future pair
	c := testCtx(6, 0)
	file := newRegisterFile()
	file.fill(v(0), 2, 1)
	file.fill(v(5), 1, 2)
	c.maxUsedVGPR = 5

	info := makeDefInfo(c, c.pseudoDummy, ir.V1, -1)
	reg, ok := getRegSimple(c, file, info)
	if !ok || reg != v(4) {
		t.Errorf("placement = %v, %v, want v4", reg, ok)
	}
}

func TestGetRegSimpleScalarStride(t *testing.T) {
	c := testCtx(0, 6)
	file := newRegisterFile()
	file.fill(ir.Reg(0), 1, 1)
	c.maxUsedSGPR = 0

	info := makeDefInfo(c, c.pseudoDummy, ir.S2, -1)
	reg, ok := getRegSimple(c, file, info)
	if !ok || reg != ir.Reg(2) {
		t.Errorf("placement = %v, %v, want s2 for even alignment", reg, ok)
	}
}

func TestGetRegSimpleFullBank(t *testing.T) {
	c := testCtx(2, 0)
	file := newRegisterFile()
	file.fill(v(0), 2, 1)
	c.maxUsedVGPR = 1

	info := makeDefInfo(c, c.pseudoDummy, ir.V1, -1)
	if reg, ok := getRegSimple(c, file, info); ok {
		t.Errorf("placement in a full bank = %v, want failure", reg)
	}
}

func TestGetRegSimpleAvoidsWARHint(t *testing.T) {
	c := testCtx(2, 0)
	file := newRegisterFile()
	c.maxUsedVGPR = 0
	c.warHint.set(v(0).Unit())

	info := makeDefInfo(c, c.pseudoDummy, ir.V1, -1)
	reg, ok := getRegSimple(c, file, info)
	if !ok || reg != v(1) {
		t.Errorf("placement = %v, %v, want v1 past the hinted unit", reg, ok)
	}
}

func TestAdjustMaxUsedRegs(t *testing.T) {
	c := testCtx(8, 8)
	adjustMaxUsedRegs(c, ir.V2, v(2).Unit())
	if c.maxUsedVGPR != 3 {
		t.Errorf("maxUsedVGPR = %d, want 3", c.maxUsedVGPR)
	}
	adjustMaxUsedRegs(c, ir.S2, 4)
	if c.maxUsedSGPR != 5 {
		t.Errorf("maxUsedSGPR = %d, want 5", c.maxUsedSGPR)
	}
}
