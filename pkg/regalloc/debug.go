package regalloc

import (
	"fmt"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/shaderlab/gsc/pkg/ir"
)

// debugEnabled turns on register-state dumps after each block.
var debugEnabled = env.Bool("GSC_DEBUG")

// dumpRegs renders the occupancy of one bank: a usage strip with one rune
// per unit, then the list of placed values. Adjacent values alternate
// between # and @ so their boundaries stay visible.
func dumpRegs(c *ctx, file *RegisterFile, vgprs bool) string {
	max := c.program.MaxRegDemand.SGPR
	lo := uint32(0)
	bank := "s"
	if vgprs {
		max = c.program.MaxRegDemand.VGPR
		lo = ir.FirstVGPR
		bank = "v"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "       ")
	for i := 0; i < max; i += 3 {
		fmt.Fprintf(&b, "%.2d ", i)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%sgprs: ", bank)
	freeRegs := 0
	prev := uint32(0)
	charSelect := false
	for u := lo; u < lo+uint32(max); u++ {
		switch v := file.regs[u]; {
		case v == idBlocked:
			b.WriteByte('~')
		case v != 0:
			if v != prev {
				prev = v
				charSelect = !charSelect
			}
			if charSelect {
				b.WriteByte('#')
			} else {
				b.WriteByte('@')
			}
		default:
			freeRegs++
			b.WriteByte('.')
		}
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%d/%d used, %d/%d free\n", max-freeRegs, max, freeRegs, max)

	prev = 0
	size := 0
	flush := func(end int) {
		if prev == 0 || prev == idBlocked || prev == idSubdword {
			return
		}
		lo := end - size
		name := fmt.Sprintf("%%%d", prev)
		if orig, ok := c.origNames[prev]; ok && orig.ID != prev {
			name = fmt.Sprintf("%%%d (was %%%d)", prev, orig.ID)
		}
		if size > 1 {
			fmt.Fprintf(&b, "%s = %s[%d-%d]\n", name, bank, lo, end-1)
		} else {
			fmt.Fprintf(&b, "%s = %s[%d]\n", name, bank, lo)
		}
	}
	for i := 0; i < max; i++ {
		v := file.regs[lo+uint32(i)]
		if v != prev {
			flush(i)
			prev = v
			size = 1
		} else {
			size++
		}
	}
	flush(max)

	return b.String()
}
