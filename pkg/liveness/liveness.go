// Package liveness computes per-block live-out sets and operand kill flags
// for the allocator. It is the upstream collaborator the register allocator
// consumes its liveness annotations from; the allocator itself never
// recomputes liveness.
package liveness

import "github.com/shaderlab/gsc/pkg/ir"

// IDSet is a set of temporary ids.
type IDSet map[uint32]struct{}

// NewIDSet creates an empty set.
func NewIDSet() IDSet {
	return make(IDSet)
}

func (s IDSet) Insert(id uint32) {
	s[id] = struct{}{}
}

func (s IDSet) Erase(id uint32) {
	delete(s, id)
}

func (s IDSet) Contains(id uint32) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Compute runs a backward dataflow over both edge kinds until fixpoint,
// sets the kill / first-kill flags on every operand and definition, and
// returns the live-out set of each block. Late-kill flags set by the IR
// builder are preserved; only the kill bits are derived here.
func Compute(prog *ir.Program) []IDSet {
	n := len(prog.Blocks)
	liveIn := make([]IDSet, n)
	liveOut := make([]IDSet, n)
	for i := 0; i < n; i++ {
		liveIn[i] = NewIDSet()
		liveOut[i] = NewIDSet()
	}

	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			b := prog.Blocks[i]
			out := blockLiveOut(prog, b, liveIn)
			in := transfer(b, out)
			if !equal(out, liveOut[i]) || !equal(in, liveIn[i]) {
				changed = true
			}
			liveOut[i] = out
			liveIn[i] = in
		}
	}

	for i, b := range prog.Blocks {
		setKillFlags(b, liveOut[i])
	}
	setPhiKillFlags(prog, liveIn, liveOut)

	result := make([]IDSet, n)
	for i := range liveOut {
		result[i] = liveOut[i].Clone()
	}
	return result
}

// blockLiveOut gathers the live-in sets of all successors plus the values
// this block feeds into successor phis.
func blockLiveOut(prog *ir.Program, b *ir.Block, liveIn []IDSet) IDSet {
	out := NewIDSet()
	succs := NewIDSet()
	for _, s := range b.LogicalSuccs {
		succs.Insert(uint32(s))
	}
	for _, s := range b.LinearSuccs {
		succs.Insert(uint32(s))
	}
	for s := range succs {
		succ := prog.Blocks[s]
		for id := range liveIn[s] {
			out.Insert(id)
		}
		for _, instr := range succ.Instructions {
			if !instr.IsPhi() {
				break
			}
			preds := succ.LogicalPreds
			if instr.Opcode == ir.PLinearPhi {
				preds = succ.LinearPreds
			}
			for i, pred := range preds {
				if pred != b.Index || i >= len(instr.Operands) {
					continue
				}
				if op := &instr.Operands[i]; op.IsTemp() {
					out.Insert(op.TempID())
				}
			}
		}
	}
	return out
}

// transfer computes the live-in set from a block's live-out set. Phi
// operands are excluded; they belong to the predecessors' live-out.
func transfer(b *ir.Block, out IDSet) IDSet {
	in := out.Clone()
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		instr := b.Instructions[i]
		for j := range instr.Definitions {
			if def := &instr.Definitions[j]; def.IsTemp() {
				in.Erase(def.TempID())
			}
		}
		if instr.IsPhi() {
			continue
		}
		for j := range instr.Operands {
			if op := &instr.Operands[j]; op.IsTemp() {
				in.Insert(op.TempID())
			}
		}
	}
	return in
}

// setKillFlags walks a block bottom-up marking last reads and dead
// definitions. The first of several same-temp reads on one instruction
// carries the first-kill flag; all of them carry kill.
func setKillFlags(b *ir.Block, liveOut IDSet) {
	live := liveOut.Clone()
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		instr := b.Instructions[i]
		for j := range instr.Definitions {
			def := &instr.Definitions[j]
			if !def.IsTemp() {
				continue
			}
			def.SetKill(!live.Contains(def.TempID()))
			live.Erase(def.TempID())
		}
		if instr.IsPhi() {
			continue
		}
		firstSeen := make(map[uint32]int)
		for j := range instr.Operands {
			op := &instr.Operands[j]
			if !op.IsTemp() {
				continue
			}
			if _, seen := firstSeen[op.TempID()]; !seen {
				firstSeen[op.TempID()] = j
			}
		}
		for j := range instr.Operands {
			op := &instr.Operands[j]
			if !op.IsTemp() {
				continue
			}
			if live.Contains(op.TempID()) {
				op.SetKill(false)
				continue
			}
			op.SetKill(true)
			op.SetFirstKill(firstSeen[op.TempID()] == j)
		}
		for j := range instr.Operands {
			if op := &instr.Operands[j]; op.IsTemp() {
				live.Insert(op.TempID())
			}
		}
	}
}

// setPhiKillFlags marks phi operands that die on the incoming edge: the
// value is neither live into the phi's block, read by a sibling phi, nor
// live out of the predecessor along another path.
func setPhiKillFlags(prog *ir.Program, liveIn, liveOut []IDSet) {
	for _, b := range prog.Blocks {
		for _, instr := range b.Instructions {
			if !instr.IsPhi() {
				break
			}
			preds := b.LogicalPreds
			if instr.Opcode == ir.PLinearPhi {
				preds = b.LinearPreds
			}
			for i := range instr.Operands {
				op := &instr.Operands[i]
				if !op.IsTemp() || i >= len(preds) {
					continue
				}
				id := op.TempID()
				if liveIn[b.Index].Contains(id) || usedByOtherPhi(b, instr, id) ||
					liveIntoOtherSucc(prog, liveIn, preds[i], b.Index, id) {
					op.SetKill(false)
					continue
				}
				op.SetFirstKill(true)
			}
		}
	}
}

func usedByOtherPhi(b *ir.Block, phi *ir.Instruction, id uint32) bool {
	for _, other := range b.Instructions {
		if !other.IsPhi() {
			return false
		}
		if other == phi {
			continue
		}
		for i := range other.Operands {
			if op := &other.Operands[i]; op.IsTemp() && op.TempID() == id {
				return true
			}
		}
	}
	return false
}

func liveIntoOtherSucc(prog *ir.Program, liveIn []IDSet, pred, except int, id uint32) bool {
	b := prog.Blocks[pred]
	for _, succs := range [][]int{b.LogicalSuccs, b.LinearSuccs} {
		for _, s := range succs {
			if s != except && liveIn[s].Contains(id) {
				return true
			}
		}
	}
	return false
}

func equal(a, b IDSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.Contains(id) {
			return false
		}
	}
	return true
}
