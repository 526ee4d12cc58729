// Textual dump of the IR, used by the CLI's -dra / -dlive debug flags.
package ir

import (
	"fmt"
	"io"
)

// Printer writes a human-readable listing of a program.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a program printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every block of the program.
func (p *Printer) PrintProgram(prog *Program) {
	fmt.Fprintf(p.w, "target %s, demand v%d s%d\n", prog.Chip.Gen, prog.MaxRegDemand.VGPR, prog.MaxRegDemand.SGPR)
	for _, b := range prog.Blocks {
		p.PrintBlock(b)
	}
	if prog.Config.NumVGPRs != 0 || prog.Config.NumSGPRs != 0 {
		fmt.Fprintf(p.w, "config: %d vgprs, %d sgprs\n", prog.Config.NumVGPRs, prog.Config.NumSGPRs)
	}
}

// PrintBlock prints one block with its predecessor lists.
func (p *Printer) PrintBlock(b *Block) {
	fmt.Fprintf(p.w, "BB%d", b.Index)
	if len(b.LogicalPreds) > 0 || len(b.LinearPreds) > 0 {
		fmt.Fprintf(p.w, " /* logical preds: %v / linear preds: %v */", b.LogicalPreds, b.LinearPreds)
	}
	fmt.Fprintln(p.w, ":")
	for _, instr := range b.Instructions {
		p.PrintInstruction(instr)
	}
}

// PrintInstruction prints one instruction on a single line.
func (p *Printer) PrintInstruction(instr *Instruction) {
	fmt.Fprint(p.w, "\t")
	for i := range instr.Definitions {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, instr.Definitions[i].String())
	}
	if len(instr.Definitions) > 0 {
		fmt.Fprint(p.w, " = ")
	}
	fmt.Fprint(p.w, instr.Opcode)
	if instr.IsVOP3() {
		fmt.Fprint(p.w, "_e64")
	}
	if instr.IsSDWA() {
		fmt.Fprint(p.w, "_sdwa")
	}
	for i := range instr.Operands {
		if i > 0 {
			fmt.Fprint(p.w, ",")
		}
		fmt.Fprintf(p.w, " %s", instr.Operands[i].String())
	}
	if instr.TmpInSCC {
		fmt.Fprintf(p.w, " scratch:%s", instr.ScratchSGPR)
	}
	fmt.Fprintln(p.w)
}
