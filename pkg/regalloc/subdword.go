package regalloc

import (
	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/target"
)

// Sub-dword placement depends on what the hardware encoding can express:
// byte lanes selected through SDWA, half selected through opsel bits, or a
// dedicated high-half opcode variant. The tables below drive all of it.

// opselOps are the 16-bit three-operand instructions with opsel bits.
var opselOps = map[ir.Opcode]bool{
	ir.VDivFixupF16: true,
	ir.VFmaF16:      true,
	ir.VMadF16:      true,
	ir.VMadU16:      true,
	ir.VMadI16:      true,
	ir.VInterpP2F16: true,
}

// d16HiStores maps a sub-dword store to the variant reading the high half.
var d16HiStores = map[ir.Opcode]ir.Opcode{
	ir.BufferStoreByte:   ir.BufferStoreByteD16Hi,
	ir.BufferStoreShort:  ir.BufferStoreShortD16Hi,
	ir.FlatStoreByte:     ir.FlatStoreByteD16Hi,
	ir.FlatStoreShort:    ir.FlatStoreShortD16Hi,
	ir.ScratchStoreByte:  ir.ScratchStoreByteD16Hi,
	ir.ScratchStoreShort: ir.ScratchStoreShortD16Hi,
	ir.GlobalStoreByte:   ir.GlobalStoreByteD16Hi,
	ir.GlobalStoreShort:  ir.GlobalStoreShortD16Hi,
}

// d16HiLoads maps a d16 load to the variant writing the high half.
var d16HiLoads = map[ir.Opcode]ir.Opcode{
	ir.BufferLoadUbyteD16:  ir.BufferLoadUbyteD16Hi,
	ir.BufferLoadShortD16:  ir.BufferLoadShortD16Hi,
	ir.FlatLoadUbyteD16:    ir.FlatLoadUbyteD16Hi,
	ir.FlatLoadShortD16:    ir.FlatLoadShortD16Hi,
	ir.ScratchLoadUbyteD16: ir.ScratchLoadUbyteD16Hi,
	ir.ScratchLoadShortD16: ir.ScratchLoadShortD16Hi,
	ir.GlobalLoadUbyteD16:  ir.GlobalLoadUbyteD16Hi,
	ir.GlobalLoadShortD16:  ir.GlobalLoadShortD16Hi,
	ir.DSReadU8D16:         ir.DSReadU8D16Hi,
	ir.DSReadU16D16:        ir.DSReadU16D16Hi,
}

// d16Loads are the loads writing only 16 bits on generations without
// SRAM ECC.
var d16Loads = map[ir.Opcode]bool{
	ir.BufferLoadUbyteD16:  true,
	ir.BufferLoadShortD16:  true,
	ir.FlatLoadUbyteD16:    true,
	ir.FlatLoadShortD16:    true,
	ir.ScratchLoadUbyteD16: true,
	ir.ScratchLoadShortD16: true,
	ir.GlobalLoadUbyteD16:  true,
	ir.GlobalLoadShortD16:  true,
	ir.DSReadU8D16:         true,
	ir.DSReadU16D16:        true,
}

// defBits is the natural definition width in bits; opcodes not listed
// write a full dword.
var defBits = map[ir.Opcode]int{
	ir.VMadF16:       16,
	ir.VMadLegacyF16: 16,
	ir.VMadU16:       16,
	ir.VMadI16:       16,
	ir.VFmaF16:       16,
	ir.VDivFixupF16:  16,
	ir.VInterpP2F16:  16,
	ir.VFmaMixloF16:  16,
	ir.DSReadU8D16:   16,
	ir.DSReadU16D16:  16,
}

func definitionBits(op ir.Opcode) int {
	if bits, ok := defBits[op]; ok {
		return bits
	}
	return 32
}

func canUseOpsel(gen target.Gen, op ir.Opcode, idx int, high uint32) bool {
	if (high != 0 || idx == -1) && gen < target.GFX9 {
		return false
	}
	if opselOps[op] {
		return true
	}
	return op == ir.VMadLegacyF16 && gen == target.GFX9
}

// canUseSDWA reports whether the instruction can take the byte-select
// encoding: short vector ALU forms only, GFX8 onwards, no literals, and
// scalar sources only from GFX9.
func canUseSDWA(gen target.Gen, instr *ir.Instruction) bool {
	if instr.Format&(ir.FmtVOP1|ir.FmtVOP2|ir.FmtVOPC) == 0 {
		return false
	}
	if gen < target.GFX8 {
		return false
	}
	if instr.IsSDWA() {
		return true
	}
	if instr.IsVOP3() {
		if instr.Clamp && instr.IsVOPC() && gen != target.GFX8 {
			return false
		}
		if instr.Omod != 0 && gen < target.GFX9 {
			return false
		}
		if len(instr.Definitions) >= 2 {
			return false
		}
		for i := 1; i < len(instr.Operands); i++ {
			op := &instr.Operands[i]
			if op.IsLiteral() {
				return false
			}
			if gen < target.GFX9 && op.IsTemp() && op.Temp().Type() != ir.VGPR {
				return false
			}
		}
	}
	if len(instr.Operands) > 0 {
		op := &instr.Operands[0]
		if op.IsLiteral() {
			return false
		}
		if gen < target.GFX9 && op.IsTemp() && op.Temp().Type() != ir.VGPR {
			return false
		}
	}
	switch instr.Opcode {
	case ir.VMacF32, ir.VMacF16, ir.VFmacF32, ir.VFmacF16:
		// the read of the accumulator has no byte select on GFX9+
		return gen == target.GFX8
	case ir.VWritelaneB32, ir.VWritelaneB32E64, ir.VCndmaskB32:
		return false
	}
	return true
}

// convertToSDWA rewrites the instruction to the byte-select encoding.
// SDWA replaces the long VOP3 form.
func convertToSDWA(instr *ir.Instruction) {
	instr.Format = (instr.Format | ir.FmtSDWA) &^ ir.FmtVOP3
}

// subdwordOperandStride is the byte alignment the encoding requires of a
// sub-dword operand read.
func subdwordOperandStride(gen target.Gen, instr *ir.Instruction, idx int, rc ir.RegClass) int {
	// a lane-uniform read has no byte select
	if instr.Opcode == ir.PAsUniform {
		return 4
	}
	if instr.IsPseudo() && gen >= target.GFX8 {
		if rc.Bytes()%2 == 0 {
			return 2
		}
		return 1
	}

	switch {
	case instr.Opcode == ir.VCvtF32Ubyte0:
		return 1
	case canUseSDWA(gen, instr):
		if rc.Bytes()%2 == 0 {
			return 2
		}
		return 1
	case rc.Bytes() == 2 && canUseOpsel(gen, instr.Opcode, idx, 1):
		return 2
	case instr.IsVOP3P():
		return 2
	}

	switch instr.Opcode {
	case ir.DSWriteB8, ir.DSWriteB16:
		if gen >= target.GFX8 {
			return 2
		}
		return 4
	case ir.BufferStoreByte, ir.BufferStoreShort,
		ir.FlatStoreByte, ir.FlatStoreShort,
		ir.ScratchStoreByte, ir.ScratchStoreShort,
		ir.GlobalStoreByte, ir.GlobalStoreShort:
		if gen >= target.GFX9 {
			return 2
		}
		return 4
	}

	return 4
}

// addSubdwordOperand rewrites the instruction so it reads the operand at
// the given byte offset. Panics when no encoding variant exists; the
// placement search must only pick offsets a rewrite exists for.
func addSubdwordOperand(c *ctx, instr *ir.Instruction, idx int, byteOff uint32, rc ir.RegClass) {
	gen := c.program.Chip.Gen
	if instr.IsPseudo() || byteOff == 0 {
		return
	}
	if rc.Bytes() > 2 {
		panic("regalloc: sub-dword operand wider than two bytes at nonzero offset")
	}

	if !instr.UsesModifiers() && instr.Opcode == ir.VCvtF32Ubyte0 {
		switch byteOff {
		case 1:
			instr.Opcode = ir.VCvtF32Ubyte1
		case 2:
			instr.Opcode = ir.VCvtF32Ubyte2
		case 3:
			instr.Opcode = ir.VCvtF32Ubyte3
		}
		return
	}
	if canUseSDWA(gen, instr) {
		convertToSDWA(instr)
		return
	}
	if rc.Bytes() == 2 && canUseOpsel(gen, instr.Opcode, idx, byteOff/2) {
		instr.Opsel |= uint8(byteOff/2) << idx
		return
	}
	if instr.IsVOP3P() && byteOff == 2 {
		if instr.OpselLo&(1<<idx) != 0 {
			panic("regalloc: packed operand already reads the high half")
		}
		instr.OpselLo |= 1 << idx
		instr.OpselHi |= 1 << idx
		return
	}

	if gen >= target.GFX8 && byteOff == 2 {
		switch instr.Opcode {
		case ir.DSWriteB8:
			instr.Opcode = ir.DSWriteB8D16Hi
			return
		case ir.DSWriteB16:
			instr.Opcode = ir.DSWriteB16D16Hi
			return
		}
	}
	if gen >= target.GFX9 && byteOff == 2 {
		if hi, ok := d16HiStores[instr.Opcode]; ok {
			instr.Opcode = hi
			return
		}
		panic("regalloc: impossible sub-dword operand assignment")
	}
}

// subdwordDefinitionInfo returns the placement stride in bytes and the
// number of bytes the instruction actually writes, which may exceed the
// definition's class on generations that clobber the whole dword.
func subdwordDefinitionInfo(prog *ir.Program, instr *ir.Instruction, rc ir.RegClass) (stride, bytesWritten int) {
	gen := prog.Chip.Gen

	if instr.IsPseudo() {
		if gen >= target.GFX8 {
			if rc.Bytes()%2 == 0 {
				return 2, rc.Bytes()
			}
			return 1, rc.Bytes()
		}
		return 4, rc.Size() * 4
	}

	bytesWritten = 4
	if gen >= target.GFX10 {
		bytesWritten = rc.Bytes()
	}
	switch instr.Opcode {
	case ir.VMadF16, ir.VMadU16, ir.VMadI16, ir.VFmaF16, ir.VDivFixupF16, ir.VInterpP2F16:
		if gen >= target.GFX9 {
			bytesWritten = rc.Bytes()
		} else {
			bytesWritten = 4
		}
	}
	if bytesWritten > 4 {
		bytesWritten = alignUp(bytesWritten, 4)
	}
	bytesWritten = maxInt(bytesWritten, definitionBits(instr.Opcode)/8)

	if canUseSDWA(gen, instr) {
		return rc.Bytes(), rc.Bytes()
	}
	if rc.Bytes() == 2 && canUseOpsel(gen, instr.Opcode, -1, 1) {
		return 2, bytesWritten
	}

	if d16Loads[instr.Opcode] {
		if gen >= target.GFX9 && !prog.Chip.SRAMECC {
			return 2, 2
		}
		return 2, 4
	}
	if instr.Opcode == ir.VFmaMixloF16 {
		return 2, 2
	}

	return 4, bytesWritten
}

// addSubdwordDefinition rewrites the instruction so it writes the
// definition at the given register position.
func addSubdwordDefinition(prog *ir.Program, instr *ir.Instruction, idx int, reg ir.PhysReg) {
	rc := instr.Definitions[idx].RegClass()
	gen := prog.Chip.Gen

	if instr.IsPseudo() {
		return
	}
	if canUseSDWA(gen, instr) {
		if reg.Byte() != 0 || gen < target.GFX10 || definitionBits(instr.Opcode) > rc.Bytes()*8 {
			convertToSDWA(instr)
		}
		return
	}
	if reg.Byte() != 0 && rc.Bytes() == 2 && canUseOpsel(gen, instr.Opcode, -1, reg.Byte()/2) {
		if reg.Byte() == 2 {
			instr.Opsel |= 1 << 3 // destination in high half
		}
		return
	}

	if reg.Byte() == 2 {
		if instr.Opcode == ir.VFmaMixloF16 {
			instr.Opcode = ir.VFmaMixhiF16
			return
		}
		if hi, ok := d16HiLoads[instr.Opcode]; ok {
			instr.Opcode = hi
			return
		}
		panic("regalloc: impossible sub-dword definition assignment")
	}
}
