// Package ir defines the post-scheduling intermediate representation the
// register allocator operates on: virtual temporaries with register classes,
// instructions with operand/definition slots, and a control-flow graph of
// basic blocks with separate logical and linear edges.
// Values flow through SSA-like temporaries; allocation binds each one to a
// physical register in the scalar (SGPR) or vector (VGPR) bank.
package ir

import "fmt"

// RegType selects one of the two physical register banks.
type RegType uint8

const (
	SGPR RegType = iota
	VGPR
)

func (t RegType) String() string {
	if t == SGPR {
		return "s"
	}
	return "v"
}

// RegClass describes the storage requirement of a temporary: which bank it
// lives in, how many bytes it covers, whether it is tracked at byte
// granularity (sub-dword), and whether its live range follows linear
// control flow (control-mask state that must never be split).
type RegClass struct {
	Type     RegType
	NumBytes uint16
	Subdword bool
	Linear   bool
}

// Predefined whole-register classes.
var (
	S1  = SClass(1)
	S2  = SClass(2)
	S3  = SClass(3)
	S4  = SClass(4)
	S8  = SClass(8)
	S16 = SClass(16)

	V1 = VClass(1)
	V2 = VClass(2)
	V3 = VClass(3)
	V4 = VClass(4)

	V1B = SubdwordClass(1)
	V2B = SubdwordClass(2)
	V3B = SubdwordClass(3)
)

// SClass returns the scalar class of the given size in register units.
func SClass(dwords int) RegClass {
	return RegClass{Type: SGPR, NumBytes: uint16(dwords * 4)}
}

// VClass returns the vector class of the given size in register units.
func VClass(dwords int) RegClass {
	return RegClass{Type: VGPR, NumBytes: uint16(dwords * 4)}
}

// SubdwordClass returns a byte-granular vector class of the given width.
func SubdwordClass(bytes int) RegClass {
	return RegClass{Type: VGPR, NumBytes: uint16(bytes), Subdword: true}
}

// LinearVClass returns a vector class whose live range follows linear
// control flow and must stay in one place for the whole range.
func LinearVClass(dwords int) RegClass {
	return RegClass{Type: VGPR, NumBytes: uint16(dwords * 4), Linear: true}
}

// ClassFor builds the smallest class of the given bank covering the byte
// count: sub-dword when the count is not a whole number of units.
func ClassFor(t RegType, bytes int) RegClass {
	if bytes%4 != 0 {
		return RegClass{Type: t, NumBytes: uint16(bytes), Subdword: true}
	}
	return RegClass{Type: t, NumBytes: uint16(bytes)}
}

// Size is the width in whole register units, rounding sub-dword classes up.
func (rc RegClass) Size() int {
	return (int(rc.NumBytes) + 3) / 4
}

// Bytes is the exact byte width.
func (rc RegClass) Bytes() int {
	return int(rc.NumBytes)
}

func (rc RegClass) IsSubdword() bool {
	return rc.Subdword
}

// IsLinear reports whether values of this class must stay consistent along
// linear (hardware) control-flow edges. All scalar classes are linear.
func (rc RegClass) IsLinear() bool {
	return rc.Type == SGPR || rc.Linear
}

// IsLinearVGPR reports whether this is a vector class whose live range the
// allocator must never split or rename.
func (rc RegClass) IsLinearVGPR() bool {
	return rc.Type == VGPR && rc.Linear
}

func (rc RegClass) String() string {
	if rc.Subdword {
		return fmt.Sprintf("%s%db", rc.Type, rc.NumBytes)
	}
	if rc.Linear {
		return fmt.Sprintf("lin.%s%d", rc.Type, rc.Size())
	}
	return fmt.Sprintf("%s%d", rc.Type, rc.Size())
}

// PhysReg addresses the simulated register file at byte granularity.
// Unit 256 is the first vector register; scalar registers and the special
// scalar state live below it.
type PhysReg uint32

// Reg builds a register-unit-aligned physical register.
func Reg(unit uint32) PhysReg {
	return PhysReg(unit * 4)
}

// Special scalar registers, by hardware numbering.
var (
	VCC  = Reg(106)
	M0   = Reg(124)
	Exec = Reg(126)
	SCC  = Reg(253)
)

// FirstVGPR is the register unit where the vector bank starts.
const FirstVGPR = 256

// Unit is the register-unit index (byte offset discarded).
func (p PhysReg) Unit() uint32 {
	return uint32(p) / 4
}

// Byte is the offset within the register unit.
func (p PhysReg) Byte() uint32 {
	return uint32(p) % 4
}

// Advance moves the register by a signed number of bytes.
func (p PhysReg) Advance(bytes int) PhysReg {
	return PhysReg(int(p) + bytes)
}

func (p PhysReg) String() string {
	unit := p.Unit()
	bank := "s"
	if unit >= FirstVGPR {
		bank = "v"
		unit -= FirstVGPR
	}
	if p.Byte() != 0 {
		return fmt.Sprintf("%s%d.%d", bank, unit, p.Byte())
	}
	return fmt.Sprintf("%s%d", bank, unit)
}

// Temp is a virtual value: an id plus the register class it requires.
// The zero Temp (id 0) is the null value.
type Temp struct {
	ID uint32
	RC RegClass
}

func (t Temp) IsNull() bool {
	return t.ID == 0
}

func (t Temp) Type() RegType {
	return t.RC.Type
}

func (t Temp) Size() int {
	return t.RC.Size()
}

func (t Temp) Bytes() int {
	return t.RC.Bytes()
}

func (t Temp) String() string {
	return fmt.Sprintf("%%%d:%s", t.ID, t.RC)
}
