package ir

import "fmt"

// Operand is a read slot of an instruction: a temporary, an inline or
// literal constant, or undefined. Liveness flags record whether this read
// is the value's last on the current path (kill), and whether the value
// must stay readable while the instruction's definitions are written
// (late kill).
type Operand struct {
	temp     Temp
	isTemp   bool
	constVal uint64
	isConst  bool

	fixed bool
	reg   PhysReg

	kill      bool
	firstKill bool
	lateKill  bool
}

// TempOperand builds an operand reading the given temporary.
func TempOperand(t Temp) Operand {
	return Operand{temp: t, isTemp: true}
}

// ConstOperand builds a constant operand.
func ConstOperand(v uint64) Operand {
	return Operand{constVal: v, isConst: true}
}

// UndefOperand builds an undefined placeholder operand of the given class.
func UndefOperand(rc RegClass) Operand {
	return Operand{temp: Temp{RC: rc}}
}

func (o *Operand) IsTemp() bool        { return o.isTemp }
func (o *Operand) IsConstant() bool    { return o.isConst }
func (o *Operand) IsUndefined() bool   { return !o.isTemp && !o.isConst }
func (o *Operand) Temp() Temp          { return o.temp }
func (o *Operand) TempID() uint32      { return o.temp.ID }
func (o *Operand) RegClass() RegClass  { return o.temp.RC }
// Size and Bytes cover constants too: inline and literal constants occupy
// one register unit when materialized.
func (o *Operand) Size() int {
	if o.isConst {
		return 1
	}
	return o.temp.Size()
}

func (o *Operand) Bytes() int {
	if o.isConst {
		return 4
	}
	return o.temp.Bytes()
}
func (o *Operand) ConstantValue() uint64 { return o.constVal }

// IsLiteral reports whether the constant needs a literal dword rather than
// an inline encoding.
func (o *Operand) IsLiteral() bool {
	if !o.isConst {
		return false
	}
	v := int64(o.constVal)
	return v < -16 || v > 64
}

func (o *Operand) SetTemp(t Temp) {
	o.temp = t
	o.isTemp = true
	o.isConst = false
}

func (o *Operand) IsFixed() bool     { return o.fixed }
func (o *Operand) PhysReg() PhysReg  { return o.reg }

func (o *Operand) SetFixed(reg PhysReg) {
	o.fixed = true
	o.reg = reg
}

// Kill flags. A first kill is the first of possibly several reads of the
// same temporary on one instruction. KillBeforeDef excludes late kills,
// whose register must survive until after the definitions are written.
func (o *Operand) IsKill() bool      { return o.kill }
func (o *Operand) IsFirstKill() bool { return o.firstKill }
func (o *Operand) IsLateKill() bool  { return o.lateKill }

func (o *Operand) IsKillBeforeDef() bool {
	return o.kill && !o.lateKill
}

func (o *Operand) IsFirstKillBeforeDef() bool {
	return o.firstKill && !o.lateKill
}

func (o *Operand) SetKill(kill bool) {
	o.kill = kill
	if !kill {
		o.firstKill = false
	}
}

func (o *Operand) SetFirstKill(kill bool) {
	o.firstKill = kill
	if kill {
		o.kill = true
	}
}

func (o *Operand) SetLateKill(late bool) {
	o.lateKill = late
}

func (o *Operand) String() string {
	switch {
	case o.isTemp && o.fixed:
		return fmt.Sprintf("%s[%s]", o.temp, o.reg)
	case o.isTemp:
		return o.temp.String()
	case o.isConst:
		return fmt.Sprintf("0x%x", o.constVal)
	default:
		return "undef"
	}
}

// Definition is a write slot of an instruction. It may be pre-bound to a
// physical register (fixed) or carry a soft placement hint.
type Definition struct {
	temp   Temp
	isTemp bool

	fixed bool
	reg   PhysReg

	hinted  bool
	hintReg PhysReg

	kill bool
}

// TempDef builds a definition writing the given temporary.
func TempDef(t Temp) Definition {
	return Definition{temp: t, isTemp: true}
}

// FixedDef builds a definition already bound to a physical register.
func FixedDef(t Temp, reg PhysReg) Definition {
	return Definition{temp: t, isTemp: true, fixed: true, reg: reg}
}

// RegDef builds a placement-only definition: a register and class with no
// temporary yet. The temporary is filled in later with SetTemp.
func RegDef(reg PhysReg, rc RegClass) Definition {
	return Definition{temp: Temp{RC: rc}, fixed: true, reg: reg}
}

func (d *Definition) IsTemp() bool       { return d.isTemp }
func (d *Definition) Temp() Temp         { return d.temp }
func (d *Definition) TempID() uint32     { return d.temp.ID }
func (d *Definition) RegClass() RegClass { return d.temp.RC }
func (d *Definition) Size() int          { return d.temp.Size() }
func (d *Definition) Bytes() int         { return d.temp.Bytes() }

func (d *Definition) SetTemp(t Temp) {
	d.temp = t
	d.isTemp = true
}

func (d *Definition) IsFixed() bool    { return d.fixed }
func (d *Definition) PhysReg() PhysReg { return d.reg }

func (d *Definition) SetFixed(reg PhysReg) {
	d.fixed = true
	d.reg = reg
}

// Hints are soft: the allocator uses them only when the register is free.
func (d *Definition) HasHint() bool  { return d.hinted }
func (d *Definition) Hint() PhysReg  { return d.hintReg }

func (d *Definition) SetHint(reg PhysReg) {
	d.hinted = true
	d.hintReg = reg
}

// IsKill marks a definition whose value is never read.
func (d *Definition) IsKill() bool { return d.kill }

func (d *Definition) SetKill(kill bool) {
	d.kill = kill
}

func (d *Definition) String() string {
	if d.fixed {
		return fmt.Sprintf("%s[%s]", d.temp, d.reg)
	}
	return d.temp.String()
}
