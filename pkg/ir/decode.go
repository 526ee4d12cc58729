// YAML front end for the IR. Upstream stages normally hand the allocator an
// in-memory Program; the CLI and the fixture tests build one from a compact
// YAML description instead.
package ir

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaderlab/gsc/pkg/target"
)

type programSpec struct {
	Demand struct {
		VGPR int `yaml:"vgpr"`
		SGPR int `yaml:"sgpr"`
	} `yaml:"demand"`
	Temps  []tempSpec  `yaml:"temps"`
	Blocks []blockSpec `yaml:"blocks"`
}

type tempSpec struct {
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
}

type blockSpec struct {
	LogicalPreds []int       `yaml:"logical_preds"`
	LogicalSuccs []int       `yaml:"logical_succs"`
	LinearPreds  []int       `yaml:"linear_preds"`
	LinearSuccs  []int       `yaml:"linear_succs"`
	Instructions []instrSpec `yaml:"instructions"`
}

type instrSpec struct {
	Op   string   `yaml:"op"`
	Defs []string `yaml:"defs"`
	Ops  []string `yaml:"ops"`
}

// DecodeProgram parses a YAML program description into an IR program.
func DecodeProgram(data []byte, chip target.Chip) (*Program, error) {
	var spec programSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}

	prog := NewProgram(chip)
	prog.MaxRegDemand = RegisterDemand{VGPR: spec.Demand.VGPR, SGPR: spec.Demand.SGPR}

	temps := make(map[string]Temp, len(spec.Temps))
	for _, ts := range spec.Temps {
		rc, err := parseClass(ts.Class)
		if err != nil {
			return nil, fmt.Errorf("temp %q: %w", ts.Name, err)
		}
		temps[ts.Name] = prog.AllocateTemp(rc)
	}

	for _, bs := range spec.Blocks {
		b := prog.NewBlock()
		b.LogicalPreds = bs.LogicalPreds
		b.LogicalSuccs = bs.LogicalSuccs
		b.LinearPreds = bs.LinearPreds
		b.LinearSuccs = bs.LinearSuccs
		for _, is := range bs.Instructions {
			instr, err := parseInstr(is, temps)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", b.Index, err)
			}
			b.Instructions = append(b.Instructions, instr)
		}
	}
	return prog, nil
}

func parseInstr(is instrSpec, temps map[string]Temp) (*Instruction, error) {
	op, ok := OpcodeByName(is.Op)
	if !ok {
		return nil, fmt.Errorf("unknown opcode %q", is.Op)
	}
	instr := NewInstruction(op, formatOf(op), len(is.Ops), len(is.Defs))
	for i, ds := range is.Defs {
		def, err := parseDef(ds, temps)
		if err != nil {
			return nil, err
		}
		instr.Definitions[i] = def
	}
	for i, os := range is.Ops {
		operand, err := parseOperand(os, temps)
		if err != nil {
			return nil, err
		}
		instr.Operands[i] = operand
	}
	return instr, nil
}

// parseOperand accepts a temp name, "name@reg" for a pre-bound read,
// "c:N" for a constant and "undef".
func parseOperand(s string, temps map[string]Temp) (Operand, error) {
	if s == "undef" {
		return UndefOperand(V1), nil
	}
	if rest, ok := strings.CutPrefix(s, "undef:"); ok {
		rc, err := parseClass(rest)
		if err != nil {
			return Operand{}, err
		}
		return UndefOperand(rc), nil
	}
	if rest, ok := strings.CutPrefix(s, "c:"); ok {
		v, err := strconv.ParseInt(rest, 0, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("constant %q: %w", s, err)
		}
		return ConstOperand(uint64(v)), nil
	}
	name, regStr, fixed := strings.Cut(s, "@")
	t, ok := temps[name]
	if !ok {
		return Operand{}, fmt.Errorf("unknown temp %q", name)
	}
	op := TempOperand(t)
	if fixed {
		reg, err := parseReg(regStr)
		if err != nil {
			return Operand{}, err
		}
		op.SetFixed(reg)
	}
	return op, nil
}

func parseDef(s string, temps map[string]Temp) (Definition, error) {
	name, regStr, fixed := strings.Cut(s, "@")
	t, ok := temps[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown temp %q", name)
	}
	if fixed {
		reg, err := parseReg(regStr)
		if err != nil {
			return Definition{}, err
		}
		return FixedDef(t, reg), nil
	}
	return TempDef(t), nil
}

// parseClass accepts s<N>/v<N> unit classes, v<N>b sub-dword classes and
// lv<N> linear vector classes.
func parseClass(s string) (RegClass, error) {
	switch {
	case strings.HasPrefix(s, "lv"):
		n, err := strconv.Atoi(s[2:])
		if err != nil {
			return RegClass{}, fmt.Errorf("bad class %q", s)
		}
		return LinearVClass(n), nil
	case strings.HasPrefix(s, "v") && strings.HasSuffix(s, "b"):
		n, err := strconv.Atoi(s[1 : len(s)-1])
		if err != nil {
			return RegClass{}, fmt.Errorf("bad class %q", s)
		}
		return SubdwordClass(n), nil
	case strings.HasPrefix(s, "v"):
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return RegClass{}, fmt.Errorf("bad class %q", s)
		}
		return VClass(n), nil
	case strings.HasPrefix(s, "s"):
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return RegClass{}, fmt.Errorf("bad class %q", s)
		}
		return SClass(n), nil
	}
	return RegClass{}, fmt.Errorf("bad class %q", s)
}

func parseReg(s string) (PhysReg, error) {
	switch s {
	case "vcc":
		return VCC, nil
	case "exec":
		return Exec, nil
	case "m0":
		return M0, nil
	case "scc":
		return SCC, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("bad register %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, fmt.Errorf("bad register %q", s)
	}
	switch s[0] {
	case 's':
		return Reg(uint32(n)), nil
	case 'v':
		return Reg(uint32(n + FirstVGPR)), nil
	}
	return 0, fmt.Errorf("bad register %q", s)
}

// formatOf maps an opcode to its natural encoding.
func formatOf(op Opcode) Format {
	switch op {
	case PParallelcopy, PPhi, PLinearPhi, PCreateVector, PSplitVector,
		PExtractVector, PAsUniform, PWQM, PLogicalStart, PLogicalEnd:
		return FmtPseudo
	case SMovB32:
		return FmtSOP1
	case SAddU32:
		return FmtSOP2
	case SAddkI32, SMulkI32:
		return FmtSOPK
	case SCmpEqU32:
		return FmtSOPC
	case SEndpgm, SBranch:
		return FmtSOPP
	case SLoadDword:
		return FmtSMEM
	case VMovB32, VCvtF32Ubyte0, VCvtF32Ubyte1, VCvtF32Ubyte2, VCvtF32Ubyte3:
		return FmtVOP1
	case VAddF32, VMulF32, VMacF32, VFmacF32, VMacF16, VFmacF16,
		VAddCoU32, VAddcCoU32, VSubCoU32, VSubbCoU32, VSubrevCoU32,
		VSubbrevCoU32, VCndmaskB32, VWritelaneB32:
		return FmtVOP2
	case VMadF32, VFmaF32, VMadF16, VMadLegacyF16, VFmaF16, VMadU16,
		VMadI16, VDivFixupF16, VWritelaneB32E64, VFmaMixloF16, VFmaMixhiF16:
		return FmtVOP3
	case VPkFmaF16, VPkFmacF16:
		return FmtVOP3P
	case VCmpLtF32:
		return FmtVOPC
	case VInterpP2F32, VInterpP2F16:
		return FmtVINTRP
	case DSWriteB8, DSWriteB8D16Hi, DSWriteB16, DSWriteB16D16Hi,
		DSReadU8D16, DSReadU8D16Hi, DSReadU16D16, DSReadU16D16Hi:
		return FmtDS
	case BufferLoadDword, BufferStoreByte, BufferStoreByteD16Hi,
		BufferStoreShort, BufferStoreShortD16Hi, BufferLoadUbyteD16,
		BufferLoadUbyteD16Hi, BufferLoadShortD16, BufferLoadShortD16Hi:
		return FmtMUBUF
	case FlatStoreByte, FlatStoreByteD16Hi, FlatStoreShort,
		FlatStoreShortD16Hi, FlatLoadUbyteD16, FlatLoadUbyteD16Hi,
		FlatLoadShortD16, FlatLoadShortD16Hi:
		return FmtFLAT
	case GlobalStoreByte, GlobalStoreByteD16Hi, GlobalStoreShort,
		GlobalStoreShortD16Hi, GlobalLoadUbyteD16, GlobalLoadUbyteD16Hi,
		GlobalLoadShortD16, GlobalLoadShortD16Hi:
		return FmtGLOBAL
	case ScratchStoreByte, ScratchStoreByteD16Hi, ScratchStoreShort,
		ScratchStoreShortD16Hi, ScratchLoadUbyteD16, ScratchLoadUbyteD16Hi,
		ScratchLoadShortD16, ScratchLoadShortD16Hi:
		return FmtSCRATCH
	case ImageSample, ImageLoad:
		return FmtMIMG
	case Exp:
		return FmtEXP
	}
	return FmtPseudo
}

// FormatOf exposes the natural encoding of an opcode for IR builders.
func FormatOf(op Opcode) Format {
	return formatOf(op)
}
