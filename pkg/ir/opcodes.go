package ir

// Opcode identifies an operation. The p_-prefixed pseudo operations exist
// only between scheduling and emission; everything else corresponds to a
// hardware instruction.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// pseudo operations
	PParallelcopy
	PPhi
	PLinearPhi
	PCreateVector
	PSplitVector
	PExtractVector
	PAsUniform
	PWQM
	PLogicalStart
	PLogicalEnd

	// scalar ALU
	SMovB32
	SAddU32
	SAddkI32
	SMulkI32
	SCmpEqU32
	SEndpgm
	SBranch

	// vector ALU
	VMovB32
	VAddF32
	VMulF32
	VMadF32
	VMacF32
	VFmaF32
	VFmacF32
	VMadF16
	VMadLegacyF16
	VMacF16
	VFmaF16
	VFmacF16
	VPkFmaF16
	VPkFmacF16
	VMadU16
	VMadI16
	VDivFixupF16
	VInterpP2F32
	VInterpP2F16
	VWritelaneB32
	VWritelaneB32E64
	VCndmaskB32
	VAddCoU32
	VAddcCoU32
	VSubCoU32
	VSubbCoU32
	VSubrevCoU32
	VSubbrevCoU32
	VCmpLtF32
	VCvtF32Ubyte0
	VCvtF32Ubyte1
	VCvtF32Ubyte2
	VCvtF32Ubyte3
	VFmaMixloF16
	VFmaMixhiF16

	// scalar memory
	SLoadDword

	// local data share
	DSWriteB8
	DSWriteB8D16Hi
	DSWriteB16
	DSWriteB16D16Hi
	DSReadU8D16
	DSReadU8D16Hi
	DSReadU16D16
	DSReadU16D16Hi

	// buffer memory
	BufferLoadDword
	BufferStoreByte
	BufferStoreByteD16Hi
	BufferStoreShort
	BufferStoreShortD16Hi
	BufferLoadUbyteD16
	BufferLoadUbyteD16Hi
	BufferLoadShortD16
	BufferLoadShortD16Hi

	// flat-like memory
	FlatStoreByte
	FlatStoreByteD16Hi
	FlatStoreShort
	FlatStoreShortD16Hi
	FlatLoadUbyteD16
	FlatLoadUbyteD16Hi
	FlatLoadShortD16
	FlatLoadShortD16Hi
	GlobalStoreByte
	GlobalStoreByteD16Hi
	GlobalStoreShort
	GlobalStoreShortD16Hi
	GlobalLoadUbyteD16
	GlobalLoadUbyteD16Hi
	GlobalLoadShortD16
	GlobalLoadShortD16Hi
	ScratchStoreByte
	ScratchStoreByteD16Hi
	ScratchStoreShort
	ScratchStoreShortD16Hi
	ScratchLoadUbyteD16
	ScratchLoadUbyteD16Hi
	ScratchLoadShortD16
	ScratchLoadShortD16Hi

	// image memory
	ImageSample
	ImageLoad

	// export
	Exp

	numOpcodes
)

var opcodeNames = map[Opcode]string{
	PParallelcopy:  "p_parallelcopy",
	PPhi:           "p_phi",
	PLinearPhi:     "p_linear_phi",
	PCreateVector:  "p_create_vector",
	PSplitVector:   "p_split_vector",
	PExtractVector: "p_extract_vector",
	PAsUniform:     "p_as_uniform",
	PWQM:           "p_wqm",
	PLogicalStart:  "p_logical_start",
	PLogicalEnd:    "p_logical_end",

	SMovB32:   "s_mov_b32",
	SAddU32:   "s_add_u32",
	SAddkI32:  "s_addk_i32",
	SMulkI32:  "s_mulk_i32",
	SCmpEqU32: "s_cmp_eq_u32",
	SEndpgm:   "s_endpgm",
	SBranch:   "s_branch",

	VMovB32:          "v_mov_b32",
	VAddF32:          "v_add_f32",
	VMulF32:          "v_mul_f32",
	VMadF32:          "v_mad_f32",
	VMacF32:          "v_mac_f32",
	VFmaF32:          "v_fma_f32",
	VFmacF32:         "v_fmac_f32",
	VMadF16:          "v_mad_f16",
	VMadLegacyF16:    "v_mad_legacy_f16",
	VMacF16:          "v_mac_f16",
	VFmaF16:          "v_fma_f16",
	VFmacF16:         "v_fmac_f16",
	VPkFmaF16:        "v_pk_fma_f16",
	VPkFmacF16:       "v_pk_fmac_f16",
	VMadU16:          "v_mad_u16",
	VMadI16:          "v_mad_i16",
	VDivFixupF16:     "v_div_fixup_f16",
	VInterpP2F32:     "v_interp_p2_f32",
	VInterpP2F16:     "v_interp_p2_f16",
	VWritelaneB32:    "v_writelane_b32",
	VWritelaneB32E64: "v_writelane_b32_e64",
	VCndmaskB32:      "v_cndmask_b32",
	VAddCoU32:        "v_add_co_u32",
	VAddcCoU32:       "v_addc_co_u32",
	VSubCoU32:        "v_sub_co_u32",
	VSubbCoU32:       "v_subb_co_u32",
	VSubrevCoU32:     "v_subrev_co_u32",
	VSubbrevCoU32:    "v_subbrev_co_u32",
	VCmpLtF32:        "v_cmp_lt_f32",
	VCvtF32Ubyte0:    "v_cvt_f32_ubyte0",
	VCvtF32Ubyte1:    "v_cvt_f32_ubyte1",
	VCvtF32Ubyte2:    "v_cvt_f32_ubyte2",
	VCvtF32Ubyte3:    "v_cvt_f32_ubyte3",
	VFmaMixloF16:     "v_fma_mixlo_f16",
	VFmaMixhiF16:     "v_fma_mixhi_f16",

	SLoadDword: "s_load_dword",

	DSWriteB8:       "ds_write_b8",
	DSWriteB8D16Hi:  "ds_write_b8_d16_hi",
	DSWriteB16:      "ds_write_b16",
	DSWriteB16D16Hi: "ds_write_b16_d16_hi",
	DSReadU8D16:     "ds_read_u8_d16",
	DSReadU8D16Hi:   "ds_read_u8_d16_hi",
	DSReadU16D16:    "ds_read_u16_d16",
	DSReadU16D16Hi:  "ds_read_u16_d16_hi",

	BufferLoadDword:       "buffer_load_dword",
	BufferStoreByte:       "buffer_store_byte",
	BufferStoreByteD16Hi:  "buffer_store_byte_d16_hi",
	BufferStoreShort:      "buffer_store_short",
	BufferStoreShortD16Hi: "buffer_store_short_d16_hi",
	BufferLoadUbyteD16:    "buffer_load_ubyte_d16",
	BufferLoadUbyteD16Hi:  "buffer_load_ubyte_d16_hi",
	BufferLoadShortD16:    "buffer_load_short_d16",
	BufferLoadShortD16Hi:  "buffer_load_short_d16_hi",

	FlatStoreByte:          "flat_store_byte",
	FlatStoreByteD16Hi:     "flat_store_byte_d16_hi",
	FlatStoreShort:         "flat_store_short",
	FlatStoreShortD16Hi:    "flat_store_short_d16_hi",
	FlatLoadUbyteD16:       "flat_load_ubyte_d16",
	FlatLoadUbyteD16Hi:     "flat_load_ubyte_d16_hi",
	FlatLoadShortD16:       "flat_load_short_d16",
	FlatLoadShortD16Hi:     "flat_load_short_d16_hi",
	GlobalStoreByte:        "global_store_byte",
	GlobalStoreByteD16Hi:   "global_store_byte_d16_hi",
	GlobalStoreShort:       "global_store_short",
	GlobalStoreShortD16Hi:  "global_store_short_d16_hi",
	GlobalLoadUbyteD16:     "global_load_ubyte_d16",
	GlobalLoadUbyteD16Hi:   "global_load_ubyte_d16_hi",
	GlobalLoadShortD16:     "global_load_short_d16",
	GlobalLoadShortD16Hi:   "global_load_short_d16_hi",
	ScratchStoreByte:       "scratch_store_byte",
	ScratchStoreByteD16Hi:  "scratch_store_byte_d16_hi",
	ScratchStoreShort:      "scratch_store_short",
	ScratchStoreShortD16Hi: "scratch_store_short_d16_hi",
	ScratchLoadUbyteD16:    "scratch_load_ubyte_d16",
	ScratchLoadUbyteD16Hi:  "scratch_load_ubyte_d16_hi",
	ScratchLoadShortD16:    "scratch_load_short_d16",
	ScratchLoadShortD16Hi:  "scratch_load_short_d16_hi",

	ImageSample: "image_sample",
	ImageLoad:   "image_load",

	Exp: "exp",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "invalid"
}

// OpcodeByName resolves a textual opcode name; ok is false for unknown names.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}
