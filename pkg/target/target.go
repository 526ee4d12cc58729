// Package target models the hardware the shader is compiled for: the GPU
// generation, the addressable register-bank limits derived from the minimum
// wave occupancy, and the allocation granularity the final register counts
// must be rounded to.
package target

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Gen identifies a GPU hardware generation.
type Gen int

const (
	GFX6 Gen = 6
	GFX7 Gen = 7
	GFX8 Gen = 8
	GFX9 Gen = 9
	GFX10 Gen = 10
)

func (g Gen) String() string {
	return fmt.Sprintf("gfx%d", int(g))
}

// Chip describes a concrete target: its generation and the register-file
// parameters that bound allocation.
type Chip struct {
	Gen Gen `toml:"gen"`

	// Addressable registers per bank at minimum wave occupancy. These are
	// the hard ceilings register demand may be raised to.
	SGPRLimit int `toml:"sgpr_limit"`
	VGPRLimit int `toml:"vgpr_limit"`

	// Hardware allocates registers in blocks of this many units; the final
	// declared counts are rounded up accordingly.
	SGPRGranule int `toml:"sgpr_granule"`
	VGPRGranule int `toml:"vgpr_granule"`

	// SRAM ECC changes the bytes written by sub-dword d16 loads.
	SRAMECC bool `toml:"sram_ecc"`
}

// Default returns a GFX9-class chip, the generation most of the sub-dword
// packing rules are written against.
func Default() Chip {
	return Chip{
		Gen:         GFX9,
		SGPRLimit:   102,
		VGPRLimit:   256,
		SGPRGranule: 16,
		VGPRGranule: 4,
	}
}

// Load reads a chip description from a TOML file. Missing fields fall back
// to the defaults for the declared generation.
func Load(path string) (Chip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chip{}, err
	}
	chip := Default()
	if err := toml.Unmarshal(data, &chip); err != nil {
		return Chip{}, fmt.Errorf("target %s: %w", path, err)
	}
	if chip.Gen < GFX6 || chip.Gen > GFX10 {
		return Chip{}, fmt.Errorf("target %s: unsupported generation gfx%d", path, int(chip.Gen))
	}
	return chip, nil
}

// SGPRAlloc rounds a scalar register count up to the allocation granule.
func (c Chip) SGPRAlloc(n int) int {
	return alignUp(n, c.SGPRGranule)
}

// VGPRAlloc rounds a vector register count up to the allocation granule.
func (c Chip) VGPRAlloc(n int) int {
	return alignUp(n, c.VGPRGranule)
}

func alignUp(n, granule int) int {
	if granule <= 1 {
		return n
	}
	return (n + granule - 1) / granule * granule
}
