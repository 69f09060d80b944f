package microscope

import (
	"fmt"

	"stedalign/internal/models"
	"stedalign/pkg/imaging"
)

// CenteringOptions tunes the single-shot centering correction.
type CenteringOptions struct {
	// MaxCorrection bounds the magnitude of one displacement component in
	// physical units. When a component exceeds the bound the correction is
	// skipped and the initial offset restored. Zero disables the bound.
	MaxCorrection float64
}

// CenterStage computes the center-of-mass displacement of the PSF in the
// volume from the geometric center, converts it to physical units via
// pixelSize, and moves the stored offset for the mode to cancel it. This is
// a single-shot correction; external callers iterate it to converge. The
// effect is only observable through subsequent StageOffsets calls.
func CenterStage(b Backend, v *models.PSFVolume, initial models.StageOffset, pixelSize float64, mode models.OffsetMode) error {
	return CenterStageWithOptions(b, v, initial, pixelSize, mode, CenteringOptions{})
}

// CenterStageWithOptions is CenterStage with an optional displacement bound.
func CenterStageWithOptions(b Backend, v *models.PSFVolume, initial models.StageOffset, pixelSize float64, mode models.OffsetMode, opts CenteringOptions) error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}

	com := imaging.CentersOfMass(v)
	var d models.StageOffset
	for i := range com {
		d[i] = com[i] * pixelSize
	}

	if opts.MaxCorrection > 0 {
		for i := range d {
			if d[i] > opts.MaxCorrection || d[i] < -opts.MaxCorrection {
				fmt.Printf("centering skipped, displacement %v exceeds bound %v\n", d, opts.MaxCorrection)
				return b.SetStageOffsets(initial, mode)
			}
		}
	}

	current, err := b.StageOffsets(mode)
	if err != nil {
		return fmt.Errorf("reading %s offsets: %w", mode, err)
	}

	return b.SetStageOffsets(current.Sub(d), mode)
}
