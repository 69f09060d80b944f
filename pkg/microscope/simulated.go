package microscope

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"stedalign/internal/models"
	"stedalign/pkg/config"
	"stedalign/pkg/diffraction"
	"stedalign/pkg/imaging"
	"stedalign/pkg/phasemask"
	"stedalign/pkg/visualization"
)

// Simulated acquires PSF images by synthesizing a phase mask and running it
// through the diffraction evaluator, for testing and for running the loop
// when no microscope is available. It retains the last simulated volume and
// the masks that produced it for diagnostics.
type Simulated struct {
	opt config.OpticalParams
	num config.NumericalParams
	pol [3]complex128

	eval    *diffraction.Evaluator
	offsets *OffsetStore

	lastVolume *models.PSFVolume
	lastMask   *mat.Dense
	lastZerns  *mat.Dense
}

// NewSimulated builds a simulated backend and runs one zero-aberration
// acquisition so diagnostics are populated from the start.
func NewSimulated(opt config.OpticalParams, num config.NumericalParams) (*Simulated, error) {
	if num.InputRes <= 0 || num.WorkingRes <= 0 {
		return nil, fmt.Errorf("non-positive resolution in numerical parameters")
	}
	if len(num.Orders) < 3+models.NumZernikeModes {
		return nil, fmt.Errorf("need %d Zernike orders, got %d", 3+models.NumZernikeModes, len(num.Orders))
	}

	s := &Simulated{
		opt:     opt,
		num:     num,
		pol:     diffraction.LeftCircular,
		eval:    diffraction.NewEvaluator(opt, num),
		offsets: NewOffsetStore(),
	}

	if _, err := s.calcData(models.PhaseMaskOffset{}, models.AberrationVector{}); err != nil {
		return nil, fmt.Errorf("initial simulation failed: %w", err)
	}
	return s, nil
}

// calcData simulates one acquisition: vortex plus weighted Zernike sum at
// twice the target resolution, cropped with the requested sub-pixel offset,
// evaluated through the diffraction code, each plane preprocessed to the
// working resolution.
func (s *Simulated) calcData(maskOffset models.PhaseMaskOffset, aberrs models.AberrationVector) (*models.PSFVolume, error) {
	lpScale := diffraction.CalcPeakScale(s.opt.LaserPower, s.opt.RepRate, s.opt.PulseLength)
	size := s.num.InputRes

	vortex := phasemask.CreateDonut(2*size, 0, 1, 2)

	// Tip, tilt and defocus are handled by the centering and focus paths;
	// only the higher orders enter the aberration mask.
	zerns, err := phasemask.ZernSum(2*size, aberrs.Slice(), s.num.Orders[3:3+models.NumZernikeModes], 2)
	if err != nil {
		return nil, fmt.Errorf("aberration synthesis failed: %v", err)
	}

	combined, err := phasemask.AddMasks([]*mat.Dense{vortex, zerns})
	if err != nil {
		return nil, fmt.Errorf("mask combination failed: %v", err)
	}

	mask, err := phasemask.Crop(combined, size, [2]float64(maskOffset))
	if err != nil {
		return nil, fmt.Errorf("mask crop failed: %v", err)
	}

	amp := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			amp.Set(i, j, 1)
		}
	}

	out, err := s.eval.Evaluate(s.pol, mask, amp, lpScale, "all", s.opt.ScanOffset)
	if err != nil {
		return nil, fmt.Errorf("diffraction evaluation failed: %v", err)
	}

	vol := models.NewPSFVolume(s.num.WorkingRes)
	for plane, raw := range map[models.Plane][]float64{
		models.PlaneXY: out.XY,
		models.PlaneXZ: out.XZ,
		models.PlaneYZ: out.YZ,
	} {
		p, err := imaging.Preprocess(raw, out.Res, out.Res, s.num.WorkingRes)
		if err != nil {
			return nil, fmt.Errorf("preprocessing %s plane failed: %v", plane, err)
		}
		vol.Planes[plane] = p
	}

	s.lastVolume = vol
	s.lastMask = mask
	s.lastZerns = zerns
	return vol, nil
}

// StageOffsets returns the stored offset for the mode. The simulated bench
// always has a session, so this never fails.
func (s *Simulated) StageOffsets(mode models.OffsetMode) (models.StageOffset, error) {
	return s.offsets.Get(mode), nil
}

// SetStageOffsets overwrites the stored offset for the mode.
func (s *Simulated) SetStageOffsets(offset models.StageOffset, mode models.OffsetMode) error {
	s.offsets.Set(offset, mode)
	return nil
}

// AcquireImage simulates an acquisition with the given mask offset and
// aberrations. Stats are computed over the preprocessed primary plane.
func (s *Simulated) AcquireImage(multi bool, maskOffset models.PhaseMaskOffset, aberrs models.AberrationVector) (*Acquisition, error) {
	fmt.Printf("acquiring with mask offset %v, aberrations %v\n", maskOffset, aberrs)

	vol, err := s.calcData(maskOffset, aberrs)
	if err != nil {
		return nil, err
	}

	acq := &Acquisition{
		Multi: multi,
		Res:   vol.Res,
		Stats: imaging.Stats(vol.Primary()),
	}
	if multi {
		acq.Image = vol.Stacked()
	} else {
		acq.Image = append([]float64(nil), vol.Primary()...)
	}
	return acq, nil
}

// SaveImage writes the planes of the last simulated volume and a heat-map
// panel of the volume and its masks into the directory at path.
func (s *Simulated) SaveImage(path string) error {
	if s.lastVolume == nil {
		return fmt.Errorf("nothing acquired yet")
	}
	if err := visualization.SaveVolume(s.lastVolume, path); err != nil {
		return fmt.Errorf("saving volume slices: %v", err)
	}
	if err := visualization.RenderPanel(path, s.lastVolume, s.lastMask, s.lastZerns); err != nil {
		return fmt.Errorf("rendering diagnostic panel: %v", err)
	}
	return nil
}

// LastVolume returns the most recently simulated volume, or nil before the
// first acquisition.
func (s *Simulated) LastVolume() *models.PSFVolume {
	return s.lastVolume
}

// LastMask returns the phase mask of the most recent simulation.
func (s *Simulated) LastMask() *mat.Dense {
	return s.lastMask
}

// LastZerns returns the aberration mask of the most recent simulation.
func (s *Simulated) LastZerns() *mat.Dense {
	return s.lastZerns
}

// CorrectTipTilt estimates the residual tip and tilt from the last primary
// plane, in physical units.
func (s *Simulated) CorrectTipTilt() (tip, tilt float64) {
	if s.lastVolume == nil {
		return 0, 0
	}
	return imaging.CalcTipTilt(s.lastVolume.Primary(), s.lastVolume.Res, s.opt.PixelSize)
}

// CorrectDefocus estimates the residual defocus from the axial asymmetry of
// the last xz and yz planes, in pixels.
func (s *Simulated) CorrectDefocus() float64 {
	if s.lastVolume == nil {
		return 0
	}
	return imaging.CalcDefocus(
		s.lastVolume.Planes[models.PlaneXZ],
		s.lastVolume.Planes[models.PlaneYZ],
		s.lastVolume.Res,
	)
}
