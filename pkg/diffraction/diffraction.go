// Package diffraction evaluates the focal intensity distribution produced by
// a phase-masked, polarized pupil. The evaluator propagates the pupil field
// to the focal region with an FFT-based angular-spectrum method and returns
// the three orthogonal cross sections (xy, xz, yz) of the focal volume that
// the acquisition and scoring paths consume.
package diffraction

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"stedalign/pkg/config"
)

// LeftCircular is the left-handed circular polarization state used for
// donut-forming depletion beams.
var LeftCircular = [3]complex128{
	complex(1/math.Sqrt2, 0),
	complex(0, 1/math.Sqrt2),
	0,
}

// Result holds the intensity cross sections of one focal-volume evaluation.
// Each plane is row-major with side length Res. XZ and YZ are nil when only
// the focal plane was requested.
type Result struct {
	XY  []float64
	XZ  []float64
	YZ  []float64
	Res int
}

// Evaluator propagates pupil fields for one fixed optical configuration.
type Evaluator struct {
	opt config.OpticalParams
	num config.NumericalParams
}

// NewEvaluator creates an evaluator for the given optical and numerical
// parameters. Both are read-only for the evaluator's lifetime.
func NewEvaluator(opt config.OpticalParams, num config.NumericalParams) *Evaluator {
	return &Evaluator{opt: opt, num: num}
}

// CalcPeakScale converts average laser power to the peak-power scale of a
// pulsed beam: average power spread over the duty cycle of the pulse train.
func CalcPeakScale(power, repRate, pulseLength float64) float64 {
	if repRate <= 0 || pulseLength <= 0 {
		return power
	}
	return power / (repRate * pulseLength)
}

// Evaluate propagates the pupil defined by the phase mask and amplitude
// under the given polarization and returns the focal intensity cross
// sections. plane selects "xy" for the focal plane only or "all" for the
// three orthogonal sections. offset shifts the evaluated field center, in
// pixels laterally and meters axially.
//
// The phase and amplitude grids must be square and equally sized; the
// returned planes share that size.
func (e *Evaluator) Evaluate(pol [3]complex128, phase, amplitude *mat.Dense, laserScale float64, plane string, offset [3]float64) (*Result, error) {
	pr, pc := phase.Dims()
	ar, ac := amplitude.Dims()
	if pr != pc {
		return nil, fmt.Errorf("phase mask must be square, got %dx%d", pr, pc)
	}
	if ar != pr || ac != pc {
		return nil, fmt.Errorf("amplitude size %dx%d does not match phase %dx%d", ar, ac, pr, pc)
	}
	if plane != "xy" && plane != "all" {
		return nil, fmt.Errorf("unknown plane selection %q", plane)
	}

	size := pr
	res := &Result{Res: size}

	// Focal plane, including any axial offset.
	xyField := e.focalField(pol, phase, amplitude, offset, offset[2])
	res.XY = intensity(xyField, size, laserScale)

	if plane == "all" {
		res.XZ = make([]float64, size*size)
		res.YZ = make([]float64, size*size)

		// March through focus; each z step is one row of the axial
		// sections. The central row/column of the lateral intensity
		// gives the xz and yz profiles at that depth.
		for zi := 0; zi < size; zi++ {
			z := e.axialPosition(zi, size) + offset[2]
			f := e.focalField(pol, phase, amplitude, offset, z)
			in := intensity(f, size, laserScale)

			mid := size / 2
			for k := 0; k < size; k++ {
				res.XZ[zi*size+k] = in[mid*size+k]
				res.YZ[zi*size+k] = in[k*size+mid]
			}
		}
	}

	return res, nil
}

// axialPosition maps a z-step index to a physical defocus in meters across
// the configured axial range.
func (e *Evaluator) axialPosition(zi, steps int) float64 {
	if steps <= 1 {
		return 0
	}
	frac := float64(zi)/float64(steps-1) - 0.5
	return 2 * e.num.AxialRange * frac
}

// focalField computes the complex focal field for one defocus position with
// an angular-spectrum propagation of the masked pupil. The polarization
// state is uniform across the pupil, so its components propagate with a
// shared scalar kernel and only the Jones-vector norm enters the field
// amplitude.
func (e *Evaluator) focalField(pol [3]complex128, phase, amplitude *mat.Dense, offset [3]float64, z float64) []complex128 {
	size, _ := phase.Dims()
	k := 2 * math.Pi / e.opt.Wavelength
	sinMax := e.opt.NA / e.opt.RefractiveIndex
	c := float64(size-1) / 2
	radius := float64(size) / 2

	polNorm := 0.0
	for _, p := range pol {
		polNorm += real(p)*real(p) + imag(p)*imag(p)
	}
	polAmp := math.Sqrt(polNorm)

	// Pupil field with aperture, apodization, defocus and lateral tilt.
	pupil := make([]complex128, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			dy := (float64(i) - c) / radius
			dx := (float64(j) - c) / radius
			rho := math.Hypot(dx, dy)
			if rho > 1 {
				continue
			}

			// Direction cosine of the converging ray for this
			// pupil position.
			sinT := rho * sinMax
			cosT := math.Sqrt(1 - sinT*sinT)

			// Aplanatic apodization.
			apod := math.Sqrt(cosT)

			ph := phase.At(i, j)
			// Defocus term of the angular spectrum.
			ph += k * z * e.opt.RefractiveIndex * cosT
			// Lateral shift as a pupil tilt, in output pixels.
			ph += 2 * math.Pi * (offset[0]*dx + offset[1]*dy) / 2

			pupil[i*size+j] = complex(amplitude.At(i, j)*apod*polAmp, 0) * cmplx.Exp(complex(0, ph))
		}
	}

	applyQuadrantShift(pupil, size)
	return fft2D(pupil, size)
}

// intensity converts a focal field to a scaled intensity image. The scale
// folds in the peak-power factor and the FFT normalization.
func intensity(field []complex128, size int, laserScale float64) []float64 {
	norm := laserScale / float64(size*size)
	out := make([]float64, size*size)
	for i, v := range field {
		re := real(v)
		im := imag(v)
		out[i] = (re*re + im*im) * norm
	}
	return out
}
