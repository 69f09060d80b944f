package models

// NumZernikeModes is the number of aberration modes carried by an
// AberrationVector. The three lowest-order modes (tip, tilt, defocus) are
// handled by the centering and focus paths and are not part of the vector.
const NumZernikeModes = 11

// AberrationVector holds the weights of the higher-order Zernike modes that
// describe a wavefront aberration. It is always assigned wholesale, never
// updated element by element.
type AberrationVector [NumZernikeModes]float64

// Slice returns the vector as a []float64 copy for numeric routines.
func (a AberrationVector) Slice() []float64 {
	out := make([]float64, NumZernikeModes)
	copy(out, a[:])
	return out
}

// Sub returns the component-wise difference a - b, the residual left after
// applying b as a correction.
func (a AberrationVector) Sub(b AberrationVector) AberrationVector {
	var out AberrationVector
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// IsZero reports whether every mode weight is exactly zero.
func (a AberrationVector) IsZero() bool {
	for _, w := range a {
		if w != 0 {
			return false
		}
	}
	return true
}

// PhaseMaskOffset is the lateral (x, y) shift applied when cropping the
// synthesized phase mask. Sub-pixel values are meaningful.
type PhaseMaskOffset [2]float64

// OffsetMode selects which axis group a stage offset addresses.
// Fine addresses the galvo scanner, Coarse the mechanical stage.
type OffsetMode int

const (
	Fine OffsetMode = iota
	Coarse
)

// String returns the mode name used in configuration parameter paths.
func (m OffsetMode) String() string {
	switch m {
	case Fine:
		return "fine"
	case Coarse:
		return "coarse"
	default:
		return "unknown"
	}
}

// StageOffset is a physical (x, y, z) offset for one axis group.
type StageOffset [3]float64

// Sub returns the component-wise difference s - d.
func (s StageOffset) Sub(d StageOffset) StageOffset {
	return StageOffset{s[0] - d[0], s[1] - d[1], s[2] - d[2]}
}

// Plane identifies one of the three orthogonal cross sections of the
// focal volume.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

// String returns the conventional short name of the plane.
func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "xy"
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	default:
		return "unknown"
	}
}

// PSFVolume holds the three orthogonal cross sections of an acquired or
// simulated point-spread function. Each plane is a row-major square image at
// the working resolution, independently preprocessed. A volume is produced
// fresh on every acquisition and owned exclusively by its caller.
type PSFVolume struct {
	// Planes holds the xy, xz and yz cross sections, in that order.
	Planes [3][]float64

	// Res is the side length of each plane in pixels.
	Res int
}

// NewPSFVolume allocates a volume with three zeroed planes at resolution res.
func NewPSFVolume(res int) *PSFVolume {
	v := &PSFVolume{Res: res}
	for i := range v.Planes {
		v.Planes[i] = make([]float64, res*res)
	}
	return v
}

// Primary returns the xy plane, the plane used for statistics and for
// single-plane acquisition.
func (v *PSFVolume) Primary() []float64 {
	return v.Planes[PlaneXY]
}

// Stacked returns the three planes concatenated along a leading axis as one
// contiguous array, the layout fed to multi-channel models.
func (v *PSFVolume) Stacked() []float64 {
	n := v.Res * v.Res
	out := make([]float64, 3*n)
	for i, p := range v.Planes {
		copy(out[i*n:(i+1)*n], p)
	}
	return out
}

// AcquireStats holds the [max, min, standard deviation] statistics computed
// over the primary plane of an acquisition.
type AcquireStats struct {
	Max    float64
	Min    float64
	StdDev float64
}

// InferenceResult is one decoded model prediction together with the
// correlation score of its reconstructed PSF against the observed image.
// The best result of a session is the one with the maximum score.
type InferenceResult struct {
	// Coefficients are the predicted Zernike mode weights.
	Coefficients AberrationVector

	// Offset is the predicted sub-pixel (x, y) displacement.
	Offset [2]float64

	// Score is the normalized correlation between the PSF reconstructed
	// from this candidate and the observed image.
	Score float64
}
