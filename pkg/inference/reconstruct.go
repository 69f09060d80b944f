package inference

import (
	"fmt"

	"stedalign/internal/models"
	"stedalign/pkg/microscope"
)

// PSFReconstructor scores prediction candidates by synthesizing the PSF
// they imply through a simulated optical bench. It is the in-module
// implementation of the Reconstructor collaborator.
type PSFReconstructor struct {
	sim *microscope.Simulated
}

// NewPSFReconstructor wraps a simulated backend for candidate scoring. The
// backend should be dedicated to scoring; Reconstruct overwrites its last
// acquisition state.
func NewPSFReconstructor(sim *microscope.Simulated) (*PSFReconstructor, error) {
	if sim == nil {
		return nil, fmt.Errorf("nil simulated backend")
	}
	return &PSFReconstructor{sim: sim}, nil
}

// Reconstruct synthesizes the PSF the candidate coefficients and offset
// would produce, in the layout the model consumed.
func (r *PSFReconstructor) Reconstruct(coeffs models.AberrationVector, offset [2]float64, multi bool) ([]float64, error) {
	acq, err := r.sim.AcquireImage(multi, models.PhaseMaskOffset(offset), coeffs)
	if err != nil {
		return nil, fmt.Errorf("reconstruction acquisition failed: %v", err)
	}
	return acq.Image, nil
}
