// Package microscope provides the acquisition core of the auto-alignment
// loop: one capability contract implemented by a simulated optical bench and
// by the real instrument, the per-mode stage/galvo offset store, and the
// single-shot PSF centering controller.
//
// Callers hold a Backend and never a concrete variant; the two variants
// differ only in how an image and offsets are obtained, never in what shape
// they take.
package microscope

import (
	"errors"
	"sync"

	"stedalign/internal/models"
)

// Typed failures of the acquisition contract. Both are reported to the
// caller and terminate the current attempt; neither is retried here.
var (
	// ErrConfigurationUnavailable means no active instrument session or
	// measurement configuration exists to serve the request.
	ErrConfigurationUnavailable = errors.New("no active measurement configuration")

	// ErrAcquisitionWindowNotFound means an expected measurement
	// configuration or capture channel name is missing on the instrument.
	ErrAcquisitionWindowNotFound = errors.New("acquisition window not found")
)

// Acquisition is the result of one AcquireImage call. The image is a single
// res x res plane, or the three planes stacked along a leading axis when the
// acquisition was multi-plane. Stats always describe the primary (xy) plane.
type Acquisition struct {
	Image []float64
	Multi bool
	Res   int
	Stats models.AcquireStats
}

// Volume reinterprets the acquisition as a PSFVolume. For a single-plane
// acquisition the axial planes stay zero, which downstream centroid code
// treats as no axial displacement.
func (a *Acquisition) Volume() *models.PSFVolume {
	v := models.NewPSFVolume(a.Res)
	n := a.Res * a.Res
	copy(v.Planes[models.PlaneXY], a.Image[:n])
	if a.Multi {
		copy(v.Planes[models.PlaneXZ], a.Image[n:2*n])
		copy(v.Planes[models.PlaneYZ], a.Image[2*n:3*n])
	}
	return v
}

// Backend is the capability set shared by the simulated and hardware
// acquisition paths.
type Backend interface {
	// StageOffsets returns the current offset stored for the requested
	// mode. The hardware variant fails with ErrConfigurationUnavailable
	// when no active session exists.
	StageOffsets(mode models.OffsetMode) (models.StageOffset, error)

	// SetStageOffsets overwrites the stored offset for that mode only.
	// Applying the same offset twice yields the same state.
	SetStageOffsets(offset models.StageOffset, mode models.OffsetMode) error

	// AcquireImage synthesizes or captures a PSF image for the given
	// phase-mask offset and aberration vector. multi selects the 3-plane
	// stack over the primary plane alone.
	AcquireImage(multi bool, maskOffset models.PhaseMaskOffset, aberrs models.AberrationVector) (*Acquisition, error)

	// SaveImage persists the most recent acquisition; the on-disk format
	// is backend specific.
	SaveImage(path string) error
}

// OffsetStore holds the stage/galvo offsets of one backend instance, keyed
// by mode. Writing one mode never touches the other's value. Access is
// serialized for safety, though the contract assumes a single writer.
type OffsetStore struct {
	mu      sync.Mutex
	offsets map[models.OffsetMode]models.StageOffset
}

// NewOffsetStore creates a store with zero offsets for both modes.
func NewOffsetStore() *OffsetStore {
	return &OffsetStore{
		offsets: map[models.OffsetMode]models.StageOffset{
			models.Fine:   {},
			models.Coarse: {},
		},
	}
}

// Get returns the offset stored for the mode.
func (s *OffsetStore) Get(mode models.OffsetMode) models.StageOffset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[mode]
}

// Set overwrites the offset stored for the mode.
func (s *OffsetStore) Set(offset models.StageOffset, mode models.OffsetMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[mode] = offset
}
