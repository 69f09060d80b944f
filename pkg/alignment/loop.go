// Package alignment sequences one auto-alignment cycle: acquire a PSF,
// optionally center it on the detector, regress it onto aberration
// coefficients, apply the predicted correction and evaluate the result.
// This is the entry point external control logic (a GUI or an experiment
// script) drives; the package itself never retries a failed cycle and never
// terminates the process.
package alignment

import (
	"fmt"

	"stedalign/internal/models"
	"stedalign/pkg/config"
	"stedalign/pkg/imaging"
	"stedalign/pkg/inference"
	"stedalign/pkg/microscope"
)

// Options configures one cycle of the loop.
type Options struct {
	// Aberrations is the aberration state the cycle starts from. On the
	// simulated backend it shapes the acquired image; on hardware it is
	// owned by the modulator path.
	Aberrations models.AberrationVector

	// MaskOffset is the phase-mask crop offset the cycle starts from.
	MaskOffset models.PhaseMaskOffset

	// Center enables the single-shot centering correction between the
	// initial acquisition and the prediction.
	Center bool

	// Mode selects the axis group centering writes to.
	Mode models.OffsetMode

	// PixelSize converts centroid displacements to physical moves, in m.
	PixelSize float64

	// Samples is the number of stochastic forward passes the predictor
	// draws; values below 1 run a single pass.
	Samples int

	// Centering tunes the displacement bound of the centering step.
	Centering microscope.CenteringOptions
}

// Report summarizes one completed cycle.
type Report struct {
	// Initial and Corrected are the primary-plane statistics before and
	// after the predicted correction was applied.
	Initial   models.AcquireStats
	Corrected models.AcquireStats

	// Result is the selected prediction.
	Result models.InferenceResult

	// ScoreBefore and ScoreAfter correlate the observed image against the
	// unaberrated reference PSF before and after correction.
	ScoreBefore float64
	ScoreAfter  float64

	// Residual holds the aberration state after subtracting the
	// prediction, the state the corrected acquisition ran with.
	Residual models.AberrationVector

	// Tip, Tilt and Defocus are the low-order estimates from the corrected
	// acquisition, populated when the backend can provide them. Tip and
	// Tilt are in physical units, Defocus in pixels.
	Tip     float64
	Tilt    float64
	Defocus float64
}

// focusEstimator is the optional backend surface for low-order estimates.
// The simulated backend implements it; hardware backends typically do not.
type focusEstimator interface {
	CorrectTipTilt() (tip, tilt float64)
	CorrectDefocus() float64
}

// Loop binds a backend, a model and a reconstructor into a runnable
// alignment cycle.
type Loop struct {
	backend microscope.Backend
	model   inference.Model
	desc    config.ModelDescriptor
	recon   inference.Reconstructor
}

// NewLoop assembles a loop. The reconstructor is used both for multi-sample
// candidate scoring and for the reference correlation in the report.
func NewLoop(backend microscope.Backend, model inference.Model, desc config.ModelDescriptor, recon inference.Reconstructor) (*Loop, error) {
	if backend == nil {
		return nil, fmt.Errorf("nil backend")
	}
	if model == nil {
		return nil, fmt.Errorf("nil model")
	}
	if recon == nil {
		return nil, fmt.Errorf("nil reconstructor")
	}
	return &Loop{backend: backend, model: model, desc: desc, recon: recon}, nil
}

// Run executes one cycle: acquire, optionally center and re-acquire,
// predict, apply the correction, re-acquire and score. Any stage error
// terminates the cycle; deciding whether to retry is the caller's business.
func (l *Loop) Run(opts Options) (*Report, error) {
	multi := l.desc.MultiChannel
	report := &Report{}

	// Step 1: initial acquisition.
	fmt.Println("Step 1: Acquiring PSF...")
	acq, err := l.backend.AcquireImage(multi, opts.MaskOffset, opts.Aberrations)
	if err != nil {
		return nil, fmt.Errorf("initial acquisition failed: %w", err)
	}
	report.Initial = acq.Stats

	// Step 2: optional centering, then a fresh acquisition so the
	// prediction sees the centered PSF.
	if opts.Center {
		fmt.Println("Step 2: Centering PSF...")
		initial, err := l.backend.StageOffsets(opts.Mode)
		if err != nil {
			return nil, fmt.Errorf("reading offsets for centering: %w", err)
		}
		if err := microscope.CenterStageWithOptions(l.backend, acq.Volume(), initial, opts.PixelSize, opts.Mode, opts.Centering); err != nil {
			return nil, fmt.Errorf("centering failed: %w", err)
		}
		acq, err = l.backend.AcquireImage(multi, opts.MaskOffset, opts.Aberrations)
		if err != nil {
			return nil, fmt.Errorf("post-centering acquisition failed: %w", err)
		}
	}

	// Reference PSF for before/after scoring: the unaberrated donut.
	reference, err := l.recon.Reconstruct(models.AberrationVector{}, [2]float64{}, multi)
	if err != nil {
		return nil, fmt.Errorf("reference reconstruction failed: %w", err)
	}
	if score, err := imaging.Correlation(acq.Image, reference); err == nil {
		report.ScoreBefore = score
	}

	// Step 3: prediction with best-of-k selection.
	fmt.Printf("Step 3: Predicting aberrations (%d sample(s))...\n", maxInt(opts.Samples, 1))
	result, err := inference.Predict(l.model, l.desc, acq.Image, opts.Samples, l.recon)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	report.Result = result

	// Step 4: apply the correction and evaluate.
	fmt.Println("Step 4: Applying correction and re-acquiring...")
	report.Residual = opts.Aberrations.Sub(result.Coefficients)
	correctedOffset := models.PhaseMaskOffset{
		opts.MaskOffset[0] - result.Offset[0],
		opts.MaskOffset[1] - result.Offset[1],
	}
	corrected, err := l.backend.AcquireImage(multi, correctedOffset, report.Residual)
	if err != nil {
		return nil, fmt.Errorf("corrected acquisition failed: %w", err)
	}
	report.Corrected = corrected.Stats
	if score, err := imaging.Correlation(corrected.Image, reference); err == nil {
		report.ScoreAfter = score
	}
	if est, ok := l.backend.(focusEstimator); ok {
		report.Tip, report.Tilt = est.CorrectTipTilt()
		report.Defocus = est.CorrectDefocus()
	}

	fmt.Printf("Cycle complete: reference correlation %.3f -> %.3f\n", report.ScoreBefore, report.ScoreAfter)
	return report, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
