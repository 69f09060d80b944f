// Package inference runs the aberration regression model against acquired
// PSF images and selects, out of several stochastic forward passes, the
// candidate whose forward-simulated PSF best explains the observation.
package inference

import (
	"errors"
	"fmt"
	"math"

	"stedalign/internal/models"
	"stedalign/pkg/config"
	"stedalign/pkg/imaging"
)

// ErrUnsupportedOutputWidth means a forward pass produced an output vector
// whose width matches none of the supported decoding schemes.
var ErrUnsupportedOutputWidth = errors.New("unsupported model output width")

// Model is one loaded regression model. Forward runs a single evaluation of
// the image, shaped channels x res x res, and returns the flat output
// vector. Implementations may be stochastic; the predictor never assumes
// determinism across calls.
type Model interface {
	Forward(input []float64, channels, res int) ([]float64, error)
}

// Reconstructor synthesizes the PSF a candidate prediction would produce,
// for scoring against the observed image. The returned data matches the
// layout Forward consumed: one plane, or the 3-plane stack when multi.
type Reconstructor interface {
	Reconstruct(coeffs models.AberrationVector, offset [2]float64, multi bool) ([]float64, error)
}

// Decode splits one forward-pass output into coefficients and offset by its
// total width:
//
//	13 values: 11 Zernike coefficients followed by the 2 sub-pixel offsets
//	11 values: coefficients only, offset defaults to (0, 0)
//	 2 values: offsets only, coefficients default to the zero vector
//
// Any other width fails with ErrUnsupportedOutputWidth.
func Decode(output []float64) (models.AberrationVector, [2]float64, error) {
	var coeffs models.AberrationVector
	var offset [2]float64

	switch len(output) {
	case models.NumZernikeModes + 2:
		copy(coeffs[:], output[:models.NumZernikeModes])
		offset[0] = output[models.NumZernikeModes]
		offset[1] = output[models.NumZernikeModes+1]
	case models.NumZernikeModes:
		copy(coeffs[:], output)
	case 2:
		offset[0] = output[0]
		offset[1] = output[1]
	default:
		return coeffs, offset, fmt.Errorf("%w: got %d values", ErrUnsupportedOutputWidth, len(output))
	}
	return coeffs, offset, nil
}

// Predict runs the model samples times against the image and returns the
// best candidate. With samples == 1 the single decoded candidate is
// returned untouched, with no reconstruction or scoring. With samples > 1
// each candidate is scored by the correlation between its reconstructed PSF
// and the image, folding over the candidates with an explicit best-so-far
// accumulator; a candidate whose reconstruction or scoring fails takes the
// worst possible score and never aborts the remaining samples. Ties keep
// the earliest candidate.
//
// The image layout must match the descriptor: res x res for single-channel
// models, the 3-plane stack for multi-channel ones. Model failures and
// undecodable output widths are fatal to the whole call.
func Predict(model Model, desc config.ModelDescriptor, image []float64, samples int, recon Reconstructor) (models.InferenceResult, error) {
	if model == nil {
		return models.InferenceResult{}, fmt.Errorf("nil model")
	}
	if samples < 1 {
		samples = 1
	}

	channels := desc.InputChannels()
	res := desc.Resolution
	if len(image) != channels*res*res {
		return models.InferenceResult{}, fmt.Errorf("image length %d does not match %d channel(s) at %dx%d", len(image), channels, res, res)
	}
	if samples > 1 && recon == nil {
		return models.InferenceResult{}, fmt.Errorf("multi-sample prediction needs a reconstructor")
	}

	var best models.InferenceResult
	for i := 0; i < samples; i++ {
		output, err := model.Forward(image, channels, res)
		if err != nil {
			return models.InferenceResult{}, fmt.Errorf("forward pass %d failed: %v", i, err)
		}

		coeffs, offset, err := Decode(output)
		if err != nil {
			return models.InferenceResult{}, err
		}

		cand := models.InferenceResult{Coefficients: coeffs, Offset: offset}
		if samples == 1 {
			return cand, nil
		}

		cand.Score = scoreCandidate(cand, image, desc.MultiChannel, recon)
		if i == 0 || cand.Score > best.Score {
			best = cand
		}
	}
	return best, nil
}

// scoreCandidate reconstructs the candidate's expected PSF and correlates
// it against the observed image. Failures are localized: they are reported
// and score as negative infinity.
func scoreCandidate(cand models.InferenceResult, image []float64, multi bool, recon Reconstructor) float64 {
	expected, err := recon.Reconstruct(cand.Coefficients, cand.Offset, multi)
	if err != nil {
		fmt.Printf("sample reconstruction failed: %v\n", err)
		return math.Inf(-1)
	}

	score, err := imaging.Correlation(image, expected)
	if err != nil {
		fmt.Printf("sample correlation failed: %v\n", err)
		return math.Inf(-1)
	}
	return score
}
