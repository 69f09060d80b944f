// Package phasemask synthesizes the phase patterns written onto the spatial
// light modulator: the helical vortex that shapes the depletion donut, the
// weighted Zernike sums that imprint aberration corrections, and the
// sub-pixel crop that positions the pattern on the modulator.
//
// Masks are dense matrices of phase values in radians. Synthesis happens at
// an oversampled resolution (typically twice the target) so a crop with a
// fractional offset keeps sub-pixel fidelity.
package phasemask

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// pupilRadius returns the pupil radius in pixels for a square grid of the
// given side length under the given radial scale. A grid synthesized at
// twice the target size with radscale 2 yields a pupil that exactly fills
// the cropped target.
func pupilRadius(size int, radscale float64) float64 {
	return float64(size) / (2 * radscale)
}

// CreateDonut synthesizes a helical ("vortex") phase ramp of the given
// topological charge on a size x size grid. rotation is a constant phase
// offset in radians added to the ramp. The returned phase is wrapped
// to [0, 2*pi).
func CreateDonut(size int, rotation float64, charge int, radscale float64) *mat.Dense {
	out := mat.NewDense(size, size, nil)
	c := float64(size-1) / 2

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			theta := math.Atan2(float64(i)-c, float64(j)-c)
			phase := math.Mod(float64(charge)*theta+rotation, 2*math.Pi)
			if phase < 0 {
				phase += 2 * math.Pi
			}
			if phase >= 2*math.Pi {
				phase = 0
			}
			out.Set(i, j, phase)
		}
	}
	return out
}

// ZernSum synthesizes the weighted sum of Zernike modes on a size x size
// grid. weights[i] pairs with orders[i]; the caller passes only the modes it
// wants in the sum (aberration synthesis passes orders 3 and beyond, keeping
// tip, tilt and defocus out). The pattern is zero outside the unit pupil.
func ZernSum(size int, weights []float64, orders [][2]int, radscale float64) (*mat.Dense, error) {
	if len(weights) != len(orders) {
		return nil, fmt.Errorf("weight/order length mismatch: %d weights, %d orders", len(weights), len(orders))
	}

	out := mat.NewDense(size, size, nil)
	c := float64(size-1) / 2
	radius := pupilRadius(size, radscale)

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			dy := float64(i) - c
			dx := float64(j) - c
			rho := math.Hypot(dx, dy) / radius
			if rho > 1 {
				continue
			}
			theta := math.Atan2(dy, dx)

			sum := 0.0
			for k, w := range weights {
				if w == 0 {
					continue
				}
				sum += w * Zernike(orders[k][0], orders[k][1], rho, theta)
			}
			out.Set(i, j, sum)
		}
	}
	return out, nil
}

// AddMasks sums a list of equally sized masks element-wise.
func AddMasks(masks []*mat.Dense) (*mat.Dense, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("no masks to add")
	}

	r, c := masks[0].Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(masks[0])

	for _, m := range masks[1:] {
		mr, mc := m.Dims()
		if mr != r || mc != c {
			return nil, fmt.Errorf("mask size mismatch: %dx%d vs %dx%d", mr, mc, r, c)
		}
		out.Add(out, m)
	}
	return out, nil
}

// Crop extracts a targetSize x targetSize window from the center of mask,
// shifted laterally by offset (x, y). Fractional offsets are resolved by
// bilinear sampling, so sub-pixel mask positioning survives the crop.
func Crop(mask *mat.Dense, targetSize int, offset [2]float64) (*mat.Dense, error) {
	srcR, srcC := mask.Dims()
	if targetSize > srcR || targetSize > srcC {
		return nil, fmt.Errorf("crop size %d exceeds source %dx%d", targetSize, srcR, srcC)
	}

	// Top-left corner of the crop window in source coordinates. The window
	// is centered on the source center plus the requested offset.
	y0 := float64(srcR-targetSize)/2 + offset[1]
	x0 := float64(srcC-targetSize)/2 + offset[0]

	out := mat.NewDense(targetSize, targetSize, nil)
	for i := 0; i < targetSize; i++ {
		for j := 0; j < targetSize; j++ {
			out.Set(i, j, sampleBilinear(mask, y0+float64(i), x0+float64(j)))
		}
	}
	return out, nil
}

// sampleBilinear samples mask at fractional coordinates (y, x), clamping to
// the grid edges.
func sampleBilinear(mask *mat.Dense, y, x float64) float64 {
	r, c := mask.Dims()

	clampF := func(v float64, hi int) float64 {
		if v < 0 {
			return 0
		}
		if v > float64(hi) {
			return float64(hi)
		}
		return v
	}
	y = clampF(y, r-1)
	x = clampF(x, c-1)

	y0 := int(math.Floor(y))
	x0 := int(math.Floor(x))
	y1 := y0 + 1
	x1 := x0 + 1
	if y1 > r-1 {
		y1 = r - 1
	}
	if x1 > c-1 {
		x1 = c - 1
	}

	fy := y - float64(y0)
	fx := x - float64(x0)

	top := mask.At(y0, x0)*(1-fx) + mask.At(y0, x1)*fx
	bot := mask.At(y1, x0)*(1-fx) + mask.At(y1, x1)*fx
	return top*(1-fy) + bot*fy
}
