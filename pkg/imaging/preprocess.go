// Package imaging holds the image-domain helpers shared by the acquisition
// backends and the predictor: border cropping, resizing to the working
// resolution, standardization, centroid extraction and correlation scoring.
package imaging

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"stedalign/internal/models"
)

// borderFraction is the intensity fraction above the plane minimum that a
// pixel must reach to count as signal when trimming dark borders.
const borderFraction = 0.01

// Preprocess trims the dark border of a raw plane, resizes it to res x res
// and standardizes it to zero mean and unit variance. The input is row-major
// with the given dimensions; the output is a fresh array.
func Preprocess(raw []float64, width, height, res int) ([]float64, error) {
	if len(raw) != width*height {
		return nil, fmt.Errorf("plane length %d does not match %dx%d", len(raw), width, height)
	}
	if width == 0 || height == 0 || res == 0 {
		return nil, fmt.Errorf("empty plane or zero target resolution")
	}

	x0, y0, x1, y1 := signalBounds(raw, width, height)
	cropped, cw, ch := cropRect(raw, width, x0, y0, x1, y1)
	resized := Resize(cropped, cw, ch, res, res)
	Standardize(resized)
	return resized, nil
}

// signalBounds returns the inclusive-exclusive bounding box [x0,x1)x[y0,y1)
// of pixels that rise above the border threshold. A plane with no spread
// keeps its full extent.
func signalBounds(raw []float64, width, height int) (x0, y0, x1, y1 int) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range raw {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min {
		return 0, 0, width, height
	}
	thresh := min + borderFraction*(max-min)

	x0, y0 = width, height
	x1, y1 = 0, 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if raw[y*width+x] > thresh {
				if x < x0 {
					x0 = x
				}
				if y < y0 {
					y0 = y
				}
				if x+1 > x1 {
					x1 = x + 1
				}
				if y+1 > y1 {
					y1 = y + 1
				}
			}
		}
	}
	if x0 >= x1 || y0 >= y1 {
		return 0, 0, width, height
	}
	return x0, y0, x1, y1
}

// cropRect copies the [x0,x1)x[y0,y1) window of a row-major plane.
func cropRect(raw []float64, width, x0, y0, x1, y1 int) ([]float64, int, int) {
	cw := x1 - x0
	ch := y1 - y0
	out := make([]float64, cw*ch)
	for y := 0; y < ch; y++ {
		copy(out[y*cw:(y+1)*cw], raw[(y0+y)*width+x0:(y0+y)*width+x1])
	}
	return out, cw, ch
}

// Resize scales a row-major plane from srcW x srcH to dstW x dstH with
// bilinear interpolation.
func Resize(src []float64, srcW, srcH, dstW, dstH int) []float64 {
	out := make([]float64, dstW*dstH)
	if srcW == 0 || srcH == 0 {
		return out
	}

	xScale := float64(srcW-1) / float64(maxInt(dstW-1, 1))
	yScale := float64(srcH-1) / float64(maxInt(dstH-1, 1))

	for y := 0; y < dstH; y++ {
		sy := float64(y) * yScale
		y0 := int(sy)
		y1 := minInt(y0+1, srcH-1)
		fy := sy - float64(y0)

		for x := 0; x < dstW; x++ {
			sx := float64(x) * xScale
			x0 := int(sx)
			x1 := minInt(x0+1, srcW-1)
			fx := sx - float64(x0)

			top := src[y0*srcW+x0]*(1-fx) + src[y0*srcW+x1]*fx
			bot := src[y1*srcW+x0]*(1-fx) + src[y1*srcW+x1]*fx
			out[y*dstW+x] = top*(1-fy) + bot*fy
		}
	}
	return out
}

// Standardize rescales a plane in place to zero mean and unit standard
// deviation. A constant plane becomes all zeros.
func Standardize(plane []float64) {
	mean := stat.Mean(plane, nil)
	sd := stat.StdDev(plane, nil)
	if sd == 0 || math.IsNaN(sd) {
		for i := range plane {
			plane[i] = 0
		}
		return
	}
	for i := range plane {
		plane[i] = (plane[i] - mean) / sd
	}
}

// Stats computes the [max, min, standard deviation] statistics of a plane.
func Stats(plane []float64) models.AcquireStats {
	max, min := math.Inf(-1), math.Inf(1)
	for _, v := range plane {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return models.AcquireStats{
		Max:    max,
		Min:    min,
		StdDev: stat.StdDev(plane, nil),
	}
}

// Correlation returns the Pearson correlation coefficient between two
// equally sized planes.
func Correlation(observed, expected []float64) (float64, error) {
	if len(observed) != len(expected) {
		return 0, fmt.Errorf("plane length mismatch: %d vs %d", len(observed), len(expected))
	}
	if len(observed) == 0 {
		return 0, fmt.Errorf("empty planes")
	}
	r := stat.Correlation(observed, expected, nil)
	if math.IsNaN(r) {
		return 0, fmt.Errorf("correlation undefined for constant plane")
	}
	return r, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
