package phasemask

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestZernikeLowOrders checks known closed forms of the first modes
func TestZernikeLowOrders(t *testing.T) {
	tests := []struct {
		name       string
		n, m       int
		rho, theta float64
		want       float64
	}{
		{"piston", 0, 0, 0.5, 0.3, 1.0},
		{"tilt at theta=0", 1, 1, 0.7, 0, 0.7},
		{"tip at theta=pi/2", 1, -1, 0.7, math.Pi / 2, 0.7},
		{"defocus center", 2, 0, 0, 0, -1.0},
		{"defocus edge", 2, 0, 1, 0, 1.0},
		{"astigmatism axis", 2, 2, 1, 0, 1.0},
	}

	for _, tt := range tests {
		got := Zernike(tt.n, tt.m, tt.rho, tt.theta)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: Z(%d,%d)(%g,%g): expected %g, got %g", tt.name, tt.n, tt.m, tt.rho, tt.theta, tt.want, got)
		}
	}
}

// TestRadialParityRule verifies R is identically zero when n-m is odd
func TestRadialParityRule(t *testing.T) {
	for _, rho := range []float64{0.1, 0.5, 0.9} {
		if got := radialPolynomial(3, 2, rho); got != 0 {
			t.Errorf("R(3,2)(%g): expected 0 for odd n-m, got %g", rho, got)
		}
	}
}

// TestCreateDonutPhaseRange verifies the vortex phase is wrapped to [0, 2*pi)
func TestCreateDonutPhaseRange(t *testing.T) {
	size := 32
	donut := CreateDonut(size, 0, 1, 2)

	r, c := donut.Dims()
	if r != size || c != size {
		t.Fatalf("Expected %dx%d mask, got %dx%d", size, size, r, c)
	}

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			v := donut.At(i, j)
			if v < 0 || v >= 2*math.Pi {
				t.Fatalf("Phase at (%d,%d) out of range: %g", i, j, v)
			}
		}
	}
}

// TestCreateDonutCharge verifies the phase winds charge times around
// the center by checking two diametrically opposite points
func TestCreateDonutCharge(t *testing.T) {
	size := 64
	donut := CreateDonut(size, 0, 1, 2)
	c := (size - 1) / 2

	// For charge 1, right of center is phase 0, left of center is pi.
	circDist := func(a, b float64) float64 {
		d := math.Abs(a - b)
		return math.Min(d, 2*math.Pi-d)
	}

	right := donut.At(c, size-1)
	left := donut.At(c, 0)

	if circDist(right, 0) > 0.2 {
		t.Errorf("Expected phase ~0 right of center, got %g", right)
	}
	if circDist(left, math.Pi) > 0.2 {
		t.Errorf("Expected phase ~pi left of center, got %g", left)
	}
}

// TestZernSumZeroWeights verifies an all-zero weight vector yields a flat mask
func TestZernSumZeroWeights(t *testing.T) {
	orders := [][2]int{{2, -2}, {2, 2}, {3, -1}}
	mask, err := ZernSum(32, []float64{0, 0, 0}, orders, 2)
	if err != nil {
		t.Fatalf("ZernSum failed: %v", err)
	}

	r, c := mask.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if mask.At(i, j) != 0 {
				t.Fatalf("Expected flat mask, got %g at (%d,%d)", mask.At(i, j), i, j)
			}
		}
	}
}

// TestZernSumLengthMismatch verifies the weight/order check
func TestZernSumLengthMismatch(t *testing.T) {
	if _, err := ZernSum(16, []float64{1, 2}, [][2]int{{2, 0}}, 2); err == nil {
		t.Errorf("Expected error for mismatched weights and orders")
	}
}

// TestZernSumOutsidePupil verifies the pattern vanishes outside the unit pupil
func TestZernSumOutsidePupil(t *testing.T) {
	size := 64
	mask, err := ZernSum(size, []float64{1}, [][2]int{{4, 0}}, 2)
	if err != nil {
		t.Fatalf("ZernSum failed: %v", err)
	}

	// With radscale 2 the pupil radius is size/4, so the corner is far outside.
	if got := mask.At(0, 0); got != 0 {
		t.Errorf("Expected 0 outside pupil, got %g", got)
	}
}

// TestAddMasks verifies element-wise addition and the size check
func TestAddMasks(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{10, 20, 30, 40})

	sum, err := AddMasks([]*mat.Dense{a, b})
	if err != nil {
		t.Fatalf("AddMasks failed: %v", err)
	}
	if got := sum.At(1, 0); got != 33 {
		t.Errorf("Expected 33 at (1,0), got %g", got)
	}

	// The inputs must not be mutated
	if a.At(1, 0) != 3 {
		t.Errorf("AddMasks mutated its input")
	}

	c := mat.NewDense(3, 3, nil)
	if _, err := AddMasks([]*mat.Dense{a, c}); err == nil {
		t.Errorf("Expected error for mismatched mask sizes")
	}

	if _, err := AddMasks(nil); err == nil {
		t.Errorf("Expected error for empty mask list")
	}
}

// TestCropWindowCentering verifies the crop window is centered on the
// source center plus the requested offset; on a linear gradient bilinear
// sampling is exact
func TestCropWindowCentering(t *testing.T) {
	srcSize := 128
	dstSize := 64
	src := mat.NewDense(srcSize, srcSize, nil)
	for i := 0; i < srcSize; i++ {
		for j := 0; j < srcSize; j++ {
			src.Set(i, j, float64(j))
		}
	}

	offset := [2]float64{10, 5}
	out, err := Crop(src, dstSize, offset)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	r, c := out.Dims()
	if r != dstSize || c != dstSize {
		t.Fatalf("Expected %dx%d crop, got %dx%d", dstSize, dstSize, r, c)
	}

	// Top-left of the window sits at (srcSize-dstSize)/2 + offset.x = 42.
	wantFirst := float64((srcSize-dstSize)/2) + offset[0]
	if got := out.At(0, 0); math.Abs(got-wantFirst) > 1e-12 {
		t.Errorf("Expected first column value %g, got %g", wantFirst, got)
	}
	if got := out.At(dstSize-1, dstSize-1); math.Abs(got-(wantFirst+float64(dstSize-1))) > 1e-12 {
		t.Errorf("Expected last column value %g, got %g", wantFirst+float64(dstSize-1), got)
	}
}

// TestCropSubPixel verifies fractional offsets interpolate between columns
func TestCropSubPixel(t *testing.T) {
	src := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			src.Set(i, j, float64(j))
		}
	}

	out, err := Crop(src, 4, [2]float64{0.5, 0})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	// Window starts at column 2 + 0.5; the gradient makes the value exact.
	if got := out.At(0, 0); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("Expected 2.5 for half-pixel offset, got %g", got)
	}
}

// TestCropTooLarge verifies the size check
func TestCropTooLarge(t *testing.T) {
	src := mat.NewDense(8, 8, nil)
	if _, err := Crop(src, 16, [2]float64{0, 0}); err == nil {
		t.Errorf("Expected error when crop exceeds source")
	}
}
