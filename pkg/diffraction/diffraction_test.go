package diffraction

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"stedalign/pkg/config"
)

func testEvaluator() *Evaluator {
	cfg := config.DefaultConfig()
	cfg.Numerical.InputRes = 32
	return NewEvaluator(cfg.Optical, cfg.Numerical)
}

func uniformAmplitude(size int) *mat.Dense {
	amp := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			amp.Set(i, j, 1)
		}
	}
	return amp
}

// TestCalcPeakScale verifies the pulsed-beam peak power conversion
func TestCalcPeakScale(t *testing.T) {
	// 0.1 W average at 40 MHz with 1 ns pulses: duty cycle 0.04.
	got := CalcPeakScale(0.1, 40e6, 1e-9)
	want := 0.1 / (40e6 * 1e-9)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected peak scale %g, got %g", want, got)
	}

	// Degenerate parameters fall back to the average power
	if got := CalcPeakScale(0.1, 0, 1e-9); got != 0.1 {
		t.Errorf("Expected passthrough for zero rep rate, got %g", got)
	}
}

// TestEvaluateShapes verifies all three planes come back square at the
// pupil resolution
func TestEvaluateShapes(t *testing.T) {
	e := testEvaluator()
	size := 32
	phase := mat.NewDense(size, size, nil)

	out, err := e.Evaluate(LeftCircular, phase, uniformAmplitude(size), 1.0, "all", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if out.Res != size {
		t.Errorf("Expected resolution %d, got %d", size, out.Res)
	}
	for name, plane := range map[string][]float64{"xy": out.XY, "xz": out.XZ, "yz": out.YZ} {
		if len(plane) != size*size {
			t.Errorf("Expected %s plane of %d values, got %d", name, size*size, len(plane))
		}
	}
}

// TestEvaluateXYOnly verifies the focal-plane-only request skips the
// axial sections but produces the same primary plane
func TestEvaluateXYOnly(t *testing.T) {
	e := testEvaluator()
	size := 32
	phase := mat.NewDense(size, size, nil)
	amp := uniformAmplitude(size)

	xyOnly, err := e.Evaluate(LeftCircular, phase, amp, 1.0, "xy", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate xy failed: %v", err)
	}
	all, err := e.Evaluate(LeftCircular, phase, amp, 1.0, "all", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate all failed: %v", err)
	}

	if xyOnly.XZ != nil || xyOnly.YZ != nil {
		t.Errorf("Expected nil axial planes for xy-only evaluation")
	}

	for i := range xyOnly.XY {
		if math.Abs(xyOnly.XY[i]-all.XY[i]) > 1e-12 {
			t.Fatalf("Primary plane differs at %d: %g vs %g", i, xyOnly.XY[i], all.XY[i])
		}
	}
}

// TestFlatPhaseFocusesCentrally verifies an unmasked pupil concentrates
// its energy at the grid center while a vortex leaves a central dip
func TestFlatPhaseFocusesCentrally(t *testing.T) {
	e := testEvaluator()
	size := 32
	amp := uniformAmplitude(size)

	flat, err := e.Evaluate(LeftCircular, mat.NewDense(size, size, nil), amp, 1.0, "xy", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	mid := size / 2
	center := flat.XY[mid*size+mid]
	for i, v := range flat.XY {
		if v > center {
			t.Fatalf("Flat pupil: intensity at %d (%g) exceeds center (%g)", i, v, center)
		}
	}

	// A charge-1 vortex mask cancels the field on axis.
	vortex := mat.NewDense(size, size, nil)
	c := float64(size-1) / 2
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			vortex.Set(i, j, math.Atan2(float64(i)-c, float64(j)-c))
		}
	}
	donut, err := e.Evaluate(LeftCircular, vortex, amp, 1.0, "xy", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	max := 0.0
	for _, v := range donut.XY {
		if v > max {
			max = v
		}
	}
	if donut.XY[mid*size+mid] > 0.2*max {
		t.Errorf("Vortex pupil: expected central dip, center %g vs max %g", donut.XY[mid*size+mid], max)
	}
}

// TestEvaluateLaserScale verifies the intensity scales linearly with the
// laser scale factor
func TestEvaluateLaserScale(t *testing.T) {
	e := testEvaluator()
	size := 16
	phase := mat.NewDense(size, size, nil)
	amp := uniformAmplitude(size)

	one, err := e.Evaluate(LeftCircular, phase, amp, 1.0, "xy", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	two, err := e.Evaluate(LeftCircular, phase, amp, 2.0, "xy", [3]float64{})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	for i := range one.XY {
		if math.Abs(two.XY[i]-2*one.XY[i]) > 1e-9*math.Max(1, one.XY[i]) {
			t.Fatalf("Intensity not linear in laser scale at %d: %g vs %g", i, two.XY[i], one.XY[i])
		}
	}
}

// TestEvaluateValidation verifies shape and plane-selection errors
func TestEvaluateValidation(t *testing.T) {
	e := testEvaluator()

	if _, err := e.Evaluate(LeftCircular, mat.NewDense(8, 4, nil), mat.NewDense(8, 4, nil), 1.0, "xy", [3]float64{}); err == nil {
		t.Errorf("Expected error for non-square phase mask")
	}
	if _, err := e.Evaluate(LeftCircular, mat.NewDense(8, 8, nil), mat.NewDense(4, 4, nil), 1.0, "xy", [3]float64{}); err == nil {
		t.Errorf("Expected error for mismatched amplitude size")
	}
	if _, err := e.Evaluate(LeftCircular, mat.NewDense(8, 8, nil), mat.NewDense(8, 8, nil), 1.0, "xz", [3]float64{}); err == nil {
		t.Errorf("Expected error for unsupported plane selection")
	}
}
