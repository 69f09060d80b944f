package imaging

import (
	"math"
	"testing"

	"stedalign/internal/models"
)

// TestCenterOfMassImpulse verifies the centroid of a single bright pixel
func TestCenterOfMassImpulse(t *testing.T) {
	res := 16
	plane := make([]float64, res*res)
	plane[5*res+9] = 1.0

	cx, cy := CenterOfMass(plane, res)
	if cx != 9 || cy != 5 {
		t.Errorf("Expected centroid (9, 5), got (%g, %g)", cx, cy)
	}
}

// TestCenterOfMassSymmetric verifies a centered blob yields the geometric
// center
func TestCenterOfMassSymmetric(t *testing.T) {
	res := 32
	center := float64(res-1) / 2
	plane := gaussianPlane(res, center, center, 4)

	cx, cy := CenterOfMass(plane, res)
	if math.Abs(cx-center) > 1e-9 || math.Abs(cy-center) > 1e-9 {
		t.Errorf("Expected centroid (%g, %g), got (%g, %g)", center, center, cx, cy)
	}
}

// TestCenterOfMassEmpty verifies an all-dark plane falls back to the center
func TestCenterOfMassEmpty(t *testing.T) {
	res := 8
	plane := make([]float64, res*res)

	cx, cy := CenterOfMass(plane, res)
	want := float64(res-1) / 2
	if cx != want || cy != want {
		t.Errorf("Expected fallback centroid (%g, %g), got (%g, %g)", want, want, cx, cy)
	}
}

// TestCentersOfMass verifies the displacement extraction from a volume
func TestCentersOfMass(t *testing.T) {
	res := 32
	center := float64(res-1) / 2
	v := models.NewPSFVolume(res)

	// Lateral blob shifted +3 in x, -2 in y; axial blob shifted +4 in z.
	v.Planes[models.PlaneXY] = gaussianPlane(res, center+3, center-2, 3)
	v.Planes[models.PlaneXZ] = gaussianPlane(res, center, center+4, 3)
	v.Planes[models.PlaneYZ] = gaussianPlane(res, center, center+4, 3)

	d := CentersOfMass(v)
	if math.Abs(d[0]-3) > 0.05 {
		t.Errorf("Expected dx ~3, got %g", d[0])
	}
	if math.Abs(d[1]+2) > 0.05 {
		t.Errorf("Expected dy ~-2, got %g", d[1])
	}
	if math.Abs(d[2]-4) > 0.05 {
		t.Errorf("Expected dz ~4, got %g", d[2])
	}
}

// TestCalcTipTilt verifies the physical scaling of the lateral estimate
func TestCalcTipTilt(t *testing.T) {
	res := 32
	center := float64(res-1) / 2
	plane := gaussianPlane(res, center+2, center, 3)

	tip, tilt := CalcTipTilt(plane, res, 10e-9)
	if math.Abs(tip-20e-9) > 1e-9 {
		t.Errorf("Expected tip ~20nm, got %g", tip)
	}
	if math.Abs(tilt) > 1e-9 {
		t.Errorf("Expected tilt ~0, got %g", tilt)
	}
}

// TestCalcDefocus verifies centered axial planes give zero defocus
func TestCalcDefocus(t *testing.T) {
	res := 32
	center := float64(res-1) / 2
	xz := gaussianPlane(res, center, center, 3)
	yz := gaussianPlane(res, center, center, 3)

	if d := CalcDefocus(xz, yz, res); math.Abs(d) > 1e-9 {
		t.Errorf("Expected zero defocus for centered planes, got %g", d)
	}

	// Shifted axial centroids report the mean displacement
	xzShift := gaussianPlane(res, center, center+2, 3)
	yzShift := gaussianPlane(res, center, center+4, 3)
	if d := CalcDefocus(xzShift, yzShift, res); math.Abs(d-3) > 0.05 {
		t.Errorf("Expected defocus ~3, got %g", d)
	}
}

// TestSecondMomentWidth verifies wider blobs report larger widths
func TestSecondMomentWidth(t *testing.T) {
	res := 64
	center := float64(res-1) / 2

	narrow := SecondMomentWidth(gaussianPlane(res, center, center, 2), res)
	wide := SecondMomentWidth(gaussianPlane(res, center, center, 6), res)

	if narrow <= 0 {
		t.Errorf("Expected positive width, got %g", narrow)
	}
	if wide <= narrow {
		t.Errorf("Expected wider blob to report larger width: %g vs %g", wide, narrow)
	}

	if w := SecondMomentWidth(make([]float64, res*res), res); w != 0 {
		t.Errorf("Expected zero width for empty plane, got %g", w)
	}
}
