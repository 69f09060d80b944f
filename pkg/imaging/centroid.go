package imaging

import (
	"math"

	"stedalign/internal/models"
)

// CenterOfMass returns the intensity-weighted centroid (cx, cy) of a square
// row-major plane, in pixel coordinates. Negative values (standardized
// planes dip below zero) carry no weight.
func CenterOfMass(plane []float64, res int) (cx, cy float64) {
	var sum, sx, sy float64
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			w := plane[y*res+x]
			if w <= 0 {
				continue
			}
			sum += w
			sx += w * float64(x)
			sy += w * float64(y)
		}
	}
	if sum == 0 {
		c := float64(res-1) / 2
		return c, c
	}
	return sx / sum, sy / sum
}

// CentersOfMass returns the (dx, dy, dz) displacement of the PSF centroid
// from the geometric center of the volume, in pixels. The lateral components
// come from the xy plane; the axial component is the row displacement of the
// xz plane, where rows march through focus.
func CentersOfMass(v *models.PSFVolume) [3]float64 {
	center := float64(v.Res-1) / 2

	cx, cy := CenterOfMass(v.Planes[models.PlaneXY], v.Res)
	_, cz := CenterOfMass(v.Planes[models.PlaneXZ], v.Res)

	return [3]float64{cx - center, cy - center, cz - center}
}

// CalcTipTilt estimates the tip and tilt wavefront terms from the lateral
// centroid displacement of the primary plane, scaled to physical units.
func CalcTipTilt(plane []float64, res int, pixelSize float64) (tip, tilt float64) {
	cx, cy := CenterOfMass(plane, res)
	center := float64(res-1) / 2
	return (cx - center) * pixelSize, (cy - center) * pixelSize
}

// CalcDefocus estimates the defocus term from the axial asymmetry of the xz
// and yz planes: a defocused PSF shifts its axial centroid away from the
// focal row in both sections.
func CalcDefocus(xz, yz []float64, res int) float64 {
	center := float64(res-1) / 2
	_, czx := CenterOfMass(xz, res)
	_, czy := CenterOfMass(yz, res)
	return ((czx - center) + (czy - center)) / 2
}

// SecondMomentWidth returns the intensity-weighted RMS width of a plane
// about its centroid, a scale estimate used to sanity-check focus quality.
func SecondMomentWidth(plane []float64, res int) float64 {
	cx, cy := CenterOfMass(plane, res)
	var sum, acc float64
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			w := plane[y*res+x]
			if w <= 0 {
				continue
			}
			dx := float64(x) - cx
			dy := float64(y) - cy
			sum += w
			acc += w * (dx*dx + dy*dy)
		}
	}
	if sum == 0 {
		return 0
	}
	return math.Sqrt(acc / sum)
}
