// Package visualization renders acquired PSF volumes and phase masks for
// inspection: grayscale JPEG exports of the individual planes and heat-map
// panels of the volume alongside the masks that produced it.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"stedalign/internal/models"
)

// PlaneImage converts a square row-major plane to a 16-bit grayscale image,
// rescaling the plane's full value range to [0, 65535]. A constant plane
// maps to black.
func PlaneImage(plane []float64, res int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, res, res))

	min, max := plane[0], plane[0]
	for _, v := range plane {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scale := 0.0
	if max > min {
		scale = 65535 / (max - min)
	}

	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			v := (plane[y*res+x] - min) * scale
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

// SaveSlice saves one plane image as a JPEG file.
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveVolume writes the three planes of a PSF volume as JPEG files
// (psf_xy.jpg, psf_xz.jpg, psf_yz.jpg) into the directory at dir, creating
// it if needed.
func SaveVolume(v *models.PSFVolume, dir string) error {
	if v == nil {
		return fmt.Errorf("nil volume")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for plane, data := range map[models.Plane][]float64{
		models.PlaneXY: v.Planes[models.PlaneXY],
		models.PlaneXZ: v.Planes[models.PlaneXZ],
		models.PlaneYZ: v.Planes[models.PlaneYZ],
	} {
		img := PlaneImage(data, v.Res)
		filename := filepath.Join(dir, fmt.Sprintf("psf_%s.jpg", plane))
		if err := SaveSlice(img, filename); err != nil {
			return fmt.Errorf("saving %s plane: %v", plane, err)
		}
	}
	return nil
}
