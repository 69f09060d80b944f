package diffraction

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs a 2D Fast Fourier Transform on a square complex field.
// The transform is separable: rows first, then columns, each through
// Gonum's complex FFT.
//
// Parameters:
//   - field: input field as a 1D array (row-major order)
//   - size: width/height of the square grid
//
// Returns:
//   - the 2D FFT of the field as a 1D array of complex numbers
func fft2D(field []complex128, size int) []complex128 {
	fft := fourier.NewCmplxFFT(size)

	result := make([]complex128, size*size)
	copy(result, field)

	// Row-wise FFT
	row := make([]complex128, size)
	for i := 0; i < size; i++ {
		copy(row, result[i*size:(i+1)*size])
		fft.Coefficients(result[i*size:(i+1)*size], row)
	}

	// Column-wise FFT
	col := make([]complex128, size)
	colOut := make([]complex128, size)
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			col[i] = result[i*size+j]
		}
		fft.Coefficients(colOut, col)
		for i := 0; i < size; i++ {
			result[i*size+j] = colOut[i]
		}
	}

	return result
}

// applyQuadrantShift multiplies the field by (-1)^(x+y) in place, which
// moves the zero-frequency component of the subsequent FFT to the grid
// center. Shifting before the transform avoids reordering the output.
func applyQuadrantShift(field []complex128, size int) {
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if (i+j)%2 != 0 {
				field[i*size+j] = -field[i*size+j]
			}
		}
	}
}
