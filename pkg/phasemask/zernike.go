package phasemask

import (
	"math"
)

// radialPolynomial evaluates the Zernike radial polynomial R_n^|m|(rho).
// rho is the normalized pupil radius in [0, 1]; values outside the unit
// pupil are the caller's responsibility to mask.
func radialPolynomial(n, m int, rho float64) float64 {
	if m < 0 {
		m = -m
	}
	// R is zero when n-m is odd
	if (n-m)%2 != 0 {
		return 0
	}

	sum := 0.0
	for k := 0; k <= (n-m)/2; k++ {
		num := math.Pow(-1, float64(k)) * factorial(n-k)
		den := factorial(k) * factorial((n+m)/2-k) * factorial((n-m)/2-k)
		sum += num / den * math.Pow(rho, float64(n-2*k))
	}
	return sum
}

// factorial returns n! as a float64. The radial orders used here stay far
// below the range where float64 factorials lose integer precision.
func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Zernike evaluates the Zernike mode of radial order n and azimuthal order m
// at polar pupil coordinates (rho, theta). Negative m selects the sine
// (odd) variant, non-negative m the cosine (even) variant.
func Zernike(n, m int, rho, theta float64) float64 {
	r := radialPolynomial(n, m, rho)
	switch {
	case m > 0:
		return r * math.Cos(float64(m)*theta)
	case m < 0:
		return r * math.Sin(float64(-m)*theta)
	default:
		return r
	}
}
