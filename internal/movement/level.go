package movement

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Vocal band edges in Hz.
const (
	vocalBandLow  = 300.0
	vocalBandHigh = 3400.0
)

// RMS returns the root-mean-square amplitude of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// VocalBandLevel returns the RMS amplitude of samples restricted to the
// 300-3400 Hz speech band, on the same scale as RMS.
//
// The block is Hann windowed, zero padded to a power of two and
// transformed with an FFT; band energy is corrected for the window's
// power loss.
func VocalBandLevel(samples []int16, rate int) float64 {
	n := len(samples)
	if n < 2 || rate <= 0 {
		return 0
	}

	w := window.Hann(n)
	padded := nextPow2(n)
	x := make([]float64, padded)
	var winPower float64
	for i := 0; i < n; i++ {
		x[i] = float64(samples[i]) * w[i]
		winPower += w[i] * w[i]
	}
	winPower /= float64(n)
	if winPower == 0 {
		return 0
	}

	coeffs := fft.FFTReal(x)

	binHz := float64(rate) / float64(padded)
	lo := int(math.Ceil(vocalBandLow / binHz))
	hi := int(math.Floor(vocalBandHigh / binHz))
	if half := padded / 2; hi > half {
		hi = half
	}
	if lo < 1 {
		lo = 1
	}

	var energy float64
	for k := lo; k <= hi && k < len(coeffs); k++ {
		re, im := real(coeffs[k]), imag(coeffs[k])
		energy += re*re + im*im
	}

	// Parseval: positive and negative frequencies contribute equally.
	meanSquare := 2 * energy / (float64(padded) * float64(n) * winPower)
	return math.Sqrt(meanSquare)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
