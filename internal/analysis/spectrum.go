package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrTooShort = errors.New("analysis: series needs at least 4 samples")

// Summary describes one uniformly sampled series.
type Summary struct {
	Samples int
	Mean    float64
	StdDev  float64
	RMS     float64
	Peak    float64 // largest magnitude
	// DominantHz is the frequency of the strongest non-DC component and
	// DominantAmp its amplitude.
	DominantHz  float64
	DominantAmp float64
}

// Summarize analyzes series sampled every dt seconds.
func Summarize(series []float64, dt float64) (Summary, error) {
	n := len(series)
	if n < 4 {
		return Summary{}, ErrTooShort
	}
	if dt <= 0 {
		return Summary{}, errors.New("analysis: dt must be positive")
	}

	mean, std := stat.MeanStdDev(series, nil)
	s := Summary{
		Samples: n,
		Mean:    mean,
		StdDev:  std,
		RMS:     math.Sqrt(floats.Dot(series, series) / float64(n)),
		Peak:    math.Max(math.Abs(floats.Max(series)), math.Abs(floats.Min(series))),
	}

	centered := make([]float64, n)
	copy(centered, series)
	floats.AddConst(-mean, centered)

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)
	best := 1
	for i := 2; i < len(coeff); i++ {
		if cmplx.Abs(coeff[i]) > cmplx.Abs(coeff[best]) {
			best = i
		}
	}
	s.DominantHz = fft.Freq(best) / dt
	s.DominantAmp = 2 * cmplx.Abs(coeff[best]) / float64(n)
	return s, nil
}

// SummarizeRates analyzes roll, pitch and yaw rate series together.
func SummarizeRates(rates [3][]float64, dt float64) ([3]Summary, error) {
	var out [3]Summary
	for i, r := range rates {
		s, err := Summarize(r, dt)
		if err != nil {
			return out, err
		}
		out[i] = s
	}
	return out, nil
}
