package main

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// frequencyBand is a half-open [Low, High) frequency interval in Hz.
type frequencyBand struct {
	Name string
	Low  float64
	High float64
}

// eegBands are the five named bands. Note the deliberate gaps: coefficients in
// [12,13), below 0.5 Hz and at or above 100 Hz belong to no band. Downstream
// consumers depend on this exact partition, do not close the gaps.
var eegBands = []frequencyBand{
	{"delta", 0.5, 4.0},
	{"theta", 4.0, 8.0},
	{"alpha", 8.0, 12.0},
	{"beta", 13.0, 30.0},
	{"gamma", 30.0, 100.0},
}

// BandPowerAnalyzer decomposes full filtered windows into per-band magnitudes.
// The transform is a plain complex FFT over the rectangular (untapered) window,
// one coefficient per sample index. Leakage from the missing taper is accepted
// for numeric parity with the rest of the toolchain.
type BandPowerAnalyzer struct {
	sampleRate float64
	windowSize int
	fft        *fourier.CmplxFFT
	scratch    []complex128
}

// NewBandPowerAnalyzer plans an FFT for the given window size.
func NewBandPowerAnalyzer(sampleRate float64, windowSize int) *BandPowerAnalyzer {
	return &BandPowerAnalyzer{
		sampleRate: sampleRate,
		windowSize: windowSize,
		fft:        fourier.NewCmplxFFT(windowSize),
		scratch:    make([]complex128, windowSize),
	}
}

// AnalyzeWindow computes the band magnitudes for one channel's full window.
// The window length must equal the analyzer's configured size.
func (bp *BandPowerAnalyzer) AnalyzeWindow(window []float64, channel int, timestamp float64) *BandPowers {
	if len(window) != bp.windowSize {
		return nil
	}

	for i, v := range window {
		bp.scratch[i] = complex(v, 0)
	}
	coeffs := bp.fft.Coefficients(nil, bp.scratch)

	resolution := bp.sampleRate / float64(bp.windowSize)
	powers := make([]float64, len(eegBands))

	for i, c := range coeffs {
		freq := float64(i) * resolution
		power := real(c)*real(c) + imag(c)*imag(c)

		for bi, band := range eegBands {
			if freq >= band.Low && freq < band.High {
				powers[bi] += power
				break
			}
		}
	}

	return &BandPowers{
		Timestamp: timestamp,
		Channel:   channel,
		Delta:     math.Sqrt(powers[0]),
		Theta:     math.Sqrt(powers[1]),
		Alpha:     math.Sqrt(powers[2]),
		Beta:      math.Sqrt(powers[3]),
		Gamma:     math.Sqrt(powers[4]),
	}
}

// Analyze runs every channel whose filtered window is full. Channels with
// partial windows are skipped for this cycle; the result may be empty but is
// never nil.
func (bp *BandPowerAnalyzer) Analyze(store *SampleStore, timestamp float64) []BandPowers {
	results := make([]BandPowers, 0, store.ChannelCount())

	for ch := 0; ch < store.ChannelCount(); ch++ {
		window := store.FilteredWindow(ch)
		if window == nil {
			continue
		}
		if r := bp.AnalyzeWindow(window, ch, timestamp); r != nil {
			results = append(results, *r)
		}
	}

	return results
}
