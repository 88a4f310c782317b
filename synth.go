package main

import (
	"math"
	"math/rand"
)

// SignalSynthesizer produces plausible substitute EEG when no real stream is
// connected. Each channel sums four sinusoids at representative band
// frequencies with channel-dependent amplitude and phase offsets, so channels
// are distinguishable but related, plus a little uniform noise.
type SignalSynthesizer struct {
	rng *rand.Rand
}

// NewSignalSynthesizer seeds the noise source. A fixed seed gives deterministic
// output, which the tests rely on.
func NewSignalSynthesizer(seed int64) *SignalSynthesizer {
	return &SignalSynthesizer{rng: rand.New(rand.NewSource(seed))}
}

// Generate builds one synthetic sample for the given elapsed-time timestamp.
func (sg *SignalSynthesizer) Generate(timestamp float64, channelCount int) *EEGSample {
	channels := make([]float64, channelCount)

	for i := range channels {
		// Phase-offset each channel so traces don't overlap
		chOffset := float64(i) * 0.3
		t := timestamp + chOffset

		alpha := (15.0 + float64(i)*2.0) * math.Sin(2*math.Pi*10.0*t)
		theta := (12.0 + float64(i)*1.5) * math.Sin(2*math.Pi*6.0*t)
		beta := (6.0 + float64(i)) * math.Sin(2*math.Pi*20.0*t)
		delta := (8.0 + float64(i)*0.5) * math.Sin(2*math.Pi*2.0*t)
		noise := sg.rng.Float64()*4.0 - 2.0

		channels[i] = alpha + theta + beta + delta + noise
	}

	return &EEGSample{
		Timestamp: timestamp,
		Channels:  channels,
	}
}
