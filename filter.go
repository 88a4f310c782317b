package main

import "math"

// Coefficient sets for the two IIR stages. Designed offline for a 250 Hz
// sampling rate; the recurrence below assumes a[0] == 1.
var (
	// 4th-order Butterworth bandpass, 1-40 Hz passband
	bandpassB = []float64{0.0067, 0.0, -0.0134, 0.0, 0.0067}
	bandpassA = []float64{1.0, -3.1806, 3.8612, -2.1122, 0.4383}

	// 50 Hz notch, Q=30
	notchB = []float64{0.9565, -1.9131, 0.9565}
	notchA = []float64{1.0, -1.9131, 0.9131}
)

// artifactClipUV is the artifact rejection threshold: any filtered value whose
// magnitude exceeds this is clipped to the threshold with sign preserved.
const artifactClipUV = 300.0

// fallbackAttenuation is applied by the simplified pass when the chain has not
// been initialized for the current channel count.
const fallbackAttenuation = 0.95

// IIRFilter evaluates a direct-form I recurrence per channel. Each channel keeps
// an input and output history of len(b) entries; a new sample shifts both
// histories and discards the oldest entry.
type IIRFilter struct {
	b        []float64
	a        []float64
	xHistory [][]float64 // per-channel input history, newest first
	yHistory [][]float64 // per-channel output history, newest first
}

// NewIIRFilter creates a filter with zeroed histories for channelCount channels.
func NewIIRFilter(b, a []float64, channelCount int) *IIRFilter {
	f := &IIRFilter{
		b:        b,
		a:        a,
		xHistory: make([][]float64, channelCount),
		yHistory: make([][]float64, channelCount),
	}
	for ch := 0; ch < channelCount; ch++ {
		f.xHistory[ch] = make([]float64, len(b))
		f.yHistory[ch] = make([]float64, len(b))
	}
	return f
}

// Process runs one multi-channel sample through the recurrence. Channels beyond
// the filter's configured count pass through untouched.
func (f *IIRFilter) Process(input []float64) []float64 {
	output := make([]float64, len(input))

	for ch, sample := range input {
		if ch >= len(f.xHistory) {
			output[ch] = sample
			continue
		}

		xh := f.xHistory[ch]
		yh := f.yHistory[ch]

		// Shift history, newest at index 0
		for i := len(xh) - 1; i >= 1; i-- {
			xh[i] = xh[i-1]
			yh[i] = yh[i-1]
		}
		xh[0] = sample

		var y float64
		for i := 0; i < len(f.b) && i < len(xh); i++ {
			y += f.b[i] * xh[i]
		}
		for i := 1; i < len(f.a) && i < len(yh); i++ {
			y -= f.a[i] * yh[i]
		}

		yh[0] = y
		output[ch] = y
	}

	return output
}

// FilterChain is the bandpass + notch cascade with artifact clipping. A nil
// chain (or one sized for a different channel count than the input) degrades to
// the simplified clip-and-attenuate pass so a sample is never dropped.
type FilterChain struct {
	bandpass *IIRFilter
	notch    *IIRFilter
	channels int
}

// NewFilterChain allocates fresh per-channel filter state. Called on every
// connect; channel count never changes mid-stream.
func NewFilterChain(channelCount int) *FilterChain {
	return &FilterChain{
		bandpass: NewIIRFilter(bandpassB, bandpassA, channelCount),
		notch:    NewIIRFilter(notchB, notchA, channelCount),
		channels: channelCount,
	}
}

// ChannelCount reports the channel count the chain was sized for.
func (fc *FilterChain) ChannelCount() int {
	if fc == nil {
		return 0
	}
	return fc.channels
}

// Apply filters one raw sample. The returned FilteredEEGSample carries the raw
// sample's timestamp.
func (fc *FilterChain) Apply(sample *EEGSample) *FilteredEEGSample {
	if fc == nil || fc.channels != len(sample.Channels) {
		return fallbackFilter(sample)
	}

	out := fc.bandpass.Process(sample.Channels)
	out = fc.notch.Process(out)

	for i, v := range out {
		out[i] = clipArtifact(v)
	}

	return &FilteredEEGSample{
		Timestamp: sample.Timestamp,
		Channels:  out,
	}
}

// fallbackFilter is the simplified pass used before the chain is initialized
// for the current channel count: clip, then attenuate.
func fallbackFilter(sample *EEGSample) *FilteredEEGSample {
	out := make([]float64, len(sample.Channels))
	for i, v := range sample.Channels {
		out[i] = clipArtifact(v) * fallbackAttenuation
	}
	return &FilteredEEGSample{
		Timestamp: sample.Timestamp,
		Channels:  out,
	}
}

func clipArtifact(v float64) float64 {
	if math.Abs(v) > artifactClipUV {
		return math.Copysign(artifactClipUV, v)
	}
	return v
}
