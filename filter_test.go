package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterChainDeterminism(t *testing.T) {
	chainA := NewFilterChain(4)
	chainB := NewFilterChain(4)

	input := make([]*EEGSample, 200)
	for i := range input {
		ch := make([]float64, 4)
		for c := range ch {
			ch[c] = 50 * math.Sin(2*math.Pi*10*float64(i)/250.0+float64(c))
		}
		input[i] = &EEGSample{Timestamp: float64(i) * 0.004, Channels: ch}
	}

	for _, s := range input {
		outA := chainA.Apply(s)
		outB := chainB.Apply(s)
		require.Equal(t, outA.Channels, outB.Channels,
			"independently constructed chains must produce identical output")
	}
}

func TestFilterChainTimestampCopied(t *testing.T) {
	chain := NewFilterChain(2)
	out := chain.Apply(&EEGSample{Timestamp: 1.234, Channels: []float64{1, 2}})
	assert.Equal(t, 1.234, out.Timestamp)
}

func TestFilterChainClipsArtifacts(t *testing.T) {
	chain := NewFilterChain(1)

	// Drive the filter with a huge DC step; whatever the recurrence produces,
	// the emitted value must never exceed the clip threshold
	for i := 0; i < 100; i++ {
		out := chain.Apply(&EEGSample{Channels: []float64{1e6}})
		assert.LessOrEqual(t, math.Abs(out.Channels[0]), artifactClipUV)
	}
}

func TestClipArtifactSignPreserved(t *testing.T) {
	assert.Equal(t, 300.0, clipArtifact(301.0))
	assert.Equal(t, -300.0, clipArtifact(-301.0))
	assert.Equal(t, 299.5, clipArtifact(299.5))
	assert.Equal(t, -299.5, clipArtifact(-299.5))
	assert.Equal(t, 0.0, clipArtifact(0.0))
}

func TestFilterChainFallbackOnChannelMismatch(t *testing.T) {
	// Chain sized for 2 channels receives 3: the simplified pass clips and
	// attenuates instead of erroring or dropping the sample
	chain := NewFilterChain(2)
	out := chain.Apply(&EEGSample{Channels: []float64{100, -400, 50}})

	require.Len(t, out.Channels, 3)
	assert.InDelta(t, 100*fallbackAttenuation, out.Channels[0], 1e-12)
	assert.InDelta(t, -300*fallbackAttenuation, out.Channels[1], 1e-12)
	assert.InDelta(t, 50*fallbackAttenuation, out.Channels[2], 1e-12)
}

func TestNilFilterChainFallback(t *testing.T) {
	var chain *FilterChain
	out := chain.Apply(&EEGSample{Timestamp: 2, Channels: []float64{350}})
	require.Len(t, out.Channels, 1)
	assert.InDelta(t, 300*fallbackAttenuation, out.Channels[0], 1e-12)
	assert.Equal(t, 2.0, out.Timestamp)
}

func TestIIRFilterHistoryLengths(t *testing.T) {
	for _, channels := range []int{1, 4, 8, 17} {
		chain := NewFilterChain(channels)
		require.Len(t, chain.bandpass.xHistory, channels)
		require.Len(t, chain.notch.xHistory, channels)
		for ch := 0; ch < channels; ch++ {
			assert.Len(t, chain.bandpass.xHistory[ch], len(bandpassB))
			assert.Len(t, chain.bandpass.yHistory[ch], len(bandpassB))
			assert.Len(t, chain.notch.xHistory[ch], len(notchB))
			assert.Len(t, chain.notch.yHistory[ch], len(notchB))
		}
	}
}

func TestIIRFilterExtraChannelsPassThrough(t *testing.T) {
	f := NewIIRFilter(bandpassB, bandpassA, 1)
	out := f.Process([]float64{10, 42})
	assert.Equal(t, 42.0, out[1], "channels beyond the filter's count pass through untouched")
}

func TestNotchAttenuates50Hz(t *testing.T) {
	chain := NewFilterChain(1)

	// Feed a pure 50 Hz tone at 250 Hz sampling; after settling, the chain
	// should pass almost nothing through
	var maxTail float64
	for i := 0; i < 1000; i++ {
		v := 100 * math.Sin(2*math.Pi*50*float64(i)/250.0)
		out := chain.Apply(&EEGSample{Channels: []float64{v}})
		if i > 800 {
			maxTail = math.Max(maxTail, math.Abs(out.Channels[0]))
		}
	}
	assert.Less(t, maxTail, 5.0, "50 Hz line noise should be strongly attenuated")
}
