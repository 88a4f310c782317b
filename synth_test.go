package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizerChannelCountAndTimestamp(t *testing.T) {
	sg := NewSignalSynthesizer(1)
	s := sg.Generate(1.5, 8)
	require.Len(t, s.Channels, 8)
	assert.Equal(t, 1.5, s.Timestamp)
}

func TestSynthesizerDeterministicWithSeed(t *testing.T) {
	a := NewSignalSynthesizer(42)
	b := NewSignalSynthesizer(42)

	for i := 0; i < 50; i++ {
		ts := float64(i) * 0.004
		assert.Equal(t, a.Generate(ts, 4).Channels, b.Generate(ts, 4).Channels)
	}
}

func TestSynthesizerBounded(t *testing.T) {
	sg := NewSignalSynthesizer(7)

	// Channel i's component amplitudes sum to 41 + 4.5i, plus 2 of noise
	for i := 0; i < 1000; i++ {
		s := sg.Generate(float64(i)*0.004, 8)
		for ch, v := range s.Channels {
			bound := 41.0 + 4.5*float64(ch) + 2.0
			assert.LessOrEqual(t, math.Abs(v), bound, "channel %d", ch)
		}
	}
}

func TestSynthesizerChannelsDiffer(t *testing.T) {
	sg := NewSignalSynthesizer(3)
	s := sg.Generate(0.1, 4)

	for i := 1; i < len(s.Channels); i++ {
		assert.NotEqual(t, s.Channels[0], s.Channels[i],
			"channels must be distinguishable")
	}
}

func TestSynthesizerZeroChannels(t *testing.T) {
	sg := NewSignalSynthesizer(1)
	s := sg.Generate(0, 0)
	assert.Empty(t, s.Channels)
}
