package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelWindowFIFO(t *testing.T) {
	w := newChannelWindow(5)

	// Push more than capacity; the newest 5 values must survive, in order
	for i := 0; i < 12; i++ {
		w.push(float64(i))
	}

	require.Len(t, w.values, 5)
	assert.Equal(t, []float64{7, 8, 9, 10, 11}, w.snapshot())
}

func TestChannelWindowNeverExceedsCapacity(t *testing.T) {
	w := newChannelWindow(3)
	for i := 0; i < 100; i++ {
		w.push(float64(i))
		assert.LessOrEqual(t, len(w.values), 3)
	}
}

func TestSampleStoreLockstepUpdate(t *testing.T) {
	store := NewSampleStore(2, 4)

	for i := 0; i < 4; i++ {
		raw := &EEGSample{Channels: []float64{float64(i), float64(i) * 10}}
		filtered := &FilteredEEGSample{Channels: []float64{float64(i) + 0.5, float64(i)*10 + 0.5}}
		store.Update(raw, filtered)
	}

	assert.True(t, store.FilteredFull(0))
	assert.True(t, store.FilteredFull(1))
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, store.FilteredWindow(0))
	assert.Equal(t, []float64{0.5, 10.5, 20.5, 30.5}, store.FilteredWindow(1))
}

func TestSampleStorePartialWindowNotExposed(t *testing.T) {
	store := NewSampleStore(1, 8)

	for i := 0; i < 7; i++ {
		store.Update(
			&EEGSample{Channels: []float64{1}},
			&FilteredEEGSample{Channels: []float64{1}},
		)
	}

	assert.False(t, store.FilteredFull(0))
	assert.Nil(t, store.FilteredWindow(0), "a window one short of capacity must never be exposed")

	store.Update(&EEGSample{Channels: []float64{1}}, &FilteredEEGSample{Channels: []float64{1}})
	assert.True(t, store.FilteredFull(0))
	assert.NotNil(t, store.FilteredWindow(0))
}

func TestSampleStoreIgnoresExtraValues(t *testing.T) {
	store := NewSampleStore(2, 4)
	store.Update(
		&EEGSample{Channels: []float64{1, 2, 3, 4}},
		&FilteredEEGSample{Channels: []float64{1, 2, 3, 4}},
	)
	assert.Equal(t, 2, store.ChannelCount())
	assert.Equal(t, 1, store.RawLen(0))
	assert.Equal(t, 1, store.RawLen(1))
}

func TestSampleStoreOutOfRangeChannel(t *testing.T) {
	store := NewSampleStore(2, 4)
	assert.False(t, store.FilteredFull(-1))
	assert.False(t, store.FilteredFull(2))
	assert.Nil(t, store.FilteredWindow(5))
	assert.Equal(t, 0, store.RawLen(7))
}

func TestSampleStoreSnapshotIsCopy(t *testing.T) {
	store := NewSampleStore(1, 2)
	store.Update(&EEGSample{Channels: []float64{1}}, &FilteredEEGSample{Channels: []float64{1}})
	store.Update(&EEGSample{Channels: []float64{2}}, &FilteredEEGSample{Channels: []float64{2}})

	snap := store.FilteredWindow(0)
	snap[0] = 999

	assert.Equal(t, []float64{1, 2}, store.FilteredWindow(0))
}
