package main

// channelWindow is a fixed-capacity FIFO of one channel's recent values.
// Pushing beyond capacity evicts the oldest entry.
type channelWindow struct {
	values   []float64
	capacity int
}

func newChannelWindow(capacity int) *channelWindow {
	return &channelWindow{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

func (w *channelWindow) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.capacity {
		w.values = w.values[1:]
	}
}

func (w *channelWindow) full() bool {
	return len(w.values) == w.capacity
}

// snapshot returns a copy of the window contents, oldest first.
func (w *channelWindow) snapshot() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// SampleStore keeps the rolling raw and filtered windows for every channel.
// Both representations are updated in lockstep each tick; band-power analysis
// reads only filtered windows that have reached capacity.
type SampleStore struct {
	raw      []*channelWindow
	filtered []*channelWindow
	capacity int
}

// NewSampleStore allocates empty windows for channelCount channels.
func NewSampleStore(channelCount, windowSize int) *SampleStore {
	s := &SampleStore{
		raw:      make([]*channelWindow, channelCount),
		filtered: make([]*channelWindow, channelCount),
		capacity: windowSize,
	}
	for ch := 0; ch < channelCount; ch++ {
		s.raw[ch] = newChannelWindow(windowSize)
		s.filtered[ch] = newChannelWindow(windowSize)
	}
	return s
}

// ChannelCount reports how many channels the store is sized for.
func (s *SampleStore) ChannelCount() int {
	return len(s.raw)
}

// WindowSize reports the per-channel window capacity.
func (s *SampleStore) WindowSize() int {
	return s.capacity
}

// Update appends one tick's raw and filtered values. Values beyond the store's
// channel count are ignored.
func (s *SampleStore) Update(sample *EEGSample, filtered *FilteredEEGSample) {
	for ch := 0; ch < len(s.raw); ch++ {
		if ch < len(sample.Channels) {
			s.raw[ch].push(sample.Channels[ch])
		}
		if ch < len(filtered.Channels) {
			s.filtered[ch].push(filtered.Channels[ch])
		}
	}
}

// FilteredFull reports whether a channel's filtered window has reached capacity.
func (s *SampleStore) FilteredFull(channel int) bool {
	if channel < 0 || channel >= len(s.filtered) {
		return false
	}
	return s.filtered[channel].full()
}

// FilteredWindow returns a copy of a channel's filtered window, or nil if the
// window is not yet full. Analysis never sees a partial window.
func (s *SampleStore) FilteredWindow(channel int) []float64 {
	if !s.FilteredFull(channel) {
		return nil
	}
	return s.filtered[channel].snapshot()
}

// RawLen reports the current length of a channel's raw window (for stats).
func (s *SampleStore) RawLen(channel int) int {
	if channel < 0 || channel >= len(s.raw) {
		return 0
	}
	return len(s.raw[channel].values)
}
