package main

// EEGSample is one acquisition tick's worth of raw per-channel amplitudes in µV.
// Timestamp is seconds since the tick loop started (monotonic).
type EEGSample struct {
	Timestamp float64   `json:"timestamp"`
	Channels  []float64 `json:"channels"`
}

// FilteredEEGSample is an EEGSample after the bandpass/notch chain and artifact
// clipping. The timestamp is copied from the source sample.
type FilteredEEGSample struct {
	Timestamp float64   `json:"timestamp"`
	Channels  []float64 `json:"channels"`
}

// BandPowers holds the spectral band magnitudes for one channel at one analysis
// cycle. Magnitudes are sqrt of accumulated power per band.
type BandPowers struct {
	Timestamp float64 `json:"timestamp"`
	Channel   int     `json:"channel"`
	Delta     float64 `json:"delta"` // 0.5-4 Hz
	Theta     float64 `json:"theta"` // 4-8 Hz
	Alpha     float64 `json:"alpha"` // 8-12 Hz
	Beta      float64 `json:"beta"`  // 13-30 Hz
	Gamma     float64 `json:"gamma"` // 30-100 Hz
}

// StreamInfo describes a connected EEG stream. It is derived from the stream's
// advertised metadata plus the device identification table in devices.go.
type StreamInfo struct {
	Name         string   `json:"name"`
	ChannelCount int      `json:"channel_count"`
	SampleRate   float64  `json:"sample_rate"`
	IsConnected  bool     `json:"is_connected"`
	Metadata     string   `json:"metadata"`
	StreamType   string   `json:"stream_type"`
	SourceID     string   `json:"source_id"`
	ChannelNames []string `json:"channel_names"`
	Manufacturer string   `json:"manufacturer"`
	DeviceModel  string   `json:"device_model"`
}
