package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// defaultChannelCount is used whenever no stream is connected.
const defaultChannelCount = 8

// Discovery and pull time bounds. Discovery is a deliberate several-second
// scan; pulls are kept tiny so a stalled outlet costs at most one tick.
const (
	resolveTimeout     = 5 * time.Second
	pullResolveTimeout = 50 * time.Millisecond
	pullTimeout        = 10 * time.Millisecond
)

// StreamManager owns the connection state: which stream (if any) we are bound
// to, the active channel count, and the descriptor handed to clients. All
// blocking network work happens with the mutex released; results are committed
// only if the connection epoch is unchanged, so a pull or connect racing a
// disconnect is discarded rather than merged.
type StreamManager struct {
	resolver StreamResolver

	mu           sync.Mutex
	streamInfo   *StreamInfo
	channelCount int
	isReal       bool
	boundName    string
	epoch        uint64
}

// NewStreamManager starts disconnected with the default channel count.
func NewStreamManager(resolver StreamResolver) *StreamManager {
	return &StreamManager{
		resolver:     resolver,
		channelCount: defaultChannelCount,
	}
}

// candidateMatchers are the selection criteria in preference order: exact name,
// case-insensitive containment in the source ID, containment in the display
// name, then vendor aliases (a bare identifier some bridges advertise for a
// known device family).
var candidateMatchers = []func(target string, cand StreamCandidate) bool{
	func(target string, cand StreamCandidate) bool {
		return cand.Name == target
	},
	func(target string, cand StreamCandidate) bool {
		return strings.Contains(strings.ToLower(cand.SourceID), strings.ToLower(target))
	},
	func(target string, cand StreamCandidate) bool {
		return strings.Contains(strings.ToLower(cand.Name), strings.ToLower(target))
	},
	matchVendorAlias,
}

func matchVendorAlias(target string, cand StreamCandidate) bool {
	lt := strings.ToLower(target)
	for i := range deviceFamilies {
		for _, alias := range deviceFamilies[i].aliases {
			if lt == alias && matchDeviceFamily(cand.SourceID, cand.Name) == &deviceFamilies[i] {
				return true
			}
		}
	}
	return false
}

// selectCandidate picks the stream best matching the requested name, or nil.
// The scan is criterion-major: every candidate is tried against one criterion
// before the next criterion is considered, so a weaker hit on an earlier
// candidate never shadows a stronger hit on a later one.
func selectCandidate(target string, candidates []StreamCandidate) *StreamCandidate {
	for _, match := range candidateMatchers {
		for i := range candidates {
			if match(target, candidates[i]) {
				return &candidates[i]
			}
		}
	}
	return nil
}

// Connect discovers advertised streams, matches the requested name, opens an
// inlet and commits the new connection state. Any failure leaves the manager
// disconnected. Calling while connected re-resolves and reconnects.
func (sm *StreamManager) Connect(streamName string) (*StreamInfo, error) {
	log.Printf("Searching for EEG stream: %q", streamName)

	candidates, err := sm.resolver.Resolve(resolveTimeout)
	if err != nil {
		return nil, fmt.Errorf("stream discovery failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no EEG streams advertised on the network")
	}

	matched := selectCandidate(streamName, candidates)
	if matched == nil {
		var found []string
		for _, c := range candidates {
			found = append(found, fmt.Sprintf("%s (type=%s, source=%s)", c.Name, c.StreamType, c.SourceID))
		}
		return nil, fmt.Errorf("no stream matching %q; discovered: %s",
			streamName, strings.Join(found, ", "))
	}

	channelNames := deviceChannelNames(matched.SourceID, matched.Name, matched.ChannelCount)
	manufacturer, model := deviceInfo(matched.SourceID, matched.Name)

	info := &StreamInfo{
		Name:         matched.Name,
		ChannelCount: matched.ChannelCount,
		SampleRate:   matched.SampleRate,
		IsConnected:  true,
		StreamType:   matched.StreamType,
		SourceID:     matched.SourceID,
		ChannelNames: channelNames,
		Manufacturer: manufacturer,
		DeviceModel:  model,
		Metadata: fmt.Sprintf("Type: %s | Source: %s | Channels: %d | Rate: %.1f Hz | Manufacturer: %s | Model: %s",
			matched.StreamType, matched.SourceID, matched.ChannelCount,
			matched.SampleRate, manufacturer, model),
	}

	inlet, err := sm.resolver.Open(*matched)
	if err != nil {
		return nil, fmt.Errorf("matched stream %q but could not open inlet: %w", matched.Name, err)
	}

	// One best-effort diagnostic pull. Data may simply not be flowing yet, so
	// failure here is logged, not fatal.
	if values, err := inlet.PullSample(pullTimeout); err != nil {
		log.Printf("Warning: diagnostic pull from %q failed: %v", matched.Name, err)
	} else if values != nil {
		log.Printf("Diagnostic pull from %q returned %d values", matched.Name, len(values))
	}
	inlet.Close()

	sm.mu.Lock()
	sm.streamInfo = info
	sm.channelCount = matched.ChannelCount
	sm.isReal = true
	sm.boundName = matched.Name
	sm.epoch++
	sm.mu.Unlock()

	log.Printf("Connected to EEG stream: %s", info.Metadata)
	log.Printf("Channel names: %v", channelNames)
	return info, nil
}

// Disconnect clears all connection state and restores the default channel
// count. Always succeeds; a no-op when already disconnected.
func (sm *StreamManager) Disconnect() {
	sm.mu.Lock()
	sm.streamInfo = nil
	sm.channelCount = defaultChannelCount
	sm.isReal = false
	sm.boundName = ""
	sm.epoch++
	sm.mu.Unlock()
	log.Printf("Disconnected from EEG stream")
}

// PullSample attempts to fetch one sample from the bound stream. The outlet may
// require a fresh handle, so each call re-resolves and reopens an inlet, with
// sub-second bounds throughout. Returns nil without error when no real
// connection exists, no data is ready, or the connection changed while the pull
// was in flight. The returned slice always has exactly the connection's channel
// count: extra values are dropped, missing ones zero-filled.
func (sm *StreamManager) PullSample() []float64 {
	sm.mu.Lock()
	if !sm.isReal {
		sm.mu.Unlock()
		return nil
	}
	boundName := sm.boundName
	channelCount := sm.channelCount
	epoch := sm.epoch
	sm.mu.Unlock()

	candidates, err := sm.resolver.Resolve(pullResolveTimeout)
	if err != nil {
		return nil
	}

	var matched *StreamCandidate
	for i := range candidates {
		if candidates[i].Name == boundName {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return nil
	}

	inlet, err := sm.resolver.Open(*matched)
	if err != nil {
		return nil
	}
	defer inlet.Close()

	values, err := inlet.PullSample(pullTimeout)
	if err != nil || values == nil {
		return nil
	}

	sm.mu.Lock()
	stale := sm.epoch != epoch
	sm.mu.Unlock()
	if stale {
		// Disconnected (or reconnected) while the pull was in flight
		return nil
	}

	channels := make([]float64, channelCount)
	copy(channels, values)
	return channels
}

// CurrentStreamInfo returns the active descriptor, or nil when disconnected.
// Non-blocking.
func (sm *StreamManager) CurrentStreamInfo() *StreamInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.streamInfo == nil {
		return nil
	}
	info := *sm.streamInfo
	return &info
}

// IsReal reports whether a real stream connection is active.
func (sm *StreamManager) IsReal() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.isReal
}

// ChannelCount returns the active channel count (default 8 when disconnected).
func (sm *StreamManager) ChannelCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.channelCount
}

// Epoch increments on every connect and disconnect; the pipeline uses it to
// detect channel-count changes and discard stale pull results.
func (sm *StreamManager) Epoch() uint64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.epoch
}
