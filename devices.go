package main

import (
	"fmt"
	"strings"
)

// deviceFamily maps an advertised stream to known electrode layouts. Entries
// are matched in order against the lowercased source ID and stream name; the
// first hit wins. Keywords match by containment, aliases by exact stream name
// (some vendor bridges advertise a bare numeric ID instead of a device name).
type deviceFamily struct {
	keywords     []string
	aliases      []string
	manufacturer string
	model        string
	// channelNames returns the ordered electrode names for a given channel
	// count. A family may pick a different montage by count (OpenBCI).
	channelNames func(count int) []string
}

func fixedLayout(names ...string) func(int) []string {
	return func(int) []string { return names }
}

var deviceFamilies = []deviceFamily{
	{
		keywords:     []string{"unicorn"},
		aliases:      []string{"123"},
		manufacturer: "g.tec medical engineering GmbH",
		model:        "Unicorn Hybrid Black",
		// 8 EEG electrodes followed by motion, battery and bookkeeping channels
		channelNames: fixedLayout(
			"Fz", "C3", "Cz", "C4", "Pz", "PO7", "Oz", "PO8",
			"ACC_X", "ACC_Y", "ACC_Z", "GYR_X", "GYR_Y", "GYR_Z",
			"Battery", "Counter", "Validation",
		),
	},
	{
		keywords:     []string{"openbci"},
		manufacturer: "OpenBCI",
		model:        "Cyton Board",
		channelNames: func(count int) []string {
			if count <= 8 {
				return []string{"Fp1", "Fp2", "C3", "C4", "P7", "P8", "O1", "O2"}
			}
			return []string{
				"Fp1", "Fp2", "F7", "F3", "F4", "F8", "C3", "Cz",
				"C4", "T7", "T8", "P7", "P3", "Pz", "P4", "P8",
			}
		},
	},
	{
		keywords:     []string{"emotiv"},
		manufacturer: "Emotiv Inc.",
		model:        "EPOC+",
		channelNames: fixedLayout(
			"AF3", "F7", "F3", "FC5", "T7", "P7", "O1", "O2",
			"P8", "T8", "FC6", "F4", "F8", "AF4",
		),
	},
	{
		keywords:     []string{"neurosky"},
		manufacturer: "NeuroSky",
		model:        "MindWave",
		channelNames: fixedLayout("Fp1"),
	},
	{
		keywords:     []string{"muse"},
		manufacturer: "InteraXon",
		model:        "Muse Headband",
		channelNames: fixedLayout("TP9", "AF7", "AF8", "TP10", "AUX"),
	},
}

// matchDeviceFamily finds the first family matching the stream's source ID or
// name. Returns nil for unknown devices.
func matchDeviceFamily(sourceID, streamName string) *deviceFamily {
	sourceID = strings.ToLower(sourceID)
	streamName = strings.ToLower(streamName)

	for i := range deviceFamilies {
		fam := &deviceFamilies[i]
		for _, kw := range fam.keywords {
			if strings.Contains(sourceID, kw) || strings.Contains(streamName, kw) {
				return fam
			}
		}
		for _, alias := range fam.aliases {
			if streamName == alias {
				return fam
			}
		}
	}
	return nil
}

// deviceChannelNames derives the ordered channel name list for a stream. Known
// families contribute their layout up to channelCount; any remainder (and all
// channels of unknown devices) gets generic numbered names.
func deviceChannelNames(sourceID, streamName string, channelCount int) []string {
	names := make([]string, 0, channelCount)

	if fam := matchDeviceFamily(sourceID, streamName); fam != nil {
		layout := fam.channelNames(channelCount)
		for i := 0; i < channelCount && i < len(layout); i++ {
			names = append(names, layout[i])
		}
	}

	for len(names) < channelCount {
		names = append(names, fmt.Sprintf("Ch%d", len(names)+1))
	}

	return names
}

// deviceInfo reports the manufacturer and model for a stream, or generic
// placeholders for unknown devices.
func deviceInfo(sourceID, streamName string) (manufacturer, model string) {
	if fam := matchDeviceFamily(sourceID, streamName); fam != nil {
		return fam.manufacturer, fam.model
	}
	return "Unknown Manufacturer", "EEG Device"
}
