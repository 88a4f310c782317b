package main

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleShortinfo = `<?xml version="1.0"?>
<info>
  <name>UN-2023.07.11</name>
  <type>EEG</type>
  <channel_count>17</channel_count>
  <nominal_srate>250.0</nominal_srate>
  <source_id>unicorn-hybrid-black-serial-0042</source_id>
  <hostname>lab-pc</hostname>
  <v4address>192.0.2.10</v4address>
  <v4data_port>16572</v4data_port>
</info>`

func shortinfoReply(queryID, xml string) []byte {
	return []byte(fmt.Sprintf("%s\r\n%s", queryID, xml))
}

func TestParseShortinfoReply(t *testing.T) {
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.99"), Port: 16571}

	cand, ok := parseShortinfoReply(shortinfoReply("qid-1", sampleShortinfo), "qid-1", src)
	require.True(t, ok)
	assert.Equal(t, "UN-2023.07.11", cand.Name)
	assert.Equal(t, "EEG", cand.StreamType)
	assert.Equal(t, "unicorn-hybrid-black-serial-0042", cand.SourceID)
	assert.Equal(t, 17, cand.ChannelCount)
	assert.Equal(t, 250.0, cand.SampleRate)
	assert.Equal(t, "lab-pc", cand.Hostname)
	assert.Equal(t, "192.0.2.10:16572", cand.DataAddr)
}

func TestParseShortinfoReplyFallsBackToSourceIP(t *testing.T) {
	xml := `<info><name>s</name><type>EEG</type><channel_count>4</channel_count>
<nominal_srate>250</nominal_srate><source_id>x</source_id>
<v4data_port>9000</v4data_port></info>`
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.99"), Port: 16571}

	cand, ok := parseShortinfoReply(shortinfoReply("q", xml), "q", src)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.99:9000", cand.DataAddr)
}

func TestParseShortinfoReplyRejects(t *testing.T) {
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.99"), Port: 16571}

	// Wrong query ID echo
	_, ok := parseShortinfoReply(shortinfoReply("other", sampleShortinfo), "qid-1", src)
	assert.False(t, ok)

	// No XML payload at all
	_, ok = parseShortinfoReply([]byte("qid-1\r\nnot xml"), "qid-1", src)
	assert.False(t, ok)

	// Malformed XML
	_, ok = parseShortinfoReply(shortinfoReply("q", "<info><name>x</name"), "q", src)
	assert.False(t, ok)

	// Missing channel count or data port
	xml := `<info><name>s</name><v4data_port>9000</v4data_port></info>`
	_, ok = parseShortinfoReply(shortinfoReply("q", xml), "q", src)
	assert.False(t, ok)
}

func TestLSLInletReadsFrames(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	inlet := &lslInlet{conn: client, channels: 3}
	defer inlet.Close()

	go func() {
		server.Write(encodeSampleFrame(1.25, []float32{1.5, -2.5, 300}))
	}()

	values, err := inlet.PullSample(time.Second)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.InDelta(t, 1.5, values[0], 1e-6)
	assert.InDelta(t, -2.5, values[1], 1e-6)
	assert.InDelta(t, 300.0, values[2], 1e-6)
}

func TestLSLInletTimeoutMeansNoData(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	inlet := &lslInlet{conn: client, channels: 2}
	defer inlet.Close()

	values, err := inlet.PullSample(20 * time.Millisecond)
	assert.NoError(t, err, "a quiet outlet is not an error")
	assert.Nil(t, values)
}

func TestNewLSLResolverDefaults(t *testing.T) {
	r, err := NewLSLResolver("", "")
	require.NoError(t, err)
	assert.Equal(t, lslMulticastPort, r.group.Port)
	assert.Equal(t, lslMulticastGroup, r.group.IP.String())
}

func TestNewLSLResolverBadGroup(t *testing.T) {
	_, err := NewLSLResolver("not-an-address:badport", "")
	assert.Error(t, err)
}
