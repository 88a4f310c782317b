package main

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"log"
	"math"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"
)

// Default LSL discovery multicast group and port.
const (
	lslMulticastGroup = "224.0.0.183"
	lslMulticastPort  = 16571
)

// StreamCandidate is one advertised stream collected during discovery.
type StreamCandidate struct {
	Name         string
	StreamType   string
	SourceID     string
	ChannelCount int
	SampleRate   float64
	Hostname     string
	DataAddr     string // host:port of the stream's TCP data outlet
}

// StreamResolver discovers advertised streams and opens inlets to them. The
// pipeline only ever talks to this interface; the network implementation below
// is swapped out for a fake in tests.
type StreamResolver interface {
	// Resolve collects all streams that answer within the timeout.
	Resolve(timeout time.Duration) ([]StreamCandidate, error)
	// Open establishes a data inlet to a candidate.
	Open(candidate StreamCandidate) (StreamInlet, error)
}

// StreamInlet pulls samples from one open stream. A pull that times out with no
// data returns (nil, nil); that is expected, not an error.
type StreamInlet interface {
	PullSample(timeout time.Duration) ([]float64, error)
	Close() error
}

// lslStreamXML is the subset of the shortinfo reply we care about.
type lslStreamXML struct {
	XMLName      xml.Name `xml:"info"`
	Name         string   `xml:"name"`
	Type         string   `xml:"type"`
	ChannelCount int      `xml:"channel_count"`
	NominalSrate float64  `xml:"nominal_srate"`
	SourceID     string   `xml:"source_id"`
	Hostname     string   `xml:"hostname"`
	V4Address    string   `xml:"v4address"`
	V4DataPort   int      `xml:"v4data_port"`
}

// LSLResolver discovers streams over UDP multicast and opens TCP inlets to
// their data outlets.
type LSLResolver struct {
	group *net.UDPAddr
	iface *net.Interface
}

// NewLSLResolver resolves the discovery group address. An empty ifaceName uses
// the default interface.
func NewLSLResolver(groupAddr, ifaceName string) (*LSLResolver, error) {
	if groupAddr == "" {
		groupAddr = fmt.Sprintf("%s:%d", lslMulticastGroup, lslMulticastPort)
	}

	group, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve discovery group %s: %w", groupAddr, err)
	}

	var iface *net.Interface
	if ifaceName != "" {
		iface, err = net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("failed to get interface %s: %w", ifaceName, err)
		}
	}

	return &LSLResolver{group: group, iface: iface}, nil
}

// Resolve broadcasts a shortinfo query to the discovery group and gathers XML
// replies until the timeout expires. Duplicate answers (same source ID and
// name) are collapsed.
func (r *LSLResolver) Resolve(timeout time.Duration) ([]StreamCandidate, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery socket: %w", err)
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(1); err != nil {
		log.Printf("Warning: failed to set multicast TTL: %v", err)
	}
	if r.iface != nil {
		if err := p.JoinGroup(r.iface, r.group); err != nil {
			log.Printf("Warning: failed to join discovery group on %s: %v", r.iface.Name, err)
		}
	}

	localPort := conn.LocalAddr().(*net.UDPAddr).Port
	queryID := uuid.New().String()
	query := fmt.Sprintf("LSL:shortinfo\r\n*\r\n%d %s", localPort, queryID)

	if _, err := conn.WriteToUDP([]byte(query), r.group); err != nil {
		return nil, fmt.Errorf("failed to send discovery query: %w", err)
	}

	deadline := time.Now().Add(timeout)
	seen := make(map[string]bool)
	var candidates []StreamCandidate
	buf := make([]byte, 65536)

	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return candidates, nil
		}
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Deadline reached, return whatever answered in time
			return candidates, nil
		}

		cand, ok := parseShortinfoReply(buf[:n], queryID, src)
		if !ok {
			continue
		}

		key := cand.SourceID + "|" + cand.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, cand)
	}
}

// parseShortinfoReply validates the query ID echo and decodes the XML payload.
// The reply's source IP stands in when the stream doesn't advertise a
// v4address.
func parseShortinfoReply(reply []byte, queryID string, src *net.UDPAddr) (StreamCandidate, bool) {
	text := string(reply)
	idx := strings.Index(text, "<")
	if idx < 0 {
		return StreamCandidate{}, false
	}
	if !strings.Contains(text[:idx], queryID) {
		return StreamCandidate{}, false
	}

	var info lslStreamXML
	if err := xml.Unmarshal([]byte(text[idx:]), &info); err != nil {
		return StreamCandidate{}, false
	}
	if info.ChannelCount <= 0 || info.V4DataPort <= 0 {
		return StreamCandidate{}, false
	}

	host := info.V4Address
	if host == "" {
		host = src.IP.String()
	}

	return StreamCandidate{
		Name:         info.Name,
		StreamType:   info.Type,
		SourceID:     info.SourceID,
		ChannelCount: info.ChannelCount,
		SampleRate:   info.NominalSrate,
		Hostname:     info.Hostname,
		DataAddr:     fmt.Sprintf("%s:%d", host, info.V4DataPort),
	}, true
}

// Open dials the candidate's TCP data outlet and requests the sample feed.
func (r *LSLResolver) Open(candidate StreamCandidate) (StreamInlet, error) {
	conn, err := net.DialTimeout("tcp", candidate.DataAddr, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to open inlet to %s: %w", candidate.DataAddr, err)
	}

	request := fmt.Sprintf("LSL:streamfeed %s\r\n\r\n", candidate.SourceID)
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(request)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request stream feed: %w", err)
	}

	return &lslInlet{
		conn:     conn,
		channels: candidate.ChannelCount,
	}, nil
}

// lslInlet reads framed samples from the outlet's TCP feed: an 8-byte
// little-endian float64 timestamp followed by channel_count float32 values.
type lslInlet struct {
	conn     net.Conn
	channels int
}

// PullSample reads one frame within the timeout. A read deadline hit before any
// bytes arrive means no sample is ready and returns (nil, nil).
func (in *lslInlet) PullSample(timeout time.Duration) ([]float64, error) {
	frameSize := 8 + 4*in.channels
	frame := make([]byte, frameSize)

	if err := in.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	read := 0
	for read < frameSize {
		n, err := in.conn.Read(frame[read:])
		read += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && read == 0 {
				return nil, nil
			}
			return nil, fmt.Errorf("inlet read failed: %w", err)
		}
	}

	values := make([]float64, in.channels)
	for i := 0; i < in.channels; i++ {
		bits := binary.LittleEndian.Uint32(frame[8+4*i:])
		values[i] = float64(math.Float32frombits(bits))
	}
	return values, nil
}

func (in *lslInlet) Close() error {
	return in.conn.Close()
}

// encodeSampleFrame builds one wire frame; the test outlet uses it, and it
// documents the inlet's expected layout.
func encodeSampleFrame(timestamp float64, values []float32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, timestamp)
	for _, v := range values {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}
