// Package recordtest builds raw ipv4/tcp record streams for tests.
package recordtest

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// Record is a well formed record. IPOptions and TCPOptions are option byte
// counts and must be multiples of 4.
type Record struct {
	Src, Dst         net.IP
	SrcPort, DstPort uint16
	IPOptions        int
	TCPOptions       int
	Payload          []byte
}

func (r Record) serializable() []gopacket.SerializableLayer {
	src, dst := r.Src, r.Dst
	if src == nil {
		src = net.IPv4(10, 0, 0, 1)
	}
	if dst == nil {
		dst = net.IPv4(10, 0, 0, 2)
	}

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src.To4(),
		DstIP:    dst.To4(),
	}
	for i := 0; i < r.IPOptions; i++ {
		ip.Options = append(ip.Options, layers.IPv4Option{OptionType: 1})
	}

	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(r.SrcPort),
		DstPort: layers.TCPPort(r.DstPort),
		Seq:     1,
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}
	for i := 0; i < r.TCPOptions; i++ {
		tcp.Options = append(tcp.Options, layers.TCPOption{OptionType: layers.TCPOptionKindNop})
	}

	return []gopacket.SerializableLayer{ip, tcp, gopacket.Payload(r.Payload)}
}

// Bytes serializes a single record with lengths filled in.
func (r Record) Bytes() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()

	if err := gopacket.SerializeLayers(
		buf, gopacket.SerializeOptions{FixLengths: true}, r.serializable()...,
	); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Stream concatenates records and returns the stream and the payloads it
// should yield.
func Stream(tb testing.TB, records ...Record) (stream, payloads []byte) {
	tb.Helper()

	var in, out bytes.Buffer

	for _, r := range records {
		data, err := r.Bytes()
		require.NoError(tb, err)

		in.Write(data)
		out.Write(r.Payload)
	}

	return in.Bytes(), out.Bytes()
}

// Raw builds a record byte by byte with caller controlled length fields.
// Option slices are written verbatim after each fixed header.
func Raw(ihl, dataOffset uint8, totalLength uint16, ipOpts, tcpOpts, payload []byte) []byte {
	ip := make([]byte, 20)
	ip[0] = 4<<4 | ihl&0x0f
	binary.BigEndian.PutUint16(ip[2:4], totalLength)
	ip[8] = 64
	ip[9] = byte(layers.IPProtocolTCP)
	copy(ip[12:16], []byte{192, 168, 1, 1})
	copy(ip[16:20], []byte{192, 168, 1, 2})

	tcp := make([]byte, 20)
	binary.BigEndian.PutUint16(tcp[0:2], 1000)
	binary.BigEndian.PutUint16(tcp[2:4], 2000)
	tcp[12] = dataOffset << 4
	tcp[13] = 0x18

	record := make([]byte, 0, len(ip)+len(ipOpts)+len(tcp)+len(tcpOpts)+len(payload))
	record = append(record, ip...)
	record = append(record, ipOpts...)
	record = append(record, tcp...)
	record = append(record, tcpOpts...)
	record = append(record, payload...)

	return record
}
