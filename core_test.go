package pktextract_test

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frozenpine/pktextract"
	pkterrors "github.com/frozenpine/pktextract/errors"
	"github.com/frozenpine/pktextract/internal/recordtest"
)

func TestIPv4AddrString(t *testing.T) {
	addr, err := pktextract.NewIPv4Addr([]byte{192, 168, 1, 1})
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", addr.String())
	assert.Equal(t, "0.0.0.0", pktextract.IPv4Addr{}.String())
	assert.Equal(t, "255.255.255.255", pktextract.IPv4Addr{255, 255, 255, 255}.String())
}

func TestNewIPv4AddrShort(t *testing.T) {
	_, err := pktextract.NewIPv4Addr([]byte{10, 0, 0})
	assert.ErrorIs(t, err, pktextract.ErrInsufficentData)
}

func TestUnpackMatchesGopacket(t *testing.T) {
	rec := recordtest.Record{
		Src:        net.IPv4(172, 16, 33, 69),
		Dst:        net.IPv4(172, 16, 33, 70),
		SrcPort:    443,
		DstPort:    51234,
		IPOptions:  8,
		TCPOptions: 12,
		Payload:    []byte("hello"),
	}
	data, err := rec.Bytes()
	require.NoError(t, err)

	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
	ref := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	refTCP := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)

	ip := pktextract.IPv4Header{}
	require.NoError(t, ip.Unpack(data))

	assert.Equal(t, ref.IHL, ip.IHL())
	assert.Equal(t, uint8(7), ip.IHL())
	assert.Equal(t, uint8(4), ip.Version())
	assert.Equal(t, ref.Length, ip.TotalLength)
	assert.Equal(t, pktextract.TCP, ip.Protocol)
	assert.Equal(t, ref.SrcIP.String(), ip.SrcAddr.String())
	assert.Equal(t, ref.DstIP.String(), ip.DstAddr.String())
	assert.Equal(t, 8, ip.OptionsLen())

	tcp := pktextract.TCPHeader{}
	require.NoError(t, tcp.Unpack(data[ip.PayloadOffset():]))

	assert.Equal(t, refTCP.DataOffset, tcp.DataOffset())
	assert.Equal(t, uint8(8), tcp.DataOffset())
	assert.Equal(t, uint16(refTCP.SrcPort), tcp.SrcPort)
	assert.Equal(t, uint16(refTCP.DstPort), tcp.DstPort)
	assert.True(t, tcp.Flags.HasFlag(pktextract.ACK|pktextract.PUS))
	assert.Equal(t, 12, tcp.OptionsLen())

	size, err := pktextract.PayloadLength(&ip, &tcp)
	require.NoError(t, err)
	assert.Equal(t, len(refTCP.Payload), size)
}

func TestUnpackInsufficentData(t *testing.T) {
	ip := pktextract.IPv4Header{}
	assert.ErrorIs(t, ip.Unpack(make([]byte, 19)), pktextract.ErrInsufficentData)

	tcp := pktextract.TCPHeader{}
	assert.ErrorIs(t, tcp.Unpack(make([]byte, 12)), pktextract.ErrInsufficentData)
}

func TestTCPOffsetWords(t *testing.T) {
	assert.Equal(t, uint8(5), pktextract.TCPOffset(0x50).Words())
	assert.Equal(t, uint8(15), pktextract.TCPOffset(0xff).Words())
	assert.Equal(t, uint8(0), pktextract.TCPOffset(0x0f).Words())
}

func TestPayloadLength(t *testing.T) {
	cases := []struct {
		name    string
		total   uint16
		ihl     uint8
		offset  uint8
		want    int
		wantErr bool
	}{
		{"no options", 40 + 7, 5, 5, 7, false},
		{"ip options", 48 + 3, 7, 5, 3, false},
		{"both options", 60 + 100, 7, 8, 100, false},
		{"headers only", 40, 5, 5, 0, false},
		{"underflow", 30, 5, 5, -10, true},
		{"underflow by options", 40, 6, 5, -4, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ip := pktextract.IPv4Header{VerIHL: 4<<4 | c.ihl, TotalLength: c.total}
			tcp := pktextract.TCPHeader{Offset: pktextract.TCPOffset(c.offset << 4)}

			size, err := pktextract.PayloadLength(&ip, &tcp)
			assert.Equal(t, c.want, size)

			if c.wantErr {
				assert.ErrorIs(t, err, pkterrors.ErrLengthUnderflow)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransProtoString(t *testing.T) {
	assert.Equal(t, "tcp", pktextract.TCP.String())
	assert.Equal(t, "udp", pktextract.UDP.String())
	assert.Equal(t, "proto(1)", pktextract.TransProto(1).String())
}
