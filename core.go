package pktextract

import (
	"fmt"

	"github.com/pkg/errors"

	origin_errors "errors"

	pkterrors "github.com/frozenpine/pktextract/errors"
)

// Fixed header layout. Offsets are relative to the first byte of each
// header's fixed part.
//
//	header  field         offset  width   extraction
//	ipv4    version       0       4 bit   b[0] >> 4
//	ipv4    ihl           0       4 bit   b[0] & 0x0f
//	ipv4    total length  2       16 bit  big endian b[2:4]
//	ipv4    protocol      9       8 bit   b[9]
//	ipv4    source        12      32 bit  b[12:16]
//	ipv4    destination   16      32 bit  b[16:20]
//	tcp     data offset   12      4 bit   (b[12] & 0xf0) >> 4
const (
	IPv4HeaderBaseSize = 20
	TCPHeaderBaseSize  = 20

	// MinIHL and MinDataOffset are counted in 32 bit words.
	MinIHL        = 5
	MinDataOffset = 5
	WordSize      = 4

	ipVerIHLOffset   = 0
	ipTOSOffset      = 1
	ipTotalLenOffset = 2
	ipIDOffset       = 4
	ipFlagsOffset    = 6
	ipTTLOffset      = 8
	ipProtocolOffset = 9
	ipCRCOffset      = 10
	ipSrcAddrOffset  = 12
	ipDstAddrOffset  = 16

	ipIHLMask      = 0x0f
	ipIHLShift     = 0
	ipVersionMask  = 0xf0
	ipVersionShift = 4

	tcpSrcPortOffset  = 0
	tcpDstPortOffset  = 2
	tcpSeqOffset      = 4
	tcpAckOffset      = 8
	tcpOffsetOffset   = 12
	tcpFlagsOffset    = 13
	tcpWindowOffset   = 14
	tcpChecksumOffset = 16

	tcpOffsetMask  = 0xf0
	tcpOffsetShift = 4
)

var (
	ErrInsufficentData = origin_errors.New("insufficent data length")
)

// IPv4Addr ip v4 address
type IPv4Addr [4]byte

// NewIPv4Addr copies the first four bytes of buff into an address.
func NewIPv4Addr(buff []byte) (IPv4Addr, error) {
	return fieldAddr(buff, 0)
}

func (addr IPv4Addr) String() string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		addr[0], addr[1], addr[2], addr[3],
	)
}

// TransProto transport protocol
type TransProto byte

const (
	TCP TransProto = 0x06 // tcp
	UDP TransProto = 0x11 // udp
)

func (proto TransProto) String() string {
	switch proto {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", byte(proto))
	}
}

// IPv4Header ip v4 header
type IPv4Header struct {
	// Version (4 bits) + Internet header length (4 bits)
	VerIHL uint8
	// Type of service
	TOS uint8
	// Total length
	TotalLength uint16
	// Identification
	Identification uint16
	// Flags (3 bits) + Fragment offset (13 bits)
	Flags uint16
	// Time to live
	TTL uint8
	// Protocol
	Protocol TransProto
	// Header checksum
	CRC uint16
	// Source address
	SrcAddr IPv4Addr
	// Destination address
	DstAddr IPv4Addr
}

// IHL header length in 32 bit words
func (hdr *IPv4Header) IHL() uint8 {
	return nibble(hdr.VerIHL, ipIHLMask, ipIHLShift)
}

func (hdr *IPv4Header) Version() uint8 {
	return nibble(hdr.VerIHL, ipVersionMask, ipVersionShift)
}

// PayloadOffset header length in bytes, options included
func (hdr *IPv4Header) PayloadOffset() int {
	return int(hdr.IHL()) * WordSize
}

// OptionsLen bytes of options following the fixed header
func (hdr *IPv4Header) OptionsLen() int {
	return optionsLen(hdr.IHL(), MinIHL)
}

func (hdr *IPv4Header) Unpack(buff []byte) (err error) {
	if err = checkSize(buff, 0, IPv4HeaderBaseSize); err != nil {
		return
	}

	hdr.VerIHL = fieldUint8(buff, ipVerIHLOffset)
	hdr.TOS = fieldUint8(buff, ipTOSOffset)
	hdr.TotalLength = fieldUint16(buff, ipTotalLenOffset)
	hdr.Identification = fieldUint16(buff, ipIDOffset)
	hdr.Flags = fieldUint16(buff, ipFlagsOffset)
	hdr.TTL = fieldUint8(buff, ipTTLOffset)
	hdr.Protocol = TransProto(fieldUint8(buff, ipProtocolOffset))
	hdr.CRC = fieldUint16(buff, ipCRCOffset)

	if hdr.SrcAddr, err = fieldAddr(buff, ipSrcAddrOffset); err != nil {
		return
	}

	hdr.DstAddr, err = fieldAddr(buff, ipDstAddrOffset)

	return
}

// TCPSeq tcp sequence
type TCPSeq uint32

// TCPOffset tcp header offset & data offset
type TCPOffset byte

// Words data offset in 32 bit words
func (off TCPOffset) Words() uint8 {
	return nibble(uint8(off), tcpOffsetMask, tcpOffsetShift)
}

// TCPFlags tcp flags
type TCPFlags byte

const (
	FIN TCPFlags = 1 << iota // finish
	SYN                      // sync
	RST                      // reset
	PUS                      // push
	ACK                      // acknowlege
	URG                      // urgent
	ECE                      // ece
	CWR                      // cwr
)

func (flag TCPFlags) HasFlag(f TCPFlags) bool {
	return flag&f == f
}

// TCPHeader tcp header
type TCPHeader struct {
	// source port
	SrcPort uint16
	// destination port
	DstPort uint16
	// sequence number
	Seq TCPSeq
	// acknowledgement number
	Ack TCPSeq
	// data offset, rsvd
	Offset TCPOffset
	// flags
	Flags TCPFlags
	// window size
	Window uint16
	// checksum
	Checksum uint16
}

// DataOffset header length in 32 bit words
func (hdr *TCPHeader) DataOffset() uint8 {
	return hdr.Offset.Words()
}

// PayloadOffset header length in bytes, options included
func (hdr *TCPHeader) PayloadOffset() int {
	return int(hdr.DataOffset()) * WordSize
}

// OptionsLen bytes of options following the fixed header
func (hdr *TCPHeader) OptionsLen() int {
	return optionsLen(hdr.DataOffset(), MinDataOffset)
}

func (hdr *TCPHeader) Unpack(buff []byte) error {
	if err := checkSize(buff, 0, TCPHeaderBaseSize); err != nil {
		return err
	}

	hdr.SrcPort = fieldUint16(buff, tcpSrcPortOffset)
	hdr.DstPort = fieldUint16(buff, tcpDstPortOffset)
	hdr.Seq = TCPSeq(fieldUint32(buff, tcpSeqOffset))
	hdr.Ack = TCPSeq(fieldUint32(buff, tcpAckOffset))
	hdr.Offset = TCPOffset(fieldUint8(buff, tcpOffsetOffset))
	hdr.Flags = TCPFlags(fieldUint8(buff, tcpFlagsOffset))
	hdr.Window = fieldUint16(buff, tcpWindowOffset)
	hdr.Checksum = fieldUint16(buff, tcpChecksumOffset)

	return nil
}

func optionsLen(words, base uint8) int {
	if words <= base {
		return 0
	}

	return int(words-base) * WordSize
}

// PayloadLength total length minus both header lengths in bytes. A negative
// result is reported as ErrLengthUnderflow along with the raw difference.
func PayloadLength(ip *IPv4Header, tcp *TCPHeader) (int, error) {
	size := int(ip.TotalLength) - ip.PayloadOffset() - tcp.PayloadOffset()

	if size < 0 {
		return size, errors.Wrapf(
			pkterrors.ErrLengthUnderflow,
			"total length %d, ip header %d, tcp header %d",
			ip.TotalLength, ip.PayloadOffset(), tcp.PayloadOffset(),
		)
	}

	return size, nil
}
