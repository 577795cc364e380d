package pktextract

import (
	"bytes"
	"net"
	"strconv"
)

// Session identifies the endpoints of one record.
type Session struct {
	Proto   TransProto
	SrcIP   IPv4Addr
	SrcPort int
	DstIP   IPv4Addr
	DstPort int
}

// NewSession builds the session of a parsed header pair.
func NewSession(ip *IPv4Header, tcp *TCPHeader) *Session {
	return &Session{
		Proto:   ip.Protocol,
		SrcIP:   ip.SrcAddr,
		SrcPort: int(tcp.SrcPort),
		DstIP:   ip.DstAddr,
		DstPort: int(tcp.DstPort),
	}
}

func (s *Session) SrcAddr() net.Addr {
	return &net.TCPAddr{IP: net.IP(s.SrcIP[:]), Port: s.SrcPort}
}

func (s *Session) DstAddr() net.Addr {
	return &net.TCPAddr{IP: net.IP(s.DstIP[:]), Port: s.DstPort}
}

func (s *Session) String() string {
	buff := bytes.NewBufferString("[")
	buff.WriteString(s.Proto.String())
	buff.WriteString("] ")
	buff.WriteString(s.SrcIP.String())
	buff.WriteRune(':')
	buff.WriteString(strconv.Itoa(s.SrcPort))
	buff.WriteString(" -> ")
	buff.WriteString(s.DstIP.String())
	buff.WriteRune(':')
	buff.WriteString(strconv.Itoa(s.DstPort))

	return buff.String()
}
