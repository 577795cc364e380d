package pktextract

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Field readers take absolute offsets from the layout table in core.go.
// Callers check the buffer with checkSize once per header, after which the
// readers index without further bounds checks.

func checkSize(buff []byte, offset, width int) error {
	if offset < 0 || len(buff) < offset+width {
		return errors.Wrapf(
			ErrInsufficentData,
			"need %d bytes at offset %d, have %d",
			width, offset, len(buff),
		)
	}

	return nil
}

func fieldUint8(buff []byte, offset int) uint8 {
	return buff[offset]
}

func fieldUint16(buff []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(buff[offset : offset+2])
}

func fieldUint32(buff []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(buff[offset : offset+4])
}

func fieldAddr(buff []byte, offset int) (addr IPv4Addr, err error) {
	if err = checkSize(buff, offset, len(addr)); err != nil {
		return
	}

	copy(addr[:], buff[offset:])

	return
}

// nibble extracts a 4 bit field with mask then shift.
func nibble(b, mask, shift uint8) uint8 {
	return (b & mask) >> shift
}
