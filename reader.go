package pktextract

import (
	"io"

	"github.com/pkg/errors"

	pkterrors "github.com/frozenpine/pktextract/errors"
)

// sizer is implemented by bounded streams such as io.SectionReader and
// bytes.Reader. Seeking past their end succeeds, so it's checked explicitly.
type sizer interface {
	Size() int64
}

// ReadIPv4Header reads the fixed ip header at the current position of r and
// skips any options following it.
//
// A stream already at its end yields a *errors.HeaderError of kind
// EndOfStream. A stream ending inside the fixed header yields kind
// UnexpectedEOF, which matches errors.ErrTruncatedRecord.
func ReadIPv4Header(r io.ReadSeeker) (*IPv4Header, error) {
	var buff [IPv4HeaderBaseSize]byte

	n, err := io.ReadFull(r, buff[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil, &pkterrors.HeaderError{Kind: pkterrors.EndOfStream}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, &pkterrors.HeaderError{Kind: pkterrors.UnexpectedEOF, Read: n}
	default:
		return nil, errors.Wrap(err, "read ip header")
	}

	hdr := IPv4Header{}
	if err := hdr.Unpack(buff[:]); err != nil {
		return nil, err
	}

	if ihl := hdr.IHL(); ihl < MinIHL {
		return nil, errors.Wrapf(pkterrors.ErrInvalidHeaderLength, "ihl %d", ihl)
	}

	if err := skipOptions(r, hdr.OptionsLen()); err != nil {
		return nil, errors.WithMessage(err, "ip options")
	}

	return &hdr, nil
}

// ReadTCPHeader reads the fixed tcp header at the current position of r and
// skips any options following it. Any short read is an error: a tcp header
// always follows a complete ip header.
func ReadTCPHeader(r io.ReadSeeker) (*TCPHeader, error) {
	var buff [TCPHeaderBaseSize]byte

	if n, err := io.ReadFull(r, buff[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrapf(
				pkterrors.ErrShortTCPHeader,
				"got %d of %d bytes", n, TCPHeaderBaseSize,
			)
		}

		return nil, errors.Wrap(err, "read tcp header")
	}

	hdr := TCPHeader{}
	if err := hdr.Unpack(buff[:]); err != nil {
		return nil, err
	}

	if offset := hdr.DataOffset(); offset < MinDataOffset {
		return nil, errors.Wrapf(pkterrors.ErrInvalidHeaderLength, "data offset %d", offset)
	}

	if err := skipOptions(r, hdr.OptionsLen()); err != nil {
		return nil, errors.WithMessage(err, "tcp options")
	}

	return &hdr, nil
}

func skipOptions(r io.ReadSeeker, size int) error {
	if size <= 0 {
		return nil
	}

	pos, err := r.Seek(int64(size), io.SeekCurrent)
	if err != nil {
		return errors.Wrapf(pkterrors.ErrSeekOptions, "skip %d bytes: %v", size, err)
	}

	if s, ok := r.(sizer); ok && pos > s.Size() {
		return errors.Wrapf(
			pkterrors.ErrSeekOptions,
			"skip %d bytes: position %d beyond end %d", size, pos, s.Size(),
		)
	}

	return nil
}
