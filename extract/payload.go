package extract

import (
	"io"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	pkterrors "github.com/frozenpine/pktextract/errors"
)

// CopyPayload reads exactly size bytes from src and writes them unmodified
// to dst. Nothing is written when src holds fewer than size bytes.
func CopyPayload(dst io.Writer, src io.Reader, size int) error {
	if size < 0 {
		return errors.Errorf("negative payload size: %d", size)
	}

	if size == 0 {
		return nil
	}

	buff := bytebufferpool.Get()
	defer bytebufferpool.Put(buff)

	n, err := buff.ReadFrom(io.LimitReader(src, int64(size)))
	if err != nil {
		return errors.Wrap(err, "read payload")
	}

	if n != int64(size) {
		return errors.Wrapf(
			pkterrors.ErrShortPayload,
			"got %d of %d bytes", n, size,
		)
	}

	if _, err := dst.Write(buff.B); err != nil {
		return errors.Wrap(err, "write payload")
	}

	return nil
}
