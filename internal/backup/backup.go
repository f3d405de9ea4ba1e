// Package backup image dumps, raw or xz compressed
package backup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

var ErrSize = errors.New("dump size does not match the region")

// xzMagic stream header of an xz file
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// WriteDump writes image to w, compressed when compress is set
func WriteDump(w io.Writer, image []byte, compress bool) error {
	if !compress {
		_, err := w.Write(image)
		return err
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := xw.Write(image); err != nil {
		return fmt.Errorf("xz compress: %w", err)
	}
	return xw.Close()
}

// ReadDump reads a dump of exactly size bytes. Compression is detected from the stream header.
func ReadDump(r io.Reader, size int) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var src io.Reader = br
	if bytes.Equal(head, xzMagic) {
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		src = xr
	}

	// one extra byte tells an oversized dump apart
	buf := make([]byte, size+1)
	n, err := io.ReadFull(src, buf)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
	case err != nil:
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("%w: got %d bytes or more, want %d", ErrSize, n, size)
	}
	return buf[:size], nil
}
