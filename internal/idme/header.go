package idme

import (
	"fmt"
)

// FirstBlockReader reads the block holding the image header
type FirstBlockReader interface {
	ReadFirstBlock(buf []byte) error
}

// Header image header as found on the medium
type Header struct {
	Valid    bool
	Version  string
	ItemsNum uint32
	// Bound a codec exists for Version
	Bound bool
}

func (h Header) String() string {
	if !h.Valid {
		return "no idme data"
	}
	return fmt.Sprintf("version=%s items=%d bound=%v", h.Version, h.ItemsNum, h.Bound)
}

// ReadHeader decodes the header from the first block only. Nothing is built
// or written, unlike Load on a blank medium.
func ReadHeader(r FirstBlockReader, blockSize int) (Header, error) {
	if blockSize < HeaderSize {
		return Header{}, fmt.Errorf("%w: block of %d bytes cannot hold the header", ErrCapacity, blockSize)
	}
	blk := NewImage(blockSize)
	if err := r.ReadFirstBlock(blk); err != nil {
		return Header{}, err
	}
	if !blk.HasMagic() {
		return Header{}, nil
	}
	return Header{
		Valid:    true,
		Version:  blk.Version(),
		ItemsNum: blk.ItemsNum(),
		Bound:    SelectCodec(blk.versionField()).Bound(),
	}, nil
}
