package idme

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Image layout. All integers are little-endian.
//
//	[0:8]   magic "beefdeed"
//	[8:12]  version, ASCII, null padded
//	[12:16] items_num
//	[16:]   item records back to back, no padding:
//	          name[16] size(4) exportable(4) permission(4) data[size]
const (
	Magic       = "beefdeed"
	MagicSize   = 8
	VersionSize = 4
	HeaderSize  = MagicSize + VersionSize + 4

	MaxNameLen = 16
	DescSize   = MaxNameLen + 4 + 4 + 4

	BlockSize = 512
	NumBlocks = 10
	ImageSize = BlockSize * NumBlocks

	// MaxPrintSize payload preview length for print and device tree export
	MaxPrintSize = 40
	// AtagSize flat export capacity handed to the next boot stage
	AtagSize = 2048
	AtagTag  = 0x54410010
)

var byteOrder = binary.LittleEndian

// Desc item descriptor
type Desc struct {
	Name       string
	Size       uint32
	Exportable bool
	Permission uint32
}

func (d Desc) String() string {
	return fmt.Sprintf("%s size=%d exportable=%v permission=%s", d.Name, d.Size, d.Exportable, PermissionString(d.Permission))
}

// Item descriptor plus a copy of its payload
type Item struct {
	Desc
	Data []byte
}

// Value payload up to the first NUL
func (it Item) Value() string {
	return cString(it.Data)
}

// Image the whole reserved region
type Image []byte

func NewImage(size int) Image {
	return make(Image, size)
}

func (img Image) HasMagic() bool {
	return len(img) >= HeaderSize && string(img[:MagicSize]) == Magic
}

// Version stored version string without padding
func (img Image) Version() string {
	if len(img) < HeaderSize {
		return ""
	}
	return cString(img[MagicSize : MagicSize+VersionSize])
}

func (img Image) versionField() []byte {
	return img[MagicSize : MagicSize+VersionSize]
}

func (img Image) ItemsNum() uint32 {
	if len(img) < HeaderSize {
		return 0
	}
	return byteOrder.Uint32(img[MagicSize+VersionSize : HeaderSize])
}

func (img Image) setItemsNum(n uint32) {
	byteOrder.PutUint32(img[MagicSize+VersionSize:HeaderSize], n)
}

// stamp writes magic and version
func (img Image) stamp(version string) {
	copy(img[:MagicSize], Magic)
	putPadded(img.versionField(), version)
}

func (img Image) zero() {
	for i := range img {
		img[i] = 0
	}
}

// record one item located inside an image
type record struct {
	off  int
	desc Desc
}

func (r record) dataOff() int {
	return r.off + DescSize
}

func (r record) end() int {
	return r.dataOff() + int(r.desc.Size)
}

func decodeDesc(b []byte) Desc {
	return Desc{
		Name:       cString(b[:MaxNameLen]),
		Size:       byteOrder.Uint32(b[MaxNameLen:]),
		Exportable: byteOrder.Uint32(b[MaxNameLen+4:]) != 0,
		Permission: byteOrder.Uint32(b[MaxNameLen+8:]),
	}
}

func encodeDesc(b []byte, d Desc) {
	putPadded(b[:MaxNameLen], d.Name)
	byteOrder.PutUint32(b[MaxNameLen:], d.Size)
	var exp uint32
	if d.Exportable {
		exp = 1
	}
	byteOrder.PutUint32(b[MaxNameLen+4:], exp)
	byteOrder.PutUint32(b[MaxNameLen+8:], d.Permission)
}

// scan walks items_num records in order until fn returns false.
// A record reaching past the image end stops the walk with ErrCorrupt.
func (img Image) scan(fn func(r record) bool) error {
	off := HeaderSize
	n := img.ItemsNum()
	for i := uint32(0); i < n; i++ {
		if off+DescSize > len(img) {
			return fmt.Errorf("%w: item %d header at %d", ErrCorrupt, i, off)
		}
		r := record{off: off, desc: decodeDesc(img[off : off+DescSize])}
		if r.end() > len(img) || r.end() < r.dataOff() {
			return fmt.Errorf("%w: item %q size %d at %d", ErrCorrupt, r.desc.Name, r.desc.Size, off)
		}
		if !fn(r) {
			return nil
		}
		off = r.end()
	}
	return nil
}

// find first record named name (first match wins)
func (img Image) find(name string) (record, error) {
	var (
		found record
		ok    bool
	)
	err := img.scan(func(r record) bool {
		if r.desc.Name == name {
			found, ok = r, true
			return false
		}
		return true
	})
	if err != nil {
		return record{}, err
	}
	if !ok {
		return record{}, ErrNotFound
	}
	return found, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
