package idme

import (
	"io"
)

// DeviceTree the subset of libfdt the device tree export needs.
// PathOffset returns an error wrapping fdt.ErrNotFound for a missing node.
type DeviceTree interface {
	PathOffset(path string) (int, error)
	AddSubnode(parent int, name string) (int, error)
	SetPropString(node int, name, value string) error
	SetPropU32(node int, name string, value uint32) error
}

// Codec operations on one image layout revision. A codec is stateless, the
// image is always passed in.
type Codec interface {
	// Version family served, empty for the unsupported codec
	Version() string
	Bound() bool

	// BuildDefault rewrites img from table and returns the names that did not fit
	BuildDefault(img Image, table []ItemSpec) (skipped []string, err error)
	Get(img Image, name string, buf []byte) (int, error)
	Set(img Image, name string, value []byte) error
	Describe(img Image, name string) (Desc, error)
	Items(img Image) ([]Item, error)
	Print(img Image, w io.Writer) error
	ExportDeviceTree(tree DeviceTree, img Image) error
	ExportFlat(dst []byte, img Image) error
}

// unsupportedCodec bound for versions without an implementation
type unsupportedCodec struct {
	reason string
}

func (u unsupportedCodec) Version() string { return "" }

func (u unsupportedCodec) Bound() bool { return false }

func (u unsupportedCodec) Reason() string { return u.reason }

func (u unsupportedCodec) BuildDefault(Image, []ItemSpec) ([]string, error) { return nil, ErrUnbound }

func (u unsupportedCodec) Get(Image, string, []byte) (int, error) { return 0, ErrUnbound }

func (u unsupportedCodec) Set(Image, string, []byte) error { return ErrUnbound }

func (u unsupportedCodec) Describe(Image, string) (Desc, error) { return Desc{}, ErrUnbound }

func (u unsupportedCodec) Items(Image) ([]Item, error) { return nil, ErrUnbound }

func (u unsupportedCodec) Print(Image, io.Writer) error { return ErrUnbound }

func (u unsupportedCodec) ExportDeviceTree(DeviceTree, Image) error { return ErrUnbound }

func (u unsupportedCodec) ExportFlat([]byte, Image) error { return ErrUnbound }
