package idme

import (
	"errors"
	"fmt"
	"io"

	"github.com/S0me0neR0man/idmestash/internal/fdt"
)

const deviceTreeRoot = "/idme"

// v2Codec layout revisions 2.0 and 2.1
type v2Codec struct{}

func (v2Codec) Version() string { return "2.x" }

func (v2Codec) Bound() bool { return true }

func (v2Codec) BuildDefault(img Image, table []ItemSpec) ([]string, error) {
	if len(img) < HeaderSize {
		return nil, fmt.Errorf("%w: image of %d bytes cannot hold a header", ErrCapacity, len(img))
	}

	img.zero()
	img.stamp(Version2p1String)

	var (
		off     = HeaderSize
		n       uint32
		skipped []string
	)
	for _, spec := range table {
		if spec.Name == "" {
			continue
		}
		end := off + DescSize + int(spec.Size)
		if end > len(img) {
			skipped = append(skipped, spec.Name)
			continue
		}

		name := spec.Name
		if len(name) > MaxNameLen-1 {
			name = name[:MaxNameLen-1]
		}
		encodeDesc(img[off:off+DescSize], Desc{
			Name:       name,
			Size:       spec.Size,
			Exportable: spec.Exportable,
			Permission: spec.Permission,
		})
		// one NUL always stays at the end of a default value
		if spec.Size > 0 {
			copy(img[off+DescSize:end], spec.Value[:minInt(int(spec.Size)-1, len(spec.Value))])
		}

		off = end
		n++
	}
	img.setItemsNum(n)

	return skipped, nil
}

func (v2Codec) Get(img Image, name string, buf []byte) (int, error) {
	if !img.HasMagic() {
		return 0, ErrInvalidMagic
	}
	if buf == nil {
		return 0, ErrNilBuffer
	}

	r, err := img.find(name)
	if err != nil {
		return 0, err
	}
	return copy(buf, img[r.dataOff():r.end()]), nil
}

func (v2Codec) Set(img Image, name string, value []byte) error {
	if !img.HasMagic() {
		return ErrInvalidMagic
	}
	if value == nil {
		return ErrNilValue
	}

	r, err := img.find(name)
	if err != nil {
		return err
	}
	data := img[r.dataOff():r.end()]
	for i := range data {
		data[i] = 0
	}
	// longer values are truncated to the declared size
	copy(data, value)
	return nil
}

func (v2Codec) Describe(img Image, name string) (Desc, error) {
	if !img.HasMagic() {
		return Desc{}, ErrInvalidMagic
	}

	r, err := img.find(name)
	if err != nil {
		return Desc{}, err
	}
	return r.desc, nil
}

func (v2Codec) Items(img Image) ([]Item, error) {
	if !img.HasMagic() {
		return nil, ErrInvalidMagic
	}

	items := make([]Item, 0, img.ItemsNum())
	err := img.scan(func(r record) bool {
		data := make([]byte, r.desc.Size)
		copy(data, img[r.dataOff():r.end()])
		items = append(items, Item{Desc: r.desc, Data: data})
		return true
	})
	return items, err
}

func preview(data []byte) string {
	return cString(data[:minInt(len(data), MaxPrintSize)])
}

func (c v2Codec) Print(img Image, w io.Writer) error {
	items, err := c.Items(img)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "idme items number:%d\n", len(items)); err != nil {
		return err
	}
	for _, it := range items {
		exp := 0
		if it.Exportable {
			exp = 1
		}
		_, err := fmt.Fprintf(w, "name: %s, size: %d, exportable: %d, permission: %s, data: [%s]\n",
			it.Name, it.Size, exp, PermissionString(it.Permission), preview(it.Data))
		if err != nil {
			return err
		}
	}
	return nil
}

// ExportDeviceTree adds /idme with one child per exportable item. An existing
// /idme node means the export already ran and nothing is done.
func (c v2Codec) ExportDeviceTree(tree DeviceTree, img Image) error {
	_, err := tree.PathOffset(deviceTreeRoot)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fdt.ErrNotFound) {
		return fmt.Errorf("searching %s node: %w", deviceTreeRoot, err)
	}
	if !img.HasMagic() {
		return ErrInvalidMagic
	}

	items, err := c.Items(img)
	if err != nil {
		return err
	}

	root, err := tree.PathOffset("/")
	if err != nil {
		return fmt.Errorf("unable to find root offset: %w", err)
	}
	node, err := tree.AddSubnode(root, deviceTreeRoot[1:])
	if err != nil {
		return fmt.Errorf("unable to add idme root node: %w", err)
	}

	for _, it := range items {
		if !it.Exportable {
			continue
		}
		child, err := tree.AddSubnode(node, it.Name)
		if err != nil {
			return fmt.Errorf("unable to add idme node %s: %w", it.Name, err)
		}
		if err := tree.SetPropString(child, "value", preview(it.Data)); err != nil {
			return fmt.Errorf("unable to set idme node %s value: %w", it.Name, err)
		}
		if err := tree.SetPropU32(child, "permission", it.Permission); err != nil {
			return fmt.Errorf("unable to set idme node %s permission: %w", it.Name, err)
		}
	}
	return nil
}

// ExportFlat writes the exportable items into dst in the image layout, under a
// header carrying AtagVersion. The export is all or nothing: when the items do
// not fit dst is left zeroed.
func (v2Codec) ExportFlat(dst []byte, img Image) error {
	if !img.HasMagic() {
		return ErrInvalidMagic
	}
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) < HeaderSize {
		return fmt.Errorf("%w: %d bytes cannot hold a header", ErrCapacity, len(dst))
	}

	out := NewImage(len(dst))
	out.stamp(AtagVersion)

	var (
		off    = HeaderSize
		n      uint32
		capErr error
	)
	err := img.scan(func(r record) bool {
		if !r.desc.Exportable {
			return true
		}
		size := r.end() - r.off
		if off+size > len(out) {
			capErr = fmt.Errorf("%w: item %s needs %d bytes at %d, limit %d", ErrCapacity, r.desc.Name, size, off, len(out))
			return false
		}
		copy(out[off:], img[r.off:r.end()])
		off += size
		n++
		return true
	})
	if err != nil {
		return err
	}
	if capErr != nil {
		return capErr
	}

	out.setItemsNum(n)
	copy(dst, out)
	return nil
}
