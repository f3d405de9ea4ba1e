package idme

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/S0me0neR0man/idmestash/internal/fdt"
)

func defaultImage(t *testing.T, table []ItemSpec) Image {
	t.Helper()
	img := NewImage(ImageSize)
	skipped, err := v2Codec{}.BuildDefault(img, table)
	require.NoError(t, err)
	require.Empty(t, skipped)
	return img
}

func TestBuildDefault_Deterministic(t *testing.T) {
	a := defaultImage(t, DefaultTable)
	b := NewImage(ImageSize)
	for i := range b {
		b[i] = 0xff
	}
	_, err := v2Codec{}.BuildDefault(b, DefaultTable)
	require.NoError(t, err)
	require.Equal(t, a, b)

	require.True(t, a.HasMagic())
	require.Equal(t, "2.1", a.Version())
	require.EqualValues(t, len(DefaultTable), a.ItemsNum())
}

func TestBuildDefault_SkipsOverflow(t *testing.T) {
	table := []ItemSpec{
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
		{Name: "manufacturing", Size: 512, Exportable: true, Permission: 0o444},
		{Name: "postmode", Size: 4, Exportable: true, Permission: 0o444, Value: "0"},
	}
	img := NewImage(HeaderSize + 2*(DescSize+4))

	skipped, err := v2Codec{}.BuildDefault(img, table)
	require.NoError(t, err)
	require.Equal(t, []string{"manufacturing"}, skipped)
	require.EqualValues(t, 2, img.ItemsNum())

	items, err := v2Codec{}.Items(img)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "bootmode", items[0].Name)
	require.Equal(t, "postmode", items[1].Name)
}

func TestBuildDefault_Truncation(t *testing.T) {
	table := []ItemSpec{
		{Name: "a_very_long_item_name", Size: 4, Value: "123456"},
	}
	img := defaultImage(t, table)

	items, err := v2Codec{}.Items(img)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a_very_long_ite", items[0].Name)
	require.Equal(t, []byte("123\x00"), items[0].Data)
}

func TestV2_RoundTrip(t *testing.T) {
	c := v2Codec{}
	img := defaultImage(t, DefaultTable)

	for _, it := range DefaultTable {
		value := []byte(strings.Repeat("x", int(it.Size)/2+1))
		require.NoError(t, c.Set(img, it.Name, value))

		buf := make([]byte, it.Size)
		n, err := c.Get(img, it.Name, buf)
		require.NoError(t, err)
		require.EqualValues(t, it.Size, n)

		want := make([]byte, it.Size)
		copy(want, value)
		require.Equal(t, want, buf, it.Name)
	}
}

func TestV2_SetTruncates(t *testing.T) {
	c := v2Codec{}
	img := defaultImage(t, DefaultTable)

	require.NoError(t, c.Set(img, "bootmode", []byte("123456")))
	buf := make([]byte, 4)
	_, err := c.Get(img, "bootmode", buf)
	require.NoError(t, err)
	require.Equal(t, []byte("1234"), buf)

	// neighbour intact
	v := make([]byte, 4)
	_, err = c.Get(img, "postmode", v)
	require.NoError(t, err)
	require.Equal(t, []byte("0\x00\x00\x00"), v)
}

func TestV2_ShortBuffer(t *testing.T) {
	c := v2Codec{}
	img := defaultImage(t, DefaultTable)

	buf := make([]byte, 3)
	n, err := c.Get(img, "board_id", buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("fff"), buf)
}

func TestV2_Errors(t *testing.T) {
	c := v2Codec{}
	img := defaultImage(t, DefaultTable)

	_, err := c.Get(img, "bootmode", nil)
	require.ErrorIs(t, err, ErrNilBuffer)
	require.ErrorIs(t, c.Set(img, "bootmode", nil), ErrNilValue)

	_, err = c.Get(img, "missing", make([]byte, 4))
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, CodeNotFound, Code(err))
	require.ErrorIs(t, c.Set(img, "missing", []byte("1")), ErrNotFound)

	// empty value clears the payload
	require.NoError(t, c.Set(img, "board_id", []byte{}))
	buf := make([]byte, 16)
	_, err = c.Get(img, "board_id", buf)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), buf)
}

func TestV2_CleanedImage(t *testing.T) {
	c := v2Codec{}
	img := defaultImage(t, DefaultTable)
	img.zero()

	_, err := c.Get(img, "bootmode", make([]byte, 4))
	require.ErrorIs(t, err, ErrInvalidMagic)
	require.ErrorIs(t, c.Set(img, "bootmode", []byte("1")), ErrInvalidMagic)
	require.ErrorIs(t, c.Print(img, &bytes.Buffer{}), ErrInvalidMagic)
	require.ErrorIs(t, c.ExportDeviceTree(fdt.New(), img), ErrInvalidMagic)
	require.ErrorIs(t, c.ExportFlat(make([]byte, AtagSize), img), ErrInvalidMagic)
	require.Equal(t, CodeInvalidMagic, Code(err))
}

func TestV2_Corrupt(t *testing.T) {
	img := defaultImage(t, DefaultTable)
	img.setItemsNum(1000)

	_, err := v2Codec{}.Items(img)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = v2Codec{}.Get(img, "missing", make([]byte, 4))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestV2_Print(t *testing.T) {
	table := []ItemSpec{
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
		{Name: "secret", Size: 64, Permission: 0o600, Value: strings.Repeat("s", 50)},
	}
	img := defaultImage(t, table)

	var out bytes.Buffer
	require.NoError(t, v2Codec{}.Print(img, &out))
	require.Equal(t,
		"idme items number:2\n"+
			"name: bootmode, size: 4, exportable: 1, permission: r--r--r--, data: [2]\n"+
			"name: secret, size: 64, exportable: 0, permission: rw-------, data: ["+strings.Repeat("s", MaxPrintSize)+"]\n",
		out.String())
}

func TestV2_ExportDeviceTree(t *testing.T) {
	table := []ItemSpec{
		{Name: "serial", Size: 16, Exportable: true, Permission: 0o444, Value: "G0K0H1"},
		{Name: "mac_sec", Size: 32, Exportable: false, Permission: 0o400, Value: "k"},
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o644, Value: "2"},
	}
	img := defaultImage(t, table)
	tree := fdt.New()

	require.NoError(t, v2Codec{}.ExportDeviceTree(tree, img))

	root, err := tree.PathOffset("/idme")
	require.NoError(t, err)
	children := tree.Children(root)
	sort.Strings(children)
	require.Equal(t, []string{"bootmode", "serial"}, children)

	node, err := tree.PathOffset("/idme/serial")
	require.NoError(t, err)
	v, ok := tree.PropString(node, "value")
	require.True(t, ok)
	require.Equal(t, "G0K0H1", v)

	node, err = tree.PathOffset("/idme/bootmode")
	require.NoError(t, err)
	p, ok := tree.PropU32(node, "permission")
	require.True(t, ok)
	require.EqualValues(t, 0o644, p)

	// existing node: nothing added
	require.NoError(t, v2Codec{}.ExportDeviceTree(tree, img))
	require.Len(t, tree.Children(root), 2)
}

func TestV2_ExportDeviceTreeReentryAfterClean(t *testing.T) {
	img := defaultImage(t, DefaultTable)
	tree := fdt.New()
	require.NoError(t, v2Codec{}.ExportDeviceTree(tree, img))
	root, err := tree.PathOffset("/idme")
	require.NoError(t, err)
	n := len(tree.Children(root))

	img.zero()
	require.NoError(t, v2Codec{}.ExportDeviceTree(tree, img))
	require.Len(t, tree.Children(root), n)
}

func TestV2_ExportFlat(t *testing.T) {
	table := []ItemSpec{
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
		{Name: "mac_sec", Size: 100, Exportable: false, Permission: 0o400, Value: "k"},
		{Name: "postmode", Size: 4, Exportable: true, Permission: 0o444, Value: "0"},
	}
	img := defaultImage(t, table)

	// non exportable items do not consume destination space
	dst := make([]byte, HeaderSize+2*(DescSize+4))
	require.NoError(t, v2Codec{}.ExportFlat(dst, img))

	out := Image(dst)
	require.True(t, out.HasMagic())
	require.Equal(t, AtagVersion, out.Version())
	require.EqualValues(t, 2, out.ItemsNum())

	items, err := v2Codec{}.Items(out)
	require.NoError(t, err)
	require.Equal(t, "bootmode", items[0].Name)
	require.Equal(t, "2", items[0].Value())
	require.Equal(t, "postmode", items[1].Name)
}

func TestV2_ExportFlatCapacity(t *testing.T) {
	table := []ItemSpec{
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
		{Name: "postmode", Size: 4, Exportable: true, Permission: 0o444, Value: "0"},
	}
	img := defaultImage(t, table)

	dst := bytes.Repeat([]byte{0xee}, HeaderSize+DescSize+4)
	err := v2Codec{}.ExportFlat(dst, img)
	require.ErrorIs(t, err, ErrCapacity)
	require.Equal(t, CodeCapacity, Code(err))
	require.Equal(t, make([]byte, len(dst)), dst, "failed export leaves the destination zeroed")

	err = v2Codec{}.ExportFlat(make([]byte, HeaderSize-1), img)
	require.ErrorIs(t, err, ErrCapacity)
}

func TestPermissionString(t *testing.T) {
	require.Equal(t, "r--r--r--", PermissionString(0o444))
	require.Equal(t, "rwxr-x---", PermissionString(0o750))
	require.Equal(t, "---------", PermissionString(0))
}
