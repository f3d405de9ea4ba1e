package fdt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTree_Nodes(t *testing.T) {
	tree := New()

	root, err := tree.PathOffset("/")
	require.NoError(t, err)
	require.Equal(t, 0, root)

	_, err = tree.PathOffset("/idme")
	require.ErrorIs(t, err, ErrNotFound)

	idme, err := tree.AddSubnode(root, "idme")
	require.NoError(t, err)
	serial, err := tree.AddSubnode(idme, "serial")
	require.NoError(t, err)

	off, err := tree.PathOffset("/idme/serial")
	require.NoError(t, err)
	require.Equal(t, serial, off)

	_, err = tree.AddSubnode(idme, "serial")
	require.ErrorIs(t, err, ErrExists)
	_, err = tree.AddSubnode(idme, "")
	require.ErrorIs(t, err, ErrBadName)
	_, err = tree.AddSubnode(99, "x")
	require.ErrorIs(t, err, ErrBadOffset)

	require.Equal(t, []string{"serial"}, tree.Children(idme))
}

func TestTree_Props(t *testing.T) {
	tree := New()
	n, err := tree.AddSubnode(0, "bootmode")
	require.NoError(t, err)

	require.NoError(t, tree.SetPropString(n, "value", "2"))
	require.NoError(t, tree.SetPropU32(n, "permission", 0o444))
	require.NoError(t, tree.SetPropString(n, "value", "1"))

	v, ok := tree.PropString(n, "value")
	require.True(t, ok)
	require.Equal(t, "1", v)

	raw, ok := tree.Prop(n, "value")
	require.True(t, ok)
	require.Equal(t, []byte{'1', 0}, raw)

	p, ok := tree.PropU32(n, "permission")
	require.True(t, ok)
	require.EqualValues(t, 0o444, p)

	_, ok = tree.Prop(n, "missing")
	require.False(t, ok)
}

func TestTree_Encode(t *testing.T) {
	tree := New()
	n, err := tree.AddSubnode(0, "idme")
	require.NoError(t, err)
	require.NoError(t, tree.SetPropU32(n, "permission", 0x124))

	blob := tree.Encode()
	be := binary.BigEndian
	require.EqualValues(t, Magic, be.Uint32(blob[0:]))
	require.EqualValues(t, len(blob), be.Uint32(blob[4:]))
	require.EqualValues(t, version, be.Uint32(blob[20:]))

	offStruct := be.Uint32(blob[8:])
	offStrings := be.Uint32(blob[12:])
	sizeStrings := be.Uint32(blob[32:])
	sizeStruct := be.Uint32(blob[36:])
	require.Equal(t, offStruct+sizeStruct, offStrings)
	require.Equal(t, "permission\x00", string(blob[offStrings:offStrings+sizeStrings]))

	s := blob[offStruct : offStruct+sizeStruct]
	words := make([]uint32, 0, len(s)/4)
	for i := 0; i < len(s); i += 4 {
		words = append(words, be.Uint32(s[i:]))
	}
	// root: BEGIN "" ; idme: BEGIN "idme" PROP len=4 nameoff=0 value END ; END ; FDT_END
	require.Equal(t, []uint32{
		tokenBeginNode, 0,
		tokenBeginNode, be.Uint32([]byte("idme")), 0,
		tokenProp, 4, 0, 0x124,
		tokenEndNode,
		tokenEndNode,
		tokenEnd,
	}, words)
}
