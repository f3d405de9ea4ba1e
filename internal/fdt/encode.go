package fdt

import (
	"bytes"
	"encoding/binary"
)

const (
	Magic = 0xd00dfeed

	tokenBeginNode = 1
	tokenEndNode   = 2
	tokenProp      = 3
	tokenEnd       = 9

	version        = 17
	lastCompatible = 16
	headerSize     = 40
	// one empty reserve map entry terminates the list
	rsvmapSize = 16
)

type encoder struct {
	structs bytes.Buffer
	strings bytes.Buffer
	offsets map[string]uint32
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.structs.Write(b[:])
}

func (e *encoder) pad() {
	for e.structs.Len()%4 != 0 {
		e.structs.WriteByte(0)
	}
}

func (e *encoder) stringOffset(name string) uint32 {
	if off, ok := e.offsets[name]; ok {
		return off
	}
	off := uint32(e.strings.Len())
	e.strings.WriteString(name)
	e.strings.WriteByte(0)
	e.offsets[name] = off
	return off
}

func (e *encoder) node(t *Tree, off int) {
	n := t.nodes[off]
	e.u32(tokenBeginNode)
	e.structs.WriteString(n.name)
	e.structs.WriteByte(0)
	e.pad()

	for _, p := range n.props {
		e.u32(tokenProp)
		e.u32(uint32(len(p.Value)))
		e.u32(e.stringOffset(p.Name))
		e.structs.Write(p.Value)
		e.pad()
	}
	for _, c := range n.children {
		e.node(t, c)
	}
	e.u32(tokenEndNode)
}

// Encode serializes the tree as a version 17 device tree blob
func (t *Tree) Encode() []byte {
	e := &encoder{offsets: make(map[string]uint32)}
	e.node(t, 0)
	e.u32(tokenEnd)

	offRsvmap := uint32(headerSize)
	offStruct := offRsvmap + rsvmapSize
	offStrings := offStruct + uint32(e.structs.Len())
	total := offStrings + uint32(e.strings.Len())

	out := make([]byte, total)
	be := binary.BigEndian
	be.PutUint32(out[0:], Magic)
	be.PutUint32(out[4:], total)
	be.PutUint32(out[8:], offStruct)
	be.PutUint32(out[12:], offStrings)
	be.PutUint32(out[16:], offRsvmap)
	be.PutUint32(out[20:], version)
	be.PutUint32(out[24:], lastCompatible)
	be.PutUint32(out[28:], 0) // boot_cpuid_phys
	be.PutUint32(out[32:], uint32(e.strings.Len()))
	be.PutUint32(out[36:], uint32(e.structs.Len()))

	copy(out[offStruct:], e.structs.Bytes())
	copy(out[offStrings:], e.strings.Bytes())
	return out
}
