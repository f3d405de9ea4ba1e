package idme

import (
	"bytes"
	"fmt"
)

type VersionKind int

const (
	Version1p2 VersionKind = iota
	Version2p0
	Version2p1
	Version3p0
)

const (
	Version2p0String = "2.0"
	Version2p1String = "2.1"

	DefaultVersion = Version2p1String
	// AtagVersion header version of the flat export, independent of the store version
	AtagVersion = Version2p0String
)

type VersionEntry struct {
	Version string
	Kind    VersionKind
}

// versionTable every known layout, oldest first
var versionTable = []VersionEntry{
	{"1.2", Version1p2},
	{"2.0", Version2p0},
	{"2.1", Version2p1},
	{"3.0", Version3p0},
}

func Versions() []VersionEntry {
	out := make([]VersionEntry, len(versionTable))
	copy(out, versionTable)
	return out
}

// LookupVersion matches a stored version field against the table.
// The field matches an entry when it starts with the entry string.
func LookupVersion(field []byte) (VersionEntry, bool) {
	for _, e := range versionTable {
		if bytes.HasPrefix(field, []byte(e.Version)) {
			return e, true
		}
	}
	return VersionEntry{}, false
}

// MatchVersionArg resolves a console argument: v must be a prefix of an entry.
func MatchVersionArg(v string) (VersionEntry, bool) {
	if v == "" || len(v) > VersionSize {
		return VersionEntry{}, false
	}
	for _, e := range versionTable {
		if len(e.Version) >= len(v) && e.Version[:len(v)] == v {
			return e, true
		}
	}
	return VersionEntry{}, false
}

// SelectCodec binds the codec for a stored version field.
// Only the 2.x family is implemented; older images stay frozen, newer ones are
// not implemented yet and anything unmatched is unbound as well.
func SelectCodec(field []byte) Codec {
	e, ok := LookupVersion(field)
	if !ok {
		return unsupportedCodec{reason: fmt.Sprintf("unknown version %q", cString(field))}
	}
	switch {
	case e.Kind == Version2p0 || e.Kind == Version2p1:
		return v2Codec{}
	case e.Kind < Version2p0:
		return unsupportedCodec{reason: "old version " + e.Version}
	default:
		return unsupportedCodec{reason: "newer version " + e.Version + " not implemented"}
	}
}
