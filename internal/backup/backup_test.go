package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func image(n int) []byte {
	b := make([]byte, n)
	copy(b, "beefdeed2.1\x00")
	for i := 64; i < n; i += 7 {
		b[i] = byte(i)
	}
	return b
}

func TestDump(t *testing.T) {
	img := image(5120)

	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteDump(&buf, img, compress))
		if compress {
			require.True(t, bytes.HasPrefix(buf.Bytes(), xzMagic))
			require.Less(t, buf.Len(), len(img))
		} else {
			require.Equal(t, img, buf.Bytes())
		}

		out, err := ReadDump(bytes.NewReader(buf.Bytes()), len(img))
		require.NoError(t, err)
		require.Equal(t, img, out)
	}
}

func TestReadDump_Size(t *testing.T) {
	_, err := ReadDump(bytes.NewReader(image(100)), 5120)
	require.ErrorIs(t, err, ErrSize)

	_, err = ReadDump(bytes.NewReader(image(6000)), 5120)
	require.ErrorIs(t, err, ErrSize)

	var buf bytes.Buffer
	require.NoError(t, WriteDump(&buf, image(4000), true))
	_, err = ReadDump(&buf, 5120)
	require.ErrorIs(t, err, ErrSize)

	_, err = ReadDump(bytes.NewReader(nil), 5120)
	require.ErrorIs(t, err, ErrSize)
}
