package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte("Package: foo\nVersion: 1.0\n\n"), 100)

	for _, codec := range []Codec{CodecGzip, CodecXz, CodecBzip2} {
		t.Run(string(codec), func(t *testing.T) {
			compressed, err := Compress(codec, data)
			require.NoError(t, err)
			assert.NotEqual(t, data, compressed)

			out, err := Decompress(codec, compressed)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestGzipCompressIsDeterministic(t *testing.T) {
	data := []byte("Package: foo\n")

	a, err := GzipCompress(data)
	require.NoError(t, err)
	b, err := GzipCompress(data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnsupportedCodec(t *testing.T) {
	_, err := NewDecompressor(Codec("rar"), bytes.NewReader(nil))
	var unsupported *UnsupportedCodecError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, Codec("rar"), unsupported.Codec)

	_, err = Compress(CodecZstd, []byte("x"))
	assert.ErrorAs(t, err, &unsupported)
}

func TestDecompressNone(t *testing.T) {
	out, err := Decompress(CodecNone, []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}
