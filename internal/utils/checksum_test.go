package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateChecksumsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	h, err := CalculateChecksums(path)
	require.NoError(t, err)

	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", h.MD5)
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", h.SHA1)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.SHA256)
	assert.Zero(t, h.Size)
}

func TestCalculateChecksumsKnownInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	h, err := CalculateChecksums(path)
	require.NoError(t, err)

	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", h.MD5)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", h.SHA1)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.SHA256)
	assert.EqualValues(t, 3, h.Size)
}

func TestHashReaderSpansBlocks(t *testing.T) {
	data := []byte(strings.Repeat("0123456789abcdef", BlockSize/8+3))

	streamed, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)

	h := NewHasher()
	h.Write(data)
	assert.Equal(t, h.Sum(), streamed)
	assert.EqualValues(t, len(data), streamed.Size)

	md5sum, err := MD5Reader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, streamed.MD5, md5sum)
}

func TestCalculateChecksumsMissingFile(t *testing.T) {
	_, err := CalculateChecksums(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
