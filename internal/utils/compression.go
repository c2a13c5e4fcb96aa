package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Codec names a compression format by its file extension, without the dot.
type Codec string

const (
	CodecNone  Codec = ""
	CodecGzip  Codec = "gz"
	CodecXz    Codec = "xz"
	CodecLzma  Codec = "lzma"
	CodecZstd  Codec = "zst"
	CodecBzip2 Codec = "bz2"
)

// UnsupportedCodecError is returned for extensions no decoder exists for.
type UnsupportedCodecError struct {
	Codec Codec
}

func (e *UnsupportedCodecError) Error() string {
	return fmt.Sprintf("unsupported compression %q", string(e.Codec))
}

// NewDecompressor wraps r with the decoder for codec. Closing the result
// releases decoder resources but not r.
func NewDecompressor(codec Codec, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case CodecXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case CodecLzma:
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(lr), nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CodecBzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, err
		}
		return br, nil
	default:
		return nil, &UnsupportedCodecError{Codec: codec}
	}
}

// Compress encodes data with codec. Only codecs used for index files are
// supported for writing.
func Compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecGzip:
		return GzipCompress(data)
	case CodecXz:
		return XzCompress(data)
	case CodecBzip2:
		return Bzip2Compress(data)
	default:
		return nil, &UnsupportedCodecError{Codec: codec}
	}
}

// GzipCompress compresses data using gzip. The header carries no name or
// timestamp so identical input gives identical output.
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// XzCompress compresses data using xz
func XzCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Bzip2Compress compresses data using bzip2 at the highest level
func Bzip2Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress decodes data with codec.
func Decompress(codec Codec, data []byte) ([]byte, error) {
	r, err := NewDecompressor(codec, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
