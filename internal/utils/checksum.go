package utils

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/sassoftware/debpkgr/internal/models"
)

// BlockSize is the read size used when streaming files through the hashers.
const BlockSize = 64 * 1024

// Hasher feeds every write to MD5, SHA1 and SHA256 at once and counts bytes.
type Hasher struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	size   int64
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
	}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	h.md5.Write(p)
	h.sha1.Write(p)
	h.sha256.Write(p)
	h.size += int64(len(p))
	return len(p), nil
}

// Sum returns the digests of everything written so far.
func (h *Hasher) Sum() models.Hashes {
	return models.Hashes{
		MD5:    hex.EncodeToString(h.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(h.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(h.sha256.Sum(nil)),
		Size:   h.size,
	}
}

// HashReader streams r in BlockSize chunks through all hashes. Memory use
// does not depend on the input length.
func HashReader(r io.Reader) (models.Hashes, error) {
	h := NewHasher()
	buf := make([]byte, BlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Hashes{}, err
		}
	}
	return h.Sum(), nil
}

// CalculateChecksums calculates all checksums for a file in a single pass.
// The size is the number of bytes hashed, not a separate stat.
func CalculateChecksums(path string) (models.Hashes, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Hashes{}, err
	}
	defer f.Close()

	return HashReader(f)
}

// MD5Reader returns the hex MD5 of everything read from r.
func MD5Reader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, BlockSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
