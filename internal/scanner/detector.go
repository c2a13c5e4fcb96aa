package scanner

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Debian packages start with "!<arch>\ndebian"
var debMagic = []byte("!<arch>\ndebian")

// IsDebianPackage reports whether path looks like a .deb, by magic bytes or
// extension. Files with a .deb extension but foreign content still match so
// the parser can report them.
func IsDebianPackage(path string) (bool, error) {
	if filepath.Ext(path) == ".deb" {
		return true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(debMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.Equal(header[:n], debMagic), nil
}
