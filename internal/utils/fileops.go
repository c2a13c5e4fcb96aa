package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicFile is a temporary file that becomes visible at its final path
// only on Commit. Abort, or Commit failing, removes the temporary file.
type AtomicFile struct {
	*os.File
	path string
	perm os.FileMode
	done bool
}

// CreateAtomic opens a temporary file beside path, creating parent
// directories as needed.
func CreateAtomic(path string, perm os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{File: f, path: path, perm: perm}, nil
}

// Commit flushes the temporary file and renames it over the final path.
func (a *AtomicFile) Commit() error {
	if a.done {
		return fmt.Errorf("%s: already finished", a.path)
	}
	a.done = true
	tmp := a.Name()

	err := a.Sync()
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, a.perm)
	}
	if err == nil {
		err = os.Rename(tmp, a.path)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can
// be deferred unconditionally.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.Close()
	os.Remove(a.Name())
}

// WriteFileAtomic writes data to path through a temporary file and rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, perm, bytes.NewReader(data))
}

// CopyFile copies a file from src to dst atomically
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	return writeAtomic(dst, 0644, srcFile)
}

func writeAtomic(path string, perm os.FileMode, r io.Reader) error {
	af, err := CreateAtomic(path, perm)
	if err != nil {
		return err
	}
	defer af.Abort()

	if _, err := io.CopyBuffer(af, r, make([]byte, BlockSize)); err != nil {
		return err
	}
	return af.Commit()
}

// EnsureDir ensures a directory exists, creating it if necessary
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// ShouldCopyPackage reports whether src must be copied to dst. The copy is
// skipped when both names refer to the same file, or when dst already holds
// content with the expected SHA256.
func ShouldCopyPackage(src, dst, sha256 string) (bool, error) {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return false, err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return false, err
	}
	if srcAbs == dstAbs {
		return false, nil
	}
	// A link left by a symlinked pool is replaced with a real copy
	if li, err := os.Lstat(dstAbs); err == nil && li.Mode()&os.ModeSymlink != 0 {
		return true, nil
	}

	srcInfo, err := os.Stat(srcAbs)
	if err != nil {
		return false, fmt.Errorf("cannot stat source: %w", err)
	}
	dstInfo, err := os.Stat(dstAbs)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("cannot stat destination: %w", err)
	}
	if os.SameFile(srcInfo, dstInfo) {
		return false, nil
	}
	if srcInfo.Size() != dstInfo.Size() {
		return true, nil
	}

	existing, err := CalculateChecksums(dstAbs)
	if err != nil {
		// Unreadable destination, overwrite it
		return true, nil
	}
	return existing.SHA256 != sha256, nil
}

// ShouldLinkPackage reports whether dst must be (re)pointed at target.
func ShouldLinkPackage(target, dst string) bool {
	current, err := os.Readlink(dst)
	return err != nil || current != target
}

// SymlinkAtomic points dst at target, replacing whatever dst held.
func SymlinkAtomic(target, dst string) error {
	dir := filepath.Dir(dst)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.link-%d", filepath.Base(dst), os.Getpid()))
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
