package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIsDebianPackage(t *testing.T) {
	dir := t.TempDir()

	byExt := writeFile(t, filepath.Join(dir, "a.deb"), "garbage")
	byMagic := writeFile(t, filepath.Join(dir, "renamed"), "!<arch>\ndebian-binary   ")
	otherAr := writeFile(t, filepath.Join(dir, "lib.a"), "!<arch>\nfoo.o/")
	short := writeFile(t, filepath.Join(dir, "short"), "!<")

	for path, want := range map[string]bool{byExt: true, byMagic: true, otherAr: false, short: false} {
		got, err := IsDebianPackage(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
}

func TestScanSortedAndRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z", "b_1.0_amd64.deb"), "x")
	writeFile(t, filepath.Join(dir, "a_1.0_amd64.deb"), "x")
	writeFile(t, filepath.Join(dir, "README"), "not a package")

	found, err := NewFileSystemScanner().Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, filepath.Join(dir, "a_1.0_amd64.deb"), found[0].Path)
	assert.Equal(t, filepath.Join(dir, "z", "b_1.0_amd64.deb"), found[1].Path)
	assert.EqualValues(t, 1, found[0].Size)
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.deb"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSystemScanner().Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "explicit.bin"), "x")
	writeFile(t, filepath.Join(dir, "pool", "c.deb"), "x")

	out, err := Expand(context.Background(), NewFileSystemScanner(), []string{file, filepath.Join(dir, "pool")})
	require.NoError(t, err)
	assert.Equal(t, []string{file, filepath.Join(dir, "pool", "c.deb")}, out)

	_, err = Expand(context.Background(), NewFileSystemScanner(), []string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestScanFollowsLinkedPackages(t *testing.T) {
	src := writeFile(t, filepath.Join(t.TempDir(), "real.deb"), "xyz")
	dir := t.TempDir()
	require.NoError(t, os.Symlink(src, filepath.Join(dir, "linked.deb")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.deb"), filepath.Join(dir, "dangling.deb")))
	require.NoError(t, os.Symlink(filepath.Dir(src), filepath.Join(dir, "subdir")))

	found, err := NewFileSystemScanner().Scan(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(dir, "linked.deb"), found[0].Path)
	assert.EqualValues(t, 3, found[0].Size)
}
