package deb

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(archs ...string) *models.RepositoryDescriptor {
	d := &models.RepositoryDescriptor{
		Name:          "test",
		Distribution:  "stable",
		Description:   "Test repository",
		Architectures: archs,
	}
	d.Normalize()
	return d
}

func writeIndices(t *testing.T, distDir string, packages []*models.Package, archs []string) []string {
	t.Helper()
	docs, err := BuildIndices(packages, archs)
	require.NoError(t, err)

	var artifacts []string
	for _, arch := range archs {
		written, err := WriteIndex(distDir, "main", docs[arch], []string{"gz"})
		require.NoError(t, err)
		artifacts = append(artifacts, written...)
	}
	return artifacts
}

func TestGenerateReleaseMatchesDisk(t *testing.T) {
	distDir := t.TempDir()
	archs := []string{"amd64", "i386"}
	artifacts := writeIndices(t, distDir, []*models.Package{
		testPackage("a", "1.0", "amd64"),
		testPackage("c", "1.0", "all"),
	}, archs)

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err := GenerateRelease(testDescriptor(archs...), distDir, artifacts, now)
	require.NoError(t, err)

	releasePath, err := WriteRelease(distDir, doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(distDir, "Release"), releasePath)

	data, err := os.ReadFile(releasePath)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Origin: Stable\n")
	assert.Contains(t, text, "Suite: stable\n")
	assert.Contains(t, text, "Codename: stable\n")
	assert.Contains(t, text, "Date: Tue, 02 Jan 2024 03:04:05 +0000\n")
	assert.Contains(t, text, "Architectures: amd64 i386\n")
	assert.Contains(t, text, "Components: main\n")
	assert.Contains(t, text, "Description: Test repository\n")

	entries, err := ReadRelease(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Path, "main/binary-"), e.Path)
	}

	discrepancies, err := VerifyRelease(distDir)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestGenerateReleaseSortsAndDeduplicates(t *testing.T) {
	distDir := t.TempDir()
	artifacts := writeIndices(t, distDir, nil, []string{"amd64"})
	reversed := []string{artifacts[1], artifacts[0], artifacts[1]}

	doc, err := GenerateRelease(testDescriptor("amd64"), distDir, reversed, time.Now())
	require.NoError(t, err)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "main/binary-amd64/Packages", doc.Entries[0].Path)
	assert.Equal(t, "main/binary-amd64/Packages.gz", doc.Entries[1].Path)
	assert.Zero(t, doc.Entries[0].Hashes.Size)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", doc.Entries[0].Hashes.MD5)
}

func TestGenerateReleaseMissingArtifact(t *testing.T) {
	_, err := GenerateRelease(testDescriptor("amd64"), t.TempDir(), []string{"main/binary-amd64/Packages"}, time.Now())
	require.Error(t, err)
	assert.True(t, models.IsType(err, models.ErrIO), "got %v", err)
}

func TestVerifyReleaseDetectsChanges(t *testing.T) {
	distDir := t.TempDir()
	artifacts := writeIndices(t, distDir, []*models.Package{testPackage("a", "1.0", "amd64")}, []string{"amd64"})

	doc, err := GenerateRelease(testDescriptor("amd64"), distDir, artifacts, time.Now())
	require.NoError(t, err)
	_, err = WriteRelease(distDir, doc)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(distDir, "main", "binary-amd64", "Packages"), []byte("tampered\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(distDir, "main", "binary-amd64", "Packages.gz")))

	discrepancies, err := VerifyRelease(distDir)
	require.NoError(t, err)
	require.Len(t, discrepancies, 2)
	assert.Equal(t, "main/binary-amd64/Packages", discrepancies[0].Path)
	assert.Equal(t, "main/binary-amd64/Packages.gz", discrepancies[1].Path)
}
