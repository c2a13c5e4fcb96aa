package deb

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/utils"
)

// GenerateRelease describes the given dist-relative artifacts. Every file is
// re-read from disk; size and the three digests of an artifact come from one
// pass, and all checksum sections render from the same entry list.
func GenerateRelease(desc *models.RepositoryDescriptor, distDir string, artifacts []string, now time.Time) (*models.ReleaseDocument, error) {
	paths := append([]string(nil), artifacts...)
	sort.Strings(paths)

	entries := make([]models.ReleaseEntry, 0, len(paths))
	for i, p := range paths {
		if i > 0 && paths[i-1] == p {
			continue
		}
		full := filepath.Join(distDir, filepath.FromSlash(p))
		hashes, err := utils.CalculateChecksums(full)
		if err != nil {
			return nil, models.NewError(models.ErrIO, models.StageRelease, full,
				fmt.Errorf("failed to calculate checksum for %s: %w", p, err))
		}
		entries = append(entries, models.ReleaseEntry{Path: p, Hashes: hashes})
	}

	return &models.ReleaseDocument{
		Origin:        desc.Origin,
		Label:         desc.Label,
		Suite:         desc.Suite,
		Codename:      desc.Distribution,
		Version:       desc.Version,
		Date:          now.UTC(),
		Architectures: desc.Architectures,
		Components:    []string{desc.Component},
		Description:   desc.Description,
		Entries:       entries,
	}, nil
}

// WriteRelease writes dists/<dist>/Release and returns its path.
func WriteRelease(distDir string, doc *models.ReleaseDocument) (string, error) {
	releasePath := filepath.Join(distDir, "Release")
	if err := utils.WriteFileAtomic(releasePath, doc.Bytes(), 0644); err != nil {
		return "", models.NewError(models.ErrWrite, models.StageRelease, releasePath,
			fmt.Errorf("failed to write Release: %w", err))
	}
	return releasePath, nil
}
