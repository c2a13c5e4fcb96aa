package deb

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/utils"
	"github.com/sirupsen/logrus"
	"pault.ag/go/debian/version"
)

// BuildIndices assigns packages to the Packages index of every declared
// architecture. Architecture "all" packages appear in each index.
// Duplicate (name, version, architecture) tuples are rejected.
func BuildIndices(packages []*models.Package, architectures []string) (map[string]*models.IndexDocument, error) {
	if dups := utils.FindDuplicates(packages); len(dups) > 0 {
		d := dups[0]
		return nil, models.NewError(models.ErrDuplicatePackage, models.StageIndex, d.Second.Path,
			fmt.Errorf("%s already provided by %s", d.Second.Nvra(), d.First.Path))
	}

	declared := make(map[string]bool, len(architectures))
	for _, arch := range architectures {
		declared[arch] = true
	}

	byArch := make(map[string][]*models.Package, len(architectures))
	for _, pkg := range packages {
		arch := pkg.Arch()
		switch {
		case arch == models.ArchAll:
			for _, a := range architectures {
				byArch[a] = append(byArch[a], pkg)
			}
		case declared[arch]:
			byArch[arch] = append(byArch[arch], pkg)
		default:
			logrus.Warnf("Skipping %s: architecture %s is not part of the repository", pkg.Path, arch)
		}
	}

	docs := make(map[string]*models.IndexDocument, len(architectures))
	for _, arch := range architectures {
		selected := byArch[arch]
		SortPackages(selected)

		doc := &models.IndexDocument{Architecture: arch}
		for _, pkg := range selected {
			doc.Stanzas = append(doc.Stanzas, pkg.Record())
		}
		docs[arch] = doc
	}
	return docs, nil
}

// SortPackages orders packages by name, then Debian version, then
// architecture and file name so that index output is reproducible.
func SortPackages(packages []*models.Package) {
	sort.SliceStable(packages, func(i, j int) bool {
		a, b := packages[i], packages[j]
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		if c := compareVersions(a.FullVersion(), b.FullVersion()); c != 0 {
			return c < 0
		}
		if a.Arch() != b.Arch() {
			return a.Arch() < b.Arch()
		}
		return a.Filename < b.Filename
	})
}

func compareVersions(a, b string) int {
	if a == b {
		return 0
	}
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA == nil && errB == nil {
		if c := version.Compare(va, vb); c != 0 {
			return c
		}
	}
	if a < b {
		return -1
	}
	return 1
}

// IndexDir returns the dist-relative directory of an architecture index.
func IndexDir(component, arch string) string {
	return path.Join(component, fmt.Sprintf("binary-%s", arch))
}

// WriteIndex writes Packages and its compressed variants for one
// architecture under distDir. It returns the dist-relative artifact paths.
func WriteIndex(distDir, component string, doc *models.IndexDocument, compressions []string) ([]string, error) {
	rel := path.Join(IndexDir(component, doc.Architecture), "Packages")
	data := doc.Bytes()

	writeErr := func(p string, err error) error {
		return models.NewError(models.ErrWrite, models.StageIndex, p, err)
	}

	plain := filepath.Join(distDir, filepath.FromSlash(rel))
	if err := utils.WriteFileAtomic(plain, data, 0644); err != nil {
		return nil, writeErr(plain, fmt.Errorf("failed to write Packages: %w", err))
	}
	artifacts := []string{rel}

	for _, c := range compressions {
		compressed, err := utils.Compress(utils.Codec(c), data)
		if err != nil {
			return nil, writeErr(plain, fmt.Errorf("failed to compress Packages: %w", err))
		}
		crel := rel + "." + c
		cpath := filepath.Join(distDir, filepath.FromSlash(crel))
		if err := utils.WriteFileAtomic(cpath, compressed, 0644); err != nil {
			return nil, writeErr(cpath, fmt.Errorf("failed to write Packages.%s: %w", c, err))
		}
		artifacts = append(artifacts, crel)
	}

	// Variants dropped from the configuration would otherwise go stale
	for _, c := range models.IndexCompressions {
		if slices.Contains(compressions, c) {
			continue
		}
		stale := plain + "." + c
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, writeErr(stale, err)
		}
	}

	logrus.Infof("Generated Packages files for %s (%d packages)", doc.Architecture, len(doc.Stanzas))
	return artifacts, nil
}
