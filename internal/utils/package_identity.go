package utils

import (
	"fmt"

	"github.com/sassoftware/debpkgr/internal/models"
)

// PackageIdentity returns the (name, version, architecture) key of a package
func PackageIdentity(pkg *models.Package) string {
	return fmt.Sprintf("%s:%s:%s", pkg.Name(), pkg.FullVersion(), pkg.Arch())
}

// Duplicate pairs two input archives carrying the same identity.
type Duplicate struct {
	First  *models.Package
	Second *models.Package
}

// FindDuplicates returns every package whose identity was already seen, in
// input order.
func FindDuplicates(packages []*models.Package) []Duplicate {
	seen := make(map[string]*models.Package)
	var dups []Duplicate
	for _, pkg := range packages {
		id := PackageIdentity(pkg)
		if first, ok := seen[id]; ok {
			dups = append(dups, Duplicate{First: first, Second: pkg})
			continue
		}
		seen[id] = pkg
	}
	return dups
}
