package scanner

import "context"

// ScannedPackage represents a package file found during scanning
type ScannedPackage struct {
	Path string
	Size int64
}

// Scanner interface for detecting and scanning packages
type Scanner interface {
	// Scan recursively scans a directory for Debian packages
	Scan(ctx context.Context, dir string) ([]ScannedPackage, error)

	// IsPackage reports whether a file is a Debian package
	IsPackage(path string) (bool, error)
}
