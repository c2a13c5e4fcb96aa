package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan recursively scans a directory for packages. Results are sorted by
// path so repeated scans feed the build in the same order.
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]ScannedPackage, error) {
	var packages []ScannedPackage

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Symlinked archives are followed; symlinked directories are not
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				logrus.Warnf("Skipping dangling link %s: %v", path, err)
				return nil
			}
			info = target
		}

		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		ok, err := s.IsPackage(path)
		if err != nil {
			logrus.Warnf("Failed to inspect %s: %v", path, err)
			return nil
		}
		if !ok {
			return nil
		}

		logrus.Debugf("Found package: %s", path)

		packages = append(packages, ScannedPackage{
			Path: path,
			Size: info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Path < packages[j].Path
	})

	logrus.Infof("Found %d packages in %s", len(packages), dir)
	return packages, nil
}

// IsPackage determines whether a file is a Debian package
func (s *FileSystemScanner) IsPackage(path string) (bool, error) {
	return IsDebianPackage(path)
}

// Expand resolves a mix of files and directories into package paths.
// Files are kept as given; directories are scanned.
func Expand(ctx context.Context, s Scanner, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		found, err := s.Scan(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			out = append(out, f.Path)
		}
	}
	return out, nil
}
