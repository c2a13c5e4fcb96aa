package deb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/utils"
)

// checksumSections lists the Release sections and the digest each carries.
var checksumSections = []struct {
	name   string
	digest func(*models.Hashes) *string
}{
	{"MD5Sum", func(h *models.Hashes) *string { return &h.MD5 }},
	{"SHA1", func(h *models.Hashes) *string { return &h.SHA1 }},
	{"SHA256", func(h *models.Hashes) *string { return &h.SHA256 }},
}

// ReadRelease parses a Release file back into entries. Sections must agree
// on the set of paths and their sizes.
func ReadRelease(r io.Reader) ([]models.ReleaseEntry, error) {
	fields, err := ParseParagraphs(r)
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 {
		return nil, fmt.Errorf("expected one paragraph, found %d", len(fields))
	}
	release := fields[0]

	var order []string
	entries := make(map[string]*models.Hashes)
	for _, cs := range checksumSections {
		section := cs.name
		body, ok := release.Get(section)
		if !ok {
			return nil, fmt.Errorf("missing %s section", section)
		}
		seen := 0
		for _, line := range strings.Split(body, "\n") {
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			if len(parts) != 3 {
				return nil, fmt.Errorf("%s: malformed line %q", section, line)
			}
			size, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad size in %q", section, line)
			}
			h, ok := entries[parts[2]]
			if !ok {
				h = &models.Hashes{Size: size}
				entries[parts[2]] = h
				order = append(order, parts[2])
			} else if h.Size != size {
				return nil, fmt.Errorf("%s: size of %s disagrees with another section", section, parts[2])
			}
			*cs.digest(h) = parts[0]
			seen++
		}
		if seen != len(entries) {
			return nil, fmt.Errorf("%s: lists %d files, other sections list %d", section, seen, len(entries))
		}
	}

	out := make([]models.ReleaseEntry, 0, len(order))
	for _, p := range order {
		out = append(out, models.ReleaseEntry{Path: p, Hashes: *entries[p]})
	}
	return out, nil
}

// Discrepancy is a Release entry that no longer matches the file on disk.
type Discrepancy struct {
	Path   string
	Reason string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Reason)
}

// VerifyRelease recomputes every artifact a Release file lists and reports
// the differences.
func VerifyRelease(distDir string) ([]Discrepancy, error) {
	f, err := os.Open(filepath.Join(distDir, "Release"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ReadRelease(f)
	if err != nil {
		return nil, fmt.Errorf("parsing Release: %w", err)
	}

	var out []Discrepancy
	for _, e := range entries {
		actual, err := utils.CalculateChecksums(filepath.Join(distDir, filepath.FromSlash(e.Path)))
		if err != nil {
			out = append(out, Discrepancy{Path: e.Path, Reason: err.Error()})
			continue
		}
		if actual != e.Hashes {
			out = append(out, Discrepancy{Path: e.Path, Reason: "checksum or size mismatch"})
		}
	}
	return out, nil
}

// ReadIndex reads a Packages file, decompressing by extension.
func ReadIndex(path string) ([]*models.ControlFields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	codec := utils.Codec(strings.TrimPrefix(filepath.Ext(path), "."))
	if filepath.Base(path) == "Packages" {
		codec = utils.CodecNone
	}
	r, err := utils.NewDecompressor(codec, f)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ParseParagraphs(r)
}

// VerifyPool checks that every stanza of an index points at a pool file
// with the recorded size and SHA256.
func VerifyPool(outputDir, indexPath string) ([]Discrepancy, error) {
	stanzas, err := ReadIndex(indexPath)
	if err != nil {
		return nil, err
	}

	var out []Discrepancy
	for _, s := range stanzas {
		name := s.Value(models.FieldFilename)
		if name == "" {
			out = append(out, Discrepancy{Path: s.Value(models.FieldPackage), Reason: "no Filename field"})
			continue
		}
		actual, err := utils.CalculateChecksums(filepath.Join(outputDir, filepath.FromSlash(name)))
		if err != nil {
			out = append(out, Discrepancy{Path: name, Reason: err.Error()})
			continue
		}
		if strconv.FormatInt(actual.Size, 10) != s.Value(models.FieldSize) || actual.SHA256 != s.Value(models.FieldSHA256) {
			out = append(out, Discrepancy{Path: name, Reason: "pool file does not match index"})
		}
	}
	return out, nil
}
