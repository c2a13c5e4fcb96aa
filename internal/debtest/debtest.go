// Package debtest builds small, deterministic .deb archives for tests.
package debtest

import (
	"archive/tar"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

var epoch = time.Unix(1500000000, 0).UTC()

// Deb describes an archive to build. Zero values give a valid amd64
// package with one file.
type Deb struct {
	Package      string
	Version      string
	Architecture string
	Description  string
	Depends      string

	// Control replaces the generated control file when set.
	Control string

	// Files maps payload paths (without leading slash) to content.
	Files map[string]string

	// Compression applies to both members: "gz" (default), "xz", "lzma",
	// "zst", "bz2" or "none".
	Compression string

	// ControlMember and DataMember override the generated member names.
	ControlMember string
	DataMember    string

	// DebianBinary overrides the format-version member content.
	DebianBinary string

	// OmitMD5Sums leaves md5sums out of the control member.
	OmitMD5Sums bool

	// Scripts adds maintainer scripts (preinst, postrm, ...) to the control
	// member.
	Scripts map[string]string
}

func (d *Deb) defaults() {
	if d.Package == "" {
		d.Package = "hello"
	}
	if d.Version == "" {
		d.Version = "1.0-1"
	}
	if d.Architecture == "" {
		d.Architecture = "amd64"
	}
	if d.Description == "" {
		d.Description = "test package\n Extended description line one.\n .\n Line two."
	}
	if d.Files == nil {
		d.Files = map[string]string{
			"usr/bin/" + d.Package: "#!/bin/sh\necho " + d.Package + "\n",
		}
	}
	if d.Compression == "" {
		d.Compression = "gz"
	}
	if d.DebianBinary == "" {
		d.DebianBinary = "2.0\n"
	}
}

// ControlText returns the control file the archive will carry.
func (d *Deb) ControlText() string {
	d.defaults()
	if d.Control != "" {
		return d.Control
	}
	depends := ""
	if d.Depends != "" {
		depends = "Depends: " + d.Depends + "\n"
	}
	return fmt.Sprintf("Package: %s\nVersion: %s\nArchitecture: %s\nMaintainer: Test <test@example.com>\nInstalled-Size: 1\n%sSection: utils\nPriority: optional\nDescription: %s\n",
		d.Package, d.Version, d.Architecture, depends, d.Description)
}

// Filename returns name_version_arch.deb.
func (d *Deb) Filename() string {
	d.defaults()
	return fmt.Sprintf("%s_%s_%s.deb", d.Package, d.Version, d.Architecture)
}

// Bytes assembles the archive.
func (d *Deb) Bytes() ([]byte, error) {
	d.defaults()

	paths := make([]string, 0, len(d.Files))
	for p := range d.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var data []tarEntry
	var sums strings.Builder
	for _, p := range paths {
		body := d.Files[p]
		sum := md5.Sum([]byte(body))
		fmt.Fprintf(&sums, "%s  %s\n", hex.EncodeToString(sum[:]), p)
		data = append(data, tarEntry{name: "./" + p, body: body, mode: 0755})
	}

	control := []tarEntry{{name: "./control", body: d.ControlText(), mode: 0644}}
	if !d.OmitMD5Sums {
		control = append(control, tarEntry{name: "./md5sums", body: sums.String(), mode: 0644})
	}
	scripts := make([]string, 0, len(d.Scripts))
	for name := range d.Scripts {
		scripts = append(scripts, name)
	}
	sort.Strings(scripts)
	for _, name := range scripts {
		control = append(control, tarEntry{name: "./" + name, body: d.Scripts[name], mode: 0755})
	}

	controlTar, err := buildTar(control, d.Compression)
	if err != nil {
		return nil, err
	}
	dataTar, err := buildTar(data, d.Compression)
	if err != nil {
		return nil, err
	}

	ext := ""
	if d.Compression != "none" {
		ext = "." + d.Compression
	}
	controlName := d.ControlMember
	if controlName == "" {
		controlName = "control.tar" + ext
	}
	dataName := d.DataMember
	if dataName == "" {
		dataName = "data.tar" + ext
	}

	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	if err := w.WriteGlobalHeader(); err != nil {
		return nil, err
	}
	members := []struct {
		name string
		body []byte
	}{
		{"debian-binary", []byte(d.DebianBinary)},
		{controlName, controlTar},
		{dataName, dataTar},
	}
	for _, m := range members {
		hdr := &ar.Header{Name: m.name, Size: int64(len(m.body)), Mode: 0644, ModTime: epoch}
		if err := w.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := w.Write(m.body); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Write stores the archive in dir under its standard name and returns the
// path.
func Write(t testing.TB, dir string, d Deb) string {
	t.Helper()
	return WriteAs(t, filepath.Join(dir, d.Filename()), d)
}

// WriteAs stores the archive at path.
func WriteAs(t testing.TB, path string, d Deb) string {
	t.Helper()
	data, err := d.Bytes()
	if err != nil {
		t.Fatalf("building %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

type tarEntry struct {
	name string
	body string
	mode int64
}

func buildTar(entries []tarEntry, compression string) ([]byte, error) {
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	dirs := make(map[string]bool)
	for _, e := range entries {
		for dir := filepath.Dir(e.name); dir != "." && dir != "/" && !dirs[dir]; dir = filepath.Dir(dir) {
			dirs[dir] = true
		}
	}
	var dirNames []string
	for dir := range dirs {
		dirNames = append(dirNames, dir)
	}
	sort.Strings(dirNames)
	for _, dir := range dirNames {
		hdr := &tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0755, ModTime: epoch}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: tar.TypeReg, Mode: e.mode, Size: int64(len(e.body)), ModTime: epoch}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := io.WriteString(tw, e.body); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return compress(raw.Bytes(), compression)
}

func compress(data []byte, compression string) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch compression {
	case "none":
		return data, nil
	case "gz":
		w = gzip.NewWriter(&buf)
	case "xz":
		w, err = xz.NewWriter(&buf)
	case "lzma":
		w, err = lzma.NewWriter(&buf)
	case "zst":
		w, err = zstd.NewWriter(&buf)
	case "bz2":
		w, err = bzip2.NewWriter(&buf, nil)
	default:
		// Unknown codecs are written raw; the member name carries the claim.
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
