package deb

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	arMagic            = "!<arch>\n"
	memberDebianBinary = "debian-binary"
	memberControl      = "control.tar"
	memberData         = "data.tar"

	controlFile = "control"
	md5sumsFile = "md5sums"
)

// ParsePackage parses a .deb file and extracts its control fields, payload
// manifest and whole-file digests.
func ParsePackage(path string) (*models.Package, error) {
	parseErr := func(t models.ErrorType, err error) error {
		return models.NewError(t, models.StageParse, path, err)
	}

	// Calculate checksums
	hashes, err := utils.CalculateChecksums(path)
	if err != nil {
		return nil, parseErr(models.ErrIO, fmt.Errorf("failed to calculate checksums: %w", err))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, parseErr(models.ErrIO, err)
	}
	defer f.Close()

	meta, files, err := readArchive(f)
	if err != nil {
		var re *models.RepoError
		if errors.As(err, &re) {
			re.Path = path
			return nil, re
		}
		return nil, parseErr(models.ErrArchiveFormat, err)
	}

	relations, err := models.ParseRelations(meta.control)
	if err != nil {
		return nil, parseErr(models.ErrArchiveFormat, err)
	}

	logrus.Debugf("Parsed %s: %d control fields, %d files", path, meta.control.Len(), len(files))

	return &models.Package{
		Control:   meta.control,
		Hashes:    hashes,
		Files:     files,
		Relations: relations,
		Scripts:   meta.scripts,
		Path:      path,
	}, nil
}

// controlMember is what the control tarball contributes to a package.
type controlMember struct {
	control *models.ControlFields
	md5sums map[string]string
	scripts map[string]string
}

// readArchive walks the ar members of a .deb. The control member precedes
// the data member, so md5sums is known before the payload is enumerated.
func readArchive(r io.Reader) (*controlMember, []models.FileEntry, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(arMagic))
	if err != nil || string(magic) != arMagic {
		return nil, nil, fmt.Errorf("not an ar archive")
	}

	var (
		meta       *controlMember
		files      []models.FileEntry
		sawBinary  bool
		sawData    bool
		memberSeen int
	)

	arR := ar.NewReader(br)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading ar header: %w", err)
		}
		memberSeen++

		name := strings.TrimRight(strings.TrimSpace(header.Name), "/")
		switch {
		case name == memberDebianBinary:
			if memberSeen != 1 {
				return nil, nil, fmt.Errorf("%s is not the first member", memberDebianBinary)
			}
			if err := checkFormatVersion(arR); err != nil {
				return nil, nil, err
			}
			sawBinary = true

		case strings.HasPrefix(name, memberControl):
			if !sawBinary {
				return nil, nil, fmt.Errorf("%s precedes %s", name, memberDebianBinary)
			}
			meta, err = readControlMember(name, arR)
			if err != nil {
				return nil, nil, err
			}

		case strings.HasPrefix(name, memberData):
			if meta == nil {
				return nil, nil, fmt.Errorf("%s precedes the control member", name)
			}
			files, err = readDataMember(name, arR, meta.md5sums)
			if err != nil {
				return nil, nil, err
			}
			sawData = true

		case strings.HasPrefix(name, "_"):
			// Reserved for additions; dpkg skips these
			logrus.Debugf("Skipping ar member %s", name)

		default:
			return nil, nil, fmt.Errorf("unexpected ar member %q", name)
		}
	}

	if !sawBinary {
		return nil, nil, fmt.Errorf("%s member not found", memberDebianBinary)
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("control member not found")
	}
	if !sawData {
		return nil, nil, fmt.Errorf("data member not found")
	}
	return meta, files, nil
}

func checkFormatVersion(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, 64))
	if err != nil {
		return fmt.Errorf("reading %s: %w", memberDebianBinary, err)
	}
	v := strings.TrimSpace(string(data))
	if !strings.HasPrefix(v, "2.") {
		return fmt.Errorf("unsupported package format version %q", v)
	}
	return nil
}

// memberCodec maps "control.tar.xz" style names to their codec.
func memberCodec(name, base string) (utils.Codec, error) {
	ext := strings.TrimPrefix(name, base)
	if ext == "" {
		return utils.CodecNone, nil
	}
	codec := utils.Codec(strings.TrimPrefix(ext, "."))
	switch codec {
	case utils.CodecGzip, utils.CodecXz, utils.CodecLzma, utils.CodecZstd, utils.CodecBzip2:
		return codec, nil
	}
	return "", models.NewError(models.ErrUnsupportedCompression, models.StageParse, "",
		fmt.Errorf("member %s uses unsupported compression %q", name, string(codec)))
}

func openTar(name, base string, r io.Reader) (*tar.Reader, io.Closer, error) {
	codec, err := memberCodec(name, base)
	if err != nil {
		return nil, nil, err
	}
	dr, err := utils.NewDecompressor(codec, r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return tar.NewReader(dr), dr, nil
}

func readControlMember(name string, r io.Reader) (*controlMember, error) {
	tr, closer, err := openTar(name, memberControl, r)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	meta := &controlMember{}
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if th.Typeflag != tar.TypeReg {
			continue
		}

		member := path.Clean(strings.TrimPrefix(th.Name, "./"))
		switch {
		case member == controlFile:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("reading control: %w", err)
			}
			meta.control, err = ParseControl(data)
			if err != nil {
				return nil, fmt.Errorf("parsing control: %w", err)
			}
		case member == md5sumsFile:
			meta.md5sums, err = parseMD5Sums(tr)
			if err != nil {
				return nil, fmt.Errorf("parsing md5sums: %w", err)
			}
		case slices.Contains(models.MaintainerScripts, member):
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", member, err)
			}
			if meta.scripts == nil {
				meta.scripts = make(map[string]string)
			}
			meta.scripts[member] = string(data)
		}
	}

	if meta.control == nil {
		return nil, fmt.Errorf("control file not found in %s", name)
	}
	if err := meta.control.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

// readDataMember lists the payload without extracting it. Bodies are only
// read when md5sums does not already cover a file.
func readDataMember(name string, r io.Reader, md5sums map[string]string) ([]models.FileEntry, error) {
	tr, closer, err := openTar(name, memberData, r)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var files []models.FileEntry
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if th.Typeflag != tar.TypeReg && th.Typeflag != tar.TypeLink {
			continue
		}

		p := normalizePath(th.Name)
		sum, ok := md5sums[p]
		if !ok && th.Typeflag == tar.TypeReg {
			sum, err = utils.MD5Reader(tr)
			if err != nil {
				return nil, fmt.Errorf("hashing %s: %w", p, err)
			}
		}
		files = append(files, models.FileEntry{Path: p, MD5: sum})
	}

	models.SortFiles(files)
	return files, nil
}

func normalizePath(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// ParseControl parses a Debian control file. Only the first paragraph is
// used.
func ParseControl(data []byte) (*models.ControlFields, error) {
	paragraphs, err := ParseParagraphs(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(paragraphs) == 0 {
		return models.NewControlFields(), nil
	}
	return paragraphs[0], nil
}

// ParseParagraphs reads blank-line separated deb822 paragraphs. Continuation
// lines are joined to their field with "\n" and keep their leading
// indentation, so writing a paragraph back reproduces it.
func ParseParagraphs(r io.Reader) ([]*models.ControlFields, error) {
	var paragraphs []*models.ControlFields
	var fields *models.ControlFields

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentKey string
	var currentValue strings.Builder

	flush := func() {
		if currentKey != "" {
			fields.Set(currentKey, currentValue.String())
			currentKey = ""
		}
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, "#") {
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			if fields != nil {
				paragraphs = append(paragraphs, fields)
				fields = nil
			}
			continue
		}

		// Handle continuation lines (start with space)
		if line[0] == ' ' || line[0] == '\t' {
			if currentKey == "" {
				return nil, fmt.Errorf("line %d: continuation line without a field", lineNo)
			}
			currentValue.WriteString("\n")
			currentValue.WriteString(strings.TrimRight(line, " \t"))
			continue
		}

		flush()

		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("line %d: malformed field %q", lineNo, line)
		}
		if fields == nil {
			fields = models.NewControlFields()
		}
		currentKey = strings.TrimSpace(key)
		currentValue.Reset()
		currentValue.WriteString(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	flush()
	if fields != nil {
		paragraphs = append(paragraphs, fields)
	}
	return paragraphs, nil
}

func parseMD5Sums(r io.Reader) (map[string]string, error) {
	sums := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum, p, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		sums[normalizePath(strings.TrimSpace(p))] = sum
	}
	return sums, scanner.Err()
}
