package models

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// ReleaseDateFormat is the Date layout apt expects in Release files.
const ReleaseDateFormat = "Mon, 02 Jan 2006 15:04:05 +0000"

// IndexDocument is the Packages index of one architecture.
type IndexDocument struct {
	Architecture string
	Stanzas      []*ControlFields
}

// Bytes renders the stanzas separated by exactly one blank line.
func (d *IndexDocument) Bytes() []byte {
	var buf bytes.Buffer
	for i, s := range d.Stanzas {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(s.String())
	}
	return buf.Bytes()
}

// ReleaseEntry is one artifact listed in a Release file. Size and all three
// digests are measured together from the file on disk.
type ReleaseEntry struct {
	Path   string
	Hashes Hashes
}

// ReleaseDocument is the content of a dists/<dist>/Release file.
type ReleaseDocument struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Version       string
	Date          time.Time
	Architectures []string
	Components    []string
	Description   string
	Entries       []ReleaseEntry
}

// Bytes renders the Release file. The three checksum sections are produced
// from the single Entries list.
func (r *ReleaseDocument) Bytes() []byte {
	var buf bytes.Buffer

	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&buf, "%s: %s\n", k, v)
		}
	}
	field("Origin", r.Origin)
	field("Label", r.Label)
	field("Suite", r.Suite)
	field("Codename", r.Codename)
	field("Version", r.Version)
	field("Date", r.Date.UTC().Format(ReleaseDateFormat))
	field("Architectures", strings.Join(r.Architectures, " "))
	field("Components", strings.Join(r.Components, " "))
	field("Description", r.Description)

	sections := []struct {
		name string
		sum  func(Hashes) string
	}{
		{"MD5Sum", func(h Hashes) string { return h.MD5 }},
		{"SHA1", func(h Hashes) string { return h.SHA1 }},
		{"SHA256", func(h Hashes) string { return h.SHA256 }},
	}
	for _, s := range sections {
		fmt.Fprintf(&buf, "%s:\n", s.name)
		for _, e := range r.Entries {
			fmt.Fprintf(&buf, " %s %16d %s\n", s.sum(e.Hashes), e.Hashes.Size, e.Path)
		}
	}
	return buf.Bytes()
}
