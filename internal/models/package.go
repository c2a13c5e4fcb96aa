package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pault.ag/go/debian/dependency"
)

// Standard control field names.
const (
	FieldPackage      = "Package"
	FieldVersion      = "Version"
	FieldArchitecture = "Architecture"
	FieldDescription  = "Description"
	FieldFilename     = "Filename"
	FieldSize         = "Size"
	FieldMD5Sum       = "MD5sum"
	FieldSHA1         = "SHA1"
	FieldSHA256       = "SHA256"
)

// ArchAll marks an architecture-independent package.
const ArchAll = "all"

// RequiredFields must be present and non-empty in every control record.
var RequiredFields = []string{FieldPackage, FieldVersion, FieldArchitecture}

// ControlFields is an ordered set of control file fields. Lookups ignore
// case, as dpkg does; the first spelling of a name is the one kept.
type ControlFields struct {
	keys   []string
	values map[string]string
}

// NewControlFields returns an empty field set.
func NewControlFields() *ControlFields {
	return &ControlFields{values: make(map[string]string)}
}

// Set stores value under key. An existing field keeps its position.
func (c *ControlFields) Set(key, value string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	lk := strings.ToLower(key)
	if _, ok := c.values[lk]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[lk] = value
}

// Get returns the value stored under key.
func (c *ControlFields) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

// Value returns the value stored under key, or "" when absent.
func (c *ControlFields) Value(key string) string {
	v, _ := c.Get(key)
	return v
}

// Delete removes key.
func (c *ControlFields) Delete(key string) {
	lk := strings.ToLower(key)
	if _, ok := c.values[lk]; !ok {
		return
	}
	delete(c.values, lk)
	for i, k := range c.keys {
		if strings.ToLower(k) == lk {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in insertion order.
func (c *ControlFields) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Len returns the number of fields.
func (c *ControlFields) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Clone returns an independent copy.
func (c *ControlFields) Clone() *ControlFields {
	out := NewControlFields()
	for _, k := range c.Keys() {
		out.Set(k, c.Value(k))
	}
	return out
}

// Validate checks that every required field is present and non-empty.
func (c *ControlFields) Validate() error {
	var missing []string
	for _, f := range RequiredFields {
		if strings.TrimSpace(c.Value(f)) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required control field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// String renders the fields in control file syntax. Multi-line values
// already carry their continuation indentation.
func (c *ControlFields) String() string {
	var b strings.Builder
	for _, k := range c.Keys() {
		v := c.Value(k)
		if v == "" || strings.HasPrefix(v, "\n") {
			fmt.Fprintf(&b, "%s:%s\n", k, v)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

// RelationFields are the control fields holding package relationships, in
// the order dpkg documents them.
var RelationFields = []string{
	"Depends",
	"Pre-Depends",
	"Recommends",
	"Suggests",
	"Breaks",
	"Conflicts",
	"Provides",
	"Replaces",
	"Enhances",
}

// MaintainerScripts are the control member scripts kept with a package.
var MaintainerScripts = []string{"preinst", "postinst", "prerm", "postrm"}

// ParseRelations parses every relationship field present in c. Keys use
// the spelling of RelationFields.
func ParseRelations(c *ControlFields) (map[string]*dependency.Dependency, error) {
	relations := make(map[string]*dependency.Dependency)
	for _, field := range RelationFields {
		raw, ok := c.Get(field)
		if !ok {
			continue
		}
		// Continuation lines are plain whitespace inside a relation list
		dep, err := dependency.Parse(strings.Join(strings.Fields(raw), " "))
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", field, err)
		}
		relations[field] = dep
	}
	return relations, nil
}

// FormatRelations renders relations as "Field: value" lines.
func FormatRelations(relations map[string]*dependency.Dependency) string {
	var b strings.Builder
	for _, field := range RelationFields {
		if dep, ok := relations[field]; ok && len(dep.Relations) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", field, dep.String())
		}
	}
	return b.String()
}

// Hashes holds the whole-file digests of an archive. All fields come from a
// single pass over the same bytes.
type Hashes struct {
	MD5    string
	SHA1   string
	SHA256 string
	Size   int64
}

// FileEntry is one payload file of a package.
type FileEntry struct {
	Path string
	MD5  string
}

// SortFiles orders a manifest by path.
func SortFiles(files []FileEntry) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
}

// FormatFileList renders one path per line.
func FormatFileList(files []FileEntry) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Path)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatMD5Sums renders the manifest in md5sums syntax.
func FormatMD5Sums(files []FileEntry) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s  %s\n", f.MD5, f.Path)
	}
	return b.String()
}

// Package represents a parsed Debian binary package
type Package struct {
	Control *ControlFields
	Hashes  Hashes
	Files   []FileEntry

	// Relations holds the parsed relationship fields the control file
	// declares, keyed as in RelationFields.
	Relations map[string]*dependency.Dependency

	// Scripts maps maintainer script names to their content.
	Scripts map[string]string

	// Path is where the archive was read from.
	Path string

	// Filename is the repository-relative pool path, set once the package
	// has been placed in the pool.
	Filename string
}

// Name returns the Package field.
func (p *Package) Name() string {
	return p.Control.Value(FieldPackage)
}

// FullVersion returns the Version field as written, epoch included.
func (p *Package) FullVersion() string {
	return p.Control.Value(FieldVersion)
}

// Version returns the Version field with the final "-<revision>" removed.
func (p *Package) Version() string {
	v := p.FullVersion()
	if i := strings.LastIndex(v, "-"); i >= 0 {
		return v[:i]
	}
	return v
}

// Release returns the text after the final hyphen of Version. Native
// packages have no revision and report false.
func (p *Package) Release() (string, bool) {
	v := p.FullVersion()
	i := strings.LastIndex(v, "-")
	if i < 0 {
		return "", false
	}
	return v[i+1:], true
}

// Epoch returns the version epoch, "0" when none is given.
func (p *Package) Epoch() string {
	v := p.FullVersion()
	if i := strings.Index(v, ":"); i > 0 {
		if _, err := strconv.Atoi(v[:i]); err == nil {
			return v[:i]
		}
	}
	return "0"
}

// Relation returns the parsed relationship field, matched case-insensitively.
func (p *Package) Relation(field string) (*dependency.Dependency, bool) {
	for _, f := range RelationFields {
		if strings.EqualFold(f, field) {
			dep, ok := p.Relations[f]
			return dep, ok
		}
	}
	return nil, false
}

// Script returns a maintainer script by name.
func (p *Package) Script(name string) (string, bool) {
	s, ok := p.Scripts[name]
	return s, ok
}

// ScriptNames lists the maintainer scripts the package carries.
func (p *Package) ScriptNames() []string {
	var names []string
	for _, name := range MaintainerScripts {
		if _, ok := p.Scripts[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Arch returns the Architecture field.
func (p *Package) Arch() string {
	return p.Control.Value(FieldArchitecture)
}

// Nvra returns name_version_arch.
func (p *Package) Nvra() string {
	return strings.Join([]string{p.Name(), p.FullVersion(), p.Arch()}, "_")
}

// StandardFilename returns the pool file name. The epoch is dropped, as
// dpkg-deb does.
func (p *Package) StandardFilename() string {
	v := p.FullVersion()
	if i := strings.Index(v, ":"); i >= 0 {
		v = v[i+1:]
	}
	return fmt.Sprintf("%s_%s_%s.deb", p.Name(), v, p.Arch())
}

// Record returns the package as an index stanza: the control fields followed
// by the file location and whole-file digests.
func (p *Package) Record() *ControlFields {
	rec := p.Control.Clone()
	for _, f := range []string{FieldFilename, FieldSize, FieldMD5Sum, FieldSHA1, FieldSHA256} {
		rec.Delete(f)
	}
	if p.Filename != "" {
		rec.Set(FieldFilename, p.Filename)
	}
	rec.Set(FieldSize, strconv.FormatInt(p.Hashes.Size, 10))
	rec.Set(FieldMD5Sum, p.Hashes.MD5)
	rec.Set(FieldSHA1, p.Hashes.SHA1)
	rec.Set(FieldSHA256, p.Hashes.SHA256)
	return rec
}
