package models

import (
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"
)

// ErrorPolicy selects how parse failures are reported.
type ErrorPolicy string

const (
	// FailFast aborts the build on the first parse failure.
	FailFast ErrorPolicy = "fail-fast"
	// CollectErrors parses every input and reports all failures together.
	// The build still aborts before anything is written.
	CollectErrors ErrorPolicy = "collect"
)

// Index compressions.
const (
	CompressionGzip  = "gz"
	CompressionXz    = "xz"
	CompressionBzip2 = "bz2"
)

// IndexCompressions lists every compressed Packages variant that can be
// written.
var IndexCompressions = []string{CompressionGzip, CompressionXz, CompressionBzip2}

// PoolMode selects how archives are placed in the pool.
type PoolMode string

const (
	// PoolCopy copies each archive into the pool.
	PoolCopy PoolMode = "copy"
	// PoolSymlink links pool entries to the input archives.
	PoolSymlink PoolMode = "symlink"
)

// DefaultSignTimeout bounds a signing command when none is configured.
const DefaultSignTimeout = 5 * time.Minute

// RepositoryDescriptor describes one distribution of a repository
type RepositoryDescriptor struct {
	Name          string
	Description   string
	Distribution  string // Codename, also the dists/ directory name
	Suite         string
	Origin        string
	Label         string
	Version       string
	Component     string
	Architectures []string

	// Compressions lists the compressed Packages variants to write.
	Compressions []string

	// Workers bounds parallel archive parsing; 0 means one per CPU.
	Workers int

	ErrorPolicy ErrorPolicy
	PoolMode    PoolMode
}

var (
	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
	archPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// Normalize fills derived defaults in place.
func (d *RepositoryDescriptor) Normalize() {
	if d.Component == "" {
		d.Component = "main"
	}
	if d.Suite == "" {
		d.Suite = d.Distribution
	}
	if d.Origin == "" && d.Distribution != "" {
		d.Origin = strings.ToUpper(d.Distribution[:1]) + d.Distribution[1:]
	}
	if d.Label == "" {
		d.Label = d.Origin
	}
	if d.Description == "" {
		d.Description = d.Origin
	}
	if d.Version == "" {
		d.Version = "1.0"
	}
	if d.Name == "" {
		d.Name = d.Distribution
	}
	if d.Compressions == nil {
		d.Compressions = []string{CompressionGzip}
	}
	if d.ErrorPolicy == "" {
		d.ErrorPolicy = FailFast
	}
	if d.PoolMode == "" {
		d.PoolMode = PoolCopy
	}
}

// Validate reports the first invalid setting as a ConfigError.
func (d *RepositoryDescriptor) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return NewError(ErrConfig, StageConfig, "", fmt.Errorf(format, args...))
	}

	if d.Name == "" {
		return fail("repository name is required")
	}
	if !namePattern.MatchString(d.Distribution) {
		return fail("invalid distribution %q", d.Distribution)
	}
	if !namePattern.MatchString(d.Component) {
		return fail("invalid component %q", d.Component)
	}
	if len(d.Architectures) == 0 {
		return fail("at least one architecture is required")
	}
	seen := make(map[string]bool)
	for _, arch := range d.Architectures {
		if arch == ArchAll {
			return fail("architecture %q cannot be declared, it is implied", ArchAll)
		}
		if !archPattern.MatchString(arch) {
			return fail("invalid architecture %q", arch)
		}
		if seen[arch] {
			return fail("architecture %q listed twice", arch)
		}
		seen[arch] = true
	}
	for _, c := range d.Compressions {
		if !slices.Contains(IndexCompressions, c) {
			return fail("unsupported index compression %q", c)
		}
	}
	if d.Workers < 0 {
		return fail("workers must not be negative")
	}
	if d.ErrorPolicy != FailFast && d.ErrorPolicy != CollectErrors {
		return fail("unknown error policy %q", d.ErrorPolicy)
	}
	if d.PoolMode != PoolCopy && d.PoolMode != PoolSymlink {
		return fail("unknown pool mode %q", d.PoolMode)
	}
	return nil
}

// WorkerCount returns the effective parse concurrency.
func (d *RepositoryDescriptor) WorkerCount() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.NumCPU()
}

// SignOptions configures the external signing command
type SignOptions struct {
	Command string
	KeyID   string
	Timeout time.Duration

	// VerifyKeyring, when set, is an OpenPGP public keyring used to check
	// the signature the command produced.
	VerifyKeyring string

	// Extra is exported to the command as GPG_<KEY> variables.
	Extra map[string]string
}

// EffectiveTimeout returns Timeout or the default.
func (o *SignOptions) EffectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultSignTimeout
}

// SignContext identifies the repository being signed.
type SignContext struct {
	RepositoryName string
	Distribution   string
}

// SignStatus is the outcome of a signing request.
type SignStatus string

const (
	SignSigned   SignStatus = "signed"
	SignUnsigned SignStatus = "unsigned"
)

// SignResult describes a completed signing request.
type SignResult struct {
	Status        SignStatus
	SignaturePath string
	// SignedBy is the verifying key fingerprint, when verification ran.
	SignedBy string
	Stdout   string
	Stderr   string
}

// BuildStatus summarises a repository build.
type BuildStatus string

const (
	BuildSigned   BuildStatus = "built-signed"
	BuildUnsigned BuildStatus = "built-unsigned"
)

// BuildResult describes a built repository
type BuildResult struct {
	Status      BuildStatus
	OutputDir   string
	DistDir     string
	ReleasePath string
	// Artifacts are the index files listed in Release, relative to DistDir.
	Artifacts []string
	// Packages counts the distinct archives placed in the pool.
	Packages int
	Sign     *SignResult
}
