package deb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/sassoftware/debpkgr/internal/generator"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/signer"
	"github.com/sassoftware/debpkgr/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Generator builds Debian repositories
type Generator struct {
	now       func() time.Time
	newSigner func(*models.SignOptions) (signer.Signer, error)
}

var _ generator.Generator = (*Generator)(nil)

// NewGenerator creates a new Debian repository builder
func NewGenerator() *Generator {
	return &Generator{
		now:       time.Now,
		newSigner: signer.New,
	}
}

// CreateRepository builds pool, indices and Release under outputRoot and
// signs the Release when signOpts is set. Parse, duplicate and
// configuration failures abort before anything is written.
//
// A signing failure returns the result of the completed build together
// with the signing error; models.IsSigningError tells the two apart.
func (g *Generator) CreateRepository(ctx context.Context, outputRoot string, inputs []string,
	desc *models.RepositoryDescriptor, signOpts *models.SignOptions) (*models.BuildResult, error) {
	if desc == nil {
		return nil, models.NewError(models.ErrConfig, models.StageConfig, "", fmt.Errorf("repository descriptor is required"))
	}
	d := *desc
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if outputRoot == "" {
		return nil, models.NewError(models.ErrConfig, models.StageConfig, "", fmt.Errorf("output directory is required"))
	}

	s, err := g.newSigner(signOpts)
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"dist":      d.Distribution,
		"component": d.Component,
	})
	log.Infof("Building repository from %d packages...", len(inputs))

	packages, err := g.parseAll(ctx, inputs, &d)
	if err != nil {
		return nil, err
	}

	poolRel := path.Join("pool", d.Component)
	placements, err := assignPoolNames(packages, outputRoot, poolRel, d.Architectures)
	if err != nil {
		return nil, err
	}

	docs, err := BuildIndices(packages, d.Architectures)
	if err != nil {
		return nil, err
	}

	distDir := filepath.Join(outputRoot, "dists", d.Distribution)
	poolDir := filepath.Join(outputRoot, filepath.FromSlash(poolRel))
	for _, dir := range []string{poolDir, distDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, models.NewError(models.ErrWrite, models.StagePool, dir, err)
		}
	}

	if err := placePackages(ctx, outputRoot, placements, d.PoolMode); err != nil {
		return nil, err
	}

	var artifacts []string
	for _, arch := range d.Architectures {
		written, err := WriteIndex(distDir, d.Component, docs[arch], d.Compressions)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, written...)
	}

	doc, err := GenerateRelease(&d, distDir, artifacts, g.now())
	if err != nil {
		return nil, err
	}
	releasePath, err := WriteRelease(distDir, doc)
	if err != nil {
		return nil, err
	}

	result := &models.BuildResult{
		Status:      models.BuildUnsigned,
		OutputDir:   outputRoot,
		DistDir:     distDir,
		ReleasePath: releasePath,
		Artifacts:   artifacts,
		Packages:    len(placements),
	}

	if signOpts == nil {
		stale := filepath.Join(distDir, signer.SignatureFile)
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, models.NewError(models.ErrWrite, models.StageRelease, stale, err)
		}
		log.Warn("No signer configured, repository will be unsigned")
	}

	sr, err := s.Sign(ctx, releasePath, models.SignContext{
		RepositoryName: d.Name,
		Distribution:   d.Distribution,
	})
	result.Sign = sr
	if err != nil {
		log.WithError(err).Error("Signing failed, repository left unsigned")
		return result, err
	}
	if sr.Status == models.SignSigned {
		result.Status = models.BuildSigned
	}

	log.WithField("status", result.Status).Infof("Repository generated in %s", outputRoot)
	return result, nil
}

// parseAll parses inputs on a bounded worker pool. Results keep input
// order.
func (g *Generator) parseAll(ctx context.Context, inputs []string, d *models.RepositoryDescriptor) ([]*models.Package, error) {
	packages := make([]*models.Package, len(inputs))
	errs := make([]error, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.WorkerCount())

	for i, input := range inputs {
		i, input := i, input
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			logrus.Debugf("Parsing %s", input)
			pkg, err := ParsePackage(input)
			if err != nil {
				if d.ErrorPolicy == models.FailFast {
					return err
				}
				errs[i] = err
				return nil
			}
			packages[i] = pkg
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return packages, nil
}

// placement is an indexed package and whether its archive already lives in
// the pool.
type placement struct {
	pkg    *models.Package
	inPool bool
}

// assignPoolNames sets the repository-relative Filename of every package
// that will be indexed. Archives found under the pool keep their current
// name; the rest get the standard one. Two archives mapping to the same
// pool file are rejected.
func assignPoolNames(packages []*models.Package, outputRoot, poolRel string, architectures []string) ([]placement, error) {
	declared := make(map[string]bool, len(architectures))
	for _, arch := range architectures {
		declared[arch] = true
	}

	poolDir := filepath.Join(outputRoot, filepath.FromSlash(poolRel))
	if abs, err := filepath.Abs(poolDir); err == nil {
		poolDir = abs
	}
	poolDir = resolveDir(poolDir)

	owners := make(map[string]*models.Package)
	var placements []placement
	for _, pkg := range packages {
		if pkg.Arch() != models.ArchAll && !declared[pkg.Arch()] {
			continue
		}
		rel, inPool := poolRelative(poolDir, pkg.Path)
		if inPool {
			pkg.Filename = path.Join(poolRel, rel)
		} else {
			pkg.Filename = path.Join(poolRel, pkg.StandardFilename())
		}
		if prev, ok := owners[pkg.Filename]; ok && utils.PackageIdentity(prev) != utils.PackageIdentity(pkg) {
			return nil, models.NewError(models.ErrDuplicatePackage, models.StagePool, pkg.Path,
				fmt.Errorf("%s would overwrite %s from %s", pkg.Nvra(), pkg.Filename, prev.Path))
		}
		owners[pkg.Filename] = pkg
		placements = append(placements, placement{pkg: pkg, inPool: inPool})
	}

	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].pkg.Filename < placements[j].pkg.Filename
	})
	return placements, nil
}

// poolRelative returns the slash-separated path of p below poolDir. The
// file itself is not resolved, so a pool symlink counts as inside the pool.
func poolRelative(poolDir, p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	full := filepath.Join(resolveDir(filepath.Dir(abs)), filepath.Base(abs))
	rel, err := filepath.Rel(poolDir, full)
	if err != nil || !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func resolveDir(dir string) string {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved
	}
	return dir
}

// placePackages copies or links archives into the pool. Archives already
// in the pool are left alone.
func placePackages(ctx context.Context, outputRoot string, placements []placement, mode models.PoolMode) error {
	for _, pl := range placements {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkg := pl.pkg
		if pl.inPool {
			logrus.Debugf("Indexing %s in place", pkg.Filename)
			continue
		}
		dst := filepath.Join(outputRoot, filepath.FromSlash(pkg.Filename))
		if mode == models.PoolSymlink {
			if err := linkIntoPool(pkg, dst); err != nil {
				return err
			}
			continue
		}
		copyNeeded, err := utils.ShouldCopyPackage(pkg.Path, dst, pkg.Hashes.SHA256)
		if err != nil {
			return models.NewError(models.ErrIO, models.StagePool, pkg.Path, err)
		}
		if !copyNeeded {
			logrus.Debugf("Pool already holds %s", pkg.Filename)
			continue
		}
		if err := utils.CopyFile(pkg.Path, dst); err != nil {
			return models.NewError(models.ErrWrite, models.StagePool, dst,
				fmt.Errorf("failed to copy %s: %w", pkg.Path, err))
		}
		logrus.Debugf("Copied %s to %s", pkg.Path, pkg.Filename)
	}
	return nil
}

func linkIntoPool(pkg *models.Package, dst string) error {
	target, err := filepath.Abs(pkg.Path)
	if err != nil {
		return models.NewError(models.ErrIO, models.StagePool, pkg.Path, err)
	}
	if !utils.ShouldLinkPackage(target, dst) {
		logrus.Debugf("Pool already links %s", pkg.Filename)
		return nil
	}
	if err := utils.SymlinkAtomic(target, dst); err != nil {
		return models.NewError(models.ErrWrite, models.StagePool, dst,
			fmt.Errorf("failed to link %s: %w", pkg.Path, err))
	}
	logrus.Debugf("Linked %s to %s", pkg.Filename, target)
	return nil
}
