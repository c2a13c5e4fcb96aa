package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sassoftware/debpkgr/internal/generator/deb"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/scanner"
	"github.com/spf13/cobra"
)

// DefaultPool is scanned by info when no packages are named.
const DefaultPool = "pool/main"

type infoOptions struct {
	pool      string
	record    bool
	name      bool
	nvra      bool
	files     bool
	md5sums   bool
	md5sum    bool
	sha1      bool
	sha256    bool
	relations bool
	scripts   bool
}

// NewInfoCmd creates the info command
func NewInfoCmd() *cobra.Command {
	var opts infoOptions

	cmd := &cobra.Command{
		Use:   "info [debs...]",
		Short: "Show package information",
		Long: `Prints metadata of .deb files. With no selection flag the apt style
package record is printed. Without paths the pool directory is scanned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), cmd.OutOrStdout(), &opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.pool, "pool", DefaultPool, "Pool directory scanned when no packages are given")
	cmd.Flags().BoolVarP(&opts.record, "package", "p", false, "Print the apt style package record")
	cmd.Flags().BoolVarP(&opts.name, "name", "n", false, "Print the package name")
	cmd.Flags().BoolVarP(&opts.nvra, "nvra", "N", false, "Print name_version_architecture")
	cmd.Flags().BoolVarP(&opts.files, "files", "f", false, "Print the payload file list")
	cmd.Flags().BoolVarP(&opts.md5sums, "file-md5sums", "F", false, "Print the payload file list with MD5 sums")
	cmd.Flags().BoolVar(&opts.md5sum, "md5sum", false, "Print the archive MD5 sum")
	cmd.Flags().BoolVar(&opts.sha1, "sha1", false, "Print the archive SHA1 sum")
	cmd.Flags().BoolVar(&opts.sha256, "sha256", false, "Print the archive SHA256 sum")
	cmd.Flags().BoolVarP(&opts.relations, "relations", "R", false, "Print the dependency relations")
	cmd.Flags().BoolVar(&opts.scripts, "scripts", false, "Print the maintainer script names")

	return cmd
}

func runInfo(ctx context.Context, out io.Writer, opts *infoOptions, paths []string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(opts.pool); err != nil {
			return models.NewError(models.ErrConfig, models.StageConfig, opts.pool,
				fmt.Errorf("can not find pool directory"))
		}
		paths = []string{opts.pool}
	}

	inputs, err := scanner.Expand(ctx, scanner.NewFileSystemScanner(), paths)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return models.NewError(models.ErrConfig, models.StageConfig, "", fmt.Errorf("no .deb packages found"))
	}

	selected := []struct {
		on     bool
		render func(*models.Package) string
	}{
		{opts.md5sum, func(p *models.Package) string { return p.Hashes.MD5 + "\n" }},
		{opts.sha1, func(p *models.Package) string { return p.Hashes.SHA1 + "\n" }},
		{opts.sha256, func(p *models.Package) string { return p.Hashes.SHA256 + "\n" }},
		{opts.record, func(p *models.Package) string { return p.Record().String() }},
		{opts.name, func(p *models.Package) string { return p.Name() + "\n" }},
		{opts.nvra, func(p *models.Package) string { return p.Nvra() + "\n" }},
		{opts.files, func(p *models.Package) string { return models.FormatFileList(p.Files) }},
		{opts.md5sums, func(p *models.Package) string { return models.FormatMD5Sums(p.Files) }},
		{opts.relations, func(p *models.Package) string { return models.FormatRelations(p.Relations) }},
		{opts.scripts, func(p *models.Package) string {
			var b strings.Builder
			for _, name := range p.ScriptNames() {
				b.WriteString(name + "\n")
			}
			return b.String()
		}},
	}
	chosen := false
	for _, s := range selected {
		chosen = chosen || s.on
	}
	if !chosen {
		selected[3].on = true
	}

	seen := make(map[string]bool)
	for _, path := range inputs {
		pkg, err := deb.ParsePackage(path)
		if err != nil {
			return err
		}
		if seen[pkg.Nvra()] {
			continue
		}
		seen[pkg.Nvra()] = true

		for _, s := range selected {
			if s.on {
				fmt.Fprint(out, s.render(pkg))
			}
		}
	}
	return nil
}
