package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sassoftware/debpkgr/internal/config"
	"github.com/sassoftware/debpkgr/internal/generator/deb"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/scanner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type createOptions struct {
	outputDir     string
	configPath    string
	name          string
	dist          string
	suite         string
	component     string
	arches        []string
	description   string
	origin        string
	label         string
	compressions  []string
	workers       int
	collectErrors bool
	symlink       bool
	signCmd       string
	keyID         string
	signTimeout   time.Duration
	verifyKeyring string
}

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create [paths...]",
		Short: "Create or refresh a repository",
		Long: `Parses .deb files (directories are scanned recursively) and writes
the pool, Packages indices and Release file under the output directory.
Without paths, the existing pool/<component> directory is re-indexed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadSettings(cmd, &opts)
			if err != nil {
				return err
			}
			desc, err := file.Descriptor()
			if err != nil {
				return err
			}
			signOpts, err := file.SignOptions()
			if err != nil {
				return err
			}

			logrus.Info("Starting repository generation...")
			logrus.Debugf("Configuration: %+v", *desc)

			return runCreate(cmd.Context(), opts.outputDir, args, desc, signOpts)
		},
	}

	// Input/Output flags
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "./repo", "Output directory")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")

	// Repository metadata flags
	cmd.Flags().StringVar(&opts.name, "name", "", "Repository name (defaults to the distribution)")
	cmd.Flags().StringVar(&opts.dist, "dist", "", "Distribution codename (default \"stable\")")
	cmd.Flags().StringVar(&opts.suite, "suite", "", "Suite (defaults to the distribution)")
	cmd.Flags().StringVar(&opts.component, "component", "", "Component (default \"main\")")
	cmd.Flags().StringSliceVar(&opts.arches, "arch", nil, "Architectures to index (default amd64)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Repository description")
	cmd.Flags().StringVar(&opts.origin, "origin", "", "Repository origin")
	cmd.Flags().StringVar(&opts.label, "label", "", "Repository label")
	cmd.Flags().StringSliceVar(&opts.compressions, "compress", nil, "Compressed Packages variants: gz, xz, bz2 (default gz)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel parse workers (0 means one per CPU)")
	cmd.Flags().BoolVar(&opts.collectErrors, "collect-errors", false, "Report every unparsable package instead of stopping at the first")
	cmd.Flags().BoolVar(&opts.symlink, "symlink", false, "Symlink packages into the pool instead of copying them")

	// Signing flags
	cmd.Flags().StringVar(&opts.signCmd, "sign-cmd", "", "Command that writes Release.gpg for a Release file")
	cmd.Flags().StringVar(&opts.keyID, "key-id", "", "Key id passed to the signing command as GPG_KEY_ID")
	cmd.Flags().DurationVar(&opts.signTimeout, "sign-timeout", models.DefaultSignTimeout, "Signing command timeout")
	cmd.Flags().StringVar(&opts.verifyKeyring, "verify-keyring", "", "Public keyring used to check the produced signature")

	return cmd
}

// loadSettings merges the optional configuration file with the flags the
// user set explicitly.
func loadSettings(cmd *cobra.Command, opts *createOptions) (*config.File, error) {
	file := config.Defaults()
	if opts.configPath != "" {
		var err error
		if file, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	setString := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	setString("name", &file.Name, opts.name)
	setString("dist", &file.Distribution, opts.dist)
	setString("suite", &file.Suite, opts.suite)
	setString("component", &file.Component, opts.component)
	setString("description", &file.Description, opts.description)
	setString("origin", &file.Origin, opts.origin)
	setString("label", &file.Label, opts.label)
	if flags.Changed("arch") {
		file.Architectures = opts.arches
	}
	if flags.Changed("compress") {
		file.Compressions = opts.compressions
	}
	if flags.Changed("workers") {
		file.Workers = opts.workers
	}
	if opts.collectErrors {
		file.ErrorPolicy = string(models.CollectErrors)
	}
	if opts.symlink {
		file.PoolMode = string(models.PoolSymlink)
	}

	signingFlag := false
	for _, name := range []string{"sign-cmd", "key-id", "sign-timeout", "verify-keyring"} {
		signingFlag = signingFlag || flags.Changed(name)
	}
	if signingFlag || file.Signing != nil {
		if file.Signing == nil {
			file.Signing = &config.SigningDTO{}
		}
		setString("sign-cmd", &file.Signing.Command, opts.signCmd)
		setString("key-id", &file.Signing.KeyID, opts.keyID)
		setString("verify-keyring", &file.Signing.VerifyKeyring, opts.verifyKeyring)
		if flags.Changed("sign-timeout") {
			file.Signing.Timeout = opts.signTimeout.String()
		}
	}
	return file, nil
}

func runCreate(ctx context.Context, outputDir string, paths []string, desc *models.RepositoryDescriptor, signOpts *models.SignOptions) error {
	if outputDir == "" {
		return models.NewError(models.ErrConfig, models.StageConfig, "", fmt.Errorf("output-dir is required"))
	}

	if len(paths) == 0 {
		pool := filepath.Join(outputDir, "pool", desc.Component)
		if _, err := os.Stat(pool); err != nil {
			return models.NewError(models.ErrConfig, models.StageConfig, pool,
				fmt.Errorf("no packages given and pool directory not found"))
		}
		paths = []string{pool}
	}

	// Step 1: Scan for packages
	inputs, err := scanner.Expand(ctx, scanner.NewFileSystemScanner(), paths)
	if err != nil {
		return models.NewError(models.ErrIO, models.StageParse, "", fmt.Errorf("failed to scan inputs: %w", err))
	}
	if len(inputs) == 0 {
		logrus.Warn("No packages found, writing empty indices")
	}

	// Step 2: Build and sign
	result, err := deb.NewGenerator().CreateRepository(ctx, outputDir, inputs, desc, signOpts)
	if err != nil {
		if models.IsSigningError(err) && result != nil {
			logrus.Warnf("Repository built in %s but not signed", result.OutputDir)
		}
		return err
	}

	logrus.Info("Repository generation completed successfully!")
	logrus.Infof("Output directory: %s (%s, %d packages)", result.OutputDir, result.Status, result.Packages)
	return nil
}
