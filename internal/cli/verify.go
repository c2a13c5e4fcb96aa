package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sassoftware/debpkgr/internal/generator/deb"
	"github.com/sassoftware/debpkgr/internal/models"
	"github.com/sassoftware/debpkgr/internal/signer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var keyring string

	cmd := &cobra.Command{
		Use:   "verify <Release>",
		Short: "Verify a Release file, its signature and the files it lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), args[0], keyring)
		},
	}

	cmd.Flags().StringVar(&keyring, "keyring", "", "Public keyring checked against Release.gpg")

	return cmd
}

func runVerify(out io.Writer, releasePath, keyring string) error {
	distDir := filepath.Dir(releasePath)

	if keyring != "" {
		fingerprint, err := signer.VerifyDetached(releasePath, filepath.Join(distDir, signer.SignatureFile), keyring)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Good signature from %s\n", fingerprint)
	} else {
		logrus.Warn("No keyring given, signature not checked")
	}

	discrepancies, err := deb.VerifyRelease(distDir)
	if err != nil {
		return models.NewError(models.ErrIO, models.StageRelease, releasePath, err)
	}
	for _, d := range discrepancies {
		fmt.Fprintln(out, d)
	}
	if len(discrepancies) > 0 {
		return fmt.Errorf("%d files do not match %s", len(discrepancies), releasePath)
	}
	fmt.Fprintf(out, "%s: all listed files match\n", releasePath)
	return nil
}
