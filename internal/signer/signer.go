package signer

import (
	"context"

	"github.com/sassoftware/debpkgr/internal/models"
)

// SignatureFile is the detached signature an external command must leave
// beside the Release file.
const SignatureFile = "Release.gpg"

// Signer interface for signing repository metadata
type Signer interface {
	// Sign produces Release.gpg for the Release file at releasePath.
	Sign(ctx context.Context, releasePath string, sc models.SignContext) (*models.SignResult, error)
}

// Unsigned is a Signer that reports every request as unsigned.
type Unsigned struct{}

// Sign implements Signer
func (Unsigned) Sign(ctx context.Context, releasePath string, sc models.SignContext) (*models.SignResult, error) {
	return &models.SignResult{Status: models.SignUnsigned}, nil
}

// New returns the Signer for opts. Nil options select Unsigned.
func New(opts *models.SignOptions) (Signer, error) {
	if opts == nil {
		return Unsigned{}, nil
	}
	return NewCommandSigner(opts)
}
