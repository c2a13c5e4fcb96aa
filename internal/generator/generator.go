package generator

import (
	"context"

	"github.com/sassoftware/debpkgr/internal/models"
)

// Generator interface for repository builders
type Generator interface {
	// CreateRepository parses the input archives and writes a complete
	// repository under outputRoot. Nil signOpts builds an unsigned
	// repository.
	CreateRepository(ctx context.Context, outputRoot string, inputs []string,
		desc *models.RepositoryDescriptor, signOpts *models.SignOptions) (*models.BuildResult, error)
}
