package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/mcphub/internal/domain"
)

// CatalogSource builds catalogs on demand.
type CatalogSource interface {
	Build(ctx context.Context) (*Catalog, error)
}

// ServeToolsUseCase provides the functionality to list available tools.
type ServeToolsUseCase struct {
	catalogs CatalogSource
	logger   *slog.Logger
}

// NewServeToolsUseCase creates a new ServeToolsUseCase.
func NewServeToolsUseCase(catalogs CatalogSource, logger *slog.Logger) *ServeToolsUseCase {
	return &ServeToolsUseCase{
		catalogs: catalogs,
		logger:   logger.With("usecase", "ServeTools"),
	}
}

// Execute builds a fresh catalog and returns its descriptors.
func (uc *ServeToolsUseCase) Execute(ctx context.Context) ([]domain.ToolDescriptor, error) {
	uc.logger.Info("Listing tools")
	catalog, err := uc.catalogs.Build(ctx)
	if err != nil {
		uc.logger.Error("Failed to build tool catalog", slog.Any("error", err))
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}
	uc.logger.Info("Successfully listed tools", slog.Int("count", catalog.Len()))
	return catalog.Tools(), nil
}
