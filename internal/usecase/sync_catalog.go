package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i2y/mcphub/internal/domain"
)

// CachePurger drops cached OpenAPI documents.
type CachePurger interface {
	Purge()
}

// CatalogListener is notified with every freshly synced catalog.
type CatalogListener func(ctx context.Context, tools []domain.ToolDescriptor)

// SyncCatalogUseCase re-fetches every OpenAPI document and rebuilds the catalog,
// then hands the result to the registered listeners.
type SyncCatalogUseCase struct {
	catalogs  CatalogSource
	purger    CachePurger
	listeners []CatalogListener
	logger    *slog.Logger
}

// NewSyncCatalogUseCase creates a new SyncCatalogUseCase. purger may be nil.
func NewSyncCatalogUseCase(catalogs CatalogSource, purger CachePurger, logger *slog.Logger) *SyncCatalogUseCase {
	return &SyncCatalogUseCase{
		catalogs: catalogs,
		purger:   purger,
		logger:   logger.With("usecase", "SyncCatalog"),
	}
}

// OnSync registers l. Not safe for use concurrently with Execute.
func (uc *SyncCatalogUseCase) OnSync(l CatalogListener) {
	uc.listeners = append(uc.listeners, l)
}

// Execute purges cached documents, then rebuilds. It returns the number of
// tools in the new catalog.
func (uc *SyncCatalogUseCase) Execute(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncCatalog.Execute")
	defer span.End()

	if uc.purger != nil {
		uc.purger.Purge()
	}
	return uc.rebuild(ctx)
}

// Rebuild builds the catalog and notifies the listeners without purging the
// document cache. The stdio and SSE transports call it before every tools/list.
func (uc *SyncCatalogUseCase) Rebuild(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncCatalog.Rebuild")
	defer span.End()
	return uc.rebuild(ctx)
}

func (uc *SyncCatalogUseCase) rebuild(ctx context.Context) (int, error) {
	catalog, err := uc.catalogs.Build(ctx)
	if err != nil {
		uc.logger.Error("Failed to rebuild catalog", slog.Any("error", err))
		return 0, fmt.Errorf("failed to rebuild catalog: %w", err)
	}
	tools := catalog.Tools()
	for _, l := range uc.listeners {
		l(ctx, tools)
	}
	uc.logger.Debug("Catalog synced", slog.Int("tool_count", len(tools)))
	return len(tools), nil
}
