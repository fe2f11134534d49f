package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/i2y/mcphub/internal/domain"
)

var tracer = otel.Tracer("github.com/i2y/mcphub/internal/usecase")

// CatalogBuilder assembles the tool catalog from native tools, static microservice
// tables and the OpenAPI documents of the configured APIs.
type CatalogBuilder struct {
	natives   NativeToolset
	apis      []domain.APIConfig
	fetcher   SchemaFetcher
	generator ToolGenerator
	cache     SchemaCache
	logger    *slog.Logger

	// static holds the parts that do not depend on remote documents, in catalog order.
	local   []domain.ToolDescriptor
	static  []domain.ToolDescriptor
	utility []domain.ToolDescriptor
}

// NewCatalogBuilder creates a CatalogBuilder. It fails if two statically declared
// tools share a name, or if API names are empty or repeated.
// cache may be nil, in which case every build fetches every document.
func NewCatalogBuilder(
	natives NativeToolset,
	statics []StaticToolSource,
	apis []domain.APIConfig,
	fetcher SchemaFetcher,
	generator ToolGenerator,
	cache SchemaCache,
	logger *slog.Logger,
) (*CatalogBuilder, error) {
	b := &CatalogBuilder{
		natives:   natives,
		apis:      apis,
		fetcher:   fetcher,
		generator: generator,
		cache:     cache,
		logger:    logger.With("usecase", "BuildCatalog"),
	}
	if natives != nil {
		b.local = natives.Descriptors(NativeGroupLocal)
		b.utility = natives.Descriptors(NativeGroupUtility)
	}
	for _, src := range statics {
		b.static = append(b.static, src.Descriptors()...)
	}

	// Fail fast on collisions between statically known tools.
	probe := NewCatalog()
	for _, group := range [][]domain.ToolDescriptor{b.local, b.static, b.utility} {
		for _, tool := range group {
			if err := probe.Add(tool); err != nil {
				return nil, fmt.Errorf("invalid tool configuration: %w", err)
			}
		}
	}

	seen := make(map[string]struct{}, len(apis))
	for _, api := range apis {
		if api.Name == "" {
			return nil, fmt.Errorf("invalid api configuration: api with empty name")
		}
		if _, dup := seen[api.Name]; dup {
			return nil, fmt.Errorf("invalid api configuration: duplicate api name %q", api.Name)
		}
		seen[api.Name] = struct{}{}
	}
	return b, nil
}

// Build assembles a fresh catalog: native local tools, static microservice tools,
// dynamic tools per configured API, then native utility tools.
func (b *CatalogBuilder) Build(ctx context.Context) (*Catalog, error) {
	ctx, span := tracer.Start(ctx, "CatalogBuilder.Build")
	defer span.End()

	catalog := NewCatalog()
	for _, tool := range b.local {
		if err := catalog.Add(tool); err != nil {
			return nil, err
		}
	}
	for _, tool := range b.static {
		if err := catalog.Add(tool); err != nil {
			return nil, err
		}
	}

	reserved := make(map[string]struct{}, len(b.utility))
	for _, tool := range b.utility {
		reserved[tool.Name] = struct{}{}
	}
	for _, api := range b.apis {
		for _, tool := range b.synthesize(ctx, api) {
			log := b.logger.With(slog.String("api_name", api.Name), slog.String("tool_name", tool.Name))
			if _, clash := reserved[tool.Name]; clash {
				log.Warn("Dropping dynamic tool, name is taken by a native tool")
				continue
			}
			if err := catalog.Add(tool); err != nil {
				log.Warn("Dropping dynamic tool", slog.Any("error", err))
			}
		}
	}

	for _, tool := range b.utility {
		if err := catalog.Add(tool); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int("tool_count", catalog.Len()))
	b.logger.Info("Catalog built", slog.Int("tool_count", catalog.Len()), slog.Int("api_count", len(b.apis)))
	return catalog, nil
}

// Resolve finds a single tool by name. Static and native tools are answered
// without touching the network; only APIs whose name prefixes toolName are
// fetched when looking for a dynamic tool.
func (b *CatalogBuilder) Resolve(ctx context.Context, toolName string) (domain.ToolDescriptor, error) {
	for _, group := range [][]domain.ToolDescriptor{b.static, b.local, b.utility} {
		for _, tool := range group {
			if tool.Name == toolName {
				return tool, nil
			}
		}
	}

	for _, api := range b.apis {
		if !strings.HasPrefix(toolName, api.Name+"_") {
			continue
		}
		for _, tool := range b.synthesize(ctx, api) {
			if tool.Name == toolName {
				return tool, nil
			}
		}
	}
	return domain.ToolDescriptor{}, fmt.Errorf("tool %s: %w", toolName, ErrToolNotFound)
}

// APIs returns the configured APIs.
func (b *CatalogBuilder) APIs() []domain.APIConfig {
	return b.apis
}

// synthesize fetches and converts one API's document. Any failure yields no tools.
func (b *CatalogBuilder) synthesize(ctx context.Context, api domain.APIConfig) []domain.ToolDescriptor {
	ctx, span := tracer.Start(ctx, "CatalogBuilder.synthesize")
	defer span.End()
	span.SetAttributes(attribute.String("api_name", api.Name))

	log := b.logger.With(slog.String("api_name", api.Name), slog.String("openapi_url", api.OpenAPIURL))

	schema, err := b.fetch(ctx, api)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		log.Error("Failed to fetch OpenAPI document, API contributes no tools", slog.Any("error", err))
		return nil
	}

	tools, err := b.generator.Generate(schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		log.Error("Failed to generate tools from OpenAPI document", slog.Any("error", err))
		if len(tools) == 0 {
			return nil
		}
		log.Warn("Keeping tools generated before the failure", slog.Int("tool_count", len(tools)))
	}
	log.Debug("Synthesized dynamic tools", slog.Int("tool_count", len(tools)))
	return tools
}

func (b *CatalogBuilder) fetch(ctx context.Context, api domain.APIConfig) (domain.APISchema, error) {
	if b.fetcher == nil || b.generator == nil {
		return domain.APISchema{}, errors.New("no OpenAPI fetcher configured")
	}
	key := api.Name + "|" + api.OpenAPIURL
	if b.cache != nil {
		if schema, ok := b.cache.Get(ctx, key); ok {
			b.logger.Debug("Using cached OpenAPI document", slog.String("api_name", api.Name))
			return schema, nil
		}
	}
	schema, err := b.fetcher.Fetch(ctx, api)
	if err != nil {
		return domain.APISchema{}, err
	}
	if b.cache != nil {
		b.cache.Put(ctx, key, schema)
	}
	return schema, nil
}
