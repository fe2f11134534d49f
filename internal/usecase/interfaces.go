package usecase

import (
	"context"
	"database/sql"
	"errors"

	"github.com/i2y/mcphub/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound       = errors.New("tool not found")
	ErrDuplicateTool      = errors.New("duplicate tool name")
	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrAPINotConfigured   = errors.New("api not configured")
	ErrMissingCredentials = errors.New("missing credentials")
)

// --- Schema Source Related ---

// SchemaFetcher loads the OpenAPI document of a configured API.
type SchemaFetcher interface {
	Fetch(ctx context.Context, api domain.APIConfig) (domain.APISchema, error)
}

// ToolGenerator turns a fetched document into dynamic tool descriptors.
type ToolGenerator interface {
	Generate(schema domain.APISchema) ([]domain.ToolDescriptor, error)
}

// SchemaCache stores fetched documents keyed by their source URL.
// Implementations decide the expiry policy; a cache that never hits is valid.
type SchemaCache interface {
	Get(ctx context.Context, key string) (domain.APISchema, bool)
	Put(ctx context.Context, key string, schema domain.APISchema)
}

// --- Tool Sources ---

// NativeGroup selects where a native tool appears in the catalog.
type NativeGroup int

const (
	// NativeGroupLocal tools are listed first.
	NativeGroupLocal NativeGroup = iota
	// NativeGroupUtility tools are listed after the dynamic ones.
	NativeGroupUtility
)

// NativeToolset exposes the in-process tools.
type NativeToolset interface {
	Descriptors(group NativeGroup) []domain.ToolDescriptor
}

// StaticToolSource exposes a fixed table of microservice-backed tools.
type StaticToolSource interface {
	Descriptors() []domain.ToolDescriptor
}

// --- Tool Invocation Related ---

// ArgumentValidator checks arguments against a declared argument model and
// returns them normalized to it. Failures wrap ErrInvalidArguments and name
// the offending fields.
type ArgumentValidator interface {
	Validate(schema domain.JSONSchemaProps, args map[string]interface{}) (map[string]interface{}, error)
}

// ResourceProvider hands out a database handle scoped to one native tool call.
// The caller closes the handle when the call ends.
type ResourceProvider interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
}

// ToolInvoker executes a resolved tool along its route.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool domain.ToolDescriptor, args map[string]interface{}) (interface{}, error)
}
