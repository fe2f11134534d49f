// Package mcpserver exposes the tool catalog through a mark3labs/mcp-go server,
// which provides the stdio and SSE transports.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// CatalogSyncer rebuilds the catalog and hands it to the registered listeners.
type CatalogSyncer interface {
	Rebuild(ctx context.Context) (int, error)
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithCatalogSync rebuilds the catalog through syncer before every tools/list,
// so listed tools always match what the dispatcher resolves.
func WithCatalogSync(syncer CatalogSyncer) Option {
	return func(r *Registrar) { r.syncer = syncer }
}

// Registrar keeps the tools of an mcp-go server in step with the catalog.
// Every registered tool forwards its calls to the dispatcher.
type Registrar struct {
	srv        *mcpGoServer.MCPServer
	invokeTool *usecase.InvokeToolUseCase
	syncer     CatalogSyncer
	logger     *slog.Logger

	mu          sync.Mutex
	fingerprint string
}

// New creates the mcp-go server and its Registrar.
func New(name, version string, invokeUC *usecase.InvokeToolUseCase, logger *slog.Logger, opts ...Option) *Registrar {
	r := &Registrar{
		invokeTool: invokeUC,
		logger:     logger.With("component", "mcpserver"),
	}
	for _, opt := range opts {
		opt(r)
	}

	hooks := &mcpGoServer.Hooks{}
	hooks.AddBeforeListTools(func(ctx context.Context, _ any, _ *mcp.ListToolsRequest) {
		r.syncBeforeList(ctx)
	})
	r.srv = mcpGoServer.NewMCPServer(
		name,
		version,
		mcpGoServer.WithToolCapabilities(true),
		mcpGoServer.WithRecovery(),
		mcpGoServer.WithHooks(hooks),
	)
	return r
}

// Server returns the underlying mcp-go server, for use with its transports.
func (r *Registrar) Server() *mcpGoServer.MCPServer {
	return r.srv
}

// syncBeforeList keeps the previous tool set when the rebuild fails.
func (r *Registrar) syncBeforeList(ctx context.Context) {
	if r.syncer == nil {
		return
	}
	if _, err := r.syncer.Rebuild(ctx); err != nil {
		r.logger.Error("Failed to rebuild catalog for tools/list, serving previous tools", slog.Any("error", err))
	}
}

// Refresh replaces the registered tools with tools. Descriptors that cannot be
// converted are skipped. An unchanged set is not re-registered, so clients are
// only told the list changed when it did. It has the shape of a
// usecase.CatalogListener.
func (r *Registrar) Refresh(_ context.Context, tools []domain.ToolDescriptor) {
	serverTools := make([]mcpGoServer.ServerTool, 0, len(tools))
	converted := make([]mcp.Tool, 0, len(tools))
	for _, d := range tools {
		tool, err := toMCPTool(d)
		if err != nil {
			r.logger.Warn("Skipping tool", slog.String("tool_name", d.Name), slog.Any("error", err))
			continue
		}
		converted = append(converted, tool)
		serverTools = append(serverTools, mcpGoServer.ServerTool{Tool: tool, Handler: r.handler(d.Name)})
	}

	fingerprint, err := json.Marshal(converted)
	if err != nil {
		r.logger.Warn("Failed to fingerprint tools", slog.Any("error", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && string(fingerprint) == r.fingerprint {
		return
	}
	r.fingerprint = string(fingerprint)
	r.srv.SetTools(serverTools...)
	r.logger.Info("Registered tools with MCP server", slog.Int("count", len(serverTools)))
}

func toMCPTool(d domain.ToolDescriptor) (mcp.Tool, error) {
	schema, err := json.Marshal(d.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("failed to marshal input schema: %w", err)
	}
	tool := mcp.NewToolWithRawSchema(d.Name, d.Description, schema)
	tool.Annotations.Title = d.Title
	return tool, nil
}

func (r *Registrar) handler(name string) mcpGoServer.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}
		result := r.invokeTool.Execute(ctx, domain.ToolCall{Name: name, Arguments: args})
		if result.IsError() {
			return mcp.NewToolResultError(result.Err.Error()), nil
		}
		text, err := resultText(result.Value)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func resultText(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(b), nil
}
