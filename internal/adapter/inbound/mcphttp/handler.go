package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
	"github.com/i2y/mcphub/pkg/shared/mcpjsonrpc"
)

const (
	serverName             = "MCP Server"
	serverVersion          = "1.1.0"
	defaultProtocolVersion = "1.0.0"

	noToolReply = "I'm sorry, I couldn't identify a tool to call. Please try again."
)

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	serveToolsUseCase  *usecase.ServeToolsUseCase
	invokeToolUseCase  *usecase.InvokeToolUseCase
	syncCatalogUseCase *usecase.SyncCatalogUseCase
	logger             *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewHandlers creates a new Handlers struct. syncUC may be nil, in which case
// the admin routes are not registered.
func NewHandlers(
	serveUC *usecase.ServeToolsUseCase,
	invokeUC *usecase.InvokeToolUseCase,
	syncUC *usecase.SyncCatalogUseCase,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		serveToolsUseCase:  serveUC,
		invokeToolUseCase:  invokeUC,
		syncCatalogUseCase: syncUC,
		logger:             logger.With("component", "mcphttp_handler"),
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

// RegisterRoutes sets up the JSON-RPC, chat completion and health endpoints.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp", h.handleMCP)
	mux.HandleFunc("POST /api/v1/mcp", h.handleMCP)
	mux.HandleFunc("POST /api/v1/chat/completions", h.handleChatCompletions)
	mux.HandleFunc("GET /health", h.handleHealth)
}

// RegisterAdminRoutes sets up the HTTP routes for admin endpoints.
func (h *Handlers) RegisterAdminRoutes(mux *http.ServeMux) {
	if h.syncCatalogUseCase == nil {
		return
	}
	mux.HandleFunc("POST /admin/sync", h.handleSyncCatalog)
}

// handleMCP implements POST /mcp
func (h *Handlers) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.logger.Warn("Failed to read request body", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeInvalidRequest, fmt.Sprintf("Invalid request body: %v", err)))
		return
	}
	h.serveJSONRPC(w, r, body)
}

func (h *Handlers) serveJSONRPC(w http.ResponseWriter, r *http.Request, body []byte) {
	var req mcpjsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("Failed to decode JSON-RPC request", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError, fmt.Sprintf("Parse error: %v", err)))
		return
	}

	resp, status := h.dispatch(r.Context(), req)
	writeJSON(w, status, resp)
}

// dispatch runs one JSON-RPC request. Any failure escaping the method handlers,
// panics included, becomes an internal error answered with status 500.
func (h *Handlers) dispatch(ctx context.Context, req mcpjsonrpc.Request) (resp mcpjsonrpc.Response, status int) {
	log := h.logger.With(slog.String("method", req.Method))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Panic while handling request", slog.Any("panic", rec))
			resp = internalError(req.ID, fmt.Errorf("%v", rec))
			status = http.StatusInternalServerError
		}
	}()

	result, err := h.call(ctx, req)
	if err != nil {
		log.Error("Request failed", slog.Any("error", err))
		return internalError(req.ID, err), http.StatusInternalServerError
	}
	return mcpjsonrpc.NewResult(req.ID, result), http.StatusOK
}

func (h *Handlers) call(ctx context.Context, req mcpjsonrpc.Request) (interface{}, error) {
	switch req.Method {
	case mcpjsonrpc.MethodInitialize:
		var params mcpjsonrpc.InitializeParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return initializeResult(params.ProtocolVersion), nil

	case mcpjsonrpc.MethodToolsList:
		tools, err := h.serveToolsUseCase.Execute(ctx)
		if err != nil {
			return nil, err
		}
		return mcpjsonrpc.ToolsListResult{Tools: tools}, nil

	case mcpjsonrpc.MethodToolsCall:
		var params mcpjsonrpc.CallToolParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if params.Name == "" {
			return nil, errors.New("tools/call requires params.name")
		}
		result := h.invokeToolUseCase.Execute(ctx, domain.ToolCall{Name: params.Name, Arguments: params.Arguments})
		return result.Payload(), nil

	default:
		h.logger.Debug("Ignoring unknown method", slog.String("method", req.Method))
		return nil, nil
	}
}

func initializeResult(protocolVersion string) mcpjsonrpc.InitializeResult {
	if protocolVersion == "" {
		protocolVersion = defaultProtocolVersion
	}
	return mcpjsonrpc.InitializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo: mcpjsonrpc.ServerInfo{
			Name:            serverName,
			Version:         serverVersion,
			ProtocolVersion: protocolVersion,
		},
		Capabilities: map[string]interface{}{
			"textDocument": map[string]interface{}{
				"completion": map[string]interface{}{
					"completionItem": map[string]interface{}{
						"snippetSupport": true,
					},
				},
			},
		},
	}
}

// handleChatCompletions implements POST /api/v1/chat/completions.
// Bodies carrying a "jsonrpc" member are served as MCP requests.
func (h *Handlers) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.logger.Warn("Failed to read request body", slog.Any("error", err))
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) == nil {
		if _, ok := probe["jsonrpc"]; ok {
			h.serveJSONRPC(w, r, body)
			return
		}
	}

	var req mcpjsonrpc.ChatCompletionRequest
	content := h.chatReply(r.Context(), body, &req)

	writeJSON(w, http.StatusOK, mcpjsonrpc.ChatCompletionResponse{
		ID:      h.newID(),
		Object:  "chat.completion",
		Created: h.now().Unix(),
		Model:   req.Model,
		Choices: []mcpjsonrpc.ChatCompletionChoice{{
			Index:        0,
			Message:      mcpjsonrpc.ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	})
}

// chatReply decodes body into req and returns the assistant's answer.
func (h *Handlers) chatReply(ctx context.Context, body []byte, req *mcpjsonrpc.ChatCompletionRequest) (content string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Panic in chat completion", slog.Any("panic", rec))
			content = fmt.Sprintf("An unexpected error occurred: %v", rec)
		}
	}()

	if err := json.Unmarshal(body, req); err != nil {
		h.logger.Warn("Failed to decode chat completion request", slog.Any("error", err))
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
	call, ok, err := extractToolCall(*req)
	if err != nil {
		h.logger.Warn("Failed to extract tool call", slog.Any("error", err))
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
	if !ok {
		h.logger.Info("No tool call found in chat completion request")
		return noToolReply
	}

	h.logger.Info("Chat completion tool call", slog.String("tool_name", call.Name))
	result := h.invokeToolUseCase.Execute(ctx, call)
	return stringify(result.Payload())
}

// extractToolCall takes the call from tool_calls[0], or else from JSON in the
// content of the last message. Content that is not JSON is not a tool call.
func extractToolCall(req mcpjsonrpc.ChatCompletionRequest) (domain.ToolCall, bool, error) {
	if len(req.Messages) == 0 {
		return domain.ToolCall{}, false, errors.New("request has no messages")
	}

	if len(req.ToolCalls) > 0 {
		fn := req.ToolCalls[0].Function
		args, err := decodeArguments(fn.Arguments)
		if err != nil {
			return domain.ToolCall{}, false, err
		}
		return domain.ToolCall{Name: fn.Name, Arguments: args}, fn.Name != "", nil
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Content == "" {
		return domain.ToolCall{}, false, nil
	}
	var fn mcpjsonrpc.FunctionCall
	if err := json.Unmarshal([]byte(last.Content), &fn); err != nil || fn.Name == "" {
		return domain.ToolCall{}, false, nil
	}
	args, err := decodeArguments(fn.Arguments)
	if err != nil {
		return domain.ToolCall{}, false, err
	}
	return domain.ToolCall{Name: fn.Name, Arguments: args}, true, nil
}

// decodeArguments accepts an object or a string holding a JSON object.
func decodeArguments(raw json.RawMessage) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if s == "" {
			return args, nil
		}
		raw = json.RawMessage(s)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// handleSyncCatalog implements POST /admin/sync
func (h *Handlers) handleSyncCatalog(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received sync request")
	n, err := h.syncCatalogUseCase.Execute(r.Context())
	if err != nil {
		h.logger.Error("Failed to sync catalog", slog.Any("error", err))
		http.Error(w, fmt.Sprintf("Failed to sync catalog: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "synced", "tool_count": n})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func internalError(id json.RawMessage, err error) mcpjsonrpc.Response {
	return mcpjsonrpc.NewError(id, mcpjsonrpc.CodeInternalError, fmt.Sprintf("Internal error: %v", err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
