package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/mcphub/internal/domain"
)

// ToolResolver finds the descriptor of a single tool.
type ToolResolver interface {
	Resolve(ctx context.Context, toolName string) (domain.ToolDescriptor, error)
}

// ToolResult is the outcome of one dispatched call. Exactly one of Value and Err is meaningful.
type ToolResult struct {
	Value interface{}
	Err   error
}

// IsError reports whether the call failed.
func (r ToolResult) IsError() bool { return r.Err != nil }

// Payload is what goes back to the caller: the tool's value, or the error text.
func (r ToolResult) Payload() interface{} {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Value
}

// InvokeToolUseCase is the dispatcher: it receives a tool call, resolves its
// route, validates typed arguments and executes it.
type InvokeToolUseCase struct {
	resolver  ToolResolver
	validator ArgumentValidator
	invoker   ToolInvoker
	logger    *slog.Logger

	calls    metric.Int64Counter
	failures metric.Int64Counter
}

// InvokeToolOption configures an InvokeToolUseCase.
type InvokeToolOption func(*invokeToolOptions)

type invokeToolOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records the call counters with mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) InvokeToolOption {
	return func(o *invokeToolOptions) { o.meterProvider = mp }
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase. It counts calls and
// failures per tool kind as mcphub.tool.calls and mcphub.tool.failures.
func NewInvokeToolUseCase(resolver ToolResolver, validator ArgumentValidator, invoker ToolInvoker, logger *slog.Logger, opts ...InvokeToolOption) *InvokeToolUseCase {
	logger = logger.With("usecase", "InvokeTool")
	o := invokeToolOptions{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.meterProvider.Meter("github.com/i2y/mcphub/internal/usecase")

	calls, err := meter.Int64Counter("mcphub.tool.calls", metric.WithDescription("Tool calls dispatched"))
	if err != nil {
		logger.Warn("Failed to create tool call counter", slog.Any("error", err))
		calls = noop.Int64Counter{}
	}
	failures, err := meter.Int64Counter("mcphub.tool.failures", metric.WithDescription("Tool calls that failed"))
	if err != nil {
		logger.Warn("Failed to create tool failure counter", slog.Any("error", err))
		failures = noop.Int64Counter{}
	}

	return &InvokeToolUseCase{
		resolver:  resolver,
		validator: validator,
		invoker:   invoker,
		logger:    logger,
		calls:     calls,
		failures:  failures,
	}
}

// Execute dispatches call. Failures of any kind are reported in the result, never returned.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, call domain.ToolCall) ToolResult {
	ctx, span := tracer.Start(ctx, "InvokeTool.Execute", trace.WithAttributes(attribute.String("tool_name", call.Name)))
	defer span.End()

	log := uc.logger.With(slog.String("tool_name", call.Name))
	log.Info("Executing tool invocation")

	value, kind, err := uc.execute(ctx, call.Cleaned())

	attrs := metric.WithAttributes(attribute.String("tool_kind", string(kind)))
	uc.calls.Add(ctx, 1, attrs)
	if err != nil {
		uc.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Tool invocation failed", slog.String("tool_kind", string(kind)), slog.Any("error", err))
		return ToolResult{Err: err}
	}

	log.Info("Tool invocation successful", slog.String("tool_kind", string(kind)))
	log.Debug("Invocation result", slog.Any("result", value))
	return ToolResult{Value: value}
}

func (uc *InvokeToolUseCase) execute(ctx context.Context, call domain.ToolCall) (interface{}, domain.ToolKind, error) {
	// 1. Resolve the route.
	tool, err := uc.resolver.Resolve(ctx, call.Name)
	if err != nil {
		return nil, "", err
	}
	if tool.Route == nil {
		return nil, "", fmt.Errorf("tool %s has no route: %w", call.Name, ErrToolNotFound)
	}
	kind := tool.Kind()

	// 2. Validate arguments against a declared model.
	args := call.Arguments
	if tool.TypedArguments && uc.validator != nil {
		args, err = uc.validator.Validate(tool.InputSchema, args)
		if err != nil {
			return nil, kind, fmt.Errorf("tool %s: %w", call.Name, err)
		}
	}

	// 3. Invoke.
	result, err := uc.invoker.Invoke(ctx, tool, args)
	if err != nil {
		return nil, kind, err
	}
	return result, kind, nil
}
