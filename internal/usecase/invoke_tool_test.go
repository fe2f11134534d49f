package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// MockToolResolver is a mock implementation of the ToolResolver interface.
type MockToolResolver struct {
	mock.Mock
}

func (m *MockToolResolver) Resolve(ctx context.Context, name string) (domain.ToolDescriptor, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.ToolDescriptor), args.Error(1)
}

func TestInvokeToolUseCase_Execute(t *testing.T) {
	ctx := context.Background()

	typed := staticTool("get_report_open_by_priority", "/servicenow/reports/open_by_priority")
	typed.TypedArguments = true
	typed.InputSchema = domain.JSONSchemaProps{
		Type:       "object",
		Properties: map[string]domain.JSONSchemaProps{"priority": {Type: "string"}},
		Required:   []string{"priority"},
	}
	untyped := dynamicTool("mock_api", "getUserById", "get", "/users/{userId}")
	expected := map[string]interface{}{"id": 123.0, "name": "John Doe"}

	tests := []struct {
		name      string
		setup     func(*MockToolResolver, *MockArgumentValidator, *MockToolInvoker)
		call      domain.ToolCall
		wantValue interface{}
		wantErr   string
	}{
		{
			name: "Success - reserved keys stripped before invoke",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				r.On("Resolve", mock.Anything, untyped.Name).Return(untyped, nil).Once()
				i.On("Invoke", mock.Anything, untyped, map[string]interface{}{"userId": 123.0}).Return(expected, nil).Once()
			},
			call: domain.ToolCall{Name: untyped.Name, Arguments: map[string]interface{}{
				"userId": 123.0, "id": 2, "method": "tools/call",
			}},
			wantValue: expected,
		},
		{
			name: "Success - typed arguments validated",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				args := map[string]interface{}{"priority": "1 - Critical"}
				r.On("Resolve", mock.Anything, typed.Name).Return(typed, nil).Once()
				v.On("Validate", typed.InputSchema, args).Return(args, nil).Once()
				i.On("Invoke", mock.Anything, typed, args).Return([]interface{}{}, nil).Once()
			},
			call:      domain.ToolCall{Name: typed.Name, Arguments: map[string]interface{}{"priority": "1 - Critical"}},
			wantValue: []interface{}{},
		},
		{
			name: "Success - normalized arguments reach the invoker",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				r.On("Resolve", mock.Anything, typed.Name).Return(typed, nil).Once()
				v.On("Validate", typed.InputSchema, map[string]interface{}{"priority": "1", "limit": "20"}).
					Return(map[string]interface{}{"priority": "1", "limit": 20.0}, nil).Once()
				i.On("Invoke", mock.Anything, typed, map[string]interface{}{"priority": "1", "limit": 20.0}).Return("ok", nil).Once()
			},
			call:      domain.ToolCall{Name: typed.Name, Arguments: map[string]interface{}{"priority": "1", "limit": "20"}},
			wantValue: "ok",
		},
		{
			name: "Failure - validation error names the field",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				r.On("Resolve", mock.Anything, typed.Name).Return(typed, nil).Once()
				v.On("Validate", typed.InputSchema, map[string]interface{}{}).
					Return(nil, fmt.Errorf("%w: priority: missing property", usecase.ErrInvalidArguments)).Once()
			},
			call:    domain.ToolCall{Name: typed.Name},
			wantErr: "tool get_report_open_by_priority: invalid arguments: priority: missing property",
		},
		{
			name: "Failure - unknown tool",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				r.On("Resolve", mock.Anything, "ghost").
					Return(domain.ToolDescriptor{}, fmt.Errorf("tool ghost: %w", usecase.ErrToolNotFound)).Once()
			},
			call:    domain.ToolCall{Name: "ghost"},
			wantErr: "not found",
		},
		{
			name: "Failure - invoker error surfaces as text",
			setup: func(r *MockToolResolver, v *MockArgumentValidator, i *MockToolInvoker) {
				r.On("Resolve", mock.Anything, untyped.Name).Return(untyped, nil).Once()
				i.On("Invoke", mock.Anything, untyped, map[string]interface{}{}).
					Return(nil, errors.New("API request failed with status 502: bad gateway")).Once()
			},
			call:    domain.ToolCall{Name: untyped.Name},
			wantErr: "API request failed with status 502: bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockToolResolver)
			validator := new(MockArgumentValidator)
			invoker := new(MockToolInvoker)
			tt.setup(resolver, validator, invoker)

			uc := usecase.NewInvokeToolUseCase(resolver, validator, invoker, testLogger())
			result := uc.Execute(ctx, tt.call)

			if tt.wantErr != "" {
				require.True(t, result.IsError())
				assert.Contains(t, result.Payload(), tt.wantErr)
			} else {
				require.False(t, result.IsError(), "unexpected error: %v", result.Err)
				assert.Equal(t, tt.wantValue, result.Payload())
			}
			resolver.AssertExpectations(t)
			validator.AssertExpectations(t)
			invoker.AssertExpectations(t)
		})
	}
}

// counterValues sums each int64 counter named in names by its tool_kind attribute.
func counterValues(t *testing.T, reader *sdkmetric.ManualReader, names ...string) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			byKind := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				kind, _ := dp.Attributes.Value(attribute.Key("tool_kind"))
				byKind[kind.AsString()] += dp.Value
			}
			out[m.Name] = byKind
		}
	}
	for _, name := range names {
		require.Contains(t, out, name)
	}
	return out
}

func TestInvokeToolUseCase_Metrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	static := staticTool("get_glpi_pc_count", "/glpi/pc_count")
	dynamic := dynamicTool("mock_api", "getUserById", "get", "/users/{userId}")

	resolver := new(MockToolResolver)
	resolver.On("Resolve", mock.Anything, static.Name).Return(static, nil)
	resolver.On("Resolve", mock.Anything, dynamic.Name).Return(dynamic, nil)
	resolver.On("Resolve", mock.Anything, "ghost").
		Return(domain.ToolDescriptor{}, fmt.Errorf("tool ghost: %w", usecase.ErrToolNotFound))

	invoker := new(MockToolInvoker)
	invoker.On("Invoke", mock.Anything, static, mock.Anything).Return(map[string]interface{}{"count": 3.0}, nil)
	invoker.On("Invoke", mock.Anything, dynamic, mock.Anything).Return(nil, errors.New("boom"))

	uc := usecase.NewInvokeToolUseCase(resolver, new(MockArgumentValidator), invoker, testLogger(), usecase.WithMeterProvider(provider))

	assert.False(t, uc.Execute(ctx, domain.ToolCall{Name: static.Name}).IsError())
	assert.False(t, uc.Execute(ctx, domain.ToolCall{Name: static.Name}).IsError())
	assert.True(t, uc.Execute(ctx, domain.ToolCall{Name: dynamic.Name}).IsError())
	assert.True(t, uc.Execute(ctx, domain.ToolCall{Name: "ghost"}).IsError())

	got := counterValues(t, reader, "mcphub.tool.calls", "mcphub.tool.failures")
	assert.Equal(t, map[string]int64{
		string(domain.ToolKindStaticProxy):  2,
		string(domain.ToolKindDynamicProxy): 1,
		"":                                  1,
	}, got["mcphub.tool.calls"])
	assert.Equal(t, map[string]int64{
		string(domain.ToolKindDynamicProxy): 1,
		"":                                  1,
	}, got["mcphub.tool.failures"])
}
