package usecase_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockSchemaFetcher is a mock implementation of the SchemaFetcher interface.
type MockSchemaFetcher struct {
	mock.Mock
}

func (m *MockSchemaFetcher) Fetch(ctx context.Context, api domain.APIConfig) (domain.APISchema, error) {
	args := m.Called(ctx, api)
	return args.Get(0).(domain.APISchema), args.Error(1)
}

// MockToolGenerator is a mock implementation of the ToolGenerator interface.
type MockToolGenerator struct {
	mock.Mock
}

func (m *MockToolGenerator) Generate(schema domain.APISchema) ([]domain.ToolDescriptor, error) {
	args := m.Called(schema)
	tools := args.Get(0)
	if tools == nil {
		return nil, args.Error(1)
	}
	return tools.([]domain.ToolDescriptor), args.Error(1)
}

// MockToolInvoker is a mock implementation of the ToolInvoker interface.
type MockToolInvoker struct {
	mock.Mock
}

func (m *MockToolInvoker) Invoke(ctx context.Context, tool domain.ToolDescriptor, params map[string]interface{}) (interface{}, error) {
	args := m.Called(ctx, tool, params)
	return args.Get(0), args.Error(1)
}

// MockArgumentValidator is a mock implementation of the ArgumentValidator interface.
type MockArgumentValidator struct {
	mock.Mock
}

func (m *MockArgumentValidator) Validate(schema domain.JSONSchemaProps, params map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(schema, params)
	out, _ := args.Get(0).(map[string]interface{})
	return out, args.Error(1)
}

// fakeNatives is a fixed NativeToolset.
type fakeNatives struct {
	local   []domain.ToolDescriptor
	utility []domain.ToolDescriptor
}

func (f fakeNatives) Descriptors(group usecase.NativeGroup) []domain.ToolDescriptor {
	if group == usecase.NativeGroupUtility {
		return f.utility
	}
	return f.local
}

// fakeStatics is a fixed StaticToolSource.
type fakeStatics []domain.ToolDescriptor

func (f fakeStatics) Descriptors() []domain.ToolDescriptor { return f }

// fakeCache records Put calls and serves them back.
type fakeCache struct {
	items map[string]domain.APISchema
}

func (c *fakeCache) Get(_ context.Context, key string) (domain.APISchema, bool) {
	s, ok := c.items[key]
	return s, ok
}

func (c *fakeCache) Put(_ context.Context, key string, schema domain.APISchema) {
	if c.items == nil {
		c.items = map[string]domain.APISchema{}
	}
	c.items[key] = schema
}

func nativeTool(name string) domain.ToolDescriptor {
	return domain.ToolDescriptor{Name: name, Route: domain.NativeRoute{Tool: name}}
}

func staticTool(name, endpoint string) domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        name,
		Route:       domain.StaticRoute{Backend: "servicenow", Endpoint: endpoint, Method: "GET"},
		Annotations: map[string]string{domain.AnnotationModule: "servicenow"},
	}
}

func dynamicTool(api, op, method, path string) domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:  api + "_" + op,
		Route: domain.DynamicRoute{APIName: api, Method: method, Path: path},
		Annotations: map[string]string{
			domain.AnnotationAPIName: api,
			domain.AnnotationMethod:  method,
			domain.AnnotationPath:    path,
		},
	}
}
