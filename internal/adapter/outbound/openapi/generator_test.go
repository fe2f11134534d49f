package openapi_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcphub/internal/adapter/outbound/openapi"
	"github.com/i2y/mcphub/internal/domain"
)

const mockAPISpec = `{
  "openapi": "3.0.0",
  "info": {"title": "Mock API", "version": "1.0.0"},
  "servers": [{"url": "https://api.mock.com"}],
  "paths": {
    "/users/{userId}": {
      "get": {
        "operationId": "getUserById",
        "summary": "Get a user by ID",
        "parameters": [
          {"name": "userId", "in": "path", "required": true, "description": "The user id", "schema": {"type": "integer"}}
        ],
        "responses": {"200": {"description": "OK"}}
      },
      "delete": {
        "description": "Remove a user",
        "parameters": [
          {"name": "userId", "in": "path", "required": true, "schema": {"type": "integer"}}
        ],
        "responses": {"204": {"description": "Gone"}}
      },
      "patch": {
        "operationId": "patchUser",
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/users": {
      "post": {
        "operationId": "createUser",
        "parameters": [
          {"name": "dryRun", "in": "query", "schema": {"type": "boolean"}},
          {"name": "trace", "in": "header"}
        ],
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["name"],
                "properties": {
                  "name": {"type": "string", "description": "Full name"},
                  "age": {"type": "integer"},
                  "address": {"type": "object", "properties": {"city": {"type": "string"}}},
                  "nickname": {}
                }
              }
            }
          }
        },
        "responses": {"201": {"description": "Created"}}
      }
    }
  }
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadSchema(t *testing.T, apiName, spec string) domain.APISchema {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(spec))
	require.NoError(t, err)
	return domain.APISchema{Source: "test", APIName: apiName, RawData: []byte(spec), ParsedData: doc}
}

func toolByName(tools []domain.ToolDescriptor, name string) (domain.ToolDescriptor, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return domain.ToolDescriptor{}, false
}

func TestToolGenerator_Generate(t *testing.T) {
	gen := openapi.NewToolGenerator(testLogger())

	tools, err := gen.Generate(loadSchema(t, "mock_api", mockAPISpec))
	require.NoError(t, err)

	// patch is not a supported method; paths are visited in lexical order.
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.True(t, strings.HasPrefix(tool.Name, "mock_api_"))
		assert.Equal(t, domain.ToolKindDynamicProxy, tool.Kind())
		assert.Equal(t, domain.GenericOutputSchema(), tool.OutputSchema)
	}
	assert.Equal(t, []string{"mock_api_createUser", "mock_api_getUserById", "mock_api_delete__users_userId"}, names)

	t.Run("path parameters and annotations", func(t *testing.T) {
		tool, ok := toolByName(tools, "mock_api_getUserById")
		require.True(t, ok)
		assert.Equal(t, "Mock Api Getuserbyid", tool.Title)
		assert.Equal(t, "Get a user by ID", tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.Equal(t, domain.JSONSchemaProps{Type: "integer", Description: "The user id"}, tool.InputSchema.Properties["userId"])
		assert.Equal(t, []string{"userId"}, tool.InputSchema.Required)
		assert.Equal(t, map[string]string{"path": "/users/{userId}", "method": "get", "api_name": "mock_api"}, tool.Annotations)
		assert.Equal(t, domain.DynamicRoute{APIName: "mock_api", Method: "get", Path: "/users/{userId}"}, tool.Route)
	})

	t.Run("fallback operation id and description", func(t *testing.T) {
		tool, ok := toolByName(tools, "mock_api_delete__users_userId")
		require.True(t, ok)
		assert.Equal(t, "Remove a user", tool.Description)
		assert.Equal(t, "delete", tool.Annotations["method"])
	})

	t.Run("request body flattened one level", func(t *testing.T) {
		tool, ok := toolByName(tools, "mock_api_createUser")
		require.True(t, ok)
		props := tool.InputSchema.Properties
		assert.Equal(t, domain.JSONSchemaProps{Type: "boolean"}, props["dryRun"])
		assert.Equal(t, domain.JSONSchemaProps{Type: "string"}, props["trace"])
		assert.Equal(t, domain.JSONSchemaProps{Type: "string", Description: "Full name"}, props["name"])
		assert.Equal(t, domain.JSONSchemaProps{Type: "integer"}, props["age"])
		assert.Equal(t, domain.JSONSchemaProps{Type: "object"}, props["address"])
		assert.Equal(t, domain.JSONSchemaProps{Type: "string"}, props["nickname"])
		assert.Equal(t, []string{"name"}, tool.InputSchema.Required)
		assert.Empty(t, tool.Description)
	})
}

func TestToolGenerator_Generate_InvalidSchema(t *testing.T) {
	gen := openapi.NewToolGenerator(testLogger())

	_, err := gen.Generate(domain.APISchema{Source: "test", APIName: "x", ParsedData: "not a document"})
	assert.Error(t, err)

	schema := loadSchema(t, "", mockAPISpec)
	_, err = gen.Generate(schema)
	assert.Error(t, err)
}

func TestToolGenerator_Generate_NoPaths(t *testing.T) {
	gen := openapi.NewToolGenerator(testLogger())
	schema := domain.APISchema{APIName: "empty", ParsedData: &openapi3.T{OpenAPI: "3.0.0"}}

	tools, err := gen.Generate(schema)
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestToolGenerator_OneToolPerOperation(t *testing.T) {
	gen := openapi.NewToolGenerator(testLogger())
	schema := loadSchema(t, "svc", `{
  "openapi": "3.0.0",
  "info": {"title": "S", "version": "1"},
  "paths": {
    "/a": {
      "get": {"responses": {"200": {"description": "ok"}}},
      "post": {"responses": {"200": {"description": "ok"}}},
      "put": {"responses": {"200": {"description": "ok"}}},
      "delete": {"responses": {"200": {"description": "ok"}}},
      "head": {"responses": {"200": {"description": "ok"}}}
    }
  }
}`)

	tools, err := gen.Generate(schema)
	require.NoError(t, err)
	require.Len(t, tools, 4)
	assert.Equal(t, "svc_get__a", tools[0].Name)
	assert.Equal(t, "svc_post__a", tools[1].Name)
	assert.Equal(t, "svc_put__a", tools[2].Name)
	assert.Equal(t, "svc_delete__a", tools[3].Name)
	for _, tool := range tools {
		assert.Empty(t, tool.InputSchema.Properties)
	}
}
