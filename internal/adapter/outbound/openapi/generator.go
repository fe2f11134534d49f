package openapi

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/mcphub/internal/domain"
)

// supportedMethods are the operations turned into tools, in emission order.
var supportedMethods = []string{"get", "post", "put", "delete"}

// ToolGenerator implements the usecase.ToolGenerator interface for OpenAPI schemas.
type ToolGenerator struct {
	logger *slog.Logger
}

// NewToolGenerator creates a new OpenAPI ToolGenerator.
func NewToolGenerator(logger *slog.Logger) *ToolGenerator {
	return &ToolGenerator{
		logger: logger.With("component", "openapi_generator"),
	}
}

// Generate emits one dynamic tool per get/post/put/delete operation of the document.
// Paths are visited in lexical order. An operation that cannot be converted is
// skipped without affecting the others.
func (g *ToolGenerator) Generate(schema domain.APISchema) ([]domain.ToolDescriptor, error) {
	log := g.logger.With(slog.String("source", schema.Source), slog.String("api_name", schema.APIName))
	log.Info("Generating tools from OpenAPI schema.")

	doc, ok := schema.ParsedData.(*openapi3.T)
	if !ok || doc == nil {
		log.Error("Invalid or missing parsed OpenAPI document in APISchema.")
		return nil, fmt.Errorf("invalid or missing parsed OpenAPI document in APISchema")
	}
	if schema.APIName == "" {
		return nil, fmt.Errorf("APISchema from %s has no api name", schema.Source)
	}
	if doc.Paths == nil {
		log.Warn("OpenAPI document has no paths")
		return nil, nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var tools []domain.ToolDescriptor
	skippedCount := 0
	for _, path := range paths {
		pathItem := pathMap[path]
		if pathItem == nil {
			continue
		}
		for _, method := range supportedMethods {
			operation := pathItem.GetOperation(strings.ToUpper(method))
			if operation == nil {
				continue
			}
			log := log.With(slog.String("path", path), slog.String("method", method))

			tool, err := g.convertOperation(schema.APIName, path, method, operation)
			if err != nil {
				log.Warn("Warning: skipping operation.", slog.Any("error", err))
				skippedCount++
				continue
			}
			tools = append(tools, tool)
			log.Debug("Generated tool.", slog.String("tool_name", tool.Name))
		}
	}

	log.Info("Finished generating tools from OpenAPI schema.",
		slog.Int("generated_count", len(tools)),
		slog.Int("skipped_count", skippedCount))
	return tools, nil
}

// convertOperation builds the descriptor of a single operation. Panics raised
// while walking a malformed operation are returned as errors.
func (g *ToolGenerator) convertOperation(apiName, path, method string, op *openapi3.Operation) (tool domain.ToolDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed operation: %v", r)
		}
	}()

	operationID := op.OperationID
	if operationID == "" {
		operationID = fallbackOperationID(method, path)
	}
	name := apiName + "_" + operationID

	description := op.Summary
	if description == "" {
		description = op.Description
	}

	return domain.ToolDescriptor{
		Name:         name,
		Title:        domain.TitleFromName(name),
		Description:  description,
		InputSchema:  generateInputSchema(op.Parameters, op.RequestBody),
		OutputSchema: domain.GenericOutputSchema(),
		Annotations: map[string]string{
			domain.AnnotationPath:    path,
			domain.AnnotationMethod:  method,
			domain.AnnotationAPIName: apiName,
		},
		Route: domain.DynamicRoute{APIName: apiName, Method: method, Path: path},
	}, nil
}

// fallbackOperationID names an operation without operationId: "get /users/{id}" gives "get__users_id".
func fallbackOperationID(method, path string) string {
	replacer := strings.NewReplacer("/", "_", "{", "", "}", "")
	return method + "_" + replacer.Replace(path)
}

// generateInputSchema merges the declared parameters and the top level properties
// of a JSON request body into one flat object schema. Body properties replace
// parameters of the same name.
func generateInputSchema(params openapi3.Parameters, requestBody *openapi3.RequestBodyRef) domain.JSONSchemaProps {
	schema := domain.ObjectSchema()
	var required []string

	for _, paramRef := range params {
		if paramRef == nil || paramRef.Value == nil || paramRef.Value.Name == "" {
			continue
		}
		param := paramRef.Value
		schema.Properties[param.Name] = domain.JSONSchemaProps{
			Type:        schemaType(param.Schema),
			Description: param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	if requestBody != nil && requestBody.Value != nil {
		jsonContent := requestBody.Value.Content.Get("application/json")
		if jsonContent != nil && jsonContent.Schema != nil && jsonContent.Schema.Value != nil {
			body := jsonContent.Schema.Value
			for name, propRef := range body.Properties {
				prop := domain.JSONSchemaProps{Type: schemaType(propRef)}
				if propRef != nil && propRef.Value != nil {
					prop.Description = propRef.Value.Description
				}
				schema.Properties[name] = prop
			}
			for _, name := range body.Required {
				if _, ok := body.Properties[name]; ok {
					required = append(required, name)
				}
			}
		}
	}

	schema.Required = uniqueStrings(required)
	return schema
}

// schemaType returns the first declared type of ref, or "string" when none is declared.
func schemaType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil || len(*ref.Value.Type) == 0 {
		return "string"
	}
	return (*ref.Value.Type)[0]
}

// uniqueStrings removes duplicate strings from a slice, keeping the first occurrence.
func uniqueStrings(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(input))
	j := 0
	for _, v := range input {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		input[j] = v
		j++
	}
	return input[:j]
}
