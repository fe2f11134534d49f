package domain

import (
	"strings"
	"unicode"
)

// ToolKind discriminates the execution path of a tool.
type ToolKind string

const (
	// ToolKindNative tools run in-process.
	ToolKindNative ToolKind = "native"
	// ToolKindStaticProxy tools forward to a fixed endpoint on a sibling microservice.
	ToolKindStaticProxy ToolKind = "static_proxy"
	// ToolKindDynamicProxy tools were synthesized from an OpenAPI document and replay
	// the described operation against the owning API.
	ToolKindDynamicProxy ToolKind = "dynamic_proxy"
)

// Route carries everything the dispatcher needs to execute a tool. It is resolved
// once when the catalog is built and never re-derived from the tool name.
type Route interface {
	Kind() ToolKind
}

// NativeRoute points at an in-process tool registered under Tool.
type NativeRoute struct {
	Tool string
}

// Kind implements Route.
func (NativeRoute) Kind() ToolKind { return ToolKindNative }

// StaticRoute points at Endpoint on the microservice named Backend.
// Method is decided when the table entry is turned into a descriptor.
type StaticRoute struct {
	Backend  string
	Endpoint string
	Method   string
}

// Kind implements Route.
func (StaticRoute) Kind() ToolKind { return ToolKindStaticProxy }

// DynamicRoute replays one OpenAPI operation of the API named APIName.
type DynamicRoute struct {
	APIName string
	Method  string // lower case, as found in the document
	Path    string // template, e.g. /users/{userId}
}

// Kind implements Route.
func (DynamicRoute) Kind() ToolKind { return ToolKindDynamicProxy }

// Annotation keys exposed on descriptors.
const (
	AnnotationPath    = "path"
	AnnotationMethod  = "method"
	AnnotationAPIName = "api_name"
	AnnotationModule  = "module"
)

// ToolDescriptor represents one callable unit in the catalog,
// compliant with the Model Context Protocol (MCP) tool listing.
type ToolDescriptor struct {
	// Name MUST be unique within the catalog.
	Name string `json:"name"`

	// Title is derived from Name, see TitleFromName.
	Title string `json:"title"`

	// Description provides a natural language explanation of what the tool does.
	Description string `json:"description"`

	// InputSchema defines the structure of the data the tool expects.
	InputSchema JSONSchemaProps `json:"inputSchema"`

	// OutputSchema describes the result shape on a best-effort basis.
	OutputSchema *JSONSchemaProps `json:"outputSchema,omitempty"`

	// Annotations is the client-visible routing metadata:
	// {path, method, api_name} for dynamic tools, {module} for static ones,
	// empty for local tools.
	Annotations map[string]string `json:"annotations"`

	// Route is the execution path. Not part of the wire format.
	Route Route `json:"-"`

	// TypedArguments is set when InputSchema is a declared argument model
	// that calls must validate against.
	TypedArguments bool `json:"-"`
}

// Kind returns the kind of the descriptor's route, or "" if it has none.
func (t ToolDescriptor) Kind() ToolKind {
	if t.Route == nil {
		return ""
	}
	return t.Route.Kind()
}

// JSONSchemaProps represents the properties of a JSON schema,
// used for input and output definitions in MCP tools.
type JSONSchemaProps struct {
	Type        string                     `json:"type,omitempty"`
	Title       string                     `json:"title,omitempty"`
	Description string                     `json:"description,omitempty"`
	Properties  map[string]JSONSchemaProps `json:"properties,omitempty"`
	Required    []string                   `json:"required,omitempty"`
	Items       *JSONSchemaProps           `json:"items,omitempty"`
	Format      string                     `json:"format,omitempty"`
	Enum        []interface{}              `json:"enum,omitempty"`
	Default     interface{}                `json:"default,omitempty"`
}

// ObjectSchema returns an empty object schema.
func ObjectSchema() JSONSchemaProps {
	return JSONSchemaProps{Type: "object", Properties: map[string]JSONSchemaProps{}}
}

// GenericOutputSchema is the output schema of tools whose response shape is not modeled.
func GenericOutputSchema() *JSONSchemaProps {
	return &JSONSchemaProps{
		Type: "object",
		Properties: map[string]JSONSchemaProps{
			"data": {Type: "object"},
		},
	}
}

// TitleFromName turns "get_report_open_by_priority" into "Get Report Open By Priority".
// Letters following a non-letter are upper-cased, all others lower-cased.
func TitleFromName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevLetter := false
	for _, r := range strings.ReplaceAll(name, "_", " ") {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
