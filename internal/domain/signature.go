package domain

// resourceParamNames are parameter names that denote an injected resource handle
// rather than a caller-supplied argument.
var resourceParamNames = map[string]struct{}{
	"db":      {},
	"session": {},
	"conn":    {},
}

// IsResourceParam reports whether name follows the resource-handle naming convention.
func IsResourceParam(name string) bool {
	_, ok := resourceParamNames[name]
	return ok
}

// Param is one declared parameter of a native tool, in declaration order.
type Param struct {
	Name        string
	Description string
	// HasDefault marks optional parameters; Default is used when the caller omits them.
	HasDefault bool
	Default    interface{}
}

// Signature is the introspectable part of a native tool.
type Signature struct {
	Params []Param
	// Model, when set, is the tool's typed argument model. It replaces the
	// inferred schema and is validated on every call.
	Model *JSONSchemaProps
}

// NeedsResource reports whether the tool declares a resource handle parameter.
func (s *Signature) NeedsResource() bool {
	if s == nil {
		return false
	}
	for _, p := range s.Params {
		if IsResourceParam(p.Name) {
			return true
		}
	}
	return false
}

// InferInputSchema builds the input schema of a native tool. It never fails:
// a nil signature yields an object schema without properties.
//
// Every non-resource parameter becomes a string property, required iff it has
// no default. A declared Model is returned as-is instead.
func InferInputSchema(sig *Signature) JSONSchemaProps {
	if sig == nil {
		return ObjectSchema()
	}
	if sig.Model != nil {
		return *sig.Model
	}

	schema := ObjectSchema()
	for _, p := range sig.Params {
		if p.Name == "" || IsResourceParam(p.Name) {
			continue
		}
		schema.Properties[p.Name] = JSONSchemaProps{Type: "string", Description: p.Description}
		if !p.HasDefault {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}
