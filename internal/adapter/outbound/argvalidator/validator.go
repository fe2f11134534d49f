package argvalidator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// Validator implements usecase.ArgumentValidator with JSON Schema.
// Compiled schemas are kept per distinct schema document.
type Validator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
	printer  *message.Printer
	logger   *slog.Logger
}

// New creates a Validator.
func New(logger *slog.Logger) *Validator {
	return &Validator{
		compiled: make(map[string]*jsonschema.Schema),
		printer:  message.NewPrinter(language.English),
		logger:   logger.With("component", "arg_validator"),
	}
}

// Validate checks args against schema and returns them with string values
// coerced where a property is declared number, integer or boolean ("40.7"
// becomes 40.7). Violations are reported per field and wrap
// usecase.ErrInvalidArguments. args is not modified.
func (v *Validator) Validate(schema domain.JSONSchemaProps, args map[string]interface{}) (map[string]interface{}, error) {
	compiled, err := v.compile(schema)
	if err != nil {
		return nil, err
	}
	args = coerce(schema, args)

	// Normalize Go values to their JSON form so numbers and nested maps validate uniformly.
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrInvalidArguments, err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrInvalidArguments, err)
	}

	err = compiled.Validate(instance)
	if err == nil {
		return args, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("%w: %v", usecase.ErrInvalidArguments, err)
	}
	return nil, fmt.Errorf("%w: %s", usecase.ErrInvalidArguments, strings.Join(v.fieldMessages(ve), "; "))
}

// coerce copies args, converting top-level strings to the scalar type their
// property declares. Strings that do not parse are kept for the schema to reject.
func coerce(schema domain.JSONSchemaProps, args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, val := range args {
		out[k] = val
		s, ok := val.(string)
		if !ok {
			continue
		}
		prop, ok := schema.Properties[k]
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		switch prop.Type {
		case "number":
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				out[k] = f
			}
		case "integer":
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
				out[k] = f
			}
		case "boolean":
			switch strings.ToLower(s) {
			case "true":
				out[k] = true
			case "false":
				out[k] = false
			}
		}
	}
	return out
}

func (v *Validator) compile(schema domain.JSONSchemaProps) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(doc)

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.compiled[key]; ok {
		return s, nil
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := c.Compile("schema.json")
	if err != nil {
		v.logger.Error("Failed to compile argument schema", slog.Any("error", err))
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.compiled[key] = s
	return s, nil
}

// fieldMessages flattens the error tree into "field: message" lines, sorted.
func (v *Validator) fieldMessages(ve *jsonschema.ValidationError) []string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		msg := e.ErrorKind.LocalizedString(v.printer)
		if len(e.InstanceLocation) > 0 {
			msg = strings.Join(e.InstanceLocation, ".") + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	walk(ve)
	sort.Strings(msgs)
	return msgs
}
