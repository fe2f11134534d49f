// Package native holds the in-process tools and the registry that describes and calls them.
package native

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// Input is what a native tool receives for one call.
type Input struct {
	Args map[string]interface{}
	// DB is set only for tools whose signature declares a resource handle.
	DB *sql.Conn
}

// Func is the body of a native tool.
type Func func(ctx context.Context, in Input) (interface{}, error)

// Tool is a registered native tool.
type Tool struct {
	Name        string
	Description string
	Group       usecase.NativeGroup
	Signature   *domain.Signature
	Func        Func
}

// Registry keeps native tools in registration order. It implements usecase.NativeToolset.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry creates a Registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Func == nil {
		return fmt.Errorf("native tool needs a name and a function")
	}
	if _, dup := r.index[t.Name]; dup {
		return fmt.Errorf("native tool %s: %w", t.Name, usecase.ErrDuplicateTool)
	}
	r.index[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Descriptors returns the descriptors of the tools in group.
func (r *Registry) Descriptors(group usecase.NativeGroup) []domain.ToolDescriptor {
	var out []domain.ToolDescriptor
	for _, t := range r.tools {
		if t.Group != group {
			continue
		}
		output := domain.ObjectSchema()
		out = append(out, domain.ToolDescriptor{
			Name:           t.Name,
			Title:          domain.TitleFromName(t.Name),
			Description:    t.Description,
			InputSchema:    domain.InferInputSchema(t.Signature),
			OutputSchema:   &output,
			Annotations:    map[string]string{},
			Route:          domain.NativeRoute{Tool: t.Name},
			TypedArguments: t.Signature != nil && t.Signature.Model != nil,
		})
	}
	return out
}

// NeedsResource reports whether the named tool takes a database handle.
func (r *Registry) NeedsResource(name string) bool {
	t, ok := r.Lookup(name)
	return ok && t.Signature.NeedsResource()
}

// Call runs the named tool. Declared defaults fill in omitted arguments.
func (r *Registry) Call(ctx context.Context, name string, in Input) (interface{}, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, usecase.ErrToolNotFound)
	}

	args := make(map[string]interface{}, len(in.Args))
	for k, v := range in.Args {
		args[k] = v
	}
	if t.Signature != nil {
		for _, p := range t.Signature.Params {
			if _, given := args[p.Name]; !given && p.HasDefault && !domain.IsResourceParam(p.Name) {
				args[p.Name] = p.Default
			}
		}
	}
	in.Args = args
	if !t.Signature.NeedsResource() {
		in.DB = nil
	}
	return t.Func(ctx, in)
}

// Decode converts loosely typed arguments into T through their JSON form.
func Decode[T any](args map[string]interface{}) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("%w: %v", usecase.ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", usecase.ErrInvalidArguments, err)
	}
	return out, nil
}

// StringArg returns args[name] as a string, formatting non-string values.
func StringArg(args map[string]interface{}, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	return httpinvoker.FormatArg(v)
}
