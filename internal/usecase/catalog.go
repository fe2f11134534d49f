package usecase

import (
	"fmt"

	"github.com/i2y/mcphub/internal/domain"
)

// Catalog is an ordered, name-unique set of tool descriptors. It is both what
// tools/list returns and what the dispatcher resolves against.
type Catalog struct {
	tools []domain.ToolDescriptor
	index map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Add appends a descriptor. Names must be unique.
func (c *Catalog) Add(tool domain.ToolDescriptor) error {
	if tool.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if _, exists := c.index[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	if tool.Annotations == nil {
		tool.Annotations = map[string]string{}
	}
	c.index[tool.Name] = len(c.tools)
	c.tools = append(c.tools, tool)
	return nil
}

// Lookup finds a descriptor by name.
func (c *Catalog) Lookup(name string) (domain.ToolDescriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return domain.ToolDescriptor{}, false
	}
	return c.tools[i], true
}

// Tools returns the descriptors in insertion order.
func (c *Catalog) Tools() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int { return len(c.tools) }
