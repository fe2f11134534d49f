package domain

// reservedArgumentKeys are JSON-RPC envelope fields some clients echo into tool arguments.
var reservedArgumentKeys = []string{"method", "result", "id"}

// ToolCall is a single tools/call request after it left the protocol envelope.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// Cleaned returns a copy of the call without reserved envelope keys in its arguments.
// The receiver's map is not modified.
func (c ToolCall) Cleaned() ToolCall {
	args := make(map[string]interface{}, len(c.Arguments))
	for k, v := range c.Arguments {
		args[k] = v
	}
	for _, k := range reservedArgumentKeys {
		delete(args, k)
	}
	return ToolCall{Name: c.Name, Arguments: args}
}
