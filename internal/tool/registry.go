// Package tool holds the fixed registry of database-introspection tools the
// model may call.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/choijun/dbhub/internal/llm"
)

// Func executes one tool call. Returned values are JSON-serialized into the
// tool result; errors are serialized as {"error": ...} so the model can react
// instead of the session aborting.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Entry binds a tool definition to its implementation.
type Entry struct {
	Def llm.Tool
	Run Func
}

// Registry is the read-only tool table, populated once at startup.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry validates the entries (unique names, runnable, object-typed
// parameter schema) and builds the registry.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Def.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if e.Run == nil {
			return nil, fmt.Errorf("tool %s has no implementation", e.Def.Name)
		}
		if t, ok := e.Def.Parameters["type"].(string); !ok || t != "object" {
			return nil, fmt.Errorf("tool %s: parameter schema must be an object schema", e.Def.Name)
		}
		if _, dup := r.entries[e.Def.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", e.Def.Name)
		}
		r.entries[e.Def.Name] = e
		r.order = append(r.order, e.Def.Name)
	}
	return r, nil
}

// Definitions returns the tool schemas in registration order; the same list
// is sent on every turn.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].Def)
	}
	return defs
}

// Execute runs one call and always produces a result: unknown tools, bad
// arguments, and collaborator failures all come back as {"error": ...}
// content rather than an error.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{ToolCallID: call.ID, Name: call.Name}

	entry, ok := r.entries[call.Name]
	if !ok {
		result.Content = errorContent(fmt.Sprintf("unknown tool: %s", call.Name))
		return result
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	out, err := entry.Run(ctx, args)
	if err != nil {
		result.Content = errorContent(err.Error())
		return result
	}

	b, err := json.Marshal(out)
	if err != nil {
		result.Content = errorContent("unserializable tool result: " + err.Error())
		return result
	}
	result.Content = string(b)
	return result
}

func errorContent(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// StringArg extracts a required string argument.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %s must be a non-empty string", key)
	}
	return s, nil
}
