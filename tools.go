package main

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Tool names
const (
	ToolQuery         = "postgres_query"
	ToolListTables    = "postgres_list_tables"
	ToolDescribeTable = "postgres_describe_table"
)

// catalog is declared once and never mutated.
var catalog = []Tool{
	{
		Name:        ToolQuery,
		Description: "Execute a SQL query on the PostgreSQL database. Use this to SELECT, INSERT, UPDATE, or DELETE data.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "The SQL query to execute (e.g., SELECT * FROM employees WHERE department='Engineering')",
				},
			},
			Required: []string{"query"},
		},
	},
	{
		Name:        ToolListTables,
		Description: "List all tables in the current PostgreSQL database",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
			Required:   []string{},
		},
	},
	{
		Name:        ToolDescribeTable,
		Description: "Get the schema/structure of a specific table including column names and types",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"table_name": {
					Type:        "string",
					Description: "Name of the table to describe",
				},
			},
			Required: []string{"table_name"},
		},
	},
}

// ToolRegistry is the read-only tool catalog shared by every request.
type ToolRegistry struct {
	tools   []Tool
	schemas map[string]*gojsonschema.Schema
}

// NewToolRegistry compiles the input schema of every cataloged tool.
func NewToolRegistry() (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools:   catalog,
		schemas: make(map[string]*gojsonschema.Schema, len(catalog)),
	}
	for _, tool := range catalog {
		if _, exists := r.schemas[tool.Name]; exists {
			return nil, fmt.Errorf("duplicate tool: %s", tool.Name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDocument(tool.InputSchema)))
		if err != nil {
			return nil, fmt.Errorf("invalid input schema for %s: %w", tool.Name, err)
		}
		r.schemas[tool.Name] = schema
	}
	return r, nil
}

// ListTools returns the catalog in declaration order.
func (r *ToolRegistry) ListTools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Has reports whether name is a cataloged tool.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.schemas[name]
	return ok
}

// ValidateArguments checks args against the tool's input schema.
func (r *ToolRegistry) ValidateArguments(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// schemaDocument renders an InputSchema for the validator. An empty
// required list is dropped; draft-04 does not allow it.
func schemaDocument(s InputSchema) map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = map[string]any{"type": p.Type}
	}
	doc := map[string]any{
		"type":       s.Type,
		"properties": props,
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, r := range s.Required {
			required[i] = r
		}
		doc["required"] = required
	}
	return doc
}
