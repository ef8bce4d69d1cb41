package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// ToolDispatcher turns a tool call into SQL and runs it. Database failures
// are reported inside the ToolResult and never returned as errors.
type ToolDispatcher struct {
	registry *ToolRegistry
	adapter  DBAdapter
	executor QueryExecutor
	logger   Logger
}

// NewToolDispatcher creates a dispatcher over the given executor.
func NewToolDispatcher(registry *ToolRegistry, adapter DBAdapter, executor QueryExecutor, logger Logger) *ToolDispatcher {
	return &ToolDispatcher{
		registry: registry,
		adapter:  adapter,
		executor: executor,
		logger:   logger,
	}
}

// Call executes the named tool.
func (d *ToolDispatcher) Call(ctx context.Context, name string, args map[string]any) ToolResult {
	ctx, span := StartSpan(ctx, "ToolDispatcher.Call")
	span.SetAttributes(attribute.String("tool.name", name))
	defer span.End()

	if args == nil {
		args = map[string]any{}
	}

	log := d.logger.WithContext(ctx).WithFields(map[string]any{"tool": name})

	if !d.registry.Has(name) {
		log.Warn("Unknown tool requested")
		return failedResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	if err := d.registry.ValidateArguments(name, args); err != nil {
		log.WithErr(err).Warn("Invalid tool arguments")
		return failedResult(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
	}

	var query string
	switch name {
	case ToolListTables:
		query = d.adapter.ListTablesQuery()
	case ToolDescribeTable:
		query = d.adapter.DescribeTableQuery(stringArg(args, "table_name"))
	case ToolQuery:
		query = stringArg(args, "query")
	}

	outcome, err := d.executor.Execute(ctx, query)
	if err != nil {
		log.WithErr(err).Error("Query execution error")
		span.RecordError(err)
		return failedResult(err.Error())
	}

	if !outcome.ReadLike {
		return writeResult(outcome.AffectedRows)
	}
	rows := make([]Row, 0, len(outcome.Rows))
	for _, values := range outcome.Rows {
		rows = append(rows, NewRow(outcome.Columns, values))
	}
	return readResult(rows)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
