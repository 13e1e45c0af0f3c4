package tool

import (
	"context"

	"github.com/choijun/dbhub/internal/db"
	"github.com/choijun/dbhub/internal/llm"
)

func obj(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

// ListTables enumerates the available tables with their comments. Called
// before SQL generation to check what exists.
func ListTables(exec db.Executor) Entry {
	return Entry{
		Def: llm.Tool{
			Name:        "list_tables",
			Description: "List every table in the database with its description. Call this before generating SQL to check which tables exist.",
			Parameters:  obj(map[string]any{}),
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return exec.ListSchemas(ctx)
		},
	}
}

// DescribeTable reports the columns of one table: name, type, nullability,
// key, default, and comment.
func DescribeTable(exec db.Executor) Entry {
	return Entry{
		Def: llm.Tool{
			Name:        "describe_table",
			Description: "Return the schema of one table: column names, types, nullability, keys, and descriptions. Must be called for every table a query references.",
			Parameters: obj(map[string]any{
				"table_name": prop("string", "Name of the table to describe"),
			}, "table_name"),
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			table, err := StringArg(args, "table_name")
			if err != nil {
				return nil, err
			}
			return exec.DescribeSchema(ctx, table)
		},
	}
}

// SubQueryFunc answers a nested natural-language question. The implementation
// is supplied by the orchestration engine, which guards against re-entry.
type SubQueryFunc func(ctx context.Context, question string) (any, error)

// QueryDatabase is the escape hatch: delegate a natural-language sub-question
// back to the engine.
func QueryDatabase(run SubQueryFunc) Entry {
	return Entry{
		Def: llm.Tool{
			Name:        "query_database",
			Description: "Answer a natural-language sub-question against the database and return its rows. Use only when a direct schema lookup is not enough.",
			Parameters: obj(map[string]any{
				"question": prop("string", "The natural-language question to answer"),
			}, "question"),
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			question, err := StringArg(args, "question")
			if err != nil {
				return nil, err
			}
			return run(ctx, question)
		},
	}
}
