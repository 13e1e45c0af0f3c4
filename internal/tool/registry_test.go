package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/choijun/dbhub/internal/db"
	"github.com/choijun/dbhub/internal/llm"
)

func echoEntry(name string) Entry {
	return Entry{
		Def: llm.Tool{Name: name, Description: "echo", Parameters: obj(map[string]any{})},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

// --- NewRegistry ---

func TestNewRegistry_Valid(t *testing.T) {
	r, err := NewRegistry(echoEntry("a"), echoEntry("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defs := r.Definitions()
	if len(defs) != 2 || defs[0].Name != "a" || defs[1].Name != "b" {
		t.Errorf("definitions out of order: %+v", defs)
	}
}

func TestNewRegistry_EmptyName(t *testing.T) {
	if _, err := NewRegistry(echoEntry("")); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestNewRegistry_NilRun(t *testing.T) {
	e := echoEntry("a")
	e.Run = nil
	if _, err := NewRegistry(e); err == nil {
		t.Error("expected error for nil implementation")
	}
}

func TestNewRegistry_NonObjectSchema(t *testing.T) {
	e := echoEntry("a")
	e.Def.Parameters = map[string]any{"type": "string"}
	if _, err := NewRegistry(e); err == nil {
		t.Error("expected error for non-object schema")
	}
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	if _, err := NewRegistry(echoEntry("a"), echoEntry("a")); err == nil {
		t.Error("expected error for duplicate name")
	}
}

// --- Execute ---

func TestExecute_Success(t *testing.T) {
	r, _ := NewRegistry(echoEntry("echo"))
	res := r.Execute(context.Background(), llm.ToolCall{ID: "c1", Name: "echo", Args: map[string]any{"k": "v"}})
	if res.ToolCallID != "c1" || res.Name != "echo" {
		t.Errorf("result identity wrong: %+v", res)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(res.Content), &got); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if got["k"] != "v" {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	r, _ := NewRegistry(echoEntry("echo"))
	res := r.Execute(context.Background(), llm.ToolCall{ID: "c1", Name: "nope"})
	if !strings.Contains(res.Content, `"error"`) || !strings.Contains(res.Content, "unknown tool") {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestExecute_RunError(t *testing.T) {
	e := Entry{
		Def: llm.Tool{Name: "boom", Parameters: obj(map[string]any{})},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("table vanished")
		},
	}
	r, _ := NewRegistry(e)
	res := r.Execute(context.Background(), llm.ToolCall{Name: "boom"})
	var got map[string]string
	if err := json.Unmarshal([]byte(res.Content), &got); err != nil {
		t.Fatalf("content not JSON: %v", err)
	}
	if got["error"] != "table vanished" {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestExecute_NilArgs(t *testing.T) {
	var sawNil bool
	e := Entry{
		Def: llm.Tool{Name: "check", Parameters: obj(map[string]any{})},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			sawNil = args == nil
			return "ok", nil
		},
	}
	r, _ := NewRegistry(e)
	r.Execute(context.Background(), llm.ToolCall{Name: "check", Args: nil})
	if sawNil {
		t.Error("nil args should be replaced with an empty map")
	}
}

// --- StringArg ---

func TestStringArg_Present(t *testing.T) {
	got, err := StringArg(map[string]any{"table_name": "orders"}, "table_name")
	if err != nil || got != "orders" {
		t.Errorf("expected orders, got (%q, %v)", got, err)
	}
}

func TestStringArg_Missing(t *testing.T) {
	if _, err := StringArg(map[string]any{}, "table_name"); err == nil {
		t.Error("expected error for missing argument")
	}
}

func TestStringArg_WrongType(t *testing.T) {
	if _, err := StringArg(map[string]any{"table_name": 7}, "table_name"); err == nil {
		t.Error("expected error for non-string argument")
	}
}

func TestStringArg_Empty(t *testing.T) {
	if _, err := StringArg(map[string]any{"table_name": ""}, "table_name"); err == nil {
		t.Error("expected error for empty string")
	}
}

// --- builtin tools ---

type fakeExecutor struct {
	tables  []db.TableSummary
	schemas map[string]*db.TableSchema
}

func (f *fakeExecutor) Validate(ctx context.Context, query string) error { return nil }
func (f *fakeExecutor) Execute(ctx context.Context, query string) ([]db.Row, error) {
	return nil, nil
}
func (f *fakeExecutor) ListSchemas(ctx context.Context) ([]db.TableSummary, error) {
	return f.tables, nil
}
func (f *fakeExecutor) DescribeSchema(ctx context.Context, table string) (*db.TableSchema, error) {
	s, ok := f.schemas[table]
	if !ok {
		return nil, db.ErrTableNotFound
	}
	return s, nil
}

func TestListTables(t *testing.T) {
	exec := &fakeExecutor{tables: []db.TableSummary{{Name: "orders", Comment: "customer orders"}}}
	r, _ := NewRegistry(ListTables(exec))
	res := r.Execute(context.Background(), llm.ToolCall{Name: "list_tables"})
	if !strings.Contains(res.Content, "orders") || !strings.Contains(res.Content, "customer orders") {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestDescribeTable_Found(t *testing.T) {
	exec := &fakeExecutor{schemas: map[string]*db.TableSchema{
		"orders": {Name: "orders", Columns: []db.Column{{Name: "id", Type: "INTEGER", Key: "PRI"}}},
	}}
	r, _ := NewRegistry(DescribeTable(exec))
	res := r.Execute(context.Background(), llm.ToolCall{Name: "describe_table", Args: map[string]any{"table_name": "orders"}})
	if !strings.Contains(res.Content, `"id"`) || !strings.Contains(res.Content, "INTEGER") {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestDescribeTable_NotFound(t *testing.T) {
	exec := &fakeExecutor{schemas: map[string]*db.TableSchema{}}
	r, _ := NewRegistry(DescribeTable(exec))
	res := r.Execute(context.Background(), llm.ToolCall{Name: "describe_table", Args: map[string]any{"table_name": "ghost"}})
	if !strings.Contains(res.Content, `"error"`) {
		t.Errorf("expected error content, got %s", res.Content)
	}
}

func TestDescribeTable_MissingArg(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := NewRegistry(DescribeTable(exec))
	res := r.Execute(context.Background(), llm.ToolCall{Name: "describe_table", Args: map[string]any{}})
	if !strings.Contains(res.Content, `"error"`) || !strings.Contains(res.Content, "table_name") {
		t.Errorf("expected missing-argument error, got %s", res.Content)
	}
}

func TestQueryDatabase_Delegates(t *testing.T) {
	var gotQuestion string
	r, _ := NewRegistry(QueryDatabase(func(ctx context.Context, question string) (any, error) {
		gotQuestion = question
		return map[string]any{"sql_query": "SELECT 1;"}, nil
	}))
	res := r.Execute(context.Background(), llm.ToolCall{Name: "query_database", Args: map[string]any{"question": "how many orders?"}})
	if gotQuestion != "how many orders?" {
		t.Errorf("question not delegated, got %q", gotQuestion)
	}
	if !strings.Contains(res.Content, "SELECT 1;") {
		t.Errorf("unexpected content: %s", res.Content)
	}
}
