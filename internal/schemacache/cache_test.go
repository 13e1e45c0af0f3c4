package schemacache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/choijun/dbhub/internal/db"
)

type fakeExecutor struct {
	tables   []db.TableSummary
	schemas  map[string]*db.TableSchema
	listErr  error
	describe func(table string) (*db.TableSchema, error)
}

func (f *fakeExecutor) Validate(ctx context.Context, query string) error { return nil }
func (f *fakeExecutor) Execute(ctx context.Context, query string) ([]db.Row, error) {
	return nil, nil
}
func (f *fakeExecutor) ListSchemas(ctx context.Context) ([]db.TableSummary, error) {
	return f.tables, f.listErr
}
func (f *fakeExecutor) DescribeSchema(ctx context.Context, table string) (*db.TableSchema, error) {
	if f.describe != nil {
		return f.describe(table)
	}
	s, ok := f.schemas[table]
	if !ok {
		return nil, db.ErrTableNotFound
	}
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefresh_PopulatesCache(t *testing.T) {
	exec := &fakeExecutor{
		tables: []db.TableSummary{{Name: "orders", Comment: "customer orders"}},
		schemas: map[string]*db.TableSchema{
			"orders": {Name: "orders", Columns: []db.Column{{Name: "id", Type: "INTEGER"}}},
		},
	}
	c := New(exec, testLogger())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tables := c.Tables()
	if len(tables) != 1 || tables[0].Name != "orders" {
		t.Errorf("unexpected tables: %+v", tables)
	}
}

func TestRefresh_ListError(t *testing.T) {
	exec := &fakeExecutor{listErr: errors.New("connection lost")}
	c := New(exec, testLogger())
	if err := c.Refresh(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestRefresh_DescribeFailureKeepsTable(t *testing.T) {
	exec := &fakeExecutor{
		tables: []db.TableSummary{{Name: "orders"}, {Name: "ghost"}},
		schemas: map[string]*db.TableSchema{
			"orders": {Name: "orders", Columns: []db.Column{{Name: "id", Type: "INTEGER"}}},
		},
	}
	c := New(exec, testLogger())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The undescribable table stays in the listing, just without columns.
	got := c.Context()
	want := "Table: orders\n  - id (INTEGER)\nTable: ghost"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestContext_Rendering(t *testing.T) {
	exec := &fakeExecutor{
		tables: []db.TableSummary{{Name: "orders", Comment: "customer orders"}},
		schemas: map[string]*db.TableSchema{
			"orders": {Name: "orders", Columns: []db.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "receipt", Type: "BLOB"},
				{Name: "note", Type: "TEXT", Comment: "free-form note"},
			}},
		},
	}
	c := New(exec, testLogger())
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := c.Context()
	want := "Table: orders (customer orders)\n" +
		"  - id (INTEGER)\n" +
		"  - receipt (BLOB) [binary data]\n" +
		"  - note (TEXT) -- free-form note"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestContext_Empty(t *testing.T) {
	c := New(&fakeExecutor{}, testLogger())
	if got := c.Context(); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestStart_InvalidCronSpec(t *testing.T) {
	exec := &fakeExecutor{tables: []db.TableSummary{}}
	c := New(exec, testLogger())
	if err := c.Start("not a cron spec"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestStart_EmptySpecSkipsSchedule(t *testing.T) {
	exec := &fakeExecutor{tables: []db.TableSummary{{Name: "orders"}}}
	c := New(exec, testLogger())
	if err := c.Start(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Stop()
	if len(c.Tables()) != 1 {
		t.Error("initial refresh should have run")
	}
}
