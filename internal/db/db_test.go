package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func mockDB(t *testing.T, d dialect) (*SQLDB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &SQLDB{conn: conn, dialect: d}, mock
}

// --- Open ---

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

// --- Execute ---

func TestExecute_RowsAsMaps(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	rows, err := d.Execute(context.Background(), "SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["id"] != int64(1) || rows[0]["name"] != "alice" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExecute_BinaryBecomesHex(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT payload FROM blobs").WillReturnRows(
		sqlmock.NewRows([]string{"payload"}).AddRow([]byte{0xff, 0x00, 0xab}))

	rows, err := d.Execute(context.Background(), "SELECT payload FROM blobs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["payload"] != "ff00ab" {
		t.Errorf("expected hex string, got %v", rows[0]["payload"])
	}
}

func TestExecute_TextBytesStayText(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT name FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow([]byte("alice\x00")))

	rows, err := d.Execute(context.Background(), "SELECT name FROM users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["name"] != "alice" {
		t.Errorf("expected control-stripped text, got %q", rows[0]["name"])
	}
}

func TestExecute_NullStaysNil(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT comment FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"comment"}).AddRow(nil))

	rows, err := d.Execute(context.Background(), "SELECT comment FROM users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["comment"] != nil {
		t.Errorf("expected nil, got %v", rows[0]["comment"])
	}
}

func TestExecute_QueryError(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))

	if _, err := d.Execute(context.Background(), "SELECT broken"); err == nil {
		t.Error("expected error")
	}
}

// --- Validate ---

func TestValidate_SelectUsesExplain(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("EXPLAIN SELECT \\* FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"detail"}))

	if err := d.Validate(context.Background(), "SELECT * FROM users"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestValidate_SelectLowercase(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("EXPLAIN select \\* from users").WillReturnRows(
		sqlmock.NewRows([]string{"detail"}))

	if err := d.Validate(context.Background(), "select * from users"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NonSelectUsesPrepare(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectPrepare("UPDATE users SET name = 'x'")

	if err := d.Validate(context.Background(), "UPDATE users SET name = 'x'"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestValidate_InvalidQuery(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("EXPLAIN SELECT nope").WillReturnError(errors.New("no such column: nope"))

	if err := d.Validate(context.Background(), "SELECT nope"); err == nil {
		t.Error("expected validation error")
	}
}

// --- DescribeSchema identifier guard ---

func TestDescribeSchema_RejectsInvalidIdentifier(t *testing.T) {
	d, _ := mockDB(t, sqliteDialect{})
	_, err := d.DescribeSchema(context.Background(), "users; DROP TABLE users")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestValidIdent(t *testing.T) {
	cases := map[string]bool{
		"users":       true,
		"_orders":     true,
		"order_items": true,
		"Orders2":     true,
		"":            false,
		"2fast":       false,
		"a b":         false,
		"a;b":         false,
		`a"b`:         false,
	}
	for in, want := range cases {
		if got := validIdent(in); got != want {
			t.Errorf("validIdent(%q) = %v, want %v", in, got, want)
		}
	}
}

// --- sqlite dialect ---

func TestSqliteListTables(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT name FROM sqlite_master").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow("orders").AddRow("users"))

	tables, err := d.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "orders" || tables[1].Name != "users" {
		t.Errorf("unexpected tables: %+v", tables)
	}
}

func TestSqliteDescribeTable(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sqlite_master").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`PRAGMA table_info\("orders"\)`).WillReturnRows(
		sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 1, nil, 1).
			AddRow(1, "total", "REAL", 0, "0.0", 0))

	schema, err := d.DescribeSchema(context.Background(), "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Name != "orders" || len(schema.Columns) != 2 {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	id := schema.Columns[0]
	if id.Name != "id" || id.Type != "INTEGER" || id.Nullable || id.Key != "PRI" {
		t.Errorf("unexpected id column: %+v", id)
	}
	total := schema.Columns[1]
	if total.Name != "total" || !total.Nullable || total.Default != "0.0" || total.Key != "" {
		t.Errorf("unexpected total column: %+v", total)
	}
}

func TestSqliteDescribeTable_NotFound(t *testing.T) {
	d, mock := mockDB(t, sqliteDialect{})
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sqlite_master").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := d.DescribeSchema(context.Background(), "ghost")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

// --- postgres dialect ---

func TestPostgresListTables(t *testing.T) {
	d, mock := mockDB(t, postgresDialect{})
	mock.ExpectQuery("SELECT c.relname").WillReturnRows(
		sqlmock.NewRows([]string{"relname", "comment"}).
			AddRow("orders", "customer orders").
			AddRow("users", ""))

	tables, err := d.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 2 || tables[0].Comment != "customer orders" {
		t.Errorf("unexpected tables: %+v", tables)
	}
}

func TestPostgresDescribeTable(t *testing.T) {
	d, mock := mockDB(t, postgresDialect{})
	mock.ExpectQuery("SELECT COALESCE\\(obj_description").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"comment"}).AddRow("customer orders"))
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "column_comment", "primary"}).
			AddRow("id", "integer", false, "nextval('orders_id_seq')", "", true).
			AddRow("note", "text", true, "", "free-form note", false))

	schema, err := d.DescribeSchema(context.Background(), "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Comment != "customer orders" || len(schema.Columns) != 2 {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	if schema.Columns[0].Key != "PRI" || schema.Columns[1].Key != "" {
		t.Errorf("unexpected keys: %+v", schema.Columns)
	}
	if schema.Columns[1].Comment != "free-form note" {
		t.Errorf("unexpected comment: %+v", schema.Columns[1])
	}
}

func TestPostgresDescribeTable_NotFound(t *testing.T) {
	d, mock := mockDB(t, postgresDialect{})
	mock.ExpectQuery("SELECT COALESCE\\(obj_description").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"comment"}))

	_, err := d.DescribeSchema(context.Background(), "ghost")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}
