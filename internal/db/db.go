package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// TableSummary is one entry of the table listing.
type TableSummary struct {
	Name    string `json:"table_name"`
	Comment string `json:"table_comment"`
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"column_name"`
	Type     string `json:"data_type"`
	Nullable bool   `json:"is_nullable"`
	Key      string `json:"column_key"`
	Default  string `json:"column_default"`
	Comment  string `json:"column_comment"`
}

// TableSchema is the full introspection result for one table.
type TableSchema struct {
	Name    string   `json:"table_name"`
	Comment string   `json:"table_comment"`
	Columns []Column `json:"columns"`
}

// ErrTableNotFound is returned by DescribeSchema for an unknown table.
var ErrTableNotFound = errors.New("table not found")

// Executor is the narrow query-execution contract the engine depends on.
// Implementations own the connection pool; the engine never opens a raw
// connection itself.
type Executor interface {
	Validate(ctx context.Context, query string) error
	Execute(ctx context.Context, query string) ([]Row, error)
	DescribeSchema(ctx context.Context, table string) (*TableSchema, error)
	ListSchemas(ctx context.Context) ([]TableSummary, error)
}

// SQLDB implements Executor over database/sql with a driver-specific
// introspection dialect.
type SQLDB struct {
	conn    *sql.DB
	dialect dialect
}

// Open connects using one of the supported drivers ("sqlite" or "postgres").
func Open(driver, dsn string) (*SQLDB, error) {
	var driverName string
	var d dialect
	switch driver {
	case "sqlite":
		driverName = "sqlite"
		d = sqliteDialect{}
	case "postgres":
		driverName = "pgx"
		d = postgresDialect{}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &SQLDB{conn: conn, dialect: d}, nil
}

func (d *SQLDB) Close() error {
	return d.conn.Close()
}

// Execute runs the query and returns all rows with cleaned values.
func (d *SQLDB) Execute(ctx context.Context, query string) ([]Row, error) {
	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Validate checks the query without running it: EXPLAIN for SELECT, a
// prepare-only round trip otherwise.
func (d *SQLDB) Validate(ctx context.Context, query string) error {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		rows, err := d.conn.QueryContext(ctx, "EXPLAIN "+query)
		if err != nil {
			return fmt.Errorf("validating query: %w", err)
		}
		return rows.Close()
	}
	stmt, err := d.conn.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("validating query: %w", err)
	}
	return stmt.Close()
}

func (d *SQLDB) ListSchemas(ctx context.Context) ([]TableSummary, error) {
	return d.dialect.listTables(ctx, d.conn)
}

func (d *SQLDB) DescribeSchema(ctx context.Context, table string) (*TableSchema, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return d.dialect.describeTable(ctx, d.conn, table)
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool {
	return identRE.MatchString(s)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = cleanValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// cleanValue makes a scanned value safe for JSON serialization: binary blobs
// become hex strings, text loses control characters.
func cleanValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(val) {
			return stripControl(string(val))
		}
		return hex.EncodeToString(val)
	case string:
		return stripControl(val)
	default:
		return val
	}
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}
