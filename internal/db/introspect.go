package db

import (
	"context"
	"database/sql"
	"fmt"
)

// dialect isolates the driver-specific catalog queries.
type dialect interface {
	listTables(ctx context.Context, conn *sql.DB) ([]TableSummary, error)
	describeTable(ctx context.Context, conn *sql.DB, table string) (*TableSchema, error)
}

type sqliteDialect struct{}

func (sqliteDialect) listTables(ctx context.Context, conn *sql.DB) ([]TableSummary, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var out []TableSummary
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		// sqlite has no table comments
		out = append(out, TableSummary{Name: name})
	}
	return out, rows.Err()
}

func (sqliteDialect) describeTable(ctx context.Context, conn *sql.DB, table string) (*TableSchema, error) {
	var exists int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking table: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	// PRAGMA cannot be parameterized; table was validated as a bare identifier.
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("describing table: %w", err)
	}
	defer rows.Close()

	schema := &TableSchema{Name: table}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		col := Column{Name: name, Type: ctype, Nullable: notNull == 0, Default: dflt.String}
		if pk > 0 {
			col.Key = "PRI"
		}
		schema.Columns = append(schema.Columns, col)
	}
	return schema, rows.Err()
}

type postgresDialect struct{}

func (postgresDialect) listTables(ctx context.Context, conn *sql.DB) ([]TableSummary, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r' AND n.nspname = 'public'
		ORDER BY c.relname`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var out []TableSummary
	for rows.Next() {
		var t TableSummary
		if err := rows.Scan(&t.Name, &t.Comment); err != nil {
			return nil, fmt.Errorf("scanning table summary: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (postgresDialect) describeTable(ctx context.Context, conn *sql.DB, table string) (*TableSchema, error) {
	schema := &TableSchema{Name: table}
	err := conn.QueryRowContext(ctx, `
		SELECT COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r' AND n.nspname = 'public' AND c.relname = $1`,
		table).Scan(&schema.Comment)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	if err != nil {
		return nil, fmt.Errorf("checking table: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT
			col.column_name,
			col.data_type,
			col.is_nullable = 'YES',
			COALESCE(col.column_default, ''),
			COALESCE(col_description(pc.oid, col.ordinal_position), ''),
			EXISTS (
				SELECT 1 FROM pg_catalog.pg_index i
				JOIN pg_catalog.pg_attribute a
					ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
				WHERE i.indrelid = pc.oid AND i.indisprimary
					AND a.attname = col.column_name
			)
		FROM information_schema.columns col
		JOIN pg_catalog.pg_class pc ON pc.relname = col.table_name
		JOIN pg_catalog.pg_namespace pn
			ON pn.oid = pc.relnamespace AND pn.nspname = col.table_schema
		WHERE col.table_schema = 'public' AND col.table_name = $1
		ORDER BY col.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("describing table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			col     Column
			primary bool
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.Comment, &primary); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		if primary {
			col.Key = "PRI"
		}
		schema.Columns = append(schema.Columns, col)
	}
	return schema, rows.Err()
}
